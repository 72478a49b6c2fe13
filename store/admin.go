package store

import (
	"context"
	"fmt"
	"strings"

	apiv1 "cloud.google.com/go/firestore/apiv1/admin"
	"cloud.google.com/go/firestore/apiv1/admin/adminpb"
	"google.golang.org/api/iterator"
	"google.golang.org/protobuf/types/known/fieldmaskpb"
)

// FirestoreAdmin adapts the Firestore administrative API to the Admin
// interface. Index and TTL provisioning go through this API rather than the
// regular data-plane client.
type FirestoreAdmin struct {
	client   *apiv1.FirestoreAdminClient
	project  string
	database string
}

// NewFirestoreAdmin creates a FirestoreAdmin for the given project and
// database. An empty database selects "(default)". The caller keeps
// ownership of the client.
func NewFirestoreAdmin(client *apiv1.FirestoreAdminClient, project, database string) *FirestoreAdmin {
	if database == "" {
		database = "(default)"
	}
	return &FirestoreAdmin{client: client, project: project, database: database}
}

func (a *FirestoreAdmin) collectionGroupPath(collection string) string {
	return fmt.Sprintf("projects/%s/databases/%s/collectionGroups/%s",
		a.project, a.database, collection)
}

// ListCompositeIndexes returns the composite indexes that exist for the
// collection group.
func (a *FirestoreAdmin) ListCompositeIndexes(ctx context.Context, collection string) ([]IndexDefinition, error) {
	parent := a.collectionGroupPath(collection)
	it := a.client.ListIndexes(ctx, &adminpb.ListIndexesRequest{Parent: parent})

	var indexes []IndexDefinition
	for {
		raw, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		// The API can report indexes outside the requested group.
		if !strings.HasPrefix(raw.GetName(), parent) {
			continue
		}
		indexes = append(indexes, indexFromProto(raw))
	}
	return indexes, nil
}

func indexFromProto(raw *adminpb.Index) IndexDefinition {
	def := IndexDefinition{QueryScope: raw.GetQueryScope().String()}
	for _, f := range raw.GetFields() {
		// Every index implicitly ends with the document name.
		if f.GetFieldPath() == "__name__" {
			continue
		}
		order := Ascending
		if f.GetOrder() == adminpb.Index_IndexField_DESCENDING {
			order = Descending
		}
		def.Fields = append(def.Fields, IndexField{Name: f.GetFieldPath(), Order: order})
	}
	return def
}

// CreateCompositeIndex starts creation of a composite index. The build is a
// long-running operation; this call returns without waiting for it.
func (a *FirestoreAdmin) CreateCompositeIndex(ctx context.Context, collection string, index IndexDefinition) error {
	scope := adminpb.Index_COLLECTION
	if index.QueryScope == ScopeCollectionGroup {
		scope = adminpb.Index_COLLECTION_GROUP
	}

	fields := make([]*adminpb.Index_IndexField, 0, len(index.Fields))
	for _, f := range index.Fields {
		order := adminpb.Index_IndexField_ASCENDING
		if f.Order == Descending {
			order = adminpb.Index_IndexField_DESCENDING
		}
		fields = append(fields, &adminpb.Index_IndexField{
			FieldPath: f.Name,
			ValueMode: &adminpb.Index_IndexField_Order_{Order: order},
		})
	}

	_, err := a.client.CreateIndex(ctx, &adminpb.CreateIndexRequest{
		Parent: a.collectionGroupPath(collection),
		Index: &adminpb.Index{
			QueryScope: scope,
			Fields:     fields,
		},
	})
	return err
}

// TTLPolicyState reports the state of the TTL policy on a field.
func (a *FirestoreAdmin) TTLPolicyState(ctx context.Context, collection, field string) (TTLState, error) {
	name := a.collectionGroupPath(collection) + "/fields/" + field
	obj, err := a.client.GetField(ctx, &adminpb.GetFieldRequest{Name: name})
	if err != nil {
		return TTLStateUnspecified, err
	}
	switch obj.GetTtlConfig().GetState() {
	case adminpb.Field_TtlConfig_CREATING:
		return TTLStateCreating, nil
	case adminpb.Field_TtlConfig_ACTIVE:
		return TTLStateActive, nil
	case adminpb.Field_TtlConfig_NEEDS_REPAIR:
		return TTLStateNeedsRepair, nil
	default:
		return TTLStateUnspecified, nil
	}
}

// EnableTTLPolicy starts enabling automatic expiry on a field. Like index
// builds, TTL enablement is long-running; this call does not wait.
func (a *FirestoreAdmin) EnableTTLPolicy(ctx context.Context, collection, field string) error {
	name := a.collectionGroupPath(collection) + "/fields/" + field
	obj, err := a.client.GetField(ctx, &adminpb.GetFieldRequest{Name: name})
	if err != nil {
		return err
	}

	obj.TtlConfig = &adminpb.Field_TtlConfig{}
	_, err = a.client.UpdateField(ctx, &adminpb.UpdateFieldRequest{
		Field:      obj,
		UpdateMask: &fieldmaskpb.FieldMask{Paths: []string{"ttl_config"}},
	})
	return err
}
