// Package model maps Go structs onto a hierarchical document store:
// declarative collections and subcollections, filtered queries,
// transactions, and index/TTL provisioning.
//
// # Declaring models
//
// A model is a plain struct whose value type declares its collection:
//
//	type Company struct {
//	    ID        string `firedantic:"id"`
//	    CompanyID string `firedantic:"company_id"`
//	    Owner     Owner  `firedantic:"owner"`
//	}
//
//	func (Company) Collection() string { return "companies" }
//
// Field serialization follows the `firedantic` struct tag (alias plus an
// optional `,omitempty`). The document ID field, "id" by default, is
// carried in the document path rather than the payload; implement
// [CustomIDField] to designate a different field. Models may additionally
// implement [TTLFielder] and [CompositeIndexer] to declare automatic
// expiry and composite indexes.
//
// Subcollection models declare a path template instead, with placeholders
// resolved from a parent model's fields:
//
//	type UserStats struct {
//	    ID     string `firedantic:"id"`
//	    Purchases int64 `firedantic:"purchases"`
//	}
//
//	func (UserStats) CollectionTemplate() string { return "users/{id}/stats" }
//
// # Using managers
//
// Configure the process once, then create a [Manager] per model type:
//
//	model.Configure(backend, model.WithPrefix("acme-"))
//
//	companies, err := model.NewManager[Company]()
//	err = companies.Save(ctx, &Company{CompanyID: "1234567-8"})
//	found, err := companies.FindOne(ctx, model.Filter{"company_id": "1234567-8"})
//
// A subcollection manager is bound to a concrete parent before use:
//
//	stats, err := model.NewManager[UserStats]()
//	bound, err := stats.ForParent(user)
//
// Binding snapshots the parent's field values; later changes to the parent
// do not move an already-bound manager.
//
// # Queries
//
// [Manager.Find] takes a [Filter] mapping field names to a literal
// (equality) or to an operator map, conjoined with AND semantics:
//
//	products.Find(ctx, model.Filter{"stock": map[string]any{">=": 1}},
//	    model.OrderBy("stock", store.Ascending), model.WithLimit(10))
//
// Results stream through a lazy [Iterator], terminated by iterator.Done.
//
// # Transactions
//
// [RunTransaction] wraps a unit of work; operations opt in with [WithTx].
// All reads must precede all writes, and the unit of work may re-execute
// after a conflict.
//
// # Errors
//
// The package reports failures through sentinel errors compared with
// errors.Is:
//
//   - [ErrModelNotFound] - no document for the identifier or filter
//   - [ErrInvalidDocumentID] - structurally invalid document ID
//   - [ErrCollectionNotDefined] - no collection name or unresolved template
//   - [ErrInvalidFilterOperator] - unknown filter operator symbol
package model
