package model

import (
	"context"
	"fmt"

	"github.com/ioxiocom/firedantic/store"
)

// SetUpTTLPolicies enables the automatic-expiry policies declared by the
// given models. Models without a TTL field are a no-op. A policy already
// being created or active is left alone; a policy needing repair is
// reported through the logger but does not fail the call.
func SetUpTTLPolicies(ctx context.Context, models []ModelDescriptor, opts ...ClientOption) error {
	cfg, err := resolveConfig(opts)
	if err != nil {
		return err
	}
	if cfg.Admin == nil {
		return fmt.Errorf("firedantic: no admin capability configured")
	}

	for _, m := range models {
		field := m.TTLField()
		if field == "" {
			continue
		}
		collection, err := m.CollectionName()
		if err != nil {
			return err
		}

		state, err := cfg.Admin.TTLPolicyState(ctx, collection, field)
		if err != nil {
			return err
		}

		switch state {
		case store.TTLStateUnspecified:
			cfg.Logger.Info("setting up new TTL policy",
				"collection", collection, "field", field)
			if err := cfg.Admin.EnableTTLPolicy(ctx, collection, field); err != nil {
				return err
			}
		case store.TTLStateCreating:
			cfg.Logger.Info("TTL policy is still being created",
				"collection", collection, "field", field)
		case store.TTLStateActive:
			cfg.Logger.Debug("TTL policy is active",
				"collection", collection, "field", field)
		case store.TTLStateNeedsRepair:
			cfg.Logger.Error("TTL policy needs repair",
				"collection", collection, "field", field)
		}
	}
	return nil
}
