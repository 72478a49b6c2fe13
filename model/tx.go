package model

import (
	"context"

	"github.com/ioxiocom/firedantic/store"
)

// Tx is a transaction context threaded through model operations with
// WithTx. It carries the store's transaction handle and nothing else; a Tx
// belongs to a single unit of work and must not be shared across
// concurrently-running transactions.
type Tx struct {
	raw store.Tx
}

// Raw returns the underlying store transaction.
func (tx *Tx) Raw() store.Tx {
	return tx.raw
}

// RunTransaction runs fn as a transactional unit of work and commits it.
//
// Within fn, every model operation carrying WithTx(tx) is routed through
// the transaction: reads observe a consistent snapshot and writes are
// buffered until commit, so all reads must precede all writes. When the
// commit conflicts with a concurrent writer the backend re-executes fn from
// the start, up to its retry budget — fn must therefore be free of side
// effects other than store operations.
//
//	err := model.RunTransaction(ctx, func(ctx context.Context, tx *model.Tx) error {
//	    city, err := cities.GetByID(ctx, "helsinki", model.WithTx(tx))
//	    if err != nil {
//	        return err
//	    }
//	    city.Population++
//	    return cities.Save(ctx, city, model.WithTx(tx))
//	})
func RunTransaction(ctx context.Context, fn func(ctx context.Context, tx *Tx) error, opts ...ClientOption) error {
	cfg, err := resolveConfig(opts)
	if err != nil {
		return err
	}
	return cfg.Backend.RunTransaction(ctx, func(ctx context.Context, raw store.Tx) error {
		return fn(ctx, &Tx{raw: raw})
	})
}
