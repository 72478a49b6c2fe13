package model_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ioxiocom/firedantic/model"
	"github.com/ioxiocom/firedantic/store"
)

type City struct {
	ID         string `firedantic:"id"`
	Name       string `firedantic:"name"`
	Population int64  `firedantic:"population"`
}

func (City) Collection() string { return "cities" }

func TestRunTransactionReadThenWrite(t *testing.T) {
	cfg, _ := testConfig(t)
	cities := newManager[City](t, cfg)
	ctx := context.Background()

	c := City{Name: "Helsinki", Population: 100}
	if err := cities.Save(ctx, &c); err != nil {
		t.Fatalf("Save: %v", err)
	}

	err := model.RunTransaction(ctx, func(ctx context.Context, tx *model.Tx) error {
		city, err := cities.GetByID(ctx, c.ID, model.WithTx(tx))
		if err != nil {
			return err
		}
		city.Population++
		return cities.Save(ctx, city, model.WithTx(tx))
	}, model.WithConfig(cfg))
	if err != nil {
		t.Fatalf("RunTransaction: %v", err)
	}

	loaded, err := cities.GetByID(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if loaded.Population != 101 {
		t.Errorf("expected population 101, got %d", loaded.Population)
	}
}

func TestRunTransactionWritesAreBuffered(t *testing.T) {
	cfg, backend := testConfig(t)
	cities := newManager[City](t, cfg)
	ctx := context.Background()

	c := City{ID: "hki", Name: "Helsinki"}
	err := model.RunTransaction(ctx, func(ctx context.Context, tx *model.Tx) error {
		if err := cities.Save(ctx, &c, model.WithTx(tx)); err != nil {
			return err
		}
		// The write must not be visible outside the transaction yet.
		if _, err := backend.Get(ctx, "cities/hki"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("uncommitted write is visible: %v", err)
		}
		return nil
	}, model.WithConfig(cfg))
	if err != nil {
		t.Fatalf("RunTransaction: %v", err)
	}

	if _, err := cities.GetByID(ctx, "hki"); err != nil {
		t.Errorf("write should be visible after commit: %v", err)
	}
}

func TestRunTransactionAbortDiscardsWrites(t *testing.T) {
	cfg, _ := testConfig(t)
	cities := newManager[City](t, cfg)
	ctx := context.Background()

	boom := errors.New("abort")
	err := model.RunTransaction(ctx, func(ctx context.Context, tx *model.Tx) error {
		if err := cities.Save(ctx, &City{ID: "hki"}, model.WithTx(tx)); err != nil {
			return err
		}
		return boom
	}, model.WithConfig(cfg))
	if !errors.Is(err, boom) {
		t.Fatalf("expected the callback error, got %v", err)
	}

	if _, err := cities.GetByID(ctx, "hki"); !errors.Is(err, model.ErrModelNotFound) {
		t.Errorf("aborted write must not persist, got %v", err)
	}
}

func TestRunTransactionReadAfterWrite(t *testing.T) {
	cfg, _ := testConfig(t)
	cities := newManager[City](t, cfg)
	ctx := context.Background()

	err := model.RunTransaction(ctx, func(ctx context.Context, tx *model.Tx) error {
		if err := cities.Save(ctx, &City{ID: "hki"}, model.WithTx(tx)); err != nil {
			return err
		}
		_, err := cities.GetByID(ctx, "hki", model.WithTx(tx))
		return err
	}, model.WithConfig(cfg))
	if !errors.Is(err, store.ErrReadAfterWrite) {
		t.Errorf("expected ErrReadAfterWrite, got %v", err)
	}
}

func TestRunTransactionTransactionalDelete(t *testing.T) {
	cfg, _ := testConfig(t)
	cities := newManager[City](t, cfg)
	ctx := context.Background()

	c := City{Name: "Helsinki"}
	if err := cities.Save(ctx, &c); err != nil {
		t.Fatalf("Save: %v", err)
	}

	err := model.RunTransaction(ctx, func(ctx context.Context, tx *model.Tx) error {
		return cities.Delete(ctx, &c, model.WithTx(tx))
	}, model.WithConfig(cfg))
	if err != nil {
		t.Fatalf("RunTransaction: %v", err)
	}

	if _, err := cities.GetByID(ctx, c.ID); !errors.Is(err, model.ErrModelNotFound) {
		t.Errorf("expected ErrModelNotFound after transactional delete, got %v", err)
	}
}

func TestRunTransactionQuery(t *testing.T) {
	cfg, _ := testConfig(t)
	cities := newManager[City](t, cfg)
	ctx := context.Background()

	for _, name := range []string{"Helsinki", "Tampere", "Turku"} {
		if err := cities.Save(ctx, &City{Name: name, Population: 1}); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	err := model.RunTransaction(ctx, func(ctx context.Context, tx *model.Tx) error {
		all, err := cities.Find(ctx, model.Filter{"population": int64(1)}, model.WithTx(tx)).All()
		if err != nil {
			return err
		}
		if len(all) != 3 {
			t.Errorf("expected 3 cities inside the transaction, got %d", len(all))
		}
		return nil
	}, model.WithConfig(cfg))
	if err != nil {
		t.Fatalf("RunTransaction: %v", err)
	}
}

func TestRunTransactionConcurrentIncrements(t *testing.T) {
	cfg, _ := testConfig(t)
	cities := newManager[City](t, cfg)
	ctx := context.Background()

	c := City{Name: "Helsinki", Population: 0}
	if err := cities.Save(ctx, &c); err != nil {
		t.Fatalf("Save: %v", err)
	}

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// The backend retries conflicting commits internally; when its
			// retry budget is exhausted under heavy contention, retry the
			// whole unit of work.
			for {
				err := model.RunTransaction(ctx, func(ctx context.Context, tx *model.Tx) error {
					city, err := cities.GetByID(ctx, c.ID, model.WithTx(tx))
					if err != nil {
						return err
					}
					city.Population++
					return cities.Save(ctx, city, model.WithTx(tx))
				}, model.WithConfig(cfg))
				if errors.Is(err, store.ErrConflict) {
					continue
				}
				errs <- err
				return
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("RunTransaction: %v", err)
		}
	}

	loaded, err := cities.GetByID(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if loaded.Population != workers {
		t.Errorf("lost update: expected population %d, got %d", workers, loaded.Population)
	}
}
