package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/weirdgate/weirdgate/internal/config"
	"github.com/weirdgate/weirdgate/internal/core/store"
)

var errStoreDisabled = errors.New("store is disabled (set store.enabled or WEIRDGATE_STORE_ENABLED=true)")

func openStore(ctx context.Context) (*store.Store, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if !cfg.Store.Enabled {
		return nil, errStoreDisabled
	}
	return openConfiguredStore(ctx, cfg.Store)
}

func openConfiguredStore(ctx context.Context, cfg config.StoreConfig) (*store.Store, error) {
	db, err := store.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}
