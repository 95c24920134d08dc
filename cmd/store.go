package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/opengov-in/parivesh-sync/internal/portal"
	"github.com/opengov-in/parivesh-sync/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.Store.Path
		if path == "" {
			path = "parivesh.db"
		}
		return store.NewSQLite(path)
	case "postgres":
		if cfg.Store.DatabaseURL == "" {
			return nil, eris.New("store.database_url is required for the postgres driver")
		}
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, cfg.Store.Pool)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initPortal() *portal.Client {
	return portal.New(portal.Options{
		BaseURL:    cfg.Portal.BaseURL,
		SiteURL:    cfg.Portal.SiteURL,
		UserAgent:  cfg.Portal.UserAgent,
		Timeout:    time.Duration(cfg.Portal.TimeoutSecs) * time.Second,
		MaxRetries: cfg.Portal.MaxRetries,
		RateLimit:  rate.Limit(cfg.Portal.RatePerSec),
		Burst:      cfg.Portal.Burst,
	})
}
