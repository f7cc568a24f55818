package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-research/internal/research"
	"github.com/sells-group/outreach-research/internal/store"
	anthropicpkg "github.com/sells-group/outreach-research/pkg/anthropic"
	"github.com/sells-group/outreach-research/pkg/exa"
)

// researchEnv holds the initialized store, clients and pipeline shared by the
// serve/research/jobs commands.
type researchEnv struct {
	Store    store.Store
	Pipeline *research.Pipeline
}

// Close releases resources held by the environment.
func (e *researchEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore opens the configured database backend.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	case "sqlite", "":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// initResearch sets up the store and API clients and builds the pipeline.
// Callers should defer env.Close().
func initResearch(ctx context.Context) (*researchEnv, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	zap.L().Info("store ready", zap.String("driver", cfg.Store.Driver))

	burst := int(cfg.Exa.RateLimit)
	if burst < 1 {
		burst = 1
	}
	exaClient := exa.NewClient(cfg.Exa.Key,
		exa.WithBaseURL(cfg.Exa.BaseURL),
		exa.WithRateLimit(cfg.Exa.RateLimit, burst),
	)
	anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key)

	p, err := research.New(cfg, st, exaClient, anthropicClient)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	return &researchEnv{
		Store:    st,
		Pipeline: p,
	}, nil
}
