package pipeline

import (
	"context"
	"fmt"

	"github.com/mchmarny/pwgate/pkg/config"
	"github.com/mchmarny/pwgate/pkg/store"
	"google.golang.org/api/option"
)

// OpenStore creates the artifact store selected by the config backend.
// The access token is only used by the gcs backend and may be empty.
func OpenStore(ctx context.Context, cfg *config.Config, accessToken string) (store.Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: config required", ErrConfiguration)
	}

	switch cfg.Backend {
	case config.BackendGCS:
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("%w: bucket required", ErrConfiguration)
		}
		opts, err := store.GCSClientOptions(cfg.CredentialsFile, accessToken)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
		}
		if cfg.Project != "" {
			opts = append(opts, option.WithQuotaProject(cfg.Project))
		}
		return store.NewGCS(ctx, cfg.Bucket, opts...)
	case config.BackendSQLite:
		return store.OpenSQL(ctx, store.SQLite, cfg.DSN)
	case config.BackendPostgres:
		return store.OpenSQL(ctx, store.Postgres, cfg.DSN)
	case config.BackendMemory:
		return store.NewMemory(), nil
	default:
		return nil, fmt.Errorf("%w: unsupported backend %q", ErrConfiguration, cfg.Backend)
	}
}
