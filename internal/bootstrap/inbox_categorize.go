package bootstrap

import (
	"context"

	"inbox_server/config"
	"inbox_server/core/service/enrich"
)

// RunCategorize performs one enrichment run outside the HTTP server and returns
// its summary. Any failure leaves the enriched snapshot untouched.
func RunCategorize(ctx context.Context, cfg *config.Config) (*enrich.RunResult, error) {
	deps, cleanup, err := NewDependencies(cfg)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	return deps.Enricher.Run(ctx)
}
