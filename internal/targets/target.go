package targets

import (
	"context"

	"pydigest/internal/types"
)

// Target consumes a finished run's ordered posts. Targets are sinks
// only; no format is prescribed beyond field presence.
type Target interface {
	Name() string
	Initialize(ctx context.Context) error
	Publish(ctx context.Context, posts []types.Post, run *types.PipelineRun) error
	Shutdown(ctx context.Context) error
}
