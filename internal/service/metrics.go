package service

import (
	"context"
	"time"
)

// Metrics records pipeline-level measurements. The telemetry adapter
// provides the real implementation; a nil Metrics disables recording.
type Metrics interface {
	RecordDecision(ctx context.Context, kind, outcome string, elapsed time.Duration)
	RecordResolution(ctx context.Context, status string)
}
