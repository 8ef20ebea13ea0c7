// Package auditlog defines the append-only audit trail port.
package auditlog

import (
	"context"

	"github.com/backline-io/backline/internal/domain/audit"
)

// Store is the port interface for the audit trail. Append-only: records are
// never updated or deleted, and List must return them in write order so the
// log replays deterministically.
type Store interface {
	Append(ctx context.Context, rec *audit.Record) error
	List(ctx context.Context, filter audit.Filter) ([]audit.Record, error)
}
