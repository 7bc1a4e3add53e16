package finance

import (
	"context"
	"time"
)

// Repository is the read-only data-access collaborator supplying the
// orchestrator with profile and aggregate data. Idempotent and
// side-effect-free by contract.
type Repository interface {
	GetProfile(ctx context.Context, userID string) (*Profile, error)
	GetAggregates(ctx context.Context, userID string, month time.Time) (*Aggregates, error)
}
