package sending

import (
	"context"
	"time"

	"github.com/ignite/warmup-scheduler/internal/domain"
)

// Registry is the identity registry. The scheduler never creates or deletes
// identities; it only reads them and bumps their counters.
// Implementations must be safe for concurrent use.
type Registry interface {
	// List returns every identity, active or not, ordered by id.
	List(ctx context.Context) ([]domain.Identity, error)

	// Get returns one identity. Returns ErrIdentityNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.Identity, error)

	// IncrementSent adds one to the lifetime and today's counters. day is
	// the caller's local calendar day; today's counter restarts when it
	// changes.
	IncrementSent(ctx context.Context, id string, day string) error

	// RecordError stamps the identity's last error time.
	RecordError(ctx context.Context, id string, at time.Time) error
}

// Metrics receives decision and send events. monitoring.Metrics implements it.
type Metrics interface {
	ObserveDecision(reason string, allowed bool)
	ObserveSend(err error)
	ObserveSelection(operation, code string)
}

type noopMetrics struct{}

func (noopMetrics) ObserveDecision(string, bool)    {}
func (noopMetrics) ObserveSend(error)               {}
func (noopMetrics) ObserveSelection(string, string) {}
