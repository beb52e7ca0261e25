package stakeholder

import (
	"context"
	"errors"
	"time"

	"reftracker.org/internal/audit"
)

// ErrNotFound is returned by stores when no stakeholder has the requested id.
var ErrNotFound = errors.New("stakeholder: not found")

// Store is the storage contract. RunInTx executes fn as one atomic unit:
// every write made through tx commits together, or none does when fn returns
// an error.
type Store interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Get(ctx context.Context, id string) (Stakeholder, error)
}

// Tx is the transactional view handed to a unit of work. GetForUpdate must
// serialize concurrent units of work touching the same stakeholder.
type Tx interface {
	audit.Store

	Insert(ctx context.Context, s *Stakeholder) error
	GetForUpdate(ctx context.Context, id string) (Stakeholder, error)
	UpdateStatus(ctx context.Context, id string, status Status, at time.Time) error
	UpsertMember(ctx context.Context, m Member) error
}
