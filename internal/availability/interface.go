package availability

import (
	"context"
	"errors"

	"github.com/mauv0809/scrim-scheduler/internal/slot"
)

// ErrInvalidChange is returned by Apply for changes that can never be written.
var ErrInvalidChange = errors.New("invalid availability change")

// Store is the availability record keeper: the player self-service side writes
// through Apply, the matching engine reads through the slot.Loader methods.
type Store interface {
	slot.Loader
	Apply(ctx context.Context, change Change) (*slot.Snapshot, error)
}
