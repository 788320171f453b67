package service

import (
	"context"
	"fmt"

	"github.com/VitorMRodovalho/SnipeScheduler-FleetManager-sub002/internal/inventory"
	"github.com/VitorMRodovalho/SnipeScheduler-FleetManager-sub002/internal/queue"
)

// CapacityProvider answers how many physical units exist for a model.
// Production wiring is inventory.CapacityCache over inventory.Client; a
// zero count means the fleet size is unknown, not empty.
type CapacityProvider interface {
	GetCapacity(ctx context.Context, modelID uint64) (int, error)
}

// AssetGateway executes per-asset operations against the external asset
// system.  Checkout and checkin are not transactional across assets; each
// call succeeds or fails on its own.
type AssetGateway interface {
	FindAssetByTag(ctx context.Context, tag string) (*inventory.Asset, error)
	CheckoutAsset(ctx context.Context, assetID, userID uint64, note string) error
	CheckinAsset(ctx context.Context, assetID uint64, note string) error
}

// EventPublisher hands lifecycle events to the message broker for the
// external notification collaborator.  Publishing happens after commit;
// failures are logged by callers and never undo the committed change.
type EventPublisher interface {
	PublishReservationEvent(ctx context.Context, ev queue.ReservationEvent) error
}

// Actor identifies who is performing an engine operation, for ownership
// checks and the history trail.
type Actor struct {
	ExternalID uint64
	Name       string
	Staff      bool
}

// String renders the actor the way it is stored in lifecycle_history.
func (a Actor) String() string {
	if a.Staff {
		return actorLabel("staff", a.ExternalID)
	}
	return actorLabel("requester", a.ExternalID)
}

func actorLabel(role string, id uint64) string {
	if id == 0 {
		return role
	}
	return fmt.Sprintf("%s:%d", role, id)
}
