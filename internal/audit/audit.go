// Package audit delivers best-effort notifications about ledger mutations to
// a community's configured log channel. Delivery is fire-and-forget: a
// failed or missing sink never affects the operation that emitted the event.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event kinds.
const (
	KindVouchCreated     = "vouch.created"
	KindVouchRemoved     = "vouch.removed"
	KindVouchPurged      = "vouch.purged"
	KindBlacklistAdded   = "blacklist.added"
	KindBlacklistRemoved = "blacklist.removed"
)

// Event is one audit notification.
type Event struct {
	ID          uuid.UUID `json:"id"`
	Kind        string    `json:"kind"`
	CommunityID string    `json:"community_id"`
	VouchID     int64     `json:"vouch_id,omitempty"`
	ActorID     string    `json:"actor_id"`
	ActorName   string    `json:"actor_name,omitempty"`
	TargetID    string    `json:"target_id,omitempty"`
	TargetName  string    `json:"target_name,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	Affected    int64     `json:"affected,omitempty"`
	At          time.Time `json:"at"`
}

// NewEvent creates an Event of the given kind with its ID and timestamp set.
func NewEvent(kind, communityID string) Event {
	return Event{
		ID:          uuid.New(),
		Kind:        kind,
		CommunityID: communityID,
		At:          time.Now().UTC(),
	}
}

// Notifier delivers an event to a community log channel. Implementations
// must treat delivery as best-effort; callers swallow any returned error.
type Notifier interface {
	Notify(ctx context.Context, logChannelID string, e Event) error
}
