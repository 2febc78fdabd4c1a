package ledger

import "context"

// Store is the durable storage contract for vouch records, community
// settings, and blacklist entries. It is the single source of truth and the
// sole synchronization point between concurrently handled commands.
// Both MemoryStore and PostgresStore implement this interface.
type Store interface {
	// InsertVouch persists a new record and assigns its ID and CreatedAt.
	InsertVouch(ctx context.Context, v *Vouch) error

	// GetVouch returns the record with the given ID, removed or not.
	// Returns ErrNotFoundOrRemoved if no such record exists.
	GetVouch(ctx context.Context, id int64) (*Vouch, error)

	// MarkRemoved flips removed to true iff the record exists and is
	// currently live. Returns false when no row matched, which callers
	// treat as the not-found/already-removed outcome.
	MarkRemoved(ctx context.Context, id int64) (bool, error)

	// PurgeTarget marks every live record for the target in the community
	// as removed and reports how many rows were affected.
	PurgeTarget(ctx context.Context, communityID, targetID string) (int64, error)

	// ListVouches returns all records matching the query, newest-first.
	ListVouches(ctx context.Context, q VouchQuery) ([]Vouch, error)

	// Settings returns the community's settings, creating the row with
	// defaults if it does not exist yet.
	Settings(ctx context.Context, communityID string) (*CommunitySettings, error)

	// Field-by-field settings setters. Each creates the settings row if
	// absent. Settings are never bulk-overwritten.
	SetAdminRole(ctx context.Context, communityID, roleID string) error
	SetTrustedRole(ctx context.Context, communityID, roleID string) error
	SetLogChannel(ctx context.Context, communityID, channelID string) error
	SetDecayHalfLife(ctx context.Context, communityID string, days float64) error

	// AddBlacklist inserts an entry; returns ErrConflict when the
	// (community, user) pair already exists.
	AddBlacklist(ctx context.Context, e *BlacklistEntry) error

	// RemoveBlacklist deletes the entry for the pair. Returns false when
	// there was nothing to delete.
	RemoveBlacklist(ctx context.Context, communityID, userID string) (bool, error)

	// ListBlacklist returns the community's entries, newest-first.
	ListBlacklist(ctx context.Context, communityID string) ([]BlacklistEntry, error)

	// IsBlacklisted reports whether the user is blacklisted in the community.
	IsBlacklisted(ctx context.Context, communityID, userID string) (bool, error)
}
