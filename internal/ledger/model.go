package ledger

import (
	"time"

	"github.com/google/uuid"
)

// MaxReasonLength is the upper bound on a vouch reason, in characters.
const MaxReasonLength = 500

// DefaultHalfLifeDays is the reputation decay half-life applied when a
// community has not configured its own.
const DefaultHalfLifeDays = 180

// Identity is an opaque platform identity handle plus the display snapshot
// captured from the directory at the time of the operation.
type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Tag         string `json:"tag"`
	Bot         bool   `json:"bot"`
}

// Vouch is a single attestation one identity records about another within a
// community. Display names and tags are snapshots taken at creation time and
// are never updated afterwards.
type Vouch struct {
	ID                 int64     `json:"id"                   db:"id"`
	VoucherID          string    `json:"voucher_id"           db:"voucher_id"`
	VoucherDisplayName string    `json:"voucher_display_name" db:"voucher_name"`
	VoucherTag         string    `json:"voucher_tag"          db:"voucher_tag"`
	TargetID           string    `json:"target_id"            db:"target_id"`
	TargetDisplayName  string    `json:"target_display_name"  db:"target_name"`
	TargetTag          string    `json:"target_tag"           db:"target_tag"`
	Reason             string    `json:"reason"               db:"reason"`
	CommunityID        string    `json:"community_id"         db:"community_id"`
	CreatedAt          time.Time `json:"created_at"           db:"created_at"`
	Removed            bool      `json:"removed"              db:"removed"`
}

// CommunitySettings holds the per-community configuration. A row is created
// lazily, with defaults, the first time a community is read or written.
// Empty string means "not configured" for the optional ID fields.
type CommunitySettings struct {
	CommunityID       string  `json:"community_id"        db:"community_id"`
	AdminRoleID       string  `json:"admin_role_id"       db:"admin_role_id"`
	TrustedRoleID     string  `json:"trusted_role_id"     db:"trusted_role_id"`
	LogChannelID      string  `json:"log_channel_id"      db:"log_channel_id"`
	DecayHalfLifeDays float64 `json:"decay_half_life_days" db:"decay_half_life_days"`
}

// BlacklistEntry forbids a user from being a voucher or a target within one
// community. The (community, user) pair is unique.
type BlacklistEntry struct {
	ID          uuid.UUID `json:"id"           db:"id"`
	CommunityID string    `json:"community_id" db:"community_id"`
	UserID      string    `json:"user_id"      db:"user_id"`
	Reason      string    `json:"reason"       db:"reason"`
	AddedBy     string    `json:"added_by"     db:"added_by"`
	AddedAt     time.Time `json:"added_at"     db:"added_at"`
}

// VouchQuery selects vouch records. Empty string fields are not filtered on;
// an empty CommunityID means the unscoped cross-community union. Results are
// always ordered newest-first, with ID descending as the tie-break.
type VouchQuery struct {
	CommunityID    string
	VoucherID      string
	TargetID       string
	IncludeRemoved bool
}
