// Package access resolves the privileges an actor holds within a community:
// elevated (admin) privilege, voucher eligibility, and blacklist status.
//
// Group membership and the platform-native administrator capability are
// queried through the Directory interface so the resolver stays decoupled
// from any particular directory shape.
package access

import (
	"context"
	"fmt"
)

// Capabilities is the boolean capability set the platform directory reports
// for one actor within one community.
type Capabilities struct {
	// Administrator is the platform-native administrator capability. It
	// always grants elevated privilege, independent of configured roles.
	Administrator bool
	// Roles holds the IDs of the groups the actor belongs to.
	Roles map[string]bool
}

// HasRole reports whether the actor belongs to the given group.
func (c Capabilities) HasRole(roleID string) bool {
	return roleID != "" && c.Roles[roleID]
}

// Directory answers capability queries against the platform's identity
// directory.
type Directory interface {
	Capabilities(ctx context.Context, communityID, actorID string) (Capabilities, error)
}

// Settings is the slice of community configuration the resolver needs.
// Empty string means the role is not configured.
type Settings struct {
	AdminRoleID   string
	TrustedRoleID string
}

// SettingsSource supplies per-community access settings.
type SettingsSource interface {
	AccessSettings(ctx context.Context, communityID string) (Settings, error)
}

// BlacklistSource answers blacklist membership queries.
type BlacklistSource interface {
	IsBlacklisted(ctx context.Context, communityID, userID string) (bool, error)
}

// Resolver determines privilege and eligibility for actors.
type Resolver struct {
	dir       Directory
	settings  SettingsSource
	blacklist BlacklistSource
}

// NewResolver creates a Resolver.
func NewResolver(dir Directory, settings SettingsSource, blacklist BlacklistSource) *Resolver {
	return &Resolver{dir: dir, settings: settings, blacklist: blacklist}
}

// HasNativeAdmin reports whether the actor holds the platform-native
// administrator capability. Configuring the community admin role itself
// requires this specifically; elevation via the configured role is not
// enough to grant broader control than a true platform administrator
// assigned.
func (r *Resolver) HasNativeAdmin(ctx context.Context, communityID, actorID string) (bool, error) {
	caps, err := r.dir.Capabilities(ctx, communityID, actorID)
	if err != nil {
		return false, fmt.Errorf("capability query: %w", err)
	}
	return caps.Administrator, nil
}

// IsElevated reports whether the actor holds elevated privilege: the
// platform-native administrator capability, or membership in the
// community's configured admin role.
func (r *Resolver) IsElevated(ctx context.Context, communityID, actorID string) (bool, error) {
	caps, err := r.dir.Capabilities(ctx, communityID, actorID)
	if err != nil {
		return false, fmt.Errorf("capability query: %w", err)
	}
	if caps.Administrator {
		return true, nil
	}
	s, err := r.settings.AccessSettings(ctx, communityID)
	if err != nil {
		return false, err
	}
	return caps.HasRole(s.AdminRoleID), nil
}

// IsEligibleVoucher reports whether the actor may create vouch records. If
// the community configures a trusted role, only its members and elevated
// actors are eligible; otherwise everyone is. Blacklist status is checked
// separately by the ledger.
func (r *Resolver) IsEligibleVoucher(ctx context.Context, communityID, actorID string) (bool, error) {
	s, err := r.settings.AccessSettings(ctx, communityID)
	if err != nil {
		return false, err
	}
	if s.TrustedRoleID == "" {
		return true, nil
	}
	caps, err := r.dir.Capabilities(ctx, communityID, actorID)
	if err != nil {
		return false, fmt.Errorf("capability query: %w", err)
	}
	if caps.HasRole(s.TrustedRoleID) || caps.Administrator {
		return true, nil
	}
	return caps.HasRole(s.AdminRoleID), nil
}

// IsBlacklisted reports whether the identity is blacklisted in the community.
func (r *Resolver) IsBlacklisted(ctx context.Context, communityID, userID string) (bool, error) {
	return r.blacklist.IsBlacklisted(ctx, communityID, userID)
}
