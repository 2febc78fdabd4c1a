package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/vouchlab/vouchd/internal/access"
	"github.com/vouchlab/vouchd/internal/audit"
	"go.uber.org/zap"
)

// auditTimeout bounds a single fire-and-forget audit delivery.
const auditTimeout = 10 * time.Second

// Service is the authoritative write and soft-delete path for vouch records.
// All invariants are enforced here, before anything reaches the store.
type Service struct {
	store    Store
	resolver *access.Resolver
	notifier audit.Notifier
	logger   *zap.Logger
}

// NewService creates a Service. The access resolver is composed internally
// from the directory and the store's settings/blacklist views.
func NewService(store Store, dir access.Directory, notifier audit.Notifier, logger *zap.Logger) *Service {
	src := storeAccess{store}
	return &Service{
		store:    store,
		resolver: access.NewResolver(dir, src, src),
		notifier: notifier,
		logger:   logger,
	}
}

// Resolver exposes the composed access resolver.
func (s *Service) Resolver() *access.Resolver { return s.resolver }

// storeAccess projects the ledger store onto the resolver's source interfaces.
type storeAccess struct {
	st Store
}

func (a storeAccess) AccessSettings(ctx context.Context, communityID string) (access.Settings, error) {
	cs, err := a.st.Settings(ctx, communityID)
	if err != nil {
		return access.Settings{}, err
	}
	return access.Settings{AdminRoleID: cs.AdminRoleID, TrustedRoleID: cs.TrustedRoleID}, nil
}

func (a storeAccess) IsBlacklisted(ctx context.Context, communityID, userID string) (bool, error) {
	return a.st.IsBlacklisted(ctx, communityID, userID)
}

// Create records a new vouch. Validation order, first failure wins:
// self-vouch, bot target, voucher eligibility, voucher blacklist, target
// blacklist. No partial effects on rejection.
func (s *Service) Create(ctx context.Context, communityID string, voucher, target Identity, reason string) (*Vouch, error) {
	if voucher.ID == target.ID {
		return nil, fmt.Errorf("%w: you cannot vouch for yourself", ErrValidation)
	}
	if target.Bot {
		return nil, fmt.Errorf("%w: you cannot vouch for bots", ErrValidation)
	}

	eligible, err := s.resolver.IsEligibleVoucher(ctx, communityID, voucher.ID)
	if err != nil {
		return nil, fmt.Errorf("resolve eligibility: %w", err)
	}
	if !eligible {
		return nil, fmt.Errorf("%w: only members with the configured trusted role can give vouches", ErrForbidden)
	}

	if bl, err := s.resolver.IsBlacklisted(ctx, communityID, voucher.ID); err != nil {
		return nil, err
	} else if bl {
		return nil, fmt.Errorf("%w: you are blacklisted from giving vouches in this community", ErrValidation)
	}
	if bl, err := s.resolver.IsBlacklisted(ctx, communityID, target.ID); err != nil {
		return nil, err
	} else if bl {
		return nil, fmt.Errorf("%w: the target user is blacklisted and cannot receive vouches", ErrValidation)
	}

	if err := validateReason(reason); err != nil {
		return nil, err
	}

	v := &Vouch{
		VoucherID:          voucher.ID,
		VoucherDisplayName: voucher.DisplayName,
		VoucherTag:         voucher.Tag,
		TargetID:           target.ID,
		TargetDisplayName:  target.DisplayName,
		TargetTag:          target.Tag,
		Reason:             reason,
		CommunityID:        communityID,
		CreatedAt:          time.Now().UTC(),
	}
	if err := s.store.InsertVouch(ctx, v); err != nil {
		return nil, err
	}

	e := audit.NewEvent(audit.KindVouchCreated, communityID)
	e.VouchID = v.ID
	e.ActorID = voucher.ID
	e.ActorName = voucher.DisplayName
	e.TargetID = target.ID
	e.TargetName = target.DisplayName
	e.Reason = reason
	s.notify(ctx, communityID, e)

	return v, nil
}

// SoftDelete marks the record removed. The requester must be the original
// voucher or hold elevated privilege in the record's community. Missing and
// already-removed records are reported identically.
func (s *Service) SoftDelete(ctx context.Context, id int64, requester Identity) error {
	v, err := s.store.GetVouch(ctx, id)
	if err != nil {
		return err
	}
	if v.Removed {
		return ErrNotFoundOrRemoved
	}

	if v.VoucherID != requester.ID {
		elevated, err := s.resolver.IsElevated(ctx, v.CommunityID, requester.ID)
		if err != nil {
			return fmt.Errorf("resolve privilege: %w", err)
		}
		if !elevated {
			return fmt.Errorf("%w: you can only remove your own vouches", ErrForbidden)
		}
	}

	// Conditional on removed=false: a concurrent removal wins the race and
	// this call reports the already-removed outcome.
	affected, err := s.store.MarkRemoved(ctx, id)
	if err != nil {
		return err
	}
	if !affected {
		return ErrNotFoundOrRemoved
	}

	e := audit.NewEvent(audit.KindVouchRemoved, v.CommunityID)
	e.VouchID = id
	e.ActorID = requester.ID
	e.ActorName = requester.DisplayName
	s.notify(ctx, v.CommunityID, e)

	return nil
}

// Purge soft-deletes every live vouch received by the target in the
// community. Elevated-only. Returns the number of records removed.
func (s *Service) Purge(ctx context.Context, communityID string, target Identity, requester Identity) (int64, error) {
	if err := s.requireElevated(ctx, communityID, requester); err != nil {
		return 0, err
	}

	n, err := s.store.PurgeTarget(ctx, communityID, target.ID)
	if err != nil {
		return n, fmt.Errorf("purge for %s: %w", target.ID, err)
	}

	e := audit.NewEvent(audit.KindVouchPurged, communityID)
	e.ActorID = requester.ID
	e.ActorName = requester.DisplayName
	e.TargetID = target.ID
	e.TargetName = target.DisplayName
	e.Affected = n
	s.notify(ctx, communityID, e)

	return n, nil
}

// Received returns the live vouches received by the user, newest-first.
// An empty communityID selects the unscoped cross-community union.
func (s *Service) Received(ctx context.Context, communityID, userID string) ([]Vouch, error) {
	return s.store.ListVouches(ctx, VouchQuery{CommunityID: communityID, TargetID: userID})
}

// Given returns the live vouches given by the user, newest-first.
// An empty communityID selects the unscoped cross-community union.
func (s *Service) Given(ctx context.Context, communityID, userID string) ([]Vouch, error) {
	return s.store.ListVouches(ctx, VouchQuery{CommunityID: communityID, VoucherID: userID})
}

// Snapshot returns all live vouches in the community, newest-first. It is
// the single consistent record set the aggregation functions operate on.
func (s *Service) Snapshot(ctx context.Context, communityID string) ([]Vouch, error) {
	return s.store.ListVouches(ctx, VouchQuery{CommunityID: communityID})
}

// ListForExport returns every vouch received by the target in the
// community, including removed records. Elevated-only: exports are a full
// audit view.
func (s *Service) ListForExport(ctx context.Context, communityID, targetID string, requester Identity) ([]Vouch, error) {
	if err := s.requireElevated(ctx, communityID, requester); err != nil {
		return nil, err
	}
	return s.store.ListVouches(ctx, VouchQuery{CommunityID: communityID, TargetID: targetID, IncludeRemoved: true})
}

// Settings returns the community settings. Elevated-only.
func (s *Service) Settings(ctx context.Context, communityID string, requester Identity) (*CommunitySettings, error) {
	if err := s.requireElevated(ctx, communityID, requester); err != nil {
		return nil, err
	}
	return s.store.Settings(ctx, communityID)
}

// HalfLife returns the community's decay half-life in days, for display
// paths that do not require privilege.
func (s *Service) HalfLife(ctx context.Context, communityID string) (float64, error) {
	cs, err := s.store.Settings(ctx, communityID)
	if err != nil {
		return 0, err
	}
	return cs.DecayHalfLifeDays, nil
}

// SetAdminRole configures the community admin role. Only the
// platform-native administrator capability may do this; elevation via the
// currently configured admin role is deliberately insufficient. An empty
// roleID clears the configuration.
func (s *Service) SetAdminRole(ctx context.Context, communityID, roleID string, requester Identity) error {
	native, err := s.resolver.HasNativeAdmin(ctx, communityID, requester.ID)
	if err != nil {
		return fmt.Errorf("resolve privilege: %w", err)
	}
	if !native {
		return fmt.Errorf("%w: only platform administrators can set the admin role", ErrForbidden)
	}
	return s.store.SetAdminRole(ctx, communityID, roleID)
}

// SetTrustedRole configures the role gating vouch creation. Elevated-only.
// An empty roleID disables the gate.
func (s *Service) SetTrustedRole(ctx context.Context, communityID, roleID string, requester Identity) error {
	if err := s.requireElevated(ctx, communityID, requester); err != nil {
		return err
	}
	return s.store.SetTrustedRole(ctx, communityID, roleID)
}

// SetLogChannel configures the audit notification destination.
// Elevated-only. An empty channelID suppresses audit notifications.
func (s *Service) SetLogChannel(ctx context.Context, communityID, channelID string, requester Identity) error {
	if err := s.requireElevated(ctx, communityID, requester); err != nil {
		return err
	}
	return s.store.SetLogChannel(ctx, communityID, channelID)
}

// SetDecayHalfLife configures the reputation decay half-life. Elevated-only;
// the value must be positive.
func (s *Service) SetDecayHalfLife(ctx context.Context, communityID string, days float64, requester Identity) error {
	if err := s.requireElevated(ctx, communityID, requester); err != nil {
		return err
	}
	if days <= 0 {
		return fmt.Errorf("%w: decay half-life must be positive", ErrValidation)
	}
	return s.store.SetDecayHalfLife(ctx, communityID, days)
}

// AddBlacklist blacklists a user in the community. Elevated-only. Returns
// ErrConflict when the user is already blacklisted.
func (s *Service) AddBlacklist(ctx context.Context, communityID string, user Identity, reason string, requester Identity) (*BlacklistEntry, error) {
	if err := s.requireElevated(ctx, communityID, requester); err != nil {
		return nil, err
	}
	if strings.TrimSpace(reason) == "" {
		reason = "No reason provided"
	}

	e := &BlacklistEntry{
		CommunityID: communityID,
		UserID:      user.ID,
		Reason:      reason,
		AddedBy:     requester.ID,
	}
	if err := s.store.AddBlacklist(ctx, e); err != nil {
		return nil, err
	}

	ev := audit.NewEvent(audit.KindBlacklistAdded, communityID)
	ev.ActorID = requester.ID
	ev.ActorName = requester.DisplayName
	ev.TargetID = user.ID
	ev.TargetName = user.DisplayName
	ev.Reason = reason
	s.notify(ctx, communityID, ev)

	return e, nil
}

// RemoveBlacklist lifts a blacklist entry. Elevated-only.
func (s *Service) RemoveBlacklist(ctx context.Context, communityID, userID string, requester Identity) error {
	if err := s.requireElevated(ctx, communityID, requester); err != nil {
		return err
	}
	removed, err := s.store.RemoveBlacklist(ctx, communityID, userID)
	if err != nil {
		return err
	}
	if !removed {
		return ErrNotFoundOrRemoved
	}

	ev := audit.NewEvent(audit.KindBlacklistRemoved, communityID)
	ev.ActorID = requester.ID
	ev.ActorName = requester.DisplayName
	ev.TargetID = userID
	s.notify(ctx, communityID, ev)

	return nil
}

// ListBlacklist returns the community's blacklist entries. Elevated-only.
func (s *Service) ListBlacklist(ctx context.Context, communityID string, requester Identity) ([]BlacklistEntry, error) {
	if err := s.requireElevated(ctx, communityID, requester); err != nil {
		return nil, err
	}
	return s.store.ListBlacklist(ctx, communityID)
}

// IsBlacklisted reports the user's blacklist status, for display paths.
func (s *Service) IsBlacklisted(ctx context.Context, communityID, userID string) (bool, error) {
	return s.store.IsBlacklisted(ctx, communityID, userID)
}

// requireElevated rejects with ErrForbidden unless the requester holds
// elevated privilege in the community.
func (s *Service) requireElevated(ctx context.Context, communityID string, requester Identity) error {
	elevated, err := s.resolver.IsElevated(ctx, communityID, requester.ID)
	if err != nil {
		return fmt.Errorf("resolve privilege: %w", err)
	}
	if !elevated {
		return fmt.Errorf("%w: this command is available only to the configured admin role or platform administrators", ErrForbidden)
	}
	return nil
}

// notify delivers an audit event without blocking or failing the caller.
// The delivery goroutine uses its own deadline; request cancellation after
// acknowledgment must not abort it.
func (s *Service) notify(ctx context.Context, communityID string, e audit.Event) {
	cs, err := s.store.Settings(ctx, communityID)
	if err != nil {
		s.logger.Warn("audit: settings lookup failed", zap.String("community_id", communityID), zap.Error(err))
		return
	}
	logChannelID := cs.LogChannelID

	go func() {
		nctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
		defer cancel()
		if err := s.notifier.Notify(nctx, logChannelID, e); err != nil {
			s.logger.Warn("audit delivery failed",
				zap.String("kind", e.Kind),
				zap.String("community_id", e.CommunityID),
				zap.Error(err),
			)
		}
	}()
}

// validateReason enforces the reason bounds: required, at most
// MaxReasonLength characters.
func validateReason(reason string) error {
	if strings.TrimSpace(reason) == "" {
		return fmt.Errorf("%w: a reason is required", ErrValidation)
	}
	if utf8.RuneCountInString(reason) > MaxReasonLength {
		return fmt.Errorf("%w: reason must be at most %d characters", ErrValidation, MaxReasonLength)
	}
	return nil
}
