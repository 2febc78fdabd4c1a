package ledger_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/vouchlab/vouchd/internal/audit"
	"github.com/vouchlab/vouchd/internal/directory"
	"github.com/vouchlab/vouchd/internal/ledger"
	"go.uber.org/zap"
)

var ctx = context.Background()

const community = "c1"

func ident(id string) ledger.Identity {
	return ledger.Identity{ID: id, DisplayName: "User " + id, Tag: "0001"}
}

// newService wires a Service over the in-memory store and a static
// directory. The returned directory can be mutated to grant roles.
func newService(t *testing.T) (*ledger.Service, *ledger.MemoryStore, *directory.Static) {
	t.Helper()
	store := ledger.NewMemoryStore()
	dir := directory.NewStatic()
	svc := ledger.NewService(store, dir, audit.NewNopNotifier(zap.NewNop()), zap.NewNop())
	return svc, store, dir
}

func TestCreate_recordsVouch(t *testing.T) {
	svc, _, _ := newService(t)

	v, err := svc.Create(ctx, community, ident("alice"), ident("bob"), "great trader")
	if err != nil {
		t.Fatal(err)
	}
	if v.ID == 0 {
		t.Error("expected an assigned ID")
	}
	if v.VoucherID != "alice" || v.TargetID != "bob" {
		t.Errorf("parties: got %s→%s", v.VoucherID, v.TargetID)
	}
	if v.CreatedAt.IsZero() {
		t.Error("expected a creation timestamp")
	}
	if v.Removed {
		t.Error("new record must be live")
	}
}

func TestCreate_rejectsSelfVouch(t *testing.T) {
	svc, _, _ := newService(t)

	_, err := svc.Create(ctx, community, ident("alice"), ident("alice"), "me")
	if !errors.Is(err, ledger.ErrValidation) {
		t.Errorf("self-vouch: got %v, want ErrValidation", err)
	}
}

func TestCreate_selfVouchWinsOverBotCheck(t *testing.T) {
	svc, _, _ := newService(t)

	bot := ident("alice")
	bot.Bot = true
	_, err := svc.Create(ctx, community, ident("alice"), bot, "r")
	if err == nil || !strings.Contains(err.Error(), "yourself") {
		t.Errorf("expected the self-vouch rejection to win: %v", err)
	}
}

func TestCreate_rejectsBotTarget(t *testing.T) {
	svc, _, _ := newService(t)

	bot := ident("botuser")
	bot.Bot = true
	_, err := svc.Create(ctx, community, ident("alice"), bot, "r")
	if !errors.Is(err, ledger.ErrValidation) {
		t.Errorf("bot target: got %v, want ErrValidation", err)
	}
}

func TestCreate_trustedRoleGatesVouchers(t *testing.T) {
	svc, store, dir := newService(t)
	if err := store.SetTrustedRole(ctx, community, "role-trusted"); err != nil {
		t.Fatal(err)
	}

	// alice has no role: forbidden.
	_, err := svc.Create(ctx, community, ident("alice"), ident("bob"), "r")
	if !errors.Is(err, ledger.ErrForbidden) {
		t.Errorf("untrusted voucher: got %v, want ErrForbidden", err)
	}

	// With the role granted she may vouch.
	dir.GrantRole(community, "alice", "role-trusted")
	if _, err := svc.Create(ctx, community, ident("alice"), ident("bob"), "r"); err != nil {
		t.Fatalf("trusted voucher: %v", err)
	}

	// A native administrator bypasses the gate entirely.
	dir.GrantAdministrator(community, "root")
	if _, err := svc.Create(ctx, community, ident("root"), ident("bob"), "r"); err != nil {
		t.Fatalf("administrator voucher: %v", err)
	}
}

func TestCreate_rejectsBlacklistedVoucher(t *testing.T) {
	svc, store, _ := newService(t)
	if err := store.AddBlacklist(ctx, &ledger.BlacklistEntry{CommunityID: community, UserID: "alice"}); err != nil {
		t.Fatal(err)
	}

	_, err := svc.Create(ctx, community, ident("alice"), ident("bob"), "r")
	if !errors.Is(err, ledger.ErrValidation) {
		t.Errorf("blacklisted voucher: got %v, want ErrValidation", err)
	}
	if err == nil || !strings.Contains(err.Error(), "you are blacklisted") {
		t.Errorf("expected the voucher-side message, got %v", err)
	}
}

func TestCreate_rejectsBlacklistedTarget(t *testing.T) {
	svc, store, _ := newService(t)
	if err := store.AddBlacklist(ctx, &ledger.BlacklistEntry{CommunityID: community, UserID: "bob"}); err != nil {
		t.Fatal(err)
	}

	_, err := svc.Create(ctx, community, ident("alice"), ident("bob"), "r")
	if !errors.Is(err, ledger.ErrValidation) {
		t.Errorf("blacklisted target: got %v, want ErrValidation", err)
	}
	if err == nil || !strings.Contains(err.Error(), "target user is blacklisted") {
		t.Errorf("expected the target-side message, got %v", err)
	}
}

func TestCreate_reasonBounds(t *testing.T) {
	svc, _, _ := newService(t)

	if _, err := svc.Create(ctx, community, ident("alice"), ident("bob"), "   "); !errors.Is(err, ledger.ErrValidation) {
		t.Errorf("blank reason: got %v, want ErrValidation", err)
	}

	long := strings.Repeat("x", ledger.MaxReasonLength+1)
	if _, err := svc.Create(ctx, community, ident("alice"), ident("bob"), long); !errors.Is(err, ledger.ErrValidation) {
		t.Errorf("oversized reason: got %v, want ErrValidation", err)
	}

	exact := strings.Repeat("x", ledger.MaxReasonLength)
	if _, err := svc.Create(ctx, community, ident("alice"), ident("bob"), exact); err != nil {
		t.Errorf("reason at the limit: %v", err)
	}
}

func TestSoftDelete_byVoucher(t *testing.T) {
	svc, _, _ := newService(t)
	v, err := svc.Create(ctx, community, ident("alice"), ident("bob"), "r")
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.SoftDelete(ctx, v.ID, ident("alice")); err != nil {
		t.Fatal(err)
	}

	// The record is kept but no longer visible in live views.
	received, err := svc.Received(ctx, community, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if len(received) != 0 {
		t.Errorf("removed record still listed: %d entries", len(received))
	}
}

func TestSoftDelete_strangerForbidden(t *testing.T) {
	svc, _, _ := newService(t)
	v, _ := svc.Create(ctx, community, ident("alice"), ident("bob"), "r")

	err := svc.SoftDelete(ctx, v.ID, ident("mallory"))
	if !errors.Is(err, ledger.ErrForbidden) {
		t.Errorf("stranger delete: got %v, want ErrForbidden", err)
	}
}

func TestSoftDelete_elevatedMayRemoveAny(t *testing.T) {
	svc, _, dir := newService(t)
	v, _ := svc.Create(ctx, community, ident("alice"), ident("bob"), "r")

	dir.GrantAdministrator(community, "root")
	if err := svc.SoftDelete(ctx, v.ID, ident("root")); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
}

func TestSoftDelete_missingAndRepeatedLookAlike(t *testing.T) {
	svc, _, _ := newService(t)
	v, _ := svc.Create(ctx, community, ident("alice"), ident("bob"), "r")

	if err := svc.SoftDelete(ctx, v.ID, ident("alice")); err != nil {
		t.Fatal(err)
	}
	second := svc.SoftDelete(ctx, v.ID, ident("alice"))
	missing := svc.SoftDelete(ctx, 99999, ident("alice"))

	if !errors.Is(second, ledger.ErrNotFoundOrRemoved) {
		t.Errorf("repeat delete: got %v, want ErrNotFoundOrRemoved", second)
	}
	if !errors.Is(missing, ledger.ErrNotFoundOrRemoved) {
		t.Errorf("missing record: got %v, want ErrNotFoundOrRemoved", missing)
	}
	if second.Error() != missing.Error() {
		t.Errorf("repeat and missing must be indistinguishable: %q vs %q", second, missing)
	}
}

func TestPurge_removesOnlyTargetsLiveRecords(t *testing.T) {
	svc, _, dir := newService(t)
	dir.GrantAdministrator(community, "root")

	if _, err := svc.Create(ctx, community, ident("a"), ident("bob"), "r"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Create(ctx, community, ident("b"), ident("bob"), "r"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Create(ctx, community, ident("a"), ident("carol"), "r"); err != nil {
		t.Fatal(err)
	}

	n, err := svc.Purge(ctx, community, ident("bob"), ident("root"))
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("purged count: got %d, want 2", n)
	}

	carol, _ := svc.Received(ctx, community, "carol")
	if len(carol) != 1 {
		t.Errorf("carol's records must be untouched, got %d", len(carol))
	}

	// Repeat purge affects nothing.
	n, err = svc.Purge(ctx, community, ident("bob"), ident("root"))
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("second purge: got %d, want 0", n)
	}
}

func TestPurge_requiresElevation(t *testing.T) {
	svc, _, _ := newService(t)
	_, err := svc.Purge(ctx, community, ident("bob"), ident("alice"))
	if !errors.Is(err, ledger.ErrForbidden) {
		t.Errorf("plain member purge: got %v, want ErrForbidden", err)
	}
}

func TestReceivedAndGiven_scoping(t *testing.T) {
	svc, _, _ := newService(t)
	if _, err := svc.Create(ctx, "c1", ident("alice"), ident("bob"), "r"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Create(ctx, "c2", ident("alice"), ident("bob"), "r"); err != nil {
		t.Fatal(err)
	}

	scoped, _ := svc.Received(ctx, "c1", "bob")
	if len(scoped) != 1 {
		t.Errorf("community-scoped: got %d, want 1", len(scoped))
	}

	global, _ := svc.Received(ctx, "", "bob")
	if len(global) != 2 {
		t.Errorf("cross-community: got %d, want 2", len(global))
	}

	given, _ := svc.Given(ctx, "", "alice")
	if len(given) != 2 {
		t.Errorf("given cross-community: got %d, want 2", len(given))
	}
}

func TestListForExport_includesRemoved(t *testing.T) {
	svc, _, dir := newService(t)
	dir.GrantAdministrator(community, "root")

	v, _ := svc.Create(ctx, community, ident("alice"), ident("bob"), "r")
	if _, err := svc.Create(ctx, community, ident("carol"), ident("bob"), "r"); err != nil {
		t.Fatal(err)
	}
	if err := svc.SoftDelete(ctx, v.ID, ident("alice")); err != nil {
		t.Fatal(err)
	}

	records, err := svc.ListForExport(ctx, community, "bob", ident("root"))
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("export must include removed records: got %d, want 2", len(records))
	}

	// Non-admin cannot export.
	if _, err := svc.ListForExport(ctx, community, "bob", ident("alice")); !errors.Is(err, ledger.ErrForbidden) {
		t.Errorf("non-admin export: got %v, want ErrForbidden", err)
	}
}

func TestSettings_lazyDefaults(t *testing.T) {
	svc, _, dir := newService(t)
	dir.GrantAdministrator(community, "root")

	cs, err := svc.Settings(ctx, community, ident("root"))
	if err != nil {
		t.Fatal(err)
	}
	if cs.DecayHalfLifeDays != ledger.DefaultHalfLifeDays {
		t.Errorf("default half-life: got %v, want %v", cs.DecayHalfLifeDays, ledger.DefaultHalfLifeDays)
	}
	if cs.AdminRoleID != "" || cs.TrustedRoleID != "" || cs.LogChannelID != "" {
		t.Errorf("expected unconfigured roles, got %+v", cs)
	}
}

func TestSetAdminRole_requiresNativeAdmin(t *testing.T) {
	svc, store, dir := newService(t)

	// Even a member of the configured admin role cannot change it.
	if err := store.SetAdminRole(ctx, community, "role-admin"); err != nil {
		t.Fatal(err)
	}
	dir.GrantRole(community, "mod", "role-admin")
	err := svc.SetAdminRole(ctx, community, "role-other", ident("mod"))
	if !errors.Is(err, ledger.ErrForbidden) {
		t.Errorf("role-elevated actor changing admin role: got %v, want ErrForbidden", err)
	}

	dir.GrantAdministrator(community, "root")
	if err := svc.SetAdminRole(ctx, community, "role-other", ident("root")); err != nil {
		t.Fatalf("native admin: %v", err)
	}

	// Empty role ID clears the configuration.
	if err := svc.SetAdminRole(ctx, community, "", ident("root")); err != nil {
		t.Fatal(err)
	}
	cs, _ := store.Settings(ctx, community)
	if cs.AdminRoleID != "" {
		t.Errorf("admin role not cleared: %q", cs.AdminRoleID)
	}
}

func TestSetDecayHalfLife_mustBePositive(t *testing.T) {
	svc, _, dir := newService(t)
	dir.GrantAdministrator(community, "root")

	if err := svc.SetDecayHalfLife(ctx, community, 0, ident("root")); !errors.Is(err, ledger.ErrValidation) {
		t.Errorf("zero half-life: got %v, want ErrValidation", err)
	}
	if err := svc.SetDecayHalfLife(ctx, community, -3, ident("root")); !errors.Is(err, ledger.ErrValidation) {
		t.Errorf("negative half-life: got %v, want ErrValidation", err)
	}
	if err := svc.SetDecayHalfLife(ctx, community, 90, ident("root")); err != nil {
		t.Fatal(err)
	}

	half, err := svc.HalfLife(ctx, community)
	if err != nil {
		t.Fatal(err)
	}
	if half != 90 {
		t.Errorf("half-life: got %v, want 90", half)
	}
}

func TestAddBlacklist_defaultsReasonAndConflicts(t *testing.T) {
	svc, _, dir := newService(t)
	dir.GrantAdministrator(community, "root")

	e, err := svc.AddBlacklist(ctx, community, ident("bob"), "  ", ident("root"))
	if err != nil {
		t.Fatal(err)
	}
	if e.Reason != "No reason provided" {
		t.Errorf("default reason: got %q", e.Reason)
	}
	if e.AddedBy != "root" {
		t.Errorf("added_by: got %q, want root", e.AddedBy)
	}

	_, err = svc.AddBlacklist(ctx, community, ident("bob"), "again", ident("root"))
	if !errors.Is(err, ledger.ErrConflict) {
		t.Errorf("duplicate blacklist: got %v, want ErrConflict", err)
	}
}

func TestRemoveBlacklist(t *testing.T) {
	svc, _, dir := newService(t)
	dir.GrantAdministrator(community, "root")

	if _, err := svc.AddBlacklist(ctx, community, ident("bob"), "r", ident("root")); err != nil {
		t.Fatal(err)
	}
	if err := svc.RemoveBlacklist(ctx, community, "bob", ident("root")); err != nil {
		t.Fatal(err)
	}
	if err := svc.RemoveBlacklist(ctx, community, "bob", ident("root")); !errors.Is(err, ledger.ErrNotFoundOrRemoved) {
		t.Errorf("removing absent entry: got %v, want ErrNotFoundOrRemoved", err)
	}

	// Lifting the entry restores vouching.
	if _, err := svc.Create(ctx, community, ident("alice"), ident("bob"), "r"); err != nil {
		t.Fatalf("vouch after unblacklist: %v", err)
	}
}

func TestBlacklist_isPerCommunity(t *testing.T) {
	svc, _, dir := newService(t)
	dir.GrantAdministrator("c1", "root")

	if _, err := svc.AddBlacklist(ctx, "c1", ident("bob"), "r", ident("root")); err != nil {
		t.Fatal(err)
	}

	// bob can still receive vouches in another community.
	if _, err := svc.Create(ctx, "c2", ident("alice"), ident("bob"), "r"); err != nil {
		t.Fatalf("other-community vouch: %v", err)
	}
}
