package server_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vouchlab/vouchd/internal/audit"
	"github.com/vouchlab/vouchd/internal/directory"
	"github.com/vouchlab/vouchd/internal/export"
	"github.com/vouchlab/vouchd/internal/ledger"
	"github.com/vouchlab/vouchd/internal/pager"
	"github.com/vouchlab/vouchd/internal/server"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const community = "c1"

// harness bundles everything a handler test needs.
type harness struct {
	router *gin.Engine
	store  *ledger.MemoryStore
	dir    *directory.Static
	svc    *ledger.Service
	tokens *server.TokenIssuer
}

func setup(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := ledger.NewMemoryStore()
	dir := directory.NewStatic()
	svc := ledger.NewService(store, dir, audit.NewNopNotifier(zap.NewNop()), zap.NewNop())
	tokens := server.NewTokenIssuer([]byte("test-key"), time.Hour)
	cursors := pager.NewCursorCodec([]byte("test-key"), time.Hour)
	exporter := export.NewExporter(dir, zap.NewNop())

	srv := server.New(svc, dir, exporter, cursors, tokens, time.Now(), "test", zap.NewNop())
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	srv.SetBootstrapHash(string(hash))

	router := gin.New()
	router.GET("/healthz", srv.Healthz)
	router.GET("/status", srv.Status)
	srv.Register(router.Group("/api/v1"))

	return &harness{router: router, store: store, dir: dir, svc: svc, tokens: tokens}
}

// addUser registers a resolvable profile and returns a bearer token for it.
func (h *harness) addUser(t *testing.T, id string, bot bool) string {
	t.Helper()
	h.dir.AddProfile(directory.Profile{ID: id, DisplayName: "User " + id, Tag: "0001", Bot: bot})
	token, err := h.tokens.Issue(ledger.Identity{ID: id, DisplayName: "User " + id, Tag: "0001", Bot: bot})
	if err != nil {
		t.Fatal(err)
	}
	return token
}

func (h *harness) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

// ── Auth ─────────────────────────────────────────────────────────────────

func TestRequireActor_401WithoutToken(t *testing.T) {
	h := setup(t)
	w := h.do(t, http.MethodGet, "/api/v1/communities/c1/users/u1/stats", "", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestRequireActor_401WithGarbageToken(t *testing.T) {
	h := setup(t)
	w := h.do(t, http.MethodGet, "/api/v1/communities/c1/users/u1/stats", "garbage", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestMintToken(t *testing.T) {
	h := setup(t)

	w := h.do(t, http.MethodPost, "/api/v1/auth/token", "",
		`{"secret":"hunter2","actor_id":"alice","display_name":"Alice","tag":"0001"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	token, _ := decode(t, w)["token"].(string)
	if token == "" {
		t.Fatal("expected a token in the response")
	}

	// The minted token must be accepted by the protected routes.
	h.dir.AddProfile(directory.Profile{ID: "alice", DisplayName: "Alice", Tag: "0001"})
	w = h.do(t, http.MethodGet, "/api/v1/communities/c1/users/alice/stats", token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("minted token rejected: %d: %s", w.Code, w.Body.String())
	}
}

func TestMintToken_wrongSecret(t *testing.T) {
	h := setup(t)
	w := h.do(t, http.MethodPost, "/api/v1/auth/token", "",
		`{"secret":"wrong","actor_id":"alice","display_name":"Alice"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

// ── Vouches ──────────────────────────────────────────────────────────────

func TestCreateVouch_201(t *testing.T) {
	h := setup(t)
	alice := h.addUser(t, "alice", false)
	h.addUser(t, "bob", false)

	w := h.do(t, http.MethodPost, "/api/v1/communities/c1/vouches", alice,
		`{"target_id":"bob","reason":"great trader"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if body["voucher_id"] != "alice" || body["target_id"] != "bob" {
		t.Errorf("parties: %v → %v", body["voucher_id"], body["target_id"])
	}
}

func TestCreateVouch_400OnSelfVouch(t *testing.T) {
	h := setup(t)
	alice := h.addUser(t, "alice", false)

	w := h.do(t, http.MethodPost, "/api/v1/communities/c1/vouches", alice,
		`{"target_id":"alice","reason":"me"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCreateVouch_400OnBotTarget(t *testing.T) {
	h := setup(t)
	alice := h.addUser(t, "alice", false)
	h.addUser(t, "helper", true)

	w := h.do(t, http.MethodPost, "/api/v1/communities/c1/vouches", alice,
		`{"target_id":"helper","reason":"r"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCreateVouch_400OnUnresolvableTarget(t *testing.T) {
	h := setup(t)
	alice := h.addUser(t, "alice", false)

	w := h.do(t, http.MethodPost, "/api/v1/communities/c1/vouches", alice,
		`{"target_id":"ghost","reason":"r"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCreateVouch_403WhenTrustedRoleMissing(t *testing.T) {
	h := setup(t)
	alice := h.addUser(t, "alice", false)
	h.addUser(t, "bob", false)
	if err := h.store.SetTrustedRole(context.Background(), community, "role-t"); err != nil {
		t.Fatal(err)
	}

	w := h.do(t, http.MethodPost, "/api/v1/communities/c1/vouches", alice,
		`{"target_id":"bob","reason":"r"}`)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", w.Code, w.Body.String())
	}
}

func TestDeleteVouch_lifecycle(t *testing.T) {
	h := setup(t)
	alice := h.addUser(t, "alice", false)
	mallory := h.addUser(t, "mallory", false)
	h.addUser(t, "bob", false)

	w := h.do(t, http.MethodPost, "/api/v1/communities/c1/vouches", alice,
		`{"target_id":"bob","reason":"r"}`)
	id := int64(decode(t, w)["id"].(float64))

	// A stranger cannot remove it.
	w = h.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/vouches/%d", id), mallory, "")
	if w.Code != http.StatusForbidden {
		t.Fatalf("stranger delete: expected 403, got %d", w.Code)
	}

	// The voucher can.
	w = h.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/vouches/%d", id), alice, "")
	if w.Code != http.StatusOK {
		t.Fatalf("owner delete: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	// Repeat removal reports not found, same as a missing ID.
	w = h.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/vouches/%d", id), alice, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("repeat delete: expected 404, got %d", w.Code)
	}
	w = h.do(t, http.MethodDelete, "/api/v1/vouches/99999", alice, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing id: expected 404, got %d", w.Code)
	}
}

func TestPurge_adminOnly(t *testing.T) {
	h := setup(t)
	alice := h.addUser(t, "alice", false)
	root := h.addUser(t, "root", false)
	h.addUser(t, "bob", false)
	h.dir.GrantAdministrator(community, "root")

	if _, err := h.svc.Create(context.Background(), community,
		ledger.Identity{ID: "x"}, ledger.Identity{ID: "bob"}, "r"); err != nil {
		t.Fatal(err)
	}

	w := h.do(t, http.MethodPost, "/api/v1/communities/c1/users/bob/purge", alice, "")
	if w.Code != http.StatusForbidden {
		t.Fatalf("plain member purge: expected 403, got %d", w.Code)
	}

	w = h.do(t, http.MethodPost, "/api/v1/communities/c1/users/bob/purge", root, "")
	if w.Code != http.StatusOK {
		t.Fatalf("admin purge: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if n := decode(t, w)["purged"].(float64); n != 1 {
		t.Errorf("purged: got %v, want 1", n)
	}
}

// ── Pagination ───────────────────────────────────────────────────────────

func TestListVouches_paginationAndCursor(t *testing.T) {
	h := setup(t)
	alice := h.addUser(t, "alice", false)

	// 25 records → 3 pages of 10/10/5.
	for i := 0; i < 25; i++ {
		v := &ledger.Vouch{
			VoucherID:   fmt.Sprintf("v%d", i),
			TargetID:    "bob",
			Reason:      "r",
			CommunityID: community,
			CreatedAt:   time.Now().Add(time.Duration(i) * time.Second),
		}
		if err := h.store.InsertVouch(context.Background(), v); err != nil {
			t.Fatal(err)
		}
	}

	w := h.do(t, http.MethodGet, "/api/v1/communities/c1/users/bob/vouches", alice, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if body["total_pages"].(float64) != 3 || body["total"].(float64) != 25 {
		t.Fatalf("shape: %v pages, %v total", body["total_pages"], body["total"])
	}
	if n := len(body["entries"].([]any)); n != 10 {
		t.Errorf("page size: got %d, want 10", n)
	}
	cursor := body["cursor"].(string)
	if cursor == "" {
		t.Fatal("expected a cursor")
	}

	// Navigate forward twice, then overshoot: the index saturates at the
	// last page.
	for want := 1; want <= 3; want++ {
		w = h.do(t, http.MethodGet,
			"/api/v1/communities/c1/users/bob/vouches?cursor="+cursor+"&dir=next", alice, "")
		if w.Code != http.StatusOK {
			t.Fatalf("next: expected 200, got %d: %s", w.Code, w.Body.String())
		}
		body = decode(t, w)
		cursor = body["cursor"].(string)
		wantPage := want
		if wantPage > 2 {
			wantPage = 2
		}
		if got := int(body["page"].(float64)); got != wantPage {
			t.Errorf("page after %d next steps: got %d, want %d", want, got, wantPage)
		}
	}
	if n := len(body["entries"].([]any)); n != 5 {
		t.Errorf("last page size: got %d, want 5", n)
	}

	// Backward past the first page saturates at zero.
	for i := 0; i < 4; i++ {
		w = h.do(t, http.MethodGet,
			"/api/v1/communities/c1/users/bob/vouches?cursor="+cursor+"&dir=prev", alice, "")
		body = decode(t, w)
		cursor = body["cursor"].(string)
	}
	if got := int(body["page"].(float64)); got != 0 {
		t.Errorf("page after rewinding: got %d, want 0", got)
	}
}

func TestListVouches_cursorBoundToRequester(t *testing.T) {
	h := setup(t)
	alice := h.addUser(t, "alice", false)
	eve := h.addUser(t, "eve", false)

	w := h.do(t, http.MethodGet, "/api/v1/communities/c1/users/bob/vouches", alice, "")
	cursor := decode(t, w)["cursor"].(string)

	w = h.do(t, http.MethodGet,
		"/api/v1/communities/c1/users/bob/vouches?cursor="+cursor+"&dir=next", eve, "")
	if w.Code != http.StatusForbidden {
		t.Fatalf("foreign cursor: expected 403, got %d: %s", w.Code, w.Body.String())
	}
}

func TestListVouches_badCursor(t *testing.T) {
	h := setup(t)
	alice := h.addUser(t, "alice", false)

	w := h.do(t, http.MethodGet,
		"/api/v1/communities/c1/users/bob/vouches?cursor=junk", alice, "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad cursor: expected 400, got %d", w.Code)
	}
}

func TestListVouches_emptyView(t *testing.T) {
	h := setup(t)
	alice := h.addUser(t, "alice", false)

	w := h.do(t, http.MethodGet, "/api/v1/communities/c1/users/nobody/vouches?page=7", alice, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := decode(t, w)
	if body["page"].(float64) != 0 || body["total"].(float64) != 0 {
		t.Errorf("empty view: page %v, total %v", body["page"], body["total"])
	}
}

// ── Stats and leaderboard ────────────────────────────────────────────────

func TestStats_countsScoreAndBadge(t *testing.T) {
	h := setup(t)
	alice := h.addUser(t, "alice", false)

	for i := 0; i < 10; i++ {
		v := &ledger.Vouch{
			VoucherID: fmt.Sprintf("v%d", i), TargetID: "bob",
			Reason: "r", CommunityID: community, CreatedAt: time.Now(),
		}
		if err := h.store.InsertVouch(context.Background(), v); err != nil {
			t.Fatal(err)
		}
	}

	w := h.do(t, http.MethodGet, "/api/v1/communities/c1/users/bob/stats", alice, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if body["received"].(float64) != 10 {
		t.Errorf("received: got %v, want 10", body["received"])
	}
	if body["badge"] != "Bronze" {
		t.Errorf("badge: got %v, want Bronze", body["badge"])
	}
	// Fresh records decay negligibly.
	if score := body["score"].(float64); score < 9.99 || score > 10 {
		t.Errorf("score: got %v, want ≈10", score)
	}
}

func TestLeaderboard(t *testing.T) {
	h := setup(t)
	alice := h.addUser(t, "alice", false)

	targets := []string{"a", "b", "a", "c", "b", "a"}
	for i, target := range targets {
		v := &ledger.Vouch{
			VoucherID: fmt.Sprintf("v%d", i), TargetID: target,
			Reason: "r", CommunityID: community, CreatedAt: time.Now(),
		}
		if err := h.store.InsertVouch(context.Background(), v); err != nil {
			t.Fatal(err)
		}
	}

	w := h.do(t, http.MethodGet, "/api/v1/communities/c1/leaderboard", alice, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	entries := decode(t, w)["entries"].([]any)
	first := entries[0].(map[string]any)
	if first["user_id"] != "a" || first["count"].(float64) != 3 {
		t.Errorf("rank 1: %v", first)
	}

	w = h.do(t, http.MethodGet, "/api/v1/communities/c1/leaderboard?by=bogus", alice, "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bogus side: expected 400, got %d", w.Code)
	}
}

// ── Settings ─────────────────────────────────────────────────────────────

func TestSettings_adminGate(t *testing.T) {
	h := setup(t)
	alice := h.addUser(t, "alice", false)
	root := h.addUser(t, "root", false)
	h.dir.GrantAdministrator(community, "root")

	w := h.do(t, http.MethodGet, "/api/v1/communities/c1/settings", alice, "")
	if w.Code != http.StatusForbidden {
		t.Fatalf("plain member settings read: expected 403, got %d", w.Code)
	}

	w = h.do(t, http.MethodGet, "/api/v1/communities/c1/settings", root, "")
	if w.Code != http.StatusOK {
		t.Fatalf("admin settings read: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if hl := decode(t, w)["decay_half_life_days"].(float64); hl != 180 {
		t.Errorf("default half-life: got %v, want 180", hl)
	}
}

func TestSetAdminRole_nativeOnly(t *testing.T) {
	h := setup(t)
	mod := h.addUser(t, "mod", false)
	root := h.addUser(t, "root", false)
	h.dir.GrantAdministrator(community, "root")

	// Elevate mod via the configured admin role; still not enough.
	if err := h.store.SetAdminRole(context.Background(), community, "role-a"); err != nil {
		t.Fatal(err)
	}
	h.dir.GrantRole(community, "mod", "role-a")

	w := h.do(t, http.MethodPut, "/api/v1/communities/c1/settings/admin-role", mod, `{"role_id":"role-b"}`)
	if w.Code != http.StatusForbidden {
		t.Fatalf("role-elevated actor: expected 403, got %d", w.Code)
	}

	w = h.do(t, http.MethodPut, "/api/v1/communities/c1/settings/admin-role", root, `{"role_id":"role-b"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("native admin: expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestSetDecay_validation(t *testing.T) {
	h := setup(t)
	root := h.addUser(t, "root", false)
	h.dir.GrantAdministrator(community, "root")

	w := h.do(t, http.MethodPut, "/api/v1/communities/c1/settings/decay", root, `{"half_life_days":-1}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("negative half-life: expected 400, got %d", w.Code)
	}

	w = h.do(t, http.MethodPut, "/api/v1/communities/c1/settings/decay", root, `{"half_life_days":90}`)
	if w.Code != http.StatusOK {
		t.Fatalf("valid half-life: expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

// ── Blacklist ────────────────────────────────────────────────────────────

func TestBlacklist_addConflictAndRemove(t *testing.T) {
	h := setup(t)
	root := h.addUser(t, "root", false)
	h.addUser(t, "bob", false)
	h.dir.GrantAdministrator(community, "root")

	w := h.do(t, http.MethodPost, "/api/v1/communities/c1/blacklist", root, `{"user_id":"bob"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if reason := decode(t, w)["reason"]; reason != "No reason provided" {
		t.Errorf("default reason: got %v", reason)
	}

	w = h.do(t, http.MethodPost, "/api/v1/communities/c1/blacklist", root, `{"user_id":"bob","reason":"again"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate: expected 409, got %d", w.Code)
	}

	w = h.do(t, http.MethodDelete, "/api/v1/communities/c1/blacklist/bob", root, "")
	if w.Code != http.StatusOK {
		t.Fatalf("remove: expected 200, got %d", w.Code)
	}
	w = h.do(t, http.MethodDelete, "/api/v1/communities/c1/blacklist/bob", root, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("remove absent: expected 404, got %d", w.Code)
	}
}

// ── Export ───────────────────────────────────────────────────────────────

func TestExport_deliversViaDirectory(t *testing.T) {
	h := setup(t)
	root := h.addUser(t, "root", false)
	h.addUser(t, "bob", false)
	h.dir.GrantAdministrator(community, "root")

	if _, err := h.svc.Create(context.Background(), community,
		ledger.Identity{ID: "x"}, ledger.Identity{ID: "bob"}, "r"); err != nil {
		t.Fatal(err)
	}

	w := h.do(t, http.MethodPost, "/api/v1/communities/c1/users/bob/export", root, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if n := decode(t, w)["records"].(float64); n != 1 {
		t.Errorf("records: got %v, want 1", n)
	}
	if len(h.dir.Deliveries()) != 1 {
		t.Errorf("expected 1 delivery, got %d", len(h.dir.Deliveries()))
	}
}

func TestExport_adminOnly(t *testing.T) {
	h := setup(t)
	alice := h.addUser(t, "alice", false)

	w := h.do(t, http.MethodPost, "/api/v1/communities/c1/users/bob/export", alice, "")
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

// ── Status ───────────────────────────────────────────────────────────────

func TestHealthzAndStatus(t *testing.T) {
	h := setup(t)

	w := h.do(t, http.MethodGet, "/healthz", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("healthz: expected 200, got %d", w.Code)
	}

	w = h.do(t, http.MethodGet, "/status", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: expected 200, got %d", w.Code)
	}
	body := decode(t, w)
	if body["version"] != "test" {
		t.Errorf("version: got %v", body["version"])
	}
	if _, ok := body["uptime_seconds"]; !ok {
		t.Error("missing uptime_seconds")
	}
}
