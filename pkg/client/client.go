package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Vouch is one ledger record as returned by the API.
type Vouch struct {
	ID                 int64     `json:"id"`
	VoucherID          string    `json:"voucher_id"`
	VoucherDisplayName string    `json:"voucher_display_name"`
	VoucherTag         string    `json:"voucher_tag"`
	TargetID           string    `json:"target_id"`
	TargetDisplayName  string    `json:"target_display_name"`
	TargetTag          string    `json:"target_tag"`
	Reason             string    `json:"reason"`
	CommunityID        string    `json:"community_id"`
	CreatedAt          time.Time `json:"created_at"`
	Removed            bool      `json:"removed"`
}

// VouchPage is one page of vouch records plus the cursor for navigation.
type VouchPage struct {
	Entries    []Vouch `json:"entries"`
	Page       int     `json:"page"`
	TotalPages int     `json:"total_pages"`
	Total      int     `json:"total"`
	Cursor     string  `json:"cursor"`
}

// Stats is a user's standing in one community.
type Stats struct {
	UserID   string  `json:"user_id"`
	Received int     `json:"received"`
	Given    int     `json:"given"`
	Score    float64 `json:"score"`
	Badge    string  `json:"badge"`
}

// Profile extends Stats with display identity and recent records.
type Profile struct {
	UserID      string  `json:"user_id"`
	DisplayName string  `json:"display_name"`
	Tag         string  `json:"tag"`
	AvatarURL   string  `json:"avatar_url"`
	Received    int     `json:"received"`
	Given       int     `json:"given"`
	Score       float64 `json:"score"`
	Badge       string  `json:"badge"`
	Blacklisted bool    `json:"blacklisted"`
	Recent      []Vouch `json:"recent"`
}

// LeaderboardEntry is one ranked row.
type LeaderboardEntry struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Tag         string `json:"tag"`
	Count       int    `json:"count"`
}

// Settings is a community's configuration.
type Settings struct {
	CommunityID       string  `json:"community_id"`
	AdminRoleID       string  `json:"admin_role_id"`
	TrustedRoleID     string  `json:"trusted_role_id"`
	LogChannelID      string  `json:"log_channel_id"`
	DecayHalfLifeDays float64 `json:"decay_half_life_days"`
}

// BlacklistEntry is one blacklist record.
type BlacklistEntry struct {
	ID          string    `json:"id"`
	CommunityID string    `json:"community_id"`
	UserID      string    `json:"user_id"`
	Reason      string    `json:"reason"`
	AddedBy     string    `json:"added_by"`
	AddedAt     time.Time `json:"added_at"`
}

// Client is the vouchd SDK entry point.
type Client struct {
	base        string
	httpClient  *http.Client
	bearerToken string
}

// Option is a functional option for configuring a Client.
type Option func(*Client) error

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		c.httpClient = hc
		return nil
	}
}

// WithBearerToken attaches an actor token to every request.
func WithBearerToken(token string) Option {
	return func(c *Client) error {
		c.bearerToken = token
		return nil
	}
}

// WithInsecureSkipVerify disables TLS certificate verification.
// Only use this in development.
func WithInsecureSkipVerify() Option {
	return func(c *Client) error {
		c.httpClient = &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec
			},
			Timeout: 10 * time.Second,
		}
		return nil
	}
}

// New creates a Client connected to base.
func New(base string, opts ...Option) (*Client, error) {
	c := &Client{
		base:       base,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MustNew is like New but panics on error. Useful in tests and program init.
func MustNew(base string, opts ...Option) *Client {
	c, err := New(base, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// MintToken exchanges the operator bootstrap secret for an actor token and
// attaches it to the client for subsequent calls.
func (c *Client) MintToken(ctx context.Context, secret, actorID, displayName, tag string, bot bool) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	err := c.call(ctx, http.MethodPost, "/api/v1/auth/token", map[string]any{
		"secret":       secret,
		"actor_id":     actorID,
		"display_name": displayName,
		"tag":          tag,
		"bot":          bot,
	}, &resp)
	if err != nil {
		return "", err
	}
	c.bearerToken = resp.Token
	return resp.Token, nil
}

// CreateVouch records a vouch from the authenticated actor for the target.
func (c *Client) CreateVouch(ctx context.Context, communityID, targetID, reason string) (*Vouch, error) {
	var v Vouch
	path := "/api/v1/communities/" + url.PathEscape(communityID) + "/vouches"
	err := c.call(ctx, http.MethodPost, path, map[string]string{
		"target_id": targetID,
		"reason":    reason,
	}, &v)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ListVouches fetches one page of the vouches a user has received.
func (c *Client) ListVouches(ctx context.Context, communityID, userID string, page int) (*VouchPage, error) {
	var p VouchPage
	path := fmt.Sprintf("/api/v1/communities/%s/users/%s/vouches?page=%d",
		url.PathEscape(communityID), url.PathEscape(userID), page)
	if err := c.call(ctx, http.MethodGet, path, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Navigate follows a cursor returned by a previous list call. dir is "next"
// or "prev".
func (c *Client) Navigate(ctx context.Context, communityID, userID, cursor, dir string) (*VouchPage, error) {
	var p VouchPage
	path := fmt.Sprintf("/api/v1/communities/%s/users/%s/vouches?cursor=%s&dir=%s",
		url.PathEscape(communityID), url.PathEscape(userID), url.QueryEscape(cursor), url.QueryEscape(dir))
	if err := c.call(ctx, http.MethodGet, path, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// DeleteVouch soft-deletes a record by ID.
func (c *Client) DeleteVouch(ctx context.Context, id int64) error {
	return c.call(ctx, http.MethodDelete, fmt.Sprintf("/api/v1/vouches/%d", id), nil, nil)
}

// PurgeVouches soft-deletes everything the target has received in the
// community and returns how many records were removed.
func (c *Client) PurgeVouches(ctx context.Context, communityID, targetID string) (int64, error) {
	var resp struct {
		Purged int64 `json:"purged"`
	}
	path := "/api/v1/communities/" + url.PathEscape(communityID) + "/users/" + url.PathEscape(targetID) + "/purge"
	if err := c.call(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return 0, err
	}
	return resp.Purged, nil
}

// Stats fetches a user's community standing.
func (c *Client) Stats(ctx context.Context, communityID, userID string) (*Stats, error) {
	var s Stats
	path := "/api/v1/communities/" + url.PathEscape(communityID) + "/users/" + url.PathEscape(userID) + "/stats"
	if err := c.call(ctx, http.MethodGet, path, nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Profile fetches a user's full profile view.
func (c *Client) Profile(ctx context.Context, communityID, userID string) (*Profile, error) {
	var p Profile
	path := "/api/v1/communities/" + url.PathEscape(communityID) + "/users/" + url.PathEscape(userID) + "/profile"
	if err := c.call(ctx, http.MethodGet, path, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Leaderboard fetches the community ranking. by is "received" or "given".
func (c *Client) Leaderboard(ctx context.Context, communityID, by string) ([]LeaderboardEntry, error) {
	var resp struct {
		Entries []LeaderboardEntry `json:"entries"`
	}
	path := "/api/v1/communities/" + url.PathEscape(communityID) + "/leaderboard?by=" + url.QueryEscape(by)
	if err := c.call(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

// GetSettings fetches the community configuration.
func (c *Client) GetSettings(ctx context.Context, communityID string) (*Settings, error) {
	var s Settings
	path := "/api/v1/communities/" + url.PathEscape(communityID) + "/settings"
	if err := c.call(ctx, http.MethodGet, path, nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// SetAdminRole sets the community admin role. Empty clears it.
func (c *Client) SetAdminRole(ctx context.Context, communityID, roleID string) error {
	path := "/api/v1/communities/" + url.PathEscape(communityID) + "/settings/admin-role"
	return c.call(ctx, http.MethodPut, path, map[string]string{"role_id": roleID}, nil)
}

// SetTrustedRole sets the role gating vouch creation. Empty disables the gate.
func (c *Client) SetTrustedRole(ctx context.Context, communityID, roleID string) error {
	path := "/api/v1/communities/" + url.PathEscape(communityID) + "/settings/trusted-role"
	return c.call(ctx, http.MethodPut, path, map[string]string{"role_id": roleID}, nil)
}

// SetLogChannel sets the audit notification destination. Empty suppresses
// notifications.
func (c *Client) SetLogChannel(ctx context.Context, communityID, channelID string) error {
	path := "/api/v1/communities/" + url.PathEscape(communityID) + "/settings/log-channel"
	return c.call(ctx, http.MethodPut, path, map[string]string{"channel_id": channelID}, nil)
}

// SetDecay sets the reputation decay half-life in days.
func (c *Client) SetDecay(ctx context.Context, communityID string, halfLifeDays float64) error {
	path := "/api/v1/communities/" + url.PathEscape(communityID) + "/settings/decay"
	return c.call(ctx, http.MethodPut, path, map[string]float64{"half_life_days": halfLifeDays}, nil)
}

// AddBlacklist bars a user from the vouch system in the community.
func (c *Client) AddBlacklist(ctx context.Context, communityID, userID, reason string) (*BlacklistEntry, error) {
	var e BlacklistEntry
	path := "/api/v1/communities/" + url.PathEscape(communityID) + "/blacklist"
	err := c.call(ctx, http.MethodPost, path, map[string]string{
		"user_id": userID,
		"reason":  reason,
	}, &e)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// RemoveBlacklist lifts a blacklist entry.
func (c *Client) RemoveBlacklist(ctx context.Context, communityID, userID string) error {
	path := "/api/v1/communities/" + url.PathEscape(communityID) + "/blacklist/" + url.PathEscape(userID)
	return c.call(ctx, http.MethodDelete, path, nil, nil)
}

// ListBlacklist fetches the community's blacklist.
func (c *Client) ListBlacklist(ctx context.Context, communityID string) ([]BlacklistEntry, error) {
	var resp struct {
		Entries []BlacklistEntry `json:"entries"`
	}
	path := "/api/v1/communities/" + url.PathEscape(communityID) + "/blacklist"
	if err := c.call(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

// Export asks the server to render and deliver the target's full vouch
// history as CSV. Returns the number of records exported.
func (c *Client) Export(ctx context.Context, communityID, targetID string) (int, error) {
	var resp struct {
		Records int `json:"records"`
	}
	path := "/api/v1/communities/" + url.PathEscape(communityID) + "/users/" + url.PathEscape(targetID) + "/export"
	if err := c.call(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return 0, err
	}
	return resp.Records, nil
}

// call executes one JSON request against the API. reqBody and respBody may
// be nil.
func (c *Client) call(ctx context.Context, method, path string, reqBody, respBody any) error {
	var bodyReader io.Reader
	if reqBody != nil {
		b, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, bodyReader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("server error %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("server error %d: %s", resp.StatusCode, string(body))
	}

	if respBody != nil && len(body) > 0 {
		if err := json.Unmarshal(body, respBody); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
