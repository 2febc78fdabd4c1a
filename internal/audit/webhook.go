package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// WebhookNotifier posts events as JSON to the platform's channel message
// endpoint: POST {baseURL}/channels/{logChannelID}/messages.
type WebhookNotifier struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewWebhookNotifier creates a WebhookNotifier against the given base URL.
func NewWebhookNotifier(baseURL string, logger *zap.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// Notify implements Notifier. An empty logChannelID silently suppresses the
// notification; that is the unconfigured state, not an error.
func (n *WebhookNotifier) Notify(ctx context.Context, logChannelID string, e Event) error {
	if logChannelID == "" {
		return nil
	}

	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	url := fmt.Sprintf("%s/channels/%s/messages", n.baseURL, logChannelID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build audit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post audit event: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 300 {
		return fmt.Errorf("audit sink returned %d", resp.StatusCode)
	}
	return nil
}

// NopNotifier logs events to zap instead of delivering them.
// Use in development or when no log-channel endpoint is configured.
type NopNotifier struct {
	logger *zap.Logger
}

// NewNopNotifier creates a NopNotifier backed by the given logger.
func NewNopNotifier(logger *zap.Logger) *NopNotifier {
	return &NopNotifier{logger: logger}
}

// Notify logs the event and returns nil.
func (n *NopNotifier) Notify(_ context.Context, logChannelID string, e Event) error {
	n.logger.Info("audit event (nop — not delivered)",
		zap.String("kind", e.Kind),
		zap.String("community_id", e.CommunityID),
		zap.String("log_channel_id", logChannelID),
	)
	return nil
}
