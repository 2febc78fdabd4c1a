package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/vouchlab/vouchd/internal/access"
	"go.uber.org/zap"
)

// HTTPDirectory talks to the platform directory over its REST API.
type HTTPDirectory struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPDirectory creates an HTTPDirectory against the given base URL.
func NewHTTPDirectory(baseURL string, logger *zap.Logger) *HTTPDirectory {
	return &HTTPDirectory{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// Lookup implements Directory.
func (d *HTTPDirectory) Lookup(ctx context.Context, userID string) (Profile, error) {
	var p Profile
	url := fmt.Sprintf("%s/users/%s", d.baseURL, userID)
	if err := d.getJSON(ctx, url, &p); err != nil {
		return Profile{}, fmt.Errorf("lookup %s: %w", userID, err)
	}
	return p, nil
}

// membership is the wire shape of a capability query response.
type membership struct {
	Administrator bool     `json:"administrator"`
	Roles         []string `json:"roles"`
}

// Capabilities implements Directory.
func (d *HTTPDirectory) Capabilities(ctx context.Context, communityID, actorID string) (access.Capabilities, error) {
	var m membership
	url := fmt.Sprintf("%s/communities/%s/members/%s", d.baseURL, communityID, actorID)
	if err := d.getJSON(ctx, url, &m); err != nil {
		return access.Capabilities{}, fmt.Errorf("capabilities %s/%s: %w", communityID, actorID, err)
	}

	caps := access.Capabilities{
		Administrator: m.Administrator,
		Roles:         make(map[string]bool, len(m.Roles)),
	}
	for _, r := range m.Roles {
		caps.Roles[r] = true
	}
	return caps, nil
}

// SendFile implements Directory. The file is posted multipart to the user's
// private message endpoint.
func (d *HTTPDirectory) SendFile(ctx context.Context, userID, message, filename string, content io.Reader) error {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		defer pw.Close() //nolint:errcheck
		if err := mw.WriteField("message", message); err != nil {
			pw.CloseWithError(err)
			return
		}
		part, err := mw.CreateFormFile("file", filename)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, content); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	url := fmt.Sprintf("%s/users/%s/messages", d.baseURL, userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, pr)
	if err != nil {
		return fmt.Errorf("build send request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send file to %s: %w", userID, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 300 {
		return fmt.Errorf("directory returned %d delivering to %s", resp.StatusCode, userID)
	}
	return nil
}

// getJSON performs a GET and decodes the JSON body into out.
func (d *HTTPDirectory) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("directory returned %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
