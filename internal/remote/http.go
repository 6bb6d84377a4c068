package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hyperengineering/lifexp/internal/types"
)

// maxSnapshotBytes bounds a pulled document.
const maxSnapshotBytes = 16 << 20

// HTTP talks to a `lifexp serve` instance.
type HTTP struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTP creates an HTTP remote. A zero timeout defaults to 30s.
func NewHTTP(baseURL, apiKey string, timeout time.Duration) *HTTP {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTP{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// Ping checks the server health endpoint.
func (h *HTTP) Ping(ctx context.Context) error {
	resp, err := h.sendRequest(ctx, http.MethodGet, "/api/v1/health", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed: %d", resp.StatusCode)
	}
	return nil
}

// Pull fetches the user's snapshot.
func (h *HTTP) Pull(ctx context.Context, userID string) (*types.RemoteSnapshot, error) {
	resp, err := h.sendRequest(ctx, http.MethodGet, snapshotPath(userID), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrNotFound
	default:
		return nil, statusError("pull", resp)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSnapshotBytes))
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return decode(data)
}

// Push replaces the user's snapshot.
func (h *HTTP) Push(ctx context.Context, userID string, snap *types.RemoteSnapshot) error {
	data, err := encode(snap)
	if err != nil {
		return err
	}
	resp, err := h.sendRequest(ctx, http.MethodPut, snapshotPath(userID), data)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return statusError("push", resp)
	}
	return nil
}

// sendRequest sends an authenticated request to the server.
func (h *HTTP) sendRequest(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if h.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

func snapshotPath(userID string) string {
	return "/api/v1/users/" + url.PathEscape(userID) + "/snapshot"
}

// statusError turns a non-success response into an error, using the problem
// detail when the server sent one.
func statusError(op string, resp *http.Response) error {
	var problem struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(data, &problem) == nil && problem.Detail != "" {
		return fmt.Errorf("%s snapshot: %d %s: %s", op, resp.StatusCode, problem.Title, problem.Detail)
	}
	return fmt.Errorf("%s snapshot: unexpected status %d", op, resp.StatusCode)
}
