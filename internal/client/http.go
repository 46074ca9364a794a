package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alfredjeanlab/gatewatch/internal/model"
	"github.com/alfredjeanlab/gatewatch/internal/presence"
)

// HTTPClient implements GateClient using the gate server's HTTP/JSON API.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:8080").
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

// --- Board ---

func (c *HTTPClient) CreateGates(ctx context.Context, gates []*CreateGateRequest) ([]*GateView, error) {
	var resp struct {
		Gates []*GateView `json:"gates"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/gates", gates, &resp); err != nil {
		return nil, err
	}
	return resp.Gates, nil
}

func (c *HTTPClient) ListGates(ctx context.Context, viewer string) ([]*GateView, error) {
	path := "/v1/gates"
	if viewer != "" {
		path += "?" + url.Values{"viewer": {viewer}}.Encode()
	}
	var resp struct {
		Gates []*GateView `json:"gates"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Gates, nil
}

func (c *HTTPClient) Groups(ctx context.Context) ([]*GroupView, error) {
	var resp struct {
		Groups []*GroupView `json:"groups"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/gates/groups", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Groups, nil
}

func (c *HTTPClient) GetGate(ctx context.Context, id string) (*GateView, error) {
	var g GateView
	if err := c.doJSON(ctx, http.MethodGet, gatePath(id), nil, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

func (c *HTTPClient) History(ctx context.Context, id string) ([]*model.HistoryEntry, error) {
	var resp struct {
		History []*model.HistoryEntry `json:"history"`
	}
	if err := c.doJSON(ctx, http.MethodGet, gatePath(id)+"/history", nil, &resp); err != nil {
		return nil, err
	}
	return resp.History, nil
}

// --- Guard actions ---

func (c *HTTPClient) Claim(ctx context.Context, id, guard string) (*GateView, error) {
	return c.guardAction(ctx, id, "claim", guard)
}

func (c *HTTPClient) StartMonitor(ctx context.Context, id, guard string) (*GateView, error) {
	return c.guardAction(ctx, id, "start", guard)
}

func (c *HTTPClient) SwitchToDeparture(ctx context.Context, id, guard string) (*GateView, error) {
	return c.guardAction(ctx, id, "departure", guard)
}

func (c *HTTPClient) MarkFinished(ctx context.Context, id, guard string) (*GateView, error) {
	return c.guardAction(ctx, id, "finish", guard)
}

func (c *HTTPClient) Release(ctx context.Context, id, guard string) (*GateView, error) {
	return c.guardAction(ctx, id, "release", guard)
}

func (c *HTTPClient) Extend(ctx context.Context, id, guard string, minutes int) (*GateView, error) {
	body := map[string]any{"guard": guard}
	if minutes > 0 {
		body["minutes"] = minutes
	}
	var g GateView
	if err := c.doJSON(ctx, http.MethodPost, gatePath(id)+"/extend", body, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

func (c *HTTPClient) guardAction(ctx context.Context, id, action, guard string) (*GateView, error) {
	var g GateView
	if err := c.doJSON(ctx, http.MethodPost, gatePath(id)+"/"+action, map[string]string{"guard": guard}, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// --- Administration ---

func (c *HTTPClient) Reset(ctx context.Context, id, actor string) (*GateView, error) {
	body := map[string]string{}
	if actor != "" {
		body["actor"] = actor
	}
	var g GateView
	if err := c.doJSON(ctx, http.MethodPost, gatePath(id)+"/reset", body, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

func (c *HTTPClient) ResetAll(ctx context.Context, actor string) (int, error) {
	body := map[string]string{}
	if actor != "" {
		body["actor"] = actor
	}
	var resp struct {
		Count int `json:"count"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/gates/reset", body, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// --- Roster ---

func (c *HTTPClient) Guards(ctx context.Context, staleThreshold time.Duration) ([]presence.Entry, error) {
	path := "/v1/guards"
	if secs := int(staleThreshold.Seconds()); secs > 0 {
		path += "?stale_threshold_secs=" + strconv.Itoa(secs)
	}
	var resp struct {
		Guards []presence.Entry `json:"guards"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Guards, nil
}

func (c *HTTPClient) Heartbeat(ctx context.Context, guard string) error {
	return c.doJSON(ctx, http.MethodPost, "/v1/guards/"+url.PathEscape(guard)+"/heartbeat", nil, nil)
}

// --- Health ---

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

func gatePath(id string) string {
	return "/v1/gates/" + url.PathEscape(id)
}

// --- internal helpers ---

// APIError represents an error response from the server. Code and Holder are
// set for conflicts: Code is "already_claimed" or "illegal_transition", and
// Holder names the guard that holds a contested gate.
type APIError struct {
	StatusCode int
	Message    string
	Code       string
	Holder     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// AlreadyClaimed reports whether the server refused a claim because another
// guard holds the gate.
func (e *APIError) AlreadyClaimed() bool {
	return e.Code == "already_claimed"
}

// doJSON performs an HTTP request with optional JSON body and decodes the JSON response.
// If result is nil, the response body is discarded.
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error  string `json:"error"`
			Code   string `json:"code"`
			Holder string `json:"holder"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return &APIError{
				StatusCode: resp.StatusCode,
				Message:    errResp.Error,
				Code:       errResp.Code,
				Holder:     errResp.Holder,
			}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}
