package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shubapp/devproxy/pkg/requestlog"
	"github.com/shubapp/devproxy/pkg/rule"
)

// APIError is an error response from the admin API.
type APIError struct {
	StatusCode int
	ErrorCode  string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("admin API returned %d", e.StatusCode)
}

// Client talks to the devproxy admin API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates an admin API client for the given base URL, e.g.
// "http://localhost:4040".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Health checks the server is up.
func (c *Client) Health() error {
	var resp map[string]any
	return c.doJSON(http.MethodGet, "/health", nil, &resp)
}

// Status returns the server status document.
func (c *Client) Status() (map[string]any, error) {
	var status map[string]any
	if err := c.doJSON(http.MethodGet, "/status", nil, &status); err != nil {
		return nil, err
	}
	return status, nil
}

// ListMocks returns all stored mock rules.
func (c *Client) ListMocks() ([]*rule.MockRule, error) {
	var result struct {
		Mocks []*rule.MockRule `json:"mocks"`
	}
	if err := c.doJSON(http.MethodGet, "/mocks", nil, &result); err != nil {
		return nil, err
	}
	return result.Mocks, nil
}

// CreateMock stores a new mock rule.
func (c *Client) CreateMock(mock *rule.MockRule) (*rule.MockRule, error) {
	var created rule.MockRule
	if err := c.doJSON(http.MethodPost, "/mocks", mock, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// ListScenarios returns all stored scenarios.
func (c *Client) ListScenarios() ([]*rule.Scenario, error) {
	var result struct {
		Scenarios []*rule.Scenario `json:"scenarios"`
	}
	if err := c.doJSON(http.MethodGet, "/scenarios", nil, &result); err != nil {
		return nil, err
	}
	return result.Scenarios, nil
}

// ActiveScenario describes the currently active rule set.
type ActiveScenario struct {
	ScenarioID string `json:"scenarioId"`
	Version    uint64 `json:"version"`
	RuleCount  int    `json:"ruleCount"`
}

// GetActiveScenario returns the active scenario summary.
func (c *Client) GetActiveScenario() (*ActiveScenario, error) {
	var active ActiveScenario
	if err := c.doJSON(http.MethodGet, "/scenarios/active", nil, &active); err != nil {
		return nil, err
	}
	return &active, nil
}

// ActivateScenario switches the active scenario.
func (c *Client) ActivateScenario(id string) (*ActiveScenario, error) {
	var active ActiveScenario
	path := "/scenarios/" + url.PathEscape(id) + "/activate"
	if err := c.doJSON(http.MethodPost, path, nil, &active); err != nil {
		return nil, err
	}
	return &active, nil
}

// DeactivateScenario clears the active scenario.
func (c *Client) DeactivateScenario() error {
	return c.doJSON(http.MethodPost, "/scenarios/deactivate", nil, nil)
}

// CloneScenario duplicates a scenario and returns the copy.
func (c *Client) CloneScenario(id string) (*rule.Scenario, error) {
	var clone rule.Scenario
	path := "/scenarios/" + url.PathEscape(id) + "/clone"
	if err := c.doJSON(http.MethodPost, path, nil, &clone); err != nil {
		return nil, err
	}
	return &clone, nil
}

// RecordMode reads the record mode state.
func (c *Client) RecordMode() (bool, error) {
	var result struct {
		Enabled bool `json:"enabled"`
	}
	if err := c.doJSON(http.MethodGet, "/record", nil, &result); err != nil {
		return false, err
	}
	return result.Enabled, nil
}

// SetRecordMode toggles record mode on the server.
func (c *Client) SetRecordMode(enabled bool) error {
	body := map[string]bool{"enabled": enabled}
	return c.doJSON(http.MethodPut, "/record", body, nil)
}

// LogFilter narrows GetLogs results.
type LogFilter struct {
	Project string
	Method  string
	Path    string
	Outcome string
	Limit   int
}

// GetLogs returns request log entries, newest first.
func (c *Client) GetLogs(filter *LogFilter) ([]*requestlog.Entry, error) {
	q := url.Values{}
	if filter != nil {
		if filter.Project != "" {
			q.Set("project", filter.Project)
		}
		if filter.Method != "" {
			q.Set("method", filter.Method)
		}
		if filter.Path != "" {
			q.Set("path", filter.Path)
		}
		if filter.Outcome != "" {
			q.Set("outcome", filter.Outcome)
		}
		if filter.Limit > 0 {
			q.Set("limit", strconv.Itoa(filter.Limit))
		}
	}
	path := "/requests"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var result struct {
		Requests []*requestlog.Entry `json:"requests"`
	}
	if err := c.doJSON(http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return result.Requests, nil
}

// ClearLogs deletes all request log entries.
func (c *Client) ClearLogs() error {
	return c.doJSON(http.MethodDelete, "/requests", nil, nil)
}

func (c *Client) doJSON(method, path string, body, out any) error {
	var reqBody *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("cannot reach devproxy at %s: %w", c.baseURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return c.parseError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func (c *Client) parseError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
		apiErr.ErrorCode = body.Error
		apiErr.Message = body.Message
	}
	return apiErr
}
