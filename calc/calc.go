// Package calc sends a model to the valuation service and returns its
// results untouched.
package calc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/etnz/valuation"
)

// Client of the valuation service.
type Client struct {
	base  string
	token string
	http  *http.Client
}

// NewClient returns a client of the service at baseURL. token, if not empty, is
// sent as a bearer token.
func NewClient(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{base: strings.TrimRight(baseURL, "/"), token: token, http: httpClient}
}

// Issue is one validation problem reported by the service.
type Issue struct {
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// Error is a calculation refused by the service.
type Error struct {
	Status string
	Detail string
	Issues []Issue // set for validation errors
}

func (e *Error) Error() string {
	if len(e.Issues) == 0 {
		return fmt.Sprintf("valuation failed (%s): %s", e.Status, e.Detail)
	}
	msgs := make([]string, len(e.Issues))
	for i, is := range e.Issues {
		msgs[i] = strings.ToUpper(is.Severity) + ": " + is.Message
	}
	return fmt.Sprintf("invalid model: %s", strings.Join(msgs, "; "))
}

// Calculate posts the whole snapshot and returns the raw results.
func (c *Client) Calculate(ctx context.Context, s valuation.Snapshot) (json.RawMessage, error) {
	body, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/calculate", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, newError(resp.Status, raw)
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("invalid JSON response from %s", req.URL.Host)
	}
	return json.RawMessage(raw), nil
}

func newError(status string, body []byte) *Error {
	var payload struct {
		Type    string  `json:"type"`
		Detail  string  `json:"detail"`
		Details []Issue `json:"details"`
	}
	e := &Error{Status: status}
	if err := json.Unmarshal(body, &payload); err != nil {
		e.Detail = strings.TrimSpace(string(body))
		return e
	}
	e.Detail = payload.Detail
	if payload.Type == "validation_error" {
		e.Issues = payload.Details
	}
	return e
}
