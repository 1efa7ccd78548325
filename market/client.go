package market

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
)

// Client fetches market data from the analytics backend.
type Client struct {
	base string
	http *http.Client
}

// NewClient returns a client of the backend at baseURL (e.g.
// "http://localhost:8000"). A nil httpClient means http.DefaultClient.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{base: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// Rates implements Provider.
func (c *Client) Rates(ctx context.Context) (Rates, error) {
	var r Rates
	err := jwget(ctx, c.http, c.base+"/api/analytics/market-data/rates", &r)
	return r, err
}

// LeverageMultiples implements Provider.
func (c *Client) LeverageMultiples(ctx context.Context, sector string) (LeverageMultiples, error) {
	addr := c.base + "/api/analytics/market-data/multiples/leverage"
	if sector != "" {
		addr += "?" + url.Values{"sector": {sector}}.Encode()
	}
	var m LeverageMultiples
	err := jwget(ctx, c.http, addr, &m)
	return m, err
}

// Scenarios implements Provider.
func (c *Client) Scenarios(ctx context.Context) (map[string]Scenario, error) {
	var s map[string]Scenario
	err := jwget(ctx, c.http, c.base+"/api/analytics/market-data/scenarios", &s)
	return s, err
}

// Snapshots implements Provider.
func (c *Client) Snapshots(ctx context.Context, windowDays int) ([]Snapshot, error) {
	addr := c.base + "/api/analytics/debt-market/history?" + url.Values{"days": {strconv.Itoa(windowDays)}}.Encode()
	var s []Snapshot
	err := jwget(ctx, c.http, addr, &s)
	return s, err
}

// jwget performs an HTTP GET request to the given address and unmarshals the
// JSON response body into data.
func jwget(ctx context.Context, client *http.Client, addr string, data any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("cannot http GET %v%v: %v", resp.Request.URL.Host, resp.Request.URL.Path, resp.Status)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return err
	}
	if err := json.Unmarshal(buf.Bytes(), data); err != nil {
		return fmt.Errorf("cannot decode %v: %w", resp.Request.URL.Path, err)
	}
	return nil
}

// NewCachingClient returns an http.Client whose successful responses are cached
// on disk in dir (os.TempDir() if empty) for the current period.
func NewCachingClient(dir string, period, timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: &diskCache{base: http.DefaultTransport, dir: dir, period: period},
	}
}
