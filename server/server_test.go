package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/etnz/valuation"
	"github.com/etnz/valuation/market"
	"github.com/stretchr/testify/require"
)

type session struct {
	editor *valuation.Editor
	market *market.Static
	broker *Broker
	http   *httptest.Server
}

func newSession(t *testing.T) *session {
	t.Helper()
	e := valuation.NewEditor(valuation.DefaultModel())
	m := market.DefaultStatic()
	b := NewBroker()
	srv := New(e, &market.Feed{Provider: m, Sink: e}, "", slog.New(slog.NewTextHandler(io.Discard, nil)))
	ts := httptest.NewServer(srv.Router(b))
	cancel := b.Forward(e)
	t.Cleanup(func() {
		cancel()
		ts.Close()
		b.Close()
	})
	return &session{editor: e, market: m, broker: b, http: ts}
}

// do sends a request and decodes the JSON response into a map.
func (s *session) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, s.http.URL+path, r)
	require.NoError(t, err)
	resp, err := s.http.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

// get returns the value at the dotted keys of a decoded JSON object.
func get(t *testing.T, m map[string]any, keys ...string) any {
	t.Helper()
	var v any = m
	for _, k := range keys {
		o, ok := v.(map[string]any)
		require.Truef(t, ok, "%q is not an object", k)
		v = o[k]
	}
	return v
}

func TestState(t *testing.T) {
	s := newSession(t)
	status, body := s.do(t, http.MethodGet, "/api/state", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "New Company", get(t, body, "model", "company_name"))
	require.Equal(t, false, body["can_undo"])
	require.Empty(t, body["fields"])
}

func TestPatchUndoRedo(t *testing.T) {
	s := newSession(t)
	status, body := s.do(t, http.MethodPost, "/api/patch", map[string]any{
		"op": "set", "path": "dcf_input.projections.discount_rate", "text": "9%",
	})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, body["changed"])
	require.Equal(t, true, body["can_undo"])
	require.Equal(t, 0.09, get(t, body, "model", "dcf_input", "projections", "discount_rate"))

	status, body = s.do(t, http.MethodPost, "/api/undo", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, body["done"])
	require.Equal(t, 0.1, get(t, body, "state", "model", "dcf_input", "projections", "discount_rate"))

	_, body = s.do(t, http.MethodPost, "/api/redo", nil)
	require.Equal(t, true, body["done"])
	require.Equal(t, 0.09, get(t, body, "state", "model", "dcf_input", "projections", "discount_rate"))

	_, body = s.do(t, http.MethodPost, "/api/redo", nil)
	require.Equal(t, false, body["done"], "nothing left to redo")
}

func TestPatchCollections(t *testing.T) {
	s := newSession(t)
	status, body := s.do(t, http.MethodPost, "/api/patch", map[string]any{
		"op": "insert", "collection": "lbo_input.financing.tranches",
		"entry": map[string]any{"name": "Junior Notes", "interest_rate": 0.1},
	})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, float64(3), body["inserted"])

	status, _ = s.do(t, http.MethodPost, "/api/patch", map[string]any{
		"op": "update", "collection": "lbo_input.financing.tranches", "id": 3,
		"field": "interest_rate", "value": 0.11,
	})
	require.Equal(t, http.StatusOK, status)
	rate, ok := s.editor.Present().Number(valuation.MustParsePath("lbo_input.financing.tranches[3].interest_rate"))
	require.True(t, ok)
	require.Equal(t, "0.11", rate.String())

	status, _ = s.do(t, http.MethodPost, "/api/patch", map[string]any{
		"op": "remove", "collection": "lbo_input.financing.tranches", "id": 1,
	})
	require.Equal(t, http.StatusOK, status)
	l, _ := s.editor.Present().List(valuation.TranchesPath)
	require.Equal(t, []valuation.EntryID{2, 3}, l.IDs())
}

func TestPatchErrors(t *testing.T) {
	testCases := []struct {
		name   string
		body   any
		status int
	}{
		{"stale update", map[string]any{"op": "update", "collection": "lbo_input.financing.tranches", "id": 99, "field": "interest_rate", "value": 0.1}, http.StatusConflict},
		{"stale remove", map[string]any{"op": "remove", "collection": "lbo_input.covenants", "id": 42}, http.StatusConflict},
		{"malformed number", map[string]any{"op": "set", "path": "lbo_input.target_irr", "text": "twenty"}, http.StatusBadRequest},
		{"invalid path", map[string]any{"op": "set", "path": "lbo_input..target_irr", "value": 0.2}, http.StatusBadRequest},
		{"missing value", map[string]any{"op": "set", "path": "lbo_input.target_irr"}, http.StatusBadRequest},
		{"unknown op", map[string]any{"op": "move"}, http.StatusBadRequest},
		{"not a collection", map[string]any{"op": "insert", "collection": "lbo_input", "entry": map[string]any{}}, http.StatusBadRequest},
		{"bad json", "{", http.StatusBadRequest},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := newSession(t)
			status, body := s.do(t, http.MethodPost, "/api/patch", tc.body)
			require.Equal(t, tc.status, status, "error: %v", body["error"])
			require.NotEmpty(t, body["error"])
			require.False(t, s.editor.CanUndo(), "a rejected patch leaves the history untouched")
		})
	}
}

func TestLinkRefreshOverride(t *testing.T) {
	s := newSession(t)
	const rate = "lbo_input.financing.tranches[1].interest_rate"

	status, body := s.do(t, http.MethodPost, "/api/link", LinkRequest{Path: rate, Source: string(valuation.SourceSeniorDebt)})
	require.Equal(t, http.StatusOK, status)
	fields := body["fields"].([]any)
	require.Len(t, fields, 1)
	require.Equal(t, "auto", get(t, fields[0].(map[string]any), "mode"))
	require.Nil(t, get(t, fields[0].(map[string]any), "last_known"))

	status, body = s.do(t, http.MethodPost, "/api/refresh/rates", nil)
	require.Equal(t, http.StatusOK, status)
	tranche := get(t, body, "model", "lbo_input", "financing", "tranches").([]any)[0].(map[string]any)
	require.Equal(t, 0.054, tranche["interest_rate"])
	require.Equal(t, "0.054", get(t, body["fields"].([]any)[0].(map[string]any), "last_known"))

	status, body = s.do(t, http.MethodPost, "/api/patch", map[string]any{"op": "set", "path": rate, "value": 0.06})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, []any{rate}, body["overridden"])

	s.market.Current.SeniorDebt = s.market.Current.SeniorDebt.Add(s.market.Current.SeniorDebt)
	_, body = s.do(t, http.MethodPost, "/api/refresh/rates", nil)
	tranche = get(t, body, "model", "lbo_input", "financing", "tranches").([]any)[0].(map[string]any)
	require.Equal(t, 0.06, tranche["interest_rate"], "a manual field ignores refreshes")

	status, _ = s.do(t, http.MethodPost, "/api/unlink", LinkRequest{Path: rate})
	require.Equal(t, http.StatusOK, status)
}

func TestLinkErrors(t *testing.T) {
	s := newSession(t)
	status, _ := s.do(t, http.MethodPost, "/api/link", LinkRequest{Path: "lbo_input.target_irr"})
	require.Equal(t, http.StatusBadRequest, status)

	status, _ = s.do(t, http.MethodPost, "/api/link", LinkRequest{Path: "lbo_input.financing.tranches[7].interest_rate", Source: "rates.senior_debt"})
	require.Equal(t, http.StatusConflict, status)

	status, _ = s.do(t, http.MethodPost, "/api/link", LinkRequest{Path: "company_name", Source: "rates.senior_debt"})
	require.Equal(t, http.StatusBadRequest, status)
}

func TestRefreshLeverage(t *testing.T) {
	s := newSession(t)
	require.NoError(t, s.editor.Link(valuation.TotalLeveragePath, valuation.LeverageSource("Technology", valuation.LeverageTotal)))

	status, body := s.do(t, http.MethodPost, "/api/refresh/leverage?sector=Technology", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, 6.5, get(t, body, "model", "lbo_input", "financing", "total_leverage_ratio"))
}

func TestRefreshUnavailable(t *testing.T) {
	s := newSession(t)
	require.NoError(t, s.editor.Link(valuation.TotalLeveragePath, valuation.SourceSeniorDebt))
	s.market.Err = errors.New("connection refused")

	status, body := s.do(t, http.MethodPost, "/api/refresh/rates", nil)
	require.Equal(t, http.StatusBadGateway, status)
	require.Contains(t, body["error"], "connection refused")
	require.False(t, s.editor.CanUndo())
}

func TestQuery(t *testing.T) {
	s := newSession(t)
	status, body := s.do(t, http.MethodGet, "/api/query?expr=$.company_name", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "New Company", body["result"])

	status, _ = s.do(t, http.MethodGet, "/api/query", nil)
	require.Equal(t, http.StatusBadRequest, status)
}

func TestEvents(t *testing.T) {
	s := newSession(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.http.URL+"/api/events", nil)
	require.NoError(t, err)
	resp, err := s.http.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return s.broker.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	status, _ := s.do(t, http.MethodPost, "/api/patch", map[string]any{"op": "set", "path": "lbo_input.target_irr", "value": 0.25})
	require.Equal(t, http.StatusOK, status)

	scanner := bufio.NewScanner(resp.Body)
	var lines []string
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			break
		}
		lines = append(lines, line)
	}
	require.Equal(t, "event: changed", lines[0])
	var m Message
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(lines[1], "data: ")), &m))
	require.Equal(t, Message{Kind: "changed", CanUndo: true}, m)
}
