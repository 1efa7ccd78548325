// Package server exposes an editing session over HTTP: the model state, the
// edit operations, market refreshes and a stream of editor events.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/etnz/valuation"
	"github.com/etnz/valuation/market"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server holds the API route handlers of one editing session.
type Server struct {
	editor *valuation.Editor
	feed   *market.Feed
	sector string
	log    *slog.Logger
}

// New returns the server of e. Refreshes go through feed; sector is the
// default sector for leverage multiples.
func New(e *valuation.Editor, feed *market.Feed, sector string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{editor: e, feed: feed, sector: sector, log: logger}
}

// Router returns the chi router with all API routes mounted under /api. The
// events of the editor are streamed by broker, if not nil.
func (s *Server) Router(broker *Broker) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", s.State)
		r.Post("/patch", s.Patch)
		r.Post("/undo", s.Undo)
		r.Post("/redo", s.Redo)
		r.Post("/link", s.Link)
		r.Post("/unlink", s.Unlink)
		r.Post("/refresh/rates", s.RefreshRates)
		r.Post("/refresh/leverage", s.RefreshLeverage)
		r.Get("/query", s.Query)
		if broker != nil {
			r.Get("/events", broker.ServeHTTP)
		}
	})
	return r
}

// FieldState is the link state of a field.
type FieldState struct {
	Path      string  `json:"path"`
	Mode      string  `json:"mode"`
	Source    string  `json:"source,omitempty"`
	LastKnown *string `json:"last_known"`
}

// State is the state of the session.
type State struct {
	Model   valuation.Snapshot `json:"model"`
	CanUndo bool               `json:"can_undo"`
	CanRedo bool               `json:"can_redo"`
	Fields  []FieldState       `json:"fields"`
}

func (s *Server) state() State {
	h := s.editor.State()
	st := State{
		Model:   h.Present,
		CanUndo: h.CanUndo(),
		CanRedo: h.CanRedo(),
		Fields:  []FieldState{},
	}
	for _, f := range s.editor.Fields() {
		fs := FieldState{Path: f.Path.String(), Mode: f.Mode.String(), Source: string(f.Source)}
		if f.LastKnown.Valid {
			v := f.LastKnown.Decimal.String()
			fs.LastKnown = &v
		}
		st.Fields = append(st.Fields, fs)
	}
	return st
}

// State handles GET /api/state.
func (s *Server) State(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.state())
}

// PatchRequest is the body of POST /api/patch.
//
// Op is one of "set" (Path, Value or Text), "insert" (Collection, Entry),
// "update" (Collection, ID, Field, Value or Text) and "remove" (Collection,
// ID). Text is parsed as a user input, Value is taken as JSON.
type PatchRequest struct {
	Op         string            `json:"op"`
	Path       string            `json:"path"`
	Collection string            `json:"collection"`
	ID         valuation.EntryID `json:"id"`
	Field      string            `json:"field"`
	Value      json.RawMessage   `json:"value"`
	Text       *string           `json:"text"`
	Entry      json.RawMessage   `json:"entry"`
}

// PatchResponse is the body returned by POST /api/patch.
type PatchResponse struct {
	State
	Changed    bool              `json:"changed"`
	Inserted   valuation.EntryID `json:"inserted,omitempty"`
	Overridden []string          `json:"overridden,omitempty"`
}

// Patch decodes the request into a valuation.Patch.
func (req PatchRequest) Patch() (valuation.Patch, error) {
	path := func(s string) (valuation.Path, error) {
		if s == "" {
			return nil, nil
		}
		return valuation.ParsePath(s)
	}
	value := func() (valuation.Value, error) {
		switch {
		case req.Text != nil:
			return valuation.ParseValue(*req.Text)
		case len(req.Value) > 0:
			v, err := valuation.UnmarshalValue(req.Value)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", valuation.ErrInvalidPatch, err)
			}
			return v, nil
		}
		return nil, fmt.Errorf("%w: missing value", valuation.ErrInvalidPatch)
	}

	switch req.Op {
	case "set":
		p, err := path(req.Path)
		if err != nil {
			return nil, err
		}
		v, err := value()
		if err != nil {
			return nil, err
		}
		return valuation.FieldSet{Path: p, Value: v}, nil

	case "insert", "update", "remove":
		c, err := path(req.Collection)
		if err != nil {
			return nil, err
		}
		switch req.Op {
		case "insert":
			if len(req.Entry) == 0 {
				return nil, fmt.Errorf("%w: missing entry", valuation.ErrInvalidPatch)
			}
			v, err := valuation.UnmarshalValue(req.Entry)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", valuation.ErrInvalidPatch, err)
			}
			return valuation.CollectionInsert{Collection: c, Entry: v}, nil
		case "update":
			f, err := path(req.Field)
			if err != nil {
				return nil, err
			}
			v, err := value()
			if err != nil {
				return nil, err
			}
			return valuation.CollectionUpdate{Collection: c, ID: req.ID, Field: f, Value: v}, nil
		default:
			return valuation.CollectionRemove{Collection: c, ID: req.ID}, nil
		}
	}
	return nil, fmt.Errorf("%w: unknown operation %q", valuation.ErrInvalidPatch, req.Op)
}

// Patch handles POST /api/patch.
func (s *Server) Patch(w http.ResponseWriter, r *http.Request) {
	var req PatchRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := req.Patch()
	if err != nil {
		s.writeError(w, err)
		return
	}
	c, err := s.editor.Apply(p)
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp := PatchResponse{State: s.state(), Changed: c.Changed, Inserted: c.Inserted}
	for _, p := range c.Overridden {
		resp.Overridden = append(resp.Overridden, p.String())
	}
	writeJSON(w, http.StatusOK, resp)
}

// Undo handles POST /api/undo.
func (s *Server) Undo(w http.ResponseWriter, _ *http.Request) {
	done := s.editor.Undo()
	writeJSON(w, http.StatusOK, map[string]any{"done": done, "state": s.state()})
}

// Redo handles POST /api/redo.
func (s *Server) Redo(w http.ResponseWriter, _ *http.Request) {
	done := s.editor.Redo()
	writeJSON(w, http.StatusOK, map[string]any{"done": done, "state": s.state()})
}

// LinkRequest is the body of POST /api/link and POST /api/unlink.
type LinkRequest struct {
	Path   string `json:"path"`
	Source string `json:"source"`
}

// Link handles POST /api/link.
func (s *Server) Link(w http.ResponseWriter, r *http.Request) {
	var req LinkRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := valuation.ParsePath(req.Path)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.editor.Link(p, valuation.SourceID(req.Source)); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.state())
}

// Unlink handles POST /api/unlink.
func (s *Server) Unlink(w http.ResponseWriter, r *http.Request) {
	var req LinkRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := valuation.ParsePath(req.Path)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.editor.Unlink(p)
	writeJSON(w, http.StatusOK, s.state())
}

// RefreshRates handles POST /api/refresh/rates.
func (s *Server) RefreshRates(w http.ResponseWriter, r *http.Request) {
	if err := s.feed.RefreshRates(r.Context()); err != nil {
		s.log.Warn("rates refresh failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, errorBody(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, s.state())
}

// RefreshLeverage handles POST /api/refresh/leverage?sector=.
func (s *Server) RefreshLeverage(w http.ResponseWriter, r *http.Request) {
	sector := r.URL.Query().Get("sector")
	if sector == "" {
		sector = s.sector
	}
	if sector == "" {
		sector, _ = s.editor.Present().Text(valuation.SectorPath)
	}
	if err := s.feed.RefreshLeverage(r.Context(), sector); err != nil {
		s.log.Warn("leverage refresh failed", slog.String("sector", sector), slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, errorBody(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, s.state())
}

// Query handles GET /api/query?expr=.
func (s *Server) Query(w http.ResponseWriter, r *http.Request) {
	expr := r.URL.Query().Get("expr")
	if expr == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("missing expr"))
		return
	}
	v, err := s.editor.Present().Query(expr)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": v})
}

// writeError maps editor errors to HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, valuation.ErrStalePatch):
		status = http.StatusConflict
	case errors.Is(err, valuation.ErrInvalidPatch),
		errors.Is(err, valuation.ErrInvalidPath),
		errors.Is(err, valuation.ErrMalformedNumber):
		status = http.StatusBadRequest
	case errors.Is(err, valuation.ErrSourceUnavailable):
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", slog.String("error", err.Error()))
	}
	writeJSON(w, status, errorBody(err.Error()))
}

// decode reads the JSON body of r into v, or writes a 400 and returns false.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err == nil {
		err = json.Unmarshal(body, v)
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body: "+err.Error()))
		return false
	}
	return true
}
