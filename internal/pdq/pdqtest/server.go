// Package pdqtest runs an in-process fake planner server for tests.
//
// It serves the same routes as the real server with canned payloads and
// records every request it receives, so tests can assert on exact paths.
package pdqtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"pdqctl/internal/pdq"

	"github.com/go-chi/chi/v5"
)

// Request is what the fake server saw.
type Request struct {
	Route         string
	Path          string // decoded path
	RawQuery      string
	SchemaID      string
	QueryID       string
	SQL           string // decoded trailing segment
	RequestID     string
	Authorization string
}

// Server is a fake planner. Set the exported fields before issuing requests.
type Server struct {
	*httptest.Server

	// Schemas is served by /initSchemas unless InitBody is set.
	Schemas []pdq.Schema
	// InitBody overrides the /initSchemas body verbatim (e.g. malformed JSON).
	InitBody string
	PlanXML  []byte
	RunCSV   []byte
	// Valid is the /verifyQuery answer.
	Valid bool
	// Status forces a status code for a route ("initSchemas", "downloadPlan", ...).
	Status map[string]int
	// Gate, when non-nil, blocks every handler until it is closed or the
	// request context ends.
	Gate chan struct{}

	mu       sync.Mutex
	requests []Request
}

// DefaultSchemas is the fixture served by NewServer.
func DefaultSchemas() []pdq.Schema {
	return []pdq.Schema{
		{ID: 0, Name: "schema0", Queries: []pdq.Query{
			{ID: 0, SQL: "SELECT a FROM R"},
			{ID: 1, SQL: "SELECT a, b\nFROM R, S\nWHERE R.a = S.a"},
		}},
		{ID: 1, Name: "schema1", Queries: []pdq.Query{
			{ID: 0, SQL: "SELECT * FROM T"},
		}},
	}
}

// NewServer starts a fake planner and closes it when t finishes.
func NewServer(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		Schemas: DefaultSchemas(),
		PlanXML: []byte(`<?xml version="1.0"?><plan type="access"/>`),
		RunCSV:  []byte("a,b\n1,2\n"),
		Valid:   true,
		Status:  map[string]int{},
	}

	r := chi.NewRouter()
	r.Get("/initSchemas", s.handle("initSchemas", s.initSchemas))
	r.Get("/getRelations", s.handle("getRelations", s.document("relations")))
	r.Get("/getDependencies", s.handle("getDependencies", s.document("dependencies")))
	r.Get("/verifyQuery/{schemaID}/{queryID}/*", s.handle("verifyQuery", s.verifyQuery))
	r.Get("/plan/{schemaID}/{queryID}/*", s.handle("plan", s.plan))
	r.Get("/run/{schemaID}/{queryID}/*", s.handle("run", s.run))
	r.Get("/downloadPlan/{schemaID}/{queryID}/*", s.handle("downloadPlan", s.bytes(func() ([]byte, string) {
		return s.PlanXML, "application/xml"
	})))
	r.Get("/downloadRun/{schemaID}/{queryID}/*", s.handle("downloadRun", s.bytes(func() ([]byte, string) {
		return s.RunCSV, "text/csv"
	})))

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Server.Close)
	return s
}

// Requests returns a copy of the requests received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// RequestsFor returns the recorded requests for one route.
func (s *Server) RequestsFor(route string) []Request {
	var out []Request
	for _, r := range s.Requests() {
		if r.Route == route {
			out = append(out, r)
		}
	}
	return out
}

func (s *Server) handle(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := Request{
			Route:         route,
			Path:          r.URL.Path,
			RawQuery:      r.URL.RawQuery,
			SchemaID:      chi.URLParam(r, "schemaID"),
			QueryID:       chi.URLParam(r, "queryID"),
			RequestID:     r.Header.Get("X-Request-ID"),
			Authorization: r.Header.Get("Authorization"),
		}
		// "/route/schema/query/<sql...>": the SQL may itself contain '/'.
		if parts := strings.SplitN(r.URL.Path, "/", 5); len(parts) == 5 {
			rec.SQL = parts[4]
		}

		s.mu.Lock()
		s.requests = append(s.requests, rec)
		gate := s.Gate
		code := s.Status[route]
		s.mu.Unlock()

		if gate != nil {
			select {
			case <-gate:
			case <-r.Context().Done():
				return
			}
		}
		if code != 0 && code != http.StatusOK {
			http.Error(w, http.StatusText(code), code)
			return
		}
		next(w, r)
	}
}

func (s *Server) initSchemas(w http.ResponseWriter, _ *http.Request) {
	if s.InitBody != "" {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(s.InitBody))
		return
	}
	writeJSON(w, pdq.InitialInfo{Schemas: s.Schemas})
}

func (s *Server) document(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"id": r.URL.Query().Get("id"), kind: []string{"R", "S"}})
	}
}

func (s *Server) verifyQuery(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.Valid)
}

func (s *Server) plan(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{
		"graphicalPlan":   map[string]any{"type": "ORIGIN", "children": []any{}},
		"bestPlan":        "Project(Access(R))",
		"computationTime": 0.25,
	})
}

func (s *Server) run(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{"results": [][]string{{"a", "b"}, {"1", "2"}}, "runtime": 0.5})
}

func (s *Server) bytes(body func() ([]byte, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		data, contentType := body()
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write(data)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
