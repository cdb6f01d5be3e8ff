// Package backendtest provides an in-process fake of the trading backend
// for tests.
package backendtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"dhan-trader/internal/backend"
)

// Routes lists every endpoint the fake serves.
var Routes = []struct{ Method, Path string }{
	{http.MethodGet, "/status"},
	{http.MethodGet, "/funds"},
	{http.MethodGet, "/holdings"},
	{http.MethodGet, "/positions"},
	{http.MethodGet, "/orders"},
	{http.MethodGet, "/symbol-search"},
	{http.MethodGet, "/resolve-symbol"},
	{http.MethodPost, "/order/place"},
	{http.MethodPost, "/order/cancel"},
	{http.MethodGet, "/webhook/alerts"},
}

// Request is what the fake recorded about one call.
type Request struct {
	Query  url.Values
	Header http.Header
}

// Server is a fake backend. Every route answers with an empty success
// envelope until overridden.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	handlers map[string]http.HandlerFunc
	calls    map[string]int
	last     map[string]Request
}

// New starts a fake backend that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		handlers: make(map[string]http.HandlerFunc),
		calls:    make(map[string]int),
		last:     make(map[string]Request),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	for _, route := range Routes {
		r.MethodFunc(route.Method, route.Path, s.dispatch(route.Method, route.Path))
	}
	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

func key(method, path string) string {
	return method + " " + path
}

func (s *Server) dispatch(method, path string) http.HandlerFunc {
	k := key(method, path)
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[k]++
		s.last[k] = Request{Query: r.URL.Query(), Header: r.Header.Clone()}
		h := s.handlers[k]
		s.mu.Unlock()

		if h == nil {
			JSON(w, http.StatusOK, map[string]any{"status": "success", "data": []any{}})
			return
		}
		h(w, r)
	}
}

// Handle overrides the handler of one route.
func (s *Server) Handle(method, path string, h http.HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[key(method, path)] = h
}

// Respond makes a route answer with a fixed JSON body.
func (s *Server) Respond(method, path string, status int, body any) {
	s.Handle(method, path, func(w http.ResponseWriter, _ *http.Request) {
		JSON(w, status, body)
	})
}

// Fail makes a route drop the connection without a response.
func (s *Server) Fail(method, path string) {
	s.Handle(method, path, func(w http.ResponseWriter, _ *http.Request) {
		hj, ok := w.(http.Hijacker)
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		conn, _, err := hj.Hijack()
		if err == nil {
			conn.Close()
		}
	})
}

// Delay makes a route wait before delegating to next, or until the request
// is cancelled.
func (s *Server) Delay(method, path string, d time.Duration, next http.HandlerFunc) {
	s.Handle(method, path, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(d):
		case <-r.Context().Done():
			return
		}
		next(w, r)
	})
}

// Calls returns how many times a route was hit.
func (s *Server) Calls(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[key(method, path)]
}

// LastRequest returns the most recent request to a route.
func (s *Server) LastRequest(method, path string) (Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.last[key(method, path)]
	return req, ok
}

// Client returns a backend client pointed at the fake with retries disabled.
func (s *Server) Client(t testing.TB) *backend.Client {
	t.Helper()
	c, err := backend.NewClient(backend.Config{
		BaseURL:       s.URL,
		Timeout:       2 * time.Second,
		RetryAttempts: 0,
		HTTPClient:    s.Server.Client(),
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("backend client: %v", err)
	}
	return c
}

// JSON writes body as a JSON response.
func JSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// Success wraps data in a success envelope.
func Success(data any) map[string]any {
	return map[string]any{"status": "success", "data": data}
}
