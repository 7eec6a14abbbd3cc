// Package apitest provides a scriptable fake of the analysis backend for
// tests, routed with chi and served by httptest.
package apitest

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
)

// Request is one recorded call.
type Request struct {
	Method string
	Path   string
	Auth   string
	Body   []byte
}

// Backend is a fake backend. Endpoints answer 404 until scripted.
type Backend struct {
	*httptest.Server

	mu       sync.Mutex
	handlers map[string]http.HandlerFunc
	requests []Request
	assets   map[string]bool
}

var endpoints = []struct{ method, path string }{
	{http.MethodPost, "/ask"},
	{http.MethodPost, "/clear"},
	{http.MethodPost, "/upload"},
	{http.MethodPost, "/connect_db"},
	{http.MethodPost, "/disconnect"},
	{http.MethodPost, "/refresh_tables"},
	{http.MethodPost, "/switch_mode"},
	{http.MethodPost, "/get_table_preview"},
	{http.MethodGet, "/check_connection_status"},
}

// New starts a backend that is closed when the test ends.
func New(t testing.TB) *Backend {
	t.Helper()
	b := &Backend{
		handlers: make(map[string]http.HandlerFunc),
		assets:   make(map[string]bool),
	}

	r := chi.NewRouter()
	r.Use(b.record)
	for _, ep := range endpoints {
		key := ep.method + " " + ep.path
		r.MethodFunc(ep.method, ep.path, func(w http.ResponseWriter, req *http.Request) {
			b.mu.Lock()
			h := b.handlers[key]
			b.mu.Unlock()
			if h == nil {
				http.NotFound(w, req)
				return
			}
			h(w, req)
		})
	}
	r.Head("/assets/{name}", b.serveAsset)
	r.Get("/assets/{name}", b.serveAsset)

	b.Server = httptest.NewServer(r)
	t.Cleanup(b.Close)
	return b
}

// Handle scripts method+path.
func (b *Backend) Handle(method, path string, h http.HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[method+" "+path] = h
}

// JSON scripts method+path to always answer status with body encoded as JSON.
func (b *Backend) JSON(method, path string, status int, body any) {
	b.Handle(method, path, func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, status, body)
	})
}

// Sequence scripts method+path to answer each handler in turn; the last
// one repeats.
func (b *Backend) Sequence(method, path string, hs ...http.HandlerFunc) {
	var mu sync.Mutex
	n := 0
	b.Handle(method, path, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		h := hs[min(n, len(hs)-1)]
		n++
		mu.Unlock()
		h(w, r)
	})
}

// Reply returns a handler answering status with body as JSON.
func Reply(status int, body any) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, status, body)
	}
}

// AddAsset makes /assets/<name> exist.
func (b *Backend) AddAsset(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.assets[name] = true
}

// Requests returns every recorded call in order.
func (b *Backend) Requests() []Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Request(nil), b.requests...)
}

// Calls counts recorded calls to path.
func (b *Backend) Calls(path string) int {
	n := 0
	for _, r := range b.Requests() {
		if r.Path == path {
			n++
		}
	}
	return n
}

// Last returns the most recent call to path.
func (b *Backend) Last(path string) (Request, bool) {
	reqs := b.Requests()
	for i := len(reqs) - 1; i >= 0; i-- {
		if reqs[i].Path == path {
			return reqs[i], true
		}
	}
	return Request{}, false
}

// WriteJSON writes body as a JSON response.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body) //nolint:errcheck
}

func (b *Backend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body []byte
		if r.Body != nil {
			body, _ = io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewReader(body))
		}
		b.mu.Lock()
		b.requests = append(b.requests, Request{
			Method: r.Method,
			Path:   r.URL.Path,
			Auth:   r.Header.Get("Authorization"),
			Body:   body,
		})
		b.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) serveAsset(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	ok := b.assets[chi.URLParam(r, "name")]
	b.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
}
