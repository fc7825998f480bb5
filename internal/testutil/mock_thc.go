// Package testutil provides testing utilities for the thc-recon packages.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MockLookupResponse defines the behavior for one mock lookup response.
type MockLookupResponse struct {
	StatusCode int
	Body       string
	Delay      time.Duration
}

// MockLookup is a configurable mock lookup API server speaking the
// plain-text wire format: colored ";;" metadata lines plus one subdomain
// record per line.
type MockLookup struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	RequestCount      int
	LastRequestHeader http.Header
}

// NewMockLookup creates a new mock lookup server. Unregistered paths
// answer 404, matching the API's behavior for unknown domains.
func NewMockLookup() *MockLookup {
	mock := &MockLookup{
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastRequestHeader = r.Header.Clone()
		mock.mu.Unlock()

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		w.WriteHeader(http.StatusNotFound)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockLookup) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockLookup) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockLookup) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.LastRequestHeader = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockLookup) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockLookup) SetResponse(path string, resp MockLookupResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockLookup) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetLastUserAgent returns the User-Agent of the most recent request.
func (m *MockLookup) GetLastUserAgent() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.LastRequestHeader == nil {
		return ""
	}
	return m.LastRequestHeader.Get("User-Agent")
}

// LookupPage describes one page in a scripted pagination sequence.
type LookupPage struct {
	// Records become one colored line each.
	Records []string

	// Total is rendered into the ";;Entries:" line when > 0.
	Total int

	// Remaining is rendered into the ";;Rate Limit" line when >= 0;
	// a negative value omits the line entirely.
	Remaining int

	// Continue forces a ";;Next Page:" line even on the last scripted
	// page, pointing one page past the script (which answers 404).
	Continue bool
}

// ScriptDomain registers a paginated response sequence for domain. Pages
// are linked with ";;Next Page:" URLs carrying a page query parameter;
// the last page carries no continuation unless it sets Continue.
func (m *MockLookup) ScriptDomain(domain string, pages ...LookupPage) {
	m.SetHandler("/"+domain, func(w http.ResponseWriter, r *http.Request) {
		idx := 0
		if p := r.URL.Query().Get("page"); p != "" {
			if n, err := strconv.Atoi(p); err == nil && n > 0 {
				idx = n - 1
			}
		}

		if idx >= len(pages) {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		page := pages[idx]
		next := ""
		if idx+1 < len(pages) || page.Continue {
			next = fmt.Sprintf("%s/%s?page=%d", m.URL(), domain, idx+2)
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, RenderPage(page, next))
	})
}

// RenderPage renders the plain-text wire format for one page, colored the
// way the live API colors its output, including the literal escape text
// form that lacks a leading ESC byte.
func RenderPage(page LookupPage, nextURL string) string {
	var b strings.Builder

	if page.Total > 0 {
		fmt.Fprintf(&b, "\x1b[0;33m;;Entries: %d/%d\x1b[0m\n", len(page.Records), page.Total)
	}
	if page.Remaining >= 0 {
		fmt.Fprintf(&b, "[0;35m;;Rate Limit: You can make %d more requests in the next hour[0m\n", page.Remaining)
	}
	for _, rec := range page.Records {
		fmt.Fprintf(&b, "\x1b[0;36m%s\x1b[0m\n", rec)
	}
	if nextURL != "" {
		fmt.Fprintf(&b, "[0;32m;;Next Page: %s[0m\n", nextURL)
	}

	return b.String()
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockLookupResponse {
	return MockLookupResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       "Internal Server Error",
	}
}

// NewBinaryResponse creates a 200 response whose body is not text, for
// exercising the unparseable-body path.
func NewBinaryResponse() MockLookupResponse {
	return MockLookupResponse{
		StatusCode: http.StatusOK,
		Body:       "\x00\xff\xfe\x01binary",
	}
}

// FlakyHandler answers with failures times the failure status, then
// delegates to the given handler. Used to exercise retry behavior.
func FlakyHandler(failures int, failStatus int, handler func(w http.ResponseWriter, r *http.Request)) func(w http.ResponseWriter, r *http.Request) {
	var mu sync.Mutex
	attempts := 0
	return func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()

		if n <= failures {
			w.WriteHeader(failStatus)
			return
		}
		handler(w, r)
	}
}
