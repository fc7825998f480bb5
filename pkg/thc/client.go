// Package thc provides the ip.thc.org lookup API client: one page of
// subdomain records per request, parsed from the colored plain-text body
// and classified for the collection loop.
package thc

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for lookup requests.
var (
	lookupRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "thcrecon_lookup_requests_total",
		Help: "Total lookup requests by HTTP status",
	}, []string{"status"})

	lookupRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "thcrecon_lookup_request_duration_seconds",
		Help:    "Lookup request duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	})

	lookupErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "thcrecon_lookup_errors_total",
		Help: "Total lookup failures by class",
	}, []string{"class"})
)

// ErrorClass classifies a failed page fetch.
type ErrorClass string

const (
	// ErrorClassNotFound represents a 404: the domain has no records.
	ErrorClassNotFound ErrorClass = "not_found"

	// ErrorClassRetryable represents transient faults: timeouts,
	// connection resets, and 5xx responses.
	ErrorClassRetryable ErrorClass = "retryable"

	// ErrorClassFatal represents non-recoverable page failures:
	// unparseable bodies and non-404 client errors.
	ErrorClassFatal ErrorClass = "fatal"
)

// Defaults matching the public API deployment.
const (
	DefaultBaseURL   = "https://ip.thc.org"
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36"
	DefaultPageSize  = 100
	DefaultTimeout   = 30 * time.Second
)

// Config holds the lookup client configuration.
type Config struct {
	// BaseURL is the API root. Continuation URLs are honored only when
	// they point back at this base.
	BaseURL string

	// UserAgent sent with every request.
	UserAgent string

	// PageSize is the l= query parameter on first-page requests.
	PageSize int

	// Timeout for each request.
	Timeout time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:   DefaultBaseURL,
		UserAgent: DefaultUserAgent,
		PageSize:  DefaultPageSize,
		Timeout:   DefaultTimeout,
	}
}

// Client fetches pages of subdomain records from the lookup API.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// New creates a lookup client.
func New(cfg Config) (*Client, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", cfg.BaseURL)
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.PageSize <= 0 {
		return nil, fmt.Errorf("page size must be positive (got %d)", cfg.PageSize)
	}

	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive (got %v)", cfg.Timeout)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		config: cfg,
		logger: log.With().Str("component", "thc-client").Logger(),
	}, nil
}

// FetchPage performs one request for (domain, cursor) and returns the
// parsed page. All failures come back as *LookupError carrying the class
// the collection loop acts on; a 404 wraps ErrNoRecords.
func (c *Client) FetchPage(ctx context.Context, domain string, cursor Cursor) (*Page, error) {
	reqURL := c.pageURL(domain, cursor)

	startTime := time.Now()
	defer func() {
		lookupRequestDuration.Observe(time.Since(startTime).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &LookupError{
			Class: ErrorClassFatal,
			Err:   fmt.Errorf("create request: %w", err),
		}
	}
	req.Header.Set("User-Agent", c.config.UserAgent)

	c.logger.Debug().
		Str("domain", domain).
		Str("url", reqURL).
		Msg("Fetching page")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		lookupRequestsTotal.WithLabelValues("network_error").Inc()
		lookupErrorsTotal.WithLabelValues(string(ErrorClassRetryable)).Inc()
		return nil, &LookupError{
			Class: ErrorClassRetryable,
			Err:   err,
		}
	}
	defer resp.Body.Close()

	lookupRequestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode == http.StatusNotFound {
		c.logger.Debug().Str("domain", domain).Msg("Domain has no records")
		return nil, &LookupError{
			Class:      ErrorClassNotFound,
			StatusCode: resp.StatusCode,
			Err:        ErrNoRecords,
		}
	}

	if resp.StatusCode != http.StatusOK {
		class := classifyStatus(resp.StatusCode)
		lookupErrorsTotal.WithLabelValues(string(class)).Inc()

		c.logger.Warn().
			Str("domain", domain).
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("Lookup request error")

		return nil, &LookupError{
			Class:      class,
			StatusCode: resp.StatusCode,
			Message:    resp.Status,
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		lookupErrorsTotal.WithLabelValues(string(ErrorClassRetryable)).Inc()
		return nil, &LookupError{
			Class: ErrorClassRetryable,
			Err:   fmt.Errorf("read body: %w", err),
		}
	}

	page, err := Parse(string(body), c.config.BaseURL)
	if err != nil {
		lookupErrorsTotal.WithLabelValues(string(ErrorClassFatal)).Inc()
		return nil, &LookupError{
			Class: ErrorClassFatal,
			Err:   err,
		}
	}

	c.logger.Debug().
		Str("domain", domain).
		Int("records", len(page.Records)).
		Bool("has_next", page.HasNext()).
		Msg("Page fetched")

	return page, nil
}

// classifyStatus categorizes a non-200, non-404 HTTP status.
func classifyStatus(status int) ErrorClass {
	if status >= 500 {
		return ErrorClassRetryable
	}
	return ErrorClassFatal
}

// pageURL resolves the request URL for (domain, cursor): the configured
// base for the first page, the API-supplied continuation afterwards.
func (c *Client) pageURL(domain string, cursor Cursor) string {
	if cursor == FirstPage {
		return fmt.Sprintf("%s/%s?l=%d",
			strings.TrimRight(c.config.BaseURL, "/"), domain, c.config.PageSize)
	}
	return string(cursor)
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
