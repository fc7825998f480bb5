// Package collector walks the lookup API's pagination for each target
// domain, adapts its request cadence to the reported quota, and merges
// every domain's records into the run's combined set.
package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/reewardius/thc-recon/pkg/ratelimit"
	"github.com/reewardius/thc-recon/pkg/targets"
	"github.com/reewardius/thc-recon/pkg/thc"
)

// Prometheus metrics for the collection loop.
var (
	pagesFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "thcrecon_pages_fetched_total",
		Help: "Total pages fetched across all domains",
	})

	recordsSeenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "thcrecon_records_seen_total",
		Help: "Total subdomain records returned by the API, repeats included",
	})

	retriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "thcrecon_retries_total",
		Help: "Total bounded retries after transient failures",
	})

	retriesExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "thcrecon_retries_exhausted_total",
		Help: "Total times the bounded retry failed as well",
	})

	quotaRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "thcrecon_quota_remaining",
		Help: "Last remaining-request quota reported by the API",
	})
)

// RetryBackoff is the fixed wait before the single retry of a cursor
// that failed transiently.
const RetryBackoff = 10 * time.Second

// DefaultMaxPages bounds pagination per domain even when the API keeps
// advertising more pages.
const DefaultMaxPages = 1000

// maxEmptyStreak ends a domain after this many consecutive empty pages
// that still advertise a continuation: implicit end-of-data.
const maxEmptyStreak = 2

// PageFetcher fetches one page of records for (domain, cursor).
type PageFetcher interface {
	FetchPage(ctx context.Context, domain string, cursor thc.Cursor) (*thc.Page, error)
}

// Config holds the collector configuration.
type Config struct {
	// MaxPages bounds pagination per domain; 0 means DefaultMaxPages.
	MaxPages int

	// Reporter receives progress callbacks; nil disables reporting.
	Reporter Reporter
}

// Collector drives pagination across targets. Fetching is sequential by
// design: the API reports a single shared quota that cannot be read
// correctly under concurrent requests.
type Collector struct {
	fetcher  PageFetcher
	reporter Reporter
	maxPages int
	logger   zerolog.Logger

	// sleep is swappable so tests can observe delays instead of waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a collector around fetcher.
func New(fetcher PageFetcher, cfg Config) (*Collector, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("page fetcher is required")
	}

	if cfg.MaxPages < 0 {
		return nil, fmt.Errorf("max pages must not be negative (got %d)", cfg.MaxPages)
	}

	maxPages := cfg.MaxPages
	if maxPages == 0 {
		maxPages = DefaultMaxPages
	}

	reporter := cfg.Reporter
	if reporter == nil {
		reporter = nopReporter{}
	}

	return &Collector{
		fetcher:  fetcher,
		reporter: reporter,
		maxPages: maxPages,
		logger:   log.With().Str("component", "collector").Logger(),
		sleep:    sleepContext,
	}, nil
}

// Run walks every target in order, threading one quota value through the
// whole sequence. A degraded domain never stops the run; only context
// cancellation aborts it, in which case no result is returned.
func (c *Collector) Run(ctx context.Context, list []string) (*RunResult, error) {
	list = targets.Dedupe(list)
	if len(list) == 0 {
		return nil, fmt.Errorf("no targets to collect")
	}

	run := &RunResult{
		Combined: make(map[string]struct{}),
	}

	quota := ratelimit.Quota{}

	for _, domain := range list {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		c.reporter.DomainStart(domain)
		c.logger.Info().Str("domain", domain).Msg("Collecting domain")

		res := c.CollectDomain(ctx, domain, quota)
		quota = res.Quota

		if isCancellation(res.Err) {
			return nil, res.Err
		}

		run.Domains = append(run.Domains, res)
		run.Requests += res.Requests
		for rec := range res.Records {
			run.Combined[rec] = struct{}{}
		}

		if res.Err != nil {
			run.Failed++
			c.logger.Warn().
				Str("domain", domain).
				Err(res.Err).
				Int("partial_records", res.Found()).
				Msg("Domain degraded")
		} else {
			c.logger.Info().
				Str("domain", domain).
				Int("records", res.Found()).
				Int("pages", res.Pages).
				Msg("Domain complete")
		}

		c.reporter.DomainDone(res)
	}

	run.Quota = quota
	return run, nil
}

// CollectDomain walks all pages for one domain. The quota value comes in
// as a parameter and leaves updated in the result, so the caller threads
// it through subsequent domains.
func (c *Collector) CollectDomain(ctx context.Context, domain string, quota ratelimit.Quota) DomainResult {
	res := DomainResult{
		Domain:  domain,
		Records: make(map[string]struct{}),
		Quota:   quota,
	}

	cursor := thc.FirstPage
	emptyStreak := 0
	total := 0

	for {
		page, err := c.fetchWithRetry(ctx, domain, cursor, &res)
		if err != nil {
			if thc.IsNotFound(err) {
				c.logger.Info().Str("domain", domain).Msg("No records found")
				break
			}
			res.Err = err
			break
		}

		res.Pages++
		pagesFetchedTotal.Inc()
		recordsSeenTotal.Add(float64(len(page.Records)))

		for _, rec := range page.Records {
			res.Records[rec] = struct{}{}
		}

		res.Quota = res.Quota.Merge(page.Quota)
		if remaining, ok := res.Quota.Remaining(); ok {
			quotaRemaining.Set(float64(remaining))
		}
		if page.Total > 0 {
			total = page.Total
		}

		c.reporter.PageFetched(PageStatus{
			Domain:   domain,
			Fetched:  res.Found(),
			Total:    total,
			Quota:    res.Quota,
			Requests: res.Requests,
			Pages:    res.Pages,
		})

		if len(page.Records) == 0 {
			emptyStreak++
			if emptyStreak >= maxEmptyStreak {
				c.logger.Debug().
					Str("domain", domain).
					Int("streak", emptyStreak).
					Msg("Consecutive empty pages, treating as end of data")
				break
			}
		} else {
			emptyStreak = 0
		}

		if !page.HasNext() {
			break
		}

		if res.Pages >= c.maxPages {
			c.logger.Warn().
				Str("domain", domain).
				Int("pages", res.Pages).
				Msg("Page ceiling reached, stopping pagination")
			break
		}

		cursor = page.Next

		delay := res.Quota.Delay()
		c.logger.Debug().
			Str("domain", domain).
			Dur("delay", delay).
			Msg("Waiting before next page")

		if err := c.sleep(ctx, delay); err != nil {
			res.Err = err
			break
		}
	}

	return res
}

// fetchWithRetry fetches one cursor, applying the single fixed-backoff
// retry on transient failures. Not-found and fatal failures return
// immediately; a failed retry comes back wrapped for the degraded result.
func (c *Collector) fetchWithRetry(ctx context.Context, domain string, cursor thc.Cursor, res *DomainResult) (*thc.Page, error) {
	res.Requests++
	page, err := c.fetcher.FetchPage(ctx, domain, cursor)
	if err == nil || !thc.IsRetryable(err) {
		return page, err
	}

	retriesTotal.Inc()
	c.logger.Warn().
		Str("domain", domain).
		Err(err).
		Dur("backoff", RetryBackoff).
		Msg("Transient failure, retrying once")

	if serr := c.sleep(ctx, RetryBackoff); serr != nil {
		return nil, serr
	}

	res.Requests++
	page, retryErr := c.fetcher.FetchPage(ctx, domain, cursor)
	if retryErr == nil {
		c.logger.Info().Str("domain", domain).Msg("Retry succeeded")
		return page, nil
	}

	retriesExhaustedTotal.Inc()
	return nil, fmt.Errorf("retry failed: %w", retryErr)
}

// SetSleep replaces the delay function (for testing).
func (c *Collector) SetSleep(fn func(ctx context.Context, d time.Duration) error) {
	c.sleep = fn
}

// sleepContext waits for d or until ctx is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// isCancellation reports whether err stems from the run context ending.
func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
