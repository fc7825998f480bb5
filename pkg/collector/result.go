package collector

import (
	"github.com/reewardius/thc-recon/pkg/ratelimit"
)

// DomainResult is the outcome of paginating one domain.
type DomainResult struct {
	// Domain is the target this result belongs to.
	Domain string

	// Records is the unique set of subdomain names collected for the
	// domain. Partial when Err is set.
	Records map[string]struct{}

	// Pages is the number of pages successfully fetched.
	Pages int

	// Requests is the number of requests issued, retries included.
	Requests int

	// Quota is the quota value after this domain, carried forward by
	// the orchestrator into the next domain.
	Quota ratelimit.Quota

	// Err records why pagination was cut short. Nil for a complete
	// walk; a domain with no records is complete, not degraded.
	Err error
}

// Found returns the number of unique records collected.
func (r *DomainResult) Found() int {
	return len(r.Records)
}

// Degraded reports whether pagination was cut short by a failure.
func (r *DomainResult) Degraded() bool {
	return r.Err != nil
}

// RunResult is the combined outcome across all targets.
type RunResult struct {
	// Domains holds one result per target, in processing order.
	Domains []DomainResult

	// Combined is the union of every domain's records: the run's
	// current set.
	Combined map[string]struct{}

	// Requests is the total number of requests issued.
	Requests int

	// Failed is the number of degraded domains.
	Failed int

	// Quota is the last quota value observed in the run.
	Quota ratelimit.Quota
}

// PageStatus is a progress snapshot taken after one page fetch.
type PageStatus struct {
	Domain   string
	Fetched  int // unique records so far for this domain
	Total    int // API-reported total, 0 when unknown
	Quota    ratelimit.Quota
	Requests int // requests issued for this domain so far
	Pages    int
}

// Reporter receives observational progress callbacks. Implementations
// must not mutate collection state; errors and summaries are reported
// elsewhere.
type Reporter interface {
	DomainStart(domain string)
	PageFetched(st PageStatus)
	DomainDone(res DomainResult)
}

// nopReporter is used when no Reporter is configured.
type nopReporter struct{}

func (nopReporter) DomainStart(string) {}

func (nopReporter) PageFetched(PageStatus) {}

func (nopReporter) DomainDone(DomainResult) {}
