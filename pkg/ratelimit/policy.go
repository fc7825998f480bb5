// Package ratelimit maps the lookup API's reported remaining-request quota
// to a request cadence. The quota travels as an explicit value through the
// collection loop (parameter in, updated value out); there is no shared
// tracker state and nothing is persisted across runs.
package ratelimit

import (
	"strconv"
	"time"
)

// Thresholds for the remaining-request count, inclusive of the lower bound.
const (
	// ThresholdFast is the remaining count at or above which the API has
	// plenty of headroom and requests run at the fastest cadence.
	ThresholdFast = 50

	// ThresholdSteady is the remaining count at or above which requests
	// run at a moderate cadence.
	ThresholdSteady = 20

	// ThresholdSlow is the remaining count at or above which requests
	// slow to one per second. Below it the crawl cadence applies.
	ThresholdSlow = 10
)

// Delays per threshold bucket.
const (
	// DelayFast applies at or above ThresholdFast.
	DelayFast = 100 * time.Millisecond

	// DelaySteady applies at or above ThresholdSteady.
	DelaySteady = 500 * time.Millisecond

	// DelaySlow applies at or above ThresholdSlow.
	DelaySlow = 1 * time.Second

	// DelayCrawl applies below ThresholdSlow, and whenever the API has
	// not reported a quota at all: the safest assumption is the slowest
	// cadence, not unlimited capacity.
	DelayCrawl = 2200 * time.Millisecond
)

// Quota is the most recently observed remaining-request count. The zero
// value means the API has not reported one yet. Quota is passed by value:
// the collection loop feeds each page's report through Merge and carries
// the result forward.
type Quota struct {
	remaining int
	known     bool
}

// QuotaFromRemaining returns the Quota for a reported remaining count.
func QuotaFromRemaining(n int) Quota {
	return Quota{remaining: n, known: true}
}

// Merge adopts the other quota when it carries a report and keeps q
// otherwise, so pages without a rate limit line leave the cadence as is.
func (q Quota) Merge(o Quota) Quota {
	if o.known {
		return o
	}
	return q
}

// Remaining reports the last observed count and whether one was observed.
func (q Quota) Remaining() (int, bool) {
	return q.remaining, q.known
}

// Known reports whether the API has reported a quota yet.
func (q Quota) Known() bool {
	return q.known
}

// Delay returns how long to wait before the next request.
func (q Quota) Delay() time.Duration {
	switch {
	case !q.known:
		return DelayCrawl
	case q.remaining >= ThresholdFast:
		return DelayFast
	case q.remaining >= ThresholdSteady:
		return DelaySteady
	case q.remaining >= ThresholdSlow:
		return DelaySlow
	default:
		return DelayCrawl
	}
}

// String renders the quota for status lines, "?" when never reported.
func (q Quota) String() string {
	if !q.known {
		return "?"
	}
	return strconv.Itoa(q.remaining)
}
