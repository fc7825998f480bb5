// Package progress renders the live collection status line and the
// final run summary on stdout.
package progress

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/reewardius/thc-recon/pkg/collector"
)

var (
	labelColor  = color.New(color.FgHiBlack).SprintFunc()
	valueColor  = color.New(color.FgGreen).SprintFunc()
	quotaColor  = color.New(color.FgYellow).SprintFunc()
	targetColor = color.New(color.FgCyan, color.Bold).SprintFunc()
	headerColor = color.New(color.FgCyan, color.Bold).SprintFunc()
	failColor   = color.New(color.FgRed).SprintFunc()
)

const rule = "================================================================================"

// Printer implements collector.Reporter with a carriage-return status
// line. A disabled printer silences everything except PrintSummary, so
// the default run surfaces final counts only.
type Printer struct {
	mu       sync.Mutex
	out      io.Writer
	enabled  bool
	total    int
	index    int
	started  time.Time
	lineOpen bool
}

// New creates a printer writing to stdout. Progress output appears only
// when enabled.
func New(enabled bool) *Printer {
	return &Printer{
		out:     os.Stdout,
		enabled: enabled,
		started: time.Now(),
	}
}

// SetOutput redirects printing (for testing).
func (p *Printer) SetOutput(w io.Writer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.out = w
}

// Banner prints the run header and records the target count for the
// per-domain progress lines.
func (p *Printer) Banner(targets int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.total = targets
	if !p.enabled {
		return
	}

	fmt.Fprintln(p.out, headerColor(rule))
	fmt.Fprintln(p.out, headerColor("Subdomain Collector - ip.thc.org API"))
	fmt.Fprintln(p.out, headerColor(rule))
}

// DomainStart announces the next target.
func (p *Printer) DomainStart(domain string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.index++
	if !p.enabled {
		return
	}

	p.closeLine()
	if p.total > 0 {
		fmt.Fprintf(p.out, "Processing target %d/%d: %s\n", p.index, p.total, targetColor(domain))
	} else {
		fmt.Fprintf(p.out, "Processing target: %s\n", targetColor(domain))
	}
}

// PageFetched redraws the status line in place.
func (p *Printer) PageFetched(st collector.PageStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.enabled {
		return
	}

	total := "?"
	remaining := "?"
	if st.Total > 0 {
		total = strconv.Itoa(st.Total)
		left := st.Total - st.Fetched
		if left < 0 {
			left = 0
		}
		remaining = strconv.Itoa(left)
	}

	line := fmt.Sprintf("%s %s  |  %s %s/%s  (%s %s)  |  %s %s  |  %s %d",
		labelColor("Target:"), st.Domain,
		labelColor("Fetched:"), valueColor(st.Fetched), valueColor(total),
		labelColor("Remaining:"), valueColor(remaining),
		labelColor("Rate Limit:"), quotaColor(st.Quota.String()),
		labelColor("Requests:"), st.Requests)

	fmt.Fprintf(p.out, "\r\x1b[K%s", line)
	p.lineOpen = true
}

// DomainDone closes the status line and prints the per-domain result.
func (p *Printer) DomainDone(res collector.DomainResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.enabled {
		return
	}

	p.closeLine()
	switch {
	case res.Err != nil:
		fmt.Fprintln(p.out, failColor(fmt.Sprintf("Failed %s: %v (kept %d subdomains)",
			res.Domain, res.Err, res.Found())))
	case res.Found() == 0:
		fmt.Fprintln(p.out, labelColor(fmt.Sprintf("No records found for %s", res.Domain)))
	default:
		fmt.Fprintln(p.out, valueColor(fmt.Sprintf("Collected %d subdomains for %s",
			res.Found(), res.Domain)))
	}
}

// Summary describes the completed run for the final report.
type Summary struct {
	Targets    int
	Failed     int
	Total      int
	NewCount   int
	OutputPath string
	DeltaPath  string
}

// PrintSummary prints the final block. It prints even when the printer
// is disabled; callers decide whether to call it at all.
func (p *Printer) PrintSummary(s Summary) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closeLine()
	elapsed := time.Since(p.started).Round(100 * time.Millisecond)

	fmt.Fprintln(p.out, headerColor(rule))
	fmt.Fprintln(p.out, color.New(color.Bold).Sprint("SUMMARY"))
	fmt.Fprintln(p.out, headerColor(rule))
	fmt.Fprintln(p.out, valueColor(fmt.Sprintf("Total unique subdomains: %d", s.Total)))

	if s.NewCount > 0 {
		fmt.Fprintln(p.out, valueColor(fmt.Sprintf("New subdomains: %d (saved to: %s)", s.NewCount, s.DeltaPath)))
	} else {
		fmt.Fprintln(p.out, quotaColor("No new subdomains found."))
	}

	fmt.Fprintf(p.out, "Saved to: %s\n", s.OutputPath)
	if s.Failed > 0 {
		fmt.Fprintln(p.out, failColor(fmt.Sprintf("Failed targets: %d of %d", s.Failed, s.Targets)))
	}
	fmt.Fprintf(p.out, "Completed in %s\n", formatDuration(elapsed))
	fmt.Fprintln(p.out, headerColor(rule))
}

// closeLine terminates an open status line. Callers must hold the
// mutex.
func (p *Printer) closeLine() {
	if p.lineOpen {
		fmt.Fprintln(p.out)
		p.lineOpen = false
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}

var _ collector.Reporter = (*Printer)(nil)
