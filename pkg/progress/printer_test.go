package progress

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/reewardius/thc-recon/pkg/collector"
	"github.com/reewardius/thc-recon/pkg/ratelimit"
)

func disableColor(t *testing.T) {
	t.Helper()
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })
}

func newTestPrinter(enabled bool) (*Printer, *bytes.Buffer) {
	p := New(enabled)
	buf := &bytes.Buffer{}
	p.SetOutput(buf)
	return p, buf
}

func setOf(records ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(records))
	for _, rec := range records {
		set[rec] = struct{}{}
	}
	return set
}

func TestPrinter_PageFetched(t *testing.T) {
	disableColor(t)

	tests := []struct {
		name   string
		status collector.PageStatus
		want   []string
	}{
		{
			name: "known totals",
			status: collector.PageStatus{
				Domain:   "example.com",
				Fetched:  42,
				Total:    100,
				Quota:    ratelimit.QuotaFromRemaining(38),
				Requests: 3,
			},
			want: []string{"example.com", "42/100", "Remaining: 58", "Rate Limit: 38", "Requests: 3"},
		},
		{
			name: "unknown totals",
			status: collector.PageStatus{
				Domain:   "example.com",
				Fetched:  7,
				Requests: 1,
			},
			want: []string{"7/?", "Remaining: ?", "Rate Limit: ?"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, buf := newTestPrinter(true)
			p.PageFetched(tt.status)

			got := buf.String()
			for _, want := range tt.want {
				if !strings.Contains(got, want) {
					t.Errorf("status line = %q, want it to contain %q", got, want)
				}
			}
		})
	}
}

func TestPrinter_DomainDone(t *testing.T) {
	disableColor(t)

	tests := []struct {
		name   string
		result collector.DomainResult
		want   string
	}{
		{
			name: "success",
			result: collector.DomainResult{
				Domain:  "example.com",
				Records: setOf("a.example.com", "b.example.com"),
			},
			want: "Collected 2 subdomains for example.com",
		},
		{
			name: "no records",
			result: collector.DomainResult{
				Domain:  "absent.com",
				Records: setOf(),
			},
			want: "No records found for absent.com",
		},
		{
			name: "failure keeps partial count",
			result: collector.DomainResult{
				Domain:  "broken.com",
				Records: setOf("a.broken.com"),
				Err:     errFake,
			},
			want: "Failed broken.com: fake lookup failure (kept 1 subdomains)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, buf := newTestPrinter(true)
			p.DomainDone(tt.result)

			if got := buf.String(); !strings.Contains(got, tt.want) {
				t.Errorf("output = %q, want it to contain %q", got, tt.want)
			}
		})
	}
}

func TestPrinter_Disabled(t *testing.T) {
	disableColor(t)

	p, buf := newTestPrinter(false)

	p.Banner(2)
	p.DomainStart("example.com")
	p.PageFetched(collector.PageStatus{Domain: "example.com", Fetched: 1})
	p.DomainDone(collector.DomainResult{Domain: "example.com", Records: setOf("a.example.com")})

	if got := buf.String(); got != "" {
		t.Errorf("disabled printer output = %q, want none before the summary", got)
	}

	p.PrintSummary(Summary{Total: 1, OutputPath: "all_subs.txt"})

	if got := buf.String(); !strings.Contains(got, "Total unique subdomains: 1") {
		t.Errorf("summary = %q, want totals even when progress is disabled", got)
	}
}

func TestPrinter_Summary(t *testing.T) {
	disableColor(t)

	t.Run("with new records", func(t *testing.T) {
		p, buf := newTestPrinter(true)
		p.PrintSummary(Summary{
			Targets:    3,
			Failed:     1,
			Total:      57,
			NewCount:   4,
			OutputPath: "all_subs.txt",
			DeltaPath:  "new_subs.txt",
		})

		got := buf.String()
		for _, want := range []string{
			"SUMMARY",
			"Total unique subdomains: 57",
			"New subdomains: 4 (saved to: new_subs.txt)",
			"Saved to: all_subs.txt",
			"Failed targets: 1 of 3",
		} {
			if !strings.Contains(got, want) {
				t.Errorf("summary = %q, want it to contain %q", got, want)
			}
		}
	})

	t.Run("nothing new", func(t *testing.T) {
		p, buf := newTestPrinter(true)
		p.PrintSummary(Summary{Targets: 1, Total: 2, OutputPath: "all_subs.txt"})

		got := buf.String()
		if !strings.Contains(got, "No new subdomains found.") {
			t.Errorf("summary = %q, want the no-new notice", got)
		}
		if strings.Contains(got, "Failed targets") {
			t.Errorf("summary = %q, want no failure line for a clean run", got)
		}
	})
}

func TestPrinter_ProcessingHeader(t *testing.T) {
	disableColor(t)

	p, buf := newTestPrinter(true)
	p.Banner(2)
	p.DomainStart("first.com")
	p.DomainStart("second.com")

	got := buf.String()
	if !strings.Contains(got, "Processing target 1/2: first.com") {
		t.Errorf("output = %q, want numbered header for first.com", got)
	}
	if !strings.Contains(got, "Processing target 2/2: second.com") {
		t.Errorf("output = %q, want numbered header for second.com", got)
	}
}

var errFake = fakeError("fake lookup failure")

type fakeError string

func (e fakeError) Error() string { return string(e) }
