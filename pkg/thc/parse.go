package thc

import (
	"bufio"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/reewardius/thc-recon/pkg/ansi"
	"github.com/reewardius/thc-recon/pkg/ratelimit"
)

// Cursor is an opaque pagination position. The zero value requests the
// first page; afterwards it carries the continuation URL the API reported.
type Cursor string

// FirstPage is the initial cursor for every domain.
const FirstPage Cursor = ""

// Page is one fetched page of lookup results.
type Page struct {
	// Records are the subdomain names on this page, trimmed, in response
	// order. May be empty.
	Records []string

	// Next is the continuation cursor, empty when no more pages remain.
	Next Cursor

	// Total is the API-reported total entry count, 0 when not reported.
	// Display only; termination never depends on it.
	Total int

	// Quota is the remaining-request count reported on this page, the
	// zero value when the response carried no rate limit line.
	Quota ratelimit.Quota
}

// HasNext reports whether the API advertised another page.
func (p *Page) HasNext() bool {
	return p.Next != ""
}

// Metadata line patterns, matched after ANSI stripping.
var (
	// entriesPattern captures the total from ";;Entries: 100/245".
	entriesPattern = regexp.MustCompile(`;;Entries:\s*\d+/(\d+)`)

	// rateLimitPattern captures the remaining count from the rate limit
	// line, e.g. ";;Rate Limit: You can make 42 more requests ...".
	rateLimitPattern = regexp.MustCompile(`You can make (\d+)`)
)

// Parse interprets one lookup response body. Every line is ANSI-stripped
// and trimmed first. Lines starting with ";;" are metadata: the entry
// total, the remaining-request quota, and the continuation URL; all other
// metadata lines are ignored. Every remaining non-empty line is one
// subdomain record. A continuation URL is honored only when it points
// back at base, so a response cannot redirect the walk to a foreign host.
func Parse(body, base string) (*Page, error) {
	if strings.ContainsRune(body, 0) || !utf8.ValidString(body) {
		return nil, fmt.Errorf("response body is not text")
	}

	page := &Page{}
	basePrefix := strings.TrimRight(base, "/") + "/"

	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := strings.TrimSpace(ansi.Strip(scanner.Text()))
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, ";;") {
			switch {
			case strings.HasPrefix(line, ";;Entries:"):
				if m := entriesPattern.FindStringSubmatch(line); m != nil {
					page.Total, _ = strconv.Atoi(m[1])
				}
			case strings.HasPrefix(line, ";;Rate Limit"):
				if m := rateLimitPattern.FindStringSubmatch(line); m != nil {
					n, _ := strconv.Atoi(m[1])
					page.Quota = ratelimit.QuotaFromRemaining(n)
				}
			case strings.HasPrefix(line, ";;Next Page:"):
				next := strings.TrimSpace(strings.TrimPrefix(line, ";;Next Page:"))
				if strings.HasPrefix(next, basePrefix) {
					page.Next = Cursor(next)
				}
			}
			continue
		}

		page.Records = append(page.Records, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan response: %w", err)
	}

	return page, nil
}
