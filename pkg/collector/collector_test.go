package collector

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/reewardius/thc-recon/internal/testutil"
	"github.com/reewardius/thc-recon/pkg/ratelimit"
	"github.com/reewardius/thc-recon/pkg/thc"
)

// sleepRecorder captures requested delays instead of waiting them out.
type sleepRecorder struct {
	delays []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return ctx.Err()
}

// newTestCollector wires a collector to the mock server with recorded
// sleeps.
func newTestCollector(t *testing.T, mock *testutil.MockLookup, cfg Config) (*Collector, *sleepRecorder) {
	t.Helper()

	clientCfg := thc.DefaultConfig()
	clientCfg.BaseURL = mock.URL()
	clientCfg.Timeout = 5 * time.Second

	fetcher, err := thc.New(clientCfg)
	if err != nil {
		t.Fatalf("thc.New() error = %v", err)
	}

	col, err := New(fetcher, cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	rec := &sleepRecorder{}
	col.SetSleep(rec.sleep)
	return col, rec
}

func hasRecord(set map[string]struct{}, rec string) bool {
	_, ok := set[rec]
	return ok
}

func TestNew_Validation(t *testing.T) {
	mock := testutil.NewMockLookup()
	defer mock.Close()

	clientCfg := thc.DefaultConfig()
	clientCfg.BaseURL = mock.URL()
	fetcher, err := thc.New(clientCfg)
	if err != nil {
		t.Fatalf("thc.New() error = %v", err)
	}

	if _, err := New(nil, Config{}); err == nil {
		t.Error("New(nil fetcher) expected error, got nil")
	}

	if _, err := New(fetcher, Config{MaxPages: -1}); err == nil {
		t.Error("New(negative max pages) expected error, got nil")
	}

	col, err := New(fetcher, Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if col.maxPages != DefaultMaxPages {
		t.Errorf("maxPages = %d, want %d", col.maxPages, DefaultMaxPages)
	}
}

func TestCollectDomain_UnionAcrossPages(t *testing.T) {
	mock := testutil.NewMockLookup()
	defer mock.Close()

	// b.example.com appears on two pages; the result must collapse it.
	mock.ScriptDomain("example.com",
		testutil.LookupPage{Records: []string{"a.example.com", "b.example.com"}, Total: 5, Remaining: 80},
		testutil.LookupPage{Records: []string{"b.example.com", "c.example.com"}, Remaining: 79},
		testutil.LookupPage{Records: []string{"d.example.com"}, Remaining: 78},
	)

	col, _ := newTestCollector(t, mock, Config{})

	res := col.CollectDomain(context.Background(), "example.com", ratelimit.Quota{})
	if res.Err != nil {
		t.Fatalf("CollectDomain() error = %v", res.Err)
	}

	if res.Found() != 4 {
		t.Errorf("Found() = %d, want 4 (set union, duplicates collapsed)", res.Found())
	}
	for _, rec := range []string{"a.example.com", "b.example.com", "c.example.com", "d.example.com"} {
		if !hasRecord(res.Records, rec) {
			t.Errorf("Records missing %q", rec)
		}
	}

	if res.Pages != 3 {
		t.Errorf("Pages = %d, want 3", res.Pages)
	}
	if res.Requests != 3 {
		t.Errorf("Requests = %d, want 3", res.Requests)
	}
}

func TestCollectDomain_QuotaDrivesDelays(t *testing.T) {
	mock := testutil.NewMockLookup()
	defer mock.Close()

	// Page three omits the rate limit line; the previous report carries.
	mock.ScriptDomain("example.com",
		testutil.LookupPage{Records: []string{"a.example.com"}, Remaining: 75},
		testutil.LookupPage{Records: []string{"b.example.com"}, Remaining: 30},
		testutil.LookupPage{Records: []string{"c.example.com"}, Remaining: -1},
	)

	col, rec := newTestCollector(t, mock, Config{})

	res := col.CollectDomain(context.Background(), "example.com", ratelimit.Quota{})
	if res.Err != nil {
		t.Fatalf("CollectDomain() error = %v", res.Err)
	}

	wantDelays := []time.Duration{ratelimit.DelayFast, ratelimit.DelaySteady}
	if len(rec.delays) != len(wantDelays) {
		t.Fatalf("recorded delays = %v, want %v", rec.delays, wantDelays)
	}
	for i, want := range wantDelays {
		if rec.delays[i] != want {
			t.Errorf("delay[%d] = %v, want %v", i, rec.delays[i], want)
		}
	}

	if remaining, ok := res.Quota.Remaining(); !ok || remaining != 30 {
		t.Errorf("final quota = %d, %v, want 30, true", remaining, ok)
	}
}

func TestCollectDomain_NotFound(t *testing.T) {
	mock := testutil.NewMockLookup()
	defer mock.Close()

	col, rec := newTestCollector(t, mock, Config{})

	res := col.CollectDomain(context.Background(), "absent.example.com", ratelimit.Quota{})

	if res.Err != nil {
		t.Errorf("CollectDomain() error = %v, want nil for a 404", res.Err)
	}
	if res.Found() != 0 {
		t.Errorf("Found() = %d, want 0", res.Found())
	}
	if len(rec.delays) != 0 {
		t.Errorf("recorded delays = %v, want none", rec.delays)
	}
}

func TestCollectDomain_RetrySucceeds(t *testing.T) {
	mock := testutil.NewMockLookup()
	defer mock.Close()

	mock.SetHandler("/flaky.example.com", testutil.FlakyHandler(1, http.StatusServiceUnavailable,
		func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, testutil.RenderPage(testutil.LookupPage{
				Records:   []string{"a.flaky.example.com"},
				Remaining: 40,
			}, ""))
		}))

	col, rec := newTestCollector(t, mock, Config{})

	res := col.CollectDomain(context.Background(), "flaky.example.com", ratelimit.Quota{})
	if res.Err != nil {
		t.Fatalf("CollectDomain() error = %v, want transparent recovery", res.Err)
	}

	if res.Found() != 1 {
		t.Errorf("Found() = %d, want 1", res.Found())
	}
	if res.Requests != 2 {
		t.Errorf("Requests = %d, want 2 (initial attempt plus retry)", res.Requests)
	}
	if len(rec.delays) != 1 || rec.delays[0] != RetryBackoff {
		t.Errorf("recorded delays = %v, want [%v]", rec.delays, RetryBackoff)
	}
}

func TestCollectDomain_RetryExhausted(t *testing.T) {
	mock := testutil.NewMockLookup()
	defer mock.Close()

	mock.SetResponse("/down.example.com", testutil.NewServerErrorResponse())

	col, rec := newTestCollector(t, mock, Config{})

	res := col.CollectDomain(context.Background(), "down.example.com", ratelimit.Quota{})

	if res.Err == nil {
		t.Fatal("CollectDomain() error = nil, want degraded result")
	}
	if !res.Degraded() {
		t.Error("Degraded() = false, want true")
	}
	if !thc.IsRetryable(res.Err) {
		t.Errorf("recorded error should keep its class: %v", res.Err)
	}
	if res.Requests != 2 {
		t.Errorf("Requests = %d, want 2 (one bounded retry, not a loop)", res.Requests)
	}
	if len(rec.delays) != 1 || rec.delays[0] != RetryBackoff {
		t.Errorf("recorded delays = %v, want [%v]", rec.delays, RetryBackoff)
	}
}

func TestCollectDomain_FatalKeepsPartial(t *testing.T) {
	mock := testutil.NewMockLookup()
	defer mock.Close()

	mock.SetHandler("/fatal.example.com", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "" {
			next := mock.URL() + "/fatal.example.com?page=2"
			fmt.Fprint(w, testutil.RenderPage(testutil.LookupPage{
				Records:   []string{"keep.fatal.example.com"},
				Remaining: 60,
			}, next))
			return
		}
		w.WriteHeader(http.StatusForbidden)
	})

	col, _ := newTestCollector(t, mock, Config{})

	res := col.CollectDomain(context.Background(), "fatal.example.com", ratelimit.Quota{})

	if res.Err == nil {
		t.Fatal("CollectDomain() error = nil, want fatal failure recorded")
	}
	if res.Found() != 1 || !hasRecord(res.Records, "keep.fatal.example.com") {
		t.Errorf("Records = %v, want the page collected before the failure", res.Records)
	}
	if res.Requests != 2 {
		t.Errorf("Requests = %d, want 2 (fatal failures are not retried)", res.Requests)
	}
}

func TestCollectDomain_ConsecutiveEmptyPagesStop(t *testing.T) {
	mock := testutil.NewMockLookup()
	defer mock.Close()

	// The API keeps claiming more pages but stops returning content.
	mock.ScriptDomain("example.com",
		testutil.LookupPage{Records: []string{"a.example.com"}, Remaining: 50},
		testutil.LookupPage{Remaining: 49},
		testutil.LookupPage{Remaining: 48, Continue: true},
	)

	col, _ := newTestCollector(t, mock, Config{})

	res := col.CollectDomain(context.Background(), "example.com", ratelimit.Quota{})
	if res.Err != nil {
		t.Fatalf("CollectDomain() error = %v", res.Err)
	}

	if res.Pages != 3 {
		t.Errorf("Pages = %d, want 3 (stop after the second consecutive empty page)", res.Pages)
	}
	if res.Found() != 1 {
		t.Errorf("Found() = %d, want 1", res.Found())
	}
}

func TestCollectDomain_SingleEmptyPageContinues(t *testing.T) {
	mock := testutil.NewMockLookup()
	defer mock.Close()

	// One empty page in the middle must not end the walk.
	mock.ScriptDomain("example.com",
		testutil.LookupPage{Records: []string{"a.example.com"}, Remaining: 50},
		testutil.LookupPage{Remaining: 49},
		testutil.LookupPage{Records: []string{"b.example.com"}, Remaining: 48},
	)

	col, _ := newTestCollector(t, mock, Config{})

	res := col.CollectDomain(context.Background(), "example.com", ratelimit.Quota{})
	if res.Err != nil {
		t.Fatalf("CollectDomain() error = %v", res.Err)
	}

	if res.Found() != 2 {
		t.Errorf("Found() = %d, want 2", res.Found())
	}
	if res.Pages != 3 {
		t.Errorf("Pages = %d, want 3", res.Pages)
	}
}

func TestCollectDomain_PageCeiling(t *testing.T) {
	mock := testutil.NewMockLookup()
	defer mock.Close()

	// Pathological feed: every page is full and advertises another.
	mock.SetHandler("/big.example.com", func(w http.ResponseWriter, r *http.Request) {
		n, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if n == 0 {
			n = 1
		}
		next := fmt.Sprintf("%s/big.example.com?page=%d", mock.URL(), n+1)
		fmt.Fprint(w, testutil.RenderPage(testutil.LookupPage{
			Records:   []string{fmt.Sprintf("h%d.big.example.com", n)},
			Remaining: 90,
		}, next))
	})

	col, _ := newTestCollector(t, mock, Config{MaxPages: 5})

	res := col.CollectDomain(context.Background(), "big.example.com", ratelimit.Quota{})
	if res.Err != nil {
		t.Fatalf("CollectDomain() error = %v", res.Err)
	}

	if res.Pages != 5 {
		t.Errorf("Pages = %d, want 5 (hard ceiling)", res.Pages)
	}
	if res.Found() != 5 {
		t.Errorf("Found() = %d, want 5", res.Found())
	}
}

func TestRun_FailureContainment(t *testing.T) {
	mock := testutil.NewMockLookup()
	defer mock.Close()

	mock.ScriptDomain("first.com", testutil.LookupPage{
		Records: []string{"a.first.com"}, Remaining: 70,
	})
	mock.SetResponse("/broken.com", testutil.NewServerErrorResponse())
	mock.ScriptDomain("third.com", testutil.LookupPage{
		Records: []string{"a.third.com"}, Remaining: 66,
	})

	col, _ := newTestCollector(t, mock, Config{})

	run, err := col.Run(context.Background(), []string{"first.com", "broken.com", "third.com"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(run.Domains) != 3 {
		t.Fatalf("len(Domains) = %d, want 3", len(run.Domains))
	}
	if run.Failed != 1 {
		t.Errorf("Failed = %d, want 1", run.Failed)
	}
	if run.Domains[1].Err == nil {
		t.Error("Domains[1].Err = nil, want degraded result for broken.com")
	}
	if run.Domains[2].Err != nil {
		t.Errorf("Domains[2].Err = %v, want third.com processed cleanly", run.Domains[2].Err)
	}

	if len(run.Combined) != 2 {
		t.Errorf("len(Combined) = %d, want 2", len(run.Combined))
	}
	if !hasRecord(run.Combined, "a.first.com") || !hasRecord(run.Combined, "a.third.com") {
		t.Errorf("Combined = %v, want records from both healthy domains", run.Combined)
	}
}

func TestRun_NotFoundDoesNotStopRun(t *testing.T) {
	mock := testutil.NewMockLookup()
	defer mock.Close()

	mock.ScriptDomain("second.com", testutil.LookupPage{
		Records: []string{"a.second.com"}, Remaining: 50,
	})

	col, _ := newTestCollector(t, mock, Config{})

	run, err := col.Run(context.Background(), []string{"absent.com", "second.com"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if run.Domains[0].Err != nil {
		t.Errorf("Domains[0].Err = %v, want nil (404 is not an error)", run.Domains[0].Err)
	}
	if run.Domains[0].Found() != 0 {
		t.Errorf("Domains[0].Found() = %d, want 0", run.Domains[0].Found())
	}
	if run.Failed != 0 {
		t.Errorf("Failed = %d, want 0", run.Failed)
	}
	if !hasRecord(run.Combined, "a.second.com") {
		t.Error("second.com was not processed after the 404")
	}
}

func TestRun_DedupesTargets(t *testing.T) {
	mock := testutil.NewMockLookup()
	defer mock.Close()

	mock.ScriptDomain("example.com", testutil.LookupPage{
		Records: []string{"a.example.com"}, Remaining: 50,
	})

	col, _ := newTestCollector(t, mock, Config{})

	run, err := col.Run(context.Background(), []string{"example.com", "example.com"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(run.Domains) != 1 {
		t.Errorf("len(Domains) = %d, want 1 (duplicates collapsed)", len(run.Domains))
	}
	if mock.GetRequestCount() != 1 {
		t.Errorf("request count = %d, want 1", mock.GetRequestCount())
	}
}

func TestRun_NoTargets(t *testing.T) {
	mock := testutil.NewMockLookup()
	defer mock.Close()

	col, _ := newTestCollector(t, mock, Config{})

	if _, err := col.Run(context.Background(), nil); err == nil {
		t.Error("Run() expected error for empty target list, got nil")
	}
}

func TestRun_QuotaCarriesAcrossDomains(t *testing.T) {
	mock := testutil.NewMockLookup()
	defer mock.Close()

	// first.com reports a nearly exhausted quota; second.com never
	// reports one, so its page delay must come from the carried value.
	mock.ScriptDomain("first.com", testutil.LookupPage{
		Records: []string{"a.first.com"}, Remaining: 5,
	})
	mock.ScriptDomain("second.com",
		testutil.LookupPage{Records: []string{"a.second.com"}, Remaining: -1},
		testutil.LookupPage{Records: []string{"b.second.com"}, Remaining: -1},
	)

	col, rec := newTestCollector(t, mock, Config{})

	run, err := col.Run(context.Background(), []string{"first.com", "second.com"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(rec.delays) != 1 || rec.delays[0] != ratelimit.DelayCrawl {
		t.Errorf("recorded delays = %v, want [%v] (carried quota governs)", rec.delays, ratelimit.DelayCrawl)
	}

	if remaining, ok := run.Quota.Remaining(); !ok || remaining != 5 {
		t.Errorf("run quota = %d, %v, want 5, true", remaining, ok)
	}
}

func TestRun_ContextCancelled(t *testing.T) {
	mock := testutil.NewMockLookup()
	defer mock.Close()

	mock.ScriptDomain("example.com", testutil.LookupPage{
		Records: []string{"a.example.com"}, Remaining: 50,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	col, _ := newTestCollector(t, mock, Config{})

	if _, err := col.Run(ctx, []string{"example.com"}); err == nil {
		t.Error("Run() expected error for cancelled context, got nil")
	}
}
