package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/averix/trustscan/internal/model"
)

const testBase = "https://t.example"

// stubFetcher serves canned bodies keyed by full URL and records every call.
type stubFetcher struct {
	mu    sync.Mutex
	pages map[string][]byte
	errs  map[string]error
	calls []string
}

func newStubFetcher() *stubFetcher {
	return &stubFetcher{
		pages: make(map[string][]byte),
		errs:  make(map[string]error),
	}
}

func (f *stubFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	f.mu.Unlock()

	if err, ok := f.errs[url]; ok {
		return nil, err
	}
	if body, ok := f.pages[url]; ok {
		return body, nil
	}
	return nil, ErrNotFound
}

func (f *stubFetcher) callCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == url {
			n++
		}
	}
	return n
}

func categoryParams(maxPages int) *model.SearchParams {
	return &model.SearchParams{
		SearchType: model.SearchCategory,
		CategoryID: "shops",
		MaxPages:   maxPages,
	}
}

// seedListing registers n pages of unique businesses under the category
// target, with the given reported total.
func seedListing(t *testing.T, f *stubFetcher, urls *URLBuilder, params *model.SearchParams, pages, perPage, total int) {
	t.Helper()
	for p := 1; p <= pages; p++ {
		var businesses []map[string]any
		for i := 0; i < perPage; i++ {
			id := fmt.Sprintf("biz-%d-%d", p, i)
			businesses = append(businesses, listingBusiness(id, fmt.Sprintf("Biz %d %d", p, i)))
		}
		f.pages[urls.ListingPage(params, p)] = listingPage(t, businesses, total)
	}
}

func TestDriver_MaxPagesLimitsRun(t *testing.T) {
	fetcher := newStubFetcher()
	urls := NewURLBuilder(testBase)
	params := categoryParams(2)
	seedListing(t, fetcher, urls, params, 5, 20, 100)

	d := NewDriver(fetcher, urls, nil, nil, 0, nil)
	rs, err := d.Run(context.Background(), params)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if rs.Status != model.StatusComplete {
		t.Errorf("status = %s, want complete", rs.Status)
	}
	if len(rs.Businesses) != 40 {
		t.Errorf("businesses = %d, want 40", len(rs.Businesses))
	}
	if rs.Pages != 2 {
		t.Errorf("pages = %d, want 2", rs.Pages)
	}
	if rs.Total != 100 {
		t.Errorf("total = %d, want 100", rs.Total)
	}
	if got := fetcher.callCount(urls.ListingPage(params, 3)); got != 0 {
		t.Errorf("page 3 fetched %d times, want 0", got)
	}
}

func TestDriver_StopsAtReportedTotal(t *testing.T) {
	fetcher := newStubFetcher()
	urls := NewURLBuilder(testBase)
	params := categoryParams(10)
	// 45 results: 3 pages of 20/20/5.
	seedListing(t, fetcher, urls, params, 2, 20, 45)
	var last []map[string]any
	for i := 0; i < 5; i++ {
		last = append(last, listingBusiness(fmt.Sprintf("biz-3-%d", i), fmt.Sprintf("Biz 3 %d", i)))
	}
	fetcher.pages[urls.ListingPage(params, 3)] = listingPage(t, last, 45)

	d := NewDriver(fetcher, urls, nil, nil, 0, nil)
	rs, err := d.Run(context.Background(), params)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(rs.Businesses) != 45 {
		t.Errorf("businesses = %d, want 45", len(rs.Businesses))
	}
	if rs.Pages != 3 {
		t.Errorf("pages = %d, want 3", rs.Pages)
	}
	if got := fetcher.callCount(urls.ListingPage(params, 4)); got != 0 {
		t.Errorf("page 4 fetched %d times, want 0", got)
	}
}

func TestDriver_FetchFailureKeepsPartialResults(t *testing.T) {
	fetcher := newStubFetcher()
	urls := NewURLBuilder(testBase)
	params := categoryParams(5)
	seedListing(t, fetcher, urls, params, 2, 20, 100)
	fetcher.errs[urls.ListingPage(params, 3)] = &RateLimitError{StatusCode: 429}

	d := NewDriver(fetcher, urls, nil, nil, 0, nil)
	rs, err := d.Run(context.Background(), params)

	var re *RunError
	if !errors.As(err, &re) {
		t.Fatalf("expected *RunError, got %v", err)
	}
	if re.Cause != CauseFetchExhausted {
		t.Errorf("cause = %s, want %s", re.Cause, CauseFetchExhausted)
	}
	if rs.Status != model.StatusPartial {
		t.Errorf("status = %s, want partial", rs.Status)
	}
	if len(rs.Businesses) != 40 {
		t.Errorf("partial businesses = %d, want 40 from pages 1-2", len(rs.Businesses))
	}
}

func TestDriver_DeduplicatesAcrossPages(t *testing.T) {
	fetcher := newStubFetcher()
	urls := NewURLBuilder(testBase)
	params := categoryParams(2)

	shared := listingBusiness("dup-1", "Twice Listed")
	fetcher.pages[urls.ListingPage(params, 1)] = listingPage(t, []map[string]any{
		shared,
		listingBusiness("a-1", "Alpha"),
	}, 40)
	fetcher.pages[urls.ListingPage(params, 2)] = listingPage(t, []map[string]any{
		shared,
		listingBusiness("b-1", "Beta"),
	}, 40)

	stats := &Stats{}
	d := NewDriver(fetcher, urls, nil, nil, 0, stats)
	rs, err := d.Run(context.Background(), params)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(rs.Businesses) != 3 {
		t.Fatalf("businesses = %d, want 3", len(rs.Businesses))
	}
	if got := stats.Duplicates.Load(); got != 1 {
		t.Errorf("duplicates = %d, want 1", got)
	}
	// First occurrence wins discovery order.
	if rs.Businesses[0].ID != "dup-1" {
		t.Errorf("first business = %s, want dup-1", rs.Businesses[0].ID)
	}
}

func TestDriver_FiltersApplied(t *testing.T) {
	fetcher := newStubFetcher()
	urls := NewURLBuilder(testBase)
	params := categoryParams(1)
	params.Filters.MinTrustScore = 4.0

	low := listingBusiness("low-1", "Low Score")
	low["trustScore"] = 2.1
	fetcher.pages[urls.ListingPage(params, 1)] = listingPage(t, []map[string]any{
		listingBusiness("hi-1", "High Score"),
		low,
	}, 2)

	stats := &Stats{}
	d := NewDriver(fetcher, urls, nil, nil, 0, stats)
	rs, err := d.Run(context.Background(), params)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(rs.Businesses) != 1 || rs.Businesses[0].ID != "hi-1" {
		t.Fatalf("expected only hi-1 to survive, got %+v", rs.Businesses)
	}
	if got := stats.Found.Load(); got != 2 {
		t.Errorf("found = %d, want 2", got)
	}
	if got := stats.Kept.Load(); got != 1 {
		t.Errorf("kept = %d, want 1", got)
	}
}

func TestDriver_RecordWithoutIdentifierSkipped(t *testing.T) {
	fetcher := newStubFetcher()
	urls := NewURLBuilder(testBase)
	params := categoryParams(1)

	fetcher.pages[urls.ListingPage(params, 1)] = listingPage(t, []map[string]any{
		{"displayName": "No Identity"},
		listingBusiness("ok-1", "Fine"),
	}, 2)

	stats := &Stats{}
	d := NewDriver(fetcher, urls, nil, nil, 0, stats)
	rs, err := d.Run(context.Background(), params)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(rs.Businesses) != 1 {
		t.Fatalf("businesses = %d, want 1", len(rs.Businesses))
	}
	if rs.Warnings != 1 {
		t.Errorf("warnings = %d, want 1", rs.Warnings)
	}
	if got := stats.Warnings.Load(); got != 1 {
		t.Errorf("stats warnings = %d, want 1", got)
	}
}

func TestDriver_MalformedPageDropped(t *testing.T) {
	fetcher := newStubFetcher()
	urls := NewURLBuilder(testBase)
	params := categoryParams(3)

	fetcher.pages[urls.ListingPage(params, 1)] = listingPage(t, []map[string]any{
		listingBusiness("a-1", "Alpha"),
	}, 60)
	fetcher.pages[urls.ListingPage(params, 2)] = []byte("<html>not the payload</html>")
	fetcher.pages[urls.ListingPage(params, 3)] = listingPage(t, []map[string]any{
		listingBusiness("c-1", "Gamma"),
	}, 60)

	stats := &Stats{}
	d := NewDriver(fetcher, urls, nil, nil, 0, stats)
	rs, err := d.Run(context.Background(), params)
	if err != nil {
		t.Fatalf("a dropped page is not a run failure: %v", err)
	}

	if rs.Status != model.StatusComplete {
		t.Errorf("status = %s, want complete", rs.Status)
	}
	// The unreadable page is skipped, never re-fetched, and the run
	// carries on into the pages after it.
	if len(rs.Businesses) != 2 {
		t.Errorf("businesses = %d, want 2 from pages 1 and 3", len(rs.Businesses))
	}
	if got := fetcher.callCount(urls.ListingPage(params, 2)); got != 1 {
		t.Errorf("page 2 fetched %d times, want 1", got)
	}
	if got := fetcher.callCount(urls.ListingPage(params, 3)); got != 1 {
		t.Errorf("page 3 fetched %d times, want 1", got)
	}
	if rs.Warnings != 1 {
		t.Errorf("warnings = %d, want 1 for the dropped page", rs.Warnings)
	}
	if got := stats.Warnings.Load(); got != 1 {
		t.Errorf("stats warnings = %d, want 1", got)
	}
}

func TestDriver_MalformedFirstPageDoesNotEndRun(t *testing.T) {
	fetcher := newStubFetcher()
	urls := NewURLBuilder(testBase)
	params := categoryParams(2)

	fetcher.pages[urls.ListingPage(params, 1)] = []byte("<html>not the payload</html>")
	fetcher.pages[urls.ListingPage(params, 2)] = listingPage(t, []map[string]any{
		listingBusiness("b-1", "Beta"),
	}, 40)

	d := NewDriver(fetcher, urls, nil, nil, 0, nil)
	rs, err := d.Run(context.Background(), params)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(rs.Businesses) != 1 {
		t.Errorf("businesses = %d, want 1 from page 2", len(rs.Businesses))
	}
	// Pagination metadata comes from the first readable page; a dropped
	// first page leaves the run bounded by the page budget.
	if rs.Pages != 2 {
		t.Errorf("pages = %d, want 2", rs.Pages)
	}
}

func TestDriver_AllPagesHonorsCap(t *testing.T) {
	fetcher := newStubFetcher()
	urls := NewURLBuilder(testBase)
	params := categoryParams(0)
	params.AllPages = true
	seedListing(t, fetcher, urls, params, 10, 20, 1000)

	d := NewDriver(fetcher, urls, nil, nil, 3, nil)
	rs, err := d.Run(context.Background(), params)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if rs.Pages != 3 {
		t.Errorf("pages = %d, want cap of 3", rs.Pages)
	}
	if len(rs.Businesses) != 60 {
		t.Errorf("businesses = %d, want 60", len(rs.Businesses))
	}
}

func TestDriver_CancellationStopsBetweenPages(t *testing.T) {
	fetcher := newStubFetcher()
	urls := NewURLBuilder(testBase)
	params := categoryParams(3)
	seedListing(t, fetcher, urls, params, 3, 20, 60)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := NewDriver(fetcher, urls, nil, nil, 0, nil)
	rs, err := d.Run(ctx, params)

	var re *RunError
	if !errors.As(err, &re) {
		t.Fatalf("expected *RunError, got %v", err)
	}
	if re.Cause != CauseCancelled {
		t.Errorf("cause = %s, want %s", re.Cause, CauseCancelled)
	}
	if rs == nil || rs.Status != model.StatusPartial {
		t.Errorf("expected partial result set, got %+v", rs)
	}
}

func TestDriver_DetailMode(t *testing.T) {
	fetcher := newStubFetcher()
	urls := NewURLBuilder(testBase)
	params := &model.SearchParams{
		SearchType: model.SearchDetail,
		Domain:     "acme.com",
	}

	fetcher.pages[urls.DetailPage("acme.com")] = detailPage(t, map[string]any{
		"id":              "biz-acme",
		"identifyingName": "acme.com",
		"displayName":     "Acme Corp",
		"trustScore":      4.6,
		"numberOfReviews": 300,
	})

	d := NewDriver(fetcher, urls, nil, nil, 0, nil)
	rs, err := d.Run(context.Background(), params)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if rs.Pages != 1 || rs.Total != 1 {
		t.Errorf("pages=%d total=%d, want 1/1", rs.Pages, rs.Total)
	}
	if len(rs.Businesses) != 1 || rs.Businesses[0].Domain != "acme.com" {
		t.Fatalf("businesses mismatch: %+v", rs.Businesses)
	}
}

func TestDriver_DetailAlwaysEnriches(t *testing.T) {
	fetcher := newStubFetcher()
	urls := NewURLBuilder(testBase)
	params := &model.SearchParams{
		SearchType: model.SearchDetail,
		Domain:     "acme.com",
		// IncludeReviews deliberately left false.
	}

	// Detail and review pages share the URL when no language is set, so a
	// combined payload serves both parses.
	combined := wrapNextData(t, map[string]any{
		"props": map[string]any{
			"pageProps": map[string]any{
				"businessUnit": map[string]any{
					"id":              "biz-acme",
					"identifyingName": "acme.com",
					"displayName":     "Acme Corp",
				},
				"reviews": []map[string]any{
					{"id": "r1", "rating": 5, "title": "Solid",
						"consumer": map[string]any{"isVerified": true}},
				},
			},
		},
	})
	fetcher.pages[urls.DetailPage("acme.com")] = combined

	enricher := NewEnricher(fetcher, urls, nil, "", 0, 1)
	d := NewDriver(fetcher, urls, enricher, nil, 0, nil)
	rs, err := d.Run(context.Background(), params)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(rs.Businesses) != 1 {
		t.Fatalf("businesses = %d, want 1", len(rs.Businesses))
	}
	if len(rs.Businesses[0].Reviews) != 1 {
		t.Errorf("detail result should carry reviews, got %d", len(rs.Businesses[0].Reviews))
	}
}

func TestDriver_DetailFilteredOutKeepsTotal(t *testing.T) {
	fetcher := newStubFetcher()
	urls := NewURLBuilder(testBase)
	params := &model.SearchParams{
		SearchType: model.SearchDetail,
		Domain:     "acme.com",
		Filters:    model.FilterConfig{MinTrustScore: 4.9},
	}

	fetcher.pages[urls.DetailPage("acme.com")] = detailPage(t, map[string]any{
		"id":              "biz-acme",
		"identifyingName": "acme.com",
		"displayName":     "Acme Corp",
		"trustScore":      3.1,
	})

	d := NewDriver(fetcher, urls, nil, nil, 0, nil)
	rs, err := d.Run(context.Background(), params)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(rs.Businesses) != 0 {
		t.Errorf("businesses = %d, want 0 after filtering", len(rs.Businesses))
	}
	if rs.Total != 1 {
		t.Errorf("total = %d, want 1 for a resolved page", rs.Total)
	}
	if rs.Pages != 1 {
		t.Errorf("pages = %d, want 1", rs.Pages)
	}
}

func TestDriver_DetailNotFound(t *testing.T) {
	fetcher := newStubFetcher()
	urls := NewURLBuilder(testBase)
	params := &model.SearchParams{
		SearchType: model.SearchDetail,
		Domain:     "missing.example",
	}

	d := NewDriver(fetcher, urls, nil, nil, 0, nil)
	rs, err := d.Run(context.Background(), params)
	if err != nil {
		t.Fatalf("not-found must not fail the run: %v", err)
	}

	if rs.Status != model.StatusComplete {
		t.Errorf("status = %s, want complete", rs.Status)
	}
	if len(rs.Businesses) != 0 || rs.Total != 0 {
		t.Errorf("expected empty result set, got %+v", rs)
	}
	if rs.Pages != 1 {
		t.Errorf("pages = %d, want 1", rs.Pages)
	}
}

func TestDriver_VerifiedOnlyReappliedAfterEnrichment(t *testing.T) {
	fetcher := newStubFetcher()
	urls := NewURLBuilder(testBase)
	params := categoryParams(1)
	params.Filters.VerifiedOnly = true
	params.IncludeReviews = true

	fetcher.pages[urls.ListingPage(params, 1)] = listingPage(t, []map[string]any{
		listingBusiness("ver-1", "Verified Biz"),
		listingBusiness("unver-1", "Unverified Biz"),
	}, 2)

	fetcher.pages[urls.ReviewPage("verified-biz.com", "")] = reviewPage(t, []map[string]any{
		{"id": "r1", "rating": 5, "consumer": map[string]any{"isVerified": true}},
	}, nil)
	fetcher.pages[urls.ReviewPage("unverified-biz.com", "")] = reviewPage(t, []map[string]any{
		{"id": "r2", "rating": 4, "consumer": map[string]any{"isVerified": false}},
	}, nil)

	stats := &Stats{}
	enricher := NewEnricher(fetcher, urls, nil, "", 0, 2)
	d := NewDriver(fetcher, urls, enricher, nil, 0, stats)
	rs, err := d.Run(context.Background(), params)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(rs.Businesses) != 1 {
		t.Fatalf("businesses = %d, want 1 after re-filter", len(rs.Businesses))
	}
	if rs.Businesses[0].ID != "ver-1" {
		t.Errorf("survivor = %s, want ver-1", rs.Businesses[0].ID)
	}
	if got := stats.Kept.Load(); got != 1 {
		t.Errorf("kept = %d, want 1", got)
	}
}

func TestDriver_Idempotence(t *testing.T) {
	fetcher := newStubFetcher()
	urls := NewURLBuilder(testBase)
	params := categoryParams(2)
	seedListing(t, fetcher, urls, params, 2, 20, 40)

	run := func() *model.ResultSet {
		d := NewDriver(fetcher, urls, nil, nil, 0, nil)
		rs, err := d.Run(context.Background(), params)
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		return rs
	}

	first, second := run(), run()

	a, err := json.Marshal(first)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	b, err := json.Marshal(second)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(a) != string(b) {
		t.Fatal("identical inputs produced different result sets")
	}
}
