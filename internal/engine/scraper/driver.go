package scraper

import (
	"context"
	"errors"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/averix/trustscan/internal/model"
)

// Fetcher performs one page request with proxy/retry awareness. Retries
// happen inside; the driver treats any returned error as exhaustion.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Stats tracks live progress across a run. Counters are atomic so the
// progress reporter and the TUI can read them while the run is going.
type Stats struct {
	PagesTotal   atomic.Int64 // derived total, 0 until the first page reports it
	PagesFetched atomic.Int64
	Found        atomic.Int64
	Kept         atomic.Int64
	Duplicates   atomic.Int64
	Warnings     atomic.Int64
	Errors       atomic.Int64
}

// Driver orchestrates repeated fetch, parse, normalize, filter cycles
// across result pages until a termination condition, deduplicating by
// business identifier.
type Driver struct {
	fetcher  Fetcher
	urls     *URLBuilder
	enricher *Enricher
	logger   *zap.Logger
	stats    *Stats

	// allPagesCap bounds allPages runs so a bogus reported total can
	// never produce an unbounded crawl.
	allPagesCap int
}

func NewDriver(fetcher Fetcher, urls *URLBuilder, enricher *Enricher, logger *zap.Logger, allPagesCap int, stats *Stats) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if stats == nil {
		stats = &Stats{}
	}
	if allPagesCap <= 0 {
		allPagesCap = 5
	}
	return &Driver{
		fetcher:     fetcher,
		urls:        urls,
		enricher:    enricher,
		logger:      logger,
		stats:       stats,
		allPagesCap: allPagesCap,
	}
}

// Stats exposes the live counters for progress reporting.
func (d *Driver) Stats() *Stats {
	return d.stats
}

// Run executes one scrape. The returned ResultSet is always usable: when
// the run stops early (fetch exhaustion, cancellation) it holds everything
// gathered so far with Status partial, and the error is a *RunError naming
// the cause.
func (d *Driver) Run(ctx context.Context, params *model.SearchParams) (*model.ResultSet, error) {
	if params.SearchType == model.SearchDetail {
		return d.runDetail(ctx, params)
	}
	return d.runListing(ctx, params)
}

func (d *Driver) runListing(ctx context.Context, params *model.SearchParams) (*model.ResultSet, error) {
	rs := &model.ResultSet{Status: model.StatusComplete}
	seen := make(map[string]struct{})

	maxPages := params.MaxPages
	if maxPages <= 0 {
		maxPages = 1
	}
	if params.AllPages {
		maxPages = d.allPagesCap
	}

	totalPages := 0
	totalsKnown := false
	page := 1

	for {
		if err := ctx.Err(); err != nil {
			return d.partial(rs, CauseCancelled, err)
		}

		body, err := d.fetcher.Fetch(ctx, d.urls.ListingPage(params, page))
		if err != nil {
			d.stats.Errors.Add(1)
			d.logger.Error("page fetch exhausted retries",
				zap.Int("page", page), zap.Error(err))
			return d.partial(rs, CauseFetchExhausted, err)
		}

		records, meta, err := Parse(body, params.SearchType)
		dropped := err != nil
		if dropped {
			// Structurally unreadable page: dropped, never re-fetched,
			// and the run moves on to the next page.
			d.stats.Warnings.Add(1)
			d.logger.Warn("page dropped", zap.Int("page", page), zap.Error(err))
			records = nil
		}

		d.stats.PagesFetched.Add(1)
		rs.Pages = page

		// Pagination metadata comes from the first readable page.
		if !dropped && !totalsKnown {
			rs.Total = meta.Total
			totalPages = meta.TotalPages
			d.stats.PagesTotal.Store(int64(min(totalPages, maxPages)))
			totalsKnown = true
		}

		kept := d.processRecords(records, params, seen)
		kept = d.enrichKept(ctx, params, kept)
		rs.Businesses = append(rs.Businesses, kept...)

		d.logger.Info("page processed",
			zap.Int("page", page),
			zap.Int("records", len(records)),
			zap.Int("kept", len(kept)))

		// Stop conditions, in fixed order so stop-reason precedence is
		// deterministic. A dropped page carries no signal about the
		// result stream ending, so it never triggers the empty stop.
		if !dropped && len(records) == 0 {
			break
		}
		if page >= maxPages {
			break
		}
		if totalPages > 0 && page >= totalPages {
			break
		}
		page++
	}

	rs.Warnings = int(d.stats.Warnings.Load())
	return rs, nil
}

func (d *Driver) runDetail(ctx context.Context, params *model.SearchParams) (*model.ResultSet, error) {
	rs := &model.ResultSet{Status: model.StatusComplete, Pages: 1}

	if err := ctx.Err(); err != nil {
		return d.partial(rs, CauseCancelled, err)
	}

	body, err := d.fetcher.Fetch(ctx, d.urls.DetailPage(params.Domain))
	if errors.Is(err, ErrNotFound) {
		d.logger.Warn("business not found", zap.String("domain", params.Domain))
		return rs, nil
	}
	if err != nil {
		d.stats.Errors.Add(1)
		return d.partial(rs, CauseFetchExhausted, err)
	}
	d.stats.PagesFetched.Add(1)
	d.stats.PagesTotal.Store(1)

	records, meta, err := Parse(body, model.SearchDetail)
	if err != nil {
		d.stats.Errors.Add(1)
		d.logger.Warn("detail payload unreadable", zap.String("domain", params.Domain), zap.Error(err))
		return rs, nil
	}
	// The page resolved, so the total reflects it even when filters
	// later reject the business.
	rs.Total = meta.Total

	kept := d.processRecords(records, params, make(map[string]struct{}))
	// Detail mode always carries reviews when the page has them.
	detail := *params
	detail.IncludeReviews = true
	kept = d.enrichKept(ctx, &detail, kept)

	rs.Businesses = kept
	rs.Warnings = int(d.stats.Warnings.Load())
	return rs, nil
}

// processRecords normalizes, deduplicates and filters one page's raw
// records, preserving discovery order.
func (d *Driver) processRecords(records []RawRecord, params *model.SearchParams, seen map[string]struct{}) []model.Business {
	var kept []model.Business
	for _, raw := range records {
		d.stats.Found.Add(1)

		b := Normalize(raw)
		key := b.ID
		if key == "" {
			key = b.Domain
		}
		if key == "" {
			d.logger.Warn("record without identifier skipped", zap.String("name", b.Name))
			d.stats.Warnings.Add(1)
			continue
		}
		if b.ID == "" {
			b.ID = key
		}

		if _, dup := seen[key]; dup {
			d.stats.Duplicates.Add(1)
			continue
		}
		seen[key] = struct{}{}

		if !Matches(&b, params.Filters) {
			continue
		}

		d.stats.Kept.Add(1)
		kept = append(kept, b)
	}
	return kept
}

// enrichKept runs the enricher over a page's survivors and, when the
// verified-only constraint is active, re-applies it now that per-review
// verification data exists.
func (d *Driver) enrichKept(ctx context.Context, params *model.SearchParams, kept []model.Business) []model.Business {
	if d.enricher == nil || !params.IncludeReviews || len(kept) == 0 {
		return kept
	}

	warned := d.enricher.EnrichAll(ctx, kept)
	d.stats.Warnings.Add(int64(warned))

	if !params.Filters.VerifiedOnly {
		return kept
	}

	filtered := kept[:0]
	for i := range kept {
		if Matches(&kept[i], params.Filters) {
			filtered = append(filtered, kept[i])
		} else {
			d.stats.Kept.Add(-1)
		}
	}
	return filtered
}

func (d *Driver) partial(rs *model.ResultSet, cause StopCause, err error) (*model.ResultSet, error) {
	rs.Status = model.StatusPartial
	return rs, &RunError{Cause: cause, Err: err}
}
