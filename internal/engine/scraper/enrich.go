package scraper

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/averix/trustscan/internal/model"
)

const lastReviewsCap = 3

// Enricher attaches detailed reviews and the AI summary to already-filtered
// businesses via secondary fetches. Enrichment failures never drop a
// business; the affected record just keeps reviews/aiSummary absent.
type Enricher struct {
	fetcher     Fetcher
	urls        *URLBuilder
	logger      *zap.Logger
	language    string
	maxReviews  int
	concurrency int
}

func NewEnricher(fetcher Fetcher, urls *URLBuilder, logger *zap.Logger, language string, maxReviews, concurrency int) *Enricher {
	if concurrency <= 0 {
		concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enricher{
		fetcher:     fetcher,
		urls:        urls,
		logger:      logger,
		language:    language,
		maxReviews:  maxReviews,
		concurrency: concurrency,
	}
}

// EnrichAll enriches a page's filtered survivors with a bounded worker
// pool. Output order matches input order regardless of completion order.
// The returned count is the number of per-record warnings (failed
// enrichments).
func (e *Enricher) EnrichAll(ctx context.Context, businesses []model.Business) int {
	var (
		wg       sync.WaitGroup
		sem      = make(chan struct{}, e.concurrency)
		warnings int
		mu       sync.Mutex
	)

	for i := range businesses {
		select {
		case <-ctx.Done():
			wg.Wait()
			return warnings
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(b *model.Business) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := e.Enrich(ctx, b); err != nil {
				mu.Lock()
				warnings++
				mu.Unlock()
				e.logger.Warn("enrichment failed",
					zap.String("domain", b.Domain),
					zap.Error(err))
			}
		}(&businesses[i])
	}

	wg.Wait()
	return warnings
}

// Enrich fetches and parses the business's review page, attaching reviews,
// lastReviews and aiSummary in place. When the source rejects the
// requested language, the fetch falls back to all languages.
func (e *Enricher) Enrich(ctx context.Context, b *model.Business) error {
	if b.Domain == "" {
		return errors.New("business has no domain to enrich from")
	}

	body, err := e.fetcher.Fetch(ctx, e.urls.ReviewPage(b.Domain, e.language))
	if err != nil && e.language != "" && isLanguageRejection(err) {
		body, err = e.fetcher.Fetch(ctx, e.urls.ReviewPage(b.Domain, ""))
	}
	if err != nil {
		return err
	}

	reviews, summary, err := ParseReviews(body)
	if err != nil {
		return err
	}

	if e.maxReviews > 0 && len(reviews) > e.maxReviews {
		reviews = reviews[:e.maxReviews]
	}

	if len(reviews) > 0 {
		b.Reviews = reviews
		last := reviews
		if len(last) > lastReviewsCap {
			last = last[:lastReviewsCap]
		}
		b.LastReviews = last
	}
	if summary != nil {
		b.AISummary = summary
	}

	return nil
}

// isLanguageRejection reports whether the source refused the request in a
// way a language-code problem could explain (client error, not rate limit
// or transport failure).
func isLanguageRejection(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= 400 && se.StatusCode < 500
	}
	return errors.Is(err, ErrNotFound)
}
