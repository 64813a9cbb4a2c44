package scraper

import (
	"strconv"
	"strings"

	"github.com/averix/trustscan/internal/model"
)

// Matches evaluates the configured constraint set against one business.
// Constraints are AND-combined; an unset constraint always passes. Pure,
// no I/O.
func Matches(b *model.Business, f model.FilterConfig) bool {
	if f.MinTrustScore > 0 && !meetsMinTrust(b, f.MinTrustScore) {
		return false
	}
	if f.Country != "" && !strings.EqualFold(b.Country, f.Country) {
		return false
	}
	if f.MinReviews > 0 && b.ReviewCount < f.MinReviews {
		return false
	}
	if f.VerifiedOnly && !isVerified(b) {
		return false
	}
	return true
}

// meetsMinTrust parses the business's decimal-string rating. A missing or
// non-numeric ratingValue fails this predicate only; it never errors the
// evaluation.
func meetsMinTrust(b *model.Business, min float64) bool {
	if b.RatingValue == "" {
		return false
	}
	rating, err := strconv.ParseFloat(b.RatingValue, 64)
	if err != nil {
		return false
	}
	return rating >= min
}

// isVerified approximates business verification. Listing records carry no
// first-class verification signal, so the predicate passes through unless
// fetched reviews are present; then at least one review by a verified
// consumer must exist.
func isVerified(b *model.Business) bool {
	if len(b.Reviews) == 0 && len(b.LastReviews) == 0 {
		return true
	}
	for _, r := range b.Reviews {
		if r.Consumer.IsVerified {
			return true
		}
	}
	for _, r := range b.LastReviews {
		if r.Consumer.IsVerified {
			return true
		}
	}
	return false
}
