package scraper

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/averix/trustscan/internal/model"
)

// URLBuilder constructs source URLs for listing pages, detail pages and
// review pages.
type URLBuilder struct {
	base string
}

func NewURLBuilder(baseURL string) *URLBuilder {
	return &URLBuilder{base: strings.TrimSuffix(baseURL, "/")}
}

// ListingPage returns the URL for page n (1-based) of a category or
// keyword target. Country and language feed into the request when set.
func (u *URLBuilder) ListingPage(params *model.SearchParams, page int) string {
	q := url.Values{}
	if page > 1 {
		q.Set("page", strconv.Itoa(page))
	}
	if params.Country != "" {
		q.Set("country", params.Country)
	}

	var path string
	switch params.SearchType {
	case model.SearchKeyword:
		path = "/search"
		q.Set("query", params.Keyword)
	default:
		path = "/categories/" + url.PathEscape(params.CategoryID)
	}

	full := u.base + path
	if enc := q.Encode(); enc != "" {
		full += "?" + enc
	}
	return full
}

// DetailPage returns the profile URL for a single business domain.
func (u *URLBuilder) DetailPage(domain string) string {
	return u.base + "/review/" + url.PathEscape(domain)
}

// ReviewPage returns the review-listing URL for a business, optionally
// restricted to one language.
func (u *URLBuilder) ReviewPage(domain, language string) string {
	full := u.base + "/review/" + url.PathEscape(domain)
	if language != "" {
		q := url.Values{}
		q.Set("languages", language)
		full += "?" + q.Encode()
	}
	return full
}
