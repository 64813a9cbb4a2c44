package scraper

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/averix/trustscan/internal/model"
)

// pageSize is the number of businesses the source lists per page.
const pageSize = 20

// RawRecord is one business exactly as found in a page's embedded payload,
// before normalization. Field presence varies by mode.
type RawRecord map[string]any

// Pagination carries the counts a listing page reports.
type Pagination struct {
	Total      int
	TotalPages int
}

// Parse locates the embedded data payload in a page and extracts the raw
// business records plus pagination metadata. Listing modes yield a list,
// detail mode a single record. Nested structures pass through unchanged.
func Parse(body []byte, mode model.SearchType) ([]RawRecord, Pagination, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, Pagination{}, ErrMissingPayload
	}

	if raw := strings.TrimSpace(doc.Find("script#__NEXT_DATA__").First().Text()); raw != "" {
		return parseNextData(raw, mode)
	}

	// Older pages embed ld+json organization blocks instead.
	records := parseLDJSONBlocks(doc)
	if len(records) == 0 {
		return nil, Pagination{}, ErrMissingPayload
	}
	return records, Pagination{Total: len(records), TotalPages: 1}, nil
}

func parseNextData(raw string, mode model.SearchType) ([]RawRecord, Pagination, error) {
	var payload map[string]any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, Pagination{}, ErrMissingPayload
	}

	pageProps := digMap(payload, "props", "pageProps")
	if pageProps == nil {
		return nil, Pagination{}, ErrMissingPayload
	}

	if mode == model.SearchDetail {
		unit := digMap(pageProps, "businessUnit")
		if unit == nil {
			return nil, Pagination{}, ErrMissingPayload
		}
		return []RawRecord{RawRecord(unit)}, Pagination{Total: 1, TotalPages: 1}, nil
	}

	units := digMap(pageProps, "businessUnits")
	if units == nil {
		return nil, Pagination{}, ErrMissingPayload
	}

	var records []RawRecord
	for _, item := range digSlice(units, "businesses") {
		if m, ok := item.(map[string]any); ok {
			records = append(records, RawRecord(m))
		}
	}

	total := digInt(units, "totalCount")
	if total == 0 {
		total = digInt(units, "total")
	}

	return records, Pagination{Total: total, TotalPages: totalPages(total)}, nil
}

func parseLDJSONBlocks(doc *goquery.Document) []RawRecord {
	var records []RawRecord
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return
		}

		var data any
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			return
		}

		items, ok := data.([]any)
		if !ok {
			items = []any{data}
		}
		for _, item := range items {
			m, ok := item.(map[string]any)
			if !ok || !isOrganization(m) {
				continue
			}
			records = append(records, RawRecord(m))
		}
	})
	return records
}

func isOrganization(m map[string]any) bool {
	switch t := m["@type"].(type) {
	case string:
		return strings.EqualFold(t, "organization") || strings.EqualFold(t, "localbusiness")
	case []any:
		for _, v := range t {
			s, _ := v.(string)
			if strings.EqualFold(s, "organization") || strings.EqualFold(s, "localbusiness") {
				return true
			}
		}
	}
	return false
}

// ParseReviews extracts the review list and AI summary from a business's
// review page payload.
func ParseReviews(body []byte) ([]model.Review, *model.AISummary, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, nil, ErrMissingPayload
	}

	raw := strings.TrimSpace(doc.Find("script#__NEXT_DATA__").First().Text())
	if raw == "" {
		return nil, nil, ErrMissingPayload
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, nil, ErrMissingPayload
	}

	pageProps := digMap(payload, "props", "pageProps")
	if pageProps == nil {
		return nil, nil, ErrMissingPayload
	}

	var reviews []model.Review
	for _, item := range digSlice(pageProps, "reviews") {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		reviews = append(reviews, reviewFromMap(m))
	}

	var summary *model.AISummary
	if ai := digMap(pageProps, "aiSummary"); ai != nil {
		summary = &model.AISummary{
			Summary:   digString(ai, "summary"),
			Status:    digString(ai, "status"),
			Lang:      digString(ai, "lang"),
			UpdatedAt: digString(ai, "updatedAt"),
		}
	}

	return reviews, summary, nil
}

func reviewFromMap(m map[string]any) model.Review {
	createdAt := digString(m, "date", "createdAt")
	if createdAt == "" {
		createdAt = digString(m, "dates", "publishedDate")
	}

	consumer := model.Consumer{
		ID:              digString(m, "consumer", "id"),
		DisplayName:     digString(m, "consumer", "displayName"),
		ImageURL:        digString(m, "consumer", "imageUrl"),
		IsVerified:      digBool(m, "consumer", "isVerified"),
		NumberOfReviews: digInt(m, "consumer", "numberOfReviews"),
		CountryCode:     digString(m, "consumer", "countryCode"),
	}

	return model.Review{
		ID:       digString(m, "id"),
		Text:     digString(m, "text"),
		Title:    digString(m, "title"),
		Rating:   digInt(m, "rating"),
		Date:     model.ReviewDate{CreatedAt: createdAt},
		Consumer: consumer,
	}
}

func totalPages(total int) int {
	if total <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

// dig navigates nested map[string]any values by key path without panicking.
func dig(data any, path ...string) any {
	current := data
	for _, key := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current = m[key]
	}
	return current
}

// digMap returns the map at the key path, nil if absent or not a map.
func digMap(data any, path ...string) map[string]any {
	m, ok := dig(data, path...).(map[string]any)
	if !ok {
		return nil
	}
	return m
}

// digSlice returns the slice at the key path, nil if absent or not a slice.
func digSlice(data any, path ...string) []any {
	s, ok := dig(data, path...).([]any)
	if !ok {
		return nil
	}
	return s
}

// digString extracts a string at the key path. Handles string and number.
func digString(data any, path ...string) string {
	switch v := dig(data, path...).(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

// digFloat extracts a float64 at the key path. Handles float64 and
// numeric strings.
func digFloat(data any, path ...string) float64 {
	switch v := dig(data, path...).(type) {
	case float64:
		return v
	case string:
		f, _ := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f
	}
	return 0
}

// digInt extracts an int at the key path.
func digInt(data any, path ...string) int {
	return int(digFloat(data, path...))
}

// digBool extracts a bool at the key path.
func digBool(data any, path ...string) bool {
	b, _ := dig(data, path...).(bool)
	return b
}
