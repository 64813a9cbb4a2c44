package scraper

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/averix/trustscan/internal/model"
)

// Normalize maps one raw record into the canonical Business schema. It
// never fails: fields it cannot map are omitted. Records without a usable
// identifier are rejected by the driver, not here.
func Normalize(raw RawRecord) model.Business {
	m := map[string]any(raw)

	b := model.Business{
		ID:          firstString(m, "id", "businessUnitId", "@id"),
		Domain:      digString(m, "identifyingName"),
		Name:        firstString(m, "displayName", "name"),
		Description: digString(m, "description"),
		Image:       firstString(m, "logoUrl", "image"),
	}

	b.RatingValue = digString(m, "trustScore")
	if b.RatingValue == "" {
		b.RatingValue = digString(m, "aggregateRating", "ratingValue")
	}

	b.ReviewCount = digInt(m, "numberOfReviews")
	if b.ReviewCount == 0 {
		b.ReviewCount = digInt(m, "aggregateRating", "reviewCount")
	}

	normalizeLocation(m, &b)
	normalizeContact(m, &b)
	normalizeCategories(m, &b)

	if b.Domain == "" {
		b.Domain = extractDomain(b.Website)
	}
	if b.Domain == "" {
		b.Domain = extractDomain(digString(m, "url"))
	}

	if rv := b.RatingValue; rv != "" || b.ReviewCount > 0 {
		rating := &model.Rating{
			BestRating:  digString(m, "rating", "bestRating"),
			WorstRating: digString(m, "rating", "worstRating"),
			RatingValue: rv,
		}
		if rating.BestRating == "" {
			rating.BestRating = digString(m, "aggregateRating", "bestRating")
		}
		if rating.WorstRating == "" {
			rating.WorstRating = digString(m, "aggregateRating", "worstRating")
		}
		if rating.BestRating == "" {
			rating.BestRating = "5"
		}
		if rating.WorstRating == "" {
			rating.WorstRating = "1"
		}
		if b.ReviewCount > 0 {
			rating.ReviewCount = strconv.Itoa(b.ReviewCount)
		}
		b.Rating = rating
	}

	if dist := firstMap(m, "data", "reviewsDistribution"); dist != nil {
		b.Data = &model.StarData{
			One:   digInt(dist, "one"),
			Two:   digInt(dist, "two"),
			Three: digInt(dist, "three"),
			Four:  digInt(dist, "four"),
			Five:  digInt(dist, "five"),
			Total: digInt(dist, "total"),
		}
		if b.Data.Total == 0 {
			b.Data.Total = b.Data.One + b.Data.Two + b.Data.Three + b.Data.Four + b.Data.Five
		}
	} else if b.ReviewCount > 0 {
		b.Data = &model.StarData{Total: b.ReviewCount}
	}

	for _, item := range digSlice(m, "similarBusinessUnits") {
		sm, ok := item.(map[string]any)
		if !ok {
			continue
		}
		b.SimilarBusinessUnits = append(b.SimilarBusinessUnits, model.SimilarBusiness{
			ID:          digString(sm, "id"),
			Domain:      firstString(sm, "identifyingName", "domain"),
			Name:        firstString(sm, "displayName", "name"),
			RatingValue: digString(sm, "trustScore"),
			ReviewCount: digInt(sm, "numberOfReviews"),
		})
	}

	return b
}

func normalizeLocation(m map[string]any, b *model.Business) {
	if loc := digMap(m, "location"); loc != nil {
		b.Address = digString(loc, "address")
		b.City = digString(loc, "city")
		b.ZipCode = digString(loc, "zipCode")
		b.Country = digString(loc, "country")
		return
	}

	// ld+json address block; may be an object or a one-element list.
	addr := digMap(m, "address")
	if addr == nil {
		if items := digSlice(m, "address"); len(items) > 0 {
			addr, _ = items[0].(map[string]any)
		}
	}
	if addr != nil {
		b.Address = digString(addr, "streetAddress")
		b.City = digString(addr, "addressLocality")
		b.ZipCode = digString(addr, "postalCode")
		b.Country = digString(addr, "addressCountry")
	}
}

func normalizeContact(m map[string]any, b *model.Business) {
	if contact := digMap(m, "contact"); contact != nil {
		b.Website = digString(contact, "website")
		b.Email = digString(contact, "email")
		b.Phone = digString(contact, "phone")
		return
	}

	b.Phone = digString(m, "telephone")
	b.Email = digString(m, "email")

	switch same := m["sameAs"].(type) {
	case string:
		b.Website = same
	case []any:
		// First non-source URL is the business's own site.
		for _, entry := range same {
			s, _ := entry.(string)
			if s != "" && !strings.Contains(s, "trustpilot") {
				b.Website = s
				break
			}
		}
	}
}

func normalizeCategories(m map[string]any, b *model.Business) {
	var names, ids []string

	for _, item := range digSlice(m, "categories") {
		switch v := item.(type) {
		case string:
			names = append(names, v)
		case map[string]any:
			name := firstString(v, "displayName", "name")
			if name == "" {
				continue
			}
			names = append(names, name)
			if id := firstString(v, "categoryId", "id"); id != "" {
				ids = append(ids, id)
			}
		}
	}

	if len(names) == 0 {
		// ld+json category/keywords fallback.
		switch v := m["category"].(type) {
		case string:
			names = append(names, v)
		case []any:
			for _, c := range v {
				if s, _ := c.(string); s != "" {
					names = append(names, s)
				}
			}
		}
	}

	if len(names) == 0 {
		return
	}

	// Explicit ids win, but only when they pair one-to-one with names; a
	// shorter or longer supplied list is invalid and falls back to full
	// derivation.
	if len(ids) != len(names) {
		ids = ids[:0]
		for _, name := range names {
			ids = append(ids, slugify(name))
		}
	}

	b.Categories = names
	b.CategoriesID = ids
}

// slugify applies the source's slug convention: lowercase, spaces to
// hyphens.
func slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	return strings.Join(strings.Fields(s), "-")
}

func extractDomain(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return parsed.Host
}

func firstString(m map[string]any, paths ...string) string {
	for _, p := range paths {
		if v := digString(m, p); v != "" {
			return v
		}
	}
	return ""
}

func firstMap(m map[string]any, paths ...string) map[string]any {
	for _, p := range paths {
		if v := digMap(m, p); v != nil {
			return v
		}
	}
	return nil
}
