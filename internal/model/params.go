package model

// SearchType selects which kind of target a run scrapes.
type SearchType string

const (
	SearchCategory SearchType = "category"
	SearchKeyword  SearchType = "keyword"
	SearchDetail   SearchType = "detail"
)

// FilterConfig is the optional post-fetch constraint set. Zero values mean
// "constraint not set" and always pass.
type FilterConfig struct {
	MinTrustScore float64
	VerifiedOnly  bool
	Country       string
	MinReviews    int
}

// IsZero reports whether no constraint is active.
func (f FilterConfig) IsZero() bool {
	return f.MinTrustScore == 0 && !f.VerifiedOnly && f.Country == "" && f.MinReviews == 0
}

// SearchParams holds all configuration for one scrape run.
type SearchParams struct {
	SearchType SearchType

	// Exactly one of these is set, depending on SearchType.
	CategoryID string
	Keyword    string
	Domain     string

	Country  string
	Language string
	Filters  FilterConfig

	AllPages bool
	MaxPages int // used when AllPages is false

	IncludeReviews bool
	MaxReviews     int // cap per business, 0 = no cap
	Concurrency    int // enrichment worker pool size

	ProxyURL  string
	OutputDir string
	DBPath    string
}

// Target returns the mode-specific identifier the run is keyed on.
func (p *SearchParams) Target() string {
	switch p.SearchType {
	case SearchCategory:
		return p.CategoryID
	case SearchKeyword:
		return p.Keyword
	case SearchDetail:
		return p.Domain
	}
	return ""
}
