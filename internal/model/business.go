package model

// Rating mirrors the aggregate-rating block of the source payload.
// All values are kept as strings, matching the source schema.
type Rating struct {
	BestRating  string `json:"bestRating,omitempty"`
	WorstRating string `json:"worstRating,omitempty"`
	RatingValue string `json:"ratingValue,omitempty"`
	ReviewCount string `json:"reviewCount,omitempty"`
}

// StarData is the star-distribution histogram (counts per star plus total).
type StarData struct {
	One   int `json:"one"`
	Two   int `json:"two"`
	Three int `json:"three"`
	Four  int `json:"four"`
	Five  int `json:"five"`
	Total int `json:"total"`
}

// Consumer identifies the author of a review.
type Consumer struct {
	ID              string `json:"id,omitempty"`
	DisplayName     string `json:"displayName,omitempty"`
	ImageURL        string `json:"imageUrl,omitempty"`
	IsVerified      bool   `json:"isVerified"`
	NumberOfReviews int    `json:"numberOfReviews,omitempty"`
	CountryCode     string `json:"countryCode,omitempty"`
}

// ReviewDate wraps the creation timestamp the way the source exposes it.
type ReviewDate struct {
	CreatedAt string `json:"createdAt,omitempty"`
}

// Review is a single consumer review attached during enrichment.
type Review struct {
	ID       string     `json:"id,omitempty"`
	Text     string     `json:"text,omitempty"`
	Title    string     `json:"title,omitempty"`
	Rating   int        `json:"rating"`
	Date     ReviewDate `json:"date"`
	Consumer Consumer   `json:"consumer"`
}

// SimilarBusiness is a short summary of a related business unit.
type SimilarBusiness struct {
	ID          string `json:"id,omitempty"`
	Domain      string `json:"domain,omitempty"`
	Name        string `json:"name,omitempty"`
	RatingValue string `json:"ratingValue,omitempty"`
	ReviewCount int    `json:"reviewCount,omitempty"`
}

// AISummary is the source-generated review summary for a business.
type AISummary struct {
	Summary   string `json:"summary,omitempty"`
	Status    string `json:"status,omitempty"`
	Lang      string `json:"lang,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

// Business is the canonical normalized record for one reviewed company.
// Optional fields are omitted from JSON when unknown so consumers can
// distinguish "unknown" from "zero".
type Business struct {
	ID                   string            `json:"id"`
	Domain               string            `json:"domain,omitempty"`
	Name                 string            `json:"name,omitempty"`
	RatingValue          string            `json:"ratingValue,omitempty"`
	ReviewCount          int               `json:"reviewCount,omitempty"`
	Description          string            `json:"description,omitempty"`
	Image                string            `json:"image,omitempty"`
	Country              string            `json:"country,omitempty"`
	Address              string            `json:"address,omitempty"`
	City                 string            `json:"city,omitempty"`
	ZipCode              string            `json:"zipCode,omitempty"`
	Website              string            `json:"website,omitempty"`
	Email                string            `json:"email,omitempty"`
	Phone                string            `json:"phone,omitempty"`
	Categories           []string          `json:"categories,omitempty"`
	CategoriesID         []string          `json:"categoriesID,omitempty"`
	Rating               *Rating           `json:"rating,omitempty"`
	Data                 *StarData         `json:"data,omitempty"`
	SimilarBusinessUnits []SimilarBusiness `json:"similarBusinessUnits,omitempty"`
	LastReviews          []Review          `json:"lastReviews,omitempty"`
	Reviews              []Review          `json:"reviews,omitempty"`
	AISummary            *AISummary        `json:"aiSummary,omitempty"`
}

// RunStatus distinguishes a run that covered everything it was asked to
// from one that stopped early and kept partial results.
type RunStatus string

const (
	StatusComplete RunStatus = "complete"
	StatusPartial  RunStatus = "partial"
)

// ResultSet is the full output of one run: unique businesses in discovery
// order plus the source-reported total and the number of pages fetched.
type ResultSet struct {
	Businesses []Business `json:"businesses"`
	Total      int        `json:"total"`
	Pages      int        `json:"pages"`
	Status     RunStatus  `json:"status"`
	Warnings   int        `json:"warnings,omitempty"`
}
