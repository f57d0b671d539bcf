package models

import (
	"bytes"
	"encoding/json"
	"time"
)

// Defaults applied to a search request before it is forwarded to the
// scraping backend. These match the proxy contract the frontend relies on.
const (
	DefaultSortBy  = "Best Match"
	DefaultLimit   = 10
	DefaultCountry = "UK"

	MinResultsLimit = 1
	MaxResultsLimit = 100
)

// Session represents an active analysis session stored in Redis.
type Session struct {
	Token        string    `json:"token"`
	Query        string    `json:"query"`
	Status       string    `json:"status"` // pending | scraping | analyzing | complete | error
	ErrorMessage string    `json:"error_message,omitempty"`
	FencingID    string    `json:"fencing_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// SearchRequest is the JSON body for POST /api/scrape.
type SearchRequest struct {
	SearchQuery   string `json:"search_query"`
	SortBy        string `json:"sort_by,omitempty"`
	ResultsLimit  int    `json:"results_limit,omitempty"`
	Category      int    `json:"category,omitempty"`
	Location      string `json:"location,omitempty"`
	Condition     string `json:"condition,omitempty"`
	WebsiteChoice string `json:"website_choice,omitempty"`
	BaseURL       string `json:"base_url,omitempty"`
	Country       string `json:"country,omitempty"`
	SessionToken  string `json:"session_token,omitempty"`
}

// ApplyDefaults fills missing optional fields and clamps the result limit.
func (r *SearchRequest) ApplyDefaults() {
	if r.SortBy == "" {
		r.SortBy = DefaultSortBy
	}
	if r.ResultsLimit == 0 {
		r.ResultsLimit = DefaultLimit
	}
	if r.ResultsLimit < MinResultsLimit {
		r.ResultsLimit = MinResultsLimit
	}
	if r.ResultsLimit > MaxResultsLimit {
		r.ResultsLimit = MaxResultsLimit
	}
	if r.Country == "" {
		r.Country = DefaultCountry
	}
}

// CustomURLMode reports whether the request targets an explicit page URL
// instead of a search query.
func (r *SearchRequest) CustomURLMode() bool {
	return r.BaseURL != ""
}

// Product is a single scraped marketplace listing. Price is the raw display
// string exactly as scraped; the analyzer extracts numeric values from it.
type Product struct {
	Title     string `json:"title"`
	Price     string `json:"price"`
	Condition string `json:"condition,omitempty"`
	Shipping  string `json:"shipping,omitempty"`
	Link      string `json:"link"`
	Brand     string `json:"brand,omitempty"`
	Seller    string `json:"seller,omitempty"`
	Location  string `json:"location,omitempty"`
	Country   string `json:"country,omitempty"`
}

// PriceRange holds the min/max bounds of observed prices.
type PriceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// MarketStats holds the aggregate price statistics.
type MarketStats struct {
	AveragePrice float64    `json:"average_price"`
	MedianPrice  float64    `json:"median_price"`
	PriceStd     float64    `json:"price_std"`
	PriceRange   PriceRange `json:"price_range"`
}

// PriceSegments holds the three segment boundaries.
type PriceSegments struct {
	Budget   float64 `json:"budget"`
	MidRange float64 `json:"mid_range"`
	Premium  float64 `json:"premium"`
}

// MarketAnalysis is the backend-computed aggregate over a set of listings.
type MarketAnalysis struct {
	MarketStats   MarketStats        `json:"market_stats"`
	BrandAverages map[string]float64 `json:"brand_averages"`
	PriceSegments PriceSegments      `json:"price_segments"`
}

// Recommendation is either a plain advisory string or a structured advice
// record. Both shapes exist across backend variants, so the union is kept
// explicit: after unmarshal exactly one of Text/Record is populated.
type Recommendation struct {
	Text   string
	Record *RecommendationRecord
}

// RecommendationRecord is the structured recommendation shape.
type RecommendationRecord struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Impact      string `json:"impact,omitempty"`
}

// IsStructured reports whether the recommendation carries the record shape.
func (r Recommendation) IsStructured() bool {
	return r.Record != nil
}

func (r Recommendation) MarshalJSON() ([]byte, error) {
	if r.Record != nil {
		return json.Marshal(r.Record)
	}
	return json.Marshal(r.Text)
}

func (r *Recommendation) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var rec RecommendationRecord
		if err := json.Unmarshal(trimmed, &rec); err != nil {
			return err
		}
		r.Record = &rec
		r.Text = ""
		return nil
	}
	r.Record = nil
	return json.Unmarshal(trimmed, &r.Text)
}

// ScrapeResponse is the payload relayed to the frontend. One backend variant
// emits "items", the other "products"; both are accepted on unmarshal and
// "products" is always emitted.
type ScrapeResponse struct {
	Products        []Product        `json:"products"`
	MarketAnalysis  *MarketAnalysis  `json:"market_analysis,omitempty"`
	Recommendations []Recommendation `json:"recommendations"`
}

func (s *ScrapeResponse) UnmarshalJSON(data []byte) error {
	var raw struct {
		Items           []Product        `json:"items"`
		Products        []Product        `json:"products"`
		MarketAnalysis  *MarketAnalysis  `json:"market_analysis"`
		Recommendations []Recommendation `json:"recommendations"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.Products = raw.Products
	if len(s.Products) == 0 && len(raw.Items) > 0 {
		s.Products = raw.Items
	}
	s.MarketAnalysis = raw.MarketAnalysis
	s.Recommendations = raw.Recommendations
	return nil
}

// ChatMessage is one entry in a session transcript.
type ChatMessage struct {
	Role      string    `json:"role"` // user | assistant | system
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatRequest is the JSON body for POST /api/chat. Older clients send
// "question" instead of "message", and supply the analysis context as
// top-level "market_analysis"/"product_data" keys rather than "context";
// all variants are accepted. Context may also be resolved from the
// session token.
type ChatRequest struct {
	Message      string          `json:"message"`
	Question     string          `json:"question"`
	SessionToken string          `json:"session_token,omitempty"`
	Context      *ScrapeResponse `json:"context,omitempty"`

	MarketAnalysis *MarketAnalysis `json:"market_analysis,omitempty"`
	ProductData    []Product       `json:"product_data,omitempty"`
}

// Text returns the effective message body.
func (r *ChatRequest) Text() string {
	if r.Message != "" {
		return r.Message
	}
	return r.Question
}

// AnalysisContext returns the inline analysis context in either accepted
// shape, or nil when the request carries none.
func (r *ChatRequest) AnalysisContext() *ScrapeResponse {
	if r.Context != nil {
		return r.Context
	}
	if r.MarketAnalysis != nil {
		return &ScrapeResponse{
			Products:       r.ProductData,
			MarketAnalysis: r.MarketAnalysis,
		}
	}
	return nil
}

// ChatResponse is the reply body for POST /api/chat.
type ChatResponse struct {
	Response string `json:"response"`
}

// ScrapeJob is published to the scrape_jobs queue for async processing.
type ScrapeJob struct {
	Token     string        `json:"token"`
	FencingID string        `json:"fencing_id"`
	Request   SearchRequest `json:"request"`
}

// ScrapeResult is received from the scrape_results queue.
type ScrapeResult struct {
	Token     string    `json:"token"`
	FencingID string    `json:"fencing_id"`
	Products  []Product `json:"products"`
	Error     string    `json:"error,omitempty"`
}

// ProgressEvent is sent over SSE while a scrape session is in flight.
type ProgressEvent struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}
