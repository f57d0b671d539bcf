package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchRequestApplyDefaults(t *testing.T) {
	req := SearchRequest{SearchQuery: "vintage camera"}
	req.ApplyDefaults()

	assert.Equal(t, "Best Match", req.SortBy)
	assert.Equal(t, 10, req.ResultsLimit)
	assert.Equal(t, "UK", req.Country)

	// Explicit values survive defaulting.
	req = SearchRequest{SearchQuery: "laptop", SortBy: "Price: Lowest first", ResultsLimit: 25, Country: "US"}
	req.ApplyDefaults()
	assert.Equal(t, "Price: Lowest first", req.SortBy)
	assert.Equal(t, 25, req.ResultsLimit)
	assert.Equal(t, "US", req.Country)
}

func TestSearchRequestApplyDefaults_ClampsLimit(t *testing.T) {
	req := SearchRequest{SearchQuery: "x", ResultsLimit: 500}
	req.ApplyDefaults()
	assert.Equal(t, MaxResultsLimit, req.ResultsLimit)

	req = SearchRequest{SearchQuery: "x", ResultsLimit: -3}
	req.ApplyDefaults()
	assert.Equal(t, MinResultsLimit, req.ResultsLimit)
}

func TestSearchRequestForwardedShape(t *testing.T) {
	req := SearchRequest{SearchQuery: "vintage camera"}
	req.ApplyDefaults()

	data, err := json.Marshal(&req)
	require.NoError(t, err)

	var forwarded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &forwarded))

	assert.Equal(t, "vintage camera", forwarded["search_query"])
	assert.Equal(t, "Best Match", forwarded["sort_by"])
	assert.Equal(t, float64(10), forwarded["results_limit"])
	assert.Equal(t, "UK", forwarded["country"])
}

func TestRecommendationUnion(t *testing.T) {
	payload := `[
		"Market Overview:",
		"• Average market price: £20.00",
		{"type":"pricing","title":"Competitive Entry","description":"Price near the budget segment.","impact":"high"}
	]`

	var recs []Recommendation
	require.NoError(t, json.Unmarshal([]byte(payload), &recs))
	require.Len(t, recs, 3)

	assert.False(t, recs[0].IsStructured())
	assert.Equal(t, "Market Overview:", recs[0].Text)

	require.True(t, recs[2].IsStructured())
	assert.Equal(t, "pricing", recs[2].Record.Type)
	assert.Equal(t, "high", recs[2].Record.Impact)

	// Round-trip preserves both shapes.
	out, err := json.Marshal(recs)
	require.NoError(t, err)
	assert.JSONEq(t, payload, string(out))
}

func TestRecommendationUnmarshal_BadPayload(t *testing.T) {
	var rec Recommendation
	assert.Error(t, json.Unmarshal([]byte(`42`), &rec))
}

func TestScrapeResponseAcceptsItemsOrProducts(t *testing.T) {
	var fromItems ScrapeResponse
	require.NoError(t, json.Unmarshal([]byte(`{"items":[{"title":"a","price":"£1","link":"l"}],"recommendations":[]}`), &fromItems))
	require.Len(t, fromItems.Products, 1)
	assert.Equal(t, "a", fromItems.Products[0].Title)

	var fromProducts ScrapeResponse
	require.NoError(t, json.Unmarshal([]byte(`{"products":[{"title":"b","price":"£2","link":"l"}],"recommendations":[]}`), &fromProducts))
	require.Len(t, fromProducts.Products, 1)
	assert.Equal(t, "b", fromProducts.Products[0].Title)

	// "products" always wins on the way back out.
	out, err := json.Marshal(&fromItems)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"products"`)
	assert.NotContains(t, string(out), `"items"`)
}

func TestScrapeResponse_EmptyRecommendationsRoundTrip(t *testing.T) {
	var resp ScrapeResponse
	require.NoError(t, json.Unmarshal([]byte(`{"products":[],"recommendations":[]}`), &resp))

	out, err := json.Marshal(&resp)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"recommendations":[]`)
}

func TestChatRequestText(t *testing.T) {
	req := ChatRequest{Message: "what should I pay?"}
	assert.Equal(t, "what should I pay?", req.Text())

	// Older clients send "question" instead.
	req = ChatRequest{Question: "is this a good deal?"}
	assert.Equal(t, "is this a good deal?", req.Text())

	req = ChatRequest{Message: "message wins", Question: "ignored"}
	assert.Equal(t, "message wins", req.Text())
}

func TestChatRequestAnalysisContext(t *testing.T) {
	assert.Nil(t, (&ChatRequest{Message: "hi"}).AnalysisContext())

	inline := &ScrapeResponse{Products: []Product{{Title: "a"}}}
	assert.Equal(t, inline, (&ChatRequest{Context: inline}).AnalysisContext())

	// Legacy top-level keys are folded into the same shape.
	legacy := ChatRequest{
		MarketAnalysis: &MarketAnalysis{MarketStats: MarketStats{AveragePrice: 10}},
		ProductData:    []Product{{Title: "b"}},
	}
	got := legacy.AnalysisContext()
	require.NotNil(t, got)
	assert.Equal(t, 10.0, got.MarketAnalysis.MarketStats.AveragePrice)
	require.Len(t, got.Products, 1)
	assert.Equal(t, "b", got.Products[0].Title)
}

func TestCustomURLMode(t *testing.T) {
	assert.False(t, (&SearchRequest{SearchQuery: "camera"}).CustomURLMode())
	assert.True(t, (&SearchRequest{BaseURL: "https://www.ebay.co.uk/sch/x"}).CustomURLMode())
}
