package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ejezie/Enact-Pricing/internal/models"
)

func TestExtractNumericPrice(t *testing.T) {
	tests := []struct {
		name    string
		display string
		want    float64
		ok      bool
	}{
		{"pound symbol", "£13.99", 13.99, true},
		{"dollar with thousands", "$1,249.00", 1249.00, true},
		{"range takes lower bound", "£5.00 to £9.00", 5.00, true},
		{"bare number", "42", 42, true},
		{"whole pounds", "£120", 120, true},
		{"no digits", "No price", 0, false},
		{"empty", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractNumericPrice(tt.display)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAnalyzeMarket_Stats(t *testing.T) {
	products := []models.Product{
		{Title: "a", Price: "£10.00", Brand: "Canon"},
		{Title: "b", Price: "£20.00", Brand: "Canon"},
		{Title: "c", Price: "£30.00", Brand: "Nikon"},
	}

	analysis := AnalyzeMarket(products)
	require.NotNil(t, analysis)

	assert.Equal(t, 20.0, analysis.MarketStats.AveragePrice)
	assert.Equal(t, 20.0, analysis.MarketStats.MedianPrice)
	assert.Equal(t, 10.0, analysis.MarketStats.PriceStd) // sample stdev of 10,20,30
	assert.Equal(t, 10.0, analysis.MarketStats.PriceRange.Min)
	assert.Equal(t, 30.0, analysis.MarketStats.PriceRange.Max)

	// Segments sit one deviation either side of the average.
	assert.Equal(t, 10.0, analysis.PriceSegments.Budget)
	assert.Equal(t, 20.0, analysis.PriceSegments.MidRange)
	assert.Equal(t, 30.0, analysis.PriceSegments.Premium)

	assert.Equal(t, map[string]float64{"Canon": 15.0, "Nikon": 30.0}, analysis.BrandAverages)
}

func TestAnalyzeMarket_SingleListingFallsBackToFractionOfAverage(t *testing.T) {
	analysis := AnalyzeMarket([]models.Product{{Title: "a", Price: "£100.00"}})

	assert.Equal(t, 100.0, analysis.MarketStats.AveragePrice)
	assert.Equal(t, 20.0, analysis.MarketStats.PriceStd)
	assert.Equal(t, 80.0, analysis.PriceSegments.Budget)
	assert.Equal(t, 120.0, analysis.PriceSegments.Premium)
}

func TestAnalyzeMarket_BudgetNeverNegative(t *testing.T) {
	products := []models.Product{
		{Title: "a", Price: "£1.00"},
		{Title: "b", Price: "£100.00"},
	}

	analysis := AnalyzeMarket(products)
	assert.Equal(t, 0.0, analysis.PriceSegments.Budget)
}

func TestAnalyzeMarket_Empty(t *testing.T) {
	for _, products := range [][]models.Product{
		nil,
		{},
		{{Title: "unpriced", Price: "No price"}},
	} {
		analysis := AnalyzeMarket(products)
		require.NotNil(t, analysis)
		assert.Zero(t, analysis.MarketStats.AveragePrice)
		assert.Zero(t, analysis.MarketStats.PriceRange.Max)
		assert.Empty(t, analysis.BrandAverages)
	}
}

func TestAnalyzeMarket_IgnoresUnspecifiedBrand(t *testing.T) {
	products := []models.Product{
		{Title: "a", Price: "£10.00", Brand: "Not specified"},
		{Title: "b", Price: "£20.00"},
	}

	analysis := AnalyzeMarket(products)
	assert.Empty(t, analysis.BrandAverages)
}

func TestGenerateRecommendations(t *testing.T) {
	products := []models.Product{
		{Title: "a", Price: "£10.00", Brand: "Canon"},
		{Title: "b", Price: "£20.00", Brand: "Canon"},
		{Title: "c", Price: "£30.00", Brand: "Nikon"},
	}
	recs := GenerateRecommendations(AnalyzeMarket(products))
	require.NotEmpty(t, recs)

	assert.Equal(t, "Market Overview:", recs[0].Text)
	assert.Contains(t, recs[1].Text, "£20.00")

	var bullets, records int
	for _, rec := range recs {
		if rec.IsStructured() {
			records++
			assert.NotEmpty(t, rec.Record.Type)
			assert.NotEmpty(t, rec.Record.Description)
		} else {
			bullets++
		}
	}
	assert.Greater(t, bullets, 5)
	assert.Equal(t, 2, records)
}

func TestGenerateRecommendations_InsufficientData(t *testing.T) {
	recs := GenerateRecommendations(AnalyzeMarket(nil))
	require.Len(t, recs, 1)
	assert.Equal(t, "Insufficient data for price analysis.", recs[0].Text)

	recs = GenerateRecommendations(nil)
	require.Len(t, recs, 1)
	assert.False(t, recs[0].IsStructured())
}
