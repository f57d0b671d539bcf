package services

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ejezie/Enact-Pricing/internal/models"
)

var priceRe = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)

// ExtractNumericPrice pulls a numeric amount out of a scraped price display
// string ("£13.99", "$1,249.00"); a range like "£5.00 to £9.00" takes the
// lower bound. The second return is false when no amount is present.
func ExtractNumericPrice(display string) (float64, bool) {
	if idx := strings.Index(display, " to "); idx >= 0 {
		display = display[:idx]
	}
	match := priceRe.FindString(display)
	if match == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(strings.ReplaceAll(match, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// AnalyzeMarket computes the aggregate price statistics, brand averages,
// and segment boundaries for a set of listings. Listings without a parsable
// price are ignored. An empty input yields the zeroed structure, never nil.
func AnalyzeMarket(products []models.Product) *models.MarketAnalysis {
	analysis := &models.MarketAnalysis{
		BrandAverages: map[string]float64{},
	}

	var prices []float64
	for _, p := range products {
		if value, ok := ExtractNumericPrice(p.Price); ok {
			prices = append(prices, value)
		}
	}
	if len(prices) == 0 {
		return analysis
	}

	avg := mean(prices)
	med := median(prices)

	std := stdev(prices)
	if len(prices) < 2 {
		// Not enough samples for a deviation; fall back to 20% of average.
		std = avg * 0.2
	}

	min, max := prices[0], prices[0]
	for _, v := range prices[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	analysis.MarketStats = models.MarketStats{
		AveragePrice: round2(avg),
		MedianPrice:  round2(med),
		PriceStd:     round2(std),
		PriceRange:   models.PriceRange{Min: round2(min), Max: round2(max)},
	}
	analysis.PriceSegments = models.PriceSegments{
		Budget:   round2(math.Max(0, avg-std)),
		MidRange: round2(avg),
		Premium:  round2(avg + std),
	}
	analysis.BrandAverages = brandAverages(products)

	return analysis
}

func brandAverages(products []models.Product) map[string]float64 {
	sums := map[string]float64{}
	counts := map[string]int{}
	for _, p := range products {
		if p.Brand == "" || p.Brand == "Not specified" {
			continue
		}
		value, ok := ExtractNumericPrice(p.Price)
		if !ok || value <= 0 {
			continue
		}
		sums[p.Brand] += value
		counts[p.Brand]++
	}

	averages := map[string]float64{}
	for brand, sum := range sums {
		averages[brand] = round2(sum / float64(counts[brand]))
	}
	return averages
}

// GenerateRecommendations builds the advisory list shown next to the
// results: the bullet-list market overview in the plain-string shape, then
// the strategic advice in the structured record shape. Callers with no
// priced listings get a single "insufficient data" entry.
func GenerateRecommendations(analysis *models.MarketAnalysis) []models.Recommendation {
	if analysis == nil || analysis.MarketStats.PriceRange.Max == 0 {
		return []models.Recommendation{{Text: "Insufficient data for price analysis."}}
	}

	stats := analysis.MarketStats
	segments := analysis.PriceSegments

	recs := []models.Recommendation{
		{Text: "Market Overview:"},
		{Text: fmt.Sprintf("• Average market price: £%.2f", stats.AveragePrice)},
		{Text: fmt.Sprintf("• The median price is £%.2f", stats.MedianPrice)},
		{Text: fmt.Sprintf("• Price range: £%.2f - £%.2f", stats.PriceRange.Min, stats.PriceRange.Max)},
		{Text: "\nPrice Segments:"},
		{Text: fmt.Sprintf("• Budget segment: Below £%.2f", segments.Budget)},
		{Text: fmt.Sprintf("• Mid-range segment: Around £%.2f", segments.MidRange)},
		{Text: fmt.Sprintf("• Premium segment: Above £%.2f", segments.Premium)},
	}

	if len(analysis.BrandAverages) > 0 {
		recs = append(recs, models.Recommendation{Text: "\nBrand Positioning:"})

		brands := make([]string, 0, len(analysis.BrandAverages))
		for brand := range analysis.BrandAverages {
			brands = append(brands, brand)
		}
		sort.Slice(brands, func(i, j int) bool {
			return analysis.BrandAverages[brands[i]] > analysis.BrandAverages[brands[j]]
		})
		if len(brands) > 5 {
			brands = brands[:5]
		}
		for _, brand := range brands {
			recs = append(recs, models.Recommendation{
				Text: fmt.Sprintf("• %s: Average price £%.2f", brand, analysis.BrandAverages[brand]),
			})
		}
	}

	recs = append(recs, strategicRecommendations(stats)...)
	return recs
}

func strategicRecommendations(stats models.MarketStats) []models.Recommendation {
	var recs []models.Recommendation

	if stats.MedianPrice > stats.AveragePrice {
		recs = append(recs, models.Recommendation{Record: &models.RecommendationRecord{
			Type:        "pricing",
			Title:       "Premium positioning opportunity",
			Description: "The median sits above the average, so the market tolerates premium pricing; consider positioning in the upper segments.",
			Impact:      "high",
		}})
	} else {
		recs = append(recs, models.Recommendation{Record: &models.RecommendationRecord{
			Type:        "pricing",
			Title:       "Price-sensitive market",
			Description: "The median sits below the average, so the market is price-sensitive; consider competitive pricing strategies.",
			Impact:      "high",
		}})
	}

	spread := stats.PriceRange.Max - stats.PriceRange.Min
	if spread > stats.AveragePrice {
		recs = append(recs, models.Recommendation{Record: &models.RecommendationRecord{
			Type:        "segmentation",
			Title:       "Diverse market segments",
			Description: "The wide price range indicates diverse market segments; consider multi-tier pricing.",
			Impact:      "medium",
		}})
	} else {
		recs = append(recs, models.Recommendation{Record: &models.RecommendationRecord{
			Type:        "segmentation",
			Title:       "Standardized pricing",
			Description: "The narrow price range suggests standardized pricing; focus on value-added features.",
			Impact:      "medium",
		}})
	}

	return recs
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func stdev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	sum := 0.0
	for _, v := range values {
		sum += (v - m) * (v - m)
	}
	return math.Sqrt(sum / float64(len(values)-1))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
