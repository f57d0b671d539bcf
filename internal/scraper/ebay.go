package scraper

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"strings"

	"github.com/gocolly/colly/v2"

	"github.com/ejezie/Enact-Pricing/internal/models"
)

// Scraper fetches marketplace listings for a search request.
type Scraper interface {
	Search(ctx context.Context, req *models.SearchRequest) ([]models.Product, error)
}

// Rotated desktop user agents. eBay serves a degraded page to obvious bots.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15",
}

// HTTPScraper scrapes eBay search result pages over plain HTTP with colly.
type HTTPScraper struct {
	// AllowedDomains restricts which hosts the collector may visit. Nil
	// allows any host (used by tests against a local server).
	AllowedDomains []string
}

// NewHTTPScraper creates an HTTP scraper restricted to the eBay hosts.
func NewHTTPScraper() *HTTPScraper {
	domains := make([]string, 0, len(countryHosts))
	for _, host := range countryHosts {
		domains = append(domains, host)
	}
	return &HTTPScraper{AllowedDomains: domains}
}

// Search fetches one results page and returns up to ResultsLimit listings
// in page order.
func (s *HTTPScraper) Search(ctx context.Context, req *models.SearchRequest) ([]models.Product, error) {
	searchURL := BuildSearchURL(req)
	log.Printf("[scraper] fetching %s", searchURL)

	c := colly.NewCollector(
		colly.UserAgent(userAgents[rand.Intn(len(userAgents))]),
	)
	if s.AllowedDomains != nil {
		c.AllowedDomains = s.AllowedDomains
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var products []models.Product

	c.OnHTML("li.s-item", func(e *colly.HTMLElement) {
		if len(products) >= req.ResultsLimit {
			return
		}

		title := strings.TrimSpace(e.ChildText(".s-item__title"))
		price := strings.TrimSpace(e.ChildText(".s-item__price"))
		link := e.ChildAttr("a.s-item__link", "href")

		// eBay pads the first row with a "Shop on eBay" placeholder.
		if title == "" || price == "" || link == "" || strings.EqualFold(title, "shop on ebay") {
			return
		}

		condition := strings.TrimSpace(e.ChildText(".SECONDARY_INFO"))
		if condition == "" {
			condition = "Not specified"
		}

		products = append(products, models.Product{
			Title:     title,
			Price:     price,
			Condition: condition,
			Shipping:  strings.TrimSpace(e.ChildText(".s-item__shipping")),
			Link:      link,
			Location:  strings.TrimSpace(e.ChildText(".s-item__location")),
			Seller:    strings.TrimSpace(e.ChildText(".s-item__seller-info-text")),
			Country:   req.Country,
		})
	})

	var visitErr error
	c.OnError(func(_ *colly.Response, err error) {
		visitErr = err
	})

	if err := c.Visit(searchURL); err != nil {
		return nil, fmt.Errorf("failed to scrape website: %w", err)
	}
	c.Wait()

	if visitErr != nil {
		return nil, fmt.Errorf("failed to scrape website: %w", visitErr)
	}
	return products, nil
}
