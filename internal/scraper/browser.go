package scraper

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/ejezie/Enact-Pricing/internal/models"
)

// extractScript pulls the listing fields out of the rendered results page.
// Kept as a single evaluation so one round trip returns everything.
const extractScript = `
(() => {
	const rows = document.querySelectorAll("ul.srp-results li.s-item");
	const items = [];
	for (const row of rows) {
		const text = (sel) => {
			const el = row.querySelector(sel);
			return el ? el.textContent.trim() : "";
		};
		const link = row.querySelector("a.s-item__link");
		items.push({
			title: text(".s-item__title"),
			price: text(".s-item__price"),
			condition: text(".SECONDARY_INFO"),
			shipping: text(".s-item__shipping"),
			location: text(".s-item__location"),
			seller: text(".s-item__seller-info-text"),
			link: link ? link.href : "",
		});
	}
	return items;
})()
`

// BrowserScraper drives a headless browser for pages that only render
// listings through JavaScript.
type BrowserScraper struct {
	// ChromeBin overrides the browser binary path when set.
	ChromeBin string
	// Timeout bounds a single page load and extraction.
	Timeout time.Duration
}

// NewBrowserScraper creates a chromedp-backed scraper.
func NewBrowserScraper(chromeBin string) *BrowserScraper {
	return &BrowserScraper{
		ChromeBin: chromeBin,
		Timeout:   60 * time.Second,
	}
}

// Search renders one results page in a headless browser and returns up to
// ResultsLimit listings in page order.
func (s *BrowserScraper) Search(ctx context.Context, req *models.SearchRequest) ([]models.Product, error) {
	searchURL := BuildSearchURL(req)
	log.Printf("[scraper] rendering %s", searchURL)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(userAgents[0]),
	)
	if s.ChromeBin != "" {
		opts = append(opts, chromedp.ExecPath(s.ChromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancelBrowser()

	runCtx, cancelRun := context.WithTimeout(browserCtx, s.Timeout)
	defer cancelRun()

	var raw []struct {
		Title     string `json:"title"`
		Price     string `json:"price"`
		Condition string `json:"condition"`
		Shipping  string `json:"shipping"`
		Location  string `json:"location"`
		Seller    string `json:"seller"`
		Link      string `json:"link"`
	}

	err := chromedp.Run(runCtx,
		chromedp.Navigate(searchURL),
		chromedp.WaitVisible("ul.srp-results li.s-item", chromedp.ByQuery),
		chromedp.Evaluate(extractScript, &raw),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scrape website: %w", err)
	}

	products := make([]models.Product, 0, req.ResultsLimit)
	for _, item := range raw {
		if len(products) >= req.ResultsLimit {
			break
		}
		if item.Title == "" || item.Price == "" || item.Link == "" {
			continue
		}
		if item.Title == "Shop on eBay" {
			continue
		}

		condition := item.Condition
		if condition == "" {
			condition = "Not specified"
		}

		products = append(products, models.Product{
			Title:     item.Title,
			Price:     item.Price,
			Condition: condition,
			Shipping:  item.Shipping,
			Link:      item.Link,
			Location:  item.Location,
			Seller:    item.Seller,
			Country:   req.Country,
		})
	}

	return products, nil
}
