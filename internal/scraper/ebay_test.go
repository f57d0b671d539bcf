package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ejezie/Enact-Pricing/internal/models"
)

const resultsPageHeader = `<!DOCTYPE html>
<html><body><ul class="srp-results">
<li class="s-item">
  <div class="s-item__title">Shop on eBay</div>
  <span class="s-item__price">£20.00</span>
  <a class="s-item__link" href="https://www.ebay.co.uk/itm/0"></a>
</li>`

func listingRow(i int, condition string) string {
	cond := ""
	if condition != "" {
		cond = fmt.Sprintf(`<span class="SECONDARY_INFO">%s</span>`, condition)
	}
	return fmt.Sprintf(`
<li class="s-item">
  <div class="s-item__title">Listing %d</div>
  <span class="s-item__price">£%d.00</span>
  <a class="s-item__link" href="https://www.ebay.co.uk/itm/%d"></a>
  %s
  <span class="s-item__shipping">Free postage</span>
  <span class="s-item__location">from London</span>
</li>`, i, 10+i, i, cond)
}

func serveResultsPage(t *testing.T, rows int) *httptest.Server {
	t.Helper()
	var page strings.Builder
	page.WriteString(resultsPageHeader)
	for i := 1; i <= rows; i++ {
		cond := "Used"
		if i == 1 {
			cond = "" // first real row has no condition badge
		}
		page.WriteString(listingRow(i, cond))
	}
	page.WriteString(`</ul></body></html>`)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(page.String()))
	}))
	t.Cleanup(server.Close)
	return server
}

func localRequest(serverURL string, limit int) *models.SearchRequest {
	req := &models.SearchRequest{BaseURL: serverURL, ResultsLimit: limit}
	req.ApplyDefaults()
	return req
}

func TestHTTPScraperSearch(t *testing.T) {
	server := serveResultsPage(t, 4)
	sc := &HTTPScraper{} // nil AllowedDomains: visit the local server

	products, err := sc.Search(context.Background(), localRequest(server.URL, 10))
	require.NoError(t, err)
	require.Len(t, products, 4, "the Shop on eBay placeholder row is skipped")

	// Page order is preserved.
	for i, p := range products {
		assert.Equal(t, fmt.Sprintf("Listing %d", i+1), p.Title)
		assert.Equal(t, fmt.Sprintf("£%d.00", 11+i), p.Price)
		assert.Equal(t, "Free postage", p.Shipping)
		assert.Equal(t, "from London", p.Location)
	}

	// Missing condition badge falls back to "Not specified".
	assert.Equal(t, "Not specified", products[0].Condition)
	assert.Equal(t, "Used", products[1].Condition)
}

func TestHTTPScraperSearch_RespectsLimit(t *testing.T) {
	server := serveResultsPage(t, 8)
	sc := &HTTPScraper{}

	products, err := sc.Search(context.Background(), localRequest(server.URL, 3))
	require.NoError(t, err)
	assert.Len(t, products, 3)
}

func TestHTTPScraperSearch_EmptyPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body><ul class="srp-results"></ul></body></html>`))
	}))
	defer server.Close()

	sc := &HTTPScraper{}
	products, err := sc.Search(context.Background(), localRequest(server.URL, 10))
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestHTTPScraperSearch_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	sc := &HTTPScraper{}
	_, err := sc.Search(context.Background(), localRequest(server.URL, 10))
	assert.Error(t, err)
}

func TestHTTPScraperSearch_CancelledContext(t *testing.T) {
	server := serveResultsPage(t, 2)
	sc := &HTTPScraper{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := sc.Search(ctx, localRequest(server.URL, 10))
	assert.ErrorIs(t, err, context.Canceled)
}
