package scraper

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/ejezie/Enact-Pricing/internal/models"
)

// countryHosts maps request country codes to eBay search hosts.
var countryHosts = map[string]string{
	"UK": "www.ebay.co.uk",
	"US": "www.ebay.com",
}

// sortCodes maps the frontend's sort labels to eBay _sop codes. Both label
// sets that shipped in the two frontend variants are accepted.
var sortCodes = map[string]string{
	"Best Match":                      "12",
	"Lowest Price":                    "15",
	"Price + Shipping: Lowest First":  "15",
	"Highest Price":                   "16",
	"Price + Shipping: Highest First": "16",
	"Newest":                          "10",
	"Recently Listed":                 "10",
	"Time: Newly Listed":              "10",
	"Ending Soon":                     "1",
}

// conditionCodes maps condition filter labels to eBay LH_ItemCondition codes.
var conditionCodes = map[string]string{
	"New":                      "1000",
	"Used":                     "3000",
	"Not Specified":            "10",
	"For Parts or Not Working": "7000",
}

// BuildSearchURL constructs the eBay search results URL for a request. In
// custom-URL mode the request's own URL is used unchanged.
func BuildSearchURL(req *models.SearchRequest) string {
	if req.CustomURLMode() {
		return req.BaseURL
	}

	host, ok := countryHosts[req.Country]
	if !ok {
		host = countryHosts[models.DefaultCountry]
	}

	params := url.Values{}
	params.Set("_nkw", req.SearchQuery)
	params.Set("_sacat", strconv.Itoa(req.Category))
	params.Set("_sop", sortCode(req.SortBy))
	if req.Location != "" {
		params.Set("_locationPrefix", req.Location)
	}
	if code, ok := conditionCodes[req.Condition]; ok {
		params.Set("LH_ItemCondition", code)
	}

	return fmt.Sprintf("https://%s/sch/i.html?%s", host, params.Encode())
}

func sortCode(label string) string {
	if code, ok := sortCodes[label]; ok {
		return code
	}
	return sortCodes[models.DefaultSortBy]
}
