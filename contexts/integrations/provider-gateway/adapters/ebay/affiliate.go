package ebay

import "net/url"

// EPN (eBay Partner Network) tracking constants for the US marketplace.
const (
	epnRotationID = "711-53200-19255-0"
	epnToolID     = "10001"
)

// AffiliateURL decorates an eBay item URL with EPN tracking parameters.
// Missing campaign id or an unparseable URL returns the input unchanged.
func AffiliateURL(itemURL string, campaignID string, customID string) string {
	if campaignID == "" {
		return itemURL
	}
	parsed, err := url.Parse(itemURL)
	if err != nil || parsed.Host == "" {
		return itemURL
	}

	params := parsed.Query()
	params.Set("mkevt", "1")
	params.Set("mkcid", "1")
	params.Set("mkrid", epnRotationID)
	params.Set("campid", campaignID)
	params.Set("toolid", epnToolID)
	if customID != "" {
		params.Set("customid", customID)
	}
	parsed.RawQuery = params.Encode()
	return parsed.String()
}
