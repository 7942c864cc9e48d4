package scraper

// CSS selectors used across the scraper. The site's markup is unstable, so
// every field lookup is a prioritized list of alternatives; first match wins
// and absence yields an empty string.
const (
	// Listing anchors on a search-results page.
	ListItemSelector = `a[href*="/item/"][href*="iid-"]`

	// Readiness signal on a detail page.
	DetailReadySelector = `body`
)

// Card ancestors that wrap a listing anchor on the results page.
var CardAncestorSelectors = []string{
	`div[aria-label="Ad"]`,
	`div[data-cy="l-card"]`,
	`article`,
	`li`,
}

// Card-level field chains (results page).
var (
	CardTitleSelectors = []string{
		`[aria-label="Title"] h2`,
		`[aria-label="Title"] span`,
		`[aria-label="Title"] div`,
		`._34bc0d5f span`,
		`._562a2db2`,
		`h2`,
	}
	CardPriceSelectors = []string{
		`[aria-label="Price"] span`,
		`[aria-label="Price"] div`,
		`span.ddc1b288`,
	}
	CardLocationSelectors = []string{
		`[aria-label="Location"] span`,
		`[aria-label="Location"] div`,
		`div.f7d5e47e`,
	}
)

// Detail-page field chains.
var (
	TitleSelectors = []string{
		`h1`,
		`[data-testid="ad-title"]`,
		`h1._562a2db2`,
		`h1[itemprop="name"]`,
	}
	PriceSelectors = []string{
		`[aria-label="Price"] span`,
		`[data-testid="ad-price"]`,
		`span.ddc1b288`,
		`.price`,
		`[itemprop="price"]`,
	}
	DescriptionSelectors = []string{
		`[data-aut-id="itemDescriptionContent"]`,
		`[data-testid="ad-description"]`,
		`#description`,
		`.description`,
		`[itemprop="description"]`,
	}
	LocationSelectors = []string{
		`[data-aut-id="item-location"]`,
		`.seller-location`,
		`[aria-label="Location"]`,
		`div.f7d5e47e`,
	}
	SellerNameSelectors = []string{
		`[data-testid="seller-name"]`,
		`[data-aut-id="profileCard"] h4`,
	}
	SellerSinceSelectors = []string{
		`.seller-since`,
		`[data-aut-id="sellerSince"]`,
	}
	SellerProfileSelector = `a[href*="/profile/"]`
	AdIDSelector          = `[data-aut-id="adId"]`
)
