package scraper

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/muteekhan06/olx-scraper-auto/config"
	"github.com/muteekhan06/olx-scraper-auto/models"
	"github.com/muteekhan06/olx-scraper-auto/utils"
)

// DiscoverListPage loads one search-results page and returns the card-level
// listings found on it. An empty result with a nil error means the page
// rendered no listings — the terminal signal for pagination, not a failure.
func DiscoverListPage(s *utils.Session, cfg config.Config, pageURL string, maxItems int, progress models.ProgressFunc) ([]models.ListingBasic, error) {
	progress.Emit("Loading: %s", pageURL)

	err := navigate(s, pageURL, cfg.NavRetries, cfg.RetryPause, func(attempt int, err error) {
		progress.Emit("Network error (attempt %d/%d): retrying in %s...",
			attempt, cfg.NavRetries, cfg.RetryPause)
	})
	if err != nil {
		return nil, fmt.Errorf("load list page %s: %w", pageURL, err)
	}

	visible, err := waitVisible(s, ListItemSelector, cfg.PageWait)
	if err != nil {
		return nil, fmt.Errorf("wait for listings on %s: %w", pageURL, err)
	}
	if !visible {
		progress.Emit("No listings found on page (timeout)")
		return nil, nil
	}

	scrollPage(s, 3, cfg.ScrollPause)

	html, err := pageHTML(s)
	if err != nil {
		return nil, err
	}

	listings, err := ParseListHTML(html, pageURL, maxItems)
	if err != nil {
		return nil, err
	}
	progress.Emit("Found %d listings", len(listings))
	return listings, nil
}

// ParseListHTML extracts card-level listings from a rendered results page.
// Anchors are deduplicated by resolved href in first-seen order and capped at
// maxItems (0 = unlimited).
func ParseListHTML(html, pageURL string, maxItems int) ([]models.ListingBasic, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse list page: %w", err)
	}

	base, _ := url.Parse(pageURL)

	seen := make(map[string]bool)
	var out []models.ListingBasic

	doc.Find(ListItemSelector).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href := resolveHref(base, a.AttrOr("href", ""))
		if href == "" || seen[href] {
			return true
		}
		if !strings.Contains(href, "/item/") || !strings.Contains(href, "iid-") {
			return true
		}
		seen[href] = true

		basic := models.ListingBasic{Link: href}
		basic.Title = strings.TrimSpace(a.AttrOr("title", ""))
		card := closestCard(a)
		if basic.Title == "" {
			basic.Title = firstCardText(card, CardTitleSelectors)
		}
		basic.Price = firstCardText(card, CardPriceSelectors)
		basic.Location = firstCardText(card, CardLocationSelectors)

		out = append(out, basic)
		return maxItems <= 0 || len(out) < maxItems
	})

	return out, nil
}

// resolveHref absolutizes an anchor href against the page URL.
func resolveHref(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	return ref.String()
}

// closestCard walks up from a listing anchor to its wrapping card element,
// trying each structural alternative in priority order.
func closestCard(a *goquery.Selection) *goquery.Selection {
	for _, sel := range CardAncestorSelectors {
		if card := a.Closest(sel); card.Length() > 0 {
			return card
		}
	}
	return nil
}

// firstCardText returns the first non-empty text a selector chain yields
// inside the card, or "" when the card is missing or nothing matches.
func firstCardText(card *goquery.Selection, selectors []string) string {
	if card == nil {
		return ""
	}
	for _, sel := range selectors {
		if text := strings.TrimSpace(card.Find(sel).First().Text()); text != "" {
			return text
		}
	}
	return ""
}
