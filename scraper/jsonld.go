package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	jsoniter "github.com/json-iterator/go"

	"github.com/muteekhan06/olx-scraper-auto/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// JSON-LD @type values worth mining for listing fields.
var jsonLDTypes = map[string]bool{
	"Product":      true,
	"Offer":        true,
	"Vehicle":      true,
	"Car":          true,
	"WebPage":      true,
	"Organization": true,
}

// applyJSONLD fills d from the page's structured-data blocks — the
// highest-confidence source for title, description, price, images and the
// seller name. Earlier blocks win; malformed blocks are skipped.
func applyJSONLD(doc *goquery.Document, d *models.ListingDetail) []string {
	var images []string

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, script *goquery.Selection) {
		raw := strings.TrimSpace(script.Text())
		if raw == "" {
			return
		}

		var parsed any
		if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
			return
		}

		objs, ok := parsed.([]any)
		if !ok {
			objs = []any{parsed}
		}

		for _, entry := range objs {
			obj, ok := entry.(map[string]any)
			if !ok || !hasWantedType(obj["@type"]) {
				continue
			}

			if d.Title == "" {
				d.Title = firstString(obj, "name", "headline")
			}
			if d.Description == "" {
				d.Description = firstString(obj, "description")
			}

			switch img := obj["image"].(type) {
			case string:
				images = append(images, img)
			case []any:
				for _, item := range img {
					if s, ok := item.(string); ok {
						images = append(images, s)
					}
				}
			}

			if offers, ok := obj["offers"].(map[string]any); ok && d.Price == "" {
				price := asString(offers["price"])
				currency := asString(offers["priceCurrency"])
				if price != "" {
					d.Price = strings.TrimSpace(currency + " " + price)
				}
			}

			if seller, ok := obj["seller"].(map[string]any); ok && d.SellerName == "" {
				d.SellerName = asString(seller["name"])
			}
		}
	})

	return images
}

func hasWantedType(raw any) bool {
	switch t := raw.(type) {
	case string:
		return jsonLDTypes[t]
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok && jsonLDTypes[s] {
				return true
			}
		}
	}
	return false
}

func firstString(obj map[string]any, keys ...string) string {
	for _, key := range keys {
		if s := asString(obj[key]); s != "" {
			return s
		}
	}
	return ""
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case float64:
		// Numbers show up where strings are expected (price as a bare
		// number); render without a trailing .0 for integral values.
		b, err := json.Marshal(s)
		if err != nil {
			return ""
		}
		return string(b)
	}
	return ""
}
