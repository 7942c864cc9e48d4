package scraper

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/muteekhan06/olx-scraper-auto/config"
	"github.com/muteekhan06/olx-scraper-auto/models"
	"github.com/muteekhan06/olx-scraper-auto/utils"
)

var (
	adIDLinkPattern = regexp.MustCompile(`iid-(\d+)`)
	adIDTextPattern = regexp.MustCompile(`(?i)Ad\s*ID\s*:?\s*(\w+)`)
	specKeyPattern  = regexp.MustCompile(`[^a-z0-9]+`)
)

// AdIDFromLink derives the numeric ad id from a canonical detail URL, the
// sole mechanism when no explicit id field exists. Returns "" on no match.
func AdIDFromLink(link string) string {
	if m := adIDLinkPattern.FindStringSubmatch(link); m != nil {
		return m[1]
	}
	return ""
}

// ExtractDetail loads one listing detail page and produces a full attribute
// record. A render timeout yields a record containing only the link: partial
// success, not failure.
func ExtractDetail(s *utils.Session, cfg config.Config, pageURL string) (models.ListingDetail, error) {
	d := models.ListingDetail{Link: pageURL}

	err := navigate(s, pageURL, cfg.NavRetries, cfg.RetryPause, nil)
	if err != nil {
		return d, fmt.Errorf("load detail page %s: %w", pageURL, err)
	}

	ready, err := waitReady(s, DetailReadySelector, cfg.DetailWait)
	if err != nil {
		return d, fmt.Errorf("wait for detail page %s: %w", pageURL, err)
	}
	if !ready {
		return d, nil
	}

	time.Sleep(cfg.Jitter())
	scrollPage(s, 2, cfg.ScrollPause)

	html, err := pageHTML(s)
	if err != nil {
		return d, err
	}

	return ParseDetailHTML(pageURL, html, cfg.IsExcluded)
}

// ParseDetailHTML extracts a full listing record from a rendered detail page.
// Extraction is layered: structured-data blocks first, then selector fallback
// chains, then free-text attribute rows. excluded (nil = allow all) filters
// spec-attribute keys.
func ParseDetailHTML(pageURL, html string, excluded func(string) bool) (models.ListingDetail, error) {
	d := models.ListingDetail{Link: pageURL}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return d, fmt.Errorf("parse detail page: %w", err)
	}
	if excluded == nil {
		excluded = func(string) bool { return false }
	}

	ldImages := applyJSONLD(doc, &d)

	if d.Title == "" {
		d.Title = extractFirst(doc, TitleSelectors)
	}
	if d.Price == "" {
		d.Price = extractFirst(doc, PriceSelectors)
	}
	if d.Description == "" {
		d.Description = extractDescription(doc)
	}
	if d.Location == "" {
		d.Location = extractFirst(doc, LocationSelectors)
	}
	if d.SellerName == "" {
		d.SellerName = extractFirst(doc, SellerNameSelectors)
	}
	d.SellerSince = extractFirst(doc, SellerSinceSelectors)

	d.Images = mergeImageSets(ldImages, extractImages(doc))

	d.AdID = extractAdID(doc)
	if d.AdID == "" {
		d.AdID = AdIDFromLink(pageURL)
	}

	if profile := doc.Find(SellerProfileSelector).First(); profile.Length() > 0 {
		if href := strings.TrimSpace(profile.AttrOr("href", "")); href != "" {
			if strings.HasPrefix(href, "http") {
				d.SellerProfile = href
			} else {
				d.SellerProfile = "https://www.olx.com.pk" + href
			}
		}
	}

	for key, value := range extractSpecs(doc) {
		if excluded(key) || d.HasField(key) {
			continue
		}
		if d.Specs == nil {
			d.Specs = make(map[string]string)
		}
		d.Specs[key] = value
	}

	normalizeDetail(&d)
	return d, nil
}

// extractFirst tries each selector in priority order and returns the first
// non-empty text.
func extractFirst(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		if text := strings.TrimSpace(doc.Find(sel).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

// extractDescription finds the first matching description container and joins
// its direct paragraph/span/div children with spaces, so multi-paragraph
// descriptions come out readable. A container without element children yields
// its own text.
func extractDescription(doc *goquery.Document) string {
	node := doc.Find(strings.Join(DescriptionSelectors, ", ")).First()
	if node.Length() == 0 {
		return ""
	}

	var parts []string
	node.ChildrenFiltered("p, span, div").Each(func(_ int, child *goquery.Selection) {
		if text := strings.TrimSpace(child.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	if len(parts) > 0 {
		return strings.Join(parts, " ")
	}
	return strings.TrimSpace(node.Text())
}

// extractImages collects every image URL from img and source elements:
// src, data-src, and the first URL of every comma-separated srcset entry.
func extractImages(doc *goquery.Document) []string {
	set := make(map[string]struct{})
	add := func(raw string) {
		raw = strings.TrimSpace(raw)
		if strings.HasPrefix(raw, "http") {
			set[raw] = struct{}{}
		}
	}
	addSrcset := func(srcset string) {
		for _, token := range strings.Split(srcset, ",") {
			if fields := strings.Fields(strings.TrimSpace(token)); len(fields) > 0 {
				add(fields[0])
			}
		}
	}

	doc.Find("img").Each(func(_ int, img *goquery.Selection) {
		add(img.AttrOr("src", ""))
		add(img.AttrOr("data-src", ""))
		addSrcset(img.AttrOr("srcset", ""))
	})
	doc.Find("source").Each(func(_ int, source *goquery.Selection) {
		addSrcset(source.AttrOr("srcset", ""))
	})

	out := make([]string, 0, len(set))
	for u := range set {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

func mergeImageSets(sets ...[]string) []string {
	merged := make(map[string]struct{})
	for _, set := range sets {
		for _, u := range set {
			u = strings.TrimSpace(u)
			if u != "" {
				merged[u] = struct{}{}
			}
		}
	}
	if len(merged) == 0 {
		return nil
	}
	out := make([]string, 0, len(merged))
	for u := range merged {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// extractAdID reads the explicit ad-id node, falling back to a free-text
// "Ad ID: <id>" scan over the whole page.
func extractAdID(doc *goquery.Document) string {
	if node := doc.Find(AdIDSelector).First(); node.Length() > 0 {
		text := strings.TrimSpace(node.Text())
		text = strings.ReplaceAll(text, "Ad ID", "")
		text = strings.ReplaceAll(text, ":", "")
		if text = strings.TrimSpace(text); text != "" {
			return text
		}
	}

	if m := adIDTextPattern.FindStringSubmatch(doc.Text()); m != nil {
		return m[1]
	}
	return ""
}

// extractSpecs pulls free-form attributes from list and definition markup.
// Each li contributing at least two non-empty text fragments becomes one
// key/value pair; dl rows pair dt with dd.
func extractSpecs(doc *goquery.Document) map[string]string {
	specs := make(map[string]string)

	doc.Find("ul li, .ad-attributes li").Each(func(_ int, li *goquery.Selection) {
		var texts []string
		li.Find("span, div").Each(func(_ int, el *goquery.Selection) {
			if text := strings.TrimSpace(el.Text()); text != "" {
				texts = append(texts, text)
			}
		})
		if len(texts) < 2 {
			return
		}
		key := normalizeSpecKey(texts[0])
		value := strings.Join(texts[1:], " ")
		if key != "" && value != "" {
			if _, taken := specs[key]; !taken {
				specs[key] = value
			}
		}
	})

	doc.Find("dl").Each(func(_ int, dl *goquery.Selection) {
		dts := dl.Find("dt")
		dds := dl.Find("dd")
		n := dts.Length()
		if dds.Length() < n {
			n = dds.Length()
		}
		for i := 0; i < n; i++ {
			key := normalizeSpecKey(strings.TrimSpace(dts.Eq(i).Text()))
			value := strings.TrimSpace(dds.Eq(i).Text())
			if key != "" && value != "" {
				if _, taken := specs[key]; !taken {
					specs[key] = value
				}
			}
		}
	})

	return specs
}

// normalizeSpecKey lowercases a raw attribute name and collapses every run of
// non-alphanumeric characters into a single underscore.
func normalizeSpecKey(raw string) string {
	key := specKeyPattern.ReplaceAllString(strings.ToLower(strings.TrimSpace(raw)), "_")
	return strings.Trim(key, "_")
}

// normalizeDetail trims every string field and blanks values equal to "N/A"
// in any casing.
func normalizeDetail(d *models.ListingDetail) {
	fields := []*string{
		&d.AdID, &d.Title, &d.Price, &d.Location, &d.Description,
		&d.SellerName, &d.SellerSince, &d.SellerProfile,
	}
	for _, f := range fields {
		*f = normalizeValue(*f)
	}
	for k, v := range d.Specs {
		d.Specs[k] = normalizeValue(v)
	}
}

func normalizeValue(v string) string {
	v = strings.TrimSpace(v)
	if strings.EqualFold(v, "N/A") {
		return ""
	}
	return v
}
