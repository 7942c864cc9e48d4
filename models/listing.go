package models

import (
	"fmt"
	"sort"
	"strings"
)

// ListingBasic holds the card-level fields scraped from a search-results page.
// Link is canonical and serves as the deduplication key.
type ListingBasic struct {
	Title    string `json:"title"`
	Link     string `json:"link"`
	Price    string `json:"price"`
	Location string `json:"location"`
}

// ListingDetail holds everything known about one listing after the detail
// page has been extracted. A timed-out extraction carries only Link.
type ListingDetail struct {
	AdID          string            `json:"ad_id"`
	Title         string            `json:"title"`
	Link          string            `json:"link"`
	Price         string            `json:"price"`
	Location      string            `json:"location"`
	Description   string            `json:"description"`
	Images        []string          `json:"images,omitempty"`
	SellerName    string            `json:"seller_name"`
	SellerSince   string            `json:"seller_since"`
	SellerProfile string            `json:"seller_profile"`
	Specs         map[string]string `json:"specs,omitempty"`
	Contact       map[string]string `json:"contact,omitempty"`

	// Set by the orchestrator from the originating LocationConfig.
	LocationKey  string `json:"location_key"`
	LocationName string `json:"location_name"`
}

// LocationResult is produced per crawled location.
type LocationResult struct {
	Key      string
	Name     string
	Index    int // original position in the location list — preserves output order
	Listings []ListingDetail
	Err      error
}

// FlattenResults concatenates per-location listings in location order,
// skipping failed locations. Order within a location is completion order.
func FlattenResults(results []LocationResult) []ListingDetail {
	var out []ListingDetail
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		out = append(out, r.Listings...)
	}
	return out
}

// ProgressFunc receives human-readable status lines at crawl milestones.
// A nil ProgressFunc is valid and drops every message.
type ProgressFunc func(message string)

// Emit formats and delivers a progress message, tolerating a nil callback.
func (f ProgressFunc) Emit(format string, args ...any) {
	if f == nil {
		return
	}
	f(fmt.Sprintf(format, args...))
}

// Merge overlays a detail record on the basic record it originated from.
// Detail fields win; basic fields fill gaps; an empty value never replaces a
// present one. The result always carries empty strings, never missing fields.
func Merge(basic ListingBasic, detail ListingDetail) ListingDetail {
	out := detail
	out.Title = pick(detail.Title, basic.Title)
	out.Link = pick(detail.Link, basic.Link)
	out.Price = pick(detail.Price, basic.Price)
	out.Location = pick(detail.Location, basic.Location)
	return out
}

func pick(primary, fallback string) string {
	if strings.TrimSpace(primary) != "" {
		return primary
	}
	return strings.TrimSpace(fallback)
}

// Canonical record keys for the fixed fields, matching the export contract.
const (
	KeyAdID          = "Ad ID"
	KeyTitle         = "Title"
	KeyLink          = "Link"
	KeyPrice         = "Price"
	KeyLocation      = "Location"
	KeyDescription   = "Description"
	KeyImages        = "Images"
	KeySellerName    = "Seller Name"
	KeySellerSince   = "Seller Since"
	KeySellerProfile = "seller_profile"
	KeyLocationKey   = "location_key"
	KeyLocationName  = "location_name"
)

// Record flattens the listing into the export contract: string keys mapped to
// scalar-or-list-of-string values, spec attributes and contact fields inlined.
func (d ListingDetail) Record() map[string]any {
	rec := map[string]any{
		KeyAdID:          d.AdID,
		KeyTitle:         d.Title,
		KeyLink:          d.Link,
		KeyPrice:         d.Price,
		KeyLocation:      d.Location,
		KeyDescription:   d.Description,
		KeySellerName:    d.SellerName,
		KeySellerSince:   d.SellerSince,
		KeySellerProfile: d.SellerProfile,
		KeyLocationKey:   d.LocationKey,
		KeyLocationName:  d.LocationName,
	}
	imgs := make([]string, len(d.Images))
	copy(imgs, d.Images)
	sort.Strings(imgs)
	rec[KeyImages] = imgs
	for k, v := range d.Specs {
		if _, taken := rec[k]; !taken {
			rec[k] = v
		}
	}
	for k, v := range d.Contact {
		if _, taken := rec[k]; !taken {
			rec[k] = v
		}
	}
	return rec
}

// HasField reports whether the flat record view already carries a non-empty
// value under key. Contact enrichment checks this before merging so contact
// data never overwrites scraped fields.
func (d ListingDetail) HasField(key string) bool {
	switch key {
	case KeyAdID:
		return d.AdID != ""
	case KeyTitle:
		return d.Title != ""
	case KeyLink:
		return d.Link != ""
	case KeyPrice:
		return d.Price != ""
	case KeyLocation:
		return d.Location != ""
	case KeyDescription:
		return d.Description != ""
	case KeyImages:
		return len(d.Images) > 0
	case KeySellerName:
		return d.SellerName != ""
	case KeySellerSince:
		return d.SellerSince != ""
	case KeySellerProfile:
		return d.SellerProfile != ""
	}
	if v, ok := d.Specs[key]; ok && v != "" {
		return true
	}
	if v, ok := d.Contact[key]; ok && v != "" {
		return true
	}
	return false
}

// SetContact records one contact field, allocating the map on first use.
func (d *ListingDetail) SetContact(key, value string) {
	if d.Contact == nil {
		d.Contact = make(map[string]string)
	}
	d.Contact[key] = value
}
