package utils

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/muteekhan06/olx-scraper-auto/models"
)

type LocationCount struct {
	Location string
	Count    int
}

type SummaryStats struct {
	TotalListings        int
	PricedListings       int
	AveragePrice         float64
	MinimumPrice         float64
	MaximumPrice         float64
	MostExpensiveListing models.ListingDetail
	ListingsPerLocation  []LocationCount
	EnrichedListings     int
}

var priceDigits = regexp.MustCompile(`[\d,]+`)

// ParsePrice pulls a numeric amount out of a scraped price string such as
// "PKR 2,450,000". Returns 0 and false when no digits are present.
func ParsePrice(raw string) (float64, bool) {
	m := priceDigits.FindString(raw)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// BuildSummaryStats aggregates the final record set for the terminal summary.
func BuildSummaryStats(listings []models.ListingDetail) SummaryStats {
	stats := SummaryStats{TotalListings: len(listings)}
	if len(listings) == 0 {
		return stats
	}

	perLocation := make(map[string]int)
	var totalPrice float64
	first := true

	for _, l := range listings {
		name := strings.TrimSpace(l.LocationName)
		if name == "" {
			name = "Unknown"
		}
		perLocation[name]++

		if len(l.Contact) > 0 {
			stats.EnrichedListings++
		}

		price, ok := ParsePrice(l.Price)
		if !ok {
			continue
		}
		stats.PricedListings++
		totalPrice += price
		if first || price < stats.MinimumPrice {
			stats.MinimumPrice = price
		}
		if first || price > stats.MaximumPrice {
			stats.MaximumPrice = price
			stats.MostExpensiveListing = l
		}
		first = false
	}

	if stats.PricedListings > 0 {
		stats.AveragePrice = totalPrice / float64(stats.PricedListings)
	}

	counts := make([]LocationCount, 0, len(perLocation))
	for name, count := range perLocation {
		counts = append(counts, LocationCount{Location: name, Count: count})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count == counts[j].Count {
			return counts[i].Location < counts[j].Location
		}
		return counts[i].Count > counts[j].Count
	})
	stats.ListingsPerLocation = counts

	return stats
}
