package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muteekhan06/olx-scraper-auto/models"
)

func TestParsePrice(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"PKR 2,450,000", 2450000, true},
		{"Rs 12,500", 12500, true},
		{"900", 900, true},
		{"Contact for price", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParsePrice(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestBuildSummaryStats(t *testing.T) {
	listings := []models.ListingDetail{
		{Title: "Corolla", Price: "PKR 2,450,000", LocationName: "Lahore",
			Contact: map[string]string{"phone": "0300"}},
		{Title: "Civic", Price: "PKR 5,100,000", LocationName: "Lahore"},
		{Title: "Alto", Price: "PKR 900,000", LocationName: "Karachi"},
		{Title: "No Price", Price: "Contact for price", LocationName: "Karachi"},
	}

	stats := BuildSummaryStats(listings)

	assert.Equal(t, 4, stats.TotalListings)
	assert.Equal(t, 3, stats.PricedListings)
	assert.Equal(t, 1, stats.EnrichedListings)
	assert.InDelta(t, 2816666.67, stats.AveragePrice, 1)
	assert.Equal(t, float64(900000), stats.MinimumPrice)
	assert.Equal(t, float64(5100000), stats.MaximumPrice)
	assert.Equal(t, "Civic", stats.MostExpensiveListing.Title)

	require.Len(t, stats.ListingsPerLocation, 2)
	assert.Equal(t, LocationCount{Location: "Karachi", Count: 2}, stats.ListingsPerLocation[0])
	assert.Equal(t, LocationCount{Location: "Lahore", Count: 2}, stats.ListingsPerLocation[1])
}

func TestBuildSummaryStatsEmpty(t *testing.T) {
	stats := BuildSummaryStats(nil)
	assert.Equal(t, 0, stats.TotalListings)
	assert.Zero(t, stats.AveragePrice)
	assert.Empty(t, stats.ListingsPerLocation)
}
