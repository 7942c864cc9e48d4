package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeDetailFieldsWin(t *testing.T) {
	basic := ListingBasic{
		Title:    "Card Title",
		Link:     "https://www.olx.com.pk/item/corolla-iid-101",
		Price:    "PKR 100",
		Location: "Card Location",
	}
	detail := ListingDetail{
		Title: "Detail Title",
		Link:  "https://www.olx.com.pk/item/corolla-iid-101",
		Price: "PKR 2,450,000",
	}

	merged := Merge(basic, detail)

	assert.Equal(t, "Detail Title", merged.Title)
	assert.Equal(t, "PKR 2,450,000", merged.Price)
	// Detail had no location, so the card value fills the gap.
	assert.Equal(t, "Card Location", merged.Location)
}

func TestMergeEmptyNeverOverwrites(t *testing.T) {
	basic := ListingBasic{Title: "Card Title", Link: "x", Price: "PKR 100"}
	detail := ListingDetail{Title: "   ", Link: "x"}

	merged := Merge(basic, detail)

	assert.Equal(t, "Card Title", merged.Title)
	assert.Equal(t, "PKR 100", merged.Price)
}

func TestRecordInlinesSpecsAndContact(t *testing.T) {
	d := ListingDetail{
		AdID:   "101",
		Title:  "Corolla",
		Link:   "https://www.olx.com.pk/item/corolla-iid-101",
		Images: []string{"https://img/b.jpg", "https://img/a.jpg"},
		Specs:  map[string]string{"fuel_type": "Petrol"},
		Contact: map[string]string{
			"phone": "0300-1234567",
			// A contact key colliding with a fixed field must not win.
			KeyTitle: "injected",
		},
	}

	rec := d.Record()

	assert.Equal(t, "101", rec[KeyAdID])
	assert.Equal(t, "Corolla", rec[KeyTitle])
	assert.Equal(t, "Petrol", rec["fuel_type"])
	assert.Equal(t, "0300-1234567", rec["phone"])
	assert.Equal(t, []string{"https://img/a.jpg", "https://img/b.jpg"}, rec[KeyImages])
}

func TestHasField(t *testing.T) {
	d := ListingDetail{
		Title: "Corolla",
		Specs: map[string]string{"fuel_type": "Petrol", "color": ""},
	}

	assert.True(t, d.HasField(KeyTitle))
	assert.True(t, d.HasField("fuel_type"))
	assert.False(t, d.HasField(KeyPrice))
	assert.False(t, d.HasField("color"), "empty values do not count as present")
	assert.False(t, d.HasField("never_seen"))

	d.SetContact("phone", "0300")
	assert.True(t, d.HasField("phone"))
}

func TestFlattenResultsSkipsFailures(t *testing.T) {
	results := []LocationResult{
		{Key: "lahore", Listings: []ListingDetail{{Link: "a"}, {Link: "b"}}},
		{Key: "karachi", Err: errors.New("boom"), Listings: []ListingDetail{{Link: "c"}}},
		{Key: "islamabad", Listings: []ListingDetail{{Link: "d"}}},
	}

	flat := FlattenResults(results)

	require.Len(t, flat, 3)
	assert.Equal(t, "a", flat[0].Link)
	assert.Equal(t, "d", flat[2].Link)
}

func TestProgressFuncNilSafe(t *testing.T) {
	var f ProgressFunc
	assert.NotPanics(t, func() { f.Emit("ignored %d", 1) })

	var got string
	f = func(msg string) { got = msg }
	f.Emit("saw %d items", 3)
	assert.Equal(t, "saw 3 items", got)
}
