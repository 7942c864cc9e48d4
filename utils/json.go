package utils

import (
	"encoding/json"
	"os"

	"github.com/muteekhan06/olx-scraper-auto/models"
)

// WriteJSON writes all listings as a flat JSON array of export records.
// Returns the number of records written.
func WriteJSON(filename string, listings []models.ListingDetail) (int, error) {
	records := make([]map[string]any, 0, len(listings))
	for _, l := range listings {
		records = append(records, l.Record())
	}

	f, err := os.Create(filename)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return 0, err
	}

	return len(records), nil
}
