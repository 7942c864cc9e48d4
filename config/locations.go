package config

import "strings"

// LocationConfig defines one independent crawl target. Keys are unique across
// the configured set.
type LocationConfig struct {
	Key     string
	Name    string
	SeedURL string
	Enabled bool
}

// Locations returns the full configured location set, Lahore first.
func Locations() []LocationConfig {
	return []LocationConfig{
		{
			Key:     "lahore",
			Name:    "Lahore",
			SeedURL: "https://www.olx.com.pk/lahore_g4060673/cars_c84",
			Enabled: true,
		},
		{
			Key:     "karachi",
			Name:    "Karachi",
			SeedURL: "https://www.olx.com.pk/karachi_g4060810/cars_c84",
			Enabled: true,
		},
		{
			Key:     "islamabad",
			Name:    "Islamabad",
			SeedURL: "https://www.olx.com.pk/islamabad_g4060615/cars_c84",
			Enabled: false,
		},
	}
}

// SelectLocations resolves a caller-supplied selector ("all" or a
// comma-separated key list) to the locations it names. Unknown keys are
// ignored; an empty selector means every enabled location. Explicitly named
// locations are returned even when disabled.
func SelectLocations(selector string) []LocationConfig {
	all := Locations()

	selector = strings.TrimSpace(strings.ToLower(selector))
	if selector == "" || selector == "all" {
		out := make([]LocationConfig, 0, len(all))
		for _, loc := range all {
			if loc.Enabled {
				out = append(out, loc)
			}
		}
		return out
	}

	wanted := make(map[string]bool)
	for _, part := range strings.Split(selector, ",") {
		if key := strings.TrimSpace(part); key != "" {
			wanted[key] = true
		}
	}

	out := make([]LocationConfig, 0, len(wanted))
	for _, loc := range all {
		if wanted[loc.Key] {
			loc.Enabled = true // explicit selection overrides the default
			out = append(out, loc)
		}
	}
	return out
}
