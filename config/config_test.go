package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsExcluded(t *testing.T) {
	cfg := Default()

	assert.True(t, cfg.IsExcluded("Posted"))
	assert.True(t, cfg.IsExcluded("posted"), "normalized attribute keys match too")
	assert.True(t, cfg.IsExcluded("chat_available"))
	assert.True(t, cfg.IsExcluded("Breadcrumb Path"))
	assert.True(t, cfg.IsExcluded("breadcrumb_path"))
	assert.False(t, cfg.IsExcluded("phone"))
	assert.False(t, cfg.IsExcluded("fuel_type"))
}

func TestSelectLocationsDefault(t *testing.T) {
	for _, selector := range []string{"", "all", " ALL "} {
		locs := SelectLocations(selector)
		require.Len(t, locs, 2, "selector %q", selector)
		assert.Equal(t, "lahore", locs[0].Key)
		assert.Equal(t, "karachi", locs[1].Key)
	}
}

func TestSelectLocationsByKey(t *testing.T) {
	locs := SelectLocations("karachi")
	require.Len(t, locs, 1)
	assert.Equal(t, "Karachi", locs[0].Name)

	locs = SelectLocations("lahore, karachi")
	assert.Len(t, locs, 2)

	locs = SelectLocations("atlantis")
	assert.Empty(t, locs)
}

func TestSelectLocationsEnablesExplicitChoice(t *testing.T) {
	locs := SelectLocations("islamabad")
	require.Len(t, locs, 1)
	assert.True(t, locs[0].Enabled)
}

func TestDelayBounds(t *testing.T) {
	cfg := Default()
	for i := 0; i < 50; i++ {
		d := cfg.Jitter()
		assert.GreaterOrEqual(t, d, cfg.MinJitter)
		assert.LessOrEqual(t, d, cfg.MaxJitter)
	}

	cfg.MinDelay = 100 * time.Millisecond
	cfg.MaxDelay = 100 * time.Millisecond
	assert.Equal(t, 100*time.Millisecond, cfg.RequestDelay(), "degenerate range returns the floor")
}
