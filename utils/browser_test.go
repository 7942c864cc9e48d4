package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/muteekhan06/olx-scraper-auto/config"
)

func TestSessionPoolTracking(t *testing.T) {
	p := NewSessionPool(config.Default(), zap.NewNop())
	assert.Zero(t, p.Len())

	s := &Session{ID: "a", pool: p}
	p.track(s)
	p.track(&Session{ID: "b", pool: p})
	assert.Equal(t, 2, p.Len())

	s.Close()
	assert.Equal(t, 1, p.Len())
	s.Close() // idempotent
	assert.Equal(t, 1, p.Len())

	p.CloseAll()
	assert.Zero(t, p.Len())
}

func TestSessionCloseWithoutPool(t *testing.T) {
	var s Session
	assert.NotPanics(t, s.Close)
}
