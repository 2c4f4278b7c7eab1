package duel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDedupExpiresAfterTTL(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	d := NewDedup(time.Minute, clock.Now)

	assert.False(t, d.IsDuplicate("BTC_100#0"))
	assert.True(t, d.IsDuplicate("BTC_100#0"))
	assert.False(t, d.IsDuplicate("BTC_100#1"))

	clock.Advance(time.Minute)
	assert.False(t, d.IsDuplicate("BTC_100#0"))

	clock.Advance(2 * time.Minute)
	d.Cleanup()
	assert.Equal(t, 0, d.Len())
}
