package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFixedClock(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewFixed(now)

	assert.Equal(t, now, c.Now())
	assert.Equal(t, now, c.Now())
}

func TestManualClock_Advance(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewManual(now)

	c.Advance(15 * time.Minute)

	assert.Equal(t, now.Add(15*time.Minute), c.Now())
}
