package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFixed(t *testing.T) {
	at := time.Date(2024, 3, 10, 23, 30, 0, 0, time.FixedZone("CET", 3600))
	c := NewFixed(at)

	assert.Equal(t, at.UTC(), c.Now())
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), Today(c))
}

func TestDate_UsesUTCCalendarDay(t *testing.T) {
	// 00:30 in UTC+2 is still the previous day in UTC.
	at := time.Date(2024, 3, 11, 0, 30, 0, 0, time.FixedZone("EET", 2*3600))
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), Date(at))
}

func TestSystem(t *testing.T) {
	now := NewSystem().Now()
	assert.Equal(t, time.UTC, now.Location())
	assert.WithinDuration(t, time.Now(), now, time.Second)
}
