package database

import (
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
)

func TestGenerateMetadataID(t *testing.T) {
	stamp := time.Date(2025, 2, 18, 15, 0, 0, 0, time.UTC)

	// Ensure metadata ids are deterministic for a given week and market.
	id := generateMetadataID(stamp, "BTC/USDT")
	assert.Equal(t, id, "February-Week-2-BTC/USDT")
	assert.Equal(t, generateMetadataID(stamp, "BTC/USDT"), id)

	// Ensure a different week produces a different id.
	nextWeek := generateMetadataID(stamp.AddDate(0, 0, 7), "BTC/USDT")
	assert.NotEqual(t, nextWeek, id)
}
