package store_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmedaymanzekry/codex-belya/internal/store"
)

func TestQuotaWindowRoundTrip(t *testing.T) {
	s := newTestStore(t)

	_, err := s.LoadQuotaWindow("short")
	assert.ErrorIs(t, err, store.ErrWindowNotFound)

	start := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, s.SaveQuotaWindow(&store.QuotaWindowRow{
		Kind:            "short",
		WindowStart:     start,
		Accumulated:     750,
		FiredThresholds: nil,
	}))

	window, err := s.LoadQuotaWindow("short")
	require.NoError(t, err)
	assert.EqualValues(t, 750, window.Accumulated)
	assert.True(t, window.WindowStart.Equal(start))
	assert.Empty(t, window.FiredThresholds)

	// Upsert replaces state; fired set round-trips.
	require.NoError(t, s.SaveQuotaWindow(&store.QuotaWindowRow{
		Kind:            "short",
		WindowStart:     start.Add(time.Hour),
		Accumulated:     950,
		FiredThresholds: []int{80, 90},
	}))

	window, err = s.LoadQuotaWindow("short")
	require.NoError(t, err)
	assert.EqualValues(t, 950, window.Accumulated)
	assert.Equal(t, []int{80, 90}, window.FiredThresholds)
}
