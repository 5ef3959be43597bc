package tzconv

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLegacyChicagoWinterAndSummer(t *testing.T) {
	jan := time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC)
	got, err := Legacy{}.ToUTC(jan, "09:00", "America/Chicago")
	require.NoError(t, err)
	assert.Equal(t, "2025-01-15T15:00:00Z", got.Format(time.RFC3339))

	jul := time.Date(2025, time.July, 15, 0, 0, 0, 0, time.UTC)
	got, err = Legacy{}.ToUTC(jul, "09:00", "America/Chicago")
	require.NoError(t, err)
	assert.Equal(t, "2025-07-15T14:00:00Z", got.Format(time.RFC3339))
}

func TestLegacyPhoenixNeverObservesDST(t *testing.T) {
	jan := time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC)
	jul := time.Date(2025, time.July, 15, 0, 0, 0, 0, time.UTC)

	winter, err := Legacy{}.ToUTC(jan, "09:00", "America/Phoenix")
	require.NoError(t, err)
	summer, err := Legacy{}.ToUTC(jul, "09:00", "America/Phoenix")
	require.NoError(t, err)

	assert.Equal(t, "16:00", winter.Format("15:04"))
	assert.Equal(t, "16:00", summer.Format("15:04"))
}

func TestRealChicagoMatchesLegacyOnTheSameDays(t *testing.T) {
	jan := time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC)
	jul := time.Date(2025, time.July, 15, 0, 0, 0, 0, time.UTC)

	legacyJan, _ := Legacy{}.ToUTC(jan, "09:00", "America/Chicago")
	realJan, err := Real{}.ToUTC(jan, "09:00", "America/Chicago")
	require.NoError(t, err)
	assert.Equal(t, legacyJan, realJan)

	legacyJul, _ := Legacy{}.ToUTC(jul, "09:00", "America/Chicago")
	realJul, err := Real{}.ToUTC(jul, "09:00", "America/Chicago")
	require.NoError(t, err)
	assert.Equal(t, legacyJul, realJul)
}

func TestForModeSelectsImplementation(t *testing.T) {
	_, isLegacy := ForMode("legacy").(Legacy)
	assert.True(t, isLegacy)

	_, isReal := ForMode("real").(Real)
	assert.True(t, isReal)

	_, isRealDefault := ForMode("").(Real)
	assert.True(t, isRealDefault)
}
