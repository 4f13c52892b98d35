package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateOf(t *testing.T) {
	jakarta, err := time.LoadLocation("Asia/Jakarta")
	require.NoError(t, err)

	// 2026-02-01 20:00 UTC is 2026-02-02 03:00 in Jakarta.
	at := time.Date(2026, 2, 1, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC), DateOf(at, jakarta))
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), DateOf(at, time.UTC))
}

func TestMonthRange(t *testing.T) {
	start, end, err := MonthRange("2026-02")
	require.NoError(t, err)
	assert.Equal(t, "2026-02-01", FormatDate(start))
	assert.Equal(t, "2026-03-01", FormatDate(end))

	_, _, err = MonthRange("2026-2")
	assert.Error(t, err)
}

func TestWholeMinutes(t *testing.T) {
	assert.Equal(t, 47, WholeMinutes(47*time.Minute+59*time.Second))
	assert.Equal(t, 0, WholeMinutes(59*time.Second))
}

func TestMonthOf(t *testing.T) {
	assert.Equal(t, "2026-12", MonthOf(time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)))
}
