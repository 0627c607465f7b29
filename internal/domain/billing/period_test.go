package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMonthPeriod(t *testing.T) {
	p := MonthPeriod(time.Date(2024, time.February, 10, 8, 0, 0, 0, time.UTC))

	assert.Equal(t, time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC), p.Start)
	assert.Equal(t, time.Date(2024, time.February, 29, 23, 59, 59, 999999000, time.UTC), p.End)
	assert.True(t, p.Contains(p.Start))
	assert.True(t, p.Contains(p.End))
	assert.False(t, p.Contains(p.End.Add(time.Microsecond)))
	assert.False(t, p.Contains(p.Start.Add(-time.Microsecond)))
}

func TestMonthPeriod_NormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	// 1 Jan 01:00 at UTC+3 is still December in UTC.
	p := MonthPeriod(time.Date(2025, time.January, 1, 1, 0, 0, 0, loc))

	assert.Equal(t, time.December, p.Start.Month())
	assert.Equal(t, 2024, p.Start.Year())
	assert.Equal(t, time.UTC, p.Start.Location())
}

func TestMonthPeriod_December(t *testing.T) {
	p := MonthPeriod(time.Date(2023, time.December, 31, 23, 0, 0, 0, time.UTC))

	assert.Equal(t, 2023, p.End.Year())
	assert.Equal(t, 31, p.End.Day())
}
