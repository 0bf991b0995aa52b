package handlers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStartOfDayIsLocalMidnight(t *testing.T) {
	nairobi := time.FixedZone("EAT", 3*60*60)

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			// 01:30 in Nairobi is still the previous day in UTC, so a
			// UTC-based boundary would drop last evening's revenue.
			name: "early morning ahead of UTC",
			now:  time.Date(2026, time.September, 1, 1, 30, 0, 0, nairobi),
			want: time.Date(2026, time.September, 1, 0, 0, 0, 0, nairobi),
		},
		{
			name: "midday",
			now:  time.Date(2026, time.September, 1, 12, 0, 0, 0, nairobi),
			want: time.Date(2026, time.September, 1, 0, 0, 0, 0, nairobi),
		},
		{
			name: "utc stays utc",
			now:  time.Date(2026, time.September, 1, 23, 59, 59, 0, time.UTC),
			want: time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := startOfDay(tt.now)
			assert.True(t, got.Equal(tt.want), "got %v, want %v", got, tt.want)
			assert.Equal(t, tt.now.Location(), got.Location())
		})
	}
}
