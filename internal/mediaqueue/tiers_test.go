package mediaqueue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTierSeconds(t *testing.T) {
	tests := []struct {
		amount int64
		want   int
	}{
		{1000, 10},
		{4999, 10},
		{5000, 15},
		{10000, 30},
		{25000, 60},
		{60000, 120},
		{100000, 240},
		{150000, 300},
		{10000000, 300},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TierSeconds(tt.amount), "amount %d", tt.amount)
	}
}

func TestTierTableIsNonDecreasing(t *testing.T) {
	prev := 0
	for amount := int64(0); amount <= 200000; amount += 500 {
		got := TierSeconds(amount)
		assert.GreaterOrEqual(t, got, prev, "amount %d", amount)
		assert.LessOrEqual(t, got, MaxSeconds)
		prev = got
	}
}

func TestDurationFor(t *testing.T) {
	assert.Equal(t, 30, DurationFor(10000, 0))
	assert.Equal(t, 20, DurationFor(10000, 20))
	assert.Equal(t, 30, DurationFor(10000, 90))
	assert.Equal(t, 300, DurationFor(500000, 900))
}

func TestParseVideoURL(t *testing.T) {
	valid := []string{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		"https://youtube.com/watch?v=dQw4w9WgXcQ&t=42",
		"https://m.youtube.com/watch?v=dQw4w9WgXcQ",
		"https://youtu.be/dQw4w9WgXcQ",
		"youtu.be/dQw4w9WgXcQ",
		"https://www.youtube.com/shorts/dQw4w9WgXcQ",
		"https://www.youtube.com/embed/dQw4w9WgXcQ",
	}
	for _, raw := range valid {
		id, canonical, err := ParseVideoURL(raw)
		if assert.NoError(t, err, raw) {
			assert.Equal(t, "dQw4w9WgXcQ", id)
			assert.Equal(t, "https://www.youtube.com/watch?v=dQw4w9WgXcQ", canonical)
		}
	}

	invalid := []string{
		"",
		"https://vimeo.com/1234567",
		"https://www.youtube.com/watch",
		"https://www.youtube.com/watch?v=short",
		"ftp://youtube.com/watch?v=dQw4w9WgXcQ",
		"https://www.youtube.com/channel/UC1234567890",
	}
	for _, raw := range invalid {
		_, _, err := ParseVideoURL(raw)
		assert.ErrorIs(t, err, ErrInvalidMedia, raw)
	}
}
