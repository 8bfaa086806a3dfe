package scalar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTime(t *testing.T) {
	tests := []struct {
		input     string
		want      Time
		canonical string
	}{
		{"12:34:56", Time{12, 34, 56, 0}, "12:34:56"},
		{"00:00:00", Time{0, 0, 0, 0}, "00:00:00"},
		{"23:59:59.5", Time{23, 59, 59, 500_000_000}, "23:59:59.500"},
		{"01:02:03.000123", Time{1, 2, 3, 123_000}, "01:02:03.000123"},
		{"01:02:03.123456789", Time{1, 2, 3, 123_456_789}, "01:02:03.123456789"},
		{"1:2:3.25", Time{1, 2, 3, 250_000_000}, "01:02:03.250"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseTime(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.canonical, got.String())

			again, err := ParseTime(got.String())
			require.NoError(t, err)
			assert.Equal(t, got, again)
		})
	}
}

func TestParseTime_Rejects(t *testing.T) {
	for _, input := range []string{
		"24:00:00",
		"12:60:00",
		"12:00:60",
		"12:00:00.1234567890",
		"12:00",
		"noon",
	} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseTime(input)
			assert.True(t, IsParseError(err, KindTime), "got %v", err)
		})
	}
}

func TestNewTime_NoCarry(t *testing.T) {
	_, err := NewTime(10, 0, 0, 1_000_000_000)
	assert.Error(t, err)

	_, err = NewTime(10, 0, 60, 0)
	assert.Error(t, err)
}

func TestTime_SinceMidnight(t *testing.T) {
	tm := MustParseTime("01:01:01.000000001")
	assert.Equal(t, time.Hour+time.Minute+time.Second+time.Nanosecond, tm.SinceMidnight())
	assert.Equal(t, -1, MustParseTime("01:00:00").Compare(tm))
}
