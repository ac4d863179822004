package shared

import (
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
)

func TestTimeframeString(t *testing.T) {
	tests := []struct {
		name      string
		timeframe Timeframe
		want      string
	}{
		{
			name:      "one minute",
			timeframe: OneMinute,
			want:      "1m",
		},
		{
			name:      "five minute",
			timeframe: FiveMinute,
			want:      "5m",
		},
		{
			name:      "fifteen minute",
			timeframe: FifteenMinute,
			want:      "15m",
		},
		{
			name:      "one hour",
			timeframe: OneHour,
			want:      "1h",
		},
		{
			name:      "one day",
			timeframe: OneDay,
			want:      "1d",
		},
		{
			name:      "unknown",
			timeframe: Timeframe(999),
			want:      "unknown",
		},
	}

	for _, test := range tests {
		str := test.timeframe.String()
		if str != test.want {
			t.Errorf("%s: expected %v, got %v", test.name, test.want, str)
		}
	}
}

func TestParseTimeframe(t *testing.T) {
	tf, err := ParseTimeframe("5m")
	assert.NoError(t, err)
	assert.Equal(t, tf, FiveMinute)

	tf, err = ParseTimeframe("1H")
	assert.NoError(t, err)
	assert.Equal(t, tf, OneHour)

	_, err = ParseTimeframe("3w")
	assert.Error(t, err)
}

func TestTimeframeDuration(t *testing.T) {
	assert.Equal(t, OneMinute.Duration(), time.Minute)
	assert.Equal(t, OneHour.Duration(), time.Hour)
	assert.Equal(t, OneDay.Duration(), time.Hour*24)
	assert.Equal(t, Timeframe(999).Duration(), time.Duration(0))
}
