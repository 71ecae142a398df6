package validation

import (
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
	}{
		{"45m", 45 * time.Minute},
		{"2h", 2 * time.Hour},
		{"1d", Day},
		{"1d12h", Day + 12*time.Hour},
		{"1w2d", Week + 2*Day},
		{"90m0s", 90 * time.Minute},
		{" 3D ", 3 * Day},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseDuration(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseDurationRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "abc", "1x", "d1", "1d-2h", "-5m", "1d 2h"} {
		_, err := ParseDuration(in)
		assert.Error(t, err, in)
	}
}

func TestFormatDurationRoundTrip(t *testing.T) {
	for _, d := range []time.Duration{Day + 2*time.Hour, 45 * time.Minute, 7 * Day, 30 * time.Second} {
		s := FormatDuration(d)
		back, err := ParseDuration(s)
		require.NoError(t, err, s)
		assert.Equal(t, d, back)
	}
	assert.Equal(t, "0s", FormatDuration(0))
	assert.Equal(t, "1d2h", FormatDuration(26*time.Hour))
}

func TestValidateTitle(t *testing.T) {
	assert.NoError(t, ValidateTitle("Summer giveaway"))
	assert.Error(t, ValidateTitle("   "))
	assert.Error(t, ValidateTitle(strings.Repeat("x", MaxTitleLength+1)))
}

func TestValidateOption(t *testing.T) {
	assert.NoError(t, ValidateOption("A", "Pizza"))
	assert.Error(t, ValidateOption("", "Pizza"))
	assert.Error(t, ValidateOption("A", " "))
	assert.Error(t, ValidateOption(strings.Repeat("a", MaxOptionIDLength+1), "Pizza"))
}

func TestDurationTag(t *testing.T) {
	v := validator.New()
	require.NoError(t, RegisterValidators(v))

	type req struct {
		Duration string `validate:"omitempty,duration"`
	}
	assert.NoError(t, v.Struct(req{Duration: "2h"}))
	assert.NoError(t, v.Struct(req{}))
	assert.Error(t, v.Struct(req{Duration: "0m"}))
	assert.Error(t, v.Struct(req{Duration: "soon"}))
}
