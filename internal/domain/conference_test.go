package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMeetingCode(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  MeetingCode
		ok    bool
	}{
		{"canonical", "abc-defg-hij", "abc-defg-hij", true},
		{"digits allowed", "a1c-d2fg-h3j", "a1c-d2fg-h3j", true},
		{"uppercase rejected", "ABC-DEFG-HIJ", "", false},
		{"surrounding space rejected", " abc-defg-hij ", "", false},
		{"empty", "", "", false},
		{"missing dashes", "abcdefghij", "", false},
		{"segment too short", "ab-defg-hij", "", false},
		{"segment too long", "abc-defgh-hij", "", false},
		{"illegal characters", "abc-defg-hi!", "", false},
		{"url instead of code", "https://meet.example.com/abc-defg-hij", "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseMeetingCode(tc.input)
			if !tc.ok {
				require.ErrorIs(t, err, ErrInvalidMeetingCode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCredentialsEmpty(t *testing.T) {
	assert.True(t, Credentials{}.Empty())
	assert.True(t, Credentials{Email: "a@b.c"}.Empty())
	assert.True(t, Credentials{RefreshToken: "tok"}.Empty())
	assert.False(t, Credentials{Email: "a@b.c", RefreshToken: "tok"}.Empty())
}
