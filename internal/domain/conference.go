package domain

import (
	"errors"
	"regexp"
	"time"
)

var ErrInvalidMeetingCode = errors.New("invalid meeting code")

// Three lowercase-alphanumeric groups of lengths 3-4-3, e.g. "abc-defg-hij".
var meetingCodeRe = regexp.MustCompile(`^[a-z0-9]{3}-[a-z0-9]{4}-[a-z0-9]{3}$`)

type MeetingCode string

// ParseMeetingCode validates the human meeting-code shape before any
// network call is made on its behalf.
func ParseMeetingCode(s string) (MeetingCode, error) {
	if !meetingCodeRe.MatchString(s) {
		return "", ErrInvalidMeetingCode
	}
	return MeetingCode(s), nil
}

// ConferenceHandle is the directory-resolved reference to a meeting space.
// Resolved once per session, read-only thereafter.
type ConferenceHandle struct {
	Name      string    `json:"name"`
	StartedAt time.Time `json:"started_at"`
}

// Conference is one live instance of a meeting, as seen by the directory.
type Conference struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`
}

// Credentials identify the recording identity on the conference platform.
// Token acquisition itself lives behind core.TokenProvider.
type Credentials struct {
	Email        string
	RefreshToken string
}

func (c Credentials) Empty() bool {
	return c.Email == "" || c.RefreshToken == ""
}
