// Package domain contains entity without logic, just meta-data
package domain

import "errors"

const MaxDisplayNameLen = 128

var (
	ErrParticipantIDEmpty = errors.New("participant id empty")
	ErrDisplayNameTooLong = errors.New("display name too long")
)

type ParticipantID string

// Participant is one conference attendee as reported over the control channel.
type Participant struct {
	ID           ParticipantID `json:"id"`
	DisplayName  string        `json:"display_name"`
	Presenting   bool          `json:"presenting"`
	AudioEnabled bool          `json:"audio_enabled"`
	VideoEnabled bool          `json:"video_enabled"`
}

// NewParticipant is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewParticipant(id ParticipantID, displayName string) (*Participant, error) {
	if len(id) == 0 {
		return nil, ErrParticipantIDEmpty
	}
	if len(displayName) > MaxDisplayNameLen {
		return nil, ErrDisplayNameTooLong
	}
	return &Participant{ID: id, DisplayName: displayName}, nil
}
