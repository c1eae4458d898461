package rtc

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/recbit/meetrec/internal/core"
	"github.com/recbit/meetrec/internal/domain"
)

// Control-channel message types. Unknown types are not an error; they are
// logged and ignored for forward compatibility.
const (
	msgClientReady         = "client_ready"
	msgParticipantJoined   = "participant_joined"
	msgParticipantLeft     = "participant_left"
	msgParticipantUpdate   = "participant_update"
	msgMediaUpdate         = "media_update"
	msgPresentationStarted = "presentation_started"
	msgPresentationStopped = "presentation_stopped"
)

// envelope is the wire shape of every control-channel message.
type envelope struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

func encodeMessage(msgType string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{
		Type:      msgType,
		Data:      raw,
		Timestamp: time.Now().UnixMilli(),
	})
}

func decodeMessage(raw []byte) (*envelope, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrProtocolDecode, err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("%w: empty type", core.ErrProtocolDecode)
	}
	return &env, nil
}

type participantJoinedPayload struct {
	ID           domain.ParticipantID `json:"id"`
	DisplayName  string               `json:"display_name"`
	AudioEnabled bool                 `json:"audio_enabled"`
	VideoEnabled bool                 `json:"video_enabled"`
}

type participantLeftPayload struct {
	ID domain.ParticipantID `json:"id"`
}

// participantUpdatePayload is a partial merge: nil fields leave the
// existing record untouched.
type participantUpdatePayload struct {
	ID           domain.ParticipantID `json:"id"`
	DisplayName  *string              `json:"display_name,omitempty"`
	Presenting   *bool                `json:"presenting,omitempty"`
	AudioEnabled *bool                `json:"audio_enabled,omitempty"`
	VideoEnabled *bool                `json:"video_enabled,omitempty"`
}

type mediaUpdatePayload struct {
	ID           domain.ParticipantID `json:"id"`
	AudioEnabled bool                 `json:"audio_enabled"`
	VideoEnabled bool                 `json:"video_enabled"`
}

type presentationPayload struct {
	PresenterID domain.ParticipantID `json:"presenter_id"`
}

type clientReadyPayload struct {
	Role string `json:"role"`
}
