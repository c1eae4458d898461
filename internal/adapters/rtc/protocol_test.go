package rtc

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recbit/meetrec/internal/core"
	"github.com/recbit/meetrec/internal/domain"
)

func mustEncode(t *testing.T, msgType string, data any) []byte {
	t.Helper()
	raw, err := encodeMessage(msgType, data)
	require.NoError(t, err)
	return raw
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	raw := mustEncode(t, msgParticipantJoined, participantJoinedPayload{
		ID:          "p1",
		DisplayName: "Ada",
	})

	env, err := decodeMessage(raw)
	require.NoError(t, err)
	assert.Equal(t, msgParticipantJoined, env.Type)
	assert.NotZero(t, env.Timestamp)

	var p participantJoinedPayload
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, domain.ParticipantID("p1"), p.ID)
	assert.Equal(t, "Ada", p.DisplayName)
}

func TestDecodeMessageRejectsMalformed(t *testing.T) {
	_, err := decodeMessage([]byte("{not json"))
	require.ErrorIs(t, err, core.ErrProtocolDecode)

	_, err = decodeMessage([]byte(`{"data":{}}`))
	require.ErrorIs(t, err, core.ErrProtocolDecode, "empty type is a decode failure")
}

func TestControlMessagesMaintainParticipantTable(t *testing.T) {
	c := NewConnection("abc-defg-hij")

	c.handleControlMessage(mustEncode(t, msgParticipantJoined, participantJoinedPayload{
		ID: "p2", DisplayName: "Grace", AudioEnabled: true,
	}))
	c.handleControlMessage(mustEncode(t, msgParticipantJoined, participantJoinedPayload{
		ID: "p1", DisplayName: "Ada", AudioEnabled: true, VideoEnabled: true,
	}))

	got := c.Participants()
	require.Len(t, got, 2)
	assert.Equal(t, domain.ParticipantID("p1"), got[0].ID, "sorted by id")
	assert.Equal(t, domain.ParticipantID("p2"), got[1].ID)
	assert.Equal(t, []string{"p1", "p2"}, c.ParticipantIDs())

	c.handleControlMessage(mustEncode(t, msgParticipantLeft, participantLeftPayload{ID: "p2"}))
	assert.Equal(t, []string{"p1"}, c.ParticipantIDs())
}

func TestParticipantUpdateMergesOnlySuppliedFields(t *testing.T) {
	c := NewConnection("abc-defg-hij")

	c.handleControlMessage(mustEncode(t, msgParticipantJoined, participantJoinedPayload{
		ID: "p1", DisplayName: "Ada", AudioEnabled: true, VideoEnabled: true,
	}))

	muted := false
	c.handleControlMessage(mustEncode(t, msgParticipantUpdate, participantUpdatePayload{
		ID: "p1", AudioEnabled: &muted,
	}))

	got := c.Participants()
	require.Len(t, got, 1)
	assert.Equal(t, "Ada", got[0].DisplayName, "unsupplied field untouched")
	assert.False(t, got[0].AudioEnabled)
	assert.True(t, got[0].VideoEnabled, "unsupplied field untouched")
}

func TestInvalidParticipantPayloadsDropped(t *testing.T) {
	c := NewConnection("abc-defg-hij")

	c.handleControlMessage(mustEncode(t, msgParticipantJoined, participantJoinedPayload{
		ID: "", DisplayName: "Nameless",
	}))
	c.handleControlMessage(mustEncode(t, msgParticipantJoined, participantJoinedPayload{
		ID: "p1", DisplayName: strings.Repeat("x", domain.MaxDisplayNameLen+1),
	}))
	c.handleControlMessage(mustEncode(t, msgParticipantUpdate, participantUpdatePayload{ID: ""}))

	assert.Empty(t, c.Participants())
}

func TestParticipantUpdateForUnknownIDCreatesRecord(t *testing.T) {
	c := NewConnection("abc-defg-hij")

	name := "Late Joiner"
	c.handleControlMessage(mustEncode(t, msgParticipantUpdate, participantUpdatePayload{
		ID: "p9", DisplayName: &name,
	}))

	got := c.Participants()
	require.Len(t, got, 1)
	assert.Equal(t, "Late Joiner", got[0].DisplayName)
}

func TestMediaUpdateIgnoresUnknownID(t *testing.T) {
	c := NewConnection("abc-defg-hij")

	c.handleControlMessage(mustEncode(t, msgMediaUpdate, mediaUpdatePayload{
		ID: "ghost", AudioEnabled: true,
	}))

	assert.Empty(t, c.Participants())
}

func TestPresentationMessagesToggleFlag(t *testing.T) {
	c := NewConnection("abc-defg-hij")

	c.handleControlMessage(mustEncode(t, msgParticipantJoined, participantJoinedPayload{ID: "p1"}))
	c.handleControlMessage(mustEncode(t, msgPresentationStarted, presentationPayload{PresenterID: "p1"}))
	assert.True(t, c.Participants()[0].Presenting)

	c.handleControlMessage(mustEncode(t, msgPresentationStopped, presentationPayload{PresenterID: "p1"}))
	assert.False(t, c.Participants()[0].Presenting)
}

func TestUnknownAndMalformedMessagesAreDropped(t *testing.T) {
	c := NewConnection("abc-defg-hij")

	c.handleControlMessage(mustEncode(t, "future_feature", map[string]string{"x": "y"}))
	c.handleControlMessage([]byte("{broken"))
	c.handleControlMessage(mustEncode(t, msgParticipantJoined, "not an object"))

	assert.Empty(t, c.Participants())
}

// Replaying only the net effect of a join/leave sequence must land on the
// same table as the full sequence.
func TestParticipantSequenceNetEffect(t *testing.T) {
	full := NewConnection("abc-defg-hij")
	net := NewConnection("abc-defg-hij")

	for _, id := range []domain.ParticipantID{"p1", "p2", "p3"} {
		full.handleControlMessage(mustEncode(t, msgParticipantJoined, participantJoinedPayload{ID: id}))
	}
	full.handleControlMessage(mustEncode(t, msgParticipantLeft, participantLeftPayload{ID: "p2"}))

	for _, id := range []domain.ParticipantID{"p1", "p3"} {
		net.handleControlMessage(mustEncode(t, msgParticipantJoined, participantJoinedPayload{ID: id}))
	}

	assert.Equal(t, net.Participants(), full.Participants())
}
