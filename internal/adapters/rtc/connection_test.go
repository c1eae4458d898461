package rtc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recbit/meetrec/internal/core"
	"github.com/recbit/meetrec/internal/domain"
)

func TestNewConnectionStartsIdle(t *testing.T) {
	c := NewConnection("abc-defg-hij")

	assert.Equal(t, core.StateIdle, c.State())
	assert.Equal(t, core.TransportNew, c.TransportState())
	assert.Empty(t, c.Tracks())
	assert.Empty(t, c.Participants())
}

func TestConnectWithoutInitialize(t *testing.T) {
	c := NewConnection("abc-defg-hij")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := c.Connect(ctx, nil, domain.ConferenceHandle{Name: "spaces/x"}, "proj")
	require.ErrorIs(t, err, core.ErrTransportInit)
}

func TestInitializeAllocatesTransport(t *testing.T) {
	c := NewConnection("abc-defg-hij")

	require.NoError(t, c.Initialize())
	defer c.Disconnect()

	assert.Equal(t, core.StateInitializing, c.State())
	assert.Equal(t, core.TransportNew, c.TransportState())
}

func TestDisconnectIsIdempotent(t *testing.T) {
	c := NewConnection("abc-defg-hij")
	require.NoError(t, c.Initialize())

	c.Disconnect()
	c.Disconnect()

	assert.Equal(t, core.StateDisconnected, c.State())
	assert.Equal(t, core.TransportClosed, c.TransportState())
	assert.Empty(t, c.Tracks())
	assert.Empty(t, c.Participants())
}

func TestDisconnectBeforeInitialize(t *testing.T) {
	c := NewConnection("abc-defg-hij")

	c.Disconnect()

	assert.Equal(t, core.StateDisconnected, c.State())
	assert.Equal(t, core.TransportClosed, c.TransportState())
}

// The control channel's open callback can fire on the transport's goroutine
// after a timed-out start already tore the connection down.
func TestClientReadyAfterDisconnect(t *testing.T) {
	c := NewConnection("abc-defg-hij")
	require.NoError(t, c.Initialize())

	c.Disconnect()

	assert.NotPanics(t, func() { c.sendClientReady() })
}

func TestDisconnectClearsParticipants(t *testing.T) {
	c := NewConnection("abc-defg-hij")

	c.handleControlMessage(mustEncode(t, msgParticipantJoined, participantJoinedPayload{ID: "p1"}))
	require.Len(t, c.Participants(), 1)

	c.Disconnect()
	assert.Empty(t, c.Participants())
}
