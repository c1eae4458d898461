package core

import (
	"context"

	"github.com/pion/rtp"

	"github.com/recbit/meetrec/internal/domain"
)

// SessionState is the negotiation state machine's own state, distinct from
// the transport's reported connectivity (the two can diverge transiently).
type SessionState string

const (
	StateIdle          SessionState = "idle"
	StateInitializing  SessionState = "initializing"
	StateNegotiating   SessionState = "negotiating"
	StateConnected     SessionState = "connected"
	StateRecording     SessionState = "recording"
	StateDisconnecting SessionState = "disconnecting"
	StateDisconnected  SessionState = "disconnected"
	StateFailed        SessionState = "failed"
)

// TransportState mirrors the peer-connection primitive's connectivity.
type TransportState string

const (
	TransportNew          TransportState = "new"
	TransportConnecting   TransportState = "connecting"
	TransportConnected    TransportState = "connected"
	TransportDisconnected TransportState = "disconnected"
	TransportFailed       TransportState = "failed"
	TransportClosed       TransportState = "closed"
)

type TrackKind string

const (
	KindAudio TrackKind = "audio"
	KindVideo TrackKind = "video"
)

// RemoteTrack is a single live audio or video source delivered by the
// transport. Narrow on purpose: the registry and the encoder are testable
// without a live peer connection.
type RemoteTrack interface {
	ID() string
	StreamID() string
	Kind() TrackKind
	// ReadRTP blocks until the next packet or the track ends.
	ReadRTP() (*rtp.Packet, error)
}

// MediaSession is the negotiation state machine owning the track registry
// and the control-channel protocol for one conference connection.
type MediaSession interface {
	// Initialize allocates the underlying media transport with the fixed
	// transceiver plan and opens the control data channel.
	Initialize() error
	// Connect runs the offer/answer exchange against the signaling transport.
	Connect(ctx context.Context, signaling SignalingTransport, handle domain.ConferenceHandle, projectID string) error
	State() SessionState
	TransportState() TransportState
	// Tracks snapshots the current live track set.
	Tracks() []RemoteTrack
	Participants() []domain.Participant
	ParticipantIDs() []string
	// OnTrackChange registers a callback invoked after the live track set
	// changes. At most one callback; set before Connect.
	OnTrackChange(func())
	// OnFatal registers a callback for unrecoverable transport failure.
	OnFatal(func(error))
	// Disconnect tears everything down. Calling it twice is a no-op.
	Disconnect()
}
