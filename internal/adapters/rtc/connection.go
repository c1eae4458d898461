package rtc

import (
	"context"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/recbit/meetrec/internal/app"
	"github.com/recbit/meetrec/internal/core"
	"github.com/recbit/meetrec/internal/domain"
)

// The conference media plane requires exactly this receive shape.
const (
	audioRecvLines = 3
	videoRecvLines = 1
)

const (
	controlChannelLabel   = "meet-control"
	controlMaxRetransmits = uint16(5)
	eventBufferSize       = 64
)

func DefaultWebRTCConfig() webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{
				URLs: []string{"stun:stun.l.google.com:19302"},
			},
		},
	}
}

type eventKind int

const (
	evTrackArrived eventKind = iota
	evTrackEnded
	evControlMessage
	evStateChange
)

// connEvent funnels every independent event source (track arrival, control
// message, transport state change) into the single dispatch loop, so shared
// registries are never mutated from re-entrant callback contexts.
type connEvent struct {
	kind    eventKind
	track   *remoteTrack
	trackID string
	raw     []byte
	pcState webrtc.PeerConnectionState
}

// Connection is the media-session negotiation state machine. It owns the
// track registry and the participant table for one conference connection.
type Connection struct {
	label  string
	webCfg webrtc.Configuration

	pc     *webrtc.PeerConnection
	dc     *webrtc.DataChannel
	tracks *app.TrackRegistry

	mu            sync.RWMutex
	state         core.SessionState
	participants  map[domain.ParticipantID]*domain.Participant
	onTrackChange func()
	onFatal       func(error)

	events    chan connEvent
	done      chan struct{}
	closeOnce sync.Once
}

var _ core.MediaSession = (*Connection)(nil)

func NewConnection(label string) *Connection {
	return NewConnectionWithConfig(label, DefaultWebRTCConfig())
}

func NewConnectionWithConfig(label string, cfg webrtc.Configuration) *Connection {
	return &Connection{
		label:        label,
		webCfg:       cfg,
		tracks:       app.NewTrackRegistry(),
		state:        core.StateIdle,
		participants: make(map[domain.ParticipantID]*domain.Participant),
		events:       make(chan connEvent, eventBufferSize),
		done:         make(chan struct{}),
	}
}

// Initialize allocates the transport with three recvonly audio lines, one
// recvonly video line and the ordered limited-retransmission control
// channel, then starts the dispatch loop.
func (c *Connection) Initialize() error {
	pc, err := webrtc.NewPeerConnection(c.webCfg)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrTransportInit, err)
	}

	recvonly := webrtc.RTPTransceiverInit{Direction: webrtc.RTPTransceiverDirectionRecvonly}
	for i := 0; i < audioRecvLines; i++ {
		if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, recvonly); err != nil {
			_ = pc.Close()
			return fmt.Errorf("%w: audio transceiver: %v", core.ErrTransportInit, err)
		}
	}
	for i := 0; i < videoRecvLines; i++ {
		if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, recvonly); err != nil {
			_ = pc.Close()
			return fmt.Errorf("%w: video transceiver: %v", core.ErrTransportInit, err)
		}
	}

	ordered := true
	maxRetransmits := controlMaxRetransmits
	dc, err := pc.CreateDataChannel(controlChannelLabel, &webrtc.DataChannelInit{
		Ordered:        &ordered,
		MaxRetransmits: &maxRetransmits,
	})
	if err != nil {
		_ = pc.Close()
		return fmt.Errorf("%w: data channel: %v", core.ErrTransportInit, err)
	}

	dc.OnOpen(func() {
		c.sendClientReady()
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		c.post(connEvent{kind: evControlMessage, raw: msg.Data})
	})

	pc.OnTrack(func(t *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		log.Info().
			Str("module", "rtc").
			Str("label", c.label).
			Str("kind", t.Kind().String()).
			Str("track_id", t.ID()).
			Str("stream_id", t.StreamID()).
			Msg("remote track arrived")
		wrapped := wrapRemoteTrack(t, func(trackID string) {
			c.post(connEvent{kind: evTrackEnded, trackID: trackID})
		})
		c.post(connEvent{kind: evTrackArrived, track: wrapped})
	})

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().
			Str("module", "rtc").
			Str("label", c.label).
			Str("transport_state", s.String()).
			Msg("transport state")
		c.post(connEvent{kind: evStateChange, pcState: s})
	})

	c.mu.Lock()
	c.pc = pc
	c.dc = dc
	c.state = core.StateInitializing
	c.mu.Unlock()

	go c.dispatch()
	return nil
}

// Connect produces the local description, waits for candidate gathering,
// rewrites the DTLS role on the submitted copy, runs the offer/answer
// exchange and applies the remote description.
func (c *Connection) Connect(ctx context.Context, signaling core.SignalingTransport, handle domain.ConferenceHandle, projectID string) error {
	c.mu.RLock()
	pc := c.pc
	c.mu.RUnlock()
	if pc == nil {
		return fmt.Errorf("%w: not initialized", core.ErrTransportInit)
	}
	c.setState(core.StateNegotiating)

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		c.setState(core.StateFailed)
		return &core.NegotiationError{Stage: "offer", Cause: err}
	}

	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(offer); err != nil {
		c.setState(core.StateFailed)
		return &core.NegotiationError{Stage: "offer", Cause: err}
	}
	select {
	case <-gathered:
	case <-ctx.Done():
		c.setState(core.StateFailed)
		return ctx.Err()
	}

	localSDP, err := forceActiveRole(pc.LocalDescription().SDP)
	if err != nil {
		c.setState(core.StateFailed)
		return &core.NegotiationError{Stage: "offer", Cause: err}
	}

	answerSDP, err := signaling.ExchangeOffer(ctx, handle, localSDP, projectID)
	if err != nil {
		c.setState(core.StateFailed)
		return err
	}

	answer := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: answerSDP}
	if err := pc.SetRemoteDescription(answer); err != nil {
		c.setState(core.StateFailed)
		return &core.NegotiationError{Stage: "answer", Cause: err}
	}

	c.setState(core.StateConnected)
	log.Info().Str("module", "rtc").Str("label", c.label).Msg("negotiation complete")
	return nil
}

func (c *Connection) post(ev connEvent) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

// dispatch is the single consumer of every event source for this
// connection.
func (c *Connection) dispatch() {
	for {
		select {
		case <-c.done:
			return
		case ev := <-c.events:
			switch ev.kind {
			case evTrackArrived:
				c.tracks.Add(ev.track)
				c.notifyTrackChange()
			case evTrackEnded:
				c.tracks.Remove(ev.trackID)
				c.notifyTrackChange()
			case evControlMessage:
				c.handleControlMessage(ev.raw)
			case evStateChange:
				c.handleTransportState(ev.pcState)
			}
		}
	}
}

func (c *Connection) handleTransportState(s webrtc.PeerConnectionState) {
	if s != webrtc.PeerConnectionStateFailed {
		return
	}
	// Connectivity failure is fatal; reconnection policy, if any, belongs
	// to the orchestrator.
	c.setState(core.StateFailed)
	c.mu.RLock()
	onFatal := c.onFatal
	c.mu.RUnlock()
	if onFatal != nil {
		onFatal(fmt.Errorf("transport failed for %s", c.label))
	}
}

func (c *Connection) notifyTrackChange() {
	c.mu.RLock()
	fn := c.onTrackChange
	c.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// sendClientReady runs on pion's open callback; Disconnect may have nilled
// the channel handle by then, so it is snapshotted under the lock.
func (c *Connection) sendClientReady() {
	c.mu.RLock()
	dc := c.dc
	c.mu.RUnlock()
	if dc == nil {
		return
	}

	msg, err := encodeMessage(msgClientReady, clientReadyPayload{Role: "recorder"})
	if err != nil {
		log.Error().Err(err).Str("module", "rtc").Msg("encode client_ready")
		return
	}
	if err := dc.SendText(string(msg)); err != nil {
		log.Error().Err(err).Str("module", "rtc").Str("label", c.label).Msg("send client_ready")
		return
	}
	log.Info().Str("module", "rtc").Str("label", c.label).Msg("control channel open, client_ready sent")
}

func (c *Connection) setState(s core.SessionState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Connection) State() core.SessionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// TransportState reports the transport's own connectivity, which can
// diverge transiently from the session state machine.
func (c *Connection) TransportState() core.TransportState {
	c.mu.RLock()
	pc := c.pc
	c.mu.RUnlock()
	if pc == nil {
		select {
		case <-c.done:
			return core.TransportClosed
		default:
			return core.TransportNew
		}
	}
	switch pc.ConnectionState() {
	case webrtc.PeerConnectionStateConnecting:
		return core.TransportConnecting
	case webrtc.PeerConnectionStateConnected:
		return core.TransportConnected
	case webrtc.PeerConnectionStateDisconnected:
		return core.TransportDisconnected
	case webrtc.PeerConnectionStateFailed:
		return core.TransportFailed
	case webrtc.PeerConnectionStateClosed:
		return core.TransportClosed
	default:
		return core.TransportNew
	}
}

func (c *Connection) Tracks() []core.RemoteTrack {
	return c.tracks.Snapshot()
}

func (c *Connection) OnTrackChange(fn func()) {
	c.mu.Lock()
	c.onTrackChange = fn
	c.mu.Unlock()
}

func (c *Connection) OnFatal(fn func(error)) {
	c.mu.Lock()
	c.onFatal = fn
	c.mu.Unlock()
}

// Disconnect closes the control channel and the transport and clears the
// registries. Calling it twice, or on a never-initialized connection, is a
// no-op.
func (c *Connection) Disconnect() {
	c.closeOnce.Do(func() {
		c.setState(core.StateDisconnecting)
		close(c.done)

		c.mu.Lock()
		dc, pc := c.dc, c.pc
		c.dc, c.pc = nil, nil
		c.participants = make(map[domain.ParticipantID]*domain.Participant)
		c.mu.Unlock()

		if dc != nil {
			if err := dc.Close(); err != nil {
				log.Error().Err(err).Str("module", "rtc").Str("label", c.label).Msg("data channel close")
			}
		}
		if pc != nil {
			if err := pc.Close(); err != nil {
				log.Error().Err(err).Str("module", "rtc").Str("label", c.label).Msg("transport close")
			}
		}
		c.tracks.Clear()
		c.setState(core.StateDisconnected)
		log.Info().Str("module", "rtc").Str("label", c.label).Msg("disconnected")
	})
}
