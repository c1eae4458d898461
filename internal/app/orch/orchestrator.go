// Package orch manages the lifecycle of concurrent recording sessions keyed
// by meeting code: readiness polling, connection build-up, capture, periodic
// collection and cleanup on success or failure.
package orch

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/recbit/meetrec/internal/app"
	"github.com/recbit/meetrec/internal/app/rec"
	"github.com/recbit/meetrec/internal/core"
	"github.com/recbit/meetrec/internal/domain"
)

type Timeouts struct {
	PollTimeout     time.Duration
	PollInterval    time.Duration
	ConnectTimeout  time.Duration
	ConnectProbe    time.Duration
	SettleDelay     time.Duration
	ChunkTick       time.Duration
	ParticipantTick time.Duration
}

func DefaultTimeouts() Timeouts {
	return Timeouts{
		PollTimeout:     30 * time.Second,
		PollInterval:    5 * time.Second,
		ConnectTimeout:  10 * time.Second,
		ConnectProbe:    500 * time.Millisecond,
		SettleDelay:     2 * time.Second,
		ChunkTick:       5 * time.Second,
		ParticipantTick: 10 * time.Second,
	}
}

type ConnectionFactory func(label string) core.MediaSession

type PipelineFactory func(source rec.TrackSource) *rec.Pipeline

// Orchestrator owns the live-session table and builds one connection plus
// one pipeline per recording request. Sessions never share mutable state.
type Orchestrator struct {
	Sessions      *app.SessionTable
	Directory     core.Directory
	Signaling     core.SignalingTransport
	NewConnection ConnectionFactory
	NewPipeline   PipelineFactory
	// Status is optional; nil means no event fan-out.
	Status   core.StatusSink
	Timeouts Timeouts
}

// StartSession resolves, polls, connects and starts capture for one meeting.
// Any failure tears the partially-built session down and removes the record
// before the error reaches the caller.
func (o *Orchestrator) StartSession(ctx context.Context, code string, creds domain.Credentials, projectID string) (domain.SessionID, error) {
	mc, err := domain.ParseMeetingCode(code)
	if err != nil {
		return "", err
	}
	if creds.Empty() || projectID == "" {
		return "", core.ErrConfig
	}

	record := app.NewSessionRecord(mc)
	if err := o.Sessions.Reserve(record); err != nil {
		return "", err
	}
	o.publish(record)

	handle, err := o.Directory.ResolveMeetingCode(ctx, mc)
	if err != nil {
		o.abort(record)
		return "", fmt.Errorf("%w: %v", core.ErrLookup, err)
	}

	conf, err := o.waitActiveConference(ctx, handle)
	if err != nil {
		o.abort(record)
		return "", err
	}
	log.Info().
		Str("module", "orch").
		Str("meeting_code", string(mc)).
		Str("conference_id", conf.ID).
		Msg("conference is live")

	conn := o.NewConnection(string(mc))
	record.SetConn(conn)
	conn.OnFatal(func(cause error) { o.onTransportFatal(record, cause) })

	if err := conn.Initialize(); err != nil {
		o.abort(record)
		return "", err
	}
	if err := conn.Connect(ctx, o.Signaling, handle, projectID); err != nil {
		o.abort(record)
		return "", err
	}
	if err := o.waitConnected(ctx, conn); err != nil {
		o.abort(record)
		return "", err
	}

	// Give the media plane a moment to start pushing tracks.
	select {
	case <-ctx.Done():
		o.abort(record)
		return "", ctx.Err()
	case <-time.After(o.Timeouts.SettleDelay):
	}

	pipeline := o.NewPipeline(conn.Tracks)
	record.SetPipeline(pipeline)
	conn.OnTrackChange(func() {
		if err := pipeline.UpdateTracks(conn.Tracks()); err != nil {
			log.Error().Err(err).Str("module", "orch").Str("session_id", string(record.ID)).Msg("track set update")
		}
	})

	if err := pipeline.Start(ctx, conn.Tracks()); err != nil {
		o.abort(record)
		return "", err
	}

	record.SetStatus(domain.StatusRecording)
	o.publish(record)

	loopCtx, cancel := context.WithCancel(context.Background())
	record.BindCancel(cancel)
	go o.chunkLoop(loopCtx, record)
	go o.participantLoop(loopCtx, record)

	log.Info().
		Str("module", "orch").
		Str("session_id", string(record.ID)).
		Str("meeting_code", string(mc)).
		Msg("session recording")
	return record.ID, nil
}

// StopSession finalizes the pipeline, disconnects and removes the record.
// If finalization fails the record is retained in Error state so its
// terminal state stays inspectable.
func (o *Orchestrator) StopSession(ctx context.Context, id domain.SessionID) (*domain.Artifact, error) {
	record, ok := o.Sessions.ByID(id)
	if !ok {
		return nil, core.ErrSessionNotFound
	}
	// A concurrent stop for the same id loses the claim and sees the
	// session as already gone.
	if !record.ClaimStop() {
		return nil, core.ErrSessionNotFound
	}
	o.publish(record)
	record.CancelLoops()

	pipeline := record.Pipeline()
	if pipeline == nil {
		o.abort(record)
		return nil, core.ErrNotRecording
	}

	artifact, err := pipeline.Stop()
	if err != nil {
		record.SetStatus(domain.StatusError)
		o.publish(record)
		return nil, err
	}

	if conn := record.Conn(); conn != nil {
		conn.Disconnect()
	}
	record.MarkEnded(artifact.EndedAt)
	o.Sessions.Remove(record)
	record.SetStatus(domain.StatusStopped)
	o.publish(record)

	log.Info().
		Str("module", "orch").
		Str("session_id", string(id)).
		Int64("bytes", artifact.Bytes).
		Dur("duration", artifact.Duration()).
		Msg("session stopped")
	return artifact, nil
}

// ForceStopAll is best-effort: one session's failure never blocks the rest.
func (o *Orchestrator) ForceStopAll(ctx context.Context) {
	for _, record := range o.Sessions.List() {
		if _, err := o.StopSession(ctx, record.ID); err != nil {
			log.Error().
				Err(err).
				Str("module", "orch").
				Str("session_id", string(record.ID)).
				Msg("force stop failed")
		}
	}
}

func (o *Orchestrator) GetSession(id domain.SessionID) (*app.SessionRecord, bool) {
	return o.Sessions.ByID(id)
}

func (o *Orchestrator) ListSessions() []*app.SessionRecord {
	return o.Sessions.List()
}

// GetStatus returns the sentinel StatusNotFound instead of failing, to keep
// polling callers simple.
func (o *Orchestrator) GetStatus(id domain.SessionID) domain.SessionStatus {
	record, ok := o.Sessions.ByID(id)
	if !ok {
		return domain.StatusNotFound
	}
	return record.Status()
}

// waitActiveConference polls the directory until a conference is live or
// the bounded budget runs out. Poll errors are transient by definition
// here; the budget is the retry policy.
func (o *Orchestrator) waitActiveConference(ctx context.Context, handle domain.ConferenceHandle) (*domain.Conference, error) {
	deadline := time.Now().Add(o.Timeouts.PollTimeout)
	for {
		conf, err := o.Directory.PollActiveConference(ctx, handle)
		if err != nil {
			log.Warn().Err(err).Str("module", "orch").Str("space", handle.Name).Msg("conference poll")
		} else if conf != nil {
			return conf, nil
		}
		if !time.Now().Before(deadline) {
			return nil, core.ErrNoActiveConference
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(o.Timeouts.PollInterval):
		}
	}
}

// waitConnected probes the transport's connectivity until it reports
// connected, fails fast on a failed transport, and gives up after the
// bounded wait.
func (o *Orchestrator) waitConnected(ctx context.Context, conn core.MediaSession) error {
	deadline := time.Now().Add(o.Timeouts.ConnectTimeout)
	for {
		switch conn.TransportState() {
		case core.TransportConnected:
			return nil
		case core.TransportFailed, core.TransportClosed:
			return fmt.Errorf("%w: transport %s", core.ErrConnectTimeout, conn.TransportState())
		}
		if !time.Now().Before(deadline) {
			return core.ErrConnectTimeout
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(o.Timeouts.ConnectProbe):
		}
	}
}

// abort tears down a partially-built session: loops cancelled, connection
// disconnected, record removed. No resource survives a failed start.
func (o *Orchestrator) abort(record *app.SessionRecord) {
	record.CancelLoops()
	if conn := record.Conn(); conn != nil {
		conn.Disconnect()
	}
	o.Sessions.Remove(record)
	record.SetStatus(domain.StatusError)
	o.publish(record)
	log.Info().
		Str("module", "orch").
		Str("session_id", string(record.ID)).
		Str("meeting_code", string(record.Code)).
		Msg("session torn down")
}

// onTransportFatal handles connectivity failure reported by the connection.
// No automatic reconnection: the session goes terminal and keeps whatever
// was captured until the caller stops it.
func (o *Orchestrator) onTransportFatal(record *app.SessionRecord, cause error) {
	log.Error().
		Err(cause).
		Str("module", "orch").
		Str("session_id", string(record.ID)).
		Msg("transport failure")
	if record.Status() == domain.StatusRecording {
		record.SetStatus(domain.StatusError)
		record.CancelLoops()
		o.publish(record)
	}
}

func (o *Orchestrator) publish(record *app.SessionRecord) {
	if o.Status == nil {
		return
	}
	o.Status.Publish(core.SessionEvent{
		SessionID:   record.ID,
		MeetingCode: record.Code,
		Status:      record.Status(),
		At:          time.Now(),
	})
}
