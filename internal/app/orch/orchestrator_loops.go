package orch

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/recbit/meetrec/internal/app"
	"github.com/recbit/meetrec/internal/domain"
)

// Background loops observe cancellation at tick boundaries only and
// self-cancel the moment the session's status leaves Recording. Per-tick
// failures are logged and never terminate the session.

// chunkLoop is a legacy hook for collaborators that poll rather than
// subscribe; chunks reach the artifact through the pipeline's own stream.
func (o *Orchestrator) chunkLoop(ctx context.Context, record *app.SessionRecord) {
	ticker := time.NewTicker(o.Timeouts.ChunkTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if record.Status() != domain.StatusRecording {
			return
		}
		pipeline := record.Pipeline()
		if pipeline == nil {
			continue
		}
		chunks, bytes := pipeline.CollectPending()
		log.Debug().
			Str("module", "orch").
			Str("session_id", string(record.ID)).
			Int("chunks", chunks).
			Int64("bytes", bytes).
			Msg("chunk collection tick")
	}
}

// participantLoop copies the connection's participant-id list into the
// session record.
func (o *Orchestrator) participantLoop(ctx context.Context, record *app.SessionRecord) {
	ticker := time.NewTicker(o.Timeouts.ParticipantTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if record.Status() != domain.StatusRecording {
			return
		}
		conn := record.Conn()
		if conn == nil {
			continue
		}
		ids := conn.ParticipantIDs()
		record.SetParticipants(ids)
		log.Debug().
			Str("module", "orch").
			Str("session_id", string(record.ID)).
			Int("participants", len(ids)).
			Msg("participant snapshot tick")
	}
}
