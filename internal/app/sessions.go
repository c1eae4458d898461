package app

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/recbit/meetrec/internal/app/rec"
	"github.com/recbit/meetrec/internal/core"
	"github.com/recbit/meetrec/internal/domain"
)

// SessionRecord is the orchestrator-level entity for one recording attempt.
// Created on start request, mutated by the background loops and the stop
// request, removed from the table on stop or forced cleanup.
type SessionRecord struct {
	ID        domain.SessionID
	Code      domain.MeetingCode
	StartedAt time.Time

	mu           sync.RWMutex
	status       domain.SessionStatus
	endedAt      time.Time
	conn         core.MediaSession
	pipeline     *rec.Pipeline
	participants []string
	cancel       context.CancelFunc
}

func NewSessionRecord(code domain.MeetingCode) *SessionRecord {
	return &SessionRecord{
		ID:        domain.SessionID(uuid.NewString()),
		Code:      code,
		StartedAt: time.Now(),
		status:    domain.StatusStarting,
	}
}

func (r *SessionRecord) Status() domain.SessionStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

func (r *SessionRecord) SetStatus(s domain.SessionStatus) {
	r.mu.Lock()
	r.status = s
	r.mu.Unlock()
}

func (r *SessionRecord) SetConn(c core.MediaSession) {
	r.mu.Lock()
	r.conn = c
	r.mu.Unlock()
}

func (r *SessionRecord) Conn() core.MediaSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conn
}

func (r *SessionRecord) SetPipeline(p *rec.Pipeline) {
	r.mu.Lock()
	r.pipeline = p
	r.mu.Unlock()
}

func (r *SessionRecord) Pipeline() *rec.Pipeline {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pipeline
}

// ClaimStop marks the record Stopping unless another stop already claimed
// it. Exactly one concurrent caller wins.
func (r *SessionRecord) ClaimStop() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == domain.StatusStopping || r.status == domain.StatusStopped {
		return false
	}
	r.status = domain.StatusStopping
	return true
}

// BindCancel stores the per-session cancellation token the background loops
// were created with.
func (r *SessionRecord) BindCancel(cancel context.CancelFunc) {
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()
}

// CancelLoops fires the per-session cancellation token, if any.
func (r *SessionRecord) CancelLoops() {
	r.mu.RLock()
	cancel := r.cancel
	r.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
}

func (r *SessionRecord) SetParticipants(ids []string) {
	r.mu.Lock()
	r.participants = ids
	r.mu.Unlock()
}

func (r *SessionRecord) ParticipantsSnapshot() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.participants))
	copy(out, r.participants)
	return out
}

func (r *SessionRecord) MarkEnded(t time.Time) {
	r.mu.Lock()
	r.endedAt = t
	r.mu.Unlock()
}

func (r *SessionRecord) EndedAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.endedAt
}

func (r *SessionRecord) Bytes() int64 {
	p := r.Pipeline()
	if p == nil {
		return 0
	}
	return p.Bytes()
}

// SessionTable is the live-session table, keyed by meeting code. One table
// per orchestrator instance; no process-wide singleton. Reserve is the
// atomic check-and-insert that makes the duplicate-session check race-free.
type SessionTable struct {
	mu     sync.RWMutex
	byCode map[domain.MeetingCode]*SessionRecord
	byID   map[domain.SessionID]*SessionRecord
}

func NewSessionTable() *SessionTable {
	return &SessionTable{
		byCode: make(map[domain.MeetingCode]*SessionRecord),
		byID:   make(map[domain.SessionID]*SessionRecord),
	}
}

// Reserve inserts the record unless a live record already exists for its
// meeting code.
func (t *SessionTable) Reserve(r *SessionRecord) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.byCode[r.Code]; ok {
		return core.ErrDuplicateSession
	}
	t.byCode[r.Code] = r
	t.byID[r.ID] = r
	log.Info().
		Str("module", "app.sessions").
		Str("session_id", string(r.ID)).
		Str("meeting_code", string(r.Code)).
		Msg("session reserved")
	return nil
}

func (t *SessionTable) ByID(id domain.SessionID) (*SessionRecord, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.byID[id]
	return r, ok
}

func (t *SessionTable) ByCode(code domain.MeetingCode) (*SessionRecord, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.byCode[code]
	return r, ok
}

func (t *SessionTable) Remove(r *SessionRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.byCode, r.Code)
	delete(t.byID, r.ID)
	log.Info().
		Str("module", "app.sessions").
		Str("session_id", string(r.ID)).
		Msg("session removed")
}

func (t *SessionTable) List() []*SessionRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*SessionRecord, 0, len(t.byID))
	for _, r := range t.byID {
		out = append(out, r)
	}
	return out
}

func (t *SessionTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byID)
}
