package core

import (
	"context"
	"time"

	"github.com/recbit/meetrec/internal/domain"
)

// SignalingTransport is the REST-style offer/answer exchange exposed by the
// conference platform. The local description must already carry the active
// DTLS role; the platform rejects other roles.
type SignalingTransport interface {
	ExchangeOffer(ctx context.Context, handle domain.ConferenceHandle, localSDP string, projectID string) (string, error)
}

// Directory maps a human meeting code to a space and reports live instances.
type Directory interface {
	ResolveMeetingCode(ctx context.Context, code domain.MeetingCode) (domain.ConferenceHandle, error)
	// PollActiveConference returns nil when the space exists but no
	// conference is live yet.
	PollActiveConference(ctx context.Context, handle domain.ConferenceHandle) (*domain.Conference, error)
}

// TokenProvider hands out a bearer token for the platform APIs.
type TokenProvider interface {
	AccessToken(ctx context.Context) (string, error)
}

type UploadMeta struct {
	MeetingCode     domain.MeetingCode `json:"meeting_code"`
	DurationMinutes int                `json:"duration_minutes"`
	RecordingDate   time.Time          `json:"recording_date"`
	FileSize        int64              `json:"file_size"`
}

// UploadLocator is whatever the durable store hands back; the core treats
// it as opaque.
type UploadLocator struct {
	URL string `json:"url"`
	ID  string `json:"id"`
}

// Uploader accepts a finished artifact and returns a public locator.
type Uploader interface {
	Upload(ctx context.Context, artifact *domain.Artifact, meta UploadMeta) (UploadLocator, error)
}

// SessionEvent is a status change pushed to subscribed front-ends.
type SessionEvent struct {
	SessionID   domain.SessionID     `json:"session_id"`
	MeetingCode domain.MeetingCode   `json:"meeting_code"`
	Status      domain.SessionStatus `json:"status"`
	At          time.Time            `json:"at"`
}

// StatusSink receives session status events. Implementations must not block.
type StatusSink interface {
	Publish(SessionEvent)
}
