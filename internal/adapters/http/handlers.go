package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/recbit/meetrec/internal/app"
	"github.com/recbit/meetrec/internal/app/orch"
	"github.com/recbit/meetrec/internal/core"
	"github.com/recbit/meetrec/internal/domain"
)

// Controller exposes the session lifecycle over REST. Uploading the
// finished artifact happens here on stop, not inside the orchestrator.
type Controller struct {
	Orch     *orch.Orchestrator
	Uploader core.Uploader
	Creds    domain.Credentials
	Project  string
}

type startRequest struct {
	MeetingCode string `json:"meeting_code" binding:"required"`
}

func (ctl *Controller) StartSession(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "meeting_code is required"})
		return
	}

	id, err := ctl.Orch.StartSession(c.Request.Context(), req.MeetingCode, ctl.Creds, ctl.Project)
	if err != nil {
		status := statusFor(err)
		log.Warn().Err(err).Str("module", "adapters.http").
			Str("meeting_code", req.MeetingCode).
			Int("status", status).
			Msg("start session failed")
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"session_id": id})
}

func (ctl *Controller) StopSession(c *gin.Context) {
	id := domain.SessionID(c.Param("id"))

	record, ok := ctl.Orch.GetSession(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": core.ErrSessionNotFound.Error()})
		return
	}
	code := record.Code

	artifact, err := ctl.Orch.StopSession(c.Request.Context(), id)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	resp := gin.H{
		"session_id": id,
		"mime_type":  artifact.MimeType,
		"bytes":      artifact.Bytes,
		"duration_s": int(artifact.Duration().Seconds()),
	}

	if ctl.Uploader != nil {
		meta := core.UploadMeta{
			MeetingCode:     code,
			DurationMinutes: int(artifact.Duration().Round(time.Minute).Minutes()),
			RecordingDate:   artifact.StartedAt,
			FileSize:        artifact.Bytes,
		}
		locator, err := ctl.Uploader.Upload(c.Request.Context(), artifact, meta)
		if err != nil {
			log.Error().Err(err).Str("module", "adapters.http").
				Str("session_id", string(id)).
				Msg("upload failed, recording lost from durable storage")
			resp["upload_error"] = err.Error()
			c.JSON(http.StatusOK, resp)
			return
		}
		resp["upload_url"] = locator.URL
		resp["upload_id"] = locator.ID
	}

	c.JSON(http.StatusOK, resp)
}

type sessionSummary struct {
	SessionID    domain.SessionID     `json:"session_id"`
	MeetingCode  domain.MeetingCode   `json:"meeting_code"`
	Status       domain.SessionStatus `json:"status"`
	StartedAt    time.Time            `json:"started_at"`
	Participants []string             `json:"participants"`
	Bytes        int64                `json:"bytes"`
}

func summarize(r *app.SessionRecord) sessionSummary {
	return sessionSummary{
		SessionID:    r.ID,
		MeetingCode:  r.Code,
		Status:       r.Status(),
		StartedAt:    r.StartedAt,
		Participants: r.ParticipantsSnapshot(),
		Bytes:        r.Bytes(),
	}
}

func (ctl *Controller) ListSessions(c *gin.Context) {
	records := ctl.Orch.ListSessions()
	out := make([]sessionSummary, 0, len(records))
	for _, r := range records {
		out = append(out, summarize(r))
	}
	c.JSON(http.StatusOK, gin.H{"sessions": out})
}

// SessionStatus always answers 200; an unknown id reports the
// not_found sentinel so pollers need no error branch.
func (ctl *Controller) SessionStatus(c *gin.Context) {
	id := domain.SessionID(c.Param("id"))
	status := ctl.Orch.GetStatus(id)

	if record, ok := ctl.Orch.GetSession(id); ok {
		c.JSON(http.StatusOK, summarize(record))
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": id, "status": status})
}

func (ctl *Controller) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":          "ok",
		"active_sessions": ctl.Orch.Sessions.Len(),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidMeetingCode), errors.Is(err, core.ErrConfig):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrDuplicateSession):
		return http.StatusConflict
	case errors.Is(err, core.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrNotRecording):
		return http.StatusConflict
	case errors.Is(err, core.ErrLookup):
		return http.StatusBadGateway
	case errors.Is(err, core.ErrNoActiveConference), errors.Is(err, core.ErrConnectTimeout):
		return http.StatusGatewayTimeout
	default:
		var sigErr *core.SignalingError
		var negErr *core.NegotiationError
		if errors.As(err, &sigErr) || errors.As(err, &negErr) {
			return http.StatusBadGateway
		}
		return http.StatusInternalServerError
	}
}
