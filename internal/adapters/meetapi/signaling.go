package meetapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/recbit/meetrec/internal/core"
	"github.com/recbit/meetrec/internal/domain"
)

// Signaling submits the local offer to the media plane and returns the
// remote answer SDP. Non-2xx responses surface as *core.SignalingError so
// the orchestrator can pass the platform's verdict through unchanged.
type Signaling struct {
	c *Client
}

func NewSignaling(c *Client) *Signaling {
	return &Signaling{c: c}
}

var _ core.SignalingTransport = (*Signaling)(nil)

type offerRequest struct {
	SDP       string `json:"sdp"`
	ProjectID string `json:"projectId,omitempty"`
}

type answerResponse struct {
	SDP string `json:"sdp"`
}

func (s *Signaling) ExchangeOffer(ctx context.Context, handle domain.ConferenceHandle, localSDP, projectID string) (string, error) {
	raw, err := json.Marshal(offerRequest{SDP: localSDP, ProjectID: projectID})
	if err != nil {
		return "", fmt.Errorf("encode offer: %w", err)
	}

	path := s.c.base + "/v1/" + handle.Name + ":connectActiveConference"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, path, bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if err := s.c.authorize(ctx, req); err != nil {
		return "", err
	}

	resp, err := s.c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &core.SignalingError{Status: resp.StatusCode, Body: string(body)}
	}

	var answer answerResponse
	if err := json.Unmarshal(body, &answer); err != nil {
		return "", fmt.Errorf("decode answer: %w", err)
	}
	if answer.SDP == "" {
		return "", fmt.Errorf("empty answer sdp for %s", handle.Name)
	}
	return answer.SDP, nil
}
