package meetapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/recbit/meetrec/internal/domain"
)

// Directory resolves meeting codes to conference handles and reports
// whether a conference is currently live.
type Directory struct {
	c *Client
}

func NewDirectory(c *Client) *Directory {
	return &Directory{c: c}
}

type spaceResponse struct {
	Name      string    `json:"name"`
	StartTime time.Time `json:"startTime"`
}

func (d *Directory) ResolveMeetingCode(ctx context.Context, code domain.MeetingCode) (domain.ConferenceHandle, error) {
	var resp spaceResponse
	path := "/v1/spaces:lookup?meetingCode=" + url.QueryEscape(string(code))
	if err := d.c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return domain.ConferenceHandle{}, fmt.Errorf("resolve %s: %w", code, err)
	}
	if resp.Name == "" {
		return domain.ConferenceHandle{}, fmt.Errorf("resolve %s: empty space name in response", code)
	}
	return domain.ConferenceHandle{Name: resp.Name, StartedAt: resp.StartTime}, nil
}

type activeConferenceResponse struct {
	ConferenceRecord string    `json:"conferenceRecord"`
	StartTime        time.Time `json:"startTime"`
}

// PollActiveConference returns (nil, nil) while nobody has joined yet;
// the caller keeps polling until a conference record shows up.
func (d *Directory) PollActiveConference(ctx context.Context, handle domain.ConferenceHandle) (*domain.Conference, error) {
	var resp activeConferenceResponse
	path := "/v1/" + handle.Name + "/activeConference"
	err := d.c.doJSON(ctx, http.MethodGet, path, nil, &resp)
	if err != nil {
		var apiErr *apiError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("poll %s: %w", handle.Name, err)
	}
	if resp.ConferenceRecord == "" {
		return nil, nil
	}
	return &domain.Conference{ID: resp.ConferenceRecord, StartedAt: resp.StartTime}, nil
}
