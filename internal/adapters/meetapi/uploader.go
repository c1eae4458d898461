package meetapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/recbit/meetrec/internal/core"
	"github.com/recbit/meetrec/internal/domain"
)

// uploadTimeout bounds the whole multipart push. Recordings run to
// hundreds of megabytes, so this is much looser than the API timeout.
const uploadTimeout = 5 * time.Minute

// Uploader pushes a finished recording to durable storage as a multipart
// request: one JSON metadata part followed by the media body.
type Uploader struct {
	c    *Client
	http *http.Client
}

func NewUploader(c *Client) *Uploader {
	return &Uploader{c: c, http: &http.Client{Timeout: uploadTimeout}}
}

var _ core.Uploader = (*Uploader)(nil)

type uploadResponse struct {
	URL string `json:"url"`
	ID  string `json:"id"`
}

func (u *Uploader) Upload(ctx context.Context, artifact *domain.Artifact, meta core.UploadMeta) (core.UploadLocator, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	metaPart, err := mw.CreateFormField("metadata")
	if err != nil {
		return core.UploadLocator{}, err
	}
	if err := json.NewEncoder(metaPart).Encode(meta); err != nil {
		return core.UploadLocator{}, fmt.Errorf("encode metadata: %w", err)
	}

	filePart, err := mw.CreateFormFile("media", fmt.Sprintf("%s.webm", meta.MeetingCode))
	if err != nil {
		return core.UploadLocator{}, err
	}
	if _, err := filePart.Write(artifact.Concat()); err != nil {
		return core.UploadLocator{}, err
	}
	if err := mw.Close(); err != nil {
		return core.UploadLocator{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.c.base+"/v1/recordings", &body)
	if err != nil {
		return core.UploadLocator{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if err := u.c.authorize(ctx, req); err != nil {
		return core.UploadLocator{}, err
	}

	resp, err := u.http.Do(req)
	if err != nil {
		return core.UploadLocator{}, fmt.Errorf("upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return core.UploadLocator{}, fmt.Errorf("upload rejected: status=%d body=%q", resp.StatusCode, string(raw))
	}

	var out uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return core.UploadLocator{}, fmt.Errorf("decode upload response: %w", err)
	}

	log.Info().Str("module", "meetapi.uploader").
		Str("meeting_code", string(meta.MeetingCode)).
		Int64("bytes", artifact.Bytes).
		Str("id", out.ID).
		Msg("recording uploaded")
	return core.UploadLocator{URL: out.URL, ID: out.ID}, nil
}
