package meetapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recbit/meetrec/internal/core"
	"github.com/recbit/meetrec/internal/domain"
)

type staticTokens string

func (s staticTokens) AccessToken(context.Context) (string, error) {
	return string(s), nil
}

func TestDirectoryResolveMeetingCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "abc-defg-hij", r.URL.Query().Get("meetingCode"))
		_ = json.NewEncoder(w).Encode(map[string]string{"name": "spaces/xyz"})
	}))
	defer srv.Close()

	d := NewDirectory(NewClient(srv.URL, staticTokens("tok")))
	handle, err := d.ResolveMeetingCode(context.Background(), "abc-defg-hij")
	require.NoError(t, err)
	assert.Equal(t, "spaces/xyz", handle.Name)
}

func TestDirectoryResolveFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such space", http.StatusNotFound)
	}))
	defer srv.Close()

	d := NewDirectory(NewClient(srv.URL, nil))
	_, err := d.ResolveMeetingCode(context.Background(), "abc-defg-hij")
	require.Error(t, err)
}

func TestDirectoryPollNotLiveYet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no active conference", http.StatusNotFound)
	}))
	defer srv.Close()

	d := NewDirectory(NewClient(srv.URL, nil))
	conf, err := d.PollActiveConference(context.Background(), domain.ConferenceHandle{Name: "spaces/xyz"})
	require.NoError(t, err)
	assert.Nil(t, conf, "404 means not live, not an error")
}

func TestDirectoryPollLive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"conferenceRecord": "conf-1"})
	}))
	defer srv.Close()

	d := NewDirectory(NewClient(srv.URL, nil))
	conf, err := d.PollActiveConference(context.Background(), domain.ConferenceHandle{Name: "spaces/xyz"})
	require.NoError(t, err)
	require.NotNil(t, conf)
	assert.Equal(t, "conf-1", conf.ID)
}

func TestSignalingExchangeOffer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "v=0 local", req["sdp"])
		assert.Equal(t, "proj", req["projectId"])
		_ = json.NewEncoder(w).Encode(map[string]string{"sdp": "v=0 answer"})
	}))
	defer srv.Close()

	s := NewSignaling(NewClient(srv.URL, nil))
	answer, err := s.ExchangeOffer(context.Background(), domain.ConferenceHandle{Name: "spaces/xyz"}, "v=0 local", "proj")
	require.NoError(t, err)
	assert.Equal(t, "v=0 answer", answer)
}

func TestSignalingPassesRejectionThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "role not allowed", http.StatusForbidden)
	}))
	defer srv.Close()

	s := NewSignaling(NewClient(srv.URL, nil))
	_, err := s.ExchangeOffer(context.Background(), domain.ConferenceHandle{Name: "spaces/xyz"}, "v=0", "proj")

	var sigErr *core.SignalingError
	require.ErrorAs(t, err, &sigErr)
	assert.Equal(t, http.StatusForbidden, sigErr.Status)
	assert.Contains(t, sigErr.Body, "role not allowed")
}

func TestUploaderRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.NotEmpty(t, r.FormValue("metadata"))

		f, _, err := r.FormFile("media")
		require.NoError(t, err)
		defer f.Close()

		_ = json.NewEncoder(w).Encode(map[string]string{"url": "https://store/x", "id": "rec-1"})
	}))
	defer srv.Close()

	u := NewUploader(NewClient(srv.URL, nil))
	artifact := &domain.Artifact{
		MimeType: "video/webm",
		Chunks:   [][]byte{[]byte("aa"), []byte("bb")},
		Bytes:    4,
	}
	locator, err := u.Upload(context.Background(), artifact, core.UploadMeta{MeetingCode: "abc-defg-hij"})
	require.NoError(t, err)
	assert.Equal(t, "https://store/x", locator.URL)
	assert.Equal(t, "rec-1", locator.ID)
}

func TestTokenSourceCachesUntilExpiry(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.FormValue("grant_type"))
		assert.Equal(t, "refresh-me", r.FormValue("refresh_token"))
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "tok-1", "expires_in": 3600})
	}))
	defer srv.Close()

	ts := NewTokenSource("cid", "secret", domain.Credentials{Email: "a@b.c", RefreshToken: "refresh-me"})
	ts.endpoint = srv.URL

	for i := 0; i < 3; i++ {
		tok, err := ts.AccessToken(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "tok-1", tok)
	}
	assert.Equal(t, 1, calls, "cached token reused")
}
