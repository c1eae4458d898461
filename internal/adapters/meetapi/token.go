package meetapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/recbit/meetrec/internal/core"
	"github.com/recbit/meetrec/internal/domain"
	"github.com/rs/zerolog/log"
)

const defaultTokenEndpoint = "https://oauth2.googleapis.com/token"

// expirySkew renews tokens this long before they actually expire so an
// in-flight request never carries a token about to lapse.
const expirySkew = 30 * time.Second

// TokenSource exchanges a long-lived refresh token for short-lived access
// tokens and caches the result until close to expiry.
type TokenSource struct {
	endpoint     string
	clientID     string
	clientSecret string
	creds        domain.Credentials
	http         *http.Client

	mu       sync.Mutex
	token    string
	expireAt time.Time
}

func NewTokenSource(clientID, clientSecret string, creds domain.Credentials) *TokenSource {
	return &TokenSource{
		endpoint:     defaultTokenEndpoint,
		clientID:     clientID,
		clientSecret: clientSecret,
		creds:        creds,
		http:         &http.Client{Timeout: requestTimeout},
	}
}

var _ core.TokenProvider = (*TokenSource)(nil)

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

func (t *TokenSource) AccessToken(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.token != "" && time.Now().Before(t.expireAt) {
		return t.token, nil
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {t.creds.RefreshToken},
		"client_id":     {t.clientID},
		"client_secret": {t.clientSecret},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("token refresh: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("token refresh failed: status=%d body=%q", resp.StatusCode, string(raw))
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("decode token: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("token refresh returned empty access token")
	}

	t.token = tok.AccessToken
	t.expireAt = time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - expirySkew)
	log.Debug().Str("module", "meetapi.token").
		Str("account", t.creds.Email).
		Time("expires", t.expireAt).
		Msg("access token refreshed")
	return t.token, nil
}
