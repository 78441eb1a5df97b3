package gigachat

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arkanum/ai-server/internal/config"
)

// TokenManager owns the single cached bearer credential for the process.
// All concurrent callers share it; the mutex serializes refreshes so at most
// one token exchange is ever in flight, with waiters picking up the result
// of the refresh that completed while they were queued.
type TokenManager struct {
	cfg    config.GigaChatConfig
	client *http.Client
	now    func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewTokenManager returns a token manager with an empty cache.
func NewTokenManager(cfg config.GigaChatConfig) *TokenManager {
	return &TokenManager{
		cfg:    cfg,
		client: &http.Client{},
		now:    time.Now,
	}
}

// Token returns the cached bearer token, refreshing it first when absent or
// inside the safety margin of its expiry. A failed refresh leaves any prior
// cached state untouched.
func (m *TokenManager) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token != "" && m.now().Before(m.expiresAt.Add(-m.cfg.TokenMargin)) {
		return m.token, nil
	}

	token, expiresAt, err := m.refresh(ctx)
	if err != nil {
		return "", err
	}

	m.token = token
	m.expiresAt = expiresAt
	log.Printf("[gigachat] access token refreshed, valid until %s", expiresAt.UTC().Format(time.RFC3339))
	return m.token, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	// ExpiresAt is milliseconds since epoch when advertised by the provider.
	ExpiresAt int64 `json:"expires_at"`
}

// refresh performs one client-credentials exchange against the identity
// provider.
func (m *TokenManager) refresh(ctx context.Context) (string, time.Time, error) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.TokenTimeout)
	defer cancel()

	form := url.Values{
		"grant_type": {"client_credentials"},
		"scope":      {m.cfg.Scope},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.OAuthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", time.Time{}, &CredentialError{Err: err}
	}

	basic := base64.StdEncoding.EncodeToString([]byte(m.cfg.ClientID + ":" + m.cfg.ClientSecret))
	req.Header.Set("Authorization", "Basic "+basic)
	req.Header.Set("RqUID", uuid.NewString())
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return "", time.Time{}, &CredentialError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", time.Time{}, &CredentialError{Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return "", time.Time{}, &CredentialError{
			Status: resp.StatusCode,
			Err:    fmt.Errorf("identity provider rejected request: %s", strings.TrimSpace(string(body))),
		}
	}

	var parsed tokenResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", time.Time{}, &CredentialError{Err: fmt.Errorf("malformed token response: %w", err)}
	}
	if parsed.AccessToken == "" {
		return "", time.Time{}, &CredentialError{Err: fmt.Errorf("token response missing access_token")}
	}

	expiresAt := m.now().Add(m.cfg.TokenTTL)
	if parsed.ExpiresAt > 0 {
		// Provider-advertised expiry wins over the configured window.
		expiresAt = time.UnixMilli(parsed.ExpiresAt)
	}

	return parsed.AccessToken, expiresAt, nil
}
