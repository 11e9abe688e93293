package momo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	cfgpkg "github.com/fatflowers/momobridge/pkg/config"
)

// tokenExpiryMargin is subtracted from the advertised ttl so a token is
// refreshed before the network would reject it.
const tokenExpiryMargin = 5 * time.Minute

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// TokenCache obtains and caches the bearer credential for the collection
// API. Refreshes race under concurrency; last writer wins, which is harmless
// because any valid token is usable.
type TokenCache struct {
	cfg  cfgpkg.MomoConfig
	http *http.Client
	log  *zap.SugaredLogger

	mu        sync.Mutex
	token     string
	expiresAt time.Time
	now       func() time.Time
}

func NewTokenCache(cfg *cfgpkg.Config, log *zap.SugaredLogger) *TokenCache {
	return &TokenCache{
		cfg:  cfg.Momo,
		http: &http.Client{Timeout: 30 * time.Second},
		log:  log,
		now:  time.Now,
	}
}

// GetToken returns the cached credential when it is not within the safety
// margin of expiry, otherwise performs the remote exchange.
func (tc *TokenCache) GetToken(ctx context.Context) (string, error) {
	tc.mu.Lock()
	if tc.token != "" && tc.now().Before(tc.expiresAt) {
		tok := tc.token
		tc.mu.Unlock()
		return tok, nil
	}
	tc.mu.Unlock()

	return tc.refresh(ctx)
}

// ClearCache drops the cached credential, forcing the next GetToken to
// exchange again. Used after repeated authorization failures downstream.
func (tc *TokenCache) ClearCache() {
	tc.mu.Lock()
	tc.token = ""
	tc.expiresAt = time.Time{}
	tc.mu.Unlock()
}

func (tc *TokenCache) refresh(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tc.cfg.BaseURL+"/collection/token/", nil)
	if err != nil {
		return "", &AuthError{Reason: "build token request", Err: err}
	}
	req.SetBasicAuth(tc.cfg.APIUser, tc.cfg.APIKey)
	req.Header.Set("Ocp-Apim-Subscription-Key", tc.cfg.SubscriptionKey)

	resp, err := tc.http.Do(req)
	if err != nil {
		return "", &AuthError{Reason: "token exchange failed", Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", &AuthError{Reason: fmt.Sprintf("token endpoint returned %d: %s", resp.StatusCode, string(body))}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", &AuthError{Reason: "malformed token response", Err: err}
	}
	if tr.AccessToken == "" {
		return "", &AuthError{Reason: "token response carries no access_token"}
	}

	issuedAt := tc.now()
	expiresAt := issuedAt.Add(time.Duration(tr.ExpiresIn)*time.Second - tokenExpiryMargin)

	tc.mu.Lock()
	tc.token = tr.AccessToken
	tc.expiresAt = expiresAt
	tc.mu.Unlock()

	tc.log.Infow("momo token refreshed", "expires_at", expiresAt)
	return tr.AccessToken, nil
}
