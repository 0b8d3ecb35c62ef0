package tcgplayer

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"tcg-companion/utils"
)

// expirySkew is how long before the stated expiry a token is treated as expired.
const expirySkew = 60 * time.Second

// TokenProvider hands out a valid bearer token, acquiring a new one when needed.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// MissingCredentialError names the environment variable that must be set.
type MissingCredentialError struct {
	Var string
}

func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf("tcgplayer: %s is not set", e.Var)
}

type cachedToken struct {
	AccessToken string
	ExpiresAt   time.Time
}

// OAuthTokenProvider implements the client-credentials grant and caches the token in memory.
// Credentials are only checked on the first call that needs a token.
type OAuthTokenProvider struct {
	tokenURL   string
	publicKey  string
	privateKey string
	httpClient *http.Client
	now        func() time.Time

	mu     sync.Mutex
	cached *cachedToken
}

func NewOAuthTokenProvider(tokenURL, publicKey, privateKey string, hc *http.Client) *OAuthTokenProvider {
	if hc == nil {
		hc = utils.HTTPClient
	}
	return &OAuthTokenProvider{
		tokenURL:   tokenURL,
		publicKey:  publicKey,
		privateKey: privateKey,
		httpClient: hc,
		now:        time.Now,
	}
}

func (p *OAuthTokenProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached != nil && p.now().Before(p.cached.ExpiresAt.Add(-expirySkew)) {
		return p.cached.AccessToken, nil
	}

	if p.publicKey == "" {
		return "", &MissingCredentialError{Var: "TCGPLAYER_PUBLIC_KEY"}
	}
	if p.privateKey == "" {
		return "", &MissingCredentialError{Var: "TCGPLAYER_PRIVATE_KEY"}
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", p.publicKey)
	form.Set("client_secret", p.privateKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("tcgplayer token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &APIError{
			StatusCode: resp.StatusCode,
			Method:     http.MethodPost,
			URL:        p.tokenURL,
			Body:       utils.ReadErrorBody(resp.Body),
		}
	}

	var body struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if body.AccessToken == "" {
		return "", fmt.Errorf("tcgplayer token response has no access_token")
	}

	p.cached = &cachedToken{
		AccessToken: body.AccessToken,
		ExpiresAt:   p.now().Add(time.Duration(body.ExpiresIn) * time.Second),
	}
	return p.cached.AccessToken, nil
}

// StaticToken is a TokenProvider that always returns the same token.
type StaticToken string

func (s StaticToken) Token(context.Context) (string, error) {
	return string(s), nil
}
