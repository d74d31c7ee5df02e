package github

import (
	"bytes"
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	llmhttp "github.com/contextwizard/wizardd/internal/adapter/llm/http"
	"github.com/contextwizard/wizardd/internal/usecase/registry"
)

// tokenRefreshMargin is how long before expiry a cached installation token
// is considered stale. GitHub issues tokens valid for one hour.
const tokenRefreshMargin = 5 * time.Minute

// appJWTLifetime is the validity window of the signed App JWT. GitHub caps
// it at ten minutes.
const appJWTLifetime = 9 * time.Minute

// AppAuth implements registry.CredentialProvider by exchanging a GitHub App
// JWT for installation access tokens, cached per installation until close to
// expiry. This is how the sweeper re-authenticates for records whose
// original webhook context is long gone.
type AppAuth struct {
	appID      int64
	privateKey *rsa.PrivateKey
	baseURL    string
	httpClient *http.Client

	mu    sync.Mutex
	cache map[int64]cachedToken

	now func() time.Time
}

type cachedToken struct {
	token     string
	expiresAt time.Time
}

// NewAppAuth creates a credential provider for the given App ID and
// PEM-encoded RSA private key.
func NewAppAuth(appID int64, privateKeyPEM []byte) (*AppAuth, error) {
	key, err := parseRSAPrivateKey(privateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parse app private key: %w", err)
	}

	return &AppAuth{
		appID:      appID,
		privateKey: key,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		cache:      make(map[int64]cachedToken),
		now:        time.Now,
	}, nil
}

// SetBaseURL sets a custom base URL (for testing or GitHub Enterprise).
func (a *AppAuth) SetBaseURL(url string) {
	a.baseURL = url
}

// Credentials returns an installation access token, reusing the cached one
// while it has comfortably more than the refresh margin left.
func (a *AppAuth) Credentials(ctx context.Context, installationID int64) (registry.Credentials, error) {
	a.mu.Lock()
	cached, ok := a.cache[installationID]
	a.mu.Unlock()

	if ok && a.now().Before(cached.expiresAt.Add(-tokenRefreshMargin)) {
		return registry.Credentials{Token: cached.token}, nil
	}

	token, expiresAt, err := a.exchange(ctx, installationID)
	if err != nil {
		return registry.Credentials{}, err
	}

	a.mu.Lock()
	a.cache[installationID] = cachedToken{token: token, expiresAt: expiresAt}
	a.mu.Unlock()

	return registry.Credentials{Token: token}, nil
}

// exchange signs an App JWT and trades it for an installation token.
func (a *AppAuth) exchange(ctx context.Context, installationID int64) (string, time.Time, error) {
	now := a.now()
	claims := jwt.RegisteredClaims{
		Issuer: fmt.Sprintf("%d", a.appID),
		// Backdate 60s to absorb clock drift between us and GitHub.
		IssuedAt:  jwt.NewNumericDate(now.Add(-time.Minute)),
		ExpiresAt: jwt.NewNumericDate(now.Add(appJWTLifetime)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(a.privateKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign app jwt: %w", err)
	}

	url := fmt.Sprintf("%s/app/installations/%d/access_tokens", a.baseURL, installationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(nil))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+signed)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", time.Time{}, llmhttp.NewTimeoutError(providerName, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return "", time.Time{}, llmhttp.FromStatusCode(providerName, resp.StatusCode, readErrorBody(resp.Body))
	}

	var body struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", time.Time{}, fmt.Errorf("decode token response: %w", err)
	}

	return body.Token, body.ExpiresAt, nil
}

func parseRSAPrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is not RSA")
	}
	return key, nil
}
