package msgraph

import (
	"context"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Auriora/admin-assistant-sub001/internal/domain/errors"
)

// TokenSource mints access tokens for the Graph API. Implementations wrap
// the tenant OAuth flow; tests and offline tools inject static tokens.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticTokenSource returns the same token on every call. Expiry handling is
// the caller's problem, which makes it suitable only for short-lived CLI
// invocations and tests.
type StaticTokenSource string

func (s StaticTokenSource) Token(context.Context) (string, error) {
	if s == "" {
		return "", errors.NewUnauthorizedError("no access token configured")
	}
	return string(s), nil
}

// FileTokenSource reads the token from a file on every mint, so an external
// refresher can rotate the file without restarting the process.
type FileTokenSource string

func (f FileTokenSource) Token(context.Context) (string, error) {
	raw, err := os.ReadFile(string(f))
	if err != nil {
		return "", errors.NewUnauthorizedError("reading token file: " + err.Error())
	}
	token := strings.TrimSpace(string(raw))
	if token == "" {
		return "", errors.NewUnauthorizedError("token file " + string(f) + " is empty")
	}
	return token, nil
}

// TokenCache wraps a TokenSource and reuses its tokens until shortly before
// they expire. Expiry is read from the token's exp claim when the token is a
// JWT; opaque tokens fall back to a fixed TTL.
type TokenCache struct {
	source      TokenSource
	skew        time.Duration
	fallbackTTL time.Duration
	now         func() time.Time

	mu      sync.RWMutex
	token   string
	expires time.Time
}

const defaultFallbackTTL = 5 * time.Minute

// NewTokenCache creates a cache around source. Tokens are refreshed skew
// before their recorded expiry.
func NewTokenCache(source TokenSource, skew time.Duration) *TokenCache {
	if skew <= 0 {
		skew = 2 * time.Minute
	}
	return &TokenCache{
		source:      source,
		skew:        skew,
		fallbackTTL: defaultFallbackTTL,
		now:         time.Now,
	}
}

func (c *TokenCache) Token(ctx context.Context) (string, error) {
	c.mu.RLock()
	if c.token != "" && c.now().Before(c.expires) {
		token := c.token
		c.mu.RUnlock()
		return token, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	// Another caller may have refreshed while we waited for the lock.
	if c.token != "" && c.now().Before(c.expires) {
		return c.token, nil
	}

	token, err := c.source.Token(ctx)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", errors.NewUnauthorizedError("token source returned an empty token")
	}

	c.token = token
	c.expires = c.expiryOf(token)
	return token, nil
}

// Invalidate drops the cached token so the next call mints a fresh one. Used
// after the API rejects a token that has not reached its recorded expiry.
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	c.token = ""
	c.expires = time.Time{}
	c.mu.Unlock()
}

func (c *TokenCache) expiryOf(token string) time.Time {
	if exp, ok := jwtExpiry(token); ok {
		return exp.Add(-c.skew)
	}
	return c.now().Add(c.fallbackTTL)
}

// jwtExpiry extracts the exp claim without verifying the signature. The
// token is opaque to us; the Graph API is the party that verifies it.
func jwtExpiry(token string) (time.Time, bool) {
	if strings.Count(token, ".") != 2 {
		return time.Time{}, false
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
