package msgraph

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Auriora/admin-assistant-sub001/internal/domain/errors"
)

type countingSource struct {
	token string
	calls int
}

func (s *countingSource) Token(context.Context) (string, error) {
	s.calls++
	return s.token, nil
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(exp)}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func TestTokenCache_ReusesTokenUntilExpiry(t *testing.T) {
	source := &countingSource{token: signedToken(t, time.Now().Add(time.Hour))}
	cache := NewTokenCache(source, 2*time.Minute)

	first, err := cache.Token(context.Background())
	require.NoError(t, err)
	second, err := cache.Token(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, source.calls)
}

func TestTokenCache_RefreshesInsideSkewWindow(t *testing.T) {
	// Expires in one minute but the skew is two, so every call mints anew.
	source := &countingSource{token: signedToken(t, time.Now().Add(time.Minute))}
	cache := NewTokenCache(source, 2*time.Minute)

	_, err := cache.Token(context.Background())
	require.NoError(t, err)
	_, err = cache.Token(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, source.calls)
}

func TestTokenCache_OpaqueTokenFallsBackToTTL(t *testing.T) {
	source := &countingSource{token: "opaque-access-token"}
	cache := NewTokenCache(source, 2*time.Minute)

	now := time.Now()
	cache.now = func() time.Time { return now }

	_, err := cache.Token(context.Background())
	require.NoError(t, err)
	_, err = cache.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, source.calls, "within the fallback TTL the token is reused")

	now = now.Add(defaultFallbackTTL + time.Second)
	_, err = cache.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, source.calls, "past the fallback TTL a fresh token is minted")
}

func TestTokenCache_InvalidateForcesMint(t *testing.T) {
	source := &countingSource{token: signedToken(t, time.Now().Add(time.Hour))}
	cache := NewTokenCache(source, 2*time.Minute)

	_, err := cache.Token(context.Background())
	require.NoError(t, err)

	cache.Invalidate()

	_, err = cache.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, source.calls)
}

func TestStaticTokenSource_EmptyIsUnauthorized(t *testing.T) {
	_, err := StaticTokenSource("").Token(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnauthorized))

	token, err := StaticTokenSource("abc").Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", token)
}

func TestFileTokenSource_ReadsAndTrims(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	require.NoError(t, os.WriteFile(path, []byte("  file-token\n"), 0o600))

	token, err := FileTokenSource(path).Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "file-token", token)

	// Rotating the file changes the next mint without a restart.
	require.NoError(t, os.WriteFile(path, []byte("rotated-token"), 0o600))
	token, err = FileTokenSource(path).Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "rotated-token", token)
}

func TestFileTokenSource_MissingOrEmptyIsUnauthorized(t *testing.T) {
	_, err := FileTokenSource(filepath.Join(t.TempDir(), "absent")).Token(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnauthorized))

	path := filepath.Join(t.TempDir(), "token")
	require.NoError(t, os.WriteFile(path, []byte("   \n"), 0o600))
	_, err = FileTokenSource(path).Token(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnauthorized))
}
