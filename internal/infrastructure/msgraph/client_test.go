package msgraph

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Auriora/admin-assistant-sub001/internal/domain/errors"
	"github.com/Auriora/admin-assistant-sub001/internal/infrastructure/config"
)

// sequenceSource hands out each token once, in order.
type sequenceSource struct {
	mu     sync.Mutex
	tokens []string
}

func (s *sequenceSource) Token(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.tokens) == 0 {
		return "", errors.NewUnauthorizedError("no tokens left")
	}
	token := s.tokens[0]
	s.tokens = s.tokens[1:]
	return token, nil
}

func newRetryTestRepository(t *testing.T, handler http.HandlerFunc, source TokenSource) *AppointmentRepository {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := &config.GraphConfig{
		BaseURL:           server.URL,
		RequestsPerSecond: 1000,
		Burst:             1000,
		Timeout:           5 * time.Second,
	}
	return NewAppointmentRepository(NewClient(cfg, source, zap.NewNop()), zap.NewNop())
}

func TestClient_RetriesOnceWithFreshTokenAfter401(t *testing.T) {
	var calls int
	handler := func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.Header.Get("Authorization") == "Bearer stale" {
			writeJSON(w, http.StatusUnauthorized,
				`{"error":{"code":"InvalidAuthenticationToken","message":"Lifetime validation failed"}}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"value": []}`)
	}

	cache := NewTokenCache(&sequenceSource{tokens: []string{"stale", "fresh"}}, time.Minute)
	repo := newRetryTestRepository(t, handler, cache)

	appts, err := repo.ListForPeriod(context.Background(), uuid.New(), "",
		time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, appts)
	assert.Equal(t, 2, calls)
}

func TestClient_RetriesOnlyOnce(t *testing.T) {
	var calls int
	handler := func(w http.ResponseWriter, r *http.Request) {
		calls++
		writeJSON(w, http.StatusUnauthorized,
			`{"error":{"code":"InvalidAuthenticationToken","message":"still bad"}}`)
	}

	cache := NewTokenCache(&sequenceSource{tokens: []string{"stale", "also-stale", "never-used"}}, time.Minute)
	repo := newRetryTestRepository(t, handler, cache)

	_, err := repo.ListForPeriod(context.Background(), uuid.New(), "",
		time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnauthorized), "got %v", err)
	assert.Equal(t, 2, calls)
}

func TestClient_NoRetryWhenSourceCannotRefresh(t *testing.T) {
	var calls int
	handler := func(w http.ResponseWriter, r *http.Request) {
		calls++
		writeJSON(w, http.StatusUnauthorized,
			`{"error":{"code":"InvalidAuthenticationToken","message":"expired"}}`)
	}

	repo := newRetryTestRepository(t, handler, StaticTokenSource("stale"))

	_, err := repo.ListForPeriod(context.Background(), uuid.New(), "",
		time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC))
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
