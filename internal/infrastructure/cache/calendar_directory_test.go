package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/Auriora/admin-assistant-sub001/internal/infrastructure/config"
	"github.com/Auriora/admin-assistant-sub001/internal/service/calendars"
)

func setupRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

type stubDirectory struct {
	calls int
	infos []calendars.CalendarInfo
	err   error
}

func (s *stubDirectory) ListCalendars(context.Context, uuid.UUID) ([]calendars.CalendarInfo, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.infos, nil
}

func TestNewClient_PingsOnConnect(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewClient(&config.RedisConfig{URL: mr.Addr()}, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Ping(context.Background()).Err())
}

func TestNewClient_UnreachableServerFails(t *testing.T) {
	_, err := NewClient(&config.RedisConfig{URL: "127.0.0.1:1"}, zaptest.NewLogger(t))
	require.Error(t, err)
}

func TestCachedDirectory_ServesFromCacheAfterFirstCall(t *testing.T) {
	client, _ := setupRedis(t)
	userID := uuid.New()
	inner := &stubDirectory{infos: []calendars.CalendarInfo{
		{ID: "c-1", Name: "Calendar", IsPrimary: true},
		{ID: "c-2", Name: "Activity Archive"},
	}}

	dir := NewCachedDirectory(inner, client, "msgraph", time.Minute, zap.NewNop())

	first, err := dir.ListCalendars(context.Background(), userID)
	require.NoError(t, err)
	second, err := dir.ListCalendars(context.Background(), userID)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls)
}

func TestCachedDirectory_ExpiryRefreshesFromLiveDirectory(t *testing.T) {
	client, mr := setupRedis(t)
	userID := uuid.New()
	inner := &stubDirectory{infos: []calendars.CalendarInfo{{ID: "c-1", Name: "Calendar", IsPrimary: true}}}

	dir := NewCachedDirectory(inner, client, "msgraph", time.Minute, zap.NewNop())

	_, err := dir.ListCalendars(context.Background(), userID)
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	_, err = dir.ListCalendars(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedDirectory_SchemesDoNotShareEntries(t *testing.T) {
	client, _ := setupRedis(t)
	userID := uuid.New()
	graphInner := &stubDirectory{infos: []calendars.CalendarInfo{{ID: "g-1", Name: "Calendar"}}}
	localInner := &stubDirectory{infos: []calendars.CalendarInfo{{ID: "", Name: "Calendar", IsPrimary: true}}}

	graphDir := NewCachedDirectory(graphInner, client, "msgraph", time.Minute, zap.NewNop())
	localDir := NewCachedDirectory(localInner, client, "local", time.Minute, zap.NewNop())

	graphInfos, err := graphDir.ListCalendars(context.Background(), userID)
	require.NoError(t, err)
	localInfos, err := localDir.ListCalendars(context.Background(), userID)
	require.NoError(t, err)

	assert.Equal(t, "g-1", graphInfos[0].ID)
	assert.Equal(t, "", localInfos[0].ID)
	assert.Equal(t, 1, graphInner.calls)
	assert.Equal(t, 1, localInner.calls)
}

func TestCachedDirectory_RedisOutageFallsThrough(t *testing.T) {
	client, mr := setupRedis(t)
	userID := uuid.New()
	inner := &stubDirectory{infos: []calendars.CalendarInfo{{ID: "c-1", Name: "Calendar"}}}

	dir := NewCachedDirectory(inner, client, "msgraph", time.Minute, zap.NewNop())
	mr.Close()

	infos, err := dir.ListCalendars(context.Background(), userID)
	require.NoError(t, err)
	assert.Len(t, infos, 1)
	assert.Equal(t, 1, inner.calls)
}

func TestCachedDirectory_CorruptEntryIsRefreshed(t *testing.T) {
	client, mr := setupRedis(t)
	userID := uuid.New()
	inner := &stubDirectory{infos: []calendars.CalendarInfo{{ID: "c-1", Name: "Calendar"}}}

	dir := NewCachedDirectory(inner, client, "msgraph", time.Minute, zap.NewNop())
	require.NoError(t, mr.Set("calendars:directory:msgraph:"+userID.String(), "{not json"))

	infos, err := dir.ListCalendars(context.Background(), userID)
	require.NoError(t, err)
	assert.Len(t, infos, 1)
	assert.Equal(t, 1, inner.calls)
}

func TestCachedDirectory_InvalidateDropsEntry(t *testing.T) {
	client, _ := setupRedis(t)
	userID := uuid.New()
	inner := &stubDirectory{infos: []calendars.CalendarInfo{{ID: "c-1", Name: "Calendar"}}}

	dir := NewCachedDirectory(inner, client, "msgraph", time.Minute, zap.NewNop())

	_, err := dir.ListCalendars(context.Background(), userID)
	require.NoError(t, err)
	require.NoError(t, dir.Invalidate(context.Background(), userID))

	_, err = dir.ListCalendars(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}
