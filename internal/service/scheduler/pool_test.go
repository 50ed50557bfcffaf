package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Auriora/admin-assistant-sub001/internal/domain/archivecfg"
	"github.com/Auriora/admin-assistant-sub001/internal/domain/errors"
	"github.com/Auriora/admin-assistant-sub001/internal/domain/user"
	"github.com/Auriora/admin-assistant-sub001/internal/service/archiver"
)

// stubArchiver answers every request successfully, with optional per-config
// delays to force out-of-order completion.
type stubArchiver struct {
	mu       sync.Mutex
	requests []archiver.Request
	delays   map[string]time.Duration
	block    chan struct{}
}

func (s *stubArchiver) Archive(ctx context.Context, req archiver.Request) (*archiver.Result, error) {
	if s.block != nil {
		<-s.block
	}
	if d, ok := s.delays[req.Config.Name]; ok {
		time.Sleep(d)
	}
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	return &archiver.Result{
		Status:        archiver.StatusSuccess,
		ArchiveType:   archiver.TypeGeneral,
		ArchivedCount: 1,
		CorrelationID: req.CorrelationID,
	}, nil
}

func (s *stubArchiver) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// memoryLock is an in-process RunLock with injectable contention.
type memoryLock struct {
	mu         sync.Mutex
	held       map[string]bool
	acquired   []string
	released   []string
	acquireErr error
}

func newMemoryLock() *memoryLock {
	return &memoryLock{held: map[string]bool{}}
}

func (l *memoryLock) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.acquireErr != nil {
		return false, l.acquireErr
	}
	if l.held[key] {
		return false, nil
	}
	l.held[key] = true
	l.acquired = append(l.acquired, key)
	return true, nil
}

func (l *memoryLock) Release(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
	l.released = append(l.released, key)
	return nil
}

func testJob(t *testing.T, u *user.User, name string) Job {
	t.Helper()
	cfg, err := archivecfg.New(u.ID, name,
		"msgraph://bruce@company.com/calendars/primary",
		`msgraph://bruce@company.com/calendars/"Activity Archive"`,
		"UTC", archivecfg.PurposeGeneral)
	require.NoError(t, err)
	day := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	return Job{User: u, Config: cfg, Start: day, End: day}
}

func TestPool_Run_ResultsInSubmitOrder(t *testing.T) {
	u, err := user.New("bruce@company.com", "bruce")
	require.NoError(t, err)

	svc := &stubArchiver{delays: map[string]time.Duration{
		"first":  30 * time.Millisecond,
		"second": 10 * time.Millisecond,
	}}
	pool, err := NewPool(Config{Workers: 3}, svc, nil, zap.NewNop())
	require.NoError(t, err)

	jobs := []Job{
		testJob(t, u, "first"),
		testJob(t, u, "second"),
		testJob(t, u, "third"),
	}
	results, err := pool.Run(context.Background(), jobs)
	require.NoError(t, err)
	require.Len(t, results, 3)

	for i, res := range results {
		assert.Equal(t, jobs[i].Config.Name, res.Job.Config.Name)
		require.NoError(t, res.Err)
		require.NotNil(t, res.Result)
		assert.Equal(t, archiver.StatusSuccess, res.Result.Status)
		assert.False(t, res.Skipped)
	}
	assert.Equal(t, 3, svc.callCount())
}

func TestPool_Run_SkipsConfigurationHeldElsewhere(t *testing.T) {
	u, err := user.New("bruce@company.com", "bruce")
	require.NoError(t, err)

	jobs := []Job{
		testJob(t, u, "free-to-run"),
		testJob(t, u, "held-elsewhere"),
	}

	lock := newMemoryLock()
	lock.held[lockKey(jobs[1])] = true

	svc := &stubArchiver{}
	pool, err := NewPool(Config{Workers: 1}, svc, lock, zap.NewNop())
	require.NoError(t, err)

	results, err := pool.Run(context.Background(), jobs)
	require.NoError(t, err)

	assert.False(t, results[0].Skipped)
	require.NotNil(t, results[0].Result)
	assert.True(t, results[1].Skipped)
	assert.Nil(t, results[1].Result)
	assert.NoError(t, results[1].Err)

	assert.Equal(t, 1, svc.callCount())
	assert.Equal(t, []string{lockKey(jobs[0])}, lock.acquired)
	assert.Equal(t, []string{lockKey(jobs[0])}, lock.released)
}

func TestPool_Run_LockOutageDoesNotBlockArchival(t *testing.T) {
	u, err := user.New("bruce@company.com", "bruce")
	require.NoError(t, err)

	lock := newMemoryLock()
	lock.acquireErr = errors.NewInternalError("lock storage unavailable")

	svc := &stubArchiver{}
	pool, err := NewPool(Config{}, svc, lock, zap.NewNop())
	require.NoError(t, err)

	results, err := pool.Run(context.Background(), []Job{testJob(t, u, "unlocked")})
	require.NoError(t, err)

	assert.False(t, results[0].Skipped)
	require.NotNil(t, results[0].Result)
	assert.Equal(t, 1, svc.callCount())
	assert.Empty(t, lock.released)
}

func TestPool_Run_GeneratesCorrelationIDs(t *testing.T) {
	u, err := user.New("bruce@company.com", "bruce")
	require.NoError(t, err)

	svc := &stubArchiver{}
	pool, err := NewPool(Config{}, svc, nil, zap.NewNop())
	require.NoError(t, err)

	withID := testJob(t, u, "pinned")
	withID.CorrelationID = "archive-20250602-fixed"
	results, err := pool.Run(context.Background(), []Job{withID, testJob(t, u, "fresh")})
	require.NoError(t, err)

	assert.Equal(t, "archive-20250602-fixed", results[0].Result.CorrelationID)
	assert.NotEmpty(t, results[1].Result.CorrelationID)
	assert.NotEqual(t, results[0].Result.CorrelationID, results[1].Result.CorrelationID)
}

func TestPool_Run_SecondRunRejectedWhileBusy(t *testing.T) {
	u, err := user.New("bruce@company.com", "bruce")
	require.NoError(t, err)

	svc := &stubArchiver{block: make(chan struct{})}
	pool, err := NewPool(Config{Workers: 1}, svc, nil, zap.NewNop())
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = pool.Run(context.Background(), []Job{testJob(t, u, "slow")})
	}()

	// Wait for the first run to claim the pool; probing with no jobs never
	// touches the blocked archiver.
	require.Eventually(t, func() bool {
		_, err := pool.Run(context.Background(), nil)
		return err != nil && errors.IsType(err, errors.ErrorTypeConflict)
	}, time.Second, 5*time.Millisecond)

	close(svc.block)
	<-done

	// The pool frees up once the first run finishes.
	results, err := pool.Run(context.Background(), []Job{testJob(t, u, "after")})
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestPool_Run_EmptyJobList(t *testing.T) {
	svc := &stubArchiver{}
	pool, err := NewPool(Config{}, svc, nil, zap.NewNop())
	require.NoError(t, err)

	results, err := pool.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, results)
}

func TestPool_Run_InvalidJob(t *testing.T) {
	svc := &stubArchiver{}
	pool, err := NewPool(Config{}, svc, nil, zap.NewNop())
	require.NoError(t, err)

	results, err := pool.Run(context.Background(), []Job{{}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Error(t, results[0].Err)
	assert.Equal(t, "INVALID_JOB", errors.GetCode(results[0].Err))
}

func TestNewPool_RequiresArchiver(t *testing.T) {
	_, err := NewPool(Config{}, nil, nil, nil)
	require.Error(t, err)
}
