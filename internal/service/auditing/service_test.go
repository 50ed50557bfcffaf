package auditing

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Auriora/admin-assistant-sub001/internal/domain/audit"
	"github.com/Auriora/admin-assistant-sub001/internal/domain/errors"
	"github.com/Auriora/admin-assistant-sub001/internal/testutil/mocks"
)

func newTestService(t *testing.T) (Service, *mocks.AuditRepository) {
	t.Helper()
	repo := new(mocks.AuditRepository)
	svc, err := NewService(repo, nil)
	require.NoError(t, err)
	return svc, repo
}

func TestService_Begin(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	t.Run("persists a started entry", func(t *testing.T) {
		svc, repo := newTestService(t)
		var created *audit.Entry
		repo.On("Create", ctx, mock.AnythingOfType("*audit.Entry")).
			Run(func(args mock.Arguments) { created = args.Get(1).(*audit.Entry) }).
			Return(nil)

		scope, err := svc.Begin(ctx, userID, audit.ActionTypeArchive, "archive_appointments", "corr-1")
		require.NoError(t, err)
		require.NotNil(t, created)

		assert.Equal(t, audit.StatusStarted, created.Status)
		assert.Equal(t, "corr-1", created.CorrelationID)
		assert.Equal(t, "corr-1", scope.CorrelationID())
		assert.Nil(t, created.ParentAuditID)
		repo.AssertExpectations(t)
	})

	t.Run("generates a correlation id when absent", func(t *testing.T) {
		svc, repo := newTestService(t)
		repo.On("Create", ctx, mock.AnythingOfType("*audit.Entry")).Return(nil)

		scope, err := svc.Begin(ctx, userID, audit.ActionTypeArchive, "archive_appointments", "")
		require.NoError(t, err)
		_, parseErr := uuid.Parse(scope.CorrelationID())
		assert.NoError(t, parseErr)
	})

	t.Run("storage failure surfaces", func(t *testing.T) {
		svc, repo := newTestService(t)
		repo.On("Create", ctx, mock.Anything).Return(assert.AnError)

		_, err := svc.Begin(ctx, userID, audit.ActionTypeArchive, "archive_appointments", "corr-1")
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeInternal))
	})
}

func TestContext_End(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	t.Run("clean exit closes with success and duration", func(t *testing.T) {
		svc, repo := newTestService(t)
		var updated *audit.Entry
		repo.On("Create", ctx, mock.Anything).Return(nil)
		repo.On("Update", ctx, mock.AnythingOfType("*audit.Entry")).
			Run(func(args mock.Arguments) { updated = args.Get(1).(*audit.Entry) }).
			Return(nil)

		scope, err := svc.Begin(ctx, userID, audit.ActionTypeArchive, "archive_appointments", "corr-1")
		require.NoError(t, err)
		scope.AddDetail("archived_count", 12)
		scope.End(ctx, nil)

		require.NotNil(t, updated)
		assert.Equal(t, audit.StatusSuccess, updated.Status)
		require.NotNil(t, updated.DurationMS)
		assert.GreaterOrEqual(t, *updated.DurationMS, int64(0))
		assert.Equal(t, 12, updated.Details["archived_count"])
	})

	t.Run("error exit closes with failure and error details", func(t *testing.T) {
		svc, repo := newTestService(t)
		var updated *audit.Entry
		repo.On("Create", ctx, mock.Anything).Return(nil)
		repo.On("Update", ctx, mock.Anything).
			Run(func(args mock.Arguments) { updated = args.Get(1).(*audit.Entry) }).
			Return(nil)

		scope, err := svc.Begin(ctx, userID, audit.ActionTypeArchive, "archive_appointments", "corr-1")
		require.NoError(t, err)
		scope.End(ctx, errors.NewFetchError("calendar unavailable", assert.AnError))

		require.NotNil(t, updated)
		assert.Equal(t, audit.StatusFailure, updated.Status)
		errDetail, ok := updated.Details["error"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "repository", errDetail["type"])
		assert.Equal(t, "REPOSITORY_FETCH_ERROR", errDetail["code"])
		assert.Contains(t, errDetail["message"], "calendar unavailable")
	})

	t.Run("second end is a no-op", func(t *testing.T) {
		svc, repo := newTestService(t)
		repo.On("Create", ctx, mock.Anything).Return(nil)
		repo.On("Update", ctx, mock.Anything).Return(nil)

		scope, err := svc.Begin(ctx, userID, audit.ActionTypeArchive, "archive_appointments", "corr-1")
		require.NoError(t, err)
		scope.End(ctx, nil)
		scope.End(ctx, assert.AnError)

		repo.AssertNumberOfCalls(t, "Update", 1)
	})

	t.Run("partial outcome via explicit status", func(t *testing.T) {
		svc, repo := newTestService(t)
		var updated *audit.Entry
		repo.On("Create", ctx, mock.Anything).Return(nil)
		repo.On("Update", ctx, mock.Anything).
			Run(func(args mock.Arguments) { updated = args.Get(1).(*audit.Entry) }).
			Return(nil)

		scope, err := svc.Begin(ctx, userID, audit.ActionTypeArchive, "archive_appointments", "corr-1")
		require.NoError(t, err)
		scope.EndWithStatus(ctx, audit.StatusPartial, "3 of 5 archived", nil)

		require.NotNil(t, updated)
		assert.Equal(t, audit.StatusPartial, updated.Status)
		assert.Equal(t, "3 of 5 archived", updated.Message)
	})

	t.Run("storage failure on close does not panic", func(t *testing.T) {
		svc, repo := newTestService(t)
		repo.On("Create", ctx, mock.Anything).Return(nil)
		repo.On("Update", ctx, mock.Anything).Return(assert.AnError)

		scope, err := svc.Begin(ctx, userID, audit.ActionTypeArchive, "archive_appointments", "corr-1")
		require.NoError(t, err)
		assert.NotPanics(t, func() { scope.End(ctx, nil) })
	})
}

func TestContext_Child(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	svc, repo := newTestService(t)
	var entries []*audit.Entry
	repo.On("Create", ctx, mock.AnythingOfType("*audit.Entry")).
		Run(func(args mock.Arguments) { entries = append(entries, args.Get(1).(*audit.Entry)) }).
		Return(nil)

	parent, err := svc.Begin(ctx, userID, audit.ActionTypeReverse, "reverse_operation", "corr-2")
	require.NoError(t, err)
	child, err := parent.Child(ctx, "reverse_item")
	require.NoError(t, err)

	require.Len(t, entries, 2)
	require.NotNil(t, entries[1].ParentAuditID)
	assert.Equal(t, entries[0].ID, *entries[1].ParentAuditID)
	assert.Equal(t, "corr-2", child.CorrelationID())
	assert.Equal(t, "reverse_item", entries[1].Operation)
}

func TestContext_BatchEvents(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	svc, repo := newTestService(t)
	var entries []*audit.Entry
	repo.On("Create", ctx, mock.AnythingOfType("*audit.Entry")).
		Run(func(args mock.Arguments) { entries = append(entries, args.Get(1).(*audit.Entry)) }).
		Return(nil)

	scope, err := svc.Begin(ctx, userID, audit.ActionTypeArchive, "archive_appointments", "corr-3")
	require.NoError(t, err)

	scope.LogBatchStart(ctx, "bulk_add", 20)
	scope.LogBatchEnd(ctx, "bulk_add", 18, 2)

	require.Len(t, entries, 3)
	start, end := entries[1], entries[2]
	assert.Equal(t, "bulk_add_start", start.Operation)
	assert.Equal(t, audit.StatusSuccess, start.Status)
	assert.Equal(t, 20, start.Details["total"])
	assert.Equal(t, "bulk_add_end", end.Operation)
	assert.Equal(t, audit.StatusPartial, end.Status)
	assert.Equal(t, 18, end.Details["succeeded"])
	assert.Equal(t, 2, end.Details["failed"])
}

func TestContext_LogModification(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	svc, repo := newTestService(t)
	var entries []*audit.Entry
	repo.On("Create", ctx, mock.AnythingOfType("*audit.Entry")).
		Run(func(args mock.Arguments) { entries = append(entries, args.Get(1).(*audit.Entry)) }).
		Return(nil)

	scope, err := svc.Begin(ctx, userID, audit.ActionTypeArchive, "archive_appointments", "corr-4")
	require.NoError(t, err)

	oldState := map[string]interface{}{"subject": "Planning", "sensitivity": "normal"}
	newState := map[string]interface{}{"subject": "Private appointment", "sensitivity": "private"}
	scope.LogModification(ctx, "Appointment", "appt-1", oldState, newState)

	require.Len(t, entries, 2)
	modEntry := entries[1]
	assert.Equal(t, "data_modification", modEntry.Operation)
	assert.Equal(t, "Appointment", modEntry.ResourceType)
	assert.Equal(t, "appt-1", modEntry.ResourceID)
	changes, ok := modEntry.Details["changes"].(map[string]interface{})
	require.True(t, ok)
	assert.Len(t, changes, 2)
	assert.Equal(t, 2, modEntry.Details["changed_count"])
}

func TestService_Record(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	svc, repo := newTestService(t)
	var created *audit.Entry
	repo.On("Create", ctx, mock.AnythingOfType("*audit.Entry")).
		Run(func(args mock.Arguments) { created = args.Get(1).(*audit.Entry) }).
		Return(nil)

	entry, err := svc.Record(ctx, userID, audit.ActionTypeSystem, "configuration_created",
		audit.StatusSuccess, "", map[string]interface{}{"name": "work-archive"})
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, entry.ID, created.ID)
	assert.Equal(t, audit.StatusSuccess, created.Status)
	assert.Equal(t, "work-archive", created.Details["name"])
	assert.NotEmpty(t, created.CorrelationID)
}

func TestService_Trail(t *testing.T) {
	ctx := context.Background()

	svc, repo := newTestService(t)
	trail := []*audit.Entry{{ID: uuid.New()}, {ID: uuid.New()}}
	repo.On("ListByCorrelation", ctx, "corr-5").Return(trail, nil)

	got, err := svc.Trail(ctx, "corr-5")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = svc.Trail(ctx, "")
	require.Error(t, err)
	assert.Equal(t, "MISSING_CORRELATION_ID", errors.GetCode(err))
}
