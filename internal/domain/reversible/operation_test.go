package reversible_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Auriora/admin-assistant-sub001/internal/domain/errors"
	"github.com/Auriora/admin-assistant-sub001/internal/domain/reversible"
)

func newOperation(t *testing.T) *reversible.Operation {
	t.Helper()
	op, err := reversible.NewOperation(uuid.New(), "archive", "Archive 2025-06-02 to 2025-06-08", uuid.NewString())
	require.NoError(t, err)
	return op
}

func TestNewOperation(t *testing.T) {
	op := newOperation(t)

	assert.True(t, op.IsReversible)
	assert.False(t, op.IsReversed)
	assert.Empty(t, op.Items)
	assert.Nil(t, op.ReversedAt)

	t.Run("requires user", func(t *testing.T) {
		_, err := reversible.NewOperation(uuid.Nil, "archive", "x", uuid.NewString())
		assert.Error(t, err)
	})

	t.Run("requires correlation id", func(t *testing.T) {
		_, err := reversible.NewOperation(uuid.New(), "archive", "x", "")
		assert.Error(t, err)
	})
}

func TestOperation_MarkReversed(t *testing.T) {
	t.Run("happy path", func(t *testing.T) {
		op := newOperation(t)
		by := uuid.New()

		require.NoError(t, op.MarkReversed(by, "user requested rollback"))

		assert.True(t, op.IsReversed)
		assert.True(t, op.IsReversible, "reversed implies reversible")
		require.NotNil(t, op.ReversedAt)
		require.NotNil(t, op.ReversedByUserID)
		assert.Equal(t, by, *op.ReversedByUserID)
	})

	t.Run("rejected when not reversible", func(t *testing.T) {
		op := newOperation(t)
		op.MarkNotReversible("Operation failed - cannot reverse")

		err := op.MarkReversed(uuid.New(), "attempt")
		require.Error(t, err)
		assert.Equal(t, "NOT_REVERSIBLE", errors.GetCode(err))
		assert.False(t, op.IsReversed)
	})

	t.Run("rejected when already reversed", func(t *testing.T) {
		op := newOperation(t)
		require.NoError(t, op.MarkReversed(uuid.New(), "first"))

		err := op.MarkReversed(uuid.New(), "second")
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeConflict))
	})
}

func TestOperation_Blockers(t *testing.T) {
	op := newOperation(t)
	blocker := uuid.New()

	op.AddBlocker(blocker)
	op.AddBlocker(blocker)

	assert.Equal(t, []uuid.UUID{blocker}, op.Blocks)
}

func TestNewItem(t *testing.T) {
	opID := uuid.New()

	tests := []struct {
		name     string
		opID     uuid.UUID
		itemType string
		action   reversible.ReverseAction
		wantErr  bool
	}{
		{name: "delete item for created appointment", opID: opID, itemType: "appointment", action: reversible.ActionDelete},
		{name: "restore item", opID: opID, itemType: "appointment", action: reversible.ActionRestore},
		{name: "update item", opID: opID, itemType: "appointment", action: reversible.ActionUpdate},
		{name: "rejects unknown action", opID: opID, itemType: "appointment", action: "explode", wantErr: true},
		{name: "rejects missing operation", opID: uuid.Nil, itemType: "appointment", action: reversible.ActionDelete, wantErr: true},
		{name: "rejects missing type", opID: opID, itemType: "", action: reversible.ActionDelete, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item, err := reversible.NewItem(tt.opID, tt.itemType, tt.action)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.action, item.ReverseAction)
			assert.False(t, item.IsReversed)
		})
	}
}

func TestOperation_AllItemsSettled(t *testing.T) {
	op := newOperation(t)

	first, err := reversible.NewItem(op.ID, "appointment", reversible.ActionDelete)
	require.NoError(t, err)
	second, err := reversible.NewItem(op.ID, "appointment", reversible.ActionDelete)
	require.NoError(t, err)
	op.Items = append(op.Items, first, second)

	assert.False(t, op.AllItemsSettled())

	first.MarkReversed()
	assert.False(t, op.AllItemsSettled())

	second.MarkReverseFailed("destination rejected delete")
	assert.True(t, op.AllItemsSettled())
	assert.Equal(t, "destination rejected delete", second.ReverseError)
}
