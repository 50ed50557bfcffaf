package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/Auriora/admin-assistant-sub001/internal/domain/appointment"
	"github.com/Auriora/admin-assistant-sub001/internal/domain/archivecfg"
	"github.com/Auriora/admin-assistant-sub001/internal/domain/association"
	"github.com/Auriora/admin-assistant-sub001/internal/domain/audit"
	"github.com/Auriora/admin-assistant-sub001/internal/domain/reversible"
	"github.com/Auriora/admin-assistant-sub001/internal/domain/task"
	"github.com/Auriora/admin-assistant-sub001/internal/domain/user"
)

// AuditRepository mock
type AuditRepository struct {
	mock.Mock
}

func (m *AuditRepository) Create(ctx context.Context, entry *audit.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *AuditRepository) Update(ctx context.Context, entry *audit.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *AuditRepository) GetByID(ctx context.Context, id uuid.UUID) (*audit.Entry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*audit.Entry), args.Error(1)
}

func (m *AuditRepository) ListByCorrelation(ctx context.Context, correlationID string) ([]*audit.Entry, error) {
	args := m.Called(ctx, correlationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*audit.Entry), args.Error(1)
}

func (m *AuditRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*audit.Entry, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*audit.Entry), args.Error(1)
}

// OperationRepository mock
type OperationRepository struct {
	mock.Mock
}

func (m *OperationRepository) Create(ctx context.Context, op *reversible.Operation) error {
	args := m.Called(ctx, op)
	return args.Error(0)
}

func (m *OperationRepository) Update(ctx context.Context, op *reversible.Operation) error {
	args := m.Called(ctx, op)
	return args.Error(0)
}

func (m *OperationRepository) GetByID(ctx context.Context, id uuid.UUID) (*reversible.Operation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reversible.Operation), args.Error(1)
}

func (m *OperationRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*reversible.Operation, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*reversible.Operation), args.Error(1)
}

func (m *OperationRepository) GetByCorrelation(ctx context.Context, correlationID string) ([]*reversible.Operation, error) {
	args := m.Called(ctx, correlationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*reversible.Operation), args.Error(1)
}

func (m *OperationRepository) CreateItem(ctx context.Context, item *reversible.Item) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *OperationRepository) UpdateItem(ctx context.Context, item *reversible.Item) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

// ArchiveStore mock
type ArchiveStore struct {
	mock.Mock
}

func (m *ArchiveStore) GetByExternalID(ctx context.Context, userID uuid.UUID, externalID string) (*appointment.Appointment, error) {
	args := m.Called(ctx, userID, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appointment.Appointment), args.Error(1)
}

func (m *ArchiveStore) Restore(ctx context.Context, userID uuid.UUID, appt *appointment.Appointment) error {
	args := m.Called(ctx, userID, appt)
	return args.Error(0)
}

func (m *ArchiveStore) Overwrite(ctx context.Context, userID uuid.UUID, appt *appointment.Appointment) error {
	args := m.Called(ctx, userID, appt)
	return args.Error(0)
}

func (m *ArchiveStore) Remove(ctx context.Context, userID uuid.UUID, externalID string) error {
	args := m.Called(ctx, userID, externalID)
	return args.Error(0)
}

// TaskRepository mock
type TaskRepository struct {
	mock.Mock
}

func (m *TaskRepository) Create(ctx context.Context, log *task.ActionLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

func (m *TaskRepository) Update(ctx context.Context, log *task.ActionLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

func (m *TaskRepository) GetByID(ctx context.Context, id uuid.UUID) (*task.ActionLog, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*task.ActionLog), args.Error(1)
}

func (m *TaskRepository) ListByUser(ctx context.Context, userID uuid.UUID, state *task.State, limit int) ([]*task.ActionLog, error) {
	args := m.Called(ctx, userID, state, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*task.ActionLog), args.Error(1)
}

// AssociationRepository mock
type AssociationRepository struct {
	mock.Mock
}

func (m *AssociationRepository) Create(ctx context.Context, assoc *association.Association) error {
	args := m.Called(ctx, assoc)
	return args.Error(0)
}

func (m *AssociationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *AssociationRepository) ListBySource(ctx context.Context, kind association.EntityKind, sourceID string) ([]*association.Association, error) {
	args := m.Called(ctx, kind, sourceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*association.Association), args.Error(1)
}

// ConfigurationRepository mock
type ConfigurationRepository struct {
	mock.Mock
}

func (m *ConfigurationRepository) Create(ctx context.Context, cfg *archivecfg.Configuration) error {
	args := m.Called(ctx, cfg)
	return args.Error(0)
}

func (m *ConfigurationRepository) Update(ctx context.Context, cfg *archivecfg.Configuration) error {
	args := m.Called(ctx, cfg)
	return args.Error(0)
}

func (m *ConfigurationRepository) GetByID(ctx context.Context, id uuid.UUID) (*archivecfg.Configuration, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*archivecfg.Configuration), args.Error(1)
}

func (m *ConfigurationRepository) GetByName(ctx context.Context, userID uuid.UUID, name string) (*archivecfg.Configuration, error) {
	args := m.Called(ctx, userID, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*archivecfg.Configuration), args.Error(1)
}

func (m *ConfigurationRepository) ListByUser(ctx context.Context, userID uuid.UUID, activeOnly bool) ([]*archivecfg.Configuration, error) {
	args := m.Called(ctx, userID, activeOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*archivecfg.Configuration), args.Error(1)
}

// UserRepository mock
type UserRepository struct {
	mock.Mock
}

func (m *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func (m *UserRepository) GetByIdentifier(ctx context.Context, identifier string) (*user.User, error) {
	args := m.Called(ctx, identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func (m *UserRepository) List(ctx context.Context) ([]*user.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*user.User), args.Error(1)
}
