package auditing

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Auriora/admin-assistant-sub001/internal/domain/audit"
	"github.com/Auriora/admin-assistant-sub001/internal/domain/errors"
)

// Context scopes the audit entries of one unit of work. It accumulates
// details while the work runs and closes its entry exactly once: success on a
// clean finish, failure when the work returned an error. Storage failures
// inside the context are logged and swallowed so they cannot mask the outcome
// of the work itself.
type Context struct {
	svc     *service
	entry   *audit.Entry
	started time.Time

	mu       sync.Mutex
	details  map[string]interface{}
	request  map[string]interface{}
	response map[string]interface{}
	closed   bool
}

func newContext(svc *service, entry *audit.Entry) *Context {
	return &Context{
		svc:     svc,
		entry:   entry,
		started: time.Now().UTC(),
		details: make(map[string]interface{}),
	}
}

// EntryID returns the id of the underlying audit entry.
func (c *Context) EntryID() string {
	return c.entry.ID.String()
}

// EntryUUID returns the id of the underlying audit entry as a uuid.
func (c *Context) EntryUUID() uuid.UUID {
	return c.entry.ID
}

// CorrelationID returns the correlation id shared by every entry in this scope.
func (c *Context) CorrelationID() string {
	return c.entry.CorrelationID
}

// AddDetail records one key under the entry's details.
func (c *Context) AddDetail(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.details[key] = value
}

// SetResource names the resource this scope operates on.
func (c *Context) SetResource(resourceType, resourceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entry.WithResource(resourceType, resourceID)
}

// SetRequestData attaches the sanitized input of the unit of work.
func (c *Context) SetRequestData(data map[string]interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.request = data
}

// SetResponseData attaches the sanitized outcome of the unit of work.
func (c *Context) SetResponseData(data map[string]interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.response = data
}

// Child opens a nested scope under this entry with the same correlation id.
func (c *Context) Child(ctx context.Context, operation string) (*Context, error) {
	entry, err := audit.NewEntry(c.entry.UserID, c.entry.ActionType, operation, c.entry.CorrelationID)
	if err != nil {
		return nil, err
	}
	entry.WithParent(c.entry.ID)
	if err := c.svc.repo.Create(ctx, entry); err != nil {
		return nil, errors.NewInternalError("failed to open child audit scope").WithCause(err)
	}
	return newContext(c.svc, entry), nil
}

// End closes the scope. A nil runErr closes with success, anything else with
// failure plus structured error details. Repeated calls are ignored.
func (c *Context) End(ctx context.Context, runErr error) {
	if runErr == nil {
		c.EndWithStatus(ctx, audit.StatusSuccess, "", nil)
		return
	}
	c.EndWithStatus(ctx, audit.StatusFailure, runErr.Error(), runErr)
}

// EndWithStatus closes the scope with an explicit terminal status. Partial
// outcomes use this directly.
func (c *Context) EndWithStatus(ctx context.Context, status audit.Status, message string, runErr error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		c.svc.logger.Warn("audit scope already closed",
			zap.String("audit_id", c.entry.ID.String()),
			zap.String("operation", c.entry.Operation))
		return
	}
	c.closed = true

	if runErr != nil {
		c.details["error"] = errorDetails(runErr)
	}
	if len(c.details) > 0 {
		c.entry.Details = audit.SanitizeMap(c.details)
	}
	if c.request != nil {
		c.entry.RequestData = audit.SanitizeMap(c.request)
	}
	if c.response != nil {
		c.entry.ResponseData = audit.SanitizeMap(c.response)
	}

	duration := time.Since(c.started)
	if err := c.entry.Close(status, message, duration); err != nil {
		c.svc.logger.Error("failed to close audit entry",
			zap.String("audit_id", c.entry.ID.String()),
			zap.Error(err))
		return
	}
	if err := c.svc.repo.Update(ctx, c.entry); err != nil {
		c.svc.logger.Error("failed to persist audit entry",
			zap.String("audit_id", c.entry.ID.String()),
			zap.String("operation", c.entry.Operation),
			zap.Error(err))
	}
}

// LogBatchStart records the beginning of a batch step as a closed child entry.
func (c *Context) LogBatchStart(ctx context.Context, name string, total int) {
	details := map[string]interface{}{"batch": name, "total": total}
	c.logChildEvent(ctx, fmt.Sprintf("%s_start", name), audit.StatusSuccess, details)
}

// LogBatchEnd records the completion of a batch step with its item counts.
func (c *Context) LogBatchEnd(ctx context.Context, name string, succeeded, failed int) {
	status := audit.StatusSuccess
	if failed > 0 && succeeded > 0 {
		status = audit.StatusPartial
	} else if failed > 0 {
		status = audit.StatusFailure
	}
	details := map[string]interface{}{"batch": name, "succeeded": succeeded, "failed": failed}
	c.logChildEvent(ctx, fmt.Sprintf("%s_end", name), status, details)
}

// LogModification records a field-level diff between two snapshots of one
// resource as a closed child entry.
func (c *Context) LogModification(ctx context.Context, resourceType, resourceID string, oldState, newState map[string]interface{}) {
	diff := audit.ComputeDiff(oldState, newState)
	entry, err := audit.NewEntry(c.entry.UserID, c.entry.ActionType, "data_modification", c.entry.CorrelationID)
	if err != nil {
		c.svc.logger.Error("failed to build modification entry", zap.Error(err))
		return
	}
	entry.WithParent(c.entry.ID).WithResource(resourceType, resourceID)
	entry.Details = audit.SanitizeMap(map[string]interface{}{
		"changes":       diff,
		"changed_count": len(diff),
	})
	if err := entry.Close(audit.StatusSuccess, fmt.Sprintf("%d field(s) changed", len(diff)), 0); err != nil {
		c.svc.logger.Error("failed to close modification entry", zap.Error(err))
		return
	}
	if err := c.svc.repo.Create(ctx, entry); err != nil {
		c.svc.logger.Error("failed to persist modification entry",
			zap.String("resource_id", resourceID),
			zap.Error(err))
	}
}

func (c *Context) logChildEvent(ctx context.Context, operation string, status audit.Status, details map[string]interface{}) {
	entry, err := audit.NewEntry(c.entry.UserID, c.entry.ActionType, operation, c.entry.CorrelationID)
	if err != nil {
		c.svc.logger.Error("failed to build audit event", zap.String("operation", operation), zap.Error(err))
		return
	}
	entry.WithParent(c.entry.ID)
	entry.Details = audit.SanitizeMap(details)
	if err := entry.Close(status, "", 0); err != nil {
		c.svc.logger.Error("failed to close audit event", zap.String("operation", operation), zap.Error(err))
		return
	}
	if err := c.svc.repo.Create(ctx, entry); err != nil {
		c.svc.logger.Error("failed to persist audit event", zap.String("operation", operation), zap.Error(err))
	}
}

func errorDetails(err error) map[string]interface{} {
	details := map[string]interface{}{
		"type":    "internal",
		"code":    errors.GetCode(err),
		"message": err.Error(),
	}
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		details["type"] = string(appErr.Type)
		if len(appErr.Details) > 0 {
			details["context"] = appErr.Details
		}
	}
	return details
}
