package archiver

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Auriora/admin-assistant-sub001/internal/domain/appointment"
	"github.com/Auriora/admin-assistant-sub001/internal/domain/archivecfg"
	"github.com/Auriora/admin-assistant-sub001/internal/domain/association"
	"github.com/Auriora/admin-assistant-sub001/internal/domain/audit"
	"github.com/Auriora/admin-assistant-sub001/internal/domain/category"
	"github.com/Auriora/admin-assistant-sub001/internal/domain/errors"
	"github.com/Auriora/admin-assistant-sub001/internal/domain/resource"
	"github.com/Auriora/admin-assistant-sub001/internal/domain/reversible"
	"github.com/Auriora/admin-assistant-sub001/internal/domain/task"
	"github.com/Auriora/admin-assistant-sub001/internal/pipeline/modification"
	"github.com/Auriora/admin-assistant-sub001/internal/pipeline/overlap"
	"github.com/Auriora/admin-assistant-sub001/internal/pipeline/recurrence"
	"github.com/Auriora/admin-assistant-sub001/internal/pipeline/resolution"
	"github.com/Auriora/admin-assistant-sub001/internal/service/auditing"
	"github.com/Auriora/admin-assistant-sub001/internal/service/calendars"
	"github.com/Auriora/admin-assistant-sub001/internal/service/recovery"
)

// maxCategoryTasksPerRun caps how many category follow-up tasks one run may
// raise. The full issue list still lands in category_stats.
const maxCategoryTasksPerRun = 10

const cancelledMessage = "Operation cancelled mid-flight"

// Service runs the archival pipeline: fetch, normalize, resolve overlaps,
// store immutably, and record enough state to reverse the run.
type Service interface {
	Archive(ctx context.Context, req Request) (*Result, error)
}

// ServiceConfig wires the orchestrator's collaborators.
type ServiceConfig struct {
	Resolver     calendars.Service
	Readers      map[resource.Scheme]CalendarReader
	Writers      map[resource.Scheme]CalendarWriter
	Audit        auditing.Service
	Recovery     recovery.Service
	Tasks        TaskRepository
	Associations AssociationRepository
	Metrics      MetricsCollector
	Logger       *zap.Logger
}

type service struct {
	resolver calendars.Service
	readers  map[resource.Scheme]CalendarReader
	writers  map[resource.Scheme]CalendarWriter
	expander *recurrence.Expander
	merger   *modification.Merger
	engine   *resolution.Engine
	audit    auditing.Service
	recovery recovery.Service
	tasks    TaskRepository
	assocs   AssociationRepository
	metrics  MetricsCollector
	tracer   trace.Tracer
	logger   *zap.Logger
}

func NewService(cfg ServiceConfig) (Service, error) {
	switch {
	case cfg.Resolver == nil:
		return nil, errors.NewInternalError("calendar resolver is required")
	case len(cfg.Readers) == 0:
		return nil, errors.NewInternalError("at least one calendar reader is required")
	case len(cfg.Writers) == 0:
		return nil, errors.NewInternalError("at least one calendar writer is required")
	case cfg.Audit == nil:
		return nil, errors.NewInternalError("audit service is required")
	case cfg.Recovery == nil:
		return nil, errors.NewInternalError("recovery service is required")
	case cfg.Tasks == nil:
		return nil, errors.NewInternalError("task repository is required")
	case cfg.Associations == nil:
		return nil, errors.NewInternalError("association repository is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{
		resolver: cfg.Resolver,
		readers:  cfg.Readers,
		writers:  cfg.Writers,
		expander: recurrence.NewExpander(logger),
		merger:   modification.NewMerger(logger),
		engine:   resolution.NewEngine(logger),
		audit:    cfg.Audit,
		recovery: cfg.Recovery,
		tasks:    cfg.Tasks,
		assocs:   cfg.Associations,
		metrics:  cfg.Metrics,
		tracer:   otel.Tracer("archiver"),
		logger:   logger,
	}, nil
}

func (s *service) Archive(ctx context.Context, req Request) (*Result, error) {
	if req.User == nil {
		return nil, errors.NewValidationError("MISSING_USER", "archival requires a user")
	}
	if req.Config == nil {
		return nil, errors.NewValidationError("MISSING_CONFIGURATION", "archival requires a configuration")
	}
	if err := req.Config.Validate(); err != nil {
		return nil, err
	}
	if req.Start.IsZero() || req.End.IsZero() || req.End.Before(req.Start) {
		return nil, errors.NewValidationError("INVALID_DATE_RANGE",
			fmt.Sprintf("invalid archival range %s to %s", req.Start.Format("2006-01-02"), req.End.Format("2006-01-02")))
	}

	archiveType := req.Type
	if archiveType == "" {
		archiveType = TypeGeneral
		if req.Config.ArchivePurpose == archivecfg.PurposeTimesheet {
			archiveType = TypeTimesheet
		}
	}
	correlationID := req.CorrelationID
	if correlationID == "" {
		correlationID = audit.NewCorrelationID()
	}

	operation := "archive_appointments"
	actionType := audit.ActionTypeArchive
	if archiveType == TypeTimesheet {
		operation = "archive_timesheet"
		actionType = audit.ActionTypeTimesheet
	}

	result := &Result{
		Status:        StatusError,
		ArchiveType:   archiveType,
		CategoryStats: category.NewStats(),
		CorrelationID: correlationID,
	}
	started := time.Now()

	ctx, span := s.tracer.Start(ctx, "Archiver.Archive",
		trace.WithAttributes(
			attribute.String("archive.type", string(archiveType)),
			attribute.String("correlation.id", correlationID),
		))
	defer span.End()

	scope := s.beginAudit(ctx, req.User.ID, actionType, operation, correlationID, req)

	fail := func(err error) (*Result, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		result.Status = StatusError
		result.Errors = append(result.Errors, err.Error())
		s.endAudit(ctx, scope, result, err)
		s.recordMetrics(result, started)
		return result, nil
	}

	// Resolve and read the source calendar.
	srcRes, err := s.resolver.Resolve(ctx, req.User, req.Config.SourceURI)
	if err != nil {
		return fail(err)
	}
	reader, ok := s.readers[srcRes.URI.Scheme]
	if !ok {
		return fail(errors.NewCalendarServiceError(
			fmt.Sprintf("no calendar reader for scheme %q", srcRes.URI.Scheme), nil))
	}
	winStart, winEnd := dayBounds(req.Start, req.End)
	fetched, err := reader.ListForPeriod(ctx, req.User.ID, srcRes.CalendarID, winStart, winEnd)
	if err != nil {
		return fail(err)
	}
	if ctx.Err() != nil {
		span.RecordError(ctx.Err())
		return s.failCancelled(ctx, scope, result, nil, started)
	}

	// Expand recurring series into standalone instances inside the window.
	expanded := s.expander.Expand(fetched, req.Start, req.End)

	// Classify categories, flip privacy on personal entries, and raise a
	// bounded number of follow-up tasks for malformed categories.
	tasksRaised := 0
	for _, a := range expanded {
		info := category.Extract(a)
		result.CategoryStats.Observe(info)
		if category.ShouldMarkPrivate(a) {
			a.MarkPrivate()
			result.PrivacyAppliedCount++
		}
		if len(info.Issues) > 0 && tasksRaised < maxCategoryTasksPerRun {
			s.raiseCategoryTask(ctx, req.User.ID, a, info, correlationID)
			tasksRaised++
		}
	}
	result.CategoryIssueCount = len(result.CategoryStats.Issues)

	// Fold modification side-records into their originals.
	mergeOut := s.merger.Merge(expanded)
	result.ModificationCount = mergeOut.MergedCount
	if len(mergeOut.Warnings) > 0 && scope != nil {
		scope.AddDetail("modification_warnings", mergeOut.Warnings)
	}

	working := overlap.MergeDuplicates(mergeOut.Appointments)

	if archiveType == TypeTimesheet {
		var tsStats *TimesheetStats
		working, tsStats = filterTimesheet(working, req.IncludeTravel)
		result.TimesheetStats = tsStats
	}

	groups, err := overlap.DetectOverlaps(working)
	if err != nil {
		return fail(err)
	}
	result.OverlapCount = len(groups)

	archiveSet, conflictGroups := s.buildArchiveSet(archiveType, req.Config, working, groups, result)
	sort.SliceStable(archiveSet, func(i, j int) bool {
		if !archiveSet[i].StartTime.Equal(archiveSet[j].StartTime) {
			return archiveSet[i].StartTime.Before(archiveSet[j].StartTime)
		}
		return archiveSet[i].Subject < archiveSet[j].Subject
	})

	// Resolve the destination and pick the writer for its scheme.
	dstRes, err := s.resolver.Resolve(ctx, req.User, req.Config.DestinationURI)
	if err != nil {
		return fail(err)
	}
	writer, ok := s.writers[dstRes.URI.Scheme]
	if !ok {
		return fail(errors.NewCalendarServiceError(
			fmt.Sprintf("no calendar writer for scheme %q", dstRes.URI.Scheme), nil))
	}

	// Skip what the destination already holds. Writers without the
	// capability rely on write-time duplicate detection instead.
	if checker, ok := writer.(DuplicateChecker); ok && len(archiveSet) > 0 {
		kept, err := checker.CheckForDuplicates(ctx, req.User.ID, dstRes.CalendarID, archiveSet, winStart, winEnd)
		if err != nil {
			s.logger.Warn("duplicate pre-check failed, deferring to write-time detection",
				zap.String("correlation_id", correlationID), zap.Error(err))
		} else {
			for _, skipped := range diffAppointments(archiveSet, kept) {
				result.Errors = append(result.Errors,
					fmt.Sprintf("skipped duplicate %q at %s", skipped.Subject, skipped.StartTime.Format(time.RFC3339)))
			}
			archiveSet = kept
		}
	}

	op := s.openOperation(ctx, req.User.ID, archiveType, operation, correlationID, scope)
	if ctx.Err() != nil {
		span.RecordError(ctx.Err())
		return s.failCancelled(ctx, scope, result, op, started)
	}

	added, failures := s.writeAll(ctx, writer, req.User.ID, dstRes.CalendarID, archiveSet)
	result.ArchivedCount = len(added)
	if ctx.Err() != nil {
		span.RecordError(ctx.Err())
		return s.failCancelled(ctx, scope, result, op, started)
	}

	hardFailures := 0
	for _, f := range failures {
		if errors.GetCode(f.Err) == "DUPLICATE_APPOINTMENT" {
			result.Errors = append(result.Errors,
				fmt.Sprintf("skipped duplicate %q at %s", f.Appointment.Subject, f.Appointment.StartTime.Format(time.RFC3339)))
			continue
		}
		hardFailures++
		result.Errors = append(result.Errors,
			fmt.Sprintf("failed to archive %q at %s: %v", f.Appointment.Subject, f.Appointment.StartTime.Format(time.RFC3339), f.Err))
	}

	if op != nil && len(added) > 0 {
		s.captureItems(ctx, op, added, *dstRes)
		result.OperationID = &op.ID
	}

	if marker, ok := writer.(ImmutableMarker); ok && len(added) > 0 {
		ids := make([]uuid.UUID, 0, len(added))
		for _, a := range added {
			a.MarkArchived()
			ids = append(ids, a.ID)
		}
		if err := marker.MakeImmutable(ctx, req.User.ID, ids); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to mark archive immutable: %v", err))
			s.logger.Warn("failed to mark archived appointments immutable",
				zap.String("correlation_id", correlationID), zap.Error(err))
		}
	}

	s.reportConflicts(ctx, req.User.ID, conflictGroups, correlationID)

	switch {
	case hardFailures == 0:
		result.Status = StatusSuccess
	case len(added) > 0:
		result.Status = StatusPartial
	default:
		result.Status = StatusError
	}

	if op != nil {
		if result.Status == StatusError {
			if err := s.recovery.FailOperation(ctx, op); err != nil {
				s.logger.Warn("failed to close reversible operation", zap.Error(err))
			}
		} else if err := s.recovery.CompleteOperation(ctx, op); err != nil {
			s.logger.Warn("failed to close reversible operation", zap.Error(err))
		}
	}

	span.SetAttributes(
		attribute.String("archive.status", string(result.Status)),
		attribute.Int("archive.count", result.ArchivedCount),
	)

	s.endAudit(ctx, scope, result, nil)
	s.recordMetrics(result, started)
	return result, nil
}

// buildArchiveSet chooses which appointments get archived and which overlap
// groups remain for manual resolution. Timesheet runs always resolve;
// general runs resolve unless the configuration allows overlaps, in which
// case only free appointments inside overlap groups drop out and the
// remaining conflicts are archived anyway, but still reported.
func (s *service) buildArchiveSet(archiveType ArchiveType, cfg *archivecfg.Configuration,
	working []*appointment.Appointment, groups [][]*appointment.Appointment, result *Result,
) ([]*appointment.Appointment, [][]*appointment.Appointment) {
	inGroup := make(map[*appointment.Appointment]bool)
	for _, g := range groups {
		for _, a := range g {
			inGroup[a] = true
		}
	}
	var nonOverlapping []*appointment.Appointment
	for _, a := range working {
		if !inGroup[a] {
			nonOverlapping = append(nonOverlapping, a)
		}
	}

	if archiveType == TypeTimesheet || !cfg.AllowOverlaps {
		run := s.engine.ResolveAll(groups)
		result.ResolutionStats = run.Stats
		if scopeLog := run.Log; len(scopeLog) > 0 {
			s.logger.Debug("overlap resolution", zap.Strings("log", scopeLog))
		}
		return append(nonOverlapping, run.Resolved...), run.Conflicts
	}

	// Overlaps allowed: apply only the free filter inside each group.
	archiveSet := nonOverlapping
	var residual [][]*appointment.Appointment
	filtered := 0
	for _, g := range groups {
		var kept []*appointment.Appointment
		for _, a := range g {
			if a.ShowAs == appointment.ShowAsFree {
				filtered++
				continue
			}
			kept = append(kept, a)
		}
		archiveSet = append(archiveSet, kept...)
		if len(kept) > 1 {
			residual = append(residual, kept)
		}
	}
	result.ResolutionStats = resolution.Stats{
		TotalOverlaps:        len(groups),
		RemainingConflicts:   len(residual),
		FilteredAppointments: filtered,
	}
	return archiveSet, residual
}

// writeAll stores the archive set, preferring the writer's batch capability.
func (s *service) writeAll(ctx context.Context, writer CalendarWriter, userID uuid.UUID, calendarID string,
	appts []*appointment.Appointment,
) ([]*appointment.Appointment, []BulkWriteFailure) {
	if len(appts) == 0 {
		return nil, nil
	}
	if bulk, ok := writer.(BulkCalendarWriter); ok {
		res, err := bulk.AddBulk(ctx, userID, calendarID, appts)
		if err == nil {
			return res.Added, res.Failed
		}
		s.logger.Warn("bulk add failed, falling back to per-item adds", zap.Error(err))
	}

	var added []*appointment.Appointment
	var failures []BulkWriteFailure
	for _, a := range appts {
		if ctx.Err() != nil {
			failures = append(failures, BulkWriteFailure{Appointment: a,
				Err: errors.NewCancelledError(cancelledMessage)})
			continue
		}
		stored, err := writer.Add(ctx, userID, calendarID, a)
		if err != nil {
			failures = append(failures, BulkWriteFailure{Appointment: a, Err: err})
			continue
		}
		added = append(added, stored)
	}
	return added, failures
}

// openOperation starts the reversible wrapper. Recovery failures never block
// the run; they only cost reversibility.
func (s *service) openOperation(ctx context.Context, userID uuid.UUID, archiveType ArchiveType,
	operation, correlationID string, scope *auditing.Context,
) *reversible.Operation {
	var auditID *uuid.UUID
	if scope != nil {
		id := scope.EntryUUID()
		auditID = &id
	}
	op, err := s.recovery.StartOperation(ctx, userID, string(archiveType), operation, correlationID, auditID)
	if err != nil {
		s.logger.Warn("failed to open reversible operation, run will not be reversible",
			zap.String("correlation_id", correlationID), zap.Error(err))
		return nil
	}
	return op
}

func (s *service) captureItems(ctx context.Context, op *reversible.Operation, added []*appointment.Appointment,
	dst calendars.Resolution,
) {
	items := make([]*reversible.Item, 0, len(added))
	for _, a := range added {
		item, err := reversible.NewItem(op.ID, "appointment", reversible.ActionDelete)
		if err != nil {
			s.logger.Warn("failed to build reversible item", zap.Error(err))
			continue
		}
		item.WithItemID(a.ID.String()).
			WithExternalID(a.ExternalID).
			WithBeforeState(a.StateSnapshot()).
			WithReverseData(map[string]interface{}{
				"scheme":      string(dst.URI.Scheme),
				"calendar_id": dst.CalendarID,
			})
		items = append(items, item)
	}
	if err := s.recovery.CaptureItems(ctx, op, items...); err != nil {
		s.logger.Warn("failed to capture reversible items",
			zap.String("operation_id", op.ID.String()), zap.Error(err))
	}
}

// diffAppointments returns the members of all missing from kept, comparing
// by pointer since kept is a subset of all.
func diffAppointments(all, kept []*appointment.Appointment) []*appointment.Appointment {
	keptSet := make(map[*appointment.Appointment]struct{}, len(kept))
	for _, a := range kept {
		keptSet[a] = struct{}{}
	}
	var missing []*appointment.Appointment
	for _, a := range all {
		if _, ok := keptSet[a]; !ok {
			missing = append(missing, a)
		}
	}
	return missing
}

// raiseCategoryTask records one malformed-category follow-up. Task storage
// failures are logged, never fatal.
func (s *service) raiseCategoryTask(ctx context.Context, userID uuid.UUID, a *appointment.Appointment,
	info category.Info, correlationID string,
) {
	lg, err := task.NewActionLog(userID, task.EventTypeCategoryValidation,
		fmt.Sprintf("Appointment %q has category issues", a.Subject))
	if err != nil {
		s.logger.Warn("failed to build category task", zap.Error(err))
		return
	}
	lg.AddDetail("appointment_subject", a.Subject)
	lg.AddDetail("appointment_start", a.StartTime.Format(time.RFC3339))
	lg.AddDetail("issues", info.Issues)
	lg.AddDetail("correlation_id", correlationID)
	if err := lg.RequireUserAction(); err != nil {
		s.logger.Warn("failed to mark category task actionable", zap.Error(err))
		return
	}
	if err := s.tasks.Create(ctx, lg); err != nil {
		s.logger.Warn("failed to store category task",
			zap.String("subject", a.Subject), zap.Error(err))
	}
}

// reportConflicts raises one task per conflicting appointment and links the
// group members pairwise so the review surface can show each group whole.
func (s *service) reportConflicts(ctx context.Context, userID uuid.UUID,
	groups [][]*appointment.Appointment, correlationID string,
) {
	for _, group := range groups {
		for _, a := range group {
			lg, err := task.NewActionLog(userID, task.EventTypeOverlap,
				fmt.Sprintf("Appointment %q overlaps %d other(s) and needs manual resolution", a.Subject, len(group)-1))
			if err != nil {
				s.logger.Warn("failed to build overlap task", zap.Error(err))
				continue
			}
			lg.AddDetail("appointment_id", a.ID.String())
			lg.AddDetail("appointment_subject", a.Subject)
			lg.AddDetail("group_subjects", subjectsOf(group))
			lg.AddDetail("correlation_id", correlationID)
			if err := lg.RequireUserAction(); err != nil {
				s.logger.Warn("failed to mark overlap task actionable", zap.Error(err))
				continue
			}
			if err := s.tasks.Create(ctx, lg); err != nil {
				s.logger.Warn("failed to store overlap task", zap.Error(err))
			}
		}
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				assoc, err := association.New(
					association.KindAppointment, group[i].ID.String(),
					association.KindAppointment, group[j].ID.String(),
					association.TypeOverlap)
				if err != nil {
					s.logger.Warn("failed to build overlap association", zap.Error(err))
					continue
				}
				assoc.AddDetail("correlation_id", correlationID)
				if err := s.assocs.Create(ctx, assoc); err != nil {
					if errors.IsType(err, errors.ErrorTypeConflict) {
						continue
					}
					s.logger.Warn("failed to store overlap association", zap.Error(err))
				}
			}
		}
	}
}

func (s *service) beginAudit(ctx context.Context, userID uuid.UUID, actionType audit.ActionType,
	operation, correlationID string, req Request,
) *auditing.Context {
	scope, err := s.audit.Begin(ctx, userID, actionType, operation, correlationID)
	if err != nil {
		s.logger.Warn("failed to open audit scope, run continues unaudited",
			zap.String("correlation_id", correlationID), zap.Error(err))
		return nil
	}
	scope.SetResource("ArchiveConfiguration", req.Config.ID.String())
	scope.SetRequestData(map[string]interface{}{
		"config_name":    req.Config.Name,
		"source_uri":     req.Config.SourceURI,
		"destination":    req.Config.DestinationURI,
		"start_date":     req.Start.Format("2006-01-02"),
		"end_date":       req.End.Format("2006-01-02"),
		"archive_type":   string(req.Type),
		"include_travel": req.IncludeTravel,
	})
	return scope
}

func (s *service) endAudit(ctx context.Context, scope *auditing.Context, result *Result, runErr error) {
	if scope == nil {
		return
	}
	scope.SetResponseData(result.auditData())
	if runErr != nil {
		scope.End(ctx, runErr)
		return
	}
	switch result.Status {
	case StatusSuccess:
		scope.EndWithStatus(ctx, audit.StatusSuccess,
			fmt.Sprintf("archived %d appointment(s)", result.ArchivedCount), nil)
	case StatusPartial:
		scope.EndWithStatus(ctx, audit.StatusPartial,
			fmt.Sprintf("archived %d appointment(s) with %d error(s)", result.ArchivedCount, len(result.Errors)), nil)
	default:
		scope.EndWithStatus(ctx, audit.StatusFailure, "archival failed", nil)
	}
}

func (s *service) failCancelled(ctx context.Context, scope *auditing.Context, result *Result,
	op *reversible.Operation, started time.Time,
) (*Result, error) {
	background := context.WithoutCancel(ctx)
	cerr := errors.NewCancelledError(cancelledMessage)
	result.Status = StatusError
	result.Errors = append(result.Errors, cancelledMessage)
	if op != nil {
		if err := s.recovery.CancelOperation(background, op); err != nil {
			s.logger.Warn("failed to mark cancelled operation", zap.Error(err))
		}
	}
	s.endAudit(background, scope, result, cerr)
	s.recordMetrics(result, started)
	return result, nil
}

func (s *service) recordMetrics(result *Result, started time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordRun(string(result.ArchiveType), string(result.Status), result.ArchivedCount, time.Since(started))
	s.metrics.RecordOverlaps(result.OverlapCount, result.ResolutionStats.AutoResolved, result.ResolutionStats.RemainingConflicts)
	s.metrics.RecordCategoryIssues(result.CategoryIssueCount)
}

// auditData renders the result through its JSON shape so audit storage sees
// the same field names the CLI prints.
func (r *Result) auditData() map[string]interface{} {
	raw, err := json.Marshal(r)
	if err != nil {
		return map[string]interface{}{"status": string(r.Status)}
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]interface{}{"status": string(r.Status)}
	}
	return m
}

// dayBounds widens inclusive dates to the UTC half-open instant window.
func dayBounds(start, end time.Time) (time.Time, time.Time) {
	s := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	e := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	return s, e
}

func subjectsOf(appts []*appointment.Appointment) []string {
	out := make([]string, 0, len(appts))
	for _, a := range appts {
		out = append(out, a.Subject)
	}
	return out
}
