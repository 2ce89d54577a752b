// Package issues implements issue CRUD, the dashboard and stats history on
// top of the repositories, applying policy decisions and publishing events.
package issues

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"strings"

	"go.uber.org/zap"

	"issueInsightsTracker/internal/apperr"
	"issueInsightsTracker/internal/policy"
	"issueInsightsTracker/internal/storage"
	"issueInsightsTracker/internal/ws"
	"issueInsightsTracker/models"
	"issueInsightsTracker/repository"
)

// Notifier receives issue events. *ws.Hub satisfies it.
type Notifier interface {
	BroadcastIssueEvent(eventType string, data any) error
}

// Service is safe for concurrent use.
type Service struct {
	issues repository.IssueRepositoryI
	stats  repository.DailyStatsRepositoryI
	store  storage.Store
	notify Notifier
	log    *zap.Logger
}

func NewService(issues repository.IssueRepositoryI, stats repository.DailyStatsRepositoryI, store storage.Store, notify Notifier, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{issues: issues, stats: stats, store: store, notify: notify, log: log}
}

// CreateInput is a new issue. File is optional; FileName supplies its extension.
type CreateInput struct {
	Title       string
	Description *string
	Severity    models.IssueSeverity
	Tags        *string
	FileName    string
	File        io.Reader
}

var errNotFound = apperr.NotFound("Issue not found")

func (s *Service) Create(ctx context.Context, caller *models.User, in CreateInput) (*models.Issue, error) {
	if d := policy.Evaluate(caller.Role, true, policy.ActionCreate); !d.Allowed {
		return nil, apperr.Forbidden(d.Reason)
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperr.Validation("title is required")
	}
	if in.Severity == "" {
		in.Severity = models.IssueSeverityMedium
	}
	if !in.Severity.Valid() {
		return nil, apperr.Validationf("invalid severity %q", in.Severity)
	}

	issue := &models.Issue{
		Title:       title,
		Description: in.Description,
		Status:      models.IssueStatusOpen,
		Severity:    in.Severity,
		Tags:        in.Tags,
		OwnerID:     caller.ID,
	}
	if in.File != nil && s.store != nil {
		path, err := s.store.Save(ctx, in.FileName, in.File)
		if err != nil {
			return nil, err
		}
		issue.FilePath = &path
	}

	created, err := s.issues.Create(ctx, issue)
	if err != nil {
		if issue.FilePath != nil {
			s.removeAttachment(ctx, *issue.FilePath)
		}
		return nil, err
	}
	s.publish(ws.EventIssueCreated, created)
	return created, nil
}

// List returns the issues visible to caller, optionally filtered.
func (s *Service) List(ctx context.Context, caller *models.User, status *models.IssueStatus, severity *models.IssueSeverity) ([]models.Issue, error) {
	if status != nil && !status.Valid() {
		return nil, apperr.Validationf("invalid status %q", *status)
	}
	if severity != nil && !severity.Valid() {
		return nil, apperr.Validationf("invalid severity %q", *severity)
	}
	f := scopeFilter(caller)
	f.Status = status
	f.Severity = severity
	return s.issues.List(ctx, f)
}

func (s *Service) Get(ctx context.Context, caller *models.User, id int64) (*models.Issue, error) {
	issue, err := s.issues.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if issue == nil {
		return nil, errNotFound
	}
	if d := policy.Evaluate(caller.Role, issue.OwnerID == caller.ID, policy.ActionRead); !d.Allowed {
		return nil, apperr.Forbidden(d.Reason)
	}
	return issue, nil
}

// Update applies the present fields of p. An empty patch returns the issue unchanged.
func (s *Service) Update(ctx context.Context, caller *models.User, id int64, p repository.IssuePatch) (*models.Issue, error) {
	if err := validatePatch(p); err != nil {
		return nil, err
	}
	issue, err := s.issues.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if issue == nil {
		return nil, errNotFound
	}
	owns := issue.OwnerID == caller.ID
	if d := policy.Evaluate(caller.Role, owns, policy.ActionUpdate); !d.Allowed {
		return nil, apperr.Forbidden(d.Reason)
	}
	if p.Status != nil {
		if d := policy.Evaluate(caller.Role, owns, policy.ActionChangeStatus); !d.Allowed {
			return nil, apperr.Forbidden(d.Reason)
		}
	}
	if p.Empty() {
		return issue, nil
	}

	updated, err := s.issues.Update(ctx, id, p)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errNotFound
	}
	if err != nil {
		return nil, err
	}
	s.publish(ws.EventIssueUpdated, updated)
	return updated, nil
}

// Delete is admin-only; the role is checked before the issue is looked up.
// Attachment removal failures are logged and do not fail the delete.
func (s *Service) Delete(ctx context.Context, caller *models.User, id int64) error {
	if d := policy.Evaluate(caller.Role, false, policy.ActionDelete); !d.Allowed {
		return apperr.Forbidden(d.Reason)
	}
	issue, err := s.issues.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if issue == nil {
		return errNotFound
	}
	if issue.FilePath != nil && *issue.FilePath != "" {
		s.removeAttachment(ctx, *issue.FilePath)
	}
	if err := s.issues.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errNotFound
		}
		return err
	}
	s.publish(ws.EventIssueDeleted, map[string]int64{"id": id})
	return nil
}

// History returns the most recent daily snapshots, newest first.
func (s *Service) History(ctx context.Context, caller *models.User, limit int) ([]models.DailyStats, error) {
	if d := policy.Evaluate(caller.Role, false, policy.ActionViewHistory); !d.Allowed {
		return nil, apperr.Forbidden(d.Reason)
	}
	if limit <= 0 || limit > 365 {
		limit = 30
	}
	return s.stats.ListRecent(ctx, limit)
}

func (s *Service) removeAttachment(ctx context.Context, path string) {
	if s.store == nil {
		return
	}
	if err := s.store.Remove(ctx, path); err != nil {
		s.log.Warn("remove attachment", zap.String("path", path), zap.Error(err))
	}
}

func (s *Service) publish(eventType string, data any) {
	if s.notify == nil {
		return
	}
	if err := s.notify.BroadcastIssueEvent(eventType, data); err != nil {
		s.log.Warn("publish issue event", zap.String("type", eventType), zap.Error(err))
	}
}

func scopeFilter(caller *models.User) repository.IssueFilter {
	if policy.ListScope(caller.Role) == policy.ScopeOwn {
		id := caller.ID
		return repository.IssueFilter{OwnerID: &id}
	}
	return repository.IssueFilter{}
}

func validatePatch(p repository.IssuePatch) error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return apperr.Validation("title must not be empty")
	}
	if p.Status != nil && !p.Status.Valid() {
		return apperr.Validationf("invalid status %q", *p.Status)
	}
	if p.Severity != nil && !p.Severity.Valid() {
		return apperr.Validationf("invalid severity %q", *p.Severity)
	}
	return nil
}
