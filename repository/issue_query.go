package repository

import (
	"context"
	"database/sql"
	"time"

	pkgerrors "github.com/pkg/errors"

	"issueInsightsTracker/models"
)

// IssueFilter narrows List. Nil fields are not applied.
type IssueFilter struct {
	OwnerID  *int64
	Status   *models.IssueStatus
	Severity *models.IssueSeverity
}

// IssuePatch carries a partial update. Only non-nil fields are written.
type IssuePatch struct {
	Title       *string
	Description *string
	Status      *models.IssueStatus
	Severity    *models.IssueSeverity
	Tags        *string
}

// Empty reports whether the patch changes nothing.
func (p IssuePatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil && p.Severity == nil && p.Tags == nil
}

func (p IssuePatch) columns() map[string]any {
	cols := map[string]any{}
	if p.Title != nil {
		cols["title"] = *p.Title
	}
	if p.Description != nil {
		cols["description"] = *p.Description
	}
	if p.Status != nil {
		cols["status"] = *p.Status
	}
	if p.Severity != nil {
		cols["severity"] = *p.Severity
	}
	if p.Tags != nil {
		cols["tags"] = *p.Tags
	}
	return cols
}

// List returns issues matching the filter ordered by id, owners loaded.
func (r *IssueRepository) List(ctx context.Context, f IssueFilter) ([]models.Issue, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	q := r.db.WithContext(ctx).Preload("Owner").Model(&models.Issue{})
	if f.OwnerID != nil {
		q = q.Where("owner_id = ?", *f.OwnerID)
	}
	if f.Status != nil {
		q = q.Where("status = ?", *f.Status)
	}
	if f.Severity != nil {
		q = q.Where("severity = ?", *f.Severity)
	}
	out := []models.Issue{}
	if err := q.Order("id").Find(&out).Error; err != nil {
		return nil, pkgerrors.Wrap(err, "list issues")
	}
	return out, nil
}

// Update applies the patch and refreshes updated_at, then returns the stored row.
// Returns sql.ErrNoRows if the issue does not exist.
func (r *IssueRepository) Update(ctx context.Context, id int64, p IssuePatch) (*models.Issue, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	cols := p.columns()
	cols["updated_at"] = r.db.NowFunc()
	res := r.db.WithContext(ctx).Model(&models.Issue{}).Where("id = ?", id).Updates(cols)
	if res.Error != nil {
		return nil, pkgerrors.Wrapf(res.Error, "update issue %d", id)
	}
	if res.RowsAffected == 0 {
		return nil, sql.ErrNoRows
	}
	i, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if i == nil {
		return nil, sql.ErrNoRows
	}
	return i, nil
}

// CountByStatus counts every issue in the table grouped by status. Statuses
// without rows are present with a zero count.
func (r *IssueRepository) CountByStatus(ctx context.Context) (map[models.IssueStatus]int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var rows []struct {
		Status models.IssueStatus
		N      int64
	}
	err := r.db.WithContext(ctx).Model(&models.Issue{}).
		Select("status, COUNT(*) AS n").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(err, "count issues by status")
	}
	out := make(map[models.IssueStatus]int64, len(models.IssueStatuses))
	for _, s := range models.IssueStatuses {
		out[s] = 0
	}
	for _, row := range rows {
		out[row.Status] = row.N
	}
	return out, nil
}
