package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"

	"issueInsightsTracker/models"
)

// IssueRepository is the core repository for Issue entities.
type IssueRepository struct {
	db *gorm.DB
}

// NewIssueRepository creates a new IssueRepository.
func NewIssueRepository(db *gorm.DB) *IssueRepository {
	return &IssueRepository{db: db}
}

// Create inserts a new issue. Status defaults to 'open' and severity to 'medium' if empty.
// The returned issue has its Owner loaded.
func (r *IssueRepository) Create(ctx context.Context, i *models.Issue) (*models.Issue, error) {
	if i == nil {
		return nil, errors.New("issue is nil")
	}
	if i.Status == "" {
		i.Status = models.IssueStatusOpen
	}
	if i.Severity == "" {
		i.Severity = models.IssueSeverityMedium
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := r.db.WithContext(ctx).Omit("Owner").Create(i).Error; err != nil {
		return nil, pkgerrors.Wrap(err, "insert issue")
	}
	created, err := r.GetByID(ctx, i.ID)
	if err != nil {
		return nil, err
	}
	if created == nil {
		return nil, fmt.Errorf("created issue not found: id=%d", i.ID)
	}
	return created, nil
}

// GetByID fetches an issue and its owner.
func (r *IssueRepository) GetByID(ctx context.Context, id int64) (*models.Issue, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var i models.Issue
	err := r.db.WithContext(ctx).Preload("Owner").Take(&i, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrapf(err, "get issue %d", id)
	}
	return &i, nil
}

// Delete removes an issue by ID. Returns sql.ErrNoRows when nothing was deleted.
func (r *IssueRepository) Delete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res := r.db.WithContext(ctx).Delete(&models.Issue{}, id)
	if res.Error != nil {
		return pkgerrors.Wrapf(res.Error, "delete issue %d", id)
	}
	if res.RowsAffected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
