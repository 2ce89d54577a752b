package issues

import (
	"context"

	"issueInsightsTracker/models"
)

// DashboardStats summarizes the issues visible to one caller.
type DashboardStats struct {
	TotalIssues       int                          `json:"total_issues"`
	OpenIssues        int                          `json:"open_issues"`
	SeverityBreakdown map[models.IssueSeverity]int `json:"severity_breakdown"`
	StatusBreakdown   map[models.IssueStatus]int   `json:"status_breakdown"`
}

// Summarize counts issues by status and severity. Every known status and
// severity is present in the result, with zero when absent.
func Summarize(issues []models.Issue) DashboardStats {
	st := DashboardStats{
		SeverityBreakdown: make(map[models.IssueSeverity]int, len(models.IssueSeverities)),
		StatusBreakdown:   make(map[models.IssueStatus]int, len(models.IssueStatuses)),
	}
	for _, sev := range models.IssueSeverities {
		st.SeverityBreakdown[sev] = 0
	}
	for _, s := range models.IssueStatuses {
		st.StatusBreakdown[s] = 0
	}
	for _, i := range issues {
		st.TotalIssues++
		st.SeverityBreakdown[i.Severity]++
		st.StatusBreakdown[i.Status]++
	}
	st.OpenIssues = st.StatusBreakdown[models.IssueStatusOpen]
	return st
}

// Dashboard summarizes the caller's visible set, the same set List returns.
func (s *Service) Dashboard(ctx context.Context, caller *models.User) (*DashboardStats, error) {
	list, err := s.issues.List(ctx, scopeFilter(caller))
	if err != nil {
		return nil, err
	}
	st := Summarize(list)
	return &st, nil
}
