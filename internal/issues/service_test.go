package issues

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"issueInsightsTracker/internal/apperr"
	"issueInsightsTracker/internal/storage"
	"issueInsightsTracker/internal/testutil"
	"issueInsightsTracker/internal/ws"
	"issueInsightsTracker/models"
	"issueInsightsTracker/repository"
)

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) BroadcastIssueEvent(eventType string, _ any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, eventType)
	return nil
}

type fixture struct {
	svc        *Service
	events     *recorder
	stats      *repository.DailyStatsRepository
	uploadDir  string
	admin      *models.User
	maintainer *models.User
	reporter   *models.User
	other      *models.User
}

func setup(t *testing.T) *fixture {
	t.Helper()
	d := testutil.OpenInMemoryDB(t, t.Name())
	users := repository.NewUserRepository(d)
	mk := func(email string, role models.Role) *models.User {
		u, err := users.Create(context.Background(), &models.User{Email: email, HashedPassword: "x", Role: role})
		require.NoError(t, err)
		return u
	}
	dir := t.TempDir()
	store, err := storage.NewLocal(dir)
	require.NoError(t, err)
	rec := &recorder{}
	stats := repository.NewDailyStatsRepository(d)
	return &fixture{
		svc:        NewService(repository.NewIssueRepository(d), stats, store, rec, nil),
		events:     rec,
		stats:      stats,
		uploadDir:  dir,
		admin:      mk("admin@example.com", models.RoleAdmin),
		maintainer: mk("maint@example.com", models.RoleMaintainer),
		reporter:   mk("rep@example.com", models.RoleReporter),
		other:      mk("other@example.com", models.RoleReporter),
	}
}

func (f *fixture) create(t *testing.T, owner *models.User, title string) *models.Issue {
	t.Helper()
	i, err := f.svc.Create(context.Background(), owner, CreateInput{Title: title})
	require.NoError(t, err)
	return i
}

func statusPtr(s models.IssueStatus) *models.IssueStatus { return &s }
func strPtr(s string) *string                            { return &s }

func TestCreate_DefaultsAndAttachment(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	i, err := f.svc.Create(ctx, f.reporter, CreateInput{
		Title:    "  crash on save ",
		Tags:     strPtr("ui,save"),
		FileName: "trace.log",
		File:     strings.NewReader("stack"),
	})
	require.NoError(t, err)
	assert.Equal(t, "crash on save", i.Title)
	assert.Equal(t, models.IssueStatusOpen, i.Status)
	assert.Equal(t, models.IssueSeverityMedium, i.Severity)
	assert.Equal(t, f.reporter.ID, i.OwnerID)
	require.NotNil(t, i.Owner)
	assert.Equal(t, f.reporter.Email, i.Owner.Email)
	require.NotNil(t, i.FilePath)
	assert.True(t, strings.HasSuffix(*i.FilePath, ".log"))
	_, err = os.Stat(*i.FilePath)
	assert.NoError(t, err)
	assert.Equal(t, []string{ws.EventIssueCreated}, f.events.events)

	_, err = f.svc.Create(ctx, f.reporter, CreateInput{Title: " "})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	_, err = f.svc.Create(ctx, f.reporter, CreateInput{Title: "x", Severity: "urgent"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestList_ScopeByRole(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.create(t, f.reporter, "mine")
	f.create(t, f.other, "theirs")

	own, err := f.svc.List(ctx, f.reporter, nil, nil)
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, "mine", own[0].Title)

	for _, u := range []*models.User{f.admin, f.maintainer} {
		all, err := f.svc.List(ctx, u, nil, nil)
		require.NoError(t, err)
		assert.Len(t, all, 2, u.Role)
	}

	done := models.IssueStatusDone
	none, err := f.svc.List(ctx, f.admin, &done, nil)
	require.NoError(t, err)
	assert.Empty(t, none)

	bad := models.IssueStatus("closed")
	_, err = f.svc.List(ctx, f.admin, &bad, nil)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestGet_OwnershipAndMissing(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	i := f.create(t, f.other, "theirs")

	_, err := f.svc.Get(ctx, f.reporter, i.ID)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	got, err := f.svc.Get(ctx, f.maintainer, i.ID)
	require.NoError(t, err)
	assert.Equal(t, i.ID, got.ID)

	_, err = f.svc.Get(ctx, f.admin, i.ID+1000)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestUpdate_ReporterCannotChangeStatus(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	i := f.create(t, f.reporter, "mine")

	_, err := f.svc.Update(ctx, f.reporter, i.ID, repository.IssuePatch{Status: statusPtr(models.IssueStatusDone)})
	require.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	assert.Equal(t, "Reporters cannot change issue status", apperr.DetailOf(err, ""))

	unchanged, err := f.svc.Get(ctx, f.admin, i.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IssueStatusOpen, unchanged.Status)

	up, err := f.svc.Update(ctx, f.reporter, i.ID, repository.IssuePatch{Title: strPtr("renamed")})
	require.NoError(t, err)
	assert.Equal(t, "renamed", up.Title)

	theirs := f.create(t, f.other, "theirs")
	_, err = f.svc.Update(ctx, f.reporter, theirs.ID, repository.IssuePatch{Title: strPtr("hijack")})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
}

func TestUpdate_MaintainerChangesStatus(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	i := f.create(t, f.reporter, "mine")

	up, err := f.svc.Update(ctx, f.maintainer, i.ID, repository.IssuePatch{Status: statusPtr(models.IssueStatusInProgress)})
	require.NoError(t, err)
	assert.Equal(t, models.IssueStatusInProgress, up.Status)
	assert.Equal(t, "mine", up.Title)
	assert.Contains(t, f.events.events, ws.EventIssueUpdated)

	_, err = f.svc.Update(ctx, f.maintainer, i.ID+1000, repository.IssuePatch{Title: strPtr("x")})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = f.svc.Update(ctx, f.maintainer, i.ID, repository.IssuePatch{Status: statusPtr("closed")})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestDelete_AdminOnly(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	i, err := f.svc.Create(ctx, f.reporter, CreateInput{Title: "mine", FileName: "a.txt", File: strings.NewReader("a")})
	require.NoError(t, err)

	for _, u := range []*models.User{f.reporter, f.maintainer} {
		err := f.svc.Delete(ctx, u, i.ID)
		assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err), u.Role)
	}
	// the role check comes before the lookup
	err = f.svc.Delete(ctx, f.reporter, i.ID+1000)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	require.NoError(t, f.svc.Delete(ctx, f.admin, i.ID))
	_, statErr := os.Stat(*i.FilePath)
	assert.True(t, os.IsNotExist(statErr), "attachment should be removed")
	assert.Contains(t, f.events.events, ws.EventIssueDeleted)

	_, err = f.svc.Get(ctx, f.admin, i.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	err = f.svc.Delete(ctx, f.admin, i.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestDelete_MissingAttachmentDoesNotFail(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	i, err := f.svc.Create(ctx, f.reporter, CreateInput{Title: "x", FileName: "a.txt", File: strings.NewReader("a")})
	require.NoError(t, err)
	require.NoError(t, os.Remove(*i.FilePath))

	assert.NoError(t, f.svc.Delete(ctx, f.admin, i.ID))
}

func TestDashboard(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	seed := []struct {
		owner    *models.User
		severity models.IssueSeverity
		status   models.IssueStatus
	}{
		{f.reporter, models.IssueSeverityHigh, models.IssueStatusOpen},
		{f.reporter, models.IssueSeverityLow, models.IssueStatusDone},
		{f.other, models.IssueSeverityCritical, models.IssueStatusTriaged},
	}
	for _, s := range seed {
		i, err := f.svc.Create(ctx, s.owner, CreateInput{Title: "t", Severity: s.severity})
		require.NoError(t, err)
		if s.status != models.IssueStatusOpen {
			_, err = f.svc.Update(ctx, f.admin, i.ID, repository.IssuePatch{Status: statusPtr(s.status)})
			require.NoError(t, err)
		}
	}

	all, err := f.svc.Dashboard(ctx, f.admin)
	require.NoError(t, err)
	assert.Equal(t, 3, all.TotalIssues)
	assert.Equal(t, 1, all.OpenIssues)
	assert.Equal(t, map[models.IssueSeverity]int{"low": 1, "medium": 0, "high": 1, "critical": 1}, all.SeverityBreakdown)
	assert.Equal(t, map[models.IssueStatus]int{"open": 1, "triaged": 1, "in_progress": 0, "done": 1}, all.StatusBreakdown)

	mine, err := f.svc.Dashboard(ctx, f.reporter)
	require.NoError(t, err)
	assert.Equal(t, 2, mine.TotalIssues)
	assert.Equal(t, 0, mine.StatusBreakdown[models.IssueStatusTriaged])
}

func TestSummarize_Empty(t *testing.T) {
	st := Summarize(nil)
	assert.Zero(t, st.TotalIssues)
	assert.Len(t, st.SeverityBreakdown, 4)
	assert.Len(t, st.StatusBreakdown, 4)
}

func TestHistory(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	require.NoError(t, f.stats.Upsert(ctx, &models.DailyStats{Date: "2024-01-01", OpenCount: 3}))

	_, err := f.svc.History(ctx, f.reporter, 10)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	h, err := f.svc.History(ctx, f.maintainer, 0)
	require.NoError(t, err)
	require.Len(t, h, 1)
	assert.Equal(t, int64(3), h[0].OpenCount)
}
