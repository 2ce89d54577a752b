package jobs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"issueInsightsTracker/internal/storage"
	"issueInsightsTracker/internal/testutil"
	"issueInsightsTracker/models"
	"issueInsightsTracker/repository"
)

func TestWithRetry_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	job := WithRetry("t", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, time.Millisecond, Attempts, nil)

	require.NoError(t, job(context.Background()))
	assert.Equal(t, 3, calls)
}

func TestWithRetry_StopsAfterAttempts(t *testing.T) {
	calls := 0
	job := WithRetry("t", func(context.Context) error {
		calls++
		return errors.New("down")
	}, time.Millisecond, Attempts, nil)

	assert.EqualError(t, job(context.Background()), "down")
	assert.Equal(t, Attempts, calls)
}

func TestStatsJob_RunTwiceSameDayKeepsOneRow(t *testing.T) {
	d := testutil.OpenInMemoryDB(t, "jobsstats")
	ctx := context.Background()
	users := repository.NewUserRepository(d)
	issues := repository.NewIssueRepository(d)
	stats := repository.NewDailyStatsRepository(d)

	u, err := users.Create(ctx, &models.User{Email: "s@example.com", HashedPassword: "x"})
	require.NoError(t, err)
	for _, s := range []models.IssueStatus{models.IssueStatusOpen, models.IssueStatusOpen, models.IssueStatusInProgress} {
		_, err := issues.Create(ctx, &models.Issue{Title: "x", Status: s, OwnerID: u.ID})
		require.NoError(t, err)
	}

	day := time.Date(2024, 5, 17, 9, 0, 0, 0, time.UTC)
	job := &StatsJob{Issues: issues, Stats: stats, Now: func() time.Time { return day }}

	first, err := job.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2024-05-17", first.Date)
	assert.Equal(t, int64(2), first.OpenCount)

	_, err = issues.Create(ctx, &models.Issue{Title: "y", Status: models.IssueStatusDone, OwnerID: u.ID})
	require.NoError(t, err)
	day = day.Add(3 * time.Hour)
	_, err = job.Run(ctx)
	require.NoError(t, err)

	n, err := stats.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	row, err := stats.GetByDate(ctx, "2024-05-17")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, int64(2), row.OpenCount)
	assert.Equal(t, int64(0), row.TriagedCount)
	assert.Equal(t, int64(1), row.InProgressCount)
	assert.Equal(t, int64(1), row.DoneCount)
}

func TestCleanupJob_DeletesOnlyOldFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewLocal(dir)
	require.NoError(t, err)
	now := time.Now()

	write := func(name string, age time.Duration) {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(name), 0o644))
		ts := now.Add(-age)
		require.NoError(t, os.Chtimes(p, ts, ts))
	}
	write("ancient.png", 45*24*time.Hour)
	write("old.txt", 31*24*time.Hour)
	write("recent.txt", 29*24*time.Hour)
	write("new.txt", time.Minute)

	job := &CleanupJob{Store: store, Now: func() time.Time { return now }}
	deleted, err := job.Run(context.Background())
	require.NoError(t, err)
	sort.Strings(deleted)
	assert.Equal(t, []string{"ancient.png", "old.txt"}, deleted)

	left, err := store.List(context.Background())
	require.NoError(t, err)
	names := []string{}
	for _, o := range left {
		names = append(names, o.Name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{"new.txt", "recent.txt"}, names)
}

type failingRemove struct {
	storage.Store
	fail string
}

func (f failingRemove) Remove(ctx context.Context, ref string) error {
	if ref == f.fail {
		return errors.New("permission denied")
	}
	return f.Store.Remove(ctx, ref)
}

func TestCleanupJob_SkipsFilesThatFailToDelete(t *testing.T) {
	dir := t.TempDir()
	local, err := storage.NewLocal(dir)
	require.NoError(t, err)
	old := time.Now().Add(-40 * 24 * time.Hour)
	for _, n := range []string{"a.txt", "b.txt"} {
		p := filepath.Join(dir, n)
		require.NoError(t, os.WriteFile(p, nil, 0o644))
		require.NoError(t, os.Chtimes(p, old, old))
	}

	job := &CleanupJob{Store: failingRemove{Store: local, fail: "a.txt"}}
	deleted, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"b.txt"}, deleted)
}

func TestCleanupJob_MissingDirectory(t *testing.T) {
	local := &storage.Local{Dir: filepath.Join(t.TempDir(), "gone")}
	deleted, err := (&CleanupJob{Store: local}).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, deleted)
}
