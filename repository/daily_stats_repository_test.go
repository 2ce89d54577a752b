package repository

import (
	"context"
	"testing"

	"issueInsightsTracker/internal/testutil"
	"issueInsightsTracker/models"
)

func TestDailyStatsRepository_UpsertIsIdempotentPerDate(t *testing.T) {
	d := testutil.OpenInMemoryDB(t, "statsrepo")
	repo := NewDailyStatsRepository(d)
	ctx := context.Background()

	if err := repo.Upsert(ctx, &models.DailyStats{Date: "2024-03-01", OpenCount: 1}); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if err := repo.Upsert(ctx, &models.DailyStats{Date: "2024-03-01", OpenCount: 4, DoneCount: 2}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	n, err := repo.Count(ctx)
	if err != nil || n != 1 {
		t.Fatalf("count = %d err=%v, want 1", n, err)
	}
	got, err := repo.GetByDate(ctx, "2024-03-01")
	if err != nil || got == nil {
		t.Fatalf("get: %v %+v", err, got)
	}
	if got.OpenCount != 4 || got.DoneCount != 2 {
		t.Fatalf("counts not overwritten: %+v", got)
	}

	if err := repo.Upsert(ctx, &models.DailyStats{Date: "2024-03-02"}); err != nil {
		t.Fatalf("upsert next day: %v", err)
	}
	recent, err := repo.ListRecent(ctx, 10)
	if err != nil || len(recent) != 2 || recent[0].Date != "2024-03-02" {
		t.Fatalf("list recent: %v %+v", err, recent)
	}

	none, err := repo.GetByDate(ctx, "1999-01-01")
	if err != nil || none != nil {
		t.Fatalf("expected nil, nil for unknown date, got %+v err=%v", none, err)
	}
}
