package models

import "time"

// DayLayout is the key format of DailyStats.Date.
const DayLayout = "2006-01-02"

// DailyStats is a per-day snapshot of issue counts by status.
// At most one row exists per Date.
type DailyStats struct {
	ID              int64     `gorm:"primaryKey" json:"id"`
	Date            string    `gorm:"uniqueIndex;not null" json:"date"`
	OpenCount       int64     `json:"open_count"`
	TriagedCount    int64     `json:"triaged_count"`
	InProgressCount int64     `json:"in_progress_count"`
	DoneCount       int64     `json:"done_count"`
	CreatedAt       time.Time `json:"created_at"`
}
