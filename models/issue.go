package models

import "time"

// IssueStatus represents where an issue is in its lifecycle.
type IssueStatus string

const (
	IssueStatusOpen       IssueStatus = "open"
	IssueStatusTriaged    IssueStatus = "triaged"
	IssueStatusInProgress IssueStatus = "in_progress"
	IssueStatusDone       IssueStatus = "done"
)

// IssueStatuses lists every status in lifecycle order.
var IssueStatuses = []IssueStatus{IssueStatusOpen, IssueStatusTriaged, IssueStatusInProgress, IssueStatusDone}

func (s IssueStatus) Valid() bool {
	for _, v := range IssueStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// IssueSeverity ranks how bad an issue is.
type IssueSeverity string

const (
	IssueSeverityLow      IssueSeverity = "low"
	IssueSeverityMedium   IssueSeverity = "medium"
	IssueSeverityHigh     IssueSeverity = "high"
	IssueSeverityCritical IssueSeverity = "critical"
)

// IssueSeverities lists every severity from lowest to highest.
var IssueSeverities = []IssueSeverity{IssueSeverityLow, IssueSeverityMedium, IssueSeverityHigh, IssueSeverityCritical}

func (s IssueSeverity) Valid() bool {
	for _, v := range IssueSeverities {
		if s == v {
			return true
		}
	}
	return false
}

// Issue is a tracked unit of work owned by exactly one User via OwnerID.
type Issue struct {
	ID          int64         `gorm:"primaryKey" json:"id"`
	Title       string        `gorm:"not null" json:"title"`
	Description *string       `json:"description"`
	Status      IssueStatus   `gorm:"type:varchar(20);not null;default:open" json:"status"`
	Severity    IssueSeverity `gorm:"type:varchar(20);not null;default:medium" json:"severity"`
	// FilePath points at the uploaded attachment, if any. The file may be
	// removed by the cleanup job while the row still references it.
	FilePath *string `json:"file_path"`
	// Tags is free text, comma-joined.
	Tags      *string   `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	OwnerID   int64     `gorm:"not null;index" json:"owner_id"`
	Owner     *User     `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
}
