package models

import (
	"time"

	"github.com/google/uuid"
)

// QueueJobStatus is the lifecycle state of a QueueJob.
type QueueJobStatus string

const (
	JobStatusPending    QueueJobStatus = "pending"
	JobStatusProcessing QueueJobStatus = "processing"
	JobStatusCompleted  QueueJobStatus = "completed"
	JobStatusFailed     QueueJobStatus = "failed"
	JobStatusSkipped    QueueJobStatus = "skipped"
)

const (
	DefaultMaxRetries  = 3
	DefaultLeaseSecs   = 300
	MinBackoffMinutes  = 5
	MaxBackoffMinutes  = 120
)

// QueueJob is one intended delivery of one Event to one Platform.
type QueueJob struct {
	ID         int64     `json:"id" gorm:"primary_key;autoIncrement"`
	EventID    uuid.UUID `json:"eventId" gorm:"type:uuid;not null;index:idx_event_platform"`
	PlatformID int64     `json:"platformId" gorm:"not null;index:idx_event_platform"`

	Status      QueueJobStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending';index:idx_status_process_after"`
	Attempts    int            `json:"attempts" gorm:"default:0"`
	MaxRetries  int            `json:"maxRetries" gorm:"default:3"`
	IsPriority  bool           `json:"isPriority" gorm:"default:false"`

	ProcessAfter time.Time `json:"processAfter" gorm:"not null;index:idx_status_process_after"`

	LockedUntil *time.Time `json:"lockedUntil" gorm:"index:idx_locked_until"`
	LockedBy    string     `json:"lockedBy" gorm:"type:varchar(255)"`

	ResponseCode int    `json:"responseCode"`
	ResponseBody string `json:"responseBody" gorm:"type:text"`

	RevenueAmount *float64 `json:"revenueAmount" gorm:"type:decimal(12,2)"`
	RevenueStatus string   `json:"revenueStatus" gorm:"type:varchar(20)"`

	SkipReason string `json:"skipReason" gorm:"type:varchar(255)"`
	LastError  string `json:"lastError" gorm:"type:text"`

	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	ProcessedAt *time.Time `json:"processedAt"`
}

func (QueueJob) TableName() string { return "processing_queue" }

// CanRetry reports whether the job has retry budget left.
func (j *QueueJob) CanRetry() bool {
	return j.Attempts < j.MaxRetries
}

// IsLeaseLive reports whether the job currently has a live lease.
func (j *QueueJob) IsLeaseLive(now time.Time) bool {
	return j.Status == JobStatusProcessing && j.LockedUntil != nil && j.LockedUntil.After(now) && j.LockedBy != ""
}

// NextBackoff computes process_after for the given attempt count:
// 5·2^attempts minutes, capped at 120 minutes.
func NextBackoff(now time.Time, attempts int) time.Time {
	minutes := MinBackoffMinutes
	for i := 0; i < attempts; i++ {
		minutes *= 2
		if minutes >= MaxBackoffMinutes {
			minutes = MaxBackoffMinutes
			break
		}
	}
	if minutes > MaxBackoffMinutes {
		minutes = MaxBackoffMinutes
	}
	return now.Add(time.Duration(minutes) * time.Minute)
}

// ProcessingLog records one adapter attempt for auditability.
type ProcessingLog struct {
	ID           int64     `json:"id" gorm:"primary_key;autoIncrement"`
	EventID      uuid.UUID `json:"eventId" gorm:"type:uuid;not null;index"`
	PlatformID   int64     `json:"platformId" gorm:"not null;index"`
	JobID        int64     `json:"jobId" gorm:"not null;index"`
	Attempt      int       `json:"attempt"`
	Success      bool      `json:"success"`
	ResponseCode int       `json:"responseCode"`
	ResponseBody string    `json:"responseBody" gorm:"type:text"`
	Error        string    `json:"error" gorm:"type:text"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (ProcessingLog) TableName() string { return "processing_log" }

// ValidationQuota tracks the daily usage counter for a validation platform,
// persisted so restarts and multiple workers share one counter instead of
// each holding its own in-process tally.
type ValidationQuota struct {
	ID           int64     `json:"id" gorm:"primary_key;autoIncrement"`
	Date         string    `json:"date" gorm:"type:varchar(10);not null;uniqueIndex:idx_quota_date_platform"`
	PlatformCode string    `json:"platformCode" gorm:"type:varchar(100);not null;uniqueIndex:idx_quota_date_platform"`
	Count        int       `json:"count" gorm:"default:0"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (ValidationQuota) TableName() string { return "validation_quota" }
