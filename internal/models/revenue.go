package models

import (
	"time"

	"github.com/google/uuid"
)

// RevenueStatus is the settlement state of a RevenueRecord.
type RevenueStatus string

const (
	RevenueStatusConfirmed RevenueStatus = "confirmed"
	RevenueStatusDeclined  RevenueStatus = "declined"
	RevenueStatusPending   RevenueStatus = "pending"
)

// RevenueRecord captures a monetization adapter's reported payout for a
// single job, kept separately from QueueJob so historical revenue survives
// queue cleanup (the cleanup operation prunes terminal jobs).
type RevenueRecord struct {
	ID         int64         `json:"id" gorm:"primary_key;autoIncrement"`
	EventID    uuid.UUID     `json:"eventId" gorm:"type:uuid;not null;index"`
	PlatformID int64         `json:"platformId" gorm:"not null;index"`
	JobID      int64         `json:"jobId" gorm:"not null;index"`
	Amount     float64       `json:"amount" gorm:"type:decimal(12,2);not null"`
	Status     RevenueStatus `json:"status" gorm:"type:varchar(20);not null"`
	RawResponse string       `json:"rawResponse" gorm:"type:text"`
	CreatedAt  time.Time     `json:"createdAt"`
}

func (RevenueRecord) TableName() string { return "revenue_records" }
