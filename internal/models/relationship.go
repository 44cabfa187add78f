package models

import (
	"time"

	"github.com/google/uuid"
)

// RelationshipType names how two events are connected.
type RelationshipType string

const (
	RelationshipPurchaseOfLead RelationshipType = "purchase_of_lead"
)

// EventRelationship links a purchase event back to the lead event that
// acquired the same person, so downstream adapters can attribute revenue
// and attribution consistently.
type EventRelationship struct {
	ID               int64            `json:"id" gorm:"primary_key;autoIncrement"`
	FromEventID      uuid.UUID        `json:"fromEventId" gorm:"type:uuid;not null;index"`
	ToEventID        uuid.UUID        `json:"toEventId" gorm:"type:uuid;not null;index"`
	RelationshipType RelationshipType `json:"relationshipType" gorm:"type:varchar(40);not null"`
	MatchedOnEmail   bool             `json:"matchedOnEmail"`
	MatchedOnIP      bool             `json:"matchedOnIp"`
	CreatedAt        time.Time        `json:"createdAt"`
}

func (EventRelationship) TableName() string { return "event_relationships" }
