package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// PlatformType categorizes what an adapter's downstream platform does.
type PlatformType string

const (
	PlatformCRM          PlatformType = "crm"
	PlatformAnalytics     PlatformType = "analytics"
	PlatformSMS           PlatformType = "sms"
	PlatformValidation    PlatformType = "validation"
	PlatformMonetization  PlatformType = "monetization"
	PlatformEmail         PlatformType = "email"
)

// PlatformDefinition describes a downstream third-party platform.
type PlatformDefinition struct {
	ID                int64          `json:"id" gorm:"primary_key;autoIncrement"`
	PlatformCode      string         `json:"platformCode" gorm:"type:varchar(100);not null;uniqueIndex"`
	DisplayName       string         `json:"displayName" gorm:"type:varchar(255);not null"`
	PlatformType      PlatformType   `json:"platformType" gorm:"type:varchar(20);not null;index"`
	IsActive          bool           `json:"isActive" gorm:"default:true;index"`
	APIConfig         datatypes.JSON `json:"apiConfig" gorm:"type:jsonb"`
	MaxRetries        int            `json:"maxRetries" gorm:"default:3"`
	TimeoutSeconds    int            `json:"timeoutSeconds" gorm:"default:30"`
	RequiresValidEmail bool          `json:"requiresValidEmail" gorm:"default:true"`
	Priority          int            `json:"priority" gorm:"default:100"`
	RevenuePerLead    float64        `json:"revenuePerLead" gorm:"default:2.00"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (PlatformDefinition) TableName() string { return "platforms" }

// DecodedAPIConfig decodes the stored api_config JSON into a flat map.
// Decoding happens exactly once here, rather than leaving callers to
// guess whether a given value is already decoded or still a raw string.
func (p *PlatformDefinition) DecodedAPIConfig() (map[string]interface{}, error) {
	if len(p.APIConfig) == 0 {
		return map[string]interface{}{}, nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal(p.APIConfig, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// RoutingRule maps an event type to a platform, guarded by conditions.
type RoutingRule struct {
	ID          int64          `json:"id" gorm:"primary_key;autoIncrement"`
	EventType   EventType      `json:"eventType" gorm:"type:varchar(20);not null;index"`
	PlatformID  int64          `json:"platformId" gorm:"not null;index"`
	Conditions  datatypes.JSON `json:"conditions" gorm:"type:jsonb"`
	Priority    int            `json:"priority" gorm:"default:100"`
	IsActive    bool           `json:"isActive" gorm:"default:true;index"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (RoutingRule) TableName() string { return "routing_rules" }

// ParsedConditions parses the rule's stored conditions into typed predicates.
func (r *RoutingRule) ParsedConditions() (map[string]Condition, error) {
	return ParseConditions(json.RawMessage(r.Conditions))
}
