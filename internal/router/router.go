// Package router resolves an Event to an ordered list of target platforms
// via cached, reloadable routing rules.
package router

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/cflagle/unified-events/internal/models"
	"github.com/cflagle/unified-events/internal/store"
)

// Router holds caches of active platforms and routing rules behind an
// RWMutex; Reload is the only writer and may run concurrently with
// worker lookups.
type Router struct {
	store store.PlatformStore

	mu               sync.RWMutex
	platformsByID    map[int64]models.PlatformDefinition
	platformsByCode  map[string]models.PlatformDefinition
	rulesByEventType map[models.EventType][]models.RoutingRule
}

func New(ctx context.Context, s store.PlatformStore) (*Router, error) {
	r := &Router{store: s}
	if err := r.Reload(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload repopulates every cache from the Store. Intended for
// offline/admin use, not for steady-state worker operation.
func (r *Router) Reload(ctx context.Context) error {
	platforms, err := r.store.ListActivePlatforms(ctx)
	if err != nil {
		return err
	}
	byID := make(map[int64]models.PlatformDefinition, len(platforms))
	byCode := make(map[string]models.PlatformDefinition, len(platforms))
	for _, p := range platforms {
		byID[p.ID] = p
		byCode[p.PlatformCode] = p
	}

	rules := make(map[models.EventType][]models.RoutingRule)
	for _, et := range []models.EventType{
		models.EventTypeLead, models.EventTypePurchase,
		models.EventTypeEmailOpen, models.EventTypeEmailClick,
	} {
		rs, err := r.store.ListActiveRulesForEventType(ctx, et)
		if err != nil {
			return err
		}
		sort.Slice(rs, func(i, j int) bool { return rs[i].Priority < rs[j].Priority })
		rules[et] = rs
	}

	r.mu.Lock()
	r.platformsByID = byID
	r.platformsByCode = byCode
	r.rulesByEventType = rules
	r.mu.Unlock()
	return nil
}

// PlatformCount reports how many active platforms are currently cached,
// for the /health rollup's platforms check.
func (r *Router) PlatformCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.platformsByID)
}

// GetPlatformByID returns an active platform's definition, or nil if
// unknown/inactive.
func (r *Router) GetPlatformByID(id int64) *models.PlatformDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.platformsByID[id]; ok {
		return &p
	}
	return nil
}

// GetPlatformByCode returns an active platform's definition by its code.
func (r *Router) GetPlatformByCode(code string) *models.PlatformDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.platformsByCode[code]; ok {
		return &p
	}
	return nil
}

// GetValidationPlatform returns the active validation-type platform, or
// nil if none is configured.
func (r *Router) GetValidationPlatform() *models.PlatformDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.platformsByID {
		if p.PlatformType == models.PlatformValidation {
			cp := p
			return &cp
		}
	}
	return nil
}

// GetRoutesForEvent resolves the ordered, deduped list of target platforms
// for an event.
func (r *Router) GetRoutesForEvent(e *models.Event) []models.PlatformDefinition {
	r.mu.RLock()
	rules := r.rulesByEventType[e.EventType]
	platformsByID := r.platformsByID
	r.mu.RUnlock()

	if len(rules) == 0 {
		return nil
	}

	fields := virtualFields(e)
	seen := make(map[int64]bool)
	var matched []models.PlatformDefinition

	for _, rule := range rules {
		platform, ok := platformsByID[rule.PlatformID]
		if !ok {
			continue
		}
		conditions, err := rule.ParsedConditions()
		if err != nil {
			continue
		}
		if !allConditionsMatch(conditions, fields) {
			continue
		}
		if seen[platform.ID] {
			continue
		}
		seen[platform.ID] = true
		matched = append(matched, platform)
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].Priority < matched[j].Priority })
	return matched
}

func allConditionsMatch(conditions map[string]models.Condition, fields map[string]interface{}) bool {
	for field, cond := range conditions {
		if !cond.Evaluate(fields[field]) {
			return false
		}
	}
	return true
}

// virtualFields computes the event's real fields plus the router's
// derived fields (is_gmail, is_mobile, email_domain, ...).
func virtualFields(e *models.Event) map[string]interface{} {
	domain := e.EmailDomain()
	hasPhone := e.Phone != ""
	digitCount := 0
	for _, c := range e.Phone {
		if c >= '0' && c <= '9' {
			digitCount++
		}
	}

	return map[string]interface{}{
		"event_type":              string(e.EventType),
		"email":                   e.Email,
		"email_domain":            domain,
		"has_phone":               hasPhone,
		"phone":                   e.Phone,
		"revenue_amount":          e.PurchaseAmount,
		"is_gmail":                strings.EqualFold(domain, "gmail.com"),
		"is_mobile":               hasPhone && digitCount >= 10,
		"acq_source":              e.AcqSource,
		"acq_campaign":            e.AcqCampaign,
		"cur_source":              e.CurSource,
		"cur_medium":              e.CurMedium,
		"purchase_offer":          e.PurchaseOffer,
		"purchase_publisher":      e.PurchasePublisher,
		"purchase_traffic_source": e.PurchaseTrafficSource,
		"email_validation_status": emailValidationStatusString(e.EmailValidationStatus),
	}
}

func emailValidationStatusString(s *models.EmailValidationStatus) string {
	if s == nil {
		return ""
	}
	return string(*s)
}
