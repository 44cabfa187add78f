package adapter

import (
	"context"
	"fmt"

	"github.com/cflagle/unified-events/internal/models"
)

// New constructs the concrete Adapter for a platform definition, keyed on
// its PlatformType. api_config is decoded exactly once here and handed to
// the constructor as a flat Config.
func New(ctx context.Context, p *models.PlatformDefinition) (Adapter, error) {
	cfg, err := NewConfig(p)
	if err != nil {
		return nil, err
	}

	switch p.PlatformType {
	case models.PlatformCRM:
		return NewCRMAdapter(cfg)
	case models.PlatformAnalytics:
		return NewAnalyticsAdapter(ctx, cfg)
	case models.PlatformSMS:
		return NewSMSAdapter(ctx, cfg)
	case models.PlatformValidation:
		return NewValidationAdapter(cfg)
	case models.PlatformMonetization:
		return NewMonetizationAdapter(cfg)
	case models.PlatformEmail:
		return NewEmailListAdapter(cfg)
	default:
		return nil, fmt.Errorf("adapter: unknown platform type %q for platform %q", p.PlatformType, p.PlatformCode)
	}
}
