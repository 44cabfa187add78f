// Package adapter implements delivery to downstream platforms: one concrete
// adapter per platform type, constructed from a PlatformDefinition's
// decoded api_config and invoked uniformly by the processor.
package adapter

import (
	"context"
	"fmt"

	"github.com/cflagle/unified-events/internal/models"
)

// Result is the outcome of one delivery attempt, independent of which
// underlying transport produced it.
type Result struct {
	Success      bool
	ResponseCode int
	ResponseBody string
	Revenue      *float64
	RevenueStatus string
	ProviderData map[string]interface{}
}

// Adapter delivers one Event to one downstream platform.
type Adapter interface {
	// Send performs the delivery and returns its outcome. A non-nil error
	// indicates a transport-level failure (the caller treats it as
	// retryable); a returned Result with Success=false but err=nil
	// indicates the platform explicitly rejected the payload.
	Send(ctx context.Context, event *models.Event) (*Result, error)

	// Name identifies the adapter in logs and processing_log rows.
	Name() string
}

// Config is the flattened, type-asserted view of a platform's decoded
// api_config, with the handful of cross-cutting fields every adapter may
// need regardless of platform type.
type Config struct {
	Raw            map[string]interface{}
	RevenuePerLead float64
	TimeoutSeconds int
}

func (c Config) str(key string) string {
	if v, ok := c.Raw[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func (c Config) strDefault(key, def string) string {
	if v := c.str(key); v != "" {
		return v
	}
	return def
}

// errMissingConfig reports a required api_config key that was absent or of
// the wrong type, surfaced at construction time rather than at send time.
func errMissingConfig(platformCode, key string) error {
	return fmt.Errorf("adapter %s: missing or invalid api_config key %q", platformCode, key)
}

// NewConfig flattens a PlatformDefinition's decoded api_config into a Config,
// pulling the cross-cutting fields off the platform row itself.
func NewConfig(p *models.PlatformDefinition) (Config, error) {
	raw, err := p.DecodedAPIConfig()
	if err != nil {
		return Config{}, fmt.Errorf("adapter %s: decode api_config: %w", p.PlatformCode, err)
	}
	return Config{
		Raw:            raw,
		RevenuePerLead: p.RevenuePerLead,
		TimeoutSeconds: p.TimeoutSeconds,
	}, nil
}
