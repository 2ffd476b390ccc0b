// internal/engine/activation/config.go
package activation

import (
	"time"

	"masqanicore/internal/common/config"
)

const flowName = "activation"

// Config carries the engine's tunables.
type Config struct {
	// GatewayTimeout bounds one confirmation round-trip.
	GatewayTimeout time.Duration

	// AirbnbWindow is how long a paid Airbnb listing stays visible before the
	// monthly subscription lapses.
	AirbnbWindow time.Duration

	// OutcomeBuffer sizes the outcome channel.
	OutcomeBuffer int
}

// FromAppConfig derives the engine config from the application payment block.
func FromAppConfig(cfg config.PaymentConfig) Config {
	timeout := time.Duration(cfg.Timeout) * time.Millisecond
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return Config{
		GatewayTimeout: timeout,
		AirbnbWindow:   30 * 24 * time.Hour,
		OutcomeBuffer:  4,
	}
}
