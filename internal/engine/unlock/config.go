// internal/engine/unlock/config.go
package unlock

import (
	"time"

	"masqanicore/internal/common/config"
)

const flowName = "unlock"

// Config carries the engine's tunables.
type Config struct {
	// GatewayTimeout bounds one confirmation round-trip, STK push included.
	GatewayTimeout time.Duration

	// OutcomeBuffer sizes the outcome channel. Emission never blocks the
	// engine; an unread outcome beyond the buffer is dropped with a warning.
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
		OutcomeBuffer:  4,
	}
}
