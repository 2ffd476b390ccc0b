// internal/payment/simulator.go
package payment

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Simulator stands in for the mobile-money gateway during development. It
// waits roughly as long as a real STK push round-trip and confirms most
// requests. Production deployments replace it with the Daraja client.
type Simulator struct {
	SuccessRate float64       // 0..1, default 0.9
	Latency     time.Duration // default 3.5s

	// OutcomeFn overrides the random draw; tests use it for determinism.
	OutcomeFn func(req Request) bool
}

// NewSimulator returns a simulator with the default confirmation behavior.
func NewSimulator() *Simulator {
	return &Simulator{
		SuccessRate: 0.9,
		Latency:     3500 * time.Millisecond,
	}
}

// Confirm waits out the simulated round-trip, then draws an outcome.
func (s *Simulator) Confirm(ctx context.Context, req Request) (*Result, error) {
	latency := s.Latency
	if latency > 0 {
		select {
		case <-time.After(latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	confirmed := false
	if s.OutcomeFn != nil {
		confirmed = s.OutcomeFn(req)
	} else {
		rate := s.SuccessRate
		if rate == 0 {
			rate = 0.9
		}
		confirmed = rand.Float64() < rate
	}

	if !confirmed {
		return &Result{
			Confirmed:     false,
			FailureReason: "Request timed out or cancelled",
		}, nil
	}

	return &Result{
		Confirmed:     true,
		TransactionID: simulatedReceiptID(),
	}, nil
}

// simulatedReceiptID mimics gateway receipt numbers: short, upper-case
// alphanumeric.
func simulatedReceiptID() string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
	return id[:10]
}
