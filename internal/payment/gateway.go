// internal/payment/gateway.go
package payment

import "context"

// Request describes one mobile-money charge pushed to the payer's handset.
type Request struct {
	Phone       string `json:"phone"`
	Amount      int64  `json:"amount"`
	Reference   string `json:"reference"`
	Description string `json:"description"`
}

// Result is the gateway's confirmation verdict.
type Result struct {
	Confirmed     bool   `json:"confirmed"`
	TransactionID string `json:"transactionId"`
	FailureReason string `json:"failureReason,omitempty"`
}

// Gateway confirms a mobile-money payment. Confirm blocks for seconds, not
// milliseconds; callers dispatch it off any shared dispatcher and bound it
// with a context deadline. Implementations: Simulator (default) and the
// Daraja STK-push client. The Processing -> {Succeeded, Failed} transition
// contract is the only thing engines depend on; nothing depends on the
// simulator's outcome distribution.
type Gateway interface {
	Confirm(ctx context.Context, req Request) (*Result, error)
}
