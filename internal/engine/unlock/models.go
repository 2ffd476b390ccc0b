// internal/engine/unlock/models.go
package unlock

import (
	"context"
	"sync"
	"time"

	"masqanicore/internal/models"
)

// AccountDirectory is the profile surface the engine needs.
type AccountDirectory interface {
	GetProfile(ctx context.Context, identifier string) (*models.Account, error)
	UnlockListing(ctx context.Context, identifier, listingID string) error
}

// ListingStore is the listing surface the engine needs.
type ListingStore interface {
	GetListing(ctx context.Context, id string) (*models.Listing, error)
}

// Transaction is one contact-unlock payment attempt. State moves
// AWAITING_PAYMENT_INPUT -> PROCESSING -> {SUCCEEDED, FAILED, CANCELLED}.
// FAILED re-arms: the payer may resubmit a phone number. SUCCEEDED and
// CANCELLED are terminal.
type Transaction struct {
	ID        string
	Payer     *models.Account
	Listing   *models.Listing
	Fee       int64
	Phone     string
	CreatedAt time.Time

	mu       sync.Mutex
	state    models.TxState
	leaseKey string
}

// State returns the current transaction state.
func (t *Transaction) State() models.TxState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Outcome is the terminal (or re-armed) report emitted for a transaction.
type Outcome struct {
	TxID      string
	ListingID string
	State     models.TxState
	ReceiptID string
	Err       error

	// RefreshedPayer carries the re-read profile after a confirmed unlock so
	// the session can be updated without another round-trip.
	RefreshedPayer *models.Account
}
