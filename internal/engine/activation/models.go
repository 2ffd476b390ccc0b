// internal/engine/activation/models.go
package activation

import (
	"context"
	"sync"
	"time"

	"masqanicore/internal/models"
)

// ListingCreator is the write surface the engine needs.
type ListingCreator interface {
	CreateListing(ctx context.Context, listing *models.Listing) (string, error)
}

// PhotoUploader converts inline-encoded draft photos into durable URLs.
type PhotoUploader interface {
	UploadDataURI(ctx context.Context, path, dataURI string) (string, error)
}

// Transaction is one listing-activation payment attempt. Same state machine
// as unlock: AWAITING_PAYMENT_INPUT -> PROCESSING -> {SUCCEEDED, FAILED,
// CANCELLED}, with FAILED re-arming for another attempt.
type Transaction struct {
	ID        string
	Landlord  *models.Account
	Draft     *models.Listing
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

// Outcome is the terminal (or re-armed) report for an activation transaction.
// ListingID is set only on success, once the listing record exists.
type Outcome struct {
	TxID      string
	State     models.TxState
	ListingID string
	ReceiptID string
	Err       error
}
