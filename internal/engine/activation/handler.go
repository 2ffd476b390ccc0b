// internal/engine/activation/handler.go
package activation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	apperrors "masqanicore/internal/common/errors"
	"masqanicore/internal/common/logger"
	"masqanicore/internal/common/metrics"
	"masqanicore/internal/common/notify"
	"masqanicore/internal/common/observability"
	"masqanicore/internal/common/storage"
	"masqanicore/internal/engine/inflight"
	"masqanicore/internal/models"
	"masqanicore/internal/payment"
	"masqanicore/internal/pricing"
)

// Engine drives listing-activation payment transactions. Activation is
// serialized per landlord: one draft may be paying at a time.
type Engine struct {
	cfg      Config
	listings ListingCreator
	uploader PhotoUploader
	fees     pricing.ListingTable
	gateway  payment.Gateway
	leases   *inflight.Registry
	notifier notify.Notifier
	obs      *observability.Observability
	logger   logger.Logger
	outcomes chan Outcome
}

func NewEngine(
	cfg Config,
	listings ListingCreator,
	uploader PhotoUploader,
	fees pricing.ListingTable,
	gateway payment.Gateway,
	leases *inflight.Registry,
	notifier notify.Notifier,
	obs *observability.Observability,
	log logger.Logger,
) *Engine {
	if notifier == nil {
		notifier = notify.NoopNotifier{}
	}
	buffer := cfg.OutcomeBuffer
	if buffer <= 0 {
		buffer = 4
	}
	return &Engine{
		cfg:      cfg,
		listings: listings,
		uploader: uploader,
		fees:     fees,
		gateway:  gateway,
		leases:   leases,
		notifier: notifier,
		obs:      obs,
		logger:   log.WithFields(map[string]interface{}{"component": "activation-engine"}),
		outcomes: make(chan Outcome, buffer),
	}
}

// Outcomes exposes the terminal reports emitted by running transactions.
func (e *Engine) Outcomes() <-chan Outcome {
	return e.outcomes
}

// UploadDraftPhotos replaces every inline-encoded entry in the gallery with
// the durable URL of the stored object. Already-remote entries pass through
// unchanged. Call this before Start; a draft that still carries inline
// entries at finalize time is refused.
func (e *Engine) UploadDraftPhotos(ctx context.Context, landlordID string, photos []string) ([]string, error) {
	if e.uploader == nil {
		return nil, apperrors.NewAuthRequiredError("photo storage is not configured")
	}

	resolved := make([]string, len(photos))
	for i, entry := range photos {
		if storage.IsRemoteURL(entry) {
			resolved[i] = entry
			continue
		}
		path := fmt.Sprintf("listings/%s/%s.jpg", landlordID, uuid.NewString())
		url, err := e.uploader.UploadDataURI(ctx, path, entry)
		if err != nil {
			return nil, err
		}
		resolved[i] = url
	}
	return resolved, nil
}

// Start opens an activation transaction for the landlord's draft. The draft
// must pass structural validation, photo minimum included, before the fee is
// quoted and the per-landlord slot is taken.
func (e *Engine) Start(ctx context.Context, landlord *models.Account, draft *models.Listing) (*Transaction, error) {
	if landlord == nil || landlord.Identifier() == "" {
		return nil, e.reject(apperrors.NewAuthRequiredError("activation requires a signed-in account"))
	}

	owner, ok := landlord.AsLandlord()
	if !ok {
		return nil, e.reject(apperrors.NewRoleNotEligibleError(string(landlord.Role), "listing activation"))
	}

	if err := ValidateDraft(draft); err != nil {
		return nil, e.reject(err)
	}
	if len(draft.Photos) < models.MinPublishPhotos {
		return nil, e.reject(apperrors.NewValidationError(
			fmt.Sprintf("at least %d photos required, got %d", models.MinPublishPhotos, len(draft.Photos))))
	}

	txID := uuid.NewString()
	leaseKey := inflight.ActivationKey(owner.Identifier())
	if err := e.leases.Acquire(ctx, leaseKey, txID); err != nil {
		return nil, e.reject(err)
	}

	tx := &Transaction{
		ID:        txID,
		Landlord:  owner.Account,
		Draft:     draft,
		Fee:       e.fees.Fee(draft.UnitType),
		CreatedAt: time.Now().UTC(),
		state:     models.TxAwaitingPaymentInput,
		leaseKey:  leaseKey,
	}

	metrics.TransactionsStarted.WithLabelValues(flowName).Inc()
	e.logger.Info("activation transaction opened", map[string]interface{}{
		"txId":       tx.ID,
		"landlordId": owner.Identifier(),
		"unitType":   string(draft.UnitType),
		"fee":        tx.Fee,
	})
	return tx, nil
}

// SubmitPhone accepts the landlord's mobile-money number and dispatches the
// confirmation round-trip.
func (e *Engine) SubmitPhone(tx *Transaction, phone string) error {
	if err := validatePhone(phone); err != nil {
		return err
	}

	tx.mu.Lock()
	switch tx.state {
	case models.TxAwaitingPaymentInput, models.TxFailed:
	case models.TxProcessing:
		tx.mu.Unlock()
		return apperrors.NewConflictError("payment already processing")
	default:
		tx.mu.Unlock()
		return apperrors.NewConflictError("transaction already settled")
	}
	tx.state = models.TxProcessing
	tx.Phone = phone
	tx.mu.Unlock()

	go e.process(tx)
	return nil
}

// Cancel abandons a transaction that has not started processing.
func (e *Engine) Cancel(tx *Transaction) error {
	tx.mu.Lock()
	switch tx.state {
	case models.TxAwaitingPaymentInput, models.TxFailed:
	case models.TxProcessing:
		tx.mu.Unlock()
		return apperrors.NewConflictError("cannot cancel while payment is processing")
	default:
		tx.mu.Unlock()
		return apperrors.NewConflictError("transaction already settled")
	}
	tx.state = models.TxCancelled
	tx.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	e.leases.Release(ctx, tx.leaseKey, tx.ID)

	e.logger.Info("activation transaction cancelled", map[string]interface{}{"txId": tx.ID})
	e.emit(Outcome{TxID: tx.ID, State: models.TxCancelled})
	return nil
}

func (e *Engine) process(tx *Transaction) {
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.GatewayTimeout)
	defer cancel()

	started := time.Now()
	result, err := e.gateway.Confirm(ctx, payment.Request{
		Phone:       tx.Phone,
		Amount:      tx.Fee,
		Reference:   tx.ID,
		Description: "Listing activation",
	})
	elapsed := time.Since(started)
	metrics.GatewayDuration.WithLabelValues(flowName).Observe(elapsed.Seconds())
	if e.obs != nil {
		status := "failed"
		if err == nil && result.Confirmed {
			status = "succeeded"
		}
		e.obs.RecordTransactionDuration(ctx, flowName, elapsed, status)
	}

	if err != nil {
		e.fail(tx, apperrors.NewPaymentFailedError(err.Error()))
		return
	}
	if !result.Confirmed {
		e.fail(tx, apperrors.NewPaymentFailedError(result.FailureReason))
		return
	}

	listingID, err := e.finalize(ctx, tx)
	if err != nil {
		e.fail(tx, err)
		return
	}

	e.succeed(tx, listingID, result.TransactionID)
}

// finalize persists the draft as a live listing. The inline-photo guard runs
// first: a gallery still carrying data-URI entries means the upload step was
// skipped, and no record may be written from it.
func (e *Engine) finalize(ctx context.Context, tx *Transaction) (string, error) {
	inline := 0
	for _, entry := range tx.Draft.Photos {
		if !storage.IsRemoteURL(entry) {
			inline++
		}
	}
	if inline > 0 {
		return "", apperrors.NewIncompleteUploadError(inline)
	}

	now := time.Now().UTC()
	listing := *tx.Draft
	listing.ID = uuid.NewString()
	listing.LandlordID = tx.Landlord.ID
	listing.LandlordName = tx.Landlord.Name
	listing.LandlordPhone = tx.Landlord.Phone
	listing.LandlordEmail = tx.Landlord.Email
	listing.IsVerified = false
	listing.DateListed = now.Format(time.RFC3339)

	// Airbnb terms: the deposit is waived and the paid visibility window
	// starts now.
	if listing.UnitType == models.UnitAirbnb {
		listing.Deposit = 0
		expiry := now.Add(e.cfg.AirbnbWindow)
		listing.SubscriptionExpiry = &expiry
	}

	return e.listings.CreateListing(ctx, &listing)
}

func (e *Engine) succeed(tx *Transaction, listingID, receiptID string) {
	tx.mu.Lock()
	if tx.state != models.TxProcessing {
		tx.mu.Unlock()
		return
	}
	tx.state = models.TxSucceeded
	tx.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	e.leases.Release(ctx, tx.leaseKey, tx.ID)

	metrics.TransactionsSucceeded.WithLabelValues(flowName).Inc()
	metrics.FeesCollected.WithLabelValues(flowName).Add(float64(tx.Fee))
	if e.obs != nil {
		e.obs.RecordTransaction(ctx, flowName, "succeeded")
	}

	e.logger.Info("listing activated", map[string]interface{}{
		"txId":      tx.ID,
		"listingId": listingID,
		"receiptId": receiptID,
		"fee":       tx.Fee,
	})

	e.notifier.ActivationReceipt(ctx, tx.Landlord, listingID, tx.Fee, receiptID)

	e.emit(Outcome{
		TxID:      tx.ID,
		State:     models.TxSucceeded,
		ListingID: listingID,
		ReceiptID: receiptID,
	})
}

func (e *Engine) fail(tx *Transaction, cause error) {
	tx.mu.Lock()
	if tx.state != models.TxProcessing {
		tx.mu.Unlock()
		return
	}
	tx.state = models.TxFailed
	tx.mu.Unlock()

	code := apperrors.CodeOf(cause)
	metrics.TransactionsFailed.WithLabelValues(flowName, string(code)).Inc()
	if e.obs != nil {
		e.obs.RecordTransaction(context.Background(), flowName, "failed")
	}

	e.logger.Warn("activation attempt failed", map[string]interface{}{
		"txId":      tx.ID,
		"errorCode": string(code),
		"error":     cause.Error(),
	})

	e.emit(Outcome{TxID: tx.ID, State: models.TxFailed, Err: cause})
}

func (e *Engine) reject(err error) error {
	metrics.TransactionsRejected.WithLabelValues(flowName, string(apperrors.CodeOf(err))).Inc()
	return err
}

func (e *Engine) emit(outcome Outcome) {
	select {
	case e.outcomes <- outcome:
	default:
		e.logger.Warn("outcome dropped, channel full", map[string]interface{}{"txId": outcome.TxID})
	}
}

// validatePhone applies the entry rule for mobile-money numbers: at least
// nine digits, nothing but digits and an optional leading plus.
func validatePhone(phone string) error {
	digits := 0
	for i, r := range phone {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '+' && i == 0:
		case r == ' ':
		default:
			return apperrors.NewValidationError("phone number contains invalid characters")
		}
	}
	if digits < 9 {
		return apperrors.NewValidationError("phone number must have at least 9 digits")
	}
	return nil
}
