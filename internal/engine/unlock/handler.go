// internal/engine/unlock/handler.go
package unlock

import (
	"context"
	"time"

	"github.com/google/uuid"

	apperrors "masqanicore/internal/common/errors"
	"masqanicore/internal/common/logger"
	"masqanicore/internal/common/metrics"
	"masqanicore/internal/common/notify"
	"masqanicore/internal/common/observability"
	"masqanicore/internal/engine/inflight"
	"masqanicore/internal/models"
	"masqanicore/internal/payment"
	"masqanicore/internal/pricing"
)

// Engine drives contact-unlock payment transactions. One engine instance
// serves all payers; per-resource serialization is delegated to the inflight
// registry.
type Engine struct {
	cfg      Config
	accounts AccountDirectory
	listings ListingStore
	fees     pricing.UnlockTable
	gateway  payment.Gateway
	leases   *inflight.Registry
	notifier notify.Notifier
	obs      *observability.Observability
	logger   logger.Logger
	outcomes chan Outcome
}

func NewEngine(
	cfg Config,
	accounts AccountDirectory,
	listings ListingStore,
	fees pricing.UnlockTable,
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
		accounts: accounts,
		listings: listings,
		fees:     fees,
		gateway:  gateway,
		leases:   leases,
		notifier: notifier,
		obs:      obs,
		logger:   log.WithFields(map[string]interface{}{"component": "unlock-engine"}),
		outcomes: make(chan Outcome, buffer),
	}
}

// Outcomes exposes the terminal reports emitted by running transactions.
func (e *Engine) Outcomes() <-chan Outcome {
	return e.outcomes
}

// Start opens an unlock transaction for the payer and listing. The fee is
// quoted from the unlock table by unit type and fixed for the lifetime of the
// transaction. Every rejection here happens before any money moves.
func (e *Engine) Start(ctx context.Context, payer *models.Account, listingID string) (*Transaction, error) {
	if payer == nil || payer.Identifier() == "" {
		return nil, e.reject(apperrors.NewAuthRequiredError("unlock requires a signed-in account"))
	}

	tenant, ok := payer.AsTenant()
	if !ok {
		return nil, e.reject(apperrors.NewRoleNotEligibleError(string(payer.Role), "contact unlock"))
	}

	listing, err := e.listings.GetListing(ctx, listingID)
	if err != nil {
		return nil, e.reject(err)
	}

	if tenant.HasUnlocked(listingID) {
		return nil, e.reject(apperrors.NewAlreadyUnlockedError(tenant.Identifier(), listingID))
	}

	txID := uuid.NewString()
	leaseKey := inflight.UnlockKey(tenant.Identifier(), listingID)
	if err := e.leases.Acquire(ctx, leaseKey, txID); err != nil {
		return nil, e.reject(err)
	}

	tx := &Transaction{
		ID:        txID,
		Payer:     tenant.Account,
		Listing:   listing,
		Fee:       e.fees.Fee(listing.UnitType),
		CreatedAt: time.Now().UTC(),
		state:     models.TxAwaitingPaymentInput,
		leaseKey:  leaseKey,
	}

	metrics.TransactionsStarted.WithLabelValues(flowName).Inc()
	e.logger.Info("unlock transaction opened", map[string]interface{}{
		"txId":      tx.ID,
		"payerId":   tenant.Identifier(),
		"listingId": listingID,
		"fee":       tx.Fee,
	})
	return tx, nil
}

// SubmitPhone accepts the payer's mobile-money number and dispatches the
// confirmation round-trip. Allowed while the transaction is awaiting input,
// including after a failure re-armed it. A validation rejection leaves the
// state untouched so the payer can correct the number.
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

// Cancel abandons a transaction that has not started processing. Once the
// gateway round-trip is in flight the transaction must run to a terminal
// state; money may already be moving.
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

	e.logger.Info("unlock transaction cancelled", map[string]interface{}{"txId": tx.ID})
	e.emit(Outcome{TxID: tx.ID, ListingID: tx.Listing.ID, State: models.TxCancelled})
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
		Description: "Contact unlock " + tx.Listing.ID,
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

	// Payment is confirmed. The unlock insert is idempotent; a duplicate
	// arrival cannot grow the set twice.
	if err := e.accounts.UnlockListing(ctx, tx.Payer.Identifier(), tx.Listing.ID); err != nil {
		e.fail(tx, err)
		return
	}

	refreshed, err := e.accounts.GetProfile(ctx, tx.Payer.Identifier())
	if err != nil {
		e.logger.Warn("profile refresh after unlock failed", map[string]interface{}{
			"txId":  tx.ID,
			"error": err.Error(),
		})
		refreshed = nil
	}

	e.succeed(tx, result.TransactionID, refreshed)
}

// succeed drives the single PROCESSING -> SUCCEEDED transition. The state
// check and flip under the lock make the side-effect path exactly once.
func (e *Engine) succeed(tx *Transaction, receiptID string, refreshed *models.Account) {
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

	e.logger.Info("unlock confirmed", map[string]interface{}{
		"txId":      tx.ID,
		"listingId": tx.Listing.ID,
		"receiptId": receiptID,
		"fee":       tx.Fee,
	})

	e.notifier.UnlockReceipt(ctx, tx.Payer, tx.Listing, tx.Fee, receiptID)

	e.emit(Outcome{
		TxID:           tx.ID,
		ListingID:      tx.Listing.ID,
		State:          models.TxSucceeded,
		ReceiptID:      receiptID,
		RefreshedPayer: refreshed,
	})
}

// fail re-arms the transaction for another attempt. The lease stays held so
// no concurrent duplicate can slip in between attempts; TTL expiry reclaims
// it if the payer walks away.
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

	e.logger.Warn("unlock attempt failed", map[string]interface{}{
		"txId":      tx.ID,
		"listingId": tx.Listing.ID,
		"errorCode": string(code),
		"error":     cause.Error(),
	})

	e.emit(Outcome{TxID: tx.ID, ListingID: tx.Listing.ID, State: models.TxFailed, Err: cause})
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
