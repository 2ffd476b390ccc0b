// internal/engine/activation/handler_test.go
package activation

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "masqanicore/internal/common/errors"
	"masqanicore/internal/common/logger"
	"masqanicore/internal/engine/inflight"
	"masqanicore/internal/models"
	"masqanicore/internal/payment"
	"masqanicore/internal/pricing"
)

type fakeCreator struct {
	created atomic.Int32
	last    *models.Listing
	err     error
}

func (f *fakeCreator) CreateListing(ctx context.Context, listing *models.Listing) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.created.Add(1)
	f.last = listing
	return listing.ID, nil
}

type fakeUploader struct {
	calls atomic.Int32
	err   error
}

func (f *fakeUploader) UploadDataURI(ctx context.Context, path, dataURI string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	n := f.calls.Add(1)
	return fmt.Sprintf("https://cdn.example.com/%s-%d.jpg", path, n), nil
}

func testLandlord() *models.Account {
	return &models.Account{
		ID:    "ll-1",
		Name:  "Owner",
		Phone: "0722000000",
		Email: "owner@example.com",
		Role:  models.RoleLandlord,
	}
}

func remotePhotos(n int) []string {
	photos := make([]string, n)
	for i := range photos {
		photos[i] = fmt.Sprintf("https://cdn.example.com/photo-%d.jpg", i)
	}
	return photos
}

func validDraft() *models.Listing {
	return &models.Listing{
		Title:        "Plot 12, Gate B",
		Description:  "Spacious unit with reliable water",
		UnitType:     models.UnitBedsitter,
		Price:        8000,
		Deposit:      8000,
		PricePeriod:  models.PeriodMonthly,
		LocationName: "Ruiru",
		Photos:       remotePhotos(8),
	}
}

func newTestEngine(t *testing.T, creator *fakeCreator, uploader *fakeUploader, confirm func(payment.Request) bool) (*Engine, *inflight.Registry) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	leases := inflight.NewRegistry(client, time.Minute, logger.NewTestLogger(t))

	gateway := &payment.Simulator{Latency: 0, OutcomeFn: confirm}
	fees := pricing.ListingTable{Standard: 100, AirbnbMonthly: 1000, Business: 150}

	engine := NewEngine(
		Config{GatewayTimeout: 5 * time.Second, AirbnbWindow: 30 * 24 * time.Hour, OutcomeBuffer: 4},
		creator, uploader, fees, gateway, leases, nil, nil, logger.NewTestLogger(t),
	)
	return engine, leases
}

func waitOutcome(t *testing.T, e *Engine) Outcome {
	t.Helper()
	select {
	case outcome := <-e.Outcomes():
		return outcome
	case <-time.After(5 * time.Second):
		t.Fatal("no outcome emitted")
		return Outcome{}
	}
}

func TestStartRequiresSession(t *testing.T) {
	e, _ := newTestEngine(t, &fakeCreator{}, &fakeUploader{}, nil)

	_, err := e.Start(context.Background(), nil, validDraft())
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeAuthRequired, apperrors.CodeOf(err))
}

func TestStartRejectsTenants(t *testing.T) {
	e, _ := newTestEngine(t, &fakeCreator{}, &fakeUploader{}, nil)

	tenant := &models.Account{ID: "t-1", Email: "t@example.com", Role: models.RoleTenant}
	_, err := e.Start(context.Background(), tenant, validDraft())
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeRoleNotEligible, apperrors.CodeOf(err))
}

func TestStartValidatesDraft(t *testing.T) {
	mutations := []struct {
		name   string
		mutate func(*models.Listing)
	}{
		{"missing title", func(l *models.Listing) { l.Title = "" }},
		{"short description", func(l *models.Listing) { l.Description = "tiny" }},
		{"unknown unit type", func(l *models.Listing) { l.UnitType = "Castle" }},
		{"zero price", func(l *models.Listing) { l.Price = 0 }},
		{"bad price period", func(l *models.Listing) { l.PricePeriod = "weekly" }},
		{"missing location", func(l *models.Listing) { l.LocationName = "" }},
		{"seven photos", func(l *models.Listing) { l.Photos = remotePhotos(7) }},
		{"no photos", func(l *models.Listing) { l.Photos = nil }},
	}

	for _, tt := range mutations {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newTestEngine(t, &fakeCreator{}, &fakeUploader{}, nil)
			draft := validDraft()
			tt.mutate(draft)

			_, err := e.Start(context.Background(), testLandlord(), draft)
			require.Error(t, err)
			assert.Equal(t, apperrors.ErrCodeValidationFailed, apperrors.CodeOf(err))
		})
	}
}

func TestStartQuotesFeeByUnitType(t *testing.T) {
	tests := []struct {
		unit models.UnitType
		want int64
	}{
		{models.UnitBedsitter, 100},
		{models.UnitOwnCompound, 100},
		{models.UnitAirbnb, 1000},
		{models.UnitBusinessHouse, 150},
	}

	for _, tt := range tests {
		t.Run(string(tt.unit), func(t *testing.T) {
			e, _ := newTestEngine(t, &fakeCreator{}, &fakeUploader{}, nil)
			draft := validDraft()
			draft.UnitType = tt.unit
			if tt.unit == models.UnitAirbnb {
				draft.PricePeriod = models.PeriodNightly
			}

			tx, err := e.Start(context.Background(), testLandlord(), draft)
			require.NoError(t, err)
			assert.Equal(t, tt.want, tx.Fee)
		})
	}
}

func TestStartSerializesPerLandlord(t *testing.T) {
	e, _ := newTestEngine(t, &fakeCreator{}, &fakeUploader{}, nil)

	_, err := e.Start(context.Background(), testLandlord(), validDraft())
	require.NoError(t, err)

	_, err = e.Start(context.Background(), testLandlord(), validDraft())
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeConflict, apperrors.CodeOf(err))

	// A different landlord is an independent slot.
	other := &models.Account{ID: "ll-2", Email: "other@example.com", Role: models.RoleLandlord}
	_, err = e.Start(context.Background(), other, validDraft())
	require.NoError(t, err)
}

func TestUploadDraftPhotos(t *testing.T) {
	uploader := &fakeUploader{}
	e, _ := newTestEngine(t, &fakeCreator{}, uploader, nil)

	photos := []string{
		"https://cdn.example.com/existing.jpg",
		"data:image/jpeg;base64,/9j/4AAQSkZJRg==",
		"data:image/png;base64,iVBORw0KGgo=",
	}

	resolved, err := e.UploadDraftPhotos(context.Background(), "ll-1", photos)
	require.NoError(t, err)
	require.Len(t, resolved, 3)
	assert.Equal(t, "https://cdn.example.com/existing.jpg", resolved[0])
	assert.Contains(t, resolved[1], "https://cdn.example.com/")
	assert.Contains(t, resolved[2], "https://cdn.example.com/")
	assert.Equal(t, int32(2), uploader.calls.Load())
}

func TestUploadDraftPhotosSurfacesUploadError(t *testing.T) {
	uploader := &fakeUploader{err: apperrors.NewUploadError("p", assert.AnError)}
	e, _ := newTestEngine(t, &fakeCreator{}, uploader, nil)

	_, err := e.UploadDraftPhotos(context.Background(), "ll-1", []string{"data:image/jpeg;base64,xx"})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeUploadFailed, apperrors.CodeOf(err))
}

func TestConfirmedPaymentPublishesListing(t *testing.T) {
	creator := &fakeCreator{}
	e, _ := newTestEngine(t, creator, &fakeUploader{}, func(payment.Request) bool { return true })

	tx, err := e.Start(context.Background(), testLandlord(), validDraft())
	require.NoError(t, err)
	require.NoError(t, e.SubmitPhone(tx, "0722000000"))

	outcome := waitOutcome(t, e)
	assert.Equal(t, models.TxSucceeded, outcome.State)
	assert.NotEmpty(t, outcome.ListingID)
	assert.NotEmpty(t, outcome.ReceiptID)
	assert.Equal(t, int32(1), creator.created.Load())

	created := creator.last
	require.NotNil(t, created)
	assert.Equal(t, outcome.ListingID, created.ID)
	assert.Equal(t, "ll-1", created.LandlordID)
	assert.Equal(t, "Owner", created.LandlordName)
	assert.False(t, created.IsVerified, "new listings await manual verification")
	assert.NotEmpty(t, created.DateListed)
	assert.Nil(t, created.SubscriptionExpiry)
	assert.Equal(t, int64(8000), created.Deposit, "non-airbnb deposit is retained")
	assert.Equal(t, remotePhotos(8), created.Photos, "gallery URLs persist verbatim")
}

func TestAirbnbTermsAppliedAtPublish(t *testing.T) {
	creator := &fakeCreator{}
	e, _ := newTestEngine(t, creator, &fakeUploader{}, func(payment.Request) bool { return true })

	draft := validDraft()
	draft.UnitType = models.UnitAirbnb
	draft.PricePeriod = models.PeriodNightly
	draft.Deposit = 5000

	tx, err := e.Start(context.Background(), testLandlord(), draft)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), tx.Fee)
	require.NoError(t, e.SubmitPhone(tx, "0722000000"))

	outcome := waitOutcome(t, e)
	require.Equal(t, models.TxSucceeded, outcome.State)

	created := creator.last
	require.NotNil(t, created)
	assert.Zero(t, created.Deposit, "airbnb deposit is waived")
	require.NotNil(t, created.SubscriptionExpiry)
	expected := time.Now().Add(30 * 24 * time.Hour)
	assert.WithinDuration(t, expected, *created.SubscriptionExpiry, time.Minute)
}

func TestInlinePhotosBlockPublishAfterPayment(t *testing.T) {
	creator := &fakeCreator{}
	e, _ := newTestEngine(t, creator, &fakeUploader{}, func(payment.Request) bool { return true })

	draft := validDraft()
	draft.Photos[3] = "data:image/jpeg;base64,/9j/4AAQSkZJRg=="

	tx, err := e.Start(context.Background(), testLandlord(), draft)
	require.NoError(t, err)
	require.NoError(t, e.SubmitPhone(tx, "0722000000"))

	outcome := waitOutcome(t, e)
	assert.Equal(t, models.TxFailed, outcome.State)
	assert.Equal(t, apperrors.ErrCodeIncompleteUpload, apperrors.CodeOf(outcome.Err))
	assert.Equal(t, int32(0), creator.created.Load(), "no record may be written from an incomplete draft")
}

func TestDeclinedPaymentReArmsForRetry(t *testing.T) {
	var confirm atomic.Bool
	creator := &fakeCreator{}
	e, _ := newTestEngine(t, creator, &fakeUploader{},
		func(payment.Request) bool { return confirm.Load() })

	tx, err := e.Start(context.Background(), testLandlord(), validDraft())
	require.NoError(t, err)

	require.NoError(t, e.SubmitPhone(tx, "0722000000"))
	outcome := waitOutcome(t, e)
	assert.Equal(t, models.TxFailed, outcome.State)
	assert.Equal(t, apperrors.ErrCodePaymentFailed, apperrors.CodeOf(outcome.Err))
	assert.Equal(t, int32(0), creator.created.Load())

	confirm.Store(true)
	require.NoError(t, e.SubmitPhone(tx, "0722000000"))
	outcome = waitOutcome(t, e)
	assert.Equal(t, models.TxSucceeded, outcome.State)
	assert.Equal(t, int32(1), creator.created.Load())
}

func TestCreateFailureAfterConfirmationFailsTransaction(t *testing.T) {
	creator := &fakeCreator{err: apperrors.NewWriteError("listing", assert.AnError)}
	e, _ := newTestEngine(t, creator, &fakeUploader{}, func(payment.Request) bool { return true })

	tx, err := e.Start(context.Background(), testLandlord(), validDraft())
	require.NoError(t, err)
	require.NoError(t, e.SubmitPhone(tx, "0722000000"))

	outcome := waitOutcome(t, e)
	assert.Equal(t, models.TxFailed, outcome.State)
	assert.Equal(t, apperrors.ErrCodeWriteFailed, apperrors.CodeOf(outcome.Err))
}

func TestCancelBeforeProcessingFreesSlot(t *testing.T) {
	e, leases := newTestEngine(t, &fakeCreator{}, &fakeUploader{}, nil)

	landlord := testLandlord()
	tx, err := e.Start(context.Background(), landlord, validDraft())
	require.NoError(t, err)

	require.NoError(t, e.Cancel(tx))
	assert.Equal(t, models.TxCancelled, tx.State())

	outcome := waitOutcome(t, e)
	assert.Equal(t, models.TxCancelled, outcome.State)

	holder, err := leases.Holder(context.Background(), inflight.ActivationKey(landlord.Identifier()))
	require.NoError(t, err)
	assert.Empty(t, holder)
}
