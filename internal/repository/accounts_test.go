// internal/repository/accounts_test.go
package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "masqanicore/internal/common/errors"
	"masqanicore/internal/common/logger"
	"masqanicore/internal/models"
)

func newTestDirectory(t *testing.T) (*AccountDirectory, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewAccountDirectory(db, logger.NewTestLogger(t)), mock
}

func accountRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "name", "phone", "email", "role", "unlocked_listings", "favorites",
	})
}

func TestGetProfileChecksPartitionsInOrder(t *testing.T) {
	dir, mock := newTestDirectory(t)

	// Absent in landlords and tenants, found in the legacy users table.
	mock.ExpectQuery(`SELECT (.+) FROM landlords WHERE email = \$1 OR id = \$1`).
		WithArgs("old@example.com").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`SELECT (.+) FROM tenants WHERE email = \$1 OR id = \$1`).
		WithArgs("old@example.com").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`SELECT (.+) FROM users WHERE email = \$1 OR id = \$1`).
		WithArgs("old@example.com").
		WillReturnRows(accountRows().AddRow(
			"u-1", "Old User", "0712345678", "old@example.com", "TENANT",
			"{l-1}", "{}",
		))

	acct, err := dir.GetProfile(context.Background(), "old@example.com")
	require.NoError(t, err)
	require.NotNil(t, acct)
	assert.Equal(t, "u-1", acct.ID)
	assert.Equal(t, models.RoleTenant, acct.Role)
	assert.Equal(t, []string{"l-1"}, acct.UnlockedListings)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetProfileFirstHitWins(t *testing.T) {
	dir, mock := newTestDirectory(t)

	// A landlord row satisfies the lookup; tenants and users are never queried.
	mock.ExpectQuery(`SELECT (.+) FROM landlords WHERE email = \$1 OR id = \$1`).
		WithArgs("owner@example.com").
		WillReturnRows(accountRows().AddRow(
			"ll-1", "Owner", "0722000000", "owner@example.com", "LANDLORD",
			"{}", "{}",
		))

	acct, err := dir.GetProfile(context.Background(), "owner@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.RoleLandlord, acct.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetProfileAbsentReturnsNil(t *testing.T) {
	dir, mock := newTestDirectory(t)

	for _, table := range []string{"landlords", "tenants", "users"} {
		mock.ExpectQuery(`SELECT (.+) FROM ` + table).
			WithArgs("ghost@example.com").
			WillReturnError(sql.ErrNoRows)
	}

	acct, err := dir.GetProfile(context.Background(), "ghost@example.com")
	require.NoError(t, err)
	assert.Nil(t, acct)
}

func TestGetProfileTransportErrorIsConnectivity(t *testing.T) {
	dir, mock := newTestDirectory(t)

	mock.ExpectQuery(`SELECT (.+) FROM landlords`).
		WithArgs("x").
		WillReturnError(errors.New("connection refused"))

	_, err := dir.GetProfile(context.Background(), "x")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeConnectivity, apperrors.CodeOf(err))
}

func TestSaveProfileRequiresIdentifier(t *testing.T) {
	dir, _ := newTestDirectory(t)

	err := dir.SaveProfile(context.Background(), &models.Account{Role: models.RoleTenant})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeAuthRequired, apperrors.CodeOf(err))

	err = dir.SaveProfile(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeAuthRequired, apperrors.CodeOf(err))
}

func TestSaveProfileUpsertsIntoRolePartition(t *testing.T) {
	dir, mock := newTestDirectory(t)

	mock.ExpectExec(`INSERT INTO tenants (.+) ON CONFLICT \(email\) DO UPDATE`).
		WithArgs("t-1", "Tenant", "0712345678", "t@example.com", "TENANT",
			sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := dir.SaveProfile(context.Background(), &models.Account{
		ID:    "t-1",
		Name:  "Tenant",
		Phone: "0712345678",
		Email: "t@example.com",
		Role:  models.RoleTenant,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveProfileKeysByIDWhenEmailMissing(t *testing.T) {
	dir, mock := newTestDirectory(t)

	mock.ExpectExec(`INSERT INTO landlords (.+) ON CONFLICT \(id\) DO UPDATE`).
		WithArgs("ll-1", "Owner", "0722000000", "", "LANDLORD",
			sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := dir.SaveProfile(context.Background(), &models.Account{
		ID:    "ll-1",
		Name:  "Owner",
		Phone: "0722000000",
		Role:  models.RoleLandlord,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUnlockListingAppendsOnce(t *testing.T) {
	dir, mock := newTestDirectory(t)

	mock.ExpectQuery(`SELECT (.+) FROM landlords`).
		WithArgs("t@example.com").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`SELECT (.+) FROM tenants`).
		WithArgs("t@example.com").
		WillReturnRows(accountRows().AddRow(
			"t-1", "Tenant", "0712345678", "t@example.com", "TENANT",
			"{l-other}", "{}",
		))
	mock.ExpectExec(`UPDATE tenants SET unlocked_listings = array_append`).
		WithArgs("t@example.com", "l-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := dir.UnlockListing(context.Background(), "t@example.com", "l-1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUnlockListingIdempotentWhenAlreadyHeld(t *testing.T) {
	dir, mock := newTestDirectory(t)

	mock.ExpectQuery(`SELECT (.+) FROM landlords`).
		WithArgs("t@example.com").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`SELECT (.+) FROM tenants`).
		WithArgs("t@example.com").
		WillReturnRows(accountRows().AddRow(
			"t-1", "Tenant", "0712345678", "t@example.com", "TENANT",
			"{l-1}", "{}",
		))

	// No UPDATE is issued; the unlock is already present.
	err := dir.UnlockListing(context.Background(), "t@example.com", "l-1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUnlockListingUnknownAccount(t *testing.T) {
	dir, mock := newTestDirectory(t)

	for _, table := range []string{"landlords", "tenants", "users"} {
		mock.ExpectQuery(`SELECT (.+) FROM ` + table).
			WithArgs("ghost").
			WillReturnError(sql.ErrNoRows)
	}

	err := dir.UnlockListing(context.Background(), "ghost", "l-1")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.CodeOf(err))
}

func TestUnlockListingWriteFailure(t *testing.T) {
	dir, mock := newTestDirectory(t)

	mock.ExpectQuery(`SELECT (.+) FROM landlords`).
		WithArgs("t@example.com").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`SELECT (.+) FROM tenants`).
		WithArgs("t@example.com").
		WillReturnRows(accountRows().AddRow(
			"t-1", "Tenant", "0712345678", "t@example.com", "TENANT",
			"{}", "{}",
		))
	mock.ExpectExec(`UPDATE tenants SET unlocked_listings`).
		WithArgs("t@example.com", "l-1").
		WillReturnError(errors.New("deadlock detected"))

	err := dir.UnlockListing(context.Background(), "t@example.com", "l-1")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeWriteFailed, apperrors.CodeOf(err))
}
