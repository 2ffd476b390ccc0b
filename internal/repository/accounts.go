// internal/repository/accounts.go
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	apperrors "masqanicore/internal/common/errors"
	"masqanicore/internal/common/logger"
	"masqanicore/internal/models"
)

// accountPartitions is the fixed lookup order: landlord partition, tenant
// partition, then the legacy unpartitioned store. First hit wins, no merge.
// Post-signup profile verification depends on this exact order.
var accountPartitions = []string{"landlords", "tenants", "users"}

// AccountDirectory owns user profiles on Postgres, partitioned by role.
type AccountDirectory struct {
	db     *sql.DB
	logger logger.Logger
}

func NewAccountDirectory(db *sql.DB, log logger.Logger) *AccountDirectory {
	return &AccountDirectory{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "accounts"}),
	}
}

func partitionFor(role models.Role) string {
	if role == models.RoleLandlord {
		return "landlords"
	}
	return "tenants"
}

// GetProfile looks the identifier (email or id) up across the partitions in
// order and returns the first match, or nil when absent.
func (d *AccountDirectory) GetProfile(ctx context.Context, identifier string) (*models.Account, error) {
	acct, _, err := d.findAccount(ctx, identifier)
	return acct, err
}

func (d *AccountDirectory) findAccount(ctx context.Context, identifier string) (*models.Account, string, error) {
	for _, table := range accountPartitions {
		query := fmt.Sprintf(
			`SELECT id, name, phone, email, role, unlocked_listings, favorites FROM %s WHERE email = $1 OR id = $1`,
			table,
		)

		var acct models.Account
		err := d.db.QueryRowContext(ctx, query, identifier).Scan(
			&acct.ID, &acct.Name, &acct.Phone, &acct.Email, &acct.Role,
			pq.Array(&acct.UnlockedListings), pq.Array(&acct.Favorites),
		)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return nil, "", apperrors.NewConnectivityError(err)
		}
		return &acct, table, nil
	}
	return nil, "", nil
}

// SaveProfile upserts the account into the partition matching its role,
// keyed by email when present, else id. Merge semantics: empty incoming
// fields preserve what is already stored.
func (d *AccountDirectory) SaveProfile(ctx context.Context, account *models.Account) error {
	if account == nil || account.Identifier() == "" {
		return apperrors.NewAuthRequiredError("profile save requires an identified account")
	}

	table := partitionFor(account.Role)
	conflictKey := "email"
	if account.Email == "" {
		conflictKey = "id"
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, name, phone, email, role, unlocked_listings, favorites, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (%s) DO UPDATE SET
			name = COALESCE(NULLIF(EXCLUDED.name, ''), %s.name),
			phone = COALESCE(NULLIF(EXCLUDED.phone, ''), %s.phone),
			unlocked_listings = CASE
				WHEN cardinality(EXCLUDED.unlocked_listings) > 0 THEN EXCLUDED.unlocked_listings
				ELSE %s.unlocked_listings
			END,
			favorites = CASE
				WHEN cardinality(EXCLUDED.favorites) > 0 THEN EXCLUDED.favorites
				ELSE %s.favorites
			END,
			updated_at = NOW()`,
		table, conflictKey, table, table, table, table,
	)

	_, err := d.db.ExecContext(ctx, query,
		account.ID, account.Name, account.Phone, account.Email, account.Role,
		pq.Array(account.UnlockedListings), pq.Array(account.Favorites),
	)
	if err != nil {
		return apperrors.NewWriteError("profile", err)
	}
	return nil
}

// UnlockListing inserts the listing id into the account's unlock set. The
// insert is idempotent: the current set is re-read immediately before the
// write, and the guarded UPDATE cannot append a duplicate.
func (d *AccountDirectory) UnlockListing(ctx context.Context, identifier, listingID string) error {
	acct, table, err := d.findAccount(ctx, identifier)
	if err != nil {
		return err
	}
	if acct == nil {
		return apperrors.NewNotFoundError("account", identifier)
	}
	if acct.HasUnlocked(listingID) {
		return nil
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET unlocked_listings = array_append(unlocked_listings, $2), updated_at = NOW()
		WHERE (email = $1 OR id = $1) AND NOT ($2 = ANY(unlocked_listings))`,
		table,
	)

	if _, err := d.db.ExecContext(ctx, query, identifier, listingID); err != nil {
		return apperrors.NewWriteError("unlock set", err)
	}

	d.logger.Info("listing unlocked", map[string]interface{}{
		"identifier": identifier,
		"listingId":  listingID,
	})
	return nil
}
