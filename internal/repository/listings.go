// internal/repository/listings.go
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	apperrors "masqanicore/internal/common/errors"
	"masqanicore/internal/common/logger"
	"masqanicore/internal/models"
)

const (
	listingsCacheKey = "listings:verified:snapshot"
	listingsCacheTTL = 24 * time.Hour
)

const listingColumns = `id, landlord_id, title, description, unit_type, price, deposit,
	price_period, location_name, lat, lng, distance_from_town, photos, is_vacant,
	landlord_name, landlord_phone, landlord_email, is_verified, reviews,
	date_listed, subscription_expiry, has_parking, is_pets_friendly`

// ListingRepository owns listing records on Postgres, with a Redis snapshot of
// the verified set kept as a degraded-mode fallback for browse.
type ListingRepository struct {
	db     *sql.DB
	cache  redis.Cmdable
	logger logger.Logger
}

func NewListingRepository(db *sql.DB, cache redis.Cmdable, log logger.Logger) *ListingRepository {
	return &ListingRepository{
		db:     db,
		cache:  cache,
		logger: log.WithFields(map[string]interface{}{"component": "listings"}),
	}
}

// GetListings returns all verified listings, newest first, and refreshes the
// browse snapshot in Redis on success. Transport failures surface as
// connectivity errors so callers can decide to fall back.
func (r *ListingRepository) GetListings(ctx context.Context) ([]models.Listing, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE is_verified = true ORDER BY date_listed DESC`)
	if err != nil {
		return nil, apperrors.NewConnectivityError(err)
	}
	defer rows.Close()

	var listings []models.Listing
	for rows.Next() {
		listing, err := scanListing(rows)
		if err != nil {
			return nil, apperrors.NewConnectivityError(err)
		}
		listings = append(listings, *listing)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewConnectivityError(err)
	}

	r.refreshSnapshot(ctx, listings)
	return listings, nil
}

// BrowseListings is GetListings with the cache fallback applied: if the live
// read fails it serves the last Redis snapshot instead of erroring. Only when
// both sources fail does the connectivity error reach the caller.
func (r *ListingRepository) BrowseListings(ctx context.Context) ([]models.Listing, error) {
	listings, err := r.GetListings(ctx)
	if err == nil {
		return listings, nil
	}

	cached, cacheErr := r.CachedListings(ctx)
	if cacheErr != nil {
		r.logger.Error("browse fallback missed", map[string]interface{}{
			"liveError":  err.Error(),
			"cacheError": cacheErr.Error(),
		})
		return nil, err
	}

	r.logger.Warn("serving listings from snapshot", map[string]interface{}{
		"count": len(cached),
		"error": err.Error(),
	})
	return cached, nil
}

// CachedListings returns the last persisted browse snapshot.
func (r *ListingRepository) CachedListings(ctx context.Context) ([]models.Listing, error) {
	payload, err := r.cache.Get(ctx, listingsCacheKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.NewNotFoundError("listings snapshot", listingsCacheKey)
		}
		return nil, apperrors.NewConnectivityError(err)
	}

	var listings []models.Listing
	if err := json.Unmarshal(payload, &listings); err != nil {
		return nil, apperrors.NewConnectivityError(err)
	}
	return listings, nil
}

func (r *ListingRepository) refreshSnapshot(ctx context.Context, listings []models.Listing) {
	payload, err := json.Marshal(listings)
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, listingsCacheKey, payload, listingsCacheTTL).Err(); err != nil {
		r.logger.Warn("snapshot refresh failed", map[string]interface{}{"error": err.Error()})
	}
}

// GetListing returns a single listing by id.
func (r *ListingRepository) GetListing(ctx context.Context, id string) (*models.Listing, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE id = $1`, id)

	listing, err := scanListing(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("listing", id)
		}
		return nil, apperrors.NewConnectivityError(err)
	}
	return listing, nil
}

// CreateListing inserts a new listing and returns its id. A missing id is
// assigned here; the caller owns every other field.
func (r *ListingRepository) CreateListing(ctx context.Context, listing *models.Listing) (string, error) {
	if listing.LandlordID == "" {
		return "", apperrors.NewAuthRequiredError("listing create requires a landlord id")
	}
	if listing.ID == "" {
		listing.ID = uuid.NewString()
	}

	reviews, err := json.Marshal(listing.Reviews)
	if err != nil {
		return "", apperrors.NewWriteError("listing", err)
	}

	var expiry sql.NullTime
	if listing.SubscriptionExpiry != nil {
		expiry = sql.NullTime{Time: *listing.SubscriptionExpiry, Valid: true}
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO listings (id, landlord_id, title, description, unit_type, price, deposit,
			price_period, location_name, lat, lng, distance_from_town, photos, is_vacant,
			landlord_name, landlord_phone, landlord_email, is_verified, reviews,
			date_listed, subscription_expiry, has_parking, is_pets_friendly)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21, $22, $23)`,
		listing.ID, listing.LandlordID, listing.Title, listing.Description,
		listing.UnitType, listing.Price, listing.Deposit, listing.PricePeriod,
		listing.LocationName, listing.Coordinates.Lat, listing.Coordinates.Lng,
		listing.DistanceFromTown, pq.Array(listing.Photos), listing.IsVacant,
		listing.LandlordName, listing.LandlordPhone, listing.LandlordEmail,
		listing.IsVerified, reviews, listing.DateListed, expiry,
		listing.HasParking, listing.IsPetsFriendly,
	)
	if err != nil {
		return "", apperrors.NewWriteError("listing", err)
	}

	r.logger.Info("listing created", map[string]interface{}{
		"listingId":  listing.ID,
		"landlordId": listing.LandlordID,
		"unitType":   string(listing.UnitType),
	})
	return listing.ID, nil
}

// ListingPatch carries a partial update. Nil fields are left untouched.
type ListingPatch struct {
	Title       *string
	Description *string
	Price       *int64
	Deposit     *int64
	IsVacant    *bool
	IsVerified  *bool
	Photos      []string
}

// UpdateListing applies a partial update to an existing listing.
func (r *ListingRepository) UpdateListing(ctx context.Context, id string, patch ListingPatch) error {
	set := make([]string, 0, 8)
	args := make([]interface{}, 0, 8)
	add := func(column string, value interface{}) {
		args = append(args, value)
		set = append(set, column)
	}

	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.Description != nil {
		add("description", *patch.Description)
	}
	if patch.Price != nil {
		add("price", *patch.Price)
	}
	if patch.Deposit != nil {
		add("deposit", *patch.Deposit)
	}
	if patch.IsVacant != nil {
		add("is_vacant", *patch.IsVacant)
	}
	if patch.IsVerified != nil {
		add("is_verified", *patch.IsVerified)
	}
	if patch.Photos != nil {
		add("photos", pq.Array(patch.Photos))
	}
	if len(set) == 0 {
		return nil
	}

	query := "UPDATE listings SET "
	for i, column := range set {
		if i > 0 {
			query += ", "
		}
		query += fmt.Sprintf("%s = $%d", column, i+1)
	}
	query += fmt.Sprintf(" WHERE id = $%d", len(set)+1)
	args = append(args, id)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewWriteError("listing", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return apperrors.NewNotFoundError("listing", id)
	}
	return nil
}

// AppendReview appends a review to the listing's review log. Reviews are
// append only; there is no edit or delete path.
func (r *ListingRepository) AppendReview(ctx context.Context, listingID string, review models.Review) error {
	if review.ID == "" {
		review.ID = uuid.NewString()
	}
	if review.Date == "" {
		review.Date = time.Now().UTC().Format(time.RFC3339)
	}

	payload, err := json.Marshal([]models.Review{review})
	if err != nil {
		return apperrors.NewWriteError("review", err)
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE listings SET reviews = reviews || $2::jsonb WHERE id = $1`,
		listingID, payload,
	)
	if err != nil {
		return apperrors.NewWriteError("review", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return apperrors.NewNotFoundError("listing", listingID)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanListing(row rowScanner) (*models.Listing, error) {
	var (
		listing models.Listing
		reviews []byte
		expiry  sql.NullTime
	)

	err := row.Scan(
		&listing.ID, &listing.LandlordID, &listing.Title, &listing.Description,
		&listing.UnitType, &listing.Price, &listing.Deposit, &listing.PricePeriod,
		&listing.LocationName, &listing.Coordinates.Lat, &listing.Coordinates.Lng,
		&listing.DistanceFromTown, pq.Array(&listing.Photos), &listing.IsVacant,
		&listing.LandlordName, &listing.LandlordPhone, &listing.LandlordEmail,
		&listing.IsVerified, &reviews, &listing.DateListed, &expiry,
		&listing.HasParking, &listing.IsPetsFriendly,
	)
	if err != nil {
		return nil, err
	}

	if len(reviews) > 0 {
		if err := json.Unmarshal(reviews, &listing.Reviews); err != nil {
			return nil, err
		}
	}
	if expiry.Valid {
		t := expiry.Time
		listing.SubscriptionExpiry = &t
	}
	return &listing, nil
}
