// internal/models/listing.go
package models

import (
	"fmt"
	"time"
)

// UnitType classifies a rental unit. Wire values match the legacy dataset.
type UnitType string

const (
	UnitBedsitter     UnitType = "Bedsitter"
	UnitOneBedroom    UnitType = "1 Bedroom"
	UnitTwoBedroom    UnitType = "2 Bedroom"
	UnitThreeBedroom  UnitType = "3 Bedroom"
	UnitFourBedroom   UnitType = "4 Bedroom"
	UnitOwnCompound   UnitType = "Own Compound"
	UnitAirbnb        UnitType = "Airbnb"
	UnitBusinessHouse UnitType = "Nyumba ya Biashara"
)

// PricePeriod is the billing cadence of a listing.
type PricePeriod string

const (
	PeriodMonthly PricePeriod = "monthly"
	PeriodNightly PricePeriod = "nightly"
)

// MinPublishPhotos is the minimum gallery size required before a listing can
// be activated.
const MinPublishPhotos = 8

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Review is an append-only tenant review. Reviews belong to the listing once
// posted; the author keeps only the id/name reference recorded here.
type Review struct {
	ID       string  `json:"id"`
	UserID   string  `json:"userId"`
	UserName string  `json:"userName"`
	Rating   float64 `json:"rating"`
	Comment  string  `json:"comment"`
	Date     string  `json:"date"`
}

// Listing is a rental unit record. Title and the landlord contact fields are
// PII gated by unlock state and must never reach the public projection.
type Listing struct {
	ID               string       `json:"id"`
	LandlordID       string       `json:"landlordId"`
	Title            string       `json:"title"`
	Description      string       `json:"description"`
	UnitType         UnitType     `json:"unitType"`
	Price            int64        `json:"price"`
	Deposit          int64        `json:"deposit"`
	PricePeriod      PricePeriod  `json:"pricePeriod"`
	LocationName     string       `json:"locationName"`
	Coordinates      Coordinates  `json:"coordinates"`
	DistanceFromTown float64      `json:"distanceFromTown"`
	Photos           []string     `json:"photos"`
	IsVacant         bool         `json:"isVacant"`
	LandlordName     string       `json:"landlordName"`
	LandlordPhone    string       `json:"landlordPhone"`
	LandlordEmail    string       `json:"landlordEmail"`
	IsVerified       bool         `json:"isVerified"`
	Reviews          []Review     `json:"reviews"`
	DateListed       string       `json:"dateListed"`
	SubscriptionExpiry *time.Time `json:"subscriptionExpiry,omitempty"`
	HasParking       bool         `json:"hasParking"`
	IsPetsFriendly   bool         `json:"isPetsFriendly"`
}

// PublicTitle is the projection shown before unlock.
func (l *Listing) PublicTitle() string {
	return fmt.Sprintf("%s in %s", l.UnitType, l.LocationName)
}

// SubscriptionExpired reports whether an Airbnb listing's paid window has
// lapsed. Non-Airbnb listings never expire.
func (l *Listing) SubscriptionExpired(now time.Time) bool {
	if l.UnitType != UnitAirbnb || l.SubscriptionExpiry == nil {
		return false
	}
	return l.SubscriptionExpiry.Before(now)
}

// VisibleTo reports whether the listing should appear in results for the
// given viewer. Expired Airbnb listings are hidden from tenants but stay
// visible to their own landlord.
func (l *Listing) VisibleTo(viewer *Account, now time.Time) bool {
	if !l.SubscriptionExpired(now) {
		return true
	}
	return viewer != nil && viewer.Role == RoleLandlord && viewer.ID == l.LandlordID
}

// CanSeeContact reports whether the viewer may see the landlord contact
// fields and the true title. Landlords see their own listings implicitly, at
// zero cost; tenants must hold the unlock.
func (l *Listing) CanSeeContact(viewer *Account) bool {
	if viewer == nil {
		return false
	}
	if viewer.Role == RoleLandlord && viewer.ID == l.LandlordID {
		return true
	}
	return viewer.HasUnlocked(l.ID)
}

// PublicListing is the tenant-facing projection with PII stripped.
type PublicListing struct {
	ID               string      `json:"id"`
	Title            string      `json:"title"`
	Description      string      `json:"description"`
	UnitType         UnitType    `json:"unitType"`
	Price            int64       `json:"price"`
	Deposit          int64       `json:"deposit"`
	PricePeriod      PricePeriod `json:"pricePeriod"`
	LocationName     string      `json:"locationName"`
	Coordinates      Coordinates `json:"coordinates"`
	DistanceFromTown float64     `json:"distanceFromTown"`
	Photos           []string    `json:"photos"`
	IsVacant         bool        `json:"isVacant"`
	IsVerified       bool        `json:"isVerified"`
	Reviews          []Review    `json:"reviews"`
	DateListed       string      `json:"dateListed"`
	HasParking       bool        `json:"hasParking"`
	IsPetsFriendly   bool        `json:"isPetsFriendly"`
}

// Public returns the PII-stripped projection of the listing.
func (l *Listing) Public() PublicListing {
	return PublicListing{
		ID:               l.ID,
		Title:            l.PublicTitle(),
		Description:      l.Description,
		UnitType:         l.UnitType,
		Price:            l.Price,
		Deposit:          l.Deposit,
		PricePeriod:      l.PricePeriod,
		LocationName:     l.LocationName,
		Coordinates:      l.Coordinates,
		DistanceFromTown: l.DistanceFromTown,
		Photos:           l.Photos,
		IsVacant:         l.IsVacant,
		IsVerified:       l.IsVerified,
		Reviews:          l.Reviews,
		DateListed:       l.DateListed,
		HasParking:       l.HasParking,
		IsPetsFriendly:   l.IsPetsFriendly,
	}
}
