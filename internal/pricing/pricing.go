// internal/pricing/pricing.go
package pricing

import (
	"masqanicore/internal/common/config"
	"masqanicore/internal/models"
)

// UnlockTable maps a unit classification to the contact-unlock charge. The
// table is injected from configuration, never hardcoded at call sites.
type UnlockTable struct {
	Standard int64
	Airbnb   int64
	Business int64
}

// Fee returns the unlock charge for the unit type. Airbnb and BusinessHouse
// are the only special cases; everything else pays the standard rate.
func (t UnlockTable) Fee(unit models.UnitType) int64 {
	switch unit {
	case models.UnitAirbnb:
		return t.Airbnb
	case models.UnitBusinessHouse:
		return t.Business
	default:
		return t.Standard
	}
}

// ListingTable maps a unit classification to the publication charge. It is
// independent of the unlock table and must not be conflated with it.
type ListingTable struct {
	Standard      int64
	AirbnbMonthly int64
	Business      int64
}

// Fee returns the listing-activation charge for the unit type.
func (t ListingTable) Fee(unit models.UnitType) int64 {
	switch unit {
	case models.UnitAirbnb:
		return t.AirbnbMonthly
	case models.UnitBusinessHouse:
		return t.Business
	default:
		return t.Standard
	}
}

// UnlockTableFromConfig builds the unlock fee table from loaded config.
func UnlockTableFromConfig(c config.UnlockFees) UnlockTable {
	return UnlockTable{
		Standard: c.Standard,
		Airbnb:   c.Airbnb,
		Business: c.Business,
	}
}

// ListingTableFromConfig builds the listing fee table from loaded config.
func ListingTableFromConfig(c config.ListingFees) ListingTable {
	return ListingTable{
		Standard:      c.Standard,
		AirbnbMonthly: c.AirbnbMonthly,
		Business:      c.Business,
	}
}
