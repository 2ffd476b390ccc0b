// internal/pricing/pricing_test.go
package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"masqanicore/internal/common/config"
	"masqanicore/internal/models"
)

func TestUnlockTableFee(t *testing.T) {
	table := UnlockTable{Standard: 50, Airbnb: 100, Business: 100}

	tests := []struct {
		name string
		unit models.UnitType
		want int64
	}{
		{"bedsitter pays standard", models.UnitBedsitter, 50},
		{"one bedroom pays standard", models.UnitOneBedroom, 50},
		{"two bedroom pays standard", models.UnitTwoBedroom, 50},
		{"three bedroom pays standard", models.UnitThreeBedroom, 50},
		{"four bedroom pays standard", models.UnitFourBedroom, 50},
		{"own compound pays standard", models.UnitOwnCompound, 50},
		{"airbnb pays premium", models.UnitAirbnb, 100},
		{"business house pays premium", models.UnitBusinessHouse, 100},
		{"unknown unit pays standard", models.UnitType("Mansion"), 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, table.Fee(tt.unit))
		})
	}
}

func TestListingTableFee(t *testing.T) {
	table := ListingTable{Standard: 100, AirbnbMonthly: 1000, Business: 150}

	tests := []struct {
		name string
		unit models.UnitType
		want int64
	}{
		{"bedsitter pays standard", models.UnitBedsitter, 100},
		{"own compound pays standard", models.UnitOwnCompound, 100},
		{"airbnb pays monthly subscription", models.UnitAirbnb, 1000},
		{"business house pays business rate", models.UnitBusinessHouse, 150},
		{"unknown unit pays standard", models.UnitType("Mansion"), 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, table.Fee(tt.unit))
		})
	}
}

func TestTablesAreIndependent(t *testing.T) {
	unlock := UnlockTableFromConfig(config.UnlockFees{Standard: 50, Airbnb: 100, Business: 100})
	listing := ListingTableFromConfig(config.ListingFees{Standard: 100, AirbnbMonthly: 1000, Business: 150})

	// Same unit type, different charge per table.
	assert.Equal(t, int64(100), unlock.Fee(models.UnitAirbnb))
	assert.Equal(t, int64(1000), listing.Fee(models.UnitAirbnb))
	assert.Equal(t, int64(100), unlock.Fee(models.UnitBusinessHouse))
	assert.Equal(t, int64(150), listing.Fee(models.UnitBusinessHouse))
}
