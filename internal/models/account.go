// internal/models/account.go
package models

// Role partitions accounts. Role is immutable after account creation; there
// is deliberately no migration path from TENANT to LANDLORD.
type Role string

const (
	RoleTenant   Role = "TENANT"
	RoleLandlord Role = "LANDLORD"
)

// Account is a user profile. UnlockedListings only grows and holds each
// listing id at most once.
type Account struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Phone            string   `json:"phone"`
	Email            string   `json:"email"`
	Role             Role     `json:"role"`
	UnlockedListings []string `json:"unlockedListings"`
	Favorites        []string `json:"favorites,omitempty"`
}

// Identifier returns the storage key: email if present, else id.
func (a *Account) Identifier() string {
	if a.Email != "" {
		return a.Email
	}
	return a.ID
}

// HasUnlocked reports whether the account already holds the unlock for the
// given listing.
func (a *Account) HasUnlocked(listingID string) bool {
	for _, id := range a.UnlockedListings {
		if id == listingID {
			return true
		}
	}
	return false
}

// Tenant is the tagged variant of an Account with role TENANT. Only a Tenant
// can open unlock transactions.
type Tenant struct {
	*Account
}

// Landlord is the tagged variant of an Account with role LANDLORD.
type Landlord struct {
	*Account
}

// AsTenant returns the tenant variant, or false when the role does not match.
func (a *Account) AsTenant() (Tenant, bool) {
	if a.Role != RoleTenant {
		return Tenant{}, false
	}
	return Tenant{Account: a}, true
}

// AsLandlord returns the landlord variant, or false when the role does not match.
func (a *Account) AsLandlord() (Landlord, bool) {
	if a.Role != RoleLandlord {
		return Landlord{}, false
	}
	return Landlord{Account: a}, true
}

// Owns reports whether the landlord owns the given listing.
func (l Landlord) Owns(listing *Listing) bool {
	return listing != nil && listing.LandlordID == l.ID
}
