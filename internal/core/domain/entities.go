package domain

import (
	"strings"
	"time"

	"github.com/samirrijal/localshop/internal/pkg/address"
)

// ShopStatus is the moderation state of a shop listing.
type ShopStatus string

const (
	ShopLive      ShopStatus = "live"
	ShopPending   ShopStatus = "pending"
	ShopSuspended ShopStatus = "suspended"
)

// Valid reports whether s is a known status.
func (s ShopStatus) Valid() bool {
	switch s {
	case ShopLive, ShopPending, ShopSuspended:
		return true
	}
	return false
}

// Address is the structured postal address of a shop.
type Address struct {
	Raw        string `json:"raw,omitempty"`
	Street     string `json:"street,omitempty"`
	Locality   string `json:"locality,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

// String assembles the canonical one-line address used for geocoding.
func (a Address) String() string {
	return address.AssembleAddressString(a.Raw, a.Street, a.Locality, a.City, a.State, a.PostalCode, a.Country)
}

// IsEmpty reports whether no part of the address is set.
func (a Address) IsEmpty() bool {
	return strings.TrimSpace(a.String()) == ""
}

// Shop is a business listing.
type Shop struct {
	ID          string     `json:"id"`
	OwnerID     string     `json:"owner_id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Category    string     `json:"category,omitempty"`
	CategoryID  string     `json:"category_id,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	Rating      float64    `json:"rating"`
	PriceRange  string     `json:"price_range,omitempty"` // "$", "$$", "$$$"
	PriceMin    float64    `json:"price_min,omitempty"`
	PriceMax    float64    `json:"price_max,omitempty"`
	Location    *GeoPoint  `json:"location,omitempty"`
	Address     Address    `json:"address"`
	CitySlug    string     `json:"city_slug,omitempty"`
	AreaSlug    string     `json:"area_slug,omitempty"`
	Status      ShopStatus `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ShopWithDistance is a search hit. Distance is in kilometres rounded to one
// decimal and is nil outside the proximity branch.
type ShopWithDistance struct {
	Shop
	Distance *float64 `json:"distance,omitempty"`
}

// AddressCandidate is one normalized geocoding result.
type AddressCandidate struct {
	Coordinates      GeoPoint `json:"coordinates"`
	FormattedAddress string   `json:"formatted_address"`
	Street           string   `json:"street,omitempty"`
	Locality         string   `json:"locality,omitempty"`
	City             string   `json:"city,omitempty"`
	State            string   `json:"state,omitempty"`
	PostalCode       string   `json:"postal_code,omitempty"`
	Country          string   `json:"country,omitempty"`
	Provider         string   `json:"provider"`
	Confidence       float64  `json:"confidence"`
	Raw              string   `json:"raw,omitempty"`
}

// Label is the text shown for the candidate in suggestion lists.
func (c AddressCandidate) Label() string {
	if c.FormattedAddress != "" {
		return c.FormattedAddress
	}
	return address.AssembleAddressString("", c.Street, c.Locality, c.City, c.State, c.PostalCode, c.Country)
}

// Role is the authorization role of a caller.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleVendor   Role = "vendor"
	RoleAdmin    Role = "admin"
)

// Caller is the already-authenticated identity behind a request.
type Caller struct {
	ID   string
	Role Role
	// Key is the rate-limit identity: the user ID when known, else the client IP.
	Key string
}

// IsAdmin reports whether the caller has the admin role.
func (c Caller) IsAdmin() bool { return c.Role == RoleAdmin }

// Owns reports whether the caller is the given owner.
func (c Caller) Owns(ownerID string) bool {
	return c.ID != "" && c.ID == ownerID
}

// RateKey returns the limiter key, falling back to "anonymous".
func (c Caller) RateKey() string {
	switch {
	case c.Key != "":
		return c.Key
	case c.ID != "":
		return c.ID
	default:
		return "anonymous"
	}
}

// ShopInput carries the vendor-editable fields of a shop.
type ShopInput struct {
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category,omitempty"`
	CategoryID  string    `json:"category_id,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	PriceRange  string    `json:"price_range,omitempty"`
	PriceMin    float64   `json:"price_min,omitempty"`
	PriceMax    float64   `json:"price_max,omitempty"`
	Location    *GeoPoint `json:"location,omitempty"`
	Address     Address   `json:"address"`
}

// Shop event types.
const (
	EventShopUpdated  = "shop.updated"
	EventShopGeocoded = "shop.geocoded"
)

// ShopEvent is published whenever a shop is saved.
type ShopEvent struct {
	Type       string    `json:"type"`
	Shop       Shop      `json:"shop"`
	OccurredAt time.Time `json:"occurred_at"`
}
