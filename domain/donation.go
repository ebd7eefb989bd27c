package domain

import (
	"strings"
	"time"
)

type DonationStatus string

const (
	DonationPending   DonationStatus = "pending"
	DonationMatched   DonationStatus = "matched"
	DonationAccepted  DonationStatus = "accepted"
	DonationInTransit DonationStatus = "in_transit"
	DonationDelivered DonationStatus = "delivered"
	DonationCancelled DonationStatus = "cancelled"
)

func (s DonationStatus) Valid() bool {
	switch s {
	case DonationPending, DonationMatched, DonationAccepted, DonationInTransit, DonationDelivered, DonationCancelled:
		return true
	}
	return false
}

// HasMatch reports whether a donation in this status must carry a matched NGO.
func (s DonationStatus) HasMatch() bool {
	switch s {
	case DonationMatched, DonationAccepted, DonationInTransit, DonationDelivered:
		return true
	}
	return false
}

func (s DonationStatus) Terminal() bool {
	return s == DonationDelivered || s == DonationCancelled
}

// FoodCategories lists the recognised donation categories.
var FoodCategories = []string{"produce", "bakery", "dairy", "meat", "prepared", "packaged", "beverages", "other"}

// FoodUnits lists the recognised quantity units.
var FoodUnits = []string{"kg", "lbs", "items", "servings", "liters"}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

func (u Urgency) Valid() bool {
	return u == UrgencyLow || u == UrgencyMedium || u == UrgencyHigh
}

type FoodDetails struct {
	Name      string     `json:"name"`
	Category  string     `json:"category"`
	Quantity  float64    `json:"quantity"`
	Unit      string     `json:"unit"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// Validate normalises the category and unit and checks the quantity.
func (f *FoodDetails) Validate() error {
	f.Category = strings.ToLower(strings.TrimSpace(f.Category))
	f.Unit = strings.ToLower(strings.TrimSpace(f.Unit))
	if f.Quantity <= 0 {
		return Validation("quantity must be greater than zero")
	}
	if !contains(FoodCategories, f.Category) {
		return Validation("unrecognized food category %q", f.Category)
	}
	if f.Unit == "" {
		f.Unit = "kg"
	}
	if !contains(FoodUnits, f.Unit) {
		return Validation("unrecognized unit %q", f.Unit)
	}
	return nil
}

// Donation is a donor-listed quantity of food moving through the lifecycle.
type Donation struct {
	ID           string         `json:"id"`
	DonorID      string         `json:"donorId"`
	FoodDetails  FoodDetails    `json:"foodDetails"`
	Location     Location       `json:"location"`
	Status       DonationStatus `json:"status"`
	Urgency      Urgency        `json:"urgency"`
	MatchedNGOID *string        `json:"matchedNGOId"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// UrgencyAt derives urgency from the expiry time relative to now.
func (d *Donation) UrgencyAt(now time.Time) Urgency {
	if d == nil || d.FoodDetails.ExpiresAt == nil {
		return UrgencyLow
	}
	left := d.FoodDetails.ExpiresAt.Sub(now)
	switch {
	case left <= 6*time.Hour:
		return UrgencyHigh
	case left <= 24*time.Hour:
		return UrgencyMedium
	default:
		return UrgencyLow
	}
}

// MatchConsistent checks that matchedNGOId is set exactly when the status requires it.
func (d *Donation) MatchConsistent() bool {
	if d == nil {
		return false
	}
	return (d.MatchedNGOID != nil) == d.Status.HasMatch()
}

// VisibleTo applies the per-role read rules for a single donation.
func (d *Donation) VisibleTo(actor *Actor) bool {
	if d == nil || actor == nil {
		return false
	}
	switch actor.Role {
	case RoleAdmin:
		return true
	case RoleDonor:
		return d.DonorID == actor.UserID
	case RoleNGO:
		return d.Status == DonationPending || (d.MatchedNGOID != nil && *d.MatchedNGOID == actor.UserID)
	}
	return false
}
