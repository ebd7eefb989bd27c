package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// Role is fixed at registration.
type Role string

const (
	RoleDonor     Role = "donor"
	RoleNGO       Role = "ngo"
	RoleVolunteer Role = "volunteer"
	RoleAdmin     Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleDonor, RoleNGO, RoleVolunteer, RoleAdmin:
		return true
	}
	return false
}

// Profile is the role-specific part of a user. Exactly one implementation exists per
// non-admin role; admins carry no profile.
type Profile interface {
	Role() Role
	Validate() error
}

type DonorProfile struct {
	BusinessName string   `json:"businessName"`
	BusinessType string   `json:"businessType,omitempty"`
	Address      Location `json:"address"`
}

func (DonorProfile) Role() Role { return RoleDonor }

func (p DonorProfile) Validate() error {
	if strings.TrimSpace(p.BusinessName) == "" {
		return Validation("donor profile requires businessName")
	}
	return validateLocation("donor address", p.Address)
}

type NGOProfile struct {
	OrganizationName string   `json:"organizationName"`
	RegistrationID   string   `json:"registrationId,omitempty"`
	Capacity         int      `json:"capacity"`
	Address          Location `json:"address"`
}

func (NGOProfile) Role() Role { return RoleNGO }

func (p NGOProfile) Validate() error {
	if strings.TrimSpace(p.OrganizationName) == "" {
		return Validation("ngo profile requires organizationName")
	}
	if p.Capacity <= 0 {
		return Validation("ngo capacity must be positive")
	}
	return validateLocation("ngo address", p.Address)
}

type VolunteerProfile struct {
	VehicleType    string       `json:"vehicleType"`
	Availability   string       `json:"availability,omitempty"`
	CurrentArea    *Coordinates `json:"currentArea,omitempty"`
	CompletedTasks int          `json:"completedTasks"`
}

func (VolunteerProfile) Role() Role { return RoleVolunteer }

func (p VolunteerProfile) Validate() error {
	if strings.TrimSpace(p.VehicleType) == "" {
		return Validation("volunteer profile requires vehicleType")
	}
	if p.CurrentArea != nil && !p.CurrentArea.Valid() {
		return Validation("volunteer currentArea out of range")
	}
	return nil
}

func validateLocation(field string, loc Location) error {
	if loc.Coordinates != nil && !loc.Coordinates.Valid() {
		return Validation("%s coordinates out of range", field)
	}
	return nil
}

// DecodeProfile unmarshals raw JSON into the profile type belonging to role.
func DecodeProfile(role Role, raw []byte) (Profile, error) {
	switch role {
	case RoleDonor:
		var p DonorProfile
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, WrapError(ErrCodeInvalid, "invalid donor profile", err)
		}
		return p, nil
	case RoleNGO:
		var p NGOProfile
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, WrapError(ErrCodeInvalid, "invalid ngo profile", err)
		}
		return p, nil
	case RoleVolunteer:
		var p VolunteerProfile
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, WrapError(ErrCodeInvalid, "invalid volunteer profile", err)
		}
		return p, nil
	case RoleAdmin:
		return nil, nil
	default:
		return nil, Validation("unknown role %q", role)
	}
}

// User represents an authenticated identity in the platform.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	FullName     string
	Phone        string
	Role         Role
	IsVerified   bool
	Profile      Profile
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type userJSON struct {
	ID               string            `json:"id"`
	Email            string            `json:"email"`
	FullName         string            `json:"fullName"`
	Phone            string            `json:"phone,omitempty"`
	Role             Role              `json:"role"`
	IsVerified       bool              `json:"isVerified"`
	DonorProfile     *DonorProfile     `json:"donorProfile,omitempty"`
	NGOProfile       *NGOProfile       `json:"ngoProfile,omitempty"`
	VolunteerProfile *VolunteerProfile `json:"volunteerProfile,omitempty"`
	CreatedAt        time.Time         `json:"createdAt"`
	UpdatedAt        time.Time         `json:"updatedAt"`
}

// MarshalJSON renders the profile under its role-specific key and never exposes the password hash.
func (u User) MarshalJSON() ([]byte, error) {
	out := userJSON{
		ID:         u.ID,
		Email:      u.Email,
		FullName:   u.FullName,
		Phone:      u.Phone,
		Role:       u.Role,
		IsVerified: u.IsVerified,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
	switch p := u.Profile.(type) {
	case DonorProfile:
		out.DonorProfile = &p
	case NGOProfile:
		out.NGOProfile = &p
	case VolunteerProfile:
		out.VolunteerProfile = &p
	}
	return json.Marshal(out)
}

// Coordinates returns the point used for matching: the donor/ngo address or the volunteer's area.
func (u *User) Coordinates() (Coordinates, bool) {
	if u == nil {
		return Coordinates{}, false
	}
	switch p := u.Profile.(type) {
	case DonorProfile:
		if p.Address.Coordinates != nil {
			return *p.Address.Coordinates, true
		}
	case NGOProfile:
		if p.Address.Coordinates != nil {
			return *p.Address.Coordinates, true
		}
	case VolunteerProfile:
		if p.CurrentArea != nil {
			return *p.CurrentArea, true
		}
	}
	return Coordinates{}, false
}

// CompletedTasks returns the volunteer delivery counter, zero for other roles.
func (u *User) CompletedTasks() int {
	if u == nil {
		return 0
	}
	if p, ok := u.Profile.(VolunteerProfile); ok {
		return p.CompletedTasks
	}
	return 0
}
