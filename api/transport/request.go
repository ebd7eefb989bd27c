package transport

import (
	"encoding/json"

	"github.com/fastygo/foodbridge/domain"
)

// RegisterRequest accepts the role profile either under "profile" or under the
// role-specific key used in responses (donorProfile, ngoProfile, volunteerProfile).
type RegisterRequest struct {
	Email            string          `json:"email"`
	Password         string          `json:"password"`
	FullName         string          `json:"fullName"`
	Phone            string          `json:"phone"`
	Role             string          `json:"role"`
	Profile          json.RawMessage `json:"profile"`
	DonorProfile     json.RawMessage `json:"donorProfile"`
	NGOProfile       json.RawMessage `json:"ngoProfile"`
	VolunteerProfile json.RawMessage `json:"volunteerProfile"`
}

// ProfileFor returns the raw profile matching role.
func (r RegisterRequest) ProfileFor(role domain.Role) json.RawMessage {
	if len(r.Profile) > 0 {
		return r.Profile
	}
	switch role {
	case domain.RoleDonor:
		return r.DonorProfile
	case domain.RoleNGO:
		return r.NGOProfile
	case domain.RoleVolunteer:
		return r.VolunteerProfile
	}
	return nil
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type CreateDonationRequest struct {
	FoodDetails domain.FoodDetails `json:"foodDetails"`
	Location    domain.Location    `json:"location"`
}

type AdvanceTaskRequest struct {
	Status string `json:"status"`
}
