package userValidator

import (
	"strings"

	"multiproduct/validators"

	"github.com/gofiber/fiber/v2"
)

type UpdateProfileRequest struct {
	FirstName *string `json:"firstName" validate:"omitempty,max=100"`
	LastName  *string `json:"lastName" validate:"omitempty,max=100"`
}

func (r *UpdateProfileRequest) Normalize() {
	for _, p := range []*string{r.FirstName, r.LastName} {
		if p != nil {
			*p = strings.TrimSpace(*p)
		}
	}
}

func UpdateProfile() fiber.Handler {
	return validators.Body[UpdateProfileRequest]("validatedProfile")
}
