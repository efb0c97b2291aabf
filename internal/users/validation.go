package users

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

// NewValidator returns a validator that reports JSON field names and knows
// the notblank and isodate rules used by account request bodies.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	// Registration only fails for empty tags or nil functions.
	_ = v.RegisterValidation("notblank", validators.NotBlank)
	_ = v.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
		_, err := ParseBirthDate(fl.Field().String())
		return err == nil
	})

	return v
}

// profilePatchShape mirrors ProfilePatch with plain pointers so struct tags can validate present values.
type profilePatchShape struct {
	FirstName *string `json:"firstName" validate:"omitnil,notblank"`
	LastName  *string `json:"lastName" validate:"omitnil,notblank"`
	BirthDate *string `json:"birthDate" validate:"omitnil,isodate"`
	Phone     *string `json:"phone"`
}

type updateShape struct {
	Email   *string            `json:"email" validate:"omitnil,email"`
	Role    *string            `json:"role" validate:"omitnil,oneof=USER ADMIN"`
	Profile *profilePatchShape `json:"profile"`
}

// ValidateUpdate checks the values present in a partial update.
func ValidateUpdate(v *validator.Validate, input UpdateInput) error {
	shape := updateShape{Email: input.Email.Value}
	if input.Role.Value != nil {
		role := string(*input.Role.Value)
		shape.Role = &role
	}
	if p := input.Profile; p != nil {
		shape.Profile = &profilePatchShape{
			FirstName: p.FirstName.Value,
			LastName:  p.LastName.Value,
			BirthDate: p.BirthDate.Value,
			Phone:     p.Phone.Value,
		}
	}
	return v.Struct(shape)
}
