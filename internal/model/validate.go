package model

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/apfiles/internal/apperror"
)

// PhoneLength is the exact digit count of a student phone number.
const PhoneLength = 10

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report json field names so messages and AppError.Field match the API.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Registration is the student sign-up form.
type Registration struct {
	FullName    string `json:"fullName" validate:"required"`
	PhoneNumber string `json:"phoneNumber" validate:"required,len=10,number"`
}

// Normalize trims the free-text fields in place.
func (r *Registration) Normalize() {
	r.FullName = strings.TrimSpace(r.FullName)
	r.PhoneNumber = strings.TrimSpace(r.PhoneNumber)
}

func (r Registration) Validate() error {
	return validateStruct(r)
}

// ValidatePhone checks a phone number the same way registration does.
func ValidatePhone(phone string) error {
	if err := validate.Var(phone, "required,len=10,number"); err != nil {
		return apperror.ValidationFailed("phoneNumber", phoneMessage)
	}
	return nil
}

// RequestDraft holds the fields a student submits. The sync engine stamps
// everything else.
type RequestDraft struct {
	Subject          Subject          `json:"subject" validate:"required"`
	Unit             string           `json:"unit" validate:"required"`
	Type             RequestType      `json:"type" validate:"required,oneof=STUDY_GUIDE ANSWER_KEY"`
	MaterialCategory MaterialCategory `json:"materialCategory,omitempty" validate:"required_if=Type STUDY_GUIDE"`
	AttachedFileName string           `json:"attachedFileName,omitempty" validate:"required_if=Type ANSWER_KEY"`
	Description      string           `json:"description,omitempty" validate:"max=2000"`
}

// Validate rejects malformed drafts before they reach the sync engine:
// STUDY_GUIDE needs a category, ANSWER_KEY needs an attached file, and the
// subject/unit pair must come from the catalog.
func (d RequestDraft) Validate() error {
	if err := validateStruct(d); err != nil {
		return err
	}
	if !validSubject(d.Subject) {
		return apperror.ValidationFailed("subject", fmt.Sprintf("unknown subject %q", d.Subject))
	}
	if !validUnit(d.Type, d.Unit) {
		return apperror.ValidationFailed("unit", fmt.Sprintf("unit %q is not offered for %s", d.Unit, d.Type))
	}
	if d.Type == TypeStudyGuide && !d.MaterialCategory.Valid() {
		return apperror.ValidationFailed("materialCategory",
			fmt.Sprintf("unknown material category %q", d.MaterialCategory))
	}
	return nil
}

const phoneMessage = "Phone number must be exactly 10 digits (e.g., 050xxxxxxx)"

func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("model: validating %T: %w", s, err)
	}
	fe := verrs[0]
	return apperror.ValidationFailed(fe.Field(), fieldMessage(fe))
}

func fieldMessage(fe validator.FieldError) string {
	switch {
	case fe.Field() == "phoneNumber" && fe.Tag() != "required":
		return phoneMessage
	case fe.Field() == "materialCategory":
		return "a material category is required for study guides"
	case fe.Field() == "attachedFileName":
		return "an attached file is required for answer keys"
	case fe.Tag() == "required":
		return fe.Field() + " is required"
	case fe.Tag() == "max":
		return fmt.Sprintf("%s must be %s characters or less", fe.Field(), fe.Param())
	case fe.Tag() == "oneof":
		return fmt.Sprintf("%s must be one of %s", fe.Field(), fe.Param())
	}
	return fe.Field() + " is invalid"
}
