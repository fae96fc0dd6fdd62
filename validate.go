package teamauth

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

const (
	minPasswordBytes = 8
	maxPasswordBytes = 72
)

// inputs checks every request struct handed to the engine. Validate is safe for
// concurrent use and caches struct metadata, so one instance serves all engines.
var inputs = newInputValidator()

func newInputValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("password", passwordPolicy); err != nil {
		panic(fmt.Sprintf("teamauth: register password validation: %v", err))
	}
	return v
}

// passwordPolicy holds every newly chosen password to 8-72 bytes (the bcrypt input
// limit) with a lowercase letter, an uppercase letter and a digit. Existing hashes are
// never re-checked against it.
func passwordPolicy(fl validator.FieldLevel) bool {
	password := fl.Field().String()
	if len(password) < minPasswordBytes || len(password) > maxPasswordBytes {
		return false
	}

	var lower, upper, digit bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return lower && upper && digit
}

// normalizeEmail is applied before every store write or lookup keyed by email.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type emailInput struct {
	Email string `validate:"required,max=254,email"`
}

type newPasswordInput struct {
	NewPassword string `validate:"required,password"`
}

// checkInput validates v against its struct tags and reports the first violation as
// a VALIDATION_ERROR.
func checkInput(v any) error {
	err := inputs.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("validate input: %w", err)
	}
	return validationError(fieldMessage(fieldErrs[0]))
}

var fieldLabels = map[string]string{
	"Email":       "Email",
	"Password":    "Password",
	"NewPassword": "New password",
	"Name":        "Name",
	"TeamName":    "Team name",
}

func fieldMessage(fe validator.FieldError) string {
	label, ok := fieldLabels[fe.Field()]
	if !ok {
		label = fe.Field()
	}

	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "email":
		return "Invalid email address"
	case "max":
		if fe.Field() == "Email" {
			return "Invalid email address"
		}
		return label + " must be at most " + fe.Param() + " characters"
	case "password":
		return label + " must be 8 to 72 bytes and contain a lowercase letter, an uppercase letter and a digit"
	default:
		return "Invalid " + strings.ToLower(label)
	}
}
