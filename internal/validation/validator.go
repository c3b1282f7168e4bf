// Package validation wraps the go-playground validator with the rules the
// banking flows need and formats violations as coded errors.
package validation

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "bytebank/internal/errors"
	"bytebank/internal/models"
)

// Validator wraps the go-playground validator with custom rules and error formatting
type Validator struct {
	validate *validator.Validate
}

// singleton instance of the validator
var instance *Validator

// GetValidator returns the singleton validator instance
func GetValidator() *Validator {
	if instance == nil {
		instance = NewValidator()
	}
	return instance
}

// NewValidator creates a new validator instance with custom rules and configuration
func NewValidator() *Validator {
	v := validator.New()

	_ = v.RegisterValidation("account_number", validateAccountNumber)
	_ = v.RegisterValidation("positive_cents", validatePositiveCents)
	_ = v.RegisterValidation("transaction_type", validateTransactionType)
	_ = v.RegisterValidation("transaction_status", validateTransactionStatus)
	_ = v.RegisterValidation("transaction_category", validateTransactionCategory)
	_ = v.RegisterValidation("account_type", validateAccountType)

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Validator{validate: v}
}

// Struct validates a struct and converts the first violation into a coded
// validation error naming the offending field.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperrors.Wrap(apperrors.ValidationInvalidFormat, err)
	}

	first := verrs[0]
	return apperrors.Newf(apperrors.ValidationRequiredField,
		"field %q failed rule %q", first.Field(), first.Tag())
}

// Custom validation functions

// validateAccountNumber validates the generated account number format:
// 15 digits (timestamp fragment, random fragment, user fragment).
func validateAccountNumber(fl validator.FieldLevel) bool {
	accountNumber := fl.Field().String()
	if accountNumber == "" {
		return false
	}

	matched, _ := regexp.MatchString(`^\d{15}$`, accountNumber)
	return matched
}

// validatePositiveCents validates that a minor-unit amount is greater than 0
func validatePositiveCents(fl validator.FieldLevel) bool {
	switch fl.Field().Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return fl.Field().Int() > 0
	default:
		return false
	}
}

// validateTransactionType validates that transaction type is one of the allowed types
func validateTransactionType(fl validator.FieldLevel) bool {
	return models.IsValidTransactionType(strings.ToLower(fl.Field().String()))
}

// validateTransactionStatus validates that transaction status is one of the allowed statuses
func validateTransactionStatus(fl validator.FieldLevel) bool {
	return models.IsValidTransactionStatus(strings.ToLower(fl.Field().String()))
}

// validateTransactionCategory validates that the category is one of the known categories
func validateTransactionCategory(fl validator.FieldLevel) bool {
	return models.IsValidTransactionCategory(fl.Field().String())
}

// validateAccountType validates that account type is one of the allowed types
func validateAccountType(fl validator.FieldLevel) bool {
	return models.IsValidAccountType(strings.ToLower(fl.Field().String()))
}
