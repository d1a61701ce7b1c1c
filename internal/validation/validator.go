package validation

import (
	"reflect"
	"regexp"
	"strings"
	"sync"

	"bankledger/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	fullNamePattern = regexp.MustCompile(`^[A-Za-z ]{1,100}$`)
	amountPattern   = regexp.MustCompile(`^\d+(\.\d{1,2})?$`)
)

// Validator wraps the go-playground validator with custom rules and error formatting
type Validator struct {
	validate *validator.Validate
}

// GetValidate returns the underlying validator.Validate instance for use with Echo
func (v *Validator) GetValidate() *validator.Validate {
	return v.validate
}

var (
	instance *Validator
	once     sync.Once
)

// GetValidator returns the singleton validator instance
func GetValidator() *Validator {
	once.Do(func() {
		instance = NewValidator()
	})
	return instance
}

// NewValidator creates a new validator instance with custom rules and configuration
func NewValidator() *Validator {
	v := validator.New()

	_ = v.RegisterValidation("account_number", validateAccountNumber)
	_ = v.RegisterValidation("username", validateUsername)
	_ = v.RegisterValidation("amount", validateAmount)
	_ = v.RegisterValidation("full_name", validateFullName)

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Validator{validate: v}
}

// validateAccountNumber accepts exactly ten digits
func validateAccountNumber(fl validator.FieldLevel) bool {
	return models.ValidateAccountNumber(fl.Field().String())
}

func validateUsername(fl validator.FieldLevel) bool {
	return models.ValidateUsername(fl.Field().String())
}

// validateAmount validates a decimal string that is positive, has at most
// 2 decimal places and fits the balance column
func validateAmount(fl validator.FieldLevel) bool {
	raw := strings.TrimSpace(fl.Field().String())
	if !amountPattern.MatchString(raw) {
		return false
	}

	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return false
	}

	return amount.GreaterThan(decimal.Zero) && amount.LessThanOrEqual(models.MaxAmount)
}

// validateFullName allows letters and spaces, at least one letter
func validateFullName(fl validator.FieldLevel) bool {
	name := fl.Field().String()
	return fullNamePattern.MatchString(name) && strings.TrimSpace(name) != ""
}
