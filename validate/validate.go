package validate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/SplitFi/go-drops/service/persist"
	"github.com/go-playground/validator/v10"
)

var hexHashRegex = regexp.MustCompile("^(0x)?[0-9a-fA-F]{64}$")

// ValWithTags is a value with validation tags, used with ValidationMap
type ValWithTags struct {
	Value interface{}
	Tag   string
}

// ValidationMap is a map of field names to values and their validation tags
type ValidationMap map[string]ValWithTags

// ValidateFields validates input fields based on a set of predefined validation tags
func ValidateFields(validator *validator.Validate, fields ValidationMap) error {
	validationErr := ErrInvalidInput{}
	foundErrors := false

	for k, v := range fields {
		err := validator.Var(v.Value, v.Tag)
		if err != nil {
			foundErrors = true
			validationErr.Append(k, err.Error())
		}
	}

	if foundErrors {
		return validationErr
	}

	return nil
}

// ErrInvalidInput carries the parameters that failed validation and why.
type ErrInvalidInput struct {
	Parameters []string
	Reasons    []string
}

func (e *ErrInvalidInput) Append(parameter string, reason string) {
	e.Parameters = append(e.Parameters, parameter)
	e.Reasons = append(e.Reasons, reason)
}

func (e ErrInvalidInput) Error() string {
	str := "invalid input:\n"
	for i := range e.Parameters {
		str += fmt.Sprintf("    parameter: %s, reason: %s\n", e.Parameters[i], e.Reasons[i])
	}
	return str
}

// WithCustomValidators returns a validator with the custom validators
// used across the API layer registered.
func WithCustomValidators() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("eth_addr_full", EthAddressValidator)
	v.RegisterValidation("hexhash", HexHashValidator)
	v.RegisterValidation("role", RoleValidator)
	return v
}

// EthAddressValidator validates a 20-byte hex address, 0x prefix optional
func EthAddressValidator(fl validator.FieldLevel) bool {
	addr := strings.TrimPrefix(strings.ToLower(fl.Field().String()), "0x")
	if len(addr) != 40 {
		return false
	}
	for _, c := range addr {
		if !(c >= '0' && c <= '9') && !(c >= 'a' && c <= 'f') {
			return false
		}
	}
	return true
}

// HexHashValidator validates a 32-byte hex hash, 0x prefix optional
func HexHashValidator(fl validator.FieldLevel) bool {
	return hexHashRegex.MatchString(fl.Field().String())
}

// RoleValidator validates a role name
func RoleValidator(fl validator.FieldLevel) bool {
	return persist.Role(fl.Field().String()).IsValid()
}
