// Package validator wraps go-playground/validator with the custom rules
// used by request DTOs.
package validator

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var frPostalCodeRe = regexp.MustCompile(`^(?:0[1-9]|[1-8]\d|9[0-8])\d{3}$`)

// Validator validates request structs.
type Validator struct {
	v *validator.Validate
}

// New returns a Validator with the custom tags registered:
// siret (14 digits, Luhn), siren (9 digits, Luhn), frpostalcode.
func New() *Validator {
	v := validator.New()
	_ = v.RegisterValidation("siret", func(fl validator.FieldLevel) bool {
		return ValidSIRET(fl.Field().String())
	})
	_ = v.RegisterValidation("siren", func(fl validator.FieldLevel) bool {
		return ValidSIREN(fl.Field().String())
	})
	_ = v.RegisterValidation("frpostalcode", func(fl validator.FieldLevel) bool {
		return frPostalCodeRe.MatchString(strings.TrimSpace(fl.Field().String()))
	})
	return &Validator{v: v}
}

func (val *Validator) Struct(s interface{}) error {
	return val.v.Struct(s)
}

func (val *Validator) Var(field interface{}, tag string) error {
	return val.v.Var(field, tag)
}

func (val *Validator) RegisterValidation(tag string, fn validator.Func) error {
	return val.v.RegisterValidation(tag, fn)
}

// ValidSIRET reports whether s is a 14-digit SIRET with a valid Luhn key.
// La Poste establishments (SIREN 356000000) use a digit-sum rule instead.
func ValidSIRET(s string) bool {
	s = stripSpaces(s)
	if len(s) != 14 || !allDigits(s) {
		return false
	}
	if strings.HasPrefix(s, "356000000") {
		sum := 0
		for _, r := range s {
			sum += int(r - '0')
		}
		return sum%5 == 0
	}
	return luhn(s)
}

// ValidSIREN reports whether s is a 9-digit SIREN with a valid Luhn key.
func ValidSIREN(s string) bool {
	s = stripSpaces(s)
	return len(s) == 9 && allDigits(s) && luhn(s)
}

func stripSpaces(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), " ", "")
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func luhn(s string) bool {
	sum := 0
	double := false
	for i := len(s) - 1; i >= 0; i-- {
		d := int(s[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}
