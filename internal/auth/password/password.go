// Package password hashes staff passwords and enforces the password policy.
package password

import (
	"unicode"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
)

const (
	cost      = 12
	minLength = 10
	maxLength = 72
)

func Hash(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func Compare(hash, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
}

// Strong requires 10 to 72 bytes with an upper case letter, a lower case
// letter and a digit.
func Strong(plain string) bool {
	if len(plain) < minLength || len(plain) > maxLength {
		return false
	}
	var upper, lower, digit bool
	for _, r := range plain {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return upper && lower && digit
}

// ValidateStrong is registered as the "strongpassword" validation tag.
func ValidateStrong(fl validator.FieldLevel) bool {
	return Strong(fl.Field().String())
}
