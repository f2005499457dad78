package auth

import (
	"errors"
	"fmt"
	"unicode"
	"unicode/utf8"

	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/crypto/bcrypt"
)

// PasswordMinLength is the minimum accepted password length
const PasswordMinLength = 8

// HashPassword will generate a password hash
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), 14)
	return string(h), err
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedHashAndPassword
		}
		return err
	}
	return nil
}

// ValidatePasswordPolicy enforces the store's password policy: minimum
// length plus one lower, one upper, and one symbol. Violations come back
// as a detail list so callers can surface all of them at once.
func ValidatePasswordPolicy(password string) error {
	var details []string

	if utf8.RuneCountInString(password) < PasswordMinLength {
		details = append(details, fmt.Sprintf("Passwords must be at least %d characters.", PasswordMinLength))
	}

	var hasLower, hasUpper, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			// digits satisfy no class but are always allowed
		default:
			hasSymbol = true
		}
	}

	if !hasLower {
		details = append(details, "Passwords must have at least one lowercase character.")
	}
	if !hasUpper {
		details = append(details, "Passwords must have at least one uppercase character.")
	}
	if !hasSymbol {
		details = append(details, "Passwords must have at least one non alphanumeric character.")
	}

	if len(details) == 0 {
		return nil
	}

	return goerrors.New("password does not satisfy the password policy", goerrors.CategoryValidation).
		WithTextCode(TextCodePasswordPolicy).
		WithMetadata(map[string]any{"errors": details})
}
