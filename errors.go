package auth

import (
	"strings"

	"github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidCredentials = "invalid_credentials"
	TextCodeTokenExpired       = "token_expired"
	TextCodeTokenMalformed     = "token_malformed"
	TextCodeDuplicateIdentity  = "duplicate_identity"
	TextCodePasswordPolicy     = "password_policy"
	TextCodeResetTokenUsed     = "reset_token_used"
	TextCodeResetTokenExpired  = "reset_token_expired"
	TextCodeMissingSigningKey  = "missing_signing_key"
)

// GenericCredentialsMessage is the single user-facing message for every
// credential failure on login and password reset. Missing fields, unknown
// users, and wrong passwords all surface this exact string so responses
// cannot be used to enumerate accounts.
const GenericCredentialsMessage = "invalid username or password"

// ErrInvalidCredentials is returned for any credential failure.
var ErrInvalidCredentials = errors.New(GenericCredentialsMessage, errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(errors.CodeBadRequest)

// ErrIdentityNotFound is returned for lookups that matched no identity.
var ErrIdentityNotFound = errors.New("identity not found", errors.CategoryNotFound).
	WithCode(errors.CodeNotFound)

// ErrTokenExpired is returned when a bearer token is past its expiry.
var ErrTokenExpired = errors.New("authentication token expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrTokenMalformed is returned when a bearer token cannot be parsed or
// its signature does not verify.
var ErrTokenMalformed = errors.New("invalid authentication token", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(errors.CodeUnauthorized)

// ErrMissingSigningKey is a startup-time configuration failure: with no
// signing key every request would fail identically, so we refuse to boot.
var ErrMissingSigningKey = errors.New("token signing key is required", errors.CategoryInternal).
	WithTextCode(TextCodeMissingSigningKey)

// ErrMismatchedHashAndPassword is the store-level verdict for a password
// that does not match the stored hash.
var ErrMismatchedHashAndPassword = errors.New("password does not match", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(errors.CodeUnauthorized)

// ErrNoEmptyString rejects empty inputs to hashing helpers
var ErrNoEmptyString = errors.New("value should not be an empty string", errors.CategoryBadInput)

// IsCredentialFailure reports whether the error should collapse to the
// generic invalid-credentials response.
func IsCredentialFailure(err error) bool {
	if err == nil {
		return false
	}

	var rich *errors.Error
	if errors.As(err, &rich) {
		return rich.TextCode == TextCodeInvalidCredentials ||
			rich.Category == errors.CategoryNotFound
	}

	return false
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}

	var rich *errors.Error
	if errors.As(err, &rich) && rich.TextCode == TextCodeTokenExpired {
		return true
	}

	return strings.Contains(err.Error(), "token is expired") ||
		strings.Contains(err.Error(), "token expired")
}

// IsMalformedError will check for unparseable or badly signed tokens
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}

	var rich *errors.Error
	if errors.As(err, &rich) && rich.TextCode == TextCodeTokenMalformed {
		return true
	}

	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}

// ErrorDetails extracts the detail list attached to a rich error's
// metadata, the shape the HTTP layer returns for store rejections.
func ErrorDetails(err error) []string {
	var rich *errors.Error
	if !errors.As(err, &rich) || rich.Metadata == nil {
		return nil
	}

	switch list := rich.Metadata["errors"].(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}

	return nil
}
