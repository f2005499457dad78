package auth

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Identity holds the attributes of an authenticated subject
type Identity interface {
	ID() string
	Username() string
	Email() string
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetSigningMethod() string
	GetContextKey() string
	GetTokenExpiration() int
	GetTokenLookup() string
	GetAuthScheme() string
	GetIssuer() string
	GetAudience() []string
}

// CreateIdentityInput is the payload for IdentityStore.CreateIdentity
type CreateIdentityInput struct {
	Email    string
	Password string
	Phone    string
}

// IdentityStore is the credential-store capability. It owns user records
// and password hashes; callers only ever see identifiers and verdicts.
type IdentityStore interface {
	// CreateIdentity hashes the password and persists a new user record.
	CreateIdentity(ctx context.Context, input CreateIdentityInput) (Identity, error)
	// VerifyCredentials validates an identifier/password pair. Unknown
	// users and wrong passwords are indistinguishable to the caller.
	VerifyCredentials(ctx context.Context, identifier, password string) (Identity, error)
	// FindByName retrieves an identity by its identifier.
	FindByName(ctx context.Context, identifier string) (Identity, error)
	// GenerateResetArtifact creates a one-time password-reset artifact for
	// the given identity and returns its opaque handle.
	GenerateResetArtifact(ctx context.Context, identity Identity) (string, error)
	// ConsumeResetArtifact applies a new password through a previously
	// generated artifact. Artifacts are single use.
	ConsumeResetArtifact(ctx context.Context, artifact, newPassword string) error
}

// TokenService issues and validates signed bearer tokens
type TokenService interface {
	Issue(subject string) (Token, error)
	SignClaims(claims *JWTClaims) (string, error)
	Validate(tokenString string) (AuthClaims, error)
}

// TokenValidator validates tokens and extracts claims without tying
// callers to a specific signing implementation.
type TokenValidator interface {
	Validate(tokenString string) (AuthClaims, error)
}

// AuthClaims represents the validated claims of a bearer token
type AuthClaims interface {
	Subject() string
	TokenID() string
	Expires() time.Time
	IssuedAt() time.Time
}

// PasswordAuthenticator authenticates passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

type defLogger struct{}

func (d defLogger) Error(msg string, args ...any) {
	fmt.Println(formatLogLine("[ERR] AUTH", msg, args...))
}

func (d defLogger) Warn(msg string, args ...any) {
	fmt.Println(formatLogLine("[WRN] AUTH", msg, args...))
}

func (d defLogger) Info(msg string, args ...any) {
	fmt.Println(formatLogLine("[INF] AUTH", msg, args...))
}

func (d defLogger) Debug(msg string, args ...any) {
	fmt.Println(formatLogLine("[DBG] AUTH", msg, args...))
}

// formatLogLine renders trailing args as key=value pairs, the shape every
// call site in this package uses. A dangling arg is appended as-is.
func formatLogLine(prefix, msg string, args ...any) string {
	var b strings.Builder
	b.WriteString(prefix)
	b.WriteString(" ")
	b.WriteString(msg)

	i := 0
	for ; i+1 < len(args); i += 2 {
		fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
	}
	if i < len(args) {
		fmt.Fprintf(&b, " %v", args[i])
	}

	return b.String()
}
