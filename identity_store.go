package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

// DefaultResetValidity is how long a reset artifact stays consumable
const DefaultResetValidity = 24 * time.Hour

type identityStore struct {
	repo          RepositoryManager
	logger        Logger
	resetValidity time.Duration
	useHashid     bool
}

// IdentityStoreOption configures the bun-backed identity store
type IdentityStoreOption func(*identityStore)

// WithStoreLogger overrides the logger used by the store
func WithStoreLogger(logger Logger) IdentityStoreOption {
	return func(s *identityStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithResetValidity overrides the reset artifact validity window
func WithResetValidity(d time.Duration) IdentityStoreOption {
	return func(s *identityStore) {
		if d > 0 {
			s.resetValidity = d
		}
	}
}

// WithHashidIdentifiers derives user IDs deterministically from the email
// instead of random UUIDs.
func WithHashidIdentifiers(enabled bool) IdentityStoreOption {
	return func(s *identityStore) {
		s.useHashid = enabled
	}
}

// NewIdentityStore returns an IdentityStore persisting through the given
// repositories.
func NewIdentityStore(repo RepositoryManager, opts ...IdentityStoreOption) IdentityStore {
	s := &identityStore{
		repo:          repo,
		logger:        defLogger{},
		resetValidity: DefaultResetValidity,
		useHashid:     true,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

func (s *identityStore) CreateIdentity(ctx context.Context, input CreateIdentityInput) (Identity, error) {
	if err := ValidatePasswordPolicy(input.Password); err != nil {
		return nil, err
	}

	user := &User{
		Email: input.Email,
		Phone: input.Phone,
	}

	if s.useHashid {
		if id, err := hashid.NewUUID(input.Email); err == nil {
			user.ID = id
		}
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		hash, err := HashPassword(input.Password)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		user.PasswordHash = hash

		if user, err = s.repo.Users().RegisterTx(ctx, tx, user); err != nil {
			return classifyRegistrationError(err, input.Email)
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "user registration transaction failed")
	}

	return identityFromUser(user), nil
}

// VerifyCredentials finds the user, compares the password, and returns the
// identity. Unknown users and bad passwords yield the same verdict.
func (s *identityStore) VerifyCredentials(ctx context.Context, identifier, password string) (Identity, error) {
	user, err := s.repo.Users().GetByIdentifier(ctx, identifier)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user during verification")
	}

	if err := ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		if err2 := s.repo.Users().TrackAttemptedLogin(ctx, user); err2 != nil {
			return nil, goerrors.Wrap(err2, goerrors.CategoryInternal, "failed to track login attempt")
		}
		return nil, ErrInvalidCredentials
	}

	if err := s.repo.Users().TrackSuccessfulLogin(ctx, user); err != nil {
		s.logger.Error("failed to track successful login", "error", err)
	}

	return identityFromUser(user), nil
}

func (s *identityStore) FindByName(ctx context.Context, identifier string) (Identity, error) {
	user, err := s.repo.Users().GetByIdentifier(ctx, identifier)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrIdentityNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user")
	}

	return identityFromUser(user), nil
}

func (s *identityStore) GenerateResetArtifact(ctx context.Context, identity Identity) (string, error) {
	user, err := s.repo.Users().GetByIdentifier(ctx, identity.ID())
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return "", ErrIdentityNotFound
		}
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for password reset")
	}

	reset := &PasswordReset{
		UserID: &user.ID,
		Email:  user.Email,
		Status: ResetRequestedStatus,
	}

	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		created, err := s.repo.PasswordResets().CreateTx(ctx, tx, reset)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create password reset record")
		}
		reset = created
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return "", richErr
		}
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to initialize password reset")
	}

	return reset.ID.String(), nil
}

func (s *identityStore) ConsumeResetArtifact(ctx context.Context, artifact, newPassword string) error {
	if err := ValidatePasswordPolicy(newPassword); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		reset, err := s.repo.PasswordResets().GetByArtifact(ctx, artifact)
		if err != nil {
			if goerrors.IsNotFound(err) || repository.IsRecordNotFound(err) {
				return goerrors.New("invalid or expired password reset token", goerrors.CategoryNotFound).
					WithCode(goerrors.CodeNotFound)
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not retrieve password reset request")
		}

		// single use
		if reset.Status != ResetRequestedStatus {
			return goerrors.New("password reset token has already been used", goerrors.CategoryConflict).
				WithTextCode(TextCodeResetTokenUsed)
		}

		if reset.CreatedAt == nil {
			return goerrors.New("password reset record is missing creation date", goerrors.CategoryInternal)
		}

		if time.Since(*reset.CreatedAt) > s.resetValidity {
			return goerrors.New("password reset token has expired", goerrors.CategoryValidation).
				WithTextCode(TextCodeResetTokenExpired)
		}

		if reset.UserID == nil {
			return goerrors.New("password reset record is not associated with a user", goerrors.CategoryInternal)
		}

		passwordHash, err := HashPassword(newPassword)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid new password provided")
		}

		if err := s.repo.Users().ResetPasswordTx(ctx, tx, *reset.UserID, passwordHash); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update user password in database")
		}

		r := MarkPasswordAsReseted(reset.ID)
		if _, err := s.repo.PasswordResets().UpdateTx(ctx, tx, r); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update password reset status")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to finalize password reset")
	}

	return nil
}

// classifyRegistrationError inspects the driver error before deciding the
// verdict: unique-constraint violations become a conflict naming the
// colliding attribute, anything else stays internal so it renders as an
// opaque 500.
func classifyRegistrationError(err error, email string) error {
	msg := err.Error()

	isDuplicate := strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
	if !isDuplicate {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "could not create user")
	}

	detail := fmt.Sprintf("Email '%s' is already taken.", email)
	if strings.Contains(msg, "username") {
		detail = fmt.Sprintf("Username '%s' is already taken.", usernameFromEmail(email))
	}

	return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create user").
		WithTextCode(TextCodeDuplicateIdentity).
		WithCode(goerrors.CodeConflict).
		WithMetadata(map[string]any{
			"errors": []string{detail},
		})
}

type authIdentity struct {
	id       string
	username string
	email    string
}

func (a authIdentity) ID() string {
	return a.id
}

func (a authIdentity) Username() string {
	return a.username
}

func (a authIdentity) Email() string {
	return a.email
}

var _ Identity = authIdentity{}

func identityFromUser(user *User) Identity {
	return authIdentity{
		id:       user.ID.String(),
		username: user.Username,
		email:    user.Email,
	}
}
