package auth_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	auth "github.com/goliatone/go-auth-api"
)

// MockUsers implements auth.Users for testing
type MockUsers struct {
	mock.Mock
}

func (m *MockUsers) GetByIdentifier(ctx context.Context, identifier string) (*auth.User, error) {
	args := m.Called(ctx, identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.User), args.Error(1)
}

func (m *MockUsers) Register(ctx context.Context, user *auth.User) (*auth.User, error) {
	args := m.Called(ctx, user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.User), args.Error(1)
}

func (m *MockUsers) RegisterTx(ctx context.Context, tx bun.IDB, user *auth.User) (*auth.User, error) {
	args := m.Called(ctx, tx, user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.User), args.Error(1)
}

func (m *MockUsers) ResetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	args := m.Called(ctx, tx, id, passwordHash)
	return args.Error(0)
}

func (m *MockUsers) TrackAttemptedLogin(ctx context.Context, user *auth.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUsers) TrackSuccessfulLogin(ctx context.Context, user *auth.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

// MockPasswordResets implements auth.PasswordResets for testing
type MockPasswordResets struct {
	mock.Mock
}

func (m *MockPasswordResets) GetByArtifact(ctx context.Context, artifact string) (*auth.PasswordReset, error) {
	args := m.Called(ctx, artifact)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.PasswordReset), args.Error(1)
}

func (m *MockPasswordResets) CreateTx(ctx context.Context, tx bun.IDB, reset *auth.PasswordReset) (*auth.PasswordReset, error) {
	args := m.Called(ctx, tx, reset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.PasswordReset), args.Error(1)
}

func (m *MockPasswordResets) UpdateTx(ctx context.Context, tx bun.IDB, reset *auth.PasswordReset) (*auth.PasswordReset, error) {
	args := m.Called(ctx, tx, reset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.PasswordReset), args.Error(1)
}

// MockRepositoryManager implements auth.RepositoryManager for testing.
// RunInTx invokes the callback with a zero transaction so store logic
// runs without a database.
type MockRepositoryManager struct {
	users          *MockUsers
	passwordResets *MockPasswordResets
}

func newMockRepositoryManager() *MockRepositoryManager {
	return &MockRepositoryManager{
		users:          &MockUsers{},
		passwordResets: &MockPasswordResets{},
	}
}

func (m *MockRepositoryManager) Validate() error { return nil }
func (m *MockRepositoryManager) MustValidate()   {}

func (m *MockRepositoryManager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	return f(ctx, bun.Tx{})
}

func (m *MockRepositoryManager) Users() auth.Users                   { return m.users }
func (m *MockRepositoryManager) PasswordResets() auth.PasswordResets { return m.passwordResets }

func bcryptHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	return hash
}

func TestIdentityStore_CreateIdentity(t *testing.T) {
	t.Run("hashes the password and registers the user", func(t *testing.T) {
		repo := newMockRepositoryManager()
		store := auth.NewIdentityStore(repo)

		created := &auth.User{
			ID:       uuid.New(),
			Username: "test",
			Email:    "test@test.com",
		}

		repo.users.On("RegisterTx", mock.Anything, mock.Anything, mock.MatchedBy(func(u *auth.User) bool {
			if u.Email != "test@test.com" || u.PasswordHash == "" {
				return false
			}
			return auth.ComparePasswordAndHash("Pass@word", u.PasswordHash) == nil
		})).Return(created, nil)

		identity, err := store.CreateIdentity(context.Background(), auth.CreateIdentityInput{
			Email:    "test@test.com",
			Password: "Pass@word",
		})

		require.NoError(t, err)
		assert.Equal(t, "test@test.com", identity.Email())
		assert.Equal(t, "test", identity.Username())
		assert.NotEmpty(t, identity.ID())

		repo.users.AssertExpectations(t)
	})

	t.Run("rejects a password violating the policy before touching storage", func(t *testing.T) {
		repo := newMockRepositoryManager()
		store := auth.NewIdentityStore(repo)

		identity, err := store.CreateIdentity(context.Background(), auth.CreateIdentityInput{
			Email:    "test@test.com",
			Password: "pwd",
		})

		assert.Error(t, err)
		assert.Nil(t, identity)

		var rich *goerrors.Error
		require.True(t, goerrors.As(err, &rich))
		assert.Equal(t, auth.TextCodePasswordPolicy, rich.TextCode)

		repo.users.AssertNotCalled(t, "RegisterTx", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("maps storage conflicts to a duplicate identity failure", func(t *testing.T) {
		repo := newMockRepositoryManager()
		store := auth.NewIdentityStore(repo)

		repo.users.On("RegisterTx", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, errors.New("UNIQUE constraint failed: users.email"))

		identity, err := store.CreateIdentity(context.Background(), auth.CreateIdentityInput{
			Email:    "test@test.com",
			Password: "Pass@word",
		})

		assert.Error(t, err)
		assert.Nil(t, identity)

		var rich *goerrors.Error
		require.True(t, goerrors.As(err, &rich))
		assert.Equal(t, auth.TextCodeDuplicateIdentity, rich.TextCode)
		assert.Contains(t, auth.ErrorDetails(err), "Email 'test@test.com' is already taken.")
	})

	t.Run("reports a username collision by its own attribute", func(t *testing.T) {
		repo := newMockRepositoryManager()
		store := auth.NewIdentityStore(repo)

		repo.users.On("RegisterTx", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, errors.New("UNIQUE constraint failed: users.username"))

		identity, err := store.CreateIdentity(context.Background(), auth.CreateIdentityInput{
			Email:    "test@other.org",
			Password: "Pass@word",
		})

		assert.Error(t, err)
		assert.Nil(t, identity)

		var rich *goerrors.Error
		require.True(t, goerrors.As(err, &rich))
		assert.Equal(t, auth.TextCodeDuplicateIdentity, rich.TextCode)
		assert.Contains(t, auth.ErrorDetails(err), "Username 'test' is already taken.")
	})

	t.Run("keeps infrastructure failures internal", func(t *testing.T) {
		repo := newMockRepositoryManager()
		store := auth.NewIdentityStore(repo)

		repo.users.On("RegisterTx", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, errors.New("database is locked"))

		identity, err := store.CreateIdentity(context.Background(), auth.CreateIdentityInput{
			Email:    "test@test.com",
			Password: "Pass@word",
		})

		assert.Error(t, err)
		assert.Nil(t, identity)

		var rich *goerrors.Error
		require.True(t, goerrors.As(err, &rich))
		assert.Equal(t, goerrors.CategoryInternal, rich.Category)
		assert.Empty(t, rich.TextCode)
	})

	t.Run("derives a deterministic id from the email", func(t *testing.T) {
		repo := newMockRepositoryManager()
		store := auth.NewIdentityStore(repo)

		var captured uuid.UUID
		repo.users.On("RegisterTx", mock.Anything, mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				captured = args.Get(2).(*auth.User).ID
			}).
			Return(&auth.User{ID: uuid.New(), Email: "test@test.com"}, nil)

		_, err := store.CreateIdentity(context.Background(), auth.CreateIdentityInput{
			Email:    "test@test.com",
			Password: "Pass@word",
		})
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, captured)

		repo2 := newMockRepositoryManager()
		store2 := auth.NewIdentityStore(repo2)

		var captured2 uuid.UUID
		repo2.users.On("RegisterTx", mock.Anything, mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				captured2 = args.Get(2).(*auth.User).ID
			}).
			Return(&auth.User{ID: uuid.New(), Email: "test@test.com"}, nil)

		_, err = store2.CreateIdentity(context.Background(), auth.CreateIdentityInput{
			Email:    "test@test.com",
			Password: "Pass@word",
		})
		require.NoError(t, err)

		assert.Equal(t, captured, captured2)
	})
}

func TestIdentityStore_VerifyCredentials(t *testing.T) {
	userID := uuid.New()

	makeUser := func(t *testing.T) *auth.User {
		return &auth.User{
			ID:           userID,
			Username:     "test",
			Email:        "test@test.com",
			PasswordHash: bcryptHash(t, "Pass@word"),
		}
	}

	t.Run("returns the identity for a valid pair", func(t *testing.T) {
		repo := newMockRepositoryManager()
		store := auth.NewIdentityStore(repo)
		user := makeUser(t)

		repo.users.On("GetByIdentifier", mock.Anything, "test@test.com").Return(user, nil)
		repo.users.On("TrackSuccessfulLogin", mock.Anything, user).Return(nil)

		identity, err := store.VerifyCredentials(context.Background(), "test@test.com", "Pass@word")

		require.NoError(t, err)
		assert.Equal(t, userID.String(), identity.ID())
		assert.Equal(t, "test@test.com", identity.Email())

		repo.users.AssertExpectations(t)
	})

	t.Run("tracks the attempt and fails generically on a wrong password", func(t *testing.T) {
		repo := newMockRepositoryManager()
		store := auth.NewIdentityStore(repo)
		user := makeUser(t)

		repo.users.On("GetByIdentifier", mock.Anything, "test@test.com").Return(user, nil)
		repo.users.On("TrackAttemptedLogin", mock.Anything, user).Return(nil)

		identity, err := store.VerifyCredentials(context.Background(), "test@test.com", "wrong")

		assert.Nil(t, identity)
		assert.True(t, auth.IsCredentialFailure(err))

		repo.users.AssertExpectations(t)
		repo.users.AssertNotCalled(t, "TrackSuccessfulLogin", mock.Anything, mock.Anything)
	})

	t.Run("unknown users fail with the same verdict", func(t *testing.T) {
		repo := newMockRepositoryManager()
		store := auth.NewIdentityStore(repo)

		repo.users.On("GetByIdentifier", mock.Anything, "ghost@test.com").
			Return(nil, repository.NewRecordNotFound())

		identity, err := store.VerifyCredentials(context.Background(), "ghost@test.com", "Pass@word")

		assert.Nil(t, identity)
		assert.True(t, auth.IsCredentialFailure(err))
	})
}

func TestIdentityStore_ResetArtifacts(t *testing.T) {
	userID := uuid.New()

	user := &auth.User{
		ID:       userID,
		Username: "test",
		Email:    "test@test.com",
	}

	freshReset := func(createdAt time.Time, status string) *auth.PasswordReset {
		return &auth.PasswordReset{
			ID:        uuid.New(),
			UserID:    &userID,
			Email:     "test@test.com",
			Status:    status,
			CreatedAt: &createdAt,
		}
	}

	t.Run("generates an artifact tied to the identity", func(t *testing.T) {
		repo := newMockRepositoryManager()
		store := auth.NewIdentityStore(repo)

		repo.users.On("GetByIdentifier", mock.Anything, userID.String()).Return(user, nil)

		resetID := uuid.New()
		repo.passwordResets.On("CreateTx", mock.Anything, mock.Anything, mock.MatchedBy(func(r *auth.PasswordReset) bool {
			return r.Status == auth.ResetRequestedStatus && r.UserID != nil && *r.UserID == userID
		})).Return(&auth.PasswordReset{
			ID:     resetID,
			UserID: &userID,
			Status: auth.ResetRequestedStatus,
		}, nil)

		identity, err := store.FindByName(context.Background(), userID.String())
		require.NoError(t, err)

		artifact, err := store.GenerateResetArtifact(context.Background(), identity)

		require.NoError(t, err)
		assert.Equal(t, resetID.String(), artifact)
	})

	t.Run("consumes a live artifact and updates the password", func(t *testing.T) {
		repo := newMockRepositoryManager()
		store := auth.NewIdentityStore(repo)

		reset := freshReset(time.Now().Add(-time.Hour), auth.ResetRequestedStatus)

		repo.passwordResets.On("GetByArtifact", mock.Anything, reset.ID.String()).Return(reset, nil)
		repo.users.On("ResetPasswordTx", mock.Anything, mock.Anything, userID, mock.MatchedBy(func(hash string) bool {
			return auth.ComparePasswordAndHash("Pass!word", hash) == nil
		})).Return(nil)
		repo.passwordResets.On("UpdateTx", mock.Anything, mock.Anything, mock.MatchedBy(func(r *auth.PasswordReset) bool {
			return r.ID == reset.ID && r.Status == auth.ResetChangedStatus
		})).Return(reset, nil)

		err := store.ConsumeResetArtifact(context.Background(), reset.ID.String(), "Pass!word")

		require.NoError(t, err)
		repo.users.AssertExpectations(t)
		repo.passwordResets.AssertExpectations(t)
	})

	t.Run("rejects a new password that violates the policy", func(t *testing.T) {
		repo := newMockRepositoryManager()
		store := auth.NewIdentityStore(repo)

		err := store.ConsumeResetArtifact(context.Background(), uuid.NewString(), "pwd")

		require.Error(t, err)

		var rich *goerrors.Error
		require.True(t, goerrors.As(err, &rich))
		assert.Equal(t, auth.TextCodePasswordPolicy, rich.TextCode)

		repo.passwordResets.AssertNotCalled(t, "GetByArtifact", mock.Anything, mock.Anything)
	})

	t.Run("artifacts are single use", func(t *testing.T) {
		repo := newMockRepositoryManager()
		store := auth.NewIdentityStore(repo)

		reset := freshReset(time.Now().Add(-time.Hour), auth.ResetChangedStatus)

		repo.passwordResets.On("GetByArtifact", mock.Anything, reset.ID.String()).Return(reset, nil)

		err := store.ConsumeResetArtifact(context.Background(), reset.ID.String(), "Pass!word")

		require.Error(t, err)

		var rich *goerrors.Error
		require.True(t, goerrors.As(err, &rich))
		assert.Equal(t, auth.TextCodeResetTokenUsed, rich.TextCode)

		repo.users.AssertNotCalled(t, "ResetPasswordTx", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("artifacts expire after the validity window", func(t *testing.T) {
		repo := newMockRepositoryManager()
		store := auth.NewIdentityStore(repo, auth.WithResetValidity(time.Hour))

		reset := freshReset(time.Now().Add(-2*time.Hour), auth.ResetRequestedStatus)

		repo.passwordResets.On("GetByArtifact", mock.Anything, reset.ID.String()).Return(reset, nil)

		err := store.ConsumeResetArtifact(context.Background(), reset.ID.String(), "Pass!word")

		require.Error(t, err)

		var rich *goerrors.Error
		require.True(t, goerrors.As(err, &rich))
		assert.Equal(t, auth.TextCodeResetTokenExpired, rich.TextCode)
	})

	t.Run("unknown artifacts fail without detail", func(t *testing.T) {
		repo := newMockRepositoryManager()
		store := auth.NewIdentityStore(repo)

		artifact := uuid.NewString()
		repo.passwordResets.On("GetByArtifact", mock.Anything, artifact).
			Return(nil, repository.NewRecordNotFound())

		err := store.ConsumeResetArtifact(context.Background(), artifact, "Pass!word")

		require.Error(t, err)

		var rich *goerrors.Error
		require.True(t, goerrors.As(err, &rich))
		assert.Equal(t, goerrors.CategoryNotFound, rich.Category)
	})
}
