package setup

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// Note: t.Parallel() is intentionally omitted in this file — the admin
// provisioner reads and clears process-global environment variables.

// fakeUserStore records the last upsert.
type fakeUserStore struct {
	created  bool
	err      error
	username string
	email    string
	hash     string
	upserts  int
}

func (f *fakeUserStore) UpsertAdmin(_ context.Context, username, email, hash string) (bool, error) {
	f.upserts++
	f.username = username
	f.email = email
	f.hash = hash
	return f.created, f.err
}

func setAdminEnv(t *testing.T, username, email, password string) {
	t.Helper()
	t.Setenv(EnvAdminUsername, username)
	t.Setenv(EnvAdminEmail, email)
	t.Setenv(EnvAdminPassword, password)
}

func assertAdminEnvCleared(t *testing.T) {
	t.Helper()
	assert.Empty(t, os.Getenv(EnvAdminUsername))
	assert.Empty(t, os.Getenv(EnvAdminEmail))
	assert.Empty(t, os.Getenv(EnvAdminPassword))
}

func TestEnsure_CreatesAdminAndClearsEnv(t *testing.T) {
	setAdminEnv(t, "ops", "ops@example.com", "hunter2hunter2")

	users := &fakeUserStore{created: true}
	a := NewAdminProvisioner(users)

	detail, err := a.Ensure(context.Background())
	require.NoError(t, err)
	assert.Equal(t, `created admin "ops"`, detail)

	assert.Equal(t, 1, users.upserts)
	assert.Equal(t, "ops", users.username)
	assert.Equal(t, "ops@example.com", users.email)

	// The stored value is a bcrypt hash of the supplied password, never the
	// password itself.
	assert.NotEqual(t, "hunter2hunter2", users.hash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(users.hash), []byte("hunter2hunter2")))

	assertAdminEnvCleared(t)
}

func TestEnsure_ExistingAdminIsUpdated(t *testing.T) {
	setAdminEnv(t, "ops", "new@example.com", "rotated-password")

	users := &fakeUserStore{created: false}
	a := NewAdminProvisioner(users)

	detail, err := a.Ensure(context.Background())
	require.NoError(t, err)
	assert.Equal(t, `updated admin "ops"`, detail)
	assertAdminEnvCleared(t)
}

func TestEnsure_MissingEnvSkips(t *testing.T) {
	tests := []struct {
		name     string
		username string
		password string
	}{
		{"nothing set", "", ""},
		{"username only", "ops", ""},
		{"password only", "", "hunter2hunter2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setAdminEnv(t, tt.username, "", tt.password)

			users := &fakeUserStore{}
			a := NewAdminProvisioner(users)

			_, err := a.Ensure(context.Background())
			assert.ErrorIs(t, err, ErrAdminEnvMissing)
			assert.Zero(t, users.upserts)
			assertAdminEnvCleared(t)
		})
	}
}

func TestEnsure_StoreErrorStillClearsEnv(t *testing.T) {
	setAdminEnv(t, "ops", "ops@example.com", "hunter2hunter2")

	users := &fakeUserStore{err: errors.New("connection reset")}
	a := NewAdminProvisioner(users)

	_, err := a.Ensure(context.Background())
	require.Error(t, err)

	// Credentials are discarded on every path, including failure.
	assertAdminEnvCleared(t)
}
