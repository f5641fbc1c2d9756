package setup

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/bcrypt"
)

// Environment variables consumed by the admin phase. They are read once and
// removed from the process environment before the phase returns.
const (
	EnvAdminUsername = "DRIVERLOG_ADMIN_USERNAME"
	EnvAdminEmail    = "DRIVERLOG_ADMIN_EMAIL"
	EnvAdminPassword = "DRIVERLOG_ADMIN_PASSWORD"
)

// ErrAdminEnvMissing signals that the admin credentials were not supplied;
// the phase is skipped rather than failed.
var ErrAdminEnvMissing = errors.New("admin credential environment variables not set")

// userUpserter is satisfied by *store.UserStore.
type userUpserter interface {
	UpsertAdmin(ctx context.Context, username, email, passwordHash string) (bool, error)
}

// AdminProvisioner creates the administrative account from environment
// variables, non-interactively.
type AdminProvisioner struct {
	users userUpserter
}

// NewAdminProvisioner returns an AdminProvisioner backed by users.
func NewAdminProvisioner(users userUpserter) *AdminProvisioner {
	return &AdminProvisioner{users: users}
}

// Ensure reads the credential variables, upserts the admin account with a
// bcrypt-hashed password, and returns a human-readable detail string. The
// three variables are unset before returning, on every path, so credentials
// never outlive the phase.
func (a *AdminProvisioner) Ensure(ctx context.Context) (string, error) {
	username := os.Getenv(EnvAdminUsername)
	email := os.Getenv(EnvAdminEmail)
	password := os.Getenv(EnvAdminPassword)

	defer func() {
		os.Unsetenv(EnvAdminUsername) //nolint:errcheck
		os.Unsetenv(EnvAdminEmail)    //nolint:errcheck
		os.Unsetenv(EnvAdminPassword) //nolint:errcheck
	}()

	if username == "" || password == "" {
		return "", ErrAdminEnvMissing
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing admin password: %w", err)
	}

	created, err := a.users.UpsertAdmin(ctx, username, email, string(hash))
	if err != nil {
		return "", err
	}

	if created {
		return fmt.Sprintf("created admin %q", username), nil
	}
	return fmt.Sprintf("updated admin %q", username), nil
}
