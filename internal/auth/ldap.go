// Package auth implements directory-backed authentication with automatic
// fallback to the local user database. A login attempt binds against the
// configured LDAP or Active Directory server, provisions a local account for
// unseen directory identities, and reconciles group memberships with the
// directory's view.
package auth

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/dirauthd/dirauthd/internal/db/controller/user"
	"github.com/dirauthd/dirauthd/internal/db/models"
	"github.com/dirauthd/dirauthd/internal/directory"
)

// Authenticator is the login entry point. It decides per attempt whether the
// directory or the local database authenticates the user, based on a fresh
// settings snapshot from the loader.
type Authenticator struct {
	db         *gorm.DB
	loader     directory.Loader
	dialer     Dialer
	local      *LocalProvider
	resolver   *Resolver
	reconciler *Reconciler
}

// NewAuthenticator creates the authenticator with the default LDAP dialer.
func NewAuthenticator(db *gorm.DB, loader directory.Loader) *Authenticator {
	return NewAuthenticatorWithDialer(db, loader, NewDialer())
}

// NewAuthenticatorWithDialer creates the authenticator with a custom dialer.
func NewAuthenticatorWithDialer(db *gorm.DB, loader directory.Loader, dialer Dialer) *Authenticator {
	return &Authenticator{
		db:         db,
		loader:     loader,
		dialer:     dialer,
		local:      NewLocalProvider(db),
		resolver:   NewResolver(db),
		reconciler: NewReconciler(db),
	}
}

// Local exposes the local provider, for account management outside the login path.
func (a *Authenticator) Local() *LocalProvider {
	return a.local
}

// Login authenticates the user. With a directory configured, the directory is
// authoritative; on directory-side failure the original credentials fall back
// to the local database, so local accounts keep working during a directory
// outage. A provisioning failure aborts the attempt without fallback.
func (a *Authenticator) Login(username, password string) (*models.User, error) {
	cfg, err := a.loader.Load()
	if err != nil {
		log.Error().Err(err).Msg("failed to load directory settings, falling back to local auth")

		return a.local.Authenticate(username, password)
	}

	if !cfg.Enabled() {
		return a.local.Authenticate(username, password)
	}

	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	usr, err := a.directoryLogin(cfg, username, password)
	if err != nil {
		if errors.Is(err, ErrProvisioning) {
			return nil, err
		}

		log.Warn().Err(err).Str("username", username).
			Msg("directory login failed, falling back to local auth")

		return a.local.Authenticate(username, password)
	}

	return usr, nil
}

// directoryLogin runs one full directory authentication round: admin bind,
// user lookup, credential bind, identity resolution and group reconciliation.
func (a *Authenticator) directoryLogin(cfg *directory.Settings, username, password string) (*models.User, error) {
	conn, err := openAdmin(a.dialer, cfg)
	if err != nil {
		return nil, err
	}

	defer closeConn(conn)

	entry, err := searchUser(conn, cfg, username)
	if err != nil {
		return nil, err
	}

	if err := bindUser(a.dialer, cfg, entry.DN, password); err != nil {
		return nil, err
	}

	userID, created, err := a.resolver.Resolve(cfg, entry)
	if err != nil {
		return nil, err
	}

	if created {
		log.Info().Uint64("user_id", userID).Str("username", username).
			Msg("provisioned new directory user")
	}

	// Reconciliation failures never invalidate a verified login.
	if err := a.reconciler.Reconcile(cfg, conn, userID, directoryUID(entry)); err != nil {
		log.Error().Err(err).Uint64("user_id", userID).
			Msg("group reconciliation incomplete")
	}

	usr, err := user.Get(a.db, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: load resolved user %d: %w", ErrProvisioning, userID, err)
	}

	return usr, nil
}
