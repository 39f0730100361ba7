package auth

import (
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/rs/zerolog/log"

	"github.com/dirauthd/dirauthd/internal/directory"
)

// Conn is the subset of a directory connection the engine uses.
// *ldap.Conn satisfies it; tests substitute fakes.
type Conn interface {
	Bind(username, password string) error
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	Close() error
}

// Dialer opens directory connections. Connections are per-operation: opened,
// used, and released on every exit path, never pooled across logins.
type Dialer interface {
	Dial(cfg *directory.Settings) (Conn, error)
}

// NewDialer returns the go-ldap backed dialer.
func NewDialer() Dialer {
	return ldapDialer{}
}

type ldapDialer struct{}

// Dial connects to the configured directory server. Certificate verification
// is intentionally disabled for compatibility with directories running on
// self-signed or internal CAs.
func (ldapDialer) Dial(cfg *directory.Settings) (Conn, error) {
	tlsConfig := &tls.Config{
		InsecureSkipVerify: true, //nolint:gosec // permissive TLS is a deliberate compatibility choice
	}

	timeout := time.Duration(cfg.Timeout) * time.Second

	conn, err := ldap.DialURL(
		serverURL(cfg),
		ldap.DialWithTLSConfig(tlsConfig),
		ldap.DialWithDialer(&net.Dialer{Timeout: timeout}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to directory server: %w", err)
	}

	conn.SetTimeout(timeout)

	return conn, nil
}

// serverURL builds the dial URL. The configured server may already carry an
// ldap:// or ldaps:// scheme; a bare hostname defaults to ldap://.
func serverURL(cfg *directory.Settings) string {
	server := cfg.Server
	if !strings.Contains(server, "://") {
		server = "ldap://" + server
	}

	return server + ":" + strconv.Itoa(cfg.Port)
}

// openAdmin opens a connection bound with the administrative search account.
// The caller must close the returned connection on every exit path.
func openAdmin(d Dialer, cfg *directory.Settings) (Conn, error) {
	conn, err := d.Dial(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBindFailed, err)
	}

	if err := conn.Bind(cfg.AdminDN, cfg.AdminPassword); err != nil {
		closeConn(conn)

		return nil, fmt.Errorf("%w: could not bind with admin account: %w", ErrBindFailed, err)
	}

	return conn, nil
}

// bindUser verifies the end user's password by binding a transient connection
// with the discovered entry's DN. A successful bind proves the password
// without it ever touching local storage.
func bindUser(d Dialer, cfg *directory.Settings, userDN, password string) error {
	conn, err := d.Dial(cfg)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBindFailed, err)
	}

	defer closeConn(conn)

	if err := conn.Bind(userDN, password); err != nil {
		return fmt.Errorf("%w: user credential bind rejected: %w", ErrBindFailed, err)
	}

	return nil
}

// TestConnection dials the directory and binds the administrative search
// account, proving the stored settings are usable.
func TestConnection(d Dialer, cfg *directory.Settings) error {
	conn, err := openAdmin(d, cfg)
	if err != nil {
		return err
	}

	closeConn(conn)

	return nil
}

func closeConn(conn Conn) {
	if err := conn.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close directory connection")
	}
}
