package auth

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dirauthd/dirauthd/internal/directory"
)

func TestServerURL(t *testing.T) {
	testCases := []struct {
		name     string
		server   string
		port     int
		expected string
	}{
		{name: "bare hostname", server: "ldap.example.com", port: 389, expected: "ldap://ldap.example.com:389"},
		{name: "explicit ldap scheme", server: "ldap://ldap.example.com", port: 389, expected: "ldap://ldap.example.com:389"},
		{name: "ldaps scheme kept", server: "ldaps://ldap.example.com", port: 636, expected: "ldaps://ldap.example.com:636"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &directory.Settings{Server: tc.server, Port: tc.port}
			assert.Equal(t, tc.expected, serverURL(cfg))
		})
	}
}

func TestOpenAdminClosesOnBindFailure(t *testing.T) {
	dialer := &fakeDialer{script: fakeConn{
		bindFn: func(string, string) error { return errors.New("invalid credentials") },
	}}

	_, err := openAdmin(dialer, testSettings())
	require.ErrorIs(t, err, ErrBindFailed)

	require.Len(t, dialer.conns, 1)
	assert.True(t, dialer.conns[0].closed)
}

func TestBindUserReleasesConnection(t *testing.T) {
	dialer := &fakeDialer{}

	require.NoError(t, bindUser(dialer, testSettings(), "uid=jdoe,dc=example,dc=com", "s3cret"))
	require.Len(t, dialer.conns, 1)
	assert.True(t, dialer.conns[0].closed)
}
