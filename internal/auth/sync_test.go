package auth

import (
	"errors"
	"testing"

	"github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dirauthd/dirauthd/internal/db/controller/group"
	"github.com/dirauthd/dirauthd/internal/directory"
)

func TestSyncGroupsCreatesShells(t *testing.T) {
	db := setupTestDB(t)

	dialer := &fakeDialer{script: fakeConn{
		searchFn: directorySearch(nil, []*ldap.Entry{
			groupEntry("eng", "uid=jdoe,ou=people,dc=example,dc=com"),
			groupEntry("ops"),
		}),
	}}

	require.NoError(t, SyncGroups(db, staticLoader{settings: testSettings()}, dialer))

	for _, name := range []string{"ldap-eng", "ldap-ops"} {
		exists, err := group.Exists(db, name)
		require.NoError(t, err)
		assert.True(t, exists, name)
	}

	// No memberships: sync only mirrors the group shells.
	var count int64
	require.NoError(t, db.Table("user_groups").Count(&count).Error)
	assert.Zero(t, count)

	// Syncing again is a no-op, not a duplicate key error.
	require.NoError(t, SyncGroups(db, staticLoader{settings: testSettings()}, dialer))
}

func TestSyncGroupsDisabled(t *testing.T) {
	db := setupTestDB(t)
	dialer := &fakeDialer{err: errors.New("must not dial")}

	// No directory server.
	require.NoError(t, SyncGroups(db, staticLoader{settings: &directory.Settings{}}, dialer))

	// No group filter.
	cfg := testSettings()
	cfg.GroupsQuery = ""
	require.NoError(t, SyncGroups(db, staticLoader{settings: cfg}, dialer))

	// Unloadable settings are logged and skipped.
	require.NoError(t, SyncGroups(db, staticLoader{err: assert.AnError}, dialer))
}

func TestSyncGroupsDirectoryDown(t *testing.T) {
	db := setupTestDB(t)
	dialer := &fakeDialer{err: errors.New("connection refused")}

	err := SyncGroups(db, staticLoader{settings: testSettings()}, dialer)
	require.ErrorIs(t, err, ErrBindFailed)
}
