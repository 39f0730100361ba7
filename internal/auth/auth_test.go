package auth

import (
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/dirauthd/dirauthd/internal/db/models"
	"github.com/dirauthd/dirauthd/internal/directory"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err, "failed to create test database")

	err = db.AutoMigrate(
		&models.User{},
		&models.Group{},
		&models.UserGroup{},
		&models.Setting{},
		&models.ObjectField{},
	)
	require.NoError(t, err, "failed to migrate test database")

	return db
}

func testSettings() *directory.Settings {
	s := &directory.Settings{
		Server:      "ldap.example.com",
		AdminDN:     "cn=admin,dc=example,dc=com",
		BaseDN:      "dc=example,dc=com",
		UserQuery:   "(uid=%username%)",
		GroupsQuery: "(objectClass=groupOfUniqueNames)",
	}
	s.ApplyDefaults()

	return s
}

// staticLoader hands out a fixed settings snapshot.
type staticLoader struct {
	settings *directory.Settings
	err      error
}

func (l staticLoader) Load() (*directory.Settings, error) {
	return l.settings, l.err
}

// fakeConn is a scripted directory connection.
type fakeConn struct {
	bindFn   func(username, password string) error
	searchFn func(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	closed   bool
}

func (c *fakeConn) Bind(username, password string) error {
	if c.bindFn == nil {
		return nil
	}

	return c.bindFn(username, password)
}

func (c *fakeConn) Search(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
	if c.searchFn == nil {
		return &ldap.SearchResult{}, nil
	}

	return c.searchFn(req)
}

func (c *fakeConn) Close() error {
	c.closed = true

	return nil
}

// fakeDialer hands out fakeConns sharing one script, counting dials.
type fakeDialer struct {
	script fakeConn
	err    error
	conns  []*fakeConn
}

func (d *fakeDialer) Dial(_ *directory.Settings) (Conn, error) {
	if d.err != nil {
		return nil, d.err
	}

	conn := &fakeConn{bindFn: d.script.bindFn, searchFn: d.script.searchFn}
	d.conns = append(d.conns, conn)

	return conn, nil
}

func userEntry(uid, dn string, extra map[string][]string) *ldap.Entry {
	attrs := map[string][]string{
		"uid": {uid},
		"sn":  {uid},
	}
	for name, values := range extra {
		attrs[name] = values
	}

	return ldap.NewEntry(dn, attrs)
}

func groupEntry(cn string, members ...string) *ldap.Entry {
	return ldap.NewEntry("cn="+cn+",ou=groups,dc=example,dc=com", map[string][]string{
		"cn":           {cn},
		"uniqueMember": members,
	})
}

// directorySearch dispatches fake search results on the request filter: user
// lookups match the substituted user filter, anything else is a group search.
func directorySearch(users []*ldap.Entry, groups []*ldap.Entry) func(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
	return func(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
		if strings.HasPrefix(req.Filter, "(uid=") {
			var matched []*ldap.Entry

			for _, entry := range users {
				if req.Filter == "(uid="+entry.GetAttributeValue("uid")+")" {
					matched = append(matched, entry)
				}
			}

			return &ldap.SearchResult{Entries: matched}, nil
		}

		return &ldap.SearchResult{Entries: groups}, nil
	}
}
