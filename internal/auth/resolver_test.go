package auth

import (
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dirauthd/dirauthd/internal/db/controller/object"
	"github.com/dirauthd/dirauthd/internal/db/controller/user"
	"github.com/dirauthd/dirauthd/internal/db/models"
	"github.com/dirauthd/dirauthd/internal/directory"
)

func TestDeriveEmail(t *testing.T) {
	testCases := []struct {
		name     string
		email    string
		suffix   string
		expected string
	}{
		{name: "bare local part gets domain", email: "jdoe", suffix: "example.com", expected: "jdoe@example.com"},
		{name: "suffix with at sign appended as-is", email: "jdoe", suffix: "@example.com", expected: "jdoe@example.com"},
		{name: "full address left alone", email: "jdoe@corp.example.com", suffix: "example.com", expected: "jdoe@corp.example.com"},
		{name: "no suffix configured", email: "jdoe", suffix: "", expected: "jdoe"},
		{name: "empty email stays empty", email: "", suffix: "example.com", expected: ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, deriveEmail(tc.email, tc.suffix))
		})
	}
}

func TestResolveProvisionsOnce(t *testing.T) {
	db := setupTestDB(t)
	resolver := NewResolver(db)
	cfg := testSettings()

	entry := userEntry("jdoe", "uid=jdoe,ou=people,dc=example,dc=com", map[string][]string{
		"sn":   {"Doe"},
		"mail": {"jdoe@example.com"},
	})

	userID, created, err := resolver.Resolve(cfg, entry)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotZero(t, userID)

	// Same entry again resolves to the same account without creating.
	again, created, err := resolver.Resolve(cfg, entry)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, userID, again)

	usr, err := user.Get(db, userID)
	require.NoError(t, err)
	assert.Equal(t, "Doe", usr.Username)
	assert.Equal(t, "Doe", usr.Fullname)
	assert.Equal(t, "jdoe", usr.ExternalID)
	assert.Equal(t, models.AuthSourceLDAP, usr.AuthSource)
	assert.True(t, usr.Active)
	assert.False(t, usr.EmailConfirmed)
}

func TestResolveConcurrentFirstLogin(t *testing.T) {
	db := setupTestDB(t)
	resolver := NewResolver(db)
	cfg := testSettings()

	entry := userEntry("jdoe", "uid=jdoe,ou=people,dc=example,dc=com", map[string][]string{
		"sn": {"Doe"},
	})

	const logins = 8

	var (
		wg   sync.WaitGroup
		ids  [logins]uint64
		errs [logins]error
	)

	for i := 0; i < logins; i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			ids[i], _, errs[i] = resolver.Resolve(cfg, entry)
		}(i)
	}

	wg.Wait()

	// Every login resolved to the same account.
	for i := 0; i < logins; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}

	// Exactly one account and one link exist for the identity.
	var count int64
	require.NoError(t, db.Model(&models.User{}).Where("external_id = ?", "jdoe").Count(&count).Error)
	assert.EqualValues(t, 1, count)

	value, err := object.GetField(db, LinkNamespace, "jdoe")
	require.NoError(t, err)
	assert.Equal(t, strconv.FormatUint(ids[0], 10), value)
}

func TestResolveAttributeOverrides(t *testing.T) {
	db := setupTestDB(t)
	resolver := NewResolver(db)

	cfg := testSettings()
	cfg.SurnameAttr = "givenName"
	cfg.DisplayNameAttr = "displayName"
	cfg.EmailAttr = "userPrincipalName"

	entry := userEntry("jdoe", "uid=jdoe,ou=people,dc=example,dc=com", map[string][]string{
		"sn":                {"Doe"},
		"givenName":         {"Jane"},
		"displayName":       {"Jane Doe (Contractor)"},
		"mail":              {"old@example.com"},
		"userPrincipalName": {"jane.doe@example.com"},
	})

	userID, created, err := resolver.Resolve(cfg, entry)
	require.NoError(t, err)
	assert.True(t, created)

	usr, err := user.Get(db, userID)
	require.NoError(t, err)

	// The parenthetical qualifier is stripped from the username.
	assert.Equal(t, "Jane Doe", usr.Username)
	assert.Equal(t, "Jane", usr.Fullname)
	assert.Equal(t, "jane.doe@example.com", usr.Email)
}

func TestResolveAutoConfirm(t *testing.T) {
	db := setupTestDB(t)
	resolver := NewResolver(db)

	cfg := testSettings()
	cfg.AutoConfirm = directory.FlagOn
	cfg.EmailSuffix = "example.com"

	entry := userEntry("jdoe", "uid=jdoe,ou=people,dc=example,dc=com", map[string][]string{
		"sn":   {"Doe"},
		"mail": {"jdoe"},
	})

	userID, _, err := resolver.Resolve(cfg, entry)
	require.NoError(t, err)

	usr, err := user.Get(db, userID)
	require.NoError(t, err)
	assert.Equal(t, "jdoe@example.com", usr.Email)
	assert.True(t, usr.EmailConfirmed)
}

func TestResolveActiveDirectoryUID(t *testing.T) {
	db := setupTestDB(t)
	resolver := NewResolver(db)
	cfg := testSettings()

	entry := userEntry("", "cn=jdoe,ou=people,dc=example,dc=com", map[string][]string{
		"uid":            nil,
		"sAMAccountName": {"jdoe"},
		"sn":             {"Doe"},
	})

	userID, created, err := resolver.Resolve(cfg, entry)
	require.NoError(t, err)
	assert.True(t, created)

	usr, err := user.Get(db, userID)
	require.NoError(t, err)
	assert.Equal(t, "jdoe", usr.ExternalID)
}

func TestResolveMissingUID(t *testing.T) {
	db := setupTestDB(t)
	resolver := NewResolver(db)

	entry := userEntry("", "cn=ghost,dc=example,dc=com", map[string][]string{"uid": nil})

	_, _, err := resolver.Resolve(testSettings(), entry)
	require.ErrorIs(t, err, ErrProvisioning)
}

func TestResolveHonorsExistingLink(t *testing.T) {
	db := setupTestDB(t)
	resolver := NewResolver(db)

	// A pre-existing link wins over provisioning, whatever the entry says.
	existing, err := user.Create(db, "jdoe", "Doe", "jdoe@example.com")
	require.NoError(t, err)
	require.NoError(t, object.SetField(db, LinkNamespace, "jdoe", strconv.FormatUint(existing.ID, 10)))

	entry := userEntry("jdoe", "uid=jdoe,ou=people,dc=example,dc=com", map[string][]string{
		"sn": {"Someone Else"},
	})

	userID, created, err := resolver.Resolve(testSettings(), entry)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, existing.ID, userID)
}
