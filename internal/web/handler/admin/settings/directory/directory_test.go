package directory

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/dirauthd/dirauthd/internal/auth"
	"github.com/dirauthd/dirauthd/internal/config"
	"github.com/dirauthd/dirauthd/internal/db/controller/group"
	"github.com/dirauthd/dirauthd/internal/db/controller/user"
	"github.com/dirauthd/dirauthd/internal/db/models"
	dirsettings "github.com/dirauthd/dirauthd/internal/directory"
)

type noOpViews struct{}

func (noOpViews) Load() error { return nil }

func (noOpViews) Render(w io.Writer, name string, _ interface{}, _ ...string) error {
	_, _ = io.WriteString(w, name)

	return nil
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Group{},
		&models.UserGroup{},
		&models.Setting{},
	))

	return db
}

// newTestApp wires the handler behind a middleware that injects the given
// user into locals, standing in for the session middleware.
func newTestApp(t *testing.T, db *gorm.DB, usr *models.User) *fiber.App {
	t.Helper()

	app := fiber.New(fiber.Config{Views: noOpViews{}})

	if usr != nil {
		app.Use(func(c *fiber.Ctx) error {
			c.Locals("CurrentUser", *usr)

			return c.Next()
		})
	}

	var s Service
	s.Init(app, &config.Config{Title: "dirauthd"}, db)

	return app
}

func createUser(t *testing.T, db *gorm.DB, username string, isAdmin bool) *models.User {
	t.Helper()

	usr, err := user.Create(db, username, username, username+"@example.com")
	require.NoError(t, err)

	if isAdmin {
		_, err := group.CreateOrGet(db, models.Group{Name: auth.AdministratorsGroupName, System: true})
		require.NoError(t, err)
		require.NoError(t, group.Join(db, []string{auth.AdministratorsGroupName}, usr.ID))
	}

	return usr
}

func TestGetWithoutSessionRedirects(t *testing.T) {
	db := newTestDB(t)
	app := newTestApp(t, db, nil)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, Path, nil), -1)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
}

func TestGetAsNonAdminForbidden(t *testing.T) {
	db := newTestDB(t)
	usr := createUser(t, db, "alice", false)
	app := newTestApp(t, db, usr)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, Path, nil), -1)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestGetAsAdminRendersForm(t *testing.T) {
	db := newTestDB(t)
	usr := createUser(t, db, "root", true)
	app := newTestApp(t, db, usr)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, Path, nil), -1)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPostSavesSettings(t *testing.T) {
	db := newTestDB(t)
	usr := createUser(t, db, "root", true)
	app := newTestApp(t, db, usr)

	form := url.Values{
		"server":       {"ldap.example.com"},
		"port":         {"636"},
		"admin_dn":     {"cn=admin,dc=example,dc=com"},
		"base_dn":      {"dc=example,dc=com"},
		"user_query":   {"(uid=%username%)"},
		"groups_query": {"(objectClass=groupOfUniqueNames)"},
		"admin_groups": {"eng,ops"},
	}

	req := httptest.NewRequest(http.MethodPost, Path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	stored := &dirsettings.Settings{}
	require.NoError(t, stored.Load(db))
	assert.Equal(t, "ldap.example.com", stored.Server)
	assert.Equal(t, 636, stored.Port)
	assert.Equal(t, "eng,ops", stored.AdminGroups)
}

func TestAPIGetBlanksPassword(t *testing.T) {
	db := newTestDB(t)
	usr := createUser(t, db, "root", true)
	app := newTestApp(t, db, usr)

	saved := &dirsettings.Settings{
		Server:        "ldap.example.com",
		AdminPassword: "hunter2",
	}
	require.NoError(t, saved.Save(db))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, APIPath, nil), -1)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got dirsettings.Settings
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "ldap.example.com", got.Server)
	assert.Empty(t, got.AdminPassword)
}
