// Package dashboard provides the dashboard handler showing the logged-in
// user's account and group memberships.
package dashboard

import (
	"sort"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/dirauthd/dirauthd/internal/auth"
	"github.com/dirauthd/dirauthd/internal/config"
	"github.com/dirauthd/dirauthd/internal/db/controller/group"
	"github.com/dirauthd/dirauthd/internal/db/models"
	"github.com/dirauthd/dirauthd/internal/web/handler"
	"github.com/dirauthd/dirauthd/internal/web/navigation"
)

const (
	// Path is the path to the dashboard page.
	Path = handler.RootPath + "dashboard"

	// TemplateName is the name of the dashboard template.
	TemplateName = "dashboard/dashboard"
)

// Data represents the dashboard data for template rendering.
type Data struct {
	User            models.User
	DirectoryGroups []string
	LocalGroups     []string
	IsAdmin         bool
}

// Service is the dashboard handler service.
type Service struct {
	handler.Service
	cfg *config.Config
	db  *gorm.DB
}

// Handler is the dashboard handler.
var Handler = Service{}

// Init initializes the dashboard handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB) {
	if app == nil || cfg == nil || db == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
		return
	}

	s.db = db
	s.cfg = cfg

	app.Get(Path, s.Get)
}

// Get handles the dashboard page rendering.
func (s *Service) Get(c *fiber.Ctx) error {
	// Create navigation context
	nav := navigation.NewContext("Dashboard", "dashboard", "dashboard").
		AddBreadcrumb("Home", Path, false).
		AddBreadcrumb("Dashboard", Path, true)

	usr, ok := c.Locals("CurrentUser").(models.User)
	if !ok {
		return c.Redirect("/login")
	}

	names, err := group.MemberGroups(s.db, usr.ID)
	if err != nil {
		log.Error().Err(err).Uint64("user_id", usr.ID).Msg("failed to load group memberships")

		return c.Status(fiber.StatusInternalServerError).SendString("Failed to load groups")
	}

	data := Data{User: usr}

	for _, name := range names {
		if strings.HasPrefix(name, auth.GroupPrefix) {
			data.DirectoryGroups = append(data.DirectoryGroups, name)
		} else {
			data.LocalGroups = append(data.LocalGroups, name)
		}

		if name == auth.AdministratorsGroupName {
			data.IsAdmin = true
		}
	}

	sort.Strings(data.DirectoryGroups)
	sort.Strings(data.LocalGroups)

	return c.Render(TemplateName, fiber.Map{
		"Navigation": nav,
		"Data":       data,
	}, handler.BaseLayout)
}
