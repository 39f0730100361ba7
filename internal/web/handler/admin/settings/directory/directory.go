// Package directory provides the admin handler for the directory server settings.
package directory

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/dirauthd/dirauthd/internal/auth"
	"github.com/dirauthd/dirauthd/internal/config"
	"github.com/dirauthd/dirauthd/internal/db/controller/setting"
	"github.com/dirauthd/dirauthd/internal/directory"
	"github.com/dirauthd/dirauthd/internal/web/handler"
	"github.com/dirauthd/dirauthd/internal/web/handler/dashboard"
	"github.com/dirauthd/dirauthd/internal/web/middleware/admin"
	"github.com/dirauthd/dirauthd/internal/web/navigation"
)

const (
	// Path is the path to the directory settings page.
	Path = handler.RootPath + "admin/settings/directory"

	// APIPath is the path to the directory settings JSON endpoint.
	APIPath = handler.RootPath + "api/admin/settings/directory"

	// TemplateName is the name of the directory settings template.
	TemplateName = "admin/settings/directory"
)

// Service is the directory settings handler service.
type Service struct {
	handler.Service
	cfg       *config.Config
	db        *gorm.DB
	validator *validator.Validate
}

// Handler is the directory settings handler.
var Handler = Service{}

// Init initializes the directory settings handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB) {
	if app == nil || cfg == nil || db == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
		return
	}

	s.db = db
	s.cfg = cfg
	s.validator = validator.New()

	// register routes behind the administrators gate
	app.Get(Path, admin.Require(db), s.Get)
	app.Post(Path, admin.Require(db), s.Post)
	app.Get(APIPath, admin.Require(db), s.APIGet)
}

func (s *Service) nav() *navigation.Context {
	return navigation.NewContext("Directory Settings", "settings", "directory").
		AddBreadcrumb("Home", dashboard.Path, false).
		AddBreadcrumb("Settings", "", false).
		AddBreadcrumb("Directory", Path, true)
}

// Get handles the directory settings page rendering.
func (s *Service) Get(c *fiber.Ctx) error {
	settings := &directory.Settings{}
	if err := settings.Load(s.db); err != nil {
		// If settings don't exist yet, render form with empty values
		if errors.Is(err, setting.ErrSettingNotFound) {
			log.Debug().Msg("directory settings not found, rendering empty form")

			return c.Render(TemplateName, fiber.Map{
				"Settings":   settings,
				"Navigation": s.nav(),
			}, handler.BaseLayout)
		}

		log.Error().Err(err).Msg("failed to load directory settings")

		return c.Status(fiber.StatusInternalServerError).SendString("Failed to load settings")
	}

	return c.Render(TemplateName, fiber.Map{
		"Settings":   settings,
		"Navigation": s.nav(),
	}, handler.BaseLayout)
}

// Post handles the directory settings form submission.
func (s *Service) Post(c *fiber.Ctx) error {
	// Parse form data into settings struct
	settings := &directory.Settings{}
	if err := c.BodyParser(settings); err != nil {
		log.Error().Err(err).Msg("failed to parse directory settings form")

		return c.Status(fiber.StatusBadRequest).Render(
			TemplateName, fiber.Map{
				"Settings":   settings,
				"Navigation": s.nav(),
				"Error":      "Invalid form data",
			}, handler.BaseLayout)
	}

	// Validate settings
	if err := s.validator.Struct(settings); err != nil {
		var validationErrors validator.ValidationErrors
		errors.As(err, &validationErrors)

		errorMessages := make([]string, len(validationErrors))
		for i, ve := range validationErrors {
			errorMessages[i] = "Field '" + ve.Field() + "' failed validation tag '" + ve.Tag() + "'"
		}

		log.Error().Err(err).Msg("validation failed for directory settings")

		return c.Status(fiber.StatusBadRequest).Render(
			TemplateName, fiber.Map{
				"Settings":   settings,
				"Navigation": s.nav(),
				"Error":      errorMessages,
			}, handler.BaseLayout)
	}

	// Save settings to database
	if err := settings.Save(s.db); err != nil {
		log.Error().Err(err).Msg("failed to save directory settings")

		return c.Status(fiber.StatusInternalServerError).Render(
			TemplateName, fiber.Map{
				"Settings":   settings,
				"Navigation": s.nav(),
				"Error":      "Failed to save settings",
			}, handler.BaseLayout)
	}

	log.Info().
		Str("server", settings.Server).
		Str("base_dn", settings.BaseDN).
		Msg("directory settings saved successfully")

	// Probe the directory with the new settings asynchronously to avoid
	// blocking the request (non-blocking, log-only).
	if settings.Enabled() {
		go func(probe directory.Settings) {
			probe.ApplyDefaults()

			if err := auth.TestConnection(auth.NewDialer(), &probe); err != nil {
				log.Error().Err(err).Msg("failed to reach directory with new settings")
			}
		}(*settings)
	}

	// Redirect to the same page with success message
	return c.Render(
		TemplateName, fiber.Map{
			"Settings":   settings,
			"Navigation": s.nav(),
			"Success":    "Settings saved successfully",
		}, handler.BaseLayout)
}

// APIGet returns the stored directory settings as JSON. The admin password is
// blanked; it is write-only through the form.
func (s *Service) APIGet(c *fiber.Ctx) error {
	settings := &directory.Settings{}
	if err := settings.Load(s.db); err != nil && !errors.Is(err, setting.ErrSettingNotFound) {
		log.Error().Err(err).Msg("failed to load directory settings")

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to load settings",
		})
	}

	settings.AdminPassword = ""

	return c.JSON(settings)
}
