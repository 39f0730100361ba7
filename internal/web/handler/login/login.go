package login

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/dirauthd/dirauthd/internal/auth"
	"github.com/dirauthd/dirauthd/internal/config"
	"github.com/dirauthd/dirauthd/internal/web/handler"
	"github.com/dirauthd/dirauthd/internal/web/session"
)

const (
	// Path is the path to the login page.
	Path = "/login"

	// TemplateName is the name of the login template.
	TemplateName = "login"
)

// Service is the login handler service.
type Service struct {
	handler.Service
	cfg           *config.Config
	db            *gorm.DB
	authenticator *auth.Authenticator
}

// Handler is the login handler.
var Handler = Service{}

// credentials is the login form payload.
type credentials struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}

// Init initializes the login handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, authenticator *auth.Authenticator) error {
	if app == nil || cfg == nil || db == nil || authenticator == nil {
		return errors.New("app, cfg, db or authenticator is nil")
	}

	s.db = db
	s.cfg = cfg
	s.authenticator = authenticator

	// register routes
	app.Route(Path, func(router fiber.Router) {
		router.Get(handler.RouterRootPath, s.Get)
		router.Post(handler.RouterRootPath, s.Post)
	})

	return nil
}

// Get handles the login page rendering.
func (s *Service) Get(c *fiber.Ctx) error {
	return c.Render(TemplateName, fiber.Map{
		"title": s.cfg.Title,
	})
}

// Post handles the login form submission. The authenticator decides whether
// the directory or the local database verifies the credentials.
func (s *Service) Post(c *fiber.Ctx) error {
	creds := new(credentials)

	if err := c.BodyParser(creds); err != nil {
		return c.Render(TemplateName, fiber.Map{
			"title": s.cfg.Title,
			"error": ErrInvalidFormData.Error(),
		})
	}

	usr, err := s.authenticator.Login(creds.Username, creds.Password)
	if err != nil {
		log.Warn().Err(err).Str("username", creds.Username).Msg("login rejected")

		// Provisioning failures are server-side trouble, not bad credentials.
		message := ErrInvalidCredentials
		if errors.Is(err, auth.ErrProvisioning) {
			message = ErrInternal
		}

		return c.Render(TemplateName, fiber.Map{
			"title": s.cfg.Title,
			"error": message.Error(),
		})
	}

	sessionID, err := session.GenerateSessionID()
	if err != nil {
		log.Error().Err(err).Msg("failed to generate session ID")

		return c.Render(TemplateName, fiber.Map{
			"title": s.cfg.Title,
			"error": ErrInternal.Error(),
		})
	}

	userSession := &session.Data{
		User: *usr,
	}

	if err = userSession.Write(sessionID, s.cfg.Webserver.Session.ExpiryTime); err != nil {
		log.Error().Err(err).Msg("failed to write session")

		return c.Render(TemplateName, fiber.Map{
			"title": s.cfg.Title,
			"error": ErrInternal.Error(),
		})
	}

	// set login cookie
	cookieSettings := &fiber.Cookie{
		Name:     "session",
		Value:    sessionID,
		MaxAge:   int(s.cfg.Webserver.Session.ExpiryTime.Seconds()),
		Secure:   true,
		HTTPOnly: true,
		SameSite: "Lax", // TODO: make this configurable
	}

	if s.cfg.DevMode {
		cookieSettings.Secure = false
	}

	c.Cookie(cookieSettings)

	return c.Redirect("/dashboard")
}
