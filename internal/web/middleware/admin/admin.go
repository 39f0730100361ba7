// Package admin provides the middleware gating administrative routes on
// membership of the administrators group.
package admin

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/dirauthd/dirauthd/internal/auth"
	"github.com/dirauthd/dirauthd/internal/db/controller/group"
	"github.com/dirauthd/dirauthd/internal/db/models"
	"github.com/dirauthd/dirauthd/internal/web/handler/login"
)

// CurrentUserKey is the fiber.Locals key holding the logged-in user.
const CurrentUserKey = "CurrentUser"

// Require returns a middleware that only lets members of the administrators
// group through. Directory-granted admins qualify the same way as local ones:
// all that counts is the group membership.
func Require(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		usr, ok := c.Locals(CurrentUserKey).(models.User)
		if !ok || usr.ID == 0 {
			return c.Redirect(login.Path)
		}

		isAdmin, err := group.IsMember(db, auth.AdministratorsGroupName, usr.ID)
		if err != nil {
			log.Error().Err(err).Uint64("user_id", usr.ID).Msg("failed to check admin membership")

			return c.Status(fiber.StatusInternalServerError).SendString("Failed to check permissions")
		}

		if !isAdmin {
			return c.Status(fiber.StatusForbidden).SendString("Forbidden")
		}

		return c.Next()
	}
}
