package web

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/dirauthd/dirauthd/internal/web/handler/login"
	"github.com/dirauthd/dirauthd/internal/web/session"
)

// CurrentUserKey is the fiber.Locals key holding the logged-in user.
const CurrentUserKey = "CurrentUser"

// AuthMiddleware is a Fiber middleware that checks for user authentication.
func AuthMiddleware(c *fiber.Ctx) error {
	var (
		isLoginPage   = IsLoginPage(c)
		sessDataValid bool
	)

	originalURL := strings.ToLower(c.OriginalURL())
	for _, open := range []string{"/static", "/healthz", "/metrics", "/logout"} {
		if strings.HasPrefix(originalURL, open) {
			return c.Next()
		}
	}

	// get session cookie
	loginCookie := c.Cookies("session")

	// if no session cookie, redirect to login page
	if loginCookie == "" && !isLoginPage {
		return c.Redirect(login.Path)
	}

	// check session validity
	sessData := new(session.Data)
	if err := sessData.Read(loginCookie); err != nil {
		// If we're already on the login page, don't redirect (would cause loop)
		if isLoginPage {
			return c.Next()
		}

		return c.Redirect(login.Path)
	}

	// valid data in session
	if sessData.User.ID > 0 {
		sessDataValid = true
		// Add the current user to locals for template access
		c.Locals(CurrentUserKey, sessData.User)
	}

	if sessDataValid && isLoginPage {
		return c.Redirect("/dashboard")
	}

	return c.Next()
}

// IsLoginPage checks if the current request is for the login page.
func IsLoginPage(c *fiber.Ctx) bool {
	originalURL := strings.ToLower(c.OriginalURL())
	return strings.HasPrefix(originalURL, login.Path)
}
