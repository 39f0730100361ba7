package login

import "errors"

var (
	// ErrInvalidFormData is shown when the login form cannot be parsed.
	ErrInvalidFormData = errors.New("invalid form data")

	// ErrInvalidCredentials is shown for any rejected login attempt. The real
	// cause stays in the logs; the login page never distinguishes unknown
	// users from wrong passwords.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrInternal is shown when the login attempt failed server-side.
	ErrInternal = errors.New("internal server error")
)
