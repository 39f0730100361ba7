package auth

import "errors"

var (
	// ErrDirectoryDisabled is returned when no directory server is configured.
	// It is a bypass signal, not a failure: logins pass through to local auth.
	ErrDirectoryDisabled = errors.New("no directory server is configured")

	// ErrInvalidCredentials is returned when username or password is empty.
	// It is raised before any directory round-trip.
	ErrInvalidCredentials = errors.New("username and password must not be empty")

	// ErrBindFailed is returned when a directory connection cannot be
	// established or a bind is rejected, for both the administrative search
	// account and the end user's own credentials.
	ErrBindFailed = errors.New("directory bind failed")

	// ErrSearchFailed is returned when a directory search fails server-side
	// or mid-stream. Partial results are discarded.
	ErrSearchFailed = errors.New("directory search failed")

	// ErrProvisioning is returned when creating the local user record or the
	// directory-uid link fails. It aborts the login attempt entirely: a half
	// created identity is worse than a failed login.
	ErrProvisioning = errors.New("user provisioning failed")

	// ErrReconciliation is returned when one or more group join/leave
	// operations failed. It never fails an otherwise successful login and is
	// surfaced to operators through logging only.
	ErrReconciliation = errors.New("group reconciliation failed")

	// ErrUserNotFound is returned when a user cannot be found in the database or directory.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserAccountDisabled is returned when attempting to authenticate a disabled user account.
	ErrUserAccountDisabled = errors.New("user account is disabled")

	// ErrInvalidPassword is returned when the provided password is incorrect during authentication.
	ErrInvalidPassword = errors.New("invalid password")

	// ErrUserNameOrEmailExists is returned when creating a local user whose username or email is taken.
	ErrUserNameOrEmailExists = errors.New("username or email already exists")

	// ErrInvalidOldPassword is returned when the current password does not match during a password change.
	ErrInvalidOldPassword = errors.New("invalid old password")
)
