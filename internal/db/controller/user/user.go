// Package user provides the local user store used by the authentication engine.
package user

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/dirauthd/dirauthd/internal/db/models"
)

const (
	idQueryPattern       = "id = ?"
	usernameQueryPattern = "username = ?"
)

var (
	// ErrUserNotFound is returned when a user cannot be found in the database.
	ErrUserNotFound = errors.New("user not found")
	// ErrUsernameEmpty is returned when attempting to create a user with an empty username.
	ErrUsernameEmpty = errors.New("username cannot be empty")
	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")
)

// Create creates a new active user record from directory attributes.
// Directory users carry no local password.
func Create(db *gorm.DB, username, fullname, email string) (*models.User, error) {
	if db == nil {
		return nil, ErrDBNil
	}
	if username == "" {
		return nil, ErrUsernameEmpty
	}

	user := &models.User{
		Active:     true,
		Username:   username,
		Fullname:   fullname,
		Email:      email,
		AuthSource: models.AuthSourceLDAP,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}

	if result := db.Create(user); result.Error != nil {
		return nil, result.Error
	}

	return user, nil
}

// Get retrieves a user by ID.
func Get(db *gorm.DB, id uint64) (*models.User, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var user models.User
	result := db.Where(idQueryPattern, id).First(&user)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, result.Error
	}

	return &user, nil
}

// GetByUsername retrieves a user by username.
func GetByUsername(db *gorm.DB, username string) (*models.User, error) {
	if db == nil {
		return nil, ErrDBNil
	}
	if username == "" {
		return nil, ErrUsernameEmpty
	}

	var user models.User
	result := db.Where(usernameQueryPattern, username).First(&user)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, result.Error
	}

	return &user, nil
}

// SetFields updates the given fields on a user record.
func SetFields(db *gorm.DB, id uint64, fields map[string]interface{}) error {
	if db == nil {
		return ErrDBNil
	}

	// Copy before adding updated_at so the caller's map stays untouched.
	updates := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		updates[k] = v
	}
	updates["updated_at"] = time.Now()

	result := db.Model(&models.User{}).Where(idQueryPattern, id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}

	return nil
}

// ConfirmEmail marks the user's email address as confirmed.
func ConfirmEmail(db *gorm.DB, id uint64) error {
	return SetFields(db, id, map[string]interface{}{"email_confirmed": true})
}
