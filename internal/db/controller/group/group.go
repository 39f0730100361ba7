// Package group provides the local group store used by the reconciliation engine.
// Creation is modelled as create-or-get: asking for a group that already exists
// returns the existing row instead of an error, so every caller can treat
// creation as idempotent.
package group

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dirauthd/dirauthd/internal/db/models"
)

const (
	nameQueryPattern = "name = ?"
)

var (
	// ErrGroupNotFound is returned when a group cannot be found in the database.
	ErrGroupNotFound = errors.New("group not found")
	// ErrGroupNameEmpty is returned when a group name is empty.
	ErrGroupNameEmpty = errors.New("group name cannot be empty")
	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")
)

// Exists reports whether a group with the given name exists.
func Exists(db *gorm.DB, name string) (bool, error) {
	if db == nil {
		return false, ErrDBNil
	}
	if name == "" {
		return false, ErrGroupNameEmpty
	}

	var count int64
	result := db.Model(&models.Group{}).Where(nameQueryPattern, name).Count(&count)
	if result.Error != nil {
		return false, result.Error
	}

	return count > 0, nil
}

// CreateOrGet creates the group described by spec, or returns the existing
// group with the same name. The returned group is identical whether or not it
// pre-existed.
func CreateOrGet(db *gorm.DB, spec models.Group) (*models.Group, error) {
	if db == nil {
		return nil, ErrDBNil
	}
	if spec.Name == "" {
		return nil, ErrGroupNameEmpty
	}

	group := spec

	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&group)
	if result.Error != nil {
		return nil, result.Error
	}

	// Re-read so concurrent creators all observe the same row.
	var stored models.Group
	if err := db.Where(nameQueryPattern, spec.Name).First(&stored).Error; err != nil {
		return nil, err
	}

	return &stored, nil
}

// Join adds the user to every named group. Memberships that already exist are
// left untouched. All groups must exist.
func Join(db *gorm.DB, names []string, userID uint64) error {
	if db == nil {
		return ErrDBNil
	}

	for _, name := range names {
		var grp models.Group
		if err := db.Where(nameQueryPattern, name).First(&grp).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrGroupNotFound
			}
			return err
		}

		membership := &models.UserGroup{
			UserID:  userID,
			GroupID: grp.ID,
		}

		result := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "group_id"}},
			DoNothing: true,
		}).Create(membership)
		if result.Error != nil {
			return result.Error
		}
	}

	return nil
}

// Leave removes the user from every named group. Memberships that do not
// exist, and groups that do not exist, are silently skipped.
func Leave(db *gorm.DB, names []string, userID uint64) error {
	if db == nil {
		return ErrDBNil
	}

	for _, name := range names {
		var grp models.Group
		if err := db.Where(nameQueryPattern, name).First(&grp).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return err
		}

		result := db.Where("user_id = ? AND group_id = ?", userID, grp.ID).
			Delete(&models.UserGroup{})
		if result.Error != nil {
			return result.Error
		}
	}

	return nil
}

// IsMember reports whether the user is a member of the named group.
// A group that does not exist has no members.
func IsMember(db *gorm.DB, name string, userID uint64) (bool, error) {
	if db == nil {
		return false, ErrDBNil
	}
	if name == "" {
		return false, ErrGroupNameEmpty
	}

	var count int64
	result := db.Table("user_groups").
		Joins("JOIN groups ON groups.id = user_groups.group_id").
		Where("user_groups.user_id = ? AND groups.name = ?", userID, name).
		Count(&count)
	if result.Error != nil {
		return false, result.Error
	}

	return count > 0, nil
}

// MemberGroups returns the names of all groups the user belongs to.
func MemberGroups(db *gorm.DB, userID uint64) ([]string, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var names []string
	result := db.Table("groups").
		Select("groups.name").
		Joins("JOIN user_groups ON user_groups.group_id = groups.id").
		Where("user_groups.user_id = ?", userID).
		Pluck("groups.name", &names)
	if result.Error != nil {
		return nil, result.Error
	}

	return names, nil
}
