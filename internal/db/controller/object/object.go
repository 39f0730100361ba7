// Package object provides a namespaced key-value store over the object_fields
// table. The directory login flow uses it for the directory-uid to local-user-id
// index, where the first writer must win and every later writer must observe the
// first writer's value.
package object

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dirauthd/dirauthd/internal/db/models"
)

const (
	namespaceKeyQueryPattern = "namespace = ? AND key = ?"
)

var (
	// ErrFieldNotFound is returned when a field is not present in the namespace.
	ErrFieldNotFound = errors.New("object field not found")
	// ErrNamespaceEmpty is returned when the namespace is empty.
	ErrNamespaceEmpty = errors.New("object namespace cannot be empty")
	// ErrKeyEmpty is returned when the field key is empty.
	ErrKeyEmpty = errors.New("object field key cannot be empty")
	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")
)

// GetField retrieves the value stored under namespace/key.
func GetField(db *gorm.DB, namespace, key string) (string, error) {
	if db == nil {
		return "", ErrDBNil
	}
	if namespace == "" {
		return "", ErrNamespaceEmpty
	}
	if key == "" {
		return "", ErrKeyEmpty
	}

	var field models.ObjectField
	result := db.Where(namespaceKeyQueryPattern, namespace, key).First(&field)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return "", ErrFieldNotFound
		}
		return "", result.Error
	}

	return field.Value, nil
}

// SetField stores value under namespace/key, overwriting any previous value.
func SetField(db *gorm.DB, namespace, key, value string) error {
	if db == nil {
		return ErrDBNil
	}
	if namespace == "" {
		return ErrNamespaceEmpty
	}
	if key == "" {
		return ErrKeyEmpty
	}

	field := &models.ObjectField{
		Namespace: namespace,
		Key:       key,
		Value:     value,
	}

	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "namespace"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(field)

	return result.Error
}

// SetFieldNX stores value under namespace/key only if the key is absent and
// returns the value that ended up stored. When another writer got there first
// the existing value is returned unchanged, which makes the write usable as a
// compare-and-set for exactly-once link creation.
func SetFieldNX(db *gorm.DB, namespace, key, value string) (string, error) {
	if db == nil {
		return "", ErrDBNil
	}
	if namespace == "" {
		return "", ErrNamespaceEmpty
	}
	if key == "" {
		return "", ErrKeyEmpty
	}

	field := &models.ObjectField{
		Namespace: namespace,
		Key:       key,
		Value:     value,
	}

	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "namespace"}, {Name: "key"}},
		DoNothing: true,
	}).Create(field)
	if result.Error != nil {
		return "", result.Error
	}

	// Re-read to learn which writer won the insert.
	return GetField(db, namespace, key)
}
