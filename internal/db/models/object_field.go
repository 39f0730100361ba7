package models

// ObjectField represents a single field of a namespaced key-value object.
// It backs the directory-uid to local-user-id index and is written at most
// once per key (see controller/object.SetFieldNX).
type ObjectField struct {
	ID uint64 `gorm:"primaryKey"`
	// Namespace groups fields that belong to the same logical object.
	Namespace string `gorm:"size:100;not null;uniqueIndex:idx_namespace_key"`
	// Key is the field name within the namespace.
	Key string `gorm:"size:255;not null;uniqueIndex:idx_namespace_key"`
	// Value is the stored field value.
	Value string `gorm:"size:255"`
}

// TableName specifies the database table name for the ObjectField model.
func (ObjectField) TableName() string {
	return "object_fields"
}
