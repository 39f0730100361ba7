package models

import "time"

// GroupSource represents the origin of a user group.
type GroupSource string

const (
	// GroupSourceLocal indicates the group is locally managed within the application.
	GroupSourceLocal GroupSource = "local"
	// GroupSourceLDAP indicates the group mirrors an LDAP or Active Directory group.
	GroupSourceLDAP GroupSource = "ldap"
)

// Group represents a user group.
// Directory-derived groups are created as hidden system shells and their
// memberships are reconciled against the directory on every login.
type Group struct {
	// ID is the unique identifier for the group.
	ID uint `gorm:"primaryKey"`
	// Name is the unique name of the group ("ldap-<cn>" for directory groups).
	Name string `gorm:"size:100;not null;uniqueIndex"`
	// Description provides a human-readable explanation of the group's purpose.
	Description string `gorm:"size:255"`
	// Hidden marks the group as not listed in user facing group overviews.
	Hidden bool
	// System marks the group as maintained by the system rather than by users.
	System bool
	// Private marks the group as invisible to non-members.
	Private bool
	// DisableJoinRequests blocks users from requesting membership themselves.
	DisableJoinRequests bool
	// Source indicates where the group originates from (local or ldap).
	Source GroupSource `gorm:"type:varchar(20);not null;default:'local'"`
	// CreatedAt is the timestamp when the group was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the group was last updated (managed by GORM).
	UpdatedAt time.Time
}

// TableName specifies the database table name for the Group model.
// This overrides GORM's default pluralized table naming.
func (Group) TableName() string {
	return "groups"
}
