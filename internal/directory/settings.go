// Package directory holds the directory server settings and the loader that
// produces one immutable settings snapshot per login attempt or sync run.
package directory

import (
	"encoding/json"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/dirauthd/dirauthd/internal/db/controller/setting"
)

const (
	// SettingKeyDirectory is the key used to store directory settings in the database.
	SettingKeyDirectory = "directory"

	// FlagOn is the value that enables a three-state on/off/unset flag.
	// Anything other than "on", including absence, counts as off.
	FlagOn = "on"

	defaultPort       = 389
	defaultTimeout    = 10
	defaultMemberAttr = "uniqueMember"
)

type (
	// Settings represents the directory server configuration.
	// All fields are optional; an empty Server disables directory
	// authentication entirely and every login passes through to local auth.
	Settings struct {
		// Server is the directory host, optionally carrying an ldap:// or ldaps:// scheme.
		Server string `form:"server"           json:"server"`
		// Port is the directory server port.
		Port int `form:"port"             json:"port"`
		// AdminDN is the distinguished name of the administrative search account.
		AdminDN string `form:"admin_dn"         json:"adminDn"`
		// AdminPassword is the password of the administrative search account.
		AdminPassword string `form:"admin_password"   json:"adminPassword"`
		// BaseDN is the base distinguished name for subtree searches.
		BaseDN string `form:"base_dn"          json:"baseDn"`
		// UserQuery is the user search filter, with %username% as placeholder.
		UserQuery string `form:"user_query"       json:"userQuery"`
		// GroupsQuery is the group search filter.
		GroupsQuery string `form:"groups_query"     json:"groupsQuery"`
		// SurnameAttr overrides the attribute used for the full name (default sn).
		SurnameAttr string `form:"surname_attr"     json:"surnameAttr"`
		// DisplayNameAttr overrides the attribute used for the username (default the full name).
		DisplayNameAttr string `form:"display_name_attr" json:"displayNameAttr"`
		// EmailAttr overrides the attribute used for the email address (default mail).
		EmailAttr string `form:"email_attr"       json:"emailAttr"`
		// MemberAttr is the group attribute listing member entries.
		MemberAttr string `form:"member_attr"      json:"memberAttr"`
		// EmailSuffix is appended to mail values that carry no @.
		EmailSuffix string `form:"email_suffix"     json:"emailSuffix"`
		// AutoConfirm set to "on" confirms the email address of newly provisioned users.
		AutoConfirm string `form:"auto_confirm"     json:"autoConfirm"`
		// RegisteredGroup set to "on" joins every directory user to the registered group.
		RegisteredGroup string `form:"registered_group" json:"registeredGroup"`
		// AdminGroups is a comma separated list of directory group names granting administrators.
		AdminGroups string `form:"admin_groups"     json:"adminGroups"`
		// ModeratorGroups is a comma separated list of directory group names granting Global Moderators.
		ModeratorGroups string `form:"moderator_groups" json:"moderatorGroups"`
		// Timeout is the connection timeout in seconds.
		Timeout int `form:"timeout"          json:"timeout" validate:"omitempty,min=0,max=300"`
	}

	// Loader produces a settings snapshot. The authenticator asks for a fresh
	// snapshot once per login attempt so a login never observes a settings
	// change halfway through.
	Loader interface {
		Load() (*Settings, error)
	}
)

// Enabled reports whether a directory server is configured at all.
func (s *Settings) Enabled() bool {
	return s != nil && s.Server != ""
}

// AutoConfirmEnabled reports whether new users get their email auto confirmed.
func (s *Settings) AutoConfirmEnabled() bool {
	return s.AutoConfirm == FlagOn
}

// RegisteredGroupEnabled reports whether directory users auto-join the registered group.
func (s *Settings) RegisteredGroupEnabled() bool {
	return s.RegisteredGroup == FlagOn
}

// AdminGroupList returns the directory group names granting the administrators group.
func (s *Settings) AdminGroupList() []string {
	return splitGroupList(s.AdminGroups)
}

// ModeratorGroupList returns the directory group names granting the Global Moderators group.
func (s *Settings) ModeratorGroupList() []string {
	return splitGroupList(s.ModeratorGroups)
}

func splitGroupList(list string) []string {
	if list == "" {
		return nil
	}

	parts := strings.Split(list, ",")
	out := make([]string, 0, len(parts))

	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}

	return out
}

// ApplyDefaults fills the fields the admin form may leave empty.
func (s *Settings) ApplyDefaults() {
	if s.Port == 0 {
		s.Port = defaultPort
	}

	if s.Timeout == 0 {
		s.Timeout = defaultTimeout
	}

	if s.MemberAttr == "" {
		s.MemberAttr = defaultMemberAttr
	}
}

// Load loads the directory settings from the database.
func (s *Settings) Load(db *gorm.DB) error {
	// Retrieve the setting from the database
	stored, err := setting.Get(db, SettingKeyDirectory)
	if err != nil {
		return err
	}

	// Unmarshal the JSON blob into the struct
	return json.Unmarshal(stored.Value, s)
}

// Save saves the directory settings to the database.
func (s *Settings) Save(db *gorm.DB) error {
	// Marshal the struct to JSON
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}

	// Save or update the setting in the database
	_, err = setting.Set(db, SettingKeyDirectory, data)

	return err
}

// DBLoader loads settings snapshots from the settings table.
type DBLoader struct {
	DB *gorm.DB
}

// Load returns a fresh settings snapshot with defaults applied.
// Settings that were never saved yield an empty (disabled) snapshot.
func (l DBLoader) Load() (*Settings, error) {
	s := &Settings{}

	if err := s.Load(l.DB); err != nil {
		if errors.Is(err, setting.ErrSettingNotFound) {
			return s, nil
		}

		return nil, err
	}

	s.ApplyDefaults()

	return s, nil
}
