package auth

import (
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"

	"github.com/dirauthd/dirauthd/internal/directory"
)

// usernamePlaceholder is substituted into the configured user search filter.
const usernamePlaceholder = "%username%"

// userSearchAttributes are always requested for user entries. The configured
// attribute overrides are appended when they name something else.
var userSearchAttributes = []string{
	"dn", "sAMAccountName", "sn", "mail", "uid",
	// optional fields, used to build the username / full name
	"givenName", "displayName",
}

// searchUser looks up the single directory entry matching username.
// Zero results is ErrUserNotFound; a directory-side failure is ErrSearchFailed
// and any partial results are discarded.
func searchUser(conn Conn, cfg *directory.Settings, username string) (*ldap.Entry, error) {
	filter := strings.ReplaceAll(cfg.UserQuery, usernamePlaceholder, ldap.EscapeFilter(username))

	req := ldap.NewSearchRequest(
		cfg.BaseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		1, // size limit, user lookup wants exactly one entry
		cfg.Timeout,
		false,
		filter,
		userAttributes(cfg),
		nil,
	)

	res, err := conn.Search(req)
	if err != nil {
		return nil, fmt.Errorf("%w: user lookup: %w", ErrSearchFailed, err)
	}

	if len(res.Entries) == 0 {
		return nil, ErrUserNotFound
	}

	return res.Entries[0], nil
}

// searchGroups returns all directory groups matching the configured group
// filter. An unset filter means group sync is not in use.
func searchGroups(conn Conn, cfg *directory.Settings) ([]*ldap.Entry, error) {
	if cfg.GroupsQuery == "" {
		return nil, nil
	}

	req := ldap.NewSearchRequest(
		cfg.BaseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		0, // no size limit
		cfg.Timeout,
		false,
		cfg.GroupsQuery,
		[]string{"cn", cfg.MemberAttr},
		nil,
	)

	res, err := conn.Search(req)
	if err != nil {
		return nil, fmt.Errorf("%w: group lookup: %w", ErrSearchFailed, err)
	}

	return res.Entries, nil
}

// userAttributes extends the mandatory attribute set with configured overrides.
func userAttributes(cfg *directory.Settings) []string {
	attrs := make([]string, len(userSearchAttributes), len(userSearchAttributes)+3)
	copy(attrs, userSearchAttributes)

	for _, override := range []string{cfg.SurnameAttr, cfg.DisplayNameAttr, cfg.EmailAttr} {
		if override != "" && !containsString(attrs, override) {
			attrs = append(attrs, override)
		}
	}

	return attrs
}

func containsString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}

	return false
}
