package auth

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-ldap/ldap/v3"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/dirauthd/dirauthd/internal/db/controller/object"
	"github.com/dirauthd/dirauthd/internal/db/controller/user"
	"github.com/dirauthd/dirauthd/internal/db/models"
	"github.com/dirauthd/dirauthd/internal/directory"
)

// LinkNamespace is the object store namespace holding the directory-uid to
// local-user-id index. Entries are written at most once per directory uid and
// never deleted.
const LinkNamespace = "ldapid:uid"

// qualifierPattern matches a trailing parenthetical qualifier in a display
// name, e.g. the "(Contractor)" in "Jane Doe (Contractor)".
var qualifierPattern = regexp.MustCompile(`\s*\(.*\)`)

// Resolver maps directory entries to local user accounts, provisioning an
// account on the first successful login for a directory identity.
type Resolver struct {
	db     *gorm.DB
	flight singleflight.Group
}

// NewResolver creates a new identity resolver.
func NewResolver(db *gorm.DB) *Resolver {
	return &Resolver{db: db}
}

type resolveResult struct {
	userID  uint64
	created bool
}

// Resolve returns the local user id for the directory entry, creating the
// local account and the uid link on first sight. First-creation is serialized
// per directory uid, so concurrent first logins of the same identity produce
// exactly one account.
func (r *Resolver) Resolve(cfg *directory.Settings, entry *ldap.Entry) (uint64, bool, error) {
	dirUID := directoryUID(entry)
	if dirUID == "" {
		return 0, false, fmt.Errorf("%w: entry %q carries no directory uid", ErrProvisioning, entry.DN)
	}

	if userID, ok, err := r.lookupLink(dirUID); err != nil {
		return 0, false, err
	} else if ok {
		return userID, false, nil
	}

	v, err, _ := r.flight.Do(dirUID, func() (interface{}, error) {
		// Re-check under the flight: a concurrent login may have finished
		// provisioning while this call was waiting.
		if userID, ok, err := r.lookupLink(dirUID); err != nil {
			return nil, err
		} else if ok {
			return resolveResult{userID: userID}, nil
		}

		userID, err := r.provision(cfg, entry, dirUID)
		if err != nil {
			return nil, err
		}

		return resolveResult{userID: userID, created: true}, nil
	})
	if err != nil {
		return 0, false, err
	}

	res := v.(resolveResult)

	return res.userID, res.created, nil
}

// lookupLink reads the directory-uid link. A missing or zero link means the
// identity is unknown.
func (r *Resolver) lookupLink(dirUID string) (uint64, bool, error) {
	value, err := object.GetField(r.db, LinkNamespace, dirUID)
	if err != nil {
		if errors.Is(err, object.ErrFieldNotFound) {
			return 0, false, nil
		}

		return 0, false, fmt.Errorf("%w: link lookup for %q: %w", ErrProvisioning, dirUID, err)
	}

	userID, err := strconv.ParseUint(value, 10, 64)
	if err != nil || userID == 0 {
		return 0, false, nil
	}

	return userID, true, nil
}

// provision creates the local user record from directory attributes and
// records the uid link. Both writes must complete before the identity counts
// as established.
func (r *Resolver) provision(cfg *directory.Settings, entry *ldap.Entry, dirUID string) (uint64, error) {
	fullname := attributeOrOverride(entry, "sn", cfg.SurnameAttr)

	username := fullname
	if v := attributeOverride(entry, cfg.DisplayNameAttr); v != "" {
		username = v
	}
	username = qualifierPattern.ReplaceAllString(username, "")

	email := deriveEmail(attributeOrOverride(entry, "mail", cfg.EmailAttr), cfg.EmailSuffix)

	log.Debug().
		Str("directory_uid", dirUID).
		Str("username", username).
		Str("fullname", fullname).
		Msg("provisioning new directory user")

	created, err := user.Create(r.db, username, fullname, email)
	if err != nil {
		return 0, fmt.Errorf("%w: create user for %q: %w", ErrProvisioning, dirUID, err)
	}

	if cfg.AutoConfirmEnabled() && email != "" {
		if err := user.SetFields(r.db, created.ID, map[string]interface{}{"email": email}); err != nil {
			return 0, fmt.Errorf("%w: set email for %q: %w", ErrProvisioning, dirUID, err)
		}

		if err := user.ConfirmEmail(r.db, created.ID); err != nil {
			return 0, fmt.Errorf("%w: confirm email for %q: %w", ErrProvisioning, dirUID, err)
		}
	}

	if err := user.SetFields(r.db, created.ID, map[string]interface{}{
		"external_id": dirUID,
		"auth_source": models.AuthSourceLDAP,
	}); err != nil {
		return 0, fmt.Errorf("%w: link user record for %q: %w", ErrProvisioning, dirUID, err)
	}

	stored, err := object.SetFieldNX(r.db, LinkNamespace, dirUID, strconv.FormatUint(created.ID, 10))
	if err != nil {
		return 0, fmt.Errorf("%w: write uid link for %q: %w", ErrProvisioning, dirUID, err)
	}

	// Another process may have won the link write. Its user id is the truth
	// then; ours stays unreferenced rather than splitting the identity.
	if winner, perr := strconv.ParseUint(stored, 10, 64); perr == nil && winner != created.ID {
		log.Warn().
			Str("directory_uid", dirUID).
			Uint64("lost_user_id", created.ID).
			Uint64("linked_user_id", winner).
			Msg("lost uid link race, using already linked user")

		return winner, nil
	}

	return created.ID, nil
}

// directoryUID extracts the directory-assigned unique identifier of an entry.
// Active Directory style servers carry it in sAMAccountName instead of uid.
func directoryUID(entry *ldap.Entry) string {
	if v := entry.GetAttributeValue("uid"); v != "" {
		return v
	}

	return entry.GetAttributeValue("sAMAccountName")
}

// attributeOrOverride reads the default attribute, replaced by the configured
// override attribute when that is set and present on the entry.
func attributeOrOverride(entry *ldap.Entry, def, override string) string {
	value := entry.GetAttributeValue(def)

	if v := attributeOverride(entry, override); v != "" {
		value = v
	}

	return value
}

func attributeOverride(entry *ldap.Entry, override string) string {
	if override == "" {
		return ""
	}

	return entry.GetAttributeValue(override)
}

// deriveEmail appends the configured suffix to mail values that carry no @.
// A suffix that already contains an @ is appended as-is, a bare domain gets
// one inserted.
func deriveEmail(email, suffix string) string {
	if email == "" || strings.Contains(email, "@") || suffix == "" {
		return email
	}

	if strings.Contains(suffix, "@") {
		return email + suffix
	}

	return email + "@" + suffix
}
