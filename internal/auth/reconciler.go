package auth

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-ldap/ldap/v3"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/dirauthd/dirauthd/internal/db/controller/group"
	"github.com/dirauthd/dirauthd/internal/db/models"
	"github.com/dirauthd/dirauthd/internal/directory"
)

const (
	// GroupPrefix is prepended to directory group names to form the local
	// mirror group name, keeping directory-managed groups apart from
	// locally created ones.
	GroupPrefix = "ldap-"

	// RegisteredGroupName is the local group every directory user joins when
	// the registered-group flag is on.
	RegisteredGroupName = "registered"

	// AdministratorsGroupName is the local group granted through the
	// configured admin group list.
	AdministratorsGroupName = "administrators"

	// ModeratorsGroupName is the local group granted through the configured
	// moderator group list.
	ModeratorsGroupName = "Global Moderators"

	// reconcileConcurrency bounds the per-group reconciliation fan-out.
	reconcileConcurrency = 4
)

// Reconciler aligns a user's local group memberships with the directory's
// view on every successful login.
type Reconciler struct {
	db *gorm.DB
}

// NewReconciler creates a new group reconciler.
func NewReconciler(db *gorm.DB) *Reconciler {
	return &Reconciler{db: db}
}

// Reconcile joins and leaves the local mirror groups for one user based on
// the directory's group entries. Every group is attempted even when some
// fail; the combined failures come back wrapped in ErrReconciliation. An
// error never invalidates the login itself.
func (r *Reconciler) Reconcile(cfg *directory.Settings, conn Conn, userID uint64, dirUID string) error {
	var (
		mu   sync.Mutex
		errs []error
	)

	collect := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	if cfg.RegisteredGroupEnabled() {
		if err := r.joinRegistered(userID); err != nil {
			collect(err)
		}
	}

	entries, err := searchGroups(conn, cfg)
	if err != nil {
		collect(err)
		entries = nil
	}

	var g errgroup.Group

	g.SetLimit(reconcileConcurrency)

	for _, entry := range entries {
		g.Go(func() error {
			if err := r.reconcileGroup(cfg, entry, userID, dirUID); err != nil {
				collect(err)
			}

			return nil
		})
	}

	_ = g.Wait()

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrReconciliation, errors.Join(errs...))
	}

	return nil
}

// joinRegistered ensures the registered group exists and the user is in it.
func (r *Reconciler) joinRegistered(userID uint64) error {
	if _, err := group.CreateOrGet(r.db, models.Group{
		Name:   RegisteredGroupName,
		Hidden: true,
		System: true,
	}); err != nil {
		return fmt.Errorf("ensure %q group: %w", RegisteredGroupName, err)
	}

	if err := group.Join(r.db, []string{RegisteredGroupName}, userID); err != nil {
		return fmt.Errorf("join %q group: %w", RegisteredGroupName, err)
	}

	return nil
}

// reconcileGroup mirrors one directory group locally and joins or leaves the
// user depending on whether the directory lists them as a member. Membership
// of an elevation group also grants the matching built-in group; elevation is
// grant-only and never revoked here.
func (r *Reconciler) reconcileGroup(cfg *directory.Settings, entry *ldap.Entry, userID uint64, dirUID string) error {
	cn := entry.GetAttributeValue("cn")
	if cn == "" {
		return nil
	}

	name := GroupPrefix + cn

	if _, err := group.CreateOrGet(r.db, models.Group{
		Name:                name,
		Description:         "LDAP Group " + cn,
		Hidden:              true,
		System:              true,
		Private:             true,
		DisableJoinRequests: true,
		Source:              models.GroupSourceLDAP,
	}); err != nil {
		return fmt.Errorf("ensure group %q: %w", name, err)
	}

	if !isDirectoryMember(entry.GetAttributeValues(cfg.MemberAttr), dirUID) {
		if err := group.Leave(r.db, []string{name}, userID); err != nil {
			return fmt.Errorf("leave group %q: %w", name, err)
		}

		return nil
	}

	joins := []string{name}

	if containsString(cfg.AdminGroupList(), cn) {
		joins = append(joins, AdministratorsGroupName)
	}

	if containsString(cfg.ModeratorGroupList(), cn) {
		joins = append(joins, ModeratorsGroupName)
	}

	log.Debug().
		Str("directory_uid", dirUID).
		Strs("groups", joins).
		Msg("joining directory groups")

	if err := group.Join(r.db, joins, userID); err != nil {
		return fmt.Errorf("join group %q: %w", name, err)
	}

	return nil
}

// isDirectoryMember reports whether any member value references the directory
// uid. Matching is by substring: member values are full DNs and the uid
// appears as an attribute value inside them.
func isDirectoryMember(members []string, dirUID string) bool {
	if dirUID == "" {
		return false
	}

	for _, member := range members {
		if strings.Contains(member, dirUID) {
			return true
		}
	}

	return false
}
