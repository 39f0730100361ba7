package auth

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/dirauthd/dirauthd/internal/db/controller/group"
	"github.com/dirauthd/dirauthd/internal/db/models"
	"github.com/dirauthd/dirauthd/internal/directory"
)

// SyncGroups creates local shell groups for every directory group matching
// the configured group filter. It runs at startup so directory groups are
// browsable before anyone has logged in; memberships are still only
// reconciled per login. Failures are reported but never fatal to startup.
func SyncGroups(db *gorm.DB, loader directory.Loader, dialer Dialer) error {
	cfg, err := loader.Load()
	if err != nil {
		log.Error().Err(err).Msg("failed to load directory settings, skipping group sync")

		return nil
	}

	if !cfg.Enabled() || cfg.GroupsQuery == "" {
		return nil
	}

	conn, err := openAdmin(dialer, cfg)
	if err != nil {
		return fmt.Errorf("group sync: %w", err)
	}

	defer closeConn(conn)

	entries, err := searchGroups(conn, cfg)
	if err != nil {
		return fmt.Errorf("group sync: %w", err)
	}

	var errs []error

	for _, entry := range entries {
		cn := entry.GetAttributeValue("cn")
		if cn == "" {
			continue
		}

		if _, err := group.CreateOrGet(db, models.Group{
			Name:                GroupPrefix + cn,
			Description:         "LDAP Group " + cn,
			Hidden:              true,
			System:              true,
			Private:             true,
			DisableJoinRequests: true,
			Source:              models.GroupSourceLDAP,
		}); err != nil {
			errs = append(errs, fmt.Errorf("sync group %q: %w", cn, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("group sync: %w", errors.Join(errs...))
	}

	log.Info().Int("groups", len(entries)).Msg("directory group sync complete")

	return nil
}
