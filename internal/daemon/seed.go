package daemon

import (
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/dirauthd/dirauthd/internal/auth"
	"github.com/dirauthd/dirauthd/internal/config"
	"github.com/dirauthd/dirauthd/internal/db/controller/group"
	"github.com/dirauthd/dirauthd/internal/db/models"
)

// seed creates the well-known groups and, on a fresh database, the default
// admin account.
func seed(_ *config.Config, db *gorm.DB) {
	// The built-in groups the reconciliation engine grants elevation into.
	builtins := []models.Group{
		{Name: auth.RegisteredGroupName, Hidden: true, System: true},
		{Name: auth.AdministratorsGroupName, System: true, Private: true, DisableJoinRequests: true},
		{Name: auth.ModeratorsGroupName, System: true, Private: true, DisableJoinRequests: true},
	}

	for _, g := range builtins {
		if _, err := group.CreateOrGet(db, g); err != nil {
			log.Error().Err(err).Str("group", g.Name).Msg("failed to seed group")
		}
	}

	var count int64
	db.Model(&models.User{}).Count(&count)

	if count == 0 {
		// Create default admin user
		admin := &models.User{
			Username:   "admin",
			Password:   models.HashPassword("changeme"),
			Active:     true,
			AuthSource: models.AuthSourceLocal,
		}

		if err := db.Create(admin).Error; err != nil {
			log.Error().Err(err).Msg("failed to seed admin user")
			return
		}

		if err := group.Join(db, []string{auth.AdministratorsGroupName}, admin.ID); err != nil {
			log.Error().Err(err).Msg("failed to add admin user to administrators")
		}

		log.Warn().Msg("seeded default admin user with password 'changeme', change it immediately")
	}
}
