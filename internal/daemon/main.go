// Package daemon wires the database, the session store and the web service
// together and runs the startup directory group sync.
package daemon

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/storage"
	sessionmemory "github.com/gofiber/storage/memory/v2"
	sessionmysql "github.com/gofiber/storage/mysql/v2"
	sessionpostgres "github.com/gofiber/storage/postgres/v3"
	"github.com/rs/zerolog/log"
	gormmysql "gorm.io/driver/mysql"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/dirauthd/dirauthd/internal/auth"
	"github.com/dirauthd/dirauthd/internal/config"
	"github.com/dirauthd/dirauthd/internal/db/dsn"
	"github.com/dirauthd/dirauthd/internal/db/models"
	"github.com/dirauthd/dirauthd/internal/directory"
	"github.com/dirauthd/dirauthd/internal/web"
	"github.com/dirauthd/dirauthd/internal/web/session"
)

// Daemon represents the main application daemon.
type Daemon struct {
	cfg        *config.Config
	webService web.Service
}

// Start starts the Daemon's web service and blocks until it has shut down.
func (d *Daemon) Start() error {
	go d.webService.WaitShutdown()

	return d.webService.Start(fmt.Sprintf(":%d", d.cfg.Webserver.Port))
}

// New creates a new Daemon instance with the provided configuration.
func New(cfg *config.Config) *Daemon {
	if cfg == nil {
		log.Fatal().Msg("config is nil")
		return nil
	}

	db, err := gorm.Open(openDialector(cfg), &gorm.Config{})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}

	if err = db.AutoMigrate(
		&models.User{},
		&models.Group{},
		&models.UserGroup{},
		&models.Setting{},
		&models.ObjectField{},
	); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	seed(cfg, db)

	session.Init(sessionStorage(cfg))

	// Mirror directory groups at startup. Failure is not fatal: groups are
	// reconciled again on every login.
	if err := auth.SyncGroups(db, directory.DBLoader{DB: db}, auth.NewDialer()); err != nil {
		log.Error().Err(err).Msg("startup directory group sync failed")
	}

	return &Daemon{
		cfg:        cfg,
		webService: *web.New(cfg, db),
	}
}

// openDialector selects the gorm driver for the configured engine.
func openDialector(cfg *config.Config) gorm.Dialector {
	switch cfg.DB.EngineOrDefault() {
	case config.EngineMySQL:
		return gormmysql.Open(dsn.Create(cfg))
	case config.EnginePostgres:
		return gormpostgres.Open(dsn.CreatePostgres(cfg))
	default:
		return sqlite.Open(cfg.DB.PathOrDefault())
	}
}

// sessionStorage selects the fiber session backend matching the database
// engine. The sqlite engine keeps sessions in memory; they do not survive a
// restart, which only forces a re-login.
func sessionStorage(cfg *config.Config) storage.Storage {
	switch cfg.DB.EngineOrDefault() {
	case config.EngineMySQL:
		return sessionmysql.New(sessionmysql.Config{
			ConnectionURI: dsn.Create(cfg),
			Table:         "sessions",
		})
	case config.EnginePostgres:
		return sessionpostgres.New(sessionpostgres.Config{
			ConnectionURI: dsn.CreatePostgres(cfg),
			Table:         "sessions",
		})
	default:
		return sessionmemory.New()
	}
}
