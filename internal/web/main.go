// Package web provides the HTTP surface: the login flow, the dashboard and
// the administrative directory settings pages.
package web

import (
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/template/html/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/dirauthd/dirauthd/internal/auth"
	"github.com/dirauthd/dirauthd/internal/config"
	"github.com/dirauthd/dirauthd/internal/directory"
	accesslog "github.com/dirauthd/dirauthd/internal/logger/adapter/fiber"
	directorysettings "github.com/dirauthd/dirauthd/internal/web/handler/admin/settings/directory"
	"github.com/dirauthd/dirauthd/internal/web/handler/dashboard"
	"github.com/dirauthd/dirauthd/internal/web/handler/login"
	"github.com/dirauthd/dirauthd/internal/web/handler/logout"
)

// Service represents the web service.
type Service struct {
	App           *fiber.App
	cfg           *config.Config
	fastShutDown  bool
	alive         atomic.Bool
	db            *gorm.DB
	authenticator *auth.Authenticator
}

// Start starts the web service on the given address.
func (s *Service) Start(addr string) error {
	var doneFiber = make(chan bool)

	go func() {
		if err := s.App.Listen(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Msgf("fiber listen error: %v", err)
		}

		doneFiber <- true
	}()

	<-doneFiber // wait for fiber to stop

	return nil
}

// WaitShutdown waits for graceful shutdown of the web service.
func (s *Service) WaitShutdown() {
	irqSig := make(chan os.Signal, 1)
	signal.Notify(irqSig, syscall.SIGINT, syscall.SIGTERM)

	sig := <-irqSig
	log.Info().Msgf("shutdown request (signal: %v)", sig)

	// Graceful shutdown for reverse proxies: set status to fail, so /healthz returns fail.
	if !s.fastShutDown {
		log.Info().Msgf(
			"graceful shutdown: return 503 while %d seconds to let LB to remove this pod from active targets",
			s.cfg.Webserver.ShutDownTime,
		)

		s.alive.Store(false)
		time.Sleep(time.Duration(s.cfg.Webserver.ShutDownTime) * time.Second)
	}

	// stop fiber http server
	serverShutdown := make(chan struct{})

	go func() {
		log.Info().Msg("stopping http server ...")

		err := s.App.Shutdown()
		if err != nil {
			log.Error().Err(err).Msg("")
		}

		serverShutdown <- struct{}{}
	}()

	<-serverShutdown
	log.Info().Msg("http server was stopped ... good bye...")
}

// New creates a new web service with the given configuration.
func New(cfg *config.Config, db *gorm.DB) *Service {
	if cfg == nil {
		panic("config cannot be nil")
	}

	if db == nil {
		panic("db cannot be nil")
	}

	httpFS := http.FS(templateEmbedFS{embeddedTemplates})
	templateEngine := html.NewFileSystem(httpFS, ".gohtml")

	// in debug mode, use local filesystem for templates
	if cfg.DevMode {
		templateEngine = html.New("./internal/web/templates", ".gohtml")
		templateEngine.ShouldReload = true

		log.Warn().Msg("debug mode enabled: using local filesystem for templates")
	}

	// create fiber app
	app := fiber.New(
		fiber.Config{
			ReadBufferSize: 8192,
			AppName:        "dirauthd",
			CaseSensitive:  true,
			Prefork:        false,
			Immutable:      true,
			Views:          templateEngine,
		},
	)

	// access logging
	app.Use(accesslog.New(accesslog.Config{
		Config:        cfg.Log,
		CheckAliveURI: "/healthz",
	}))

	// serve embedded static files
	app.Use("/static",
		filesystem.New(
			filesystem.Config{
				Root:       http.FS(embeddedStaticFiles),
				PathPrefix: "static",
				Browse:     false,
			},
		),
	)

	// session auth middleware
	app.Use(AuthMiddleware)

	// every login goes through one authenticator, loading a fresh settings
	// snapshot per attempt
	authenticator := auth.NewAuthenticator(db, directory.DBLoader{DB: db})

	// init web service
	service := &Service{
		cfg:           cfg,
		App:           app,
		db:            db,
		authenticator: authenticator,
	}
	service.alive.Store(true)

	// init handlers (they register their own routes)
	if err := login.Handler.Init(app, cfg, db, authenticator); err != nil {
		log.Fatal().Err(err).Msg("failed to init login handler")
	}

	logout.Handler.Init(app, cfg)
	dashboard.Handler.Init(app, cfg, db)
	directorysettings.Handler.Init(app, cfg, db)

	app.Get("/healthz", service.healthz)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// redirect root to dashboard
	app.Get("/", func(c *fiber.Ctx) error {
		return c.Redirect("/dashboard")
	})

	return service
}

// healthz reports liveness. It fails during the graceful shutdown window so
// load balancers drain the instance before the listener stops.
func (s *Service) healthz(c *fiber.Ctx) error {
	if !s.alive.Load() {
		return c.Status(fiber.StatusServiceUnavailable).SendString("shutting down")
	}

	return c.SendString("ok")
}
