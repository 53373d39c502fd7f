package main

import (
	"context"
	"encoding/json"
	"expvar"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/dcapri/hubmirror/api/cmd/build/all"
	"github.com/dcapri/hubmirror/app/sdk/mux"
	"github.com/dcapri/hubmirror/business/domain/mappingbus"
	"github.com/dcapri/hubmirror/business/domain/mappingbus/stores/mappingdb"
	"github.com/dcapri/hubmirror/business/domain/mirrorbus"
	"github.com/dcapri/hubmirror/business/domain/mirrorbus/stores/mirrordb"
	"github.com/dcapri/hubmirror/business/domain/syncbus"
	"github.com/dcapri/hubmirror/business/sdk/sqldb"
	"github.com/dcapri/hubmirror/foundation/keystore"
	"github.com/dcapri/hubmirror/foundation/logger"
	"github.com/dcapri/hubmirror/foundation/otel"
	"github.com/dcapri/hubmirror/foundation/tracker"
	"github.com/go-co-op/gocron/v2"
	"github.com/kelseyhightower/envconfig"
)

var build = "develop"

type Config struct {
	Version struct {
		Build string `json:"build"`
		Desc  string `json:"desc"`
	} `json:"version"`

	Web struct {
		ReadTimeout        time.Duration `envconfig:"WEB_READ_TIMEOUT" default:"5s"`
		WriteTimeout       time.Duration `envconfig:"WEB_WRITE_TIMEOUT" default:"10s"`
		IdleTimeout        time.Duration `envconfig:"WEB_IDLE_TIMEOUT" default:"120s"`
		ShutdownTimeout    time.Duration `envconfig:"WEB_SHUTDOWN_TIMEOUT" default:"20s"`
		APIHost            string        `envconfig:"WEB_API_HOST" default:"0.0.0.0:3000"`
		CORSAllowedOrigins []string      `envconfig:"WEB_CORS_ALLOWED_ORIGINS" default:"*"`
	}
	DB struct {
		User         string `envconfig:"DB_USER" default:"postgres"`
		Password     string `envconfig:"DB_PASSWORD" default:"postgres"`
		Host         string `envconfig:"DB_HOST" default:"localhost"`
		Name         string `envconfig:"DB_NAME" default:"hubmirror"`
		MaxIdleConns int    `envconfig:"DB_MAX_IDLE_CONNS" default:"0"`
		MaxOpenConns int    `envconfig:"DB_MAX_OPEN_CONNS" default:"0"`
		DisableTLS   bool   `envconfig:"DB_DISABLE_TLS" default:"true"`
	}
	Auth struct {
		KeysFolder string `envconfig:"AUTH_KEYS_FOLDER" default:"zarf/keys"`
		ActiveKID  string `envconfig:"AUTH_ACTIVE_KID" default:"54bb2165-71e1-41a6-af3e-7da4a0e1e2c1"`
		Issuer     string `envconfig:"AUTH_ISSUER" default:"hubmirror"`
	}
	Tracker struct {
		APIURL string `envconfig:"TRACKER_API_URL" default:"https://api.tracker.dev/v1"`
		APIKey string `envconfig:"TRACKER_API_KEY" required:"true"`

		// Workspace is the single upstream workspace this instance mirrors.
		Workspace string `envconfig:"TRACKER_WORKSPACE" required:"true"`
	}
	Sync struct {
		MappingCacheTTL   time.Duration `envconfig:"SYNC_MAPPING_CACHE_TTL" default:"60s"`
		ReconcileInterval time.Duration `envconfig:"SYNC_RECONCILE_INTERVAL" default:"5m"`
		ReconcileEnabled  bool          `envconfig:"SYNC_RECONCILE_ENABLED" default:"true"`
		CronSecret        string        `envconfig:"SYNC_CRON_SECRET"`
	}
	Admin struct {
		GlobalAdmins []string `envconfig:"ADMIN_GLOBAL_ADMINS"`
	}
	Tempo struct {
		Host        string  `envconfig:"TEMPO_HOST" default:"tempo:4317"`
		ServiceName string  `envconfig:"TEMPO_SERVICE_NAME" default:"HUBMIRROR"`
		Probability float64 `envconfig:"TEMPO_PROBABILITY" default:"0.05"`
		Enabled     bool    `envconfig:"TEMPO_ENABLED" default:"true"`
	}
}

func main() {
	var log *logger.Logger

	events := logger.Events{
		Error: func(ctx context.Context, r logger.Record) {
			log.Info(ctx, "******* SEND ALERT *******")
		},
	}

	log = logger.NewWithEvents(os.Stdout, logger.LevelInfo, "HUBMIRROR", otel.GetTraceID, events)

	// -------------------------------------------------------------------------

	ctx := context.Background()

	if err := run(ctx, log); err != nil {
		log.Error(ctx, "startup", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, log *logger.Logger) error {

	// -------------------------------------------------------------------------
	// GOMAXPROCS

	log.Info(ctx, "startup", "GOMAXPROCS", runtime.GOMAXPROCS(0))

	// -------------------------------------------------------------------------
	// Configuration

	var cfg Config

	cfg.Version.Build = build
	cfg.Version.Desc = "HUBMIRROR"

	if err := envconfig.Process("", &cfg); err != nil {
		return fmt.Errorf("processing config: %w", err)
	}

	// -------------------------------------------------------------------------
	// App Info & Config Logging

	log.Info(ctx, "startup", "version", cfg.Version)
	log.Info(ctx, "startup", "config", sanitizeConfig(cfg))

	// -------------------------------------------------------------------------
	// App Starting

	log.Info(ctx, "starting service", "version", cfg.Version.Build)
	defer log.Info(ctx, "shutdown complete")

	log.BuildInfo(ctx)

	expvar.NewString("build").Set(cfg.Version.Build)

	// -------------------------------------------------------------------------
	// Database Support

	log.Info(ctx, "startup", "status", "initializing database support", "hostport", cfg.DB.Host)

	db, err := sqldb.Open(sqldb.Config{
		User:         cfg.DB.User,
		Password:     cfg.DB.Password,
		Host:         cfg.DB.Host,
		Name:         cfg.DB.Name,
		MaxIdleConns: cfg.DB.MaxIdleConns,
		MaxOpenConns: cfg.DB.MaxOpenConns,
		DisableTLS:   cfg.DB.DisableTLS,
	})
	if err != nil {
		return fmt.Errorf("connecting to db: %w", err)
	}

	defer db.Close()

	// -------------------------------------------------------------------------
	// Auth Support

	log.Info(ctx, "startup", "status", "initializing authentication support")

	ks := keystore.New()

	if _, err := ks.LoadByFileSystem(os.DirFS(cfg.Auth.KeysFolder)); err != nil {
		return fmt.Errorf("loading keys: %w", err)
	}

	// -------------------------------------------------------------------------
	// Start Tracing Support

	log.Info(ctx, "startup", "status", "initializing tracing support")

	traceProvider, teardown, err := otel.InitTracing(log, otel.Config{
		ServiceName: cfg.Tempo.ServiceName,
		Host:        cfg.Tempo.Host,
		ExcludedRoutes: map[string]struct{}{
			"/v1/liveness":  {},
			"/v1/readiness": {},
		},
		Probability: cfg.Tempo.Probability,
	})
	if err != nil {
		return fmt.Errorf("starting tracing: %w", err)
	}

	defer teardown(context.Background())

	tracer := traceProvider.Tracer(cfg.Tempo.ServiceName)

	// -------------------------------------------------------------------------
	// Upstream Tracker Support

	log.Info(ctx, "startup", "status", "initializing tracker client", "apiurl", cfg.Tracker.APIURL, "workspace", cfg.Tracker.Workspace)

	trackerClient := tracker.New(tracker.Config{
		APIURL: cfg.Tracker.APIURL,
		APIKey: cfg.Tracker.APIKey,
	})

	// -------------------------------------------------------------------------
	// Scheduled Reconciliation

	// The scheduler gets its own bus wiring with an uncached mapping store.
	// Reconcile runs are infrequent and must see mapping changes immediately.

	if cfg.Sync.ReconcileEnabled {
		log.Info(ctx, "startup", "status", "initializing reconcile scheduler", "interval", cfg.Sync.ReconcileInterval)

		mappingBus := mappingbus.NewCore(log, mappingdb.NewStore(log, db))
		mirrorBus := mirrorbus.NewCore(log, mirrordb.NewStore(log, db))
		syncBus := syncbus.NewCore(log, trackerClient, mirrorBus, mappingBus, cfg.Tracker.Workspace)

		sched, err := gocron.NewScheduler()
		if err != nil {
			return fmt.Errorf("creating scheduler: %w", err)
		}

		_, err = sched.NewJob(
			gocron.DurationJob(cfg.Sync.ReconcileInterval),
			gocron.NewTask(func() {
				ctx := context.Background()

				res, err := syncBus.Reconcile(ctx)
				if err != nil {
					log.Error(ctx, "reconcile", "err", err)
					return
				}

				log.Info(ctx, "reconcile", "projects", res.Projects, "issues", res.Issues, "comments", res.Comments, "errors", res.Errors)
			}),
		)
		if err != nil {
			return fmt.Errorf("scheduling reconcile: %w", err)
		}

		sched.Start()
		defer sched.Shutdown()
	}

	// -------------------------------------------------------------------------
	// Start API Service

	log.Info(ctx, "startup", "status", "initializing V1 API support")

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	cfgMux := mux.Config{
		Build:  cfg.Version.Build,
		Log:    log,
		DB:     db,
		Tracer: tracer,
		AuthConfig: mux.AuthConfig{
			KeyLookup: ks,
			Issuer:    cfg.Auth.Issuer,
			ActiveKID: cfg.Auth.ActiveKID,
		},
		Tracker:         trackerClient,
		Workspace:       cfg.Tracker.Workspace,
		MappingCacheTTL: cfg.Sync.MappingCacheTTL,
		GlobalAdmins:    cfg.Admin.GlobalAdmins,
		CronSecret:      cfg.Sync.CronSecret,
	}

	webAPI := mux.WebAPI(cfgMux,
		all.Routes(),
		mux.WithCORS(cfg.Web.CORSAllowedOrigins),
	)

	api := http.Server{
		Addr:         cfg.Web.APIHost,
		Handler:      webAPI,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     logger.NewStdLogger(log, logger.LevelError),
	}

	serverErrors := make(chan error, 1)

	go func() {
		log.Info(ctx, "startup", "status", "api router started", "host", api.Addr)
		serverErrors <- api.ListenAndServe()
	}()

	// -------------------------------------------------------------------------
	// Shutdown

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Info(ctx, "shutdown", "status", "shutdown started", "signal", sig)
		defer log.Info(ctx, "shutdown", "status", "shutdown complete", "signal", sig)

		ctx, cancel := context.WithTimeout(ctx, cfg.Web.ShutdownTimeout)
		defer cancel()

		if err := api.Shutdown(ctx); err != nil {
			api.Close()
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
	}

	return nil
}

func sanitizeConfig(cfg Config) string {
	cfg.DB.Password = "[MASKED]"
	cfg.Tracker.APIKey = "[MASKED]"
	cfg.Sync.CronSecret = "[MASKED]"

	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Sprintf("%+v", cfg)
	}
	return string(data)
}
