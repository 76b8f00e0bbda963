package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	_ "github.com/jackc/pgx/v5/stdlib" // Postgres stdlib driver, used for migrations.
	"github.com/joho/godotenv"
	"github.com/rschio/ledger/internal/core/client"
	"github.com/rschio/ledger/internal/core/client/store/clientdb"
	"github.com/rschio/ledger/internal/data/dbschema"
	db "github.com/rschio/ledger/internal/data/dbsql/pgx"
	"github.com/rschio/ledger/internal/handlers"
	"github.com/rschio/ledger/internal/lock"
	"github.com/rschio/ledger/internal/logger"
	"github.com/rschio/ledger/internal/trace"
)

var build = "develop"

func main() {
	log := logger.New(os.Stdout, slog.LevelInfo, "LEDGER")

	if err := run(log); err != nil {
		log.Error("startup", "ERROR", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	ctx := context.Background()

	// =========================================================================
	// Configuration

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	cfg := struct {
		conf.Version
		Env string `conf:"default:DEV"`
		Log struct {
			Level string `conf:"default:INFO"`
		}
		Web struct {
			Port            int           `conf:"default:9999"`
			ReadTimeout     time.Duration `conf:"default:5s"`
			WriteTimeout    time.Duration `conf:"default:10s"`
			IdleTimeout     time.Duration `conf:"default:120s"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
		}
		DB struct {
			User       string `conf:"default:postgres"`
			Password   string `conf:"default:postgres,mask"`
			Host       string `conf:"default:database:5432"`
			Name       string `conf:"default:postgres"`
			MaxConns   int    `conf:"default:0"`
			DisableTLS bool   `conf:"default:true"`
			Migrate    bool   `conf:"default:true"`
			Seed       bool   `conf:"default:true"`
		}
		Redis struct {
			Host       string
			Password   string        `conf:"mask"`
			LockExpiry time.Duration `conf:"default:30s"`
		}
		Tempo struct {
			Endpoint    string  `conf:"default:tempo:4317"`
			ServiceName string  `conf:"default:ledger"`
			Probability float64 `conf:"default:0.05"`
			Discard     bool    `conf:"default:true"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "clients ledger service",
		},
	}

	const prefix = "LEDGER"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	log = logger.New(os.Stdout, level, "LEDGER")

	// =========================================================================
	// App Starting

	log.Info("starting service", "version", build)
	defer log.Info("shutdown complete")

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Info("startup", "config", out)

	// =========================================================================
	// Tracing Support

	log.Info("startup", "status", "initializing tracing support", "discard", cfg.Tempo.Discard)

	traceProvider, err := trace.NewProvider(ctx, trace.Config{
		Env:            cfg.Env,
		Endpoint:       cfg.Tempo.Endpoint,
		Service:        cfg.Tempo.ServiceName,
		SampleFraction: cfg.Tempo.Probability,
		DiscardTraces:  cfg.Tempo.Discard,
	})
	if err != nil {
		return fmt.Errorf("starting tracing: %w", err)
	}
	defer traceProvider.Shutdown(context.Background())

	tracer := traceProvider.Tracer(cfg.Tempo.ServiceName)

	// =========================================================================
	// Database Support

	log.Info("startup", "status", "initializing database support", "host", cfg.DB.Host)

	dbCfg := db.Config{
		User:       cfg.DB.User,
		Password:   cfg.DB.Password,
		Host:       cfg.DB.Host,
		Name:       cfg.DB.Name,
		MaxConns:   cfg.DB.MaxConns,
		DisableTLS: cfg.DB.DisableTLS,
	}
	database, err := db.Open(ctx, dbCfg)
	if err != nil {
		return fmt.Errorf("connecting to db: %w", err)
	}
	defer func() {
		log.Info("shutdown", "status", "stopping database support", "host", cfg.DB.Host)
		database.Close()
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.StatusCheck(ctxWithTimeout, database); err != nil {
		return fmt.Errorf("database not healthy: %w", err)
	}

	// =========================================================================
	// Schema Support

	if cfg.DB.Migrate || cfg.DB.Seed {
		prepare := func(ctx context.Context) error {
			return prepareSchema(ctx, log, db.ConnString(dbCfg), cfg.DB.Migrate, cfg.DB.Seed)
		}

		if cfg.Redis.Host == "" {
			if err := prepare(ctx); err != nil {
				return err
			}
		} else {
			log.Info("startup", "status", "initializing lock support", "host", cfg.Redis.Host)

			rdb, err := lock.Open(ctx, lock.Config{Host: cfg.Redis.Host, Password: cfg.Redis.Password})
			if err != nil {
				return fmt.Errorf("connecting to redis: %w", err)
			}
			defer rdb.Close()

			locker := lock.New(log, rdb, cfg.Redis.LockExpiry)
			if err := locker.Do(ctx, "ledger:schema", prepare); err != nil {
				return err
			}
		}
	}

	// =========================================================================
	// Start API Service

	log.Info("startup", "status", "initializing LEDGER API support")

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	core := client.NewCore(clientdb.NewStore(log, database))
	ready := func(ctx context.Context) error { return db.StatusCheck(ctx, database) }
	srv := handlers.NewServer(log, core, ready)
	mux := handlers.APIMux(srv, tracer)

	api := http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Web.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(log.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("startup", "status", "api router started", "host", api.Addr)
		serverErrors <- api.ListenAndServe()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Info("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Info("shutdown", "status", "shutdown complete", "signal", sig)

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		if err := api.Shutdown(ctx); err != nil {
			api.Close()
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
	}

	return nil
}

func prepareSchema(ctx context.Context, log *slog.Logger, connString string, migrate, seed bool) error {
	stdDB, err := sql.Open("pgx", connString)
	if err != nil {
		return fmt.Errorf("failed to open DB for migration: %w", err)
	}
	defer stdDB.Close()

	if migrate {
		log.Info("startup", "status", "migrating database")
		if err := dbschema.Migrate(ctx, stdDB); err != nil {
			return fmt.Errorf("migrating error: %w", err)
		}
	}

	if seed {
		log.Info("startup", "status", "seeding database")
		if err := dbschema.Seed(ctx, stdDB); err != nil {
			return fmt.Errorf("seeding error: %w", err)
		}
	}

	return nil
}
