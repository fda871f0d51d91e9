package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/parkwise/reservation-api/internal/app"
	"github.com/parkwise/reservation-api/internal/clock"
	"github.com/parkwise/reservation-api/internal/config"
	"github.com/parkwise/reservation-api/internal/events"
	"github.com/parkwise/reservation-api/internal/logging"
	"github.com/parkwise/reservation-api/internal/storage/postgres"
	"github.com/parkwise/reservation-api/internal/storage/sqlite"
	transporthttp "github.com/parkwise/reservation-api/internal/transport/http"
	"github.com/parkwise/reservation-api/migrations"
)

const (
	startupTimeout  = 10 * time.Second
	shutdownTimeout = 10 * time.Second
)

func main() {
	bootLogger := logging.New(logging.Config{})

	cfg, err := config.Load(bootLogger)
	if err != nil {
		bootLogger.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("api stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	startupCtx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	st, err := openStore(startupCtx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	clk := clock.NewSystem()

	if cfg.Auth.AdminPassword == config.DefaultAdminPassword {
		logger.Warn("ADMIN_PASSWORD not set, seeding the administrator with the default password")
	}
	created, err := app.SeedAdmin(startupCtx, st.users, clk, cfg.Auth.AdminUsername, cfg.Auth.AdminPassword)
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if created {
		logger.Info("administrator created", "username", cfg.Auth.AdminUsername)
	}

	secret := []byte(cfg.Auth.TokenSecret)
	if len(secret) == 0 {
		logger.Warn("TOKEN_SECRET not set, using a random secret; tokens will not survive a restart")
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return fmt.Errorf("generate token secret: %w", err)
		}
	}

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaPublisher, err := events.NewKafkaPublisher(events.KafkaConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
		}, logger)
		if err != nil {
			return fmt.Errorf("kafka publisher: %w", err)
		}
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
		logger.Info("publishing reservation events", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}

	authSvc, err := app.NewAuthService(st.users, clk, secret,
		app.WithTokenTTL(cfg.Auth.TokenTTL),
		app.WithAuthLogger(logger),
	)
	if err != nil {
		return err
	}
	spotSvc := app.NewSpotService(st.spots, clk, app.WithSpotLogger(logger))
	reservationSvc := app.NewReservationService(st.reservations, clk,
		app.WithReservationPublisher(publisher),
		app.WithReservationLogger(logger),
	)
	sweeper := app.NewSweeper(st.reservations, clk,
		app.WithRetentionGrace(cfg.Retention.Grace()),
		app.WithSweeperPublisher(publisher),
		app.WithSweeperLogger(logger),
	)

	router := transporthttp.NewRouter(transporthttp.RouterDeps{
		Spots:        spotSvc,
		Reservations: reservationSvc,
		Sweeper:      sweeper,
		Auth:         authSvc,
		Store:        st.pinger,
		Logger:       logger,
	})
	handler := transporthttp.RequestLogger(transporthttp.CORS(cfg.Server.CORSOrigins, router), logger)

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("api listening",
		"port", cfg.Server.Port,
		"store", cfg.Store.Driver,
		"retention_grace", cfg.Retention.Grace(),
	)

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-stopCtx.Done():
		logger.Info("shutdown signal received, stopping server")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server shutdown error", "error", err)
	}
	logger.Info("server stopped")
	return nil
}

type reservationStore interface {
	app.ReservationRepository
	app.RetentionRepository
}

// store bundles the repositories of the configured driver.
type store struct {
	spots        app.SpotRepository
	reservations reservationStore
	users        app.UserRepository
	pinger       transporthttp.Pinger
	close        func()
}

func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (*store, error) {
	switch cfg.Store.Driver {
	case config.DriverSQLite:
		db, err := sqlite.Open(ctx, cfg.Store.SQLitePath, sqlite.Options{})
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		logger.Info("using sqlite store", "path", cfg.Store.SQLitePath)
		return &store{
			spots:        sqlite.NewSpotRepository(db),
			reservations: sqlite.NewReservationRepository(db),
			users:        sqlite.NewUserRepository(db),
			pinger:       sqlPinger{db: db},
			close:        func() { _ = db.Close() },
		}, nil
	default:
		pool, err := pgxpool.New(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect to db: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("db ping: %w", err)
		}
		applied, err := migrations.Apply(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
		for _, name := range applied {
			logger.Info("migration applied", "name", name)
		}
		return &store{
			spots:        postgres.NewSpotRepository(pool),
			reservations: postgres.NewReservationRepository(pool),
			users:        postgres.NewUserRepository(pool),
			pinger:       pool,
			close:        pool.Close,
		}, nil
	}
}

type sqlPinger struct {
	db *sql.DB
}

func (p sqlPinger) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}
