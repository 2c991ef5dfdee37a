package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aussiebroadwan/lockbox/internal/auth/faceverify"
	httpapi "github.com/aussiebroadwan/lockbox/internal/auth/http"
	"github.com/aussiebroadwan/lockbox/internal/auth/push"
	"github.com/aussiebroadwan/lockbox/internal/auth/realtime"
	"github.com/aussiebroadwan/lockbox/internal/auth/revocation"
	"github.com/aussiebroadwan/lockbox/internal/auth/service"
	"github.com/aussiebroadwan/lockbox/internal/auth/store"
	"github.com/aussiebroadwan/lockbox/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/lockbox/pkg/cryptox"
	"github.com/aussiebroadwan/lockbox/pkg/httpx"
	"github.com/aussiebroadwan/lockbox/pkg/jwtx"
	"github.com/aussiebroadwan/lockbox/pkg/slogx"
	"github.com/redis/go-redis/v9"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// pushGateway is the push transport plus whatever it holds open.
type pushGateway interface {
	service.PushGateway
	Close() error
}

// Application encapsulates the auth service application with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db          store.Store
	keyManager  *jwtx.KeyManager
	secretBox   *cryptox.SecretBox
	redis       *redis.Client // nil without REDIS_URL
	revocations revocation.Registry
	push        pushGateway
	faces       *faceverify.Client
	hub         *realtime.Hub
	broker      *realtime.RedisBroker // nil without REDIS_URL

	// Services
	tokenService        *service.TokenService
	userService         *service.UserService
	totpService         *service.TOTPService
	deviceService       *service.DeviceService
	faceRequestService  *service.FaceRequestService
	loginService        *service.LoginService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router

	stopBroker  context.CancelFunc
	brokerReady chan struct{}
	brokerDone  chan struct{}
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "lockbox-auth",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	// Set pepper path for password hashing
	cryptox.SetPepperPath(app.cfg.PepperFile)
	httpx.TrustProxyHeaders = app.cfg.TrustProxyHeaders

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	keyManager, err := InitAuthKeys(app.cfg, app.logger)
	if err != nil {
		_ = app.db.Close()
		return nil, err
	}
	app.keyManager = keyManager

	box, err := InitSecretBox(app.cfg, app.logger)
	if err != nil {
		_ = app.db.Close()
		return nil, err
	}
	app.secretBox = box

	if err := app.initRedis(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initCollaborators()
	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.startBackground()

	app.logger.Info("auth service starting", "port", app.cfg.Port, "version", BuildVersion)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a shutdown signal or server error
	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown stops accepting requests, then stops the background workers and
// closes the outbound connections before the database.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.stopBackground()

	if err := app.push.Close(); err != nil {
		app.logger.Error("error closing push gateway", "error", err)
	}

	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("error closing redis client", "error", err)
		}
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

// startBackground starts the housekeeping worker and, with redis, the loop
// that feeds realtime events from other instances into the local hub.
func (app *Application) startBackground() {
	app.housekeepingService.Start()

	if app.broker == nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	app.stopBroker = cancel
	app.brokerReady = make(chan struct{})
	app.brokerDone = make(chan struct{})
	go func() {
		defer close(app.brokerDone)
		if err := app.broker.Run(ctx, app.hub, app.brokerReady); err != nil {
			app.logger.Error("realtime broker stopped", "error", err)
		}
	}()
}

func (app *Application) stopBackground() {
	app.housekeepingService.Stop()

	if app.stopBroker != nil {
		app.stopBroker()
		<-app.brokerDone
	}
}

// initDatabase initializes the database and applies migrations
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initRedis connects to redis when REDIS_URL is set. Without it revocations
// and realtime rooms are local to this instance.
func (app *Application) initRedis() error {
	if app.cfg.RedisURL == "" {
		app.logger.Warn("REDIS_URL not set, revocations and realtime rooms are not shared between instances")
		return nil
	}

	opts, err := redis.ParseURL(app.cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	app.redis = client
	app.logger.Info("connected to redis", "addr", opts.Addr)
	return nil
}

// initCollaborators picks the shared or local variant of every outbound
// dependency.
func (app *Application) initCollaborators() {
	if app.redis != nil {
		app.revocations = revocation.NewRedis(app.redis)
		app.broker = realtime.NewRedisBroker(app.redis, app.logger)
		app.hub = realtime.NewHub(app.broker, app.logger)
	} else {
		app.revocations = revocation.NewMemory()
		app.hub = realtime.NewHub(nil, app.logger)
	}

	if len(app.cfg.KafkaBrokers) > 0 {
		app.push = push.NewKafkaGateway(push.NewKafkaWriter(app.cfg.KafkaBrokers, app.cfg.KafkaPushTopic), app.logger)
		app.logger.Info("push dispatch via kafka", "brokers", app.cfg.KafkaBrokers, "topic", app.cfg.KafkaPushTopic)
	} else {
		app.push = push.LogGateway{Logger: app.logger}
		app.logger.Warn("KAFKA_BROKERS not set, face auth pushes are only logged")
	}

	app.faces = faceverify.NewClient(app.cfg.FaceServiceURL, app.cfg.FaceServiceTimeout)
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	app.tokenService = &service.TokenService{
		KeyManager:      app.keyManager,
		Issuer:          app.cfg.Issuer,
		IntermediateTTL: app.cfg.IntermediateTTL,
		AccessTTL:       app.cfg.AccessTTL,
	}

	app.userService = &service.UserService{Store: app.db}
	app.deviceService = &service.DeviceService{Store: app.db}
	app.totpService = &service.TOTPService{
		Store:  app.db,
		Box:    app.secretBox,
		Issuer: app.cfg.TOTPIssuer,
	}
	app.faceRequestService = &service.FaceRequestService{
		Store:      app.db,
		DefaultTTL: app.cfg.FaceRequestTTL,
		MaxTTL:     app.cfg.FaceRequestMaxTTL,
	}

	app.loginService = &service.LoginService{
		Store:        app.db,
		Tokens:       app.tokenService,
		TOTP:         app.totpService,
		FaceRequests: app.faceRequestService,
		Push:         app.push,
		Faces:        app.faces,
		Channel:      app.hub,
		Revocations:  app.revocations,
	}

	// Redis expires revocation entries itself.
	var sweeper service.RevocationSweeper
	if mem, ok := app.revocations.(*revocation.Memory); ok {
		sweeper = mem
	}
	app.housekeepingService = service.NewHousekeepingService(
		app.faceRequestService,
		sweeper,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.keyManager.KeySet,
		app.keyManager.Verifier,
		app.revocations,
		BuildVersion,
		app.db,
		app.logger,
	)

	router.LoginService = app.loginService
	router.TOTPService = app.totpService
	router.UserService = app.userService
	router.DeviceService = app.deviceService
	router.Realtime = realtime.NewHandler(&realtime.Channel{
		Hub:               app.hub,
		Verifier:          app.tokenService,
		Revocations:       app.revocations,
		Requests:          app.faceRequestService,
		RequireCredential: true,
	}, app.cfg.WSAllowedOrigins)
	if app.redis != nil {
		router.RedisProbe = func(ctx context.Context) error {
			return app.redis.Ping(ctx).Err()
		}
	}
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
