package app

import (
	"context"
	"database/sql"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"chargebook/internal/clients"
	"chargebook/internal/config"
	httpserver "chargebook/internal/http"
	"chargebook/internal/http/handlers"
	"chargebook/internal/http/middleware"
	"chargebook/internal/ingest"
	"chargebook/internal/liveview"
	"chargebook/internal/notify"
	"chargebook/internal/repository"
	"chargebook/internal/service"
	"chargebook/internal/ws"
	"chargebook/libs/db"
	libredis "chargebook/libs/redis"
)

// App wires the service graph and owns its lifecycle.
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	db         *sql.DB
	redis      *redis.Client
	dispatcher *notify.Dispatcher

	hub     *ws.Hub
	sweeper *service.Sweeper
	server  *httpserver.Server
}

// New connects dependencies and builds the service graph.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	database, err := db.NewPostgresDB(cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	redisClient, err := libredis.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		database.Close()
		return nil, err
	}

	a := &App{cfg: cfg, logger: logger, db: database, redis: redisClient}

	bookingRepo := repository.NewBookingRepository(database)
	sessionRepo := repository.NewSessionRepository(database)
	stationRepo := repository.NewStationRepository(database)
	promoRepo := repository.NewPromotionRepository(database)
	codeRepo := repository.NewCodeRepository(database)
	paymentRepo := repository.NewPaymentRepository(database)

	codes := service.NewCodeService(codeRepo, cfg.Booking.CodeTTL, logger)

	paymentClient := clients.NewPaymentClient(cfg.Payment.BaseURL, logger)
	payments := service.NewPaymentService(paymentClient, paymentRepo, cfg.Payment.CallbackSecret, logger)

	var notifier service.Notifier
	if cfg.Notify.Enabled {
		a.dispatcher = notify.NewDispatcher(cfg.Redis.Addr, cfg.Redis.Password, cfg.Notify.QueueDB, logger)
		notifier = a.dispatcher
	}

	bookings := service.NewBookingService(
		bookingRepo,
		sessionRepo,
		stationRepo,
		promoRepo,
		codes,
		payments,
		notifier,
		logger,
	)

	a.hub = ws.NewHub(logger)
	live := liveview.NewStore(redisClient, cfg.Redis.LiveTTL)
	gateway := ingest.NewGateway(bookings, a.hub, live, cfg.Ingest.QueueSize, logger)

	a.sweeper = service.NewSweeper(bookings, cfg.Booking.SweepInterval, cfg.Booking.GraceWindow, logger)

	router := httpserver.NewRouter(httpserver.Routes{
		Auth:     httpserver.Middleware(middleware.Auth(cfg.Auth.JWTSecret)),
		Operator: httpserver.Middleware(middleware.RequireRole(middleware.RoleOperator)),
		Bookings: handlers.NewBookingHandler(bookings, live, logger),
		Charging: handlers.NewChargingHandler(gateway, logger),
		WS:       handlers.NewWSHandler(a.hub, bookings, logger),
		Payments: handlers.NewPaymentHandler(payments, logger),
		Health:   handlers.NewHealthHandler(),
	})

	a.server = httpserver.NewServer(cfg.HTTPAddress(), router, logger)
	return a, nil
}

// Run starts the hub, the expiry sweeper and the HTTP server, and blocks until
// the context is cancelled or the server fails.
func (a *App) Run(ctx context.Context) error {
	go a.hub.Run(ctx)
	go a.sweeper.Run(ctx)
	return a.server.Run(ctx)
}

// Close releases connections.
func (a *App) Close() {
	if a.dispatcher != nil {
		if err := a.dispatcher.Close(); err != nil {
			a.logger.Warn("failed to close notification dispatcher", zap.Error(err))
		}
	}
	if err := a.redis.Close(); err != nil {
		a.logger.Warn("failed to close redis client", zap.Error(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("failed to close database", zap.Error(err))
	}
}
