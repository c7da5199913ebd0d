package routes

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/ismail-platform/wallet/internal/config"
	"github.com/ismail-platform/wallet/internal/directory"
	"github.com/ismail-platform/wallet/internal/engine"
	"github.com/ismail-platform/wallet/internal/fx"
	"github.com/ismail-platform/wallet/internal/idempotency"
	"github.com/ismail-platform/wallet/internal/ledger"
	"github.com/ismail-platform/wallet/internal/limits"
	"github.com/ismail-platform/wallet/internal/locking"
	"github.com/ismail-platform/wallet/internal/middleware"
	"github.com/ismail-platform/wallet/internal/notification"
	"github.com/ismail-platform/wallet/internal/settlement"
	"github.com/ismail-platform/wallet/internal/stats"
	"github.com/ismail-platform/wallet/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Redis carries idempotency reservations; without it double charges
	// become possible, so it is mandatory in every environment.
	if d.Cache == nil {
		return fmt.Errorf("redis is required")
	}
	if !d.Cfg.IsDev() && d.DB == nil {
		return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	var store ledger.Store
	if d.DB != nil {
		store = ledger.NewPostgresStore(d.DB)
	} else {
		store = ledger.NewMemoryStore()
	}

	var walletRepo wallet.Repository
	var directoryRepo directory.Repository
	if d.DB != nil {
		walletRepo = wallet.NewPostgresRepository(d.DB)
		directoryRepo = directory.NewPostgresRepository(d.DB)
	} else {
		walletRepo = wallet.NewMemoryRepository()
		directoryRepo = directory.NewMemoryRepository()
	}

	directorySvc := directory.NewService(directoryRepo)
	attempts := wallet.NewRedisAttemptLimiter(d.Cache, d.Cfg.PINMaxFailures, d.Cfg.PINLockWindow)
	walletSvc := wallet.NewService(walletRepo, store, directorySvc, attempts)
	statsSvc := stats.NewService(store)

	txEngine := engine.New(engine.Deps{
		Wallets:   walletSvc,
		Store:     store,
		Locks:     locking.NewManager(d.Cfg.LockTimeout),
		Guard:     idempotency.NewGuard(d.Cache, d.Cfg.IdempotencyTTL, d.Logger),
		Limits:    limits.NewPolicy(store, nil),
		Converter: fx.NewConverter(fx.NewStaticSource(time.Now().UTC()), d.Cfg.RateMaxAge),
		Resolver:  directorySvc,
		Settler:   settlement.StaticProvider{},
		Notifier:  notification.NewLoggerNotifier(d.Logger),
		Logger:    d.Logger,
	})

	walletHandler := wallet.NewHandler(walletSvc)
	txHandler := engine.NewHandler(txEngine)
	statsHandler := stats.NewHandler(statsSvc)

	api := app.Group("/api/v1")

	jwtmw := middleware.JWTAuth(d.Cfg.JWTSecret)
	protected := api.Group("", jwtmw)
	RegisterWalletRoutes(protected, walletHandler)
	RegisterTransactionRoutes(protected, txHandler)
	RegisterStatsRoutes(protected, statsHandler)

	return nil
}
