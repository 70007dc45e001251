package main // entry point of the bonus and storage API

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/tire-storage-bonus/internal/config"
	"github.com/iliyamo/tire-storage-bonus/internal/database"
	"github.com/iliyamo/tire-storage-bonus/internal/handler"
	"github.com/iliyamo/tire-storage-bonus/internal/logging"
	"github.com/iliyamo/tire-storage-bonus/internal/memstore"
	"github.com/iliyamo/tire-storage-bonus/internal/middleware"
	"github.com/iliyamo/tire-storage-bonus/internal/model"
	"github.com/iliyamo/tire-storage-bonus/internal/queue"
	"github.com/iliyamo/tire-storage-bonus/internal/receipt"
	"github.com/iliyamo/tire-storage-bonus/internal/repository"
	"github.com/iliyamo/tire-storage-bonus/internal/router"
	"github.com/iliyamo/tire-storage-bonus/internal/service"
	"github.com/iliyamo/tire-storage-bonus/internal/utils"
)

// stores groups the persistence backends the services are built on.
type stores struct {
	users  service.UserStore
	vip    service.VIPChecker
	ledger service.LedgerStore
	cells  service.CellStore
	stats  service.StatsStore
	qr     service.QRStore
}

func main() {
	_ = godotenv.Load() // a missing .env is fine; real env wins

	log, err := logging.New(logging.ConfigFromEnv())
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config", zap.Error(err))
	}
	if err := utils.SetSnowflakeNode(cfg.NodeID); err != nil {
		log.Fatal("snowflake node", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, err := config.NewRedisClient(config.LoadRedisConfig())
	if err != nil {
		log.Warn("redis unavailable, running without rate limit, cache and qr codes", zap.Error(err))
	} else {
		defer func() { _ = rdb.Close() }()
	}

	checks := map[string]handler.Pinger{}
	var st stores
	switch cfg.Storage {
	case config.StorageMemory:
		mem := memstore.New()
		st = stores{users: mem, vip: mem, ledger: mem, cells: mem, stats: mem, qr: mem}
		log.Warn("using in-memory storage, data is lost on exit")
	default:
		db, err := database.Open(database.Options{
			User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
		})
		if err != nil {
			log.Fatal("mysql connect", zap.Error(err))
		}
		defer func() { _ = db.Close() }()
		if err := database.EnsureSchema(ctx, db); err != nil {
			log.Fatal("mysql schema", zap.Error(err))
		}
		checks["mysql"] = db.PingContext

		users := repository.NewUserRepo(db)
		st = stores{
			users:  users,
			vip:    users,
			ledger: repository.NewBonusRepo(db),
			cells:  repository.NewCellRepo(db),
			stats:  repository.NewStatsRepo(db),
		}
		if rdb != nil {
			st.qr = repository.NewQRCache(rdb)
		}
	}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	var (
		notifier service.Notifier
		receipts service.ReceiptRequester
	)
	if cfg.Messaging {
		pub := queue.NewPublisher(cfg.AMQPURL, log)
		defer func() { _ = pub.Close() }()
		notifier, receipts = pub, pub

		consumer := &queue.ReceiptConsumer{
			URL:      cfg.AMQPURL,
			Dir:      cfg.ReceiptsDir,
			Renderer: receipt.NewPDFRenderer(cfg.ShopName),
			Notifier: pub,
			Log:      log.Named("receipts"),
		}
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("receipt consumer stopped", zap.Error(err))
			}
		}()
	}

	ledger := service.NewBonusLedger(st.ledger, st.vip, notifier, log.Named("ledger"))
	users := service.NewUserService(st.users, ledger, log.Named("users"))
	prices := service.PriceTable{
		model.StorageTires:         cfg.Prices.Tires,
		model.StorageTiresWithRims: cfg.Prices.TiresWithRims,
	}
	registry := service.NewCellRegistry(st.cells, st.users, prices, notifier, receipts, log.Named("cells"))
	stats := service.NewStatisticsService(st.stats)
	qr := service.NewQRService(st.qr, st.users, cfg.QRTTL)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.RequestLogger(log.Named("http")))

	router.RegisterRoutes(e, router.Handlers{
		Bonus: handler.NewBonusHandler(ledger, users, log),
		Users: handler.NewUserHandler(users, qr, log),
		Cells: handler.NewCellHandler(registry, log),
		Stats: handler.NewStatsHandler(stats, log),
		Ready: handler.Ready(checks),
	}, router.Options{
		JWTSecret: cfg.JWTSecret,
		RateLimit: middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log.Named("ratelimit")),
		Cache:     middleware.NewRedisCache(config.LoadCacheConfig(), rdb),
	})

	addr := ":" + cfg.Port
	go func() {
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env), zap.String("storage", cfg.Storage))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
}
