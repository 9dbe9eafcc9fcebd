package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	grpclib "google.golang.org/grpc"
	"golang.org/x/sync/errgroup"

	grpcadapter "github.com/simaogato/cryptotrade-backend/internal/adapter/grpc"
	httpadapter "github.com/simaogato/cryptotrade-backend/internal/adapter/http"
	kafkaadapter "github.com/simaogato/cryptotrade-backend/internal/adapter/kafka"
	"github.com/simaogato/cryptotrade-backend/internal/adapter/kraken"
	redisadapter "github.com/simaogato/cryptotrade-backend/internal/adapter/redis"
	"github.com/simaogato/cryptotrade-backend/internal/adapter/repository/memory"
	"github.com/simaogato/cryptotrade-backend/internal/adapter/repository/postgres"
	"github.com/simaogato/cryptotrade-backend/internal/adapter/websocket"
	"github.com/simaogato/cryptotrade-backend/internal/config"
	"github.com/simaogato/cryptotrade-backend/internal/domain"
	"github.com/simaogato/cryptotrade-backend/internal/logging"
	"github.com/simaogato/cryptotrade-backend/internal/metrics"
	"github.com/simaogato/cryptotrade-backend/internal/usecase/ledger"
	"github.com/simaogato/cryptotrade-backend/internal/usecase/marketdata"
	"github.com/simaogato/cryptotrade-backend/internal/usecase/portfolio"
	"github.com/simaogato/cryptotrade-backend/internal/usecase/seeder"
)

// store is everything the services need from the persistence gateway
type store interface {
	domain.LedgerStore
	domain.LedgerReader
	domain.AccountCreator
}

func main() {
	configPath := flag.String("config", "", "path to a TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, logCloser, err := logging.Init(cfg.Logger)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited with error", "error", err)
		stop()
		_ = logCloser.Close()
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	m := metrics.New()

	// 1. Persistence gateway
	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore.Close()

	// 2. Seed accounts
	if err := seedAccounts(ctx, cfg, st, logger); err != nil {
		return err
	}

	// 3. Market data
	cache := marketdata.NewPriceCache()
	feed := marketdata.NewFeed(
		websocket.NewDialer(cfg.Feed.HandshakeTimeout, cfg.Feed.ReadTimeout),
		kraken.Codec{},
		cache,
		marketdata.FeedConfig{
			URL:            cfg.Feed.URL,
			Pairs:          cfg.Feed.Pairs,
			InitialBackoff: cfg.Feed.InitialBackoff,
			MaxBackoff:     cfg.Feed.MaxBackoff,
		},
	)
	feed.Observer = m
	feed.Logger = logger

	var mirror *marketdata.SnapshotMirror
	if cfg.Redis.Addr != "" {
		client, err := redisadapter.NewClient(ctx, redisadapter.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		defer client.Close()
		sink := redisadapter.NewPriceSink(client, cfg.Redis.Key)
		mirror = marketdata.NewSnapshotMirror(cache, sink, cfg.Redis.MirrorInterval)
		mirror.Logger = logger
		if restored, err := mirror.Restore(ctx, sink); err != nil {
			logger.Warn("starting with an empty price cache", "error", err)
		} else {
			logger.Info("price cache restored", "symbols", restored)
		}
	}

	// 4. Trade events
	var publisher domain.TradeEventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		p := kafkaadapter.NewPublisher(kafkaadapter.Config{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			WriteTimeout: cfg.Kafka.WriteTimeout,
		}, logger)
		defer p.Close()
		publisher = p
	}

	// 5. Services
	ledgerService := ledger.NewService(st, ledger.NewAccountLocks(cfg.Ledger.LockTimeout), publisher)
	ledgerService.Observer = m
	ledgerService.Logger = logger
	portfolioService := portfolio.NewService(st, cache)

	// 6. HTTP surface
	gin.SetMode(gin.ReleaseMode)
	router := httpadapter.NewRouter()
	httpadapter.NewHandler(ledgerService, portfolioService, cache, func() string {
		return feed.State().String()
	}).RegisterRoutes(router)
	if cfg.Metrics.Enabled {
		router.GET(cfg.Metrics.Path, gin.WrapH(m.Handler()))
	}
	httpServer := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	// 7. gRPC surface, bound before anything starts running
	var grpcServer *grpclib.Server
	var grpcListener net.Listener
	if cfg.GRPC.Addr != "" {
		lis, err := net.Listen("tcp", cfg.GRPC.Addr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", cfg.GRPC.Addr, err)
		}
		grpcListener = lis
		grpcServer = grpclib.NewServer(grpclib.ChainUnaryInterceptor(
			grpcadapter.LoggingInterceptor(logger),
			grpcadapter.AuthInterceptor(cfg.GRPC.APIToken),
		))
		grpcadapter.RegisterTradingServiceServer(grpcServer, grpcadapter.NewServer(ledgerService, portfolioService, cache))
	}

	// 8. Run everything until a signal or the first failure
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return ignoreCanceled(feed.Run(gctx))
	})
	if mirror != nil {
		g.Go(func() error {
			return ignoreCanceled(mirror.Run(gctx))
		})
	}

	g.Go(func() error {
		logger.Info("http server listening", "addr", cfg.HTTP.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if grpcServer != nil {
		g.Go(func() error {
			logger.Info("grpc server listening", "addr", grpcListener.Addr().String())
			if err := grpcServer.Serve(grpcListener); err != nil {
				return fmt.Errorf("grpc server failed: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			grpcServer.GracefulStop()
			return nil
		})
	}

	return g.Wait()
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store, io.Closer, error) {
	if cfg.Store.Driver == "memory" {
		logger.Warn("using in-memory store, trades are lost on restart")
		return memory.NewLedgerStore(), io.NopCloser(nil), nil
	}

	db, err := postgres.NewDB(ctx, cfg.Database.ConnectionString(), postgres.PoolConfig{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, nil, err
	}
	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		logger.Info("database schema applied")
	}
	return postgres.NewLedgerStore(db, cfg.Database.LockTimeout), db, nil
}

// seedAccounts creates configured accounts. The memory store gets the demo account when none are configured.
func seedAccounts(ctx context.Context, cfg *config.Config, st store, logger *slog.Logger) error {
	accounts, err := seeder.ParseSeedAccounts(cfg.Seed.Accounts)
	if err != nil {
		return fmt.Errorf("invalid seed.accounts: %w", err)
	}
	if len(accounts) == 0 && cfg.Store.Driver == "memory" {
		accounts = seeder.DefaultAccounts()
	}
	if len(accounts) == 0 {
		return nil
	}

	created, err := seeder.NewAccountSeeder(st).Seed(ctx, accounts)
	if err != nil {
		return fmt.Errorf("failed to seed accounts: %w", err)
	}
	logging.Info(ctx, "accounts seeded", "created", created, "configured", len(accounts))
	return nil
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
