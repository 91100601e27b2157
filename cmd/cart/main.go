package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/Skotchmaster/resale_cart/internal/cache"
	"github.com/Skotchmaster/resale_cart/internal/catalog"
	"github.com/Skotchmaster/resale_cart/internal/config"
	"github.com/Skotchmaster/resale_cart/internal/db"
	"github.com/Skotchmaster/resale_cart/internal/httpserver"
	"github.com/Skotchmaster/resale_cart/internal/logging"
	"github.com/Skotchmaster/resale_cart/internal/middleware/auth"
	"github.com/Skotchmaster/resale_cart/internal/middleware/csrf"
	"github.com/Skotchmaster/resale_cart/internal/mykafka"
	"github.com/Skotchmaster/resale_cart/internal/poller"
	"github.com/Skotchmaster/resale_cart/internal/repo"
	"github.com/Skotchmaster/resale_cart/internal/service"
)

func main() {
	cfg := config.Load()
	config.MustNonEmpty(cfg.DatabaseURL, "DATABASE_URL")
	config.MustNonEmptyBytes(cfg.JWTSecret, "JWT_SECRET")

	log := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("service_stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	gdb, err := db.Open(initCtx, cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("db init: %w", err)
	}
	defer func() {
		if err := db.Close(gdb); err != nil {
			log.Warn("db_close_error", "error", err)
		}
	}()
	if err := db.Migrate(gdb, cfg.DBDriver == db.DriverSQLite); err != nil {
		return err
	}

	cat, err := newCatalog(initCtx, cfg, gdb, log)
	if err != nil {
		return err
	}

	var cartCache cache.CartCache = cache.Noop{}
	if cfg.RedisAddr != "" {
		client, err := cache.NewRedisClient(initCtx, cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return err
		}
		defer closeRedis(client, log)
		cartCache = cache.NewRedisCache(client, cfg.CartCacheTTL)
		log.Info("cart_cache_enabled", "addr", cfg.RedisAddr, "ttl", cfg.CartCacheTTL.String())
	}

	cartRepo := repo.NewGormRepo(gdb)
	deps := service.Deps{
		Repo:        cartRepo,
		Catalog:     cat,
		Cache:       cartCache,
		EventsTopic: cfg.CartEventsTopic,
	}

	var wg sync.WaitGroup
	if len(cfg.KafkaBrokers) > 0 {
		producer := mykafka.NewProducer(cfg.KafkaBrokers, log)
		defer func() {
			if err := producer.Close(); err != nil {
				log.Warn("kafka_producer_close_error", "error", err)
			}
		}()
		deps.Producer = producer

		reader := poller.NewReader(cfg.KafkaBrokers, cfg.ProductEventsTopic, cfg.KafkaGroupID)
		p := poller.New(cartRepo, cartCache, reader, log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Run(ctx)
		}()
		defer func() {
			wg.Wait()
			if err := p.Close(); err != nil {
				log.Warn("kafka_reader_close_error", "error", err)
			}
		}()
		log.Info("kafka_enabled", "brokers", cfg.KafkaBrokers, "cart_topic", cfg.CartEventsTopic, "product_topic", cfg.ProductEventsTopic)
	}

	svc := service.NewCartService(deps)

	httpDeps := &httpserver.Deps{
		CartHandler: &httpserver.CartHTTP{Svc: svc},
		Gate:        auth.NewSessionGate(cfg.JWTSecret, cfg.LoginURL),
		CartPageURL: cfg.CartPageURL,
		Ready: func(ctx context.Context) error {
			return db.Ping(ctx, gdb)
		},
	}
	if cfg.CSRFEnabled {
		csrfCfg := csrf.DefaultConfig()
		csrfCfg.TrustedOrigins = cfg.CSRFTrustedOrigins
		httpDeps.CSRF = csrf.Middleware(csrfCfg)
	}

	e := httpserver.New(log, httpDeps)
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second

	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.ServerPort)
		log.Info("http_server_starting", "addr", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown_requested")
	case err := <-errCh:
		if err != nil {
			stop()
			return fmt.Errorf("http server: %w", err)
		}
	}
	stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Warn("http_shutdown_error", "error", err)
	}

	log.Info("service_stopped")
	return nil
}

func newCatalog(ctx context.Context, cfg config.Config, gdb *gorm.DB, log *slog.Logger) (catalog.Catalog, error) {
	var source catalog.Catalog
	switch cfg.CatalogSource {
	case "elasticsearch", "es":
		config.MustNonEmpty(cfg.ESURL, "ES_URL")
		client, err := catalog.NewESClient(ctx, catalog.ESConfig{
			URL:      cfg.ESURL,
			User:     cfg.ESUser,
			Password: cfg.ESPassword,
		})
		if err != nil {
			return nil, err
		}
		source = catalog.NewElasticCatalog(client, cfg.ESProductIndex)
	case "db", "":
		source = catalog.NewGormCatalog(gdb)
	default:
		return nil, fmt.Errorf("unknown CATALOG_SOURCE %q", cfg.CatalogSource)
	}
	log.Info("catalog_source", "source", cfg.CatalogSource)
	return catalog.NewBreaker(source, catalog.DefaultBreakerSettings(), log), nil
}

func closeRedis(client *redis.Client, log *slog.Logger) {
	if err := client.Close(); err != nil {
		log.Warn("redis_close_error", "error", err)
	}
}
