package app

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpHandler "github.com/anthanhphan/go-chunked-file-storage/internal/api/adapter/inbound/http"
	"github.com/anthanhphan/go-chunked-file-storage/internal/api/adapter/outbound/blobhost"
	"github.com/anthanhphan/go-chunked-file-storage/internal/api/adapter/outbound/ingestledger"
	"github.com/anthanhphan/go-chunked-file-storage/internal/api/adapter/outbound/metastore"
	"github.com/anthanhphan/go-chunked-file-storage/internal/api/config"
	"github.com/anthanhphan/go-chunked-file-storage/internal/api/port"
	"github.com/anthanhphan/go-chunked-file-storage/internal/api/service"
	"github.com/anthanhphan/go-chunked-file-storage/pkg/chunkcipher"
	"github.com/anthanhphan/go-chunked-file-storage/pkg/idgen"
	"github.com/anthanhphan/gosdk/logger"
	"github.com/redis/go-redis/v9"
)

type App struct {
	cfg     *config.Config
	server  *httpHandler.Server
	service *service.FileServiceImpl
	db      *sql.DB
	redis   *redis.Client
}

func New(configPath string) (*App, error) {
	// 1. Load Config
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 2. Initialize Logger
	logger.InitLogger(&cfg.Logger)

	a := &App{cfg: cfg}
	ctx := context.Background()

	// 3. Redis backs the ID clock, the ingest ledger and rate limiting when enabled
	if cfg.Redis.Enabled {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var clock idgen.Clock = idgen.SystemClock{}
	if a.redis != nil {
		clock = &idgen.FallbackClock{
			Primary:   idgen.NewRedisClock(a.redis, 0),
			Secondary: idgen.SystemClock{},
			OnFallback: func(err error) {
				logger.Warnw("Redis clock unavailable, using system time", "error", err.Error())
			},
		}
	}
	idGen, err := idgen.New(cfg.App.NodeID, clock)
	if err != nil {
		return nil, fmt.Errorf("failed to init snowflake: %w", err)
	}

	// 4. Chunk cipher
	cipher, err := chunkcipher.NewFromSecret(cfg.Crypto.Secret, chunkcipher.KeyDerivation(cfg.Crypto.KeyDerivation))
	if err != nil {
		return nil, fmt.Errorf("failed to init chunk cipher: %w", err)
	}

	// 5. Outbound adapters
	var blobs port.BlobHost
	var blobHandler http.Handler
	switch cfg.Blob.Driver {
	case "s3":
		s3Host, err := blobhost.NewS3(ctx, cfg.Blob)
		if err != nil {
			return nil, fmt.Errorf("failed to init s3 blob host: %w", err)
		}
		blobs = s3Host
	case "memory", "":
		mem := blobhost.NewMemory(cfg.Blob.PublicBaseURL, time.Duration(cfg.Blob.URLExpirySeconds)*time.Second)
		blobs, blobHandler = mem, mem
		logger.Warnw("Using in-memory blob host, blobs are lost on restart", "base_url", cfg.Blob.PublicBaseURL)
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.Blob.Driver)
	}

	var store port.MetadataStore
	switch cfg.Database.Driver {
	case "postgres":
		db, err := metastore.OpenPostgres(ctx, cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if cfg.Database.AutoMigrate {
			if err := metastore.Migrate(ctx, db); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("failed to migrate database: %w", err)
			}
		}
		a.db = db
		store = metastore.NewPostgres(db, cfg.App.DefaultQuotaBytes)
	case "memory", "":
		store = metastore.NewMemory(cfg.App.DefaultQuotaBytes)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}

	var ledger port.IngestLedger = ingestledger.NewMemory()
	if a.redis != nil {
		ledger = ingestledger.NewRedis(a.redis, ingestledger.DefaultKey)
	}

	// 6. Services
	a.service = service.NewFileService(cfg, service.Dependencies{
		Blobs:   blobs,
		Fetcher: blobhost.NewHTTPFetcher(cfg.App.UpstreamTimeout()),
		Store:   store,
		Ledger:  ledger,
		Cipher:  cipher,
		IDGen:   idGen,
	})

	// 7. HTTP Server
	opts := httpHandler.Options{Blobs: blobHandler}
	if a.redis != nil {
		opts.Redis = a.redis
	}
	a.server = httpHandler.NewServer(cfg, a.service, opts)

	return a, nil
}

func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start janitor
	if a.cfg.Janitor.Enabled {
		interval := time.Duration(a.cfg.Janitor.IntervalSeconds) * time.Second
		if interval <= 0 {
			interval = time.Hour
		}
		go a.service.RunJanitor(ctx, interval)
	}

	// Start HTTP
	logger.Infow("API Gateway starting", "addr", a.cfg.Server.Addr, "blob_driver", a.cfg.Blob.Driver, "db_driver", a.cfg.Database.Driver)
	serverErrCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			serverErrCh <- err
		}
	}()

	// Wait for shutdown signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	var runErr error
	select {
	case sig := <-stop:
		logger.Infow("Shutdown signal received", "signal", sig.String())
	case err := <-serverErrCh:
		runErr = fmt.Errorf("http server failed: %w", err)
		logger.Errorw("API server exited unexpectedly", "error", err.Error())
	}

	logger.Info("Shutting down API services")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		logger.Errorw("API shutdown error", "error", err.Error())
		if runErr == nil {
			runErr = err
		}
	}

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			logger.Warnw("Database close error", "error", err.Error())
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			logger.Warnw("Redis close error", "error", err.Error())
		}
	}

	return runErr
}
