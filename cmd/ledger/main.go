package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	grpc_adapter "github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/in/grpc"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/in/rest"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/out/eventbus"
	memory_adapter "github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/out/memory"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/out/sqlstore"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-bank-ledger/internal/config"
	"github.com/JoeShih716/go-bank-ledger/internal/logger"
	"github.com/JoeShih716/go-bank-ledger/pkg/database"
	"github.com/JoeShih716/go-bank-ledger/pkg/metrics"
	"github.com/JoeShih716/go-bank-ledger/pkg/wal"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("ledger exited with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(configPath string) error {
	// 1. 載入設定與 logger
	cfg, err := config.Load(configPath, nil)
	if err != nil {
		return err
	}
	log := logger.Setup(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. 初始化儲存層
	uow, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	// 3. Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts := []usecase.Option{
		usecase.WithLogger(log),
		usecase.WithMetrics(metrics.New(registry)),
	}

	// 4. 事件發布 (選用)
	if cfg.Kafka.Enabled {
		pub, err := eventbus.NewPublisher(eventbus.Config{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			WriteTimeout: cfg.Kafka.WriteTimeout,
		}, log)
		if err != nil {
			return fmt.Errorf("init kafka publisher: %w", err)
		}
		defer pub.Close()
		opts = append(opts, usecase.WithPublisher(pub))
		log.Info("kafka publisher enabled", slog.String("topic", cfg.Kafka.Topic))
	}

	// 5. UseCase 與種子帳戶
	core := usecase.NewCoreUseCase(uow, opts...)
	seeds, err := cfg.SeedAccounts()
	if err != nil {
		return err
	}
	usecase.NewInitializer(uow, log).SeedAll(ctx, seeds)

	// 6. 啟動 HTTP 與 gRPC
	httpOpts := rest.Options{
		Logger:       log,
		Gatherer:     registry,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}
	if cfg.HTTP.AccessLog {
		httpOpts.AccessLog = os.Stdout
	}
	app := rest.NewApp(core, httpOpts)

	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		return fmt.Errorf("listen grpc %s: %w", cfg.GRPC.Addr, err)
	}
	grpcServer := grpc_adapter.NewServer(core, log, cfg.GRPC.Reflection)

	errCh := make(chan error, 2)
	go func() {
		log.Info("starting http server", slog.String("addr", cfg.HTTP.Addr))
		errCh <- app.Listen(cfg.HTTP.Addr)
	}()
	go func() {
		log.Info("starting grpc server", slog.String("addr", cfg.GRPC.Addr))
		errCh <- grpcServer.Serve(lis)
	}()

	// 7. Graceful shutdown
	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err = <-errCh:
		log.Error("server stopped unexpectedly", slog.Any("error", err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if serr := app.ShutdownWithContext(shutdownCtx); serr != nil {
		log.Warn("http shutdown", slog.Any("error", serr))
	}
	done := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		grpcServer.Stop()
	}
	log.Info("server exited")

	if err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

// openStore 依 store.driver 建立 UnitOfWork
func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (usecase.UnitOfWork, func(), error) {
	switch cfg.Store.Driver {
	case config.StoreMemory:
		walFile, err := wal.NewWAL(cfg.Store.WALPath)
		if err != nil {
			return nil, nil, fmt.Errorf("init wal: %w", err)
		}
		store, err := memory_adapter.NewStore(
			memory_adapter.WithWAL(walFile),
			memory_adapter.WithLockTimeout(cfg.Ledger.LockTimeout),
			memory_adapter.WithLogger(log),
		)
		if err != nil {
			_ = walFile.Close()
			return nil, nil, fmt.Errorf("init memory store: %w", err)
		}
		log.Info("using in-memory store", slog.String("wal", walFile.Path()))
		return store, func() {
			if err := store.Close(); err != nil {
				log.Warn("close memory store", slog.Any("error", err))
			}
			if err := walFile.Close(); err != nil {
				log.Warn("close wal", slog.Any("error", err))
			}
		}, nil

	default:
		client, err := database.NewClient(ctx, cfg.Database, log)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Store.Migrate {
			if err := sqlstore.Migrate(ctx, client.DB()); err != nil {
				_ = client.Close()
				return nil, nil, fmt.Errorf("migrate: %w", err)
			}
		}
		log.Info("using sql store", slog.String("driver", cfg.Database.Driver))
		uow := sqlstore.NewUnitOfWork(client,
			sqlstore.WithLockTimeout(cfg.Ledger.LockTimeout),
			sqlstore.WithLogger(log))
		return uow, func() {
			if err := client.Close(); err != nil {
				log.Warn("close database", slog.Any("error", err))
			}
		}, nil
	}
}
