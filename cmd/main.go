package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/YelzhanWeb/pickup/internal/adapter/logger"
	"github.com/YelzhanWeb/pickup/internal/adapter/memory"
	"github.com/YelzhanWeb/pickup/internal/adapter/postgres"
	"github.com/YelzhanWeb/pickup/internal/adapter/rabbitmq"
	"github.com/YelzhanWeb/pickup/internal/app/checkout"
	"github.com/YelzhanWeb/pickup/internal/app/lifecycle"
	"github.com/YelzhanWeb/pickup/internal/app/reminder"
	"github.com/YelzhanWeb/pickup/internal/app/tracking"
	"github.com/YelzhanWeb/pickup/internal/clock"
	"github.com/YelzhanWeb/pickup/internal/config"
	"github.com/YelzhanWeb/pickup/internal/domain"
	"github.com/YelzhanWeb/pickup/internal/interfaces"
	"github.com/YelzhanWeb/pickup/migrations"

	amqpAdapter "github.com/YelzhanWeb/pickup/internal/adapter/amqp"
	httpAdapter "github.com/YelzhanWeb/pickup/internal/adapter/http"
)

const (
	storagePostgres = "postgres"
	storageMemory   = "memory"
)

func main() {
	// Parse command-line flags
	mode := flag.String("mode", "", "Service mode: order-service, reminder-sweeper, notification-subscriber")
	port := flag.Int("port", 3000, "HTTP port")
	configPath := flag.String("config", "config.yaml", "Path to YAML config")
	storage := flag.String("storage", storagePostgres, "Order storage: postgres or memory")
	prefetch := flag.Int("prefetch", 10, "RabbitMQ prefetch count")
	flag.Parse()

	if *mode == "" {
		log.Fatal("--mode flag is required")
	}
	if *storage != storagePostgres && *storage != storageMemory {
		log.Fatalf("Invalid storage: %s", *storage)
	}

	lgr := logger.New(*mode)

	cfg, err := loadConfig(*configPath, lgr)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch *mode {
	case "order-service":
		err = runOrderService(ctx, cfg, lgr, *port, *storage)
	case "reminder-sweeper":
		if *storage == storageMemory {
			log.Fatal("reminder-sweeper needs shared storage; memory storage runs the sweeper inside order-service")
		}
		err = runReminderSweeper(ctx, cfg, lgr)
	case "notification-subscriber":
		err = runNotificationSubscriber(ctx, cfg, lgr, *prefetch)
	default:
		log.Fatalf("Invalid mode: %s", *mode)
	}

	if err != nil {
		lgr.Error("service_failed", "Service stopped with error", "runtime", nil, err)
		os.Exit(1)
	}
}

func loadConfig(path string, lgr logger.Logger) (*config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		lgr.Warn("config_missing", fmt.Sprintf("%s not found, using defaults", path), "startup", nil)
		return config.Parse(nil)
	}
	return cfg, err
}

// engine is the shared wiring for modes that touch orders.
type engine struct {
	repo      interfaces.OrderRepository
	gateway   interfaces.NotificationGateway
	machine   *domain.Machine
	lifecycle *lifecycle.Service
	closers   []func()
}

func (e *engine) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

func newEngine(ctx context.Context, cfg *config.Config, lgr logger.Logger, storage string) (*engine, error) {
	notifyOn, err := cfg.Transitions.NotifyStatuses()
	if err != nil {
		return nil, err
	}
	e := &engine{
		machine: domain.NewMachine(clock.NewSystem(), domain.WithNotifyOn(notifyOn...)),
	}

	if storage == storageMemory {
		e.repo = memory.NewOrderRepository()
		e.gateway = memory.NewNotificationGateway(lgr)
		lgr.Info("storage_memory", "Using in-memory storage and logging gateway", "startup", nil)
	} else {
		pool, err := postgres.OpenPool(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		e.closers = append(e.closers, pool.Close)

		if err := migrations.Apply(ctx, pool); err != nil {
			e.Close()
			return nil, fmt.Errorf("failed to apply migrations: %w", err)
		}
		lgr.Info("db_connected", "Connected to PostgreSQL database", "startup", map[string]interface{}{
			"host": cfg.Database.Host,
			"db":   cfg.Database.Database,
		})

		mqConn, err := rabbitmq.Connect(cfg.RabbitMQ)
		if err != nil {
			e.Close()
			return nil, err
		}
		e.closers = append(e.closers, func() { _ = mqConn.Close() })
		lgr.Info("rabbitmq_connected", "Connected to RabbitMQ", "startup", map[string]interface{}{
			"host": cfg.RabbitMQ.Host,
		})

		e.repo = postgres.NewOrderRepository(postgres.NewDB(pool))
		e.gateway = rabbitmq.NewNotificationGateway(mqConn, lgr, cfg.RabbitMQ.PublishAttempts)
	}

	e.lifecycle = lifecycle.NewService(e.repo, e.gateway, e.machine, lgr, cfg.Transitions.MaxAttempts)
	return e, nil
}

func (e *engine) reminderService(cfg *config.Config, lgr logger.Logger) *reminder.Service {
	return reminder.NewService(
		e.repo, e.gateway, e.lifecycle, e.machine, lgr,
		cfg.Reminder.Threshold(), cfg.Reminder.Interval(), cfg.Reminder.Concurrency,
	)
}

func runOrderService(ctx context.Context, cfg *config.Config, lgr logger.Logger, port int, storage string) error {
	schedule, err := cfg.Schedule.Domain()
	if err != nil {
		return err
	}

	e, err := newEngine(ctx, cfg, lgr, storage)
	if err != nil {
		return err
	}
	defer e.Close()

	checkoutService := checkout.NewService(e.repo, schedule, clock.NewSystem(), lgr)
	trackingService := tracking.NewService(e.repo, lgr)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      httpAdapter.NewRouter(checkoutService, e.lifecycle, trackingService, lgr),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		lgr.Info("service_started", fmt.Sprintf("Order Service started on port %d", port), "startup", map[string]interface{}{
			"port":    port,
			"storage": storage,
		})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		lgr.Info("shutdown_initiated", "Shutting down Order Service", "shutdown", nil)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	// In-memory orders are only visible to this process, so the sweeper runs here.
	if storage == storageMemory {
		sweeper := e.reminderService(cfg, lgr)
		g.Go(func() error {
			return sweeper.Run(gctx)
		})
	}

	return g.Wait()
}

func runReminderSweeper(ctx context.Context, cfg *config.Config, lgr logger.Logger) error {
	e, err := newEngine(ctx, cfg, lgr, storagePostgres)
	if err != nil {
		return err
	}
	defer e.Close()

	err = e.reminderService(cfg, lgr).Run(ctx)
	lgr.Info("shutdown_initiated", "Shutting down Reminder Sweeper", "shutdown", nil)
	return err
}

func runNotificationSubscriber(ctx context.Context, cfg *config.Config, lgr logger.Logger, prefetch int) error {
	mqConn, err := rabbitmq.Connect(cfg.RabbitMQ)
	if err != nil {
		return err
	}
	defer mqConn.Close()

	consumer := rabbitmq.NewConsumer(mqConn, lgr, prefetch)
	notificationHandler := amqpAdapter.NewNotificationHandler(lgr)

	lgr.Info("service_started", "Notification Subscriber started", "startup", map[string]interface{}{
		"queue":    rabbitmq.NotificationsQueue,
		"prefetch": prefetch,
	})

	err = consumer.ConsumeNotifications(ctx, notificationHandler.HandleNotification)
	lgr.Info("shutdown_initiated", "Shutting down Notification Subscriber", "shutdown", nil)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
