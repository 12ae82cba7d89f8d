package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Tomlord1122/todo-workshop/internal/cache"
	"github.com/Tomlord1122/todo-workshop/internal/config"
	"github.com/Tomlord1122/todo-workshop/internal/database"
	"github.com/Tomlord1122/todo-workshop/internal/jobs"
	"github.com/Tomlord1122/todo-workshop/internal/logger"
	"github.com/Tomlord1122/todo-workshop/internal/mailer"
	"github.com/Tomlord1122/todo-workshop/internal/notify"
	"github.com/Tomlord1122/todo-workshop/internal/repository"
	"github.com/Tomlord1122/todo-workshop/internal/server"
	"github.com/Tomlord1122/todo-workshop/internal/service"
)

func gracefulShutdown(apiServer *http.Server, scheduler *jobs.Scheduler, closers []func() error, log *zap.Logger, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Info("shutting down gracefully, press Ctrl+C again to force")
	stop() // Allow Ctrl+C to force shutdown

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctxTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctxTimeout); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	if err := scheduler.Stop(ctxTimeout); err != nil {
		log.Error("cron jobs did not stop in time", zap.Error(err))
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Error("closing resource", zap.Error(err))
		}
	}

	log.Info("server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func main() {
	// 1. Configuration and logging
	loader, err := config.NewLoader(os.Getenv("TODO_CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	// 2. Database
	dbService, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal("connect database", zap.Error(err))
	}
	if err := dbService.Migrate(); err != nil {
		log.Fatal("auto-migrate database", zap.Error(err))
	}
	closers := []func() error{dbService.Close}

	// 3. Optional Redis; without it the due-soon guard is process-local
	var guard notify.Guard = notify.NewLocalGuard()
	if cfg.Redis.Enabled() {
		var rdb *redis.Client
		rdb, err = cache.NewRedisClient(&cfg.Redis, log)
		if err != nil {
			log.Warn("redis unavailable, falling back to in-process due-soon guard", zap.Error(err))
		} else {
			guard = notify.NewRedisGuard(rdb, cfg.Notify.GuardTTL)
			closers = append(closers, rdb.Close)
		}
	}

	// 4. Mail transport and the runtime email switch
	transport, err := mailer.New(&cfg.Mail, log)
	if err != nil {
		log.Fatal("init mail transport", zap.Error(err))
	}
	emailFlag := notify.NewAtomicFlag(cfg.Notify.EmailEnabled)
	loader.OnChange(func(next *config.Config) {
		if prev := emailFlag.Set(next.Notify.EmailEnabled); prev != next.Notify.EmailEnabled {
			log.Info("email notifications toggled", zap.Bool("enabled", next.Notify.EmailEnabled))
		}
	}, func(err error) {
		log.Warn("ignoring invalid config reload", zap.Error(err))
	})

	// 5. Repositories and services
	repo := repository.NewRepository(dbService.GetDB())
	notifier := notify.NewService(repo, transport, emailFlag, guard, notify.Options{
		DueWindow:    cfg.Notify.DueWindow,
		SendTimeout:  cfg.Notify.SendTimeout,
		PendingLimit: cfg.Notify.PendingLimit,
	}, log.Named("notify"))
	todoService := service.NewTodoService(repo, notifier, log.Named("todos"))
	userService := service.NewUserService(repo, log.Named("users"))

	// 6. Scheduled due-soon scan
	scheduler := jobs.NewScheduler(notifier, log.Named("jobs"))
	if err := scheduler.RegisterDueScan(cfg.Notify.ScanSchedule); err != nil {
		log.Fatal("register cron jobs", zap.Error(err))
	}
	scheduler.Start()

	// 7. HTTP server
	apiServer := server.NewServer(cfg.Server, server.Deps{
		Todos:         todoService,
		Users:         userService,
		Notifications: notifier,
		DB:            dbService,
	}, log)

	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	go gracefulShutdown(apiServer, scheduler, closers, log, done)

	log.Info("starting server", zap.String("addr", apiServer.Addr))
	err = apiServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("http server", zap.Error(err))
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Info("graceful shutdown complete")
}
