package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Tomlord1122/todo-workshop/internal/config"
	"github.com/Tomlord1122/todo-workshop/internal/database"
	"github.com/Tomlord1122/todo-workshop/internal/domain"
	"github.com/Tomlord1122/todo-workshop/internal/notify"
	"github.com/Tomlord1122/todo-workshop/internal/service"
)

// NotificationService is the slice of the notification core exposed over HTTP.
type NotificationService interface {
	GetPendingNotifications(ctx context.Context, userID uint, limit int) ([]domain.Notification, error)
	ListNotifications(ctx context.Context, userID uint, limit int) ([]domain.Notification, error)
	MarkNotificationSent(ctx context.Context, id uint) (bool, error)
	CheckDueTodos(ctx context.Context) ([]uint, error)
	SendDueDigest(ctx context.Context, userID uint) (notify.Result, []uint, error)
}

type Server struct {
	cfg           config.ServerConfig
	todoService   service.TodoService
	userService   service.UserService
	notifications NotificationService
	db            database.Service
	logger        *zap.Logger
}

// Deps bundles what the handlers call into.
type Deps struct {
	Todos         service.TodoService
	Users         service.UserService
	Notifications NotificationService
	DB            database.Service
}

func New(cfg config.ServerConfig, deps Deps, logger *zap.Logger) *Server {
	return &Server{
		cfg:           cfg,
		todoService:   deps.Todos,
		userService:   deps.Users,
		notifications: deps.Notifications,
		db:            deps.DB,
		logger:        logger,
	}
}

func NewServer(cfg config.ServerConfig, deps Deps, logger *zap.Logger) *http.Server {
	appServer := New(cfg, deps, logger)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      appServer.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		ErrorLog:     zap.NewStdLog(logger.Named("http")),
	}

	return server
}
