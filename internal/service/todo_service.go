package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Tomlord1122/todo-workshop/internal/domain"
	"github.com/Tomlord1122/todo-workshop/internal/notify"
	"github.com/Tomlord1122/todo-workshop/internal/repository"
)

var ErrTodoNotFound = errors.New("todo not found")

// OptionalTime distinguishes an absent JSON field (Set=false) from an
// explicit null (Set=true, Value=nil).
type OptionalTime struct {
	Set   bool
	Value *time.Time
}

func (o *OptionalTime) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(data, []byte("null")) {
		o.Value = nil
		return nil
	}
	var t time.Time
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	o.Value = &t
	return nil
}

// CreateTodoRequest holds the data needed to create a new todo
type CreateTodoRequest struct {
	Title       string          `json:"title" validate:"required,max=200"`
	Description string          `json:"description"`
	Priority    domain.Priority `json:"priority" validate:"omitempty,oneof=low medium high"`
	DueDate     *time.Time      `json:"due_date"`
	UserID      *uint           `json:"user_id"`
	Category    string          `json:"category" validate:"max=50"`
	Tags        []string        `json:"tags"`
}

// UpdateTodoRequest holds the data for updating an existing todo.
// Using pointers allows distinguishing between a field being omitted
// vs. being set to its zero value (e.g., setting Completed to false).
type UpdateTodoRequest struct {
	Title       *string          `json:"title" validate:"omitempty,max=200"`
	Description *string          `json:"description"`
	Completed   *bool            `json:"completed"`
	Priority    *domain.Priority `json:"priority" validate:"omitempty,oneof=low medium high"`
	DueDate     OptionalTime     `json:"due_date"`
	Category    *string          `json:"category" validate:"omitempty,max=50"`
	Tags        *[]string        `json:"tags"`
}

// TodoQuery filters ListTodos.
type TodoQuery struct {
	Completed *bool
	Priority  domain.Priority
	Category  string
	UserID    *uint
	Search    string
}

// TodoResponse is the standard representation of a Todo returned by the service.
type TodoResponse struct {
	ID          uint            `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Completed   bool            `json:"completed"`
	Priority    domain.Priority `json:"priority"`
	DueDate     *string         `json:"due_date"`
	CreatedAt   string          `json:"created_at"`
	UpdatedAt   string          `json:"updated_at"`
	UserID      *uint           `json:"user_id"`
	Category    string          `json:"category"`
	Tags        []string        `json:"tags"`
}

func toTodoResponse(t *domain.Todo) *TodoResponse {
	resp := &TodoResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Completed:   t.Completed,
		Priority:    t.Priority,
		CreatedAt:   t.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   t.UpdatedAt.Format(time.RFC3339),
		UserID:      t.UserID,
		Category:    t.Category,
		Tags:        t.TagList(),
	}
	if t.DueDate != nil {
		due := t.DueDate.Format(time.RFC3339)
		resp.DueDate = &due
	}
	return resp
}

// Notifier is the part of the notification core the todo service drives.
type Notifier interface {
	CreateNotification(ctx context.Context, subj notify.Subject, user *domain.User, kind domain.EventKind, sendEmail bool) (*domain.Notification, error)
}

// TodoService defines the operations for managing todos.
type TodoService interface {
	CreateTodo(ctx context.Context, req CreateTodoRequest) (*TodoResponse, error)
	GetTodoByID(ctx context.Context, id uint) (*TodoResponse, error)
	ListTodos(ctx context.Context, q TodoQuery) ([]TodoResponse, error)
	UpdateTodo(ctx context.Context, id uint, req UpdateTodoRequest) (*TodoResponse, error)
	// ToggleComplete flips the completion state.
	ToggleComplete(ctx context.Context, id uint) (*TodoResponse, error)
	DeleteTodo(ctx context.Context, id uint) error
	Stats(ctx context.Context, userID *uint) (*repository.TodoStats, error)
}

type todoService struct {
	todos    repository.TodoRepository
	users    repository.UserRepository
	notifier Notifier
	logger   *zap.Logger
}

// NewTodoService creates a new instance of todoService.
func NewTodoService(repo *repository.Repository, notifier Notifier, logger *zap.Logger) TodoService {
	return &todoService{
		todos:    repo.Todo,
		users:    repo.User,
		notifier: notifier,
		logger:   logger,
	}
}

func (s *todoService) CreateTodo(ctx context.Context, req CreateTodoRequest) (*TodoResponse, error) {
	// 1. Validate input
	req.Title = strings.TrimSpace(req.Title)
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if req.Priority == "" {
		req.Priority = domain.PriorityMedium
	}

	var owner *domain.User
	if req.UserID != nil {
		u, err := s.users.FindByID(ctx, *req.UserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("%w: id %d", ErrUserNotFound, *req.UserID)
			}
			return nil, fmt.Errorf("load owner %d: %w", *req.UserID, err)
		}
		owner = u
	}

	// 2. Prepare domain model
	todo := &domain.Todo{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		DueDate:     req.DueDate,
		UserID:      req.UserID,
		Category:    req.Category,
	}
	todo.SetTags(req.Tags)
	if len(todo.Tags) > domain.MaxTagsLength {
		return nil, newValidationError("tags must be at most %d characters in total", domain.MaxTagsLength)
	}

	// 3. Persist
	if err := s.todos.Create(ctx, todo); err != nil {
		return nil, fmt.Errorf("create todo: %w", err)
	}

	// 4. Notify the owner
	if owner != nil {
		s.notify(ctx, notify.SubjectFromTodo(todo), owner, domain.EventCreated)
	}

	return toTodoResponse(todo), nil
}

func (s *todoService) GetTodoByID(ctx context.Context, id uint) (*TodoResponse, error) {
	todo, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return toTodoResponse(todo), nil
}

func (s *todoService) ListTodos(ctx context.Context, q TodoQuery) ([]TodoResponse, error) {
	todos, err := s.todos.List(ctx, repository.TodoFilter{
		Completed: q.Completed,
		Priority:  q.Priority,
		Category:  q.Category,
		UserID:    q.UserID,
		Search:    q.Search,
	})
	if err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}

	responses := make([]TodoResponse, 0, len(todos))
	for i := range todos {
		responses = append(responses, *toTodoResponse(&todos[i]))
	}
	return responses, nil
}

func (s *todoService) UpdateTodo(ctx context.Context, id uint, req UpdateTodoRequest) (*TodoResponse, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	// 1. Fetch the existing todo to ensure it exists
	todo, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	// 2. Apply updates from the request (only if fields are provided in the request)
	updated := false
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, newValidationError("title is required")
		}
		if title != todo.Title {
			todo.Title = title
			updated = true
		}
	}
	if req.Description != nil && *req.Description != todo.Description {
		todo.Description = *req.Description
		updated = true
	}
	if req.Completed != nil && *req.Completed != todo.Completed {
		todo.Completed = *req.Completed
		updated = true
	}
	if req.Priority != nil && *req.Priority != todo.Priority {
		todo.Priority = *req.Priority
		updated = true
	}
	if req.DueDate.Set && !sameTime(req.DueDate.Value, todo.DueDate) {
		todo.DueDate = req.DueDate.Value
		updated = true
	}
	if req.Category != nil && *req.Category != todo.Category {
		todo.Category = *req.Category
		updated = true
	}
	if req.Tags != nil {
		before := todo.Tags
		todo.SetTags(*req.Tags)
		if len(todo.Tags) > domain.MaxTagsLength {
			return nil, newValidationError("tags must be at most %d characters in total", domain.MaxTagsLength)
		}
		updated = updated || todo.Tags != before
	}

	// 3. Nothing changed: return the stored state without a write
	if !updated {
		s.logger.Debug("no changes detected for todo", zap.Uint("todo_id", id))
		return toTodoResponse(todo), nil
	}

	if err := s.save(ctx, todo); err != nil {
		return nil, err
	}
	return toTodoResponse(todo), nil
}

func (s *todoService) ToggleComplete(ctx context.Context, id uint) (*TodoResponse, error) {
	todo, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	todo.Completed = !todo.Completed

	if err := s.save(ctx, todo); err != nil {
		return nil, err
	}
	return toTodoResponse(todo), nil
}

// save persists todo and tells its owner about the change.
func (s *todoService) save(ctx context.Context, todo *domain.Todo) error {
	if err := s.todos.Update(ctx, todo); err != nil {
		return fmt.Errorf("update todo %d: %w", todo.ID, err)
	}
	if todo.User != nil {
		kind := domain.EventUpdated
		if todo.Completed {
			kind = domain.EventCompleted
		}
		s.notify(ctx, notify.SubjectFromTodo(todo), todo.User, kind)
	}
	return nil
}

func (s *todoService) DeleteTodo(ctx context.Context, id uint) error {
	todo, err := s.find(ctx, id)
	if err != nil {
		return err
	}

	if err := s.todos.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: id %d", ErrTodoNotFound, id)
		}
		return fmt.Errorf("delete todo %d: %w", id, err)
	}

	// the row and its notifications are gone; the notice carries no todo reference
	if todo.User != nil {
		s.notify(ctx, notify.DeletedSubject(todo.Title), todo.User, domain.EventDeleted)
	}
	return nil
}

func (s *todoService) Stats(ctx context.Context, userID *uint) (*repository.TodoStats, error) {
	stats, err := s.todos.Stats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("todo stats: %w", err)
	}
	return stats, nil
}

func (s *todoService) find(ctx context.Context, id uint) (*domain.Todo, error) {
	todo, err := s.todos.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrTodoNotFound, id)
		}
		return nil, fmt.Errorf("fetch todo %d: %w", id, err)
	}
	return todo, nil
}

// notify never fails the todo mutation that triggered it.
func (s *todoService) notify(ctx context.Context, subj notify.Subject, owner *domain.User, kind domain.EventKind) {
	if _, err := s.notifier.CreateNotification(ctx, subj, owner, kind, true); err != nil {
		s.logger.Warn("create notification",
			zap.Uint("user_id", owner.ID),
			zap.String("event", string(kind)),
			zap.Error(err),
		)
	}
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
