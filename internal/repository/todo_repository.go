package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Tomlord1122/todo-workshop/internal/domain"
)

// TodoFilter narrows List. Zero values mean "no constraint".
type TodoFilter struct {
	Completed *bool
	Priority  domain.Priority
	Category  string
	UserID    *uint
	Search    string
}

// TodoStats is the aggregate returned by Stats.
type TodoStats struct {
	Total          int64 `json:"total"`
	Completed      int64 `json:"completed"`
	Pending        int64 `json:"pending"`
	HighPriority   int64 `json:"high_priority"`
	MediumPriority int64 `json:"medium_priority"`
	LowPriority    int64 `json:"low_priority"`
}

// TodoRepository defines the interface for todo data operations
type TodoRepository interface {
	Create(ctx context.Context, todo *domain.Todo) error
	FindByID(ctx context.Context, id uint) (*domain.Todo, error)
	List(ctx context.Context, filter TodoFilter) ([]domain.Todo, error)
	Update(ctx context.Context, todo *domain.Todo) error
	Delete(ctx context.Context, id uint) error
	// FindDueBetween returns incomplete, assigned todos with from < due_date <= to,
	// owners preloaded.
	FindDueBetween(ctx context.Context, from, to time.Time) ([]domain.Todo, error)
	Stats(ctx context.Context, userID *uint) (*TodoStats, error)
}

type gormTodoRepository struct {
	db *gorm.DB
}

// NewGormTodoRepository creates a new GORM todo repository
func NewGormTodoRepository(db *gorm.DB) TodoRepository {
	return &gormTodoRepository{db: db}
}

func (r *gormTodoRepository) Create(ctx context.Context, todo *domain.Todo) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(todo).Error
}

// FindByID returns gorm.ErrRecordNotFound when no todo has the id.
func (r *gormTodoRepository) FindByID(ctx context.Context, id uint) (*domain.Todo, error) {
	var todo domain.Todo
	if err := r.db.WithContext(ctx).Preload("User").First(&todo, id).Error; err != nil {
		return nil, err
	}
	return &todo, nil
}

func (r *gormTodoRepository) List(ctx context.Context, filter TodoFilter) ([]domain.Todo, error) {
	query := r.db.WithContext(ctx).Model(&domain.Todo{})

	if filter.Completed != nil {
		query = query.Where("completed = ?", *filter.Completed)
	}
	if filter.Priority != "" {
		query = query.Where("priority = ?", filter.Priority)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		query = query.Where("title LIKE ? OR description LIKE ?", pattern, pattern)
	}

	var todos []domain.Todo
	if err := query.Order("created_at DESC").Order("id DESC").Find(&todos).Error; err != nil {
		return nil, err
	}
	return todos, nil
}

// Update writes every column of todo. Loaded associations are not touched.
func (r *gormTodoRepository) Update(ctx context.Context, todo *domain.Todo) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(todo).Error
}

// Delete removes the todo; its notifications go with it through the
// foreign key cascade.
func (r *gormTodoRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&domain.Todo{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *gormTodoRepository) FindDueBetween(ctx context.Context, from, to time.Time) ([]domain.Todo, error) {
	var todos []domain.Todo
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("completed = ?", false).
		Where("due_date IS NOT NULL").
		Where("due_date > ? AND due_date <= ?", from, to).
		Where("user_id IS NOT NULL").
		Order("due_date ASC").
		Find(&todos).Error
	if err != nil {
		return nil, err
	}
	return todos, nil
}

func (r *gormTodoRepository) Stats(ctx context.Context, userID *uint) (*TodoStats, error) {
	query := r.db.WithContext(ctx).Model(&domain.Todo{}).Select(`
		COUNT(*) AS total,
		COALESCE(SUM(CASE WHEN completed THEN 1 ELSE 0 END), 0) AS completed,
		COALESCE(SUM(CASE WHEN NOT completed THEN 1 ELSE 0 END), 0) AS pending,
		COALESCE(SUM(CASE WHEN NOT completed AND priority = 'high' THEN 1 ELSE 0 END), 0) AS high_priority,
		COALESCE(SUM(CASE WHEN NOT completed AND priority = 'medium' THEN 1 ELSE 0 END), 0) AS medium_priority,
		COALESCE(SUM(CASE WHEN NOT completed AND priority = 'low' THEN 1 ELSE 0 END), 0) AS low_priority`)
	if userID != nil {
		query = query.Where("user_id = ?", *userID)
	}

	var stats TodoStats
	if err := query.Scan(&stats).Error; err != nil {
		return nil, err
	}
	return &stats, nil
}
