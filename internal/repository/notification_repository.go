package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Tomlord1122/todo-workshop/internal/domain"
)

// DedupKey identifies the notification that must exist at most once for a
// (todo, user, channel, event) combination.
type DedupKey struct {
	TodoID uint
	UserID uint
	Type   domain.NotificationType
	Event  domain.EventKind
}

// NotificationRepository defines the interface for notification records.
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	FindByID(ctx context.Context, id uint) (*domain.Notification, error)
	// ListPending returns unsent browser notifications for the user,
	// newest first.
	ListPending(ctx context.Context, userID uint, limit int) ([]domain.Notification, error)
	ListByUser(ctx context.Context, userID uint, limit int) ([]domain.Notification, error)
	// MarkSent reports false when no notification has the id.
	MarkSent(ctx context.Context, id uint, at time.Time) (bool, error)
	Exists(ctx context.Context, key DedupKey) (bool, error)
}

type gormNotificationRepository struct {
	db *gorm.DB
}

func NewGormNotificationRepository(db *gorm.DB) NotificationRepository {
	return &gormNotificationRepository{db: db}
}

func (r *gormNotificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(n).Error
}

func (r *gormNotificationRepository) FindByID(ctx context.Context, id uint) (*domain.Notification, error) {
	var n domain.Notification
	if err := r.db.WithContext(ctx).First(&n, id).Error; err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *gormNotificationRepository) ListPending(ctx context.Context, userID uint, limit int) ([]domain.Notification, error) {
	var out []domain.Notification
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND type = ? AND sent = ?", userID, domain.NotificationBrowser, false).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *gormNotificationRepository) ListByUser(ctx context.Context, userID uint, limit int) ([]domain.Notification, error) {
	var out []domain.Notification
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *gormNotificationRepository) MarkSent(ctx context.Context, id uint, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("id = ?", id).
		Updates(map[string]any{"sent": true, "sent_at": at})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Exists matches on the structured event column. Rows written before the
// column existed carry an empty event and are matched on the message text
// the due-soon subject always contains.
func (r *gormNotificationRepository) Exists(ctx context.Context, key DedupKey) (bool, error) {
	query := r.db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("todo_id = ? AND user_id = ? AND type = ?", key.TodoID, key.UserID, key.Type)
	if key.Event == domain.EventDueSoon {
		query = query.Where("(event = ? OR (event = '' AND message LIKE ?))", key.Event, "%due soon%")
	} else {
		query = query.Where("event = ?", key.Event)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
