package repository

import "gorm.io/gorm"

// Repository groups every repository behind one handle.
type Repository struct {
	Todo         TodoRepository
	User         UserRepository
	Notification NotificationRepository
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		Todo:         NewGormTodoRepository(db),
		User:         NewGormUserRepository(db),
		Notification: NewGormNotificationRepository(db),
	}
}
