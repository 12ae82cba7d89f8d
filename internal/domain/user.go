package domain

import "time"

type User struct {
	ID                          uint      `gorm:"primaryKey"`
	Username                    string    `gorm:"size:80;not null;uniqueIndex"`
	Email                       string    `gorm:"size:120;not null;uniqueIndex"`
	CreatedAt                   time.Time `gorm:"not null"`
	EmailNotificationsEnabled   bool      `gorm:"not null"`
	BrowserNotificationsEnabled bool      `gorm:"not null"`
}
