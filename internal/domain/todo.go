package domain

import (
	"strings"
	"time"
)

// Priority is the urgency level of a todo.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Field limits shared by validation and the schema.
const (
	MaxTitleLength    = 200
	MaxCategoryLength = 50
	MaxTagsLength     = 200
)

type Todo struct {
	ID          uint       `gorm:"primaryKey"`
	Title       string     `gorm:"size:200;not null"`
	Description string     `gorm:"type:text"`
	Completed   bool       `gorm:"not null;default:false;index"`
	Priority    Priority   `gorm:"size:20;not null;default:medium"`
	DueDate     *time.Time `gorm:"index"`
	CreatedAt   time.Time  `gorm:"not null"`
	UpdatedAt   time.Time  `gorm:"not null"`
	UserID      *uint      `gorm:"index"`
	User        *User      `gorm:"constraint:OnDelete:SET NULL"`
	Category    string     `gorm:"size:50"`
	Tags        string     `gorm:"size:200"` // comma-joined

	Notifications []Notification `gorm:"constraint:OnDelete:CASCADE"`
}

// TagList splits the stored tags back into an ordered list.
func (t *Todo) TagList() []string {
	if t.Tags == "" {
		return []string{}
	}
	return strings.Split(t.Tags, ",")
}

// SetTags stores tags as comma-joined text, dropping empty entries.
func (t *Todo) SetTags(tags []string) {
	kept := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag != "" {
			kept = append(kept, tag)
		}
	}
	t.Tags = strings.Join(kept, ",")
}
