package notify

import (
	"time"
	"unicode/utf8"

	"github.com/Tomlord1122/todo-workshop/internal/domain"
)

// Subject is the todo snapshot a notification is about. TodoID is nil when
// the todo no longer exists (delete events).
type Subject struct {
	TodoID      *uint
	Title       string
	Description string
	Priority    domain.Priority
	Completed   bool
	DueDate     *time.Time
	Category    string
}

// SubjectFromTodo snapshots a persisted todo.
func SubjectFromTodo(t *domain.Todo) Subject {
	id := t.ID
	return Subject{
		TodoID:      &id,
		Title:       t.Title,
		Description: t.Description,
		Priority:    t.Priority,
		Completed:   t.Completed,
		DueDate:     t.DueDate,
		Category:    t.Category,
	}
}

// DeletedSubject describes a todo that has already been removed.
func DeletedSubject(title string) Subject {
	if title == "" {
		title = "Deleted Todo"
	}
	return Subject{Title: title, Priority: domain.PriorityMedium}
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
