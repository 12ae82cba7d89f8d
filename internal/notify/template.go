package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/Tomlord1122/todo-workshop/internal/domain"
)

const dueDateLayout = "2006-01-02 15:04"

var subjectFormats = map[domain.EventKind]string{
	domain.EventCreated:   "New Todo Created: %s",
	domain.EventCompleted: "Todo Completed: %s",
	domain.EventDueSoon:   "Reminder: Todo \"%s\" is due soon!",
	domain.EventUpdated:   "Todo Updated: %s",
	domain.EventDeleted:   "Todo Deleted: %s",
}

// SubjectLine returns the email subject for kind. Unknown kinds get a
// generic subject.
func SubjectLine(kind domain.EventKind, title string) string {
	format, ok := subjectFormats[kind]
	if !ok {
		format = "Todo Update: %s"
	}
	return fmt.Sprintf(format, title)
}

// DigestSubjectLine is the subject of the bulk due-soon reminder.
func DigestSubjectLine(n int) string {
	return fmt.Sprintf("Reminder: %d Todo(s) Due Soon", n)
}

// browserMessage is the in-app text for a lifecycle event.
func browserMessage(kind domain.EventKind, title string) string {
	return fmt.Sprintf("Todo %s: %s", kind, title)
}

const footer = "This is an automated notification from Todo Workshop App."

var todoEmail = template.Must(template.New("todo").Parse(`<html>
<body>
    <h2>Todo Notification</h2>
    <p><strong>Title:</strong> {{.Title}}</p>
    <p><strong>Description:</strong> {{.Description}}</p>
    <p><strong>Priority:</strong> {{.Priority}}</p>
    <p><strong>Status:</strong> {{.Status}}</p>
    {{- if .DueDate}}
    <p><strong>Due Date:</strong> {{.DueDate}}</p>
    {{- end}}
    <p><strong>Category:</strong> {{.Category}}</p>
    <hr>
    <p>{{.Footer}}</p>
</body>
</html>
`))

var digestEmail = template.Must(template.New("digest").Parse(`<html>
<body>
    <h2>Todo Reminders</h2>
    <p>You have {{len .Items}} todo(s) that are due soon:</p>
    <ul>
    {{- range .Items}}
        <li>
            <strong>{{.Title}}</strong><br>
            Due: {{.Due}}<br>
            Priority: {{.Priority}}
        </li>
    {{- end}}
    </ul>
    <hr>
    <p>{{.Footer}}</p>
</body>
</html>
`))

type todoEmailData struct {
	Title       string
	Description string
	Priority    domain.Priority
	Status      string
	DueDate     string
	Category    string
	Footer      string
}

type digestItem struct {
	Title    string
	Due      string
	Priority domain.Priority
}

type digestEmailData struct {
	Items  []digestItem
	Footer string
}

func formatDue(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(dueDateLayout)
}

// RenderTodoEmail renders the HTML body for a single todo event.
func RenderTodoEmail(s Subject) (string, error) {
	data := todoEmailData{
		Title:       s.Title,
		Description: s.Description,
		Priority:    s.Priority,
		Status:      "Pending",
		DueDate:     formatDue(s.DueDate),
		Category:    s.Category,
		Footer:      footer,
	}
	if data.Description == "" {
		data.Description = "No description"
	}
	if data.Category == "" {
		data.Category = "Uncategorized"
	}
	if s.Completed {
		data.Status = "Completed"
	}

	var buf bytes.Buffer
	if err := todoEmail.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render todo email: %w", err)
	}
	return buf.String(), nil
}

// RenderDigestEmail renders the HTML body listing several todos.
func RenderDigestEmail(subjects []Subject) (string, error) {
	data := digestEmailData{Items: make([]digestItem, 0, len(subjects)), Footer: footer}
	for _, s := range subjects {
		due := formatDue(s.DueDate)
		if due == "" {
			due = "No due date"
		}
		data.Items = append(data.Items, digestItem{Title: s.Title, Due: due, Priority: s.Priority})
	}

	var buf bytes.Buffer
	if err := digestEmail.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render digest email: %w", err)
	}
	return buf.String(), nil
}
