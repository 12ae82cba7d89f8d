package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tomlord1122/todo-workshop/internal/domain"
)

func TestSubjectLine(t *testing.T) {
	cases := map[domain.EventKind]string{
		domain.EventCreated:   "New Todo Created: Pay rent",
		domain.EventCompleted: "Todo Completed: Pay rent",
		domain.EventDueSoon:   `Reminder: Todo "Pay rent" is due soon!`,
		domain.EventUpdated:   "Todo Updated: Pay rent",
		domain.EventDeleted:   "Todo Deleted: Pay rent",
		"archived":            "Todo Update: Pay rent",
	}
	for kind, want := range cases {
		assert.Equal(t, want, SubjectLine(kind, "Pay rent"), kind)
	}
}

func TestRenderTodoEmail_Defaults(t *testing.T) {
	body, err := RenderTodoEmail(Subject{Title: "Pay rent", Priority: domain.PriorityHigh})
	require.NoError(t, err)

	assert.Contains(t, body, "<strong>Title:</strong> Pay rent")
	assert.Contains(t, body, "No description")
	assert.Contains(t, body, "<strong>Priority:</strong> high")
	assert.Contains(t, body, "<strong>Status:</strong> Pending")
	assert.Contains(t, body, "Uncategorized")
	assert.NotContains(t, body, "Due Date")
	assert.Contains(t, body, footer)
}

func TestRenderTodoEmail_AllFields(t *testing.T) {
	due := time.Date(2026, 3, 2, 17, 30, 0, 0, time.UTC)
	body, err := RenderTodoEmail(Subject{
		Title:       "Pay rent",
		Description: "Transfer to landlord",
		Priority:    domain.PriorityLow,
		Completed:   true,
		DueDate:     &due,
		Category:    "home",
	})
	require.NoError(t, err)

	assert.Contains(t, body, "Transfer to landlord")
	assert.Contains(t, body, "<strong>Status:</strong> Completed")
	assert.Contains(t, body, "<strong>Due Date:</strong> 2026-03-02 17:30")
	assert.Contains(t, body, "<strong>Category:</strong> home")
}

func TestRenderTodoEmail_EscapesHTML(t *testing.T) {
	body, err := RenderTodoEmail(Subject{Title: "<script>alert(1)</script>"})
	require.NoError(t, err)

	assert.NotContains(t, body, "<script>")
	assert.Contains(t, body, "&lt;script&gt;")
}

func TestRenderDigestEmail(t *testing.T) {
	due := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	body, err := RenderDigestEmail([]Subject{
		{Title: "A", DueDate: &due, Priority: domain.PriorityHigh},
		{Title: "B", Priority: domain.PriorityLow},
	})
	require.NoError(t, err)

	assert.Contains(t, body, "You have 2 todo(s) that are due soon")
	assert.Contains(t, body, "Due: 2026-03-02 08:00")
	assert.Contains(t, body, "Due: No due date")
	assert.Contains(t, body, "Priority: low")
	assert.Equal(t, "Reminder: 2 Todo(s) Due Soon", DigestSubjectLine(2))
}
