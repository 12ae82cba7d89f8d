package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Tomlord1122/todo-workshop/internal/domain"
	"github.com/Tomlord1122/todo-workshop/internal/repository"
)

// ── helpers ──

var baseTime = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	svc       *Service
	todos     *mockTodoRepo
	users     *mockUserRepo
	notifs    *mockNotificationRepo
	transport *mockTransport
	flag      *AtomicFlag
	clock     *stepClock
}

func setupService(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		todos:     newMockTodoRepo(),
		users:     newMockUserRepo(),
		notifs:    newMockNotificationRepo(),
		transport: &mockTransport{},
		flag:      NewAtomicFlag(true),
		clock:     &stepClock{t: baseTime},
	}
	repo := &repository.Repository{Todo: f.todos, User: f.users, Notification: f.notifs}
	f.svc = NewService(repo, f.transport, f.flag, NewLocalGuard(), Options{Now: f.clock.Now}, zap.NewNop())
	return f
}

func newUser(id uint, emailEnabled bool) *domain.User {
	return &domain.User{
		ID:                          id,
		Username:                    "user",
		Email:                       "user@example.com",
		EmailNotificationsEnabled:   emailEnabled,
		BrowserNotificationsEnabled: true,
	}
}

func newTodo(id uint, title string) *domain.Todo {
	return &domain.Todo{ID: id, Title: title, Priority: domain.PriorityMedium}
}

func assertSentAtMatchesSent(t *testing.T, rows []domain.Notification) {
	t.Helper()
	for _, n := range rows {
		assert.Equal(t, n.Sent, n.SentAt != nil, "notification %d: sent=%v sent_at=%v", n.ID, n.Sent, n.SentAt)
	}
}

// ── CreateNotification ──

func TestCreateNotification_BrowserAndEmail(t *testing.T) {
	f := setupService(t)
	user := newUser(1, true)

	n, err := f.svc.CreateNotification(context.Background(), SubjectFromTodo(newTodo(7, "Pay rent")), user, domain.EventCreated, true)
	require.NoError(t, err)

	assert.Equal(t, "Todo created: Pay rent", n.Message)
	assert.Equal(t, domain.NotificationBrowser, n.Type)
	assert.False(t, n.Sent)
	assert.Nil(t, n.SentAt)

	browser := f.notifs.byType(domain.NotificationBrowser)
	email := f.notifs.byType(domain.NotificationEmail)
	require.Len(t, browser, 1)
	require.Len(t, email, 1)
	assert.True(t, email[0].Sent)
	assert.Equal(t, "New Todo Created: Pay rent", email[0].Message)
	assert.Equal(t, uint(7), *email[0].TodoID)
	assertSentAtMatchesSent(t, append(browser, email...))

	require.Equal(t, 1, f.transport.count())
	assert.Equal(t, "user@example.com", f.transport.sent[0].To)
}

func TestCreateNotification_UserEmailDisabled(t *testing.T) {
	f := setupService(t)

	_, err := f.svc.CreateNotification(context.Background(), SubjectFromTodo(newTodo(1, "a")), newUser(1, false), domain.EventUpdated, true)
	require.NoError(t, err)

	assert.Len(t, f.notifs.rows, 1)
	assert.Equal(t, 0, f.transport.count())
}

func TestCreateNotification_FlagOff(t *testing.T) {
	f := setupService(t)
	f.flag.Set(false)

	_, err := f.svc.CreateNotification(context.Background(), SubjectFromTodo(newTodo(1, "a")), newUser(1, true), domain.EventUpdated, true)
	require.NoError(t, err)

	assert.Len(t, f.notifs.rows, 1)
	assert.Equal(t, 0, f.transport.count())
}

func TestCreateNotification_FlagFlippedAtRuntime(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	subj := SubjectFromTodo(newTodo(1, "a"))

	f.flag.Set(false)
	_, err := f.svc.CreateNotification(ctx, subj, newUser(1, true), domain.EventUpdated, true)
	require.NoError(t, err)
	f.flag.Set(true)
	_, err = f.svc.CreateNotification(ctx, subj, newUser(1, true), domain.EventUpdated, true)
	require.NoError(t, err)

	assert.Len(t, f.notifs.rows, 3)
	assert.Equal(t, 1, f.transport.count())
}

func TestCreateNotification_EmailNotRequested(t *testing.T) {
	f := setupService(t)

	_, err := f.svc.CreateNotification(context.Background(), SubjectFromTodo(newTodo(1, "a")), newUser(1, true), domain.EventCompleted, false)
	require.NoError(t, err)

	assert.Len(t, f.notifs.rows, 1)
	assert.Equal(t, 0, f.transport.count())
}

func TestCreateNotification_TransportFailureIsRecorded(t *testing.T) {
	f := setupService(t)
	f.transport.err = errors.New("connection refused")

	n, err := f.svc.CreateNotification(context.Background(), SubjectFromTodo(newTodo(3, "Pay rent")), newUser(1, true), domain.EventCompleted, true)
	require.NoError(t, err)
	require.NotNil(t, n)

	email := f.notifs.byType(domain.NotificationEmail)
	require.Len(t, email, 1)
	assert.False(t, email[0].Sent)
	assert.Nil(t, email[0].SentAt)
	assert.Equal(t, "Failed to send: Todo Completed: Pay rent", email[0].Message)
	assert.Len(t, f.notifs.byType(domain.NotificationBrowser), 1)
}

func TestCreateNotification_DeletedTodo(t *testing.T) {
	f := setupService(t)

	n, err := f.svc.CreateNotification(context.Background(), DeletedSubject(""), newUser(1, true), domain.EventDeleted, true)
	require.NoError(t, err)

	assert.Nil(t, n.TodoID)
	assert.Equal(t, "Todo deleted: Deleted Todo", n.Message)
	email := f.notifs.byType(domain.NotificationEmail)
	require.Len(t, email, 1)
	assert.Nil(t, email[0].TodoID)
	assert.Equal(t, "Todo Deleted: Deleted Todo", email[0].Message)
}

func TestCreateNotification_InvalidInput(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	subj := SubjectFromTodo(newTodo(1, "a"))

	_, err := f.svc.CreateNotification(ctx, subj, newUser(1, true), domain.EventKind("archived"), true)
	assert.ErrorIs(t, err, ErrInvalidEventKind)

	_, err = f.svc.CreateNotification(ctx, subj, nil, domain.EventCreated, true)
	assert.ErrorIs(t, err, ErrInvalidUser)

	_, err = f.svc.CreateNotification(ctx, subj, &domain.User{}, domain.EventCreated, true)
	assert.ErrorIs(t, err, ErrInvalidUser)

	assert.Empty(t, f.notifs.rows)
}

func TestCreateNotification_PersistenceErrorPropagates(t *testing.T) {
	f := setupService(t)
	f.notifs.createErr = errors.New("db down")

	_, err := f.svc.CreateNotification(context.Background(), SubjectFromTodo(newTodo(1, "a")), newUser(1, true), domain.EventCreated, true)
	assert.Error(t, err)
	assert.Equal(t, 0, f.transport.count())
}

func TestCreateNotification_LongTitleIsTruncated(t *testing.T) {
	f := setupService(t)
	title := strings.Repeat("é", 600)

	n, err := f.svc.CreateNotification(context.Background(), SubjectFromTodo(newTodo(1, title)), newUser(1, true), domain.EventCreated, true)
	require.NoError(t, err)

	assert.Equal(t, domain.MaxMessageLength, len([]rune(n.Message)))
	for _, row := range f.notifs.rows {
		assert.LessOrEqual(t, len([]rune(row.Message)), domain.MaxMessageLength)
	}
}

// ── SendTodoNotification ──

func TestSendTodoNotification_Timeout(t *testing.T) {
	f := setupService(t)
	f.svc.opts.SendTimeout = 10 * time.Millisecond
	f.transport.block = true

	res, err := f.svc.SendTodoNotification(context.Background(), SubjectFromTodo(newTodo(1, "slow")), newUser(1, true), domain.EventUpdated)
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, res.Status)
	assert.False(t, res.Delivered())
	assert.Contains(t, res.Reason, "timed out")
	email := f.notifs.byType(domain.NotificationEmail)
	require.Len(t, email, 1)
	assert.True(t, strings.HasPrefix(email[0].Message, "Failed to send:"))
}

func TestSendTodoNotification_SkippedWritesNothing(t *testing.T) {
	f := setupService(t)

	res, err := f.svc.SendTodoNotification(context.Background(), SubjectFromTodo(newTodo(1, "a")), newUser(1, false), domain.EventCreated)
	require.NoError(t, err)

	assert.Equal(t, StatusSkipped, res.Status)
	assert.False(t, res.Attempted())
	assert.Empty(t, f.notifs.rows)
}

// ── SendDigest ──

func TestSendDigest(t *testing.T) {
	f := setupService(t)
	due := baseTime.Add(3 * time.Hour)
	a := newTodo(1, "Pay rent")
	a.DueDate = &due
	b := newTodo(2, "Call mom")

	res, err := f.svc.SendDigest(context.Background(), []Subject{SubjectFromTodo(a), SubjectFromTodo(b)}, newUser(1, true))
	require.NoError(t, err)
	assert.True(t, res.Delivered())

	require.Equal(t, 1, f.transport.count())
	mail := f.transport.sent[0]
	assert.Equal(t, "Reminder: 2 Todo(s) Due Soon", mail.Subject)
	assert.Contains(t, mail.Body, "Pay rent")
	assert.Contains(t, mail.Body, "2026-03-01 12:00")
	assert.Contains(t, mail.Body, "No due date")

	email := f.notifs.byType(domain.NotificationEmail)
	require.Len(t, email, 2)
	for _, n := range email {
		assert.Equal(t, domain.EventDueSoon, n.Event)
		assert.True(t, n.Sent)
	}
	assertSentAtMatchesSent(t, email)
}

func TestSendDigest_Skips(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	res, err := f.svc.SendDigest(ctx, nil, newUser(1, true))
	require.NoError(t, err)
	assert.False(t, res.Attempted())

	res, err = f.svc.SendDigest(ctx, []Subject{SubjectFromTodo(newTodo(1, "a"))}, newUser(1, false))
	require.NoError(t, err)
	assert.False(t, res.Attempted())

	f.flag.Set(false)
	res, err = f.svc.SendDigest(ctx, []Subject{SubjectFromTodo(newTodo(1, "a"))}, newUser(1, true))
	require.NoError(t, err)
	assert.False(t, res.Attempted())

	assert.Empty(t, f.notifs.rows)
	assert.Equal(t, 0, f.transport.count())
}

// ── Pending retrieval ──

func TestGetPendingNotifications(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	alice, bob := newUser(1, false), newUser(2, false)

	for i := 0; i < 5; i++ {
		_, err := f.svc.CreateNotification(ctx, SubjectFromTodo(newTodo(uint(i+1), "a")), alice, domain.EventUpdated, false)
		require.NoError(t, err)
	}
	_, err := f.svc.CreateNotification(ctx, SubjectFromTodo(newTodo(9, "b")), bob, domain.EventUpdated, false)
	require.NoError(t, err)
	// an email row for alice must never show up
	_, err = f.svc.SendTodoNotification(ctx, SubjectFromTodo(newTodo(1, "a")), newUser(1, true), domain.EventUpdated)
	require.NoError(t, err)

	ok, err := f.svc.MarkNotificationSent(ctx, 5)
	require.NoError(t, err)
	require.True(t, ok)

	pending, err := f.svc.GetPendingNotifications(ctx, alice.ID, 3)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, []uint{4, 3, 2}, []uint{pending[0].ID, pending[1].ID, pending[2].ID})
	for i, n := range pending {
		assert.Equal(t, alice.ID, n.UserID)
		assert.Equal(t, domain.NotificationBrowser, n.Type)
		assert.False(t, n.Sent)
		if i > 0 {
			assert.False(t, n.CreatedAt.After(pending[i-1].CreatedAt))
		}
	}

	all, err := f.svc.GetPendingNotifications(ctx, alice.ID, 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	everything, err := f.svc.ListNotifications(ctx, alice.ID, 0)
	require.NoError(t, err)
	assert.Len(t, everything, 6)
}

func TestClampLimit(t *testing.T) {
	f := setupService(t)
	assert.Equal(t, DefaultPendingLimit, f.svc.clampLimit(0))
	assert.Equal(t, DefaultPendingLimit, f.svc.clampLimit(-4))
	assert.Equal(t, 10, f.svc.clampLimit(10))
	assert.Equal(t, MaxPendingLimit, f.svc.clampLimit(10_000))
}

// ── MarkNotificationSent ──

func TestMarkNotificationSent(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	n, err := f.svc.CreateNotification(ctx, SubjectFromTodo(newTodo(1, "a")), newUser(1, true), domain.EventCreated, false)
	require.NoError(t, err)

	ok, err := f.svc.MarkNotificationSent(ctx, n.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := f.notifs.FindByID(ctx, n.ID)
	require.NoError(t, err)
	assert.True(t, got.Sent)
	require.NotNil(t, got.SentAt)
	assert.False(t, got.SentAt.Before(got.CreatedAt))
}

func TestMarkNotificationSent_Unknown(t *testing.T) {
	f := setupService(t)

	ok, err := f.svc.MarkNotificationSent(context.Background(), 404)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, f.notifs.rows)
}
