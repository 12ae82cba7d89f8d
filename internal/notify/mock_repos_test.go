package notify

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/Tomlord1122/todo-workshop/internal/domain"
	"github.com/Tomlord1122/todo-workshop/internal/repository"
)

// ── Mock TodoRepository ──

type mockTodoRepo struct {
	todos map[uint]*domain.Todo
}

func newMockTodoRepo() *mockTodoRepo {
	return &mockTodoRepo{todos: make(map[uint]*domain.Todo)}
}

func (m *mockTodoRepo) Create(_ context.Context, todo *domain.Todo) error {
	todo.ID = uint(len(m.todos) + 1)
	m.todos[todo.ID] = todo
	return nil
}

func (m *mockTodoRepo) FindByID(_ context.Context, id uint) (*domain.Todo, error) {
	if t, ok := m.todos[id]; ok {
		return t, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockTodoRepo) List(_ context.Context, _ repository.TodoFilter) ([]domain.Todo, error) {
	var out []domain.Todo
	for _, t := range m.todos {
		out = append(out, *t)
	}
	return out, nil
}

func (m *mockTodoRepo) Update(_ context.Context, todo *domain.Todo) error {
	m.todos[todo.ID] = todo
	return nil
}

func (m *mockTodoRepo) Delete(_ context.Context, id uint) error {
	delete(m.todos, id)
	return nil
}

func (m *mockTodoRepo) FindDueBetween(_ context.Context, from, to time.Time) ([]domain.Todo, error) {
	var out []domain.Todo
	for _, t := range m.todos {
		if t.Completed || t.DueDate == nil || t.UserID == nil {
			continue
		}
		if t.DueDate.After(from) && !t.DueDate.After(to) {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockTodoRepo) Stats(_ context.Context, _ *uint) (*repository.TodoStats, error) {
	return &repository.TodoStats{}, nil
}

// ── Mock NotificationRepository ──

type mockNotificationRepo struct {
	mu        sync.Mutex
	rows      []*domain.Notification
	nextID    uint
	createErr error
}

func newMockNotificationRepo() *mockNotificationRepo {
	return &mockNotificationRepo{}
}

func (m *mockNotificationRepo) Create(_ context.Context, n *domain.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.nextID++
	n.ID = m.nextID
	cp := *n
	m.rows = append(m.rows, &cp)
	return nil
}

func (m *mockNotificationRepo) FindByID(_ context.Context, id uint) (*domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.rows {
		if n.ID == id {
			cp := *n
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockNotificationRepo) list(userID uint, limit int, keep func(*domain.Notification) bool) []domain.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Notification
	for _, n := range m.rows {
		if n.UserID == userID && keep(n) {
			out = append(out, *n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (m *mockNotificationRepo) ListPending(_ context.Context, userID uint, limit int) ([]domain.Notification, error) {
	return m.list(userID, limit, func(n *domain.Notification) bool {
		return n.Type == domain.NotificationBrowser && !n.Sent
	}), nil
}

func (m *mockNotificationRepo) ListByUser(_ context.Context, userID uint, limit int) ([]domain.Notification, error) {
	return m.list(userID, limit, func(*domain.Notification) bool { return true }), nil
}

func (m *mockNotificationRepo) MarkSent(_ context.Context, id uint, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.rows {
		if n.ID == id {
			n.MarkSent(at)
			return true, nil
		}
	}
	return false, nil
}

func (m *mockNotificationRepo) Exists(_ context.Context, key repository.DedupKey) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.rows {
		if n.TodoID == nil || *n.TodoID != key.TodoID || n.UserID != key.UserID || n.Type != key.Type {
			continue
		}
		if n.Event == key.Event {
			return true, nil
		}
		if key.Event == domain.EventDueSoon && n.Event == "" && strings.Contains(n.Message, "due soon") {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockNotificationRepo) byType(t domain.NotificationType) []domain.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Notification
	for _, n := range m.rows {
		if n.Type == t {
			out = append(out, *n)
		}
	}
	return out
}

// ── Mock UserRepository ──

type mockUserRepo struct {
	users map[uint]*domain.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[uint]*domain.User)}
}

func (m *mockUserRepo) Create(_ context.Context, user *domain.User) error {
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepo) FindByID(_ context.Context, id uint) (*domain.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) FindByUsername(_ context.Context, _ string) (*domain.User, error) {
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) FindByEmail(_ context.Context, _ string) (*domain.User, error) {
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) List(_ context.Context) ([]domain.User, error) { return nil, nil }

func (m *mockUserRepo) Update(_ context.Context, user *domain.User) error {
	m.users[user.ID] = user
	return nil
}

// ── Mock Transport ──

type sentMail struct {
	To, Subject, Body string
}

type mockTransport struct {
	mu    sync.Mutex
	sent  []sentMail
	err   error
	block bool // wait for the context to end
}

func (m *mockTransport) Send(ctx context.Context, to, subject, body string) error {
	if m.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

func (m *mockTransport) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// ── Clock ──

// stepClock advances one second per reading so records get distinct,
// increasing timestamps.
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}
