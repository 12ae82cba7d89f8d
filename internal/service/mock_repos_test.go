package service

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/Tomlord1122/todo-workshop/internal/domain"
	"github.com/Tomlord1122/todo-workshop/internal/notify"
	"github.com/Tomlord1122/todo-workshop/internal/repository"
)

// ── Mock UserRepository ──

type mockUserRepo struct {
	users     map[uint]*domain.User
	createErr error
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[uint]*domain.User)}
}

func (m *mockUserRepo) Create(_ context.Context, user *domain.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	user.ID = uint(len(m.users) + 1)
	user.CreatedAt = time.Now()
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepo) FindByID(_ context.Context, id uint) (*domain.User, error) {
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) List(_ context.Context) ([]domain.User, error) {
	var out []domain.User
	for id := uint(1); id <= uint(len(m.users)); id++ {
		if u, ok := m.users[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (m *mockUserRepo) Update(_ context.Context, user *domain.User) error {
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

// ── Mock TodoRepository ──

type mockTodoRepo struct {
	todos   map[uint]*domain.Todo
	users   *mockUserRepo
	nextID  uint
	updates int
}

func newMockTodoRepo(users *mockUserRepo) *mockTodoRepo {
	return &mockTodoRepo{todos: make(map[uint]*domain.Todo), users: users}
}

func (m *mockTodoRepo) Create(_ context.Context, todo *domain.Todo) error {
	m.nextID++
	todo.ID = m.nextID
	todo.CreatedAt = time.Now()
	todo.UpdatedAt = todo.CreatedAt
	cp := *todo
	cp.User = nil
	m.todos[todo.ID] = &cp
	return nil
}

// FindByID mimics Preload("User").
func (m *mockTodoRepo) FindByID(ctx context.Context, id uint) (*domain.Todo, error) {
	t, ok := m.todos[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *t
	if cp.UserID != nil {
		if u, err := m.users.FindByID(ctx, *cp.UserID); err == nil {
			cp.User = u
		}
	}
	return &cp, nil
}

func (m *mockTodoRepo) List(_ context.Context, f repository.TodoFilter) ([]domain.Todo, error) {
	var out []domain.Todo
	for id := uint(1); id <= m.nextID; id++ {
		t, ok := m.todos[id]
		if !ok {
			continue
		}
		if f.Completed != nil && t.Completed != *f.Completed {
			continue
		}
		if f.Priority != "" && t.Priority != f.Priority {
			continue
		}
		out = append(out, *t)
	}
	return out, nil
}

func (m *mockTodoRepo) Update(_ context.Context, todo *domain.Todo) error {
	m.updates++
	todo.UpdatedAt = time.Now()
	cp := *todo
	cp.User = nil
	m.todos[todo.ID] = &cp
	return nil
}

func (m *mockTodoRepo) Delete(_ context.Context, id uint) error {
	if _, ok := m.todos[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.todos, id)
	return nil
}

func (m *mockTodoRepo) FindDueBetween(_ context.Context, _, _ time.Time) ([]domain.Todo, error) {
	return nil, nil
}

func (m *mockTodoRepo) Stats(_ context.Context, _ *uint) (*repository.TodoStats, error) {
	stats := &repository.TodoStats{}
	for _, t := range m.todos {
		stats.Total++
		if t.Completed {
			stats.Completed++
		} else {
			stats.Pending++
		}
	}
	return stats, nil
}

// ── Notifier spy ──

type notifyCall struct {
	Subject notify.Subject
	UserID  uint
	Kind    domain.EventKind
}

type spyNotifier struct {
	calls []notifyCall
	err   error
}

func (s *spyNotifier) CreateNotification(_ context.Context, subj notify.Subject, user *domain.User, kind domain.EventKind, _ bool) (*domain.Notification, error) {
	s.calls = append(s.calls, notifyCall{Subject: subj, UserID: user.ID, Kind: kind})
	if s.err != nil {
		return nil, s.err
	}
	return &domain.Notification{ID: uint(len(s.calls)), UserID: user.ID, TodoID: subj.TodoID}, nil
}
