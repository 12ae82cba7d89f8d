package notify

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Tomlord1122/todo-workshop/internal/domain"
	"github.com/Tomlord1122/todo-workshop/internal/repository"
)

// CheckDueTodos emails owners of incomplete todos due within the window,
// once per (todo, user). It returns the ids of todos for which an email was
// attempted during this call; failed sends count, skipped ones do not.
func (s *Service) CheckDueTodos(ctx context.Context) ([]uint, error) {
	now := s.opts.Now()
	todos, err := s.todos.FindDueBetween(ctx, now, now.Add(s.opts.DueWindow))
	if err != nil {
		return nil, fmt.Errorf("find due todos: %w", err)
	}

	affected := make([]uint, 0, len(todos))
	for i := range todos {
		todo := &todos[i]
		if todo.User == nil {
			continue
		}

		attempted, err := s.remindDueSoon(ctx, todo)
		if err != nil {
			return affected, err
		}
		if attempted {
			affected = append(affected, todo.ID)
		}
	}

	s.logger.Info("due-soon scan finished",
		zap.Int("candidates", len(todos)),
		zap.Int("notified", len(affected)),
	)
	return affected, nil
}

func (s *Service) remindDueSoon(ctx context.Context, todo *domain.Todo) (bool, error) {
	user := todo.User

	release, ok, err := s.guard.Acquire(ctx, dueSoonKey(todo.ID, user.ID))
	if err != nil {
		return false, fmt.Errorf("due-soon guard: %w", err)
	}
	if !ok {
		// another scan is handling this pair right now
		return false, nil
	}
	defer release()

	exists, err := s.notifications.Exists(ctx, repository.DedupKey{
		TodoID: todo.ID,
		UserID: user.ID,
		Type:   domain.NotificationEmail,
		Event:  domain.EventDueSoon,
	})
	if err != nil {
		return false, fmt.Errorf("check due-soon record for todo %d: %w", todo.ID, err)
	}
	if exists {
		return false, nil
	}

	res, err := s.SendTodoNotification(ctx, SubjectFromTodo(todo), user, domain.EventDueSoon)
	if err != nil {
		return false, err
	}
	return res.Attempted(), nil
}
