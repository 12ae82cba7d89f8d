package notify

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrUnknownUser = errors.New("user not found")

// SendDueDigest sends the user one email listing all of their incomplete
// todos due within the window. It returns the ids of the listed todos.
func (s *Service) SendDueDigest(ctx context.Context, userID uint) (Result, []uint, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Result{}, nil, fmt.Errorf("%w: id %d", ErrUnknownUser, userID)
		}
		return Result{}, nil, fmt.Errorf("load user %d: %w", userID, err)
	}

	now := s.opts.Now()
	todos, err := s.todos.FindDueBetween(ctx, now, now.Add(s.opts.DueWindow))
	if err != nil {
		return Result{}, nil, fmt.Errorf("find due todos: %w", err)
	}

	var (
		subjects []Subject
		ids      []uint
	)
	for i := range todos {
		if todos[i].UserID == nil || *todos[i].UserID != userID {
			continue
		}
		subjects = append(subjects, SubjectFromTodo(&todos[i]))
		ids = append(ids, todos[i].ID)
	}

	res, err := s.SendDigest(ctx, subjects, user)
	if err != nil {
		return res, ids, err
	}
	s.logger.Info("due-soon digest",
		zap.Uint("user_id", userID),
		zap.Int("todos", len(ids)),
		zap.Stringer("status", res.Status),
	)
	return res, ids, nil
}
