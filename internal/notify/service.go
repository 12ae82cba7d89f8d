// Package notify decides when a todo event warrants a notification, builds
// its content, records it and drives email delivery.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Tomlord1122/todo-workshop/internal/domain"
	"github.com/Tomlord1122/todo-workshop/internal/mailer"
	"github.com/Tomlord1122/todo-workshop/internal/repository"
)

var (
	ErrInvalidEventKind = errors.New("invalid notification event kind")
	ErrInvalidUser      = errors.New("notification target user has no id")
)

const (
	DefaultDueWindow    = 24 * time.Hour
	DefaultSendTimeout  = 10 * time.Second
	DefaultPendingLimit = 50
	MaxPendingLimit     = 200
)

// Options tunes the service. Zero values fall back to the defaults above.
type Options struct {
	DueWindow    time.Duration
	SendTimeout  time.Duration
	PendingLimit int
	Now          func() time.Time
}

// Service is the notification core.
type Service struct {
	todos         repository.TodoRepository
	users         repository.UserRepository
	notifications repository.NotificationRepository
	transport     mailer.Transport
	flag          Flag
	guard         Guard
	opts          Options
	logger        *zap.Logger
}

func NewService(
	repo *repository.Repository,
	transport mailer.Transport,
	flag Flag,
	guard Guard,
	opts Options,
	logger *zap.Logger,
) *Service {
	if opts.DueWindow <= 0 {
		opts.DueWindow = DefaultDueWindow
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = DefaultSendTimeout
	}
	if opts.PendingLimit <= 0 {
		opts.PendingLimit = DefaultPendingLimit
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if guard == nil {
		guard = NewLocalGuard()
	}
	return &Service{
		todos:         repo.Todo,
		users:         repo.User,
		notifications: repo.Notification,
		transport:     transport,
		flag:          flag,
		guard:         guard,
		opts:          opts,
		logger:        logger,
	}
}

// CreateNotification records a browser notification for the event and, when
// sendEmail is set and email is globally enabled, dispatches an email which
// records its own row. Email failures are recorded, not returned.
func (s *Service) CreateNotification(ctx context.Context, subj Subject, user *domain.User, kind domain.EventKind, sendEmail bool) (*domain.Notification, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEventKind, kind)
	}
	if user == nil || user.ID == 0 {
		return nil, ErrInvalidUser
	}

	n := &domain.Notification{
		TodoID:    subj.TodoID,
		UserID:    user.ID,
		Message:   truncate(browserMessage(kind, subj.Title), domain.MaxMessageLength),
		Type:      domain.NotificationBrowser,
		Event:     kind,
		CreatedAt: s.opts.Now(),
	}
	if err := s.notifications.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("create browser notification: %w", err)
	}

	if sendEmail && s.flag.EmailEnabled() {
		res, err := s.SendTodoNotification(ctx, subj, user, kind)
		if err != nil {
			return n, err
		}
		s.logger.Debug("email dispatch",
			zap.Uint("user_id", user.ID),
			zap.String("event", string(kind)),
			zap.Stringer("status", res.Status),
			zap.String("reason", res.Reason),
		)
	}
	return n, nil
}

// SendTodoNotification emails the user about one todo event and records the
// outcome as an email notification. It returns a skipped result without
// recording anything when email is disabled globally or for the user.
// The error is reserved for persistence failures.
func (s *Service) SendTodoNotification(ctx context.Context, subj Subject, user *domain.User, kind domain.EventKind) (Result, error) {
	if !s.flag.EmailEnabled() {
		return skipped("email notifications disabled"), nil
	}
	if !user.EmailNotificationsEnabled {
		return skipped("user disabled email notifications"), nil
	}

	subject := SubjectLine(kind, subj.Title)
	res := s.deliver(ctx, user.Email, subject, func() (string, error) { return RenderTodoEmail(subj) })

	if err := s.recordEmail(ctx, subj.TodoID, user.ID, kind, subject, res); err != nil {
		return res, err
	}
	return res, nil
}

// SendDigest emails one reminder listing every subject. Each listed todo
// gets its own email notification row carrying the digest outcome, so the
// digest counts for due-soon deduplication like the single-todo path.
func (s *Service) SendDigest(ctx context.Context, subjects []Subject, user *domain.User) (Result, error) {
	if !s.flag.EmailEnabled() {
		return skipped("email notifications disabled"), nil
	}
	if !user.EmailNotificationsEnabled {
		return skipped("user disabled email notifications"), nil
	}
	if len(subjects) == 0 {
		return skipped("nothing to send"), nil
	}

	subject := DigestSubjectLine(len(subjects))
	res := s.deliver(ctx, user.Email, subject, func() (string, error) { return RenderDigestEmail(subjects) })

	for _, subj := range subjects {
		if err := s.recordEmail(ctx, subj.TodoID, user.ID, domain.EventDueSoon, subject, res); err != nil {
			return res, err
		}
	}
	return res, nil
}

// deliver renders and sends one message under the send timeout. Render and
// transport errors both yield a failed result.
func (s *Service) deliver(ctx context.Context, to, subject string, render func() (string, error)) Result {
	body, err := render()
	if err != nil {
		s.logger.Error("render email", zap.String("subject", subject), zap.Error(err))
		return failed(err.Error())
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.opts.SendTimeout)
	defer cancel()

	if err := s.transport.Send(sendCtx, to, subject, body); err != nil {
		reason := err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			reason = fmt.Sprintf("send timed out after %s", s.opts.SendTimeout)
		}
		s.logger.Warn("send email", zap.String("to", to), zap.String("subject", subject), zap.String("reason", reason))
		return failed(reason)
	}
	return delivered()
}

func (s *Service) recordEmail(ctx context.Context, todoID *uint, userID uint, kind domain.EventKind, subject string, res Result) error {
	n := &domain.Notification{
		TodoID:    todoID,
		UserID:    userID,
		Type:      domain.NotificationEmail,
		Event:     kind,
		CreatedAt: s.opts.Now(),
	}
	if res.Delivered() {
		n.Message = subject
		n.MarkSent(n.CreatedAt)
	} else {
		n.Message = "Failed to send: " + subject
	}
	n.Message = truncate(n.Message, domain.MaxMessageLength)

	if err := s.notifications.Create(ctx, n); err != nil {
		return fmt.Errorf("create email notification: %w", err)
	}
	return nil
}

// GetPendingNotifications returns the user's unsent browser notifications,
// newest first. limit <= 0 selects the configured default.
func (s *Service) GetPendingNotifications(ctx context.Context, userID uint, limit int) ([]domain.Notification, error) {
	return s.notifications.ListPending(ctx, userID, s.clampLimit(limit))
}

// ListNotifications returns all of the user's notifications, newest first.
func (s *Service) ListNotifications(ctx context.Context, userID uint, limit int) ([]domain.Notification, error) {
	return s.notifications.ListByUser(ctx, userID, s.clampLimit(limit))
}

// MarkNotificationSent flips a notification to sent. It reports false,
// without error, when the id is unknown.
func (s *Service) MarkNotificationSent(ctx context.Context, id uint) (bool, error) {
	return s.notifications.MarkSent(ctx, id, s.opts.Now())
}

func (s *Service) clampLimit(limit int) int {
	if limit <= 0 {
		return s.opts.PendingLimit
	}
	if limit > MaxPendingLimit {
		return MaxPendingLimit
	}
	return limit
}
