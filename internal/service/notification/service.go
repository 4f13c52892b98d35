package notification

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/notification"
	"github.com/google/uuid"
)

// Config holds notification service configuration
type Config struct {
	BatchSize     int           // default: 100
	FlushInterval time.Duration // default: 5 seconds
	WorkerCount   int           // default: 2
	QueueSize     int           // default: 1000
}

type service struct {
	repo      notification.Repository
	publisher notification.Publisher // optional
	config    Config

	queue    chan notification.CreateNotificationRequest
	wg       sync.WaitGroup
	stopCh   chan struct{}
	stopOnce sync.Once
	mu       sync.RWMutex
	stopped  bool
}

// NewNotificationService creates a new notification service with background workers.
// publisher may be nil.
func NewNotificationService(repo notification.Repository, publisher notification.Publisher, cfg Config) notification.Service {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval == 0 {
		cfg.FlushInterval = 5 * time.Second
	}
	if cfg.WorkerCount == 0 {
		cfg.WorkerCount = 2
	}
	if cfg.QueueSize == 0 {
		cfg.QueueSize = 1000
	}

	s := &service{
		repo:      repo,
		publisher: publisher,
		config:    cfg,
		queue:     make(chan notification.CreateNotificationRequest, cfg.QueueSize),
		stopCh:    make(chan struct{}),
	}

	for i := 0; i < cfg.WorkerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	slog.Info("Notification service started",
		"workers", cfg.WorkerCount,
		"batch_size", cfg.BatchSize,
		"flush_interval", cfg.FlushInterval.String(),
	)
	return s
}

// worker batches queued notifications and flushes on size, tick, or stop.
func (s *service) worker(id int) {
	defer s.wg.Done()

	batch := make([]notification.CreateNotificationRequest, 0, s.config.BatchSize)
	ticker := time.NewTicker(s.config.FlushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		notifications := make([]*notification.Notification, len(batch))
		for i, req := range batch {
			notifications[i] = newNotification(req)
		}

		if err := s.repo.CreateBatch(ctx, notifications); err != nil {
			slog.Error("Failed to batch insert notifications", "worker", id, "count", len(notifications), "error", err)
		} else {
			slog.Debug("Inserted notifications", "worker", id, "count", len(notifications))
			s.publish(ctx, notifications)
		}
		batch = batch[:0]
	}

	for {
		select {
		case req := <-s.queue:
			batch = append(batch, req)
			if len(batch) >= s.config.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-s.stopCh:
			for {
				select {
				case req := <-s.queue:
					batch = append(batch, req)
					if len(batch) >= s.config.BatchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}

// QueueNotification queues a notification for async persistence. When the queue is
// full the notification is written directly.
func (s *service) QueueNotification(ctx context.Context, req notification.CreateNotificationRequest) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stopped {
		return notification.ErrQueueClosed
	}

	select {
	case s.queue <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return s.directInsert(ctx, req)
	}
}

func (s *service) directInsert(ctx context.Context, req notification.CreateNotificationRequest) error {
	n := newNotification(req)
	if err := s.repo.Create(ctx, n); err != nil {
		return err
	}
	s.publish(ctx, []*notification.Notification{n})
	return nil
}

func (s *service) publish(ctx context.Context, notifications []*notification.Notification) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishNotifications(ctx, notifications); err != nil {
		slog.Warn("Failed to publish notifications", "count", len(notifications), "error", err)
	}
}

func newNotification(req notification.CreateNotificationRequest) *notification.Notification {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return &notification.Notification{
		ID:            id.String(),
		BranchID:      req.BranchID,
		RecipientID:   req.RecipientID,
		RecipientRole: req.RecipientRole,
		Type:          req.Type,
		Title:         req.Title,
		Message:       req.Message,
		Data:          req.Data,
		CreatedAt:     time.Now().UTC(),
	}
}

// GetNotifications retrieves paginated notifications addressed to the staff member or their role.
func (s *service) GetNotifications(ctx context.Context, staffID string, role *string, page, pageSize int) (notification.NotificationListResponse, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	notifications, total, err := s.repo.ListByRecipient(ctx, staffID, role, page, pageSize)
	if err != nil {
		return notification.NotificationListResponse{}, err
	}

	responses := make([]notification.NotificationResponse, len(notifications))
	for i, n := range notifications {
		responses[i] = notification.NewNotificationResponse(n)
	}
	return notification.NotificationListResponse{
		Notifications: responses,
		Total:         total,
		Page:          page,
		PageSize:      pageSize,
	}, nil
}

// MarkAsRead marks specified notifications as read
func (s *service) MarkAsRead(ctx context.Context, staffID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.repo.MarkAsRead(ctx, ids, staffID)
}

// Stop flushes the queue and waits for the workers. Later calls are no-ops.
func (s *service) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		s.mu.Unlock()

		close(s.stopCh)
		s.wg.Wait()
		slog.Info("Notification service stopped")
	})
}
