package memory

import (
	"context"
	"sort"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/notification"
)

type NotificationRepository struct{ s *Store }

func (r *NotificationRepository) Create(ctx context.Context, n *notification.Notification) error {
	return r.CreateBatch(ctx, []*notification.Notification{n})
}

func (r *NotificationRepository) CreateBatch(ctx context.Context, notifications []*notification.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, n := range notifications {
		cp := *n
		r.s.notes = append(r.s.notes, &cp)
		r.s.writes++
	}
	return nil
}

func (r *NotificationRepository) ListByRecipient(ctx context.Context, staffID string, role *string, page, pageSize int) ([]*notification.Notification, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*notification.Notification
	for _, n := range r.s.notes {
		toStaff := n.RecipientID != nil && *n.RecipientID == staffID
		toRole := role != nil && n.RecipientRole != nil && *n.RecipientRole == *role
		if toStaff || toRole {
			cp := *n
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, page, pageSize), len(out), nil
}

func (r *NotificationRepository) MarkAsRead(ctx context.Context, ids []string, staffID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	now := time.Now().UTC()
	for _, n := range r.s.notes {
		if want[n.ID] && n.RecipientID != nil && *n.RecipientID == staffID && !n.IsRead {
			n.IsRead = true
			n.ReadAt = &now
			r.s.writes++
		}
	}
	return nil
}
