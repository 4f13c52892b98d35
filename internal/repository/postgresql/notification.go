package postgresql

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/notification"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/database"
	"github.com/google/uuid"
)

type notificationRepository struct {
	db *database.DB
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *database.DB) notification.Repository {
	return &notificationRepository{db: db}
}

// Create creates a new notification
func (r *notificationRepository) Create(ctx context.Context, n *notification.Notification) error {
	return r.CreateBatch(ctx, []*notification.Notification{n})
}

// CreateBatch creates multiple notifications in a single statement
func (r *notificationRepository) CreateBatch(ctx context.Context, notifications []*notification.Notification) error {
	if len(notifications) == 0 {
		return nil
	}

	q := GetQuerier(ctx, r.db)

	// Build batch insert query
	const cols = 9
	valueStrings := make([]string, 0, len(notifications))
	valueArgs := make([]any, 0, len(notifications)*cols)

	for i, n := range notifications {
		if n.ID == "" {
			n.ID = uuid.New().String()
		}
		if n.CreatedAt.IsZero() {
			n.CreatedAt = time.Now().UTC()
		}

		dataJSON, err := json.Marshal(n.Data)
		if err != nil {
			return fmt.Errorf("failed to marshal notification data: %w", err)
		}

		base := i * cols
		valueStrings = append(valueStrings, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9,
		))
		valueArgs = append(valueArgs,
			n.ID,
			n.BranchID,
			n.RecipientID,
			n.RecipientRole,
			string(n.Type),
			n.Title,
			n.Message,
			dataJSON,
			n.CreatedAt,
		)
	}

	query := fmt.Sprintf(`
		INSERT INTO notifications (id, branch_id, recipient_id, recipient_role, type, title, message, data, created_at)
		VALUES %s
		ON CONFLICT (id) DO NOTHING
	`, strings.Join(valueStrings, ", "))

	if _, err := q.Exec(ctx, query, valueArgs...); err != nil {
		return classify("batch create notifications", err)
	}

	return nil
}

// ListByRecipient retrieves notifications addressed to a staff member or their role, newest first
func (r *notificationRepository) ListByRecipient(ctx context.Context, staffID string, role *string, page, pageSize int) ([]*notification.Notification, int, error) {
	q := GetQuerier(ctx, r.db)

	offset := (page - 1) * pageSize
	whereClause := "(recipient_id = $1 OR ($2::text IS NOT NULL AND recipient_role = $2))"
	args := []any{staffID, role}

	// Count query
	var total int
	if err := q.QueryRow(ctx, "SELECT COUNT(*) FROM notifications WHERE "+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, classify("count notifications", err)
	}

	// Data query
	query := `
		SELECT id, branch_id, recipient_id, recipient_role, type, title, message, data, is_read, read_at, created_at
		FROM notifications
		WHERE ` + whereClause + `
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := q.Query(ctx, query, append(args, pageSize, offset)...)
	if err != nil {
		return nil, 0, classify("query notifications", err)
	}
	defer rows.Close()

	var notifications []*notification.Notification
	for rows.Next() {
		var (
			n         notification.Notification
			dataJSON  []byte
			notifType string
		)
		if err := rows.Scan(
			&n.ID,
			&n.BranchID,
			&n.RecipientID,
			&n.RecipientRole,
			&notifType,
			&n.Title,
			&n.Message,
			&dataJSON,
			&n.IsRead,
			&n.ReadAt,
			&n.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan notification: %w", err)
		}

		n.Type = notification.NotificationType(notifType)
		if dataJSON != nil {
			if err := json.Unmarshal(dataJSON, &n.Data); err != nil {
				return nil, 0, fmt.Errorf("failed to unmarshal notification data: %w", err)
			}
		}

		notifications = append(notifications, &n)
	}

	return notifications, total, classify("iterate notifications", rows.Err())
}

// MarkAsRead marks the staff member's own notifications as read
func (r *notificationRepository) MarkAsRead(ctx context.Context, ids []string, staffID string) error {
	if len(ids) == 0 {
		return nil
	}

	q := GetQuerier(ctx, r.db)

	_, err := q.Exec(ctx, `
		UPDATE notifications
		SET is_read = TRUE, read_at = $1
		WHERE id = ANY($2) AND recipient_id = $3 AND NOT is_read`,
		time.Now().UTC(), ids, staffID,
	)
	return classify("mark notifications as read", err)
}
