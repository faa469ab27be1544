package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/edupulse/edupulse/internal/domain/notification"
	"github.com/edupulse/edupulse/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// NotificationRepository implements notification.Repository for PostgreSQL.
type NotificationRepository struct {
	conn *Connection
}

// NewNotificationRepository creates a new NotificationRepository.
func NewNotificationRepository(conn *Connection) *NotificationRepository {
	return &NotificationRepository{conn: conn}
}

// Create saves a new notification.
func (r *NotificationRepository) Create(ctx context.Context, n *notification.Notification) error {
	query := `
		INSERT INTO notifications (
			id, recipient_id, sender_id, type, title, message,
			related_course_id, related_assessment_id, is_read, read_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.conn.Exec(ctx, query,
		n.ID,
		n.RecipientID,
		n.SenderID,
		string(n.Type),
		n.Title,
		n.Message,
		n.RelatedCourseID,
		n.RelatedAssessmentID,
		n.IsRead,
		n.ReadAt,
		n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// GetByID returns a notification by ID.
func (r *NotificationRepository) GetByID(ctx context.Context, id string) (*notification.Notification, error) {
	query := selectNotification + ` WHERE id = $1`

	row := r.conn.QueryRow(ctx, query, id)

	var n notification.Notification
	var typ string
	err := row.Scan(
		&n.ID,
		&n.RecipientID,
		&n.SenderID,
		&typ,
		&n.Title,
		&n.Message,
		&n.RelatedCourseID,
		&n.RelatedAssessmentID,
		&n.IsRead,
		&n.ReadAt,
		&n.CreatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrNotificationNotFound
		}
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}
	n.Type = notification.Type(typ)
	return &n, nil
}

// GetByRecipient returns notifications of a recipient, newest first.
func (r *NotificationRepository) GetByRecipient(ctx context.Context, recipientID string, limit int) ([]*notification.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	query := selectNotification + ` WHERE recipient_id = $1 ORDER BY created_at DESC LIMIT $2`

	rows, err := r.conn.Query(ctx, query, recipientID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var result []*notification.Notification
	for rows.Next() {
		var n notification.Notification
		var typ string
		err := rows.Scan(
			&n.ID,
			&n.RecipientID,
			&n.SenderID,
			&typ,
			&n.Title,
			&n.Message,
			&n.RelatedCourseID,
			&n.RelatedAssessmentID,
			&n.IsRead,
			&n.ReadAt,
			&n.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.Type = notification.Type(typ)
		result = append(result, &n)
	}
	return result, rows.Err()
}

// CountUnread returns the number of unread notifications of a recipient.
func (r *NotificationRepository) CountUnread(ctx context.Context, recipientID string) (int, error) {
	query := `SELECT COUNT(*) FROM notifications WHERE recipient_id = $1 AND NOT is_read`

	var count int
	if err := r.conn.QueryRow(ctx, query, recipientID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

// MarkRead marks a notification as read. Idempotent.
func (r *NotificationRepository) MarkRead(ctx context.Context, id string) error {
	query := `
		UPDATE notifications
		SET is_read = TRUE, read_at = COALESCE(read_at, $2)
		WHERE id = $1
	`

	tag, err := r.conn.Exec(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotificationNotFound
	}
	return nil
}

const selectNotification = `
	SELECT id, recipient_id, sender_id, type, title, message,
		   related_course_id, related_assessment_id, is_read, read_at, created_at
	FROM notifications
`
