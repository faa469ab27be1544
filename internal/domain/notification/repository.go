package notification

import (
	"context"
)

// Repository определяет операции хранилища для уведомлений.
type Repository interface {
	// Create сохраняет новое уведомление.
	Create(ctx context.Context, n *Notification) error

	// GetByID возвращает уведомление по идентификатору.
	// Возвращает shared.ErrNotificationNotFound, если не найдено.
	GetByID(ctx context.Context, id string) (*Notification, error)

	// GetByRecipient возвращает уведомления получателя, новые первыми.
	GetByRecipient(ctx context.Context, recipientID string, limit int) ([]*Notification, error)

	// CountUnread возвращает число непрочитанных уведомлений получателя.
	CountUnread(ctx context.Context, recipientID string) (int, error)

	// MarkRead помечает уведомление прочитанным.
	MarkRead(ctx context.Context, id string) error
}
