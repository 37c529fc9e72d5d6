package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"socialnet/internal/domain"
)

type NotificationRepository interface {
	Create(ctx context.Context, notif *domain.Notification) error
	ListByRecipient(ctx context.Context, userID string, unreadOnly bool, params domain.PaginationParams) ([]domain.Notification, int64, error)
	MarkRead(ctx context.Context, userID string, ids []uuid.UUID) (int64, error)
	CountUnread(ctx context.Context, userID string) (int64, error)
}

type notificationRepository struct {
	db *sqlx.DB
}

func NewNotificationRepository(db *sqlx.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

const notificationColumns = `id, recipient_user_id, entity_type, entity_id, kind, message, read, created_at`

func (r *notificationRepository) Create(ctx context.Context, notif *domain.Notification) error {
	query := `
		INSERT INTO notifications (id, recipient_user_id, entity_type, entity_id, kind, message, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	return r.db.QueryRowxContext(ctx, query,
		notif.ID, notif.RecipientUserID, notif.OriginatingEntityType, notif.OriginatingEntityID,
		notif.Kind, notif.Message, notif.Read, notif.CreatedAt,
	).Scan(&notif.ID, &notif.CreatedAt)
}

func (r *notificationRepository) ListByRecipient(ctx context.Context, userID string, unreadOnly bool, params domain.PaginationParams) ([]domain.Notification, int64, error) {
	params.Validate()

	filter := `WHERE recipient_user_id = $1`
	if unreadOnly {
		filter += ` AND read = false`
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM notifications `+filter, userID); err != nil {
		return nil, 0, err
	}

	notifications := []domain.Notification{}
	query := `SELECT ` + notificationColumns + ` FROM notifications ` + filter + `
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`
	err := r.db.SelectContext(ctx, &notifications, query, userID, params.PageSize, params.Offset())
	return notifications, total, err
}

// MarkRead flips the read flag on the given ids, limited to the recipient's
// own notifications. Already-read rows are not counted.
func (r *notificationRepository) MarkRead(ctx context.Context, userID string, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = id.String()
	}

	query := `UPDATE notifications SET read = true WHERE id = ANY($1::uuid[]) AND recipient_user_id = $2 AND read = false`
	res, err := r.db.ExecContext(ctx, query, pq.Array(raw), userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *notificationRepository) CountUnread(ctx context.Context, userID string) (int64, error) {
	var count int64
	query := `SELECT COUNT(*) FROM notifications WHERE recipient_user_id = $1 AND read = false`
	err := r.db.GetContext(ctx, &count, query, userID)
	return count, err
}
