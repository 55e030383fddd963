package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/case-service/internal/domain"
)

// NotificationRepository stores per-transition notifications.
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	ListUnseen(ctx context.Context, userID string, limit int) ([]domain.Notification, error)
	MarkSeen(ctx context.Context, id, userID string) error
}

type notificationRepository struct {
	pool *pgxpool.Pool
}

// NewNotificationRepository builds repository.
func NewNotificationRepository(pool *pgxpool.Pool) NotificationRepository {
	return &notificationRepository{pool: pool}
}

func (r *notificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	const query = `
        INSERT INTO notifications (id, user_id, case_id, old_status, new_status, seen)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING created_at`
	return r.pool.QueryRow(ctx, query,
		n.ID,
		n.UserID,
		n.CaseID,
		n.OldStatus,
		n.NewStatus,
		n.Seen,
	).Scan(&n.CreatedAt)
}

func (r *notificationRepository) ListUnseen(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = 25
	}
	const query = `
        SELECT id, user_id, case_id, old_status, new_status, seen, created_at
        FROM notifications WHERE user_id=$1 AND seen=false
        ORDER BY created_at DESC LIMIT $2`
	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.CaseID, &n.OldStatus, &n.NewStatus, &n.Seen, &n.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, rows.Err()
}

// MarkSeen flips seen to true for a notification owned by userID.
func (r *notificationRepository) MarkSeen(ctx context.Context, id, userID string) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE notifications SET seen=true WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
