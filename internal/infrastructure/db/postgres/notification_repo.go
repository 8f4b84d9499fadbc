package postgres

import (
	"context"
	"database/sql"
	"strings"

	"github.com/civitas-platform/identity-service/internal/domain"
)

type NotificationRepo struct {
	db *sql.DB
}

func NewNotificationRepo(db *sql.DB) *NotificationRepo {
	return &NotificationRepo{db: db}
}

func (r *NotificationRepo) Create(ctx context.Context, userID, kind, body string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.ErrMissingField("user_id")
	}
	if kind == "" {
		return domain.ErrMissingField("kind")
	}

	const q = `
INSERT INTO notifications (user_id, kind, body)
VALUES ($1,$2,$3);
`
	if _, err := r.db.ExecContext(ctx, q, userID, kind, body); err != nil {
		return domain.ErrDBUnavailable(err)
	}
	return nil
}
