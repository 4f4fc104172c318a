package repository

import (
	"context"
	"fmt"

	"github.com/pretty1020/lept-reviewer/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditRepository is the append-only log of privileged admin operations.
type AuditRepository interface {
	RecordAction(ctx context.Context, adminUser, actionType, details string) error
	ListActions(ctx context.Context, limit int) ([]model.AdminAction, error)
}

type auditRepo struct {
	pool *pgxpool.Pool
}

// NewAuditRepo creates a new AuditRepository.
func NewAuditRepo(pool *pgxpool.Pool) AuditRepository {
	return &auditRepo{pool: pool}
}

func (r *auditRepo) RecordAction(ctx context.Context, adminUser, actionType, details string) error {
	const q = `INSERT INTO admin_actions (admin_user, action_type, details) VALUES ($1, $2, $3)`
	if _, err := r.pool.Exec(ctx, q, adminUser, actionType, details); err != nil {
		return fmt.Errorf("record admin action %s: %w", actionType, err)
	}
	return nil
}

func (r *auditRepo) ListActions(ctx context.Context, limit int) ([]model.AdminAction, error) {
	const q = `
        SELECT action_id, admin_user, action_type, details, action_time
        FROM admin_actions
        ORDER BY action_time DESC
        LIMIT $1
    `
	rows, err := r.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("list admin actions: %w", err)
	}
	defer rows.Close()

	var actions []model.AdminAction
	for rows.Next() {
		var a model.AdminAction
		if err := rows.Scan(&a.ActionID, &a.AdminUser, &a.ActionType, &a.Details, &a.ActionTime); err != nil {
			return nil, fmt.Errorf("scan admin action row: %w", err)
		}
		actions = append(actions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list admin actions: %w", err)
	}
	return actions, nil
}
