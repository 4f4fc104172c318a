package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/pretty1020/lept-reviewer/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UsageRepository is the append-only consumption ledger plus the per-IP
// aggregates used for abuse control.
type UsageRepository interface {
	// RecordUsage appends one usage event. Events are never updated or
	// deleted.
	RecordUsage(ctx context.Context, e *model.UsageEvent) error
	ListForUser(ctx context.Context, email string, limit int) ([]model.UsageEvent, error)
	ListAll(ctx context.Context, limit int) ([]model.UsageEvent, error)

	// TouchIP upserts the per-IP aggregate, updating last_seen.
	TouchIP(ctx context.Context, ipAddress string) error
	IncrementIPUsage(ctx context.Context, ipAddress string, count int) error
	IsIPBlocked(ctx context.Context, ipAddress string) (bool, error)
	SetIPBlocked(ctx context.Context, ipAddress string, blocked bool) error

	// TouchUserIP upserts the user-to-IP history join.
	TouchUserIP(ctx context.Context, email, ipAddress string) error
}

type usageRepo struct {
	pool *pgxpool.Pool
}

// NewUsageRepo creates a new UsageRepository.
func NewUsageRepo(pool *pgxpool.Pool) UsageRepository {
	return &usageRepo{pool: pool}
}

func (r *usageRepo) RecordUsage(ctx context.Context, e *model.UsageEvent) error {
	const q = `
        INSERT INTO usage_logs (email, ip_address, questions_generated, source_type, category, difficulty)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING event_id, event_time
    `
	err := r.pool.QueryRow(ctx, q,
		e.Email, e.IPAddress, e.QuestionsGenerated, e.SourceType, e.Category, e.Difficulty,
	).Scan(&e.EventID, &e.EventTime)
	if err != nil {
		return fmt.Errorf("record usage for user %s: %w", e.Email, err)
	}
	return nil
}

const usageColumns = `event_id, email, ip_address, questions_generated,
               source_type, category, difficulty, event_time`

func (r *usageRepo) ListForUser(ctx context.Context, email string, limit int) ([]model.UsageEvent, error) {
	q := `SELECT ` + usageColumns + `
          FROM usage_logs
          WHERE email = $1
          ORDER BY event_time DESC
          LIMIT $2`
	rows, err := r.pool.Query(ctx, q, email, limit)
	if err != nil {
		return nil, fmt.Errorf("list usage for user %s: %w", email, err)
	}
	defer rows.Close()
	return scanUsageRows(rows)
}

func (r *usageRepo) ListAll(ctx context.Context, limit int) ([]model.UsageEvent, error) {
	q := `SELECT ` + usageColumns + `
          FROM usage_logs
          ORDER BY event_time DESC
          LIMIT $1`
	rows, err := r.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("list usage: %w", err)
	}
	defer rows.Close()
	return scanUsageRows(rows)
}

func scanUsageRows(rows pgx.Rows) ([]model.UsageEvent, error) {
	var events []model.UsageEvent
	for rows.Next() {
		var e model.UsageEvent
		if err := rows.Scan(
			&e.EventID,
			&e.Email,
			&e.IPAddress,
			&e.QuestionsGenerated,
			&e.SourceType,
			&e.Category,
			&e.Difficulty,
			&e.EventTime,
		); err != nil {
			return nil, fmt.Errorf("scan usage row: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read usage rows: %w", err)
	}
	return events, nil
}

func (r *usageRepo) TouchIP(ctx context.Context, ipAddress string) error {
	const q = `
        INSERT INTO ip_usage (ip_address)
        VALUES ($1)
        ON CONFLICT (ip_address) DO UPDATE SET last_seen = NOW()
    `
	if _, err := r.pool.Exec(ctx, q, ipAddress); err != nil {
		return fmt.Errorf("touch ip %s: %w", ipAddress, err)
	}
	return nil
}

func (r *usageRepo) IncrementIPUsage(ctx context.Context, ipAddress string, count int) error {
	const q = `
        INSERT INTO ip_usage (ip_address, questions_used_total)
        VALUES ($1, $2)
        ON CONFLICT (ip_address) DO UPDATE
        SET questions_used_total = ip_usage.questions_used_total + $2,
            last_seen = NOW()
    `
	if _, err := r.pool.Exec(ctx, q, ipAddress, count); err != nil {
		return fmt.Errorf("increment usage for ip %s: %w", ipAddress, err)
	}
	return nil
}

func (r *usageRepo) IsIPBlocked(ctx context.Context, ipAddress string) (bool, error) {
	const q = `SELECT is_blocked FROM ip_usage WHERE ip_address = $1`
	var blocked bool
	err := r.pool.QueryRow(ctx, q, ipAddress).Scan(&blocked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check block for ip %s: %w", ipAddress, err)
	}
	return blocked, nil
}

func (r *usageRepo) SetIPBlocked(ctx context.Context, ipAddress string, blocked bool) error {
	const q = `
        INSERT INTO ip_usage (ip_address, is_blocked)
        VALUES ($1, $2)
        ON CONFLICT (ip_address) DO UPDATE SET is_blocked = $2, last_seen = NOW()
    `
	if _, err := r.pool.Exec(ctx, q, ipAddress, blocked); err != nil {
		return fmt.Errorf("set block for ip %s: %w", ipAddress, err)
	}
	return nil
}

func (r *usageRepo) TouchUserIP(ctx context.Context, email, ipAddress string) error {
	const q = `
        INSERT INTO user_ip_history (email, ip_address)
        VALUES ($1, $2)
        ON CONFLICT (email, ip_address) DO UPDATE SET last_seen = NOW()
    `
	if _, err := r.pool.Exec(ctx, q, email, ipAddress); err != nil {
		return fmt.Errorf("touch ip history for user %s: %w", email, err)
	}
	return nil
}
