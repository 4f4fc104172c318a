package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pretty1020/lept-reviewer/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `email, ip_address, plan_status, questions_used_total,
               questions_remaining, premium_expiry, is_blocked, created_at, updated_at`

// UserRepository defines storage operations on user records.
type UserRepository interface {
	// CreateUser inserts a new FREE user. Duplicate emails are a no-op;
	// the bool reports whether a row was actually inserted.
	CreateUser(ctx context.Context, email, ipAddress string, freeLimit int) (bool, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	UpdateUserIP(ctx context.Context, email, ipAddress string) error
	// DecrementQuestions spends count questions in a single conditional
	// UPDATE and returns the balance after the spend. It reports false
	// when the quota was insufficient at write time; no partial
	// decrement ever happens.
	DecrementQuestions(ctx context.Context, email string, count int) (int, bool, error)
	ChangePlan(ctx context.Context, email, plan string, questionsRemaining int, premiumExpiry *time.Time) error
	AdjustQuota(ctx context.Context, email string, questionsRemaining int) error
	SetBlocked(ctx context.Context, email string, blocked bool) error
	// DowngradeExpiredPremium reverts a PREMIUM user whose expiry has
	// passed to FREE with zero remaining questions. Reports whether the
	// stored record changed.
	DowngradeExpiredPremium(ctx context.Context, email string, now time.Time) (bool, error)
	// DeleteUser removes the user and all dependent records in one
	// transaction.
	DeleteUser(ctx context.Context, email string) error
}

type userRepo struct {
	pool *pgxpool.Pool
}

// NewUserRepo creates a new UserRepository.
func NewUserRepo(pool *pgxpool.Pool) UserRepository {
	return &userRepo{pool: pool}
}

func (r *userRepo) CreateUser(ctx context.Context, email, ipAddress string, freeLimit int) (bool, error) {
	const q = `
        INSERT INTO users (email, ip_address, plan_status, questions_remaining)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (email) DO NOTHING
    `
	tag, err := r.pool.Exec(ctx, q, email, ipAddress, model.PlanFree, freeLimit)
	if err != nil {
		return false, fmt.Errorf("create user %s: %w", email, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *userRepo) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	var u model.User
	err := r.pool.QueryRow(ctx, q, email).Scan(
		&u.Email,
		&u.IPAddress,
		&u.PlanStatus,
		&u.QuestionsUsedTotal,
		&u.QuestionsRemaining,
		&u.PremiumExpiry,
		&u.IsBlocked,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch user %s: %w", email, err)
	}
	return &u, nil
}

func (r *userRepo) ListUsers(ctx context.Context) ([]model.User, error) {
	q := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(
			&u.Email,
			&u.IPAddress,
			&u.PlanStatus,
			&u.QuestionsUsedTotal,
			&u.QuestionsRemaining,
			&u.PremiumExpiry,
			&u.IsBlocked,
			&u.CreatedAt,
			&u.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan user row: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (r *userRepo) UpdateUserIP(ctx context.Context, email, ipAddress string) error {
	const q = `UPDATE users SET ip_address = $1, updated_at = NOW() WHERE email = $2`
	if _, err := r.pool.Exec(ctx, q, ipAddress, email); err != nil {
		return fmt.Errorf("update ip for user %s: %w", email, err)
	}
	return nil
}

func (r *userRepo) DecrementQuestions(ctx context.Context, email string, count int) (int, bool, error) {
	const q = `
        UPDATE users
        SET questions_remaining = questions_remaining - $1,
            questions_used_total = questions_used_total + $1,
            updated_at = NOW()
        WHERE email = $2 AND questions_remaining >= $1
        RETURNING questions_remaining
    `
	var remaining int
	err := r.pool.QueryRow(ctx, q, count, email).Scan(&remaining)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("decrement questions for user %s: %w", email, err)
	}
	return remaining, true, nil
}

func (r *userRepo) ChangePlan(ctx context.Context, email, plan string, questionsRemaining int, premiumExpiry *time.Time) error {
	const q = `
        UPDATE users
        SET plan_status = $1, questions_remaining = $2, premium_expiry = $3, updated_at = NOW()
        WHERE email = $4
    `
	tag, err := r.pool.Exec(ctx, q, plan, questionsRemaining, premiumExpiry, email)
	if err != nil {
		return fmt.Errorf("change plan for user %s: %w", email, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("change plan for user %s: no such user", email)
	}
	return nil
}

func (r *userRepo) AdjustQuota(ctx context.Context, email string, questionsRemaining int) error {
	const q = `UPDATE users SET questions_remaining = $1, updated_at = NOW() WHERE email = $2`
	if _, err := r.pool.Exec(ctx, q, questionsRemaining, email); err != nil {
		return fmt.Errorf("adjust quota for user %s: %w", email, err)
	}
	return nil
}

func (r *userRepo) SetBlocked(ctx context.Context, email string, blocked bool) error {
	const q = `UPDATE users SET is_blocked = $1, updated_at = NOW() WHERE email = $2`
	if _, err := r.pool.Exec(ctx, q, blocked, email); err != nil {
		return fmt.Errorf("set blocked for user %s: %w", email, err)
	}
	return nil
}

func (r *userRepo) DowngradeExpiredPremium(ctx context.Context, email string, now time.Time) (bool, error) {
	const q = `
        UPDATE users
        SET plan_status = $1, questions_remaining = 0, premium_expiry = NULL, updated_at = NOW()
        WHERE email = $2 AND plan_status = $3 AND premium_expiry IS NOT NULL AND premium_expiry < $4
    `
	tag, err := r.pool.Exec(ctx, q, model.PlanFree, email, model.PlanPremium, now)
	if err != nil {
		return false, fmt.Errorf("downgrade expired premium for user %s: %w", email, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *userRepo) DeleteUser(ctx context.Context, email string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delete of user %s: %w", email, err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	dependents := []string{
		`DELETE FROM user_ip_history WHERE email = $1`,
		`DELETE FROM usage_logs WHERE email = $1`,
		`DELETE FROM user_documents WHERE email = $1`,
		`DELETE FROM payments WHERE email = $1`,
	}
	for _, q := range dependents {
		if _, err := tx.Exec(ctx, q, email); err != nil {
			return fmt.Errorf("delete dependents of user %s: %w", email, err)
		}
	}
	if _, err := tx.Exec(ctx, `DELETE FROM users WHERE email = $1`, email); err != nil {
		return fmt.Errorf("delete user %s: %w", email, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit delete of user %s: %w", email, err)
	}
	return nil
}
