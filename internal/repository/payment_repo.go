package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/pretty1020/lept-reviewer/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PaymentRepository stores manual top-up requests. PENDING is the only
// state a transition can start from.
type PaymentRepository interface {
	CreatePayment(ctx context.Context, p *model.PaymentRequest) (int64, error)
	GetPayment(ctx context.Context, paymentID int64) (*model.PaymentRequest, error)
	ListPending(ctx context.Context) ([]model.PaymentRequest, error)
	ListAll(ctx context.Context) ([]model.PaymentRequest, error)
	ListForUser(ctx context.Context, email string) ([]model.PaymentRequest, error)
	CountPending(ctx context.Context) (int, error)
	// ResolvePayment moves a PENDING request to a terminal status in one
	// conditional UPDATE. Reports false when the request was not PENDING,
	// which makes double resolution a no-op.
	ResolvePayment(ctx context.Context, paymentID int64, status, notes, resolvedBy string) (bool, error)
}

type paymentRepo struct {
	pool *pgxpool.Pool
}

// NewPaymentRepo creates a new PaymentRepository.
func NewPaymentRepo(pool *pgxpool.Pool) PaymentRepository {
	return &paymentRepo{pool: pool}
}

func (r *paymentRepo) CreatePayment(ctx context.Context, p *model.PaymentRequest) (int64, error) {
	const q = `
        INSERT INTO payments (full_name, email, plan_requested, reference_code, receipt_path, status)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING payment_id, submitted_at
    `
	err := r.pool.QueryRow(ctx, q,
		p.FullName, p.Email, p.PlanRequested, p.ReferenceCode, p.ReceiptPath, model.PaymentPending,
	).Scan(&p.PaymentID, &p.SubmittedAt)
	if err != nil {
		return 0, fmt.Errorf("create payment for user %s: %w", p.Email, err)
	}
	p.Status = model.PaymentPending
	return p.PaymentID, nil
}

const paymentColumns = `payment_id, full_name, email, plan_requested, reference_code,
               receipt_path, status, admin_notes, resolved_by, submitted_at, resolved_at`

func (r *paymentRepo) GetPayment(ctx context.Context, paymentID int64) (*model.PaymentRequest, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE payment_id = $1`
	var p model.PaymentRequest
	err := r.pool.QueryRow(ctx, q, paymentID).Scan(
		&p.PaymentID,
		&p.FullName,
		&p.Email,
		&p.PlanRequested,
		&p.ReferenceCode,
		&p.ReceiptPath,
		&p.Status,
		&p.AdminNotes,
		&p.ResolvedBy,
		&p.SubmittedAt,
		&p.ResolvedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch payment %d: %w", paymentID, err)
	}
	return &p, nil
}

func (r *paymentRepo) ListPending(ctx context.Context) ([]model.PaymentRequest, error) {
	q := `SELECT ` + paymentColumns + `
          FROM payments
          WHERE status = $1
          ORDER BY submitted_at ASC`
	rows, err := r.pool.Query(ctx, q, model.PaymentPending)
	if err != nil {
		return nil, fmt.Errorf("list pending payments: %w", err)
	}
	defer rows.Close()
	return scanPaymentRows(rows)
}

func (r *paymentRepo) ListAll(ctx context.Context) ([]model.PaymentRequest, error) {
	q := `SELECT ` + paymentColumns + `
          FROM payments
          ORDER BY submitted_at DESC`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()
	return scanPaymentRows(rows)
}

func (r *paymentRepo) ListForUser(ctx context.Context, email string) ([]model.PaymentRequest, error) {
	q := `SELECT ` + paymentColumns + `
          FROM payments
          WHERE email = $1
          ORDER BY submitted_at DESC`
	rows, err := r.pool.Query(ctx, q, email)
	if err != nil {
		return nil, fmt.Errorf("list payments for user %s: %w", email, err)
	}
	defer rows.Close()
	return scanPaymentRows(rows)
}

func scanPaymentRows(rows pgx.Rows) ([]model.PaymentRequest, error) {
	var payments []model.PaymentRequest
	for rows.Next() {
		var p model.PaymentRequest
		if err := rows.Scan(
			&p.PaymentID,
			&p.FullName,
			&p.Email,
			&p.PlanRequested,
			&p.ReferenceCode,
			&p.ReceiptPath,
			&p.Status,
			&p.AdminNotes,
			&p.ResolvedBy,
			&p.SubmittedAt,
			&p.ResolvedAt,
		); err != nil {
			return nil, fmt.Errorf("scan payment row: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read payment rows: %w", err)
	}
	return payments, nil
}

func (r *paymentRepo) CountPending(ctx context.Context) (int, error) {
	const q = `SELECT COUNT(*) FROM payments WHERE status = $1`
	var count int
	if err := r.pool.QueryRow(ctx, q, model.PaymentPending).Scan(&count); err != nil {
		return 0, fmt.Errorf("count pending payments: %w", err)
	}
	return count, nil
}

func (r *paymentRepo) ResolvePayment(ctx context.Context, paymentID int64, status, notes, resolvedBy string) (bool, error) {
	const q = `
        UPDATE payments
        SET status = $1, admin_notes = $2, resolved_by = $3, resolved_at = NOW()
        WHERE payment_id = $4 AND status = $5
    `
	tag, err := r.pool.Exec(ctx, q, status, notes, resolvedBy, paymentID, model.PaymentPending)
	if err != nil {
		return false, fmt.Errorf("resolve payment %d: %w", paymentID, err)
	}
	return tag.RowsAffected() > 0, nil
}
