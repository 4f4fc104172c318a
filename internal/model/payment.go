package model

import "time"

// Payment request statuses. PENDING is the only non-terminal state.
const (
	PaymentPending  = "PENDING"
	PaymentApproved = "APPROVED"
	PaymentRejected = "REJECTED"
)

// PaymentRequest is a manual top-up request reviewed by an admin.
type PaymentRequest struct {
	PaymentID     int64      `db:"payment_id" json:"payment_id"`
	FullName      string     `db:"full_name" json:"full_name"`
	Email         string     `db:"email" json:"email"`
	PlanRequested string     `db:"plan_requested" json:"plan_requested"`
	ReferenceCode string     `db:"reference_code" json:"reference_code"`
	ReceiptPath   string     `db:"receipt_path" json:"receipt_path"`
	Status        string     `db:"status" json:"status"`
	AdminNotes    string     `db:"admin_notes" json:"admin_notes"`
	ResolvedBy    string     `db:"resolved_by" json:"resolved_by"`
	SubmittedAt   time.Time  `db:"submitted_at" json:"submitted_at"`
	ResolvedAt    *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
}
