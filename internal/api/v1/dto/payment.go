package dto

import "time"

// PaymentSubmitDTO is a proof-of-payment submission.
type PaymentSubmitDTO struct {
	FullName      string `json:"full_name" validate:"required"`
	PlanRequested string `json:"plan_requested" validate:"required,oneof=PRO PREMIUM"`
	ReferenceCode string `json:"reference_code" validate:"required"`
	ReceiptPath   string `json:"receipt_path"`
}

// PaymentResolveDTO approves or rejects a pending request.
type PaymentResolveDTO struct {
	Notes string `json:"notes"`
}

// PaymentResponseDTO is one payment request row.
type PaymentResponseDTO struct {
	PaymentID     int64      `json:"payment_id"`
	FullName      string     `json:"full_name"`
	Email         string     `json:"email"`
	PlanRequested string     `json:"plan_requested"`
	ReferenceCode string     `json:"reference_code"`
	Status        string     `json:"status"`
	AdminNotes    string     `json:"admin_notes,omitempty"`
	ResolvedBy    string     `json:"resolved_by,omitempty"`
	SubmittedAt   time.Time  `json:"submitted_at"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
}
