package dto

import "time"

// LoginRequestDTO is the get-or-create login payload.
type LoginRequestDTO struct {
	Email string `json:"email" validate:"required,email"`
}

// LoginResponseDTO returns the session token plus the resolved account.
type LoginResponseDTO struct {
	Token   string          `json:"token"`
	Created bool            `json:"created"`
	User    UserResponseDTO `json:"user"`
}

// UserResponseDTO is returned in API responses
type UserResponseDTO struct {
	Email              string     `json:"email"`
	PlanStatus         string     `json:"plan_status"`
	EffectivePlan      string     `json:"effective_plan"`
	QuestionsRemaining int        `json:"questions_remaining"`
	QuestionsUsedTotal int        `json:"questions_used_total"`
	PremiumExpiry      *time.Time `json:"premium_expiry,omitempty"`
	IsBlocked          bool       `json:"is_blocked"`
	CreatedAt          time.Time  `json:"created_at"`
	LastActive         time.Time  `json:"last_active"`
}

// StatusResponseDTO reports whether the caller may generate a batch.
type StatusResponseDTO struct {
	Allowed   bool   `json:"allowed"`
	Reason    string `json:"reason"`
	Message   string `json:"message"`
	Plan      string `json:"plan"`
	Remaining int    `json:"remaining"`
}
