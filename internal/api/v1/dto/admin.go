package dto

import "time"

// BlockRequestDTO blocks or unblocks an account or IP address.
type BlockRequestDTO struct {
	Blocked bool `json:"blocked"`
}

// QuotaRequestDTO sets an account's remaining question balance.
type QuotaRequestDTO struct {
	QuestionsRemaining int `json:"questions_remaining" validate:"min=0"`
}

// PlanRequestDTO changes an account's plan. Quota overrides the plan
// default when present.
type PlanRequestDTO struct {
	Plan  string `json:"plan" validate:"required,oneof=FREE PRO PREMIUM"`
	Quota *int   `json:"quota,omitempty"`
}

// AdminActionResponseDTO is one audit log row.
type AdminActionResponseDTO struct {
	ActionID   int64     `json:"action_id"`
	AdminUser  string    `json:"admin_user"`
	ActionType string    `json:"action_type"`
	Details    string    `json:"details"`
	ActionTime time.Time `json:"action_time"`
}
