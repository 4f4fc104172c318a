package model

import "time"

// Plan tiers stored on the user record.
const (
	PlanFree    = "FREE"
	PlanPro     = "PRO"
	PlanPremium = "PREMIUM"
)

// User represents a registered reviewer identified by email.
type User struct {
	Email              string     `db:"email" json:"email"`
	IPAddress          string     `db:"ip_address" json:"ip_address"`
	PlanStatus         string     `db:"plan_status" json:"plan_status"`
	QuestionsUsedTotal int        `db:"questions_used_total" json:"questions_used_total"`
	QuestionsRemaining int        `db:"questions_remaining" json:"questions_remaining"`
	PremiumExpiry      *time.Time `db:"premium_expiry" json:"premium_expiry,omitempty"`
	IsBlocked          bool       `db:"is_blocked" json:"is_blocked"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}
