package model

import "time"

// Question source classifications recorded on usage events.
const (
	SourcePreset      = "PRESET"
	SourceAIGenerated = "AI_GENERATED"
	SourceMixed       = "MIXED"
)

// UsageEvent is an immutable record of one consumption action.
type UsageEvent struct {
	EventID            int64     `db:"event_id" json:"event_id"`
	Email              string    `db:"email" json:"email"`
	IPAddress          string    `db:"ip_address" json:"ip_address"`
	QuestionsGenerated int       `db:"questions_generated" json:"questions_generated"`
	SourceType         string    `db:"source_type" json:"source_type"`
	Category           string    `db:"category" json:"category"`
	Difficulty         string    `db:"difficulty" json:"difficulty"`
	EventTime          time.Time `db:"event_time" json:"event_time"`
}

// IPRecord is the per-IP aggregate used for abuse control independent of
// email identity.
type IPRecord struct {
	IPAddress          string    `db:"ip_address" json:"ip_address"`
	QuestionsUsedTotal int       `db:"questions_used_total" json:"questions_used_total"`
	IsBlocked          bool      `db:"is_blocked" json:"is_blocked"`
	FirstSeen          time.Time `db:"first_seen" json:"first_seen"`
	LastSeen           time.Time `db:"last_seen" json:"last_seen"`
}

// UserIPHistory joins a user to every IP it has been seen from.
type UserIPHistory struct {
	ID        int64     `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	IPAddress string    `db:"ip_address" json:"ip_address"`
	LastSeen  time.Time `db:"last_seen" json:"last_seen"`
}

// AdminAction is an immutable audit record of a privileged operation.
type AdminAction struct {
	ActionID   int64     `db:"action_id" json:"action_id"`
	AdminUser  string    `db:"admin_user" json:"admin_user"`
	ActionType string    `db:"action_type" json:"action_type"`
	Details    string    `db:"details" json:"details"`
	ActionTime time.Time `db:"action_time" json:"action_time"`
}
