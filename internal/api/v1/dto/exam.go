package dto

import (
	"time"

	"github.com/pretty1020/lept-reviewer/internal/model"
)

// ExamRequestDTO selects what a practice batch should cover.
type ExamRequestDTO struct {
	EducationLevel string  `json:"education_level" validate:"required,oneof=elementary secondary"`
	ExamComponent  string  `json:"exam_component" validate:"required,oneof=general_education professional_education specialization"`
	Specialization string  `json:"specialization"`
	Difficulty     string  `json:"difficulty" validate:"required,oneof=Easy Medium Hard"`
	DocumentIDs    []int64 `json:"document_ids"`
	AdminDocIDs    []int64 `json:"admin_doc_ids"`
}

// ExamResponseDTO is one generated batch.
type ExamResponseDTO struct {
	Questions  []model.Question `json:"questions"`
	SourceType string           `json:"source_type"`
	Remaining  int              `json:"remaining"`
	Plan       string           `json:"plan"`
}

// UsageEventResponseDTO is one ledger entry.
type UsageEventResponseDTO struct {
	EventID            int64     `json:"event_id"`
	Email              string    `json:"email"`
	IPAddress          string    `json:"ip_address"`
	QuestionsGenerated int       `json:"questions_generated"`
	SourceType         string    `json:"source_type"`
	Category           string    `json:"category"`
	Difficulty         string    `json:"difficulty"`
	EventTime          time.Time `json:"event_time"`
}
