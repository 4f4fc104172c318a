package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/pretty1020/lept-reviewer/internal/model"

	"github.com/rs/zerolog"
)

// ExamRequest selects what a practice batch should cover. Document IDs
// refer to uploads owned by the requesting user; admin IDs to curated
// reviewers.
type ExamRequest struct {
	EducationLevel string
	ExamComponent  string
	Specialization string
	Difficulty     string
	DocumentIDs    []int64
	AdminDocIDs    []int64
}

// ExamResult is one generated batch plus the post-consumption balance.
type ExamResult struct {
	Questions  []model.Question `json:"questions"`
	SourceType string           `json:"source_type"`
	Remaining  int              `json:"remaining"`
	Plan       string           `json:"plan"`
}

// ExamService orchestrates a practice batch: entitlement check, question
// sourcing by tier, then the quota spend.
type ExamService interface {
	GenerateBatch(ctx context.Context, email, ipAddress string, req ExamRequest) (*ExamResult, error)
}

type examService struct {
	entitlement EntitlementService
	documents   DocumentService
	generator   QuestionGenerator
	presets     QuestionGenerator
	logger      zerolog.Logger
}

func NewExamService(
	entitlement EntitlementService,
	documents DocumentService,
	generator QuestionGenerator,
	presets QuestionGenerator,
	logger zerolog.Logger,
) ExamService {
	return &examService{
		entitlement: entitlement,
		documents:   documents,
		generator:   generator,
		presets:     presets,
		logger:      logger.With().Str("service", "ExamService").Logger(),
	}
}

func (s *examService) GenerateBatch(ctx context.Context, email, ipAddress string, req ExamRequest) (*ExamResult, error) {
	batchSize := s.entitlement.Limits().QuestionsPerBatch

	decision, err := s.entitlement.Evaluate(ctx, email, batchSize)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		switch decision.Reason {
		case ReasonNotFound:
			return nil, ErrUserNotFound
		case ReasonBlocked:
			return nil, ErrUserBlocked
		case ReasonPremiumExpired:
			return nil, ErrPremiumExpired
		default:
			return nil, ErrQuotaExhausted
		}
	}

	var (
		questions  []model.Question
		sourceType string
	)
	if decision.Plan == EffectiveFree {
		sourceType = model.SourcePreset
		questions, err = s.presets.Generate(ctx, GenerateRequest{
			ExamComponent:  req.ExamComponent,
			Specialization: req.Specialization,
			Difficulty:     req.Difficulty,
			NumQuestions:   batchSize,
		})
	} else {
		sourceType = model.SourceAIGenerated
		docText := s.gatherDocumentText(ctx, email, req)
		if docText != "" {
			sourceType = model.SourceMixed
		}
		questions, err = s.generator.Generate(ctx, GenerateRequest{
			ExamComponent:  req.ExamComponent,
			Specialization: req.Specialization,
			Difficulty:     req.Difficulty,
			DocumentText:   buildExamContext(req, docText),
			NumQuestions:   batchSize,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("generate questions: %w", err)
	}
	if len(questions) == 0 {
		// Nothing was produced so nothing is charged.
		return nil, fmt.Errorf("no questions could be generated, please try again")
	}

	remaining, err := s.entitlement.Consume(ctx, email, ipAddress, batchSize, ConsumeMeta{
		SourceType: sourceType,
		Category:   req.ExamComponent,
		Difficulty: req.Difficulty,
	})
	if err != nil {
		return nil, err
	}

	return &ExamResult{
		Questions:  questions,
		SourceType: sourceType,
		Remaining:  remaining,
		Plan:       decision.Plan.String(),
	}, nil
}

// gatherDocumentText collects extracted text from the selected reviewers.
// Missing or textless documents are skipped rather than failing the batch.
func (s *examService) gatherDocumentText(ctx context.Context, email string, req ExamRequest) string {
	const perDocLimit = 5000

	var parts []string
	for _, id := range req.DocumentIDs {
		text, err := s.documents.GetUserDocumentText(ctx, id, email)
		if err != nil {
			s.logger.Warn().Err(err).Int64("doc_id", id).Msg("skipping user document")
			continue
		}
		parts = append(parts, truncate(text, perDocLimit))
	}
	for _, id := range req.AdminDocIDs {
		text, err := s.documents.GetAdminDocumentText(ctx, id)
		if err != nil {
			s.logger.Warn().Err(err).Int64("doc_id", id).Msg("skipping reviewer document")
			continue
		}
		parts = append(parts, truncate(text, perDocLimit))
	}
	return strings.Join(parts, "\n\n")
}

func buildExamContext(req ExamRequest, docText string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate LEPT exam questions for:\n")
	fmt.Fprintf(&b, "- Education Level: %s\n", req.EducationLevel)
	fmt.Fprintf(&b, "- Exam Component: %s\n", req.ExamComponent)
	if req.Specialization != "" {
		fmt.Fprintf(&b, "- Specialization: %s\n", req.Specialization)
	}
	fmt.Fprintf(&b, "- Difficulty: %s\n\n", req.Difficulty)
	b.WriteString("Follow the 2026 PRC LEPT competencies and guidelines.\n")
	if docText != "" {
		b.WriteString("\nUse the following reviewer content to create context-specific questions:\n\n")
		b.WriteString(docText)
	}
	return b.String()
}
