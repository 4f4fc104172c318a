package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pretty1020/lept-reviewer/internal/model"

	"github.com/rs/zerolog"
)

const chatCompletionsEndpoint = "/chat/completions"

// GenerateRequest describes one batch of questions to produce.
type GenerateRequest struct {
	ExamComponent  string
	Specialization string
	Difficulty     string
	DocumentText   string
	NumQuestions   int
}

// QuestionGenerator produces multiple-choice LEPT questions. A failed or
// unparseable generation yields an empty slice, never partial garbage.
type QuestionGenerator interface {
	Generate(ctx context.Context, req GenerateRequest) ([]model.Question, error)
}

type openAIGenerator struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
	logger  zerolog.Logger
}

// NewOpenAIGenerator creates a QuestionGenerator backed by an
// OpenAI-compatible chat completions endpoint.
func NewOpenAIGenerator(baseURL, apiKey, modelName string, timeout time.Duration, logger zerolog.Logger) QuestionGenerator {
	return &openAIGenerator{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		model:   modelName,
		logger:  logger.With().Str("service", "QuestionGenerator").Logger(),
	}
}

var componentNames = map[string]string{
	"general_education":      "General Education",
	"professional_education": "Professional Education",
	"specialization":         "Specialization",
}

func buildPrompt(req GenerateRequest) string {
	examName := componentNames[req.ExamComponent]
	if examName == "" {
		examName = req.ExamComponent
	}
	subjectContext := ""
	if req.ExamComponent == "specialization" && req.Specialization != "" {
		subjectContext = fmt.Sprintf("Specialization Subject: %s\n", req.Specialization)
	}

	return fmt.Sprintf(`You are an expert exam question generator for the Philippine Licensure Examination for Professional Teachers (LEPT).

Generate %d multiple-choice questions based on the following context:

Exam Type: %s
%sDifficulty Level: %s

REFERENCE MATERIAL:
%s

REQUIREMENTS:
1. Each question must be directly based on the reference material provided
2. Questions should be appropriate for the %s difficulty level:
   - Easy: Basic recall and understanding
   - Medium: Application and analysis
   - Hard: Synthesis, evaluation, and complex problem-solving
3. Each question must have exactly 4 options (A, B, C, D)
4. Only ONE option should be correct
5. Include a brief explanation for the correct answer
6. Questions should be relevant to Philippine education context

RESPONSE FORMAT:
Return a JSON array with this exact structure:
[
  {
    "question": "The question text here?",
    "options": {
      "A": "First option",
      "B": "Second option",
      "C": "Third option",
      "D": "Fourth option"
    },
    "correct_answer": "A",
    "explanation": "Brief explanation why A is correct..."
  }
]

Generate exactly %d questions. Return ONLY the JSON array, no other text.`,
		req.NumQuestions, examName, subjectContext, req.Difficulty, req.DocumentText, req.Difficulty, req.NumQuestions)
}

func (g *openAIGenerator) Generate(ctx context.Context, req GenerateRequest) ([]model.Question, error) {
	requestBody := map[string]interface{}{
		"model": g.model,
		"messages": []map[string]string{
			{"role": "system", "content": "You are an expert LEPT exam question generator. Always respond with valid JSON only."},
			{"role": "user", "content": buildPrompt(req)},
		},
		"temperature": 0.7,
		"max_tokens":  4000,
	}

	bodyJSON, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal generation request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+chatCompletionsEndpoint, bytes.NewReader(bodyJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to create generation request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("generation request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read generation response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("generation failed: HTTP %d: %s", resp.StatusCode, string(body[:min(len(body), 512)]))
	}

	var completion struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &completion); err != nil {
		return nil, fmt.Errorf("failed to decode generation response: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("generation response contained no choices")
	}

	questions := ParseQuestions(completion.Choices[0].Message.Content)
	if len(questions) == 0 {
		g.logger.Warn().Str("component", req.ExamComponent).Msg("model response contained no valid questions")
	}
	return questions, nil
}

// ParseQuestions extracts a question array from model output. The model
// sometimes wraps the JSON in prose, so a bracketed slice is retried
// before giving up. Invalid entries are dropped, not repaired.
func ParseQuestions(text string) []model.Question {
	text = strings.TrimSpace(text)

	var raw []rawQuestion
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		start := strings.Index(text, "[")
		end := strings.LastIndex(text, "]")
		if start == -1 || end <= start {
			return nil
		}
		if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
			return nil
		}
	}

	questions := make([]model.Question, 0, len(raw))
	for _, q := range raw {
		if v, ok := q.validate(); ok {
			questions = append(questions, v)
		}
	}
	return questions
}

type rawQuestion struct {
	Question      string            `json:"question"`
	Options       map[string]string `json:"options"`
	CorrectAnswer string            `json:"correct_answer"`
	Explanation   string            `json:"explanation"`
}

var optionKeys = []string{"A", "B", "C", "D"}

func (q rawQuestion) validate() (model.Question, bool) {
	if strings.TrimSpace(q.Question) == "" {
		return model.Question{}, false
	}
	options := make(map[string]string, len(optionKeys))
	for _, key := range optionKeys {
		v := strings.TrimSpace(q.Options[key])
		if v == "" {
			return model.Question{}, false
		}
		options[key] = v
	}
	correct := strings.ToUpper(strings.TrimSpace(q.CorrectAnswer))
	valid := false
	for _, key := range optionKeys {
		if correct == key {
			valid = true
			break
		}
	}
	if !valid {
		return model.Question{}, false
	}
	explanation := strings.TrimSpace(q.Explanation)
	if explanation == "" {
		explanation = "No explanation provided."
	}
	return model.Question{
		Question:      strings.TrimSpace(q.Question),
		Options:       options,
		CorrectAnswer: correct,
		Explanation:   explanation,
	}, true
}
