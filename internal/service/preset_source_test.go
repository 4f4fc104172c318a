package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresetSourceReturnsRequestedCount(t *testing.T) {
	src := NewPresetSource(1)
	questions, err := src.Generate(context.Background(), GenerateRequest{
		ExamComponent: "general_education",
		Difficulty:    "Easy",
		NumQuestions:  3,
	})
	require.NoError(t, err)
	assert.Len(t, questions, 3)
}

func TestPresetSourcePrefersMatchingDifficulty(t *testing.T) {
	src := NewPresetSource(1)
	questions, err := src.Generate(context.Background(), GenerateRequest{
		ExamComponent: "professional_education",
		Difficulty:    "Hard",
		NumQuestions:  1,
	})
	require.NoError(t, err)
	require.Len(t, questions, 1)
	// The professional bank has exactly one Hard question; it must come first.
	assert.Contains(t, questions[0].Question, "item 7")
}

func TestPresetSourceFallsBackAcrossDifficulties(t *testing.T) {
	src := NewPresetSource(1)
	questions, err := src.Generate(context.Background(), GenerateRequest{
		ExamComponent: "specialization",
		Difficulty:    "Easy",
		NumQuestions:  3,
	})
	require.NoError(t, err)
	// Only one Easy specialization question exists; the rest fill in.
	assert.Len(t, questions, 3)
}

func TestPresetSourceUnknownComponentUsesGeneralEducation(t *testing.T) {
	src := NewPresetSource(1)
	questions, err := src.Generate(context.Background(), GenerateRequest{
		ExamComponent: "unknown",
		Difficulty:    "Easy",
		NumQuestions:  2,
	})
	require.NoError(t, err)
	assert.Len(t, questions, 2)
}

func TestPresetQuestionsAreWellFormed(t *testing.T) {
	for component, pool := range presetBank {
		for _, q := range pool {
			assert.NotEmpty(t, q.question.Question, component)
			assert.Len(t, q.question.Options, 4, component)
			assert.Contains(t, []string{"A", "B", "C", "D"}, q.question.CorrectAnswer, component)
			assert.NotEmpty(t, q.question.Explanation, component)
		}
	}
}
