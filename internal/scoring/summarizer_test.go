package scoring

import (
	"testing"

	"mock-interview-go/internal/types"

	"github.com/stretchr/testify/assert"
)

func scored(d types.Difficulty, score float64) types.Question {
	answer := "answer"
	return types.Question{Difficulty: d, Answer: &answer, Score: &score}
}

func TestPerformanceLabel(t *testing.T) {
	assert.Equal(t, "Excellent", PerformanceLabel(8.0))
	assert.Equal(t, "Good", PerformanceLabel(7.99))
	assert.Equal(t, "Good", PerformanceLabel(6.0))
	assert.Equal(t, "Fair", PerformanceLabel(4.0))
	assert.Equal(t, "Needs Improvement", PerformanceLabel(3.9))
}

func TestSummarizeExcellent(t *testing.T) {
	qs := []types.Question{
		scored(types.DifficultyEasy, 9.5), scored(types.DifficultyEasy, 9.5),
		scored(types.DifficultyMedium, 9.5), scored(types.DifficultyMedium, 9.5),
		scored(types.DifficultyHard, 9.5), scored(types.DifficultyHard, 9.5),
	}
	text := NewSummarizer("").Summarize(qs, "Jane Doe")

	want := "Jane Doe completed the Full-Stack Developer interview with a Excellent performance (9.5/10 average).\n\n" +
		"Scores by Difficulty:\n" +
		"• Easy Questions: 9.5/10 (2 questions)\n" +
		"• Medium Questions: 9.5/10 (2 questions)\n" +
		"• Hard Questions: 9.5/10 (2 questions)\n" +
		"\n" +
		"Strengths: strong fundamentals, good intermediate knowledge, excellent problem-solving abilities.\n" +
		"\nOverall, Jane Doe shows solid potential for a full-stack role."
	assert.Equal(t, want, text)
}

func TestSummarizeSkipsUnanswered(t *testing.T) {
	qs := []types.Question{
		scored(types.DifficultyEasy, 8.0),
		scored(types.DifficultyEasy, 6.0),
		{Difficulty: types.DifficultyMedium},
		{Difficulty: types.DifficultyMedium},
		{Difficulty: types.DifficultyHard},
		{Difficulty: types.DifficultyHard},
	}
	text := NewSummarizer("").Summarize(qs, "Sam")

	assert.Contains(t, text, "Good performance (7.0/10 average)")
	assert.Contains(t, text, "• Easy Questions: 7.0/10 (2 questions)")
	assert.Contains(t, text, "• Hard Questions: 0.0/10 (0 questions)")
	assert.Contains(t, text, "Strengths: strong fundamentals.")
	assert.Contains(t, text, "Areas for improvement: intermediate technical skills, complex system design thinking.")
	assert.Contains(t, text, "Overall, Sam shows solid potential")
}

func TestSummarizeNothingAnswered(t *testing.T) {
	text := NewSummarizer("Backend Engineer").Summarize(nil, "Sam")
	assert.Contains(t, text, "the Backend Engineer interview with a Needs Improvement performance (0.0/10 average)")
	assert.NotContains(t, text, "Strengths:")
	assert.Contains(t, text, "may benefit from additional preparation before taking on a full-stack position.")
}
