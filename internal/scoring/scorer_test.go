package scoring

import (
	"math"
	"math/rand"
	"strings"
	"testing"

	"mock-interview-go/internal/types"

	"github.com/stretchr/testify/assert"
)

func question(d types.Difficulty) types.Question {
	return types.Question{ID: "q", Text: "t", Difficulty: d}
}

func TestScoreEmptyAnswerGetsFloor(t *testing.T) {
	s := NewDefaultScorer()
	for _, answer := range []string{"", "   ", "\n\t"} {
		r := s.Score(question(types.DifficultyHard), answer)
		assert.Equal(t, 3.0, r.Score)
		assert.Equal(t, "No answer provided. Minimal score awarded to keep results friendly.", r.Feedback)
	}
}

func TestScoreBands(t *testing.T) {
	s := NewDefaultScorer()

	cases := []struct {
		name     string
		d        types.Difficulty
		answer   string
		score    float64
		feedback string
	}{
		{
			name:     "easy short",
			d:        types.DifficultyEasy,
			answer:   "HTML5 adds semantic tags",
			score:    6.8,
			feedback: "Concise but valid answer for an easy question.",
		},
		{
			name:     "medium with one keyword",
			d:        types.DifficultyMedium,
			answer:   "Closures capture variables from the outer scope so functions remember their state",
			score:    8.3,
			feedback: "Solid explanation for a medium question.",
		},
		{
			name:     "hard compact",
			d:        types.DifficultyHard,
			answer:   "Use a queue",
			score:    6.5,
			feedback: "Compact for a hard question; consider adding more design detail.",
		},
		{
			name:     "easy with terms and punctuation clamps to ten",
			d:        types.DifficultyEasy,
			answer:   "An API lets a client talk to a server.",
			score:    10.0,
			feedback: "Good concise explanation. Good use of technical terms.",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := s.Score(question(tc.d), tc.answer)
			assert.InDelta(t, tc.score, r.Score, 1e-9)
			assert.Equal(t, tc.feedback, r.Feedback)
		})
	}
}

func TestScoreKeywordCap(t *testing.T) {
	s := NewDefaultScorer()
	// 6 个词命中 6 个关键词：Medium 基础分 6.2，关键词加分封顶 2.2
	r := s.Score(question(types.DifficultyMedium), "redis kafka docker queue cache microservice")
	assert.InDelta(t, 8.4, r.Score, 1e-9)
	assert.Equal(t, "Brief for medium difficulty; still reasonable. Good use of technical terms.", r.Feedback)

	// 没有关键词和标点时只有基础分
	long := strings.Repeat("word ", 20)
	r = s.Score(question(types.DifficultyEasy), long)
	assert.InDelta(t, 9.5, r.Score, 1e-9)
	assert.Equal(t, "Detailed and clear.", r.Feedback)
}

// TestScoreRangeAndPrecision 任意输入的分数都在 [3, 10] 内且只有一位小数
func TestScoreRangeAndPrecision(t *testing.T) {
	s := NewDefaultScorer()
	rng := rand.New(rand.NewSource(3))
	vocab := []string{"react", "api", "the", "a", "server,", "cache.", "x", "design", "queue;", "-", "\n"}

	for i := 0; i < 500; i++ {
		n := rng.Intn(80)
		parts := make([]string, n)
		for j := range parts {
			parts[j] = vocab[rng.Intn(len(vocab))]
		}
		d := types.Difficulties[rng.Intn(len(types.Difficulties))]
		r := s.Score(question(d), strings.Join(parts, " "))

		assert.GreaterOrEqual(t, r.Score, 3.0)
		assert.LessOrEqual(t, r.Score, 10.0)
		assert.InDelta(t, math.Round(r.Score*10), r.Score*10, 1e-6)
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	s := NewDefaultScorer()
	q := question(types.DifficultyHard)
	answer := "Shard the database, put a cache in front, and push writes through a queue."
	assert.Equal(t, s.Score(q, answer), s.Score(q, answer))
}

func TestCustomPolicy(t *testing.T) {
	p := DefaultPolicy()
	p.Floor = 1.0
	s := NewScorer(p)
	assert.Equal(t, 1.0, s.Score(question(types.DifficultyEasy), "").Score)
}
