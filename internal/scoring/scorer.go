// Package scoring 实现启发式评分和面试总结，均为纯函数，不依赖外部服务
package scoring

import (
	"math"
	"regexp"
	"strings"

	"mock-interview-go/internal/constants"
	"mock-interview-go/internal/types"
)

const (
	emptyAnswerFeedback = "No answer provided. Minimal score awarded to keep results friendly."
	keywordFeedback     = "Good use of technical terms."
)

// Band 一个字数区间：字数 < MaxWords 时使用 Base 作为基础分
type Band struct {
	MaxWords int
	Base     float64
	Feedback string
}

// DifficultyRule 某个难度的评分规则，Bands 按 MaxWords 升序，最后一档 MaxWords 为 0 表示不设上限
type DifficultyRule struct {
	Bands      []Band
	KeywordCap float64
}

// Policy 评分策略表
type Policy struct {
	Floor          float64
	Ceiling        float64
	KeywordBonus   float64
	StructureBonus float64
	Keywords       []string
	Rules          map[types.Difficulty]DifficultyRule
}

// DefaultPolicy 默认策略
func DefaultPolicy() Policy {
	return Policy{
		Floor:          constants.MinScore,
		Ceiling:        constants.MaxScore,
		KeywordBonus:   0.5,
		StructureBonus: 0.5,
		Keywords: []string{
			"react", "javascript", "node", "api", "database", "server", "client",
			"async", "await", "promise", "callback", "event", "component", "state",
			"props", "hook", "express", "middleware", "mongodb", "postgres", "sql",
			"rest", "http", "jwt", "authentication", "authorization", "security",
			"performance", "cache", "optimization", "scalability", "architecture",
			"microservice", "monolith", "queue", "redis", "kafka", "docker",
		},
		Rules: map[types.Difficulty]DifficultyRule{
			types.DifficultyEasy: {
				Bands: []Band{
					{MaxWords: 6, Base: 6.8, Feedback: "Concise but valid answer for an easy question."},
					{MaxWords: 18, Base: 8.2, Feedback: "Good concise explanation."},
					{Base: 9.5, Feedback: "Detailed and clear."},
				},
				KeywordCap: 1.8,
			},
			types.DifficultyMedium: {
				Bands: []Band{
					{MaxWords: 10, Base: 6.2, Feedback: "Brief for medium difficulty; still reasonable."},
					{MaxWords: 30, Base: 7.8, Feedback: "Solid explanation for a medium question."},
					{Base: 9.0, Feedback: "Thorough and clear."},
				},
				KeywordCap: 2.2,
			},
			types.DifficultyHard: {
				Bands: []Band{
					{MaxWords: 15, Base: 6.0, Feedback: "Compact for a hard question; consider adding more design detail."},
					{MaxWords: 45, Base: 8.0, Feedback: "Good coverage; shows understanding."},
					{Base: 9.2, Feedback: "Comprehensive and well-structured."},
				},
				KeywordCap: 2.5,
			},
		},
	}
}

// Result 评分结果
type Result struct {
	Score    float64 `json:"score"`
	Feedback string  `json:"feedback"`
}

var structurePattern = regexp.MustCompile(`[\n,.;-]`)

// Scorer 按字数、技术关键词和答案结构打分
type Scorer struct {
	policy Policy
}

// NewScorer 创建评分器
func NewScorer(policy Policy) *Scorer {
	return &Scorer{policy: policy}
}

// NewDefaultScorer 使用默认策略
func NewDefaultScorer() *Scorer {
	return NewScorer(DefaultPolicy())
}

// Score 给答案打分。空答案得到保底分，任何输入都不会报错。
func (s *Scorer) Score(q types.Question, answer string) Result {
	p := s.policy
	trimmed := strings.TrimSpace(answer)
	if trimmed == "" {
		return Result{Score: p.Floor, Feedback: emptyAnswerFeedback}
	}

	rule, ok := p.Rules[q.Difficulty]
	if !ok {
		rule = p.Rules[types.DifficultyMedium]
	}

	words := len(strings.Fields(trimmed))
	band := rule.Bands[len(rule.Bands)-1]
	for _, b := range rule.Bands {
		if b.MaxWords > 0 && words < b.MaxWords {
			band = b
			break
		}
	}

	score := band.Base
	feedback := []string{band.Feedback}

	lower := strings.ToLower(trimmed)
	matched := 0
	for _, kw := range p.Keywords {
		if strings.Contains(lower, kw) {
			matched++
		}
	}
	score += math.Min(float64(matched)*p.KeywordBonus, rule.KeywordCap)
	if matched >= 2 {
		feedback = append(feedback, keywordFeedback)
	}

	if structurePattern.MatchString(trimmed) {
		score += p.StructureBonus
	}

	score = math.Max(p.Floor, math.Min(p.Ceiling, score))
	return Result{
		Score:    roundOneDecimal(score),
		Feedback: strings.Join(feedback, " "),
	}
}

func roundOneDecimal(v float64) float64 {
	return math.Round(v*10) / 10
}
