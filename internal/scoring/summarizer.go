package scoring

import (
	"fmt"
	"strings"

	"mock-interview-go/internal/constants"
	"mock-interview-go/internal/types"
)

// Summarizer 根据已评分题目生成面试总结
type Summarizer struct {
	role string
}

// NewSummarizer 创建总结器，role 为空时使用默认岗位
func NewSummarizer(role string) *Summarizer {
	if role == "" {
		role = constants.InterviewRoleTitle
	}
	return &Summarizer{role: role}
}

type difficultyStat struct {
	sum   float64
	count int
}

func (s difficultyStat) avg() float64 {
	if s.count == 0 {
		return 0
	}
	return s.sum / float64(s.count)
}

// PerformanceLabel 平均分对应的表现等级
func PerformanceLabel(avg float64) string {
	switch {
	case avg >= 8:
		return "Excellent"
	case avg >= 6:
		return "Good"
	case avg >= 4:
		return "Fair"
	default:
		return "Needs Improvement"
	}
}

// Summarize 只统计已作答且有分数的题目。相同输入总是得到相同文本。
func (s *Summarizer) Summarize(questions []types.Question, candidateName string) string {
	stats := make(map[types.Difficulty]*difficultyStat, len(types.Difficulties))
	for _, d := range types.Difficulties {
		stats[d] = &difficultyStat{}
	}
	var total difficultyStat
	for i := range questions {
		q := &questions[i]
		if !q.Answered() || q.Score == nil {
			continue
		}
		if st, ok := stats[q.Difficulty]; ok {
			st.sum += *q.Score
			st.count++
		}
		total.sum += *q.Score
		total.count++
	}

	avg := total.avg()
	easy, medium, hard := stats[types.DifficultyEasy], stats[types.DifficultyMedium], stats[types.DifficultyHard]

	var strengths, improvements []string
	switch {
	case easy.avg() >= 7:
		strengths = append(strengths, "strong fundamentals")
	case easy.avg() < 5:
		improvements = append(improvements, "basic concepts")
	}
	switch {
	case medium.avg() >= 7:
		strengths = append(strengths, "good intermediate knowledge")
	case medium.avg() < 5:
		improvements = append(improvements, "intermediate technical skills")
	}
	switch {
	case hard.avg() >= 6:
		strengths = append(strengths, "excellent problem-solving abilities")
	case hard.avg() < 4:
		improvements = append(improvements, "complex system design thinking")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s completed the %s interview with a %s performance (%.1f/10 average).\n\n",
		candidateName, s.role, PerformanceLabel(avg), avg)
	b.WriteString("Scores by Difficulty:\n")
	for _, d := range types.Difficulties {
		st := stats[d]
		fmt.Fprintf(&b, "• %s Questions: %.1f/10 (%d questions)\n", d, st.avg(), st.count)
	}
	if len(strengths) > 0 || len(improvements) > 0 {
		b.WriteString("\n")
	}
	if len(strengths) > 0 {
		fmt.Fprintf(&b, "Strengths: %s.\n", strings.Join(strengths, ", "))
	}
	if len(improvements) > 0 {
		fmt.Fprintf(&b, "Areas for improvement: %s.\n", strings.Join(improvements, ", "))
	}

	closing := "may benefit from additional preparation before taking on a full-stack position"
	if avg >= 6 {
		closing = "shows solid potential for a full-stack role"
	}
	fmt.Fprintf(&b, "\nOverall, %s %s.", candidateName, closing)
	return b.String()
}
