// Package questionbank 提供按难度分组的静态题库和抽题操作
package questionbank

import (
	_ "embed"
	"errors"
	"fmt"
	"math/rand"
	"os"

	"mock-interview-go/internal/constants"
	"mock-interview-go/internal/types"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

//go:embed questions.yaml
var defaultQuestionsYAML []byte

// ErrPoolTooSmall 某个难度的题目数量不足以抽题
var ErrPoolTooSmall = errors.New("题库题目数量不足")

// TimeLimit 返回难度对应的单题限时（秒）
func TimeLimit(d types.Difficulty) int {
	switch d {
	case types.DifficultyEasy:
		return constants.EasyTimeLimitSeconds
	case types.DifficultyMedium:
		return constants.MediumTimeLimitSeconds
	default:
		return constants.HardTimeLimitSeconds
	}
}

type bankFile struct {
	Role  string                         `yaml:"role"`
	Pools map[types.Difficulty][]string `yaml:"pools"`
}

// Bank 静态题库
type Bank struct {
	role  string
	pools map[types.Difficulty][]string
}

// NewDefaultBank 使用内置题库
func NewDefaultBank() (*Bank, error) {
	return Parse(defaultQuestionsYAML)
}

// LoadBank 从 YAML 文件加载题库，路径为空时使用内置题库
func LoadBank(path string) (*Bank, error) {
	if path == "" {
		return NewDefaultBank()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取题库文件失败: %w", err)
	}
	return Parse(data)
}

// Parse 解析题库 YAML 并校验每个难度至少有足够的题目
func Parse(data []byte) (*Bank, error) {
	var f bankFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("解析题库失败: %w", err)
	}
	for _, d := range types.Difficulties {
		if len(f.Pools[d]) < constants.QuestionsPerDifficulty {
			return nil, fmt.Errorf("%w: %s 只有 %d 道题", ErrPoolTooSmall, d, len(f.Pools[d]))
		}
	}
	role := f.Role
	if role == "" {
		role = constants.InterviewRoleTitle
	}
	return &Bank{role: role, pools: f.Pools}, nil
}

// Role 题库对应的岗位名称
func (b *Bank) Role() string {
	return b.role
}

// PoolSize 返回某个难度的题目数量
func (b *Bank) PoolSize(d types.Difficulty) int {
	return len(b.pools[d])
}

// Draw 按 Easy→Medium→Hard 的固定顺序，每个难度无放回地随机抽取两道题。
// 难度分组之间从不重排。
func (b *Bank) Draw(rng *rand.Rand) []types.Question {
	questions := make([]types.Question, 0, constants.TotalQuestions)
	for _, d := range types.Difficulties {
		pool := b.pools[d]
		limit := TimeLimit(d)
		for _, idx := range rng.Perm(len(pool))[:constants.QuestionsPerDifficulty] {
			questions = append(questions, types.Question{
				ID:            uuid.NewString(),
				Text:          pool[idx],
				Difficulty:    d,
				TimeLimit:     limit,
				TimeRemaining: limit,
			})
		}
	}
	return questions
}
