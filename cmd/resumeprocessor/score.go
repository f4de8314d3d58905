package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"time"

	"mock-interview-go/internal/questionbank"
	"mock-interview-go/internal/scoring"
	"mock-interview-go/internal/types"

	"github.com/spf13/pflag"
)

// runScore 对单个答案打分，便于调整评分规则时对照
func runScore(args []string) error {
	fs := pflag.NewFlagSet("score", pflag.ExitOnError)
	difficulty := fs.StringP("difficulty", "d", string(types.DifficultyEasy), "题目难度: Easy/Medium/Hard")
	answer := fs.StringP("answer", "a", "", "答案文本，为空时从 --answer-file 读取")
	answerFile := fs.String("answer-file", "", "答案文件路径")
	if err := fs.Parse(args); err != nil {
		return err
	}

	d := types.Difficulty(*difficulty)
	if !d.Valid() {
		return fmt.Errorf("未知的难度: %s", *difficulty)
	}
	text := *answer
	if text == "" && *answerFile != "" {
		data, err := os.ReadFile(*answerFile)
		if err != nil {
			return fmt.Errorf("读取答案文件失败: %w", err)
		}
		text = string(data)
	}

	q := types.Question{Difficulty: d, TimeLimit: questionbank.TimeLimit(d)}
	res := scoring.NewDefaultScorer().Score(q, text)
	fmt.Printf("难度: %s\n得分: %.1f/10\n反馈: %s\n", d, res.Score, res.Feedback)
	return nil
}

// runDraw 按固定配比抽一套题，--seed 相同时结果可复现
func runDraw(args []string) error {
	fs := pflag.NewFlagSet("draw", pflag.ExitOnError)
	bankPath := fs.StringP("bank", "b", "", "题库 YAML 路径，为空使用内置题库")
	seed := fs.Int64("seed", 0, "随机种子，0 表示使用当前时间")
	asJSON := fs.Bool("json", false, "以 JSON 输出")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var bank *questionbank.Bank
	var err error
	if *bankPath == "" {
		bank, err = questionbank.NewDefaultBank()
	} else {
		bank, err = questionbank.LoadBank(*bankPath)
	}
	if err != nil {
		return fmt.Errorf("加载题库失败: %w", err)
	}

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	questions := bank.Draw(rand.New(rand.NewSource(*seed)))

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(questions)
	}
	fmt.Printf("岗位: %s，种子: %d\n", bank.Role(), *seed)
	for i, q := range questions {
		fmt.Printf("%d. [%s, %ds] %s\n", i+1, q.Difficulty, q.TimeLimit, q.Text)
	}
	return nil
}
