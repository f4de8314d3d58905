package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"mock-interview-go/internal/parser"
	"mock-interview-go/internal/processor"

	"github.com/spf13/pflag"
)

type extractOutput struct {
	File          string   `json:"file"`
	FileSize      string   `json:"file_size"`
	Name          string   `json:"name"`
	Email         string   `json:"email"`
	Phone         string   `json:"phone"`
	PhoneDisplay  string   `json:"phone_display"`
	MissingFields []string `json:"missing_fields"`
	Text          string   `json:"text,omitempty"`
}

// runExtract 离线验证简历解析和字段提取，不写数据库
func runExtract(args []string) error {
	fs := pflag.NewFlagSet("extract", pflag.ExitOnError)
	file := fs.StringP("file", "f", "", "简历文件路径 (.pdf/.docx/.txt)")
	format := fs.String("format", "text", "输出格式: text 或 json")
	maxLen := fs.Int("maxlen", 1000, "显示的文本最大长度，-1 显示全部")
	timeout := fs.Duration("timeout", 30*time.Second, "解析超时")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" && fs.NArg() > 0 {
		*file = fs.Arg(0)
	}
	if *file == "" {
		fs.Usage()
		return fmt.Errorf("必须提供简历文件路径")
	}

	absPath, err := filepath.Abs(*file)
	if err != nil {
		return fmt.Errorf("无法获取文件的绝对路径: %w", err)
	}
	data, err := os.ReadFile(absPath)
	if err != nil {
		return fmt.Errorf("读取文件失败: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pdf, err := parser.NewEinoPDFTextExtractor(ctx)
	if err != nil {
		return fmt.Errorf("创建PDF提取器失败: %w", err)
	}
	start := time.Now()
	text, err := parser.NewDocumentParser(pdf).Extract(ctx, absPath, data)
	if err != nil {
		return fmt.Errorf("解析简历失败: %w", err)
	}
	elapsed := time.Since(start)

	info := processor.ExtractCandidateInfo(text)
	out := extractOutput{
		File:          absPath,
		FileSize:      processor.FormatFileSize(int64(len(data))),
		Name:          info.Name,
		Email:         info.Email,
		Phone:         info.Phone,
		PhoneDisplay:  processor.FormatPhoneIndia(info.Phone),
		MissingFields: processor.MissingFields(info.Name, info.Email, info.Phone),
		Text:          truncate(info.Text, *maxLen),
	}

	if *format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Printf("文件: %s (%s)，解析耗时 %v\n", out.File, out.FileSize, elapsed)
	fmt.Printf("姓名: %s\n邮箱: %s\n电话: %s\n", out.Name, out.Email, out.PhoneDisplay)
	if len(out.MissingFields) > 0 {
		fmt.Printf("缺失字段: %v\n", out.MissingFields)
	}
	fmt.Printf("\n===== 文本 (总计 %d 字符) =====\n%s\n", len(info.Text), out.Text)
	return nil
}

func truncate(s string, n int) string {
	if n < 0 || len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "...(已截断，使用 --maxlen 显示更多)"
}
