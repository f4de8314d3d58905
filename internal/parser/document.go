package parser

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

var (
	// ErrUnsupportedFormat 无法提取文本的格式（旧版 .doc 等）
	ErrUnsupportedFormat = errors.New("unsupported document format")
	// ErrEmptyDocument 解析成功但没有任何文字
	ErrEmptyDocument = errors.New("document contains no text")
)

// TextExtractor 单一格式的文本提取器
type TextExtractor interface {
	ExtractTextFromBytes(ctx context.Context, data []byte, uri string) (string, error)
}

// DocumentParser 按扩展名分派到对应的提取器
type DocumentParser struct {
	extractors map[string]TextExtractor
}

// NewDocumentParser pdf 为 nil 时不支持 PDF
func NewDocumentParser(pdf TextExtractor) *DocumentParser {
	p := &DocumentParser{extractors: map[string]TextExtractor{
		".docx": DOCXTextExtractor{},
		".txt":  plainTextExtractor{},
	}}
	if pdf != nil {
		p.extractors[".pdf"] = pdf
	}
	return p
}

// Extract 提取文本，结果去掉首尾空白
func (p *DocumentParser) Extract(ctx context.Context, fileName string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	ex, ok := p.extractors[ext]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	text, err := ex.ExtractTextFromBytes(ctx, data, fileName)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyDocument
	}
	return text, nil
}

type plainTextExtractor struct{}

func (plainTextExtractor) ExtractTextFromBytes(_ context.Context, data []byte, uri string) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%s: not valid UTF-8 text", uri)
	}
	return string(data), nil
}
