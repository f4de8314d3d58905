package tracing

import "strings"

const (
	// DefaultMaxLength 默认最大属性长度
	DefaultMaxLength = 200
	// MaxSQLLength SQL语句最大长度
	MaxSQLLength = 500
	// MaxAnswerLength 候选人答案写入 span 时的最大长度
	MaxAnswerLength = 150
)

var piiKeywords = []string{"email", "phone", "name", "password", "token", "secret"}

// SafeAttributeValue 属性名含敏感关键字时掩码，否则按长度截断
func SafeAttributeValue(name, value string, maxLength int) string {
	lowerName := strings.ToLower(name)
	for _, keyword := range piiKeywords {
		if strings.Contains(lowerName, keyword) {
			return MaskPII(value)
		}
	}
	return TruncateString(value, maxLength)
}

// MaskPII 保留首尾少量字符。
// "Jane" -> "J**e", "jane@example.com" -> "ja************om"
func MaskPII(value string) string {
	if value == "" {
		return ""
	}
	runes := []rune(value)
	length := len(runes)
	switch {
	case length <= 1:
		return "*"
	case length == 2:
		return string(runes[0:1]) + "*"
	case length <= 4:
		return string(runes[0:1]) + strings.Repeat("*", length-2) + string(runes[length-1:])
	}
	return string(runes[0:2]) + strings.Repeat("*", length-4) + string(runes[length-2:])
}

// TruncateString 超长时保留首尾，中间用 ... 连接
func TruncateString(s string, maxLength int) string {
	runes := []rune(s)
	if len(runes) <= maxLength {
		return s
	}
	if maxLength <= 3 {
		return string(runes[:maxLength])
	}
	half := (maxLength - 3) / 2
	if half < 1 {
		half = 1
	}
	return string(runes[:half]) + "..." + string(runes[len(runes)-half:])
}

// SafeSQL 截断 SQL 语句
func SafeSQL(sql string) string {
	return TruncateString(sql, MaxSQLLength)
}

// SafeAnswer 截断候选人答案
func SafeAnswer(answer string) string {
	return TruncateString(answer, MaxAnswerLength)
}
