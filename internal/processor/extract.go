package processor

import (
	"math"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"mock-interview-go/internal/types"
)

// CandidateInfo 从简历文本中识别出的身份信息，未识别的字段为空
type CandidateInfo struct {
	Name  string
	Email string
	Phone string // 10 位数字
	Text  string // 空白折叠后的全文
}

var (
	emailRegex        = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Z|a-z]{2,}\b`)
	phoneRunRegex     = regexp.MustCompile(`(\+?\d[\d\-\s().]{8,}\d)`)
	phoneKeywordRegex = regexp.MustCompile(`(?i)(phone|mobile|contact|tel)\s*:?`)
	tenDigitRegex     = regexp.MustCompile(`\b\d{10}\b`)
	dashedPhoneRegex  = regexp.MustCompile(`\d{3}[-.\s]\d{3}[-.\s]\d{4}`)
	nameRegex         = regexp.MustCompile(`^[A-Z][a-z]+(?:\s+[A-Z][a-z]+){1,3}$`)
	whitespaceRegex   = regexp.MustCompile(`\s+`)
	nonDigitRegex     = regexp.MustCompile(`\D`)
)

const nameScanLines = 5

// ExtractCandidateInfo 识别姓名、邮箱和手机号
func ExtractCandidateInfo(text string) CandidateInfo {
	clean := strings.TrimSpace(whitespaceRegex.ReplaceAllString(text, " "))
	info := CandidateInfo{Text: clean}

	info.Email = emailRegex.FindString(clean)

	lines := nonEmptyLines(text)
	info.Phone = extractPhone(lines, clean)
	info.Name = extractName(lines)
	return info
}

func nonEmptyLines(text string) []string {
	var out []string
	for _, l := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

// 先看带关键字的行，再看全文，最后找孤立的 10 位数字
func extractPhone(lines []string, clean string) string {
	for _, line := range lines {
		if !phoneKeywordRegex.MatchString(line) {
			continue
		}
		if p := firstTenDigits(line); p != "" {
			return p
		}
	}
	if p := firstTenDigits(clean); p != "" {
		return p
	}
	return tenDigitRegex.FindString(clean)
}

func firstTenDigits(s string) string {
	for _, m := range phoneRunRegex.FindAllString(s, -1) {
		digits := nonDigitRegex.ReplaceAllString(m, "")
		if len(digits) >= 10 {
			return digits[len(digits)-10:]
		}
	}
	return ""
}

func extractName(lines []string) string {
	for i := 0; i < len(lines) && i < nameScanLines; i++ {
		line := lines[i]
		lower := strings.ToLower(line)
		if strings.Contains(line, "@") ||
			dashedPhoneRegex.MatchString(line) ||
			strings.Contains(lower, "resume") ||
			strings.Contains(lower, "cv") ||
			strings.Contains(lower, "curriculum") ||
			len(line) < 3 || len(line) > 50 {
			continue
		}
		if nameRegex.MatchString(line) {
			return line
		}
	}
	return ""
}

// NormalizeTo10Digits 去掉非数字字符，保留最后 10 位
func NormalizeTo10Digits(raw string) string {
	digits := nonDigitRegex.ReplaceAllString(raw, "")
	if len(digits) > 10 {
		digits = digits[len(digits)-10:]
	}
	return digits
}

// FormatPhoneIndia 展示用格式 "(+91) XXXXXXXXXX"
func FormatPhoneIndia(raw string) string {
	if d := NormalizeTo10Digits(raw); d != "" {
		return "(+91) " + d
	}
	return "(+91) —"
}

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// FormatFileSize 以 1024 为进制，最多两位小数
func FormatFileSize(n int64) string {
	if n <= 0 {
		return "0 Bytes"
	}
	v, i := float64(n), 0
	for v >= 1024 && i < len(sizeUnits)-1 {
		v /= 1024
		i++
	}
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64) + " " + sizeUnits[i]
}

func resumeExtForType(ct string) string {
	switch ct {
	case "application/pdf":
		return ".pdf"
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return ".docx"
	case "application/msword":
		return ".doc"
	}
	return ""
}

// ValidateFileType 只接受 PDF、DOCX、DOC。
// 客户端没有给出具体类型时按扩展名判断
func ValidateFileType(fileName, contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if resumeExtForType(ct) != "" {
		return true
	}
	if ct != "" && ct != "application/octet-stream" {
		return false
	}
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".pdf", ".docx", ".doc":
		return true
	}
	return false
}

// MissingFields 返回为空的身份字段名，顺序固定为 name、email、phone
func MissingFields(name, email, phone string) []string {
	c := types.Candidate{Name: name, Email: email, Phone: phone}
	return c.MissingFields()
}
