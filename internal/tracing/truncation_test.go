package tracing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskPII(t *testing.T) {
	cases := map[string]string{
		"":                 "",
		"J":                "*",
		"Jo":               "J*",
		"Jane":             "J**e",
		"jane@example.com": "ja************om",
		"9876543210":       "98******10",
	}
	for in, want := range cases {
		assert.Equal(t, want, MaskPII(in), in)
	}
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", TruncateString("short", 10))
	assert.Equal(t, "abc", TruncateString("abcdef", 3))

	long := strings.Repeat("a", 50) + strings.Repeat("b", 50)
	got := TruncateString(long, 23)
	assert.Equal(t, strings.Repeat("a", 10)+"..."+strings.Repeat("b", 10), got)
}

func TestSafeAttributeValue(t *testing.T) {
	assert.Equal(t, "ja************om", SafeAttributeValue("candidate.email", "jane@example.com", 100))
	assert.Equal(t, "free text", SafeAttributeValue("answer", "free text", 100))
}
