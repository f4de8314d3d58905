package utils

import (
	"crypto/md5"
	"encoding/hex"
)

// StringPtr 返回字符串的指针
func StringPtr(s string) *string {
	return &s
}

// Float64Ptr 返回 float64 的指针
func Float64Ptr(f float64) *float64 {
	return &f
}

// CalculateMD5 计算内容的 MD5，返回十六进制字符串
func CalculateMD5(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}
