package utils

import (
	"crypto/md5"
	"encoding/hex"
	"unicode/utf8"
)

// TextToMd5Hash returns the hex encoded md5 digest of text.
func TextToMd5Hash(text string) (string, error) {
	hasher := md5.New()
	if _, err := hasher.Write([]byte(text)); err != nil {
		return "", err
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// RuneLen counts characters rather than bytes, content is mostly Chinese.
func RuneLen(s string) int {
	return utf8.RuneCountInString(s)
}

// TruncateRunes cuts s to at most n characters, appending "..." when cut.
func TruncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}
