// Package textnorm は名前の正規化を提供する。
// コミュニティ名・カテゴリ名などの一意性判定は大文字小文字を区別しない。
package textnorm

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Capitalize は前後の空白を除去し、先頭の文字を大文字にする。
// 2文字目以降は変更しない。
func Capitalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// Key は一意性判定に使う比較キーを返す。
func Key(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Equal はaとbが同じ比較キーを持つかを返す。
func Equal(a, b string) bool {
	return Key(a) == Key(b)
}
