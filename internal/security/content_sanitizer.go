package security

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer は外部フィードのHTMLからプレーンテキストを取り出す。
// 講座のタイトルと説明はHTMLとして描画されないため、タグはすべて取り除く。
type TextSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer は TextSanitizer を生成する。
func NewTextSanitizer() *TextSanitizer {
	return &TextSanitizer{policy: bluemonday.StrictPolicy()}
}

// PlainText はタグを除去し、文字参照を展開して空白を1つにまとめる。
// maxLen が正の場合はルーン数で切り詰め、末尾に "…" を付ける。
func (s *TextSanitizer) PlainText(raw string, maxLen int) string {
	// ブロック要素の境界で単語が連結しないよう、タグの前に空白を入れる
	stripped := s.policy.Sanitize(strings.ReplaceAll(raw, "<", " <"))
	text := strings.Join(strings.Fields(html.UnescapeString(stripped)), " ")

	if maxLen <= 0 || utf8.RuneCountInString(text) <= maxLen {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:maxLen-1])) + "…"
}
