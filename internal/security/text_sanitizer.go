// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer はURLパスなど利用者が自由に指定できる文字列から
// マークアップを取り除き、ページタイトルとして表示できるプレーンテキストにする。
// bluemondayのStrictPolicyで全タグを除去する。
package security

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// MaxTextLength はサニタイズ後のテキストの最大文字数（ルーン数）。
const MaxTextLength = 100

// TextSanitizerService はプレーンテキスト化のインターフェースを定義する。
type TextSanitizerService interface {
	// SanitizeText は入力から全てのHTMLタグを除去したプレーンテキストを返す。
	// 前後の空白は除去し、MaxTextLengthを超える部分は切り捨てる。
	// 入力中の文字参照は1回だけデコードされ、出力はエスケープされていないため、
	// 表示時にテンプレートでエスケープすること。
	// 同一入力に対して常に同一出力を返すが、出力を再度渡した結果が同じになるとは限らない。
	SanitizeText(raw string) string
}

// textSanitizer はTextSanitizerServiceの実装。
// bluemondayのポリシーはスレッドセーフに共有できる。
type textSanitizer struct {
	policy *bluemonday.Policy
}

var _ TextSanitizerService = (*textSanitizer)(nil)

// NewTextSanitizer はTextSanitizerServiceの新しいインスタンスを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// SanitizeText は入力から全てのHTMLタグを除去したプレーンテキストを返す。
func (s *textSanitizer) SanitizeText(raw string) string {
	// StrictPolicyは本文をHTMLエスケープして返すため、テンプレートでの二重エスケープを避けて戻す
	text := html.UnescapeString(s.policy.Sanitize(raw))
	text = strings.TrimSpace(text)

	if utf8.RuneCountInString(text) > MaxTextLength {
		runes := []rune(text)
		text = string(runes[:MaxTextLength])
	}
	return text
}
