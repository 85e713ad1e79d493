// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer はユーザーが入力した自由記述（メモや場所）から
// HTMLタグを除去し、プレーンテキストとして保存できる形に整える。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer は自由記述テキストのサニタイズ機能のインターフェースを定義する。
type TextSanitizer interface {
	// Sanitize はHTMLタグを全て除去したプレーンテキストを返す。
	// script, styleなどの要素は内容ごと除去される。前後の空白は取り除く。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
// bluemondayのStrictPolicyで全てのタグを除去する。
func NewTextSanitizer() TextSanitizer {
	return &textSanitizer{policy: bluemonday.StrictPolicy()}
}

// maxSanitizePasses はSanitizeが結果の収束を待つ最大回数。
const maxSanitizePasses = 8

// Sanitize はHTMLタグを除去したプレーンテキストを返す。
// 出力が変化しなくなるまでstripを繰り返すため、Sanitize(Sanitize(x)) == Sanitize(x) が成り立つ。
func (s *textSanitizer) Sanitize(raw string) string {
	out := strings.TrimSpace(raw)
	for i := 0; i < maxSanitizePasses; i++ {
		next := s.strip(out)
		if next == out {
			break
		}
		out = next
	}
	return out
}

// strip はタグを1回除去する。
// 入力中の & を先にエスケープし、ユーザーが入力した &lt; などのエンティティは
// 文字どおりのテキストとして残す（マークアップとして解釈させない）。
// StrictPolicyは出力をエスケープして返すため、最後に1段階だけ元の文字へ戻す。
func (s *textSanitizer) strip(v string) string {
	if v == "" {
		return ""
	}
	cleaned := s.policy.Sanitize(strings.ReplaceAll(v, "&", "&amp;"))
	return strings.TrimSpace(html.UnescapeString(cleaned))
}
