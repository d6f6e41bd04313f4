// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TitleSanitizer は学習記録のタイトルからマークアップと制御文字を取り除き、
// プレーンテキストとして保存できる形に正規化する。
package security

import (
	"html"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// MaxTitleLength はタイトルとして保存する最大文字数。
const MaxTitleLength = 100

// TitleSanitizer は記録タイトルの正規化のインターフェース。
type TitleSanitizer interface {
	// Sanitize はタグを除去したプレーンテキストを返す。
	// 前後の空白を除き、制御文字は空白に置き換え、MaxTitleLength文字で切り詰める。
	// 同一入力に対して常に同一出力を返す。
	Sanitize(raw string) string
}

// titleSanitizer はTitleSanitizerの実装。
// bluemondayのポリシーはスレッドセーフなので共有して使う。
type titleSanitizer struct {
	policy *bluemonday.Policy
}

// NewTitleSanitizer はすべてのタグを許可しないポリシーでTitleSanitizerを生成する。
func NewTitleSanitizer() TitleSanitizer {
	return &titleSanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize はタイトルを正規化する。
func (s *titleSanitizer) Sanitize(raw string) string {
	// StrictPolicyは文字参照をエスケープして返すため、保存前に平文へ戻す。
	// 表示時のエスケープはテンプレート側で行う。
	text := html.UnescapeString(s.policy.Sanitize(raw))

	text = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, text)
	text = strings.TrimSpace(text)

	if utf8.RuneCountInString(text) > MaxTitleLength {
		text = string([]rune(text)[:MaxTitleLength])
		text = strings.TrimSpace(text)
	}
	return text
}
