// Package security は記事のダウンロード処理で使うセキュリティ機能を提供する。
//
// ContentSanitizer はアグリゲータから取得した記事本文のHTMLをサニタイズし、
// ローカルに保存した記事を開いたときにスクリプトが実行されないようにする。
// SSRFGuard は記事中の画像を取得する際に、ローカルネットワークへの
// リクエストを防ぐ。
package security

import (
	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer はHTMLのサニタイズ機能のインターフェース。
type Sanitizer interface {
	Sanitize(rawHTML string) string
}

// ContentSanitizer はbluemondayの許可リストポリシーで記事本文をサニタイズする。
// ポリシーは生成時に構築し、以降は読み取り専用のため並行に利用できる。
type ContentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerを生成する。
// ポリシーの内容:
//   - 本文構造のタグ（見出し、段落、リスト、引用、表、図）を許可
//   - script, iframe, style, form および on* イベント属性は除去
//   - a, img のURLは http/https の絶対URLのみ許可
//   - a には target="_blank" と rel="noopener noreferrer" を付与
func NewContentSanitizer() *ContentSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"p", "br", "hr", "div", "span",
		"h1", "h2", "h3", "h4", "h5", "h6",
		"ul", "ol", "li", "dl", "dt", "dd",
		"blockquote", "pre", "code", "kbd", "samp",
		"strong", "em", "b", "i", "u", "s", "del", "ins", "mark", "small", "sub", "sup",
		"figure", "figcaption", "picture",
		"table", "thead", "tbody", "tfoot", "tr", "th", "td", "caption",
	)
	p.AllowAttrs("colspan", "rowspan").Matching(bluemonday.Integer).OnElements("th", "td")

	p.AllowAttrs("href", "title").OnElements("a")
	p.AllowAttrs("src", "alt", "title").OnElements("img")
	p.AllowAttrs("width", "height").Matching(bluemonday.NumberOrPercent).OnElements("img")

	p.AllowURLSchemes(allowedSchemes...)
	p.AllowRelativeURLs(false)
	p.RequireParseableURLs(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	return &ContentSanitizer{policy: p}
}

// Sanitize はHTMLをサニタイズして返す。同一入力に対して常に同一の出力を返す。
func (s *ContentSanitizer) Sanitize(rawHTML string) string {
	return s.policy.Sanitize(rawHTML)
}
