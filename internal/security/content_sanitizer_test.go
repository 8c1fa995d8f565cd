package security

import (
	"strings"
	"testing"
)

func assertSanitized(t *testing.T, input, got string, wantContains, wantAbsent []string) {
	t.Helper()
	for _, want := range wantContains {
		if !strings.Contains(got, want) {
			t.Errorf("Sanitize(%q) = %q, expected to contain %q", input, got, want)
		}
	}
	for _, absent := range wantAbsent {
		if strings.Contains(got, absent) {
			t.Errorf("Sanitize(%q) = %q, should NOT contain %q", input, got, absent)
		}
	}
}

// TestSanitize_ArticleStructure は記事本文の構造タグが保持されることを検証する。
func TestSanitize_ArticleStructure(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		name         string
		input        string
		wantContains []string
	}{
		{"見出し", "<h2>見出し</h2>", []string{"<h2>見出し</h2>"}},
		{"段落", "<p>テスト段落</p>", []string{"<p>テスト段落</p>"}},
		{"リスト", "<ul><li>項目1</li></ul>", []string{"<ul>", "<li>項目1</li>"}},
		{"引用", "<blockquote>引用</blockquote>", []string{"<blockquote>引用</blockquote>"}},
		{"コード", "<pre><code>func main() {}</code></pre>", []string{"<pre>", "<code>", "func main() {}"}},
		{"表", `<table><tr><td colspan="2">セル</td></tr></table>`, []string{"<table>", "<td", `colspan="2"`, "セル"}},
		{"図", "<figure><figcaption>説明</figcaption></figure>", []string{"<figure>", "<figcaption>説明</figcaption>"}},
		{"div", "<div><p>テスト</p></div>", []string{"<div>", "<p>テスト</p>"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.Sanitize(tt.input)
			assertSanitized(t, tt.input, got, tt.wantContains, nil)
		})
	}
}

// TestSanitize_ForbiddenTags はスクリプト実行につながるタグが除去されることを検証する。
func TestSanitize_ForbiddenTags(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		name         string
		input        string
		wantAbsent   []string
		wantContains []string
	}{
		{
			name:         "scriptタグが除去される",
			input:        `<p>テスト</p><script>alert('xss')</script><p>安全</p>`,
			wantAbsent:   []string{"<script", "alert"},
			wantContains: []string{"テスト", "安全"},
		},
		{
			name:         "iframeタグが除去される",
			input:        `<p>テスト</p><iframe src="https://evil.example"></iframe>`,
			wantAbsent:   []string{"<iframe", "evil.example"},
			wantContains: []string{"テスト"},
		},
		{
			name:         "styleタグが除去される",
			input:        `<p>テスト</p><style>body{display:none}</style>`,
			wantAbsent:   []string{"<style", "display:none"},
			wantContains: []string{"テスト"},
		},
		{
			name:         "formタグが除去される",
			input:        `<form action="https://evil.example"><input type="text"></form><p>本文</p>`,
			wantAbsent:   []string{"<form", "<input"},
			wantContains: []string{"本文"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.Sanitize(tt.input)
			assertSanitized(t, tt.input, got, tt.wantContains, tt.wantAbsent)
		})
	}
}

// TestSanitize_OnEventAttributes はon*イベント属性が除去されることを検証する。
func TestSanitize_OnEventAttributes(t *testing.T) {
	sanitizer := NewContentSanitizer()

	inputs := []string{
		`<p onclick="alert(1)">テスト</p>`,
		`<img src="https://example.com/a.png" onerror="alert(1)">`,
		`<a href="https://example.com" onmouseover="alert(1)">リンク</a>`,
	}
	for _, input := range inputs {
		got := sanitizer.Sanitize(input)
		assertSanitized(t, input, got, nil, []string{"onclick", "onerror", "onmouseover", "alert"})
	}
}

// TestSanitize_ImageSchemes はimgのsrcにhttpとhttpsのみ許可されることを検証する。
func TestSanitize_ImageSchemes(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		name         string
		input        string
		wantContains []string
		wantAbsent   []string
	}{
		{
			name:         "https imgが許可される",
			input:        `<img src="https://example.com/image.png" alt="画像">`,
			wantContains: []string{"<img", "https://example.com/image.png", `alt="画像"`},
		},
		{
			name:         "http imgが許可される",
			input:        `<img src="http://example.com/image.png">`,
			wantContains: []string{"http://example.com/image.png"},
		},
		{
			name:       "javascript imgが拒否される",
			input:      `<img src="javascript:alert('xss')">`,
			wantAbsent: []string{"javascript:", "alert"},
		},
		{
			name:       "data URI imgが拒否される",
			input:      `<img src="data:image/png;base64,abc">`,
			wantAbsent: []string{"data:image"},
		},
		{
			name:       "相対URLが拒否される",
			input:      `<img src="/images/a.png">`,
			wantAbsent: []string{"/images/a.png"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.Sanitize(tt.input)
			assertSanitized(t, tt.input, got, tt.wantContains, tt.wantAbsent)
		})
	}
}

// TestSanitize_AnchorAttributes はaタグにtarget="_blank"とnoreferrerが付与されることを検証する。
func TestSanitize_AnchorAttributes(t *testing.T) {
	sanitizer := NewContentSanitizer()

	input := `<a href="https://example.com" target="_self" rel="nofollow">リンク</a>`
	got := sanitizer.Sanitize(input)

	assertSanitized(t, input, got,
		[]string{`target="_blank"`, "noopener", "noreferrer", "https://example.com", "リンク"},
		[]string{`target="_self"`},
	)
}

func TestSanitize_EmptyAndPlainText(t *testing.T) {
	sanitizer := NewContentSanitizer()

	if got := sanitizer.Sanitize(""); got != "" {
		t.Errorf("Sanitize(\"\") = %q, want empty", got)
	}
	if got := sanitizer.Sanitize("ただのテキスト"); got != "ただのテキスト" {
		t.Errorf("Sanitize(plain) = %q", got)
	}
}

// TestSanitize_Idempotent はサニタイズ済みのHTMLを再度サニタイズしても変化しないことを検証する。
func TestSanitize_Idempotent(t *testing.T) {
	sanitizer := NewContentSanitizer()

	input := `<h1>タイトル</h1><p>本文 <a href="https://example.com">リンク</a></p><img src="https://example.com/a.png"><script>x()</script>`
	once := sanitizer.Sanitize(input)
	twice := sanitizer.Sanitize(once)
	if once != twice {
		t.Errorf("Sanitize is not idempotent:\n once = %q\ntwice = %q", once, twice)
	}
}

func TestSanitize_Interface(t *testing.T) {
	var _ Sanitizer = NewContentSanitizer()
}
