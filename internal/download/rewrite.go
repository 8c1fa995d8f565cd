package download

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// rewriteImages はHTML中の<img>のsrcをreplaceの戻り値に置き換える。
// replaceがfalseを返した場合は元のsrcのまま残す。
// img以外のトークンは元のテキストをそのまま出力する。
func rewriteImages(body string, replace func(src string) (string, bool)) string {
	tokenizer := html.NewTokenizer(strings.NewReader(body))
	var buf bytes.Buffer

	for {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			// io.EOF以外のエラーは発生しない（strings.Readerのため）
			return buf.String()
		}

		raw := append([]byte(nil), tokenizer.Raw()...)
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			buf.Write(raw)
			continue
		}

		token := tokenizer.Token()
		if token.Data != "img" {
			buf.Write(raw)
			continue
		}

		changed := false
		for i, attr := range token.Attr {
			if attr.Key != "src" {
				continue
			}
			if local, ok := replace(attr.Val); ok {
				token.Attr[i].Val = local
				changed = true
			}
		}
		if !changed {
			buf.Write(raw)
			continue
		}
		buf.WriteString(token.String())
	}
}

// imageSources はHTML中の<img>のsrcを出現順に重複なく返す。
func imageSources(body string) []string {
	var sources []string
	seen := make(map[string]bool)
	tokenizer := html.NewTokenizer(strings.NewReader(body))

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return sources
		case html.StartTagToken, html.SelfClosingTagToken:
			tn, hasAttr := tokenizer.TagName()
			if string(tn) != "img" {
				continue
			}
			for hasAttr {
				var key, val []byte
				key, val, hasAttr = tokenizer.TagAttr()
				src := string(val)
				if string(key) == "src" && src != "" && !seen[src] {
					seen[src] = true
					sources = append(sources, src)
				}
			}
		}
	}
}
