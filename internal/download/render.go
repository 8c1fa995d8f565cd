package download

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/hitoshi/fluxreader/internal/model"
)

var pageTemplate = template.Must(template.New("entry").Parse(`<!DOCTYPE html>
<html lang="ja">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta name="referrer" content="no-referrer">
<title>{{.Title}}</title>
<style>
body { max-width: 42em; margin: 2em auto; padding: 0 1em; font-family: sans-serif; line-height: 1.7; }
img { max-width: 100%; height: auto; }
pre { overflow-x: auto; }
.meta { color: #666; font-size: 0.9em; }
</style>
</head>
<body>
<article data-entry-id="{{.ID}}">
<header>
<h1>{{if .URL}}<a href="{{.URL}}" target="_blank" rel="noopener noreferrer">{{.Title}}</a>{{else}}{{.Title}}{{end}}</h1>
<p class="meta">{{if .FeedTitle}}{{.FeedTitle}}{{end}}{{if .Author}} / {{.Author}}{{end}}{{if .Published}} / <time datetime="{{.PublishedISO}}">{{.Published}}</time>{{end}}</p>
</header>
<div class="content">
{{.Content}}
</div>
</article>
</body>
</html>
`))

type pageData struct {
	ID           int64
	Title        string
	URL          string
	FeedTitle    string
	Author       string
	Published    string
	PublishedISO string
	Content      template.HTML
}

// renderPage は記事の閲覧用HTMLを生成する。
// contentはサニタイズ済みであることを前提とする。
func renderPage(entry *model.Entry, content string) ([]byte, error) {
	data := pageData{
		ID:      entry.ID,
		Title:   entry.Title,
		URL:     entry.URL,
		Author:  entry.Author,
		Content: template.HTML(content),
	}
	if data.Title == "" {
		data.Title = fmt.Sprintf("Entry %d", entry.ID)
	}
	if entry.Feed != nil {
		data.FeedTitle = entry.Feed.Title
	}
	if !entry.PublishedAt.IsZero() {
		data.Published = entry.PublishedAt.Local().Format("2006-01-02 15:04")
		data.PublishedISO = entry.PublishedAt.Format(time.RFC3339)
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render entry %d: %w", entry.ID, err)
	}
	return buf.Bytes(), nil
}
