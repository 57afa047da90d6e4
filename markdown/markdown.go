// Package markdown renders Markdown to HTML with goldmark and exposes the
// result as a templ component.
package markdown

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"io"
	"net/url"
	"strings"

	"github.com/a-h/templ"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

// Options configures a Renderer.
type Options struct {
	// Highlight enables chroma syntax highlighting of fenced code blocks.
	Highlight bool
	// Style is the chroma style name; empty uses CSS classes instead of
	// inline styles.
	Style string
	// Typographer turns straight quotes and dashes into typographic ones.
	Typographer bool
	// Unsafe allows raw HTML in the source to pass through.
	Unsafe bool
}

// DefaultOptions is what the site pipeline uses unless a plugin changes it.
var DefaultOptions = Options{Unsafe: true}

// Renderer converts Markdown to HTML. It is safe for concurrent use.
type Renderer struct {
	md goldmark.Markdown
}

// New builds a Renderer for opts.
func New(opts Options) *Renderer {
	exts := []goldmark.Extender{extension.GFM, extension.Footnote}
	if opts.Typographer {
		exts = append(exts, extension.Typographer)
	}
	if opts.Highlight {
		hl := []highlighting.Option{highlighting.WithGuessLanguage(false)}
		if opts.Style != "" {
			hl = append(hl, highlighting.WithStyle(opts.Style))
		} else {
			hl = append(hl, highlighting.WithFormatOptions(chromahtml.WithClasses(true)))
		}
		exts = append(exts, highlighting.NewHighlighting(hl...))
	}

	var rendererOpts []goldmark.Option
	if opts.Unsafe {
		rendererOpts = append(rendererOpts, goldmark.WithRendererOptions(gmhtml.WithUnsafe()))
	}
	md := goldmark.New(append(rendererOpts,
		goldmark.WithExtensions(exts...),
		goldmark.WithParserOptions(parser.WithAttribute()),
	)...)
	return &Renderer{md: md}
}

// Render converts src to HTML.
func (r *Renderer) Render(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.md.Convert(src, &buf); err != nil {
		return nil, fmt.Errorf("markdown: convert: %w", err)
	}
	return buf.Bytes(), nil
}

var defaultRenderer = New(DefaultOptions)

// Markdown returns a templ.Component that renders md as HTML.
func Markdown(content string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var buf bytes.Buffer
		if err := RenderMarkdown(&buf, content); err != nil {
			return err
		}
		_, err := w.Write(buf.Bytes())
		return err
	})
}

// RenderMarkdown writes the HTML representation of md to buf using the
// default options.
func RenderMarkdown(buf *bytes.Buffer, md string) error {
	out, err := defaultRenderer.Render([]byte(md))
	if err != nil {
		return err
	}
	buf.Write(out)
	return nil
}

// SafeURL validates and sanitizes a URL for use in HTML attributes.
func SafeURL(raw string) string {
	val := strings.TrimSpace(html.UnescapeString(raw))
	if val == "" {
		return ""
	}
	if strings.HasPrefix(val, "/") || strings.HasPrefix(val, "#") {
		return html.EscapeString(val)
	}
	parsed, err := url.Parse(val)
	if err != nil || parsed.Scheme == "" {
		return ""
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https", "mailto", "tel":
		return html.EscapeString(val)
	default:
		return ""
	}
}
