package pubstatic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func applyStage(t *testing.T, st Stage, page *Page, content string) string {
	t.Helper()
	doc, err := parseDocument(content)
	require.NoError(t, err)
	require.NoError(t, st.Apply(context.Background(), page, doc.root))
	out, err := doc.render()
	require.NoError(t, err)
	return out
}

type namedStage string

func (s namedStage) Name() string                                 { return string(s) }
func (namedStage) Apply(context.Context, *Page, *html.Node) error { return nil }

func TestDefaultStageOrder(t *testing.T) {
	s := newTestSite(t, t.TempDir(), nil)
	assert.Equal(t, []string{"syntax-highlight", "input-path-to-url", "image", "id-attribute", "bundle", "html-base"}, s.StageNames())
	assert.Equal(t, []string{
		"syntax-highlight", "navigation", "html-base", "input-path-to-url", "feed",
		"image", "filters", "id-attribute", "bundle", "sitemap",
	}, s.Plugins())
}

func TestSortStagesKeepsHTMLBaseLast(t *testing.T) {
	stages := []Stage{
		namedStage("html-base"),
		namedStage("custom-a"),
		namedStage("bundle"),
		namedStage("custom-b"),
		namedStage("syntax-highlight"),
	}
	sortStages(stages)
	names := make([]string, len(stages))
	for i, s := range stages {
		names[i] = s.Name()
	}
	assert.Equal(t, []string{"syntax-highlight", "bundle", "custom-a", "custom-b", "html-base"}, names)
}

func TestParseDocumentFragmentRoundTrip(t *testing.T) {
	doc, err := parseDocument(`<h1>Title</h1><p>Body &amp; more</p>`)
	require.NoError(t, err)
	assert.True(t, doc.fragment)
	out, err := doc.render()
	require.NoError(t, err)
	assert.Equal(t, `<h1>Title</h1><p>Body &amp; more</p>`, out)

	doc, err = parseDocument("<!doctype html><html><head></head><body><p>x</p></body></html>")
	require.NoError(t, err)
	assert.False(t, doc.fragment)
}

func TestHTMLBaseStage(t *testing.T) {
	st := htmlBaseStage{prefix: "/sub/"}
	out := applyStage(t, st, nil, `<a href="/blog/">b</a><a href="https://x.org/">x</a><a href="rel/">r</a>`+
		`<img src="/img/a.png" srcset="/img/a-100.png 100w, /img/a-200.png 200w"><link href="//cdn.example.com/x.css">`)

	assert.Contains(t, out, `href="/sub/blog/"`)
	assert.Contains(t, out, `href="https://x.org/"`)
	assert.Contains(t, out, `href="rel/"`)
	assert.Contains(t, out, `src="/sub/img/a.png"`)
	assert.Contains(t, out, `srcset="/sub/img/a-100.png 100w, /sub/img/a-200.png 200w"`)
	assert.Contains(t, out, `href="//cdn.example.com/x.css"`)

	unchanged := applyStage(t, htmlBaseStage{prefix: "/"}, nil, `<a href="/blog/">b</a>`)
	assert.Equal(t, `<a href="/blog/">b</a>`, unchanged)
}

func TestIDAttributeStage(t *testing.T) {
	out := applyStage(t, idAttributeStage{}, nil,
		`<h2>Hello World</h2><h2>Hello World</h2><h3 id="keep">Kept</h3><h2 id="hello-world-2">Taken</h2>`)

	assert.Contains(t, out, `<h2 id="hello-world">Hello World</h2>`)
	assert.Contains(t, out, `<h2 id="hello-world-3">Hello World</h2>`)
	assert.Contains(t, out, `<h3 id="keep">Kept</h3>`)
}

func TestPreAttributesStage(t *testing.T) {
	st := preAttributesStage{attrs: map[string]string{"tabindex": "0"}}
	out := applyStage(t, st, nil, `<pre><code>x</code></pre><pre tabindex="-1">y</pre>`)
	assert.Equal(t, `<pre tabindex="0"><code>x</code></pre><pre tabindex="-1">y</pre>`, out)
}

func TestInputPathStage(t *testing.T) {
	s := newTestSite(t, t.TempDir(), nil)
	run := newBuildRun(context.Background(), s, &BuildResult{}, s.logger)
	for _, it := range []*Item{
		{InputPath: "blog/first.md", Format: "md", URL: "/blog/first/"},
		{InputPath: "about.md", Format: "md", URL: "/about/"},
	} {
		run.byInput[it.InputPath] = it
	}
	page := &Page{Item: &Item{InputPath: "blog/second.md", Format: "md"}, BuildContext: run.context}

	out := applyStage(t, inputPathStage{}, page,
		`<a href="first.md#intro">1</a><a href="/content/about.md">2</a><a href="/about.md">3</a><a href="missing.md">4</a><a href="style.css">5</a>`)

	assert.Contains(t, out, `href="/blog/first/#intro"`)
	assert.Contains(t, out, `<a href="/about/">2</a>`)
	assert.Contains(t, out, `<a href="/about/">3</a>`)
	assert.Contains(t, out, `href="missing.md"`)
	assert.Contains(t, out, `href="style.css"`)
}

func TestIsDocument(t *testing.T) {
	assert.True(t, isDocument("<!DOCTYPE html><html>"))
	assert.True(t, isDocument("  <html lang=en>"))
	assert.False(t, isDocument("<p>fragment</p>"))
	assert.False(t, isDocument(""))
}
