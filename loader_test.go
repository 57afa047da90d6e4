package pubstatic

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeFiles creates files below root; keys are slash separated paths.
func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

func TestPermalink(t *testing.T) {
	tests := []struct {
		input     string
		data      Metadata
		url, path string
	}{
		{"index.md", nil, "/", "index.html"},
		{"about.md", nil, "/about/", "about/index.html"},
		{"blog/first-post.md", nil, "/blog/first-post/", "blog/first-post/index.html"},
		{"blog/index.md", nil, "/blog/", "blog/index.html"},
		{"404.md", Metadata{"permalink": "404.html"}, "/404.html", "404.html"},
		{"x.md", Metadata{"permalink": "/custom/"}, "/custom/", "custom/index.html"},
		{"x.md", Metadata{"permalink": "/custom/index.html"}, "/custom/", "custom/index.html"},
		{"x.md", Metadata{"permalink": "/"}, "/", "index.html"},
		{"x.md", Metadata{"permalink": "/../../etc/passwd"}, "/etc/passwd", "etc/passwd"},
		{"x.md", Metadata{"permalink": false}, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			it := &Item{InputPath: tt.input, Format: "md", Data: tt.data}
			url, out := permalink(it)
			assert.Equal(t, tt.url, url)
			assert.Equal(t, tt.path, out)
		})
	}
}

func TestFileSlug(t *testing.T) {
	assert.Equal(t, "first-post", fileSlug(&Item{InputPath: "blog/first-post.md", Format: "md"}))
	assert.Equal(t, "blog", fileSlug(&Item{InputPath: "blog/index.md", Format: "md"}))
	assert.Equal(t, "", fileSlug(&Item{InputPath: "index.md", Format: "md"}))
}

func TestItemDate(t *testing.T) {
	mod := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	when := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, when, itemDate(Metadata{"date": when}, mod))
	assert.Equal(t, when, itemDate(Metadata{"date": "2024-03-05"}, mod))
	assert.True(t, when.Add(90*time.Minute).Equal(itemDate(Metadata{"date": "2024-03-05 01:30"}, mod)))
	assert.Equal(t, mod, itemDate(Metadata{"date": "soon"}, mod))
	assert.Equal(t, mod, itemDate(Metadata{}, mod))
}

func TestParseFrontMatter(t *testing.T) {
	data, body, err := parseFrontMatter([]byte("---\ntitle: Hello\ndraft: true\neleventyNavigation:\n  key: Home\n---\n# Body\n"))
	require.NoError(t, err)
	assert.Equal(t, "Hello", data.String("title"))
	assert.True(t, data.Bool("draft"))
	assert.Equal(t, "Home", data.Map("eleventyNavigation").String("key"))
	assert.Equal(t, "# Body\n", string(body))

	data, body, err = parseFrontMatter([]byte("no frontmatter"))
	require.NoError(t, err)
	assert.Empty(t, data)
	assert.Equal(t, "no frontmatter", string(body))
}

func TestApplyDirectoryData(t *testing.T) {
	dirData := map[string]Metadata{
		".":         {"author": "root", "tags": "all-content"},
		"blog":      {"layout": "post", "tags": "posts"},
		"blog/2024": {"layout": "post-2024"},
	}
	out := applyDirectoryData("blog/2024/x.md", Metadata{"title": "X", "tags": "go"}, dirData)

	assert.Equal(t, "root", out.String("author"))
	assert.Equal(t, "post-2024", out.String("layout"))
	assert.Equal(t, "X", out.String("title"))
	assert.ElementsMatch(t, []string{"all-content", "posts", "go"}, out.Strings("tags"))
}

func newTestSite(t *testing.T, root string, mutate func(*SiteConfig), opts ...Option) *Site {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Root = root
	cfg.Metadata.Base = "https://example.com/"
	if mutate != nil {
		mutate(&cfg)
	}
	opts = append([]Option{WithoutCache(), WithMode(RunModeBuild)}, opts...)
	s, err := New(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"content/index.md":            "---\ntitle: Home\n---\nhi",
		"content/blog/blog.data.yaml": "tags: posts\nlayout: post\n",
		"content/blog/first.md":       "---\ntitle: First\ndate: 2024-01-02\n---\nbody",
		"content/blog/notes.txt":      "not a template",
		"content/.hidden/secret.md":   "---\ntitle: Secret\n---\n",
		"content/page.html":           "<p>raw</p>",
		"_includes/layouts/base.html": "{{ .content }}",
		"_data/metadata.yaml":         "title: Data",
	})
	s := newTestSite(t, root, nil)

	items, err := s.discover()
	require.NoError(t, err)
	require.Equal(t, []string{"blog/first.md", "index.md", "page.html"}, inputPaths(items))

	first := items[0]
	assert.Equal(t, "md", first.Format)
	assert.Equal(t, "post", first.Data.String("layout"))
	assert.Equal(t, []string{"posts"}, first.Tags())
	assert.True(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC).Equal(first.Date), "date = %v", first.Date)
	assert.Equal(t, 3, s.cache.Len())

	global, err := s.loadGlobalData()
	require.NoError(t, err)
	assert.Equal(t, "Data", global.Map("metadata").String("title"))
}

func TestDiscoverUsesCacheUntilFileChanges(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"content/a.md": "---\ntitle: One\n---\n"})
	s := newTestSite(t, root, nil)

	items, err := s.discover()
	require.NoError(t, err)
	assert.Equal(t, "One", items[0].Title())

	p := filepath.Join(root, "content", "a.md")
	require.NoError(t, os.WriteFile(p, []byte("---\ntitle: Two, longer\n---\n"), 0o644))
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(p, later, later))

	items, err = s.discover()
	require.NoError(t, err)
	assert.Equal(t, "Two, longer", items[0].Title())
}

func TestTemplateFormat(t *testing.T) {
	s := &Site{Config: SiteConfig{TemplateFormats: []string{"md", "html", "11ty.html"}}}

	f, ok := s.templateFormat("post.MD")
	assert.True(t, ok)
	assert.Equal(t, "md", f)

	f, ok = s.templateFormat("page.11ty.html")
	assert.True(t, ok)
	assert.Equal(t, "11ty.html", f)

	_, ok = s.templateFormat("style.css")
	assert.False(t, ok)
}
