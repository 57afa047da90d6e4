package pubstatic

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileWatchGlob(t *testing.T) {
	tests := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"css/**/*.css", "css/site.css", true},
		{"css/**/*.css", "css/vendor/reset.css", true},
		{"css/**/*.css", "css/site.scss", false},
		{"./css/*.css", "css/site.css", true},
		{"css/*.css", "css/vendor/reset.css", false},
		{"content/**/*.{svg,png,jpg}", "content/blog/img/a.png", true},
		{"content/**/*.{svg,png,jpg}", "content/a.svg", true},
		{"content/**/*.{svg,png,jpg}", "content/a.gif", false},
	}
	for _, tt := range tests {
		gs, err := compileWatchGlob(tt.pattern)
		require.NoError(t, err)
		matched := false
		for _, g := range gs {
			matched = matched || g.Match(tt.path)
		}
		assert.Equal(t, tt.want, matched, "%s ~ %s", tt.pattern, tt.path)
	}
}

func TestGlobBase(t *testing.T) {
	assert.Equal(t, "css", globBase("css/**/*.css"))
	assert.Equal(t, "content/blog", globBase("content/blog/*.{png,jpg}"))
	assert.Equal(t, ".", globBase("*.css"))
	assert.Equal(t, "assets", globBase("assets/logo.svg"))
}

func TestShouldIgnoreEvent(t *testing.T) {
	for _, name := range []string{".hidden", "post.md~", ".post.md.swp", "post.swx", "#post.md#", "/x/.DS_Store"} {
		assert.True(t, shouldIgnoreEvent(name), name)
	}
	for _, name := range []string{"post.md", "/x/site.css", "a#b"} {
		assert.False(t, shouldIgnoreEvent(name), name)
	}
}

func TestWatcherRelevant(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"content/index.md": "hi",
		"css/site.css":     "body{}",
	})
	s := newTestSite(t, root, nil)
	config := filepath.Join(root, "pubstatic.yaml")
	w, err := s.NewWatcher(config)
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })

	relevant := []string{
		filepath.Join(root, "content", "index.md"),
		filepath.Join(root, "content", "blog", "new.md"),
		filepath.Join(root, "_includes", "layouts", "base.html"),
		filepath.Join(root, "_data", "links.yaml"),
		filepath.Join(root, "css", "site.css"),
		filepath.Join(root, "content", "img", "a.png"),
		config,
	}
	for _, p := range relevant {
		assert.True(t, w.Relevant(p), p)
	}

	irrelevant := []string{
		filepath.Join(root, "_site", "index.html"),
		filepath.Join(root, ".cache", "pubstatic.db"),
		filepath.Join(root, "content", ".index.md.swp"),
		filepath.Join(root, "README.md"),
		filepath.Join(root, "css", "site.scss"),
	}
	for _, p := range irrelevant {
		assert.False(t, w.Relevant(p), p)
	}
}

func TestWatcherRebuildsOnChange(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"content/index.md": "---\nlayout: none\n---\nv1"})
	s := newTestSite(t, root, func(c *SiteConfig) {
		c.Debounce = 20 * time.Millisecond
	}, WithMode(RunModeWatch))
	_, err := s.Build(context.Background())
	require.NoError(t, err)

	w, err := s.NewWatcher("")
	require.NoError(t, err)
	builds := make(chan error, 4)
	w.OnBuild = func(_ *BuildResult, err error) { builds <- err }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.NoError(t, os.WriteFile(filepath.Join(root, "content", "index.md"), []byte("---\nlayout: none\n---\nv2 changed"), 0o644))

	select {
	case err := <-builds:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("no rebuild after change")
	}
	assert.Equal(t, "<p>v2 changed</p>\n", readOutput(t, root, "index.html"))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatcherStopsWhenClosed(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"content/index.md": "---\nlayout: none\n---\nv1"})
	s := newTestSite(t, root, func(c *SiteConfig) {
		c.Debounce = 300 * time.Millisecond
	}, WithMode(RunModeWatch))

	w, err := s.NewWatcher("")
	require.NoError(t, err)
	builds := make(chan error, 4)
	w.OnBuild = func(_ *BuildResult, err error) { builds <- err }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// A change is pending in the debounce window when the watcher closes.
	require.NoError(t, os.WriteFile(filepath.Join(root, "content", "index.md"), []byte("---\nlayout: none\n---\nv2"), 0o644))
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, w.Close())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop after close")
	}

	select {
	case <-builds:
		t.Fatal("build ran after the watcher stopped")
	case <-time.After(600 * time.Millisecond):
	}
}
