package pubstatic

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.setDefaults()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, []string{"md", "html", "tmpl"}, cfg.TemplateFormats)
	assert.Equal(t, "/", cfg.PathPrefix)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 200*time.Millisecond, cfg.Debounce)
	assert.Equal(t, filepath.Join(".", "_includes"), cfg.IncludesDir())
	assert.Equal(t, filepath.Join(".", "_data"), cfg.DataDir())
	assert.Equal(t, "content", cfg.InputDir())
	assert.True(t, *cfg.Sitemap)
}

func TestSetDefaultsNormalizes(t *testing.T) {
	cfg := SiteConfig{
		TemplateFormats: []string{" .MD ", "html"},
		PathPrefix:      "sub",
		Metadata:        SiteMetadata{Base: "https://example.com/sub"},
	}
	cfg.setDefaults()

	assert.Equal(t, []string{"md", "html"}, cfg.TemplateFormats)
	assert.Equal(t, "/sub/", cfg.PathPrefix)
	assert.Equal(t, "https://example.com/sub/", cfg.Metadata.Base)
	assert.Equal(t, "en", cfg.Metadata.Language)
	assert.Equal(t, "atom", cfg.Feed.Type)
	assert.Equal(t, []string{"auto"}, cfg.Images.Formats)
	assert.Equal(t, ".", cfg.Dir.Input)
	assert.Equal(t, ".", cfg.Root)
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := DefaultConfig()
	cfg.setDefaults()
	cfg.MarkdownTemplateEngine = "liquid"
	cfg.Images.Formats = []string{"bmp"}
	cfg.Images.Widths = []string{"wide"}
	cfg.Bundles = append(cfg.Bundles, BundleConfig{Name: "css", ToFileDirectory: "x", Selector: "link"})
	cfg.Feed.Type = "json"
	cfg.Passthrough = []PassthroughCopy{{To: "x"}}

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{
		`unknown template engine "liquid"`,
		`unknown image format "bmp"`,
		`invalid image width "wide"`,
		`unsupported selector "link"`,
		`bundle "css" declared twice`,
		`unknown feed type "json"`,
		`passthrough entry without source`,
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultConfigFile)
	require.NoError(t, os.WriteFile(path, []byte(`
pathPrefix: /blog
metadata:
  title: My Blog
  base: https://example.com/blog
feed:
  type: rss
disablePlugins: [sitemap]
debounce: 1s
`), 0o644))
	t.Setenv("SITE_URL", "")
	t.Setenv("PUBSTATIC_OUTPUT", "")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.Root)
	assert.Equal(t, "/blog/", cfg.PathPrefix)
	assert.Equal(t, "My Blog", cfg.Metadata.Title)
	assert.Equal(t, "https://example.com/blog/", cfg.Metadata.Base)
	assert.Equal(t, "rss", cfg.Feed.Type)
	assert.Equal(t, time.Second, cfg.Debounce)
	assert.False(t, cfg.pluginEnabled("sitemap"))
	assert.True(t, cfg.pluginEnabled("feed"))
	assert.Equal(t, "content", cfg.Dir.Input, "unset keys keep the defaults")
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SITE_URL", "https://prod.example.com")
	t.Setenv("PUBSTATIC_OUTPUT", "public_html")

	cfg, err := LoadConfig(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "https://prod.example.com/", cfg.Metadata.Base)
	assert.Equal(t, filepath.Join(dir, "public_html"), cfg.OutputDir())
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("metadata: [\n"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestEnvOr(t *testing.T) {
	t.Setenv("PUBSTATIC_TEST_VAR", "")
	assert.Equal(t, "fallback", EnvOr("PUBSTATIC_TEST_VAR", "fallback"))
	t.Setenv("PUBSTATIC_TEST_VAR", "set")
	assert.Equal(t, "set", EnvOr("PUBSTATIC_TEST_VAR", "fallback"))
}
