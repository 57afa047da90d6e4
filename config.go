package pubstatic

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the configuration file looked up in the project root.
const DefaultConfigFile = "pubstatic.yaml"

// SiteConfig holds all configuration for a pubstatic site.
type SiteConfig struct {
	TemplateFormats        []string `yaml:"templateFormats"`
	MarkdownTemplateEngine string   `yaml:"markdownTemplateEngine"` // "gotmpl" or "none"
	HTMLTemplateEngine     string   `yaml:"htmlTemplateEngine"`     // "gotmpl" or "none"
	Dir                    Dirs     `yaml:"dir"`
	PathPrefix             string   `yaml:"pathPrefix"` // prepended to every root-relative URL (default "/")

	Metadata     SiteMetadata      `yaml:"metadata"`
	Passthrough  []PassthroughCopy `yaml:"passthrough"`
	WatchTargets []string          `yaml:"watch"`
	Bundles      []BundleConfig    `yaml:"bundles"`

	SyntaxHighlight SyntaxHighlightConfig `yaml:"syntaxHighlight"`
	Feed            FeedConfig            `yaml:"feed"`
	Images          ImageConfig           `yaml:"images"`
	Sitemap         *bool                 `yaml:"sitemap"`
	DisablePlugins  []string              `yaml:"disablePlugins"`

	CacheDir string        `yaml:"cacheDir"` // build cache, relative to Root (default ".cache")
	Addr     string        `yaml:"addr"`     // dev server listen address (default ":8080")
	Debounce time.Duration `yaml:"debounce"` // rebuild debounce while serving (default 200ms)

	// Root is the project root every directory is resolved against. It is
	// the directory of the configuration file when loaded with LoadConfig.
	Root string `yaml:"-"`
}

// Dirs is the directory layout. Input and Output are relative to Root;
// Includes and Data are relative to Input.
type Dirs struct {
	Input    string `yaml:"input"`
	Includes string `yaml:"includes"`
	Data     string `yaml:"data"`
	Output   string `yaml:"output"`
}

// SiteMetadata describes the site for feeds, layouts and JSON-LD.
type SiteMetadata struct {
	Title    string `yaml:"title"`
	Subtitle string `yaml:"subtitle"`
	Language string `yaml:"language"`
	Base     string `yaml:"base"` // absolute site URL including the path prefix
	Author   Author `yaml:"author"`
}

// Author of the site.
type Author struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
	URL   string `yaml:"url"`
}

// PassthroughCopy copies From (relative to Root) to To (relative to the
// output dir). An empty To keeps From's path relative to the input dir.
type PassthroughCopy struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// BundleConfig declares a named asset bundle.
type BundleConfig struct {
	Name            string `yaml:"name"`
	ToFileDirectory string `yaml:"toFileDirectory"`
	Selector        string `yaml:"selector"` // "style" or "script"
}

// SyntaxHighlightConfig configures code highlighting.
type SyntaxHighlightConfig struct {
	Style         string            `yaml:"style"`
	PreAttributes map[string]string `yaml:"preAttributes"`
}

// FeedConfig configures the feed plugin.
type FeedConfig struct {
	Type       string          `yaml:"type"` // "atom" or "rss"
	OutputPath string          `yaml:"outputPath"`
	Stylesheet string          `yaml:"stylesheet"`
	Collection FeedCollection  `yaml:"collection"`
	Navigation *NavigationData `yaml:"navigation"`
}

// FeedCollection selects the items of a feed.
type FeedCollection struct {
	Name  string `yaml:"name"`
	Limit int    `yaml:"limit"` // 0 means no limit
}

// ImageConfig configures the image transform.
type ImageConfig struct {
	Formats     []string          `yaml:"formats"`
	Widths      []string          `yaml:"widths"` // pixel widths or "auto"
	FailOnError bool              `yaml:"failOnError"`
	Attributes  map[string]string `yaml:"imgAttributes"`
	Animated    bool              `yaml:"animated"`
	OutputDir   string            `yaml:"outputDir"`
}

// DefaultConfig returns the configuration of the stock blog.
func DefaultConfig() SiteConfig {
	sitemap := true
	return SiteConfig{
		TemplateFormats:        []string{"md", "html", "tmpl"},
		MarkdownTemplateEngine: "gotmpl",
		HTMLTemplateEngine:     "gotmpl",
		Dir: Dirs{
			Input:    "content",
			Includes: "../_includes",
			Data:     "../_data",
			Output:   "_site",
		},
		PathPrefix: "/",
		Metadata: SiteMetadata{
			Title:    "Blog Title",
			Subtitle: "This is a longer description about your blog.",
			Language: "en",
			Base:     "http://localhost:8080/",
			Author:   Author{Name: "Your Name"},
		},
		Passthrough: []PassthroughCopy{
			{From: "public/", To: "/"},
			{From: "content/feed/pretty-atom-feed.xsl"},
		},
		WatchTargets: []string{
			"css/**/*.css",
			"content/**/*.{svg,webp,png,jpg,jpeg,gif}",
		},
		Bundles: []BundleConfig{
			{Name: "css", ToFileDirectory: "dist", Selector: "style"},
			{Name: "js", ToFileDirectory: "dist", Selector: "script"},
		},
		SyntaxHighlight: SyntaxHighlightConfig{
			PreAttributes: map[string]string{"tabindex": "0"},
		},
		Feed: FeedConfig{
			Type:       "atom",
			OutputPath: "/feed/feed.xml",
			Stylesheet: "pretty-atom-feed.xsl",
			Collection: FeedCollection{Name: "posts", Limit: 10},
			Navigation: &NavigationData{Key: "Feed", Order: 4},
		},
		Images: ImageConfig{
			Formats:     []string{"avif", "webp", "auto"},
			Widths:      []string{"auto"},
			FailOnError: false,
			Attributes:  map[string]string{"loading": "lazy", "decoding": "async"},
			Animated:    true,
			OutputDir:   "img",
		},
		Sitemap: &sitemap,
	}
}

// LoadConfig reads a YAML configuration on top of DefaultConfig. A missing
// file yields the defaults rooted at the file's directory.
func LoadConfig(path string) (SiteConfig, error) {
	cfg := DefaultConfig()
	cfg.Root = filepath.Dir(path)

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		slog.Debug("no configuration file, using defaults", "path", path)
	case err != nil:
		return cfg, fmt.Errorf("pubstatic: read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("pubstatic: parse config %s: %w", path, err)
		}
	}

	if v := os.Getenv("SITE_URL"); v != "" {
		cfg.Metadata.Base = v
	}
	cfg.Dir.Output = EnvOr("PUBSTATIC_OUTPUT", cfg.Dir.Output)
	cfg.setDefaults()
	return cfg, cfg.Validate()
}

func (c *SiteConfig) setDefaults() {
	def := DefaultConfig()
	if len(c.TemplateFormats) == 0 {
		c.TemplateFormats = def.TemplateFormats
	}
	for i, f := range c.TemplateFormats {
		c.TemplateFormats[i] = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(f)), ".")
	}
	if c.MarkdownTemplateEngine == "" {
		c.MarkdownTemplateEngine = def.MarkdownTemplateEngine
	}
	if c.HTMLTemplateEngine == "" {
		c.HTMLTemplateEngine = def.HTMLTemplateEngine
	}
	if c.Dir.Input == "" {
		c.Dir.Input = "."
	}
	if c.Dir.Includes == "" {
		c.Dir.Includes = "_includes"
	}
	if c.Dir.Data == "" {
		c.Dir.Data = "_data"
	}
	if c.Dir.Output == "" {
		c.Dir.Output = def.Dir.Output
	}
	c.PathPrefix = normalizePathPrefix(c.PathPrefix)
	if c.Metadata.Language == "" {
		c.Metadata.Language = "en"
	}
	if c.Metadata.Base != "" && !strings.HasSuffix(c.Metadata.Base, "/") {
		c.Metadata.Base += "/"
	}
	if c.Feed.Type == "" {
		c.Feed.Type = "atom"
	}
	if c.Feed.OutputPath == "" {
		c.Feed.OutputPath = def.Feed.OutputPath
	}
	if c.Feed.Collection.Name == "" {
		c.Feed.Collection.Name = def.Feed.Collection.Name
	}
	if len(c.Images.Formats) == 0 {
		c.Images.Formats = []string{"auto"}
	}
	if len(c.Images.Widths) == 0 {
		c.Images.Widths = []string{"auto"}
	}
	if c.Images.OutputDir == "" {
		c.Images.OutputDir = def.Images.OutputDir
	}
	if c.Sitemap == nil {
		c.Sitemap = def.Sitemap
	}
	if c.CacheDir == "" {
		c.CacheDir = ".cache"
	}
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.Debounce == 0 {
		c.Debounce = 200 * time.Millisecond
	}
	if c.Root == "" {
		c.Root = "."
	}
}

// Validate reports malformed options.
func (c *SiteConfig) Validate() error {
	var errs []error
	for _, e := range []string{c.MarkdownTemplateEngine, c.HTMLTemplateEngine} {
		if e != "gotmpl" && e != "none" {
			errs = append(errs, fmt.Errorf("unknown template engine %q", e))
		}
	}
	for _, f := range c.Images.Formats {
		if _, ok := knownImageFormats[strings.ToLower(f)]; !ok {
			errs = append(errs, fmt.Errorf("unknown image format %q", f))
		}
	}
	if _, err := parseWidths(c.Images.Widths); err != nil {
		errs = append(errs, err)
	}
	seen := make(map[string]struct{})
	for _, b := range c.Bundles {
		if b.Name == "" || b.ToFileDirectory == "" {
			errs = append(errs, fmt.Errorf("bundle %q needs a name and toFileDirectory", b.Name))
		}
		if b.Selector != "style" && b.Selector != "script" {
			errs = append(errs, fmt.Errorf("bundle %q: unsupported selector %q", b.Name, b.Selector))
		}
		if _, dup := seen[b.Name]; dup {
			errs = append(errs, fmt.Errorf("bundle %q declared twice", b.Name))
		}
		seen[b.Name] = struct{}{}
	}
	if c.Feed.Type != "atom" && c.Feed.Type != "rss" {
		errs = append(errs, fmt.Errorf("unknown feed type %q", c.Feed.Type))
	}
	if c.Feed.Collection.Limit < 0 {
		errs = append(errs, fmt.Errorf("feed collection limit must not be negative"))
	}
	for _, p := range c.Passthrough {
		if strings.TrimSpace(p.From) == "" {
			errs = append(errs, fmt.Errorf("passthrough entry without source"))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("pubstatic: invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// InputDir returns the absolute-or-root-relative input directory.
func (c *SiteConfig) InputDir() string {
	return filepath.Join(c.Root, c.Dir.Input)
}

// IncludesDir is resolved against the input directory.
func (c *SiteConfig) IncludesDir() string {
	return filepath.Join(c.InputDir(), c.Dir.Includes)
}

// DataDir is resolved against the input directory.
func (c *SiteConfig) DataDir() string {
	return filepath.Join(c.InputDir(), c.Dir.Data)
}

// OutputDir returns the output directory.
func (c *SiteConfig) OutputDir() string {
	return filepath.Join(c.Root, c.Dir.Output)
}

func (c *SiteConfig) pluginEnabled(name string) bool {
	for _, d := range c.DisablePlugins {
		if strings.EqualFold(d, name) {
			return false
		}
	}
	return true
}

func normalizePathPrefix(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || p == "/" {
		return "/"
	}
	return "/" + strings.Trim(p, "/") + "/"
}

// Option configures additional Site behavior.
type Option func(*Site)

// WithMode fixes the run mode instead of reading it from the environment.
func WithMode(m RunMode) Option {
	return func(s *Site) {
		s.mode = m
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Site) {
		s.logger = l
	}
}

// WithClock replaces the wall clock used by shortcodes and build stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Site) {
		s.clock = newBuildClock(now)
	}
}

// WithPlugins registers additional plugins after the built-in ones.
func WithPlugins(plugins ...Plugin) Option {
	return func(s *Site) {
		s.extraPlugins = append(s.extraPlugins, plugins...)
	}
}

// WithPreprocessor registers an extra preprocessor after the drafts filter.
func WithPreprocessor(name, formats string, fn PreprocessFunc) Option {
	return func(s *Site) {
		s.pendingPreprocessors = append(s.pendingPreprocessors, pendingPreprocessor{name, formats, fn})
	}
}

// WithoutCache disables the SQLite build cache.
func WithoutCache() Option {
	return func(s *Site) {
		s.noCache = true
	}
}

// EnvOr returns the value of the environment variable key, or fallback if empty.
func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
