package pubstatic

import (
	"fmt"
	"maps"

	"github.com/eringen/pubstatic/markdown"
)

// Plugin contributes preprocessors, shortcodes, filters, transform stages,
// generators or navigation entries to a Site. Options are captured when the
// plugin value is built and never change afterwards.
type Plugin interface {
	Name() string
	Register(r *Registry) error
}

// Registry is what a plugin sees of the Site while it registers.
type Registry struct {
	site   *Site
	plugin string
}

// Config returns a copy of the site configuration.
func (r *Registry) Config() SiteConfig {
	return r.site.Config
}

// AddPreprocessor registers a preprocessor; see Preprocessors.Add.
func (r *Registry) AddPreprocessor(name, formats string, fn PreprocessFunc) error {
	return r.site.preprocessors.Add(name, formats, fn)
}

// AddShortcode exposes fn to templates as name.
func (r *Registry) AddShortcode(name string, fn any) error {
	return r.site.shortcodes.Add(name, fn)
}

// AddFilter exposes fn to templates as name. Filters and shortcodes share
// one namespace.
func (r *Registry) AddFilter(name string, fn any) error {
	if _, ok := r.site.filters[name]; ok {
		return fmt.Errorf("pubstatic: filter %q already registered", name)
	}
	if _, ok := r.site.shortcodes.Lookup(name); ok {
		return fmt.Errorf("pubstatic: filter %q clashes with a shortcode", name)
	}
	r.site.filters[name] = fn
	return nil
}

// AddTransform adds an HTML transform stage. Built-in stage names take
// their fixed slot in stageOrder; other stages run afterwards in
// registration order.
func (r *Registry) AddTransform(st Stage) error {
	for _, existing := range r.site.stages {
		if existing.Name() == st.Name() {
			return fmt.Errorf("pubstatic: transform %q already registered", st.Name())
		}
	}
	r.site.stages = append(r.site.stages, st)
	sortStages(r.site.stages)
	return nil
}

// AddGenerator adds a generator run after every item is written.
func (r *Registry) AddGenerator(g Generator) error {
	for _, existing := range r.site.generators {
		if existing.Name() == g.Name() {
			return fmt.Errorf("pubstatic: generator %q already registered", g.Name())
		}
	}
	r.site.generators = append(r.site.generators, g)
	return nil
}

// AddNavigation adds a navigation entry that no item declares.
func (r *Registry) AddNavigation(nd NavigationData) {
	r.site.navExtra = append(r.site.navExtra, nd)
}

// ConfigureMarkdown adjusts the markdown renderer options.
func (r *Registry) ConfigureMarkdown(fn func(*markdown.Options)) {
	fn(&r.site.mdOptions)
}

func (s *Site) use(p Plugin) error {
	if !s.Config.pluginEnabled(p.Name()) {
		s.logger.Debug("plugin disabled", "plugin", p.Name())
		return nil
	}
	for _, name := range s.plugins {
		if name == p.Name() {
			return fmt.Errorf("pubstatic: plugin %q already registered", name)
		}
	}
	if err := p.Register(&Registry{site: s, plugin: p.Name()}); err != nil {
		return fmt.Errorf("pubstatic: plugin %s: %w", p.Name(), err)
	}
	s.plugins = append(s.plugins, p.Name())
	return nil
}

// Plugins returns the names of the registered plugins in registration order.
func (s *Site) Plugins() []string {
	return append([]string(nil), s.plugins...)
}

// defaultPlugins are registered in this order by New.
func defaultPlugins(cfg SiteConfig) []Plugin {
	return []Plugin{
		syntaxHighlightPlugin{style: cfg.SyntaxHighlight.Style, preAttributes: maps.Clone(cfg.SyntaxHighlight.PreAttributes)},
		navigationPlugin{},
		htmlBasePlugin{prefix: cfg.PathPrefix},
		inputPathToURLPlugin{},
		feedPlugin{opts: cloneFeedConfig(cfg.Feed), meta: cfg.Metadata},
		imagePlugin{opts: cloneImageConfig(cfg.Images)},
		filtersPlugin{},
		idAttributePlugin{},
		bundlePlugin{bundles: append([]BundleConfig(nil), cfg.Bundles...)},
		sitemapPlugin{enabled: cfg.Sitemap != nil && *cfg.Sitemap, base: cfg.Metadata.Base},
	}
}

func cloneFeedConfig(f FeedConfig) FeedConfig {
	if f.Navigation != nil {
		nav := *f.Navigation
		f.Navigation = &nav
	}
	return f
}

func cloneImageConfig(c ImageConfig) ImageConfig {
	c.Formats = append([]string(nil), c.Formats...)
	c.Widths = append([]string(nil), c.Widths...)
	c.Attributes = maps.Clone(c.Attributes)
	return c
}

type syntaxHighlightPlugin struct {
	style         string
	preAttributes map[string]string
}

func (syntaxHighlightPlugin) Name() string { return "syntax-highlight" }

func (p syntaxHighlightPlugin) Register(r *Registry) error {
	r.ConfigureMarkdown(func(o *markdown.Options) {
		o.Highlight = true
		o.Style = p.style
	})
	return r.AddTransform(preAttributesStage{attrs: p.preAttributes})
}

type navigationPlugin struct{}

func (navigationPlugin) Name() string { return "navigation" }

// Register turns on the navigation tree. The navigation template func is
// always bound; with the plugin disabled it returns nothing.
func (navigationPlugin) Register(r *Registry) error {
	r.site.navigationEnabled = true
	return nil
}

type htmlBasePlugin struct{ prefix string }

func (htmlBasePlugin) Name() string { return "html-base" }

func (p htmlBasePlugin) Register(r *Registry) error {
	return r.AddTransform(htmlBaseStage{prefix: p.prefix})
}

type inputPathToURLPlugin struct{}

func (inputPathToURLPlugin) Name() string { return "input-path-to-url" }

func (inputPathToURLPlugin) Register(r *Registry) error {
	return r.AddTransform(inputPathStage{})
}

type filtersPlugin struct{}

func (filtersPlugin) Name() string { return "filters" }

func (filtersPlugin) Register(r *Registry) error {
	cfg := r.Config()
	for name, fn := range filterFuncs(&cfg) {
		if err := r.AddFilter(name, fn); err != nil {
			return err
		}
	}
	return nil
}

type idAttributePlugin struct{}

func (idAttributePlugin) Name() string { return "id-attribute" }

func (idAttributePlugin) Register(r *Registry) error {
	return r.AddTransform(idAttributeStage{})
}

type bundlePlugin struct{ bundles []BundleConfig }

func (bundlePlugin) Name() string { return "bundle" }

func (p bundlePlugin) Register(r *Registry) error {
	if len(p.bundles) == 0 {
		return nil
	}
	return r.AddTransform(bundleStage{bundles: p.bundles})
}

type sitemapPlugin struct {
	enabled bool
	base    string
}

func (sitemapPlugin) Name() string { return "sitemap" }

func (p sitemapPlugin) Register(r *Registry) error {
	if !p.enabled {
		return nil
	}
	return r.AddGenerator(sitemapGenerator{base: p.base})
}
