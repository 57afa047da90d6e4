// Package pubstatic is a static blog generator built with Go and templ.
// A site is one YAML configuration plus a content tree of markdown and
// template files; Build renders it into an output directory with feeds,
// a sitemap, optimized images and asset bundles.
//
// Functionality is composed from plugins registered in a fixed order, and
// every item passes the registered preprocessors (drafts first) before it
// is rendered.
package pubstatic

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eringen/pubstatic/markdown"
)

type pendingPreprocessor struct {
	name    string
	formats string
	fn      PreprocessFunc
}

// Site is the central pubstatic object. It wires together the
// configuration, plugins, caches and the build pipeline.
type Site struct {
	Config SiteConfig

	logger  *slog.Logger
	mode    RunMode
	clock   *buildClock
	cache   *ItemCache
	store   *Store
	metrics *Metrics
	images  *imageProcessor

	preprocessors     Preprocessors
	shortcodes        Shortcodes
	filters           map[string]any
	stages            []Stage
	generators        []Generator
	navExtra          []NavigationData
	navigationEnabled bool
	mdOptions         markdown.Options
	plugins           []string

	extraPlugins         []Plugin
	pendingPreprocessors []pendingPreprocessor
	noCache              bool

	buildMu sync.Mutex
	stateMu sync.RWMutex
	last    *BuildResult
	lastErr error
}

// New creates a Site. The run mode comes from ELEVENTY_RUN_MODE unless
// WithMode is given.
func New(cfg SiteConfig, opts ...Option) (*Site, error) {
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Site{
		Config:    cfg,
		cache:     NewItemCache(0),
		filters:   make(map[string]any),
		mdOptions: markdown.DefaultOptions,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.mode == "" {
		s.mode = ModeFromEnv()
	}
	if s.clock == nil {
		s.clock = newBuildClock(time.Now)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}

	if err := s.preprocessors.Add("drafts", "*", draftsPreprocessor); err != nil {
		return nil, err
	}
	for _, p := range s.pendingPreprocessors {
		if err := s.preprocessors.Add(p.name, p.formats, p.fn); err != nil {
			return nil, err
		}
	}
	if err := s.shortcodes.Add("currentBuildDate", s.clock.currentBuildDate); err != nil {
		return nil, err
	}

	// Everything after the store is opened must close it on error.
	if !s.noCache {
		store, err := NewStore(filepath.Join(cfg.Root, cfg.CacheDir, "pubstatic.db"))
		if err != nil {
			return nil, fmt.Errorf("pubstatic: init store: %w", err)
		}
		s.store = store
	}
	s.images = newImageProcessor(s.store, s.logger)

	for _, p := range append(defaultPlugins(s.Config), s.extraPlugins...) {
		if err := s.use(p); err != nil {
			s.Close()
			return nil, err
		}
	}
	s.logger.Debug("site ready", "mode", s.mode, "plugins", s.plugins, "stages", s.StageNames())
	return s, nil
}

// Mode returns the run mode fixed for this Site.
func (s *Site) Mode() RunMode {
	return s.mode
}

// Metrics returns the site's Prometheus collectors.
func (s *Site) Metrics() *Metrics {
	return s.metrics
}

// Build renders the site into the output directory. Builds are serialized;
// item failures are collected into a *BuildError.
func (s *Site) Build(ctx context.Context) (*BuildResult, error) {
	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	res := &BuildResult{
		ID:        uuid.NewString(),
		Mode:      s.mode,
		StartedAt: s.clock.Now(),
	}
	log := s.logger.With("build", res.ID, "mode", s.mode)
	log.Info("build started", "input", s.Config.InputDir(), "output", s.Config.OutputDir())

	run := newBuildRun(ctx, s, res, log)
	err := run.execute()
	res.Duration = s.clock.Now().Sub(res.StartedAt)

	s.metrics.observeBuild(res, err)
	if s.store != nil {
		if rerr := s.store.RecordBuild(res, err); rerr != nil {
			log.Warn("record build", "error", rerr)
		}
	}

	s.stateMu.Lock()
	s.last, s.lastErr = res, err
	s.stateMu.Unlock()

	if err != nil {
		log.Error("build failed", "error", err, "duration", res.Duration)
		return res, err
	}
	log.Info("build finished",
		"pages", res.PagesWritten,
		"excluded", len(res.Excluded),
		"files", res.FilesCopied,
		"images", res.ImagesGenerated,
		"duration", res.Duration)
	return res, nil
}

// LastBuild returns the most recent build result and its error.
func (s *Site) LastBuild() (*BuildResult, error) {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.last, s.lastErr
}

// Invalidate drops cached source files so the next build rereads them.
func (s *Site) Invalidate() {
	s.cache.Invalidate()
}

// Close releases the build cache database.
func (s *Site) Close() error {
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

// PruneCache drops cached image variants created before cutoff. It is a
// no-op when the build cache is disabled.
func (s *Site) PruneCache(cutoff time.Time) (int64, error) {
	if s.store == nil {
		return 0, nil
	}
	return s.store.PruneImages(cutoff)
}
