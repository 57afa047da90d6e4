package pubstatic

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"
)

// Watcher rebuilds a Site when its sources change: the input, includes and
// data dirs, the configuration file and every file matching a configured
// watch glob.
type Watcher struct {
	site       *Site
	fsw        *fsnotify.Watcher
	globs      []glob.Glob
	sources    []string
	ignored    []string
	configFile string
	debounce   time.Duration

	// OnBuild is called after every rebuild.
	OnBuild func(*BuildResult, error)
}

// compileWatchGlob compiles a slash separated glob relative to the project
// root. "a/**/b" also matches "a/b".
func compileWatchGlob(pattern string) ([]glob.Glob, error) {
	pattern = strings.TrimPrefix(filepath.ToSlash(pattern), "./")
	variants := []string{pattern}
	if strings.Contains(pattern, "/**/") {
		variants = append(variants, strings.ReplaceAll(pattern, "/**/", "/"))
	}
	out := make([]glob.Glob, 0, len(variants))
	for _, v := range variants {
		g, err := glob.Compile(v, '/')
		if err != nil {
			return nil, fmt.Errorf("pubstatic: watch pattern %q: %w", pattern, err)
		}
		out = append(out, g)
	}
	return out, nil
}

// globBase returns the directory part of a pattern before its first
// wildcard.
func globBase(pattern string) string {
	pattern = filepath.ToSlash(pattern)
	if i := strings.IndexAny(pattern, "*?[{"); i >= 0 {
		pattern = pattern[:i]
	}
	if i := strings.LastIndex(pattern, "/"); i >= 0 {
		return pattern[:i]
	}
	return "."
}

// NewWatcher prepares a watcher for s. configFile may be empty.
func (s *Site) NewWatcher(configFile string) (*Watcher, error) {
	w := &Watcher{
		site:       s,
		configFile: configFile,
		debounce:   s.Config.Debounce,
	}
	for _, p := range s.Config.WatchTargets {
		gs, err := compileWatchGlob(p)
		if err != nil {
			return nil, err
		}
		w.globs = append(w.globs, gs...)
	}
	for _, d := range []string{s.Config.InputDir(), s.Config.IncludesDir(), s.Config.DataDir()} {
		if abs, err := filepath.Abs(d); err == nil {
			w.sources = append(w.sources, abs)
		}
	}
	for _, d := range []string{s.Config.OutputDir(), filepath.Join(s.Config.Root, s.Config.CacheDir)} {
		if abs, err := filepath.Abs(d); err == nil {
			w.ignored = append(w.ignored, abs)
		}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify: %w", err)
	}
	w.fsw = fsw
	dirs := append([]string(nil), w.sources...)
	for _, p := range s.Config.WatchTargets {
		dirs = append(dirs, filepath.Join(s.Config.Root, globBase(p)))
	}
	for _, d := range dirs {
		w.addDirsRecursive(d)
	}
	if configFile != "" {
		if err := fsw.Add(filepath.Dir(configFile)); err != nil {
			s.logger.Warn("watch config dir", "path", configFile, "error", err)
		}
	}
	return w, nil
}

func under(p, dir string) bool {
	return p == dir || strings.HasPrefix(p, dir+string(filepath.Separator))
}

func (w *Watcher) addDirsRecursive(root string) {
	if _, err := os.Stat(root); err != nil {
		return
	}
	_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		abs, _ := filepath.Abs(p)
		for _, ig := range w.ignored {
			if under(abs, ig) {
				return filepath.SkipDir
			}
		}
		if p != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(p); err != nil {
			w.site.logger.Warn("watch add failed", "dir", p, "error", err)
		}
		return nil
	})
}

// shouldIgnoreEvent is true for hidden files and editor swap files.
func shouldIgnoreEvent(name string) bool {
	base := filepath.Base(name)
	return strings.HasPrefix(base, ".") ||
		strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".swp") ||
		strings.HasSuffix(base, ".swx") ||
		(strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#"))
}

// Relevant reports whether a change to name should trigger a rebuild.
func (w *Watcher) Relevant(name string) bool {
	if shouldIgnoreEvent(name) {
		return false
	}
	abs, err := filepath.Abs(name)
	if err != nil {
		return false
	}
	for _, ig := range w.ignored {
		if under(abs, ig) {
			return false
		}
	}
	if w.configFile != "" {
		if cf, err := filepath.Abs(w.configFile); err == nil && cf == abs {
			return true
		}
	}
	for _, src := range w.sources {
		if under(abs, src) {
			return true
		}
	}
	root, err := filepath.Abs(w.site.Config.Root)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, g := range w.globs {
		if g.Match(rel) {
			return true
		}
	}
	return false
}

// Run watches until ctx is done. Events are debounced; a change arriving
// during a build schedules one more build.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	rebuild := make(chan struct{}, 1)
	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	trigger := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(w.debounce, func() {
			select {
			case rebuild <- struct{}{}:
			default:
			}
		})
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-rebuild:
				w.site.logger.Info("change detected; rebuilding")
				res, err := w.site.Build(ctx)
				if w.OnBuild != nil {
					w.OnBuild(res, err)
				}
			}
		}
	}()

	shutdown := func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
		close(stop)
		<-done
	}

	for {
		select {
		case <-ctx.Done():
			shutdown()
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				shutdown()
				return nil
			}
			if ev.Op&fsnotify.Create == fsnotify.Create {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
					w.addDirsRecursive(ev.Name)
				}
			}
			if !w.Relevant(ev.Name) {
				continue
			}
			if w.configFile != "" && filepath.Clean(ev.Name) == filepath.Clean(w.configFile) {
				w.site.logger.Warn("configuration changed; restart to apply it", "path", ev.Name)
			}
			w.site.logger.Debug("file change detected", "path", ev.Name, "op", ev.Op.String())
			trigger()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				shutdown()
				return nil
			}
			w.site.logger.Warn("watcher error", "error", err)
		}
	}
}

// Close stops watching without running.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
