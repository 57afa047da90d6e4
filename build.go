package pubstatic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/eringen/pubstatic/markdown"
)

// Generator produces output that does not come from a single item, such as
// feeds and the sitemap. Generators run after every item is written.
type Generator interface {
	Name() string
	Generate(ctx context.Context, b *BuildContext) error
}

// BuildContext is the view of a running build that stages and generators
// get.
type BuildContext struct {
	run *buildRun
}

// Page is the item a transform stage is applied to.
type Page struct {
	Item *Item
	*BuildContext
}

// Config returns the site configuration.
func (c *BuildContext) Config() *SiteConfig {
	return &c.run.site.Config
}

// Mode returns the run mode of the build.
func (c *BuildContext) Mode() RunMode {
	return c.run.site.mode
}

// Logger returns the build logger.
func (c *BuildContext) Logger() *slog.Logger {
	return c.run.log
}

// Collections returns the collections of the build.
func (c *BuildContext) Collections() Collections {
	return c.run.collections
}

// Items returns every kept item, in input path order.
func (c *BuildContext) Items() []*Item {
	return c.run.items
}

// URLFor returns the URL of the item read from inputPath.
func (c *BuildContext) URLFor(inputPath string) (string, bool) {
	it, ok := c.run.byInput[inputPath]
	if !ok || it.URL == "" {
		return "", false
	}
	return it.URL, true
}

// Write stores data at rel below the output directory. Two writes to the
// same path in one build are an ErrPermalinkConflict.
func (c *BuildContext) Write(owner, rel string, data []byte) error {
	if prev, taken := c.run.claim(owner, rel); taken {
		return fmt.Errorf("%w: %s written by %s and %s", ErrPermalinkConflict, rel, prev, owner)
	}
	return writeOutput(c.run.site.Config.OutputDir(), rel, data)
}

// WriteOnce stores content addressed data at rel unless an earlier write of
// this build already did. It reports whether it wrote.
func (c *BuildContext) WriteOnce(rel string, data []byte) (bool, error) {
	if _, taken := c.run.claim("", rel); taken {
		return false, nil
	}
	return true, writeOutput(c.run.site.Config.OutputDir(), rel, data)
}

func (c *BuildContext) site() *Site {
	return c.run.site
}

func (c *BuildContext) countImage() {
	c.run.images.Add(1)
}

type buildRun struct {
	ctx  context.Context
	site *Site
	res  *BuildResult
	log  *slog.Logger

	global      Metadata
	items       []*Item
	byInput     map[string]*Item
	collections Collections
	nav         []*NavEntry
	funcs       map[string]any
	layouts     *layoutSet
	md          *markdown.Renderer
	context     *BuildContext

	outMu   sync.Mutex
	outputs map[string]string
	images  atomic.Int64
}

func newBuildRun(ctx context.Context, s *Site, res *BuildResult, log *slog.Logger) *buildRun {
	b := &buildRun{
		ctx:     ctx,
		site:    s,
		res:     res,
		log:     log,
		byInput: make(map[string]*Item),
		outputs: make(map[string]string),
	}
	b.context = &BuildContext{run: b}
	return b
}

// claim reserves rel for owner and returns the previous owner if rel was
// already taken.
func (b *buildRun) claim(owner, rel string) (string, bool) {
	b.outMu.Lock()
	defer b.outMu.Unlock()
	if prev, ok := b.outputs[rel]; ok {
		return prev, true
	}
	b.outputs[rel] = owner
	return "", false
}

func (b *buildRun) execute() error {
	var err error
	if b.global, err = b.site.loadGlobalData(); err != nil {
		return err
	}
	items, err := b.site.discover()
	if err != nil {
		return err
	}
	b.items = b.preprocess(items)
	if err := b.assignPermalinks(); err != nil {
		return err
	}
	b.collections = buildCollections(b.items)
	if b.site.navigationEnabled {
		b.nav = buildNavigation(b.items, b.site.navExtra)
	}
	b.funcs = b.templateFuncs()
	if b.layouts, err = b.site.loadLayouts(b.funcs); err != nil {
		return err
	}
	b.md = markdown.New(b.site.mdOptions)

	if err := os.MkdirAll(b.site.Config.OutputDir(), 0o755); err != nil {
		return fmt.Errorf("pubstatic: create output dir: %w", err)
	}
	if err := b.render(); err != nil {
		return err
	}
	for _, it := range b.items {
		if !it.HasOutput() {
			continue
		}
		if err := b.context.Write(it.InputPath, it.OutputPath, []byte(it.Content)); err != nil {
			return fmt.Errorf("pubstatic: write %s: %w", it.OutputPath, err)
		}
		b.res.PagesWritten++
	}
	copied, err := b.site.copyPassthrough(b.context)
	if err != nil {
		return err
	}
	b.res.FilesCopied = copied
	for _, g := range b.site.generators {
		if err := g.Generate(b.ctx, b.context); err != nil {
			return fmt.Errorf("pubstatic: %s: %w", g.Name(), err)
		}
	}
	b.res.ImagesGenerated = int(b.images.Load())
	b.res.Items = b.items
	return nil
}

// preprocess runs every registered preprocessor on each item and drops the
// excluded ones.
func (b *buildRun) preprocess(items []*Item) []*Item {
	kept := make([]*Item, 0, len(items))
	for _, it := range items {
		pc := PreprocessContext{Mode: b.site.mode, InputPath: it.InputPath, Format: it.Format}
		data, decision := b.site.preprocessors.Run(pc, it.Data, it.Body)
		it.Data = data
		if decision == Exclude {
			b.log.Debug("item excluded", "input", it.InputPath)
			b.res.Excluded = append(b.res.Excluded, it.InputPath)
			continue
		}
		kept = append(kept, it)
	}
	return kept
}

func (b *buildRun) assignPermalinks() error {
	var errs []error
	owners := make(map[string]string, len(b.items))
	for _, it := range b.items {
		it.URL, it.OutputPath = permalink(it)
		b.byInput[it.InputPath] = it
		if !it.HasOutput() {
			continue
		}
		if prev, dup := owners[it.OutputPath]; dup {
			errs = append(errs, &ItemError{
				InputPath: it.InputPath,
				Err:       fmt.Errorf("%w: %s is also written by %s", ErrPermalinkConflict, it.OutputPath, prev),
			})
			continue
		}
		owners[it.OutputPath] = it.InputPath
	}
	if len(errs) > 0 {
		return &BuildError{Errors: errs}
	}
	return nil
}

func (b *buildRun) templateFuncs() map[string]any {
	funcs := make(map[string]any)
	for k, v := range b.site.filters {
		funcs[k] = v
	}
	for k, v := range b.site.shortcodes.funcMap() {
		funcs[k] = v
	}
	funcs["navigation"] = func() []*NavEntry { return b.nav }
	funcs["collection"] = func(name string) []*Item { return b.collections[name] }
	return funcs
}

// templateData is what templates and layouts of it see. Item data wins over
// global data; page and collections are reserved.
func (b *buildRun) templateData(it *Item) map[string]any {
	data := make(map[string]any, len(b.global)+len(it.Data)+6)
	for k, v := range b.global {
		data[k] = v
	}
	for k, v := range it.Data {
		data[k] = v
	}
	if _, ok := data["metadata"]; !ok {
		data["metadata"] = b.site.Config.Metadata
	}
	data["site"] = b.site.Config.Metadata
	data["page"] = PageInfo{
		URL:        it.URL,
		InputPath:  it.InputPath,
		OutputPath: it.OutputPath,
		Date:       it.Date,
		FileSlug:   fileSlug(it),
	}
	data["collections"] = b.collections
	data["templateContent"] = it.TemplateContent
	data["eleventy"] = map[string]any{"env": map[string]any{"runMode": string(b.site.mode)}}
	return data
}

// render produces every item's TemplateContent first, so layouts and
// generators can read the content of other items, then applies layouts
// and transforms. Results are assigned once each phase has finished.
func (b *buildRun) render() error {
	content, err := b.parallel(b.items, func(it *Item) (string, error) {
		body, err := b.renderEngine(it, it.Body, b.templateData(it))
		if err != nil {
			return "", err
		}
		if it.Format == "md" {
			if body, err = b.md.Render(body); err != nil {
				return "", fmt.Errorf("render markdown: %w", err)
			}
		}
		return string(body), nil
	})
	if err != nil {
		return err
	}
	for i, it := range b.items {
		it.TemplateContent = content[i]
	}

	pages, err := b.parallel(b.items, func(it *Item) (string, error) {
		if !it.HasOutput() {
			return it.TemplateContent, nil
		}
		out, err := b.applyLayouts(it, it.TemplateContent, b.templateData(it))
		if err != nil {
			return "", err
		}
		return b.transform(b.ctx, it, out)
	})
	if err != nil {
		return err
	}
	for i, it := range b.items {
		it.Content = pages[i]
	}
	return nil
}

// parallel applies fn to every item on a fixed pool of workers and
// collects failures into a *BuildError.
func (b *buildRun) parallel(items []*Item, fn func(*Item) (string, error)) ([]string, error) {
	out := make([]string, len(items))
	jobs := make(chan int)
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	workers := min(runtime.GOMAXPROCS(0), max(len(items), 1))
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				s, err := fn(items[i])
				if err != nil {
					mu.Lock()
					errs = append(errs, &ItemError{InputPath: items[i].InputPath, Err: err})
					mu.Unlock()
					continue
				}
				out[i] = s
			}
		}()
	}
	for i := range items {
		if b.ctx.Err() != nil {
			break
		}
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	if err := b.ctx.Err(); err != nil {
		return nil, err
	}
	if len(errs) > 0 {
		sort.Slice(errs, func(i, j int) bool {
			return errs[i].(*ItemError).InputPath < errs[j].(*ItemError).InputPath
		})
		return nil, &BuildError{Errors: errs}
	}
	return out, nil
}

// itemErrors returns the item paths of every failure in err.
func itemErrors(err error) []string {
	var be *BuildError
	if !errors.As(err, &be) {
		return nil
	}
	paths := make([]string, 0, len(be.Errors))
	for _, e := range be.Errors {
		var ie *ItemError
		if errors.As(e, &ie) {
			paths = append(paths, ie.InputPath)
		}
	}
	return paths
}
