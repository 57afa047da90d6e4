package pubstatic

import (
	"bytes"
	"errors"
	"fmt"
	htmltemplate "html/template"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	texttemplate "text/template"
)

const maxLayoutDepth = 16

// layout is one parsed file of the includes dir.
type layout struct {
	name   string
	parent string // layout named in the file's own frontmatter
	data   Metadata
}

// layoutSet holds every include parsed into one html/template set so
// layouts can call partials with {{ template "partials/x.html" . }}.
type layoutSet struct {
	tmpl    *htmltemplate.Template
	layouts map[string]layout
}

func (s *Site) loadLayouts(funcs map[string]any) (*layoutSet, error) {
	set := &layoutSet{
		tmpl:    htmltemplate.New("").Funcs(funcs),
		layouts: map[string]layout{},
	}
	dir := s.Config.IncludesDir()
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		return set, nil
	}
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		raw, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		data, body, err := parseFrontMatter(raw)
		if err != nil {
			return fmt.Errorf("pubstatic: layout %s: %w", name, err)
		}
		if _, err := set.tmpl.New(name).Parse(string(body)); err != nil {
			return fmt.Errorf("pubstatic: parse layout %s: %w", name, err)
		}
		set.layouts[name] = layout{name: name, parent: data.String("layout"), data: data}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return set, nil
}

// resolve finds a layout by exact name or by name plus a known extension.
func (ls *layoutSet) resolve(name string) (layout, bool) {
	name = strings.TrimPrefix(name, "/")
	for _, candidate := range []string{name, name + ".html", name + ".tmpl", "layouts/" + name, "layouts/" + name + ".html"} {
		if l, ok := ls.layouts[candidate]; ok {
			return l, true
		}
	}
	return layout{}, false
}

// renderEngine runs the configured template engine over an item body.
func (b *buildRun) renderEngine(it *Item, body []byte, data map[string]any) ([]byte, error) {
	engine := b.site.Config.HTMLTemplateEngine
	if it.Format == "md" {
		engine = b.site.Config.MarkdownTemplateEngine
	}
	if engine == "none" {
		return body, nil
	}
	t, err := texttemplate.New(it.InputPath).Funcs(b.funcs).Parse(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("execute template: %w", err)
	}
	return buf.Bytes(), nil
}

// applyLayouts wraps content in the item's layout chain. Layout frontmatter
// is data of lower precedence than the item's own. HTML fragments without
// a layout key get the built-in base layout; "layout: false" opts out.
func (b *buildRun) applyLayouts(it *Item, content string, data map[string]any) (string, error) {
	ls := b.layouts
	name := it.Data.String("layout")
	if _, set := it.Data["layout"]; !set && strings.HasSuffix(it.OutputPath, ".html") && !isDocument(content) {
		return b.renderBuiltinLayout(builtinBase, it, content)
	}
	if name == "false" || name == "none" {
		return content, nil
	}
	visited := map[string]struct{}{}
	for depth := 0; name != ""; depth++ {
		if depth >= maxLayoutDepth {
			return "", fmt.Errorf("%w: chain deeper than %d", ErrLayoutCycle, maxLayoutDepth)
		}
		l, ok := ls.resolve(name)
		if !ok {
			if builtin, ok := builtinLayouts[strings.TrimSuffix(name, ".html")]; ok {
				return b.renderBuiltinLayout(builtin, it, content)
			}
			return "", fmt.Errorf("%w: %q", ErrLayoutNotFound, name)
		}
		if _, seen := visited[l.name]; seen {
			return "", fmt.Errorf("%w: %q", ErrLayoutCycle, l.name)
		}
		visited[l.name] = struct{}{}

		layoutData := make(map[string]any, len(data)+1)
		for k, v := range l.data {
			layoutData[k] = v
		}
		for k, v := range data {
			layoutData[k] = v
		}
		layoutData["content"] = htmltemplate.HTML(content)

		var buf bytes.Buffer
		if err := ls.tmpl.ExecuteTemplate(&buf, l.name, layoutData); err != nil {
			return "", fmt.Errorf("layout %s: %w", l.name, err)
		}
		content = buf.String()
		name = l.parent
	}
	return content, nil
}
