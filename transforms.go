package pubstatic

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/goliatone/go-slug"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Stage is one HTML transform. Stages run on the parsed output of every item
// written as .html, in stageOrder; a stage may change the tree in place.
type Stage interface {
	Name() string
	Apply(ctx context.Context, page *Page, doc *html.Node) error
}

// stageOrder fixes where the built-in stages run, independent of the order
// their plugins were registered in:
//
//   - syntax-highlight adds preAttributes to <pre> blocks.
//   - input-path-to-url rewrites links to source files into output URLs.
//   - image turns local <img> elements into <picture> with generated files.
//     It sees source paths before the path prefix is applied.
//   - id-attribute gives headings without an id a slug id.
//   - bundle moves inline <style>/<script> into content addressed files.
//   - html-base prefixes every root-relative URL, including the ones the
//     earlier stages produced, with the path prefix. It always runs last.
var stageOrder = []string{
	"syntax-highlight",
	"input-path-to-url",
	"image",
	"id-attribute",
	"bundle",
	"html-base",
}

func stageRank(name string) int {
	for i, n := range stageOrder {
		if n == name {
			return i
		}
	}
	// Custom stages run after the built-ins but before html-base.
	return len(stageOrder) - 1
}

func sortStages(stages []Stage) {
	sort.SliceStable(stages, func(i, j int) bool {
		ri, rj := stageRank(stages[i].Name()), stageRank(stages[j].Name())
		if ri == rj && ri == len(stageOrder)-1 {
			// html-base sorts after custom stages sharing its rank.
			return stages[j].Name() == "html-base" && stages[i].Name() != "html-base"
		}
		return ri < rj
	})
}

// StageNames returns the names of the registered stages in run order.
func (s *Site) StageNames() []string {
	names := make([]string, len(s.stages))
	for i, st := range s.stages {
		names[i] = st.Name()
	}
	return names
}

// document is parsed output. Fragments (no <html> element in the source)
// are parsed in a <body> context and rendered back without the wrapper.
type document struct {
	root     *html.Node
	fragment bool
}

func isDocument(content string) bool {
	head := strings.ToLower(content[:min(len(content), 512)])
	return strings.Contains(head, "<html") || strings.Contains(head, "<!doctype")
}

func parseDocument(content string) (*document, error) {
	if isDocument(content) {
		root, err := html.Parse(strings.NewReader(content))
		if err != nil {
			return nil, err
		}
		return &document{root: root}, nil
	}
	ctx := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(content), ctx)
	if err != nil {
		return nil, err
	}
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	for _, n := range nodes {
		body.AppendChild(n)
	}
	return &document{root: body, fragment: true}, nil
}

func (d *document) render() (string, error) {
	var buf bytes.Buffer
	if !d.fragment {
		if err := html.Render(&buf, d.root); err != nil {
			return "", err
		}
		return buf.String(), nil
	}
	for c := d.root.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}

// transform runs every stage over content.
func (b *buildRun) transform(ctx context.Context, it *Item, content string) (string, error) {
	if len(b.site.stages) == 0 || !strings.HasSuffix(it.OutputPath, ".html") {
		return content, nil
	}
	doc, err := parseDocument(content)
	if err != nil {
		return "", fmt.Errorf("parse output: %w", err)
	}
	page := &Page{Item: it, BuildContext: b.context}
	for _, st := range b.site.stages {
		if err := st.Apply(ctx, page, doc.root); err != nil {
			return "", fmt.Errorf("transform %s: %w", st.Name(), err)
		}
	}
	return doc.render()
}

// walk calls fn for every element below n in document order. Children are
// read before fn runs so fn may replace the element it is given.
func walk(n *html.Node, fn func(*html.Node)) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.ElementNode {
			fn(c)
		}
		walk(c, fn)
		c = next
	}
}

func getAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(textContent(c))
	}
	return b.String()
}

type preAttributesStage struct {
	attrs map[string]string
}

func (preAttributesStage) Name() string { return "syntax-highlight" }

func (s preAttributesStage) Apply(_ context.Context, _ *Page, doc *html.Node) error {
	if len(s.attrs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(s.attrs))
	for k := range s.attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	walk(doc, func(n *html.Node) {
		if n.DataAtom != atom.Pre {
			return
		}
		for _, k := range keys {
			if _, ok := getAttr(n, k); !ok {
				setAttr(n, k, s.attrs[k])
			}
		}
	})
	return nil
}

// inputPathStage rewrites href values naming a source file, like
// "/blog/first.md" or "../about.md", to that item's URL.
type inputPathStage struct{}

func (inputPathStage) Name() string { return "input-path-to-url" }

func (inputPathStage) Apply(_ context.Context, page *Page, doc *html.Node) error {
	walk(doc, func(n *html.Node) {
		if n.DataAtom != atom.A && n.DataAtom != atom.Link {
			return
		}
		href, ok := getAttr(n, "href")
		if !ok || !isLocalURL(href) {
			return
		}
		u, err := url.Parse(href)
		if err != nil || u.Path == "" {
			return
		}
		target, ok := page.resolveInputPath(u.Path)
		if !ok {
			return
		}
		u.Path = target
		setAttr(n, "href", u.String())
	})
	return nil
}

// resolveInputPath maps a link path to the URL of the item it names.
func (p *Page) resolveInputPath(link string) (string, bool) {
	if _, ok := p.site().templateFormat(link); !ok {
		return "", false
	}
	var candidates []string
	if strings.HasPrefix(link, "/") {
		rel := strings.TrimPrefix(path.Clean(link), "/")
		candidates = append(candidates, rel)
		input := strings.Trim(path.Clean(filepath.ToSlash(p.site().Config.Dir.Input)), "/")
		if input != "." && input != "" {
			candidates = append(candidates, strings.TrimPrefix(rel, input+"/"))
		}
	} else {
		candidates = append(candidates, path.Clean(path.Join(path.Dir(p.Item.InputPath), link)))
	}
	for _, c := range candidates {
		if u, ok := p.URLFor(c); ok {
			return u, true
		}
	}
	return "", false
}

type idAttributeStage struct{}

func (idAttributeStage) Name() string { return "id-attribute" }

func (idAttributeStage) Apply(_ context.Context, _ *Page, doc *html.Node) error {
	used := map[string]int{}
	walk(doc, func(n *html.Node) {
		if id, ok := getAttr(n, "id"); ok {
			used[id]++
		}
	})
	walk(doc, func(n *html.Node) {
		switch n.DataAtom {
		case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		default:
			return
		}
		if _, ok := getAttr(n, "id"); ok {
			return
		}
		id, err := slug.Normalize(strings.TrimSpace(textContent(n)))
		if err != nil || id == "" {
			return
		}
		candidate := id
		for i := 2; used[candidate] > 0; i++ {
			candidate = id + "-" + strconv.Itoa(i)
		}
		used[candidate]++
		setAttr(n, "id", candidate)
	})
	return nil
}

// urlAttrs lists the attributes html-base rewrites, per element.
var urlAttrs = map[atom.Atom][]string{
	atom.A:      {"href"},
	atom.Link:   {"href"},
	atom.Img:    {"src", "srcset"},
	atom.Source: {"src", "srcset"},
	atom.Script: {"src"},
	atom.Iframe: {"src"},
	atom.Video:  {"src", "poster"},
	atom.Audio:  {"src"},
	atom.Track:  {"src"},
	atom.Embed:  {"src"},
	atom.Object: {"data"},
	atom.Form:   {"action"},
}

type htmlBaseStage struct{ prefix string }

func (htmlBaseStage) Name() string { return "html-base" }

func (s htmlBaseStage) Apply(_ context.Context, _ *Page, doc *html.Node) error {
	if s.prefix == "" || s.prefix == "/" {
		return nil
	}
	walk(doc, func(n *html.Node) {
		for _, key := range urlAttrs[n.DataAtom] {
			v, ok := getAttr(n, key)
			if !ok {
				continue
			}
			if key == "srcset" {
				setAttr(n, key, prefixSrcset(s.prefix, v))
				continue
			}
			setAttr(n, key, WithPathPrefix(s.prefix, v))
		}
	})
	return nil
}

func prefixSrcset(prefix, srcset string) string {
	parts := strings.Split(srcset, ",")
	for i, part := range parts {
		fields := strings.Fields(part)
		if len(fields) == 0 {
			continue
		}
		fields[0] = WithPathPrefix(prefix, fields[0])
		parts[i] = strings.Join(fields, " ")
	}
	return strings.Join(parts, ", ")
}
