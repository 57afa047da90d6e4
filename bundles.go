package pubstatic

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"path"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const bundleIgnoreAttr = "data-bundle-ignore"

// bundleStage moves the inline <style> and <script> elements of a page into
// content addressed files. The first extracted element is replaced by a
// reference to the file, so cascade and execution order are kept.
type bundleStage struct {
	bundles []BundleConfig
}

func (bundleStage) Name() string { return "bundle" }

func (s bundleStage) Apply(_ context.Context, page *Page, doc *html.Node) error {
	for _, b := range s.bundles {
		if err := applyBundle(page, doc, b); err != nil {
			return err
		}
	}
	return nil
}

func bundleExt(selector string) string {
	if selector == "style" {
		return "css"
	}
	return "js"
}

func bundleable(n *html.Node, selector string) bool {
	if _, ignore := getAttr(n, bundleIgnoreAttr); ignore {
		return false
	}
	switch selector {
	case "style":
		return n.DataAtom == atom.Style
	case "script":
		if n.DataAtom != atom.Script {
			return false
		}
		if _, ok := getAttr(n, "src"); ok {
			return false
		}
		typ, _ := getAttr(n, "type")
		typ = strings.ToLower(strings.TrimSpace(typ))
		return typ == "" || typ == "text/javascript"
	}
	return false
}

func applyBundle(page *Page, doc *html.Node, b BundleConfig) error {
	var nodes []*html.Node
	walk(doc, func(n *html.Node) {
		if bundleable(n, b.Selector) {
			nodes = append(nodes, n)
		}
	})
	if len(nodes) == 0 {
		return nil
	}
	parts := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if c := strings.TrimSpace(textContent(n)); c != "" {
			parts = append(parts, c)
		}
	}
	if len(parts) == 0 {
		return nil
	}
	code := strings.Join(parts, "\n") + "\n"
	sum := sha256.Sum256([]byte(code))
	rel := path.Join(strings.Trim(b.ToFileDirectory, "/"), hex.EncodeToString(sum[:])[:10]+"."+bundleExt(b.Selector))

	if _, err := page.WriteOnce(rel, []byte(code)); err != nil {
		return err
	}

	ref := bundleReference(b.Selector, "/"+rel)
	first := nodes[0]
	first.Parent.InsertBefore(ref, first)
	for _, n := range nodes {
		n.Parent.RemoveChild(n)
	}
	return nil
}

func bundleReference(selector, href string) *html.Node {
	if selector == "style" {
		return &html.Node{
			Type:     html.ElementNode,
			Data:     "link",
			DataAtom: atom.Link,
			Attr: []html.Attribute{
				{Key: "rel", Val: "stylesheet"},
				{Key: "href", Val: href},
			},
		}
	}
	return &html.Node{
		Type:     html.ElementNode,
		Data:     "script",
		DataAtom: atom.Script,
		Attr:     []html.Attribute{{Key: "src", Val: href}},
	}
}
