package pubstatic

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/html"
)

const atomNS = "http://www.w3.org/2005/Atom"

type atomFeed struct {
	XMLName  xml.Name    `xml:"feed"`
	XMLNS    string      `xml:"xmlns,attr"`
	Lang     string      `xml:"xml:lang,attr,omitempty"`
	Title    string      `xml:"title"`
	Subtitle string      `xml:"subtitle,omitempty"`
	Links    []atomLink  `xml:"link"`
	Updated  string      `xml:"updated"`
	ID       string      `xml:"id"`
	Author   *atomAuthor `xml:"author,omitempty"`
	Entries  []atomEntry `xml:"entry"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr,omitempty"`
}

type atomAuthor struct {
	Name  string `xml:"name"`
	Email string `xml:"email,omitempty"`
	URI   string `xml:"uri,omitempty"`
}

type atomEntry struct {
	Title   string      `xml:"title"`
	Link    atomLink    `xml:"link"`
	Updated string      `xml:"updated"`
	ID      string      `xml:"id"`
	Content atomContent `xml:"content"`
}

type atomContent struct {
	Type string `xml:"type,attr"`
	Body string `xml:",chardata"`
}

type rssXML struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	AtomNS  string     `xml:"xmlns:atom,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title       string    `xml:"title"`
	Link        string    `xml:"link"`
	AtomLink    rssSelf   `xml:"atom:link"`
	Description string    `xml:"description"`
	Language    string    `xml:"language,omitempty"`
	Items       []rssItem `xml:"item"`
}

type rssSelf struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

type rssItem struct {
	Title       string  `xml:"title"`
	Link        string  `xml:"link"`
	Description string  `xml:"description"`
	PubDate     string  `xml:"pubDate"`
	GUID        rssGUID `xml:"guid"`
}

type rssGUID struct {
	IsPermaLink bool   `xml:"isPermaLink,attr"`
	Value       string `xml:",chardata"`
}

type feedPlugin struct {
	opts FeedConfig
	meta SiteMetadata
}

func (feedPlugin) Name() string { return "feed" }

func (p feedPlugin) Register(r *Registry) error {
	if p.opts.Navigation != nil && p.opts.Navigation.Key != "" {
		nav := *p.opts.Navigation
		if nav.URL == "" {
			nav.URL = p.opts.OutputPath
		}
		r.AddNavigation(nav)
	}
	return r.AddGenerator(feedGenerator(p))
}

type feedGenerator struct {
	opts FeedConfig
	meta SiteMetadata
}

func (feedGenerator) Name() string { return "feed" }

// entryID is a stable urn:uuid derived from the entry's absolute URL.
func entryID(absURL string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(absURL)).URN()
}

// stylesheetPath resolves the stylesheet relative to the feed's directory.
func (g feedGenerator) stylesheetPath() string {
	s := g.opts.Stylesheet
	if s == "" || strings.Contains(s, "://") {
		return s
	}
	if strings.HasPrefix(s, "/") {
		return path.Clean(s)
	}
	return path.Join("/", path.Dir(g.opts.OutputPath), s)
}

func (g feedGenerator) Generate(_ context.Context, b *BuildContext) error {
	items := b.Collections().Newest(g.opts.Collection.Name, g.opts.Collection.Limit)
	cfg := b.Config()
	base := g.meta.Base
	feedURL := AbsoluteURL(base, g.opts.OutputPath)

	var body any
	switch g.opts.Type {
	case "rss":
		body = g.rss(items, base, feedURL)
	default:
		body = g.atom(items, base, feedURL, b.run.res.StartedAt)
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	if ss := g.stylesheetPath(); ss != "" {
		href := WithPathPrefix(cfg.PathPrefix, ss)
		buf.WriteString(`<?xml-stylesheet href="`)
		if err := xml.EscapeText(&buf, []byte(href)); err != nil {
			return err
		}
		buf.WriteString("\" type=\"text/xsl\"?>\n")
		if strings.HasPrefix(ss, "/") && strings.HasSuffix(ss, defaultFeedStylesheet) {
			if err := writeDefaultStylesheet(b, strings.TrimPrefix(ss, "/")); err != nil {
				return err
			}
		}
	}
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(body); err != nil {
		return fmt.Errorf("encode feed: %w", err)
	}
	buf.WriteString("\n")
	return b.Write("feed", strings.TrimPrefix(g.opts.OutputPath, "/"), buf.Bytes())
}

func (g feedGenerator) atom(items []*Item, base, feedURL string, fallback time.Time) atomFeed {
	feed := atomFeed{
		XMLNS:    atomNS,
		Lang:     g.meta.Language,
		Title:    g.meta.Title,
		Subtitle: g.meta.Subtitle,
		Links: []atomLink{
			{Href: feedURL, Rel: "self"},
			{Href: base},
		},
		ID: base,
	}
	if g.meta.Author.Name != "" {
		feed.Author = &atomAuthor{Name: g.meta.Author.Name, Email: g.meta.Author.Email, URI: g.meta.Author.URL}
	}
	updated := fallback
	if len(items) > 0 {
		updated = items[0].Date
	}
	feed.Updated = updated.UTC().Format(time.RFC3339)
	for _, it := range items {
		abs := AbsoluteURL(base, it.URL)
		feed.Entries = append(feed.Entries, atomEntry{
			Title:   it.Title(),
			Link:    atomLink{Href: abs},
			Updated: it.Date.UTC().Format(time.RFC3339),
			ID:      entryID(abs),
			Content: atomContent{Type: "html", Body: absolutizeHTML(it.TemplateContent, abs, base)},
		})
	}
	return feed
}

func (g feedGenerator) rss(items []*Item, base, feedURL string) rssXML {
	ch := rssChannel{
		Title:       g.meta.Title,
		Link:        base,
		AtomLink:    rssSelf{Href: feedURL, Rel: "self", Type: "application/rss+xml"},
		Description: g.meta.Subtitle,
		Language:    g.meta.Language,
	}
	for _, it := range items {
		abs := AbsoluteURL(base, it.URL)
		ch.Items = append(ch.Items, rssItem{
			Title:       it.Title(),
			Link:        abs,
			Description: absolutizeHTML(it.TemplateContent, abs, base),
			PubDate:     it.Date.Format(time.RFC1123Z),
			GUID:        rssGUID{Value: entryID(abs)},
		})
	}
	return rssXML{Version: "2.0", AtomNS: atomNS, Channel: ch}
}

// absolutizeHTML rewrites every URL attribute of an HTML fragment to an
// absolute URL. Root-relative URLs resolve against base, others against
// the page URL.
func absolutizeHTML(fragment, pageURL, base string) string {
	if strings.TrimSpace(fragment) == "" {
		return fragment
	}
	doc, err := parseDocument(fragment)
	if err != nil {
		return fragment
	}
	page, perr := url.Parse(pageURL)
	walk(doc.root, func(n *html.Node) {
		for _, key := range urlAttrs[n.DataAtom] {
			v, ok := getAttr(n, key)
			if !ok || !isLocalURL(v) {
				continue
			}
			if key == "srcset" {
				continue
			}
			switch {
			case strings.HasPrefix(v, "/"):
				setAttr(n, key, AbsoluteURL(base, v))
			case perr == nil:
				if ref, err := url.Parse(v); err == nil {
					setAttr(n, key, page.ResolveReference(ref).String())
				}
			}
		}
	})
	out, err := doc.render()
	if err != nil {
		return fragment
	}
	return out
}
