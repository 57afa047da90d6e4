package views

import (
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"
)

// writer accumulates the first write error so components read top to bottom.
type writer struct {
	w   io.Writer
	err error
}

func (w *writer) raw(s string) {
	if w.err == nil {
		_, w.err = io.WriteString(w.w, s)
	}
}

func (w *writer) text(s string) {
	w.raw(templ.EscapeString(s))
}

func (w *writer) component(ctx context.Context, c templ.Component) {
	if w.err == nil && c != nil {
		w.err = c.Render(ctx, w.w)
	}
}

// Base is the document shell: head metadata, navigation and body.
func Base(site SiteMeta, meta PageMeta, nav []NavLink, jsonLD string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
		w := &writer{w: out}
		lang := site.Language
		if lang == "" {
			lang = "en"
		}
		w.raw(`<!doctype html><html lang="`)
		w.text(lang)
		w.raw(`"><head><meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1.0"><title>`)
		title := site.Title
		if meta.Title != "" && meta.Title != site.Title {
			title = meta.Title + " | " + site.Title
		}
		w.text(title)
		w.raw(`</title>`)
		description := meta.Description
		if description == "" {
			description = site.Subtitle
		}
		if description != "" {
			w.raw(`<meta name="description" content="`)
			w.text(description)
			w.raw(`">`)
		}
		if meta.URL != "" {
			w.raw(`<link rel="canonical" href="`)
			w.text(meta.URL)
			w.raw(`"><meta property="og:url" content="`)
			w.text(meta.URL)
			w.raw(`">`)
		}
		ogType := meta.OGType
		if ogType == "" {
			ogType = "website"
		}
		w.raw(`<meta property="og:type" content="`)
		w.text(ogType)
		w.raw(`"><meta property="og:title" content="`)
		w.text(title)
		w.raw(`">`)
		if jsonLD != "" {
			w.raw(`<script type="application/ld+json" data-bundle-ignore>`)
			w.raw(strings.ReplaceAll(jsonLD, "</", `<\/`))
			w.raw(`</script>`)
		}
		w.raw(`</head><body><a href="#main" class="visually-hidden">Skip to main content</a><header><a href="`)
		w.text(prefixed(site, "/"))
		w.raw(`" class="home-link">`)
		w.text(site.Title)
		w.raw(`</a>`)
		w.component(ctx, Navigation(site, nav))
		w.raw(`</header><main id="main">`)
		w.component(ctx, body)
		w.raw(`</main><footer><p>`)
		w.text(site.Author)
		w.raw(`</p></footer></body></html>`)
		return w.err
	})
}

// Navigation renders nested navigation links.
func Navigation(site SiteMeta, nav []NavLink) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
		if len(nav) == 0 {
			return nil
		}
		w := &writer{w: out}
		w.raw(`<nav><h2 class="visually-hidden">Top level navigation menu</h2><ul class="nav">`)
		for _, l := range nav {
			w.raw(`<li class="nav-item"><a href="`)
			w.text(prefixed(site, l.URL))
			w.raw(`"`)
			if l.Active {
				w.raw(` aria-current="page"`)
			}
			w.raw(`>`)
			w.text(l.Title)
			w.raw(`</a>`)
			if len(l.Children) > 0 {
				w.component(ctx, Navigation(site, l.Children))
			}
			w.raw(`</li>`)
		}
		w.raw(`</ul></nav>`)
		return w.err
	})
}

// Post is the built-in layout for a single post.
func Post(site SiteMeta, page Page, nav []NavLink, posts []Page) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
		w := &writer{w: out}
		w.raw(`<article><h1>`)
		w.text(page.Title)
		w.raw(`</h1><ul class="post-metadata"><li><time datetime="`)
		w.text(page.Date.Format("2006-01-02"))
		w.raw(`">`)
		w.text(page.Date.Format("02 January 2006"))
		w.raw(`</time></li>`)
		for _, t := range page.Tags {
			if t == "posts" || t == "all" {
				continue
			}
			w.raw(`<li class="post-tag">`)
			w.text(t)
			w.raw(`</li>`)
		}
		w.raw(`</ul>`)
		w.raw(page.Content)
		w.raw(`</article>`)
		if related := FilterRelatedPages(page, posts); len(related) > 0 {
			w.raw(`<aside><h2>Related posts</h2>`)
			w.component(ctx, PostList(site, related))
			w.raw(`</aside>`)
		}
		return w.err
	})
	meta := PageMeta{Title: page.Title, Description: page.Summary, URL: buildURL(site.URL, page.URL), OGType: "article"}
	return Base(site, meta, nav, BlogPostingJsonLD(site, page), body)
}

// Home is the built-in layout for a listing page.
func Home(site SiteMeta, page Page, nav []NavLink, posts []Page) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
		w := &writer{w: out}
		w.raw(page.Content)
		w.component(ctx, PostList(site, posts))
		return w.err
	})
	meta := PageMeta{Title: page.Title, Description: page.Summary, URL: buildURL(site.URL, page.URL)}
	return Base(site, meta, nav, WebsiteJsonLD(site), body)
}

// Plain renders content in the document shell without post chrome.
func Plain(site SiteMeta, page Page, nav []NavLink) templ.Component {
	meta := PageMeta{Title: page.Title, Description: page.Summary, URL: buildURL(site.URL, page.URL)}
	return Base(site, meta, nav, "", templ.Raw(page.Content))
}

// PostList renders a reverse-chronological list of posts.
func PostList(site SiteMeta, posts []Page) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
		w := &writer{w: out}
		w.raw(`<ol class="postlist">`)
		for _, p := range posts {
			w.raw(`<li class="postlist-item"><a href="`)
			w.text(prefixed(site, p.URL))
			w.raw(`" class="postlist-link">`)
			w.text(p.Title)
			w.raw(`</a> <time class="postlist-date" datetime="`)
			w.text(p.Date.Format("2006-01-02"))
			w.raw(`">`)
			w.text(p.Date.Format("02 January 2006"))
			w.raw(`</time></li>`)
		}
		w.raw(`</ol>`)
		return w.err
	})
}

// NotFound is served by the dev server when the output has no 404 page.
func NotFound(site SiteMeta) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
		w := &writer{w: out}
		w.raw(`<h1>Content not found.</h1><p>Go <a href="`)
		w.text(prefixed(site, "/"))
		w.raw(`">home</a>.</p>`)
		return w.err
	})
	return Base(site, PageMeta{Title: "Not found"}, nil, "", body)
}

// BuildFailed is served by the dev server while the last build is broken.
func BuildFailed(site SiteMeta, message string) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
		w := &writer{w: out}
		w.raw(`<h1>Build failed</h1><pre class="build-error">`)
		w.text(message)
		w.raw(`</pre><p>Fix the error and save; the site rebuilds automatically.</p>`)
		return w.err
	})
	return Base(site, PageMeta{Title: "Build failed"}, nil, "", body)
}
