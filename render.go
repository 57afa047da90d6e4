package pubstatic

import (
	"bytes"
	"context"
	"net/http"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"

	"github.com/eringen/pubstatic/views"
)

// Render writes a templ component as an HTTP 200 HTML response.
func Render(c echo.Context, cmp templ.Component) error {
	return RenderStatus(c, http.StatusOK, cmp)
}

// RenderStatus writes a templ component with a specific HTTP status code.
func RenderStatus(c echo.Context, code int, cmp templ.Component) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(code)
	return cmp.Render(c.Request().Context(), c.Response().Writer)
}

// RenderString renders a templ component into a string.
func RenderString(ctx context.Context, cmp templ.Component) (string, error) {
	var buf bytes.Buffer
	if err := cmp.Render(ctx, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

type builtinLayout int

const (
	builtinBase builtinLayout = iota
	builtinPost
	builtinHome
)

// builtinLayouts are used when an item names a layout the includes dir
// does not provide.
var builtinLayouts = map[string]builtinLayout{
	"base":         builtinBase,
	"layouts/base": builtinBase,
	"post":         builtinPost,
	"layouts/post": builtinPost,
	"home":         builtinHome,
	"layouts/home": builtinHome,
}

// siteMeta is the view of the config the built-in layouts get. The path
// prefix is left empty because the html-base transform applies it later.
func (s *Site) siteMeta() views.SiteMeta {
	m := s.Config.Metadata
	return views.SiteMeta{
		Title:    m.Title,
		Subtitle: m.Subtitle,
		URL:      m.Base,
		Language: m.Language,
		Author:   m.Author.Name,
	}
}

func viewPage(it *Item, content string) views.Page {
	return views.Page{
		Title:   it.Title(),
		Date:    it.Date,
		Tags:    it.Tags(),
		Summary: it.Data.String("description"),
		URL:     it.URL,
		Content: content,
	}
}

func viewNav(entries []*NavEntry, current string) []views.NavLink {
	out := make([]views.NavLink, 0, len(entries))
	for _, e := range entries {
		out = append(out, views.NavLink{
			Title:    e.Title,
			URL:      e.URL,
			Active:   e.URL != "" && e.URL == current,
			Children: viewNav(e.Children, current),
		})
	}
	return out
}

func (b *buildRun) renderBuiltinLayout(kind builtinLayout, it *Item, content string) (string, error) {
	site := b.site.siteMeta()
	page := viewPage(it, content)
	nav := viewNav(b.nav, it.URL)
	var posts []views.Page
	for _, p := range b.collections.Newest(b.site.Config.Feed.Collection.Name, 0) {
		posts = append(posts, viewPage(p, ""))
	}
	var cmp templ.Component
	switch kind {
	case builtinPost:
		cmp = views.Post(site, page, nav, posts)
	case builtinHome:
		cmp = views.Home(site, page, nav, posts)
	default:
		cmp = views.Plain(site, page, nav)
	}
	return RenderString(b.ctx, cmp)
}
