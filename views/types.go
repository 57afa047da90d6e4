package views

import "time"

// SiteMeta holds site-wide settings every component receives so nothing is
// hardcoded in markup.
type SiteMeta struct {
	Title      string
	Subtitle   string
	URL        string // absolute base URL including the path prefix
	Language   string
	Author     string
	PathPrefix string
}

// PageMeta carries per-page OpenGraph and SEO metadata into the <head> template.
type PageMeta struct {
	Title       string
	Description string
	URL         string // canonical + og:url
	OGType      string // "website" or "article"
}

// Page is a rendered content item as the built-in layouts see it.
type Page struct {
	Title   string
	Date    time.Time
	Tags    []string
	Summary string
	URL     string // root-relative, without path prefix
	Content string // rendered HTML
}

// NavLink is one entry of the site navigation.
type NavLink struct {
	Title    string
	URL      string
	Active   bool
	Children []NavLink
}
