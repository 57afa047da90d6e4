package pubstatic

import (
	"bytes"
	"context"
	"encoding/xml"
	"strings"
)

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

type sitemapGenerator struct{ base string }

func (sitemapGenerator) Name() string { return "sitemap" }

// Generate writes sitemap.xml with every written HTML item that is not
// excluded from collections or marked sitemap: false.
func (g sitemapGenerator) Generate(_ context.Context, b *BuildContext) error {
	var urls []sitemapURL
	for _, it := range b.Items() {
		if !it.HasOutput() || !strings.HasSuffix(it.OutputPath, ".html") {
			continue
		}
		if it.excludedFromCollections() || it.Data.String("sitemap") == "false" {
			continue
		}
		u := sitemapURL{Loc: AbsoluteURL(g.base, it.URL)}
		if !it.Date.IsZero() {
			u.LastMod = it.Date.UTC().Format("2006-01-02")
		}
		urls = append(urls, u)
	}
	sitemap := sitemapURLSet{
		XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs:  urls,
	}
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	if err := xml.NewEncoder(&buf).Encode(sitemap); err != nil {
		return err
	}
	return b.Write("sitemap", "sitemap.xml", buf.Bytes())
}
