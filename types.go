package pubstatic

import "time"

// Item is one source document processed into (at most) one output file.
type Item struct {
	InputPath  string    // slash-separated, relative to the input dir
	Format     string    // template format, e.g. "md"
	Data       Metadata  // frontmatter merged with directory data
	Body       []byte    // raw body without frontmatter
	Date       time.Time // "date" metadata, else file modification time
	URL        string    // root-relative URL without path prefix; "" when not written
	OutputPath string    // slash-separated, relative to the output dir

	// TemplateContent is the rendered body before layouts are applied.
	TemplateContent string
	// Content is the final output after layouts and transforms.
	Content string

	modTime time.Time
}

// Title returns the item's title metadata.
func (it *Item) Title() string {
	return it.Data.String("title")
}

// Tags returns the item's tags.
func (it *Item) Tags() []string {
	return it.Data.Strings("tags")
}

// HasOutput reports whether the item is written to the output dir.
func (it *Item) HasOutput() bool {
	return it.OutputPath != ""
}

func (it *Item) excludedFromCollections() bool {
	return it.Data.Bool("eleventyExcludeFromCollections")
}

// PageInfo is the "page" value exposed to templates.
type PageInfo struct {
	URL        string
	InputPath  string
	OutputPath string
	Date       time.Time
	FileSlug   string
}

// BuildResult summarizes one build.
type BuildResult struct {
	ID              string
	Mode            RunMode
	StartedAt       time.Time
	Duration        time.Duration
	Items           []*Item // rendered items, in input path order
	Excluded        []string
	PagesWritten    int
	FilesCopied     int
	ImagesGenerated int
}
