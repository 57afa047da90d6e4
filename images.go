package pubstatic

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const jpegQuality = 80

// knownImageFormats maps configured formats to their MIME type. avif and
// webp are accepted in configuration but have no encoder.
var knownImageFormats = map[string]string{
	"auto": "",
	"avif": "image/avif",
	"webp": "image/webp",
	"jpeg": "image/jpeg",
	"jpg":  "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
}

// parseWidths converts configured widths to pixels; "auto" is 0 and means
// the source width.
func parseWidths(widths []string) ([]int, error) {
	out := make([]int, 0, len(widths))
	for _, w := range widths {
		w = strings.TrimSpace(w)
		if w == "auto" || w == "" {
			out = append(out, 0)
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(w, "w"))
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid image width %q", w)
		}
		out = append(out, n)
	}
	return out, nil
}

// imageVariant is one generated file.
type imageVariant struct {
	Format string // encoder name: jpeg, png or gif
	Width  int
	Height int
	Rel    string // path below the output dir
	data   []byte
}

func (v imageVariant) mimeType() string {
	return knownImageFormats[v.Format]
}

// imageProcessor encodes variants of source images. Encoded bytes are kept
// in the build cache keyed by source hash, format and width.
type imageProcessor struct {
	mu     sync.Mutex
	store  *Store
	logger *slog.Logger
}

func newImageProcessor(store *Store, logger *slog.Logger) *imageProcessor {
	return &imageProcessor{store: store, logger: logger}
}

// encoderFor resolves a configured format against the source format.
func encoderFor(format, source string) (string, error) {
	format = strings.ToLower(format)
	if format == "auto" {
		format = source
		if source == "webp" {
			format = "png"
		}
	}
	switch format {
	case "jpg":
		return "jpeg", nil
	case "jpeg", "png", "gif":
		return format, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
}

func extFor(format string) string {
	if format == "jpeg" {
		return "jpg"
	}
	return format
}

// process returns the variants of the image at src, grouped per format in
// configuration order. Unsupported formats are skipped unless failOnError
// is set.
func (p *imageProcessor) process(src string, opts ImageConfig) ([][]imageVariant, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	raw, err := os.ReadFile(src)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(raw)
	hash := hex.EncodeToString(sum[:])[:10]

	cfg, source, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	widths, err := parseWidths(opts.Widths)
	if err != nil {
		return nil, err
	}
	widths = clampWidths(widths, cfg.Width)

	animated := false
	if source == "gif" && opts.Animated {
		if g, err := gif.DecodeAll(bytes.NewReader(raw)); err == nil && len(g.Image) > 1 {
			animated = true
		}
	}

	var decoded image.Image
	var groups [][]imageVariant
	seen := map[string]struct{}{}
	for _, f := range opts.Formats {
		enc, err := encoderFor(f, source)
		if err != nil {
			if opts.FailOnError {
				return nil, err
			}
			p.logger.Debug("skipping image format", "src", src, "format", f, "error", err)
			continue
		}
		if _, dup := seen[enc]; dup {
			continue
		}
		seen[enc] = struct{}{}

		var group []imageVariant
		for _, w := range widths {
			if animated && enc == "gif" {
				if w != cfg.Width {
					continue
				}
				group = append(group, imageVariant{Format: enc, Width: cfg.Width, Height: cfg.Height, data: raw})
				continue
			}
			h := cfg.Height * w / cfg.Width
			if data, ok := p.cached(hash, enc, w); ok {
				group = append(group, imageVariant{Format: enc, Width: w, Height: h, data: data})
				continue
			}
			if decoded == nil {
				if decoded, _, err = image.Decode(bytes.NewReader(raw)); err != nil {
					return nil, fmt.Errorf("decode image: %w", err)
				}
			}
			data, err := encodeImage(resize(decoded, w, h), enc)
			if err != nil {
				return nil, err
			}
			p.remember(hash, enc, w, h, data)
			group = append(group, imageVariant{Format: enc, Width: w, Height: h, data: data})
		}
		for i := range group {
			group[i].Rel = path.Join(opts.OutputDir, fmt.Sprintf("%s-%d.%s", hash, group[i].Width, extFor(enc)))
		}
		if len(group) > 0 {
			groups = append(groups, group)
		}
	}
	return groups, nil
}

// clampWidths resolves auto widths, drops widths above the source width and
// sorts the rest ascending.
func clampWidths(widths []int, source int) []int {
	set := map[int]struct{}{}
	for _, w := range widths {
		if w == 0 || w > source {
			w = source
		}
		set[w] = struct{}{}
	}
	out := make([]int, 0, len(set))
	for w := range set {
		out = append(out, w)
	}
	sort.Ints(out)
	return out
}

func (p *imageProcessor) cached(hash, format string, width int) ([]byte, bool) {
	if p.store == nil {
		return nil, false
	}
	data, err := p.store.GetImage(hash, format, width)
	if err != nil {
		if !isNoRows(err) {
			p.logger.Warn("read image cache", "hash", hash, "error", err)
		}
		return nil, false
	}
	return data, true
}

func (p *imageProcessor) remember(hash, format string, width, height int, data []byte) {
	if p.store == nil {
		return
	}
	if err := p.store.PutImage(hash, format, width, height, data); err != nil {
		p.logger.Warn("cache image", "hash", hash, "error", err)
	}
}

func resize(img image.Image, w, h int) image.Image {
	b := img.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

func encodeImage(img image.Image, format string) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch format {
	case "jpeg":
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality})
	case "png":
		err = png.Encode(&buf, img)
	case "gif":
		err = gif.Encode(&buf, img, nil)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", format, err)
	}
	return buf.Bytes(), nil
}

type imagePlugin struct{ opts ImageConfig }

func (imagePlugin) Name() string { return "image" }

func (p imagePlugin) Register(r *Registry) error {
	return r.AddTransform(imageStage{opts: p.opts, proc: r.site.images})
}

// imageStage replaces local <img> elements with optimized variants. Images
// inside <picture> or marked eleventy:ignore are left alone.
type imageStage struct {
	opts ImageConfig
	proc *imageProcessor
}

func (imageStage) Name() string { return "image" }

func (s imageStage) Apply(_ context.Context, page *Page, doc *html.Node) error {
	var imgs []*html.Node
	walk(doc, func(n *html.Node) {
		if n.DataAtom != atom.Img || (n.Parent != nil && n.Parent.DataAtom == atom.Picture) {
			return
		}
		if _, ignore := getAttr(n, "eleventy:ignore"); ignore {
			removeAttr(n, "eleventy:ignore")
			return
		}
		imgs = append(imgs, n)
	})
	for _, n := range imgs {
		src, _ := getAttr(n, "src")
		if !isLocalURL(src) || strings.HasPrefix(src, "data:") {
			continue
		}
		if err := s.replace(page, n, src); err != nil {
			if s.opts.FailOnError {
				return fmt.Errorf("image %s: %w", src, err)
			}
			page.Logger().Warn("image left unprocessed", "item", page.Item.InputPath, "src", src, "error", err)
		}
	}
	return nil
}

// sourceFile resolves an <img> src against the input dir.
func (s imageStage) sourceFile(page *Page, src string) string {
	p := strings.SplitN(src, "?", 2)[0]
	p = strings.SplitN(p, "#", 2)[0]
	input := page.Config().InputDir()
	if strings.HasPrefix(p, "/") {
		return filepath.Join(input, filepath.FromSlash(path.Clean(p)))
	}
	return filepath.Join(input, filepath.FromSlash(path.Join(path.Dir(page.Item.InputPath), p)))
}

func (s imageStage) replace(page *Page, n *html.Node, src string) error {
	file := s.sourceFile(page, src)
	if _, err := os.Stat(file); err != nil {
		return err
	}
	groups, err := s.proc.process(file, s.opts)
	if err != nil {
		return err
	}
	if len(groups) == 0 {
		return errors.New("no encodable format configured")
	}
	for _, g := range groups {
		for _, v := range g {
			wrote, err := page.WriteOnce(v.Rel, v.data)
			if err != nil {
				return err
			}
			if wrote {
				page.countImage()
			}
		}
	}

	fallback := groups[len(groups)-1]
	largest := fallback[len(fallback)-1]
	setAttr(n, "src", "/"+largest.Rel)
	setAttr(n, "width", strconv.Itoa(largest.Width))
	setAttr(n, "height", strconv.Itoa(largest.Height))
	if len(fallback) > 1 {
		setAttr(n, "srcset", srcset(fallback))
		if _, ok := getAttr(n, "sizes"); !ok {
			setAttr(n, "sizes", "100vw")
		}
	}
	keys := make([]string, 0, len(s.opts.Attributes))
	for k := range s.opts.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, ok := getAttr(n, k); !ok {
			setAttr(n, k, s.opts.Attributes[k])
		}
	}
	if len(groups) == 1 {
		return nil
	}

	picture := &html.Node{Type: html.ElementNode, Data: "picture", DataAtom: atom.Picture}
	sizes, _ := getAttr(n, "sizes")
	for _, g := range groups[:len(groups)-1] {
		attrs := []html.Attribute{
			{Key: "type", Val: g[0].mimeType()},
			{Key: "srcset", Val: srcset(g)},
		}
		if sizes != "" {
			attrs = append(attrs, html.Attribute{Key: "sizes", Val: sizes})
		}
		picture.AppendChild(&html.Node{Type: html.ElementNode, Data: "source", DataAtom: atom.Source, Attr: attrs})
	}
	n.Parent.InsertBefore(picture, n)
	n.Parent.RemoveChild(n)
	picture.AppendChild(n)
	return nil
}

func srcset(group []imageVariant) string {
	parts := make([]string, len(group))
	for i, v := range group {
		parts[i] = "/" + v.Rel + " " + strconv.Itoa(v.Width) + "w"
	}
	return strings.Join(parts, ", ")
}
