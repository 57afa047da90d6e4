package pubstatic

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 128, 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestParseWidths(t *testing.T) {
	got, err := parseWidths([]string{"auto", "400", "800w", ""})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 400, 800, 0}, got)

	_, err = parseWidths([]string{"-5"})
	assert.Error(t, err)
	_, err = parseWidths([]string{"wide"})
	assert.Error(t, err)
}

func TestClampWidths(t *testing.T) {
	assert.Equal(t, []int{100, 300}, clampWidths([]int{0, 100, 500, 300}, 300))
}

func TestEncoderFor(t *testing.T) {
	tests := []struct {
		format, source, want string
		unsupported          bool
	}{
		{"auto", "png", "png", false},
		{"auto", "jpeg", "jpeg", false},
		{"auto", "webp", "png", false},
		{"jpg", "png", "jpeg", false},
		{"GIF", "png", "gif", false},
		{"webp", "png", "", true},
		{"avif", "png", "", true},
	}
	for _, tt := range tests {
		got, err := encoderFor(tt.format, tt.source)
		if tt.unsupported {
			assert.ErrorIs(t, err, ErrUnsupportedFormat, tt.format)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestImageStageSingleFormat(t *testing.T) {
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "content", "blog", "photo.png"), 400, 200)
	s := newTestSite(t, root, nil)
	page, run := testPage(t, s, "blog/post.md")

	st := imageStage{
		opts: ImageConfig{
			Formats:    []string{"avif", "webp", "auto"},
			Widths:     []string{"auto", "100"},
			Attributes: map[string]string{"loading": "lazy"},
			OutputDir:  "img",
		},
		proc: s.images,
	}
	out := applyStage(t, st, page, `<img src="photo.png" alt="A photo">`)

	assert.NotContains(t, out, "<picture>")
	assert.Contains(t, out, `width="400"`)
	assert.Contains(t, out, `height="200"`)
	assert.Contains(t, out, `loading="lazy"`)
	assert.Contains(t, out, `sizes="100vw"`)
	assert.Regexp(t, `src="/img/[0-9a-f]{10}-400\.png"`, out)
	assert.Regexp(t, `srcset="/img/[0-9a-f]{10}-100\.png 100w, /img/[0-9a-f]{10}-400\.png 400w"`, out)
	assert.EqualValues(t, 2, run.images.Load())

	files, err := filepath.Glob(filepath.Join(root, "_site", "img", "*.png"))
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestImageStagePictureForSeveralFormats(t *testing.T) {
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "content", "photo.png"), 64, 32)
	s := newTestSite(t, root, nil)
	page, _ := testPage(t, s, "index.md")

	st := imageStage{opts: ImageConfig{Formats: []string{"jpeg", "png"}, Widths: []string{"auto"}, OutputDir: "img"}, proc: s.images}
	out := applyStage(t, st, page, `<p><img src="/photo.png" alt=""></p>`)

	assert.Regexp(t, `<picture><source type="image/jpeg" srcset="/img/[0-9a-f]{10}-64\.jpg 64w"/><img src="/img/[0-9a-f]{10}-64\.png"`, out)
	assert.Contains(t, out, "</picture></p>")
}

func TestImageStageSkips(t *testing.T) {
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "content", "photo.png"), 10, 10)
	s := newTestSite(t, root, nil)
	page, run := testPage(t, s, "index.md")

	st := imageStage{opts: ImageConfig{Formats: []string{"auto"}, Widths: []string{"auto"}, OutputDir: "img"}, proc: s.images}
	in := `<img src="https://example.com/a.png"/><img src="data:image/png;base64,AAAA"/><picture><img src="/photo.png"/></picture><img src="/missing.png"/>`
	out := applyStage(t, st, page, in)
	assert.Equal(t, in, out)

	out = applyStage(t, st, page, `<img src="/photo.png" eleventy:ignore>`)
	assert.Equal(t, `<img src="/photo.png"/>`, out)
	assert.Zero(t, run.images.Load())
}

func TestImageStageFailOnError(t *testing.T) {
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "content", "photo.png"), 10, 10)
	s := newTestSite(t, root, nil)
	page, _ := testPage(t, s, "index.md")

	st := imageStage{opts: ImageConfig{Formats: []string{"avif"}, Widths: []string{"auto"}, FailOnError: true}, proc: s.images}
	doc, err := parseDocument(`<img src="/photo.png">`)
	require.NoError(t, err)
	err = st.Apply(t.Context(), page, doc.root)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestImageProcessorUsesStore(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.png")
	writePNG(t, src, 50, 50)
	store := setupTestStore(t)
	p := newImageProcessor(store, slog.Default())
	opts := ImageConfig{Formats: []string{"png"}, Widths: []string{"20"}, OutputDir: "img"}

	groups, err := p.process(src, opts)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Len(t, groups[0], 1)
	v := groups[0][0]
	assert.Equal(t, 20, v.Width)
	assert.Equal(t, 20, v.Height)

	hash := filepath.Base(v.Rel)[:10]
	cached, err := store.GetImage(hash, "png", 20)
	require.NoError(t, err)
	assert.Equal(t, v.data, cached)

	again, err := p.process(src, opts)
	require.NoError(t, err)
	assert.Equal(t, v.data, again[0][0].data)
}

func TestAnimatedGIFIsCopied(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "anim.gif")
	pal := color.Palette{color.Black, color.White}
	anim := &gif.GIF{
		Image: []*image.Paletted{image.NewPaletted(image.Rect(0, 0, 8, 8), pal), image.NewPaletted(image.Rect(0, 0, 8, 8), pal)},
		Delay: []int{10, 10},
	}
	var buf bytes.Buffer
	require.NoError(t, gif.EncodeAll(&buf, anim))
	require.NoError(t, os.WriteFile(src, buf.Bytes(), 0o644))

	p := newImageProcessor(nil, slog.Default())
	groups, err := p.process(src, ImageConfig{Formats: []string{"auto"}, Widths: []string{"auto", "4"}, Animated: true, OutputDir: "img"})
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Len(t, groups[0], 1)
	assert.Equal(t, 8, groups[0][0].Width)
	assert.Equal(t, buf.Bytes(), groups[0][0].data)
}
