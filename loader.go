package pubstatic

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/adrg/frontmatter"
	"gopkg.in/yaml.v3"
)

var dataFileExts = []string{".yaml", ".yml", ".json"}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// loadGlobalData reads every data file in the data dir, keyed by basename.
// JSON is parsed by the YAML decoder since it is a subset.
func (s *Site) loadGlobalData() (Metadata, error) {
	dir := s.Config.DataDir()
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return Metadata{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pubstatic: read data dir: %w", err)
	}
	out := Metadata{}
	for _, e := range entries {
		if e.IsDir() || !hasDataExt(e.Name()) {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("pubstatic: read data file: %w", err)
		}
		var v any
		if err := yaml.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("pubstatic: parse data file %s: %w", e.Name(), err)
		}
		out[strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))] = v
	}
	return out, nil
}

func hasDataExt(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range dataFileExts {
		if ext == e {
			return true
		}
	}
	return false
}

// templateFormat returns the configured format name matches, preferring the
// longest suffix so "post.11ty.js" style compound extensions work.
func (s *Site) templateFormat(name string) (string, bool) {
	lower := strings.ToLower(name)
	best := ""
	for _, f := range s.Config.TemplateFormats {
		if strings.HasSuffix(lower, "."+f) && len(f) > len(best) {
			best = f
		}
	}
	return best, best != ""
}

// discover walks the input dir and returns every template file as an Item
// with frontmatter and directory data merged, sorted by input path.
func (s *Site) discover() ([]*Item, error) {
	input := s.Config.InputDir()
	skip := map[string]struct{}{}
	for _, d := range []string{s.Config.IncludesDir(), s.Config.DataDir(), s.Config.OutputDir(), filepath.Join(s.Config.Root, s.Config.CacheDir)} {
		if abs, err := filepath.Abs(d); err == nil {
			skip[abs] = struct{}{}
		}
	}

	dirData := map[string]Metadata{}
	var items []*Item
	seen := map[string]struct{}{}

	err := filepath.WalkDir(input, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				if _, ok := skip[abs]; ok {
					return filepath.SkipDir
				}
			}
			if p != input && (strings.HasPrefix(d.Name(), ".") || d.Name() == "node_modules") {
				return filepath.SkipDir
			}
			data, err := readDirectoryData(p)
			if err != nil {
				return err
			}
			if data != nil {
				rel, _ := filepath.Rel(input, p)
				dirData[filepath.ToSlash(rel)] = data
			}
			return nil
		}
		format, ok := s.templateFormat(d.Name())
		if !ok {
			return nil
		}
		rel, err := filepath.Rel(input, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		seen[rel] = struct{}{}
		item, err := s.readItem(p, rel, format)
		if err != nil {
			return &ItemError{InputPath: rel, Err: err}
		}
		items = append(items, item)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.cache.Retain(seen)

	for _, it := range items {
		it.Data = applyDirectoryData(it.InputPath, it.Data, dirData)
		it.Date = itemDate(it.Data, it.modTime)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].InputPath < items[j].InputPath })
	return items, nil
}

func (s *Site) readItem(abs, rel, format string) (*Item, error) {
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	item := &Item{InputPath: rel, Format: format, modTime: info.ModTime()}
	if data, body, ok := s.cache.Get(rel, info.ModTime(), info.Size()); ok {
		item.Data, item.Body = data, body
		return item, nil
	}
	raw, err := os.ReadFile(abs)
	if err != nil {
		return nil, err
	}
	data, body, err := parseFrontMatter(raw)
	if err != nil {
		return nil, err
	}
	s.cache.Put(rel, info.ModTime(), info.Size(), data, body)
	item.Data, item.Body = data, body
	return item, nil
}

// yamlFrontMatter decodes with yaml.v3 so nested maps come back as
// map[string]any.
var yamlFrontMatter = frontmatter.NewFormat("---", "---", yaml.Unmarshal)

func parseFrontMatter(raw []byte) (Metadata, []byte, error) {
	var fm map[string]any
	body, err := frontmatter.Parse(bytes.NewReader(raw), &fm, yamlFrontMatter)
	if err != nil {
		return nil, nil, fmt.Errorf("parse frontmatter: %w", err)
	}
	if fm == nil {
		fm = map[string]any{}
	}
	return Metadata(fm), body, nil
}

// readDirectoryData loads <dir>/<dirname>.data.{yaml,yml,json} if present.
func readDirectoryData(dir string) (Metadata, error) {
	base := filepath.Base(dir)
	for _, ext := range dataFileExts {
		p := filepath.Join(dir, base+".data"+ext)
		raw, err := os.ReadFile(p)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		var m map[string]any
		if err := yaml.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("pubstatic: parse directory data %s: %w", p, err)
		}
		return Metadata(m), nil
	}
	return nil, nil
}

// applyDirectoryData merges directory data from the input root down to the
// item's own directory; deeper directories and the item itself win.
func applyDirectoryData(inputPath string, data Metadata, dirData map[string]Metadata) Metadata {
	dirs := []string{"."}
	dir := path.Dir(inputPath)
	if dir != "." {
		parts := strings.Split(dir, "/")
		for i := range parts {
			dirs = append(dirs, strings.Join(parts[:i+1], "/"))
		}
	}
	cascade := Metadata{}
	for _, d := range dirs {
		if dd, ok := dirData[d]; ok {
			cascade = merge(dd, cascade)
		}
	}
	return merge(data, cascade)
}

func itemDate(data Metadata, modTime time.Time) time.Time {
	switch v := data["date"].(type) {
	case time.Time:
		return v
	case string:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, strings.TrimSpace(v)); err == nil {
				return t
			}
		}
	}
	return modTime
}

// permalink computes the URL and output path of an item. A permalink of
// false means the item is rendered for collections but never written.
func permalink(it *Item) (url, out string) {
	switch v := it.Data["permalink"].(type) {
	case bool:
		if !v {
			return "", ""
		}
	case string:
		if strings.TrimSpace(v) != "" {
			return explicitPermalink(v)
		}
	}
	dir := path.Dir(it.InputPath)
	stem := fileStem(it.InputPath, it.Format)
	if stem == "index" {
		if dir == "." {
			return "/", "index.html"
		}
		return "/" + dir + "/", dir + "/index.html"
	}
	p := path.Join(dir, stem)
	return "/" + p + "/", p + "/index.html"
}

func explicitPermalink(p string) (url, out string) {
	trailing := strings.HasSuffix(p, "/")
	clean := path.Clean("/" + strings.TrimSpace(p))
	if trailing || clean == "/" {
		if clean == "/" {
			return "/", "index.html"
		}
		return clean + "/", strings.TrimPrefix(clean, "/") + "/index.html"
	}
	if strings.HasSuffix(clean, "/index.html") {
		return strings.TrimSuffix(clean, "index.html"), strings.TrimPrefix(clean, "/")
	}
	return clean, strings.TrimPrefix(clean, "/")
}

func fileStem(inputPath, format string) string {
	return strings.TrimSuffix(path.Base(inputPath), "."+format)
}

func fileSlug(it *Item) string {
	stem := fileStem(it.InputPath, it.Format)
	if stem == "index" {
		if dir := path.Dir(it.InputPath); dir != "." {
			return path.Base(dir)
		}
		return ""
	}
	return stem
}
