package pubstatic

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// passthroughTarget returns where a passthrough source lands, relative to
// the output dir. Without an explicit destination the source keeps its
// path relative to the input dir.
func (c *SiteConfig) passthroughTarget(p PassthroughCopy) string {
	if p.To != "" {
		return strings.TrimPrefix(path.Clean("/"+filepath.ToSlash(p.To)), "/")
	}
	from := path.Clean(filepath.ToSlash(p.From))
	input := path.Clean(filepath.ToSlash(c.Dir.Input))
	if input != "." && strings.HasPrefix(from, input+"/") {
		return strings.TrimPrefix(from, input+"/")
	}
	return strings.TrimPrefix(from, "/")
}

// copyPassthrough copies every configured passthrough entry into the
// output dir and returns the number of files copied. Missing sources are
// skipped.
func (s *Site) copyPassthrough(b *BuildContext) (int, error) {
	copied := 0
	for _, p := range s.Config.Passthrough {
		src := filepath.Join(s.Config.Root, filepath.FromSlash(p.From))
		info, err := os.Stat(src)
		if errors.Is(err, os.ErrNotExist) {
			b.Logger().Debug("passthrough source missing", "from", p.From)
			continue
		}
		if err != nil {
			return copied, fmt.Errorf("pubstatic: passthrough %s: %w", p.From, err)
		}
		target := s.Config.passthroughTarget(p)
		if !info.IsDir() {
			if err := b.copyFile(src, target); err != nil {
				return copied, err
			}
			copied++
			continue
		}
		err = filepath.WalkDir(src, func(fp string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			rel, err := filepath.Rel(src, fp)
			if err != nil {
				return err
			}
			if err := b.copyFile(fp, path.Join(target, filepath.ToSlash(rel))); err != nil {
				return err
			}
			copied++
			return nil
		})
		if err != nil {
			return copied, fmt.Errorf("pubstatic: passthrough %s: %w", p.From, err)
		}
	}
	return copied, nil
}

func (b *BuildContext) copyFile(src, rel string) error {
	if prev, taken := b.run.claim(src, rel); taken {
		return fmt.Errorf("%w: %s written by %s and %s", ErrPermalinkConflict, rel, prev, src)
	}
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()
	return writeOutputFrom(b.Config().OutputDir(), rel, f)
}
