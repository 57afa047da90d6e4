package pubstatic

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
)

// outputPath resolves a slash separated path below root. Paths escaping
// root are rejected.
func outputPath(root, rel string) (string, error) {
	clean := strings.TrimPrefix(path.Clean("/"+filepath.ToSlash(rel)), "/")
	if clean == "" {
		return "", fmt.Errorf("pubstatic: empty output path %q", rel)
	}
	dest := filepath.Join(root, filepath.FromSlash(clean))
	if r, err := filepath.Rel(root, dest); err != nil || strings.HasPrefix(r, "..") {
		return "", fmt.Errorf("pubstatic: output path %q escapes the output dir", rel)
	}
	return dest, nil
}

func writeOutput(root, rel string, data []byte) error {
	return writeOutputFrom(root, rel, bytes.NewReader(data))
}

// writeOutputFrom replaces the file at rel atomically, so the dev server
// never serves a half written page.
func writeOutputFrom(root, rel string, r io.Reader) error {
	dest, err := outputPath(root, rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("pubstatic: create dir for %s: %w", rel, err)
	}
	if err := atomic.WriteFile(dest, r); err != nil {
		return fmt.Errorf("pubstatic: write %s: %w", rel, err)
	}
	return nil
}
