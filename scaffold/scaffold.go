// Package scaffold provides the embedded starter site written by
// "pubstatic new".
package scaffold

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

// Templates contains all scaffold files under templates/. Files with a
// .tmpl suffix use Go text/template syntax; the rest are copied verbatim.
//
//go:embed all:templates
var Templates embed.FS

const root = "templates"

// Write materializes the starter site into dir, executing .tmpl files with
// data. It returns the created file paths in walk order.
func Write(dir string, data any) ([]string, error) {
	var created []string
	err := fs.WalkDir(Templates, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(root, filepath.FromSlash(path))
		if err != nil {
			return err
		}
		outPath := filepath.Join(dir, relPath)
		isTemplate := strings.HasSuffix(outPath, ".tmpl")
		outPath = strings.TrimSuffix(outPath, ".tmpl")

		// Rename dotenv to .env.example.
		if filepath.Base(outPath) == "dotenv" {
			outPath = filepath.Join(filepath.Dir(outPath), ".env.example")
		}

		if d.IsDir() {
			return os.MkdirAll(outPath, 0o755)
		}

		content, err := Templates.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
			return err
		}

		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create %s: %w", outPath, err)
		}
		defer f.Close()

		if isTemplate {
			tmpl, err := template.New(filepath.Base(path)).Parse(string(content))
			if err != nil {
				return fmt.Errorf("parse template %s: %w", path, err)
			}
			if err := tmpl.Execute(f, data); err != nil {
				return fmt.Errorf("execute template %s: %w", path, err)
			}
		} else if _, err := f.Write(content); err != nil {
			return fmt.Errorf("write %s: %w", outPath, err)
		}

		created = append(created, outPath)
		return nil
	})
	return created, err
}
