package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/eringen/pubstatic/scaffold"
)

// scaffoldData holds the template variables passed to every scaffold template.
type scaffoldData struct {
	ProjectName string
	SiteName    string
}

func runNew(name string) error {
	dirName := filepath.Base(filepath.Clean(name))
	target := filepath.Clean(name)

	if _, err := os.Stat(target); err == nil {
		return fmt.Errorf("directory %q already exists", target)
	}

	data := scaffoldData{
		ProjectName: dirName,
		SiteName:    toTitle(dirName),
	}

	fmt.Printf("Creating new pubstatic project: %s\n\n", target)

	files, err := scaffold.Write(target, data)
	if err != nil {
		return err
	}
	for _, f := range files {
		fmt.Printf("  created %s\n", f)
	}

	fmt.Println()
	fmt.Println("Done! Next steps:")
	fmt.Println()
	fmt.Printf("  cd %s\n", target)
	fmt.Println("  pubstatic serve")
	fmt.Println()
	fmt.Println("Write posts in content/blog/ and set metadata.base in pubstatic.yaml before publishing.")
	return nil
}

// toTitle converts a hyphenated or underscored name to a title-case string.
// e.g. "my-blog" -> "My Blog", "myblog" -> "Myblog"
func toTitle(s string) string {
	s = strings.NewReplacer("-", " ", "_", " ").Replace(s)
	return cases.Title(language.English).String(s)
}
