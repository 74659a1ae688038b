package commands

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

//go:embed all:templates
var templateFS embed.FS

// Project templates.
const (
	templateMinimal = "minimal"
	templateExample = "example"
)

// templateFile is one file of a project template after it was copied.
type templateFile struct {
	// Path is relative to the project directory, slash separated.
	Path    string
	Skipped bool
}

// copyTemplate copies an embedded template directory into targetDir.
// Existing files are kept unless force is set. Embedded paths are always
// slash separated, so they are joined with path and converted only when
// touching the file system.
func copyTemplate(templateName, targetDir string, force bool) ([]templateFile, error) {
	root := path.Join("templates", templateName)
	if _, err := fs.Stat(templateFS, root); err != nil {
		return nil, fmt.Errorf("unknown template %q", templateName)
	}

	var files []templateFile
	err := fs.WalkDir(templateFS, root, func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel := strings.TrimPrefix(strings.TrimPrefix(name, root), "/")
		if rel == "" {
			return nil
		}

		rel = renameSpecialFiles(rel)
		target := filepath.Join(targetDir, filepath.FromSlash(rel))

		if d.IsDir() {
			return os.MkdirAll(target, 0750)
		}

		if !force {
			if _, err := os.Stat(target); err == nil {
				files = append(files, templateFile{Path: rel, Skipped: true})
				return nil
			}
		}

		content, err := templateFS.ReadFile(name)
		if err != nil {
			return err
		}
		if err := os.WriteFile(target, content, 0600); err != nil {
			return err
		}
		files = append(files, templateFile{Path: rel})
		return nil
	})
	return files, err
}

// renameSpecialFiles maps embedded names to their on-disk names. Dotfiles
// are stored without the dot because embed skips them in plain patterns.
func renameSpecialFiles(rel string) string {
	dir, base := path.Split(rel)
	if base == "gitignore" {
		return dir + ".gitignore"
	}
	return rel
}

// groupTemplateFiles splits copied files into project configuration and
// sample cells.
func groupTemplateFiles(files []templateFile) (config, cells []templateFile) {
	for _, f := range files {
		if strings.HasPrefix(f.Path, "cells/") {
			cells = append(cells, f)
			continue
		}
		config = append(config, f)
	}
	return config, cells
}
