package crawler

import (
	"io/fs"
	"path/filepath"
	"strings"

	"cmdnice/internal/extractor"
)

// Crawler scans a directory for source files.
type Crawler struct {
	extensions map[string]bool
	ignored    []string
}

// NewCrawler creates a crawler picking up files with the given extensions.
func NewCrawler(extensions ...string) *Crawler {
	exts := make(map[string]bool, len(extensions))
	for _, e := range extensions {
		exts[strings.ToLower(e)] = true
	}
	return &Crawler{
		extensions: exts,
		ignored:    []string{".git", "node_modules", "sea-modules", "dist"},
	}
}

// Ignore adds directory names to skip.
func (c *Crawler) Ignore(names ...string) {
	c.ignored = append(c.ignored, names...)
}

// ScanProject walks root and streams every matching file to onUnit.
// Unreadable files are skipped; onUnit errors stop the walk.
func (c *Crawler) ScanProject(root string, onUnit func(extractor.SourceUnit) error) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		// Skip ignored directories
		if d.IsDir() {
			if path == root {
				return nil
			}
			for _, ign := range c.ignored {
				if d.Name() == ign {
					return filepath.SkipDir
				}
			}
			return nil
		}

		if !c.Matches(path) {
			return nil
		}

		unit, err := extractor.ReadSourceUnit(path)
		if err != nil {
			return nil
		}
		return onUnit(unit)
	})
}

// Matches reports whether path has one of the crawled extensions.
func (c *Crawler) Matches(path string) bool {
	return c.extensions[strings.ToLower(filepath.Ext(path))]
}

// Collect is ScanProject into a slice, in walk order.
func (c *Crawler) Collect(root string) ([]extractor.SourceUnit, error) {
	var units []extractor.SourceUnit
	err := c.ScanProject(root, func(u extractor.SourceUnit) error {
		units = append(units, u)
		return nil
	})
	return units, err
}
