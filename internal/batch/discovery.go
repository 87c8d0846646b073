package batch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// Selection decides which files a directory argument expands to.
type Selection struct {
	Recursive bool
	Include   []string // base-name globs; empty includes everything
	Exclude   []string // base-name globs, checked first
	Accept    func(path string) bool
}

// Discover expands args into the files to process. Files named directly are
// kept even when Accept rejects them so the caller sees why they fail;
// files found in directories must pass Accept and the patterns.
func Discover(args []string, sel Selection) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			if os.IsNotExist(err) {
				files = append(files, arg)
				continue
			}
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}
		if !info.IsDir() {
			if !matchesAny(arg, sel.Exclude) {
				files = append(files, arg)
			}
			continue
		}
		found, err := discoverInDirectory(arg, sel)
		if err != nil {
			return nil, err
		}
		files = append(files, found...)
	}
	return files, nil
}

func discoverInDirectory(dir string, sel Selection) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if !sel.Recursive && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if sel.Accept != nil && !sel.Accept(path) {
			return nil
		}
		if sel.include(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}

func (s Selection) include(path string) bool {
	if matchesAny(path, s.Exclude) {
		return false
	}
	return len(s.Include) == 0 || matchesAny(path, s.Include)
}

func matchesAny(path string, patterns []string) bool {
	base := filepath.Base(path)
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, base); ok {
			return true
		}
	}
	return false
}
