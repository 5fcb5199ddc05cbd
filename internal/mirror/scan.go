package mirror

import (
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// Entry is a regular file found under a scan root.
type Entry struct {
	// Path is relative to the root and slash separated.
	Path string
	// Abs is the file's location on disk.
	Abs  string
	Size int64
}

// Scan lists every regular file under root that no exclude pattern matches,
// sorted by relative path.
func Scan(root string, exclude []string) ([]Entry, error) {
	matcher, err := NewMatcher(exclude)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return fmt.Errorf("relative path of %s: %w", p, err)
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel != "." && matcher.Match(rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || matcher.Match(rel) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		entries = append(entries, Entry{Path: rel, Abs: p, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Path < entries[j].Path
	})
	return entries, nil
}

// Matcher applies rsync-style exclude patterns to slash-separated paths.
//
//	*.tmp       any file whose base name matches
//	drafts/     a directory and everything under it
//	docs/**.md  prefix and suffix around a recursive wildcard
//	a/b.txt     an exact relative path (path.Match syntax)
type Matcher struct {
	patterns []string
}

func NewMatcher(patterns []string) (*Matcher, error) {
	for i, p := range patterns {
		if strings.Count(p, "**") > 1 {
			return nil, fmt.Errorf("exclude pattern %d %q: at most one ** is supported", i, p)
		}
		if _, err := path.Match(strings.ReplaceAll(strings.TrimSuffix(p, "/"), "**", "*"), ""); err != nil {
			return nil, fmt.Errorf("exclude pattern %d %q: %w", i, p, err)
		}
	}
	return &Matcher{patterns: patterns}, nil
}

// Match reports whether rel is excluded. Directory paths carry a trailing slash.
func (m *Matcher) Match(rel string) bool {
	for _, p := range m.patterns {
		if matchPattern(rel, p) {
			return true
		}
	}
	return false
}

func matchPattern(rel, pattern string) bool {
	isDir := strings.HasSuffix(rel, "/")
	rel = strings.TrimSuffix(rel, "/")

	if strings.HasSuffix(pattern, "/") {
		dir := strings.TrimSuffix(pattern, "/")
		return rel == dir || strings.HasPrefix(rel, dir+"/") || (isDir && baseMatch(rel, dir))
	}
	if isDir {
		return false
	}

	if before, after, ok := strings.Cut(pattern, "**"); ok {
		return strings.HasPrefix(rel, before) && strings.HasSuffix(rel[len(before):], after)
	}

	if !strings.Contains(pattern, "/") {
		return baseMatch(rel, pattern)
	}
	ok, _ := path.Match(pattern, rel)
	return ok
}

func baseMatch(rel, pattern string) bool {
	ok, _ := path.Match(pattern, path.Base(rel))
	return ok
}
