package fs

import (
	"fmt"
	iofs "io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	"vectorchat/internal/domain"
	"vectorchat/internal/port"
)

// Walker lists files under a root whose relative path matches an include
// glob and no exclude glob. Patterns without a slash match the base name.
// Matching is case-insensitive.
type Walker struct {
	includes []string
	excludes []string
}

func NewWalker(includes, excludes []string) *Walker {
	if len(includes) == 0 {
		includes = []string{"**/*"}
	}
	return &Walker{
		includes: lower(includes),
		excludes: lower(excludes),
	}
}

func (w *Walker) Walk(root string) ([]port.FileInfo, error) {
	var files []port.FileInfo

	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", domain.ErrInvalidInput, root)
	}

	err = filepath.WalkDir(root, func(path string, d iofs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		relPath = strings.ToLower(filepath.ToSlash(relPath))

		if d.IsDir() {
			if relPath != "." && (w.shouldExclude(relPath) || w.shouldExclude(relPath+"/")) {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() || !w.shouldInclude(relPath) || w.shouldExclude(relPath) {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, port.FileInfo{
			Path:    path,
			ModTime: fi.ModTime().Unix(),
			Size:    fi.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func (w *Walker) shouldInclude(path string) bool {
	return matchAny(w.includes, path)
}

func (w *Walker) shouldExclude(path string) bool {
	return matchAny(w.excludes, path)
}

func matchAny(patterns []string, path string) bool {
	base := path[strings.LastIndex(path, "/")+1:]
	for _, pattern := range patterns {
		target := path
		if !strings.Contains(pattern, "/") {
			target = base
		}
		matched, err := doublestar.Match(pattern, target)
		if err == nil && matched {
			return true
		}
	}
	return false
}

func lower(patterns []string) []string {
	out := make([]string, len(patterns))
	for i, p := range patterns {
		out[i] = strings.ToLower(p)
	}
	return out
}

// ReadFile returns the file's content as text. Binary or non-UTF-8 files are
// rejected with ErrInvalidInput.
func ReadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: %s is not valid UTF-8 text", domain.ErrInvalidInput, path)
	}
	return string(data), nil
}
