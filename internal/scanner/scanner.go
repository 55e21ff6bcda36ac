// Package scanner walks a repository tree and serves parsed files to
// the audit orchestrator.
package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/corehq/warden/internal/parser"
)

// skipDirs are never descended into during the walk.
var skipDirs = map[string]bool{
	".git":          true,
	".hg":           true,
	".svn":          true,
	"node_modules":  true,
	"vendor":        true,
	"venv":          true,
	".venv":         true,
	"__pycache__":   true,
	".pytest_cache": true,
	".mypy_cache":   true,
	"dist":          true,
	"build":         true,
	".tox":          true,
	".eggs":         true,
	"site-packages": true,
}

// Repo is one scanned repository: its file list plus a parse cache.
// Files are parsed at most once per run regardless of how many rules
// match them.
type Repo struct {
	Root    string
	Files   []string // relative, slash-separated, sorted
	parsers *parser.Registry

	mu    sync.Mutex
	cache map[string]*cachedParse
}

type cachedParse struct {
	once sync.Once
	file *parser.SourceFile
	err  error
}

// Walk lists every regular file under root, skipping VCS and build
// directories. The returned list is sorted for deterministic iteration.
func Walk(root string, parsers *parser.Registry) (*Repo, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat repository root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("repository root %s is not a directory", root)
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != root && (skipDirs[name] || strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk repository: %w", err)
	}
	sort.Strings(files)

	return &Repo{
		Root:    root,
		Files:   files,
		parsers: parsers,
		cache:   make(map[string]*cachedParse),
	}, nil
}

// Match intersects scope globs against the file list, then removes
// exclusion matches. Patterns use doublestar (** spans directories).
func (r *Repo) Match(scope, exclusions []string) ([]string, error) {
	var matched []string
	for _, file := range r.Files {
		ok, err := matchAny(scope, file)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		excluded, err := matchAny(exclusions, file)
		if err != nil {
			return nil, err
		}
		if !excluded {
			matched = append(matched, file)
		}
	}
	return matched, nil
}

// Parse returns the structural representation for a file, parsing on
// first use. Concurrent callers for the same file share one parse: the
// worker pool dispatches many rules against the same path and each file
// must be parsed exactly once per run.
func (r *Repo) Parse(ctx context.Context, relPath string) (*parser.SourceFile, error) {
	r.mu.Lock()
	c, ok := r.cache[relPath]
	if !ok {
		c = &cachedParse{}
		r.cache[relPath] = c
	}
	r.mu.Unlock()

	c.once.Do(func() {
		c.file, c.err = r.parseFile(ctx, relPath)
	})
	return c.file, c.err
}

func (r *Repo) parseFile(ctx context.Context, relPath string) (*parser.SourceFile, error) {
	src, err := os.ReadFile(filepath.Join(r.Root, filepath.FromSlash(relPath)))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", relPath, err)
	}

	p, ok := r.parsers.ForPath(relPath)
	if !ok {
		// No structural parse for this language; textual and
		// process-state rules still apply.
		return &parser.SourceFile{
			Path:     relPath,
			Language: "text",
			Source:   src,
			Lines:    splitLines(src),
		}, nil
	}

	file, err := p.Parse(ctx, relPath, src)
	if err != nil {
		return nil, err
	}
	return file, nil
}

func matchAny(patterns []string, path string) (bool, error) {
	for _, pat := range patterns {
		ok, err := doublestar.Match(pat, path)
		if err != nil {
			return false, fmt.Errorf("invalid glob %q: %w", pat, err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func splitLines(src []byte) []string {
	return strings.Split(strings.ReplaceAll(string(src), "\r\n", "\n"), "\n")
}
