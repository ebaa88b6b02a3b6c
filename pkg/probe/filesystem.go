package probe

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultMarkerGlob matches the dot-prefixed marker naming convention
// for partially written destination files, at any depth under the root.
const DefaultMarkerGlob = "**/.plot-k*"

// MarkerFile is one raw (size, path) observation from a filesystem
// scan, before any grammar parsing.
type MarkerFile struct {
	Path  string
	Bytes int64
}

// FilesystemProbe lists in-flight marker files under a destination
// root via a recursive walk.
type FilesystemProbe struct {
	glob string
}

// NewFilesystemProbe returns a probe matching markers against glob.
// An empty glob selects DefaultMarkerGlob.
func NewFilesystemProbe(glob string) (*FilesystemProbe, error) {
	if glob == "" {
		glob = DefaultMarkerGlob
	}
	if !doublestar.ValidatePattern(glob) {
		return nil, errors.New("invalid marker glob pattern: " + glob)
	}
	return &FilesystemProbe{glob: glob}, nil
}

// ListMarkers walks root and returns every matching marker with its
// current byte size.
//
// A walk that exceeds the timeout degrades to an empty result
// (degraded=true): "no jobs currently observable" rather than an error.
// Unreadable entries are skipped; only a failure to access the root
// itself is returned as an error.
func (p *FilesystemProbe) ListMarkers(ctx context.Context, root string, timeout time.Duration) ([]MarkerFile, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	root = filepath.Clean(root)
	var out []MarkerFile

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			// A vanished or unreadable entry is expected while copies
			// are completing; skip it.
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		matched, matchErr := doublestar.Match(p.glob, filepath.ToSlash(rel))
		if matchErr != nil || !matched {
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			// File disappeared between listing and stat.
			return nil
		}
		out = append(out, MarkerFile{Path: path, Bytes: info.Size()})
		return nil
	})

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, true, nil
		}
		return nil, false, err
	}
	return out, false, nil
}

// Glob returns the active marker pattern.
func (p *FilesystemProbe) Glob() string {
	return p.glob
}

// NormalizeRoot trims and ensures a single trailing slash, the form the
// filename codec anchors on.
func NormalizeRoot(root string) string {
	root = strings.TrimSpace(root)
	if root == "" {
		return root
	}
	return strings.TrimRight(root, "/") + "/"
}
