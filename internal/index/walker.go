package index

import (
	"bytes"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"code-review-orchestrator/internal/config"
)

// RepoFile is one indexable file found while walking a repository.
type RepoFile struct {
	// Path is the repository-relative path with forward slashes.
	Path string
	// AbsPath is the location on disk.
	AbsPath string
	Size    int64
}

// walkRepository lists indexable files under root, honoring include and
// exclude patterns, the size cap, and binary detection.
func walkRepository(root string, cfg config.IndexingConfig) ([]RepoFile, error) {
	var files []RepoFile

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel != "." && excluded(rel+"/", cfg.ExcludePatterns) {
				return filepath.SkipDir
			}
			return nil
		}

		if excluded(rel, cfg.ExcludePatterns) {
			return nil
		}
		if len(cfg.IncludePatterns) > 0 && !included(rel, cfg.IncludePatterns) {
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			return nil // vanished mid-walk
		}
		if cfg.MaxFileSize > 0 && info.Size() > cfg.MaxFileSize {
			return nil
		}
		if isBinaryFile(path) {
			return nil
		}

		files = append(files, RepoFile{Path: rel, AbsPath: path, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// excluded checks a relative path against exclude patterns: directory
// fragments (trailing slash) match anywhere in the path, glob patterns
// match the basename.
func excluded(rel string, patterns []string) bool {
	for _, p := range patterns {
		if strings.HasSuffix(p, "/") {
			if strings.Contains("/"+rel, "/"+p) {
				return true
			}
			continue
		}
		if ok, _ := filepath.Match(p, filepath.Base(rel)); ok {
			return true
		}
	}
	return false
}

func included(rel string, patterns []string) bool {
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, filepath.Base(rel)); ok {
			return true
		}
		if ok, _ := filepath.Match(p, rel); ok {
			return true
		}
		if strings.HasSuffix(p, "/") && strings.Contains("/"+rel, "/"+p) {
			return true
		}
	}
	return false
}

// isBinaryFile sniffs the first bytes of a file for NUL, the same heuristic
// git uses.
func isBinaryFile(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return true
	}
	defer f.Close()

	buf := make([]byte, 8000)
	n, _ := f.Read(buf)
	if n == 0 {
		return false
	}
	return bytes.IndexByte(buf[:n], 0) != -1
}
