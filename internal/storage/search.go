package storage

import (
	"os"
	"path/filepath"
	"strings"
)

// Search walks the thumbnail tree for image files whose name contains query.
// An empty query matches every image.
func (s *Store) Search(query string, maxResults int) ([]*FileEntry, error) {
	query = strings.ToLower(query)
	absRoot, err := filepath.Abs(s.root)
	if err != nil {
		return nil, err
	}
	base := filepath.Join(absRoot, filepath.FromSlash(ThumbnailDir))
	results := []*FileEntry{}

	err = filepath.Walk(base, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip errors
		}
		if len(results) >= maxResults {
			return filepath.SkipAll
		}
		if strings.HasPrefix(info.Name(), ".") {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() || !IsImageFile(info.Name()) {
			return nil
		}
		if strings.Contains(strings.ToLower(info.Name()), query) {
			rel, _ := filepath.Rel(absRoot, p)
			rel = filepath.ToSlash(rel)
			results = append(results, &FileEntry{
				Name: info.Name(),
				Path: rel,
				URL:  URLFor(rel),
				Size: info.Size(),
			})
		}
		return nil
	})
	return results, err
}
