// Package checksum hashes asset folders so host and clients can compare
// their copies of a map, tileset or techtree.
package checksum

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/ristretto"
)

// Hasher computes folder content checksums and memoizes them.
type Hasher struct {
	memo *ristretto.Cache
}

// New creates a Hasher whose memo holds at most maxEntries results.
func New(maxEntries int64) (*Hasher, error) {
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	memo, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create checksum memo: %w", err)
	}
	return &Hasher{memo: memo}, nil
}

// Close releases the memo.
func (h *Hasher) Close() {
	h.memo.Close()
}

func memoKey(paths []string, pattern, ext string) string {
	return strings.Join(paths, "\x00") + "\x01" + pattern + "\x01" + ext
}

// Checksum hashes every file matched by pattern under each of paths whose
// extension equals ext (any extension when ext is empty). Matched
// directories are walked recursively. Results are memoized unless force is
// set.
func (h *Hasher) Checksum(paths []string, pattern, ext string, force bool) (uint32, error) {
	key := memoKey(paths, pattern, ext)
	if !force {
		if v, ok := h.memo.Get(key); ok {
			return v.(uint32), nil
		}
	}

	files, err := collect(paths, pattern, ext)
	if err != nil {
		return 0, err
	}

	d := xxhash.New()
	for _, f := range files {
		_, _ = d.WriteString(f.rel)
		if err := hashFile(d, f.abs); err != nil {
			return 0, err
		}
	}

	sum := fold(d.Sum64())
	if len(files) == 0 {
		sum = 0
	}
	h.memo.Set(key, sum, 1)
	h.memo.Wait()
	return sum, nil
}

func fold(v uint64) uint32 {
	return uint32(v) ^ uint32(v>>32)
}

type file struct {
	rel string
	abs string
}

func collect(paths []string, pattern, ext string) ([]file, error) {
	var out []file
	seen := make(map[string]bool)

	for _, root := range paths {
		matches, err := filepath.Glob(filepath.Join(root, pattern))
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			err := filepath.WalkDir(m, func(p string, de fs.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if de.IsDir() || (ext != "" && !strings.EqualFold(filepath.Ext(p), ext)) {
					return nil
				}
				rel, err := filepath.Rel(root, p)
				if err != nil {
					return err
				}
				rel = filepath.ToSlash(rel)
				// first root wins, as with overlaid data folders
				if seen[rel] {
					return nil
				}
				seen[rel] = true
				out = append(out, file{rel: rel, abs: p})
				return nil
			})
			if err != nil {
				return nil, fmt.Errorf("walk %s: %w", m, err)
			}
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].rel < out[j].rel })
	return out, nil
}

func hashFile(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}
