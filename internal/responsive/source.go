package responsive

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/unicode/norm"
)

// SourceImage is an original image referenced by a page. Its pixels are
// decoded lazily, at most once, the first time a derivative has to be
// written.
type SourceImage struct {
	// Path is the absolute path of the file.
	Path string
	// Rel is the slash-separated path relative to the images root.
	Rel     string
	Width   int
	Height  int
	Format  string
	ModTime time.Time

	backend Backend
	once    sync.Once
	img     image.Image
	hasA    bool
	err     error
}

// OpenSource stats and probes the image at path. The slug path is taken
// relative to the first of roots that contains the file, or is the base name
// when none does.
func OpenSource(backend Backend, path string, roots ...string) (*SourceImage, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	w, h, format, err := backend.Probe(path)
	if err != nil {
		return nil, fmt.Errorf("probing %s: %w", path, err)
	}

	return &SourceImage{
		Path:    path,
		Rel:     relativeTo(roots, path),
		Width:   w,
		Height:  h,
		Format:  format,
		ModTime: info.ModTime(),
		backend: backend,
	}, nil
}

// Image returns the decoded pixels and whether they carry alpha.
func (s *SourceImage) Image() (image.Image, bool, error) {
	s.once.Do(func() {
		s.img, s.err = s.backend.Decode(s.Path)
		if s.err != nil {
			s.err = fmt.Errorf("decoding %s: %w", s.Path, s.err)
			return
		}
		s.hasA = hasAlpha(s.img)
	})
	return s.img, s.hasA, s.err
}

// Slug returns the derivative file name stem: the NFC-normalized relative
// path with separators replaced by "-".
func (s *SourceImage) Slug() string {
	return norm.NFC.String(strings.ReplaceAll(s.Rel, "/", "-"))
}

func relativeTo(roots []string, path string) string {
	for _, root := range roots {
		if root == "" {
			continue
		}
		rel, err := filepath.Rel(root, path)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return filepath.ToSlash(rel)
		}
	}
	return filepath.Base(path)
}
