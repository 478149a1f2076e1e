// Package media stores uploaded poster images and videos on local disk
// under generated collision-free names.
package media

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Clark-Hu/movie-reviews/internal/domain"
)

// RefPrefix prefixes every reference returned by Save.
const RefPrefix = "uploads/"

// ErrTooLarge is returned when an upload exceeds the configured limit.
var ErrTooLarge = errors.New("uploaded file is too large")

// Kind selects the extension allow-list applied to an upload.
type Kind int

const (
	Image Kind = iota
	Video
)

func (k Kind) String() string {
	if k == Video {
		return "video"
	}
	return "image"
}

var allowed = map[Kind]map[string]struct{}{
	Image: {"png": {}, "jpg": {}, "jpeg": {}, "gif": {}, "webp": {}},
	Video: {"mp4": {}, "webm": {}, "ogg": {}, "mov": {}, "avi": {}},
}

// Allowed reports whether filename carries an extension accepted for kind.
// The comparison ignores case.
func Allowed(filename string, kind Kind) (ext string, ok bool) {
	ext = strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	_, ok = allowed[kind][ext]
	return ext, ok
}

// Ingestor writes uploads into Dir.
type Ingestor struct {
	Dir      string
	MaxBytes int64
	Logger   *zap.Logger
}

func (in *Ingestor) logger() *zap.Logger {
	if in.Logger == nil {
		return zap.NewNop()
	}
	return in.Logger
}

// Save copies r into a new file named after a random UUID and the lowercased
// extension of filename, and returns its reference. A filename whose
// extension is not allowed for kind yields ok=false and no error.
func (in *Ingestor) Save(r io.Reader, filename string, kind Kind) (ref string, ok bool, err error) {
	ext, ok := Allowed(filename, kind)
	if !ok {
		in.logger().Info("upload rejected by extension", zap.String("filename", filename), zap.Stringer("kind", kind))
		return "", false, nil
	}
	if err := os.MkdirAll(in.Dir, 0o755); err != nil {
		return "", false, fmt.Errorf("create upload dir: %w", err)
	}

	name := uuid.NewString() + "." + ext
	path := filepath.Join(in.Dir, name)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", false, fmt.Errorf("create upload file: %w", err)
	}

	src := r
	if in.MaxBytes > 0 {
		src = io.LimitReader(r, in.MaxBytes+1)
	}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && in.MaxBytes > 0 && n > in.MaxBytes {
		err = ErrTooLarge
	}
	if err != nil {
		_ = os.Remove(path)
		if !errors.Is(err, ErrTooLarge) {
			err = fmt.Errorf("write upload file: %w", err)
		}
		return "", false, err
	}

	in.logger().Info("upload stored", zap.String("name", name), zap.Int64("bytes", n), zap.Stringer("kind", kind))
	return RefPrefix + name, true, nil
}

// IsRef reports whether a stored image or video reference points at an
// ingested file. Stored references carry a leading slash.
func IsRef(ref string) bool {
	return strings.HasPrefix(strings.TrimPrefix(ref, "/"), RefPrefix)
}

func nameOf(ref string) (string, error) {
	name := strings.TrimPrefix(strings.TrimPrefix(ref, "/"), RefPrefix)
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return "", fmt.Errorf("invalid upload name %q: %w", ref, domain.ErrNotFound)
	}
	return name, nil
}

// Remove deletes an ingested file. Missing files are not an error.
func (in *Ingestor) Remove(ref string) error {
	name, err := nameOf(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(in.Dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove upload: %w", err)
	}
	in.logger().Info("upload removed", zap.String("name", name))
	return nil
}

// Open opens a stored file by name for serving. Names containing path
// separators are rejected with domain.ErrNotFound.
func (in *Ingestor) Open(name string) (*os.File, error) {
	name, err := nameOf(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(in.Dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	return f, nil
}
