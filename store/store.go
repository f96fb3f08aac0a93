// Package store keeps uploaded lecture files on disk, one folder per category:
//
//	<root>/<category>/<file>
//	<root>/deleted/<category>_<YYYYMMDD_HHMMSS>/
//
// Deleted categories stay restorable until Purge removes them.
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gofrs/flock"
	"github.com/rs/zerolog/log"

	"lecturemate/llm/parser"
)

const (
	// DeletedDir holds soft-deleted categories.
	DeletedDir = "deleted"
	// RetentionPeriod is how long a deleted category can be restored.
	RetentionPeriod = 30 * 24 * time.Hour

	timestampLayout = "20060102_150405"
	lockName        = ".lecturemate.lock"
)

var (
	ErrInvalidCategory  = errors.New("invalid category name")
	ErrCategoryNotFound = errors.New("category not found")
	ErrCategoryExists   = errors.New("category already exists")
	ErrNothingToRestore = errors.New("no deleted folder to restore")
)

// Store is a category-organized file store rooted at a data directory.
// Mutations are serialized in-process and across processes by a lock file.
type Store struct {
	root         string
	maxFileBytes int64

	mu   sync.Mutex
	lock *flock.Flock
	now  func() time.Time
}

// New opens (creating if needed) the store at root. maxFileBytes caps a single
// saved file; <= 0 means parser.DefaultMaxFileBytes.
func New(root string, maxFileBytes int64) (*Store, error) {
	if maxFileBytes <= 0 {
		maxFileBytes = parser.DefaultMaxFileBytes
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Store{
		root:         root,
		maxFileBytes: maxFileBytes,
		lock:         flock.New(filepath.Join(root, lockName)),
		now:          time.Now,
	}, nil
}

// Root returns the data directory.
func (s *Store) Root() string { return s.root }

// MaxFileBytes returns the per-file size cap.
func (s *Store) MaxFileBytes() int64 { return s.maxFileBytes }

// CategoryName sanitizes a category the same way file names are sanitized.
func CategoryName(category string) (string, error) {
	name := parser.SanitizeName(category)
	if strings.TrimSpace(name) == "" || name == DeletedDir {
		return "", fmt.Errorf("%w: %q", ErrInvalidCategory, category)
	}
	return name, nil
}

// CategoryDir returns the folder for category.
func (s *Store) CategoryDir(category string) (string, error) {
	name, err := CategoryName(category)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, name), nil
}

// withLock runs fn while holding both the in-process mutex and the file lock.
func (s *Store) withLock(ctx context.Context, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ok, err := s.lock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return fmt.Errorf("acquire store lock: %w", err)
	}
	if !ok {
		return errors.New("store is locked by another process")
	}
	defer func() {
		if err := s.lock.Unlock(); err != nil {
			log.Warn().Err(err).Msg("failed to release store lock")
		}
	}()
	return fn()
}

// Save validates and writes one upload to category, returning the stored path.
// An existing file with the same sanitized name is overwritten.
func (s *Store) Save(ctx context.Context, category, name string, size int64, r io.Reader) (string, error) {
	if err := parser.Validate(name, size, s.maxFileBytes); err != nil {
		return "", err
	}
	safe := parser.SanitizeName(name)
	if strings.TrimSpace(safe) == "" || !isAllowed(safe) {
		return "", &parser.ValidationError{Name: name, Reason: "ファイル名に使用できる文字がありません"}
	}
	dir, err := s.CategoryDir(category)
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, safe)
	err = s.withLock(ctx, func() error {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		return writeCapped(path, r, s.maxFileBytes)
	})
	if err != nil {
		var verr *parser.ValidationError
		if errors.As(err, &verr) {
			verr.Name = name
			return "", verr
		}
		return "", fmt.Errorf("save %s: %w", safe, err)
	}

	log.Info().Str("category", filepath.Base(dir)).Str("file", safe).Msg("file saved")
	return path, nil
}

// isAllowed re-checks the extension after sanitizing, which can strip characters
// around the dot.
func isAllowed(name string) bool {
	ext := parser.Ext(name)
	for _, a := range parser.AllowedExtensions {
		if ext == a {
			return true
		}
	}
	return false
}

func writeCapped(path string, r io.Reader, limit int64) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, io.LimitReader(r, limit+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	if n > limit {
		return &parser.ValidationError{Reason: fmt.Sprintf("ファイルサイズが大きすぎます (上限 %dMB)", limit/1024/1024)}
	}
	return os.Rename(tmp.Name(), path)
}

// Categories lists active categories by name.
func (s *Store) Categories() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() || e.Name() == DeletedDir || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out, nil
}

// Files returns the stored file paths of category sorted by name, so the
// position of each file is the same on every platform.
func (s *Store) Files(category string) ([]string, error) {
	dir, err := s.CategoryDir(category)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrCategoryNotFound, filepath.Base(dir))
	}

	matches, err := doublestar.Glob(os.DirFS(dir), "*")
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	sort.Strings(matches)

	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if strings.HasPrefix(m, ".") {
			continue
		}
		p := filepath.Join(dir, m)
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
			out = append(out, p)
		}
	}
	return out, nil
}
