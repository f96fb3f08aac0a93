package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// TrashEntry is a soft-deleted category folder.
type TrashEntry struct {
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	DeletedAt time.Time `json:"deleted_at"`
	ModTime   time.Time `json:"mod_time"`
	Path      string    `json:"-"`
}

func (s *Store) trashDir() string { return filepath.Join(s.root, DeletedDir) }

// Delete moves category to the deleted folder and returns the new path. Deleted
// folders past RetentionPeriod are purged afterwards.
func (s *Store) Delete(ctx context.Context, category string) (string, error) {
	dir, err := s.CategoryDir(category)
	if err != nil {
		return "", err
	}
	name := filepath.Base(dir)

	var target string
	err = s.withLock(ctx, func() error {
		if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrCategoryNotFound, name)
		}
		if err := os.MkdirAll(s.trashDir(), 0o755); err != nil {
			return err
		}

		base := filepath.Join(s.trashDir(), name+"_"+s.now().Format(timestampLayout))
		target = base
		for i := 2; ; i++ {
			if _, err := os.Stat(target); errors.Is(err, fs.ErrNotExist) {
				break
			}
			target = base + "." + strconv.Itoa(i)
		}
		if err := os.Rename(dir, target); err != nil {
			return err
		}
		// restore picks the newest folder by mtime
		now := s.now()
		return os.Chtimes(target, now, now)
	})
	if err != nil {
		return "", err
	}

	log.Info().Str("category", name).Str("trash", filepath.Base(target)).Msg("category deleted")
	if _, err := s.Purge(ctx); err != nil {
		log.Warn().Err(err).Msg("purge of expired trash failed")
	}
	return target, nil
}

// Restore moves the most recently deleted folder of category back. It fails with
// ErrCategoryExists when the category was recreated in the meantime.
func (s *Store) Restore(ctx context.Context, category string) (string, error) {
	dir, err := s.CategoryDir(category)
	if err != nil {
		return "", err
	}
	name := filepath.Base(dir)

	err = s.withLock(ctx, func() error {
		if _, err := os.Stat(dir); err == nil {
			return fmt.Errorf("%w: %s", ErrCategoryExists, name)
		}
		entries, err := s.trash()
		if err != nil {
			return err
		}

		var latest *TrashEntry
		for i := range entries {
			e := &entries[i]
			if e.Category != name {
				continue
			}
			if latest == nil || e.ModTime.After(latest.ModTime) ||
				(e.ModTime.Equal(latest.ModTime) && e.Name > latest.Name) {
				latest = e
			}
		}
		if latest == nil {
			return fmt.Errorf("%w: %s", ErrNothingToRestore, name)
		}
		return os.Rename(latest.Path, dir)
	})
	if err != nil {
		return "", err
	}

	log.Info().Str("category", name).Msg("category restored")
	return dir, nil
}

// Trash lists deleted folders, newest first.
func (s *Store) Trash() ([]TrashEntry, error) {
	entries, err := s.trash()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].ModTime.After(entries[j].ModTime)
	})
	return entries, nil
}

func (s *Store) trash() ([]TrashEntry, error) {
	dirEntries, err := os.ReadDir(s.trashDir())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list deleted folders: %w", err)
	}

	var out []TrashEntry
	for _, de := range dirEntries {
		if !de.IsDir() {
			continue
		}
		category, deletedAt, ok := parseTrashName(de.Name())
		if !ok {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		out = append(out, TrashEntry{
			Name:      de.Name(),
			Category:  category,
			DeletedAt: deletedAt,
			ModTime:   info.ModTime(),
			Path:      filepath.Join(s.trashDir(), de.Name()),
		})
	}
	return out, nil
}

// parseTrashName splits "<category>_<YYYYMMDD_HHMMSS>[.N]".
func parseTrashName(name string) (string, time.Time, bool) {
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		if _, err := strconv.Atoi(name[i+1:]); err == nil {
			name = name[:i]
		}
	}
	n := len(timestampLayout)
	if len(name) < n+2 || name[len(name)-n-1] != '_' {
		return "", time.Time{}, false
	}
	ts, err := time.ParseInLocation(timestampLayout, name[len(name)-n:], time.Local)
	if err != nil {
		return "", time.Time{}, false
	}
	return name[:len(name)-n-1], ts, true
}

// Purge permanently removes deleted folders whose modification time is older than
// RetentionPeriod and returns how many were removed.
func (s *Store) Purge(ctx context.Context) (int, error) {
	removed := 0
	err := s.withLock(ctx, func() error {
		dirEntries, err := os.ReadDir(s.trashDir())
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return err
		}

		cutoff := s.now().Add(-RetentionPeriod)
		for _, de := range dirEntries {
			if !de.IsDir() {
				continue
			}
			info, err := de.Info()
			if err != nil || !info.ModTime().Before(cutoff) {
				continue
			}
			path := filepath.Join(s.trashDir(), de.Name())
			if err := removeAll(path); err != nil {
				log.Warn().Err(err).Str("path", path).Msg("purge failed")
				continue
			}
			removed++
		}
		return nil
	})
	if removed > 0 {
		log.Info().Int("removed", removed).Msg("purged deleted categories")
	}
	return removed, err
}

// removeAll clears read-only bits that would block removal on some platforms.
func removeAll(path string) error {
	err := os.RemoveAll(path)
	if err == nil {
		return nil
	}
	_ = filepath.WalkDir(path, func(p string, d fs.DirEntry, werr error) error {
		if werr == nil {
			_ = os.Chmod(p, 0o755)
		}
		return nil
	})
	return os.RemoveAll(path)
}
