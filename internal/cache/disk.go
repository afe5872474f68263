package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const tempPrefix = ".tmp-"

// diskTier stores one file per key, named by the SHA-256 of the key and
// sharded by the first two hex characters.
type diskTier struct {
	dir string
}

type diskFile struct {
	path    string
	size    int64
	modTime time.Time
}

func (d *diskTier) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	name := hex.EncodeToString(sum[:])
	return filepath.Join(d.dir, name[:2], name)
}

func (d *diskTier) read(key string) ([]byte, time.Time, error) {
	p := d.path(key)
	info, err := os.Stat(p)
	if err != nil {
		return nil, time.Time{}, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, time.Time{}, err
	}
	return data, info.ModTime(), nil
}

// write stores value atomically and reports whether the key was new.
func (d *diskTier) write(key string, value []byte) (bool, error) {
	p := d.path(key)
	_, statErr := os.Stat(p)
	created := errors.Is(statErr, fs.ErrNotExist)

	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, err
	}

	tmp, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return false, err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		cleanup()
		return false, err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return false, err
	}
	if err := os.Rename(tmpName, p); err != nil {
		cleanup()
		return false, err
	}
	return created, nil
}

func (d *diskTier) remove(key string) error {
	err := os.Remove(d.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// removeIfModTime removes key only when the file still carries modTime.
// Callers serialize it with write.
func (d *diskTier) removeIfModTime(key string, modTime time.Time) (bool, error) {
	p := d.path(key)
	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	if !info.ModTime().Equal(modTime) {
		return false, nil
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, err
	}
	return true, nil
}

// files lists stored entries, newest first.
func (d *diskTier) files() ([]diskFile, error) {
	var out []diskFile
	err := filepath.WalkDir(d.dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if path == d.dir && errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipAll
			}
			return err
		}
		if entry.IsDir() || strings.HasPrefix(entry.Name(), tempPrefix) {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			return nil
		}
		out = append(out, diskFile{path: path, size: info.Size(), modTime: info.ModTime()})
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		return out[i].modTime.After(out[j].modTime)
	})
	return out, err
}

func (d *diskTier) clear() error {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	var errs []error
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(d.dir, e.Name())); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
