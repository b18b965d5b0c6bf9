// Package securefile writes credential artifacts without ever exposing them
// with looser permissions than requested.
//
// Data goes to a temp file created next to the destination with O_EXCL and
// the final mode already applied, then replaces the destination by rename.
// A reader therefore sees either the old file or the complete new one, and
// the new inode never exists with a wider mode.
package securefile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"time"
)

const (
	// PrivateMode is used for private keys and certificates.
	PrivateMode os.FileMode = 0600
	// PublicMode is used for derived public keys.
	PublicMode os.FileMode = 0644
	// DirMode is used for directories that hold key material.
	DirMode os.FileMode = 0700
)

var (
	// ErrFilesystem wraps any I/O or permission failure while writing artifacts.
	ErrFilesystem = errors.New("filesystem failure")

	// ErrInsecureMode is returned when WriteSecret is asked for a mode that
	// grants group or other access.
	ErrInsecureMode = errors.New("insecure file mode")
)

var tempSeq atomic.Uint64

// WriteSecret writes data to path with owner-only permissions. perm must
// not grant any group or other bits.
func WriteSecret(path string, data []byte, perm os.FileMode) error {
	if perm&0077 != 0 {
		return fmt.Errorf("%w: %s requested %#o", ErrInsecureMode, path, perm)
	}
	return WriteFile(path, data, perm)
}

// WriteFile atomically replaces path with data. The file is created with
// perm from the first syscall; the process umask can only narrow it.
func WriteFile(path string, data []byte, perm os.FileMode) error {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}

	f, tmpPath, err := createTemp(dir, base, perm)
	if err != nil {
		return fmt.Errorf("%w: creating temp file for %s: %w", ErrFilesystem, path, err)
	}

	committed := false
	defer func() {
		if !committed {
			f.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("%w: writing %s: %w", ErrFilesystem, path, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("%w: syncing %s: %w", ErrFilesystem, path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: closing %s: %w", ErrFilesystem, path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		committed = true
		return fmt.Errorf("%w: replacing %s: %w", ErrFilesystem, path, err)
	}
	committed = true
	return nil
}

// createTemp is os.CreateTemp with a caller-chosen mode. os.CreateTemp
// always uses 0600, which is too narrow for public keys.
func createTemp(dir, base string, perm os.FileMode) (*os.File, string, error) {
	for i := 0; i < 100; i++ {
		name := filepath.Join(dir, "."+base+".tmp-"+strconv.Itoa(os.Getpid())+"-"+
			strconv.FormatUint(tempSeq.Add(1), 10)+"-"+strconv.FormatInt(time.Now().UnixNano()%1e6, 10))
		f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_EXCL, perm)
		if err == nil {
			return f, name, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", err
		}
	}
	return nil, "", fmt.Errorf("could not create a unique temp file in %s", dir)
}

// EnsureDir creates dir (and parents) with DirMode if it does not exist.
// An existing directory is left untouched.
func EnsureDir(dir string) error {
	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return fmt.Errorf("%w: %s exists and is not a directory", ErrFilesystem, dir)
		}
		return nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: stat %s: %w", ErrFilesystem, dir, err)
	}
	if err := os.MkdirAll(dir, DirMode); err != nil {
		return fmt.Errorf("%w: creating %s: %w", ErrFilesystem, dir, err)
	}
	return nil
}
