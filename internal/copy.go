package internal

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// copyResult describes bytes written by copyFileAtomic
type copyResult struct {
	Hash string
	Size int64
}

// copyFileAtomic copies src to dest through a temp file, so dest is either
// complete or absent. The source modification time is kept and an existing
// dest is never replaced.
func copyFileAtomic(src, dest string) (copyResult, error) {
	in, err := os.Open(src)
	if err != nil {
		return copyResult{}, err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return copyResult{}, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*.tmp")
	if err != nil {
		return copyResult{}, err
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	h := sha256.New()
	written, err := io.Copy(io.MultiWriter(tmp, h), in)
	if err != nil {
		cleanup()
		return copyResult{}, err
	}
	if written != info.Size() {
		cleanup()
		return copyResult{}, fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", info.Size(), written)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return copyResult{}, err
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return copyResult{}, err
	}
	if err := os.Chtimes(tmpName, info.ModTime(), info.ModTime()); err != nil {
		os.Remove(tmpName)
		return copyResult{}, err
	}
	if err := publish(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return copyResult{}, err
	}

	return copyResult{Hash: fmt.Sprintf("%x", h.Sum(nil)), Size: written}, nil
}

// publish moves tmp to dest without ever replacing an existing dest. A hard
// link fails atomically when dest exists; filesystems without links fall back
// to a checked rename.
func publish(tmp, dest string) error {
	err := os.Link(tmp, dest)
	if err == nil {
		return os.Remove(tmp)
	}
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("%w: %s", ErrDestinationExists, dest)
	}
	if _, statErr := os.Lstat(dest); statErr == nil {
		return fmt.Errorf("%w: %s", ErrDestinationExists, dest)
	}
	return os.Rename(tmp, dest)
}

// counterName inserts a zero-padded counter before the extension: photo.jpg -> photo_001.jpg
func counterName(base string, n int) string {
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return fmt.Sprintf("%s_%03d%s", stem, n, ext)
}
