package internal

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// Wrapper folders added by Google Takeout. Some exports omit the Takeout level.
var wrapperPrefixes = []string{"Takeout/Google Photos/", "Google Photos/"}

const workDirPattern = "takeout-organizer-"

var ErrNoValidArchives = errors.New("no valid archives to process")

// ArchiveError reports a failure that affects one archive only
type ArchiveError struct {
	Archive string
	Err     error
}

func (e *ArchiveError) Error() string {
	return fmt.Sprintf("archive %s: %v", e.Archive, e.Err)
}

func (e *ArchiveError) Unwrap() error {
	return e.Err
}

// MediaEntry is one non-sidecar file extracted from an archive.
// SourcePath is only valid until the walk moves past the archive.
type MediaEntry struct {
	Archive     string
	RelPath     string // slash separated, wrapper prefix removed
	SourcePath  string
	SidecarPath string // empty when no sidecar matched
	Extension   string
	ModTime     time.Time
	Size        int64
}

// Name is the file name as it appeared in the archive
func (e MediaEntry) Name() string {
	return path.Base(e.RelPath)
}

// WalkStats counts what a walk has seen so far
type WalkStats struct {
	ArchivesWalked int
	ArchivesFailed int
	FilesFound     int
	Sidecars       int
	SidecarsPaired int
}

type Walker struct {
	workRoot      string
	sidecarSuffix string
	log           *slog.Logger
	stats         WalkStats
}

func NewWalker(workRoot, sidecarSuffix string, logger *slog.Logger) *Walker {
	if sidecarSuffix == "" {
		sidecarSuffix = ".json"
	}
	return &Walker{
		workRoot:      workRoot,
		sidecarSuffix: sidecarSuffix,
		log:           logger,
	}
}

func (w *Walker) Stats() WalkStats {
	return w.stats
}

// ValidateArchives splits paths into readable zip files and per-archive errors
func ValidateArchives(paths []string) ([]string, []*ArchiveError) {
	var valid []string
	var errs []*ArchiveError
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			errs = append(errs, &ArchiveError{Archive: p, Err: err})
			continue
		}
		if !info.Mode().IsRegular() {
			errs = append(errs, &ArchiveError{Archive: p, Err: errors.New("not a regular file")})
			continue
		}
		r, err := zip.OpenReader(p)
		if err != nil {
			errs = append(errs, &ArchiveError{Archive: p, Err: fmt.Errorf("not a valid zip file: %w", err)})
			continue
		}
		r.Close()
		valid = append(valid, p)
	}
	return valid, errs
}

// Walk extracts each archive into its own work directory and yields its media
// files. A broken archive yields a single *ArchiveError and the walk moves on.
// Each work directory is removed once its entries are consumed or the consumer
// stops early.
func (w *Walker) Walk(ctx context.Context, archives []string) iter.Seq2[MediaEntry, error] {
	return func(yield func(MediaEntry, error) bool) {
		for _, archive := range archives {
			if err := ctx.Err(); err != nil {
				yield(MediaEntry{}, err)
				return
			}
			if !w.walkArchive(ctx, archive, yield) {
				return
			}
		}
	}
}

// walkArchive returns false when iteration must stop
func (w *Walker) walkArchive(ctx context.Context, archive string, yield func(MediaEntry, error) bool) bool {
	if err := os.MkdirAll(w.workRoot, 0755); err != nil {
		w.stats.ArchivesFailed++
		return yield(MediaEntry{}, &ArchiveError{Archive: archive, Err: fmt.Errorf("failed to create work root: %w", err)})
	}
	workDir, err := os.MkdirTemp(w.workRoot, workDirPattern)
	if err != nil {
		w.stats.ArchivesFailed++
		return yield(MediaEntry{}, &ArchiveError{Archive: archive, Err: fmt.Errorf("failed to create work directory: %w", err)})
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			w.log.Warn("failed to remove work directory", "dir", workDir, "error", err)
		}
	}()

	w.log.Info("extracting archive", "archive", archive)
	files, err := extractArchive(archive, workDir)
	if err != nil {
		w.stats.ArchivesFailed++
		return yield(MediaEntry{}, &ArchiveError{Archive: archive, Err: err})
	}
	w.stats.ArchivesWalked++

	entries := w.pair(archive, workDir, files)
	w.log.Info("archive extracted", "archive", archive, "files", len(files), "media", len(entries))
	if len(entries) == 0 {
		w.log.Warn("no media files in archive", "archive", archive)
	}

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			yield(MediaEntry{}, err)
			return false
		}
		if !yield(e, nil) {
			return false
		}
	}
	return true
}

type extractedFile struct {
	rel     string
	abs     string
	modTime time.Time
	size    int64
}

// pair turns extracted files into media entries, attaching <name><suffix> sidecars
func (w *Walker) pair(archive, workDir string, files []extractedFile) []MediaEntry {
	present := make(map[string]struct{}, len(files))
	for _, f := range files {
		present[f.rel] = struct{}{}
	}

	var entries []MediaEntry
	for _, f := range files {
		w.stats.FilesFound++
		if w.isSidecar(f.rel) {
			w.stats.Sidecars++
			continue
		}
		e := MediaEntry{
			Archive:    archive,
			RelPath:    f.rel,
			SourcePath: f.abs,
			Extension:  strings.ToLower(path.Ext(f.rel)),
			ModTime:    f.modTime,
			Size:       f.size,
		}
		sidecarRel := f.rel + w.sidecarSuffix
		if _, ok := present[sidecarRel]; ok {
			e.SidecarPath = filepath.Join(workDir, filepath.FromSlash(sidecarRel))
			w.stats.SidecarsPaired++
		}
		entries = append(entries, e)
	}
	return entries
}

func (w *Walker) isSidecar(rel string) bool {
	return hasSuffixFold(rel, w.sidecarSuffix)
}

// hasSuffixFold reports whether s ends in suffix, ignoring case, with at least one byte before it
func hasSuffixFold(s, suffix string) bool {
	n := len(suffix)
	return n > 0 && len(s) > n && strings.EqualFold(s[len(s)-n:], suffix)
}

// stripWrapperPrefix cleans a zip entry name and removes the Takeout wrapper folders
func stripWrapperPrefix(name string) string {
	name = path.Clean(strings.ReplaceAll(name, "\\", "/"))
	for _, prefix := range wrapperPrefixes {
		if strings.HasPrefix(name, prefix) {
			return strings.TrimPrefix(name, prefix)
		}
	}
	return name
}

func extractArchive(archive, dest string) ([]extractedFile, error) {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return nil, fmt.Errorf("failed to open zip: %w", err)
	}
	defer r.Close()

	var files []extractedFile
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rel := stripWrapperPrefix(f.Name)
		if !filepath.IsLocal(filepath.FromSlash(rel)) {
			return nil, fmt.Errorf("illegal path in archive: %s", f.Name)
		}
		target := filepath.Join(dest, filepath.FromSlash(rel))
		if err := extractFile(f, target); err != nil {
			return nil, fmt.Errorf("failed to extract %s: %w", f.Name, err)
		}
		files = append(files, extractedFile{
			rel:     rel,
			abs:     target,
			modTime: f.Modified,
			size:    int64(f.UncompressedSize64),
		})
	}
	return files, nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	if !f.Modified.IsZero() {
		return os.Chtimes(target, f.Modified, f.Modified)
	}
	return nil
}
