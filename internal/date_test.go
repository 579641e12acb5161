package internal

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	mp4 "github.com/abema/go-mp4"
)

func newTestResolver() *Resolver {
	return NewResolver(ResolverOptions{
		ExifExt: []string{".jpg", ".jpeg", ".png", ".webp", ".heic"},
		Logger:  DiscardLogger().Logger,
	})
}

// mediaEntry writes data to dir/name and returns an entry pointing at it
func mediaEntry(t *testing.T, dir, name string, data []byte, mod time.Time) MediaEntry {
	t.Helper()
	p := writeFile(t, dir, name, data)
	if !mod.IsZero() {
		if err := os.Chtimes(p, mod, mod); err != nil {
			t.Fatal(err)
		}
	}
	return MediaEntry{
		RelPath:    name,
		SourcePath: p,
		Extension:  filepath.Ext(name),
		ModTime:    mod,
		Size:       int64(len(data)),
	}
}

func TestResolve_SidecarDate(t *testing.T) {
	dir := t.TempDir()
	taken := time.Date(2020, 6, 15, 12, 0, 0, 0, time.UTC)
	e := mediaEntry(t, dir, "photo.jpg", jpegBytes(t), time.Date(2023, 3, 1, 12, 0, 0, 0, time.UTC))
	e.SidecarPath = writeFile(t, dir, "photo.jpg.json", sidecarJSON(taken))

	d := newTestResolver().Resolve(e)
	if d.Source != SourceSidecar {
		t.Errorf("Expected source %s, got %s", SourceSidecar, d.Source)
	}
	if d.Year != 2020 {
		t.Errorf("Expected year 2020, got %d", d.Year)
	}
	if !d.Time.Equal(taken) {
		t.Errorf("Expected %v, got %v", taken, d.Time)
	}
	if len(d.Warnings) != 0 {
		t.Errorf("Unexpected warnings: %v", d.Warnings)
	}
}

func TestResolve_SidecarNumericTimestamp(t *testing.T) {
	dir := t.TempDir()
	e := mediaEntry(t, dir, "photo.jpg", []byte("x"), time.Time{})
	e.SidecarPath = writeFile(t, dir, "photo.jpg.json", []byte(`{"photoTakenTime":{"timestamp":1592222400}}`))

	d := newTestResolver().Resolve(e)
	if d.Source != SourceSidecar || d.Year != 2020 {
		t.Errorf("Expected 2020 from sidecar, got %d from %s", d.Year, d.Source)
	}
}

func TestResolve_SidecarWinsOverEmbedded(t *testing.T) {
	dir := t.TempDir()
	taken := time.Date(2020, 6, 15, 12, 0, 0, 0, time.UTC)
	e := mediaEntry(t, dir, "photo.jpg", exifJPEGBytes(t, "2019:01:01 10:00:00"), time.Date(2018, 11, 2, 12, 0, 0, 0, time.UTC))
	e.SidecarPath = writeFile(t, dir, "photo.jpg.json", sidecarJSON(taken))

	d := newTestResolver().Resolve(e)
	if d.Source != SourceSidecar || d.Year != 2020 {
		t.Errorf("Sidecar must win: got %d from %s", d.Year, d.Source)
	}
}

func TestResolve_EmbeddedDate(t *testing.T) {
	dir := t.TempDir()
	e := mediaEntry(t, dir, "IMG_0001.jpg", exifJPEGBytes(t, "2019:01:01 10:00:00"), time.Date(2023, 3, 1, 12, 0, 0, 0, time.UTC))

	d := newTestResolver().Resolve(e)
	if d.Source != SourceEmbedded {
		t.Fatalf("Expected source %s, got %s", SourceEmbedded, d.Source)
	}
	if d.Year != 2019 {
		t.Errorf("Expected year 2019, got %d", d.Year)
	}
	want := time.Date(2019, 1, 1, 10, 0, 0, 0, time.UTC)
	if !d.Time.Equal(want) {
		t.Errorf("Expected %v, got %v", want, d.Time)
	}
}

func TestResolve_EmbeddedOnlyForExifExtensions(t *testing.T) {
	dir := t.TempDir()
	mod := time.Date(2018, 11, 2, 12, 0, 0, 0, time.UTC)
	// EXIF bytes behind a .gif name are not read
	e := mediaEntry(t, dir, "anim.gif", exifJPEGBytes(t, "2019:01:01 10:00:00"), mod)

	d := newTestResolver().Resolve(e)
	if d.Source != SourceFilesystem || d.Year != 2018 {
		t.Errorf("Expected filesystem 2018, got %d from %s", d.Year, d.Source)
	}
}

func TestResolve_FilesystemFallback(t *testing.T) {
	dir := t.TempDir()
	mod := time.Date(2018, 11, 2, 12, 0, 0, 0, time.UTC)
	e := mediaEntry(t, dir, "scan.jpg", jpegBytes(t), mod)

	d := newTestResolver().Resolve(e)
	if d.Source != SourceFilesystem {
		t.Errorf("Expected source %s, got %s", SourceFilesystem, d.Source)
	}
	if d.Year != 2018 {
		t.Errorf("Expected year 2018, got %d", d.Year)
	}
	if len(d.Warnings) != 0 {
		t.Errorf("Missing metadata is not a warning, got %v", d.Warnings)
	}
}

func TestResolve_MissingFileUsesEntryModTime(t *testing.T) {
	e := MediaEntry{
		RelPath:    "gone.jpg",
		SourcePath: filepath.Join(t.TempDir(), "gone.jpg"),
		Extension:  ".jpg",
		ModTime:    time.Date(2017, 5, 5, 12, 0, 0, 0, time.UTC),
	}

	d := newTestResolver().Resolve(e)
	if d.Source != SourceFilesystem || d.Year != 2017 {
		t.Errorf("Expected entry mtime 2017, got %d from %s", d.Year, d.Source)
	}
}

func TestResolve_MalformedSidecarFallsThrough(t *testing.T) {
	dir := t.TempDir()
	e := mediaEntry(t, dir, "photo.jpg", exifJPEGBytes(t, "2019:01:01 10:00:00"), time.Time{})
	e.SidecarPath = writeFile(t, dir, "photo.jpg.json", []byte(`{"photoTakenTime": {`))

	d := newTestResolver().Resolve(e)
	if d.Source != SourceEmbedded || d.Year != 2019 {
		t.Errorf("Expected embedded 2019, got %d from %s", d.Year, d.Source)
	}
	if len(d.Warnings) != 1 || !errors.Is(d.Warnings[0], ErrMalformedSidecar) {
		t.Errorf("Expected one malformed sidecar warning, got %v", d.Warnings)
	}
}

func TestResolve_BadTimestampIsMalformed(t *testing.T) {
	dir := t.TempDir()
	mod := time.Date(2018, 11, 2, 12, 0, 0, 0, time.UTC)
	e := mediaEntry(t, dir, "photo.jpg", []byte("x"), mod)
	e.SidecarPath = writeFile(t, dir, "photo.jpg.json", []byte(`{"photoTakenTime":{"timestamp":"yesterday"}}`))

	d := newTestResolver().Resolve(e)
	if d.Source != SourceFilesystem {
		t.Errorf("Expected filesystem fallback, got %s", d.Source)
	}
	if len(d.Warnings) != 1 || !errors.Is(d.Warnings[0], ErrMalformedSidecar) {
		t.Errorf("Expected malformed sidecar warning, got %v", d.Warnings)
	}
}

func TestResolve_SidecarWithoutTakenTimeIsSilent(t *testing.T) {
	dir := t.TempDir()
	mod := time.Date(2018, 11, 2, 12, 0, 0, 0, time.UTC)
	e := mediaEntry(t, dir, "photo.jpg", []byte("x"), mod)
	e.SidecarPath = writeFile(t, dir, "photo.jpg.json", []byte(`{"title":"photo.jpg","creationTime":{"timestamp":"1"}}`))

	d := newTestResolver().Resolve(e)
	if d.Source != SourceFilesystem || len(d.Warnings) != 0 {
		t.Errorf("Expected silent fallback, got %s with %v", d.Source, d.Warnings)
	}
}

func TestResolve_AlwaysReturnsDate(t *testing.T) {
	dir := t.TempDir()
	entries := []MediaEntry{
		{},
		{RelPath: "x.mp4", Extension: ".mp4", SourcePath: filepath.Join(dir, "nope.mp4")},
		mediaEntry(t, dir, "junk.jpg", []byte("not really a jpeg"), time.Time{}),
	}
	r := NewResolver(ResolverOptions{ExifExt: []string{".jpg"}, VideoMetadata: true})
	for _, e := range entries {
		d := r.Resolve(e)
		if d.Source == "" {
			t.Errorf("No source for %+v", e)
		}
		if d.Year != d.Time.Year() {
			t.Errorf("Year %d does not match time %v", d.Year, d.Time)
		}
	}
}

func TestParseExifTime(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
	}{
		{"2019:01:01 10:00:00", time.Date(2019, 1, 1, 10, 0, 0, 0, time.UTC)},
		{"2019:01:01 10:00:00\x00", time.Date(2019, 1, 1, 10, 0, 0, 0, time.UTC)},
		{"2021:07:04 09:30:15+02:00", time.Date(2021, 7, 4, 7, 30, 15, 0, time.UTC)},
	}
	for _, tc := range cases {
		got, err := parseExifTime(tc.in)
		if err != nil {
			t.Errorf("parseExifTime(%q): %v", tc.in, err)
			continue
		}
		if !got.Equal(tc.want) {
			t.Errorf("parseExifTime(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}

	if _, err := parseExifTime("0000:00:00 00:00:00"); err == nil {
		t.Error("Expected error for zero date")
	}
}

// writeMP4 writes a moov/mvhd-only file with the given creation time
func writeMP4(t *testing.T, p string, created time.Time) {
	t.Helper()
	f, err := os.Create(p)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	w := mp4.NewWriter(f)
	if _, err := w.StartBox(&mp4.BoxInfo{Type: mp4.BoxTypeMoov()}); err != nil {
		t.Fatal(err)
	}
	if _, err := w.StartBox(&mp4.BoxInfo{Type: mp4.BoxTypeMvhd()}); err != nil {
		t.Fatal(err)
	}
	mvhd := &mp4.Mvhd{
		CreationTimeV0:     uint32(created.Unix() + mp4EpochOffset),
		ModificationTimeV0: uint32(created.Unix() + mp4EpochOffset),
		Timescale:          1000,
		Rate:               0x10000,
		Volume:             0x100,
		NextTrackID:        1,
	}
	if _, err := mp4.Marshal(w, mvhd, mp4.Context{}); err != nil {
		t.Fatal(err)
	}
	if _, err := w.EndBox(); err != nil {
		t.Fatal(err)
	}
	if _, err := w.EndBox(); err != nil {
		t.Fatal(err)
	}
}

func TestResolve_VideoMetadata(t *testing.T) {
	dir := t.TempDir()
	created := time.Date(2016, 8, 20, 18, 0, 0, 0, time.UTC)
	p := filepath.Join(dir, "clip.mp4")
	writeMP4(t, p, created)
	mod := time.Date(2022, 1, 10, 12, 0, 0, 0, time.UTC)
	os.Chtimes(p, mod, mod)
	e := MediaEntry{RelPath: "clip.mp4", SourcePath: p, Extension: ".mp4"}

	without := newTestResolver().Resolve(e)
	if without.Source != SourceFilesystem || without.Year != 2022 {
		t.Errorf("Video metadata is off by default, got %d from %s", without.Year, without.Source)
	}

	r := NewResolver(ResolverOptions{ExifExt: []string{".jpg"}, VideoMetadata: true})
	d := r.Resolve(e)
	if d.Source != SourceEmbedded {
		t.Fatalf("Expected embedded source, got %s", d.Source)
	}
	if !d.Time.Equal(created) || d.Year != 2016 {
		t.Errorf("Expected %v, got %v", created, d.Time)
	}
}
