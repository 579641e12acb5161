package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	mp4 "github.com/abema/go-mp4"
	"github.com/barasher/go-exiftool"
	"github.com/rwcarlsen/goexif/exif"
)

// DateSource records which reader produced a resolved date
type DateSource string

const (
	SourceSidecar    DateSource = "sidecar-metadata"
	SourceEmbedded   DateSource = "embedded-metadata"
	SourceFilesystem DateSource = "filesystem-timestamp"
)

// Offset between mp4 epoch (1904) and Unix epoch (1970)
const mp4EpochOffset = 2082844800

var mp4Extensions = []string{".mp4", ".mov"}

// errNoDate means a reader had nothing to offer; it falls through silently
var errNoDate = errors.New("no date available")

// ResolvedDate is the outcome of date resolution. Warnings holds recoverable
// problems met on the way, e.g. an unparsable sidecar.
type ResolvedDate struct {
	Time     time.Time
	Year     int
	Source   DateSource
	Warnings []error
}

type dateReader struct {
	name   string
	source DateSource
	read   func(MediaEntry) (time.Time, error)
}

type ResolverOptions struct {
	ExifExt []string
	// ExifTool replaces goexif for embedded dates when set
	ExifTool      *exiftool.Exiftool
	VideoMetadata bool
	Logger        *slog.Logger
}

// Resolver picks a capture date: sidecar, then embedded metadata, then file time.
type Resolver struct {
	readers []dateReader
	log     *slog.Logger
}

func NewResolver(opts ResolverOptions) *Resolver {
	embedded := dateReader{name: "goexif", source: SourceEmbedded, read: getExifDateOriginal}
	if opts.ExifTool != nil {
		embedded = dateReader{name: "exiftool", source: SourceEmbedded, read: exiftoolDate(opts.ExifTool)}
	}
	embedded.read = onlyFor(extSet(opts.ExifExt), embedded.read)

	r := &Resolver{
		readers: []dateReader{
			{name: "sidecar", source: SourceSidecar, read: sidecarDate},
			embedded,
		},
		log: opts.Logger,
	}
	if r.log == nil {
		r.log = DiscardLogger().Logger
	}
	if opts.VideoMetadata {
		r.readers = append(r.readers, dateReader{
			name:   "mp4",
			source: SourceEmbedded,
			read:   onlyFor(extSet(mp4Extensions), mp4CreationDate),
		})
	}
	return r
}

// Resolve always returns a date; the file modification time is the last resort.
func (r *Resolver) Resolve(e MediaEntry) ResolvedDate {
	var warnings []error
	for _, p := range r.readers {
		t, err := p.read(e)
		if err == nil {
			return newResolvedDate(t, p.source, warnings)
		}
		switch {
		case errors.Is(err, errNoDate):
		case errors.Is(err, ErrMalformedSidecar):
			r.log.Warn("ignoring sidecar", "file", e.RelPath, "sidecar", e.SidecarPath, "error", err)
			warnings = append(warnings, err)
		default:
			r.log.Debug("date reader failed", "reader", p.name, "file", e.RelPath, "error", err)
		}
	}
	return newResolvedDate(r.fileModTime(e), SourceFilesystem, warnings)
}

func newResolvedDate(t time.Time, src DateSource, warnings []error) ResolvedDate {
	return ResolvedDate{Time: t, Year: t.Year(), Source: src, Warnings: warnings}
}

// onlyFor restricts a reader to a set of extensions
func onlyFor(exts map[string]struct{}, read func(MediaEntry) (time.Time, error)) func(MediaEntry) (time.Time, error) {
	return func(e MediaEntry) (time.Time, error) {
		if _, ok := exts[e.Extension]; !ok {
			return time.Time{}, errNoDate
		}
		return read(e)
	}
}

type sidecarMetadata struct {
	PhotoTakenTime *struct {
		Timestamp epochSeconds `json:"timestamp"`
	} `json:"photoTakenTime"`
}

// epochSeconds accepts both "1609459200" and 1609459200
type epochSeconds string

func (s *epochSeconds) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		*s = epochSeconds(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*s = epochSeconds(n.String())
	return nil
}

// sidecarDate reads photoTakenTime.timestamp from the Takeout JSON sidecar.
// Valid JSON of another shape counts as "no date"; broken JSON is ErrMalformedSidecar.
func sidecarDate(e MediaEntry) (time.Time, error) {
	if e.SidecarPath == "" {
		return time.Time{}, errNoDate
	}
	data, err := os.ReadFile(e.SidecarPath)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrMalformedSidecar, err)
	}
	if !json.Valid(data) {
		return time.Time{}, fmt.Errorf("%w: invalid JSON", ErrMalformedSidecar)
	}

	var meta sidecarMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return time.Time{}, errNoDate
	}
	if meta.PhotoTakenTime == nil || strings.TrimSpace(string(meta.PhotoTakenTime.Timestamp)) == "" {
		return time.Time{}, errNoDate
	}

	ts, err := strconv.ParseInt(strings.TrimSpace(string(meta.PhotoTakenTime.Timestamp)), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: photoTakenTime.timestamp %q", ErrMalformedSidecar, meta.PhotoTakenTime.Timestamp)
	}
	return time.Unix(ts, 0), nil
}

// getExifDateOriginal extracts the DateTimeOriginal from EXIF metadata
func getExifDateOriginal(e MediaEntry) (time.Time, error) {
	f, err := os.Open(e.SourcePath)
	if err != nil {
		return time.Time{}, err
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return time.Time{}, err
	}

	tag, err := x.Get(exif.DateTimeOriginal)
	if err != nil {
		return time.Time{}, errNoDate
	}

	dateStr, err := tag.StringVal()
	if err != nil {
		return time.Time{}, err
	}

	return parseExifTime(dateStr)
}

func exiftoolDate(et *exiftool.Exiftool) func(MediaEntry) (time.Time, error) {
	return func(e MediaEntry) (time.Time, error) {
		metas := et.ExtractMetadata(e.SourcePath)
		if len(metas) == 0 {
			return time.Time{}, errNoDate
		}
		if metas[0].Err != nil {
			return time.Time{}, metas[0].Err
		}
		for _, key := range []string{"DateTimeOriginal", "SubSecDateTimeOriginal", "CreateDate"} {
			v, err := metas[0].GetString(key)
			if err != nil {
				continue
			}
			if t, err := parseExifTime(v); err == nil {
				return t, nil
			}
		}
		return time.Time{}, errNoDate
	}
}

// Fractional seconds are accepted by time.Parse without a layout element.
var exifLayouts = []string{
	"2006:01:02 15:04:05Z07:00",
	"2006:01:02 15:04:05",
}

// parseExifTime keeps a recorded offset if there is one and never converts zones
func parseExifTime(s string) (time.Time, error) {
	s = strings.TrimSpace(strings.TrimRight(s, "\x00"))
	var firstErr error
	for _, layout := range exifLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, fmt.Errorf("unparsable exif date %q: %w", s, firstErr)
}

// mp4CreationDate reads the movie header creation time (UTC)
func mp4CreationDate(e MediaEntry) (time.Time, error) {
	f, err := os.Open(e.SourcePath)
	if err != nil {
		return time.Time{}, err
	}
	defer f.Close()

	boxes, err := mp4.ExtractBoxWithPayload(f, nil, mp4.BoxPath{mp4.BoxTypeMoov(), mp4.BoxTypeMvhd()})
	if err != nil {
		return time.Time{}, fmt.Errorf("mp4 metadata: %w", err)
	}
	if len(boxes) == 0 {
		return time.Time{}, errNoDate
	}
	mvhd, ok := boxes[0].Payload.(*mp4.Mvhd)
	if !ok {
		return time.Time{}, errNoDate
	}

	var ct uint64
	if mvhd.Version > 0 {
		ct = mvhd.CreationTimeV1
	} else {
		ct = uint64(mvhd.CreationTimeV0)
	}
	if ct == 0 {
		return time.Time{}, errNoDate
	}
	return time.Unix(int64(ct)-mp4EpochOffset, 0).UTC(), nil
}

// fileModTime falls back to the archive entry time if the extracted file is gone
func (r *Resolver) fileModTime(e MediaEntry) time.Time {
	fi, err := os.Stat(e.SourcePath)
	if err != nil {
		r.log.Debug("stat failed, using archive entry time", "file", e.RelPath, "error", err)
		return e.ModTime
	}
	return fi.ModTime()
}
