package internal

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

const largestFilesShown = 5

// ArchiveInventory describes the contents of one archive, read from its
// central directory without extracting anything.
type ArchiveInventory struct {
	Archive        string          `json:"archive"`
	Error          string          `json:"error,omitempty"`
	TotalFiles     int             `json:"total_files"`
	TotalSize      uint64          `json:"total_size_bytes"`
	Photos         int             `json:"photos"`
	Videos         int             `json:"videos"`
	Sidecars       int             `json:"sidecars"`
	Unrecognized   int             `json:"unrecognized"`
	SidecarsPaired int             `json:"sidecars_paired"`
	Extensions     map[string]int  `json:"extensions"`
	LargestFiles   []InventoryFile `json:"largest_files"`
	Earliest       time.Time       `json:"earliest,omitempty"`
	Latest         time.Time       `json:"latest,omitempty"`
}

// InventoryFile is one archive entry listed in an inventory
type InventoryFile struct {
	Path string `json:"path"`
	Size uint64 `json:"size_bytes"`
}

// Inspector lists archives the same way the walker would see them
type Inspector struct {
	classifier    *Classifier
	sidecarSuffix string
}

func NewInspector(cfg *Config) *Inspector {
	return &Inspector{
		classifier:    NewClassifier(cfg.PhotoExt, cfg.VideoExt),
		sidecarSuffix: cfg.SidecarSuffix,
	}
}

// InspectArchives never fails as a whole; unreadable archives carry Error.
func (in *Inspector) InspectArchives(paths []string) []*ArchiveInventory {
	out := make([]*ArchiveInventory, 0, len(paths))
	for _, p := range paths {
		out = append(out, in.Inspect(p))
	}
	return out
}

func (in *Inspector) Inspect(archive string) *ArchiveInventory {
	inv := &ArchiveInventory{Archive: archive, Extensions: make(map[string]int)}

	r, err := zip.OpenReader(archive)
	if err != nil {
		inv.Error = err.Error()
		return inv
	}
	defer r.Close()

	present := make(map[string]struct{}, len(r.File))
	var media []string
	var files []InventoryFile
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rel := stripWrapperPrefix(f.Name)
		present[rel] = struct{}{}
		inv.TotalFiles++
		inv.TotalSize += f.UncompressedSize64
		files = append(files, InventoryFile{Path: rel, Size: f.UncompressedSize64})

		// zip timestamps start in 1980; anything earlier means "not recorded"
		if f.Modified.Year() >= 1980 {
			if inv.Earliest.IsZero() || f.Modified.Before(inv.Earliest) {
				inv.Earliest = f.Modified
			}
			if f.Modified.After(inv.Latest) {
				inv.Latest = f.Modified
			}
		}

		if hasSuffixFold(rel, in.sidecarSuffix) {
			inv.Sidecars++
			continue
		}
		inv.Extensions[strings.ToLower(path.Ext(rel))]++
		switch in.classifier.ClassifyPath(rel) {
		case Photo:
			inv.Photos++
			media = append(media, rel)
		case Video:
			inv.Videos++
			media = append(media, rel)
		default:
			inv.Unrecognized++
		}
	}

	for _, rel := range media {
		if _, ok := present[rel+in.sidecarSuffix]; ok {
			inv.SidecarsPaired++
		}
	}

	sort.SliceStable(files, func(i, j int) bool { return files[i].Size > files[j].Size })
	if len(files) > largestFilesShown {
		files = files[:largestFilesShown]
	}
	inv.LargestFiles = files
	return inv
}

// WriteInventoryJSON writes inventories as indented JSON
func WriteInventoryJSON(w io.Writer, invs []*ArchiveInventory) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(invs)
}

// WriteInventoryTable writes a per-archive overview followed by details
func WriteInventoryTable(w io.Writer, invs []*ArchiveInventory) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"Archive", "Files", "Size", "Photos", "Videos", "Sidecars", "Paired", "Other"})
	var total ArchiveInventory
	for _, inv := range invs {
		if inv.Error != "" {
			tw.AppendRow(table.Row{filepath.Base(inv.Archive), "unreadable", "", "", "", "", "", ""})
			continue
		}
		tw.AppendRow(table.Row{
			filepath.Base(inv.Archive), comma(inv.TotalFiles), humanize.IBytes(inv.TotalSize),
			comma(inv.Photos), comma(inv.Videos), comma(inv.Sidecars), comma(inv.SidecarsPaired), comma(inv.Unrecognized),
		})
		total.TotalFiles += inv.TotalFiles
		total.TotalSize += inv.TotalSize
		total.Photos += inv.Photos
		total.Videos += inv.Videos
		total.Sidecars += inv.Sidecars
		total.SidecarsPaired += inv.SidecarsPaired
		total.Unrecognized += inv.Unrecognized
	}
	tw.AppendFooter(table.Row{
		"TOTAL", comma(total.TotalFiles), humanize.IBytes(total.TotalSize),
		comma(total.Photos), comma(total.Videos), comma(total.Sidecars), comma(total.SidecarsPaired), comma(total.Unrecognized),
	})
	cols := make([]table.ColumnConfig, 0, 7)
	for n := 2; n <= 8; n++ {
		cols = append(cols, table.ColumnConfig{Number: n, Align: text.AlignRight, AlignFooter: text.AlignRight})
	}
	tw.SetColumnConfigs(cols)
	tw.Render()

	for _, inv := range invs {
		fmt.Fprintf(w, "\n%s\n", inv.Archive)
		if inv.Error != "" {
			fmt.Fprintf(w, "  error: %s\n", inv.Error)
			continue
		}
		if !inv.Earliest.IsZero() {
			fmt.Fprintf(w, "  entry dates: %s to %s\n", inv.Earliest.Format("2006-01-02"), inv.Latest.Format("2006-01-02"))
		}
		if len(inv.Extensions) > 0 {
			fmt.Fprintf(w, "  extensions: %s\n", formatExtensions(inv.Extensions))
		}
		for _, f := range inv.LargestFiles {
			fmt.Fprintf(w, "  %10s  %s\n", humanize.IBytes(f.Size), f.Path)
		}
	}
}

// formatExtensions lists extensions by count, most common first
func formatExtensions(exts map[string]int) string {
	type extCount struct {
		ext   string
		count int
	}
	list := make([]extCount, 0, len(exts))
	for e, c := range exts {
		if e == "" {
			e = "(none)"
		}
		list = append(list, extCount{e, c})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].count != list[j].count {
			return list[i].count > list[j].count
		}
		return list[i].ext < list[j].ext
	})
	parts := make([]string, len(list))
	for i, ec := range list {
		parts[i] = fmt.Sprintf("%s %d", ec.ext, ec.count)
	}
	return strings.Join(parts, ", ")
}
