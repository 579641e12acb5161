package internal

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

const reportName = "processing_report.txt"

var ruler = strings.Repeat("=", 60)
var thinRuler = strings.Repeat("-", 60)

// Summary is everything a run reports once it is done
type Summary struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	DryRun     bool
	OutputDir  string
	ReportPath string

	Archives       []string
	ArchivesFailed int
	FilesFound     int
	MetadataFiles  int
	Placed         int
	Renamed        int
	ByYear         map[int]YearCount
	BySource       map[DateSource]int
	Skipped        []string
	Errors         *ErrorStats
	Interrupted    bool
}

func newSummary() *Summary {
	return &Summary{
		ByYear:   make(map[int]YearCount),
		BySource: make(map[DateSource]int),
		Errors:   NewErrorStats(),
	}
}

// Totals sums photos and videos over all years
func (s *Summary) Totals() YearCount {
	var t YearCount
	for _, yc := range s.ByYear {
		t.Photos += yc.Photos
		t.Videos += yc.Videos
	}
	return t
}

func (s *Summary) years() []int {
	years := make([]int, 0, len(s.ByYear))
	for y := range s.ByYear {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// YearTable renders photos/videos per year
func (s *Summary) YearTable() string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"Year", "Photos", "Videos", "Total"})
	for _, y := range s.years() {
		yc := s.ByYear[y]
		tw.AppendRow(table.Row{yearDir(y), comma(yc.Photos), comma(yc.Videos), comma(yc.Total())})
	}
	t := s.Totals()
	tw.AppendFooter(table.Row{"TOTAL", comma(t.Photos), comma(t.Videos), comma(t.Total())})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight, AlignFooter: text.AlignRight},
		{Number: 3, Align: text.AlignRight, AlignFooter: text.AlignRight},
		{Number: 4, Align: text.AlignRight, AlignFooter: text.AlignRight},
	})
	return tw.Render()
}

// Render produces the plain-text processing report
func (s *Summary) Render() string {
	var b strings.Builder

	b.WriteString(ruler + "\n")
	b.WriteString("Google Photos Takeout Organizer - Processing Report\n")
	b.WriteString(ruler + "\n")
	fmt.Fprintf(&b, "Generated: %s\n", s.FinishedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Run ID:    %s\n", s.RunID)
	fmt.Fprintf(&b, "Duration:  %s\n", s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond))
	if s.DryRun {
		b.WriteString("Dry run: no files were copied\n")
	}
	if s.Interrupted {
		b.WriteString("Run was interrupted: remaining files were not processed\n")
	}
	b.WriteString("\n")

	b.WriteString("Summary\n")
	b.WriteString(thinRuler + "\n")
	fmt.Fprintf(&b, "Archives:               %s", comma(len(s.Archives)))
	if s.ArchivesFailed > 0 {
		fmt.Fprintf(&b, " (%s failed)", comma(s.ArchivesFailed))
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Total files found:      %s\n", comma(s.FilesFound))
	fmt.Fprintf(&b, "  Photos/videos:        %s\n", comma(s.Placed))
	if s.Renamed > 0 {
		fmt.Fprintf(&b, "    Renamed on collision: %s\n", comma(s.Renamed))
	}
	fmt.Fprintf(&b, "  Metadata files:       %s (skipped)\n", comma(s.MetadataFiles))
	fmt.Fprintf(&b, "  Unrecognized:         %s (skipped)\n", comma(len(s.Skipped)))
	fmt.Fprintf(&b, "Errors encountered:     %s\n", comma(s.Errors.Failures()))
	fmt.Fprintf(&b, "Warnings:               %s\n", comma(s.Errors.Warnings))
	b.WriteString("\n")

	if len(s.BySource) > 0 {
		b.WriteString("Date Sources\n")
		b.WriteString(thinRuler + "\n")
		for _, src := range []DateSource{SourceSidecar, SourceEmbedded, SourceFilesystem} {
			fmt.Fprintf(&b, "  %-22s %s\n", string(src)+":", comma(s.BySource[src]))
		}
		b.WriteString("\n")
	}

	if len(s.ByYear) > 0 {
		b.WriteString("Files Organized by Year\n")
		b.WriteString(thinRuler + "\n")
		b.WriteString(s.YearTable())
		b.WriteString("\n\n")
	}

	if len(s.Skipped) > 0 {
		b.WriteString("Skipped (unrecognized)\n")
		b.WriteString(thinRuler + "\n")
		for i, p := range s.Skipped {
			fmt.Fprintf(&b, "%d. %s\n", i+1, p)
		}
		b.WriteString("\n")
	}

	if s.Errors.Total > 0 {
		b.WriteString("Errors\n")
		b.WriteString(thinRuler + "\n")
		b.WriteString(s.Errors.GenerateReport())
		b.WriteString("\n")
	}

	b.WriteString(ruler + "\n")
	if s.ReportPath != "" {
		fmt.Fprintf(&b, "Report saved to: %s\n", s.ReportPath)
	}
	return b.String()
}

// WriteReport writes the rendered report to path
func (s *Summary) WriteReport(path string) error {
	s.ReportPath = path
	if err := os.WriteFile(path, []byte(s.Render()), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// Console is the short end-of-run summary for the terminal
func (s *Summary) Console(verbose bool) string {
	var b strings.Builder
	b.WriteString("\n" + ruler + "\n")
	b.WriteString("Processing Complete\n")
	b.WriteString(ruler + "\n")
	fmt.Fprintf(&b, "Total files found:      %s\n", comma(s.FilesFound))
	fmt.Fprintf(&b, "  Photos/videos:        %s\n", comma(s.Placed))
	fmt.Fprintf(&b, "  Metadata files:       %s (skipped)\n", comma(s.MetadataFiles))
	fmt.Fprintf(&b, "  Unrecognized:         %s (skipped)\n", comma(len(s.Skipped)))

	if len(s.ByYear) > 0 {
		b.WriteString("\nFiles by year:\n")
		for _, y := range s.years() {
			yc := s.ByYear[y]
			fmt.Fprintf(&b, "  %s: %s files (%s photos, %s videos)\n",
				yearDir(y), comma(yc.Total()), comma(yc.Photos), comma(yc.Videos))
		}
	}

	if s.Errors.Total > 0 {
		fmt.Fprintf(&b, "\nProblems encountered: %d\n", s.Errors.Total)
		if verbose {
			for _, err := range s.Errors.All {
				fmt.Fprintf(&b, "  - %s: %v\n", err.FilePath, err.OriginalErr)
			}
		} else {
			b.WriteString("Run with --verbose to see details\n")
		}
	}

	if s.ReportPath != "" {
		fmt.Fprintf(&b, "\nDetailed report saved to: %s\n", s.ReportPath)
	}
	return b.String()
}

func comma(n int) string {
	return humanize.Comma(int64(n))
}
