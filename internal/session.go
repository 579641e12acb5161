package internal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

const manifestName = "manifest.jsonl"

// Session writes the run manifest: one JSON event per line in <output>/manifest.jsonl.
// The manifest is recreated on every run.
type Session struct {
	ID           string
	OutputDir    string
	ManifestPath string
	Archives     []string
	DryRun       bool
	StartedAt    time.Time

	manifest *os.File
	stats    SessionStats
}

// SessionStats counts manifest events by kind
type SessionStats struct {
	Placed        int
	Renamed       int
	Skipped       int
	Errors        int
	ArchiveErrors int
}

// ManifestEvent represents a single event in the manifest log
type ManifestEvent struct {
	Event  string `json:"event"`
	Ts     string `json:"ts"`
	RunID  string `json:"run_id"`
	DryRun bool   `json:"dry_run,omitempty"`

	Archive    string `json:"archive,omitempty"`
	Src        string `json:"src,omitempty"`
	Dest       string `json:"dest,omitempty"`
	Hash       string `json:"hash,omitempty"`
	Size       int64  `json:"size,omitempty"`
	Year       int    `json:"year,omitempty"`
	DateSource string `json:"date_source,omitempty"`
	Renamed    bool   `json:"renamed,omitempty"`
	Reason     string `json:"reason,omitempty"`

	Error           string `json:"error,omitempty"`
	ErrorCategory   string `json:"error_category,omitempty"`
	ErrorSeverity   string `json:"error_severity,omitempty"`
	ErrorSuggestion string `json:"error_suggestion,omitempty"`

	// Session start/end fields
	OutputDir  string   `json:"output_dir,omitempty"`
	Archives   []string `json:"archives,omitempty"`
	FilesFound int      `json:"files_found,omitempty"`
	Placed     int      `json:"placed,omitempty"`
	Skipped    int      `json:"skipped,omitempty"`
	ErrorCount int      `json:"errors,omitempty"`
}

// NewSession creates the manifest for a new run
func NewSession(outputDir string, archives []string, dryRun bool) (*Session, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	manifestPath := filepath.Join(outputDir, manifestName)
	manifestFile, err := os.OpenFile(manifestPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create manifest file: %w", err)
	}

	return &Session{
		ID:           uuid.NewString(),
		OutputDir:    outputDir,
		ManifestPath: manifestPath,
		Archives:     archives,
		DryRun:       dryRun,
		StartedAt:    time.Now(),
		manifest:     manifestFile,
	}, nil
}

// LogSessionStart writes the session start event to manifest
func (s *Session) LogSessionStart() error {
	return s.writeEvent(ManifestEvent{
		Event:     "session_start",
		OutputDir: s.OutputDir,
		Archives:  s.Archives,
		DryRun:    s.DryRun,
	})
}

// LogPlaced logs a file copied (or planned, in dry-run) into the library
func (s *Session) LogPlaced(pl Placement) error {
	s.stats.Placed++
	if pl.Renamed {
		s.stats.Renamed++
	}
	return s.writeEvent(ManifestEvent{
		Event:      "placed",
		Archive:    pl.Entry.Archive,
		Src:        pl.Entry.RelPath,
		Dest:       pl.RelDest,
		Hash:       pl.Hash,
		Size:       pl.Size,
		Year:       pl.Date.Year,
		DateSource: string(pl.Date.Source),
		Renamed:    pl.Renamed,
	})
}

// LogSkipped logs a file that was not placed
func (s *Session) LogSkipped(e MediaEntry, reason string) error {
	s.stats.Skipped++
	return s.writeEvent(ManifestEvent{
		Event:   "skipped",
		Archive: e.Archive,
		Src:     e.RelPath,
		Reason:  reason,
	})
}

// LogError logs a categorized error; archive failures get their own event name
func (s *Session) LogError(procErr *ProcessError) error {
	event := ManifestEvent{
		Event:           "error",
		Archive:         procErr.Archive,
		Src:             procErr.FilePath,
		ErrorCategory:   string(procErr.Category),
		ErrorSeverity:   string(procErr.Severity),
		ErrorSuggestion: procErr.Suggestion,
	}
	if procErr.OriginalErr != nil {
		event.Error = procErr.OriginalErr.Error()
	}
	if procErr.Category == ErrorCategoryArchive {
		event.Event = "archive_error"
		s.stats.ArchiveErrors++
	} else {
		s.stats.Errors++
	}
	return s.writeEvent(event)
}

// LogSessionEnd writes the session end event to manifest
func (s *Session) LogSessionEnd(filesFound int) error {
	return s.writeEvent(ManifestEvent{
		Event:      "session_end",
		FilesFound: filesFound,
		Placed:     s.stats.Placed,
		Skipped:    s.stats.Skipped,
		ErrorCount: s.stats.Errors + s.stats.ArchiveErrors,
	})
}

// GetStats returns the current session statistics
func (s *Session) GetStats() SessionStats {
	return s.stats
}

// Close closes the manifest file
func (s *Session) Close() error {
	if s.manifest == nil {
		return nil
	}
	err := s.manifest.Close()
	s.manifest = nil
	return err
}

// writeEvent writes a manifest event as a JSON line
func (s *Session) writeEvent(event ManifestEvent) error {
	if s.manifest == nil {
		return fmt.Errorf("manifest is closed")
	}
	event.Ts = time.Now().UTC().Format(time.RFC3339)
	event.RunID = s.ID

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if _, err := s.manifest.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write to manifest: %w", err)
	}
	return nil
}
