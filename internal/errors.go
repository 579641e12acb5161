package internal

import (
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"syscall"
)

// ErrorCategory represents the type of error encountered
type ErrorCategory string

const (
	ErrorCategoryArchive     ErrorCategory = "archive_error"      // Unreadable or corrupt archive
	ErrorCategoryIO          ErrorCategory = "io_error"           // File system, permissions, disk space
	ErrorCategoryMetadata    ErrorCategory = "metadata_error"     // Sidecar or embedded metadata unreadable
	ErrorCategoryUnsupported ErrorCategory = "unsupported_format" // Unrecognized file format
	ErrorCategoryUnknown     ErrorCategory = "unknown_error"      // Unexpected errors
)

// ErrorSeverity indicates how serious the error is. No severity aborts a run.
type ErrorSeverity string

const (
	ErrorSeverityCritical ErrorSeverity = "critical" // System-level issues (disk full, permissions)
	ErrorSeverityError    ErrorSeverity = "error"    // File-level issues (corruption, unreadable)
	ErrorSeverityWarning  ErrorSeverity = "warning"  // Recoverable issues (bad sidecar, skipped file)
)

var (
	// ErrUnrecognized marks a file whose extension is neither photo nor video
	ErrUnrecognized = errors.New("unsupported file extension")
	// ErrMalformedSidecar marks a sidecar that exists but cannot be decoded
	ErrMalformedSidecar = errors.New("malformed sidecar metadata")
	// ErrDestinationExists marks a copy that would have replaced a file in the output
	ErrDestinationExists = errors.New("destination already exists")
)

// ProcessError represents a categorized error during file processing
type ProcessError struct {
	FilePath    string
	Archive     string
	Category    ErrorCategory
	Severity    ErrorSeverity
	OriginalErr error
	Suggestion  string
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("[%s/%s] %s: %v", e.Severity, e.Category, e.FilePath, e.OriginalErr)
}

func (e *ProcessError) Unwrap() error {
	return e.OriginalErr
}

// CategorizeError analyzes an error and returns a ProcessError with category and severity
func CategorizeError(filePath string, err error) *ProcessError {
	if err == nil {
		return nil
	}
	var procErr *ProcessError
	if errors.As(err, &procErr) {
		return procErr
	}

	errStr := strings.ToLower(err.Error())
	procErr = &ProcessError{
		FilePath:    filePath,
		OriginalErr: err,
	}

	var archiveErr *ArchiveError
	switch {
	case errors.As(err, &archiveErr):
		procErr.Archive = archiveErr.Archive
		procErr.Category = ErrorCategoryArchive
		procErr.Severity = ErrorSeverityError
		procErr.Suggestion = "Archive could not be read - re-download this part of the export"

	case errors.Is(err, ErrUnrecognized):
		procErr.Category = ErrorCategoryUnsupported
		procErr.Severity = ErrorSeverityWarning
		procErr.Suggestion = "File format not recognized - skipped"

	case errors.Is(err, ErrMalformedSidecar):
		procErr.Category = ErrorCategoryMetadata
		procErr.Severity = ErrorSeverityWarning
		procErr.Suggestion = "Sidecar ignored - date taken from embedded metadata or file time"

	case errors.Is(err, ErrDestinationExists):
		procErr.Category = ErrorCategoryIO
		procErr.Severity = ErrorSeverityError
		procErr.Suggestion = "Another process wrote to the output during the run - existing file kept, rerun to place this one"

	// Disk/Filesystem errors (CRITICAL)
	case errors.Is(err, syscall.ENOSPC) || strings.Contains(errStr, "no space left"):
		procErr.Category = ErrorCategoryIO
		procErr.Severity = ErrorSeverityCritical
		procErr.Suggestion = "Free up disk space on the destination drive and retry"

	case errors.Is(err, fs.ErrPermission) || strings.Contains(errStr, "permission denied"):
		procErr.Category = ErrorCategoryIO
		procErr.Severity = ErrorSeverityCritical
		procErr.Suggestion = "Check file permissions on the output and work directories"

	case errors.Is(err, syscall.EROFS) || strings.Contains(errStr, "read-only file system"):
		procErr.Category = ErrorCategoryIO
		procErr.Severity = ErrorSeverityCritical
		procErr.Suggestion = "Destination filesystem is read-only - check mount options"

	case strings.Contains(errStr, "too many open files"):
		procErr.Category = ErrorCategoryIO
		procErr.Severity = ErrorSeverityCritical
		procErr.Suggestion = "System file descriptor limit reached - increase ulimit or restart"

	case strings.Contains(errStr, "input/output error"):
		procErr.Category = ErrorCategoryIO
		procErr.Severity = ErrorSeverityError
		procErr.Suggestion = "I/O error - check disk health with SMART tools"

	case errors.Is(err, fs.ErrNotExist) || strings.Contains(errStr, "no such file"):
		procErr.Category = ErrorCategoryIO
		procErr.Severity = ErrorSeverityError
		procErr.Suggestion = "Extracted file disappeared - check that the work directory is not cleaned externally"

	case strings.Contains(errStr, "exif") || strings.Contains(errStr, "metadata"):
		procErr.Category = ErrorCategoryMetadata
		procErr.Severity = ErrorSeverityWarning
		procErr.Suggestion = "Metadata could not be extracted - file time used instead"

	default:
		procErr.Category = ErrorCategoryUnknown
		procErr.Severity = ErrorSeverityError
		procErr.Suggestion = "Unexpected error - check the log file for details"
	}

	return procErr
}

// ErrorStats tracks error statistics during a run
type ErrorStats struct {
	Total      int
	Critical   int
	Errors     int
	Warnings   int
	ByCategory map[ErrorCategory]int
	All        []*ProcessError
}

func NewErrorStats() *ErrorStats {
	return &ErrorStats{
		ByCategory: make(map[ErrorCategory]int),
	}
}

func (s *ErrorStats) Add(err *ProcessError) {
	if err == nil {
		return
	}
	s.Total++
	s.ByCategory[err.Category]++

	switch err.Severity {
	case ErrorSeverityCritical:
		s.Critical++
	case ErrorSeverityError:
		s.Errors++
	case ErrorSeverityWarning:
		s.Warnings++
	}

	s.All = append(s.All, err)
}

// Failures counts entries that are not mere warnings
func (s *ErrorStats) Failures() int {
	return s.Critical + s.Errors
}

// GenerateReport creates the error section of the summary report
func (s *ErrorStats) GenerateReport() string {
	var report strings.Builder
	if s.Total == 0 {
		return report.String()
	}

	report.WriteString(fmt.Sprintf("Problems encountered: %d\n", s.Total))
	if s.Critical > 0 {
		report.WriteString(fmt.Sprintf("  Critical: %d (system-level issues)\n", s.Critical))
	}
	if s.Errors > 0 {
		report.WriteString(fmt.Sprintf("  Errors:   %d (file-level issues)\n", s.Errors))
	}
	if s.Warnings > 0 {
		report.WriteString(fmt.Sprintf("  Warnings: %d (recoverable issues)\n", s.Warnings))
	}
	report.WriteString("\n")

	cats := make([]string, 0, len(s.ByCategory))
	for cat := range s.ByCategory {
		cats = append(cats, string(cat))
	}
	sort.Strings(cats)
	report.WriteString("Error categories:\n")
	for _, cat := range cats {
		report.WriteString(fmt.Sprintf("  - %s: %d\n", cat, s.ByCategory[ErrorCategory(cat)]))
	}
	report.WriteString("\n")

	for i, err := range s.All {
		report.WriteString(fmt.Sprintf("%d. %s\n", i+1, err.FilePath))
		if err.Archive != "" && err.Archive != err.FilePath {
			report.WriteString(fmt.Sprintf("   Archive: %s\n", err.Archive))
		}
		report.WriteString(fmt.Sprintf("   Category: %s | Severity: %s\n", err.Category, err.Severity))
		report.WriteString(fmt.Sprintf("   Error: %v\n", err.OriginalErr))
		if err.Suggestion != "" {
			report.WriteString(fmt.Sprintf("   Suggestion: %s\n", err.Suggestion))
		}
	}

	return report.String()
}
