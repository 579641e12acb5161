package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/barasher/go-exiftool"
	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"
)

const lockName = ".takeout-organizer.lock"

// ErrLocked is returned when another run holds the output root
var ErrLocked = errors.New("output directory is in use by another run")

// Observer receives progress events from Run. Implementations must not block.
type Observer interface {
	OnArchive(archive string)
	OnEntry(e MediaEntry, outcome Outcome)
}

// Outcome is what happened to a single entry
type Outcome string

const (
	OutcomePlaced  Outcome = "placed"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

type nopObserver struct{}

func (nopObserver) OnArchive(string)            {}
func (nopObserver) OnEntry(MediaEntry, Outcome) {}

// Run organizes the given archives into cfg.OutputDir and writes the report.
// Only fatal conditions are returned as errors: no valid archive, an output
// root that cannot be created, or a lock held by another run. Everything else
// ends up in the returned Summary.
func Run(ctx context.Context, cfg *Config, archives []string, logger *slog.Logger, obs Observer) (*Summary, error) {
	if logger == nil {
		logger = DiscardLogger().Logger
	}
	if obs == nil {
		obs = nopObserver{}
	}

	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	lock := flock.New(filepath.Join(cfg.OutputDir, lockName))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, cfg.OutputDir)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("failed to release lock", "error", err)
		}
	}()

	valid, archiveErrs := ValidateArchives(archives)
	for _, ae := range archiveErrs {
		logger.Error("skipping archive", "archive", ae.Archive, "error", ae.Err)
	}
	if len(valid) == 0 {
		return nil, ErrNoValidArchives
	}

	session, err := NewSession(cfg.OutputDir, archives, cfg.DryRun)
	if err != nil {
		return nil, err
	}
	defer session.Close()
	if err := session.LogSessionStart(); err != nil {
		logger.Warn("manifest write failed", "error", err)
	}

	summary := newSummary()
	summary.RunID = session.ID
	summary.StartedAt = session.StartedAt
	summary.DryRun = cfg.DryRun
	summary.OutputDir = cfg.OutputDir
	summary.Archives = archives

	o := &organizer{
		cfg:     cfg,
		log:     logger,
		obs:     obs,
		session: session,
		summary: summary,
	}
	for _, ae := range archiveErrs {
		o.recordError(CategorizeError(ae.Archive, ae))
	}

	resolverOpts := ResolverOptions{
		ExifExt:       cfg.ExifExt,
		VideoMetadata: cfg.VideoMetadata,
		Logger:        logger,
	}
	if cfg.UseExifTool {
		et, err := exiftool.NewExiftool()
		if err != nil {
			logger.Warn("exiftool unavailable, using built-in EXIF reader", "error", err)
		} else {
			defer et.Close()
			resolverOpts.ExifTool = et
		}
	}

	o.walker = NewWalker(cfg.WorkDir, cfg.SidecarSuffix, logger)
	o.resolver = NewResolver(resolverOpts)
	o.placer = NewPlacer(cfg.OutputDir, NewClassifier(cfg.PhotoExt, cfg.VideoExt), cfg.DryRun, logger)

	o.process(ctx, valid)
	o.finish()
	return summary, nil
}

type organizer struct {
	cfg      *Config
	log      *slog.Logger
	obs      Observer
	session  *Session
	summary  *Summary
	walker   *Walker
	resolver *Resolver
	placer   *Placer
}

func (o *organizer) process(ctx context.Context, archives []string) {
	current := ""
	for e, err := range o.walker.Walk(ctx, archives) {
		if err != nil {
			var archiveErr *ArchiveError
			if errors.As(err, &archiveErr) {
				o.log.Error("archive failed", "archive", archiveErr.Archive, "error", archiveErr.Err)
				o.recordError(CategorizeError(archiveErr.Archive, archiveErr))
				continue
			}
			if ctx.Err() != nil {
				o.log.Warn("run interrupted", "error", err)
				o.summary.Interrupted = true
				return
			}
			o.recordError(CategorizeError("", err))
			continue
		}
		if e.Archive != current {
			current = e.Archive
			o.obs.OnArchive(current)
		}
		o.obs.OnEntry(e, o.processEntry(e))
	}
}

func (o *organizer) processEntry(e MediaEntry) Outcome {
	if o.placer.Classify(e) == Unrecognized {
		err := o.placer.Skip(e)
		if err := o.session.LogSkipped(e, err.Error()); err != nil {
			o.log.Warn("manifest write failed", "error", err)
		}
		return OutcomeSkipped
	}

	if limit := o.cfg.LargeFileBytes(); limit > 0 && e.Size > 0 && uint64(e.Size) > limit {
		o.log.Warn("large file", "file", e.RelPath, "size", humanize.IBytes(uint64(e.Size)))
	}

	d := o.resolver.Resolve(e)
	for _, w := range d.Warnings {
		procErr := CategorizeError(e.RelPath, w)
		procErr.Archive = e.Archive
		o.recordError(procErr)
	}

	pl, err := o.placer.Place(e, d)
	if err != nil {
		procErr := CategorizeError(e.RelPath, err)
		procErr.Archive = e.Archive
		o.recordError(procErr)
		return OutcomeFailed
	}
	o.summary.BySource[d.Source]++
	if err := o.session.LogPlaced(pl); err != nil {
		o.log.Warn("manifest write failed", "error", err)
	}
	return OutcomePlaced
}

func (o *organizer) recordError(procErr *ProcessError) {
	o.summary.Errors.Add(procErr)
	if err := o.session.LogError(procErr); err != nil {
		o.log.Warn("manifest write failed", "error", err)
	}
}

func (o *organizer) finish() {
	ws := o.walker.Stats()
	st := o.placer.State()

	s := o.summary
	s.ArchivesFailed = s.Errors.ByCategory[ErrorCategoryArchive]
	s.FilesFound = ws.FilesFound
	s.MetadataFiles = ws.Sidecars
	s.Placed = st.Placed
	s.Renamed = o.session.GetStats().Renamed
	s.ByYear = st.ByYear
	s.Skipped = st.Skipped
	s.FinishedAt = time.Now()

	reportPath := filepath.Join(o.cfg.OutputDir, reportName)
	if err := s.WriteReport(reportPath); err != nil {
		o.log.Error("failed to write report", "error", err)
	} else {
		o.log.Info("report written", "path", reportPath)
	}

	if err := o.session.LogSessionEnd(ws.FilesFound); err != nil {
		o.log.Warn("manifest write failed", "error", err)
	}
	o.log.Info("run complete",
		"files", ws.FilesFound,
		"placed", st.Placed,
		"renamed", s.Renamed,
		"skipped", len(st.Skipped),
		"errors", s.Errors.Failures(),
		"duration", s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond))
}
