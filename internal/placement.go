package internal

import (
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
)

type bucketKey struct {
	category Category
	year     int
}

type nameKey struct {
	bucket bucketKey
	base   string
}

// YearCount is the number of files placed in one year
type YearCount struct {
	Photos int
	Videos int
}

func (y YearCount) Total() int {
	return y.Photos + y.Videos
}

// PlacementState is the per-run bookkeeping of the placement engine.
// It is not safe for concurrent use; a run places files one at a time.
type PlacementState struct {
	occupied map[nameKey]int
	claimed  map[bucketKey]map[string]struct{}
	// onDisk reports names already present in the output before this run
	onDisk func(b bucketKey, name string) bool

	Placed     int
	ByCategory map[Category]int
	ByYear     map[int]YearCount
	Skipped    []string
	Errors     int
}

func NewPlacementState() *PlacementState {
	return &PlacementState{
		occupied:   make(map[nameKey]int),
		claimed:    make(map[bucketKey]map[string]struct{}),
		ByCategory: make(map[Category]int),
		ByYear:     make(map[int]YearCount),
	}
}

func (s *PlacementState) isClaimed(b bucketKey, name string) bool {
	if _, ok := s.claimed[b][name]; ok {
		return true
	}
	return s.onDisk != nil && s.onDisk(b, name)
}

// nextName picks the file name for base in bucket without changing state.
// count is the value to store for base once the name is committed.
func (s *PlacementState) nextName(b bucketKey, base string) (name string, count int) {
	n := s.occupied[nameKey{b, base}]
	if n == 0 && !s.isClaimed(b, base) {
		return base, 1
	}
	if n < 1 {
		n = 1
	}
	for s.isClaimed(b, counterName(base, n)) {
		n++
	}
	return counterName(base, n), n + 1
}

func (s *PlacementState) commit(b bucketKey, base, name string, count int) {
	s.occupied[nameKey{b, base}] = count
	if s.claimed[b] == nil {
		s.claimed[b] = make(map[string]struct{})
	}
	s.claimed[b][name] = struct{}{}

	s.Placed++
	s.ByCategory[b.category]++
	yc := s.ByYear[b.year]
	switch b.category {
	case Photo:
		yc.Photos++
	case Video:
		yc.Videos++
	}
	s.ByYear[b.year] = yc
}

// Placement is where one media file went
type Placement struct {
	Entry    MediaEntry
	Date     ResolvedDate
	Category Category
	Dest     string
	RelDest  string // slash separated, relative to the output root
	Renamed  bool
	Hash     string
	Size     int64
}

// Placer maps media files to <root>/<photos|videos>/<year>/<name> and copies them.
type Placer struct {
	outputRoot string
	classifier *Classifier
	state      *PlacementState
	dryRun     bool
	log        *slog.Logger
}

func NewPlacer(outputRoot string, classifier *Classifier, dryRun bool, logger *slog.Logger) *Placer {
	if logger == nil {
		logger = DiscardLogger().Logger
	}
	p := &Placer{
		outputRoot: outputRoot,
		classifier: classifier,
		state:      NewPlacementState(),
		dryRun:     dryRun,
		log:        logger,
	}
	p.state.onDisk = p.existsOnDisk
	return p
}

// existsOnDisk keeps files from an earlier run or another tool from being replaced
func (p *Placer) existsOnDisk(b bucketKey, name string) bool {
	_, err := os.Lstat(filepath.Join(p.outputRoot, b.category.Dir(), yearDir(b.year), name))
	return err == nil
}

func (p *Placer) State() *PlacementState {
	return p.state
}

// Classify reports the category the placer would assign to e
func (p *Placer) Classify(e MediaEntry) Category {
	return p.classifier.Classify(e.Extension)
}

// Skip records a file that is not a photo or video
func (p *Placer) Skip(e MediaEntry) error {
	p.state.Skipped = append(p.state.Skipped, e.RelPath)
	p.log.Info("skipping unrecognized file", "file", e.RelPath, "archive", e.Archive)
	return fmt.Errorf("%s: %w (%q)", e.RelPath, ErrUnrecognized, e.Extension)
}

// Place copies e into its year folder. Unrecognized files are skipped with
// ErrUnrecognized. A failed copy leaves the collision state untouched and
// returns a *ProcessError.
func (p *Placer) Place(e MediaEntry, d ResolvedDate) (Placement, error) {
	cat := p.Classify(e)
	if cat == Unrecognized {
		return Placement{}, p.Skip(e)
	}

	bucket := bucketKey{category: cat, year: d.Year}
	base := e.Name()
	name, count := p.state.nextName(bucket, base)
	if name != base && p.existsOnDisk(bucket, base) {
		p.log.Info("name taken in output, renaming", "file", e.RelPath, "name", name)
	}
	rel := path.Join(cat.Dir(), yearDir(d.Year), name)

	pl := Placement{
		Entry:    e,
		Date:     d,
		Category: cat,
		Dest:     filepath.Join(p.outputRoot, filepath.FromSlash(rel)),
		RelDest:  rel,
		Renamed:  name != base,
		Size:     e.Size,
	}

	if p.dryRun {
		p.state.commit(bucket, base, name, count)
		p.log.Info("[dry-run] would copy", "file", e.RelPath, "dest", rel, "date_source", d.Source)
		return pl, nil
	}

	dir := filepath.Dir(pl.Dest)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return pl, p.fail(e, fmt.Errorf("failed to create directory %s: %w", dir, err))
	}

	res, err := copyFileAtomic(e.SourcePath, pl.Dest)
	if err != nil {
		return pl, p.fail(e, fmt.Errorf("failed to copy %s to %s: %w", e.RelPath, rel, err))
	}
	pl.Hash = res.Hash
	pl.Size = res.Size

	p.state.commit(bucket, base, name, count)
	p.log.Info("placed", "file", e.RelPath, "dest", rel, "date_source", d.Source)
	return pl, nil
}

func (p *Placer) fail(e MediaEntry, err error) *ProcessError {
	p.state.Errors++
	procErr := CategorizeError(e.RelPath, err)
	procErr.Archive = e.Archive
	p.log.Error("placement failed", "file", e.RelPath, "error", err, "category", procErr.Category)
	return procErr
}

func yearDir(year int) string {
	return fmt.Sprintf("%04d", year)
}
