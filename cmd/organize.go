package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"takeout-organizer/internal"
)

const logName = "takeout-organizer.log"

var (
	outputFlag        string
	workDirFlag       string
	dryRunFlag        bool
	useExifToolFlag   bool
	videoMetadataFlag bool
)

var organizeCmd = &cobra.Command{
	Use:   "organize <archive.zip>...",
	Short: "Sort the photos and videos of Takeout archives into year folders",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := internal.LoadConfig(configFlag)
		if err != nil {
			return err
		}
		applyFlags(cmd, conf)
		if err := conf.Validate(); err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		summary, err := organize(ctx, conf, args, cmd.OutOrStdout(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		if summary.Interrupted {
			return errors.New("interrupted")
		}
		if n := summary.Errors.Failures(); n > 0 {
			return fmt.Errorf("%d file(s) or archive(s) failed, see %s", n, summary.ReportPath)
		}
		return nil
	},
}

// applyFlags lets explicitly set flags override the config file
func applyFlags(cmd *cobra.Command, conf *internal.Config) {
	flags := cmd.Flags()
	if flags.Changed("output") {
		conf.OutputDir = outputFlag
	}
	if flags.Changed("work-dir") {
		conf.WorkDir = workDirFlag
	}
	if flags.Changed("exiftool") {
		conf.UseExifTool = useExifToolFlag
	}
	if flags.Changed("video-metadata") {
		conf.VideoMetadata = videoMetadataFlag
	}
	if verboseFlag {
		conf.LogLevel = "debug"
	}
	conf.DryRun = dryRunFlag
}

func organize(ctx context.Context, conf *internal.Config, archives []string, stdout, stderr io.Writer) (*internal.Summary, error) {
	showProgress := !verboseFlag && isTerminal(stderr)
	consoleLevel := conf.LogLevel
	if showProgress && consoleLevel == "info" {
		// keep the console to the progress line and problems
		consoleLevel = "warn"
	}

	if err := os.MkdirAll(conf.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	logger, err := internal.NewLogger(filepath.Join(conf.OutputDir, logName), stderr, consoleLevel)
	if err != nil {
		return nil, err
	}
	defer logger.Close()

	fmt.Fprintf(stdout, "Organizing %d archive(s) into %s\n", len(archives), conf.OutputDir)
	if conf.DryRun {
		fmt.Fprintln(stdout, "Dry run mode: no files will be copied")
	}

	var obs internal.Observer
	var bar *progressbar.ProgressBar
	if showProgress {
		bar = newSpinner(stderr)
		obs = &progressObserver{bar: bar}
	}

	summary, err := internal.Run(ctx, conf, archives, logger.Logger, obs)
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		return nil, err
	}

	fmt.Fprint(stdout, summary.Console(verboseFlag))
	return summary, nil
}

func newSpinner(w io.Writer) *progressbar.ProgressBar {
	return progressbar.NewOptions64(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("extracting"),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

type progressObserver struct {
	bar *progressbar.ProgressBar
}

func (p *progressObserver) OnArchive(archive string) {
	p.bar.Describe(filepath.Base(archive))
}

func (p *progressObserver) OnEntry(internal.MediaEntry, internal.Outcome) {
	_ = p.bar.Add(1)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func init() {
	organizeCmd.Flags().StringVarP(&outputFlag, "output", "o", "output", "Output directory")
	organizeCmd.Flags().StringVar(&workDirFlag, "work-dir", "", "Directory for temporary extraction (default: system temp dir)")
	organizeCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "Resolve dates and names without copying")
	organizeCmd.Flags().BoolVar(&useExifToolFlag, "exiftool", false, "Read embedded dates with the exiftool binary")
	organizeCmd.Flags().BoolVar(&videoMetadataFlag, "video-metadata", false, "Read MP4/MOV creation time when no sidecar date exists")

	rootCmd.AddCommand(organizeCmd)
}
