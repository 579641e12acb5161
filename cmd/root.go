package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is set from the embedded VERSION file or -ldflags
var Version = "dev"

var (
	configFlag  string
	verboseFlag bool
)

var rootCmd = &cobra.Command{
	Use:           "takeout-organizer",
	Short:         "Organize Google Photos Takeout archives by year",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), Version)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

// ApplyVersion copies Version into the root command's --version output
func ApplyVersion() {
	rootCmd.Version = Version
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Config file (default: <user config dir>/takeout-organizer/takeout-organizer.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Show debug output on the console")

	rootCmd.AddCommand(versionCmd)
	ApplyVersion()
}
