package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"takeout-organizer/internal"
)

var formatFlag string

var inspectCmd = &cobra.Command{
	Use:   "inspect <archive.zip>...",
	Short: "List what Takeout archives contain without extracting them",
	Long: `Read the zip directories of Takeout archives and report photos, videos,
sidecars and other files per archive, as the organize command would see them.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := internal.LoadConfig(configFlag)
		if err != nil {
			return err
		}

		invs := internal.NewInspector(conf).InspectArchives(args)

		switch formatFlag {
		case "json":
			return internal.WriteInventoryJSON(cmd.OutOrStdout(), invs)
		case "table":
			internal.WriteInventoryTable(cmd.OutOrStdout(), invs)
			return nil
		default:
			return fmt.Errorf("unknown format %q (use table or json)", formatFlag)
		}
	},
}

func init() {
	inspectCmd.Flags().StringVar(&formatFlag, "format", "table", "Output format: table, json")

	rootCmd.AddCommand(inspectCmd)
}
