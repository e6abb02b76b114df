package main

import (
	"fmt"
	"os"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "bigfolders",
	Short: "Find the biggest folders under your home, all homes, or any folder",
	Long: heredoc.Doc(`
		bigfolders sizes every folder below a root by the space it occupies
		on disk and ranks them biggest first while the scan is still running.

		Roots:
		  default        your home directory
		  --all-users    every home directory next to yours
		  --path DIR     any folder

		Symbolic links are never followed. Results can be exported to CSV
		and recorded into SQLite snapshots for later queries.
	`),
	SilenceUsage: true,
}

func init() {
	rootCmd.Version = version
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(queryCmd)
}
