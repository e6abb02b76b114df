package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/michaelscutari/bigfolders/internal/db"
	"github.com/michaelscutari/bigfolders/internal/export"
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query a snapshot non-interactively",
	Long:  `Query a recorded snapshot and output the biggest folders for scripting.`,
	RunE:  runQuery,
}

var (
	queryDB       string
	queryPath     string
	queryChildren bool
	querySort     string
	queryLimit    int
	queryMinSize  string
	queryDepth    int
	queryCSV      bool
	queryRaw      bool
)

func init() {
	queryCmd.Flags().StringVarP(&queryDB, "db", "d", "./data/latest.db", "Path to database file")
	queryCmd.Flags().StringVarP(&queryPath, "path", "p", "", "Only folders under this path")
	queryCmd.Flags().BoolVar(&queryChildren, "children", false, "Only the direct subfolders of --path (default: the scan root)")
	queryCmd.Flags().StringVarP(&querySort, "sort", "s", "size", "Sort by: size, path, accessed, seq")
	queryCmd.Flags().IntVarP(&queryLimit, "limit", "n", 20, "Maximum number of results")
	queryCmd.Flags().StringVar(&queryMinSize, "min-size", "0B", "Minimum folder size (e.g. 500MB)")
	queryCmd.Flags().IntVar(&queryDepth, "depth", 0, "Maximum depth below the scan root (0 = unlimited)")
	queryCmd.Flags().BoolVar(&queryCSV, "csv", false, "Write CSV to stdout")
	queryCmd.Flags().BoolVar(&queryRaw, "raw-sizes", false, "Print sizes in bytes")
}

func runQuery(cmd *cobra.Command, args []string) error {
	minSize, err := humanize.ParseBytes(queryMinSize)
	if err != nil {
		return fmt.Errorf("invalid --min-size %q: %w", queryMinSize, err)
	}

	database, err := db.Open(queryDB)
	if err != nil {
		return err
	}
	defer database.Close()

	var rows []db.DirRow
	if queryChildren {
		parent := queryPath
		if parent == "" {
			meta, err := db.GetScanMeta(database)
			if err != nil {
				return fmt.Errorf("failed to get root path: %w", err)
			}
			parent = meta.RootPath
		}
		rows, err = db.LoadChildren(database, parent, querySort, queryLimit)
	} else {
		rows, err = db.LoadTop(database, db.Query{
			Under:    queryPath,
			MaxDepth: queryDepth,
			Sort:     querySort,
			Limit:    queryLimit,
			MinSize:  int64(minSize),
		})
	}
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	format := export.SizeHuman
	if queryRaw {
		format = export.SizeBytes
	}
	entries := db.Entries(rows)
	if queryCSV {
		_, err := export.WriteCSV(os.Stdout, entries, format)
		return err
	}
	printEntries(os.Stdout, entries, true, format, "")
	return nil
}
