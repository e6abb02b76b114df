package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/michaelscutari/bigfolders/internal/db"
	"github.com/michaelscutari/bigfolders/internal/snapshot"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Display snapshot metadata",
	Long:  `Print metadata about a recorded snapshot including timestamps, statistics and sampled errors.`,
	RunE:  runInfo,
}

var (
	infoDB     string
	infoErrors int
	infoList   string
)

func init() {
	infoCmd.Flags().StringVarP(&infoDB, "db", "d", "./data/latest.db", "Path to database file")
	infoCmd.Flags().IntVar(&infoErrors, "errors", 10, "Number of sampled errors to print")
	infoCmd.Flags().StringVar(&infoList, "list", "", "List the snapshots in this directory instead")
}

func runInfo(cmd *cobra.Command, args []string) error {
	if infoList != "" {
		snapshots, err := snapshot.NewManager(infoList, 0).ListSnapshots()
		if err != nil {
			return fmt.Errorf("failed to list snapshots: %w", err)
		}
		for _, s := range snapshots {
			fmt.Println(s)
		}
		return nil
	}

	database, err := db.Open(infoDB)
	if err != nil {
		return err
	}
	defer database.Close()

	meta, err := db.GetScanMeta(database)
	if err != nil {
		return fmt.Errorf("failed to read scan metadata: %w", err)
	}

	fmt.Printf("Scan Information\n")
	fmt.Printf("================\n\n")
	fmt.Printf("Root Path:    %s\n", meta.RootPath)
	fmt.Printf("Mode:         %s\n", meta.Mode)
	fmt.Printf("Start Time:   %s\n", meta.StartTime.Format(time.RFC3339))
	if !meta.EndTime.IsZero() {
		fmt.Printf("End Time:     %s\n", meta.EndTime.Format(time.RFC3339))
		fmt.Printf("Duration:     %s\n", meta.Duration().Round(time.Millisecond))
	}
	if meta.Stopped {
		fmt.Printf("Stopped:      yes (partial results)\n")
	}
	fmt.Printf("\nStatistics\n")
	fmt.Printf("----------\n")
	fmt.Printf("Files:         %s\n", humanize.Comma(meta.FileCount))
	fmt.Printf("Folders:       %s\n", humanize.Comma(meta.DirCount))
	fmt.Printf("Disk Usage:    %s\n", humanize.IBytes(uint64(meta.TotalSize)))
	if meta.ErrorCount > 0 {
		fmt.Printf("Errors:        %s\n", humanize.Comma(meta.ErrorCount))
	}

	if infoErrors > 0 && meta.ErrorCount > 0 {
		sampled, err := db.LoadErrors(database, infoErrors)
		if err != nil {
			return err
		}
		fmt.Printf("\nSampled Errors\n")
		fmt.Printf("--------------\n")
		for _, e := range sampled {
			fmt.Printf("%s: %s\n", e.Path, e.Message)
		}
	}

	return nil
}
