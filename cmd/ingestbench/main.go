package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/michaelscutari/bigfolders/internal/db"
	"github.com/michaelscutari/bigfolders/internal/entry"
)

func main() {
	outDir := flag.String("out", ".", "Output directory for temp DB")
	rows := flag.Int("rows", 100000, "Folders to ingest")
	batch := flag.Int("batch", 10000, "Batch size per transaction")
	fanout := flag.Int("fanout", 100, "Synthetic folders per parent")
	flag.Parse()

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "mkdir error: %v\n", err)
		os.Exit(1)
	}

	dbPath := filepath.Join(*outDir, fmt.Sprintf(".ingestbench-%d.db", time.Now().UnixNano()))
	database, err := sql.Open("sqlite", dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db error: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		database.Close()
		os.Remove(dbPath)
	}()

	if err := db.ApplyWritePragmas(database); err != nil {
		fmt.Fprintf(os.Stderr, "pragma error: %v\n", err)
		os.Exit(1)
	}
	if err := db.InitSchema(database); err != nil {
		fmt.Fprintf(os.Stderr, "schema error: %v\n", err)
		os.Exit(1)
	}

	const root = "/bench"
	events := make(chan entry.Event, 100)
	errs := make(chan entry.ScanError)
	ing := db.NewIngester(database, root, events, errs, *batch, 1000, 0, nil)

	start := time.Now()
	go func() {
		var total int64
		for i := 0; i < *rows; i++ {
			path := fmt.Sprintf("%s/%d/%d", root, i / *fanout, i)
			size := int64(4096 * (i%97 + 1))
			total += size
			events <- entry.EntryEvent(entry.ScanEntry{Path: path, Size: size})
		}
		events <- entry.DoneEvent(entry.ScanMeta{
			RootPath:  root,
			Mode:      "folder",
			StartTime: start,
			EndTime:   time.Now(),
			TotalSize: total,
			DirCount:  int64(*rows),
		}, nil)
	}()

	if err := ing.Run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "ingest error: %v\n", err)
		os.Exit(1)
	}
	ingestDur := time.Since(start)

	indexStart := time.Now()
	if err := db.BuildIndexes(database); err != nil {
		fmt.Fprintf(os.Stderr, "index error: %v\n", err)
		os.Exit(1)
	}
	indexDur := time.Since(indexStart)

	fmt.Printf("out=%s rows=%d batch=%d fanout=%d\n", *outDir, *rows, *batch, *fanout)
	fmt.Printf("ingest: %v\n", ingestDur)
	fmt.Printf("index:  %v\n", indexDur)
	if ingestDur.Seconds() > 0 {
		fmt.Printf("throughput: %.0f rows/sec\n", float64(*rows)/ingestDur.Seconds())
	}
}
