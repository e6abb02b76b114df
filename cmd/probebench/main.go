package main

import (
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charlievieth/fastwalk"
	"github.com/dustin/go-humanize"

	"github.com/michaelscutari/bigfolders/internal/probe"
)

func main() {
	dir := flag.String("dir", ".", "Directory to probe")
	limit := flag.Int("limit", 200000, "Max entries to sample (0 = all)")
	workers := flag.Int("workers", 8, "Concurrent probe workers")
	recursive := flag.Bool("recursive", false, "Walk recursively and sample files/dirs")
	flag.Parse()

	var paths []string
	start := time.Now()
	if *recursive {
		var mu sync.Mutex
		conf := fastwalk.Config{Follow: false, NumWorkers: *workers}
		err := fastwalk.Walk(&conf, *dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil || path == *dir {
				return nil
			}
			mu.Lock()
			defer mu.Unlock()
			if *limit > 0 && len(paths) >= *limit {
				return fastwalk.SkipDir
			}
			paths = append(paths, path)
			return nil
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "walk error: %v\n", err)
			os.Exit(1)
		}
	} else {
		entries, err := os.ReadDir(*dir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "readdir error: %v\n", err)
			os.Exit(1)
		}
		if *limit > 0 && *limit < len(entries) {
			entries = entries[:*limit]
		}
		paths = make([]string, 0, len(entries))
		for _, de := range entries {
			paths = append(paths, filepath.Join(*dir, de.Name()))
		}
	}
	listDur := time.Since(start)

	var idx, statCount, errCount, totalDur int64
	var allocated, apparent int64

	start = time.Now()
	var wg sync.WaitGroup
	for i := 0; i < *workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				n := int(atomic.AddInt64(&idx, 1)) - 1
				if n >= len(paths) {
					return
				}
				t0 := time.Now()
				info := probe.Stat(paths[n])
				atomic.AddInt64(&totalDur, time.Since(t0).Microseconds())
				atomic.AddInt64(&statCount, 1)
				if !info.OK {
					atomic.AddInt64(&errCount, 1)
					continue
				}
				atomic.AddInt64(&allocated, info.Allocated)
				atomic.AddInt64(&apparent, info.Apparent)
			}
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	avg := time.Duration(0)
	if statCount > 0 {
		avg = time.Duration(totalDur/statCount) * time.Microsecond
	}

	fmt.Printf("dir=%s entries=%d workers=%d recursive=%t\n", *dir, statCount, *workers, *recursive)
	fmt.Printf("list:  %v\n", listDur)
	fmt.Printf("probe: calls=%d avg=%v total=%v errors=%d\n", statCount, avg, elapsed, errCount)
	fmt.Printf("allocated=%s apparent=%s\n", humanize.IBytes(uint64(allocated)), humanize.IBytes(uint64(apparent)))
	if elapsed.Seconds() > 0 {
		fmt.Printf("throughput: %.0f probes/sec\n", float64(statCount)/elapsed.Seconds())
	}
}
