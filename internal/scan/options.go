package scan

import (
	"fmt"
	"io"
	"os"
	"regexp"
)

// ScanOptions configures the scanning behavior.
type ScanOptions struct {
	// Xdev keeps each aggregated top-level directory on its own filesystem.
	Xdev bool

	// ExcludePatterns are regular expressions for paths to skip.
	ExcludePatterns []*regexp.Regexp

	// Verbose enables tagged trace lines.
	Verbose bool

	// LogOutput receives trace lines. Defaults to stderr.
	LogOutput io.Writer

	// ResultBuffer is the capacity of the result stream.
	ResultBuffer int

	// CommandBuffer is the capacity of the command queue.
	CommandBuffer int

	// ErrorBuffer is how many sampled scan errors may wait unread.
	ErrorBuffer int
}

// DefaultOptions returns sensible defaults for scanning.
func DefaultOptions() *ScanOptions {
	return &ScanOptions{
		Xdev:          false,
		LogOutput:     os.Stderr,
		ResultBuffer:  100,
		CommandBuffer: 10,
		ErrorBuffer:   1000,
	}
}

// WithXdev sets cross-device behavior.
func (o *ScanOptions) WithXdev(xdev bool) *ScanOptions {
	o.Xdev = xdev
	return o
}

// WithVerbose toggles trace output.
func (o *ScanOptions) WithVerbose(verbose bool) *ScanOptions {
	o.Verbose = verbose
	return o
}

// WithLogOutput redirects trace output.
func (o *ScanOptions) WithLogOutput(w io.Writer) *ScanOptions {
	o.LogOutput = w
	return o
}

// AddExcludePattern adds a pattern to exclude.
func (o *ScanOptions) AddExcludePattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("invalid exclude pattern %q: %w", pattern, err)
	}
	o.ExcludePatterns = append(o.ExcludePatterns, re)
	return nil
}

// ShouldExclude checks if a path matches any exclude pattern.
func (o *ScanOptions) ShouldExclude(path string) bool {
	for _, re := range o.ExcludePatterns {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}

func (o *ScanOptions) logf(format string, args ...any) {
	if !o.Verbose {
		return
	}
	w := o.LogOutput
	if w == nil {
		w = os.Stderr
	}
	fmt.Fprintf(w, format+"\n", args...)
}

// aggregatorLogf returns the trace hook for the aggregator, nil when quiet.
func (o *ScanOptions) aggregatorLogf() func(string, ...any) {
	if !o.Verbose {
		return nil
	}
	return o.logf
}

func (o *ScanOptions) excluder() func(string) bool {
	if len(o.ExcludePatterns) == 0 {
		return nil
	}
	return o.ShouldExclude
}
