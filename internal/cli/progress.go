package cli

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/mvp-joe/usagegraph/internal/indexer"
)

// passNames label the progress bar of each extraction pass.
var passNames = map[int]string{
	1: "Parsing files",
	2: "Matching patterns",
}

// CLIProgressReporter implements indexer.ProgressReporter with progress bars.
type CLIProgressReporter struct {
	quiet bool
	out   io.Writer

	mu  sync.Mutex
	bar *progressbar.ProgressBar
}

// NewCLIProgressReporter creates a new CLI progress reporter.
func NewCLIProgressReporter(out io.Writer, quiet bool) *CLIProgressReporter {
	return &CLIProgressReporter{quiet: quiet, out: out}
}

func (c *CLIProgressReporter) OnDiscoveryStart() {
	if c.quiet {
		return
	}
	fmt.Fprintln(c.out, "Discovering files...")
}

func (c *CLIProgressReporter) OnDiscoveryComplete(files int) {
	if c.quiet {
		return
	}
	fmt.Fprintf(c.out, "Processing %s source files\n", formatNumber(files))
}

func (c *CLIProgressReporter) OnPassStart(pass int, totalFiles int) {
	if c.quiet {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	// Finish any existing progress bar
	if c.bar != nil {
		c.bar.Finish()
	}
	c.bar = progressbar.NewOptions(totalFiles,
		progressbar.OptionSetWriter(c.out),
		progressbar.OptionSetDescription(passNames[pass]),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("files/s"),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(c.out)
		}),
	)
}

func (c *CLIProgressReporter) OnFileProcessed(pass int, fileName string) {
	if c.quiet {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bar != nil {
		c.bar.Add(1)
	}
}

func (c *CLIProgressReporter) OnComplete(stats indexer.Stats) {
	if c.quiet {
		return
	}
	c.mu.Lock()
	if c.bar != nil {
		c.bar.Finish()
		c.bar = nil
	}
	c.mu.Unlock()

	fmt.Fprintf(c.out, "✓ Extraction complete: %s files in %.1fs\n", formatNumber(stats.Files), stats.Total.Seconds())
	fmt.Fprintf(c.out, "  Symbols: %s\n", formatNumber(stats.Symbols))
	fmt.Fprintf(c.out, "  Edges:   %s\n", formatNumber(stats.Edges))
	if stats.Cached > 0 {
		fmt.Fprintf(c.out, "  Cached:  %s\n", formatNumber(stats.Cached))
	}
	if stats.Failed > 0 {
		fmt.Fprintf(c.out, "  Failed:  %s\n", formatNumber(stats.Failed))
	}
}

// formatNumber renders n with thousands separators.
func formatNumber(n int) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}

	str := fmt.Sprintf("%d", n)
	var result string
	for i, c := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result += ","
		}
		result += string(c)
	}
	return result
}
