package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Display handles the progress display
type Display struct {
	tracker   *Tracker
	interval  time.Duration
	out       io.Writer
	stopCh    chan struct{}
	doneCh    chan struct{}
	stopOnce  sync.Once
	lastLines int
	runErr    error
}

// NewDisplay creates a new progress display writing to stdout
func NewDisplay(tracker *Tracker, interval time.Duration) *Display {
	return NewDisplayTo(os.Stdout, tracker, interval)
}

// NewDisplayTo creates a progress display writing to out
func NewDisplayTo(out io.Writer, tracker *Tracker, interval time.Duration) *Display {
	return &Display{
		tracker:  tracker,
		interval: interval,
		out:      out,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start starts the progress display
func (d *Display) Start() {
	go d.displayLoop()
}

// Stop stops the display and waits for the final summary to be written.
// runErr is the outcome of the run; a non-nil error reports it as stopped.
func (d *Display) Stop(runErr error) {
	d.stopOnce.Do(func() {
		d.runErr = runErr
		close(d.stopCh)
		<-d.doneCh
	})
}

// displayLoop runs the display update loop
func (d *Display) displayLoop() {
	defer close(d.doneCh)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.updateDisplay()
		case <-d.stopCh:
			d.finalDisplay()
			return
		}
	}
}

// updateDisplay updates the console display
func (d *Display) updateDisplay() {
	lines := d.generateDisplay(d.tracker.GetStatus())

	d.clearLines()
	fmt.Fprint(d.out, strings.Join(lines, "\n"))
	d.lastLines = len(lines)
}

// finalDisplay shows the final progress
func (d *Display) finalDisplay() {
	d.clearLines()
	lines := d.generateFinalDisplay(d.tracker.GetStatus(), d.runErr)
	fmt.Fprintln(d.out, strings.Join(lines, "\n"))
}

// clearLines separates the next frame from the previous one
func (d *Display) clearLines() {
	if d.lastLines > 0 {
		fmt.Fprint(d.out, "\n")
	}
}

// generateDisplay generates the progress display lines
func (d *Display) generateDisplay(status Status) []string {
	lines := make([]string, 0, 16)

	lines = append(lines, "")
	lines = append(lines, "Record migration progress")
	lines = append(lines, "="+strings.Repeat("=", 50))

	percent := d.tracker.GetProgressPercent()
	lines = append(lines, fmt.Sprintf("Records: %s/%s (%.1f%%)",
		FormatCount(status.ProcessedRecords), FormatCount(status.TotalRecords), percent))
	lines = append(lines, fmt.Sprintf("    %s", d.generateProgressBar(percent, 40)))

	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf("  Batches committed: %d", status.Batches))
	lines = append(lines, fmt.Sprintf("  Batches failed:    %d", status.FailedBatches))

	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf("  Current speed: %s", FormatSpeed(status.CurrentSpeed)))
	lines = append(lines, fmt.Sprintf("  Average speed: %s", FormatSpeed(status.AverageSpeed)))

	elapsed := d.tracker.now().Sub(status.StartTime)
	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf("  Elapsed: %s", FormatDuration(elapsed)))
	lines = append(lines, fmt.Sprintf("  ETA:     %s", FormatDuration(status.ETA)))
	if status.ETA > 0 {
		lines = append(lines, fmt.Sprintf("  Done at: %s", d.tracker.now().Add(status.ETA).Format("15:04:05")))
	}

	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf("Last update: %s", status.LastUpdateTime.Format("15:04:05")))
	lines = append(lines, "")

	return lines
}

// generateFinalDisplay generates the final completion display
func (d *Display) generateFinalDisplay(status Status, runErr error) []string {
	elapsed := d.tracker.now().Sub(status.StartTime)

	heading := "Migration finished"
	if runErr != nil || status.FailedBatches > 0 {
		heading = "Migration stopped"
	}

	lines := []string{
		"",
		heading,
		"=" + strings.Repeat("=", 50),
		fmt.Sprintf("Records processed: %s", FormatCount(status.ProcessedRecords)),
		fmt.Sprintf("Batches committed: %d", status.Batches),
		fmt.Sprintf("Batches failed:    %d", status.FailedBatches),
		fmt.Sprintf("Total time:        %s", FormatDuration(elapsed)),
		fmt.Sprintf("Average speed:     %s", FormatSpeed(status.AverageSpeed)),
	}
	if runErr != nil {
		lines = append(lines, fmt.Sprintf("Error:             %v", runErr))
	}

	return append(lines, "")
}

// generateProgressBar generates a visual progress bar
func (d *Display) generateProgressBar(percent float64, width int) string {
	if percent > 100 {
		percent = 100
	}
	if percent < 0 {
		percent = 0
	}

	filled := int(percent * float64(width) / 100)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)

	return fmt.Sprintf("[%s] %.1f%%", bar, percent)
}

// IsTerminalSupported checks if stdout is a terminal
func IsTerminalSupported() bool {
	fileInfo, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fileInfo.Mode()&os.ModeCharDevice != 0
}
