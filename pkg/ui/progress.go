package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	ProgressBar   = "━"
	ProgressEmpty = "─"
	barWidth      = 20

	// minimum time between two redraws
	redrawInterval = 100 * time.Millisecond
)

// Progress tracks processed entries and redraws a single status line.
// Counters are updated from worker goroutines.
type Progress struct {
	out       io.Writer
	enabled   bool
	total     int
	startTime time.Time

	succeeded atomic.Int64
	failed    atomic.Int64
	skipped   atomic.Int64

	mu       sync.Mutex
	lastDraw time.Time
}

// NewProgress creates a progress tracker for total entries. Nothing is drawn
// unless enabled is true.
func NewProgress(out io.Writer, total int, enabled bool) *Progress {
	return &Progress{
		out:       out,
		enabled:   enabled,
		total:     total,
		startTime: time.Now(),
	}
}

// Advance records one finished entry
func (p *Progress) Advance(success bool) {
	if success {
		p.succeeded.Add(1)
	} else {
		p.failed.Add(1)
	}
	p.redraw(false)
}

// Skip records one entry that was never dispatched
func (p *Progress) Skip() {
	p.skipped.Add(1)
	p.redraw(false)
}

// Processed returns the number of entries accounted for so far
func (p *Progress) Processed() int {
	return int(p.succeeded.Load() + p.failed.Load() + p.skipped.Load())
}

// Counts returns succeeded, failed and skipped totals
func (p *Progress) Counts() (succeeded, failed, skipped int) {
	return int(p.succeeded.Load()), int(p.failed.Load()), int(p.skipped.Load())
}

// Finish draws the final state and ends the line
func (p *Progress) Finish() {
	if !p.enabled {
		return
	}
	p.redraw(true)
	p.mu.Lock()
	fmt.Fprintln(p.out)
	p.mu.Unlock()
}

func (p *Progress) redraw(force bool) {
	if !p.enabled {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	if !force && now.Sub(p.lastDraw) < redrawInterval {
		return
	}
	p.lastDraw = now
	fmt.Fprintf(p.out, "\r\033[K%s", p.line())
}

// line renders the status line without carriage control
func (p *Progress) line() string {
	succeeded, failed, skipped := p.Counts()
	processed := succeeded + failed + skipped

	ratio := 0.0
	if p.total > 0 {
		ratio = float64(processed) / float64(p.total)
	}
	if ratio > 1 {
		ratio = 1
	}
	filled := int(ratio * barWidth)
	bar := strings.Repeat(ProgressBar, filled) + strings.Repeat(ProgressEmpty, barWidth-filled)

	elapsed := time.Since(p.startTime)
	rate := 0.0
	if elapsed > 0 {
		rate = float64(processed) / elapsed.Seconds()
	}

	line := fmt.Sprintf("[%s] %d/%d • %s %d • %s %d • %.1f/s • %s",
		bar, processed, p.total,
		Green("saved"), succeeded,
		Red("failed"), failed,
		rate, formatDuration(elapsed))
	if skipped > 0 {
		line += fmt.Sprintf(" • %s %d", Yellow("skipped"), skipped)
	}
	return line
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
