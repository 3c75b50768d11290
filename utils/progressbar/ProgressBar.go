// Package progressbar implements functionality of printing a progress
// bar to a terminal window
package progressbar

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// ProgressBar is a manually managed progress bar. Display must be
// called whenever an updated progress bar should be written.
//
// ProgressBar is safe for concurrent use.
type ProgressBar struct {
	mu              sync.Mutex
	out             io.Writer
	width           float64
	maxProgress     float64
	currentProgress float64
	bar             strings.Builder
	startTime       time.Time
	closed          bool
}

// New returns a new progress bar that is width characters wide, writes
// to out, and reaches 100% after max calls to Increment
func New(out io.Writer, width, max int) *ProgressBar {
	if max <= 0 {
		max = 1
	}
	return &ProgressBar{
		out:         out,
		width:       float64(width),
		maxProgress: float64(max),
		startTime:   time.Now(),
	}
}

// Increment increments the internal progress counter
func (p *ProgressBar) Increment() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.currentProgress < p.maxProgress {
		p.currentProgress++
	}
}

// Progress returns the fraction of completed increments
func (p *ProgressBar) Progress() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentProgress / p.maxProgress
}

// Display overwrites the current terminal line with the progress bar
func (p *ProgressBar) Display() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}

	p.bar.Reset()
	p.bar.WriteString("|")

	currentProg := p.currentProgress / p.maxProgress * p.width
	for i := 0.0; i < currentProg; i++ {
		p.bar.WriteString("█")
	}
	for i := currentProg; i < p.width; i++ {
		p.bar.WriteString(" ")
	}
	fmt.Fprintf(&p.bar, "| [%.2f%% | elapsed: %v]",
		p.currentProgress/p.maxProgress*100,
		time.Since(p.startTime).Truncate(time.Second))

	fmt.Fprintf(p.out, "\n\033[1A\033[K%v", p.bar.String())
}

// Close stops the progress bar from displaying and moves to the next
// line. Calling Close more than once has no effect.
func (p *ProgressBar) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	fmt.Fprintln(p.out)
}
