package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"

	"photo-ingest/internal/logging"
)

const (
	defaultBarWidth = 40
	minBarWidth     = 10
)

// progressBar renders batch progress. On a terminal it redraws a single
// line; otherwise each update becomes a log line.
type progressBar struct {
	mu       sync.Mutex
	w        io.Writer
	total    int
	done     int
	width    int
	terminal bool
}

func newProgressBar(w io.Writer, total int) *progressBar {
	p := &progressBar{w: w, total: total, width: defaultBarWidth}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.terminal = true
		if cols, _, err := term.GetSize(int(f.Fd())); err == nil {
			// Leave room for the counters.
			p.width = max(minBarWidth, min(defaultBarWidth, cols-20))
		}
	}
	return p
}

// OnProgress implements upload.ProgressObserver.
func (p *progressBar) OnProgress(done, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done, p.total = done, total

	if !p.terminal {
		logging.Info("Processed %d/%d photos", done, total)
		return
	}
	fmt.Fprintf(p.w, "\r%s", renderBar(done, total, p.width))
}

// Finish ends the redrawn line.
func (p *progressBar) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.terminal && p.done > 0 {
		fmt.Fprintln(p.w)
	}
}

func renderBar(done, total, width int) string {
	filled := 0
	if total > 0 {
		filled = done * width / total
	}
	filled = min(max(filled, 0), width)
	return fmt.Sprintf("[%s%s] %d/%d", strings.Repeat("#", filled), strings.Repeat(".", width-filled), done, total)
}
