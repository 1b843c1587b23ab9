// Package progress reports advancement of long running operations. Progress
// is a side channel: reporters never influence computed results.
package progress

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Callback receives progress updates. total is zero for informational
// messages that carry no count.
type Callback func(completed, total int, message string)

// Tracker counts completed work units and forwards updates to a Callback.
// A nil *Tracker is valid and reports nothing.
type Tracker struct {
	mu        sync.Mutex
	callback  Callback
	total     int
	completed int
}

// NewTracker creates a tracker for total units of work
func NewTracker(callback Callback, total int) *Tracker {
	return &Tracker{callback: callback, total: total}
}

// Step marks n more units as done
func (t *Tracker) Step(n int, message string) {
	if t == nil || t.callback == nil {
		return
	}
	t.mu.Lock()
	t.completed += n
	if t.completed > t.total {
		t.completed = t.total
	}
	completed := t.completed
	t.mu.Unlock()
	t.callback(completed, t.total, message)
}

// Info forwards a message without a count
func (t *Tracker) Info(message string) {
	if t == nil || t.callback == nil {
		return
	}
	t.callback(0, 0, message)
}

// Console returns a Callback drawing a progress bar on w, with elapsed and
// estimated remaining time
func Console(w io.Writer) Callback {
	start := time.Now()
	var mu sync.Mutex
	return func(completed, total int, message string) {
		mu.Lock()
		defer mu.Unlock()

		if total == 0 {
			if message != "" {
				fmt.Fprintln(w, message)
			}
			return
		}

		percentage := float64(completed) / float64(total) * 100
		width := 40
		numBars := int(percentage / 100 * float64(width))

		var bar strings.Builder
		bar.WriteString("[")
		for i := 0; i < width; i++ {
			switch {
			case i < numBars:
				bar.WriteString("█")
			case i == numBars:
				bar.WriteString("▓")
			default:
				bar.WriteString("░")
			}
		}
		bar.WriteString("]")

		statusInfo := ""
		if message != "" {
			statusInfo = " | " + message
		}

		if completed > 0 {
			elapsed := time.Since(start).Seconds()
			remaining := 0.0
			if completed < total {
				remaining = elapsed / float64(completed) * float64(total-completed)
			}
			fmt.Fprintf(w, "\r%s %.1f%% (%d/%d) [%s elapsed | %s remaining%s]",
				bar.String(), percentage, completed, total, formatSeconds(elapsed), formatSeconds(remaining), statusInfo)
		} else {
			fmt.Fprintf(w, "\r%s %.1f%% (%d/%d)%s", bar.String(), percentage, completed, total, statusInfo)
		}

		if completed >= total {
			fmt.Fprintln(w)
		}
	}
}

func formatSeconds(s float64) string {
	switch {
	case s < 60:
		return fmt.Sprintf("%.1fs", s)
	case s < 3600:
		return fmt.Sprintf("%.1fm", s/60)
	default:
		return fmt.Sprintf("%.1fh", s/3600)
	}
}
