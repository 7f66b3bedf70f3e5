package service

import (
	"fmt"
	"time"
)

// logRing keeps the most recent log lines of a service. Appending beyond
// the capacity drops the oldest line. Callers hold the service mutex.
type logRing struct {
	entries []string
	max     int
}

func newLogRing(max int) *logRing {
	if max < 1 {
		max = 1
	}
	return &logRing{max: max}
}

func (r *logRing) append(line string) {
	stamped := fmt.Sprintf("%s %s", time.Now().Format("2006-01-02 15:04:05"), line)
	r.entries = append(r.entries, stamped)
	if len(r.entries) > r.max {
		r.entries = r.entries[len(r.entries)-r.max:]
	}
}

// lines returns a copy of the retained lines, oldest first.
func (r *logRing) lines() []string {
	out := make([]string, len(r.entries))
	copy(out, r.entries)
	return out
}

// lastN returns a copy of the newest n retained lines, oldest first.
func (r *logRing) lastN(n int) []string {
	if n >= len(r.entries) {
		return r.lines()
	}
	out := make([]string, n)
	copy(out, r.entries[len(r.entries)-n:])
	return out
}
