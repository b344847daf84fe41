package host

import (
	"strings"
	"sync"
)

// Recording keeps everything a trigger logged and wrote. It is meant for tests.
type Recording struct {
	mu     sync.Mutex
	infos  []string
	warns  []string
	errors []string
	lines  []string
}

func NewRecording() *Recording { return &Recording{} }

func (r *Recording) Info(msg string)  { r.append(&r.infos, msg) }
func (r *Recording) Warn(msg string)  { r.append(&r.warns, msg) }
func (r *Recording) Error(msg string) { r.append(&r.errors, msg) }
func (r *Recording) Write(line string) {
	r.append(&r.lines, line)
}

func (r *Recording) append(dst *[]string, s string) {
	r.mu.Lock()
	*dst = append(*dst, s)
	r.mu.Unlock()
}

func (r *Recording) snapshot(src []string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), src...)
}

func (r *Recording) Infos() []string  { return r.snapshot(r.infos) }
func (r *Recording) Warns() []string  { return r.snapshot(r.warns) }
func (r *Recording) Errors() []string { return r.snapshot(r.errors) }
func (r *Recording) Lines() []string  { return r.snapshot(r.lines) }

// LinesFor returns the written lines of one measurement.
func (r *Recording) LinesFor(measurement string) []string {
	var out []string
	for _, l := range r.Lines() {
		if Measurement(l) == measurement {
			out = append(out, l)
		}
	}
	return out
}

// Logged reports whether any log message at any level contains substr.
func (r *Recording) Logged(substr string) bool {
	for _, group := range [][]string{r.Infos(), r.Warns(), r.Errors()} {
		for _, m := range group {
			if strings.Contains(m, substr) {
				return true
			}
		}
	}
	return false
}
