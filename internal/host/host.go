// Package host provides the handle triggers use to log and to write line-protocol records.
package host

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"bmsengine/internal/logger"
	"bmsengine/internal/metrics"
)

// Host is passed to every trigger invocation.
type Host interface {
	Info(msg string)
	Warn(msg string)
	Error(msg string)
	Write(line string)
}

// LineWriter persists buffered lines.
type LineWriter interface {
	WriteLines(ctx context.Context, lines ...string) error
}

// Buffered logs through zerolog and buffers written lines until Flush.
type Buffered struct {
	log zerolog.Logger

	mu    sync.Mutex
	lines []string
}

// NewBuffered returns a host whose log lines carry the trigger name and envelope id.
func NewBuffered(trigger, envelopeID string) *Buffered {
	return &Buffered{
		log: logger.WithComponent("trigger").With().
			Str("trigger", trigger).
			Str("envelope_id", envelopeID).
			Logger(),
	}
}

func (b *Buffered) Info(msg string)  { b.log.Info().Msg(msg) }
func (b *Buffered) Warn(msg string)  { b.log.Warn().Msg(msg) }
func (b *Buffered) Error(msg string) { b.log.Error().Msg(msg) }

func (b *Buffered) Write(line string) {
	b.mu.Lock()
	b.lines = append(b.lines, line)
	b.mu.Unlock()
}

// Lines returns a copy of the buffered lines.
func (b *Buffered) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.lines...)
}

// Drain returns the buffered lines and clears the buffer.
func (b *Buffered) Drain() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	lines := b.lines
	b.lines = nil
	return lines
}

// Flush hands the buffered lines to w and clears the buffer. A nil writer discards them.
func (b *Buffered) Flush(ctx context.Context, w LineWriter) error {
	return WriteLines(ctx, w, b.Drain())
}

// WriteLines writes lines through w and counts them per measurement.
func WriteLines(ctx context.Context, w LineWriter, lines []string) error {
	if len(lines) == 0 {
		return nil
	}
	if w == nil {
		CountLines(lines, "discarded")
		return nil
	}
	if err := w.WriteLines(ctx, lines...); err != nil {
		CountLines(lines, "failed")
		return err
	}
	CountLines(lines, "success")
	return nil
}

// CountLines adds lines to the written-lines counter under status.
func CountLines(lines []string, status string) {
	for _, l := range lines {
		metrics.LinesWrittenTotal.WithLabelValues(Measurement(l), status).Inc()
	}
}

// Measurement returns the measurement name of a line, honouring escaped commas and spaces.
func Measurement(line string) string {
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '\\':
			i++
		case ',', ' ':
			return strings.ReplaceAll(strings.ReplaceAll(line[:i], `\,`, ","), `\ `, " ")
		}
	}
	return line
}
