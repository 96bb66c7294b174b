// Package utils provides utility functions and types for the foldersync agent.
package utils

import (
	"bytes"
	"io"
	"sync"
	"time"
)

// DefaultTimestampLayout is the layout used to stamp event lines.
const DefaultTimestampLayout = time.RFC3339

// TimestampWriter implements io.Writer and prefixes every complete line
// written through it with "<timestamp>: ". Partial lines are buffered until
// their newline arrives or the writer is closed.
//
// Each stamped line reaches the target in a single Write call, so a target
// shared by several goroutines never sees interleaved halves of two lines.
type TimestampWriter struct {
	target io.Writer
	now    func() time.Time
	layout string

	mu  sync.Mutex
	buf bytes.Buffer
}

// NewTimestampWriter creates a TimestampWriter writing to target. now is used
// to read the current time; nil means time.Now.
func NewTimestampWriter(target io.Writer, now func() time.Time) *TimestampWriter {
	if now == nil {
		now = time.Now
	}
	return &TimestampWriter{
		target: target,
		now:    now,
		layout: DefaultTimestampLayout,
	}
}

// SetLayout changes the time layout used for the prefix.
func (w *TimestampWriter) SetLayout(layout string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.layout = layout
}

// writeFormattedLine writes one stamped line. line must include its trailing
// newline.
func (w *TimestampWriter) writeFormattedLine(line []byte) error {
	stamp := w.now().Format(w.layout)
	out := make([]byte, 0, len(stamp)+2+len(line))
	out = append(out, stamp...)
	out = append(out, ':', ' ')
	out = append(out, line...)
	_, err := w.target.Write(out)
	return err
}

// Write implements io.Writer. It buffers p and flushes every complete line.
func (w *TimestampWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		idx := bytes.IndexByte(w.buf.Bytes(), '\n')
		if idx < 0 {
			break
		}
		line := w.buf.Next(idx + 1)
		if err := w.writeFormattedLine(line); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

// Close flushes any buffered partial line, terminating it with a newline.
func (w *TimestampWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.buf.Len() == 0 {
		return nil
	}
	remaining := append(w.buf.Next(w.buf.Len()), '\n')
	return w.writeFormattedLine(remaining)
}
