package utils

import (
	"errors"
	"fmt"
	"io"
)

// TeeWriter implements io.Writer and writes every buffer to all of its
// targets. Unlike io.MultiWriter a failing target does not stop the ones
// after it; the errors are joined and returned once all targets were tried.
type TeeWriter struct {
	targets []io.Writer
}

func NewTeeWriter(targets ...io.Writer) *TeeWriter {
	return &TeeWriter{targets: targets}
}

func (t *TeeWriter) Write(p []byte) (int, error) {
	var errs []error
	for i, target := range t.targets {
		n, err := target.Write(p)
		if err == nil && n != len(p) {
			err = io.ErrShortWrite
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("target %d: %w", i, err))
		}
	}
	return len(p), errors.Join(errs...)
}
