package mirror

import (
	"errors"
	"fmt"
	"time"
)

// Op identifies the filesystem operation behind an EntryError.
type Op string

const (
	OpList      Op = "list"
	OpStat      Op = "stat"
	OpMkdir     Op = "mkdir"
	OpCreate    Op = "create"
	OpCopy      Op = "copy"
	OpRemove    Op = "remove"
	OpRemoveAll Op = "remove_all"
)

const (
	PassAdditions = "additions"
	PassDeletions = "deletions"
)

var (
	// ErrKindMismatch is reported when the replica holds a file where the
	// source holds a directory, the other way around, or a symlink or special
	// file where the source holds either. The deletions pass
	// clears the stale entry so a later attempt succeeds.
	ErrKindMismatch = errors.New("replica entry kind differs from source")
)

// EntryError is a failure scoped to a single entry of one pass.
type EntryError struct {
	Op   Op
	Path string
	Err  error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *EntryError) Unwrap() error {
	return e.Err
}

// PassReport collects the outcome of every entry visited by one pass. It is
// owned by the goroutine running the pass.
type PassReport struct {
	Pass        string
	Events      []Event
	Deferred    []string
	Failures    []*EntryError
	BytesCopied int64
}

func newPassReport(pass string) *PassReport {
	return &PassReport{Pass: pass}
}

func (r *PassReport) fail(op Op, relPath string, err error) {
	r.Failures = append(r.Failures, &EntryError{Op: op, Path: displayPath(relPath), Err: err})
}

func (r *PassReport) deferPath(relPath string) {
	r.Deferred = append(r.Deferred, relPath)
}

// CycleReport is the result of one Engine.RunCycle.
type CycleReport struct {
	ID        uint64
	Started   time.Time
	Took      time.Duration
	Additions *PassReport
	Deletions *PassReport
}

func (c *CycleReport) passes() []*PassReport {
	return []*PassReport{c.Additions, c.Deletions}
}

// Events returns every event of the cycle, additions first.
func (c *CycleReport) Events() []Event {
	var events []Event
	for _, p := range c.passes() {
		events = append(events, p.Events...)
	}
	return events
}

// Mutations is the number of events the cycle emitted.
func (c *CycleReport) Mutations() int {
	return len(c.Additions.Events) + len(c.Deletions.Events)
}

// Count returns how many events with the given verb the cycle emitted.
func (c *CycleReport) Count(verb Verb) int {
	n := 0
	for _, ev := range c.Events() {
		if ev.Verb == verb {
			n++
		}
	}
	return n
}

// Deferred lists the files skipped because they were in use.
func (c *CycleReport) Deferred() []string {
	return append(append([]string(nil), c.Additions.Deferred...), c.Deletions.Deferred...)
}

// Failures lists every per-entry failure of the cycle.
func (c *CycleReport) Failures() []*EntryError {
	var failures []*EntryError
	for _, p := range c.passes() {
		failures = append(failures, p.Failures...)
	}
	return failures
}

// BytesCopied is the amount of file content written to the replica.
func (c *CycleReport) BytesCopied() int64 {
	return c.Additions.BytesCopied + c.Deletions.BytesCopied
}

// Err joins all per-entry failures, or returns nil when there were none.
func (c *CycleReport) Err() error {
	failures := c.Failures()
	if len(failures) == 0 {
		return nil
	}
	errs := make([]error, len(failures))
	for i, f := range failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

func displayPath(relPath string) string {
	if relPath == "" {
		return "."
	}
	return relPath
}
