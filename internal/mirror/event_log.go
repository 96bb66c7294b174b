package mirror

import (
	"io"

	"github.com/jonboulle/clockwork"
	"github.com/openmined/foldersync/internal/utils"
)

// Verb names the kind of mutation an Event records.
type Verb string

const (
	VerbCreated      Verb = "Created"
	VerbCopied       Verb = "Copied"
	VerbCreateFolder Verb = "Create Folder"
	VerbDeleted      Verb = "Deleted"
	VerbDeleteFolder Verb = "Delete Folder"
)

// Event is a single mutation of the replica tree.
type Event struct {
	Verb    Verb
	RelPath string
}

// String formats the event as it appears in the event log, without the
// timestamp.
func (e Event) String() string {
	return string(e.Verb) + ": " + e.RelPath
}

// EventLogger receives one pre-formatted line per mutation.
type EventLogger interface {
	LogEvent(msg string) error
}

// EventLog is the EventLogger used by the agent. Every line passes through a
// single TimestampWriter, so the timestamp prefix is added in exactly one
// place no matter how many outputs w fans out to.
type EventLog struct {
	w *utils.TimestampWriter
}

// NewEventLog returns an EventLog writing stamped lines to w. A nil clock
// uses the real clock.
func NewEventLog(w io.Writer, clock clockwork.Clock) *EventLog {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &EventLog{w: utils.NewTimestampWriter(w, clock.Now)}
}

// SetTimeLayout changes the layout of the timestamp prefix.
func (l *EventLog) SetTimeLayout(layout string) {
	l.w.SetLayout(layout)
}

// LogEvent writes msg as one stamped line. Safe for concurrent use.
func (l *EventLog) LogEvent(msg string) error {
	_, err := io.WriteString(l.w, msg+"\n")
	return err
}

// Close flushes anything still buffered.
func (l *EventLog) Close() error {
	return l.w.Close()
}

type discardEvents struct{}

func (discardEvents) LogEvent(string) error { return nil }
