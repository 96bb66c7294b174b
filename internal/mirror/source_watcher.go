package mirror

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/rjeczalik/notify"
)

// SourceWatcher turns filesystem events under the source root into wake-ups
// for the Driver. Any number of events between two cycles collapse into one
// pending trigger.
type SourceWatcher struct {
	root    string
	events  chan notify.EventInfo
	trigger chan struct{}
}

func NewSourceWatcher(root string) *SourceWatcher {
	return &SourceWatcher{
		root: root,
		// notify drops events instead of blocking, leave some room
		events:  make(chan notify.EventInfo, 64),
		trigger: make(chan struct{}, 1),
	}
}

// Start watches the source tree recursively until ctx is cancelled or Stop
// is called.
func (w *SourceWatcher) Start(ctx context.Context) error {
	recursivePath := filepath.Join(w.root, "...")
	if err := notify.Watch(recursivePath, w.events, notify.All); err != nil {
		return fmt.Errorf("watch %s: %w", w.root, err)
	}
	slog.Info("source watcher start", "dir", w.root)

	go w.combine(ctx)
	return nil
}

func (w *SourceWatcher) Stop() {
	notify.Stop(w.events)
	slog.Info("source watcher stop")
}

// Trigger receives a value whenever the source tree changed since the last
// receive.
func (w *SourceWatcher) Trigger() <-chan struct{} {
	return w.trigger
}

func (w *SourceWatcher) combine(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-w.events:
			slog.Debug("source change", "event", ev.Event().String(), "path", ev.Path())
			select {
			case w.trigger <- struct{}{}:
			default:
			}
		}
	}
}
