// Package status persists a machine-readable snapshot of the bot's state
// so dashboards and operators can observe a headless process. The snapshot
// is a single JSON file rewritten atomically after every cycle.
package status

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/veiloq/lending-bot/pkg/logging"
)

// maxRecentErrors bounds the error history kept in the snapshot.
const maxRecentErrors = 20

// ErrorEntry is one recorded failure.
type ErrorEntry struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

// Snapshot is the JSON document written to the status file.
type Snapshot struct {
	Label        string        `json:"label,omitempty"`
	Exchange     string        `json:"exchange"`
	Summary      string        `json:"summary"`
	CycleTime    time.Duration `json:"cycle_time_ns"`
	LastCycle    time.Time     `json:"last_cycle"`
	StartedAt    time.Time     `json:"started_at"`
	Cycles       int64         `json:"cycles"`
	RecentErrors []ErrorEntry  `json:"recent_errors"`
}

// Notifier pushes a message to an external channel (chat webhook, mail).
// A nil Notifier silently drops notifications.
type Notifier func(message string)

// Writer accumulates cycle results and persists them to a JSON file. It
// satisfies the control loop's StatusReporter interface. Safe for
// concurrent use.
type Writer struct {
	path     string
	notifier Notifier
	logger   logging.Logger

	mu   sync.Mutex
	snap Snapshot
}

// NewWriter creates a status writer persisting to path. An empty path
// disables persistence but keeps the in-memory snapshot.
func NewWriter(path, label, exchange string, notifier Notifier, logger logging.Logger) *Writer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Writer{
		path:     path,
		notifier: notifier,
		logger:   logger,
		snap: Snapshot{
			Label:     label,
			Exchange:  exchange,
			StartedAt: time.Now().UTC(),
		},
	}
}

// LogError records a failure in the snapshot's bounded error history.
func (w *Writer) LogError(err error) {
	if err == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	w.snap.RecentErrors = append(w.snap.RecentErrors, ErrorEntry{
		Time:    time.Now().UTC(),
		Message: err.Error(),
	})
	if n := len(w.snap.RecentErrors); n > maxRecentErrors {
		w.snap.RecentErrors = w.snap.RecentErrors[n-maxRecentErrors:]
	}
}

// RefreshStatus records the latest cycle summary and duration.
func (w *Writer) RefreshStatus(summary string, cycleTime time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.snap.Summary = summary
	w.snap.CycleTime = cycleTime
	w.snap.LastCycle = time.Now().UTC()
	w.snap.Cycles++
}

// PersistStatus writes the snapshot to the status file. The file is
// replaced via rename so readers never observe a partial document.
func (w *Writer) PersistStatus() error {
	if w.path == "" {
		return nil
	}

	w.mu.Lock()
	data, err := json.MarshalIndent(w.snap, "", "  ")
	w.mu.Unlock()
	if err != nil {
		return fmt.Errorf("encoding status: %w", err)
	}

	dir := filepath.Dir(w.path)
	tmp, err := os.CreateTemp(dir, ".status-*.json")
	if err != nil {
		return fmt.Errorf("creating status temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing status: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing status temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), w.path); err != nil {
		return fmt.Errorf("replacing status file: %w", err)
	}
	return nil
}

// Notify forwards a message to the configured notifier, if any.
func (w *Writer) Notify(message string) {
	if w.notifier == nil {
		return
	}
	w.notifier(message)
	w.logger.Debug("notification sent", logging.String("message", message))
}

// Current returns a copy of the in-memory snapshot.
func (w *Writer) Current() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	snap := w.snap
	snap.RecentErrors = append([]ErrorEntry(nil), w.snap.RecentErrors...)
	return snap
}
