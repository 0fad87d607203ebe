package scanner

import (
	"sync"
	"time"
)

const (
	StateIdle      = "idle"
	StateScanning  = "scanning"
	StateCompleted = "completed"
	StateFailed    = "failed"
	StateCancelled = "cancelled"
)

const (
	ModeFull  = "full"
	ModeQuick = "quick"
)

const subscriberBuffer = 16

// Progress is a point-in-time snapshot of the active (or last) scan.
type Progress struct {
	ScanID        string `json:"scanId,omitempty"`
	Mode          string `json:"mode,omitempty"`
	State         string `json:"state"`
	CurrentFile   string `json:"currentFile,omitempty"`
	FilesScanned  int    `json:"filesScanned"`
	TotalFiles    int    `json:"totalFiles"`
	TracksIndexed int    `json:"tracksIndexed"`
	FilesSkipped  int    `json:"filesSkipped"`
	IsComplete    bool   `json:"isComplete"`
	Error         string `json:"error,omitempty"`
	At            string `json:"at"`
}

// Tracker fans scan progress out to subscribers. Progress is a
// latest-state signal, so a slow subscriber loses the oldest buffered
// updates instead of stalling the scan.
type Tracker struct {
	mu          sync.Mutex
	latest      Progress
	subscribers map[int]chan Progress
	nextID      int
}

func NewTracker() *Tracker {
	return &Tracker{
		latest:      Progress{State: StateIdle, At: time.Now().UTC().Format(time.RFC3339)},
		subscribers: make(map[int]chan Progress),
	}
}

func (t *Tracker) Latest() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.latest
}

// Subscribe registers a progress listener primed with the latest
// snapshot. The returned cancel func closes the channel; calling it
// again is a no-op.
func (t *Tracker) Subscribe() (<-chan Progress, func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.nextID
	t.nextID++

	updates := make(chan Progress, subscriberBuffer)
	updates <- t.latest
	t.subscribers[id] = updates

	cancel := func() {
		t.mu.Lock()
		defer t.mu.Unlock()

		if subscriber, ok := t.subscribers[id]; ok {
			delete(t.subscribers, id)
			close(subscriber)
		}
	}

	return updates, cancel
}

func (t *Tracker) Publish(progress Progress) {
	progress.At = time.Now().UTC().Format(time.RFC3339)

	t.mu.Lock()
	defer t.mu.Unlock()

	t.latest = progress
	for _, subscriber := range t.subscribers {
		sendDropOldest(subscriber, progress)
	}
}

func sendDropOldest(subscriber chan Progress, progress Progress) {
	for {
		select {
		case subscriber <- progress:
			return
		default:
		}

		select {
		case <-subscriber:
		default:
		}
	}
}
