package notify

import (
	"log"
	"sync"
	"time"
)

type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Toast is one transient user-visible message.
type Toast struct {
	Severity    Severity  `json:"severity"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	At          time.Time `json:"at"`
}

// Toaster buffers toasts until the UI polls for them. The buffer is bounded;
// when full, the oldest message is dropped.
type Toaster struct {
	mu    sync.Mutex
	items []Toast
	limit int
}

func NewToaster(limit int) *Toaster {
	if limit <= 0 {
		limit = 50
	}
	return &Toaster{limit: limit}
}

// Push records a toast and mirrors it to the log so operators see what the
// UI saw.
func (t *Toaster) Push(severity Severity, title, description string) {
	log.Printf("toast: [%s] %s: %s", severity, title, description)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = append(t.items, Toast{
		Severity:    severity,
		Title:       title,
		Description: description,
		At:          time.Now(),
	})
	if len(t.items) > t.limit {
		t.items = t.items[len(t.items)-t.limit:]
	}
}

// Drain returns and clears all buffered toasts.
func (t *Toaster) Drain() []Toast {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.items
	t.items = nil
	if out == nil {
		out = []Toast{}
	}
	return out
}
