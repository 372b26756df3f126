package app

import (
	"context"
	"sync"
	"time"

	"ortho-annotator/internal/document"
	"ortho-annotator/internal/logging"
)

// SaveFunc persists a case snapshot.
type SaveFunc func(ctx context.Context, c *document.Case) error

// Autosaver debounces case saves: a save runs once no change has been
// touched for the configured delay. The snapshot taken by Touch is what gets
// saved, so the live case is never read from the background goroutine.
type Autosaver struct {
	delay         time.Duration
	checkInterval time.Duration
	save          SaveFunc
	onSaved       func(err error)

	mu       sync.Mutex
	pending  *document.Case
	touched  time.Time
	stopCh   chan struct{}
	done     chan struct{}
	saveLock sync.Mutex
}

// NewAutosaver creates an autosaver that calls save delay after the last
// Touch. A non-positive delay disables the background loop; Flush still
// works.
func NewAutosaver(delay time.Duration, save SaveFunc) *Autosaver {
	check := delay / 5
	if check < 10*time.Millisecond {
		check = 10 * time.Millisecond
	}
	return &Autosaver{delay: delay, checkInterval: check, save: save}
}

// OnSaved sets the callback invoked after every background save attempt.
// The callback is called from a background goroutine.
func (a *Autosaver) OnSaved(callback func(err error)) {
	a.onSaved = callback
}

// Touch records that c changed. Call it on the goroutine that mutates c.
func (a *Autosaver) Touch(c *document.Case) {
	snap := c.Snapshot()
	a.mu.Lock()
	a.pending = snap
	a.touched = time.Now()
	a.mu.Unlock()
}

// Pending reports whether a touched snapshot has not been saved yet.
func (a *Autosaver) Pending() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pending != nil
}

// Start begins watching for changes in a background goroutine.
func (a *Autosaver) Start() {
	if a.delay <= 0 {
		return
	}
	a.stopCh = make(chan struct{})
	a.done = make(chan struct{})
	go a.watchLoop()
}

// Stop stops the watcher and saves any pending snapshot.
func (a *Autosaver) Stop(ctx context.Context) error {
	if a.stopCh != nil {
		close(a.stopCh)
		<-a.done
		a.stopCh = nil
	}
	return a.Flush(ctx)
}

func (a *Autosaver) watchLoop() {
	defer close(a.done)
	ticker := time.NewTicker(a.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.stopCh:
			return
		case <-ticker.C:
			if !a.due() {
				continue
			}
			err := a.Flush(context.Background())
			if err != nil {
				logging.For("autosave").Warn("autosave failed", "error", err)
			}
			if a.onSaved != nil {
				a.onSaved(err)
			}
		}
	}
}

// due reports whether the pending snapshot has been quiet for the delay.
func (a *Autosaver) due() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pending != nil && time.Since(a.touched) >= a.delay
}

// Flush saves the pending snapshot now, if any. A snapshot touched while the
// save runs stays pending.
func (a *Autosaver) Flush(ctx context.Context) error {
	a.saveLock.Lock()
	defer a.saveLock.Unlock()

	a.mu.Lock()
	snap := a.pending
	a.mu.Unlock()
	if snap == nil {
		return nil
	}

	if err := a.save(ctx, snap); err != nil {
		return err
	}

	a.mu.Lock()
	if a.pending == snap {
		a.pending = nil
	}
	a.mu.Unlock()
	logging.For("autosave").Debug("case saved", "documents", len(snap.Documents))
	return nil
}

// Autosave returns an autosaver wired to the state's store: every
// modification touches it with the open case. It returns nil without a store.
func (s *State) Autosave(delay time.Duration) *Autosaver {
	if s.store == nil {
		return nil
	}
	a := NewAutosaver(delay, s.store.Save)
	s.On(EventModified, func(data interface{}) {
		if modified, _ := data.(bool); modified {
			a.Touch(s.Case)
		}
	})
	return a
}
