package app

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"ortho-annotator/internal/document"
	"ortho-annotator/internal/store"
)

type saveRecorder struct {
	mu    sync.Mutex
	saved []*document.Case
	err   error
}

func (r *saveRecorder) save(_ context.Context, c *document.Case) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.saved = append(r.saved, c)
	return nil
}

func (r *saveRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.saved)
}

func TestAutosaverFlush(t *testing.T) {
	rec := &saveRecorder{}
	a := NewAutosaver(0, rec.save)

	if err := a.Flush(context.Background()); err != nil || rec.count() != 0 {
		t.Fatalf("flush with nothing pending: %v, %d saves", err, rec.count())
	}

	c := document.NewCase(time.Now())
	c.Info.PatientName = "Ana"
	a.Touch(c)
	if !a.Pending() {
		t.Fatal("touch should leave a pending snapshot")
	}

	// Later edits to the live case do not leak into the snapshot.
	c.Info.PatientName = "Bia"
	if err := a.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}
	if a.Pending() || rec.count() != 1 {
		t.Fatalf("pending = %v saves = %d", a.Pending(), rec.count())
	}
	if got := rec.saved[0].Info.PatientName; got != "Ana" {
		t.Errorf("saved patient = %q, want snapshot value", got)
	}
}

func TestAutosaverSaveErrorKeepsPending(t *testing.T) {
	rec := &saveRecorder{err: errors.New("disk full")}
	a := NewAutosaver(0, rec.save)
	a.Touch(document.NewCase(time.Now()))

	if err := a.Flush(context.Background()); err == nil {
		t.Fatal("expected save error")
	}
	if !a.Pending() {
		t.Error("failed save should keep the snapshot pending")
	}

	rec.mu.Lock()
	rec.err = nil
	rec.mu.Unlock()
	if err := a.Flush(context.Background()); err != nil || a.Pending() {
		t.Errorf("retry: %v pending = %v", err, a.Pending())
	}
}

func TestAutosaverBackground(t *testing.T) {
	rec := &saveRecorder{}
	a := NewAutosaver(20*time.Millisecond, rec.save)
	saved := make(chan error, 1)
	a.OnSaved(func(err error) {
		select {
		case saved <- err:
		default:
		}
	})
	a.Start()
	defer a.Stop(context.Background())

	a.Touch(document.NewCase(time.Now()))
	select {
	case err := <-saved:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("autosave did not run")
	}
	if rec.count() != 1 || a.Pending() {
		t.Errorf("saves = %d pending = %v", rec.count(), a.Pending())
	}
}

func TestAutosaverStopFlushes(t *testing.T) {
	rec := &saveRecorder{}
	a := NewAutosaver(time.Hour, rec.save)
	a.Start()
	a.Touch(document.NewCase(time.Now()))

	if err := a.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
	if rec.count() != 1 || a.Pending() {
		t.Errorf("saves = %d pending = %v", rec.count(), a.Pending())
	}
	// Stopping twice is harmless.
	if err := a.Stop(context.Background()); err != nil {
		t.Error(err)
	}
}

func TestStateAutosave(t *testing.T) {
	if NewState().Autosave(time.Second) != nil {
		t.Error("autosave without a store should be nil")
	}

	path := filepath.Join(t.TempDir(), "case.json")
	s := NewState(WithStickers(testStickers()), WithStore(store.NewFileStore(path)))
	a := s.Autosave(time.Hour)
	s.SetModified(false)
	if a.Pending() {
		t.Error("clearing the modified flag should not touch the autosaver")
	}

	s.Case.Info.PatientName = "Ana"
	s.SetModified(true)
	if !a.Pending() {
		t.Fatal("modification should touch the autosaver")
	}
	if err := a.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}

	c, err := store.NewFileStore(path).Load(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if c.Info.PatientName != "Ana" {
		t.Errorf("patient = %q", c.Info.PatientName)
	}
}
