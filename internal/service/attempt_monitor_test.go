package service

import (
	"context"
	"encoding/json"
	"hire_assessment_backend/internal/model"
	"testing"
	"time"
)

func newTestWatcher(m *AttemptMonitor, companyID uint, admin bool, filter string) *Watcher {
	w := &Watcher{Monitor: m, Send: make(chan []byte, 4), CompanyID: companyID, Admin: admin, attemptID: filter}
	m.watchers[w] = struct{}{}
	return w
}

func TestWatcherWants(t *testing.T) {
	ev := AttemptEvent{Type: "submitted", CompanyID: 1, AttemptID: "att-1"}
	cases := []struct {
		name    string
		watcher *Watcher
		want    bool
	}{
		{"same company", &Watcher{CompanyID: 1}, true},
		{"other company", &Watcher{CompanyID: 2}, false},
		{"admin sees all", &Watcher{CompanyID: 2, Admin: true}, true},
		{"matching filter", &Watcher{CompanyID: 1, attemptID: "att-1"}, true},
		{"other attempt", &Watcher{CompanyID: 1, attemptID: "att-2"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.watcher.wants(ev); got != tc.want {
				t.Fatalf("wants = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestMonitorDispatchFilters(t *testing.T) {
	m := NewAttemptMonitor(nil)
	mine := newTestWatcher(m, 1, false, "")
	other := newTestWatcher(m, 2, false, "")
	pinned := newTestWatcher(m, 1, false, "att-9")

	m.Publish(AttemptEvent{Type: "violation", CompanyID: 1, AttemptID: "att-1", Status: model.AttemptInProgress, Violations: 1})

	select {
	case raw := <-mine.Send:
		var msg struct {
			Type string       `json:"type"`
			Data AttemptEvent `json:"data"`
		}
		if err := json.Unmarshal(raw, &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if msg.Type != "ATTEMPT_VIOLATION" || msg.Data.AttemptID != "att-1" || msg.Data.Violations != 1 {
			t.Fatalf("message = %+v", msg)
		}
	default:
		t.Fatal("watcher of the same company got nothing")
	}
	if len(other.Send) != 0 || len(pinned.Send) != 0 {
		t.Fatalf("event leaked: other=%d pinned=%d", len(other.Send), len(pinned.Send))
	}
	if m.Watching() != 3 {
		t.Fatalf("watching = %d", m.Watching())
	}
}

func TestMonitorDropsWhenBufferFull(t *testing.T) {
	m := NewAttemptMonitor(nil)
	w := newTestWatcher(m, 1, false, "")
	for i := 0; i < cap(w.Send)+3; i++ {
		m.Publish(AttemptEvent{Type: "status", CompanyID: 1, AttemptID: "att-1"})
	}
	if len(w.Send) != cap(w.Send) {
		t.Fatalf("buffered %d messages, want %d", len(w.Send), cap(w.Send))
	}
}

func TestMonitorRunStopsOnCancel(t *testing.T) {
	m := NewAttemptMonitor(nil)
	w := newTestWatcher(m, 1, false, "")
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if _, ok := <-w.Send; ok {
		t.Fatal("watcher channel not closed")
	}
	if m.Watching() != 0 {
		t.Fatalf("watching = %d after stop", m.Watching())
	}

	var nilMonitor *AttemptMonitor
	nilMonitor.Publish(AttemptEvent{})
}
