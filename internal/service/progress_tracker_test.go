package service

import (
	"strings"
	"sync"
	"testing"
	"time"
)

func TestProgressTrackerConcurrentAdds(t *testing.T) {
	tracker := NewProgressTracker()
	tracker.Start("job-1", "stage-1", 1000)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				tracker.Add("job-1", "stage-1", 10)
			}
		}()
	}
	wg.Wait()

	p, ok := tracker.Get("job-1", "stage-1")
	if !ok {
		t.Fatal("progress missing")
	}
	if p.BytesReceived != 1000 || p.Percent != 100 {
		t.Fatalf("received %d (%d%%), want 1000 (100%%)", p.BytesReceived, p.Percent)
	}
}

func TestProgressTrackerIsolatesUsers(t *testing.T) {
	tracker := NewProgressTracker()
	tracker.Start("job-1", "stage-a", 100)
	tracker.Add("job-1", "stage-a", 40)

	if _, ok := tracker.Get("job-1", "stage-b"); ok {
		t.Fatal("progress visible under another stage")
	}
	if _, ok := tracker.Update("missing", "stage-a", func(p *UploadProgress) {}); ok {
		t.Fatal("update on unknown job reported success")
	}

	p, _ := tracker.Get("job-1", "stage-a")
	if p.Percent != 40 || p.State != UploadReceiving {
		t.Fatalf("progress = %+v", p)
	}
}

func TestProgressTrackerSweep(t *testing.T) {
	clock := newTestClock()
	tracker := NewProgressTracker()
	tracker.now = clock.Now

	tracker.Start("done", "s", 10)
	tracker.Finish("done", "s", UploadCompleted, "", "rec-1")
	tracker.Start("running", "s", 10)

	clock.Advance(time.Hour)
	if removed := tracker.Sweep(30 * time.Minute); removed != 1 {
		t.Fatalf("swept %d entries, want 1", removed)
	}
	if _, ok := tracker.Get("done", "s"); ok {
		t.Fatal("finished job not swept")
	}
	if _, ok := tracker.Get("running", "s"); !ok {
		t.Fatal("running job must survive a sweep")
	}
}

func TestProgressReaderCountsBytes(t *testing.T) {
	tracker := NewProgressTracker()
	tracker.Start("job", "stage", 11)
	reader := &progressReader{r: strings.NewReader("hello world"), tracker: tracker, jobID: "job", userID: "stage"}

	buf := make([]byte, 4)
	for {
		if _, err := reader.Read(buf); err != nil {
			break
		}
	}
	p, _ := tracker.Get("job", "stage")
	if p.BytesReceived != 11 || p.Percent != 100 {
		t.Fatalf("progress = %+v", p)
	}
}
