package scheduler

import (
	"sync"
	"testing"
	"time"
)

func TestAdd(t *testing.T) {
	var mu sync.Mutex
	calls := 0

	sched := New(nil)
	err := sched.Add("confirm-sweep", "@every 1s", func() {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if sched.JobCount() != 1 {
		t.Errorf("JobCount = %d", sched.JobCount())
	}

	// Start cron and wait for it to fire.
	sched.cron.Start()
	time.Sleep(1500 * time.Millisecond)
	sched.cron.Stop()

	mu.Lock()
	defer mu.Unlock()
	if calls == 0 {
		t.Error("expected the job to fire at least once")
	}
}

func TestAddInvalidSchedule(t *testing.T) {
	sched := New(nil)
	if err := sched.Add("bad", "invalid-cron", func() {}); err == nil {
		t.Error("expected error for invalid schedule")
	}
}

func TestAddReplacesSameName(t *testing.T) {
	sched := New(nil)
	sched.Add("retention", "@every 1h", func() {})
	sched.Add("retention", "@every 2h", func() {})

	if sched.JobCount() != 1 {
		t.Errorf("JobCount = %d, want 1 after re-registration", sched.JobCount())
	}
}

func TestRemove(t *testing.T) {
	sched := New(nil)
	sched.Add("confirm-sweep", "@every 1h", func() {})
	sched.Add("retention", "@every 2h", func() {})

	if sched.JobCount() != 2 {
		t.Fatalf("JobCount = %d before remove", sched.JobCount())
	}

	sched.Remove("confirm-sweep")
	if sched.JobCount() != 1 {
		t.Errorf("JobCount = %d after remove", sched.JobCount())
	}
	// Unknown names are a no-op.
	sched.Remove("nope")
	if sched.JobCount() != 1 {
		t.Errorf("JobCount = %d after removing unknown job", sched.JobCount())
	}
}
