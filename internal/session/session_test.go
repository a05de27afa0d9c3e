package session

import (
	"testing"
	"time"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	sqlite, err := NewSQLiteStore(t.TempDir() + "/runs.db")
	if err != nil {
		t.Fatalf("failed to open sqlite store: %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })
	return map[string]Store{
		"file":   NewFileStore(t.TempDir()),
		"sqlite": sqlite,
	}
}

func TestManager_RunLifecycle(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			mgr := NewManager(store)

			run, err := mgr.Create("set an alarm for 7am", "emulator-5554")
			if err != nil {
				t.Fatalf("create failed: %v", err)
			}
			if run.ID == "" || run.Status != StatusRunning {
				t.Fatalf("unexpected new run: %+v", run)
			}

			confirmed := true
			steps := []StepRecord{
				{
					Index:       1,
					RawReply:    `do(action="Launch", app="Clock")`,
					Parsed:      true,
					Action:      "Launch",
					CommandJSON: `{"kind":"Launch","app":"Clock"}`,
					ExecutedOK:  true,
					Attempts:    1,
					Duration:    120 * time.Millisecond,
					Timestamp:   time.Now(),
				},
				{
					Index:     2,
					RawReply:  "gibberish",
					Parsed:    false,
					Confirmed: &confirmed,
					Timestamp: time.Now(),
				},
			}
			for _, step := range steps {
				if err := mgr.AddStep(run.ID, step); err != nil {
					t.Fatalf("add step failed: %v", err)
				}
			}

			if err := mgr.Finish(run.ID, StatusCompleted, "alarm set", ""); err != nil {
				t.Fatalf("finish failed: %v", err)
			}

			loaded, err := mgr.Get(run.ID)
			if err != nil {
				t.Fatalf("get failed: %v", err)
			}
			if loaded.Status != StatusCompleted || loaded.Summary != "alarm set" {
				t.Errorf("unexpected terminal state: %+v", loaded)
			}
			if len(loaded.Steps) != 2 {
				t.Fatalf("expected 2 steps, got %d", len(loaded.Steps))
			}
			if loaded.Steps[0].Action != "Launch" || !loaded.Steps[0].ExecutedOK {
				t.Errorf("unexpected step 1: %+v", loaded.Steps[0])
			}
			if loaded.Steps[1].Parsed {
				t.Errorf("expected step 2 unparsed: %+v", loaded.Steps[1])
			}
			if loaded.Steps[1].Confirmed == nil || !*loaded.Steps[1].Confirmed {
				t.Errorf("confirmation flag lost: %+v", loaded.Steps[1])
			}
			if loaded.Steps[0].Duration != 120*time.Millisecond {
				t.Errorf("duration lost: %v", loaded.Steps[0].Duration)
			}
		})
	}
}

func TestManager_List(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			mgr := NewManager(store)
			first, _ := mgr.Create("goal one", "")
			second, _ := mgr.Create("goal two", "")

			ids, err := mgr.List()
			if err != nil {
				t.Fatalf("list failed: %v", err)
			}
			if len(ids) != 2 {
				t.Fatalf("expected 2 runs, got %d", len(ids))
			}
			seen := map[string]bool{}
			for _, id := range ids {
				seen[id] = true
			}
			if !seen[first.ID] || !seen[second.ID] {
				t.Errorf("missing run ids in %v", ids)
			}
		})
	}
}

func TestFileStore_LoadMissing(t *testing.T) {
	store := NewFileStore(t.TempDir())
	if _, err := store.Load("nope"); err == nil {
		t.Error("expected error for missing run")
	}
}
