package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(Config{Path: filepath.Join(t.TempDir(), "journal.db"), BusyTimeout: 1})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestJournal_RecordAndReadDispatches(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	records := []DispatchRecord{
		{
			ID: uuid.New(), Button: 0, ActionKind: "scene",
			Service: "scene.turn_on", Target: "scene.kitchen_on",
			Attempts: 1, OK: true,
			EnqueuedAt: base, FinishedAt: base.Add(200 * time.Millisecond),
		},
		{
			ID: uuid.New(), Button: 2, ActionKind: "service",
			Service: "light.turn_off", Target: "light.kitchen_light",
			Attempts: 2, OK: false, Error: "remote unavailable",
			EnqueuedAt: base.Add(time.Minute), FinishedAt: base.Add(time.Minute + 7*time.Second),
		},
	}
	for _, rec := range records {
		if err := j.RecordDispatch(ctx, rec); err != nil {
			t.Fatalf("RecordDispatch() error = %v", err)
		}
	}

	got, err := j.RecentDispatches(ctx, 10)
	if err != nil {
		t.Fatalf("RecentDispatches() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("RecentDispatches() returned %d records, want 2", len(got))
	}
	// Newest first.
	if got[0].ID != records[1].ID || got[1].ID != records[0].ID {
		t.Errorf("order = [%s %s], want newest first", got[0].ID, got[1].ID)
	}
	if got[0].Error != "remote unavailable" || got[0].Attempts != 2 || got[0].OK {
		t.Errorf("failed record = %+v", got[0])
	}
	if !got[1].OK || got[1].Target != "scene.kitchen_on" {
		t.Errorf("ok record = %+v", got[1])
	}
}

func TestJournal_RecentDispatchesLimit(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	base := time.Now()

	for i := 0; i < 5; i++ {
		err := j.RecordDispatch(ctx, DispatchRecord{
			ID: uuid.New(), Button: i % 3, ActionKind: "scene",
			Service: "scene.turn_on", Target: "scene.x",
			Attempts: 1, OK: true,
			EnqueuedAt: base.Add(time.Duration(i) * time.Second),
			FinishedAt: base.Add(time.Duration(i)*time.Second + time.Millisecond),
		})
		if err != nil {
			t.Fatalf("RecordDispatch() error = %v", err)
		}
	}

	got, err := j.RecentDispatches(ctx, 3)
	if err != nil {
		t.Fatalf("RecentDispatches() error = %v", err)
	}
	if len(got) != 3 {
		t.Errorf("RecentDispatches(3) returned %d records", len(got))
	}
}

func TestJournal_RecordEntityEvent(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	if err := j.RecordEntityEvent(ctx, EntityEvent{
		EntityID: "sensor.outside_temp",
		Event:    EventStale,
	}); err != nil {
		t.Fatalf("RecordEntityEvent() error = %v", err)
	}
	if err := j.RecordEntityEvent(ctx, EntityEvent{
		EntityID: "sensor.outside_temp",
		Event:    EventRecovered,
		At:       time.Now(),
	}); err != nil {
		t.Fatalf("RecordEntityEvent() error = %v", err)
	}

	got, err := j.RecentEntityEvents(ctx, 10)
	if err != nil {
		t.Fatalf("RecentEntityEvents() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("RecentEntityEvents() returned %d events, want 2", len(got))
	}
	if got[0].Event != EventRecovered || got[1].Event != EventStale {
		t.Errorf("events = [%s %s], want newest first", got[0].Event, got[1].Event)
	}
	for _, ev := range got {
		if ev.EntityID != "sensor.outside_temp" {
			t.Errorf("entity = %q, want sensor.outside_temp", ev.EntityID)
		}
	}
}

func TestOpen_RequiresPath(t *testing.T) {
	if _, err := Open(Config{}); err == nil {
		t.Error("Open() expected error for empty path")
	}
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(Config{Path: path})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := j.RecordDispatch(context.Background(), DispatchRecord{
		ID: uuid.New(), ActionKind: "scene", Service: "scene.turn_on", Target: "scene.x",
		Attempts: 1, OK: true, EnqueuedAt: time.Now(), FinishedAt: time.Now(),
	}); err != nil {
		t.Fatalf("RecordDispatch() error = %v", err)
	}
	j.Close()

	// Schema application is idempotent and data survives reopen.
	j, err = Open(Config{Path: path})
	if err != nil {
		t.Fatalf("reopening: %v", err)
	}
	defer j.Close()
	got, err := j.RecentDispatches(context.Background(), 10)
	if err != nil {
		t.Fatalf("RecentDispatches() error = %v", err)
	}
	if len(got) != 1 {
		t.Errorf("records after reopen = %d, want 1", len(got))
	}
}
