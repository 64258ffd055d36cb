package engine

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/panelsync/internal/infrastructure/config"
	"github.com/nerrad567/panelsync/internal/journal"
	"github.com/nerrad567/panelsync/internal/layout"
)

const testLayout = `[
  {"Text":{"line":0,"text":"Kitchen","color":65535}},
  {"Line":{"line":2,"ha_id":"sensor.outside_temp","text":"Outside Temp ","make_int":true,"color":2047}},
  {"Button":{"button":0,"ha_id":"light.kitchen_light","cmp":{"Str":"on"},"text_on":"Dark","text_off":"Light","action_on":{"Scene":"scene.kitchen_on"},"action_off":{"Scene":"scene.kitchen_off"},"color":65507}}
]`

// fakeSurface records the latest content per row and button.
type fakeSurface struct {
	mu   sync.Mutex
	rows map[int]string
	btns map[int]string
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{rows: make(map[int]string), btns: make(map[int]string)}
}

func (f *fakeSurface) DrawRow(row int, text string, _ layout.Color) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[row] = text
	return nil
}

func (f *fakeSurface) DrawButton(button int, text string, _ layout.Color) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.btns[button] = text
	return nil
}

func (f *fakeSurface) ClearRow(row int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[row] = ""
	return nil
}

func (f *fakeSurface) row(n int) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[n]
}

func (f *fakeSurface) btn(n int) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.btns[n]
}

// fakeRemote serves canned states and records service calls.
type fakeRemote struct {
	mu     sync.Mutex
	states map[string]string
	calls  []string
}

func (r *fakeRemote) EntityState(_ context.Context, id string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.states[id], nil
}

func (r *fakeRemote) CallService(_ context.Context, domain, service, entityID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, domain+"."+service+" "+entityID)
	return nil
}

func (r *fakeRemote) callList() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func testConfig(t *testing.T, layoutContent string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "base.json"), []byte(layoutContent), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	cfg.Device.ID = "panel-test"
	cfg.HomeAssistant.URL = "http://ha.local:8123"
	cfg.HomeAssistant.Token = "secret"
	cfg.HomeAssistant.PollInterval = 1
	cfg.Layout.Dir = dir
	cfg.Journal.Path = filepath.Join(dir, "journal.db")
	cfg.Display.Rows = 8
	cfg.Display.ClockRow = -1
	return cfg
}

func newTestEngine(t *testing.T, layoutContent string) (*Engine, *fakeSurface, *fakeRemote) {
	t.Helper()
	surface := newFakeSurface()
	remote := &fakeRemote{states: map[string]string{
		"sensor.outside_temp": "21.7",
		"light.kitchen_light": "on",
	}}
	e, err := New(Options{
		Config:  testConfig(t, layoutContent),
		Surface: surface,
		Fetcher: remote,
		Invoker: remote,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(e.Close)
	return e, surface, remote
}

func TestEngine_SynchronizesDisplay(t *testing.T) {
	e, surface, _ := newTestEngine(t, testLayout)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	waitFor(t, func() bool {
		return surface.row(0) == "Kitchen" &&
			surface.row(2) == "Outside Temp 22" &&
			surface.btn(0) == "Dark"
	})

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() = %v, want nil on shutdown", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not stop")
	}
}

func TestEngine_PressDispatchesMatchingAction(t *testing.T) {
	e, surface, remote := newTestEngine(t, testLayout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx)

	// Light is on: the comparison matches, so a press sends action_off.
	waitFor(t, func() bool { return surface.btn(0) == "Dark" })
	e.handlePress(0)
	waitFor(t, func() bool { return len(remote.callList()) == 1 })
	if calls := remote.callList(); calls[0] != "scene.turn_on scene.kitchen_off" {
		t.Errorf("calls = %v, want kitchen_off scene", calls)
	}
}

func TestEngine_PressOnUnknownValueSendsActionOn(t *testing.T) {
	e, _, remote := newTestEngine(t, testLayout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.dispatcher.Run(ctx)

	// No poll has happened: the value is unknown, which never matches.
	e.handlePress(0)
	waitFor(t, func() bool { return len(remote.callList()) == 1 })
	if calls := remote.callList(); calls[0] != "scene.turn_on scene.kitchen_on" {
		t.Errorf("calls = %v, want kitchen_on scene", calls)
	}
}

func TestEngine_PressOnUnboundButtonIsIgnored(t *testing.T) {
	e, _, remote := newTestEngine(t, testLayout)
	e.handlePress(1)
	e.handlePress(2)
	time.Sleep(20 * time.Millisecond)
	if calls := remote.callList(); len(calls) != 0 {
		t.Errorf("calls = %v, want none for unbound buttons", calls)
	}
}

func TestEngine_StreamEventUpdatesReferencedEntity(t *testing.T) {
	e, surface, _ := newTestEngine(t, testLayout)

	e.onStreamEvent("light.kitchen_light", "on")
	e.onStreamEvent("sensor.unrelated", "99")
	e.renderer.RenderFrame()

	if got := surface.btn(0); got != "Dark" {
		t.Errorf("button 0 = %q, want Dark after pushed update", got)
	}
	if e.cache.Get("sensor.unrelated").Known {
		t.Error("unreferenced entity must not enter the cache")
	}
}

func TestEngine_StreamRecoveryJournalsTransition(t *testing.T) {
	e, _, _ := newTestEngine(t, testLayout)
	if e.jrnl == nil {
		t.Fatal("test engine must have a journal")
	}

	threshold := config.Default().HomeAssistant.StalenessThreshold
	for i := 0; i < threshold; i++ {
		e.cache.Fail("sensor.outside_temp")
	}
	if !e.cache.Get("sensor.outside_temp").Stale {
		t.Fatal("entity must be stale before the pushed update")
	}

	e.onStreamEvent("sensor.outside_temp", "21.7")

	if e.cache.Get("sensor.outside_temp").Stale {
		t.Error("pushed update must clear staleness")
	}
	evs, err := e.jrnl.RecentEntityEvents(context.Background(), 10)
	if err != nil {
		t.Fatalf("RecentEntityEvents() error = %v", err)
	}
	if len(evs) == 0 || evs[0].Event != journal.EventRecovered || evs[0].EntityID != "sensor.outside_temp" {
		t.Fatalf("events = %+v, want a recovered event for sensor.outside_temp", evs)
	}
}

func TestEngine_DegradedOnBrokenLayout(t *testing.T) {
	e, surface, _ := newTestEngine(t, `[{"Text":{"line":0,"text":"Kitchen","color":65535}},{"Gauge":{}}]`)

	if !e.degraded {
		t.Fatal("engine must degrade on an undecodable layout")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx)

	waitFor(t, func() bool { return surface.row(7) == diagLayoutBroken })
}

func TestEngine_DegradedKeepsStaticLabels(t *testing.T) {
	// Valid JSON, invalid binding: the button index is out of range.
	broken := `[
	  {"Text":{"line":0,"text":"Kitchen","color":65535}},
	  {"Button":{"button":7,"ha_id":"light.a","cmp":{"Str":"on"},"text_on":"a","text_off":"b","action_on":{"Scene":"s"},"action_off":{"Scene":"s"},"color":0}}
	]`
	e, surface, _ := newTestEngine(t, broken)

	if !e.degraded {
		t.Fatal("engine must degrade on a failed validation")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx)

	waitFor(t, func() bool {
		return surface.row(0) == "Kitchen" && surface.row(7) == diagLayoutBroken
	})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
