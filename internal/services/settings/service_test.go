package settings

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/j-veylop/credits-dashboard-tui/internal/reset"
)

func newTestService(t *testing.T) (*Service, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "settings.json")
	svc, err := New(path)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	t.Cleanup(func() {
		if err := svc.Close(); err != nil {
			t.Logf("Close() failed: %v", err)
		}
	})

	return svc, path
}

func waitForEvent(t *testing.T, svc *Service, want EventType) Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-svc.Events():
			if ev.Type == want {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for event %d", want)
		}
	}
}

func TestNew_CreatesDefaults(t *testing.T) {
	svc, path := newTestService(t)

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("settings file was not created: %v", err)
	}

	got := svc.Get()
	if !got.ScheduledReset.Enabled {
		t.Error("scheduled reset should be enabled by default")
	}
	if len(got.ScheduledReset.Windows) != 2 {
		t.Errorf("expected two default windows, got %d", len(got.ScheduledReset.Windows))
	}
	if got.RefreshInterval() != time.Minute {
		t.Errorf("RefreshInterval() = %v, want 1m", got.RefreshInterval())
	}

	ev := waitForEvent(t, svc, EventSettingsLoaded)
	if len(ev.Settings.ScheduledReset.Windows) != 2 {
		t.Error("loaded event should carry settings")
	}
}

func TestNew_ReadsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	content := `{"scheduledReset":{"enabled":false,"windows":[{"hour":12,"minute":30,"spanMinutes":10,"enabled":true}]},"refreshIntervalSeconds":0}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	svc, err := New(path)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer svc.Close()

	got := svc.Get()
	if got.ScheduledReset.Enabled {
		t.Error("expected scheduled reset disabled")
	}
	if len(got.ScheduledReset.Windows) != 1 || got.ScheduledReset.Windows[0].ID() != "12:30" {
		t.Errorf("unexpected windows: %+v", got.ScheduledReset.Windows)
	}
	if got.RefreshIntervalSeconds != 60 {
		t.Errorf("RefreshIntervalSeconds = %d, want normalized 60", got.RefreshIntervalSeconds)
	}
}

func TestNew_WindowsFromFile(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []reset.Window
	}{
		{
			name:    "fields not taken from defaults",
			content: `{"scheduledReset":{"windows":[{"hour":20,"minute":0,"enabled":true}]}}`,
			want:    []reset.Window{{Hour: 20, Enabled: true}},
		},
		{
			name: "more windows than defaults",
			content: `{"scheduledReset":{"windows":[` +
				`{"hour":8,"minute":0,"enabled":true},` +
				`{"hour":14,"minute":0,"spanMinutes":3,"enabled":true},` +
				`{"hour":22,"minute":10,"requiredResets":1,"enabled":false}]}}`,
			want: []reset.Window{
				{Hour: 8, Enabled: true},
				{Hour: 14, SpanMinutes: 3, Enabled: true},
				{Hour: 22, Minute: 10, RequiredResets: 1},
			},
		},
		{
			name:    "empty list kept",
			content: `{"scheduledReset":{"windows":[]}}`,
			want:    []reset.Window{},
		},
		{
			name:    "absent key uses defaults",
			content: `{"autoRefresh":false}`,
			want:    reset.DefaultWindows(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "settings.json")
			if err := os.WriteFile(path, []byte(tt.content), 0o600); err != nil {
				t.Fatal(err)
			}
			svc, err := New(path)
			if err != nil {
				t.Fatalf("New() failed: %v", err)
			}
			defer svc.Close()

			got := svc.Get().ScheduledReset.Windows
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("windows = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestNew_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := New(path); err == nil {
		t.Error("New() should fail on malformed settings")
	}
}

func TestUpdate(t *testing.T) {
	svc, path := newTestService(t)
	waitForEvent(t, svc, EventSettingsLoaded)

	if err := svc.SetScheduledResetEnabled(false); err != nil {
		t.Fatalf("SetScheduledResetEnabled() failed: %v", err)
	}

	ev := waitForEvent(t, svc, EventSettingsChanged)
	if ev.Settings.ScheduledReset.Enabled {
		t.Error("event should carry disabled flag")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var onDisk Settings
	if err := json.Unmarshal(data, &onDisk); err != nil {
		t.Fatal(err)
	}
	if onDisk.ScheduledReset.Enabled {
		t.Error("file should have been updated")
	}
}

func TestToggleWindow(t *testing.T) {
	svc, _ := newTestService(t)

	if err := svc.ToggleWindow(1); err != nil {
		t.Fatalf("ToggleWindow() failed: %v", err)
	}
	if svc.Get().ScheduledReset.Windows[1].Enabled {
		t.Error("window 1 should be disabled")
	}

	if err := svc.ToggleWindow(5); err == nil {
		t.Error("ToggleWindow() should fail for out-of-range index")
	}
}

func TestSetAutoRefresh(t *testing.T) {
	svc, _ := newTestService(t)

	if err := svc.SetAutoRefresh(false); err != nil {
		t.Fatalf("SetAutoRefresh() failed: %v", err)
	}
	if svc.Get().AutoRefresh {
		t.Error("auto refresh should be disabled")
	}
}

func TestGet_ReturnsCopy(t *testing.T) {
	svc, _ := newTestService(t)

	got := svc.Get()
	got.ScheduledReset.Windows[0].Hour = 3

	if svc.Get().ScheduledReset.Windows[0].Hour == 3 {
		t.Error("modifying returned settings changed the service state")
	}
}

func TestWatcher_ReloadsExternalEdit(t *testing.T) {
	svc, path := newTestService(t)
	waitForEvent(t, svc, EventSettingsLoaded)

	edited := Default()
	edited.ScheduledReset.Windows[0].Hour = 17
	data, err := json.Marshal(edited)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	ev := waitForEvent(t, svc, EventSettingsChanged)
	if ev.Settings.ScheduledReset.Windows[0].Hour != 17 {
		t.Errorf("reloaded hour = %d, want 17", ev.Settings.ScheduledReset.Windows[0].Hour)
	}
}
