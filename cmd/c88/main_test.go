package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/j-veylop/credits-dashboard-tui/internal/reset"
	"github.com/j-veylop/credits-dashboard-tui/internal/services/settings"
)

func TestPrintWindows(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.Local)

	st := settings.Default()
	st.ScheduledReset.Windows = append(st.ScheduledReset.Windows,
		reset.Window{Hour: 12, SpanMinutes: 5},
		reset.Window{Hour: 30, SpanMinutes: 5, Enabled: true},
	)

	tests := []struct {
		name      string
		now       time.Time
		processed bool
		want      []string
		absent    []string
	}{
		{
			name: "before first window",
			now:  day.Add(10 * time.Hour),
			want: []string{"18:55", "23:55", "next", "disabled", "invalid", "Next window: 18:55"},
		},
		{
			name:   "inside late window",
			now:    day.Add(23*time.Hour + 57*time.Minute),
			want:   []string{"open", "Window 23:55 is open until"},
			absent: []string{"processed"},
		},
		{
			name:      "inside processed window",
			now:       day.Add(23*time.Hour + 57*time.Minute),
			processed: true,
			want:      []string{"open, processed", "--reset-marker"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			printWindows(&buf, st, tt.now, tt.processed)
			out := buf.String()
			for _, want := range tt.want {
				if !strings.Contains(out, want) {
					t.Errorf("output should contain %q:\n%s", want, out)
				}
			}
			for _, absent := range tt.absent {
				if strings.Contains(out, absent) {
					t.Errorf("output should not contain %q:\n%s", absent, out)
				}
			}
		})
	}
}

func TestPrintWindows_NoneEnabled(t *testing.T) {
	st := settings.Default()
	st.ScheduledReset.Enabled = false
	for i := range st.ScheduledReset.Windows {
		st.ScheduledReset.Windows[i].Enabled = false
	}

	var buf bytes.Buffer
	printWindows(&buf, st, time.Now(), false)
	out := buf.String()
	if !strings.Contains(out, "No enabled windows") || !strings.Contains(out, "Scheduled reset: disabled") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestReadLine(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"abc\n", "abc"},
		{"  spaced  \nsecond\n", "spaced"},
		{"no-newline", "no-newline"},
		{"", ""},
	}
	for _, tt := range tests {
		got, err := readLine(strings.NewReader(tt.in))
		if err != nil {
			t.Fatalf("readLine(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("readLine(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	cmd := versionCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs(nil)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(buf.String(), "credits-tui") {
		t.Errorf("version output = %q", buf.String())
	}
}

func TestRootCommands(t *testing.T) {
	want := map[string]bool{"daemon": false, "windows": false, "token": false, "version": false}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}
