// Package settings persists user settings in a JSON file and reloads them
// when the file changes on disk.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/j-veylop/credits-dashboard-tui/internal/logger"
	"github.com/j-veylop/credits-dashboard-tui/internal/reset"
)

const currentVersion = 1

// ScheduledReset configures the automatic reset engine.
type ScheduledReset struct {
	Windows []reset.Window `json:"windows"`
	Enabled bool           `json:"enabled"`
}

// Settings is the content of the settings file.
type Settings struct {
	ScheduledReset         ScheduledReset `json:"scheduledReset"`
	LowCreditPercent       float64        `json:"lowCreditPercent"`
	RefreshIntervalSeconds int            `json:"refreshIntervalSeconds"`
	Version                int            `json:"version"`
	AutoRefresh            bool           `json:"autoRefresh"`
	Notifications          bool           `json:"notifications"`
}

// Default returns the settings written on first start.
func Default() Settings {
	return Settings{
		ScheduledReset: ScheduledReset{
			Enabled: true,
			Windows: reset.DefaultWindows(),
		},
		AutoRefresh:            true,
		RefreshIntervalSeconds: 60,
		LowCreditPercent:       20,
		Notifications:          true,
		Version:                currentVersion,
	}
}

// RefreshInterval returns the auto refresh period.
func (s Settings) RefreshInterval() time.Duration {
	return time.Duration(s.RefreshIntervalSeconds) * time.Second
}

// Clone returns a deep copy.
func (s Settings) Clone() Settings {
	clone := s
	clone.ScheduledReset.Windows = slices.Clone(s.ScheduledReset.Windows)
	return clone
}

func (s *Settings) normalize() {
	if s.RefreshIntervalSeconds <= 0 {
		s.RefreshIntervalSeconds = 60
	}
	if s.LowCreditPercent < 0 || s.LowCreditPercent > 100 {
		s.LowCreditPercent = 20
	}
	if s.ScheduledReset.Windows == nil {
		s.ScheduledReset.Windows = reset.DefaultWindows()
	}
	for i, w := range s.ScheduledReset.Windows {
		if err := w.Validate(); err != nil {
			logger.Warn("ignoring malformed reset window", "index", i, "window", w.ID(), "error", err)
		}
	}
	s.Version = currentVersion
}

// Event represents a settings service event.
type Event struct {
	Error    error
	Settings Settings
	Type     EventType
}

// EventType defines the type of settings event.
type EventType int

const (
	EventSettingsLoaded EventType = iota
	EventSettingsChanged
	EventError
)

// Service owns the settings file.
type Service struct {
	mu            sync.RWMutex
	settings      Settings
	filePath      string
	watcher       *fsnotify.Watcher
	eventChan     chan Event
	stopChan      chan struct{}
	debounceTimer *time.Timer
	closeOnce     sync.Once
}

// New loads filePath, creating it with defaults when missing, and starts
// watching it.
func New(filePath string) (*Service, error) {
	if filePath == "" {
		return nil, errors.New("settings path is empty")
	}

	s := &Service{
		settings:  Default(),
		filePath:  filePath,
		eventChan: make(chan Event, 16),
		stopChan:  make(chan struct{}),
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create settings directory: %w", err)
	}

	loaded, err := s.readFile()
	switch {
	case err == nil:
		s.settings = loaded
	case os.IsNotExist(err):
		if err := s.writeFile(s.settings); err != nil {
			return nil, fmt.Errorf("failed to create settings file: %w", err)
		}
	default:
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	if err := s.startWatcher(); err != nil {
		return nil, fmt.Errorf("failed to start file watcher: %w", err)
	}

	s.sendEvent(Event{Type: EventSettingsLoaded, Settings: s.Get()})

	return s, nil
}

// Events returns the event channel for subscribing to settings changes.
func (s *Service) Events() <-chan Event {
	return s.eventChan
}

// Path returns the settings file path.
func (s *Service) Path() string {
	return s.filePath
}

// Get returns a copy of the current settings.
func (s *Service) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.Clone()
}

// Update applies fn to a copy of the settings, saves the result and
// publishes it.
func (s *Service) Update(fn func(*Settings)) error {
	s.mu.Lock()
	next := s.settings.Clone()
	fn(&next)
	next.normalize()

	if reflect.DeepEqual(next, s.settings) {
		s.mu.Unlock()
		return nil
	}

	if err := s.writeFile(next); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to save settings: %w", err)
	}
	s.settings = next
	s.mu.Unlock()

	s.sendEvent(Event{Type: EventSettingsChanged, Settings: next.Clone()})
	return nil
}

// SetScheduledResetEnabled switches the reset engine on or off.
func (s *Service) SetScheduledResetEnabled(enabled bool) error {
	return s.Update(func(st *Settings) { st.ScheduledReset.Enabled = enabled })
}

// SetAutoRefresh switches background subscription polling on or off.
func (s *Service) SetAutoRefresh(enabled bool) error {
	return s.Update(func(st *Settings) { st.AutoRefresh = enabled })
}

// ToggleWindow flips the enabled flag of the window at index.
func (s *Service) ToggleWindow(index int) error {
	var outOfRange bool
	err := s.Update(func(st *Settings) {
		if index < 0 || index >= len(st.ScheduledReset.Windows) {
			outOfRange = true
			return
		}
		st.ScheduledReset.Windows[index].Enabled = !st.ScheduledReset.Windows[index].Enabled
	})
	if outOfRange {
		return fmt.Errorf("window index %d out of range", index)
	}
	return err
}

func (s *Service) readFile() (Settings, error) {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return Settings{}, err
	}

	// Windows decode into a fresh slice; defaults apply only when absent.
	st := Default()
	st.ScheduledReset.Windows = nil
	if err := json.Unmarshal(data, &st); err != nil {
		return Settings{}, fmt.Errorf("failed to parse settings file: %w", err)
	}
	st.normalize()
	return st, nil
}

// writeFile saves settings via a temp file and rename.
func (s *Service) writeFile(st Settings) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	tmpFile := s.filePath + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tmpFile, s.filePath); err != nil {
		if removeErr := os.Remove(tmpFile); removeErr != nil {
			logger.Error("failed to remove temp file", "error", removeErr)
		}
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// startWatcher watches the directory so editors that replace the file are
// noticed too.
func (s *Service) startWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	s.watcher = watcher

	if err := watcher.Add(filepath.Dir(s.filePath)); err != nil {
		if closeErr := watcher.Close(); closeErr != nil {
			logger.Error("failed to close watcher", "error", closeErr)
		}
		return err
	}

	go s.watchLoop()
	return nil
}

func (s *Service) watchLoop() {
	const debounceInterval = 100 * time.Millisecond

	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}

			if filepath.Base(event.Name) != filepath.Base(s.filePath) {
				continue
			}

			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				s.mu.Lock()
				if s.debounceTimer != nil {
					s.debounceTimer.Stop()
				}
				s.debounceTimer = time.AfterFunc(debounceInterval, s.handleFileChange)
				s.mu.Unlock()
			}

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.sendEvent(Event{Type: EventError, Error: err})

		case <-s.stopChan:
			return
		}
	}
}

// handleFileChange reloads the file after an external edit. Our own
// writes reload to identical settings and are dropped.
func (s *Service) handleFileChange() {
	loaded, err := s.readFile()
	if err != nil {
		if os.IsNotExist(err) {
			return
		}
		logger.Warn("failed to reload settings", "path", s.filePath, "error", err)
		s.sendEvent(Event{Type: EventError, Error: err})
		return
	}

	s.mu.Lock()
	if reflect.DeepEqual(loaded, s.settings) {
		s.mu.Unlock()
		return
	}
	s.settings = loaded
	s.mu.Unlock()

	logger.Info("settings reloaded", "path", s.filePath)
	s.sendEvent(Event{Type: EventSettingsChanged, Settings: loaded.Clone()})
}

// sendEvent sends an event to the event channel non-blocking.
func (s *Service) sendEvent(event Event) {
	select {
	case s.eventChan <- event:
	default:
		// Channel full, drop oldest event
		select {
		case <-s.eventChan:
		default:
		}
		select {
		case s.eventChan <- event:
		default:
		}
	}
}

// Close stops the file watcher and cleans up resources.
func (s *Service) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stopChan)

		s.mu.Lock()
		if s.debounceTimer != nil {
			s.debounceTimer.Stop()
		}
		s.mu.Unlock()

		if s.watcher != nil {
			err = s.watcher.Close()
		}
	})
	return err
}
