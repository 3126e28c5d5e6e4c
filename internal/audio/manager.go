package audio

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/jmylchreest/regalert/internal/config"
	"github.com/jmylchreest/regalert/internal/model"
	"github.com/jmylchreest/regalert/internal/notify"
)

// Settings selects which sounds play and how loud.
type Settings struct {
	Enabled bool
	Volume  int // 0-100
	Sounds  map[model.Variant]string
}

// SettingsFromConfig extracts audio settings from the configuration.
func SettingsFromConfig(cfg *config.Config) Settings {
	s := Settings{
		Enabled: cfg.Audio.Enabled,
		Volume:  cfg.Audio.Volume,
		Sounds:  make(map[model.Variant]string),
	}
	for _, v := range model.Variants() {
		if path := cfg.SoundForVariant(v); path != "" {
			s.Sounds[v] = path
		}
	}
	return s
}

// Manager plays the sound configured for a toast's variant.
// It implements notify.Surface.
type Manager struct {
	mu       sync.RWMutex
	logger   *slog.Logger
	player   *Player
	watcher  *Watcher
	settings Settings
	sounds   map[model.Variant]string // only files that exist
}

// NewManager creates a Manager on the system speaker.
func NewManager(s Settings, logger *slog.Logger) *Manager {
	return newManager(NewPlayer(logger), s, logger)
}

func newManager(player *Player, s Settings, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		logger:  logger,
		player:  player,
		watcher: NewWatcher(player, logger),
	}
	m.apply(s)
	return m
}

func (m *Manager) apply(s Settings) {
	sounds := make(map[model.Variant]string)
	for v, path := range s.Sounds {
		if _, err := os.Stat(path); err != nil {
			m.logger.Warn("sound file not found", "variant", string(v), "path", path)
			continue
		}
		sounds[v] = path
	}

	m.mu.Lock()
	m.settings = s
	m.sounds = sounds
	m.mu.Unlock()

	m.player.SetVolume(float64(s.Volume) / 100.0)
}

// Start preloads sounds and starts the file watcher.
func (m *Manager) Start(_ context.Context) error {
	m.preloadAndWatch()
	if err := m.watcher.Start(); err != nil {
		return err
	}
	m.logger.Info("audio manager started", "sounds", len(m.soundPaths()))
	return nil
}

func (m *Manager) preloadAndWatch() {
	for _, path := range m.soundPaths() {
		if err := m.player.Preload(path); err != nil {
			m.logger.Warn("failed to preload sound", "path", path, "error", err)
		}
		m.watcher.Watch(path)
	}
}

func (m *Manager) soundPaths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	paths := make([]string, 0, len(m.sounds))
	for _, p := range m.sounds {
		paths = append(paths, p)
	}
	return paths
}

// Stop shuts the watcher and speaker down.
func (m *Manager) Stop() {
	m.watcher.Stop()
	m.player.Close()
	m.logger.Debug("audio manager stopped")
}

// ShowToast implements notify.Surface.
func (m *Manager) ShowToast(_ context.Context, t notify.Toast) error {
	return m.PlayForVariant(t.Variant)
}

// PlayForVariant plays the sound for v. Missing sounds are silently skipped.
func (m *Manager) PlayForVariant(v model.Variant) error {
	m.mu.RLock()
	enabled := m.settings.Enabled
	path, ok := m.sounds[v.OrDefault()]
	m.mu.RUnlock()

	if !enabled {
		return nil
	}
	if !ok {
		m.logger.Debug("no sound configured for variant", "variant", string(v))
		return nil
	}
	return m.player.Play(path)
}

// Update replaces the settings after a config reload.
func (m *Manager) Update(s Settings) {
	m.player.ClearCache()
	m.apply(s)
	m.preloadAndWatch()
	m.logger.Debug("audio manager reloaded")
}

// Enabled reports whether sounds will play.
func (m *Manager) Enabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings.Enabled
}
