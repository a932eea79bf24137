// Package config loads and saves the runtime's TOML configuration: memory
// region sizing, scheduler timing, persistence paths, and debug-stream
// settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/BurntSushi/toml"

	"github.com/zplc/zplc-core/scheduler"
)

// Config represents the runtime configuration.
type Config struct {
	// Memory region sizing (bytes); the remaining regions of the fixed
	// 64 KiB address space are not configurable.
	Memory struct {
		WorkSize   int `toml:"work_size"`
		RetainSize int `toml:"retain_size"`
	} `toml:"memory"`

	// Scheduler timing and watchdog tuning.
	Scheduler struct {
		WatchdogMultiplier         float64 `toml:"watchdog_multiplier"`
		InstructionsPerMicrosecond float64 `toml:"instructions_per_microsecond"`
		MutexTimeoutMs             int     `toml:"mutex_timeout_ms"`
	} `toml:"scheduler"`

	// Persistence settings for the osadapter HAL.
	Persistence struct {
		Dir            string `toml:"dir"`
		AutoSaveRetain bool   `toml:"auto_save_retain"`
	} `toml:"persistence"`

	// Debug stream (line-oriented JSON) settings.
	Debug struct {
		Enabled     bool   `toml:"enabled"`
		Mode        string `toml:"mode"` // off, summary, verbose
		ListenAddr  string `toml:"listen_addr"`
		HistorySize int    `toml:"history_size"`
	} `toml:"debug"`

	// Loader safety settings.
	Loader struct {
		AllowUnsafeRaw bool `toml:"allow_unsafe_raw"`
	} `toml:"loader"`

	// Host control-surface API settings.
	API struct {
		ListenAddr string `toml:"listen_addr"`
		EnableCORS bool   `toml:"enable_cors"`
	} `toml:"api"`

	// IOMap binds HAL channels to fixed process-image offsets for the
	// scheduler's per-scan input/output latch (spec.md §4.4). Each entry
	// is independent; Kind is one of "gpio_in", "gpio_out", "adc_in",
	// "dac_out".
	IOMap []IOMapEntry `toml:"iomap"`
}

// IOMapEntry is one [[iomap]] TOML table: a HAL channel bound to a fixed
// process-image offset.
type IOMapEntry struct {
	Kind    string `toml:"kind"`
	Channel int    `toml:"channel"`
	Offset  int    `toml:"offset"`
}

// DefaultConfig returns a configuration with default values: 8 KiB work
// memory, 4 KiB retain memory, watchdog multiplier 2.
func DefaultConfig() *Config {
	cfg := &Config{}

	// Memory defaults
	cfg.Memory.WorkSize = 8 * 1024
	cfg.Memory.RetainSize = 4 * 1024

	// Scheduler defaults
	cfg.Scheduler.WatchdogMultiplier = 2.0
	cfg.Scheduler.InstructionsPerMicrosecond = 1.0
	cfg.Scheduler.MutexTimeoutMs = 50

	// Persistence defaults
	cfg.Persistence.Dir = defaultPersistenceDir()
	cfg.Persistence.AutoSaveRetain = true

	// Debug defaults
	cfg.Debug.Enabled = false
	cfg.Debug.Mode = "off"
	cfg.Debug.ListenAddr = "127.0.0.1:9100"
	cfg.Debug.HistorySize = 1000

	// Loader defaults
	cfg.Loader.AllowUnsafeRaw = false

	// API defaults
	cfg.API.ListenAddr = "127.0.0.1:8080"
	cfg.API.EnableCORS = false

	return cfg
}

// SchedulerIOMap converts the TOML [[iomap]] entries into
// scheduler.IOMapping, rejecting any entry with an unrecognized Kind.
func (c *Config) SchedulerIOMap() ([]scheduler.IOMapping, error) {
	out := make([]scheduler.IOMapping, 0, len(c.IOMap))
	for _, e := range c.IOMap {
		var kind scheduler.IOKind
		switch e.Kind {
		case "gpio_in":
			kind = scheduler.IOGPIOInput
		case "gpio_out":
			kind = scheduler.IOGPIOOutput
		case "adc_in":
			kind = scheduler.IOADCInput
		case "dac_out":
			kind = scheduler.IODACOutput
		default:
			return nil, fmt.Errorf("config: unknown iomap kind %q", e.Kind)
		}
		out = append(out, scheduler.IOMapping{Kind: kind, Channel: e.Channel, Offset: e.Offset})
	}
	return out, nil
}

// GetConfigPath returns the platform-specific config file path.
func GetConfigPath() string {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		// Windows: %APPDATA%\zplc\config.toml
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		configDir = filepath.Join(configDir, "zplc")

	case "darwin", "linux":
		// macOS/Linux: ~/.config/zplc/config.toml
		homeDir, err := os.UserHomeDir()
		if err != nil {
			// Fallback to current directory
			return "config.toml"
		}
		configDir = filepath.Join(homeDir, ".config", "zplc")

	default:
		// Unknown platform: use current directory
		return "config.toml"
	}

	// Ensure directory exists
	if err := os.MkdirAll(configDir, 0750); err != nil {
		// If we can't create the directory, fall back to current directory
		return "config.toml"
	}

	return filepath.Join(configDir, "config.toml")
}

func defaultPersistenceDir() string {
	switch runtime.GOOS {
	case "windows":
		base := os.Getenv("APPDATA")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		return filepath.Join(base, "zplc", "retain")

	case "darwin", "linux":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "retain"
		}
		return filepath.Join(homeDir, ".local", "share", "zplc", "retain")

	default:
		return "retain"
	}
}

// Load loads configuration from the default config file.
func Load() (*Config, error) {
	return LoadFrom(GetConfigPath())
}

// LoadFrom loads configuration from the specified file. A missing file is
// not an error: the default configuration is returned instead.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	// If file doesn't exist, return default config
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read and parse config file
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// Save saves configuration to the default config file.
func (c *Config) Save() error {
	return c.SaveTo(GetConfigPath())
}

// SaveTo saves configuration to the specified file.
func (c *Config) SaveTo(path string) (err error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Create file
	f, createErr := os.Create(path) // #nosec G304 -- user config file path
	if createErr != nil {
		return fmt.Errorf("failed to create config file: %w", createErr)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close config file: %w", closeErr)
		}
	}()

	// Encode to TOML
	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return nil
}
