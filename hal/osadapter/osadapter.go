// Package osadapter implements the HAL capability surface against a real
// operating system: wall-clock time, atomic-rename file persistence, and
// structured logging via log/slog. GPIO/ADC/DAC are not wired to any real
// peripheral here and report NotImpl, matching a hosted build with no
// attached I/O hardware.
package osadapter

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/zplc/zplc-core/hal"
)

// HAL persists data under Dir and logs through Logger (a *slog.Logger; if
// nil, Init installs slog's default JSON handler over os.Stderr).
type HAL struct {
	Dir    string
	Logger *slog.Logger

	start time.Time
}

// New constructs an adapter rooted at dir. Call Init before first use.
func New(dir string, logger *slog.Logger) *HAL {
	return &HAL{Dir: dir, Logger: logger}
}

func (h *HAL) Init() hal.Result {
	h.start = time.Now()
	if h.Logger == nil {
		h.Logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	if err := os.MkdirAll(h.Dir, 0o755); err != nil {
		h.Logger.Error("hal init: persistence dir", "err", err, "dir", h.Dir)
		return hal.ResultError
	}
	return hal.OK
}

func (h *HAL) Shutdown() hal.Result {
	return hal.OK
}

func (h *HAL) Tick() uint32 {
	return uint32(time.Since(h.start).Milliseconds())
}

func (h *HAL) Sleep(d time.Duration) hal.Result {
	remaining := d
	for remaining > 0 {
		start := time.Now()
		time.Sleep(remaining)
		elapsed := time.Since(start)
		if elapsed >= remaining {
			break
		}
		remaining -= elapsed
	}
	return hal.OK
}

func (h *HAL) GPIORead(int) (bool, hal.Result)    { return false, hal.NotImpl }
func (h *HAL) GPIOWrite(int, bool) hal.Result      { return hal.NotImpl }
func (h *HAL) ADCRead(int) (uint16, hal.Result)    { return 0, hal.NotImpl }
func (h *HAL) DACWrite(int, uint16) hal.Result     { return hal.NotImpl }

func (h *HAL) path(key string) string {
	return filepath.Join(h.Dir, hal.SanitizeKey(key))
}

// PersistSave writes to a temp file in the same directory then renames it
// over the target, so a crash mid-write leaves the previous value intact.
func (h *HAL) PersistSave(key string, data []byte) hal.Result {
	target := h.path(key)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		h.Logger.Error("hal persist_save", "err", err, "key", key)
		return hal.ResultError
	}
	if err := os.Rename(tmp, target); err != nil {
		h.Logger.Error("hal persist_save rename", "err", err, "key", key)
		return hal.ResultError
	}
	return hal.OK
}

func (h *HAL) PersistLoad(key string) ([]byte, bool, hal.Result) {
	data, err := os.ReadFile(h.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, hal.OK
		}
		h.Logger.Error("hal persist_load", "err", err, "key", key)
		return nil, false, hal.ResultError
	}
	return data, true, hal.OK
}

func (h *HAL) PersistDelete(key string) hal.Result {
	if err := os.Remove(h.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		h.Logger.Error("hal persist_delete", "err", err, "key", key)
		return hal.ResultError
	}
	return hal.OK
}

func (h *HAL) Log(level hal.LogLevel, msg string, fields map[string]any) {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	switch level {
	case hal.LogDebug:
		h.Logger.Debug(msg, args...)
	case hal.LogInfo:
		h.Logger.Info(msg, args...)
	case hal.LogWarn:
		h.Logger.Warn(msg, args...)
	case hal.LogError:
		h.Logger.Error(msg, args...)
	default:
		h.Logger.Info(fmt.Sprintf("[unknown level %d] %s", level, msg), args...)
	}
}
