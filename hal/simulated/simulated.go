// Package simulated provides an in-memory HAL adapter for tests and
// development: digital/analog channel arrays, a fake clock advanced either
// by wall time or by explicit Advance calls, an in-process persistence
// store, and a log sink that records every call for assertion.
package simulated

import (
	"sync"
	"time"

	"github.com/zplc/zplc-core/hal"
)

// LogRecord is one captured call to Log.
type LogRecord struct {
	Level  hal.LogLevel
	Msg    string
	Fields map[string]any
}

// HAL is a fully in-memory implementation of hal.HAL. Its zero value is
// not ready for use; construct with New.
type HAL struct {
	mu sync.Mutex

	gpio  map[int]bool
	adc   map[int]uint16
	store map[string][]byte
	logs  []LogRecord

	epoch     time.Time
	manualTick bool
	manualMs   uint32

	gpioChannels int
	adcChannels  int
	dacChannels  int
}

// Config bounds which channels this adapter answers for; a channel index
// outside [0, N) returns NotImpl, matching a real board exposing only a
// fixed number of pins.
type Config struct {
	GPIOChannels int
	ADCChannels  int
	DACChannels  int
	// ManualClock, when true, makes Tick return only values set via
	// Advance, never wall-clock time — for deterministic scheduler tests.
	ManualClock bool
}

// New constructs a ready HAL; call Init before first use to match the
// real lifecycle other adapters require.
func New(cfg Config) *HAL {
	return &HAL{
		gpio:         make(map[int]bool),
		adc:          make(map[int]uint16),
		store:        make(map[string][]byte),
		gpioChannels: cfg.GPIOChannels,
		adcChannels:  cfg.ADCChannels,
		dacChannels:  cfg.DACChannels,
		manualTick:   cfg.ManualClock,
	}
}

func (h *HAL) Init() hal.Result {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.epoch = time.Now()
	h.manualMs = 0
	return hal.OK
}

func (h *HAL) Shutdown() hal.Result {
	return hal.OK
}

func (h *HAL) Tick() uint32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.manualTick {
		return h.manualMs
	}
	return uint32(time.Since(h.epoch).Milliseconds())
}

// Advance moves the manual clock forward by ms milliseconds; it is a
// no-op (but harmless) when ManualClock was not set.
func (h *HAL) Advance(ms uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.manualMs += ms
}

func (h *HAL) Sleep(d time.Duration) hal.Result {
	time.Sleep(d)
	return hal.OK
}

func (h *HAL) GPIORead(channel int) (bool, hal.Result) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if channel < 0 || channel >= h.gpioChannels {
		return false, hal.NotImpl
	}
	return h.gpio[channel], hal.OK
}

func (h *HAL) GPIOWrite(channel int, value bool) hal.Result {
	h.mu.Lock()
	defer h.mu.Unlock()
	if channel < 0 || channel >= h.gpioChannels {
		return hal.NotImpl
	}
	h.gpio[channel] = value
	return hal.OK
}

func (h *HAL) ADCRead(channel int) (uint16, hal.Result) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if channel < 0 || channel >= h.adcChannels {
		return 0, hal.NotImpl
	}
	return h.adc[channel], hal.OK
}

func (h *HAL) DACWrite(channel int, value uint16) hal.Result {
	h.mu.Lock()
	defer h.mu.Unlock()
	if channel < 0 || channel >= h.dacChannels {
		return hal.NotImpl
	}
	h.adc[channel] = value
	return hal.OK
}

// SetADCInput lets a test inject a reading as if an external sensor drove
// the channel, independent of any DACWrite the core has performed.
func (h *HAL) SetADCInput(channel int, value uint16) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.adc[channel] = value
}

func (h *HAL) PersistSave(key string, data []byte) hal.Result {
	h.mu.Lock()
	defer h.mu.Unlock()
	key = hal.SanitizeKey(key)
	buf := make([]byte, len(data))
	copy(buf, data)
	h.store[key] = buf
	return hal.OK
}

func (h *HAL) PersistLoad(key string) ([]byte, bool, hal.Result) {
	h.mu.Lock()
	defer h.mu.Unlock()
	key = hal.SanitizeKey(key)
	data, ok := h.store[key]
	if !ok {
		return nil, false, hal.OK
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	return buf, true, hal.OK
}

func (h *HAL) PersistDelete(key string) hal.Result {
	h.mu.Lock()
	defer h.mu.Unlock()
	key = hal.SanitizeKey(key)
	delete(h.store, key)
	return hal.OK
}

func (h *HAL) Log(level hal.LogLevel, msg string, fields map[string]any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.logs = append(h.logs, LogRecord{Level: level, Msg: msg, Fields: fields})
}

// Logs returns a snapshot of every Log call recorded so far.
func (h *HAL) Logs() []LogRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]LogRecord, len(h.logs))
	copy(out, h.logs)
	return out
}
