package monitoring

import (
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mitchelldurbincs/FogOfWarPreview/internal/mapstore"
)

// StatsSource provides map store statistics
type StatsSource interface {
	Stats() mapstore.Stats
}

// Config holds monitor settings
type Config struct {
	Interval       time.Duration
	AlertThreshold int
	AlertCooldown  time.Duration
}

// DefaultConfig returns the default monitor configuration
func DefaultConfig() Config {
	return Config{
		Interval:       30 * time.Second,
		AlertThreshold: 1000,
		AlertCooldown:  5 * time.Minute,
	}
}

// Monitor periodically samples goroutine counts and map store statistics
type Monitor struct {
	mu          sync.RWMutex
	config      Config
	store       StatsSource
	logger      zerolog.Logger
	baseline    int
	current     int
	peak        int
	lastAlert   time.Time
	storeStats  mapstore.Stats
	writeErrors int64
	sampledAt   time.Time
	stopOnce    sync.Once
	stopChan    chan struct{}
	doneChan    chan struct{}
}

// NewMonitor creates a new monitor; store may be nil
func NewMonitor(config Config, store StatsSource, logger zerolog.Logger) *Monitor {
	baseline := runtime.NumGoroutine()
	return &Monitor{
		config:   config,
		store:    store,
		logger:   logger.With().Str("component", "monitor").Logger(),
		baseline: baseline,
		current:  baseline,
		peak:     baseline,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start begins periodic sampling
func (m *Monitor) Start() {
	go m.run()
	m.logger.Info().
		Int("baseline", m.baseline).
		Dur("interval", m.config.Interval).
		Msg("Started monitoring")
}

// Stop stops sampling and waits for the loop to exit
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopChan)
	})
	<-m.doneChan
}

func (m *Monitor) run() {
	defer close(m.doneChan)
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error().
				Interface("panic", r).
				Msg("Monitor panicked, sampling stopped")
		}
	}()

	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Sample()
		case <-m.stopChan:
			return
		}
	}
}

// Sample takes one measurement and logs it
func (m *Monitor) Sample() {
	current := runtime.NumGoroutine()
	var stats mapstore.Stats
	if m.store != nil {
		stats = m.store.Stats()
	}

	m.mu.Lock()
	m.current = current
	if current > m.peak {
		m.peak = current
	}
	newWriteErrors := stats.WriteErrors - m.writeErrors
	m.writeErrors = stats.WriteErrors
	m.storeStats = stats
	m.sampledAt = time.Now()

	shouldAlert := current > m.config.AlertThreshold &&
		time.Since(m.lastAlert) > m.config.AlertCooldown
	if shouldAlert {
		m.lastAlert = time.Now()
	}
	peak := m.peak
	m.mu.Unlock()

	m.logger.Debug().
		Int("goroutines", current).
		Int("baseline", m.baseline).
		Int("peak", peak).
		Int64("saves", stats.Saves).
		Int64("write_retries", stats.WriteRetries).
		Int64("quarantined", stats.Quarantined).
		Msg("Runtime metrics")

	if shouldAlert {
		m.logger.Warn().
			Int("goroutines", current).
			Int("threshold", m.config.AlertThreshold).
			Msg("High goroutine count detected - possible leak")
	}
	if newWriteErrors > 0 {
		m.logger.Warn().
			Int64("new_write_errors", newWriteErrors).
			Int64("total_write_errors", stats.WriteErrors).
			Msg("Map documents failed to persist since last sample")
	}
}

// Metrics contains the latest sample
type Metrics struct {
	Goroutines GoroutineMetrics `json:"goroutines"`
	Store      mapstore.Stats   `json:"store"`
	SampledAt  time.Time        `json:"sampled_at"`
}

// GoroutineMetrics contains goroutine statistics
type GoroutineMetrics struct {
	Current  int `json:"current"`
	Baseline int `json:"baseline"`
	Peak     int `json:"peak"`
	Growth   int `json:"growth"`
}

// Metrics returns the latest sample
func (m *Monitor) Metrics() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return Metrics{
		Goroutines: GoroutineMetrics{
			Current:  m.current,
			Baseline: m.baseline,
			Peak:     m.peak,
			Growth:   m.current - m.baseline,
		},
		Store:     m.storeStats,
		SampledAt: m.sampledAt,
	}
}
