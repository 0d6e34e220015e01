package blocklist

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/amaumene/bookarr/internal/providers"
)

// Manager tracks per-provider failure state and decides which providers
// sit out the current search round. It is the only piece of state mutated
// concurrently by parallel provider queries.
type Manager struct {
	mu      sync.RWMutex
	base    time.Duration
	cap     time.Duration
	entries map[string]*entry
	now     func() time.Time
	logger  *logrus.Logger
}

type entry struct {
	failures     int
	blockedUntil time.Time
	reason       string
}

// BlockedProvider is one row of the admin blocklist view
type BlockedProvider struct {
	Name      string        `json:"name"`
	Reason    string        `json:"reason"`
	Failures  int           `json:"failures"`
	ResumesIn time.Duration `json:"resumes_in"`
}

// New creates a blocklist manager. base is the first block duration,
// cap the longest one.
func New(base, cap time.Duration, logger *logrus.Logger) *Manager {
	if base <= 0 {
		base = 30 * time.Minute
	}
	if cap < base {
		cap = 24 * time.Hour
	}
	return &Manager{
		base:    base,
		cap:     cap,
		entries: make(map[string]*entry),
		now:     time.Now,
		logger:  logger,
	}
}

// IsActive reports whether a provider may be queried. Blocks expire on
// their own; an expired block counts as active.
func (m *Manager) IsActive(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[name]
	if !ok {
		return true
	}
	return !m.now().Before(e.blockedUntil)
}

// RecordFailure increments the provider's consecutive-failure count and
// blocks it with exponential backoff. Auth failures jump straight to the
// cap: credentials won't fix themselves on retry. Returns the block
// duration applied.
func (m *Manager) RecordFailure(name string, kind providers.ErrorKind, reason string) time.Duration {
	if len(reason) > 80 {
		reason = reason[:80]
	}

	m.mu.Lock()
	e, ok := m.entries[name]
	if !ok {
		e = &entry{}
		m.entries[name] = e
	}
	e.failures++

	delay := m.backoffFor(e.failures)
	if kind == providers.ErrAuthFailure {
		delay = m.cap
	}
	e.blockedUntil = m.now().Add(delay)
	e.reason = reason
	failures := e.failures
	m.mu.Unlock()

	m.logger.WithFields(logrus.Fields{
		"provider": name,
		"failures": failures,
		"duration": delay,
		"reason":   reason,
	}).Info("Blocking provider")

	return delay
}

// RecordSuccess resets the provider's consecutive-failure count. An
// unexpired block from a prior failure stays in place; a provider only
// responds successfully once its block has lapsed anyway.
func (m *Manager) RecordSuccess(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[name]; ok {
		e.failures = 0
	}
}

// ClearAll resets every provider to active with zero failures and
// returns how many entries were dropped.
func (m *Manager) ClearAll() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.entries)
	m.entries = make(map[string]*entry)

	m.logger.WithField("cleared", n).Info("Blocklist cleared")
	return n
}

// Snapshot returns the providers currently blocked, for the admin surface
func (m *Manager) Snapshot() []BlockedProvider {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.now()
	var blocked []BlockedProvider
	for name, e := range m.entries {
		remaining := e.blockedUntil.Sub(now)
		if remaining <= 0 {
			continue
		}
		blocked = append(blocked, BlockedProvider{
			Name:      name,
			Reason:    e.reason,
			Failures:  e.failures,
			ResumesIn: remaining,
		})
	}
	return blocked
}

// backoffFor doubles the base duration per consecutive failure, capped.
// Callers must hold m.mu.
func (m *Manager) backoffFor(failures int) time.Duration {
	if failures < 1 {
		failures = 1
	}
	// Guard the shift: past 32 doublings any realistic base overflows
	if failures > 32 {
		return m.cap
	}
	d := m.base << (failures - 1)
	if d <= 0 || d > m.cap {
		return m.cap
	}
	return d
}
