// Package discovery aggregates decoded advertisements from all capture
// sessions into one deduplicated neighbor table and streams change events to
// a single consumer.
//
// The manager exclusively owns the table. Sessions never touch it; they hand
// over immutable records through the capture.Sink interface and the manager
// merges them under one lock, so concurrent updates from different
// interfaces never interleave writes on the same row.
package discovery

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"neighwatch/internal/capture"
	"neighwatch/internal/models"
)

// minSweepInterval is the floor for the expiry sweep period.
const minSweepInterval = 5 * time.Second

// defaultEventBuffer bounds the event queue toward the consumer.
const defaultEventBuffer = 256

// Config controls manager behavior.
type Config struct {
	Capture     capture.Config
	EventBuffer int
	// SweepFloor overrides the minimum sweep interval; tests shorten it.
	SweepFloor time.Duration
}

func (c Config) withDefaults() Config {
	if c.EventBuffer <= 0 {
		c.EventBuffer = defaultEventBuffer
	}
	if c.SweepFloor <= 0 {
		c.SweepFloor = minSweepInterval
	}
	return c
}

// session is what the manager needs from a capture session; satisfied by
// *capture.Session.
type session interface {
	Interface() string
	Start(capture.Sink) error
	Stop()
	State() capture.State
	Stats() capture.Stats
}

// InterfaceStatus describes one managed capture session.
type InterfaceStatus struct {
	Interface string
	State     capture.State
	Stats     capture.Stats
}

// Manager owns the neighbor table and the set of active capture sessions.
type Manager struct {
	cfg Config
	log *zap.Logger

	// newSession is swapped out by tests.
	newSession func(iface string) session

	mu       sync.Mutex
	sessions map[string]session
	table    map[models.Key]*models.NeighborRecord
	speeds   map[string]int64
	events   chan models.Event
	closed   bool

	sweepStop chan struct{}
	sweepDone chan struct{}

	now func() time.Time
}

// NewManager builds a manager; Close releases everything it starts.
func NewManager(cfg Config, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	m := &Manager{
		cfg:       cfg,
		log:       log,
		sessions:  make(map[string]session),
		table:     make(map[models.Key]*models.NeighborRecord),
		speeds:    make(map[string]int64),
		events:    make(chan models.Event, cfg.EventBuffer),
		sweepStop: make(chan struct{}),
		sweepDone: make(chan struct{}),
		now:       time.Now,
	}
	m.newSession = func(iface string) session {
		return capture.NewSession(iface, cfg.Capture, log)
	}
	go m.sweepLoop()
	return m
}

// Events returns the change stream. Single consumer; under extreme load the
// oldest unread event is dropped rather than blocking capture.
func (m *Manager) Events() <-chan models.Event {
	return m.events
}

// SetPortSpeed records the local link speed stamped onto records heard on
// the interface.
func (m *Manager) SetPortSpeed(iface string, bps int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.speeds[iface] = bps
}

// StartCapture opens one session per requested interface. Interfaces already
// capturing are left alone. Per-interface open failures are returned and do
// not prevent the others from starting.
func (m *Manager) StartCapture(ifaces ...string) map[string]error {
	failures := make(map[string]error)
	for _, iface := range ifaces {
		m.mu.Lock()
		s, ok := m.sessions[iface]
		if !ok {
			s = m.newSession(iface)
			m.sessions[iface] = s
		}
		m.mu.Unlock()

		if s.State() == capture.StateCapturing {
			continue
		}
		if err := s.Start(m); err != nil {
			m.log.Warn("capture unavailable", zap.String("interface", iface), zap.Error(err))
			failures[iface] = err
			m.emit(models.Event{
				Type:      models.CaptureError,
				Time:      m.now(),
				Interface: iface,
				Err:       err,
			})
		}
	}
	if len(failures) == 0 {
		return nil
	}
	return failures
}

// StopCapture stops the named sessions and purges their neighbor rows,
// emitting one removal per evicted row.
func (m *Manager) StopCapture(ifaces ...string) {
	for _, iface := range ifaces {
		m.mu.Lock()
		s, ok := m.sessions[iface]
		m.mu.Unlock()
		if !ok {
			continue
		}
		s.Stop()
		m.purgeInterface(iface)
	}
}

// StopAll stops every session. Safe to call repeatedly; once it returns no
// further events are produced for the stopped interfaces.
func (m *Manager) StopAll() {
	m.mu.Lock()
	var all []string
	for iface := range m.sessions {
		all = append(all, iface)
	}
	m.mu.Unlock()
	m.StopCapture(all...)
}

// Close stops all sessions, halts the sweep, and closes the event stream.
func (m *Manager) Close() {
	m.StopAll()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()

	close(m.sweepStop)
	<-m.sweepDone
	close(m.events)
}

// HandleUpdate implements capture.Sink: merge one decoded advertisement into
// the table per the (interface, device ID) key.
func (m *Manager) HandleUpdate(rec *models.NeighborRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := rec.Key()

	if rec.Withdrawn {
		// LLDP shutdown frame: the neighbor goes away now, not at expiry.
		if _, ok := m.table[key]; ok {
			delete(m.table, key)
			m.emitLocked(models.Event{
				Type:      models.NeighborRemoved,
				Time:      m.now(),
				Interface: key.Interface,
				DeviceID:  key.DeviceID,
			})
		}
		return
	}

	if speed, ok := m.speeds[rec.Interface]; ok {
		rec.LocalPortSpeed = speed
	}

	existing, ok := m.table[key]
	evType := models.NeighborAdded
	if ok {
		// Refresh in place: the later advertisement's content wins, only the
		// first-seen time survives.
		rec.FirstSeen = existing.FirstSeen
		evType = models.NeighborUpdated
	}
	m.table[key] = rec

	m.emitLocked(models.Event{
		Type:      evType,
		Time:      m.now(),
		Interface: key.Interface,
		DeviceID:  key.DeviceID,
		Record:    rec.Clone(),
	})
}

// HandleCaptureError implements capture.Sink: surface a dead handle to the
// observer. The session has already returned to Idle.
func (m *Manager) HandleCaptureError(iface string, err error) {
	m.emit(models.Event{
		Type:      models.CaptureError,
		Time:      m.now(),
		Interface: iface,
		Err:       err,
	})
}

// Snapshot returns a deep copy of the table, sorted by interface then device
// ID, safe to consume without holding any lock.
func (m *Manager) Snapshot() []*models.NeighborRecord {
	m.mu.Lock()
	out := make([]*models.NeighborRecord, 0, len(m.table))
	for _, rec := range m.table {
		out = append(out, rec.Clone())
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Interface != out[j].Interface {
			return out[i].Interface < out[j].Interface
		}
		return out[i].DeviceID < out[j].DeviceID
	})
	return out
}

// Statuses reports the state and counters of every managed session.
func (m *Manager) Statuses() []InterfaceStatus {
	m.mu.Lock()
	sessions := make([]session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	out := make([]InterfaceStatus, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, InterfaceStatus{
			Interface: s.Interface(),
			State:     s.State(),
			Stats:     s.Stats(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Interface < out[j].Interface })
	return out
}

// purgeInterface drops every row heard on iface.
func (m *Manager) purgeInterface(iface string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.table {
		if key.Interface != iface {
			continue
		}
		delete(m.table, key)
		m.emitLocked(models.Event{
			Type:      models.NeighborRemoved,
			Time:      m.now(),
			Interface: key.Interface,
			DeviceID:  key.DeviceID,
		})
	}
}

// sweepLoop periodically evicts rows whose refresh window has lapsed. The
// period adapts to half the shortest active expiry window, never below the
// floor.
func (m *Manager) sweepLoop() {
	defer close(m.sweepDone)
	timer := time.NewTimer(m.sweepInterval())
	defer timer.Stop()
	for {
		select {
		case <-m.sweepStop:
			return
		case <-timer.C:
			m.sweep()
			timer.Reset(m.sweepInterval())
		}
	}
}

// sweep evicts expired rows. An update that lands before the lock is taken
// always wins over eviction.
func (m *Manager) sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for key, rec := range m.table {
		if !rec.ExpiredAt(now) {
			continue
		}
		delete(m.table, key)
		m.log.Debug("neighbor expired",
			zap.String("interface", key.Interface),
			zap.String("device", key.DeviceID))
		m.emitLocked(models.Event{
			Type:      models.NeighborRemoved,
			Time:      now,
			Interface: key.Interface,
			DeviceID:  key.DeviceID,
		})
	}
}

func (m *Manager) sweepInterval() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	shortest := time.Duration(0)
	for _, rec := range m.table {
		if w := rec.ExpiryWindow(); shortest == 0 || w < shortest {
			shortest = w
		}
	}
	interval := shortest / 2
	if interval < m.cfg.SweepFloor {
		interval = m.cfg.SweepFloor
	}
	return interval
}

func (m *Manager) emit(ev models.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emitLocked(ev)
}

// emitLocked enqueues an event, dropping the oldest unread one instead of
// blocking capture when the consumer falls behind. Callers hold m.mu, which
// is what keeps ordering causal per interface.
func (m *Manager) emitLocked(ev models.Event) {
	if m.closed {
		return
	}
	for {
		select {
		case m.events <- ev:
			return
		default:
		}
		select {
		case <-m.events:
			m.log.Warn("event queue full, dropping oldest")
		default:
		}
	}
}
