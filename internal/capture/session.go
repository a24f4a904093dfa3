// Package capture owns the live capture lifecycle for one interface:
// opening and releasing the pcap handle, classifying discovery frames by
// destination MAC and EtherType, and handing payloads to the CDP or LLDP
// parser. Decoded records flow out through a Sink; the session never touches
// the neighbor table itself.
package capture

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"go.uber.org/zap"

	"neighwatch/internal/cdp"
	"neighwatch/internal/lldp"
	"neighwatch/internal/models"
)

// State is the session lifecycle: Idle -> Capturing -> Stopping -> Idle.
type State int32

const (
	StateIdle State = iota
	StateCapturing
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateCapturing:
		return "capturing"
	case StateStopping:
		return "stopping"
	default:
		return "idle"
	}
}

var (
	// ErrCaptureUnavailable reports that the capture handle could not be
	// opened: missing privilege, absent interface, interface down. The
	// session stays Idle; retrying is the caller's call.
	ErrCaptureUnavailable = errors.New("capture: handle unavailable")

	// ErrCaptureInterrupted reports a handle that died while capturing. The
	// session has already returned to Idle; there is no silent retry.
	ErrCaptureInterrupted = errors.New("capture: handle closed unexpectedly")

	// ErrSessionActive reports Start on a session that is not Idle.
	ErrSessionActive = errors.New("capture: session already active")
)

// Sink receives what a session produces. HandleUpdate gets one immutable
// record per successfully decoded advertisement; HandleCaptureError gets
// capture-level failures (never decode-level ones, those only count).
type Sink interface {
	HandleUpdate(rec *models.NeighborRecord)
	HandleCaptureError(iface string, err error)
}

// Config controls handle parameters for a session.
type Config struct {
	SnapLen     int32
	Promiscuous bool
	// ReadTimeout bounds how long the capture loop blocks on packet arrival;
	// the stop signal is re-checked at least this often.
	ReadTimeout time.Duration
}

// DefaultConfig returns capture settings suitable for discovery frames.
func DefaultConfig() Config {
	return Config{
		SnapLen:     1600,
		Promiscuous: true,
		ReadTimeout: time.Second,
	}
}

func (c Config) withDefaults() Config {
	if c.SnapLen <= 0 {
		c.SnapLen = 1600
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = time.Second
	}
	return c
}

// Stats are the session's frame counters.
type Stats struct {
	Frames    uint64 // frames delivered by the handle
	Decoded   uint64 // frames that produced a neighbor record
	Malformed uint64 // matched a protocol signature but failed to decode
	Ignored   uint64 // matched neither signature
}

// Session captures discovery frames on a single interface. All methods are
// safe to call from any goroutine; Stop blocks until the capture loop has
// exited and the handle is released, so the interface is immediately
// reusable.
type Session struct {
	iface string
	cfg   Config
	log   *zap.Logger

	cdp  *cdp.Parser
	lldp *lldp.Parser

	mu     sync.Mutex
	state  State
	stopCh chan struct{}
	wg     sync.WaitGroup

	frames    atomic.Uint64
	decoded   atomic.Uint64
	malformed atomic.Uint64
	ignored   atomic.Uint64
}

// NewSession builds an Idle session for the named interface.
func NewSession(iface string, cfg Config, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("interface", iface))
	return &Session{
		iface: iface,
		cfg:   cfg.withDefaults(),
		log:   log,
		cdp:   cdp.NewParser(log),
		lldp:  lldp.NewParser(log),
	}
}

// Interface returns the capture interface identifier.
func (s *Session) Interface() string { return s.iface }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stats returns a snapshot of the frame counters.
func (s *Session) Stats() Stats {
	return Stats{
		Frames:    s.frames.Load(),
		Decoded:   s.decoded.Load(),
		Malformed: s.malformed.Load(),
		Ignored:   s.ignored.Load(),
	}
}

// Start opens the capture handle and launches the capture loop. On open
// failure the session remains Idle and the error wraps
// ErrCaptureUnavailable.
func (s *Session) Start(sink Sink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return ErrSessionActive
	}

	handle, err := pcap.OpenLive(s.iface, s.cfg.SnapLen, s.cfg.Promiscuous, s.cfg.ReadTimeout)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCaptureUnavailable, s.iface, err)
	}
	if err := handle.SetBPFFilter(bpfFilter); err != nil {
		handle.Close()
		return fmt.Errorf("%w: %s: bpf: %v", ErrCaptureUnavailable, s.iface, err)
	}

	s.state = StateCapturing
	s.stopCh = make(chan struct{})
	s.wg.Add(1)
	s.log.Info("capture started", zap.Int32("snaplen", s.cfg.SnapLen))

	go s.loop(handle, sink)
	return nil
}

// Stop signals the capture loop and waits for it to exit. It is safe to call
// from any goroutine, repeatedly, and in any state; after it returns no
// further updates are delivered to the sink.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.state == StateIdle {
		s.mu.Unlock()
		s.wg.Wait() // a self-terminated loop may still be unwinding
		return
	}
	if s.state == StateCapturing {
		s.state = StateStopping
		close(s.stopCh)
	}
	s.mu.Unlock()

	s.wg.Wait()

	s.mu.Lock()
	s.state = StateIdle
	s.mu.Unlock()
	s.log.Info("capture stopped")
}

// loop drains the handle until stopped or the handle dies. The pcap read
// timeout guarantees the stop check runs at least once per ReadTimeout.
func (s *Session) loop(handle *pcap.Handle, sink Sink) {
	defer s.wg.Done()
	defer handle.Close()

	src := gopacket.NewPacketSource(handle, handle.LinkType())
	src.DecodeOptions = gopacket.NoCopy

	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		pkt, err := src.NextPacket()
		if err != nil {
			if err == pcap.NextErrorTimeoutExpired {
				continue
			}
			select {
			case <-s.stopCh:
				// Close raced with a pending read; this is a normal stop.
				return
			default:
			}
			s.mu.Lock()
			s.state = StateIdle
			s.mu.Unlock()
			s.log.Warn("capture interrupted", zap.Error(err))
			sink.HandleCaptureError(s.iface, fmt.Errorf("%w: %s: %v", ErrCaptureInterrupted, s.iface, err))
			return
		}

		ts := pkt.Metadata().Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}
		if rec := s.process(pkt, ts); rec != nil {
			sink.HandleUpdate(rec)
		}
	}
}

// process classifies and decodes one frame. A malformed frame is counted and
// dropped; it never propagates as an error.
func (s *Session) process(pkt gopacket.Packet, ts time.Time) *models.NeighborRecord {
	s.frames.Add(1)

	ethLayer := pkt.Layer(layers.LayerTypeEthernet)
	if ethLayer == nil {
		s.ignored.Add(1)
		return nil
	}
	eth := ethLayer.(*layers.Ethernet)

	var (
		rec *models.NeighborRecord
		err error
	)
	switch class := Classify(eth.DstMAC, eth.EthernetType); class {
	case ClassCDP:
		rec, err = s.cdp.Parse(eth.Payload, s.iface)
	case ClassLLDP:
		rec, err = s.lldp.Parse(eth.Payload, s.iface)
	default:
		s.ignored.Add(1)
		return nil
	}
	if err != nil {
		s.malformed.Add(1)
		s.log.Debug("frame dropped", zap.Error(err))
		return nil
	}

	rec.SourceMAC = eth.SrcMAC.String()
	rec.FirstSeen = ts
	rec.LastSeen = ts
	s.decoded.Add(1)
	return rec
}
