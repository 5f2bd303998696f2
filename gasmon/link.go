package gasmon

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type LinkState int32

const (
	Idle LinkState = iota
	Advertising
	Connected
	Disconnecting
)

func (s LinkState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Advertising:
		return "advertising"
	case Connected:
		return "connected"
	case Disconnecting:
		return "disconnecting"
	}
	return "unknown"
}

// Session is the lifetime of one connected central.
type Session struct {
	ID            string
	Peer          Peer
	EstablishedAt time.Time
}

// Link owns the advertising/connection lifecycle and the characteristic
// cells. At most one session exists at a time; nothing is advertised while a
// central is connected.
type Link struct {
	radio    Radio
	adv      Advertisement
	state    *State
	diag     Diagnostics
	rec      Recorder
	log      log.FieldLogger
	period   time.Duration
	cells    [numCharacteristics]*Cell
	commands chan []byte

	mu      sync.Mutex
	current LinkState
	session *Session
	active  int32
}

func NewLink(radio Radio, state *State, cfg TelemetryConfig, diag Diagnostics, rec Recorder, logger log.FieldLogger) *Link {
	l := &Link{
		radio:    radio,
		adv:      DefaultAdvertisement,
		state:    state,
		diag:     diag,
		rec:      rec,
		log:      logger,
		period:   cfg.Period,
		commands: make(chan []byte, cfg.CommandQueue),
	}
	for i := range l.cells {
		l.cells[i] = &Cell{}
	}
	return l
}

func (l *Link) State() LinkState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

// Session returns the active session, or nil while not connected.
func (l *Link) Session() *Session {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.session
}

// Cell exposes a characteristic's backing cell.
func (l *Link) Cell(ch Characteristic) *Cell {
	return l.cells[ch]
}

func (l *Link) Value(ch Characteristic) []byte {
	if ch < 0 || ch >= numCharacteristics {
		return nil
	}
	return l.cells[ch].Value()
}

// Write handles an inbound write. Only the command characteristic is
// writable and payloads are dropped while no session exists. When the
// command queue is full the oldest payload is discarded.
func (l *Link) Write(ch Characteristic, data []byte) {
	if !ch.Writable() || l.Session() == nil {
		return
	}
	payload := append([]byte(nil), data...)
	l.cells[ch].Set(payload)
	for {
		select {
		case l.commands <- payload:
			return
		default:
		}
		select {
		case <-l.commands:
		default:
		}
	}
}

func (l *Link) setState(s LinkState) {
	l.mu.Lock()
	prev := l.current
	l.current = s
	l.mu.Unlock()

	if prev != s {
		l.log.Debugf("link %s -> %s", prev, s)
		l.rec.LinkState(s)
	}
}

// Run advertises, serves one central at a time and returns to advertising
// after each disconnect. It returns nil when ctx is cancelled and an error
// for faults it cannot recover from.
func (l *Link) Run(ctx context.Context) error {
	defer l.setState(Idle)

	if err := l.radio.Serve(l); err != nil {
		return errors.Wrap(err, "failed to register gas sensing service")
	}

	for {
		l.setState(Advertising)
		peer, err := l.radio.Advertise(ctx, l.adv)
		if ctx.Err() != nil {
			if peer != nil {
				_ = peer.Close()
			}
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "advertising failed")
		}

		if err := l.serve(ctx, peer); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (l *Link) serve(ctx context.Context, peer Peer) error {
	sess := &Session{
		ID:            uuid.New().String(),
		Peer:          peer,
		EstablishedAt: time.Now(),
	}
	if n := atomic.AddInt32(&l.active, 1); n != 1 {
		atomic.AddInt32(&l.active, -1)
		_ = peer.Close()
		return errors.Errorf("refusing session %s: %d sessions active", sess.ID, n-1)
	}
	defer atomic.AddInt32(&l.active, -1)

	logger := l.log.WithFields(log.Fields{"peer": peer.Address(), "session": sess.ID})
	logger.Infof("connection from %s", peer.Address())

	l.drainCommands()
	for _, c := range l.cells {
		c.ResetNotified()
	}
	l.mu.Lock()
	l.session = sess
	l.mu.Unlock()
	l.setState(Connected)

	sctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(sctx)
	g.Go(guard("telemetry", func() error { return l.publish(gctx, sess, logger) }))
	g.Go(guard("commands", func() error { return l.receive(gctx, sess, logger) }))

	select {
	case <-peer.Disconnected():
		logger.Infof("disconnected after %s", time.Since(sess.EstablishedAt).Round(time.Millisecond))
	case <-gctx.Done():
	}

	l.setState(Disconnecting)
	cancel()
	fault := g.Wait()
	if err := peer.Close(); err != nil {
		logger.Debugf("closing connection: %s", err)
	}

	l.mu.Lock()
	l.session = nil
	l.mu.Unlock()

	if fault != nil {
		return errors.Wrapf(fault, "session %s failed", sess.ID)
	}
	return nil
}

func (l *Link) drainCommands() {
	for {
		select {
		case <-l.commands:
		default:
			return
		}
	}
}
