package gasmon

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// CommandReply acknowledges every write to the command characteristic.
var CommandReply = []byte("Received!")

// Cell is the value of one characteristic. The version counts changes so a
// value is notified at most once unless it changes again.
type Cell struct {
	mu       sync.Mutex
	value    []byte
	version  uint64
	notified uint64
}

// Set stores v, bumping the version only when the content differs.
func (c *Cell) Set(v []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.version > 0 && bytes.Equal(c.value, v) {
		return
	}
	c.value = append(c.value[:0:0], v...)
	c.version++
}

func (c *Cell) Value() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.value...)
}

// Pending returns the value and its version when it was not notified yet.
func (c *Cell) Pending() ([]byte, uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.version == 0 || c.version == c.notified {
		return nil, 0, false
	}
	return append([]byte(nil), c.value...), c.version, true
}

func (c *Cell) MarkNotified(version uint64) {
	c.mu.Lock()
	if version > c.notified {
		c.notified = version
	}
	c.mu.Unlock()
}

// ResetNotified makes the current value pending again, for a new session.
func (c *Cell) ResetNotified() {
	c.mu.Lock()
	c.notified = 0
	c.mu.Unlock()
}

// EncodeUint16 is the wire format of the telemetry characteristics: two bytes,
// little-endian, saturating at 65535.
func EncodeUint16(v uint32) []byte {
	if v > math.MaxUint16 {
		v = math.MaxUint16
	}
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, uint16(v))
	return b
}

func (l *Link) telemetryValue(ch Characteristic) uint32 {
	switch ch {
	case CharCO:
		r, _ := l.state.Reading(CO)
		return r.PPM
	case CharCH4:
		r, _ := l.state.Reading(CH4)
		return r.PPM
	case CharCO2:
		r, _ := l.state.Reading(CO2)
		return r.PPM
	case CharBattery:
		return uint32(l.state.Battery())
	}
	return 0
}

// publish refreshes one telemetry characteristic per tick, cycling through
// all of them once per period so updates are staggered.
func (l *Link) publish(ctx context.Context, sess *Session, logger log.FieldLogger) error {
	interval := l.period / time.Duration(len(TelemetryCharacteristics))
	if interval <= 0 {
		interval = l.period
	}
	tick := time.NewTicker(interval)
	defer tick.Stop()

	next := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
			l.refresh(sess, TelemetryCharacteristics[next], logger)
			next = (next + 1) % len(TelemetryCharacteristics)
		}
	}
}

func (l *Link) refresh(sess *Session, ch Characteristic, logger log.FieldLogger) {
	cell := l.cells[ch]
	cell.Set(EncodeUint16(l.telemetryValue(ch)))

	value, version, ok := cell.Pending()
	if !ok {
		return
	}
	if err := l.radio.Notify(sess.Peer, ch, value); err != nil {
		// retried on the next tick since the cell stays pending
		l.rec.NotifyFailed(ch)
		logger.WithField("characteristic", ch).Debugf("notify failed: %s", err)
		return
	}
	cell.MarkNotified(version)
}

// receive acknowledges every command write and forwards the payload to the
// diagnostics sink. Commands are not interpreted.
func (l *Link) receive(ctx context.Context, sess *Session, logger log.FieldLogger) error {
	cell := l.cells[CharCommand]
	for {
		select {
		case <-ctx.Done():
			return nil
		case payload := <-l.commands:
			cell.Set(CommandReply)
			if err := l.radio.Notify(sess.Peer, CharCommand, CommandReply); err != nil {
				l.rec.NotifyFailed(CharCommand)
				logger.Debugf("command ack failed: %s", err)
			}

			l.rec.Command(payload)
			l.diag.Logf("command from %s: %q", sess.Peer.Address(), payload)
			logger.Infof("data received: %s", payload)
		}
	}
}
