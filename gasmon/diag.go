package gasmon

import (
	"fmt"
	"io"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Diagnostics is the best-effort side channel for faults and inbound commands.
// Implementations must never block the caller.
type Diagnostics interface {
	Logf(format string, args ...interface{})
}

type nopDiagnostics struct{}

func (nopDiagnostics) Logf(string, ...interface{}) {}

// NopDiagnostics discards everything; it is the default.
var NopDiagnostics Diagnostics = nopDiagnostics{}

// LogDiagnostics queues lines for a background writer and drops them when the
// queue is full or the sink is closed.
type LogDiagnostics struct {
	logger *log.Logger
	done   chan struct{}

	mu     sync.RWMutex
	lines  chan string
	closed bool
}

func NewLogDiagnostics(w io.Writer, queue int) *LogDiagnostics {
	if queue <= 0 {
		queue = 64
	}
	logger := log.New()
	logger.SetOutput(w)
	logger.SetFormatter(&log.TextFormatter{FullTimestamp: true, DisableColors: true})

	d := &LogDiagnostics{
		logger: logger,
		lines:  make(chan string, queue),
		done:   make(chan struct{}),
	}
	go d.loop()
	return d
}

func (d *LogDiagnostics) loop() {
	defer close(d.done)
	for line := range d.lines {
		d.logger.Info(line)
	}
}

func (d *LogDiagnostics) Logf(format string, args ...interface{}) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}
	select {
	case d.lines <- fmt.Sprintf(format, args...):
	default:
	}
}

// Close writes out queued lines and waits for them. It may be called more
// than once.
func (d *LogDiagnostics) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.lines)
	}
	d.mu.Unlock()
	<-d.done
}
