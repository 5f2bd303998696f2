package adc

import (
	"bufio"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.bug.st/serial"

	"github.com/alepar/gasmon/gasmon"
)

// ErrNoData is returned before the bridge sent a complete frame, or when the
// last frame is older than the staleness limit.
var ErrNoData = errors.New("no recent adc frame")

// Serial reads frames from a microcontroller that forwards its raw ADC counts
// over a serial line, one frame per line: "<co> <ch4> <co2> <battery>".
type Serial struct {
	port   serial.Port
	maxAge time.Duration
	log    log.FieldLogger

	mu     sync.Mutex
	counts [4]uint16
	at     time.Time
	done   chan struct{}
}

func OpenSerial(port string, baud int, maxAge time.Duration, logger log.FieldLogger) (*Serial, error) {
	p, err := serial.Open(port, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", port)
	}
	s := &Serial{port: p, maxAge: maxAge, log: logger, done: make(chan struct{})}
	go s.loop()
	return s, nil
}

func (s *Serial) loop() {
	defer close(s.done)
	scanner := bufio.NewScanner(s.port)
	for scanner.Scan() {
		counts, err := ParseFrame(scanner.Text())
		if err != nil {
			s.log.Debugf("dropping frame: %s", err)
			continue
		}
		s.mu.Lock()
		s.counts = counts
		s.at = time.Now()
		s.mu.Unlock()
	}
	if err := scanner.Err(); err != nil {
		s.log.Errorf("serial adc stopped: %s", err)
	}
}

// ParseFrame decodes one line of four unsigned counts.
func ParseFrame(line string) ([4]uint16, error) {
	var counts [4]uint16
	fields := strings.Fields(line)
	if len(fields) != len(counts) {
		return counts, errors.Errorf("expected %d fields, got %d", len(counts), len(fields))
	}
	for i, f := range fields {
		v, err := strconv.ParseUint(f, 10, 16)
		if err != nil {
			return counts, errors.Wrapf(err, "field %d", i)
		}
		counts[i] = uint16(v)
	}
	return counts, nil
}

func (s *Serial) Input(sp gasmon.Species) gasmon.AnalogInput {
	return s.input(int(sp))
}

func (s *Serial) Battery() gasmon.AnalogInput {
	return s.input(3)
}

func (s *Serial) input(i int) gasmon.AnalogInput {
	return gasmon.AnalogInputFunc(func() (uint16, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.at.IsZero() || (s.maxAge > 0 && time.Since(s.at) > s.maxAge) {
			return 0, ErrNoData
		}
		return s.counts[i], nil
	})
}

func (s *Serial) Close() error {
	err := s.port.Close()
	<-s.done
	return err
}
