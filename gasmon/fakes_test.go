package gasmon

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
)

// scriptedInput replays counts in order and repeats the last one.
type scriptedInput struct {
	mu     sync.Mutex
	counts []uint16
	errs   []error
	i      int
}

func (s *scriptedInput) Read() (uint16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.i
	if i < len(s.counts)-1 {
		s.i++
	}
	if i < len(s.errs) && s.errs[i] != nil {
		return 0, s.errs[i]
	}
	return s.counts[i], nil
}

func constInput(v uint16) AnalogInput {
	return AnalogInputFunc(func() (uint16, error) { return v, nil })
}

var errADC = errors.New("i2c nack")

type renderedFrame struct {
	line1, line2 string
	color        Color
}

type recordingDisplay struct {
	mu     sync.Mutex
	frames []renderedFrame
}

func (d *recordingDisplay) Render(line1, line2 string, c Color) {
	d.mu.Lock()
	d.frames = append(d.frames, renderedFrame{line1, line2, c})
	d.mu.Unlock()
}

func (d *recordingDisplay) last() renderedFrame {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frames[len(d.frames)-1]
}

type recordingDiagnostics struct {
	mu    sync.Mutex
	lines []string
}

func (d *recordingDiagnostics) Logf(format string, args ...interface{}) {
	d.mu.Lock()
	d.lines = append(d.lines, fmt.Sprintf(format, args...))
	d.mu.Unlock()
}

func (d *recordingDiagnostics) Lines() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.lines...)
}

type countingRecorder struct {
	NopRecorder
	mu       sync.Mutex
	faults   map[Species]int
	notifyKO map[Characteristic]int
	commands int
	states   []LinkState
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{faults: map[Species]int{}, notifyKO: map[Characteristic]int{}}
}

func (r *countingRecorder) SensorFault(sp Species) {
	r.mu.Lock()
	r.faults[sp]++
	r.mu.Unlock()
}

func (r *countingRecorder) NotifyFailed(ch Characteristic) {
	r.mu.Lock()
	r.notifyKO[ch]++
	r.mu.Unlock()
}

func (r *countingRecorder) Command([]byte) {
	r.mu.Lock()
	r.commands++
	r.mu.Unlock()
}

func (r *countingRecorder) LinkState(s LinkState) {
	r.mu.Lock()
	r.states = append(r.states, s)
	r.mu.Unlock()
}

func (r *countingRecorder) Faults(sp Species) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.faults[sp]
}

func (r *countingRecorder) NotifyFailures(ch Characteristic) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.notifyKO[ch]
}

func (r *countingRecorder) Commands() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.commands
}

func (r *countingRecorder) States() []LinkState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]LinkState(nil), r.states...)
}
