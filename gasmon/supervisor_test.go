package gasmon

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForCancel(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func newSupervisor(tasks ...Task) (*Supervisor, *recordingDiagnostics, *int32) {
	logger, _ := test.NewNullLogger()
	diag := &recordingDiagnostics{}
	var resets int32
	return &Supervisor{
		Tasks: tasks,
		Diag:  diag,
		Log:   logger,
		Reset: func(error) { atomic.AddInt32(&resets, 1) },
	}, diag, &resets
}

func TestSupervisorCleanShutdown(t *testing.T) {
	s, diag, resets := newSupervisor(
		Task{Name: "a", Run: waitForCancel},
		Task{Name: "b", Run: waitForCancel},
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("supervisor did not stop")
	}
	assert.Equal(t, int32(0), atomic.LoadInt32(resets))
	assert.Empty(t, diag.Lines())
}

func TestSupervisorResetsOnFault(t *testing.T) {
	var siblingStopped int32
	s, diag, resets := newSupervisor(
		Task{Name: "link", Run: func(context.Context) error { return errors.New("radio wedged") }},
		Task{Name: "sampling", Run: func(ctx context.Context) error {
			<-ctx.Done()
			atomic.StoreInt32(&siblingStopped, 1)
			return nil
		}},
	)

	err := s.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "link: radio wedged")
	assert.Equal(t, int32(1), atomic.LoadInt32(&siblingStopped))
	assert.Equal(t, int32(1), atomic.LoadInt32(resets))

	lines := diag.Lines()
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "radio wedged")
}

func TestSupervisorResetsOnce(t *testing.T) {
	s, _, resets := newSupervisor(
		Task{Name: "a", Run: func(context.Context) error { return errors.New("first") }},
		Task{Name: "b", Run: func(context.Context) error { return errors.New("second") }},
	)

	require.Error(t, s.Run(context.Background()))
	assert.Equal(t, int32(1), atomic.LoadInt32(resets))
}

func TestSupervisorRecoversPanics(t *testing.T) {
	s, _, resets := newSupervisor(
		Task{Name: "display", Run: func(context.Context) error {
			var m map[string]int
			m["boom"]++
			return nil
		}},
		Task{Name: "battery", Run: waitForCancel},
	)

	err := s.Run(context.Background())
	require.Error(t, err)

	var p *TaskPanic
	require.True(t, errors.As(err, &p))
	assert.Equal(t, "display", p.Task)
	assert.NotEmpty(t, p.Stack)
	assert.Equal(t, int32(1), atomic.LoadInt32(resets))
}

func TestSupervisorIgnoresCancellationErrors(t *testing.T) {
	s, _, resets := newSupervisor(
		Task{Name: "a", Run: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}},
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, s.Run(ctx))
	assert.Equal(t, int32(0), atomic.LoadInt32(resets))
}

func TestSupervisorRunsPipelineAndLink(t *testing.T) {
	logger, _ := test.NewNullLogger()
	cfg := Default()
	cfg.Sampler.Period = 2 * time.Millisecond
	cfg.Battery.Period = time.Millisecond
	cfg.Telemetry.Period = 4 * time.Millisecond

	state := NewState()
	sampler := NewSampler(cfg.Sampler, map[Species]AnalogInput{
		CO:  constInput(1),
		CH4: constInput(1),
		CO2: constInput(1),
	}, constInput(40000))
	pipeline := NewPipeline(cfg, sampler, state, &recordingDisplay{}, NopRecorder{}, logger)
	radio := newFakeRadio()
	link := NewLink(radio, state, cfg.Telemetry, NopDiagnostics, NopRecorder{}, logger)

	s, _, resets := newSupervisor(
		Task{Name: "sampling", Run: pipeline.RunSampling},
		Task{Name: "battery", Run: pipeline.RunBattery},
		Task{Name: "link", Run: link.Run},
	)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, radio.isAdvertising, time.Second, time.Millisecond)
	radio.peers <- newFakePeer("central")
	require.Eventually(t, func() bool {
		co2 := radio.notified(CharCO2)
		battery := radio.notified(CharBattery)
		return len(co2) > 0 && len(battery) > 0 &&
			assert.ObjectsAreEqual(EncodeUint16(DefaultCO2Offset), co2[len(co2)-1]) &&
			battery[len(battery)-1][0] > 0
	}, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("supervisor did not stop")
	}
	assert.Equal(t, int32(0), atomic.LoadInt32(resets))
}
