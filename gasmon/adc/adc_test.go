package adc

import (
	"math"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alepar/gasmon/gasmon"
)

func TestParseFrame(t *testing.T) {
	counts, err := ParseFrame("12 65535 0 40000")
	require.NoError(t, err)
	assert.Equal(t, [4]uint16{12, 65535, 0, 40000}, counts)

	counts, err = ParseFrame("  1\t2 3   4 ")
	require.NoError(t, err)
	assert.Equal(t, [4]uint16{1, 2, 3, 4}, counts)
}

func TestParseFrameErrors(t *testing.T) {
	for _, line := range []string{
		"",
		"1 2 3",
		"1 2 3 4 5",
		"1 2 3 65536",
		"1 2 -3 4",
		"1 2 x 4",
	} {
		_, err := ParseFrame(line)
		assert.Error(t, err, line)
	}
}

func TestCounts(t *testing.T) {
	assert.Equal(t, uint16(0), Counts(0, 3.3))
	assert.Equal(t, uint16(0), Counts(-0.2, 3.3))
	assert.Equal(t, uint16(0), Counts(math.NaN(), 3.3))
	assert.Equal(t, uint16(0), Counts(1, 0))
	assert.Equal(t, uint16(math.MaxUint16), Counts(3.3, 3.3))
	assert.Equal(t, uint16(math.MaxUint16), Counts(4.1, 3.3))
	assert.Equal(t, uint16(32768), Counts(1, 2))
}

func TestCountsRoundTrip(t *testing.T) {
	cfg := gasmon.Default().Sampler
	s := gasmon.NewSampler(cfg, nil, nil)
	for _, v := range []float64{0.1, 0.5, 1.2, 2.5, 3.2} {
		assert.InDelta(t, v, s.Volts(Counts(v, cfg.VRef)), cfg.VRef/math.MaxUint16)
	}
}

func newTestSerial(maxAge time.Duration) *Serial {
	logger, _ := test.NewNullLogger()
	return &Serial{maxAge: maxAge, log: logger, done: make(chan struct{})}
}

func TestSerialInputs(t *testing.T) {
	s := newTestSerial(time.Minute)

	_, err := s.Input(gasmon.CO).Read()
	assert.Equal(t, ErrNoData, err)

	s.counts = [4]uint16{100, 200, 300, 400}
	s.at = time.Now()

	for sp, want := range map[gasmon.Species]uint16{gasmon.CO: 100, gasmon.CH4: 200, gasmon.CO2: 300} {
		got, err := s.Input(sp).Read()
		require.NoError(t, err)
		assert.Equal(t, want, got, sp.String())
	}
	got, err := s.Battery().Read()
	require.NoError(t, err)
	assert.Equal(t, uint16(400), got)
}

func TestSerialStaleFrame(t *testing.T) {
	s := newTestSerial(time.Second)
	s.counts = [4]uint16{1, 2, 3, 4}
	s.at = time.Now().Add(-2 * time.Second)

	_, err := s.Battery().Read()
	assert.Equal(t, ErrNoData, err)
}
