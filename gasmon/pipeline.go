package gasmon

import (
	"context"
	"math"
	"time"

	log "github.com/sirupsen/logrus"
)

// Pipeline samples the gas and battery channels, converts and classifies the
// readings, publishes them to State and drives the display.
type Pipeline struct {
	Sampler  *Sampler
	Curves   map[Species]CalibrationParameters
	State    *State
	Display  Display
	Recorder Recorder
	Log      log.FieldLogger

	SamplePeriod  time.Duration
	BatteryPeriod time.Duration
	Battery       BatteryConfig

	// owned by the sampling loop
	lastGood map[Species]GasReading
}

func NewPipeline(cfg *Config, sampler *Sampler, state *State, display Display, rec Recorder, logger log.FieldLogger) *Pipeline {
	return &Pipeline{
		Sampler:       sampler,
		Curves:        Curves(cfg.CO2Offset),
		State:         state,
		Display:       display,
		Recorder:      rec,
		Log:           logger,
		SamplePeriod:  cfg.Sampler.Period,
		BatteryPeriod: cfg.Battery.Period,
		Battery:       cfg.Battery,
		lastGood:      map[Species]GasReading{},
	}
}

// Read samples one species. A sensor fault yields the last good reading
// marked stale and stamped with now, or a zero stale reading when there is
// none yet. Tolerated saturated samples are reported but never become the
// fallback value.
func (p *Pipeline) Read(sp Species, now time.Time) GasReading {
	rs, err := p.Sampler.Sample(sp)
	if err != nil {
		p.Log.WithField("species", sp).Warnf("sensor fault: %s", err)
		p.Recorder.SensorFault(sp)

		r, ok := p.lastGood[sp]
		if !ok {
			r = GasReading{Species: sp, Level: Normal}
		}
		r.Stale = true
		r.At = now
		return r
	}

	ppm := p.Curves[sp].PPM(rs)
	r := GasReading{
		Species: sp,
		PPM:     ppm,
		Level:   Classify(sp, ppm),
		At:      now,
	}
	if !p.Sampler.Saturated(sp) {
		p.lastGood[sp] = r
	}
	return r
}

// Cycle runs one sample, convert, classify and present pass.
func (p *Pipeline) Cycle(now time.Time) []GasReading {
	readings := make([]GasReading, 0, len(AllSpecies))
	for _, sp := range AllSpecies {
		r := p.Read(sp, now)
		p.State.SetReading(r)
		p.Recorder.Reading(r)
		readings = append(readings, r)
	}

	battery := p.State.Battery()
	line1, line2 := StatusLines(readings, battery)
	p.Display.Render(line1, line2, LevelColor(Overall(readings)))
	return readings
}

func (p *Pipeline) RunSampling(ctx context.Context) error {
	tick := time.NewTicker(p.SamplePeriod)
	defer tick.Stop()

	p.Cycle(time.Now())
	for {
		select {
		case <-ctx.Done():
			return nil
		case t := <-tick.C:
			p.Cycle(t)
		}
	}
}

// RunBattery feeds the rolling window from the battery sense channel and is
// the only writer of the battery estimate.
func (p *Pipeline) RunBattery(ctx context.Context) error {
	window := NewRollingAverage(p.Battery.Window)
	tick := time.NewTicker(p.BatteryPeriod)
	defer tick.Stop()

	p.BatteryStep(window)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
			p.BatteryStep(window)
		}
	}
}

// BatteryStep pushes one battery sample into window and updates State.
// It reports false when the battery channel could not be read.
func (p *Pipeline) BatteryStep(window *RollingAverage) bool {
	volts, err := p.Sampler.BatteryVolts()
	if err != nil {
		p.Log.Debugf("battery sample skipped: %s", err)
		return false
	}
	window.Push(BatteryPercent(volts, p.Battery.EmptyVolts, p.Battery.FullVolts))

	percent := clamp(int(math.Round(window.Average())), 0, 100)
	p.State.SetBattery(percent)
	p.Recorder.Battery(percent)
	return true
}
