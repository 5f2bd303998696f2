package gasmon

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
)

const fullScale = math.MaxUint16

// AnalogInput is one ADC channel returning a 16-bit unsigned count.
type AnalogInput interface {
	Read() (uint16, error)
}

// AnalogInputFunc adapts a function to AnalogInput.
type AnalogInputFunc func() (uint16, error)

func (f AnalogInputFunc) Read() (uint16, error) { return f() }

// SensorFault reports a channel that failed to read or stayed saturated for
// too many consecutive samples. It is recoverable.
type SensorFault struct {
	Species Species
	Raw     uint16
	Cycles  int
	Err     error
}

func (f *SensorFault) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s sensor fault: %s", f.Species, f.Err)
	}
	return fmt.Sprintf("%s sensor stuck at %d for %d cycles", f.Species, f.Raw, f.Cycles)
}

func (f *SensorFault) Unwrap() error { return f.Err }

// IsSensorFault reports whether err is, or wraps, a SensorFault.
func IsSensorFault(err error) bool {
	var f *SensorFault
	return errors.As(err, &f)
}

type Sampler struct {
	cfg     SamplerConfig
	inputs  map[Species]AnalogInput
	battery AnalogInput

	// consecutive saturated samples per channel, touched only by the gas loop
	saturated map[Species]int
}

func NewSampler(cfg SamplerConfig, inputs map[Species]AnalogInput, battery AnalogInput) *Sampler {
	return &Sampler{
		cfg:       cfg,
		inputs:    inputs,
		battery:   battery,
		saturated: map[Species]int{},
	}
}

// Volts converts a raw count to the voltage seen by the ADC, always within [0, VRef].
func (s *Sampler) Volts(raw uint16) float64 {
	return float64(raw) / fullScale * s.cfg.VRef
}

// Resistance turns an ADC voltage into the sensor resistance in load resistor
// units. The load resistor cancels out in Rs/Ro so it is left out.
func (s *Sampler) Resistance(v float64) float64 {
	vs := v / s.cfg.DividerRatio
	if vs <= 0 {
		return math.Inf(1)
	}
	return (s.cfg.SupplyVolts - vs) / vs
}

// Sample reads one gas channel and returns its sensor resistance.
func (s *Sampler) Sample(sp Species) (float64, error) {
	in, ok := s.inputs[sp]
	if !ok {
		return 0, &SensorFault{Species: sp, Err: errors.New("no input configured")}
	}
	raw, err := in.Read()
	if err != nil {
		return 0, &SensorFault{Species: sp, Err: errors.Wrap(err, "adc read failed")}
	}

	if raw == 0 || raw == fullScale {
		s.saturated[sp]++
		if n := s.saturated[sp]; n > s.cfg.StuckCycles {
			return 0, &SensorFault{Species: sp, Raw: raw, Cycles: n}
		}
	} else {
		s.saturated[sp] = 0
	}

	return s.Resistance(s.Volts(raw)), nil
}

// Saturated reports whether the last sample of sp sat at 0 or full scale.
func (s *Sampler) Saturated(sp Species) bool {
	return s.saturated[sp] > 0
}

// BatteryVolts reads the battery sense channel and undoes its divider.
func (s *Sampler) BatteryVolts() (float64, error) {
	if s.battery == nil {
		return 0, errors.New("no battery input configured")
	}
	raw, err := s.battery.Read()
	if err != nil {
		return 0, errors.Wrap(err, "battery adc read failed")
	}
	return s.Volts(raw) / s.cfg.BatteryDividerRatio, nil
}

// BatteryPercent maps a battery voltage linearly onto [0, 100].
func BatteryPercent(volts, empty, full float64) float64 {
	if full <= empty {
		return 0
	}
	return clamp((volts-empty)/(full-empty)*100, 0, 100)
}
