// Package adc provides gasmon.AnalogInput front ends for real converters.
package adc

import (
	"math"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ads1x15"
	"periph.io/x/host/v3"

	"github.com/alepar/gasmon/gasmon"
)

// ADS1115Opts selects the bus and converter.
type ADS1115Opts struct {
	Bus     string // "" picks the first I2C bus
	Address uint16
	VRef    float64 // voltage mapped to the full 16-bit count
}

var DefaultADS1115Opts = ADS1115Opts{
	Address: 0x48,
	VRef:    3.3,
}

// ADS1115 reads the four single ended inputs of an ADS1115: CO, CH4 and CO2
// on A0..A2 and the battery sense on A3.
type ADS1115 struct {
	bus  i2c.BusCloser
	pins [4]ads1x15.PinADC
	vref float64
}

func OpenADS1115(opts ADS1115Opts) (*ADS1115, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "failed to init periph host")
	}
	bus, err := i2creg.Open(opts.Bus)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open i2c bus")
	}

	dopts := ads1x15.DefaultOpts
	dopts.I2cAddress = opts.Address
	dev, err := ads1x15.NewADS1115(bus, &dopts)
	if err != nil {
		_ = bus.Close()
		return nil, errors.Wrap(err, "failed to open ads1115")
	}

	a := &ADS1115{bus: bus, vref: opts.VRef}
	channels := [4]ads1x15.Channel{ads1x15.Channel0, ads1x15.Channel1, ads1x15.Channel2, ads1x15.Channel3}
	for i, ch := range channels {
		// 4.096V full scale covers a 3.3V reference
		pin, err := dev.PinForChannel(ch, 4096*physic.MilliVolt, 8*physic.Hertz, ads1x15.BestQuality)
		if err != nil {
			_ = a.Close()
			return nil, errors.Wrapf(err, "failed to configure channel %d", i)
		}
		a.pins[i] = pin
	}
	return a, nil
}

// Input returns the gas channel of sp.
func (a *ADS1115) Input(sp gasmon.Species) gasmon.AnalogInput {
	return a.input(int(sp))
}

func (a *ADS1115) Battery() gasmon.AnalogInput {
	return a.input(3)
}

func (a *ADS1115) input(i int) gasmon.AnalogInput {
	return gasmon.AnalogInputFunc(func() (uint16, error) {
		s, err := a.pins[i].Read()
		if err != nil {
			return 0, errors.Wrapf(err, "failed to read channel %d", i)
		}
		return Counts(float64(s.V)/float64(physic.Volt), a.vref), nil
	})
}

func (a *ADS1115) Close() error {
	for _, p := range a.pins {
		if p != nil {
			_ = p.Halt()
		}
	}
	return a.bus.Close()
}

// Counts scales a voltage onto the 16-bit range of vref, saturating at both ends.
func Counts(volts, vref float64) uint16 {
	if vref <= 0 || volts <= 0 || math.IsNaN(volts) {
		return 0
	}
	c := volts / vref * math.MaxUint16
	if c >= math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(math.Round(c))
}
