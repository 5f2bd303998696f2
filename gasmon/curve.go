package gasmon

import "math"

// CalibrationParameters describe a sensor's log-log response curve
// log10(Rs/Ro) = Slope*log10(ppm) + Intercept.
type CalibrationParameters struct {
	// clean air reference resistance, in load resistor units
	Ro        float64
	Slope     float64
	Intercept float64

	// units: ppm, added after clamping
	Offset uint32
}

// DefaultCO2Offset is the ambient CO2 floor added to the CO2 channel.
const DefaultCO2Offset = 424

var (
	// MQ-7
	COParameters = CalibrationParameters{Ro: 89.80074, Slope: -0.035950986, Intercept: -0.602351089}
	// MQ-4
	CH4Parameters = CalibrationParameters{Ro: 4.4, Slope: -0.318, Intercept: 1.133}
	// MQ-135
	CO2Parameters = CalibrationParameters{Ro: 3.6, Slope: -0.3525, Intercept: 0.7142, Offset: DefaultCO2Offset}
)

// Curves returns the compiled-in calibration set, with co2Offset replacing the
// CO2 baseline.
func Curves(co2Offset uint32) map[Species]CalibrationParameters {
	co2 := CO2Parameters
	co2.Offset = co2Offset
	return map[Species]CalibrationParameters{
		CO:  COParameters,
		CH4: CH4Parameters,
		CO2: co2,
	}
}

// PPM converts a sensor resistance to a concentration. Non-physical results
// (NaN, infinities, zero or negative) become 0 before the offset is applied.
func (p CalibrationParameters) PPM(rs float64) uint32 {
	ppm := math.Pow(10, (math.Log10(rs/p.Ro)-p.Intercept)/p.Slope)

	var v uint32
	switch {
	case math.IsNaN(ppm), math.IsInf(ppm, 0), ppm <= 0:
		v = 0
	case ppm >= math.MaxUint32:
		v = math.MaxUint32
	default:
		v = uint32(ppm)
	}

	if v > math.MaxUint32-p.Offset {
		return math.MaxUint32
	}
	return v + p.Offset
}
