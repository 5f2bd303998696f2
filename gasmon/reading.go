package gasmon

import "time"

type Species int

const (
	CO Species = iota
	CH4
	CO2
)

// AllSpecies lists the gas channels in sampling order.
var AllSpecies = [...]Species{CO, CH4, CO2}

func (s Species) String() string {
	switch s {
	case CO:
		return "CO"
	case CH4:
		return "CH4"
	case CO2:
		return "CO2"
	}
	return "unknown"
}

// Level is the severity of a reading. Levels are ordered: Normal < Warning < Alert.
type Level int

const (
	Normal Level = iota
	Warning
	Alert
)

func (l Level) String() string {
	switch l {
	case Normal:
		return "normal"
	case Warning:
		return "warning"
	case Alert:
		return "alert"
	}
	return "unknown"
}

type GasReading struct {
	Species Species

	// units: ppm
	PPM uint32

	Level Level

	// set when the sensor faulted and PPM is the last known good value
	Stale bool

	At time.Time
}
