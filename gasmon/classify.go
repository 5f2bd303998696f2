package gasmon

// Thresholds are inclusive lower bounds, in ppm.
type Thresholds struct {
	Warning uint32
	Alert   uint32
}

var thresholds = map[Species]Thresholds{
	CO:  {Warning: 50, Alert: 200},
	CH4: {Warning: 5000, Alert: 50000},
	CO2: {Warning: 5000, Alert: 30000},
}

// ThresholdsFor returns the warning and alert thresholds of a species.
func ThresholdsFor(s Species) Thresholds {
	return thresholds[s]
}

// Classify maps a concentration to a severity. There is no hysteresis: a value
// oscillating around a threshold flips level on every sample.
func Classify(s Species, ppm uint32) Level {
	t, ok := thresholds[s]
	if !ok {
		return Normal
	}
	switch {
	case ppm >= t.Alert:
		return Alert
	case ppm >= t.Warning:
		return Warning
	}
	return Normal
}

// Overall is the highest level across readings. Battery is not taken into account.
func Overall(readings []GasReading) Level {
	level := Normal
	for _, r := range readings {
		if r.Level > level {
			level = r.Level
		}
	}
	return level
}

// BatteryLevel grades a battery percentage for the display.
func BatteryLevel(percent int) Level {
	switch {
	case percent <= 10:
		return Alert
	case percent <= 20:
		return Warning
	}
	return Normal
}
