package gasmon

// Recorder observes the pipeline and the link, for metrics and archives.
// Calls happen on the hot path and must not block.
type Recorder interface {
	Reading(r GasReading)
	Battery(percent int)
	SensorFault(sp Species)
	NotifyFailed(ch Characteristic)
	Command(payload []byte)
	LinkState(s LinkState)
}

// NopRecorder can be embedded to implement only part of Recorder.
type NopRecorder struct{}

func (NopRecorder) Reading(GasReading)          {}
func (NopRecorder) Battery(int)                 {}
func (NopRecorder) SensorFault(Species)         {}
func (NopRecorder) NotifyFailed(Characteristic) {}
func (NopRecorder) Command([]byte)              {}
func (NopRecorder) LinkState(LinkState)         {}

// Recorders fans every call out to each member.
type Recorders []Recorder

func (rs Recorders) Reading(r GasReading) {
	for _, rec := range rs {
		rec.Reading(r)
	}
}

func (rs Recorders) Battery(percent int) {
	for _, rec := range rs {
		rec.Battery(percent)
	}
}

func (rs Recorders) SensorFault(sp Species) {
	for _, rec := range rs {
		rec.SensorFault(sp)
	}
}

func (rs Recorders) NotifyFailed(ch Characteristic) {
	for _, rec := range rs {
		rec.NotifyFailed(ch)
	}
}

func (rs Recorders) Command(payload []byte) {
	for _, rec := range rs {
		rec.Command(payload)
	}
}

func (rs Recorders) LinkState(s LinkState) {
	for _, rec := range rs {
		rec.LinkState(s)
	}
}
