package main

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/alepar/gasmon/gasmon"
)

// metrics to expose to Prometheus
var (
	gaugePPM          = newGauge("gas_ppm", "Gas concentration (units: ppm)", "species")
	gaugeLevel        = newGauge("gas_level", "Gas severity level (0 normal, 1 warning, 2 alert)", "species")
	gaugeStale        = newGauge("gas_stale", "1 when the reading is a last known good fallback", "species")
	gaugeBattery      = prometheus.NewGauge(prometheus.GaugeOpts{Name: "battery_percent", Help: "Smoothed battery estimate (units: %)"})
	gaugeLinkState    = prometheus.NewGauge(prometheus.GaugeOpts{Name: "ble_link_state", Help: "0 idle, 1 advertising, 2 connected, 3 disconnecting"})
	counterFaults     = newCounter("sensor_faults_total", "Sensor samples replaced by a stale value", "species")
	counterNotifyFail = newCounter("ble_notify_failures_total", "Notifications that could not be delivered", "characteristic")
	counterCommands   = prometheus.NewCounter(prometheus.CounterOpts{Name: "ble_commands_total", Help: "Writes received on the command characteristic"})
	counterResets     = prometheus.NewCounter(prometheus.CounterOpts{Name: "device_resets_total", Help: "Resets caused by unhandled faults"})
)

func newGauge(name string, help string, label string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: name,
			Help: help,
		},
		[]string{label},
	)
}

func newCounter(name string, help string, label string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: name,
			Help: help,
		},
		[]string{label},
	)
}

func registerMetrics(reg prometheus.Registerer) {
	reg.MustRegister(gaugePPM)
	reg.MustRegister(gaugeLevel)
	reg.MustRegister(gaugeStale)
	reg.MustRegister(gaugeBattery)
	reg.MustRegister(gaugeLinkState)
	reg.MustRegister(counterFaults)
	reg.MustRegister(counterNotifyFail)
	reg.MustRegister(counterCommands)
	reg.MustRegister(counterResets)
}

// promRecorder feeds the pipeline and link events into the metrics above.
type promRecorder struct{}

func (promRecorder) Reading(r gasmon.GasReading) {
	species := r.Species.String()
	gaugePPM.WithLabelValues(species).Set(float64(r.PPM))
	gaugeLevel.WithLabelValues(species).Set(float64(r.Level))
	stale := 0.0
	if r.Stale {
		stale = 1
	}
	gaugeStale.WithLabelValues(species).Set(stale)
}

func (promRecorder) Battery(percent int) {
	gaugeBattery.Set(float64(percent))
}

func (promRecorder) SensorFault(sp gasmon.Species) {
	counterFaults.WithLabelValues(sp.String()).Inc()
}

func (promRecorder) NotifyFailed(ch gasmon.Characteristic) {
	counterNotifyFail.WithLabelValues(ch.String()).Inc()
}

func (promRecorder) Command([]byte) {
	counterCommands.Inc()
}

func (promRecorder) LinkState(s gasmon.LinkState) {
	gaugeLinkState.Set(float64(s))
}
