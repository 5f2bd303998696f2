// Package influx archives every sampling cycle to InfluxDB.
package influx

import (
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	log "github.com/sirupsen/logrus"

	"github.com/alepar/gasmon/gasmon"
)

const (
	gasMeasurement     = "gas"
	batteryMeasurement = "battery"
)

// Archive is a gasmon.Recorder that writes readings through the non-blocking
// write API. Points are batched by the client and failures only get logged.
type Archive struct {
	gasmon.NopRecorder

	client influxdb2.Client
	writer api.WriteAPI
	device string
	done   chan struct{}
}

func New(cfg gasmon.InfluxConfig, device string, logger log.FieldLogger) *Archive {
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token,
		influxdb2.DefaultOptions().SetBatchSize(50).SetFlushInterval(5000))
	a := &Archive{
		client: client,
		writer: client.WriteAPI(cfg.Org, cfg.Bucket),
		device: device,
		done:   make(chan struct{}),
	}
	go func() {
		defer close(a.done)
		for err := range a.writer.Errors() {
			logger.Warnf("influx write failed: %s", err)
		}
	}()
	return a
}

func (a *Archive) Reading(r gasmon.GasReading) {
	a.writer.WritePoint(ReadingPoint(a.device, r))
}

func (a *Archive) Battery(percent int) {
	a.writer.WritePoint(influxdb2.NewPoint(batteryMeasurement,
		map[string]string{"device": a.device},
		map[string]interface{}{"percent": percent},
		time.Now()))
}

// ReadingPoint converts a reading to a line protocol point.
func ReadingPoint(device string, r gasmon.GasReading) *write.Point {
	at := r.At
	if at.IsZero() {
		at = time.Now()
	}
	return influxdb2.NewPoint(gasMeasurement,
		map[string]string{
			"device":  device,
			"species": r.Species.String(),
		},
		map[string]interface{}{
			"ppm":   int64(r.PPM),
			"level": r.Level.String(),
			"stale": r.Stale,
		},
		at)
}

// Close flushes pending points.
func (a *Archive) Close() {
	a.writer.Flush()
	a.client.Close()
	<-a.done
}
