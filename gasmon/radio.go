package gasmon

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// Characteristic identifies one attribute of the gas sensing service.
type Characteristic int

const (
	CharCO Characteristic = iota
	CharCH4
	CharCO2
	CharBattery
	CharCommand

	numCharacteristics
)

// TelemetryCharacteristics are refreshed by the telemetry publisher in this order.
var TelemetryCharacteristics = [...]Characteristic{CharCO, CharCH4, CharCO2, CharBattery}

// org.bluetooth.service.environmental_sensing
const ServiceUUID uint16 = 0x181A

// org.bluetooth.characteristic.gap.appearance: generic sensor
const AppearanceGenericSensor uint16 = 0x0540

const uuidSuffix = "-2ec0-4cd4-8f5a-51de99e65ecb"

var characteristicUUIDs = [numCharacteristics]string{
	CharCO:      "ef090000" + uuidSuffix,
	CharCH4:     "ef090001" + uuidSuffix,
	CharCommand: "ef090002" + uuidSuffix,
	CharCO2:     "ef090003" + uuidSuffix,
	CharBattery: "ef090004" + uuidSuffix,
}

// AllCharacteristics lists every characteristic of the service.
func AllCharacteristics() []Characteristic {
	out := make([]Characteristic, 0, numCharacteristics)
	for c := Characteristic(0); c < numCharacteristics; c++ {
		out = append(out, c)
	}
	return out
}

func (c Characteristic) UUID() string {
	if c < 0 || c >= numCharacteristics {
		return ""
	}
	return characteristicUUIDs[c]
}

func (c Characteristic) String() string {
	switch c {
	case CharCO:
		return "co"
	case CharCH4:
		return "ch4"
	case CharCO2:
		return "co2"
	case CharBattery:
		return "battery"
	case CharCommand:
		return "command"
	}
	return "unknown"
}

// Writable reports whether a peer may write the characteristic.
func (c Characteristic) Writable() bool {
	return c == CharCommand
}

type Advertisement struct {
	Name       string
	Interval   time.Duration
	Service    uint16
	Appearance uint16
}

var DefaultAdvertisement = Advertisement{
	Name:       "Gas Sensor",
	Interval:   250 * time.Millisecond,
	Service:    ServiceUUID,
	Appearance: AppearanceGenericSensor,
}

// ErrNotSubscribed is returned by Radio.Notify when the peer did not enable
// notifications on the characteristic.
var ErrNotSubscribed = errors.New("peer not subscribed")

// Peer is a connected central.
type Peer interface {
	Address() string

	// closed by the radio on link loss
	Disconnected() <-chan struct{}

	Close() error
}

// Attributes backs the GATT service. The radio calls it from its own
// goroutines for every read and write request.
type Attributes interface {
	Value(ch Characteristic) []byte
	Write(ch Characteristic, data []byte)
}

type Radio interface {

	// registers the service, once per boot
	Serve(attrs Attributes) error

	// broadcasts adv until a central connects or ctx is done
	Advertise(ctx context.Context, adv Advertisement) (Peer, error)

	Notify(peer Peer, ch Characteristic, value []byte) error
}
