package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/version"
	log "github.com/sirupsen/logrus"

	"github.com/alepar/gasmon/gasmon"
	"github.com/alepar/gasmon/gasmon/adc"
	"github.com/alepar/gasmon/gasmon/influx"
	"github.com/alepar/gasmon/gasmon/peripheral"
)

// CLI args
var (
	configFile  = flag.String("config", "gasmon.yaml", "YAML file with sampling and telemetry settings")
	listenAddr  = flag.String("listen-address", ":8080", "The address to listen on for HTTP requests.")
	adcKind     = flag.String("adc", "ads1115", "ADC front end: ads1115 or serial")
	i2cBus      = flag.String("i2c-bus", "", "I2C bus of the ADS1115, empty for the first one")
	i2cAddr     = flag.Uint("i2c-addr", 0x48, "I2C address of the ADS1115")
	serialPort  = flag.String("serial-port", "/dev/ttyACM0", "serial port of the ADC bridge")
	serialBaud  = flag.Int("serial-baud", 115200, "baud rate of the ADC bridge")
	diagFile    = flag.String("diag-file", "", "append diagnostics to this file, disabled when empty")
	logLevel    = flag.String("log-level", "info", "log level")
	exitOnFault = flag.Bool("exit-on-fault", false, "exit instead of rebooting in-process after a fault")
	resetDelay  = flag.Duration("reset-delay", 2*time.Second, "pause before booting again after a fault")
)

func init() {
	registerMetrics(prometheus.DefaultRegisterer)

	// Add Go module build info.
	prometheus.MustRegister(version.NewCollector("gasmon"))

	//logging
	formatter := &log.TextFormatter{
		FullTimestamp: true,
	}
	log.SetFormatter(formatter)
}

func main() {
	flag.Parse()

	level, err := log.ParseLevel(*logLevel)
	if err != nil {
		log.Fatalf("invalid log level: %s", err)
	}
	log.SetLevel(level)

	// .env is optional, it only carries secrets such as INFLUX_TOKEN
	if err := godotenv.Load(); err != nil && !os.IsNotExist(errors.Cause(err)) {
		log.Warnf("failed to load .env: %s", err)
	}

	cfg, err := gasmon.Load(*configFile)
	if err != nil {
		log.Fatalf("failed to load config: %s", err)
	}

	diag, closeDiag, err := openDiagnostics(*diagFile)
	if err != nil {
		log.Fatalf("failed to open diagnostics: %s", err)
	}
	defer closeDiag()

	go func() {
		// Expose the registered metrics via HTTP.
		http.Handle("/metrics", promhttp.HandlerFor(
			prometheus.DefaultGatherer,
			promhttp.HandlerOpts{
				// Opt into OpenMetrics to support exemplars.
				EnableOpenMetrics: true,
			},
		))
		log.Panic(http.ListenAndServe(*listenAddr, nil))
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reset := newReset(*exitOnFault, closeDiag, os.Exit)

	log.Infof("gasmon %s starting", version.Version)
	for {
		err := boot(ctx, cfg, diag, reset)
		if ctx.Err() != nil {
			log.Infof("shutting down")
			return
		}
		log.Errorf("restarting in %s: %s", *resetDelay, err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(*resetDelay):
		}
	}
}

// boot brings up every peripheral and runs the supervised tasks until ctx is
// cancelled or a fault forces a reset. Everything opened here is torn down
// before it returns, so the next boot starts from scratch.
func boot(ctx context.Context, cfg *gasmon.Config, diag gasmon.Diagnostics, reset func(error)) error {
	// open BLE
	d, err := linux.NewDevice()
	if err != nil {
		return errors.Wrap(err, "failed to open ble")
	}
	ble.SetDefaultDevice(d)
	defer ble.Stop()

	front, err := openFrontEnd(cfg)
	if err != nil {
		return err
	}
	defer front.Close()

	rec := gasmon.Recorders{promRecorder{}}
	if cfg.Influx.Enabled() {
		hostname, _ := os.Hostname()
		archive := influx.New(cfg.Influx, hostname, log.WithField("task", "influx"))
		defer archive.Close()
		rec = append(rec, archive)
	}

	inputs := map[gasmon.Species]gasmon.AnalogInput{}
	for _, sp := range gasmon.AllSpecies {
		inputs[sp] = front.Input(sp)
	}
	sampler := gasmon.NewSampler(cfg.Sampler, inputs, front.Battery())
	state := gasmon.NewState()
	display := gasmon.NewLCDDisplay(&consoleLCD{})

	pipeline := gasmon.NewPipeline(cfg, sampler, state, display, rec, log.WithField("task", "sampling"))
	radio := peripheral.New(log.WithField("task", "ble"))
	link := gasmon.NewLink(radio, state, cfg.Telemetry, diag, rec, log.WithField("task", "link"))

	supervisor := &gasmon.Supervisor{
		Tasks: []gasmon.Task{
			{Name: "sampling", Run: pipeline.RunSampling},
			{Name: "battery", Run: pipeline.RunBattery},
			{Name: "link", Run: link.Run},
		},
		Diag:  diag,
		Log:   log.WithField("task", "supervisor"),
		Reset: reset,
	}
	return supervisor.Run(ctx)
}

// newReset builds the device restart. Returning lets boot tear everything
// down and the main loop boot again. With exitOnFault the diagnostics are
// flushed and the process exits, leaving the restart to the service manager.
func newReset(exitOnFault bool, flush func(), exit func(int)) func(error) {
	return func(cause error) {
		counterResets.Inc()
		if exitOnFault {
			log.Errorf("device fault: %s", cause)
			flush()
			exit(1)
			return
		}
		log.Warnf("device reset: %s", cause)
	}
}

type frontEnd interface {
	Input(sp gasmon.Species) gasmon.AnalogInput
	Battery() gasmon.AnalogInput
	Close() error
}

func openFrontEnd(cfg *gasmon.Config) (frontEnd, error) {
	switch *adcKind {
	case "ads1115":
		opts := adc.DefaultADS1115Opts
		opts.Bus = *i2cBus
		opts.Address = uint16(*i2cAddr)
		opts.VRef = cfg.Sampler.VRef
		return adc.OpenADS1115(opts)
	case "serial":
		// frames older than a few sampling periods count as a read failure
		return adc.OpenSerial(*serialPort, *serialBaud, 4*cfg.Sampler.Period, log.WithField("task", "adc"))
	}
	return nil, errors.Errorf("unknown adc front end %q", *adcKind)
}

func openDiagnostics(path string) (gasmon.Diagnostics, func(), error) {
	if path == "" {
		return gasmon.NopDiagnostics, func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to open %s", path)
	}
	d := gasmon.NewLogDiagnostics(f, 0)
	return d, func() {
		d.Close()
		_ = f.Close()
	}, nil
}
