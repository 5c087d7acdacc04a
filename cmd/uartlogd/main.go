package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"flag"

	"github.com/golang/glog"

	"github.com/uartlog/uartlog/pkg/config"
	"github.com/uartlog/uartlog/pkg/console"
	fx "github.com/uartlog/uartlog/pkg/framework"
	"github.com/uartlog/uartlog/pkg/ingest"
	"github.com/uartlog/uartlog/pkg/serialio"
	"github.com/uartlog/uartlog/pkg/storage"
	"github.com/uartlog/uartlog/pkg/tap"
	"github.com/uartlog/uartlog/pkg/tap/mqtt"
)

var (
	configPath = flag.String("config", "", "Path to the yaml config file.")
	lineDev    = flag.String("line", "", "Logged serial device, overrides config.")
	listenAddr = flag.String("listen", "", "TCP console listen address, overrides config.")
)

func main() {
	flag.Parse()
	cfg, err := config.Load(*configPath)
	if err != nil {
		glog.Exit(err)
	}
	if *lineDev != "" {
		cfg.Line.Device = *lineDev
	}
	if *listenAddr != "" {
		cfg.Listen = *listenAddr
	}

	// Failing to open the logged line is a hardware fault: nothing
	// to log from, so nothing to run.
	line, err := serialio.Open(cfg.Line)
	if err != nil {
		glog.Exitf("open logged line: %v", err)
	}

	store := storage.NewStore(
		storage.NewDiskFS(cfg.Storage.Dir), storage.NullBoard{}, cfg.Storage.File)
	broker := tap.NewBroker(tap.DefaultRingSize)
	taps := []ingest.Publisher{broker}

	var publisher *mqtt.Publisher
	if cfg.MQTT.BrokerURL != "" {
		if publisher, err = mqtt.NewPublisher(cfg.MQTT.BrokerURL, cfg.MQTT.TopicPrefix); err != nil {
			glog.Exitf("mqtt publisher: %v", err)
		}
		taps = append(taps, publisher)
	}

	commands := console.NewCommandSet(console.Deps{
		Store:  store,
		Broker: broker,
		LineTx: line,
	})

	runner := fx.NewRunner().HandleSignals()
	runner.Go(broker, ingest.NewLogger(line, store, taps...))
	if publisher != nil {
		runner.Go(publisher)
	}
	if cfg.Listen != "" {
		runner.Go(console.NewServer(cfg.Listen, commands))
	}
	if cfg.ListenWS != "" {
		runner.Go(console.NewWebsocketServer(cfg.ListenWS, commands))
	}
	if cfg.Console.Device != "" {
		port, err := serialio.Open(cfg.Console)
		if err != nil {
			glog.Exitf("open console line: %v", err)
		}
		runner.Go(fx.NamedTask("console-serial", fx.TaskFunc(func(ctx context.Context) error {
			defer port.Close()
			return console.NewSession(cfg.Console.Device, port, commands).Run(ctx)
		})))
	}

	if cfg.Storage.AutoMount && !store.Mount() {
		glog.Warning("card not mounted at startup, waiting for a console mount")
	}

	if err := runner.Wait(); err != nil {
		glog.Exit(err)
	}
}
