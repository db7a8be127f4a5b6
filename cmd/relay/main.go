package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/biorelay/relay/internal/bridge"
	"github.com/biorelay/relay/internal/config"
	"github.com/biorelay/relay/internal/frame"
	"github.com/biorelay/relay/internal/logging"
	"github.com/biorelay/relay/internal/procstat"
	"github.com/biorelay/relay/internal/relay"
	"github.com/biorelay/relay/internal/source"
	"github.com/biorelay/relay/internal/ws"
)

func main() {
	if err := run(); err != nil {
		log.Printf("relay: %v", err)
		os.Exit(1)
	}
}

// flags are the command-line overrides applied on top of file and env config.
type flags struct {
	port       int
	simulate   bool
	serialPort string
	replay     string
}

func (f flags) apply(cfg *config.Config) {
	if f.port > 0 {
		cfg.Server.Port = f.port
	}
	if f.serialPort != "" {
		cfg.Source.Serial.Port = f.serialPort
	}
	if f.replay != "" {
		cfg.Source.ReplayFile = f.replay
		cfg.Source.UsePhysical = true
	}
	// Applied last so -simulate with -replay fails validation.
	if f.simulate {
		cfg.Source.UsePhysical = false
	}
}

func run() error {
	configPath := flag.String("config", config.DefaultPath, "Path to config file")
	envFile := flag.String("env", ".env", "Path to an optional .env file")
	port := flag.Int("port", 0, "Override server port")
	simulate := flag.Bool("simulate", false, "Skip the serial device and serve simulated frames")
	serialPort := flag.String("serial", "", "Override serial device path")
	replay := flag.String("replay", "", "Read frames from a capture file instead of the serial device")
	flag.Parse()

	if err := config.LoadEnvFile(*envFile); err != nil {
		return err
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return err
	}

	flags{
		port:       *port,
		simulate:   *simulate,
		serialPort: *serialPort,
		replay:     *replay,
	}.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logCloser := logging.Setup(logging.Options{
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	defer logCloser.Close()

	codec, err := frame.NewCodec(frame.WithAliases(cfg.TypeAliases()))
	if err != nil {
		return err
	}

	var opener source.Opener
	if cfg.Source.ReplayFile != "" {
		opener = source.ReplayOpener(cfg.Source.ReplayFile, cfg.Simulator.Interval)
	} else {
		opener = source.SerialOpener(source.SerialConfig{
			Port:        cfg.Source.Serial.Port,
			Baud:        cfg.Source.Serial.Baud,
			ReadTimeout: cfg.Source.Serial.ReadTimeout,
		})
	}

	sup := source.NewSupervisor(source.SupervisorConfig{
		UsePhysical: cfg.Source.UsePhysical,
		Opener:      opener,
		Codec:       codec,
		IdlePause:   cfg.Source.IdlePause,
		Simulated: source.NewSimulated(source.SimulatedConfig{
			DeviceID: cfg.Simulator.DeviceID,
			Interval: cfg.Simulator.Interval,
			Seed:     cfg.Simulator.Seed,
		}),
	})
	defer sup.Close()
	sup.SetFailoverHook(func(fo source.Failover) {
		log.Printf("Now serving simulated frames (physical source failed at %s)", fo.At.Format(time.RFC3339))
	})

	if cfg.Source.UsePhysical {
		log.Printf("Starting with physical source")
	} else {
		log.Println("Starting in simulated mode")
	}

	hub := ws.NewHub(ws.HubConfig{
		MaxSubscribers: cfg.Server.MaxSubscribers,
		SendTimeout:    cfg.Server.SendTimeout,
	})

	sampler, err := procstat.New()
	if err != nil {
		log.Printf("process stats unavailable: %v", err)
	}
	startedAt := time.Now()
	status := func() ws.StatusReport {
		r := ws.StatusReport{
			Source:    sup.Status(),
			Hub:       hub.Stats(),
			StartedAt: startedAt,
		}
		if sampler != nil {
			s := sampler.Sample()
			r.Process = &s
		}
		return r
	}

	server := ws.NewServer(hub, ws.ClientConfig{
		QueueSize:    cfg.Server.QueueSize,
		WriteTimeout: cfg.Server.WriteTimeout,
		PingInterval: cfg.Server.PingInterval,
	}, status, cfg.Server.AllowedOrigins)

	ln, err := ws.Listen(cfg.Server.Host, cfg.Server.Port)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.MQTT.Broker != "" {
		b := bridge.New(bridge.Config{
			Broker:   cfg.MQTT.Broker,
			Topic:    cfg.MQTT.Topic,
			ClientID: cfg.MQTT.ClientID,
			QoS:      cfg.MQTT.QoS,
		}, hub)
		if err := b.Connect(ctx); err != nil {
			log.Printf("MQTT bridge disabled: %v", err)
		} else {
			defer b.Disconnect()
		}
	}

	pump := relay.NewPump(sup, hub)
	pump.ReportEvery = time.Minute

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ws.Serve(gctx, ln, server.Handler())
	})

	// The pump stays on this goroutine so the deferred Close above runs on
	// every way out, panics included.
	pumpErr := pump.Run(gctx)
	log.Println("Shutting down...")
	stop()
	if err := g.Wait(); err != nil {
		return err
	}
	return pumpErr
}
