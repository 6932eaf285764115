package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/robocup-autoref/autoref/internal/client"
	"github.com/robocup-autoref/autoref/internal/config"
	"github.com/robocup-autoref/autoref/internal/dispatcher"
	"github.com/robocup-autoref/autoref/internal/engine"
	"github.com/robocup-autoref/autoref/internal/frame"
	"github.com/robocup-autoref/autoref/internal/influx"
	"github.com/robocup-autoref/autoref/internal/logging"
	"github.com/robocup-autoref/autoref/internal/monitor"
	intOtel "github.com/robocup-autoref/autoref/internal/otel"
	"github.com/robocup-autoref/autoref/internal/phase"
	"github.com/robocup-autoref/autoref/internal/runner"
	"github.com/robocup-autoref/autoref/internal/source"
	"github.com/robocup-autoref/autoref/internal/violation"

	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// BuildDate can be set at build time via ldflags
var (
	CurrentVersion string = "0.1.0"
	BuildDate      string = "unknown"

	AppName string = "autoref"
)

// Lifecycle commands.
const (
	CmdVersion  = ":VERSION:"
	CmdMetrics  = ":METRICS:"
	CmdCommands = ":COMMANDS:"
	CmdLogLevel = ":LOGLEVEL:"
	CmdQuit     = ":QUIT:"
)

var (
	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger

	// OTelProvider handles OpenTelemetry
	OTelProvider *intOtel.Provider

	LogFilePath string
	LogFile     *os.File

	SessionStartTime time.Time = time.Now()
)

func main() {
	args := os.Args[1:]
	configDir := "."
	if len(args) > 0 {
		switch strings.ToLower(args[0]) {
		case "version":
			fmt.Printf("%s %s (built %s)\n", AppName, CurrentVersion, BuildDate)
			return
		case "journal":
			if err := printJournal(os.Stdout, args[1:]); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			return
		default:
			configDir = args[0]
		}
	}

	if err := run(configDir); err != nil {
		if Logger != nil {
			Logger.Error("autoref stopped", "error", err)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func run(configDir string) error {
	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(logging.Options{Level: "info"})
	Logger = SlogManager.Logger()

	// load config
	if err := config.Load(configDir); err != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		Logger.Info("Loaded config")
	}
	cfg, err := config.Get()
	if err != nil {
		return err
	}

	hub := monitor.NewHub()
	setupLogging(cfg, hub)
	defer closeLogging()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mode, err := engine.ParseMode(cfg.Mode)
	if err != nil {
		return err
	}
	detectors, err := cfg.Detectors.EnabledDetectors()
	if err != nil {
		return err
	}

	global := phase.NewGlobalState()
	policy := engine.NewEventPolicy()

	gc, err := newClient(cfg.Protocol, hub, policy)
	if err != nil {
		return err
	}

	runnerCfg := cfg.Runner
	runnerCfg.Simulation = runnerCfg.Simulation || cfg.Simulation
	rn, err := runner.New(runnerCfg, mode, runner.Deps{
		Logger:       Logger,
		Preprocessor: frame.NewPreprocessor(Logger, cfg.Geometry(), cfg.Preprocessor),
		Violations:   violation.NewEngine(Logger, violation.Factories(cfg.Detectors), detectors),
		Machine:      phase.NewMachine(Logger, cfg.Phases, global),
		Global:       global,
		Policy:       policy,
		Hub:          hub,
		Client:       gc,
		Shapes:       shapeLogger{logger: Logger},
	})
	if err != nil {
		return fmt.Errorf("failed to create runner: %w", err)
	}

	d, err := dispatcher.New(SlogManager.Dispatcher())
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}
	rn.Register(d)
	registerLifecycleHandlers(d, stop)

	backend, err := initStorage(cfg, d, hub)
	if err != nil {
		return err
	}

	var influxManager *influx.Manager
	if cfg.Influx.Enabled {
		influxManager = influx.NewManager(SlogManager.Zerolog("influx"), cfg.Influx)
		if err := influxManager.Connect(ctx); err != nil {
			Logger.Warn("InfluxDB sink disabled", "error", err)
			influxManager = nil
		} else {
			influxManager.Attach(hub)
			go influxManager.Run(ctx, hub, cfg.Monitor.Interval)
		}
	}

	monitorService := monitor.NewService(monitor.Dependencies{
		Hub:        hub,
		Logger:     Logger.With("component", "monitor"),
		StatusFile: cfg.Monitor.StatusFile,
		Interval:   cfg.Monitor.Interval,
	})
	if err := monitorService.Start(); err != nil {
		Logger.Error("Failed to start status monitor", "error", err)
	}

	go func() {
		if err := gc.Connect(ctx, cfg.Protocol.Host, cfg.Protocol.Port); err != nil {
			Logger.Warn("Game controller registration did not complete", "error", err)
			return
		}
		Logger.Info("Registered with game controller", "host", cfg.Protocol.Host, "port", cfg.Protocol.Port)
	}()

	if err := rn.Start(ctx); err != nil {
		return err
	}
	Logger.Info("Autoref running", "mode", mode.String(), "version", CurrentVersion)

	src, err := newSource(cfg.Source)
	if err != nil {
		stop()
	} else {
		go func() {
			if err := src.Run(ctx, rn.Offer); err != nil {
				Logger.Error("Frame source failed", "error", err)
			} else if ctx.Err() == nil {
				Logger.Info("Frame source finished")
			}
			if cfg.Source.Type == "replay" {
				stop()
			}
		}()
	}
	go readConsole(ctx, os.Stdin, os.Stdout, d)

	<-ctx.Done()
	Logger.Info("Shutting down")

	rn.Stop()
	gc.Stop()
	monitorService.Stop()
	d.Close()
	if backend != nil {
		if err := backend.Close(); err != nil {
			Logger.Error("Failed to close storage backend", "error", err)
		}
	}
	if influxManager != nil {
		if err := influxManager.Close(); err != nil {
			Logger.Error("Failed to close InfluxDB sink", "error", err)
		}
	}
	return err
}

// setupLogging opens the session log file and rebuilds the logger with file
// output, optional OTel output and the current mode on every record.
func setupLogging(cfg config.Config, hub *monitor.Hub) {
	var err error
	LogFile, LogFilePath, err = logging.OpenSessionLog(cfg.LogsDir, AppName, SessionStartTime)
	if err != nil {
		Logger.Error("Failed to create/open log file!", "error", err, "path", LogFilePath)
		LogFile = nil
	}

	if cfg.OTel.Enabled && LogFile != nil {
		OTelProvider, err = intOtel.New(intOtel.Config{
			Enabled:      true,
			ServiceName:  cfg.OTel.ServiceName,
			BatchTimeout: cfg.OTel.BatchTimeout,
			LogWriter:    LogFile,
			Endpoint:     cfg.OTel.Endpoint,
			Insecure:     cfg.OTel.Insecure,
		})
		if err != nil {
			Logger.Error("Failed to initialize OTel provider", "error", err)
			OTelProvider = nil
		} else {
			Logger.Info("OTel provider initialized", "file", LogFilePath, "endpoint", cfg.OTel.Endpoint)
		}
	}

	var otelLogProvider *sdklog.LoggerProvider
	if OTelProvider != nil {
		otelLogProvider = OTelProvider.LoggerProvider()
	}
	opts := logging.Options{
		Level:    cfg.LogLevel,
		Provider: otelLogProvider,
		State: func() logging.State {
			s := hub.Snapshot()
			return logging.State{Mode: s.Mode, GameState: s.GameState.String()}
		},
	}
	if LogFile != nil {
		opts.File = LogFile
	}
	SlogManager.Setup(opts)
	Logger = SlogManager.Logger()
	Logger.Info("Logging to file", "path", LogFilePath)
}

func closeLogging() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if OTelProvider != nil {
		if err := OTelProvider.Shutdown(ctx); err != nil {
			fmt.Fprintln(os.Stderr, "otel shutdown:", err)
		}
	}
	if LogFile != nil {
		LogFile.Close()
	}
}

func newClient(cfg client.Config, hub *monitor.Hub, policy *engine.EventPolicy) (*client.Client, error) {
	var signer *client.Signer
	if cfg.KeyFile != "" {
		var err error
		signer, err = client.LoadSigner(cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load signing key: %w", err)
		}
	}
	gc, err := client.New(Logger.With("component", "client"), cfg, signer)
	if err != nil {
		return nil, fmt.Errorf("failed to create game controller client: %w", err)
	}
	gc.OnConfig(policy.Apply)
	gc.OnReply(func(r client.Reply) {
		hub.PublishReply(monitor.ReplyEvent{
			Time:    time.Now(),
			Command: r.Command,
			Status:  r.Status.String(),
			Reason:  r.Reason,
		})
	})
	return gc, nil
}

func newSource(cfg config.SourceConfig) (source.Source, error) {
	switch cfg.Type {
	case "replay":
		Logger.Info("Replaying recorded frames", "path", cfg.Replay.Path, "speed", cfg.Replay.Speed)
		return source.NewReplay(Logger.With("component", "replay"), cfg.Replay), nil
	case "tracker", "":
		Logger.Info("Reading frames from tracker", "url", cfg.Tracker.URL)
		return source.NewTracker(Logger.With("component", "tracker"), cfg.Tracker), nil
	default:
		err := fmt.Errorf("unknown source type %q", cfg.Type)
		Logger.Error("Failed to create frame source", "error", err)
		return nil, err
	}
}

func registerLifecycleHandlers(d *dispatcher.Dispatcher, quit context.CancelFunc) {
	d.Register(CmdVersion, func(dispatcher.Event) (any, error) {
		return []string{CurrentVersion, BuildDate}, nil
	})

	d.Register(CmdCommands, func(dispatcher.Event) (any, error) {
		return d.Commands(), nil
	})

	d.Register(CmdMetrics, func(e dispatcher.Event) (any, error) {
		if OTelProvider == nil {
			return nil, errors.New("otel is disabled")
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		return OTelProvider.Metrics(ctx)
	})

	d.Register(CmdLogLevel, func(e dispatcher.Event) (any, error) {
		if len(e.Args) < 1 {
			return nil, errors.New("missing level")
		}
		SlogManager.SetLevel(e.Args[0])
		return e.Args[0], nil
	}, dispatcher.Logged())

	d.Register(CmdQuit, func(dispatcher.Event) (any, error) {
		quit()
		return "bye", nil
	}, dispatcher.Logged())
}

// shapeLogger writes debug shapes to the debug log.
type shapeLogger struct {
	logger *slog.Logger
}

func (s shapeLogger) Shapes(at time.Time, shapes []engine.Shape) {
	s.logger.Debug("debug shapes", "time", at, "count", len(shapes))
}
