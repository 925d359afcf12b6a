// Command tablewired runs the table protocol server.
//
// It accepts framed JSON protocol connections, authenticates them with
// the version handshake and keeps per-session safety limits. Game
// semantics live behind the session handler boundary; this binary wires
// the network layers together.
//
// Usage:
//
//	tablewired [flags]
//
// Flags:
//
//	-config string     Configuration file path (YAML)
//	-addr string       Listen address (overrides config)
//	-log-level string  Log level: debug, info, warn, error (overrides config)
//	-event-file string Protocol event file path (overrides config)
//	-mdns              Advertise the server over mDNS (overrides config)
//
// Examples:
//
//	# Start with defaults on :8080
//	tablewired
//
//	# Start from a config file with debug logging
//	tablewired -config /etc/tablewire/server.yaml -log-level debug
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/tablewire/tablewire-go/pkg/config"
	"github.com/tablewire/tablewire-go/pkg/discovery"
	"github.com/tablewire/tablewire-go/pkg/log"
	"github.com/tablewire/tablewire-go/pkg/transport"
)

func main() {
	var (
		configPath = flag.String("config", "", "Configuration file path (YAML)")
		addr       = flag.String("addr", "", "Listen address (overrides config)")
		logLevel   = flag.String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
		eventFile  = flag.String("event-file", "", "Protocol event file path (overrides config)")
		mdns       = flag.Bool("mdns", false, "Advertise the server over mDNS (overrides config)")
	)
	flag.Parse()

	if err := run(*configPath, *addr, *logLevel, *eventFile, *mdns); err != nil {
		fmt.Fprintln(os.Stderr, "tablewired:", err)
		os.Exit(1)
	}
}

func run(configPath, addr, logLevel, eventFile string, mdns bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.ListenAddress = addr
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if eventFile != "" {
		cfg.Log.EventFile = eventFile
	}
	if mdns {
		cfg.Discovery.Enabled = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	appLogger := newAppLogger(cfg.Log.Level)
	slog.SetDefault(appLogger)

	eventLogger, closeEvents, err := newEventLogger(cfg.Log, appLogger)
	if err != nil {
		return err
	}
	defer closeEvents()

	serverCfg := cfg.ServerConfig()
	serverCfg.Logger = eventLogger
	serverCfg.AppLogger = appLogger
	srv := transport.NewServer(serverCfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx); err != nil {
		return err
	}

	var adv *discovery.Advertiser
	if cfg.Discovery.Enabled {
		adv = discovery.NewAdvertiser(discovery.Config{
			InstanceName: cfg.Discovery.InstanceName,
			Port:         listenPort(srv.Addr()),
		})
		if err := adv.Start(); err != nil {
			appLogger.Warn("mDNS advertisement failed", "err", err)
			adv = nil
		} else {
			appLogger.Info("mDNS advertisement started", "service", discovery.ServiceType)
		}
	}

	<-ctx.Done()
	appLogger.Info("shutting down")

	if adv != nil {
		adv.Stop()
	}
	return srv.Stop()
}

// newAppLogger builds the diagnostics logger for the configured level.
func newAppLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// newEventLogger assembles the protocol event pipeline: an optional
// binary event file plus, at debug level, mirroring into diagnostics.
func newEventLogger(cfg config.LogConfig, appLogger *slog.Logger) (log.Logger, func(), error) {
	var loggers []log.Logger
	closeFn := func() {}

	if cfg.EventFile != "" {
		fl, err := log.NewFileLogger(cfg.EventFile)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open event file: %w", err)
		}
		loggers = append(loggers, fl)
		closeFn = func() {
			if err := fl.Close(); err != nil {
				appLogger.Warn("failed to close event file", "err", err)
			}
		}
	}
	if cfg.Level == "debug" {
		loggers = append(loggers, log.NewSlogAdapter(appLogger))
	}

	switch len(loggers) {
	case 0:
		return nil, closeFn, nil
	case 1:
		return loggers[0], closeFn, nil
	default:
		return log.NewMultiLogger(loggers...), closeFn, nil
	}
}

// listenPort extracts the TCP port from the bound address.
func listenPort(addr net.Addr) int {
	if addr == nil {
		return transport.DefaultPort
	}
	_, portStr, err := net.SplitHostPort(addr.String())
	if err != nil {
		return transport.DefaultPort
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return transport.DefaultPort
	}
	return port
}
