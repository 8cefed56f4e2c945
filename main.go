// Command thunderirc-radio is the NeonWave Radio IRC bot.
// It:
//   - Loads configuration from the environment (and an optional .env file).
//   - Connects to the IRC network, joins the configured channels and relays
//     every channel message to the web application's event stream.
//   - Answers .request commands by querying the song request API.
//   - Exposes /healthz, /readyz and /metrics when HTTP_ADDR is set.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // G108: pprof endpoints enabled only when ENABLE_PPROF=1
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/syaihu/Thunderirc-Radio/chat"
	"github.com/syaihu/Thunderirc-Radio/config"
	"github.com/syaihu/Thunderirc-Radio/server"
	"github.com/syaihu/Thunderirc-Radio/telemetry"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	envFile := pflag.String("env-file", ".env", "dotenv file loaded before reading the environment (missing file is ignored)")
	showVersion := pflag.Bool("version", false, "print version and exit")
	pflag.Parse()
	if *showVersion {
		_, _ = os.Stdout.WriteString(version + "\n")
		return 0
	}

	// local dev convenience only; production relies on real env
	_ = godotenv.Load(*envFile)

	logger := newLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("config load failed", slog.Any("err", err))
		return 1
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.Any("err", err))
		return 1
	}

	telemetry.Init()

	// optional; requires OTEL_EXPORTER_OTLP_ENDPOINT
	shutdownTracing, err := telemetry.InitTracing(logger, "thunderirc-radio", version)
	if err != nil {
		logger.Error("tracing initialization failed", slog.Any("err", err))
		return 1
	}
	defer shutdownTracing()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	relay := chat.NewRelay(cfg, logger)

	if os.Getenv("ENABLE_PPROF") == "1" {
		startPprof(logger)
	}

	if cfg.HTTPAddr != "" {
		go func() {
			if err := server.Start(ctx, server.NewMux(relay, logger), cfg.HTTPAddr, logger); err != nil {
				logger.Error("http server exited with error", slog.Any("err", err))
			}
		}()
	}

	logger.Info("starting bot",
		slog.String("server", cfg.Address()),
		slog.String("nick", cfg.IRCNick),
		slog.Any("channels", cfg.IRCChannels),
		slog.Bool("tls", cfg.IRCUseTLS),
	)
	if err := relay.Run(ctx); err != nil {
		logger.Error("bot stopped with error", slog.Any("err", err))
		return 1
	}
	logger.Info("shutdown complete")
	return 0
}

// newLogger builds the process logger. Defaults: level=info, format=text.
func newLogger(level, format string) *slog.Logger {
	lvl := slog.LevelInfo
	unknown := false
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
	default:
		unknown = true
	}
	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	if unknown {
		logger.Warn("unknown LOG_LEVEL, using info", slog.String("value", level))
	}
	return logger
}

func startPprof(logger *slog.Logger) {
	addr := os.Getenv("PPROF_ADDR")
	if addr == "" {
		addr = "localhost:6060"
	}
	go func() {
		logger.Info("pprof profiling enabled", slog.String("addr", addr))
		srv := &http.Server{
			Addr:              addr,
			Handler:           nil, // default mux exposes /debug/pprof
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
		if err := srv.ListenAndServe(); err != nil {
			logger.Error("pprof server error", slog.Any("err", err))
		}
	}()
}
