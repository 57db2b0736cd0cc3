package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/spf13/pflag"

	"github.com/makt28/beacon/internal/bot"
	"github.com/makt28/beacon/internal/config"
	"github.com/makt28/beacon/internal/monitor"
	"github.com/makt28/beacon/internal/notify"
)

// version is stamped by the release build.
var version = "dev"

func main() {
	var (
		envFile     string
		once        bool
		showVersion bool
	)
	pflag.StringVar(&envFile, "env-file", "", "load environment variables from this dotenv file")
	pflag.BoolVar(&once, "once", false, "run a single probe, print the result, and exit (0 online, 1 offline)")
	pflag.BoolVar(&showVersion, "version", false, "print version and exit")
	pflag.Parse()

	if showVersion {
		fmt.Println("beacon " + version)
		return
	}

	// --- 1. Load Config ---
	cfg, err := config.Load(envFile)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// --- 2. Setup Logger ---
	setupLogger(cfg.LogLevel)

	if once {
		os.Exit(runOnce(cfg))
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// --- 3. Prober ---
	prober, err := monitor.NewProber(cfg.Protocol, cfg.ServerHost, cfg.ServerPort)
	if err != nil {
		slog.Error("failed to create prober", "error", err)
		os.Exit(1)
	}
	if cfg.Protocol != monitor.ProtocolJava && !monitor.BedrockSupported() {
		slog.Warn("bedrock probing is not compiled into this build; bedrock checks will report unreachable")
	}

	// --- 4. Discord Session ---
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		slog.Error("failed to create discord session", "error", err)
		os.Exit(1)
	}

	// --- 5. Notifier, Engine, Runner ---
	notifier, err := notify.NewDiscord(session, notify.DiscordOptions{
		ChannelID:       cfg.ChannelID,
		Style:           messageStyle(cfg.UseEmbed),
		Host:            cfg.ServerHost,
		Port:            cfg.ServerPort,
		StableThreshold: cfg.StableThreshold,
		RateLimit:       cfg.RateLimit(),
	})
	if err != nil {
		slog.Error("failed to create notifier", "error", err)
		os.Exit(1)
	}

	engine := monitor.NewEngine(cfg.StableThreshold, cfg.RateLimit())
	runner := monitor.NewRunner(prober, engine, notifier, cfg.CheckInterval())

	bot.New(runner, notifier).Attach(session)

	// --- 6. Connect & Poll ---
	if err := session.Open(); err != nil {
		slog.Error("failed to connect to discord", "error", err)
		os.Exit(1)
	}
	slog.Info("beacon is running",
		"server", net.JoinHostPort(cfg.ServerHost, strconv.Itoa(int(cfg.ServerPort))),
		"protocol", cfg.Protocol,
		"channel_id", cfg.ChannelID,
		"interval", cfg.CheckInterval().String(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	pollDone := make(chan struct{})
	go func() {
		runner.Run(ctx)
		close(pollDone)
	}()

	// --- 7. Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("received shutdown signal", "signal", sig)

	cancel()
	<-pollDone

	if err := session.Close(); err != nil {
		slog.Error("discord session close failed", "error", err)
	}

	slog.Info("beacon stopped gracefully")
}

// runOnce performs a single probe, prints a human-readable status line to
// stdout, and returns the process exit code.
func runOnce(cfg config.Config) int {
	if err := cfg.ValidateProbe(); err != nil {
		slog.Error("invalid config", "error", err)
		return 1
	}
	prober, err := monitor.NewProber(cfg.Protocol, cfg.ServerHost, cfg.ServerPort)
	if err != nil {
		slog.Error("failed to create prober", "error", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	st := prober.Probe(ctx)
	fmt.Println(statusLine(cfg, st))
	if st.Reachable {
		return 0
	}
	return 1
}

func statusLine(cfg config.Config, st monitor.Status) string {
	addr := net.JoinHostPort(cfg.ServerHost, strconv.Itoa(int(cfg.ServerPort)))
	if !st.Reachable {
		line := addr + " is OFFLINE"
		if st.Detail.Err != "" {
			line += " (" + st.Detail.Err + ")"
		}
		return line
	}

	var extras []string
	if st.Detail.Edition != "" {
		extras = append(extras, st.Detail.Edition)
	}
	if st.Detail.Version != "" {
		extras = append(extras, st.Detail.Version)
	}
	if st.Detail.Players != nil {
		if st.Detail.MaxPlayers != nil {
			extras = append(extras, fmt.Sprintf("%d/%d players", *st.Detail.Players, *st.Detail.MaxPlayers))
		} else {
			extras = append(extras, fmt.Sprintf("%d players", *st.Detail.Players))
		}
	}
	if st.Detail.Latency > 0 {
		extras = append(extras, fmt.Sprintf("%dms", st.Detail.Latency.Milliseconds()))
	}

	line := addr + " is ONLINE"
	if len(extras) > 0 {
		line += " (" + strings.Join(extras, ", ") + ")"
	}
	return line
}

func messageStyle(useEmbed bool) notify.Style {
	if useEmbed {
		return notify.StyleEmbed
	}
	return notify.StylePlain
}

func setupLogger(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(handler))
}
