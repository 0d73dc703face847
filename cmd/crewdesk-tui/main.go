package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"crewdesk/internal/api"
	"crewdesk/internal/config"
	"crewdesk/internal/logging"
	"crewdesk/internal/orchestrate"
	"crewdesk/internal/state"
)

func parseFlags() (config.Config, error) {
	configPath := flag.String("config", envOr("CREWDESK_CONFIG", config.DefaultPath()), "Path to YAML config file")
	serverURL := flag.String("server-url", envOr("CREWDESK_SERVER_URL", ""), "Backend base URL")
	pollSeconds := flag.Int("poll-interval", envOrInt("CREWDESK_POLL_INTERVAL", 0), "Delegated-task poll interval in seconds")
	timeoutSeconds := flag.Int("http-timeout", envOrInt("CREWDESK_HTTP_TIMEOUT", 0), "Per-request timeout in seconds")
	logFile := flag.String("log-file", envOr("CREWDESK_LOG_FILE", ""), "Structured log file path (empty disables logging)")
	debug := flag.Bool("debug", envOrBool("CREWDESK_DEBUG", false), "Enable debug logging")
	altScreen := flag.Bool("alt-screen", envOrBool("CREWDESK_ALT_SCREEN", true), "Use alternate screen buffer")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return cfg, err
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "server-url":
			cfg.ServerURL = *serverURL
		case "poll-interval":
			cfg.PollInterval = time.Duration(*pollSeconds) * time.Second
		case "http-timeout":
			cfg.HTTPTimeout = time.Duration(*timeoutSeconds) * time.Second
		case "log-file":
			cfg.LogFile = *logFile
		case "debug":
			cfg.Debug = *debug
		case "alt-screen":
			cfg.AltScreen = *altScreen
		}
	})
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = config.Default().PollInterval
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = config.Default().HTTPTimeout
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func main() {
	cfg, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "crewdesk-tui: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.LogFile, cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "crewdesk-tui: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	store := state.NewStore(log)
	client := api.New(cfg.ServerURL, cfg.HTTPTimeout, log)
	poller := orchestrate.NewPoller(client, store, cfg.PollInterval, log)
	orch := orchestrate.New(client, store, poller, log)

	opts := []tea.ProgramOption{}
	if cfg.AltScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	p := tea.NewProgram(newModel(cfg, store, orch), opts...)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "crewdesk-tui fatal error: %v\n", err)
		os.Exit(1)
	}
	poller.Stop()
}
