package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sheetcal/internal/config"
	"sheetcal/internal/engine"
	"sheetcal/internal/feed"
	appLog "sheetcal/internal/log"
	"sheetcal/internal/web"
)

const version = "0.1.0"

// flagConfig holds CLI flag values that override the config file.
type flagConfig struct {
	configPath string
	listen     string
	once       bool
	debug      bool
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.debug {
		conf.LogLevel = "debug"
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	appLog.Info("sheetcal starting", "version", version)

	if err := conf.Validate(); err != nil {
		appLog.Error("invalid config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"refresh", conf.RefreshCron,
		"feed_id", conf.Feed.ID,
		"cache_dir", conf.CacheDir,
		"once", flags.once,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fetcher := feed.NewFetcher(conf.CacheDir, conf.Feed.Timeout)
	eng := engine.New(fetcher, feed.Source{ID: conf.Feed.ID, URL: conf.Feed.URL})

	if flags.once {
		code := runOnce(ctx, eng, conf.Location())
		stop()
		os.Exit(code)
	}

	// An initial failure is not fatal; the scheduler will retry.
	engine.ReloadAndLog(ctx, eng, "startup")

	if _, err := engine.StartScheduler(ctx, eng, conf.RefreshCron, conf.Location()); err != nil {
		appLog.Error("failed to start scheduler", err)
		os.Exit(1)
	}

	if err := web.Serve(ctx, conf, eng); err != nil {
		appLog.Error("HTTP server failed", err)
		os.Exit(1)
	}
	appLog.Info("sheetcal exiting")
}

// runOnce performs a single reload and prints the current month's events
// as JSON to stdout.
func runOnce(ctx context.Context, eng *engine.Engine, loc *time.Location) int {
	if err := eng.Reload(ctx); err != nil {
		appLog.Error("reload failed", err)
		return 1
	}

	now := time.Now().In(loc)
	type summaryEvent struct {
		Date     string `json:"date"`
		Program  string `json:"program"`
		Location string `json:"location,omitempty"`
	}
	events := eng.QueryMonth(now.Year(), now.Month())
	out := make([]summaryEvent, 0, len(events))
	for _, ev := range events {
		out = append(out, summaryEvent{Date: ev.Date.Key(), Program: ev.Program, Location: ev.Location})
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(map[string]any{
		"month":  now.Format("2006-01"),
		"events": out,
	}); err != nil {
		appLog.Error("failed to write summary", err)
		return 1
	}
	return 0
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/sheetcal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Run one fetch+index cycle, print this month's events, and exit")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Parse()

	return cfg
}
