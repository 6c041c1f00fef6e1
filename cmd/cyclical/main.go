package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"cyclical/internal/calendar"
	"cyclical/internal/capture"
	"cyclical/internal/config"
	"cyclical/internal/ics"
	appLog "cyclical/internal/log"
	"cyclical/internal/marker"
	"cyclical/internal/model"
	"cyclical/internal/web"
)

const version = "0.1.0"

type flagConfig struct {
	configPath  string
	listen      string
	capturePath string
	month       string
}

func main() {
	// A missing .env is normal; anything else is worth a warning.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		appLog.Warn("failed to load .env", "err", err)
	}

	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	loc, err := conf.Location()
	if err != nil {
		appLog.Error("invalid timezone", err, "timezone", conf.Timezone)
		os.Exit(1)
	}
	cal := calendar.NewGregorian(loc)

	appLog.Info("cyclical starting",
		"version", version,
		"listen", conf.Listen,
		"timezone", loc.String(),
		"week_start", conf.WeekStart,
		"marker_tag", conf.Marker.Tag,
		"marker_days", conf.MarkerDays(),
		"feeds", len(conf.Feeds),
		"persist", conf.MarkersFile != "",
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := marker.NewStore(cal)
	persister := marker.Persister(marker.Nop{})
	if conf.MarkersFile != "" {
		persister = ics.FilePersister{Path: conf.MarkersFile}
	}
	snap, err := persister.Load(ctx)
	if err != nil {
		appLog.Error("failed to load markers", err, "path", conf.MarkersFile)
		os.Exit(1)
	}
	store.Restore(snap)

	if flags.month != "" {
		if err := printMonth(conf, cal, store, flags.month); err != nil {
			appLog.Error("failed to render month", err, "month", flags.month)
			os.Exit(1)
		}
		return
	}

	srv := web.NewServer(web.Options{
		Config:      conf,
		Calendar:    cal,
		Store:       store,
		Persister:   persister,
		PreviewPath: conf.Capture.Output,
	})
	refresh(ctx, srv)

	if flags.capturePath != "" {
		if err := captureOnce(ctx, conf, srv, flags.capturePath); err != nil {
			appLog.Error("capture failed", err, "output", flags.capturePath)
			os.Exit(1)
		}
		return
	}

	c := cron.New(cron.WithLocation(loc))
	if _, err := c.AddFunc(conf.RefreshCron, func() {
		refresh(ctx, srv)
		if conf.Capture.Output != "" {
			if err := capture.CapturePNG(ctx, captureOptions(conf, capture.PageURL(conf.Listen, calendar.Day{}), conf.Capture.Output)); err != nil {
				appLog.Error("scheduled capture failed", err)
			}
		}
	}); err != nil {
		appLog.Error("invalid refresh schedule", err, "refresh", conf.RefreshCron)
		os.Exit(1)
	}
	c.Start()
	defer func() { <-c.Stop().Done() }()

	if err := srv.Run(ctx); err != nil {
		appLog.Error("HTTP server failed", err)
		os.Exit(1)
	}
	appLog.Info("cyclical exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", envOr("CYCLICAL_CONFIG", "./config.yaml"), "Path to config file")
	flag.StringVar(&cfg.listen, "listen", os.Getenv("CYCLICAL_LISTEN"), "HTTP listen address (overrides config if set)")
	flag.StringVar(&cfg.capturePath, "capture", "", "Capture the month page to this PNG and exit")
	flag.StringVar(&cfg.month, "month", "", "Print the text grid for YYYY-MM and exit")

	flag.Parse()

	return cfg
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func refresh(ctx context.Context, srv *web.Server) {
	if _, err := srv.RefreshFeeds(ctx); err != nil {
		appLog.Warn("feed refresh incomplete", "err", err)
	}
}

func printMonth(conf *config.Config, cal calendar.Calendar, store *marker.Store, month string) error {
	ref, err := time.ParseInLocation("2006-01", month, cal.Location())
	if err != nil {
		return fmt.Errorf("month must be YYYY-MM: %w", err)
	}
	view, err := model.BuildMonthView(ref, store, model.ViewConfig{
		Calendar:     cal,
		FirstWeekday: conf.FirstWeekday(),
		Tag:          conf.Marker.Tag,
		Now:          time.Now(),
	})
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(os.Stdout, model.RenderText(view))
	return err
}

// captureOnce serves on an ephemeral loopback port just long enough to
// screenshot the page.
func captureOnce(ctx context.Context, conf *config.Config, srv *web.Server, output string) error {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return err
	}

	serveCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- srv.Serve(serveCtx, ln) }()

	err = capture.CapturePNG(ctx, captureOptions(conf, capture.PageURL(ln.Addr().String(), calendar.Day{}), output))
	cancel()
	if serveErr := <-done; serveErr != nil && err == nil {
		err = serveErr
	}
	if err == nil {
		appLog.Info("preview captured", "output", output)
	}
	return err
}

func captureOptions(conf *config.Config, url, output string) capture.Options {
	opts := capture.Options{
		URL:        url,
		OutputPath: output,
		Width:      conf.Capture.Width,
		Height:     conf.Capture.Height,
	}
	if conf.BasicAuth != nil {
		opts.Username = conf.BasicAuth.Username
		opts.Password = conf.BasicAuth.Password
	}
	return opts
}
