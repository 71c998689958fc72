package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/zsprackett/streamsim/internal/applog"
	"github.com/zsprackett/streamsim/internal/config"
	"github.com/zsprackett/streamsim/internal/history"
	"github.com/zsprackett/streamsim/internal/mirror"
	"github.com/zsprackett/streamsim/internal/report"
	"github.com/zsprackett/streamsim/internal/session"
	"github.com/zsprackett/streamsim/internal/socketio"
	"github.com/zsprackett/streamsim/internal/ui"
	"github.com/zsprackett/streamsim/internal/view"
)

const defaultHistoryLimit = 10

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

func loadConfig() config.Config {
	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not load config: %v\n", err)
		cfg = config.Defaults()
	}
	if err := config.LoadEnv(&cfg, ".env"); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
	return cfg
}

func openHistory(path string) (*history.Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}
	store, err := history.Open(path)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

func main() {
	cfg := loadConfig()

	// history subcommand: print stored batches, or one batch's records, and exit.
	if len(os.Args) >= 2 && os.Args[1] == "history" {
		runHistory(cfg, os.Args[2:])
		return
	}

	headless := len(os.Args) >= 2 && os.Args[1] == "headless"
	if !headless && !term.IsTerminal(int(os.Stdout.Fd())) {
		headless = true
	}

	initCfg := applog.InitConfig{LogDir: cfg.LogDir, LogLevel: cfg.LogLevel}
	if headless {
		initCfg.Echo = os.Stderr
	}
	logger, logCloser, err := applog.Init(initCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not init log file: %v\n", err)
		logger = slog.Default()
	} else {
		defer logCloser.Close()
	}

	opts := session.Options{
		HeartbeatInterval: time.Duration(cfg.HeartbeatInterval),
		Logger:            logger,
	}
	if cfg.History.Enabled {
		store, err := openHistory(cfg.History.Path)
		if err != nil {
			fatal("could not open history: %v", err)
		}
		defer store.Close()
		opts.History = store
	}

	client := socketio.New(socketio.Config{
		Endpoint:  cfg.Endpoint,
		Namespace: cfg.Namespace,
	}, logger.With("component", "socketio"))
	sess := session.New(client, opts)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := sess.Start(ctx); err != nil {
		fatal("could not connect to %s: %v", cfg.Endpoint, err)
	}
	defer sess.Close()

	srv := mirror.New(sess.View(), mirror.Config{
		Enabled: cfg.Mirror.Enabled,
		Port:    cfg.Mirror.Port,
		Host:    cfg.Mirror.Host,
	}, logger.With("component", "mirror"))
	sess.View().OnChange(srv.Observe)
	if err := srv.Start(); err != nil {
		fatal("%v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if headless {
		runHeadless(ctx, sess, logger)
		return
	}

	app := ui.NewApp(sess, cfg.Endpoint, logger)
	if err := app.Run(); err != nil {
		fatal("%v", err)
	}
}

func runHistory(cfg config.Config, args []string) {
	if len(args) >= 1 && args[0] == "show" {
		if len(args) != 2 {
			fatal("usage: streamsim history show <batch-id>")
		}
		store, err := openHistory(cfg.History.Path)
		if err != nil {
			fatal("could not open history: %v", err)
		}
		defer store.Close()
		b, err := store.Batch(args[1])
		if errors.Is(err, history.ErrNotFound) {
			fatal("no batch with id %q", args[1])
		}
		if err != nil {
			fatal("%v", err)
		}
		records, err := store.BatchRecords(b.ID)
		if err != nil {
			fatal("%v", err)
		}
		report.Batch(os.Stdout, b, records)
		return
	}

	limit := defaultHistoryLimit
	if len(args) >= 1 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			fatal("invalid batch count %q", args[0])
		}
		limit = n
	}
	store, err := openHistory(cfg.History.Path)
	if err != nil {
		fatal("could not open history: %v", err)
	}
	defer store.Close()
	batches, err := store.RecentBatches(limit)
	if err != nil {
		fatal("%v", err)
	}
	report.Batches(os.Stdout, batches, time.Now())
}

// runHeadless starts the stream and prints the records table after every
// update until interrupted or disconnected.
func runHeadless(ctx context.Context, sess *session.Session, logger *slog.Logger) {
	v := sess.View()
	updated := make(chan struct{}, 1)
	v.OnChange(func(c view.Change) {
		if c.Kind != view.RecordsReplaced {
			return
		}
		select {
		case updated <- struct{}{}:
		default:
		}
	})
	v.StartStream()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sess.Done():
			if err := sess.Err(); err != nil {
				logger.Error("connection lost", "err", err)
			}
			return
		case <-updated:
			report.Records(os.Stdout, v.Render())
		}
	}
}
