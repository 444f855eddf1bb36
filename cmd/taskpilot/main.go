package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/nhle/taskpilot/internal/api"
	"github.com/nhle/taskpilot/internal/app"
	"github.com/nhle/taskpilot/internal/chat"
	"github.com/nhle/taskpilot/internal/credential"
	"github.com/nhle/taskpilot/internal/event"
	"github.com/nhle/taskpilot/internal/logging"
	"github.com/nhle/taskpilot/internal/model"
	"github.com/nhle/taskpilot/internal/service"
	"github.com/nhle/taskpilot/internal/session"
	"github.com/nhle/taskpilot/internal/store"
	appsync "github.com/nhle/taskpilot/internal/sync"
	"github.com/nhle/taskpilot/internal/tasks"
)

// Version information set via ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	configPath := flag.String("config", model.DefaultConfigPath(), "path to the config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("taskpilot %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return err
	}

	log, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("opening log: %w", err)
	}
	defer log.Close()
	log.WithFields(logrus.Fields{
		"version":  version,
		"base_url": cfg.API.BaseURL,
	}).Info("starting")

	ring, err := credential.Open(filepath.Join(filepath.Dir(configPath), "credentials"))
	if err != nil {
		return err
	}
	tokens := credential.NewTokenStore(ring)

	db, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("opening local store: %w", err)
	}
	defer db.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	unauthorized := event.NewBroadcaster()

	client := api.NewClient(cfg.API.BaseURL, tokens,
		api.WithTimeout(time.Duration(cfg.API.TimeoutSec)*time.Second),
		api.WithLogger(log.Entry),
		api.WithMetrics(api.NewMetrics(reg)),
		api.WithUnauthorizedSignal(unauthorized),
	)

	if cfg.Metrics.Addr != "" {
		srv := serveMetrics(cfg.Metrics.Addr, reg, log.Entry)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}

	sess := session.NewManager(service.NewAuthService(client), tokens, session.WithLogger(log.Entry))
	taskCtl := tasks.NewController(service.NewTaskService(client),
		tasks.WithSnapshots(db),
		tasks.WithLogger(log.Entry),
	)
	chatCtl := chat.NewController(service.NewChatService(client), db,
		chat.WithErrorTTL(time.Duration(cfg.Chat.ErrorTTLSec)*time.Second),
		chat.WithLogger(log.Entry),
	)

	poller := appsync.New(log.Entry)
	for _, job := range app.Jobs(sess, taskCtl, chatCtl, *cfg) {
		poller.Register(job)
	}
	defer poller.Stop()

	root := app.New(app.Deps{
		Session:      sess,
		Tasks:        taskCtl,
		Chat:         chatCtl,
		Poller:       poller,
		Unauthorized: unauthorized,
		Prefs:        db,
		Config:       *cfg,
		ConfigPath:   configPath,
		Log:          log.Entry,
	})

	p := tea.NewProgram(root, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running application: %w", err)
	}
	log.Info("stopped")
	return nil
}

// serveMetrics exposes reg on addr until the returned server is shut down.
func serveMetrics(addr string, reg *prometheus.Registry, log *logrus.Entry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("metrics listener stopped")
		}
	}()
	log.WithField("addr", addr).Info("serving metrics")
	return srv
}
