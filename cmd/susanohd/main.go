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

	"github.com/takurot/susanoh/internal/classify"
	"github.com/takurot/susanoh/internal/config"
	"github.com/takurot/susanoh/internal/dashboard"
	"github.com/takurot/susanoh/internal/effects"
	"github.com/takurot/susanoh/internal/feed"
	"github.com/takurot/susanoh/internal/logger"
	"github.com/takurot/susanoh/internal/server"
	"github.com/takurot/susanoh/internal/storage"
	"github.com/takurot/susanoh/internal/telegram"
)

// effectTickInterval drives effect expiry while any window is open.
const effectTickInterval = 250 * time.Millisecond

var configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", *configPath)

	var store *storage.Storage
	if cfg.Storage.Enabled {
		store, err = storage.New(cfg.Storage.MaxTransitions, cfg.Storage.Path)
		if err != nil {
			logger.Fatal("Failed to initialize storage: %v", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				logger.Error("Failed to close storage: %v", err)
			}
		}()
		logger.Info("Audit storage opened at %s", cfg.Storage.Path)
	} else {
		logger.Debug("Audit storage disabled")
	}

	var telegramClient *telegram.Client
	if cfg.Telegram.Enabled {
		telegramClient, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, 3, time.Second)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	classifierCfg := classify.Config{
		AmountThreshold:     cfg.Classifier.AmountThreshold,
		CountThreshold:      cfg.Classifier.CountThreshold,
		MarketAvgMultiplier: cfg.Classifier.MarketAvgMultiplier,
		LinkAmountThreshold: cfg.Classifier.LinkAmountThreshold,
		LinkCountThreshold:  cfg.Classifier.LinkCountThreshold,
	}
	effectsCfg := effects.Config{
		HighlightTTL:  cfg.Effects.HighlightTTL,
		BannedGlowTTL: cfg.Effects.BannedGlowTTL,
		LinkBoostTTL:  cfg.Effects.LinkBoostTTL,
		ReducedMotion: cfg.Effects.ReducedMotion,
	}

	var dashStore dashboard.Store
	if store != nil {
		dashStore = store
	}
	var notifier dashboard.Notifier
	if telegramClient != nil {
		notifier = telegramClient
	}
	dash := dashboard.New(dashboard.Config{
		Classifier:   classifierCfg,
		Effects:      effectsCfg,
		MaxIncidents: cfg.Dashboard.MaxIncidents,
	}, dashStore, notifier)

	feedClient := feed.NewClient(cfg.Feed.BaseURL, cfg.Feed.EventLimit, cfg.Feed.Timeout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		cancel()
	}()

	var srv *server.Server
	var srvErr <-chan error
	if cfg.Server.Enabled {
		var transitions server.TransitionReader
		if store != nil {
			transitions = store
		}
		api := server.NewAPIHandlers(dash, transitions)
		srv = server.New(cfg.Server.ListenAddr, server.NewRouter(server.RouterDependencies{API: api}))
		srvErr = srv.Start()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("HTTP shutdown failed: %v", err)
			}
		}()
	}

	if cfg.Telegram.Enabled && telegramClient != nil {
		telegramClient.ListenForCommands(ctx)
	}

	logger.Info("Starting surveillance dashboard (poll: %v, max_incidents: %d)",
		cfg.Feed.PollInterval, cfg.Dashboard.MaxIncidents)

	pollTicker := time.NewTicker(cfg.Feed.PollInterval)
	defer pollTicker.Stop()
	effectTicker := time.NewTicker(effectTickInterval)
	defer effectTicker.Stop()

	consecutiveFailures := 0

	handleCycleResult := func(err error) {
		if err != nil {
			consecutiveFailures++
			logger.Error("Poll cycle failed: %v", err)
			if consecutiveFailures == 1 && cfg.Telegram.Enabled && telegramClient != nil {
				if sendErr := telegramClient.SendError(err); sendErr != nil {
					logger.Warn("Failed to send error notification to Telegram: %v", sendErr)
				}
			}
		} else {
			if consecutiveFailures > 0 && cfg.Telegram.Enabled && telegramClient != nil {
				if sendErr := telegramClient.SendRecovery(consecutiveFailures); sendErr != nil {
					logger.Warn("Failed to send recovery notification to Telegram: %v", sendErr)
				}
			}
			consecutiveFailures = 0
		}
	}

	logger.Debug("Running initial poll cycle")
	handleCycleResult(runPollCycle(ctx, feedClient, dash))

	for {
		select {
		case <-ctx.Done():
			logger.Info("Service stopped")
			return

		case err, ok := <-srvErr:
			if ok && err != nil {
				logger.Fatal("HTTP server failed: %v", err)
			}
			srvErr = nil

		case <-pollTicker.C:
			logger.Debug("Starting scheduled poll cycle")
			handleCycleResult(runPollCycle(ctx, feedClient, dash))

		case now := <-effectTicker.C:
			if dash.AnyEffectsActive(now) {
				dash.Tick(now)
			}
		}
	}
}

func runPollCycle(ctx context.Context, feedClient *feed.Client, dash *dashboard.Dashboard) error {
	startTime := time.Now()

	snap, err := feedClient.FetchSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch snapshot: %w", err)
	}
	logger.Debug("Fetched snapshot: %d users, %d events, %d analyses, %d nodes",
		len(snap.Users), len(snap.Events), len(snap.Analyses), len(snap.Graph.Nodes))

	res := dash.Apply(dashboard.Snapshot{
		Users:    snap.Users,
		Events:   snap.Events,
		Analyses: snap.Analyses,
		Graph:    snap.Graph,
		Stats:    snap.Stats,
	}, time.Now())

	if res.StateChanged || res.TopologyChanged {
		logger.Info("Applied snapshot: %d incidents, topology_changed=%v, %d transitions, %d suspicious links",
			res.Incidents, res.TopologyChanged, len(res.Transitions), len(res.NewlySuspicious))
	} else {
		logger.Debug("Applied snapshot: %d incidents, no changes", res.Incidents)
	}

	logger.Debug("Poll cycle completed in %v", time.Since(startTime))
	return nil
}
