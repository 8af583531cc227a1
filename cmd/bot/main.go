package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"SpotSentinel/internal/collector"
	"SpotSentinel/internal/config"
	"SpotSentinel/internal/exchange"
	"SpotSentinel/internal/logger"
	"SpotSentinel/internal/notifier"
	"SpotSentinel/internal/order"
	"SpotSentinel/internal/recorder"
	"SpotSentinel/internal/risk"
	"SpotSentinel/internal/scheduler"
)

func main() {
	log := logger.New()
	log.Info("SpotSentinel starting")

	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.WithError(err).Fatal("load config")
	}
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("config validation")
	}
	if err := logger.Configure(log, cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAgeDays); err != nil {
		log.WithError(err).Fatal("configure logger")
	}

	schedule, err := scheduler.ParseSchedule(cfg.CheckInterval(), cfg.Schedule.Cron)
	if err != nil {
		log.WithError(err).Fatal("parse schedule")
	}

	// Exchange client, also the market data fetcher
	client := exchange.New(exchange.Options{
		BaseURL:           cfg.Exchange.BaseURL,
		APIKey:            cfg.Exchange.APIKey,
		APISecret:         cfg.Exchange.APISecret,
		ProxyURL:          cfg.Proxy,
		Timeout:           cfg.Exchange.Timeout,
		MaxAttempts:       cfg.Exchange.MaxAttempts,
		BackoffMin:        cfg.Exchange.BackoffMin,
		BackoffMax:        cfg.Exchange.BackoffMax,
		RequestsPerSecond: cfg.Exchange.RequestsPerSecond,
		Logger:            logrus.NewEntry(log),
	})
	log.WithFields(logrus.Fields{
		"source":   client.Name(),
		"base_url": cfg.Exchange.BaseURL,
		"symbol":   cfg.Trading.Symbol,
		"dry_run":  cfg.Trading.DryRun,
	}).Info("exchange configured")

	// Notifiers
	var notifiers []notifier.Notifier
	if cfg.Notify.TelegramBotToken != "" && cfg.Notify.TelegramChatID != "" {
		notifiers = append(notifiers, notifier.NewTelegramNotifier(
			cfg.Notify.TelegramBotToken, cfg.Notify.TelegramChatID, cfg.Proxy, logrus.NewEntry(log)))
	}
	if en := notifier.NewEmailNotifier(cfg.Notify.SMTPHost, cfg.Notify.SMTPPort,
		cfg.Notify.SMTPUser, cfg.Notify.SMTPPassword, cfg.Notify.Email); en != nil {
		notifiers = append(notifiers, en)
	}
	notify := notifier.Combine(notifiers...)

	// Order log
	orderLog, err := order.OpenCSVLog(cfg.OrderLog.Path)
	if err != nil {
		log.WithError(err).Fatal("open order log")
	}
	defer orderLog.Close()

	// Init recorder
	var rec recorder.Recorder
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, logrus.NewEntry(log))
		if err != nil {
			log.WithError(err).Warn("init sqlite recorder failed, using noop")
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}
	defer rec.Close()

	var riskChecker order.RiskChecker
	if g := risk.NewGuard(client, cfg.Trading.BaseAsset, cfg.Trading.QuoteAsset,
		cfg.Trading.MaxRiskPercent, logrus.NewEntry(log)); g != nil {
		riskChecker = g
	}

	pipeline := order.NewPipeline(client, orderLog, order.Options{
		Symbol:   cfg.Trading.Symbol,
		Quantity: cfg.Trading.TradeAmount,
		DryRun:   cfg.Trading.DryRun,
		Risk:     riskChecker,
		Notifier: notify,
		Logger:   logrus.NewEntry(log),
	})

	col := collector.NewCollector(client, collector.Options{
		Symbol:        cfg.Trading.Symbol,
		KlineInterval: cfg.Trading.KlineInterval,
		KlineLimit:    cfg.Trading.KlineLimit,
		EMAPeriod:     cfg.Trading.EMAPeriod,
		RSIPeriod:     cfg.Trading.RSIPeriod,
		RefInterval:   cfg.Trading.ReferenceInterval,
		RefField:      cfg.Trading.ReferenceField,
		Logger:        logrus.NewEntry(log),
	})

	sched, err := scheduler.NewScheduler(col, pipeline, scheduler.Options{
		Symbol:   cfg.Trading.Symbol,
		Schedule: schedule,
		Params:   cfg.StrategyParams(),
		Recorder: rec,
		Logger:   logrus.NewEntry(log),
	})
	if err != nil {
		// Fatal skips deferred calls.
		_ = orderLog.Close()
		_ = rec.Close()
		log.WithError(err).Fatal("init scheduler")
	}

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lifecycle(notify, log, "started", cfg)

	done := make(chan struct{})
	go func() {
		defer close(done)
		sched.Run(ctx)
	}()

	log.WithField("order_log", orderLog.Path()).Info("SpotSentinel is running. Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	log.WithField("signal", sig.String()).Info("shutdown signal received, finishing current cycle")
	cancel()
	<-done

	lifecycle(notify, log, "stopped", cfg)
	log.Info("SpotSentinel stopped")
}

func lifecycle(n notifier.Notifier, log *logrus.Logger, event string, cfg *config.Config) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	subject, body := notifier.FormatLifecycle(event, cfg.Trading.Symbol, cfg.Trading.DryRun)
	if err := n.Notify(ctx, subject, body); err != nil {
		log.WithError(err).Warn("lifecycle notification failed")
	}
}
