package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/example/mailwatch/internal/api"
	"github.com/example/mailwatch/internal/channels"
	"github.com/example/mailwatch/internal/config"
	"github.com/example/mailwatch/internal/dispatch"
	"github.com/example/mailwatch/internal/events"
	"github.com/example/mailwatch/internal/filter"
	"github.com/example/mailwatch/internal/journal"
	"github.com/example/mailwatch/internal/kafka/producer"
	"github.com/example/mailwatch/internal/logger"
	"github.com/example/mailwatch/internal/mailbox"
	"github.com/example/mailwatch/internal/scheduler"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fail("config load", err)
	}

	baseLogger, err := logger.New(cfg.App.Env, cfg.App.LogLevel, cfg.App.LogFile)
	if err != nil {
		fail("logger init", err)
	}
	log := baseLogger.With().Str("service", "mailwatch").Logger()

	runID := uuid.NewString()
	log.Info().Str("run_id", runID).Msg("mailwatch starting")

	store, err := buildJournal(cfg.Journal, runID)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open delivery journal")
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close delivery journal")
		}
	}()

	policy, err := dispatch.ParsePolicy(cfg.Dispatch.Policy)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid dispatch policy")
	}

	registry, err := channels.Build(cfg.Channels, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build channels")
	}

	sinks := events.Multi{events.NewLogSink(log)}
	if len(cfg.Events.KafkaBrokers) > 0 {
		prod, err := producer.New(cfg.Events.KafkaBrokers, log.With().Str("component", "kafka").Logger())
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create kafka producer")
		}
		defer func() {
			if err := prod.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close kafka producer")
			}
		}()
		sinks = append(sinks, events.NewKafkaSink(prod, cfg.Events.KafkaTopic, log))
		log.Info().
			Strs("brokers", cfg.Events.KafkaBrokers).
			Str("topic", cfg.Events.KafkaTopic).
			Msg("kafka event sink enabled")
	}

	history := dispatch.NewHistory(cfg.Dispatch.HistorySize)

	dispatcher, err := dispatch.New(dispatch.Config{
		Policy:      policy,
		Concurrency: cfg.Dispatch.Concurrency,
		SendTimeout: time.Duration(cfg.Dispatch.SendTimeoutSeconds) * time.Second,
	}, dispatch.Dependencies{
		Channels: registry.Channels(),
		Journal:  store,
		Events:   sinks,
		History:  history,
		Logger:   log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise dispatcher")
	}

	client, err := mailbox.NewIMAPClient(mailbox.Config{
		Host:               cfg.Mailbox.Host,
		Port:               cfg.Mailbox.Port,
		Username:           cfg.Mailbox.Username,
		Password:           cfg.Mailbox.Password,
		Mailbox:            cfg.Mailbox.Mailbox,
		UseTLS:             cfg.Mailbox.UseTLS,
		InsecureSkipVerify: cfg.Mailbox.InsecureSkipVerify,
		MaxPerCycle:        cfg.Mailbox.MaxPerCycle,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise mailbox client")
	}

	interval := time.Duration(cfg.Scheduler.CheckIntervalSeconds) * time.Second
	engine, err := scheduler.New(scheduler.Config{
		Interval:    interval,
		BaseBackoff: time.Duration(cfg.Scheduler.BaseBackoffSeconds) * time.Second,
		MaxBackoff:  time.Duration(cfg.Scheduler.MaxBackoffSeconds) * time.Second,
	}, scheduler.Dependencies{
		Mailbox:    client,
		Filter:     filter.ParseList(cfg.Mailbox.FilterSenders),
		Dispatcher: dispatcher,
		Events:     sinks,
		Logger:     log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise scheduler")
	}

	if cfg.App.APIAddr != "" {
		server, err := api.New(api.Config{
			Addr:     cfg.App.APIAddr,
			Policy:   policy,
			Interval: interval,
			Kinds:    registry.Kinds(),
		}, api.Dependencies{
			Engine:  engine,
			History: history,
			Journal: store,
			Logger:  log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialise status api")
		}
		go func() {
			if err := server.Start(); err != nil {
				log.Error().Err(err).Msg("status api terminated")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("failed to shut down status api")
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		if err := engine.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
		close(errCh)
	}()

	log.Info().
		Str("host", cfg.Mailbox.Host).
		Str("mailbox", cfg.Mailbox.Mailbox).
		Str("policy", string(policy)).
		Strs("channels", kindNames(registry)).
		Msg("mailwatch started")

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received; waiting for current message to finish")
		if err := <-errCh; err != nil {
			log.Error().Err(err).Msg("engine terminated with error")
		}
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("engine terminated with error")
		}
	}
}

func buildJournal(cfg config.JournalConfig, runID string) (journal.Store, error) {
	if cfg.Path == "" {
		return journal.NewMemory(), nil
	}
	return journal.NewFile(cfg.Path, runID)
}

func kindNames(registry *channels.Registry) []string {
	kinds := registry.Kinds()
	names := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		names = append(names, string(kind))
	}
	return names
}

func fail(stage string, err error) {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	logger.Fatal().Err(err).Str("stage", stage).Msg("mailwatch init failed")
}
