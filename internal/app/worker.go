package app

import (
	"fmt"
	"log/slog"

	"github.com/nsqio/go-nsq"

	"catalogai/internal/config"
)

// StartIngestWorker subscribes the ingest consumer to the document topic.
// The caller stops the returned consumer on shutdown.
func (a *App) StartIngestWorker(cfg *config.Config) (*nsq.Consumer, error) {
	nsqCfg := nsq.NewConfig()
	nsqCfg.MaxInFlight = max(cfg.IngestConcurrency, 1)
	// Ingest failures are recorded as failed jobs, never requeued.
	nsqCfg.MaxAttempts = 1

	consumer, err := nsq.NewConsumer(config.TopicIngestDocument, config.ChannelIngestWorker, nsqCfg)
	if err != nil {
		return nil, fmt.Errorf("nsq consumer error: %w", err)
	}
	consumer.AddConcurrentHandlers(a.IngestConsumer, nsqCfg.MaxInFlight)

	if err := consumer.ConnectToNSQLookupd(cfg.NSQLookupd); err != nil {
		consumer.Stop()
		return nil, fmt.Errorf("connect to nsqlookupd: %w", err)
	}
	slog.Info("ingest worker connected", "topic", config.TopicIngestDocument, "channel", config.ChannelIngestWorker, "concurrency", nsqCfg.MaxInFlight)
	return consumer, nil
}
