package di

import (
	"context"
	"fmt"
	"time"

	"SignalFeed/internal/domain/repository"
	"SignalFeed/internal/handler/api"
	mid "SignalFeed/internal/middleware"
	internalrepo "SignalFeed/internal/repository"
	"SignalFeed/internal/service/history"
	"SignalFeed/internal/service/pushchannel"
	"SignalFeed/internal/usecase"
	"SignalFeed/pkg/cache"
	pkgch "SignalFeed/pkg/clickhouse"
	"SignalFeed/pkg/config"
	pkgkafka "SignalFeed/pkg/kafka"
	applogger "SignalFeed/pkg/logger"
	"SignalFeed/pkg/metrics"
	"SignalFeed/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	format := "json"
	if cfg.Environment == "development" {
		format = "console"
	}
	return applogger.New(&applogger.Config{Level: "info", Format: format, Output: "stdout"})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvidePageCache creates the history page cache. Redis-backed with an
// in-process layer when enabled, memory-only otherwise.
func ProvidePageCache(cfg *config.Config) (cache.Service, error) {
	if !cfg.Cache.Redis.Enabled {
		return cache.NewMemoryCache(), nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Cache.Redis.Host),
		cache.WithRedisPort(cfg.Cache.Redis.Port),
		cache.WithRedisPassword(cfg.Cache.Redis.Password),
		cache.WithRedisDB(cfg.Cache.Redis.DB),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return cache.NewLayeredCache(rc), nil
}

// ProvideHistorySource creates the upstream REST history client.
func ProvideHistorySource(cfg *config.Config, pages cache.Service) repository.HistorySource {
	opts := []history.Option{}
	if cfg.Upstream.Timeout > 0 {
		opts = append(opts, history.WithTimeout(cfg.Upstream.Timeout))
	}
	if cfg.Upstream.PageCacheTTL > 0 {
		opts = append(opts, history.WithCache(pages, cfg.Upstream.PageCacheTTL))
	}
	return history.New(cfg.Upstream.BaseURL, cfg.Upstream.AuthToken, opts...)
}

// ProvidePushStream creates the websocket push channel client.
func ProvidePushStream(cfg *config.Config, m repository.Metrics, log *applogger.Logger) repository.SignalStream {
	return pushchannel.New(
		cfg.Push.URL,
		cfg.Push.ReconnectAttempts,
		cfg.Push.ReconnectDelay,
		cfg.Push.PingInterval,
		m,
		log,
	)
}

// ProvideSubscriptionTracker creates the subscription scope tracker.
func ProvideSubscriptionTracker(stream repository.SignalStream, m repository.Metrics, cfg *config.Config) *usecase.SubscriptionTracker {
	return usecase.NewSubscriptionTracker(stream, m, cfg.Push.ResubscribeMode == "union")
}

// ProvideFeed creates the feed use case.
func ProvideFeed(src repository.HistorySource, tracker *usecase.SubscriptionTracker, m repository.Metrics, log *applogger.Logger) *usecase.Feed {
	return usecase.NewFeed(src, tracker, m, log)
}

// needsClickHouse reports whether any configured component writes to
// ClickHouse: the archive backend directly, or the consumer landing
// archived signals from Kafka.
func needsClickHouse(cfg *config.Config) bool {
	if cfg.Archive.Backend == "clickhouse" {
		return true
	}
	return cfg.Kafka.Consumer.GroupID != "" && len(cfg.Kafka.Brokers) > 0
}

// ProvideClickHouseClient creates a ClickHouse client when a configured
// component needs one. Returns nil otherwise.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !needsClickHouse(cfg) {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	// Initialize schema
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db := cfg.ClickHouse.Database
	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS " + db,
		"CREATE TABLE IF NOT EXISTS " + db + ".signals_raw (" +
			"id String, asset_id String, asset_symbol String, type String, " +
			"strength Float64, description String, ts DateTime, sources String" +
			") ENGINE=ReplacingMergeTree ORDER BY (asset_symbol, ts, id)",
	}); err != nil {
		_ = client.Close() // cannot log here (DI layer no logger); propagate error
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer when the archive backend
// needs one. Returns nil otherwise.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if cfg.Archive.Backend != "kafka" {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	return producer, nil
}

// ProvideSignalStorage creates ClickHouse archive storage.
func ProvideSignalStorage(chClient *pkgch.Client, cfg *config.Config) repository.Storage {
	if chClient == nil {
		return nil
	}
	return internalrepo.NewClickHouseStorage(chClient.DB(), cfg.ClickHouse.Database+".signals_raw")
}

// ProvideSignalPublisher creates the Kafka archive publisher.
func ProvideSignalPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.Publisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topic)
}

// ProvideSignalArchiver creates the archive fan-out use case.
func ProvideSignalArchiver(
	pub repository.Publisher,
	store repository.Storage,
	m repository.Metrics,
	cfg *config.Config,
) *usecase.SignalArchiver {
	return usecase.NewSignalArchiver(
		pub,
		store,
		m,
		cfg.Archive.Backend,
		cfg.Archive.BatchSize,
		cfg.Archive.BatchTimeout,
	)
}

// ProvideSignalPipeline builds the middleware pipeline between the push
// channel and the feed.
func ProvideSignalPipeline(
	feed *usecase.Feed,
	archiver *usecase.SignalArchiver,
	m repository.Metrics,
	cfg *config.Config,
) *mid.SignalPipeline {
	opts := []mid.PipelineOption{}
	if cfg.Feed.ThrottleRPS > 0 {
		opts = append(opts, mid.WithMaxRPS(cfg.Feed.ThrottleRPS))
	}
	if cfg.Feed.BufferSize > 0 {
		opts = append(opts, mid.WithBufferSize(cfg.Feed.BufferSize))
	}
	return mid.NewSignalPipeline(feed.HandlePush, archiver, m, opts...)
}

// ProvideFeedCollector creates the collector tying stream, tracker and feed.
func ProvideFeedCollector(
	stream repository.SignalStream,
	tracker *usecase.SubscriptionTracker,
	feed *usecase.Feed,
	pipe *mid.SignalPipeline,
	m repository.Metrics,
	log *applogger.Logger,
	cfg *config.Config,
) *usecase.FeedCollector {
	return usecase.NewFeedCollector(stream, tracker, feed, pipe, m, log, cfg.Upstream.AuthToken)
}

// ProvideKafkaConsumer creates a Kafka consumer for landing archived
// signals into ClickHouse. Only built when a consumer group is configured.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	if cfg.Kafka.Consumer.GroupID == "" || len(cfg.Kafka.Brokers) == 0 {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideKafkaSignalsHandler registers the handler for the signals topic.
// Without storage there is nowhere to land messages, so no handler is built
// and the consumer stays idle.
func ProvideKafkaSignalsHandler(store repository.Storage, m repository.Metrics, cfg *config.Config) *usecase.KafkaSignalsHandler {
	if store == nil {
		return nil
	}
	return usecase.NewKafkaSignalsHandler(cfg.Kafka.Topic, store, m)
}

// ProvideFeedHandler creates the Echo feed handler.
func ProvideFeedHandler(log *applogger.Logger, feed *usecase.Feed, collector *usecase.FeedCollector) *api.FeedHandler {
	return api.NewFeedHandler(log, feed, collector)
}

// kafkaLogSink lets the log collector flush aggregated error logs
// through the shared Kafka producer.
type kafkaLogSink struct {
	producer *pkgkafka.Producer
}

func (s kafkaLogSink) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return s.producer.Publish(ctx, topic, nil, payload)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	feed *usecase.Feed,
	collector *usecase.FeedCollector,
	archiver *usecase.SignalArchiver,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaSignalsHandler,
	chClient *pkgch.Client,
	producer *pkgkafka.Producer,
	handler *api.FeedHandler,
) *server.App {
	// A consumer without a landing handler has nothing to do.
	var landing pkgkafka.MessageHandler
	if kh != nil {
		landing = kh
	} else {
		consumer = nil
	}
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NoopHook{})
	}
	if producer != nil {
		log.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          cfg.Kafka.Topic + ".logs",
			Publisher:      kafkaLogSink{producer: producer},
		})
	}
	return server.New(cfg, log, feed, collector, archiver, consumer, landing, chClient, handler)
}
