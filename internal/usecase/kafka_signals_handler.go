package usecase

import (
	"context"
	"encoding/json"
	"time"

	"SignalFeed/internal/domain/models"
	domrepo "SignalFeed/internal/domain/repository"
	pkgkafka "SignalFeed/pkg/kafka"
)

// KafkaSignalsHandler lands archived signals from Kafka into ClickHouse,
// completing the two-hop archival topology (push -> kafka -> clickhouse).
type KafkaSignalsHandler struct {
	topic   string
	storage domrepo.Storage
	metrics domrepo.Metrics
}

func NewKafkaSignalsHandler(topic string, storage domrepo.Storage, metrics domrepo.Metrics) *KafkaSignalsHandler {
	return &KafkaSignalsHandler{topic: topic, storage: storage, metrics: metrics}
}

func (h *KafkaSignalsHandler) Topic() string { return h.topic }

// Handle decodes one archived signal and writes it to storage.
func (h *KafkaSignalsHandler) Handle(ctx context.Context, b []byte) error {
	var s models.Signal
	if err := json.Unmarshal(b, &s); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if err := s.Validate(); err != nil {
		h.metrics.RecordError("consumer_validate")
		return err
	}

	// E2E latency from event time to landing (approx)
	h.metrics.RecordLatency("archive_e2e_seconds", time.Since(s.Timestamp.Time).Seconds())

	start := time.Now()
	err := h.storage.Store(ctx, &s)
	h.metrics.RecordLatency("ch_insert_seconds", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	h.metrics.RecordArchived("clickhouse", s.AssetSymbol)
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaSignalsHandler)(nil)
