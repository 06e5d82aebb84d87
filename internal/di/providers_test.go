package di

import (
	"context"
	"testing"

	"SignalFeed/internal/domain/models"
	"SignalFeed/internal/domain/repository"
	"SignalFeed/pkg/config"
)

type nopMetrics struct{}

func (nopMetrics) RecordSignal(string, string)             {}
func (nopMetrics) RecordDuplicate(string)                  {}
func (nopMetrics) RecordArchived(string, string)           {}
func (nopMetrics) RecordError(string)                      {}
func (nopMetrics) RecordLatency(string, float64)           {}
func (nopMetrics) SetConnectionState(repository.ConnState) {}
func (nopMetrics) RecordSubscribe(int)                     {}
func (nopMetrics) SetStoreSize(int)                        {}

type nopStorage struct{}

func (nopStorage) Store(context.Context, *models.Signal) error        { return nil }
func (nopStorage) StoreBatch(context.Context, []*models.Signal) error { return nil }
func (nopStorage) Health(context.Context) error                       { return nil }
func (nopStorage) Close() error                                       { return nil }

func TestNeedsClickHouse(t *testing.T) {
	cases := []struct {
		name    string
		backend string
		groupID string
		brokers []string
		want    bool
	}{
		{"archive backend", "clickhouse", "", nil, true},
		{"kafka backend with landing consumer", "kafka", "signal-landers", []string{"broker:9092"}, true},
		{"kafka backend without consumer", "kafka", "", []string{"broker:9092"}, false},
		{"consumer group without brokers", "none", "signal-landers", nil, false},
		{"nothing configured", "none", "", nil, false},
	}
	for _, tc := range cases {
		cfg := &config.Config{}
		cfg.Archive.Backend = tc.backend
		cfg.Kafka.Consumer.GroupID = tc.groupID
		cfg.Kafka.Brokers = tc.brokers
		if got := needsClickHouse(cfg); got != tc.want {
			t.Fatalf("%s: needsClickHouse = %v, want %v", tc.name, got, tc.want)
		}
	}
}

// A handler without storage would dereference nil on every consumed message,
// so the provider must withhold it instead.
func TestProvideKafkaSignalsHandlerRequiresStorage(t *testing.T) {
	cfg := &config.Config{}
	cfg.Kafka.Topic = "signals"

	if h := ProvideKafkaSignalsHandler(nil, nopMetrics{}, cfg); h != nil {
		t.Fatalf("expected no handler without storage")
	}
	h := ProvideKafkaSignalsHandler(nopStorage{}, nopMetrics{}, cfg)
	if h == nil {
		t.Fatalf("expected handler with storage")
	}
	if h.Topic() != "signals" {
		t.Fatalf("unexpected topic %q", h.Topic())
	}
}
