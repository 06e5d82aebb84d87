package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"SignalFeed/internal/domain/models"
	"SignalFeed/internal/domain/repository"
	pkgkafka "SignalFeed/pkg/kafka"
)

// ClickHouseStorage lands archived signals in a signals_raw table.
type ClickHouseStorage struct {
	db    *sql.DB
	table string
}

// NewClickHouseStorage creates ClickHouse signal storage.
func NewClickHouseStorage(db *sql.DB, table string) repository.Storage {
	return &ClickHouseStorage{db: db, table: table}
}

func (s *ClickHouseStorage) Store(ctx context.Context, sig *models.Signal) error {
	q := fmt.Sprintf("INSERT INTO %s (id, asset_id, asset_symbol, type, strength, description, ts, sources) VALUES (?, ?, ?, ?, ?, ?, ?, ?)", s.table)
	_, err := s.db.ExecContext(ctx, q, signalArgs(sig)...)
	return err
}

func (s *ClickHouseStorage) StoreBatch(ctx context.Context, signals []*models.Signal) error {
	if len(signals) == 0 {
		return nil
	}
	// Multi-row VALUES to reduce round-trips; chunked so a large backlog
	// flush stays under statement limits.
	const chunkSize = 2000
	for start := 0; start < len(signals); start += chunkSize {
		end := min(start+chunkSize, len(signals))

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*8)
		for _, sig := range signals[start:end] {
			if sig == nil || sig.ID == "" {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args, signalArgs(sig)...)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (id, asset_id, asset_symbol, type, strength, description, ts, sources) VALUES %s",
			s.table, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return err
		}
	}
	return nil
}

func signalArgs(sig *models.Signal) []interface{} {
	sources, _ := json.Marshal(sig.Sources)
	return []interface{}{
		sig.ID,
		sig.AssetID,
		sig.AssetSymbol,
		string(sig.Type),
		sig.Strength,
		sig.Description,
		sig.Timestamp.Time,
		string(sources),
	}
}

func (s *ClickHouseStorage) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseStorage) Close() error {
	return nil // pool managed by pkg/clickhouse
}

// KafkaPublisher publishes archived signals keyed by asset symbol so
// per-asset ordering survives partitioning.
type KafkaPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaPublisher creates a Kafka signal publisher.
func NewKafkaPublisher(producer *pkgkafka.Producer, topic string) repository.Publisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, sig *models.Signal) error {
	return p.producer.Publish(ctx, p.topic, []byte(sig.AssetSymbol), sig)
}

func (p *KafkaPublisher) PublishBatch(ctx context.Context, signals []*models.Signal) error {
	if len(signals) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(signals))
	for i, sig := range signals {
		msgs[i] = pkgkafka.Message{Key: []byte(sig.AssetSymbol), Value: sig}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
