package repository

import (
	"context"

	"SignalFeed/internal/domain/models"
)

// StreamHooks are the callbacks a SignalStream fires. OnSignal is invoked
// exactly once per physical delivery; dedup is the store's job. OnConnect
// fires after every successful (re)connect so subscription state can be
// replayed, since the connection itself carries no subscription memory.
type StreamHooks struct {
	OnConnect func()
	OnSignal  func(models.Signal)
	OnError   func(error)
}

// ConnState is the push channel lifecycle state.
type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateErrored
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

type SignalStream interface {
	Open(ctx context.Context, token string, hooks StreamHooks) error
	Subscribe(symbols []string) error
	Unsubscribe() error
	State() ConnState
	Close() error
}

// HistoryPage is one page of REST signal history.
type HistoryPage struct {
	Signals []models.Signal
	HasMore bool
}

type HistorySource interface {
	FetchPage(ctx context.Context, assetIDs []string, page int) (*HistoryPage, error)
}

type Publisher interface {
	Publish(ctx context.Context, s *models.Signal) error
	PublishBatch(ctx context.Context, signals []*models.Signal) error
	Close() error
}

type Storage interface {
	Store(ctx context.Context, s *models.Signal) error
	StoreBatch(ctx context.Context, signals []*models.Signal) error
	Health(ctx context.Context) error
	Close() error
}

type Metrics interface {
	RecordSignal(origin, symbol string)
	RecordDuplicate(origin string)
	RecordArchived(backend, symbol string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	SetConnectionState(state ConnState)
	RecordSubscribe(symbols int)
	SetStoreSize(n int)
}
