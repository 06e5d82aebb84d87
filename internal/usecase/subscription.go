package usecase

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	drepo "SignalFeed/internal/domain/repository"
)

// SubscriptionTracker maps the watched asset set to server-side subscription
// state. Scopes are canonicalized (deduplicated, sorted) so exactly one
// subscribe transition happens per distinct change, never a storm of
// per-symbol messages. Nothing is emitted before the stream is connected;
// a pending scope is replayed once it is.
type SubscriptionTracker struct {
	stream  drepo.SignalStream
	metrics drepo.Metrics

	// unionServer covers servers that union instead of replace the watched
	// set on subscribe: an explicit unsubscribe is sent first. The default
	// upstream contract is replace.
	unionServer bool

	mu          sync.Mutex
	scope       []string
	scopeKey    string
	appliedKey  string
	everApplied bool
}

func NewSubscriptionTracker(stream drepo.SignalStream, metrics drepo.Metrics, unionServer bool) *SubscriptionTracker {
	return &SubscriptionTracker{stream: stream, metrics: metrics, unionServer: unionServer}
}

// SetScope records the watched symbol set and, if the stream is connected,
// applies it. An order-insensitive repeat of the current scope is a no-op.
func (t *SubscriptionTracker) SetScope(symbols []string) error {
	canon := Canonicalize(symbols)
	key := strings.Join(canon, ",")

	t.mu.Lock()
	defer t.mu.Unlock()
	if key == t.scopeKey && t.everApplied {
		return nil
	}
	t.scope = canon
	t.scopeKey = key
	if t.stream.State() != drepo.StateConnected {
		return nil // replayed by OnConnected
	}
	return t.applyLocked()
}

// OnConnected must be called after every successful (re)connect. The server
// remembers nothing across connections, so the current scope is always
// re-applied even if it matches what the previous connection carried.
func (t *SubscriptionTracker) OnConnected() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.appliedKey = ""
	t.everApplied = false
	return t.applyLocked()
}

// Scope returns the current canonical scope.
func (t *SubscriptionTracker) Scope() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.scope)
}

func (t *SubscriptionTracker) applyLocked() error {
	if t.everApplied && t.scopeKey == t.appliedKey {
		return nil
	}

	if len(t.scope) == 0 {
		if err := t.stream.Unsubscribe(); err != nil {
			return fmt.Errorf("unsubscribe: %w", err)
		}
	} else {
		if t.unionServer && t.everApplied && t.appliedKey != "" {
			if err := t.stream.Unsubscribe(); err != nil {
				return fmt.Errorf("unsubscribe before resubscribe: %w", err)
			}
		}
		if err := t.stream.Subscribe(t.scope); err != nil {
			return fmt.Errorf("subscribe %d assets: %w", len(t.scope), err)
		}
	}

	t.appliedKey = t.scopeKey
	t.everApplied = true
	t.metrics.RecordSubscribe(len(t.scope))
	return nil
}

// Canonicalize returns the sorted, deduplicated form of a symbol set.
func Canonicalize(symbols []string) []string {
	out := make([]string, 0, len(symbols))
	seen := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	slices.Sort(out)
	return out
}
