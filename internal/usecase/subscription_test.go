package usecase

import (
	"testing"

	drepo "SignalFeed/internal/domain/repository"
)

func TestSetScopeQueuesUntilConnected(t *testing.T) {
	stream := &fakeStream{state: drepo.StateDisconnected}
	tr := NewSubscriptionTracker(stream, nopMetrics{}, false)

	if err := tr.SetScope([]string{"BTC", "ETH"}); err != nil {
		t.Fatalf("set scope: %v", err)
	}
	if stream.subscribeCount() != 0 {
		t.Fatalf("nothing may be sent before connect")
	}

	stream.setState(drepo.StateConnected)
	if err := tr.OnConnected(); err != nil {
		t.Fatalf("on connected: %v", err)
	}
	if stream.subscribeCount() != 1 {
		t.Fatalf("expected queued scope to apply on connect, got %d", stream.subscribeCount())
	}
}

func TestSetScopeCanonicalizesAndCoalesces(t *testing.T) {
	stream := &fakeStream{state: drepo.StateConnected}
	tr := NewSubscriptionTracker(stream, nopMetrics{}, false)

	if err := tr.SetScope([]string{"ETH", "BTC", "BTC", " "}); err != nil {
		t.Fatalf("set scope: %v", err)
	}
	if got := stream.subscribes[0]; len(got) != 2 || got[0] != "BTC" || got[1] != "ETH" {
		t.Fatalf("expected canonical [BTC ETH], got %v", got)
	}

	// Order-insensitive repeat of the same set is a no-op.
	if err := tr.SetScope([]string{"BTC", "ETH"}); err != nil {
		t.Fatalf("repeat scope: %v", err)
	}
	if stream.subscribeCount() != 1 {
		t.Fatalf("identical scope must not resubscribe, got %d", stream.subscribeCount())
	}

	// A genuinely different set is one transition.
	if err := tr.SetScope([]string{"SOL"}); err != nil {
		t.Fatalf("new scope: %v", err)
	}
	if stream.subscribeCount() != 2 {
		t.Fatalf("expected one transition per distinct scope, got %d", stream.subscribeCount())
	}
}

func TestReconnectReplaysUnchangedScope(t *testing.T) {
	stream := &fakeStream{state: drepo.StateConnected}
	tr := NewSubscriptionTracker(stream, nopMetrics{}, false)

	if err := tr.SetScope([]string{"BTC"}); err != nil {
		t.Fatalf("set scope: %v", err)
	}
	// The server forgets everything between connections, so the same scope
	// must be re-sent after a reconnect.
	if err := tr.OnConnected(); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if stream.subscribeCount() != 2 {
		t.Fatalf("expected replay after reconnect, got %d", stream.subscribeCount())
	}
}

func TestEmptyScopeUnsubscribes(t *testing.T) {
	stream := &fakeStream{state: drepo.StateConnected}
	tr := NewSubscriptionTracker(stream, nopMetrics{}, false)

	if err := tr.SetScope([]string{"BTC"}); err != nil {
		t.Fatalf("set scope: %v", err)
	}
	if err := tr.SetScope(nil); err != nil {
		t.Fatalf("clear scope: %v", err)
	}
	if stream.unsubscribes != 1 {
		t.Fatalf("expected unsubscribe for empty scope, got %d", stream.unsubscribes)
	}
	if stream.subscribeCount() != 1 {
		t.Fatalf("empty scope must not subscribe")
	}
}

func TestUnionServerUnsubscribesBeforeResubscribe(t *testing.T) {
	stream := &fakeStream{state: drepo.StateConnected}
	tr := NewSubscriptionTracker(stream, nopMetrics{}, true)

	if err := tr.SetScope([]string{"BTC"}); err != nil {
		t.Fatalf("first scope: %v", err)
	}
	if stream.unsubscribes != 0 {
		t.Fatalf("first subscribe needs no unsubscribe")
	}
	if err := tr.SetScope([]string{"ETH"}); err != nil {
		t.Fatalf("second scope: %v", err)
	}
	if stream.unsubscribes != 1 {
		t.Fatalf("union server needs unsubscribe before resubscribe, got %d", stream.unsubscribes)
	}
	if stream.subscribeCount() != 2 {
		t.Fatalf("expected 2 subscribes, got %d", stream.subscribeCount())
	}
}

func TestFailedApplyKeepsScopePending(t *testing.T) {
	stream := &fakeStream{state: drepo.StateConnected, fail: true}
	tr := NewSubscriptionTracker(stream, nopMetrics{}, false)

	if err := tr.SetScope([]string{"BTC"}); err == nil {
		t.Fatalf("expected subscribe failure")
	}

	// The scope was recorded; the next connect replays it.
	stream.fail = false
	if err := tr.OnConnected(); err != nil {
		t.Fatalf("replay after failure: %v", err)
	}
	if stream.subscribeCount() != 1 {
		t.Fatalf("expected scope replay after failed apply, got %d", stream.subscribeCount())
	}
}
