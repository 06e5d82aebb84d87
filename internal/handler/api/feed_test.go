package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"SignalFeed/internal/domain/models"
	drepo "SignalFeed/internal/domain/repository"
	"SignalFeed/internal/usecase"
	applogger "SignalFeed/pkg/logger"
)

type nopMetrics struct{}

func (nopMetrics) RecordSignal(string, string)        {}
func (nopMetrics) RecordDuplicate(string)             {}
func (nopMetrics) RecordArchived(string, string)      {}
func (nopMetrics) RecordError(string)                 {}
func (nopMetrics) RecordLatency(string, float64)      {}
func (nopMetrics) SetConnectionState(drepo.ConnState) {}
func (nopMetrics) RecordSubscribe(int)                {}
func (nopMetrics) SetStoreSize(int)                   {}

type stubStream struct{}

func (stubStream) Open(context.Context, string, drepo.StreamHooks) error { return nil }
func (stubStream) Subscribe([]string) error                              { return nil }
func (stubStream) Unsubscribe() error                                    { return nil }
func (stubStream) State() drepo.ConnState                                { return drepo.StateConnected }
func (stubStream) Close() error                                          { return nil }

type stubHistory struct{}

func (stubHistory) FetchPage(context.Context, []string, int) (*drepo.HistoryPage, error) {
	return &drepo.HistoryPage{HasMore: false}, nil
}

func newTestServer(t *testing.T) (*echo.Echo, *usecase.Feed) {
	t.Helper()
	l, _ := applogger.New(&applogger.Config{Level: "error", Format: "console", Output: "stderr"})
	tracker := usecase.NewSubscriptionTracker(stubStream{}, nopMetrics{}, false)
	feed := usecase.NewFeed(stubHistory{}, tracker, nopMetrics{}, l)

	e := echo.New()
	NewFeedHandler(l, feed, nil).RegisterRoutes(e)
	return e, feed
}

// envStatus extracts the status code carried in the response envelope; the
// transport status is always 200.
func envStatus(t *testing.T, rec *httptest.ResponseRecorder) int {
	t.Helper()
	var env struct {
		Status int `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return env.Status
}

func doJSON(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestFeedStateEndpoint(t *testing.T) {
	e, feed := newTestServer(t)
	feed.HandlePush(models.Signal{
		ID:          "s1",
		AssetSymbol: "BTC",
		Type:        models.SignalSentiment,
		Strength:    60,
	})

	rec := doJSON(e, http.MethodGet, "/api/feed", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Data models.FeedStateResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Data.Signals) != 1 || resp.Data.Signals[0].ID != "s1" {
		t.Fatalf("unexpected state: %+v", resp.Data)
	}
}

func TestUpdateFiltersEndpoint(t *testing.T) {
	e, feed := newTestServer(t)

	rec := doJSON(e, http.MethodPut, "/api/feed/filters", `{"minStrength": 70, "sortBy": "strength"}`)
	if got := envStatus(t, rec); got != http.StatusOK {
		t.Fatalf("status %d: %s", got, rec.Body.String())
	}
	f := feed.Filter()
	if f.MinStrength != 70 || f.SortBy != models.SortStrength {
		t.Fatalf("filter not applied: %+v", f)
	}

	// Unknown enum values are rejected before reaching the feed.
	rec = doJSON(e, http.MethodPut, "/api/feed/filters", `{"sortBy": "sideways"}`)
	if got := envStatus(t, rec); got != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad sortBy, got %d", got)
	}

	rec = doJSON(e, http.MethodPost, "/api/feed/filters/reset", "")
	if got := envStatus(t, rec); got != http.StatusOK {
		t.Fatalf("reset status %d", got)
	}
	if got := feed.Filter(); got.MinStrength != 0 || got.SortBy != models.SortLatest {
		t.Fatalf("reset did not restore defaults: %+v", got)
	}
}

func TestUpdateScopeEndpoint(t *testing.T) {
	e, feed := newTestServer(t)

	rec := doJSON(e, http.MethodPut, "/api/feed/scope", `{"assets":[{"id":"a1","symbol":"BTC"}]}`)
	if got := envStatus(t, rec); got != http.StatusOK {
		t.Fatalf("status %d: %s", got, rec.Body.String())
	}
	scope := feed.Scope()
	if len(scope) != 1 || scope[0].Symbol != "BTC" {
		t.Fatalf("scope not applied: %+v", scope)
	}

	// Assets missing the upstream id are invalid.
	rec = doJSON(e, http.MethodPut, "/api/feed/scope", `{"assets":[{"symbol":"BTC"}]}`)
	if got := envStatus(t, rec); got != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing id, got %d", got)
	}
}

func TestHealthEndpoint(t *testing.T) {
	e, _ := newTestServer(t)
	rec := doJSON(e, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("health status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected health body %s", rec.Body.String())
	}
}
