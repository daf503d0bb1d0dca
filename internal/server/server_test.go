package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyedge/internal/domain"
	"github.com/alanyoungcy/polyedge/internal/evaluation"
	"github.com/alanyoungcy/polyedge/internal/server/handler"
	"github.com/alanyoungcy/polyedge/internal/server/ws"
	"github.com/alanyoungcy/polyedge/internal/service"
	"github.com/alanyoungcy/polyedge/internal/store/memory"
)

const testKey = "secret"

type failingMarkets struct{}

func (failingMarkets) GetMarkets(context.Context, int, int) ([]domain.Market, error) {
	return nil, domain.ErrExternalService
}

func (failingMarkets) SearchMarkets(context.Context, string) ([]domain.Market, error) {
	return nil, domain.ErrExternalService
}

func (failingMarkets) GetEvents(context.Context, int) ([]domain.MarketEvent, error) {
	return nil, domain.ErrExternalService
}

type denyAll struct{}

func (denyAll) Allow(context.Context, string, int, time.Duration) (bool, error) { return false, nil }

type fixture struct {
	handler http.Handler
	bus     *memory.SignalBus
	hub     *ws.Hub
}

func newFixture(t *testing.T, cfg Config, limiter domain.RateLimiter) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db := memory.NewDB()
	bus := memory.NewSignalBus()

	evals := service.NewEvaluationService(service.EvaluationDeps{
		Accounts: db.Accounts(),
		Trades:   db.Trades(),
		Ledger:   db.Ledger(),
		Audit:    db.Audit(),
		Locks:    memory.NewLockManager(),
		Bus:      bus,
	}, service.EvaluationOptions{Rules: evaluation.Options{}}, logger)
	selection := service.NewSelectionService(db.Accounts(), memory.NewSelectionStore(), logger)
	markets := service.NewMarketService(failingMarkets{}, memory.NewMarketListCache(), time.Minute, 10, logger)
	analytics := service.NewAnalyticsService(nil, nil, db.Profiles(), logger)
	board := service.NewLeaderboardService(db.Leaderboard())

	hub := ws.NewHub(bus, logger)
	h := NewHandler(cfg, Handlers{
		Health:      handler.NewHealthHandler(nil, logger),
		Evaluations: handler.NewEvaluationHandler(evals, selection, logger),
		Markets:     handler.NewMarketHandler(markets, logger),
		Analytics:   handler.NewAnalyticsHandler(analytics, board, logger),
	}, hub, limiter, logger)
	return &fixture{handler: h, bus: bus, hub: hub}
}

func (f *fixture) do(t *testing.T, method, path, user string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("X-API-Key", testKey)
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &out)
	}
	return rec, out
}

func TestEvaluationEndpoints(t *testing.T) {
	f := newFixture(t, Config{APIKey: testKey}, nil)

	rec, created := f.do(t, http.MethodPost, "/api/admin/evaluations", "", map[string]any{
		"user_id": "alice", "eval_type": "1-step", "account_size": 1000,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := created["id"].(string)
	assert.Equal(t, 1000.0, created["current_balance"])

	rec, body := f.do(t, http.MethodGet, "/api/evaluations", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["evaluations"], 1)

	rec, body = f.do(t, http.MethodPost, "/api/evaluations/"+id+"/trades", "alice", map[string]any{
		"contract_name": "Fed cuts in June?", "side": "maybe", "trade_size": 10, "entry_price_cents": 40,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid-side", body["kind"])

	rec, body = f.do(t, http.MethodPost, "/api/evaluations/"+id+"/trades", "alice", map[string]any{
		"contract_name": "Fed cuts in June?", "side": "yes", "trade_size": 100, "entry_price_cents": 40,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	trade := body["trade"].(map[string]any)
	assert.Equal(t, "YES", trade["side"])
	assert.Equal(t, 999.0, body["account"].(map[string]any)["current_balance"])

	rec, body = f.do(t, http.MethodPost, "/api/evaluations/"+id+"/trades/"+trade["id"].(string)+"/close", "alice",
		map[string]any{"exit_price_cents": 50})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 25.0, body["trade"].(map[string]any)["pnl"])
	assert.Equal(t, "none", body["outcome"])

	rec, body = f.do(t, http.MethodGet, "/api/evaluations/"+id, "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, body["progress"].(map[string]any)["trades_count"])

	rec, _ = f.do(t, http.MethodGet, "/api/evaluations/"+id, "mallory", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = f.do(t, http.MethodGet, "/api/evaluations", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = f.do(t, http.MethodGet, "/api/evaluations/"+id+"/calendar?month=13", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = f.do(t, http.MethodGet, "/api/selection", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id, body["account"].(map[string]any)["id"])

	rec, body = f.do(t, http.MethodGet, "/api/leaderboard", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rows := body["leaderboard"].([]any)
	require.Len(t, rows, 1)
	assert.Equal(t, "alice", rows[0].(map[string]any)["trader"])
}

func TestWalletEndpoints(t *testing.T) {
	f := newFixture(t, Config{APIKey: testKey}, nil)

	rec, body := f.do(t, http.MethodPut, "/api/wallet", "alice", map[string]any{"wallet": "0xnope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid-wallet", body["kind"])

	rec, _ = f.do(t, http.MethodGet, "/api/wallet", "alice", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, body = f.do(t, http.MethodPut, "/api/wallet", "alice",
		map[string]any{"wallet": "0x52908400098527886e0f7030069857d2e4169ee7"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0x52908400098527886E0F7030069857D2E4169EE7", body["wallet"])
}

func TestErrorMapping(t *testing.T) {
	f := newFixture(t, Config{APIKey: testKey}, nil)

	rec, _ := f.do(t, http.MethodGet, "/api/markets", "", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/evaluations", strings.NewReader("{"))
	req.Header.Set("X-API-Key", testKey)
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestMiddlewareChain(t *testing.T) {
	f := newFixture(t, Config{APIKey: testKey, CORSOrigins: []string{"https://app.polyedge.io"}}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, "health needs no key")

	req = httptest.NewRequest(http.MethodGet, "/api/leaderboard", nil)
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/leaderboard", nil)
	req.Header.Set("Authorization", "Bearer "+testKey)
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodOptions, "/api/evaluations", nil)
	req.Header.Set("Origin", "https://app.polyedge.io")
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.polyedge.io", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "X-User-ID")

	req = httptest.NewRequest(http.MethodOptions, "/api/evaluations", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	f := newFixture(t, Config{RateLimit: 1, RateWindow: time.Minute}, denyAll{})
	rec, _ := f.do(t, http.MethodGet, "/api/leaderboard", "alice", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestWebSocketStreamsOwnEvents(t *testing.T) {
	f := newFixture(t, Config{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.hub.Run(ctx)

	srv := httptest.NewServer(f.handler)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?user_id=alice"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var hello map[string]any
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, "hello", hello["type"])

	require.Eventually(t, func() bool { return f.hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	publish := func(user, account string) {
		b, err := json.Marshal(domain.AccountEvent{Kind: domain.EventTradeOpened, UserID: user, AccountID: account})
		require.NoError(t, err)
		require.NoError(t, f.bus.Publish(ctx, domain.ChannelAccountEvents, b))
	}
	publish("bob", "b-1")
	publish("alice", "a-1")

	var msg struct {
		Type    string              `json:"type"`
		Payload domain.AccountEvent `json:"payload"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "account_event", msg.Type)
	assert.Equal(t, "a-1", msg.Payload.AccountID)
}

func TestWebSocketRequiresUser(t *testing.T) {
	f := newFixture(t, Config{}, nil)
	srv := httptest.NewServer(f.handler)
	defer srv.Close()

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
