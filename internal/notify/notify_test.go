package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

type recordingSender struct {
	name   string
	titles []string
	err    error
}

func (r *recordingSender) Send(_ context.Context, title, _ string) error {
	r.titles = append(r.titles, title)
	return r.err
}

func (r *recordingSender) Name() string { return r.name }

func TestNotifier_FiltersByKind(t *testing.T) {
	s := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{s}, nil, nil)
	ctx := context.Background()

	require.NoError(t, n.AccountEvent(ctx, domain.AccountEvent{Kind: domain.EventTradeOpened}))
	require.NoError(t, n.AccountEvent(ctx, domain.AccountEvent{Kind: domain.EventFailed}))
	require.NoError(t, n.AccountEvent(ctx, domain.AccountEvent{Kind: domain.EventPromoted}))

	assert.Equal(t, []string{"Evaluation failed", "Promoted to phase 2"}, s.titles)
}

func TestNotifier_OneSenderFails(t *testing.T) {
	bad := &recordingSender{name: "bad", err: errors.New("boom")}
	good := &recordingSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, []string{domain.EventPassed}, nil)

	err := n.AccountEvent(context.Background(), domain.AccountEvent{Kind: domain.EventPassed})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad: boom")
	assert.Len(t, good.titles, 1)
}

func TestNotifier_NoSenders(t *testing.T) {
	var n *Notifier
	assert.False(t, n.Enabled())
	assert.NoError(t, n.AccountEvent(context.Background(), domain.AccountEvent{Kind: domain.EventFailed}))
}

func TestFormat(t *testing.T) {
	title, msg := Format(domain.AccountEvent{
		Kind: domain.EventTradeClosed, AccountID: "a1", UserID: "u1",
		Status: "active", Phase: 1, Balance: 10120.5, TradeID: "t1", PnL: 120.5,
	})
	assert.Equal(t, "Trade closed", title)
	assert.Contains(t, msg, "Balance: $10120.50")
	assert.Contains(t, msg, "Trade t1 P&L: $120.50")
}

func TestDiscordSender(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	require.NoError(t, NewDiscordSender(srv.URL).Send(context.Background(), "Hi", "body"))
	assert.Equal(t, "**Hi**\nbody", got["content"])
}

func TestTelegramSender(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		var got map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, "42", got["chat_id"])
		http.Error(w, "bad chat", http.StatusBadRequest)
	}))
	defer srv.Close()

	s := NewTelegramSender("TOKEN", "42")
	s.apiBase = srv.URL
	err := s.Send(context.Background(), "Hi", "body")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 400")
}
