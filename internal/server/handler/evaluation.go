package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/alanyoungcy/polyedge/internal/domain"
	"github.com/alanyoungcy/polyedge/internal/evaluation"
	"github.com/alanyoungcy/polyedge/internal/service"
	"github.com/alanyoungcy/polyedge/internal/trading"
)

// EvaluationService is what the evaluation endpoints need from the service
// layer.
type EvaluationService interface {
	CreateAccount(ctx context.Context, userID string, evalType domain.EvalType, size float64) (domain.Account, error)
	ListAccounts(ctx context.Context, sess service.Session) ([]domain.Account, error)
	GetAccount(ctx context.Context, sess service.Session, accountID string) (service.AccountView, error)
	ListTrades(ctx context.Context, sess service.Session, accountID string, opts domain.ListOpts) ([]domain.Trade, error)
	Calendar(ctx context.Context, sess service.Session, accountID string, year int, month time.Month, loc *time.Location) (trading.MonthCalendar, error)
	OpenTrade(ctx context.Context, sess service.Session, accountID string, in trading.OpenInput) (domain.Trade, domain.Account, error)
	CloseTrade(ctx context.Context, sess service.Session, accountID, tradeID string, exitPriceCents float64) (trading.CloseResult, error)
}

// SelectionService remembers the caller's working account.
type SelectionService interface {
	Selected(ctx context.Context, sess service.Session) (domain.Account, error)
	Select(ctx context.Context, sess service.Session, accountID string) (domain.Account, error)
}

// EvaluationHandler serves evaluation accounts and their trades.
type EvaluationHandler struct {
	evals     EvaluationService
	selection SelectionService
	now       func() time.Time
	logger    *slog.Logger
}

func NewEvaluationHandler(evals EvaluationService, selection SelectionService, logger *slog.Logger) *EvaluationHandler {
	return &EvaluationHandler{evals: evals, selection: selection, now: time.Now, logger: logger}
}

// ListAccounts returns the caller's accounts, newest first.
// GET /api/evaluations
func (h *EvaluationHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accts, err := h.evals.ListAccounts(r.Context(), sessionOf(r))
	if err != nil {
		writeServiceError(w, r, h.logger, "list accounts", err)
		return
	}
	out := make([]accountJSON, 0, len(accts))
	for _, a := range accts {
		out = append(out, toAccountJSON(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{"evaluations": out})
}

// GetAccount returns one account with its progress metrics.
// GET /api/evaluations/{id}
func (h *EvaluationHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	view, err := h.evals.GetAccount(r.Context(), sessionOf(r), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, h.logger, "get account", err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountViewJSON(view))
}

// ListTrades returns the account's trades, newest first.
// GET /api/evaluations/{id}/trades?limit=50&offset=0
func (h *EvaluationHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)
	trades, err := h.evals.ListTrades(r.Context(), sessionOf(r), r.PathValue("id"), opts)
	if err != nil {
		writeServiceError(w, r, h.logger, "list trades", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"trades": toTradesJSON(trades),
		"limit":  opts.Limit,
		"offset": opts.Offset,
	})
}

type openTradeRequest struct {
	ContractName    string  `json:"contract_name"`
	Side            string  `json:"side"`
	TradeSize       float64 `json:"trade_size"`
	EntryPriceCents float64 `json:"entry_price_cents"`
}

// OpenTrade opens a simulated trade.
// POST /api/evaluations/{id}/trades
func (h *EvaluationHandler) OpenTrade(w http.ResponseWriter, r *http.Request) {
	var req openTradeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	trade, acct, err := h.evals.OpenTrade(r.Context(), sessionOf(r), r.PathValue("id"), trading.OpenInput{
		ContractName:    req.ContractName,
		Side:            domain.Side(strings.ToUpper(strings.TrimSpace(req.Side))),
		TradeSize:       req.TradeSize,
		EntryPriceCents: req.EntryPriceCents,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, "open trade", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"trade":   toTradeJSON(trade),
		"account": toAccountJSON(acct),
	})
}

type closeTradeRequest struct {
	ExitPriceCents float64 `json:"exit_price_cents"`
}

type closeTradeResponse struct {
	Trade          tradeJSON   `json:"trade"`
	Account        accountJSON `json:"account"`
	Outcome        string      `json:"outcome"`
	DrawdownPct    float64     `json:"drawdown_pct"`
	ProfitPct      float64     `json:"profit_pct"`
	ConsistencyPct float64     `json:"consistency_pct"`
}

// CloseTrade closes an open trade and reports the evaluation outcome.
// POST /api/evaluations/{id}/trades/{tradeID}/close
func (h *EvaluationHandler) CloseTrade(w http.ResponseWriter, r *http.Request) {
	var req closeTradeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.evals.CloseTrade(r.Context(), sessionOf(r), r.PathValue("id"), r.PathValue("tradeID"), req.ExitPriceCents)
	if err != nil {
		writeServiceError(w, r, h.logger, "close trade", err)
		return
	}
	writeJSON(w, http.StatusOK, closeTradeResponse{
		Trade:          toTradeJSON(res.Trade),
		Account:        toAccountJSON(res.Decision.Account),
		Outcome:        string(res.Decision.Outcome),
		DrawdownPct:    res.Decision.DrawdownPct,
		ProfitPct:      res.Decision.ProfitPct,
		ConsistencyPct: res.Decision.ConsistencyPct,
	})
}

// Calendar returns the account's daily P&L for one month. year and month
// default to the current month; tz is an IANA zone name, default UTC.
// GET /api/evaluations/{id}/calendar?year=2026&month=3&tz=Europe/London
func (h *EvaluationHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	loc := time.UTC
	if tz := r.URL.Query().Get("tz"); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			writeError(w, http.StatusBadRequest, "unknown time zone "+tz)
			return
		}
		loc = l
	}
	now := h.now().In(loc)
	year := queryInt(r, "year", now.Year())
	month := time.Month(queryInt(r, "month", int(now.Month())))

	cal, err := h.evals.Calendar(r.Context(), sessionOf(r), r.PathValue("id"), year, month, loc)
	if err != nil {
		writeServiceError(w, r, h.logger, "calendar", err)
		return
	}
	writeJSON(w, http.StatusOK, cal)
}

// GetSelection returns the caller's selected account.
// GET /api/selection
func (h *EvaluationHandler) GetSelection(w http.ResponseWriter, r *http.Request) {
	acct, err := h.selection.Selected(r.Context(), sessionOf(r))
	if err != nil {
		writeServiceError(w, r, h.logger, "get selection", err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountViewJSON(service.AccountView{
		Account:  acct,
		Progress: evaluation.ProgressOf(acct, h.now()),
	}))
}

type selectRequest struct {
	AccountID string `json:"account_id"`
}

// SetSelection makes account_id the caller's selected account.
// PUT /api/selection
func (h *EvaluationHandler) SetSelection(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	acct, err := h.selection.Select(r.Context(), sessionOf(r), req.AccountID)
	if err != nil {
		writeServiceError(w, r, h.logger, "set selection", err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountJSON(acct))
}

type createEvaluationRequest struct {
	UserID      string  `json:"user_id"`
	EvalType    string  `json:"eval_type"`
	AccountSize float64 `json:"account_size"`
}

// CreateEvaluation grants a user a new evaluation account. It sits behind
// the API key like every other route.
// POST /api/admin/evaluations
func (h *EvaluationHandler) CreateEvaluation(w http.ResponseWriter, r *http.Request) {
	var req createEvaluationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	acct, err := h.evals.CreateAccount(r.Context(), req.UserID, domain.EvalType(req.EvalType), req.AccountSize)
	if err != nil {
		writeServiceError(w, r, h.logger, "create evaluation", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountJSON(acct))
}
