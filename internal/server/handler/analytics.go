package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/polyedge/internal/domain"
	"github.com/alanyoungcy/polyedge/internal/service"
)

// AnalyticsService builds portfolio reports for external wallets.
type AnalyticsService interface {
	LinkWallet(ctx context.Context, sess service.Session, wallet string) (string, error)
	LinkedWallet(ctx context.Context, sess service.Session) (string, error)
	MyReport(ctx context.Context, sess service.Session) (service.PortfolioReport, error)
	Report(ctx context.Context, wallet string) (service.PortfolioReport, error)
}

// LeaderboardService ranks accounts by return.
type LeaderboardService interface {
	Top(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)
}

// AnalyticsHandler serves wallet analytics and the leaderboard.
type AnalyticsHandler struct {
	analytics   AnalyticsService
	leaderboard LeaderboardService
	logger      *slog.Logger
}

func NewAnalyticsHandler(analytics AnalyticsService, leaderboard LeaderboardService, logger *slog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics, leaderboard: leaderboard, logger: logger}
}

// GetWallet returns the caller's linked wallet.
// GET /api/wallet
func (h *AnalyticsHandler) GetWallet(w http.ResponseWriter, r *http.Request) {
	wallet, err := h.analytics.LinkedWallet(r.Context(), sessionOf(r))
	if err != nil {
		writeServiceError(w, r, h.logger, "get wallet", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"wallet": wallet})
}

// LinkWallet stores the caller's wallet.
// PUT /api/wallet
func (h *AnalyticsHandler) LinkWallet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Wallet string `json:"wallet"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	wallet, err := h.analytics.LinkWallet(r.Context(), sessionOf(r), req.Wallet)
	if err != nil {
		writeServiceError(w, r, h.logger, "link wallet", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"wallet": wallet})
}

// MyReport returns analytics for the caller's linked wallet.
// GET /api/analytics
func (h *AnalyticsHandler) MyReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.analytics.MyReport(r.Context(), sessionOf(r))
	if err != nil {
		writeServiceError(w, r, h.logger, "my report", err)
		return
	}
	writeJSON(w, http.StatusOK, toReportJSON(report))
}

// WalletReport returns analytics for any wallet.
// GET /api/analytics/{wallet}
func (h *AnalyticsHandler) WalletReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.analytics.Report(r.Context(), r.PathValue("wallet"))
	if err != nil {
		writeServiceError(w, r, h.logger, "wallet report", err)
		return
	}
	writeJSON(w, http.StatusOK, toReportJSON(report))
}

// Leaderboard returns the top accounts by return.
// GET /api/leaderboard?limit=50
func (h *AnalyticsHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	rows, err := h.leaderboard.Top(r.Context(), queryInt(r, "limit", 0))
	if err != nil {
		writeServiceError(w, r, h.logger, "leaderboard", err)
		return
	}
	out := make([]leaderboardJSON, 0, len(rows))
	for i, e := range rows {
		out = append(out, leaderboardJSON{
			Rank:        i + 1,
			Trader:      e.Trader,
			AccountSize: e.AccountSize,
			EvalType:    string(e.EvalType),
			ReturnPct:   e.ReturnPct,
			TradesCount: e.TradesCount,
			Status:      string(e.Status),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"leaderboard": out})
}
