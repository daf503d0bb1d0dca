package s3blob

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

const contentTypeJSONL = "application/x-ndjson"

// archiveRecord is one JSONL line. The first line of an archive carries the
// account; every following line carries one trade.
type archiveRecord struct {
	Kind    string         `json:"kind"`
	Account *AccountRecord `json:"account,omitempty"`
	Trade   *TradeRecord   `json:"trade,omitempty"`
}

// AccountRecord is the archived form of an evaluation account.
type AccountRecord struct {
	ID                 string    `json:"id"`
	UserID             string    `json:"user_id"`
	EvalType           string    `json:"eval_type"`
	AccountSize        float64   `json:"account_size"`
	ProfitTargetPct    float64   `json:"profit_target_pct"`
	MaxDrawdownPct     float64   `json:"max_drawdown_pct"`
	ConsistencyRulePct float64   `json:"consistency_rule_pct"`
	MinTrades          int       `json:"min_trades"`
	Phase              int       `json:"phase"`
	Status             string    `json:"status"`
	StartingBalance    float64   `json:"starting_balance"`
	Balance            float64   `json:"balance"`
	HighWaterMark      float64   `json:"high_water_mark"`
	TradesCount        int       `json:"trades_count"`
	TotalProfit        float64   `json:"total_profit"`
	TotalLoss          float64   `json:"total_loss"`
	LargestTradeProfit float64   `json:"largest_trade_profit"`
	CreatedAt          time.Time `json:"created_at"`
	ExpiresAt          time.Time `json:"expires_at"`
}

// TradeRecord is the archived form of a trade.
type TradeRecord struct {
	ID           string     `json:"id"`
	ContractName string     `json:"contract_name"`
	Side         string     `json:"side"`
	TradeSize    float64    `json:"trade_size"`
	EntryPrice   float64    `json:"entry_price"`
	Commission   float64    `json:"commission"`
	Status       string     `json:"status"`
	OpenedAt     time.Time  `json:"opened_at"`
	ExitPrice    *float64   `json:"exit_price,omitempty"`
	PnL          *float64   `json:"pnl,omitempty"`
	ClosedAt     *time.Time `json:"closed_at,omitempty"`
}

// Archive is a decoded evaluation archive.
type Archive struct {
	Account AccountRecord `json:"account"`
	Trades  []TradeRecord `json:"trades"`
}

// ArchiveImpl implements domain.Archiver by serializing an account and its
// trade ledger to JSONL and uploading it. Primary records are left in place.
type ArchiveImpl struct {
	writer domain.BlobWriter
	reader *Reader
	audit  domain.AuditStore
	now    func() time.Time
}

// NewArchiver creates an archiver. reader may be nil when archives are only
// written.
func NewArchiver(writer domain.BlobWriter, reader *Reader, audit domain.AuditStore) *ArchiveImpl {
	return &ArchiveImpl{writer: writer, reader: reader, audit: audit, now: time.Now}
}

// ArchiveAccount uploads acct and trades to
// archive/evaluations/YYYY-MM/{account id}.jsonl, partitioned by the month
// of the upload, and records the upload in the audit log.
func (a *ArchiveImpl) ArchiveAccount(ctx context.Context, acct domain.Account, trades []domain.Trade) (string, error) {
	records := make([]archiveRecord, 0, len(trades)+1)
	ar := toAccountRecord(acct)
	records = append(records, archiveRecord{Kind: "account", Account: &ar})
	for _, t := range trades {
		tr := toTradeRecord(t)
		records = append(records, archiveRecord{Kind: "trade", Trade: &tr})
	}

	buf, err := marshalJSONL(records)
	if err != nil {
		return "", fmt.Errorf("s3blob: archive account %s marshal: %w", acct.ID, err)
	}

	path := ArchivePath(acct.ID, a.now())
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), contentTypeJSONL); err != nil {
		return "", fmt.Errorf("s3blob: archive account %s upload: %w", acct.ID, err)
	}

	if a.audit != nil {
		if err := a.audit.Log(ctx, "archive.evaluation", map[string]any{
			"path":       path,
			"account_id": acct.ID,
			"status":     string(acct.Status),
			"trades":     len(trades),
		}); err != nil {
			return path, fmt.Errorf("s3blob: archive account %s audit log: %w", acct.ID, err)
		}
	}
	return path, nil
}

// ReadArchive downloads and decodes the archive at path.
func (a *ArchiveImpl) ReadArchive(ctx context.Context, path string) (Archive, error) {
	if a.reader == nil {
		return Archive{}, fmt.Errorf("s3blob: read archive %s: no reader configured", path)
	}
	body, err := a.reader.Get(ctx, path)
	if err != nil {
		return Archive{}, err
	}
	defer body.Close()

	var out Archive
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 64*1024), 4<<20)
	line := 0
	for sc.Scan() {
		line++
		if len(bytes.TrimSpace(sc.Bytes())) == 0 {
			continue
		}
		var rec archiveRecord
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			return Archive{}, fmt.Errorf("s3blob: read archive %s line %d: %w", path, line, err)
		}
		switch {
		case rec.Account != nil:
			out.Account = *rec.Account
		case rec.Trade != nil:
			out.Trades = append(out.Trades, *rec.Trade)
		}
	}
	if err := sc.Err(); err != nil {
		return Archive{}, fmt.Errorf("s3blob: read archive %s: %w", path, err)
	}
	return out, nil
}

// ListArchives lists archive objects for the given month ("2006-01"), or
// all months when month is empty.
func (a *ArchiveImpl) ListArchives(ctx context.Context, month string) ([]ObjectInfo, error) {
	if a.reader == nil {
		return nil, fmt.Errorf("s3blob: list archives: no reader configured")
	}
	prefix := "archive/evaluations/"
	if month != "" {
		prefix += month + "/"
	}
	return a.reader.List(ctx, prefix)
}

// ArchivePath builds the object key for an account archive.
//
//	archive/evaluations/2026-03/3f1c....jsonl
func ArchivePath(accountID string, at time.Time) string {
	return fmt.Sprintf("archive/evaluations/%s/%s.jsonl", at.UTC().Format("2006-01"), accountID)
}

func toAccountRecord(a domain.Account) AccountRecord {
	return AccountRecord{
		ID:                 a.ID,
		UserID:             a.UserID,
		EvalType:           string(a.EvalType),
		AccountSize:        a.AccountSize,
		ProfitTargetPct:    a.ProfitTargetPct,
		MaxDrawdownPct:     a.MaxDrawdownPct,
		ConsistencyRulePct: a.ConsistencyRulePct,
		MinTrades:          a.MinTrades,
		Phase:              a.Phase,
		Status:             string(a.Status),
		StartingBalance:    a.StartingBalance,
		Balance:            a.Balance,
		HighWaterMark:      a.HighWaterMark,
		TradesCount:        a.TradesCount,
		TotalProfit:        a.TotalProfit,
		TotalLoss:          a.TotalLoss,
		LargestTradeProfit: a.LargestTradeProfit,
		CreatedAt:          a.CreatedAt,
		ExpiresAt:          a.ExpiresAt,
	}
}

func toTradeRecord(t domain.Trade) TradeRecord {
	return TradeRecord{
		ID:           t.ID,
		ContractName: t.ContractName,
		Side:         string(t.Side),
		TradeSize:    t.TradeSize,
		EntryPrice:   t.EntryPrice,
		Commission:   t.Commission,
		Status:       string(t.Status),
		OpenedAt:     t.OpenedAt,
		ExitPrice:    t.ExitPrice,
		PnL:          t.PnL,
		ClosedAt:     t.ClosedAt,
	}
}

// marshalJSONL serialises records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

var _ domain.Archiver = (*ArchiveImpl)(nil)
