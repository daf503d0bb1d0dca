// Package polymarket reads public market data from the Polymarket Gamma and
// Data APIs.
package polymarket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

// maxBodyBytes caps a single response; positions and activity top out at a
// few hundred records.
const maxBodyBytes = 16 << 20

// MirrorFetcher issues GET requests through a rotating list of mirror URL
// templates. "{url}" in a template is replaced by the query-escaped target
// and "{raw}" by the target as is. With no mirrors, requests go direct.
//
// Each call makes at most one attempt per mirror, starting from the mirror
// that last succeeded.
type MirrorFetcher struct {
	mirrors []string
	client  *http.Client
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.Mutex
	cursor int
}

// NewMirrorFetcher creates a fetcher. timeout bounds each attempt.
func NewMirrorFetcher(mirrors []string, timeout time.Duration, logger *slog.Logger) *MirrorFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &MirrorFetcher{
		mirrors: append([]string(nil), mirrors...),
		client:  &http.Client{},
		timeout: timeout,
		logger:  logger.With(slog.String("component", "mirror_fetcher")),
	}
}

// Expand fills a mirror template with target.
func Expand(template, target string) string {
	out := strings.ReplaceAll(template, "{url}", url.QueryEscape(target))
	return strings.ReplaceAll(out, "{raw}", target)
}

// Get fetches target and returns its JSON body. An empty body is returned
// as an empty array. When every attempt fails the error wraps
// domain.ErrExternalService and the last attempt's error.
func (f *MirrorFetcher) Get(ctx context.Context, target string) (json.RawMessage, error) {
	if len(f.mirrors) == 0 {
		body, err := f.attempt(ctx, target)
		if err != nil {
			return nil, fmt.Errorf("polymarket: fetch %s: %w: %w", target, domain.ErrExternalService, err)
		}
		return body, nil
	}

	f.mu.Lock()
	start := f.cursor
	f.mu.Unlock()

	n := len(f.mirrors)
	var lastErr error
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("polymarket: fetch %s: %w", target, err)
		}
		idx := (start + i) % n
		body, err := f.attempt(ctx, Expand(f.mirrors[idx], target))
		if err != nil {
			lastErr = err
			f.logger.WarnContext(ctx, "mirror attempt failed",
				slog.Int("mirror", idx),
				slog.String("target", target),
				slog.String("error", err.Error()),
			)
			continue
		}
		f.mu.Lock()
		f.cursor = idx
		f.mu.Unlock()
		return body, nil
	}
	return nil, fmt.Errorf("polymarket: fetch %s: all %d mirrors failed: %w: %w", target, n, domain.ErrExternalService, lastErr)
}

func (f *MirrorFetcher) attempt(ctx context.Context, rawURL string) (json.RawMessage, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, truncate(body, 200))
	}

	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return json.RawMessage("[]"), nil
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("invalid json body: %s", truncate(body, 200))
	}
	return json.RawMessage(body), nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
