// Package service orchestrates the evaluation engines, stores, caches and
// market data clients behind the operations the HTTP API and CLI expose.
package service

import (
	"fmt"
	"strings"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

// Session identifies the caller. Identity is established upstream; the
// service only scopes data by UserID.
type Session struct {
	UserID string
}

func (s Session) validate() error {
	if strings.TrimSpace(s.UserID) == "" {
		return fmt.Errorf("service: session has no user: %w", domain.ErrUnauthorized)
	}
	return nil
}
