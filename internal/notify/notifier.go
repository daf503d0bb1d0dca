// Package notify delivers account lifecycle alerts to chat channels. Events
// are filtered by kind so operators only receive the alerts they want.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

// Sender is one delivery channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// DefaultEvents are the account event kinds forwarded when none are
// configured.
var DefaultEvents = []string{domain.EventFailed, domain.EventPassed, domain.EventPromoted}

// Notifier fans account events out to every Sender. A failing sender does
// not stop delivery to the others.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier. An empty events list means DefaultEvents.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	if len(events) == 0 {
		events = DefaultEvents
	}
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		allowed[strings.TrimSpace(e)] = true
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Enabled reports whether any sender is configured.
func (n *Notifier) Enabled() bool {
	return n != nil && len(n.senders) > 0
}

// AccountEvent formats ev and sends it if its kind is allowed.
func (n *Notifier) AccountEvent(ctx context.Context, ev domain.AccountEvent) error {
	if !n.Enabled() {
		return nil
	}
	if !n.events[ev.Kind] {
		n.logger.DebugContext(ctx, "event filtered out", slog.String("event", ev.Kind))
		return nil
	}
	title, message := Format(ev)
	return n.dispatch(ctx, title, message)
}

// Format renders ev as a title and body.
func Format(ev domain.AccountEvent) (title, message string) {
	switch ev.Kind {
	case domain.EventFailed:
		title = "Evaluation failed"
	case domain.EventPassed:
		title = "Evaluation passed"
	case domain.EventPromoted:
		title = "Promoted to phase 2"
	case domain.EventExpired:
		title = "Evaluation expired"
	case domain.EventTradeClosed:
		title = "Trade closed"
	case domain.EventTradeOpened:
		title = "Trade opened"
	case domain.EventCreated:
		title = "Evaluation created"
	default:
		title = ev.Kind
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Account %s (user %s)\n", ev.AccountID, ev.UserID)
	fmt.Fprintf(&b, "Status: %s, phase %d\n", ev.Status, ev.Phase)
	fmt.Fprintf(&b, "Balance: $%.2f", ev.Balance)
	if ev.TradeID != "" {
		fmt.Fprintf(&b, "\nTrade %s P&L: $%.2f", ev.TradeID, ev.PnL)
	}
	return title, b.String()
}

func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %w", len(errs), errors.Join(errs...))
	}
	return nil
}
