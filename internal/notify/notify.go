// Package notify sends customer-facing order notifications. Delivery is
// best-effort: every method reports success as a bool and never returns an
// error or panics.
package notify

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/example/delivery-dispatch/internal/logging"
	"github.com/example/delivery-dispatch/internal/observability"
)

type Notifier interface {
	NotifyAccepted(ctx context.Context, phone, orderID, driverName string, etaMinutes int) bool
	NotifyCompleted(ctx context.Context, phone, orderID string) bool
	NotifyCancelled(ctx context.Context, phone, orderID, reason string) bool
}

// Sender delivers one text message and returns the provider's message id.
type Sender interface {
	Send(ctx context.Context, to, body string) (string, error)
}

const DefaultPlatformName = "NYC Delivery"

// SMSNotifier formats order notifications and hands them to a Sender. With
// a nil Sender it only logs and reports false.
type SMSNotifier struct {
	sender   Sender
	platform string
	log      *zap.Logger
}

func NewSMSNotifier(sender Sender, platform string, log *zap.Logger) *SMSNotifier {
	if platform == "" {
		platform = DefaultPlatformName
	}
	return &SMSNotifier{sender: sender, platform: platform, log: logging.OrNop(log)}
}

// NewLogNotifier returns a notifier with SMS disabled.
func NewLogNotifier(platform string, log *zap.Logger) *SMSNotifier {
	return NewSMSNotifier(nil, platform, log)
}

func (n *SMSNotifier) Enabled() bool { return n.sender != nil }

func (n *SMSNotifier) NotifyAccepted(ctx context.Context, phone, orderID, driverName string, etaMinutes int) bool {
	return n.send(ctx, "accepted", phone, AcceptedText(n.platform, orderID, driverName, etaMinutes))
}

func (n *SMSNotifier) NotifyCompleted(ctx context.Context, phone, orderID string) bool {
	return n.send(ctx, "completed", phone, CompletedText(n.platform, orderID))
}

func (n *SMSNotifier) NotifyCancelled(ctx context.Context, phone, orderID, reason string) bool {
	return n.send(ctx, "cancelled", phone, CancelledText(n.platform, orderID, reason))
}

func (n *SMSNotifier) send(ctx context.Context, kind, to, body string) (ok bool) {
	if n.sender == nil {
		n.log.Debug("sms disabled", zap.String("kind", kind), zap.String("to", to), zap.String("body", body))
		observability.Notifications.WithLabelValues(kind, "disabled").Inc()
		return false
	}
	if to == "" {
		n.log.Warn("sms skipped, no phone number", zap.String("kind", kind))
		observability.Notifications.WithLabelValues(kind, "skipped").Inc()
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			n.log.Error("sms sender panicked", zap.String("kind", kind), zap.Any("panic", r))
			observability.Notifications.WithLabelValues(kind, "failed").Inc()
			ok = false
		}
	}()
	if err := ctx.Err(); err != nil {
		n.log.Warn("sms skipped", zap.String("kind", kind), zap.Error(err))
		observability.Notifications.WithLabelValues(kind, "skipped").Inc()
		return false
	}
	sid, err := n.sender.Send(ctx, to, body)
	if err != nil {
		n.log.Error("sms failed", zap.String("kind", kind), zap.String("to", to), zap.Error(err))
		observability.Notifications.WithLabelValues(kind, "failed").Inc()
		return false
	}
	n.log.Info("sms sent", zap.String("kind", kind), zap.String("to", to), zap.String("sid", sid))
	observability.Notifications.WithLabelValues(kind, "sent").Inc()
	return true
}

func AcceptedText(platform, orderID, driverName string, etaMinutes int) string {
	return fmt.Sprintf("%s\nOrder #%s accepted!\nDriver: %s\nETA: ~%d minutes", platform, orderID, driverName, etaMinutes)
}

func CompletedText(platform, orderID string) string {
	return fmt.Sprintf("%s\nOrder #%s delivered!\nThank you for your order!", platform, orderID)
}

func CancelledText(platform, orderID, reason string) string {
	msg := fmt.Sprintf("%s\nOrder #%s cancelled", platform, orderID)
	if reason != "" {
		msg += "\nReason: " + reason
	}
	return msg
}
