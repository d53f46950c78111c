package scheduler

import (
	"context"
	"fmt"

	"github.com/borgmon/alert-keeper/pkg/models"
	"go.uber.org/zap"
)

// Kind tells a Notifier whether an alert fires for the first time or repeats.
type Kind int

const (
	KindAlert Kind = iota
	KindReminder
)

func (k Kind) String() string {
	switch k {
	case KindAlert:
		return "alert"
	case KindReminder:
		return "reminder"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Notifier delivers a fired alert to the user.
type Notifier interface {
	Notify(ctx context.Context, entry models.AlertEntry, kind Kind) error
}

// LogNotifier delivers alerts to the log.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, entry models.AlertEntry, kind Kind) error {
	n.logger.Info("alert",
		zap.Stringer("kind", kind),
		zap.String("title", entry.Title),
		zap.Stringer("event", entry.EventID),
		zap.Time("start", entry.InstanceStart),
		zap.Bool("all_day", entry.IsAllDay),
	)
	return nil
}
