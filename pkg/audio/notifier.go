package audio

import (
	"context"
	"time"

	"github.com/borgmon/alert-keeper/pkg/models"
	"github.com/borgmon/alert-keeper/pkg/scheduler"
	"go.uber.org/zap"
)

// maxPlay bounds how long a notification waits for its chime.
const maxPlay = 5 * time.Second

// Sounder plays PCM produced by this package.
type Sounder interface {
	Play(ctx context.Context, pcm []byte) error
}

// Notifier plays a chime and then hands the alert to the next notifier.
// Alerts get a rising two-note chime, reminders a single note. A chime that
// fails to play is logged and does not fail the notification.
type Notifier struct {
	next    scheduler.Notifier
	sounder Sounder
	logger  *zap.Logger

	alert    []byte
	reminder []byte
}

// NewNotifier creates a Notifier wrapping next.
func NewNotifier(next scheduler.Notifier, sounder Sounder, volume float64, logger *zap.Logger) *Notifier {
	return &Notifier{
		next:     next,
		sounder:  sounder,
		logger:   logger,
		alert:    Chime(volume, 660, 880),
		reminder: Chime(volume, 660),
	}
}

func (n *Notifier) Notify(ctx context.Context, entry models.AlertEntry, kind scheduler.Kind) error {
	sound := n.alert
	if kind == scheduler.KindReminder {
		sound = n.reminder
	}

	playCtx, cancel := context.WithTimeout(ctx, maxPlay)
	defer cancel()
	if err := n.sounder.Play(playCtx, sound); err != nil {
		n.logger.Warn("chime failed", zap.Stringer("kind", kind), zap.Error(err))
	}

	return n.next.Notify(ctx, entry, kind)
}
