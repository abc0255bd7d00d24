package app

import (
	"context"
	"net/http"

	"MediaTrend/internal/config"
	"MediaTrend/internal/domain"
	"MediaTrend/internal/infrastructure/telegram"
	"MediaTrend/internal/ports"
)

// outcomeNotifier reads the Telegram credentials at publish time, so dashboard edits apply
// without a restart. Unconfigured credentials mean no message.
type outcomeNotifier struct {
	store  *config.Store
	client *http.Client
}

var _ ports.Notifier = (*outcomeNotifier)(nil)

func (n *outcomeNotifier) PublishOutcome(ctx context.Context, outcome domain.RunOutcome) error {
	tg := n.store.Current().Notifications.Telegram
	notifier := telegram.NewNotifier(tg.BotToken, tg.ChatID, n.client)
	if !notifier.Configured() {
		return nil
	}
	return notifier.PublishOutcome(ctx, outcome)
}
