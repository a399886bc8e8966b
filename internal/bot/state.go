package bot

import (
	"context"

	"github.com/degencred/credbot/internal/errs"
	"github.com/degencred/credbot/internal/metrics"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	stateDefault             = ""
	stateAwaitingTxReference = "awaiting_tx_reference"
)

// sendMessage sends plain text; usernames are not escaped for any parse mode.
func (b *Bot) sendMessage(chatID int64, text string, replyMarkup interface{}) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if replyMarkup != nil {
		msg.ReplyMarkup = replyMarkup
	}
	if _, err := b.API.Send(msg); err != nil {
		b.logger.Errorf("Failed to send message to %d: %v", chatID, err)
	}
}

func (b *Bot) answerCallback(callbackID, text string) {
	if _, err := b.API.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		b.logger.Errorf("Failed to answer callback: %v", err)
	}
}

func (b *Bot) replyError(chatID int64, err error) {
	metrics.CommandFailures.WithLabelValues(string(errs.KindOf(err))).Inc()
	b.sendMessage(chatID, errorText(err), nil)
}

func (b *Bot) isAdmin(ctx context.Context, userID int64) bool {
	var ok bool
	err := b.withRetry(ctx, func(ctx context.Context) error {
		var err error
		ok, err = b.service.IsAdmin(ctx, userID)
		return err
	})
	if err != nil {
		b.logger.Errorf("Admin check for %d failed: %v", userID, err)
		return false
	}
	return ok
}

func (b *Bot) notifyAdmins(ctx context.Context, text string, replyMarkup interface{}) {
	var admins []int64
	err := b.withRetry(ctx, func(ctx context.Context) error {
		var err error
		admins, err = b.service.ListAdmins(ctx)
		return err
	})
	if err != nil {
		b.logger.Errorf("Failed to list admins for notification: %v", err)
		return
	}
	for _, id := range admins {
		b.sendMessage(id, text, replyMarkup)
	}
}

func (b *Bot) setState(userID int64, state string) {
	b.stateMutex.Lock()
	defer b.stateMutex.Unlock()
	if state == stateDefault {
		delete(b.userStates, userID)
	} else {
		b.userStates[userID] = state
	}
	b.logger.Debugf("Set state for user %d: %q", userID, state)
}

func (b *Bot) getUserState(userID int64) string {
	b.stateMutex.Lock()
	defer b.stateMutex.Unlock()
	return b.userStates[userID]
}
