package bot

import (
	"context"

	"github.com/degencred/credbot/internal/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type messageHandler func(context.Context, *tgbotapi.Message, *models.User)

// withUserCheck registers the sender (refreshing username and last activity)
// before the handler runs.
func (b *Bot) withUserCheck(handler messageHandler) func(context.Context, *tgbotapi.Message) {
	return func(ctx context.Context, msg *tgbotapi.Message) {
		var user *models.User
		err := b.withRetry(ctx, func(ctx context.Context) error {
			var err error
			user, err = b.service.GetOrCreateUser(ctx, msg.From.ID, msg.From.UserName)
			return err
		})
		if err != nil {
			b.logger.Errorf("Failed to get or create user %d: %v", msg.From.ID, err)
			b.replyError(msg.Chat.ID, err)
			return
		}

		handler(ctx, msg, user)
	}
}
