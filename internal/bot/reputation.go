package bot

import (
	"context"
	"fmt"
	"strconv"

	"github.com/degencred/credbot/internal/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	peerGrantAmount = 1
	repUsage        = "Usage: /rep @user [amount] [reason], or reply to a message with /rep [amount] [reason]."
)

func (b *Bot) handleRep(ctx context.Context, msg *tgbotapi.Message, granter *models.User, args []string) {
	chatID := msg.Chat.ID
	reply := msg.ReplyToMessage
	hasReply := reply != nil && reply.From != nil && !reply.From.IsBot

	req, err := parseRepArgs(args, hasReply)
	if err != nil {
		b.sendMessage(chatID, repUsage, nil)
		return
	}

	if req.Amount != peerGrantAmount && !b.isAdmin(ctx, granter.UserID) {
		b.sendMessage(chatID, fmt.Sprintf("Members can give %d point at a time. Bigger grants are for admins.", peerGrantAmount), nil)
		return
	}

	var target *models.User
	err = b.withRetry(ctx, func(ctx context.Context) error {
		var err error
		if req.Username != "" {
			target, err = b.service.FindUserByUsername(ctx, req.Username)
		} else {
			target, err = b.service.GetOrCreateUser(ctx, reply.From.ID, reply.From.UserName)
		}
		return err
	})
	if err != nil {
		b.replyError(chatID, err)
		return
	}

	from := granter.UserID
	var recipient *models.User
	err = b.withRetry(ctx, func(ctx context.Context) error {
		var err error
		_, recipient, err = b.service.Grant(ctx, &from, target.UserID, chatID, req.Amount, req.Reason)
		return err
	})
	if err != nil {
		b.replyError(chatID, err)
		return
	}

	b.sendMessage(chatID, fmt.Sprintf(
		"⭐ %s +%d rep from %s. Total %d, level %d.",
		displayName(recipient.Username, recipient.UserID), req.Amount,
		displayName(granter.Username, granter.UserID), recipient.TotalRep, recipient.Level,
	), nil)
}

func (b *Bot) handleLeaderboard(ctx context.Context, chatID int64, args []string) {
	limit := 0
	if len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil {
			limit = n
		}
	}

	var users []models.User
	err := b.withRetry(ctx, func(ctx context.Context) error {
		var err error
		users, err = b.service.Leaderboard(ctx, limit)
		return err
	})
	if err != nil {
		b.replyError(chatID, err)
		return
	}
	b.sendMessage(chatID, formatLeaderboard(users), nil)
}
