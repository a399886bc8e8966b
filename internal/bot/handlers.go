package bot

import (
	"context"
	"strconv"
	"strings"

	"github.com/degencred/credbot/internal/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	actionFeeApprove  = "fee_approve"
	actionFeeReject   = "fee_reject"
	actionLoanApprove = "loan_approve"
	actionLoanDeny    = "loan_deny"
)

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message, user *models.User) {
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)

	name, args, isCommand := parseCommand(text)
	if !isCommand {
		if !msg.Chat.IsPrivate() || text == "" {
			return
		}
		if b.getUserState(user.UserID) == stateAwaitingTxReference {
			b.setState(user.UserID, stateDefault)
			if err := b.submitFee(ctx, chatID, user, text); err != nil {
				b.replyError(chatID, err)
			}
			return
		}
		b.sendMessage(chatID, "Unknown command. Send /help for the list.", nil)
		return
	}

	b.setState(user.UserID, stateDefault)
	b.logger.Infof("Command /%s from user %d in chat %d", name, user.UserID, chatID)

	switch name {
	case "start":
		b.handleStart(chatID, user)
	case "help":
		b.sendMessage(chatID, helpText, nil)
	case "profile":
		b.handleProfile(ctx, chatID, user)
	case "payfee":
		b.handlePayFee(ctx, msg, user, args)
	case "approvefee":
		b.handleFeeDecision(ctx, chatID, user, args, true)
	case "rejectfee":
		b.handleFeeDecision(ctx, chatID, user, args, false)
	case "addadmin":
		b.handleAddAdmin(ctx, chatID, user, args)
	case "pendingfees":
		b.handlePendingFees(ctx, chatID, user)
	case "rep":
		b.handleRep(ctx, msg, user, args)
	case "leaderboard":
		b.handleLeaderboard(ctx, chatID, args)
	case "tiers":
		b.sendMessage(chatID, formatTiers(b.service.Tiers(), user.Level), nil)
	case "loan":
		b.handleLoan(ctx, chatID, user, args)
	case "approveloan":
		b.handleLoanDecision(ctx, chatID, user, args, true)
	case "denyloan":
		b.handleLoanDecision(ctx, chatID, user, args, false)
	case "repay":
		b.handleRepay(ctx, chatID, user, args)
	case "myloans":
		b.handleMyLoans(ctx, chatID, user)
	case "pendingloans":
		b.handlePendingLoans(ctx, chatID, user)
	default:
		if msg.Chat.IsPrivate() {
			b.sendMessage(chatID, "Unknown command. Send /help for the list.", nil)
		}
	}
}

func (b *Bot) handleStart(chatID int64, user *models.User) {
	var sb strings.Builder
	sb.WriteString("👋 Welcome to DegenCred, " + displayName(user.Username, user.UserID) + "!\n\n")
	sb.WriteString("Build reputation in the community and borrow against it.\n")
	if !user.AccessFeePaid {
		sb.WriteString("\n🔒 First step: pay the one-time access fee of " + b.service.AccessFee().StringFixed(2) + " USDT. Send /payfee to see how.\n")
	}
	if b.config.CommunityLink != "" {
		sb.WriteString("\n💬 Community: " + b.config.CommunityLink + "\n")
	}
	sb.WriteString("\nSend /help for all commands.")
	b.sendMessage(chatID, sb.String(), nil)
}

func (b *Bot) handleProfile(ctx context.Context, chatID int64, user *models.User) {
	var profile *models.Profile
	err := b.withRetry(ctx, func(ctx context.Context) error {
		var err error
		profile, err = b.service.Profile(ctx, user.UserID)
		return err
	})
	if err != nil {
		b.replyError(chatID, err)
		return
	}
	b.sendMessage(chatID, formatProfile(profile), nil)
}

func (b *Bot) handleAddAdmin(ctx context.Context, chatID int64, admin *models.User, args []string) {
	if len(args) != 1 {
		b.sendMessage(chatID, "Usage: /addadmin <telegram user id>", nil)
		return
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		b.sendMessage(chatID, "Usage: /addadmin <telegram user id>", nil)
		return
	}
	err = b.withRetry(ctx, func(ctx context.Context) error {
		return b.service.AddAdmin(ctx, admin.UserID, id)
	})
	if err != nil {
		b.replyError(chatID, err)
		return
	}
	b.sendMessage(chatID, "✅ User "+args[0]+" is now an admin.", nil)
}

func (b *Bot) handleCallbackQuery(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	if callback.From == nil {
		return
	}
	if !b.isAdmin(ctx, callback.From.ID) {
		b.answerCallback(callback.ID, "Only admins can do that.")
		return
	}

	action, arg, ok := parseCallbackData(callback.Data)
	if !ok {
		b.logger.Errorf("Invalid callback data: %q", callback.Data)
		b.answerCallback(callback.ID, "Unknown action.")
		return
	}

	adminID := callback.From.ID
	chatID := adminID
	if callback.Message != nil && callback.Message.Chat != nil {
		chatID = callback.Message.Chat.ID
	}

	var err error
	switch action {
	case actionFeeApprove, actionFeeReject:
		id, perr := strconv.ParseInt(arg, 10, 64)
		if perr != nil {
			b.answerCallback(callback.ID, "Bad submission id.")
			return
		}
		err = b.decideFee(ctx, adminID, chatID, id, action == actionFeeApprove)
	case actionLoanApprove, actionLoanDeny:
		err = b.decideLoan(ctx, adminID, chatID, arg, action == actionLoanApprove)
	default:
		b.answerCallback(callback.ID, "Unknown action.")
		return
	}
	if err != nil {
		b.replyError(chatID, err)
		b.answerCallback(callback.ID, "Failed")
		return
	}

	if callback.Message != nil && callback.Message.Chat != nil {
		edit := tgbotapi.NewEditMessageReplyMarkup(callback.Message.Chat.ID, callback.Message.MessageID, tgbotapi.InlineKeyboardMarkup{
			InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{},
		})
		if _, err := b.API.Request(edit); err != nil {
			b.logger.Warnf("Failed to clear keyboard: %v", err)
		}
	}
	b.answerCallback(callback.ID, "Done")
}

func feeDecisionKeyboard(id int64) tgbotapi.InlineKeyboardMarkup {
	arg := strconv.FormatInt(id, 10)
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Approve", actionFeeApprove+":"+arg),
			tgbotapi.NewInlineKeyboardButtonData("❌ Reject", actionFeeReject+":"+arg),
		),
	)
}

func loanDecisionKeyboard(loanID string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Approve", actionLoanApprove+":"+loanID),
			tgbotapi.NewInlineKeyboardButtonData("❌ Deny", actionLoanDeny+":"+loanID),
		),
	)
}
