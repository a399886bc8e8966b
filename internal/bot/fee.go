package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/degencred/credbot/internal/errs"
	"github.com/degencred/credbot/internal/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const maxListed = 20

func (b *Bot) handlePayFee(ctx context.Context, msg *tgbotapi.Message, user *models.User, args []string) {
	chatID := msg.Chat.ID
	if user.AccessFeePaid {
		b.sendMessage(chatID, "✅ Your access fee is already paid. You're all set.", nil)
		return
	}
	if len(args) == 0 {
		b.sendMessage(chatID, b.feeInstructions(), nil)
		if msg.Chat.IsPrivate() {
			b.setState(user.UserID, stateAwaitingTxReference)
		}
		return
	}
	if err := b.submitFee(ctx, chatID, user, strings.Join(args, " ")); err != nil {
		b.replyError(chatID, err)
	}
}

func (b *Bot) feeInstructions() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "💳 One-time access fee: %s USDT\n\n", b.service.AccessFee().StringFixed(2))
	if b.config.PaymentLink != "" {
		fmt.Fprintf(&sb, "Pay here: %s\n", b.config.PaymentLink)
	}
	if b.config.PaymentAddress != "" {
		fmt.Fprintf(&sb, "Or send to: %s\n", b.config.PaymentAddress)
	}
	sb.WriteString("\nThen reply with your transaction reference, or send /payfee <reference>. An admin will review it.")
	return sb.String()
}

func (b *Bot) submitFee(ctx context.Context, chatID int64, user *models.User, reference string) error {
	var sub *models.AccessFeeSubmission
	err := b.withRetry(ctx, func(ctx context.Context) error {
		var err error
		sub, err = b.service.SubmitFee(ctx, user.UserID, reference)
		return err
	})
	if err != nil {
		return err
	}

	b.sendMessage(chatID, fmt.Sprintf("📨 Submission #%d received. An admin will check it shortly.", sub.ID), nil)
	b.notifyAdmins(ctx, fmt.Sprintf(
		"🧾 New access fee submission #%d\nUser: %s (%d)\nReference: %s",
		sub.ID, displayName(user.Username, user.UserID), user.UserID, sub.TxReference,
	), feeDecisionKeyboard(sub.ID))
	return nil
}

func (b *Bot) handleFeeDecision(ctx context.Context, chatID int64, admin *models.User, args []string, approve bool) {
	cmd := "/rejectfee"
	if approve {
		cmd = "/approvefee"
	}
	if len(args) != 1 {
		b.sendMessage(chatID, "Usage: "+cmd+" <submission id>", nil)
		return
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(args[0], "#"), 10, 64)
	if err != nil {
		b.replyError(chatID, errs.ErrNotFound.Withf("submission %q not found", args[0]))
		return
	}
	if err := b.decideFee(ctx, admin.UserID, chatID, id, approve); err != nil {
		b.replyError(chatID, err)
	}
}

func (b *Bot) decideFee(ctx context.Context, adminID, chatID, id int64, approve bool) error {
	var sub *models.AccessFeeSubmission
	err := b.withRetry(ctx, func(ctx context.Context) error {
		var err error
		if approve {
			sub, err = b.service.ApproveFee(ctx, adminID, id)
		} else {
			sub, err = b.service.RejectFee(ctx, adminID, id)
		}
		return err
	})
	if err != nil {
		return err
	}

	if approve {
		b.sendMessage(chatID, fmt.Sprintf("✅ Submission #%d approved, user %d unlocked.", sub.ID, sub.UserID), nil)
		b.sendMessage(sub.UserID, "🎉 Your access fee was approved. You can now request loans with /loan. See /tiers.", nil)
		return nil
	}
	b.sendMessage(chatID, fmt.Sprintf("❌ Submission #%d rejected.", sub.ID), nil)
	b.sendMessage(sub.UserID, fmt.Sprintf(
		"❌ Your access fee submission #%d was rejected. Check the reference and send /payfee again.", sub.ID,
	), nil)
	return nil
}

func (b *Bot) handlePendingFees(ctx context.Context, chatID int64, admin *models.User) {
	var subs []models.AccessFeeSubmission
	err := b.withRetry(ctx, func(ctx context.Context) error {
		var err error
		subs, err = b.service.PendingFeeSubmissions(ctx, admin.UserID)
		return err
	})
	if err != nil {
		b.replyError(chatID, err)
		return
	}
	if len(subs) == 0 {
		b.sendMessage(chatID, "No pending fee submissions.", nil)
		return
	}
	for i, sub := range subs {
		if i == maxListed {
			b.sendMessage(chatID, fmt.Sprintf("…and %d more.", len(subs)-maxListed), nil)
			break
		}
		b.sendMessage(chatID, fmt.Sprintf(
			"🧾 #%d · user %d · %s\nReference: %s",
			sub.ID, sub.UserID, formatTime(sub.SubmittedAt), sub.TxReference,
		), feeDecisionKeyboard(sub.ID))
	}
}

// handlePaymentNotice points admins at pending submissions a payment-bot
// message may belong to. Approval stays manual.
func (b *Bot) handlePaymentNotice(ctx context.Context, msg *tgbotapi.Message) {
	match, ok := b.detector.Detect(msg.Text)
	if !ok {
		return
	}

	var (
		user *models.User
		subs []models.AccessFeeSubmission
	)
	err := b.withRetry(ctx, func(ctx context.Context) error {
		var err error
		user, subs, err = b.service.CorroboratePayment(ctx, match)
		return err
	})
	if err != nil {
		b.logger.Errorf("Failed to corroborate payment from @%s: %v", match.Username, err)
		return
	}
	if user == nil || len(subs) == 0 {
		b.logger.Debugf("Payment from @%s matches no pending submission", match.Username)
		return
	}

	for _, sub := range subs {
		b.notifyAdmins(ctx, fmt.Sprintf(
			"💸 Payment bot reports %s USDT from @%s.\nMatches pending submission #%d (reference %s). Review before approving.",
			match.Amount.StringFixed(2), match.Username, sub.ID, sub.TxReference,
		), feeDecisionKeyboard(sub.ID))
	}
}
