package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/degencred/credbot/internal/models"
	"github.com/degencred/credbot/utils"
)

const loanUsage = "Usage: /loan <tier> <amount>, e.g. /loan L1 80. See /tiers."

func (b *Bot) handleLoan(ctx context.Context, chatID int64, user *models.User, args []string) {
	if len(args) != 2 {
		b.sendMessage(chatID, loanUsage, nil)
		return
	}
	amount, err := utils.ParseAmount(args[1])
	if err != nil {
		b.sendMessage(chatID, fmt.Sprintf("⚠️ %q is not a valid amount.\n%s", args[1], loanUsage), nil)
		return
	}

	var loan *models.Loan
	err = b.withRetry(ctx, func(ctx context.Context) error {
		var err error
		loan, err = b.service.RequestLoan(ctx, user.UserID, chatID, args[0], amount)
		return err
	})
	if err != nil {
		b.replyError(chatID, err)
		return
	}

	b.sendMessage(chatID, fmt.Sprintf(
		"📝 Loan request %s submitted\nTier %s · %s USDT at %s\nTotal due: %s USDT within %d days of approval.\nAn admin will review it.",
		loan.LoanID, loan.Level, utils.FormatAmount(loan.Amount), utils.FormatRate(loan.InterestRate),
		utils.FormatAmount(loan.TotalDue), loan.RepaymentDays,
	), nil)
	b.notifyAdmins(ctx, formatLoanForAdmin("🆕 New loan request", loan, user.TotalRep), loanDecisionKeyboard(loan.LoanID))
}

func (b *Bot) handleLoanDecision(ctx context.Context, chatID int64, admin *models.User, args []string, approve bool) {
	if len(args) != 1 {
		cmd := "/denyloan"
		if approve {
			cmd = "/approveloan"
		}
		b.sendMessage(chatID, "Usage: "+cmd+" <loan id>", nil)
		return
	}
	if err := b.decideLoan(ctx, admin.UserID, chatID, args[0], approve); err != nil {
		b.replyError(chatID, err)
	}
}

func (b *Bot) decideLoan(ctx context.Context, adminID, chatID int64, loanID string, approve bool) error {
	var loan *models.Loan
	err := b.withRetry(ctx, func(ctx context.Context) error {
		var err error
		loan, err = b.service.DecideLoan(ctx, adminID, strings.TrimSpace(loanID), approve)
		return err
	})
	if err != nil {
		return err
	}

	if approve {
		b.sendMessage(chatID, fmt.Sprintf("✅ Loan %s approved, due %s.", loan.LoanID, formatTime(*loan.DueAt)), nil)
		b.sendMessage(loan.UserID, fmt.Sprintf(
			"✅ Your loan %s for %s USDT was approved.\nRepay %s USDT by %s, then send /repay %s",
			loan.LoanID, utils.FormatAmount(loan.Amount), utils.FormatAmount(loan.TotalDue),
			formatTime(*loan.DueAt), loan.LoanID,
		), nil)
		return nil
	}
	b.sendMessage(chatID, fmt.Sprintf("❌ Loan %s denied.", loan.LoanID), nil)
	b.sendMessage(loan.UserID, fmt.Sprintf("❌ Your loan request %s was denied.", loan.LoanID), nil)
	return nil
}

func (b *Bot) handleRepay(ctx context.Context, chatID int64, user *models.User, args []string) {
	if len(args) != 1 {
		b.sendMessage(chatID, "Usage: /repay <loan id>. See /myloans.", nil)
		return
	}

	var loan *models.Loan
	err := b.withRetry(ctx, func(ctx context.Context) error {
		var err error
		loan, err = b.service.RepayLoan(ctx, user.UserID, args[0])
		return err
	})
	if err != nil {
		b.replyError(chatID, err)
		return
	}

	b.sendMessage(chatID, fmt.Sprintf("🙏 Repayment of loan %s recorded. Thanks!", loan.LoanID), nil)
	b.notifyAdmins(ctx, formatLoanForAdmin("💰 Loan marked repaid", loan, user.TotalRep), nil)
}

func (b *Bot) handleMyLoans(ctx context.Context, chatID int64, user *models.User) {
	var loans []models.Loan
	err := b.withRetry(ctx, func(ctx context.Context) error {
		var err error
		loans, err = b.service.LoansByUser(ctx, user.UserID)
		return err
	})
	if err != nil {
		b.replyError(chatID, err)
		return
	}
	if len(loans) == 0 {
		b.sendMessage(chatID, "You have no loans yet. See /tiers.", nil)
		return
	}

	var sb strings.Builder
	sb.WriteString("📋 Your loans\n")
	for i := range loans {
		if i == maxListed {
			break
		}
		sb.WriteString("\n" + formatLoanLine(&loans[i]))
	}
	b.sendMessage(chatID, sb.String(), nil)
}

func (b *Bot) handlePendingLoans(ctx context.Context, chatID int64, admin *models.User) {
	var loans []models.Loan
	err := b.withRetry(ctx, func(ctx context.Context) error {
		var err error
		loans, err = b.service.PendingLoans(ctx, admin.UserID)
		return err
	})
	if err != nil {
		b.replyError(chatID, err)
		return
	}
	if len(loans) == 0 {
		b.sendMessage(chatID, "No pending loan requests.", nil)
		return
	}
	for i := range loans {
		if i == maxListed {
			b.sendMessage(chatID, fmt.Sprintf("…and %d more.", len(loans)-maxListed), nil)
			break
		}
		b.sendMessage(chatID, formatLoanLine(&loans[i]), loanDecisionKeyboard(loans[i].LoanID))
	}
}
