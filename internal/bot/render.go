package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/degencred/credbot/internal/errs"
	"github.com/degencred/credbot/internal/models"
	"github.com/degencred/credbot/utils"
)

const helpText = `📖 Commands

/start · welcome and status
/profile · your reputation, level and active loan
/payfee [reference] · pay or report the access fee
/tiers · loan tiers and what you qualify for
/loan <tier> <amount> · request a loan
/repay <loan id> · mark a loan repaid
/myloans · your loan history
/rep @user [amount] [reason] · give reputation
/leaderboard [n] · top members by reputation

Admins: /addadmin /pendingfees /approvefee /rejectfee /pendingloans /approveloan /denyloan`

var errRepUsage = errors.New("rep needs a @username or a replied-to message")

// parseCommand splits "/cmd@botname a b" into "cmd" and its arguments.
func parseCommand(text string) (string, []string, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil, false
	}
	name := strings.ToLower(strings.TrimPrefix(fields[0], "/"))
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	if name == "" {
		return "", nil, false
	}
	return name, fields[1:], true
}

func parseCallbackData(data string) (action, arg string, ok bool) {
	action, arg, ok = strings.Cut(data, ":")
	if !ok || action == "" || arg == "" {
		return "", "", false
	}
	return action, arg, true
}

type repRequest struct {
	Username string
	Amount   int64
	Reason   string
}

// parseRepArgs reads "[@user] [amount] [reason...]". The username may be
// omitted only when the command replies to someone. Amount defaults to 1.
func parseRepArgs(args []string, hasReply bool) (repRequest, error) {
	req := repRequest{Amount: 1}
	if len(args) > 0 && strings.HasPrefix(args[0], "@") {
		req.Username = strings.TrimPrefix(args[0], "@")
		args = args[1:]
	}
	if req.Username == "" && !hasReply {
		return repRequest{}, errRepUsage
	}
	if len(args) > 0 {
		if n, err := strconv.ParseInt(args[0], 10, 64); err == nil {
			req.Amount = n
			args = args[1:]
		}
	}
	req.Reason = strings.Join(args, " ")
	return req, nil
}

// errorText turns a core failure into what the user sees.
func errorText(err error) string {
	var e *errs.Error
	if !errors.As(err, &e) {
		return "⏳ Something went wrong on our side. Please try again in a minute."
	}
	switch e.Kind {
	case errs.KindUnauthorized:
		return "⛔ Only admins can do that."
	case errs.KindAccessFeeRequired:
		return "🔒 You need to pay the one-time access fee first. Send /payfee for instructions."
	case errs.KindStorageUnavailable:
		return "⏳ Something went wrong on our side. Please try again in a minute."
	case errs.KindNotFound:
		return "❓ " + capitalize(e.Message) + "."
	default:
		return "⚠️ " + capitalize(e.Message) + "."
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func displayName(username string, userID int64) string {
	if username != "" {
		return "@" + username
	}
	return fmt.Sprintf("user %d", userID)
}

func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04 UTC")
}

func formatProfile(p *models.Profile) string {
	u := p.User
	var sb strings.Builder
	fmt.Fprintf(&sb, "👤 %s\n", displayName(u.Username, u.UserID))
	fmt.Fprintf(&sb, "⭐ Reputation: %d (level %d)\n", u.TotalRep, u.Level)
	if u.AccessFeePaid {
		sb.WriteString("🔓 Access fee: paid\n")
	} else {
		sb.WriteString("🔒 Access fee: not paid, see /payfee\n")
	}
	if p.ActiveLoan != nil {
		sb.WriteString("\n💼 Active loan\n" + formatLoanLine(p.ActiveLoan))
	}
	return sb.String()
}

func formatTiers(tiers []models.Tier, level int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 Loan tiers (you are level %d)\n", level)
	for _, t := range tiers {
		mark := "✅"
		if level < t.MinLevel {
			mark = "🔒"
		}
		fmt.Fprintf(&sb, "\n%s %s · up to %s USDT · %s interest · %d days · level %d+",
			mark, t.ID, utils.FormatAmount(t.MaxAmount), utils.FormatRate(t.InterestRate),
			t.RepaymentPeriodDays, t.MinLevel)
	}
	return sb.String()
}

func formatLeaderboard(users []models.User) string {
	if len(users) == 0 {
		return "🏆 Nobody has any reputation yet."
	}
	var sb strings.Builder
	sb.WriteString("🏆 Leaderboard\n")
	for i, u := range users {
		fmt.Fprintf(&sb, "\n%d. %s · %d rep · level %d", i+1, displayName(u.Username, u.UserID), u.TotalRep, u.Level)
	}
	return sb.String()
}

func formatLoanLine(l *models.Loan) string {
	mark := "▶️"
	if l.IsTerminal() {
		mark = "▫️"
	}
	line := fmt.Sprintf("%s %s · %s %s → %s USDT · %s",
		mark, l.LoanID, l.Level, utils.FormatAmount(l.Amount), utils.FormatAmount(l.TotalDue), l.Status)
	if l.DueAt != nil && l.Status == models.LoanStatusApproved {
		line += " · due " + formatTime(*l.DueAt)
	}
	return line
}

func formatLoanForAdmin(title string, l *models.Loan, rep int64) string {
	return fmt.Sprintf(
		"%s\nLoan: %s\nBorrower: %s (%d), %d rep\nTier %s · %s USDT at %s · %d days\nTotal due: %s USDT",
		title, l.LoanID, displayName(l.Username, l.UserID), l.UserID, rep,
		l.Level, utils.FormatAmount(l.Amount), utils.FormatRate(l.InterestRate), l.RepaymentDays,
		utils.FormatAmount(l.TotalDue),
	)
}

func formatDefaultNotice(l *models.Loan) string {
	return fmt.Sprintf(
		"⚠️ Your loan %s (%s USDT due) passed its due date and is now in default. Contact an admin.",
		l.LoanID, utils.FormatAmount(l.TotalDue),
	)
}

func formatDefaultAdminNotice(l *models.Loan) string {
	due := "unknown"
	if l.DueAt != nil {
		due = formatTime(*l.DueAt)
	}
	return fmt.Sprintf(
		"🚨 Loan %s of %s (%d) defaulted.\nTotal due: %s USDT, was due %s.",
		l.LoanID, displayName(l.Username, l.UserID), l.UserID, utils.FormatAmount(l.TotalDue), due,
	)
}
