package bot

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/degencred/credbot/config"
	"github.com/degencred/credbot/db"
	"github.com/degencred/credbot/internal/errs"
	"github.com/degencred/credbot/internal/models"
	"github.com/degencred/credbot/internal/repository"
	"github.com/degencred/credbot/internal/service"
	"github.com/degencred/credbot/utils"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	adminID      int64 = 6668510825
	aliceID      int64 = 1001
	bobID        int64 = 1002
	groupID      int64 = -1002400589513
	paymentBotID int64 = 777
)

type sentMessage struct {
	chatID int64
	text   string
	markup interface{}
}

type fakeSender struct {
	mu        sync.Mutex
	messages  []sentMessage
	callbacks []string
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.messages = append(f.messages, sentMessage{chatID: m.ChatID, text: m.Text, markup: m.ReplyMarkup})
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cb, ok := c.(tgbotapi.CallbackConfig); ok {
		f.callbacks = append(f.callbacks, cb.Text)
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeSender) to(chatID int64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.messages {
		if m.chatID == chatID {
			out = append(out, m.text)
		}
	}
	return out
}

func (f *fakeSender) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = nil
	f.callbacks = nil
}

func (f *fakeSender) last(chatID int64) string {
	texts := f.to(chatID)
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}

type harness struct {
	bot    *Bot
	sender *fakeSender
	svc    *service.Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := utils.NopLogger()

	gdb, err := db.ConnectDb(db.Options{
		Driver:       "sqlite",
		URL:          "file:" + uuid.NewString() + "?mode=memory&cache=shared",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(gdb, logger) })
	require.NoError(t, db.Migrate(gdb, true, logger))
	require.NoError(t, db.SeedAdmins(gdb, []int64{adminID}, logger))

	tiers, err := config.ParseTiers(config.DefaultLoanTiers)
	require.NoError(t, err)
	levels, err := config.ParseLevels(config.DefaultRepLevels)
	require.NoError(t, err)

	svc := service.NewService(repository.NewRepository(gdb, logger, 5*time.Second), service.Settings{
		Tiers:     tiers,
		RepLevels: levels,
		AccessFee: decimal.NewFromInt(5),
	}, logger)

	sender := &fakeSender{}
	cfg := &config.Config{PaymentBotID: paymentBotID, PaymentLink: "https://pay.example/degencred"}
	b := NewBot(sender, svc, logger, cfg)
	b.backoff = func() retry.Backoff { return retry.WithMaxRetries(3, retry.NewConstant(time.Millisecond)) }
	return &harness{bot: b, sender: sender, svc: svc}
}

func (h *harness) say(from int64, username string, chatID int64, text string) {
	chatType := "private"
	if chatID < 0 {
		chatType = "supergroup"
	}
	h.bot.HandleUpdate(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: from, UserName: username},
		Chat:      &tgbotapi.Chat{ID: chatID, Type: chatType},
		Text:      text,
	}})
}

func (h *harness) click(from int64, data string) {
	h.bot.HandleUpdate(context.Background(), tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: from},
		Message: &tgbotapi.Message{MessageID: 9, Chat: &tgbotapi.Chat{ID: from, Type: "private"}},
		Data:    data,
	}})
}

func (h *harness) pay(t *testing.T, id int64, name string) {
	t.Helper()
	h.say(id, name, id, "/payfee 0xfee-"+name)
	subs, err := h.svc.PendingFeeSubmissions(context.Background(), adminID)
	require.NoError(t, err)
	require.NotEmpty(t, subs)
	h.say(adminID, "admin", adminID, "/approvefee "+strconv.FormatInt(subs[len(subs)-1].ID, 10))
	h.sender.reset()
}

func TestParseCommand(t *testing.T) {
	name, args, ok := parseCommand("/loan@DegenCredBot L1 80")
	require.True(t, ok)
	assert.Equal(t, "loan", name)
	assert.Equal(t, []string{"L1", "80"}, args)

	name, args, ok = parseCommand("  /Start ")
	require.True(t, ok)
	assert.Equal(t, "start", name)
	assert.Empty(t, args)

	_, _, ok = parseCommand("hello /loan")
	assert.False(t, ok)
	_, _, ok = parseCommand("/")
	assert.False(t, ok)
}

func TestParseRepArgs(t *testing.T) {
	req, err := parseRepArgs([]string{"@bob", "5", "great", "trade"}, false)
	require.NoError(t, err)
	assert.Equal(t, repRequest{Username: "bob", Amount: 5, Reason: "great trade"}, req)

	req, err = parseRepArgs([]string{"@bob", "helpful"}, false)
	require.NoError(t, err)
	assert.Equal(t, repRequest{Username: "bob", Amount: 1, Reason: "helpful"}, req)

	req, err = parseRepArgs([]string{"3"}, true)
	require.NoError(t, err)
	assert.Equal(t, repRequest{Amount: 3}, req)

	_, err = parseRepArgs([]string{"5"}, false)
	assert.ErrorIs(t, err, errRepUsage)
}

func TestParseCallbackData(t *testing.T) {
	action, arg, ok := parseCallbackData("loan_approve:1b4e28ba-2fa1-11d2-883f-0016d3cca427")
	require.True(t, ok)
	assert.Equal(t, actionLoanApprove, action)
	assert.Equal(t, "1b4e28ba-2fa1-11d2-883f-0016d3cca427", arg)

	_, _, ok = parseCallbackData("fee_approve:")
	assert.False(t, ok)
	_, _, ok = parseCallbackData("garbage")
	assert.False(t, ok)
}

func TestErrorText(t *testing.T) {
	assert.Contains(t, errorText(errs.ErrUnauthorized), "Only admins")
	assert.Contains(t, errorText(errs.ErrAccessFeeRequired), "/payfee")
	assert.Equal(t, "⚠️ Max for L1 is 100.00.", errorText(errs.ErrAmountExceedsLimit.Withf("max for L1 is 100.00")))
	assert.Contains(t, errorText(errs.Storage(assert.AnError)), "try again")
	assert.Contains(t, errorText(assert.AnError), "try again")
}

func TestWithRetry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	attempts := 0
	err := h.bot.withRetry(ctx, func(context.Context) error {
		attempts++
		return errs.Storage(assert.AnError)
	})
	assert.ErrorIs(t, err, errs.ErrStorageUnavailable)
	assert.Equal(t, 4, attempts)

	attempts = 0
	err = h.bot.withRetry(ctx, func(context.Context) error {
		attempts++
		return errs.ErrLoanInFlight
	})
	assert.ErrorIs(t, err, errs.ErrLoanInFlight)
	assert.Equal(t, 1, attempts)

	attempts = 0
	err = h.bot.withRetry(ctx, func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errs.Storage(assert.AnError)
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestFeeFlowThroughChat(t *testing.T) {
	h := newHarness(t)

	h.say(aliceID, "alice", aliceID, "/payfee")
	assert.Contains(t, h.sender.last(aliceID), "5.00 USDT")
	assert.Contains(t, h.sender.last(aliceID), "https://pay.example/degencred")
	assert.Equal(t, stateAwaitingTxReference, h.bot.getUserState(aliceID))

	h.say(aliceID, "alice", aliceID, "0xabc123")
	assert.Contains(t, h.sender.last(aliceID), "Submission #1 received")
	assert.Equal(t, stateDefault, h.bot.getUserState(aliceID))
	require.Contains(t, h.sender.last(adminID), "0xabc123")

	h.say(aliceID, "alice", aliceID, "/payfee 0xabc123")
	assert.Contains(t, h.sender.last(aliceID), "already under review")

	h.say(bobID, "bob", bobID, "/approvefee 1")
	assert.Contains(t, h.sender.last(bobID), "Only admins")

	h.sender.reset()
	h.click(adminID, "fee_approve:1")
	assert.Contains(t, h.sender.last(aliceID), "approved")
	assert.Contains(t, h.sender.callbacks, "Done")

	h.say(aliceID, "alice", aliceID, "/payfee")
	assert.Contains(t, h.sender.last(aliceID), "already paid")
}

func TestLoanFlowThroughChat(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.say(aliceID, "alice", groupID, "/loan L1 80")
	assert.Contains(t, h.sender.last(groupID), "access fee")

	h.pay(t, aliceID, "alice")

	h.say(aliceID, "alice", groupID, "/loan L1 150")
	assert.Contains(t, h.sender.last(groupID), "Max for L1 is 100.00")

	h.say(aliceID, "alice", groupID, "/loan L1 abc")
	assert.Contains(t, h.sender.last(groupID), `"abc" is not a valid amount`)
	assert.Contains(t, h.sender.last(groupID), "Usage: /loan")

	h.say(aliceID, "alice", groupID, "/loan L1 80")
	assert.Contains(t, h.sender.last(groupID), "Total due: 89.60 USDT")
	assert.Contains(t, h.sender.last(adminID), "New loan request")

	loans, err := h.svc.LoansByUser(ctx, aliceID)
	require.NoError(t, err)
	require.Len(t, loans, 1)
	loanID := loans[0].LoanID

	h.say(aliceID, "alice", groupID, "/loan L1 10")
	assert.Contains(t, h.sender.last(groupID), "still pending")

	h.sender.reset()
	h.click(adminID, "loan_approve:"+loanID)
	assert.Contains(t, h.sender.last(aliceID), "was approved")
	assert.Contains(t, h.sender.last(aliceID), "89.60")

	h.click(adminID, "loan_approve:"+loanID)
	assert.Contains(t, h.sender.last(adminID), "is approved")

	h.say(aliceID, "alice", aliceID, "/repay "+loanID)
	assert.Contains(t, h.sender.last(aliceID), "recorded")
	assert.Contains(t, h.sender.last(adminID), "Loan marked repaid")

	h.say(aliceID, "alice", aliceID, "/myloans")
	assert.Contains(t, h.sender.last(aliceID), models.LoanStatusRepaid)
}

func TestRepCommand(t *testing.T) {
	h := newHarness(t)

	h.say(bobID, "bob", groupID, "/start")
	h.say(aliceID, "alice", groupID, "/rep @bob 5")
	assert.Contains(t, h.sender.last(groupID), "Members can give 1 point")

	h.say(aliceID, "alice", groupID, "/rep @bob thanks")
	assert.Contains(t, h.sender.last(groupID), "@bob +1 rep from @alice. Total 1, level 1.")

	h.say(aliceID, "alice", groupID, "/rep @alice")
	assert.Contains(t, h.sender.last(groupID), "yourself")

	h.say(adminID, "admin", groupID, "/rep @bob 9")
	assert.Contains(t, h.sender.last(groupID), "Total 10, level 2.")

	h.say(aliceID, "alice", groupID, "/rep @nobody")
	assert.Contains(t, h.sender.last(groupID), "not found")

	h.say(aliceID, "alice", groupID, "/leaderboard")
	board := h.sender.last(groupID)
	assert.True(t, strings.Index(board, "@bob") < strings.Index(board, "@alice"))
}

func TestPaymentNoticeAlertsAdmins(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.say(aliceID, "alice", aliceID, "/payfee 0xpaid")
	h.sender.reset()

	h.say(paymentBotID, "PayBot", groupID, "@alice sent 5 USDT")
	alert := h.sender.last(adminID)
	assert.Contains(t, alert, "5.00 USDT from @alice")
	assert.Contains(t, alert, "#1")

	gated, err := h.svc.IsGated(ctx, aliceID)
	require.NoError(t, err)
	assert.True(t, gated)

	h.sender.reset()
	h.say(paymentBotID, "PayBot", groupID, "@alice sent 1 USDT")
	assert.Empty(t, h.sender.to(adminID))
}

func TestNotifyDefault(t *testing.T) {
	h := newHarness(t)
	due := time.Date(2026, 10, 8, 12, 0, 0, 0, time.UTC)
	h.bot.NotifyDefault(&models.Loan{
		LoanID:   "loan-1",
		UserID:   aliceID,
		Username: "alice",
		TotalDue: decimal.RequireFromString("89.6"),
		DueAt:    &due,
	})

	assert.Contains(t, h.sender.last(aliceID), "89.60 USDT")
	assert.Contains(t, h.sender.last(adminID), "2026-10-08 12:00 UTC")
}

func TestStartLoopStopsOnCancel(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	updates := make(chan tgbotapi.Update, 1)
	updates <- tgbotapi.Update{Message: &tgbotapi.Message{
		From: &tgbotapi.User{ID: aliceID, UserName: "alice"},
		Chat: &tgbotapi.Chat{ID: aliceID, Type: "private"},
		Text: "/help",
	}}

	done := make(chan struct{})
	go func() {
		h.bot.Start(ctx, updates)
		close(done)
	}()

	require.Eventually(t, func() bool { return h.sender.last(aliceID) != "" }, time.Second, 10*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("bot did not stop")
	}
}

func TestAddAdminCommand(t *testing.T) {
	h := newHarness(t)

	h.say(aliceID, "alice", aliceID, "/addadmin 1002")
	assert.Contains(t, h.sender.last(aliceID), "Only admins")

	h.say(adminID, "admin", adminID, "/addadmin 1001")
	assert.Contains(t, h.sender.last(adminID), "now an admin")

	h.say(aliceID, "alice", groupID, "/rep @admin 5")
	assert.Contains(t, h.sender.last(groupID), "@admin +5 rep")
}
