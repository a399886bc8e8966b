package bot

import (
	"context"
	"sync"
	"time"

	"github.com/degencred/credbot/config"
	"github.com/degencred/credbot/internal/errs"
	"github.com/degencred/credbot/internal/models"
	"github.com/degencred/credbot/internal/payments"
	"github.com/degencred/credbot/internal/service"
	"github.com/degencred/credbot/utils"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sethvargo/go-retry"
)

// Sender is the part of *tgbotapi.BotAPI the bot talks through.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type Bot struct {
	API        Sender
	service    *service.Service
	detector   *payments.Detector
	logger     *utils.Logger
	config     *config.Config
	userStates map[int64]string
	stateMutex *sync.Mutex
	backoff    func() retry.Backoff
}

func NewBot(
	api Sender,
	svc *service.Service,
	logger *utils.Logger,
	config *config.Config,
) *Bot {
	return &Bot{
		API:        api,
		service:    svc,
		detector:   payments.NewDetector("USDT"),
		logger:     logger,
		config:     config,
		userStates: make(map[int64]string),
		stateMutex: &sync.Mutex{},
		backoff: func() retry.Backoff {
			return retry.WithMaxRetries(3, retry.NewExponential(200*time.Millisecond))
		},
	}
}

// Start processes updates one at a time until ctx is done or the channel
// closes.
func (b *Bot) Start(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	b.logger.Info("Starting bot...")
	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Bot stopped")
			return
		case update, ok := <-updates:
			if !ok {
				b.logger.Warn("Update channel closed")
				return
			}
			b.logger.Debugf("Received update: %d", update.UpdateID)
			b.HandleUpdate(ctx, update)
		}
	}
}

// HandleUpdate dispatches a single update. A panicking handler is logged
// and swallowed so the loop keeps running.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Errorf("Recovered from panic while handling update %d: %v", update.UpdateID, r)
		}
	}()

	if update.CallbackQuery != nil {
		b.handleCallbackQuery(ctx, update.CallbackQuery)
		return
	}
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return
	}
	if b.config.PaymentBotID != 0 && msg.From.ID == b.config.PaymentBotID {
		b.handlePaymentNotice(ctx, msg)
		return
	}
	b.withUserCheck(b.handleMessage)(ctx, msg)
}

// NotifyDefault tells the borrower and the admins that a loan defaulted.
// It is handed to the sweeper as its callback.
func (b *Bot) NotifyDefault(loan *models.Loan) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	b.sendMessage(loan.UserID, formatDefaultNotice(loan), nil)
	b.notifyAdmins(ctx, formatDefaultAdminNotice(loan), nil)
}

func (b *Bot) withRetry(ctx context.Context, op func(ctx context.Context) error) error {
	return retry.Do(ctx, b.backoff(), func(ctx context.Context) error {
		err := op(ctx)
		if errs.IsRetryable(err) {
			b.logger.Warnf("Retrying after transient failure: %v", err)
			return retry.RetryableError(err)
		}
		return err
	})
}
