// Package notify fans a settled gift out to the creator's overlays and, when
// the creator linked one, their Telegram chat.
package notify

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	tgModels "github.com/go-telegram/bot/models"

	"gift-platform/internal/logger"
	"gift-platform/internal/models"
)

const EventDonationAlert = "donation.alert"

// Publisher pushes an event to a creator's overlays.
type Publisher interface {
	Publish(creatorID int64, kind string, payload any)
}

// TelegramSender is the subset of *bot.Bot used here.
type TelegramSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*tgModels.Message, error)
}

type CreatorLookup interface {
	CreatorByID(ctx context.Context, id int64) (*models.Creator, error)
}

// DonationAlert is the overlay payload of a settled gift.
type DonationAlert struct {
	Ref       string `json:"ref"`
	DonorName string `json:"donor_name"`
	Amount    int64  `json:"amount"`
	Message   string `json:"message"`
	Channel   string `json:"channel"`
}

func AlertFor(g *models.Gift) DonationAlert {
	name := strings.TrimSpace(g.DonorName)
	if name == "" {
		name = "Anonymous"
	}
	return DonationAlert{Ref: g.Ref, DonorName: name, Amount: g.Amount, Message: g.Message, Channel: g.Channel}
}

type Notifier struct {
	publisher Publisher
	telegram  TelegramSender
	creators  CreatorLookup
	log       *logger.Logger
}

// New builds the fan-out notifier. telegram may be nil.
func New(publisher Publisher, telegram TelegramSender, creators CreatorLookup, log *logger.Logger) *Notifier {
	if log == nil {
		log = logger.Nop()
	}
	return &Notifier{publisher: publisher, telegram: telegram, creators: creators, log: log}
}

// NewTelegramBot connects a bot for outbound messages only.
func NewTelegramBot(token string) (*bot.Bot, error) {
	b, err := bot.New(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return b, nil
}

// NotifyGift implements settlement.Notifier. Channels fail independently.
func (n *Notifier) NotifyGift(ctx context.Context, g *models.Gift) error {
	var errs []error
	alert := AlertFor(g)

	if n.publisher != nil {
		if err := n.safeCall(func() error {
			n.publisher.Publish(g.CreatorID, EventDonationAlert, alert)
			return nil
		}, "overlayNotification"); err != nil {
			errs = append(errs, err)
		}
	}

	if n.telegram != nil && n.creators != nil {
		creator, err := n.creators.CreatorByID(ctx, g.CreatorID)
		if err != nil {
			errs = append(errs, fmt.Errorf("lookup creator %d: %w", g.CreatorID, err))
		} else if creator.TelegramChatID != "" {
			chatID := creator.TelegramChatID
			if err := n.safeCall(func() error {
				_, err := n.telegram.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: TelegramText(alert)})
				return err
			}, "telegramNotification"); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// safeCall runs fn with panic recovery.
func (n *Notifier) safeCall(fn func() error, context string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			n.log.Errorw("notification panicked",
				"context", context,
				"panic", r,
				"stack", string(debug.Stack()))
			err = fmt.Errorf("%s panicked: %v", context, r)
		}
	}()
	return fn()
}

func TelegramText(a DonationAlert) string {
	text := fmt.Sprintf("New gift from %s: Rp %s", a.DonorName, FormatRupiah(a.Amount))
	if msg := strings.TrimSpace(a.Message); msg != "" {
		text += "\n\n" + msg
	}
	return text
}

// FormatRupiah groups thousands with dots: 1500000 -> "1.500.000".
func FormatRupiah(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	digits := strconv.FormatInt(amount, 10)
	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(d)
	}
	return sign + b.String()
}
