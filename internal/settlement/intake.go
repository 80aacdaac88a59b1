package settlement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"gift-platform/internal/apperr"
	"gift-platform/internal/gateway"
	"gift-platform/internal/logger"
	"gift-platform/internal/mediaqueue"
	"gift-platform/internal/models"
	"gift-platform/internal/store"
)

const (
	MinGiftAmount   = 1000
	maxMessageRunes = 255
	refAttempts     = 3
)

var (
	ErrCreatorNotFound = apperr.New(apperr.CategoryNotFound, "CREATOR_NOT_FOUND", "creator not found")
	ErrInvalidGift     = apperr.New(apperr.CategoryValidation, "INVALID_GIFT", "gift request is invalid")
	ErrGatewayFailed   = apperr.New(apperr.CategoryUpstream, "GATEWAY_ERROR", "payment gateway error")
)

type IntakeStore interface {
	CreatorByUsername(ctx context.Context, username string) (*models.Creator, error)
	CreateGift(ctx context.Context, g *models.Gift) error
	MarkClosed(ctx context.Context, ref string, status models.GiftStatus, at time.Time) (bool, error)
}

// GiftRequest is what a supporter submits on the donation page.
type GiftRequest struct {
	CreatorHandle  string
	Amount         int64
	DonorName      string
	Message        string
	MediaURL       string
	MediaSeconds   int
	RequestPayment bool
}

type Created struct {
	Gift    *models.Gift
	Payment *gateway.PaymentLink
}

// Intake creates PENDING gifts and, when a gateway is configured, their
// payment links.
type Intake struct {
	store   IntakeStore
	gateway gateway.Gateway
	channel string
	log     *logger.Logger
	now     func() time.Time
}

// NewIntake wires gift creation. gw may be nil.
func NewIntake(st IntakeStore, gw gateway.Gateway, channel string, log *logger.Logger) *Intake {
	if log == nil {
		log = logger.Nop()
	}
	return &Intake{store: st, gateway: gw, channel: strings.ToLower(strings.TrimSpace(channel)), log: log, now: time.Now}
}

func (in *Intake) Create(ctx context.Context, req GiftRequest) (*Created, error) {
	if req.Amount < MinGiftAmount {
		return nil, apperr.Wrap(ErrInvalidGift, nil, fmt.Sprintf("amount must be at least %d", MinGiftAmount))
	}
	if len([]rune(req.Message)) > maxMessageRunes {
		return nil, apperr.Wrap(ErrInvalidGift, nil, "message is too long")
	}
	if req.MediaSeconds < 0 || req.MediaSeconds > mediaqueue.MaxSeconds {
		return nil, apperr.Wrap(ErrInvalidGift, nil, fmt.Sprintf("media seconds must be between 0 and %d", mediaqueue.MaxSeconds))
	}
	media := models.MediaShare{}
	if url := strings.TrimSpace(req.MediaURL); url != "" {
		if _, _, err := mediaqueue.ParseVideoURL(url); err != nil {
			return nil, err
		}
		media = models.MediaShare{Enabled: true, URL: url, RequestedSeconds: req.MediaSeconds}
	}

	creator, err := in.store.CreatorByUsername(ctx, req.CreatorHandle)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrCreatorNotFound
	}
	if err != nil {
		return nil, apperr.Persistence("lookup creator", err)
	}

	donor := strings.TrimSpace(req.DonorName)
	if donor == "" {
		donor = "Anonymous"
	}
	now := in.now()
	g := &models.Gift{
		ID:            uuid.NewString(),
		Amount:        req.Amount,
		DonorName:     donor,
		Message:       strings.TrimSpace(req.Message),
		CreatorID:     creator.ID,
		CreatorHandle: creator.Username,
		Channel:       in.channel,
		Status:        models.GiftPending,
		MediaShare:    media,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := in.insert(ctx, g); err != nil {
		return nil, err
	}
	in.log.Infow("gift created", "ref", g.Ref, "creator_id", g.CreatorID, "amount", g.Amount, "media", media.Enabled)

	out := &Created{Gift: g}
	if !req.RequestPayment || in.gateway == nil {
		return out, nil
	}
	link, err := in.gateway.CreatePaymentLink(ctx, gateway.PaymentOrder{
		OrderID:   g.Ref,
		Amount:    g.Amount,
		DonorName: donor,
		ItemName:  "Gift to " + creator.Username,
	})
	if err != nil {
		in.log.Errorw("payment link failed, closing gift", "ref", g.Ref, "error", err)
		if _, cerr := in.store.MarkClosed(ctx, g.Ref, models.GiftFailed, in.now()); cerr != nil {
			in.log.Warnw("failed to close gift", "ref", g.Ref, "error", cerr)
		}
		return nil, apperr.Wrap(ErrGatewayFailed, err, "")
	}
	out.Payment = link
	return out, nil
}

func (in *Intake) insert(ctx context.Context, g *models.Gift) error {
	var err error
	for i := 0; i < refAttempts; i++ {
		g.Ref = NewRef()
		err = in.store.CreateGift(ctx, g)
		if !errors.Is(err, store.ErrDuplicate) {
			break
		}
	}
	if err != nil {
		return apperr.Persistence("create gift", err)
	}
	return nil
}

// NewRef returns a gift reference in the DONXXXXXXXXXX form donors see on
// the payment page.
func NewRef() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "DON" + strings.ToUpper(id[:10])
}
