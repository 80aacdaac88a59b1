package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/go-telegram/bot"
	tgModels "github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gift-platform/internal/models"
)

type published struct {
	creatorID int64
	kind      string
	payload   any
}

type recordingPublisher struct {
	events []published
}

func (p *recordingPublisher) Publish(creatorID int64, kind string, payload any) {
	p.events = append(p.events, published{creatorID, kind, payload})
}

type panickingPublisher struct{}

func (panickingPublisher) Publish(int64, string, any) { panic("hub gone") }

type fakeTelegram struct {
	sent []*bot.SendMessageParams
	err  error
}

func (f *fakeTelegram) SendMessage(_ context.Context, p *bot.SendMessageParams) (*tgModels.Message, error) {
	f.sent = append(f.sent, p)
	return &tgModels.Message{}, f.err
}

type creators map[int64]*models.Creator

func (c creators) CreatorByID(_ context.Context, id int64) (*models.Creator, error) {
	if cr, ok := c[id]; ok {
		return cr, nil
	}
	return nil, errors.New("not found")
}

func gift() *models.Gift {
	return &models.Gift{Ref: "DON123", Amount: 50000, DonorName: "Budi", Message: "semangat!", CreatorID: 1, Channel: "gopay"}
}

func TestNotifyGiftFansOut(t *testing.T) {
	pub := &recordingPublisher{}
	tg := &fakeTelegram{}
	n := New(pub, tg, creators{1: {ID: 1, TelegramChatID: "42"}}, nil)

	require.NoError(t, n.NotifyGift(context.Background(), gift()))

	require.Len(t, pub.events, 1)
	assert.Equal(t, int64(1), pub.events[0].creatorID)
	assert.Equal(t, EventDonationAlert, pub.events[0].kind)
	assert.Equal(t, "DON123", pub.events[0].payload.(DonationAlert).Ref)

	require.Len(t, tg.sent, 1)
	assert.Equal(t, "42", tg.sent[0].ChatID)
	assert.Equal(t, "New gift from Budi: Rp 50.000\n\nsemangat!", tg.sent[0].Text)
}

func TestNotifyGiftSkipsUnlinkedTelegram(t *testing.T) {
	tg := &fakeTelegram{}
	n := New(&recordingPublisher{}, tg, creators{1: {ID: 1}}, nil)
	require.NoError(t, n.NotifyGift(context.Background(), gift()))
	assert.Empty(t, tg.sent)
}

func TestNotifyGiftChannelsFailIndependently(t *testing.T) {
	tg := &fakeTelegram{err: errors.New("forbidden")}
	n := New(panickingPublisher{}, tg, creators{1: {ID: 1, TelegramChatID: "42"}}, nil)

	err := n.NotifyGift(context.Background(), gift())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
	assert.Contains(t, err.Error(), "forbidden")
	assert.Len(t, tg.sent, 1)
}

func TestAlertForAnonymousDonor(t *testing.T) {
	g := gift()
	g.DonorName = "  "
	assert.Equal(t, "Anonymous", AlertFor(g).DonorName)
}

func TestFormatRupiah(t *testing.T) {
	cases := map[int64]string{
		0:       "0",
		999:     "999",
		1000:    "1.000",
		50000:   "50.000",
		1500000: "1.500.000",
		-25000:  "-25.000",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatRupiah(in))
	}
}
