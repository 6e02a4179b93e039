package app

import (
	"context"
	"fmt"
	"sync"

	tele "gopkg.in/telebot.v4"

	"github.com/dailyinfluencing/listingbot/bot/catalog"
	"github.com/dailyinfluencing/listingbot/bot/review"
	"github.com/dailyinfluencing/listingbot/core/telegram/keyboard"
	"github.com/dailyinfluencing/listingbot/core/telegram/sender"
)

// botMessenger adapts the telebot API to the narrow send interfaces the
// review service and scheduler consume. The underlying bot and the
// outbound dispatcher are bound at startup, after services are already
// wired. One-way notifications go through the dispatcher; submission
// media and transcripts send inline so their order is preserved.
type botMessenger struct {
	mu         sync.RWMutex
	bot        *tele.Bot
	disp       *sender.Dispatcher
	supportURL string
}

func newBotMessenger(supportURL string) *botMessenger {
	return &botMessenger{supportURL: supportURL}
}

// Bind attaches the running bot instance and the outbound dispatcher.
func (m *botMessenger) Bind(b *tele.Bot, d *sender.Dispatcher) {
	m.mu.Lock()
	m.bot = b
	m.disp = d
	m.mu.Unlock()
}

// dispatch queues run on the async sender, falling back to an inline
// send when no dispatcher is bound or the queue rejects the job.
func (m *botMessenger) dispatch(ctx context.Context, action string, run func() error) error {
	m.mu.RLock()
	d := m.disp
	m.mu.RUnlock()
	if d == nil {
		return run()
	}
	if err := d.Enqueue(ctx, action, "sendMessage", run); err != nil {
		return run()
	}
	return nil
}

func (m *botMessenger) sender() (*tele.Bot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.bot == nil {
		return nil, fmt.Errorf("app: messenger used before bot startup")
	}
	return m.bot, nil
}

func (m *botMessenger) SendText(ctx context.Context, chatID int64, text string) error {
	b, err := m.sender()
	if err != nil {
		return err
	}
	return m.dispatch(ctx, "send.text", func() error {
		_, err := b.Send(tele.ChatID(chatID), text)
		return err
	})
}

func (m *botMessenger) SendMedia(_ context.Context, chatID int64, att review.Attachment) error {
	b, err := m.sender()
	if err != nil {
		return err
	}
	var what any
	switch att.Kind {
	case catalog.KindVideo:
		what = &tele.Video{File: tele.File{FileID: att.FileID}, Caption: att.Caption}
	default:
		what = &tele.Photo{File: tele.File{FileID: att.FileID}, Caption: att.Caption}
	}
	_, err = b.Send(tele.ChatID(chatID), what)
	return err
}

func (m *botMessenger) SendTranscript(_ context.Context, reviewerID int64, text string, applicantID int64) error {
	b, err := m.sender()
	if err != nil {
		return err
	}
	payload := fmt.Sprintf("%d", applicantID)
	markup := keyboard.InlineButtonsRows(
		[]keyboard.InlineBtn{{Text: "Approve", Unique: cbApprove, Data: payload}},
		[]keyboard.InlineBtn{{Text: "Reject", Unique: cbReject, Data: payload}},
	)
	_, err = b.Send(tele.ChatID(reviewerID), text, &tele.SendOptions{
		ParseMode:   tele.ModeMarkdownV2,
		ReplyMarkup: markup,
	})
	return err
}

func (m *botMessenger) SendPlansInvite(ctx context.Context, userID int64, text string) error {
	b, err := m.sender()
	if err != nil {
		return err
	}
	markup := keyboard.InlineButtons([]keyboard.InlineBtn{
		{Text: "VIEW SUBSCRIPTION PLAN", Unique: cbPlans, Data: "-"},
	})
	return m.dispatch(ctx, "send.plans_invite", func() error {
		_, err := b.Send(tele.ChatID(userID), text, markup)
		return err
	})
}

func (m *botMessenger) SendSupportPrompt(ctx context.Context, userID int64, text string) error {
	b, err := m.sender()
	if err != nil {
		return err
	}
	return m.dispatch(ctx, "send.support_prompt", func() error {
		_, err := b.Send(tele.ChatID(userID), text, keyboard.URLButton("Support", m.supportURL))
		return err
	})
}

// SendReceipt delivers the HTML payment summary to a reviewer.
func (m *botMessenger) SendReceipt(ctx context.Context, reviewerID int64, html string) error {
	b, err := m.sender()
	if err != nil {
		return err
	}
	return m.dispatch(ctx, "send.receipt", func() error {
		_, err := b.Send(tele.ChatID(reviewerID), html, &tele.SendOptions{ParseMode: tele.ModeHTML})
		return err
	})
}
