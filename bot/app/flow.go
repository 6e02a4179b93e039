package app

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	tele "gopkg.in/telebot.v4"

	"github.com/dailyinfluencing/listingbot/bot/engine"
	"github.com/dailyinfluencing/listingbot/bot/review"
	"github.com/dailyinfluencing/listingbot/bot/session"
	"github.com/dailyinfluencing/listingbot/core/logger"
	tghelpers "github.com/dailyinfluencing/listingbot/core/telegram/helpers"
	"github.com/dailyinfluencing/listingbot/core/telegram/keyboard"
)

// questionnaireFlow routes message updates into the engine while a
// questionnaire is active. It satisfies the message router's Flow
// interface.
type questionnaireFlow struct {
	app *App
}

func (f *questionnaireFlow) InProgress(userID int64) bool {
	key := session.Key{UserID: userID, ChatID: userID}
	s, err := f.app.sessions.Get(context.Background(), key)
	if err != nil || s == nil {
		return false
	}
	return s.Phase == session.PhaseAnswering
}

// Handle feeds one message update to the engine under the session lock.
func (f *questionnaireFlow) Handle(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	ev, ok := eventFrom(c)
	if !ok {
		return nil
	}
	return f.app.advance(c, sender, ev)
}

// eventFrom maps a telebot message to an engine event.
func eventFrom(c tele.Context) (engine.Event, bool) {
	msg := c.Message()
	if msg == nil {
		return engine.Event{}, false
	}
	switch {
	case msg.Photo != nil:
		return engine.Event{Kind: engine.EventPhoto, FileID: msg.Photo.FileID}, true
	case msg.Video != nil:
		return engine.Event{Kind: engine.EventVideo, FileID: msg.Video.FileID}, true
	case msg.Text != "":
		return engine.Event{Kind: engine.EventText, Text: msg.Text}, true
	}
	return engine.Event{Kind: engine.EventOther}, true
}

// advance runs one engine step for the sender and executes the resulting
// effects. The session store serializes concurrent calls per key.
func (a *App) advance(c tele.Context, sender *tele.User, ev engine.Event) error {
	ctx := tghelpers.BuildContext(c)
	key := session.Key{UserID: sender.ID, ChatID: sender.ID}

	return a.sessions.Do(ctx, key, func(s *session.Session) error {
		effects, err := a.engine.Advance(s, ev)
		if err != nil {
			if errors.Is(err, engine.ErrNotAnswering) {
				return nil
			}
			return err
		}
		return a.applyEffects(ctx, c, sender, s, effects)
	})
}

// applyEffects executes engine effects in order: message cleanup first,
// then prompts, then submission.
func (a *App) applyEffects(ctx context.Context, c tele.Context, sender *tele.User, s *session.Session, effects []engine.Effect) error {
	for _, eff := range effects {
		switch e := eff.(type) {
		case engine.DeleteMessages:
			a.deleteTransient(ctx, c, e.IDs)

		case engine.Prompt:
			if err := a.sendPrompt(c, s, e); err != nil {
				logger.Warn(ctx, "engine", "prompt_send_failed",
					slog.Int64("user_id", sender.ID),
					slog.String("err", err.Error()),
				)
			}

		case engine.Disqualified:
			a.sendDisqualified(c, e)

		case engine.Submit:
			applicant := review.Applicant{
				ID:        sender.ID,
				Username:  sender.Username,
				FirstName: sender.FirstName,
			}
			if err := a.review.Submit(ctx, applicant, s); err != nil {
				logger.Error(ctx, "review", "submit_failed",
					slog.Int64("user_id", sender.ID),
					slog.String("err", err.Error()),
				)
				return c.Send("We could not record your answers. Please try again in a moment.")
			}
		}
	}
	return nil
}

// deleteTransient removes tracked prompt messages. Failures are logged
// and skipped; a stale message simply stays.
func (a *App) deleteTransient(ctx context.Context, c tele.Context, ids []int) {
	chat := c.Chat()
	if chat == nil {
		return
	}
	for _, id := range ids {
		msg := tele.StoredMessage{MessageID: strconv.Itoa(id), ChatID: chat.ID}
		if err := c.Bot().Delete(msg); err != nil {
			logger.Debug(ctx, "engine", "transient_delete_failed",
				slog.Int("message_id", id),
				slog.String("err", err.Error()),
			)
		}
	}
}

// sendPrompt renders one engine prompt, attaching confirmation buttons, a
// Done control, or a link button as the effect dictates, and tracks the
// sent message for later cleanup.
func (a *App) sendPrompt(c tele.Context, s *session.Session, p engine.Prompt) error {
	var markup *tele.ReplyMarkup

	switch {
	case len(p.Buttons) > 0:
		q, _ := a.engine.Current(s)
		btns := make([]keyboard.InlineBtn, 0, len(p.Buttons))
		for _, b := range p.Buttons {
			btns = append(btns, keyboard.InlineBtn{
				Text:   b.Label,
				Unique: cbConfirm,
				Data:   encodeConfirm(q.Key, b.Value),
			})
		}
		markup = keyboard.InlineButtons(btns)

	case p.Done:
		q, _ := a.engine.Current(s)
		markup = keyboard.InlineButtons([]keyboard.InlineBtn{
			{Text: "Done", Unique: cbDone, Data: q.Key},
		})

	case p.LinkURL != "":
		markup = keyboard.URLButton(p.LinkLabel, p.LinkURL)
	}

	var sent *tele.Message
	var err error
	if markup != nil {
		sent, err = c.Bot().Send(c.Recipient(), p.Text, markup)
	} else {
		sent, err = c.Bot().Send(c.Recipient(), p.Text)
	}
	if err != nil {
		return err
	}
	s.Track(sent.ID)
	return nil
}

func (a *App) sendDisqualified(c tele.Context, d engine.Disqualified) {
	label := d.LinkLabel
	if label == "" {
		label = "Contact a CAC Agent"
	}
	if d.LinkURL != "" {
		_ = c.Send(d.Text, keyboard.URLButton(label, d.LinkURL))
		return
	}
	_ = c.Send(d.Text)
}
