package engine

import "github.com/dailyinfluencing/listingbot/bot/catalog"

// Effect is a transport-neutral instruction produced by Advance. The bot
// layer executes effects in order against Telegram.
type Effect interface{ effect() }

// Prompt asks the user something. Sent messages are tracked for deletion
// before the next prompt.
type Prompt struct {
	Text string
	// Buttons renders inline confirmation choices.
	Buttons []catalog.Button
	// Done attaches the multi-item Done control.
	Done bool
	// LinkLabel/LinkURL attach a URL button.
	LinkLabel string
	LinkURL   string
}

// DeleteMessages removes previously tracked bot messages. Failures are
// logged and ignored by the executor.
type DeleteMessages struct {
	IDs []int
}

// Submit signals that the questionnaire is complete and the application
// must be forwarded for review.
type Submit struct{}

// Disqualified signals a failed requirement; the questionnaire was reset.
type Disqualified struct {
	Text      string
	LinkLabel string
	LinkURL   string
}

func (Prompt) effect()         {}
func (DeleteMessages) effect() {}
func (Submit) effect()         {}
func (Disqualified) effect()   {}
