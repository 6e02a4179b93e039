// Package engine advances questionnaire sessions. It is transport-free:
// every call returns the effects the bot layer must execute.
package engine

import (
	"fmt"

	"github.com/dailyinfluencing/listingbot/bot/catalog"
	"github.com/dailyinfluencing/listingbot/bot/session"
)

// EventKind classifies an inbound update for the engine.
type EventKind string

const (
	// EventText is a plain text message.
	EventText EventKind = "text"
	// EventPhoto is a photo message; FileID carries the largest size.
	EventPhoto EventKind = "photo"
	// EventVideo is a video message.
	EventVideo EventKind = "video"
	// EventChoice is a confirmation button press; Choice carries the value.
	EventChoice EventKind = "choice"
	// EventDone is the multi-item Done button press.
	EventDone EventKind = "done"
	// EventOther is any unsupported update type.
	EventOther EventKind = "other"
)

// Event is one applicant input.
type Event struct {
	Kind   EventKind
	Text   string
	FileID string
	Choice string
}

const (
	msgOnlyOneImage = "Only one image is allowed. Please resend the correct image."
	msgOnlyOneVideo = "Only one video is allowed. Please resend the correct video."
	msgUseButtons   = "Please use the buttons provided to answer this question."
	msgDoneControl  = `When you are done sending photos, click the "Done" button below.`
	msgNeedOneItem  = "Please send at least one photo first."
	msgStartAgain   = "Once you obtain a CAC certificate, please start the process again."
)

// ErrNotAnswering is returned when Advance is called outside an active
// questionnaire.
var ErrNotAnswering = fmt.Errorf("engine: session is not answering a questionnaire")

// Engine walks sessions through their role's catalog.
type Engine struct {
	forRole func(string) (*catalog.Catalog, bool)
	// ContactAgentURL backs the disqualify notice button.
	ContactAgentURL string
}

// New returns an engine over the shipped catalogs.
func New(contactAgentURL string) *Engine {
	return &Engine{forRole: catalog.ForRole, ContactAgentURL: contactAgentURL}
}

// Start binds the session to a role and asks the first question.
func (e *Engine) Start(s *session.Session, role string) ([]Effect, error) {
	cat, ok := e.forRole(role)
	if !ok {
		return nil, fmt.Errorf("engine: unknown role %q", role)
	}
	s.Role = role
	s.Phase = session.PhaseAnswering
	s.Restart()

	effects := e.clearTransient(s)
	return append(effects, e.ask(s, cat)...), nil
}

// Current returns the question the session is waiting on, if any.
func (e *Engine) Current(s *session.Session) (catalog.Question, bool) {
	if s.Phase != session.PhaseAnswering || s.Role == "" {
		return catalog.Question{}, false
	}
	cat, ok := e.forRole(s.Role)
	if !ok {
		return catalog.Question{}, false
	}
	return cat.At(s.Step)
}

// Advance applies one applicant event to the session and returns the
// resulting effects. The caller persists the session afterwards.
func (e *Engine) Advance(s *session.Session, ev Event) ([]Effect, error) {
	if s.Phase != session.PhaseAnswering || s.Role == "" {
		return nil, ErrNotAnswering
	}
	cat, ok := e.forRole(s.Role)
	if !ok {
		return nil, fmt.Errorf("engine: unknown role %q", s.Role)
	}
	q, ok := cat.At(s.Step)
	if !ok {
		// Step ran past the catalog without a final marker; submit once.
		s.Phase = session.PhaseSubmitted
		return []Effect{Submit{}}, nil
	}

	effects := e.clearTransient(s)

	switch q.Kind {
	case catalog.KindText:
		if ev.Kind != EventText {
			return append(effects, e.reprompt(s, q, "Please answer with a text message.")...), nil
		}
		s.SetText(q.Key, q.Kind, ev.Text)
		s.Step++
		return append(effects, e.ask(s, cat)...), nil

	case catalog.KindPhoto:
		return e.advanceMedia(s, cat, q, ev, effects)

	case catalog.KindVideo:
		return e.advanceMedia(s, cat, q, ev, effects)

	case catalog.KindConfirmation:
		return e.advanceConfirmation(s, cat, q, ev, effects)

	case catalog.KindFinal:
		// Already terminal; ask() normally submits before this is reachable.
		s.Phase = session.PhaseSubmitted
		return append(effects, Submit{}), nil
	}

	return append(effects, e.reprompt(s, q, "")...), nil
}

func (e *Engine) advanceMedia(s *session.Session, cat *catalog.Catalog, q catalog.Question, ev Event, effects []Effect) ([]Effect, error) {
	want := EventPhoto
	noun := "photo"
	dup := msgOnlyOneImage
	if q.Kind == catalog.KindVideo {
		want = EventVideo
		noun = "video"
		dup = msgOnlyOneVideo
	}

	switch ev.Kind {
	case want:
		if q.Multiple {
			s.AppendMedia(q.Key, q.Kind, ev.FileID)
			if !s.DonePromptShown {
				s.DonePromptShown = true
				effects = append(effects, Prompt{Text: msgDoneControl, Done: true})
			}
			return effects, nil
		}
		if len(s.Answers[q.Key].Media) > 0 {
			return append(effects, e.reprompt(s, q, dup)...), nil
		}
		s.AppendMedia(q.Key, q.Kind, ev.FileID)
		s.Step++
		return append(effects, e.ask(s, cat)...), nil

	case EventDone:
		if !q.Multiple {
			return append(effects, e.reprompt(s, q, "")...), nil
		}
		if len(s.Answers[q.Key].Media) == 0 {
			return append(effects, e.reprompt(s, q, msgNeedOneItem)...), nil
		}
		s.DonePromptShown = false
		s.Step++
		return append(effects, e.ask(s, cat)...), nil

	default:
		notice := fmt.Sprintf("Please send the correct media file (%s) as required.", noun)
		return append(effects, e.reprompt(s, q, notice)...), nil
	}
}

func (e *Engine) advanceConfirmation(s *session.Session, cat *catalog.Catalog, q catalog.Question, ev Event, effects []Effect) ([]Effect, error) {
	if ev.Kind != EventChoice {
		return append(effects, e.reprompt(s, q, msgUseButtons)...), nil
	}

	switch ev.Choice {
	case catalog.ConfirmNo:
		if q.Disqualify {
			s.Restart()
			link := e.ContactAgentURL
			if link == "" {
				link = q.LinkURL
			}
			effects = append(effects, Disqualified{
				Text:      q.DisqualifyText,
				LinkLabel: q.LinkLabel,
				LinkURL:   link,
			})
			return append(effects, Prompt{Text: msgStartAgain}), nil
		}
		if s.Step > 0 {
			s.Step--
		}
		return append(effects, e.ask(s, cat)...), nil

	case catalog.ConfirmYes:
		s.SetText(q.Key, q.Kind, "Yes")
		s.Step++
		return append(effects, e.ask(s, cat)...), nil

	default:
		return append(effects, e.reprompt(s, q, msgUseButtons)...), nil
	}
}

// ask renders the question at the current step, submitting when the catalog
// is exhausted or its final marker is reached.
func (e *Engine) ask(s *session.Session, cat *catalog.Catalog) []Effect {
	q, ok := cat.At(s.Step)
	if !ok {
		s.Phase = session.PhaseSubmitted
		return []Effect{Submit{}}
	}
	if q.Kind == catalog.KindFinal {
		s.Phase = session.PhaseSubmitted
		s.Step = cat.Len()
		return []Effect{
			Prompt{Text: promptText(q, s), LinkLabel: q.LinkLabel, LinkURL: q.LinkURL},
			Submit{},
		}
	}
	return []Effect{promptFor(q, s)}
}

// reprompt emits an optional notice followed by the current question again.
// The step never changes here.
func (e *Engine) reprompt(s *session.Session, q catalog.Question, notice string) []Effect {
	var effects []Effect
	if notice != "" {
		effects = append(effects, Prompt{Text: notice})
	}
	return append(effects, promptFor(q, s))
}

func promptFor(q catalog.Question, s *session.Session) Prompt {
	p := Prompt{Text: promptText(q, s), LinkLabel: q.LinkLabel, LinkURL: q.LinkURL}
	if q.Kind == catalog.KindConfirmation {
		p.Buttons = q.Buttons
		p.LinkLabel, p.LinkURL = "", ""
	}
	return p
}

func promptText(q catalog.Question, a catalog.Answers) string {
	if q.PromptFn != nil {
		return q.PromptFn(a)
	}
	return q.Prompt
}

func (e *Engine) clearTransient(s *session.Session) []Effect {
	if len(s.Transient) == 0 {
		return nil
	}
	ids := s.Transient
	s.Transient = nil
	return []Effect{DeleteMessages{IDs: ids}}
}
