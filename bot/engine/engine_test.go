package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dailyinfluencing/listingbot/bot/catalog"
	"github.com/dailyinfluencing/listingbot/bot/session"
)

func testCatalog() *catalog.Catalog {
	return &catalog.Catalog{
		Role: "test",
		Questions: []catalog.Question{
			{Key: "full_name", Kind: catalog.KindText, Prompt: "name?"},
			{
				Key:  "name_confirmation",
				Kind: catalog.KindConfirmation,
				PromptFn: func(a catalog.Answers) string {
					return fmt.Sprintf("is %s correct?", a.Text("full_name"))
				},
				Uses: []string{"full_name"},
				Buttons: []catalog.Button{
					{Label: "YES", Value: catalog.ConfirmYes},
					{Label: "NO", Value: catalog.ConfirmNo},
				},
			},
			{
				Key:            "cac_certificate",
				Kind:           catalog.KindConfirmation,
				Prompt:         "registered with CAC?",
				Buttons:        []catalog.Button{{Label: "YES", Value: catalog.ConfirmYes}, {Label: "NO", Value: catalog.ConfirmNo}},
				Disqualify:     true,
				DisqualifyText: "requirements not met",
				LinkLabel:      "Contact a CAC Agent",
			},
			{Key: "proof", Kind: catalog.KindPhoto, Prompt: "send proof photo"},
			{Key: "logos", Kind: catalog.KindPhoto, Prompt: "send logos", Multiple: true},
			{Key: "intro", Kind: catalog.KindVideo, Prompt: "send intro video"},
			{Key: "final_message", Kind: catalog.KindFinal, Prompt: "thanks, submitted"},
		},
	}
}

func testEngine(t *testing.T) (*Engine, *session.Session) {
	t.Helper()
	cat := testCatalog()
	require.NoError(t, cat.Validate())
	e := &Engine{
		forRole:         func(string) (*catalog.Catalog, bool) { return cat, true },
		ContactAgentURL: "https://example.com/cac-agent",
	}
	s := session.New(session.Key{UserID: 1, ChatID: 1})
	_, err := e.Start(s, "test")
	require.NoError(t, err)
	return e, s
}

func prompts(effects []Effect) []Prompt {
	var out []Prompt
	for _, ef := range effects {
		if p, ok := ef.(Prompt); ok {
			out = append(out, p)
		}
	}
	return out
}

func hasSubmit(effects []Effect) bool {
	for _, ef := range effects {
		if _, ok := ef.(Submit); ok {
			return true
		}
	}
	return false
}

func TestValidAnswersAdvanceOneStepAndSubmitOnce(t *testing.T) {
	e, s := testEngine(t)

	inputs := []Event{
		{Kind: EventText, Text: "Ada Obi"},
		{Kind: EventChoice, Choice: catalog.ConfirmYes},
		{Kind: EventChoice, Choice: catalog.ConfirmYes},
		{Kind: EventPhoto, FileID: "proof-1"},
		{Kind: EventPhoto, FileID: "logo-1"},
		{Kind: EventDone},
		{Kind: EventVideo, FileID: "vid-1"},
	}

	submits := 0
	for i, ev := range inputs {
		before := s.Step
		effects, err := e.Advance(s, ev)
		require.NoError(t, err, "input %d", i)
		if hasSubmit(effects) {
			submits++
			continue
		}
		// The multi-item first photo shows the Done control without
		// moving the step; everything else advances by exactly one.
		if ev.Kind == EventPhoto && i == 4 {
			assert.Equal(t, before, s.Step)
		} else {
			assert.Equal(t, before+1, s.Step, "input %d", i)
		}
	}

	assert.Equal(t, 1, submits)
	assert.Equal(t, session.PhaseSubmitted, s.Phase)

	// Past the end nothing advances again.
	_, err := e.Advance(s, Event{Kind: EventText, Text: "late"})
	assert.ErrorIs(t, err, ErrNotAnswering)
}

func TestWrongKindDoesNotAdvance(t *testing.T) {
	e, s := testEngine(t)

	// Text question, photo answer.
	effects, err := e.Advance(s, Event{Kind: EventPhoto, FileID: "x"})
	require.NoError(t, err)
	assert.Equal(t, 0, s.Step)
	assert.Empty(t, s.Answers)
	require.NotEmpty(t, prompts(effects))

	// Advance to the photo question, then send text.
	_, err = e.Advance(s, Event{Kind: EventText, Text: "Ada"})
	require.NoError(t, err)
	_, err = e.Advance(s, Event{Kind: EventChoice, Choice: catalog.ConfirmYes})
	require.NoError(t, err)
	_, err = e.Advance(s, Event{Kind: EventChoice, Choice: catalog.ConfirmYes})
	require.NoError(t, err)
	require.Equal(t, 3, s.Step)

	effects, err = e.Advance(s, Event{Kind: EventText, Text: "not a photo"})
	require.NoError(t, err)
	assert.Equal(t, 3, s.Step)
	ps := prompts(effects)
	require.Len(t, ps, 2)
	assert.Contains(t, ps[0].Text, "photo")
	assert.Equal(t, "send proof photo", ps[1].Text)
}

func TestConfirmationNoStepsBack(t *testing.T) {
	e, s := testEngine(t)

	_, err := e.Advance(s, Event{Kind: EventText, Text: "Ada Obo"})
	require.NoError(t, err)
	require.Equal(t, 1, s.Step)

	effects, err := e.Advance(s, Event{Kind: EventChoice, Choice: catalog.ConfirmNo})
	require.NoError(t, err)
	assert.Equal(t, 0, s.Step)
	ps := prompts(effects)
	require.Len(t, ps, 1)
	assert.Equal(t, "name?", ps[0].Text)

	// Corrected answer flows through the prompt function.
	_, err = e.Advance(s, Event{Kind: EventText, Text: "Ada Obi"})
	require.NoError(t, err)
	effects, err = e.Advance(s, Event{Kind: EventChoice, Choice: catalog.ConfirmYes})
	require.NoError(t, err)
	assert.Equal(t, 2, s.Step)
	assert.Equal(t, "Yes", s.Text("name_confirmation"))
	require.NotEmpty(t, prompts(effects))
}

func TestDisqualifyingNoResetsEverything(t *testing.T) {
	e, s := testEngine(t)

	_, err := e.Advance(s, Event{Kind: EventText, Text: "Ada"})
	require.NoError(t, err)
	_, err = e.Advance(s, Event{Kind: EventChoice, Choice: catalog.ConfirmYes})
	require.NoError(t, err)
	require.Equal(t, 2, s.Step)

	effects, err := e.Advance(s, Event{Kind: EventChoice, Choice: catalog.ConfirmNo})
	require.NoError(t, err)
	assert.Equal(t, 0, s.Step)
	assert.Empty(t, s.Answers)

	var dq *Disqualified
	for _, ef := range effects {
		if d, ok := ef.(Disqualified); ok {
			dq = &d
		}
	}
	require.NotNil(t, dq)
	assert.Equal(t, "requirements not met", dq.Text)
	assert.Equal(t, "https://example.com/cac-agent", dq.LinkURL)
}

func TestMultiItemDoneShownOnceAndRequired(t *testing.T) {
	e, s := testEngine(t)

	for _, ev := range []Event{
		{Kind: EventText, Text: "Ada"},
		{Kind: EventChoice, Choice: catalog.ConfirmYes},
		{Kind: EventChoice, Choice: catalog.ConfirmYes},
		{Kind: EventPhoto, FileID: "proof"},
	} {
		_, err := e.Advance(s, ev)
		require.NoError(t, err)
	}
	require.Equal(t, 4, s.Step)

	// Done before any item re-prompts.
	effects, err := e.Advance(s, Event{Kind: EventDone})
	require.NoError(t, err)
	assert.Equal(t, 4, s.Step)
	require.NotEmpty(t, prompts(effects))

	// First item shows the Done control, later ones stay silent.
	effects, err = e.Advance(s, Event{Kind: EventPhoto, FileID: "logo-1"})
	require.NoError(t, err)
	ps := prompts(effects)
	require.Len(t, ps, 1)
	assert.True(t, ps[0].Done)

	effects, err = e.Advance(s, Event{Kind: EventPhoto, FileID: "logo-2"})
	require.NoError(t, err)
	assert.Empty(t, prompts(effects))
	assert.Equal(t, 4, s.Step)
	assert.Equal(t, []string{"logo-1", "logo-2"}, s.Answers["logos"].Media)

	// Done advances exactly once.
	_, err = e.Advance(s, Event{Kind: EventDone})
	require.NoError(t, err)
	assert.Equal(t, 5, s.Step)
	assert.False(t, s.DonePromptShown)
}

func TestSingleMediaDuplicateRejected(t *testing.T) {
	e, s := testEngine(t)

	for _, ev := range []Event{
		{Kind: EventText, Text: "Ada"},
		{Kind: EventChoice, Choice: catalog.ConfirmYes},
		{Kind: EventChoice, Choice: catalog.ConfirmYes},
	} {
		_, err := e.Advance(s, ev)
		require.NoError(t, err)
	}
	require.Equal(t, 3, s.Step)

	_, err := e.Advance(s, Event{Kind: EventPhoto, FileID: "proof-1"})
	require.NoError(t, err)
	require.Equal(t, 4, s.Step)

	// Re-answering the already-answered single question is only possible by
	// stepping back; a duplicate while still on it is rejected.
	s.Step = 3
	s.Phase = session.PhaseAnswering
	effects, err := e.Advance(s, Event{Kind: EventPhoto, FileID: "proof-2"})
	require.NoError(t, err)
	assert.Equal(t, 3, s.Step)
	assert.Equal(t, []string{"proof-1"}, s.Answers["proof"].Media)
	ps := prompts(effects)
	require.NotEmpty(t, ps)
	assert.Contains(t, ps[0].Text, "Only one image")
}

func TestTransientMessagesDeletedBeforeNextPrompt(t *testing.T) {
	e, s := testEngine(t)
	s.Track(100)
	s.Track(101)

	effects, err := e.Advance(s, Event{Kind: EventText, Text: "Ada"})
	require.NoError(t, err)
	require.NotEmpty(t, effects)
	del, ok := effects[0].(DeleteMessages)
	require.True(t, ok)
	assert.Equal(t, []int{100, 101}, del.IDs)
	assert.Empty(t, s.Transient)
}

func TestFinalMarkerEmitsPromptThenSubmit(t *testing.T) {
	e, s := testEngine(t)

	for _, ev := range []Event{
		{Kind: EventText, Text: "Ada"},
		{Kind: EventChoice, Choice: catalog.ConfirmYes},
		{Kind: EventChoice, Choice: catalog.ConfirmYes},
		{Kind: EventPhoto, FileID: "proof"},
		{Kind: EventPhoto, FileID: "logo"},
		{Kind: EventDone},
	} {
		_, err := e.Advance(s, ev)
		require.NoError(t, err)
	}

	effects, err := e.Advance(s, Event{Kind: EventVideo, FileID: "vid"})
	require.NoError(t, err)
	ps := prompts(effects)
	require.Len(t, ps, 1)
	assert.Equal(t, "thanks, submitted", ps[0].Text)
	assert.True(t, hasSubmit(effects))
	assert.Equal(t, session.PhaseSubmitted, s.Phase)
}
