// Package session holds per-applicant conversation state while a
// questionnaire is in progress.
package session

import (
	"context"
	"fmt"

	"github.com/dailyinfluencing/listingbot/bot/catalog"
)

// Key identifies a conversation. Private chats have UserID == ChatID but the
// pair is kept so group interactions never collide with private ones.
type Key struct {
	UserID int64 `json:"user_id"`
	ChatID int64 `json:"chat_id"`
}

func (k Key) String() string { return fmt.Sprintf("%d:%d", k.UserID, k.ChatID) }

// Phase describes where in the application lifecycle a session is.
type Phase string

const (
	// PhaseRoleSelection means the user has not picked a role yet.
	PhaseRoleSelection Phase = "role_selection"
	// PhaseAnswering means the questionnaire is in progress.
	PhaseAnswering Phase = "answering"
	// PhaseSubmitted means the application went out for review.
	PhaseSubmitted Phase = "submitted"
)

// Answer is a tagged answer value: text for text/confirmation questions,
// media file IDs otherwise.
type Answer struct {
	Kind  catalog.Kind `json:"kind"`
	Text  string       `json:"text,omitempty"`
	Media []string     `json:"media,omitempty"`
}

// Session is the conversation state for one applicant.
type Session struct {
	Key     Key               `json:"key"`
	Phase   Phase             `json:"phase"`
	Role    string            `json:"role,omitempty"`
	Step    int               `json:"step"`
	Answers map[string]Answer `json:"answers,omitempty"`

	// Transient lists bot message IDs deleted before the next prompt.
	Transient []int `json:"transient,omitempty"`
	// DonePromptShown records that the Done control for the current
	// multi-item question was already sent.
	DonePromptShown bool `json:"done_prompt_shown,omitempty"`
	// ChattingWith holds the reviewer ID during a relay chat, if any.
	ChattingWith int64 `json:"chatting_with,omitempty"`
}

// New returns a fresh session in role selection.
func New(key Key) *Session {
	return &Session{
		Key:     key,
		Phase:   PhaseRoleSelection,
		Answers: make(map[string]Answer),
	}
}

// Clone returns a deep copy. Stores hand out clones so callers never
// share the Answers map or Transient slice with stored state.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	if s.Answers != nil {
		cp.Answers = make(map[string]Answer, len(s.Answers))
		for k, a := range s.Answers {
			if a.Media != nil {
				a.Media = append([]string(nil), a.Media...)
			}
			cp.Answers[k] = a
		}
	}
	if s.Transient != nil {
		cp.Transient = append([]int(nil), s.Transient...)
	}
	return &cp
}

// Reset wipes progress back to role selection, keeping the key.
func (s *Session) Reset() {
	s.Phase = PhaseRoleSelection
	s.Role = ""
	s.Step = 0
	s.Answers = make(map[string]Answer)
	s.Transient = nil
	s.DonePromptShown = false
	s.ChattingWith = 0
}

// Restart clears answers and returns to step 0 of the current catalog.
func (s *Session) Restart() {
	s.Step = 0
	s.Answers = make(map[string]Answer)
	s.DonePromptShown = false
}

// Text implements catalog.Answers for prompt functions.
func (s *Session) Text(key string) string {
	return s.Answers[key].Text
}

// SetText records a text answer.
func (s *Session) SetText(key string, kind catalog.Kind, text string) {
	if s.Answers == nil {
		s.Answers = make(map[string]Answer)
	}
	s.Answers[key] = Answer{Kind: kind, Text: text}
}

// AppendMedia records a media answer, appending for multi-item questions.
func (s *Session) AppendMedia(key string, kind catalog.Kind, fileID string) {
	if s.Answers == nil {
		s.Answers = make(map[string]Answer)
	}
	a := s.Answers[key]
	a.Kind = kind
	a.Media = append(a.Media, fileID)
	s.Answers[key] = a
}

// Track remembers a bot message for deletion before the next prompt.
func (s *Session) Track(messageID int) {
	if messageID == 0 {
		return
	}
	s.Transient = append(s.Transient, messageID)
}

// Store persists sessions. Implementations serialize Do calls per key; all
// questionnaire mutations go through Do.
type Store interface {
	Get(ctx context.Context, key Key) (*Session, error)
	Put(ctx context.Context, s *Session) error
	Delete(ctx context.Context, key Key) error
	// Do loads (or creates) the session for key, runs fn on it, and saves
	// it back when fn succeeds. Calls for the same key never overlap.
	Do(ctx context.Context, key Key, fn func(*Session) error) error
}
