// Package catalog defines the ordered question sets the bot walks applicants
// through, one catalog per role.
package catalog

import "fmt"

// Kind tells the engine which update type answers a question.
type Kind string

const (
	// KindText expects a plain text reply.
	KindText Kind = "text"
	// KindPhoto expects one photo, or several when Multiple is set.
	KindPhoto Kind = "photo"
	// KindVideo expects a video reply.
	KindVideo Kind = "video"
	// KindConfirmation expects a yes/no button press.
	KindConfirmation Kind = "confirmation"
	// KindFinal marks the terminal entry; reaching it submits the application.
	KindFinal Kind = "final"
)

// Roles supported by the shipped catalogs.
const (
	RoleDesigner   = "designer"
	RoleInfluencer = "influencer"
)

// Confirmation button values.
const (
	ConfirmYes = "yes"
	ConfirmNo  = "no"
)

// Answers exposes previously collected answers to prompt functions.
type Answers interface {
	Text(key string) string
}

// Button is an inline confirmation choice. Value is what the engine receives;
// several labels may map to the same value.
type Button struct {
	Label string
	Value string
}

// Question is a single catalog entry.
type Question struct {
	Key    string
	Kind   Kind
	Prompt string
	// PromptFn renders the prompt from earlier answers; it overrides Prompt.
	PromptFn func(Answers) string
	// Uses lists the answer keys PromptFn reads, for validation.
	Uses []string
	// Buttons are the confirmation choices; required for KindConfirmation.
	Buttons []Button
	// Multiple allows several media answers closed by an explicit Done press.
	Multiple bool
	// Disqualify makes a "no" answer reset the application instead of
	// stepping back.
	Disqualify bool
	// DisqualifyText is shown to the user when Disqualify triggers.
	DisqualifyText string
	// LinkLabel/LinkURL attach a URL button to the prompt or disqualify notice.
	LinkLabel string
	LinkURL   string
}

// Catalog is the ordered question list for one role.
type Catalog struct {
	Role      string
	Questions []Question
}

// Len returns the number of questions.
func (c *Catalog) Len() int { return len(c.Questions) }

// At returns the question at step, or false when step is out of range.
func (c *Catalog) At(step int) (Question, bool) {
	if step < 0 || step >= len(c.Questions) {
		return Question{}, false
	}
	return c.Questions[step], true
}

// Validate checks structural invariants: exactly one final marker in last
// position, and prompt functions only referencing keys asked earlier.
func (c *Catalog) Validate() error {
	if len(c.Questions) == 0 {
		return fmt.Errorf("catalog %s: empty", c.Role)
	}
	seen := make(map[string]int, len(c.Questions))
	for i, q := range c.Questions {
		if q.Key == "" {
			return fmt.Errorf("catalog %s: question %d has no key", c.Role, i)
		}
		if prev, dup := seen[q.Key]; dup {
			return fmt.Errorf("catalog %s: duplicate key %q at %d and %d", c.Role, q.Key, prev, i)
		}
		seen[q.Key] = i
		if q.Kind == KindFinal && i != len(c.Questions)-1 {
			return fmt.Errorf("catalog %s: final marker %q not last", c.Role, q.Key)
		}
		if q.PromptFn != nil && q.Kind != KindConfirmation && q.Kind != KindFinal {
			return fmt.Errorf("catalog %s: question %q has prompt function but kind %s", c.Role, q.Key, q.Kind)
		}
		if q.Kind == KindConfirmation && len(q.Buttons) == 0 {
			return fmt.Errorf("catalog %s: confirmation %q has no buttons", c.Role, q.Key)
		}
		for _, used := range q.Uses {
			at, ok := seen[used]
			if !ok || at >= i {
				return fmt.Errorf("catalog %s: question %q references %q before it is asked", c.Role, q.Key, used)
			}
		}
		if q.Multiple && q.Kind != KindPhoto && q.Kind != KindVideo {
			return fmt.Errorf("catalog %s: question %q is multiple but kind %s", c.Role, q.Key, q.Kind)
		}
		if q.Disqualify && q.Kind != KindConfirmation {
			return fmt.Errorf("catalog %s: question %q disqualifies but kind %s", c.Role, q.Key, q.Kind)
		}
	}
	if c.Questions[len(c.Questions)-1].Kind != KindFinal {
		return fmt.Errorf("catalog %s: last question must be the final marker", c.Role)
	}
	return nil
}

var registry = map[string]*Catalog{
	RoleDesigner:   Designer(),
	RoleInfluencer: Influencer(),
}

// ForRole returns the catalog registered for role.
func ForRole(role string) (*Catalog, bool) {
	c, ok := registry[role]
	return c, ok
}

// Roles returns the roles with a registered catalog.
func Roles() []string {
	return []string{RoleDesigner, RoleInfluencer}
}

// ValidateAll checks every registered catalog; called at start-up.
func ValidateAll() error {
	for _, role := range Roles() {
		c := registry[role]
		if err := c.Validate(); err != nil {
			return err
		}
	}
	return nil
}
