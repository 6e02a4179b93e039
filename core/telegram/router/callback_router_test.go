package router

import (
	"testing"

	tele "gopkg.in/telebot.v4"

	tg "github.com/dailyinfluencing/listingbot/core/telegram"
)

// callbackContext stubs the slice of tele.Context the callback route
// touches. Unimplemented methods panic via the embedded nil interface.
type callbackContext struct {
	tele.Context
	cb     *tele.Callback
	sender *tele.User
	values map[string]any
}

func newCallbackContext(data string, senderID int64) *callbackContext {
	return &callbackContext{
		cb:     &tele.Callback{Data: data},
		sender: &tele.User{ID: senderID},
		values: make(map[string]any),
	}
}

func (c *callbackContext) Callback() *tele.Callback { return c.cb }

func (c *callbackContext) Sender() *tele.User { return c.sender }

func (c *callbackContext) Chat() *tele.Chat { return &tele.Chat{ID: c.sender.ID} }

func (c *callbackContext) Update() tele.Update { return tele.Update{Callback: c.cb} }

func (c *callbackContext) Respond(_ ...*tele.CallbackResponse) error { return nil }

func (c *callbackContext) Get(key string) any { return c.values[key] }

func (c *callbackContext) Set(key string, val any) { c.values[key] = val }

func TestCallbackRouteAppliesGate(t *testing.T) {
	reg := tg.NewRegistry()
	handled := 0
	if err := reg.RegisterCallback("pick_role", func(c tele.Context) error {
		handled++
		return nil
	}); err != nil {
		t.Fatalf("RegisterCallback: %v", err)
	}

	const blockedID = 99
	gated := 0
	gate := func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if s := c.Sender(); s != nil && s.ID == blockedID {
				gated++
				return nil
			}
			return next(c)
		}
	}
	route := CallbackRoute(reg, CallbackOptions{Gate: gate})

	// A blocked sender never reaches the registered handler.
	if err := route.Handler(newCallbackContext("\fpick_role|designer", blockedID)); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if handled != 0 || gated != 1 {
		t.Fatalf("handled = %d, gated = %d", handled, gated)
	}

	// Anyone else passes through to the handler.
	if err := route.Handler(newCallbackContext("\fpick_role|designer", 7)); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if handled != 1 {
		t.Fatalf("handled = %d", handled)
	}
}

func TestCallbackRouteNotFoundFallback(t *testing.T) {
	reg := tg.NewRegistry()
	fellBack := 0
	route := CallbackRoute(reg, CallbackOptions{
		NotFound: func(c tele.Context) error {
			fellBack++
			return nil
		},
	})

	if err := route.Handler(newCallbackContext("\fno_such_key", 7)); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if fellBack != 1 {
		t.Fatalf("fellBack = %d", fellBack)
	}
}
