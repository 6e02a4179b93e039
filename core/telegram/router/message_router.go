package router

import (
	"time"

	tg "github.com/dailyinfluencing/listingbot/core/telegram"
	"github.com/dailyinfluencing/listingbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// Flow is the minimal interface of an in-progress conversation consumer.
// When a user has an active conversation, all message updates are handed to it.
type Flow interface {
	InProgress(userID int64) bool
	Handle(c tele.Context) error
}

// MessageOptions controls fallback behaviour for message updates outside a flow.
type MessageOptions struct {
	UnknownText  tele.HandlerFunc
	UnknownMedia tele.HandlerFunc
	// Gate runs before every message handler when set.
	Gate tele.MiddlewareFunc
}

// MessageRoutes builds handlers for text, photo and video routing. Messages
// belonging to an active conversation go to the flow; bare text may still
// match a registered command.
func MessageRoutes(flow Flow, reg *tg.Registry, opts MessageOptions) []tg.Route {
	textHandler := func(c tele.Context) error {
		start := time.Now()
		text := c.Text()

		if flow != nil && c.Sender() != nil && flow.InProgress(c.Sender().ID) {
			return handleWithSummary(c, "flow", start, "", "", func() error {
				return flow.Handle(c)
			})
		}

		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(text); ok && cmd.Handler != nil {
				name := normalizeHandlerName(key)
				return handleWithSummary(c, name, start, "", "", func() error {
					return cmd.Handler(c)
				})
			}
			if fb := reg.TextFallback(); fb != nil {
				return handleWithSummary(c, "fallback", start, "", "", func() error {
					return fb(c)
				})
			}
		}

		if opts.UnknownText != nil {
			return handleWithSummary(c, "unknown_text", start, "", "", func() error {
				return opts.UnknownText(c)
			})
		}

		logHandlerSummary(c, "unknown_text", start, "skip", "ok", nil)
		return nil
	}

	mediaHandler := func(name string) tele.HandlerFunc {
		return func(c tele.Context) error {
			start := time.Now()
			if flow != nil && c.Sender() != nil && flow.InProgress(c.Sender().ID) {
				return handleWithSummary(c, "flow_"+name, start, "", "", func() error {
					return flow.Handle(c)
				})
			}
			if opts.UnknownMedia != nil {
				return handleWithSummary(c, "unexpected_"+name, start, "", "", func() error {
					return opts.UnknownMedia(c)
				})
			}
			logHandlerSummary(c, "unexpected_"+name, start, "skip", "ok", nil)
			return nil
		}
	}

	wrap := func(h tele.HandlerFunc) tele.HandlerFunc {
		if opts.Gate != nil {
			h = opts.Gate(h)
		}
		return middleware.RecoverMiddleware(middleware.LoggerMiddleware(h))
	}

	return []tg.Route{
		{Endpoint: tele.OnText, Handler: wrap(textHandler)},
		{Endpoint: tele.OnPhoto, Handler: wrap(mediaHandler("photo"))},
		{Endpoint: tele.OnVideo, Handler: wrap(mediaHandler("video"))},
		{Endpoint: tele.OnDocument, Handler: wrap(mediaHandler("document"))},
	}
}
