package router

import (
	"github.com/dailyinfluencing/listingbot/core/logger"
	tg "github.com/dailyinfluencing/listingbot/core/telegram"
	"github.com/dailyinfluencing/listingbot/core/telegram/middleware"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// CommandRouteOptions configures how commands are wrapped and exposed.
type CommandRouteOptions struct {
	ReviewerIDs      []int64
	OnReviewerReject tele.HandlerFunc
	// Gate runs before every non-reviewer command when set, e.g. the
	// rejection cooldown check.
	Gate tele.MiddlewareFunc
}

// CommandRoutes prepares command handlers wrapped with shared middleware.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}

	reviewerOpts := middleware.ReviewerOptions{
		IDs:      opts.ReviewerIDs,
		OnReject: opts.OnReviewerReject,
	}

	routes := make([]tg.Route, 0, len(reg.Commands()))
	for cmd, def := range reg.Commands() {
		h := def.Handler
		h = middleware.RecoverMiddleware(h)
		h = middleware.LoggerMiddleware(h)
		if def.AdminOnly {
			h = middleware.ReviewerOnlyMiddleware(reviewerOpts)(h)
		} else if opts.Gate != nil {
			h = opts.Gate(h)
		}
		routes = append(routes, tg.Route{
			Endpoint: cmd,
			Handler:  h,
		})
	}

	logger.TWire.Info("tg.wire",
		slog.String("event", "complete"),
		slog.Int("commands", len(reg.Commands())),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)

	return routes
}
