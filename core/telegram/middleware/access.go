package middleware

import tele "gopkg.in/telebot.v4"

// ReviewerOptions defines how reviewer-only checks should behave.
type ReviewerOptions struct {
	IDs      []int64
	OnReject tele.HandlerFunc
}

func (o ReviewerOptions) allowed(id int64) bool {
	for _, rid := range o.IDs {
		if rid == id {
			return true
		}
	}
	return false
}

// ReviewerOnlyMiddleware ensures that only allow-listed reviewer accounts can
// invoke downstream handlers. With an empty allow-list everything is rejected.
func ReviewerOnlyMiddleware(opts ReviewerOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if c.Sender() == nil || !opts.allowed(c.Sender().ID) {
				if opts.OnReject != nil {
					return opts.OnReject(c)
				}
				return nil
			}
			return next(c)
		}
	}
}
