package app

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/dailyinfluencing/listingbot/bot/catalog"
	"github.com/dailyinfluencing/listingbot/bot/engine"
	"github.com/dailyinfluencing/listingbot/bot/session"
	"github.com/dailyinfluencing/listingbot/bot/store"
	"github.com/dailyinfluencing/listingbot/bot/subscription"
	"github.com/dailyinfluencing/listingbot/core/logger"
	"github.com/dailyinfluencing/listingbot/core/telegram/callbacks"
	"github.com/dailyinfluencing/listingbot/core/telegram/commands"
	tghelpers "github.com/dailyinfluencing/listingbot/core/telegram/helpers"
	"github.com/dailyinfluencing/listingbot/core/telegram/keyboard"
)

// Callback action keys. Payload fields are joined with the callbacks
// field separator, so values containing underscores stay intact.
const (
	cbRole      = "role"
	cbConfirm   = "confirm"
	cbDone      = "done"
	cbApprove   = "approve"
	cbReject    = "reject"
	cbPlans     = "plans"
	cbSubscribe = "subscribe"
	cbVerify    = "verify"
)

const (
	msgWelcome = "Hello %s, I'm glad you showed interest.\n\nI am Dailyinfluencing Subscription Bot. I will guide and walk you through the process of how to get your service listed on Dailyinfluencing.com\n\nAlways use the /start command to restart your progress"
	msgPickRole = "How do you wish to get listed on our platform?"

	msgNotApproved = "You need to complete the questionnaire and get approved before accessing payment options."
	msgIneligible  = "Your community size does not meet the minimum requirement to subscribe to a plan."
	msgBadEmail    = "Your email address is invalid or not provided. \n\nKindly provide a valid email address to our support inbox: @dailyinfluencingsupport"
	msgPayPrompt   = "Click the button below to complete your payment:"
	msgPaySuccess  = "Your Payment was successful! \U0001F389\n\nOur team has started processing your subscription with the above details you provided. Your service will be listed on our website within 1-3hrs.\n\nIf you have any questions, kindly reach out to our support @dailyinfluencingsupport"
	msgPayFailed   = "Payment failed. Please try again."
	msgPayError    = "Error verifying payment. Please try again."
	msgPayConsumed = "This payment has already been confirmed."
)

func encodeConfirm(questionKey, value string) string {
	return callbacks.EncodeFields(questionKey, value)
}

func (a *App) registerCommands() {
	a.registry.RegisterCommand("/start", commands.Command{
		Handler:     a.handleStart,
		Description: "Begin or restart the listing process",
		Aliases:     []string{"restart"},
	})
	a.registry.RegisterCommand("/renew", commands.Command{
		Handler:     a.handleRenew,
		Description: "View subscription plans for renewal",
	})
	a.registry.RegisterCommand("/support", commands.Command{
		Handler:     a.handleSupport,
		Description: "Contact customer support",
	})
	a.registry.RegisterCommand("/cac", commands.Command{
		Handler:     a.handleCAC,
		Description: "Get help registering with the CAC",
	})
	a.registerAdminCommands()
}

func (a *App) registerCallbacks() {
	must := func(key string, h tele.HandlerFunc) {
		if err := a.registry.RegisterCallback(key, h); err != nil {
			logger.TWire.Warn("callback registration failed", slog.String("cb_key", key))
		}
	}
	must(cbRole, a.cbSelectRole)
	must(cbConfirm, a.cbConfirmChoice)
	must(cbDone, a.cbDoneCollecting)
	must(cbApprove, a.reviewerOnlyCallback(a.cbApproveUser))
	must(cbReject, a.reviewerOnlyCallback(a.cbRejectUser))
	must(cbPlans, a.cbShowPlans)
	must(cbSubscribe, a.cbSubscribePlan)
	must(cbVerify, a.cbVerifyPayment)
}

// cooldownGate blocks messages from users inside the 24h rejection
// window. Reviewers bypass the gate.
func (a *App) cooldownGate() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			sender := c.Sender()
			if sender == nil || a.cfg.IsReviewer(sender.ID) {
				return next(c)
			}
			ctx := tghelpers.BuildContext(c)
			blocked, notice, err := a.review.Gate(ctx, sender.ID)
			if err != nil {
				logger.Warn(ctx, "review", "gate_check_failed",
					slog.Int64("user_id", sender.ID),
					slog.String("err", err.Error()),
				)
				return next(c)
			}
			if blocked {
				return tghelpers.SendText(c, notice)
			}
			return next(c)
		}
	}
}

// lastActiveMiddleware stamps LastActive on every inbound update from a
// known user, feeding the inactivity sweep.
func (a *App) lastActiveMiddleware() func(tele.HandlerFunc) tele.HandlerFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if sender := c.Sender(); sender != nil && !a.cfg.IsReviewer(sender.ID) {
				ctx := tghelpers.BuildContext(c)
				if u, err := a.users.Get(ctx, sender.ID); err == nil && u != nil {
					u.LastActive = time.Now()
					if err := a.users.Set(ctx, u); err != nil {
						logger.Debug(ctx, "db", "last_active_update_failed",
							slog.Int64("user_id", sender.ID),
						)
					}
				}
			}
			return next(c)
		}
	}
}

// handleStart resets the conversation. Approved users go straight to the
// payment options; everyone else picks a role.
func (a *App) handleStart(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	if a.cfg.IsReviewer(sender.ID) {
		return nil
	}
	ctx := tghelpers.BuildContext(c)

	u, err := a.users.Get(ctx, sender.ID)
	if err == nil && u != nil && u.Status == store.StatusApproved {
		return a.showPlans(c, u)
	}

	key := session.Key{UserID: sender.ID, ChatID: sender.ID}
	if err := a.sessions.Do(ctx, key, func(s *session.Session) error {
		s.Reset()
		return nil
	}); err != nil {
		return err
	}

	if err := c.Send(fmt.Sprintf(msgWelcome, sender.FirstName)); err != nil {
		return err
	}
	markup := keyboard.InlineButtonsRows(
		[]keyboard.InlineBtn{{Text: "\U0001FAC0 As a WhatsApp Influencer", Unique: cbRole, Data: catalog.RoleInfluencer}},
		[]keyboard.InlineBtn{{Text: "\U0001F3A8 As a Graphic Designer", Unique: cbRole, Data: catalog.RoleDesigner}},
	)
	return c.Send(msgPickRole, markup)
}

// cbSelectRole binds the chosen role and starts the questionnaire.
func (a *App) cbSelectRole(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	role := callbacks.CallbackPayload(c)
	ctx := tghelpers.BuildContext(c)
	key := session.Key{UserID: sender.ID, ChatID: sender.ID}

	return a.sessions.Do(ctx, key, func(s *session.Session) error {
		effects, err := a.engine.Start(s, role)
		if err != nil {
			logger.Warn(ctx, "engine", "role_select_failed",
				slog.Int64("user_id", sender.ID),
				slog.String("role", role),
			)
			return c.Send("Please pick one of the offered roles.")
		}
		a.persistRole(ctx, sender, role)
		return a.applyEffects(ctx, c, sender, s, effects)
	})
}

// persistRole records the chosen role on the user record so tier
// resolution works even before submission.
func (a *App) persistRole(ctx context.Context, sender *tele.User, role string) {
	u, err := a.users.Get(ctx, sender.ID)
	if err != nil {
		logger.Warn(ctx, "db", "role_lookup_failed", slog.Int64("user_id", sender.ID))
		return
	}
	if u == nil {
		u = &store.UserRecord{UserID: sender.ID, Status: store.StatusPending}
	}
	u.Username = sender.Username
	u.Role = role
	u.LastActive = time.Now()
	if err := a.users.Set(ctx, u); err != nil {
		logger.Warn(ctx, "db", "role_persist_failed", slog.Int64("user_id", sender.ID))
	}
}

// cbConfirmChoice feeds a confirmation button press to the engine. Pressing
// a button left over from an earlier question is ignored.
func (a *App) cbConfirmChoice(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	questionKey, err := callbacks.Field(c, 0)
	if err != nil {
		return nil
	}
	choice, err := callbacks.Field(c, 1)
	if err != nil {
		return nil
	}

	ctx := tghelpers.BuildContext(c)
	key := session.Key{UserID: sender.ID, ChatID: sender.ID}
	return a.sessions.Do(ctx, key, func(s *session.Session) error {
		if q, ok := a.engine.Current(s); !ok || q.Key != questionKey {
			return nil // stale button
		}
		effects, err := a.engine.Advance(s, engine.Event{Kind: engine.EventChoice, Choice: choice})
		if err != nil {
			if errors.Is(err, engine.ErrNotAnswering) {
				return nil
			}
			return err
		}
		return a.applyEffects(ctx, c, sender, s, effects)
	})
}

// cbDoneCollecting closes a multi-item question.
func (a *App) cbDoneCollecting(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	questionKey := callbacks.CallbackPayload(c)
	ctx := tghelpers.BuildContext(c)
	key := session.Key{UserID: sender.ID, ChatID: sender.ID}

	return a.sessions.Do(ctx, key, func(s *session.Session) error {
		if q, ok := a.engine.Current(s); !ok || q.Key != questionKey {
			return nil
		}
		effects, err := a.engine.Advance(s, engine.Event{Kind: engine.EventDone})
		if err != nil {
			if errors.Is(err, engine.ErrNotAnswering) {
				return nil
			}
			return err
		}
		return a.applyEffects(ctx, c, sender, s, effects)
	})
}

// reviewerOnlyCallback guards decision callbacks behind the allow-list.
func (a *App) reviewerOnlyCallback(h tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		sender := c.Sender()
		if sender == nil || !a.cfg.IsReviewer(sender.ID) {
			return c.Respond(&tele.CallbackResponse{Text: "Not allowed"})
		}
		return h(c)
	}
}

func (a *App) cbApproveUser(c tele.Context) error {
	userID, err := callbacks.PayloadInt64(c)
	if err != nil {
		return c.Send("Malformed approval action.")
	}
	ctx := tghelpers.BuildContext(c)
	if _, err := a.review.Approve(ctx, userID); err != nil {
		return c.Send(fmt.Sprintf("Approval failed: %v", err))
	}
	return c.Send("User approved.")
}

func (a *App) cbRejectUser(c tele.Context) error {
	userID, err := callbacks.PayloadInt64(c)
	if err != nil {
		return c.Send("Malformed rejection action.")
	}
	ctx := tghelpers.BuildContext(c)
	if _, err := a.review.Reject(ctx, userID); err != nil {
		return c.Send(fmt.Sprintf("Rejection failed: %v", err))
	}
	return c.Send("User rejected.")
}

// cbShowPlans presents the pricing menu to an approved user.
func (a *App) cbShowPlans(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	u, err := a.users.Get(ctx, sender.ID)
	if err != nil {
		return err
	}
	if u == nil || u.Status != store.StatusApproved {
		return c.Send(msgNotApproved)
	}
	return a.showPlans(c, u)
}

// showPlans resolves the user's tier and renders one button per plan.
func (a *App) showPlans(c tele.Context, u *store.UserRecord) error {
	tier, err := subscription.ResolveTier(u.Role, u.CommunitySize)
	if err != nil {
		if errors.Is(err, subscription.ErrIneligible) {
			return c.Send(msgIneligible)
		}
		return c.Send("No payment options available for your role.")
	}
	opts, err := subscription.Options(tier)
	if err != nil {
		return c.Send("No payment options available for your role.")
	}

	rows := make([][]keyboard.InlineBtn, 0, len(opts))
	for _, opt := range opts {
		rows = append(rows, []keyboard.InlineBtn{{
			Text:   opt.Label,
			Unique: cbSubscribe,
			Data:   callbacks.EncodeFields(string(tier), string(opt.Plan)),
		}})
	}
	text := "You are very close to getting listed on our premium platform!\n\nSelect a Subscription plan ♻️"
	return c.Send(text, keyboard.InlineButtonsRows(rows...))
}

// cbSubscribePlan initializes a payment for the chosen tier/plan pair.
func (a *App) cbSubscribePlan(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	tierRaw, err := callbacks.Field(c, 0)
	if err != nil {
		return nil
	}
	planRaw, err := callbacks.Field(c, 1)
	if err != nil {
		return nil
	}

	ctx := tghelpers.BuildContext(c)
	checkout, err := a.subs.CreateTransaction(ctx, sender.ID, subscription.Tier(tierRaw), subscription.Plan(planRaw))
	if err != nil {
		switch {
		case errors.Is(err, subscription.ErrNotApproved):
			return c.Send(msgNotApproved)
		case errors.Is(err, subscription.ErrNoEmail), errors.Is(err, subscription.ErrInvalidEmail):
			return c.Send(msgBadEmail)
		case errors.Is(err, subscription.ErrUnknownPlan):
			return c.Send("Invalid plan selected. Please try again.")
		default:
			logger.Error(ctx, "payments", "checkout_failed",
				slog.Int64("user_id", sender.ID),
				slog.String("err", err.Error()),
			)
			return c.Send("An error occurred while preparing your payment. Please try again later.")
		}
	}

	markup := &tele.ReplyMarkup{}
	payBtn := markup.URL("Pay Now", checkout.AuthorizationURL)
	verifyBtn := markup.Data("I've made the payment", cbVerify, checkout.Reference)
	markup.Inline(markup.Row(payBtn), markup.Row(verifyBtn))
	return c.Send(msgPayPrompt, markup)
}

// cbVerifyPayment confirms a charge and grants the plan. The reference is
// consumed exactly once.
func (a *App) cbVerifyPayment(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	reference := callbacks.CallbackPayload(c)
	ctx := tghelpers.BuildContext(c)

	receipt, err := a.subs.VerifyPayment(ctx, sender.ID, reference)
	if err != nil {
		switch {
		case errors.Is(err, subscription.ErrAlreadyProcessed):
			return c.Send(msgPayConsumed)
		case errors.Is(err, subscription.ErrNotSettled):
			return c.Send(msgPayFailed)
		case errors.Is(err, subscription.ErrUnknownReference):
			return c.Send(msgPayError)
		default:
			logger.Error(ctx, "payments", "verify_failed",
				slog.Int64("user_id", sender.ID),
				slog.String("reference", reference),
				slog.String("err", err.Error()),
			)
			return c.Send(msgPayError)
		}
	}

	if err := a.sched.Schedule(ctx, sender.ID); err != nil {
		logger.Warn(ctx, "scheduler", "schedule_failed",
			slog.Int64("user_id", sender.ID),
			slog.String("err", err.Error()),
		)
	}
	a.notifyReviewersOfPayment(ctx, receipt)
	return c.Send(msgPaySuccess)
}

// formatReceiptHTML renders the reviewer copy of a settled payment.
func formatReceiptHTML(r *subscription.Receipt) string {
	return fmt.Sprintf("<pre>\nUser: %s\nEmail: %s\nReference: %s\nPlan: %s\nAmount Paid: %d NGN\n</pre>",
		html.EscapeString(r.FullName), html.EscapeString(r.Email), html.EscapeString(r.Reference), r.Plan, r.AmountMinor/100)
}

// notifyReviewersOfPayment fans the receipt out to every reviewer.
func (a *App) notifyReviewersOfPayment(ctx context.Context, r *subscription.Receipt) {
	receipt := formatReceiptHTML(r)
	for _, reviewerID := range a.cfg.Review.ReviewerIDs {
		if err := a.messenger.SendReceipt(ctx, reviewerID, receipt); err != nil {
			logger.Warn(ctx, "payments", "receipt_send_failed",
				slog.Int64("user_id", r.UserID),
				slog.String("err", err.Error()),
			)
		}
	}
}

// handleRenew re-opens the plan menu for an approved user.
func (a *App) handleRenew(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	u, err := a.users.Get(ctx, sender.ID)
	if err != nil {
		return err
	}
	if u == nil || u.Status != store.StatusApproved {
		return c.Send(msgNotApproved)
	}
	return a.showPlans(c, u)
}

// handleSupport points the user at the human support channel.
func (a *App) handleSupport(c tele.Context) error {
	return c.Send("Contact Our Customer Support Line", keyboard.URLButton("Support", a.cfg.Links.Support))
}

// handleCAC points designers without a CAC certificate at an agent.
func (a *App) handleCAC(c tele.Context) error {
	return c.Send("Need a CAC certificate? Reach out to an agent below.",
		keyboard.URLButton("Contact a CAC Agent", a.cfg.Links.CACAgent))
}

// handleUnknownText relays stray messages from submitted applicants to the
// reviewers; everyone else gets pointed at /start.
func (a *App) handleUnknownText(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	key := session.Key{UserID: sender.ID, ChatID: sender.ID}
	s, err := a.sessions.Get(ctx, key)
	if err != nil || s == nil || s.Phase != session.PhaseSubmitted {
		return c.Send("Use /start to begin the listing process.")
	}

	// The relay pins a reviewer on the session, so the mutation runs
	// under the per-key serialization the store provides.
	relayed := false
	if err := a.sessions.Do(ctx, key, func(s *session.Session) error {
		if s.Phase != session.PhaseSubmitted {
			return nil
		}
		a.relayToReviewers(ctx, s, sender, c.Text())
		relayed = true
		return nil
	}); err != nil {
		logger.Warn(ctx, "session", "relay_failed",
			slog.Int64("user_id", sender.ID),
			slog.String("err", err.Error()),
		)
	}
	if !relayed {
		return c.Send("Use /start to begin the listing process.")
	}
	return c.Send("Your message has been passed to our team. They will get back to you shortly.")
}

func (a *App) handleUnknownMedia(c tele.Context) error {
	return c.Send("Use /start to begin the listing process.")
}

// relayToReviewers forwards a post-submission message and pins the first
// reviewer as the user's contact. The caller persists the session; this
// runs inside the store's Do for the applicant's key.
func (a *App) relayToReviewers(ctx context.Context, s *session.Session, sender *tele.User, text string) {
	if s.ChattingWith == 0 && len(a.cfg.Review.ReviewerIDs) > 0 {
		s.ChattingWith = a.cfg.Review.ReviewerIDs[0]
	}
	note := fmt.Sprintf("Message from applicant %s (ID: %d):\n\n%s", sender.FirstName, sender.ID, text)
	targets := a.cfg.Review.ReviewerIDs
	if s.ChattingWith != 0 {
		targets = []int64{s.ChattingWith}
	}
	for _, reviewerID := range targets {
		if err := a.messenger.SendText(ctx, reviewerID, note); err != nil {
			logger.Warn(ctx, "review", "relay_failed",
				slog.Int64("user_id", sender.ID),
				slog.String("err", err.Error()),
			)
		}
	}
}
