package app

import (
	"fmt"
	"html"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/dailyinfluencing/listingbot/bot/catalog"
	"github.com/dailyinfluencing/listingbot/bot/store"
	"github.com/dailyinfluencing/listingbot/bot/subscription"
	"github.com/dailyinfluencing/listingbot/core/logger"
	"github.com/dailyinfluencing/listingbot/core/telegram/commands"
	tghelpers "github.com/dailyinfluencing/listingbot/core/telegram/helpers"
)

const adminHelpHTML = `<b>Admin commands</b>

/list - paid users roster
/broadcast &lt;message&gt; - message every paid user
/s_broadcast &lt;message&gt; - message every approved user
/retrieve &lt;user_id&gt; - show a stored record
/check_plan &lt;user_id&gt; - show plan and expiry
/delete_plan &lt;user_id&gt; - remove plan and expiry
/change_email &lt;user_id&gt; &lt;email&gt; - fix an applicant email
/clear &lt;user_id&gt; - delete a user completely
/reply &lt;user_id&gt; &lt;message&gt; - answer a relayed message`

func (a *App) registerAdminCommands() {
	admin := func(name, description string, h tele.HandlerFunc) {
		a.registry.RegisterCommand(name, commands.Command{
			Handler:     h,
			Description: description,
			AdminOnly:   true,
			Hidden:      true,
		})
	}
	admin("/list", "List users with a paid subscription", a.adminList)
	admin("/broadcast", "Broadcast a message to paid users", a.adminBroadcast)
	admin("/s_broadcast", "Broadcast a message to approved users", a.adminSlowBroadcast)
	admin("/retrieve", "Show a stored user record", a.adminRetrieve)
	admin("/check_plan", "Show a user's plan and expiry", a.adminCheckPlan)
	admin("/delete_plan", "Remove a user's plan and expiry", a.adminDeletePlan)
	admin("/change_email", "Replace a user's email address", a.adminChangeEmail)
	admin("/clear", "Delete a user record and journal entries", a.adminClear)
	admin("/reply", "Reply to a relayed applicant message", a.adminReply)
	admin("/help", "Show the admin command reference", a.adminHelp)
}

// payloadID parses the first payload word as a user ID.
func payloadID(c tele.Context) (int64, string, error) {
	return parseUserPayload(c.Message().Payload)
}

func parseUserPayload(payload string) (int64, string, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return 0, "", fmt.Errorf("missing user id")
	}
	idRaw, rest, _ := strings.Cut(payload, " ")
	id, err := strconv.ParseInt(idRaw, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("invalid user id %q", idRaw)
	}
	return id, strings.TrimSpace(rest), nil
}

// adminList prints the paid roster from the payment journal.
func (a *App) adminList(c tele.Context) error {
	roster, err := a.journal.PaidUsers()
	if err != nil {
		return c.Send(fmt.Sprintf("Could not read the paid roster: %v", err))
	}
	if len(roster) == 0 {
		return c.Send("No paid users yet.")
	}

	ids := make([]int64, 0, len(roster))
	for id := range roster {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var b strings.Builder
	fmt.Fprintf(&b, "Paid users (%d):\n", len(ids))
	for _, id := range ids {
		name := roster[id]
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(&b, "%d @%s\n", id, strings.TrimPrefix(name, "@"))
	}
	return c.Send(b.String())
}

// adminBroadcast messages every paid user, pacing sends so the Telegram
// flood limits are never hit.
func (a *App) adminBroadcast(c tele.Context) error {
	msg := strings.TrimSpace(c.Message().Payload)
	if msg == "" {
		return c.Send("Usage: /broadcast <message>")
	}
	roster, err := a.journal.PaidUsers()
	if err != nil {
		return c.Send(fmt.Sprintf("Could not read the paid roster: %v", err))
	}
	if len(roster) == 0 {
		return c.Send("No paid users to broadcast to.")
	}

	ids := make([]int64, 0, len(roster))
	for id := range roster {
		ids = append(ids, id)
	}
	go a.broadcast(ids, msg)
	return c.Send(fmt.Sprintf("Broadcasting to %d paid users.", len(ids)))
}

// adminSlowBroadcast messages every approved user.
func (a *App) adminSlowBroadcast(c tele.Context) error {
	msg := strings.TrimSpace(c.Message().Payload)
	if msg == "" {
		return c.Send("Usage: /s_broadcast <message>")
	}
	ctx := tghelpers.BuildContext(c)
	all, err := a.users.All(ctx)
	if err != nil {
		return c.Send(fmt.Sprintf("Could not list users: %v", err))
	}
	var ids []int64
	for _, u := range all {
		if u.Status == store.StatusApproved {
			ids = append(ids, u.UserID)
		}
	}
	if len(ids) == 0 {
		return c.Send("No approved users to broadcast to.")
	}
	go a.broadcast(ids, msg)
	return c.Send(fmt.Sprintf("Broadcasting to %d approved users.", len(ids)))
}

// broadcast paces one send per delay interval. Each send rides the
// outbound dispatcher, which retries transient failures on its own.
func (a *App) broadcast(ids []int64, msg string) {
	ctx := logger.Background()
	delay := a.cfg.Scheduler.BroadcastDelay
	queued := 0
	for i, id := range ids {
		if i > 0 && delay > 0 {
			time.Sleep(delay)
		}
		if err := a.messenger.SendText(ctx, id, msg); err != nil {
			logger.Warn(ctx, "broadcast", "send_failed",
				slog.Int64("user_id", id),
				slog.String("err", err.Error()),
			)
			continue
		}
		queued++
	}
	logger.Info(ctx, "broadcast", "finished",
		slog.Int("targets", len(ids)),
		slog.Int("queued", queued),
	)
}

// adminRetrieve dumps a stored record for inspection.
func (a *App) adminRetrieve(c tele.Context) error {
	id, _, err := payloadID(c)
	if err != nil {
		return c.Send("Usage: /retrieve <user_id>")
	}
	ctx := tghelpers.BuildContext(c)
	u, err := a.users.Get(ctx, id)
	if err != nil {
		return c.Send(fmt.Sprintf("Lookup failed: %v", err))
	}
	if u == nil {
		return c.Send("No record for that user.")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<b>User %d</b>\n", u.UserID)
	fmt.Fprintf(&b, "Username: @%s\n", html.EscapeString(strings.TrimPrefix(u.Username, "@")))
	fmt.Fprintf(&b, "Name: %s\n", html.EscapeString(u.FullName))
	fmt.Fprintf(&b, "Email: %s\n", html.EscapeString(u.Email))
	fmt.Fprintf(&b, "Role: %s\n", html.EscapeString(u.Role))
	fmt.Fprintf(&b, "Status: %s\n", u.Status)
	if u.Plan != "" {
		fmt.Fprintf(&b, "Plan: %s\n", html.EscapeString(u.Plan))
	}
	if u.Expiry != nil {
		fmt.Fprintf(&b, "Expires: %s\n", u.Expiry.Format("2006-01-02 15:04"))
	}
	if u.CommunitySize > 0 {
		fmt.Fprintf(&b, "Community size: %d\n", u.CommunitySize)
	}
	if len(u.Answers) > 0 {
		b.WriteString("\n<b>Answers</b>\n")
		keys := make([]string, 0, len(u.Answers))
		for k := range u.Answers {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "%s: %s\n", html.EscapeString(k), html.EscapeString(u.Answers[k]))
		}
	}
	return c.Send(b.String(), &tele.SendOptions{ParseMode: tele.ModeHTML})
}

// adminCheckPlan shows the subscription state for a user.
func (a *App) adminCheckPlan(c tele.Context) error {
	id, _, err := payloadID(c)
	if err != nil {
		return c.Send("Usage: /check_plan <user_id>")
	}
	ctx := tghelpers.BuildContext(c)
	u, err := a.users.Get(ctx, id)
	if err != nil {
		return c.Send(fmt.Sprintf("Lookup failed: %v", err))
	}
	if u == nil {
		return c.Send("No record for that user.")
	}
	if !u.HasPlan() {
		return c.Send("User has no active plan.")
	}
	return c.Send(fmt.Sprintf("Plan: %s\nExpires: %s", u.Plan, u.Expiry.Format("2006-01-02 15:04")))
}

// adminDeletePlan strips the plan, expiry, and pending reminders.
func (a *App) adminDeletePlan(c tele.Context) error {
	id, _, err := payloadID(c)
	if err != nil {
		return c.Send("Usage: /delete_plan <user_id>")
	}
	ctx := tghelpers.BuildContext(c)
	u, err := a.users.Get(ctx, id)
	if err != nil {
		return c.Send(fmt.Sprintf("Lookup failed: %v", err))
	}
	if u == nil {
		return c.Send("No record for that user.")
	}
	u.Plan = ""
	u.Expiry = nil
	u.Reminders = store.StringList{}
	if err := a.users.Set(ctx, u); err != nil {
		return c.Send(fmt.Sprintf("Update failed: %v", err))
	}
	return c.Send(fmt.Sprintf("Plan removed for user %d.", id))
}

// adminChangeEmail replaces a stored email after validating it.
func (a *App) adminChangeEmail(c tele.Context) error {
	id, rest, err := payloadID(c)
	if err != nil || rest == "" {
		return c.Send("Usage: /change_email <user_id> <email>")
	}
	email := strings.Fields(rest)[0]
	if !subscription.ValidEmail(email) {
		return c.Send(fmt.Sprintf("%q is not a valid email address.", email))
	}
	ctx := tghelpers.BuildContext(c)
	u, err := a.users.Get(ctx, id)
	if err != nil {
		return c.Send(fmt.Sprintf("Lookup failed: %v", err))
	}
	if u == nil {
		return c.Send("No record for that user.")
	}
	u.Email = email
	if err := a.users.Set(ctx, u); err != nil {
		return c.Send(fmt.Sprintf("Update failed: %v", err))
	}
	return c.Send(fmt.Sprintf("Email for user %d set to %s.", id, email))
}

// adminClear deletes the record and every journal entry for a user.
func (a *App) adminClear(c tele.Context) error {
	id, _, err := payloadID(c)
	if err != nil {
		return c.Send("Usage: /clear <user_id>")
	}
	ctx := tghelpers.BuildContext(c)
	if err := a.users.Delete(ctx, id); err != nil {
		return c.Send(fmt.Sprintf("Delete failed: %v", err))
	}
	removed, err := a.journal.RemoveUser(catalog.Roles(), id)
	if err != nil {
		return c.Send(fmt.Sprintf("Record deleted, journal cleanup failed: %v", err))
	}
	if removed {
		return c.Send(fmt.Sprintf("User %d removed from the database and journals.", id))
	}
	return c.Send(fmt.Sprintf("User %d removed from the database.", id))
}

// adminReply sends a message to an applicant on behalf of the team.
func (a *App) adminReply(c tele.Context) error {
	id, rest, err := payloadID(c)
	if err != nil || rest == "" {
		return c.Send("Usage: /reply <user_id> <message>")
	}
	ctx := tghelpers.BuildContext(c)
	if err := a.messenger.SendText(ctx, id, rest); err != nil {
		return c.Send(fmt.Sprintf("Could not deliver the reply: %v", err))
	}
	return c.Send("Reply delivered.")
}

func (a *App) adminHelp(c tele.Context) error {
	return c.Send(adminHelpHTML, &tele.SendOptions{ParseMode: tele.ModeHTML})
}
