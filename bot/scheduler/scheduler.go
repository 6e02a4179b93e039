// Package scheduler drives time-based messaging: renewal reminders at
// fixed offsets before a subscription expires, expiry teardown, and
// inactivity nudges for approved users who never subscribed.
//
// Nothing here keeps per-user timers. Pending reminder offsets are
// persisted on the user record, so sweeps pick up exactly where a
// previous process left off.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dailyinfluencing/listingbot/bot/store"
	"github.com/dailyinfluencing/listingbot/core/logger"
)

const (
	day  = 24 * time.Hour
	hour = time.Hour

	msgExpired = "Your subscription has ended and your account has been removed. Please renew to continue using our services."
)

// Offset is one reminder checkpoint before expiry.
type Offset struct {
	Label  string
	Before time.Duration
	Text   string
}

// reminderOffsets fire in this order as expiry approaches.
var reminderOffsets = []Offset{
	{"4d", 4 * day, "Your subscription will end in 4 days. Please renew soon!"},
	{"3d", 3 * day, "Your subscription will end in 3 days. Please renew soon!"},
	{"2d", 2 * day, "Your subscription will end in 2 days. Please renew soon!"},
	{"1d", 1 * day, "Your subscription will end in 1 day. Please renew soon!"},
	{"1h", hour, "Your subscription will end in 1 hour. Please renew soon!"},
}

// Inactivity nudge bands, hours since last activity.
var inactivityBands = []struct {
	after   time.Duration
	support bool
	text    string
}{
	{1 * hour, false, "%s complete your order before it gets expired. Just a few steps remaining, Let’s do it! \U0001F44F"},
	{12 * hour, false, "%s Just 2 Slot left! You’re very close to getting your service listed on our platform. Let’s finish this up\U0001F44A"},
	{24 * hour, true, "%s, contact our human support if you have any questions. We are open to help you⤵️"},
}

// Notifier delivers scheduler messages to users.
type Notifier interface {
	// SendText delivers a plain reminder.
	SendText(ctx context.Context, userID int64, text string) error
	// SendSupportPrompt delivers a nudge carrying the support contact
	// button.
	SendSupportPrompt(ctx context.Context, userID int64, text string) error
}

// Scheduler sweeps the user store on fixed intervals.
type Scheduler struct {
	users    store.UserStore
	notifier Notifier
	now      func() time.Time

	reminderInterval   time.Duration
	inactivityInterval time.Duration

	mu                 sync.Mutex
	reminderInFlight   bool
	inactivityInFlight bool
}

// Options configures New.
type Options struct {
	Users              store.UserStore
	Notifier           Notifier
	ReminderInterval   time.Duration // defaults to 1h
	InactivityInterval time.Duration // defaults to 1h
	Now                func() time.Time
}

// New wires a scheduler.
func New(opts Options) (*Scheduler, error) {
	if opts.Users == nil {
		return nil, fmt.Errorf("scheduler: user store is required")
	}
	if opts.Notifier == nil {
		return nil, fmt.Errorf("scheduler: notifier is required")
	}
	if opts.ReminderInterval <= 0 {
		opts.ReminderInterval = hour
	}
	if opts.InactivityInterval <= 0 {
		opts.InactivityInterval = hour
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Scheduler{
		users:              opts.Users,
		notifier:           opts.Notifier,
		now:                now,
		reminderInterval:   opts.ReminderInterval,
		inactivityInterval: opts.InactivityInterval,
	}, nil
}

// Schedule registers the full reminder ladder for a user who just got a
// subscription. Offsets already in the past are skipped so a short plan
// does not fire a 4-day reminder immediately.
func (s *Scheduler) Schedule(ctx context.Context, userID int64) error {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return err
	}
	if u == nil || u.Expiry == nil {
		return fmt.Errorf("scheduler: user %d has no expiry to schedule", userID)
	}

	now := s.now()
	pending := make(store.StringList, 0, len(reminderOffsets))
	for _, off := range reminderOffsets {
		if u.Expiry.Add(-off.Before).After(now) {
			pending = append(pending, off.Label)
		}
	}
	u.Reminders = pending
	if err := s.users.Set(ctx, u); err != nil {
		return err
	}

	logger.Info(ctx, "scheduler", "reminders_scheduled",
		slog.Int64("user_id", userID),
		slog.Int("count", len(pending)),
		slog.Time("expiry", *u.Expiry),
	)
	return nil
}

// Restore re-registers reminder ladders after a restart. Users whose
// subscriptions already lapsed are expired immediately; users with a
// future expiry but no persisted ladder get one. Users that already
// carry a ladder are left alone, so calling Restore twice is harmless.
func (s *Scheduler) Restore(ctx context.Context) error {
	users, err := s.users.All(ctx)
	if err != nil {
		return err
	}
	now := s.now()
	for _, u := range users {
		if u.Expiry == nil {
			continue
		}
		if !u.Expiry.After(now) {
			s.expire(ctx, u)
			continue
		}
		if u.Reminders != nil {
			continue
		}
		if err := s.Schedule(ctx, u.UserID); err != nil {
			logger.Warn(ctx, "scheduler", "restore_schedule_failed",
				slog.Int64("user_id", u.UserID),
				slog.String("err", err.Error()),
			)
		}
	}
	return nil
}

// Run blocks, sweeping reminders and inactivity on their intervals until
// the context is canceled.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.Restore(ctx); err != nil {
		logger.Warn(ctx, "scheduler", "restore_failed", slog.String("err", err.Error()))
	}

	reminderTick := time.NewTicker(s.reminderInterval)
	defer reminderTick.Stop()
	inactivityTick := time.NewTicker(s.inactivityInterval)
	defer inactivityTick.Stop()

	s.SweepReminders(ctx)
	s.SweepInactivity(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-reminderTick.C:
			s.SweepReminders(ctx)
		case <-inactivityTick.C:
			s.SweepInactivity(ctx)
		}
	}
}

// SweepReminders fires due reminder offsets and expires lapsed
// subscriptions. Overlapping sweeps are skipped.
func (s *Scheduler) SweepReminders(ctx context.Context) {
	s.mu.Lock()
	if s.reminderInFlight {
		s.mu.Unlock()
		return
	}
	s.reminderInFlight = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.reminderInFlight = false
		s.mu.Unlock()
	}()

	users, err := s.users.All(ctx)
	if err != nil {
		logger.Error(ctx, "scheduler", "reminder_sweep_failed", slog.String("err", err.Error()))
		return
	}

	now := s.now()
	for _, u := range users {
		if u.Expiry == nil {
			continue
		}
		if !u.Expiry.After(now) {
			s.expire(ctx, u)
			continue
		}
		s.fireDueReminders(ctx, u, now)
	}
}

// fireDueReminders sends each pending offset whose window covers now. An
// offset fires inside [fireAt, fireAt+interval); windows that slipped by
// entirely while the process was down are dropped without sending, since
// a later offset carries a fresher countdown anyway.
func (s *Scheduler) fireDueReminders(ctx context.Context, u *store.UserRecord, now time.Time) {
	var remaining store.StringList
	changed := false

	for _, label := range u.Reminders {
		off, ok := offsetByLabel(label)
		if !ok {
			changed = true
			continue
		}
		fireAt := u.Expiry.Add(-off.Before)
		switch {
		case fireAt.After(now):
			remaining = append(remaining, label)
		case now.Before(fireAt.Add(s.reminderInterval)):
			if err := s.notifier.SendText(ctx, u.UserID, off.Text); err != nil {
				logger.Warn(ctx, "scheduler", "reminder_send_failed",
					slog.Int64("user_id", u.UserID),
					slog.String("offset", label),
					slog.String("err", err.Error()),
				)
				remaining = append(remaining, label)
				continue
			}
			logger.Info(ctx, "scheduler", "reminder_sent",
				slog.Int64("user_id", u.UserID),
				slog.String("offset", label),
			)
			changed = true
		default:
			// Window missed entirely.
			changed = true
		}
	}

	if !changed {
		return
	}
	if remaining == nil {
		remaining = store.StringList{}
	}
	u.Reminders = remaining
	if err := s.users.Set(ctx, u); err != nil {
		logger.Error(ctx, "scheduler", "reminder_persist_failed",
			slog.Int64("user_id", u.UserID),
			slog.String("err", err.Error()),
		)
	}
}

// expire notifies the user and removes their record.
func (s *Scheduler) expire(ctx context.Context, u *store.UserRecord) {
	if err := s.notifier.SendText(ctx, u.UserID, msgExpired); err != nil {
		logger.Warn(ctx, "scheduler", "expiry_notice_failed",
			slog.Int64("user_id", u.UserID),
			slog.String("err", err.Error()),
		)
	}
	if err := s.users.Delete(ctx, u.UserID); err != nil {
		logger.Error(ctx, "scheduler", "expiry_delete_failed",
			slog.Int64("user_id", u.UserID),
			slog.String("err", err.Error()),
		)
		return
	}
	logger.Info(ctx, "scheduler", "subscription_expired",
		slog.Int64("user_id", u.UserID),
		slog.String("plan", u.Plan),
	)
}

// SweepInactivity nudges approved users who have not subscribed. Each
// band fires once, when the user first crosses into it. Overlapping
// sweeps are skipped.
func (s *Scheduler) SweepInactivity(ctx context.Context) {
	s.mu.Lock()
	if s.inactivityInFlight {
		s.mu.Unlock()
		return
	}
	s.inactivityInFlight = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.inactivityInFlight = false
		s.mu.Unlock()
	}()

	users, err := s.users.All(ctx)
	if err != nil {
		logger.Error(ctx, "scheduler", "inactivity_sweep_failed", slog.String("err", err.Error()))
		return
	}

	now := s.now()
	for _, u := range users {
		if u.Status != store.StatusApproved || u.HasPlan() {
			continue
		}
		idle := now.Sub(u.LastActive)
		for _, band := range inactivityBands {
			if idle < band.after || idle >= band.after+s.inactivityInterval {
				continue
			}
			text := fmt.Sprintf(band.text, u.FullName)
			var sendErr error
			if band.support {
				sendErr = s.notifier.SendSupportPrompt(ctx, u.UserID, text)
			} else {
				sendErr = s.notifier.SendText(ctx, u.UserID, text)
			}
			if sendErr != nil {
				logger.Warn(ctx, "scheduler", "nudge_send_failed",
					slog.Int64("user_id", u.UserID),
					slog.String("err", sendErr.Error()),
				)
				continue
			}
			logger.Info(ctx, "scheduler", "inactivity_nudge_sent",
				slog.Int64("user_id", u.UserID),
				slog.Duration("offset", band.after),
			)
		}
	}
}

func offsetByLabel(label string) (Offset, bool) {
	for _, off := range reminderOffsets {
		if off.Label == label {
			return off, true
		}
	}
	return Offset{}, false
}
