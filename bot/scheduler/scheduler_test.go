package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dailyinfluencing/listingbot/bot/store"
)

type sentNote struct {
	userID  int64
	text    string
	support bool
}

type fakeNotifier struct {
	mu    sync.Mutex
	notes []sentNote
}

func (n *fakeNotifier) SendText(_ context.Context, userID int64, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = append(n.notes, sentNote{userID: userID, text: text})
	return nil
}

func (n *fakeNotifier) SendSupportPrompt(_ context.Context, userID int64, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = append(n.notes, sentNote{userID: userID, text: text, support: true})
	return nil
}

func (n *fakeNotifier) sent() []sentNote {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentNote(nil), n.notes...)
}

// clock is an adjustable time source for sweeps.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func newTestScheduler(t *testing.T, start time.Time) (*Scheduler, *store.MemoryStore, *fakeNotifier, *clock) {
	t.Helper()
	users := store.NewMemoryStore()
	notifier := &fakeNotifier{}
	clk := &clock{t: start}
	s, err := New(Options{
		Users:              users,
		Notifier:           notifier,
		ReminderInterval:   time.Hour,
		InactivityInterval: time.Hour,
		Now:                clk.now,
	})
	require.NoError(t, err)
	return s, users, notifier, clk
}

func subscribedUser(id int64, expiry time.Time) *store.UserRecord {
	return &store.UserRecord{
		UserID:   id,
		FullName: "Jane Doe",
		Status:   store.StatusApproved,
		Plan:     "1month",
		Expiry:   &expiry,
	}
}

func TestScheduleSkipsPastOffsets(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s, users, _, _ := newTestScheduler(t, start)
	ctx := context.Background()

	// Expiry 2 days out: the 4d and 3d checkpoints are already behind us.
	expiry := start.Add(48 * time.Hour)
	require.NoError(t, users.Set(ctx, subscribedUser(7, expiry)))
	require.NoError(t, s.Schedule(ctx, 7))

	u, err := users.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, store.StringList{"1d", "1h"}, u.Reminders)
}

func TestReminderFiresOncePerOffset(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s, users, notifier, clk := newTestScheduler(t, start)
	ctx := context.Background()

	expiry := start.Add(30 * 24 * time.Hour)
	require.NoError(t, users.Set(ctx, subscribedUser(7, expiry)))
	require.NoError(t, s.Schedule(ctx, 7))

	// Nothing is due yet.
	s.SweepReminders(ctx)
	assert.Empty(t, notifier.sent())

	// Land inside the 4-day window.
	clk.set(expiry.Add(-4 * 24 * time.Hour).Add(10 * time.Minute))
	s.SweepReminders(ctx)
	notes := notifier.sent()
	require.Len(t, notes, 1)
	assert.Contains(t, notes[0].text, "4 days")

	// A second sweep in the same window must not refire.
	clk.set(expiry.Add(-4 * 24 * time.Hour).Add(30 * time.Minute))
	s.SweepReminders(ctx)
	assert.Len(t, notifier.sent(), 1)

	u, err := users.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, store.StringList{"3d", "2d", "1d", "1h"}, u.Reminders)
}

func TestMissedWindowsDropWithoutSending(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s, users, notifier, clk := newTestScheduler(t, start)
	ctx := context.Background()

	expiry := start.Add(30 * 24 * time.Hour)
	require.NoError(t, users.Set(ctx, subscribedUser(7, expiry)))
	require.NoError(t, s.Schedule(ctx, 7))

	// Jump straight into the 1-day window; the 4d/3d/2d windows slipped
	// by while the process was down.
	clk.set(expiry.Add(-24 * time.Hour).Add(5 * time.Minute))
	s.SweepReminders(ctx)

	notes := notifier.sent()
	require.Len(t, notes, 1)
	assert.Contains(t, notes[0].text, "1 day")

	u, err := users.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, store.StringList{"1h"}, u.Reminders)
}

func TestExpiryRemovesUser(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s, users, notifier, clk := newTestScheduler(t, start)
	ctx := context.Background()

	expiry := start.Add(time.Hour)
	require.NoError(t, users.Set(ctx, subscribedUser(7, expiry)))
	require.NoError(t, s.Schedule(ctx, 7))

	clk.set(expiry.Add(time.Minute))
	s.SweepReminders(ctx)

	notes := notifier.sent()
	require.NotEmpty(t, notes)
	assert.Contains(t, notes[len(notes)-1].text, "has ended")

	u, err := users.Get(ctx, 7)
	require.NoError(t, err)
	assert.Nil(t, u)

	// A stale sweep after removal is a no-op.
	s.SweepReminders(ctx)
	assert.Len(t, notifier.sent(), len(notes))
}

func TestRestoreIsIdempotent(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s, users, notifier, _ := newTestScheduler(t, start)
	ctx := context.Background()

	// One future expiry without a ladder, one already lapsed.
	future := subscribedUser(7, start.Add(30*24*time.Hour))
	require.NoError(t, users.Set(ctx, future))
	lapsed := subscribedUser(8, start.Add(-time.Hour))
	require.NoError(t, users.Set(ctx, lapsed))

	require.NoError(t, s.Restore(ctx))

	u, err := users.Get(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, u.Reminders, 5)

	gone, err := users.Get(ctx, 8)
	require.NoError(t, err)
	assert.Nil(t, gone)

	// Second restore leaves the existing ladder alone.
	u.Reminders = store.StringList{"1h"}
	require.NoError(t, users.Set(ctx, u))
	require.NoError(t, s.Restore(ctx))
	u, err = users.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, store.StringList{"1h"}, u.Reminders)

	assert.Len(t, notifier.sent(), 1) // only the lapsed user's notice
}

func TestInactivityBandsFireOnEntry(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s, users, notifier, clk := newTestScheduler(t, start)
	ctx := context.Background()

	approved := &store.UserRecord{
		UserID:     7,
		FullName:   "Jane Doe",
		Status:     store.StatusApproved,
		LastActive: start,
	}
	require.NoError(t, users.Set(ctx, approved))

	// Below one hour: quiet.
	clk.set(start.Add(30 * time.Minute))
	s.SweepInactivity(ctx)
	assert.Empty(t, notifier.sent())

	// Crossing one hour fires the first nudge.
	clk.set(start.Add(90 * time.Minute))
	s.SweepInactivity(ctx)
	notes := notifier.sent()
	require.Len(t, notes, 1)
	assert.Contains(t, notes[0].text, "Jane Doe")
	assert.False(t, notes[0].support)

	// Deeper into the same band: no repeat.
	clk.set(start.Add(5 * time.Hour))
	s.SweepInactivity(ctx)
	assert.Len(t, notifier.sent(), 1)

	// Crossing 24 hours fires the support prompt.
	clk.set(start.Add(24*time.Hour + 30*time.Minute))
	s.SweepInactivity(ctx)
	notes = notifier.sent()
	require.Len(t, notes, 2)
	assert.True(t, notes[1].support)
}

func TestInactivitySkipsSubscribedAndPending(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s, users, notifier, clk := newTestScheduler(t, start)
	ctx := context.Background()

	expiry := start.Add(30 * 24 * time.Hour)
	withPlan := subscribedUser(7, expiry)
	withPlan.LastActive = start.Add(-2 * time.Hour)
	require.NoError(t, users.Set(ctx, withPlan))

	pending := &store.UserRecord{
		UserID:     8,
		Status:     store.StatusPending,
		LastActive: start.Add(-2 * time.Hour),
	}
	require.NoError(t, users.Set(ctx, pending))

	clk.set(start.Add(90 * time.Minute))
	s.SweepInactivity(ctx)
	assert.Empty(t, notifier.sent())
}
