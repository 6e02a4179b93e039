package review

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dailyinfluencing/listingbot/bot/catalog"
	"github.com/dailyinfluencing/listingbot/bot/journal"
	"github.com/dailyinfluencing/listingbot/bot/session"
	"github.com/dailyinfluencing/listingbot/bot/store"
)

type sentMedia struct {
	chatID int64
	att    Attachment
}

type sentTranscript struct {
	reviewerID  int64
	text        string
	applicantID int64
}

type fakeMessenger struct {
	media       []sentMedia
	transcripts []sentTranscript
	invites     map[int64]string
	texts       map[int64]string
	mediaErr    error
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{invites: map[int64]string{}, texts: map[int64]string{}}
}

func (m *fakeMessenger) SendMedia(_ context.Context, chatID int64, att Attachment) error {
	if m.mediaErr != nil {
		return m.mediaErr
	}
	m.media = append(m.media, sentMedia{chatID: chatID, att: att})
	return nil
}

func (m *fakeMessenger) SendTranscript(_ context.Context, reviewerID int64, text string, applicantID int64) error {
	m.transcripts = append(m.transcripts, sentTranscript{reviewerID, text, applicantID})
	return nil
}

func (m *fakeMessenger) SendPlansInvite(_ context.Context, userID int64, text string) error {
	m.invites[userID] = text
	return nil
}

func (m *fakeMessenger) SendText(_ context.Context, userID int64, text string) error {
	m.texts[userID] = text
	return nil
}

func newTestService(t *testing.T, m Messenger, now time.Time) (*Service, *store.MemoryStore) {
	t.Helper()
	users := store.NewMemoryStore()
	j, err := journal.New(t.TempDir())
	require.NoError(t, err)
	svc, err := NewService(Options{
		Users:     users,
		Journal:   j,
		Messenger: m,
		Reviewers: []int64{100, 200},
		Now:       func() time.Time { return now },
	})
	require.NoError(t, err)
	return svc, users
}

func influencerSession(userID int64) *session.Session {
	s := session.New(session.Key{UserID: userID, ChatID: userID})
	s.Phase = session.PhaseSubmitted
	s.Role = catalog.RoleInfluencer
	s.SetText(catalog.KeyFullName, catalog.KindText, "Jane Doe")
	s.SetText("community_name", catalog.KindText, "Design Hub")
	s.AppendMedia("cac_proof", catalog.KindPhoto, "photo-cac")
	s.AppendMedia("brand_logo", catalog.KindPhoto, "logo-1")
	s.AppendMedia("brand_logo", catalog.KindPhoto, "logo-2")
	s.SetText(catalog.KeyCommunitySize, catalog.KindText, "120,000 members")
	s.AppendMedia("video_proof", catalog.KindVideo, "vid-1")
	s.SetText(catalog.KeyEmail, catalog.KindText, "jane@example.com")
	return s
}

func TestSubmitForwardsToAllReviewers(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	m := newFakeMessenger()
	svc, users := newTestService(t, m, now)
	ctx := context.Background()

	applicant := Applicant{ID: 7, Username: "jdoe", FirstName: "Jane"}
	require.NoError(t, svc.Submit(ctx, applicant, influencerSession(7)))

	// Both reviewers get the transcript and every media item.
	require.Len(t, m.transcripts, 2)
	assert.Equal(t, int64(100), m.transcripts[0].reviewerID)
	assert.Equal(t, int64(200), m.transcripts[1].reviewerID)
	assert.Equal(t, int64(7), m.transcripts[0].applicantID)
	assert.Contains(t, m.transcripts[0].text, "Jane Doe")
	assert.Contains(t, m.transcripts[0].text, "*community\\_name*")

	// cac_proof + 2 brand logos + video, per reviewer.
	assert.Len(t, m.media, 8)
	assert.Equal(t, "Cac Proof", m.media[0].att.Caption)

	u, err := users.Get(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, store.StatusPending, u.Status)
	assert.Equal(t, "Jane Doe", u.FullName)
	assert.Equal(t, "jane@example.com", u.Email)
	assert.Equal(t, int64(120000), u.CommunitySize)
	assert.Equal(t, "logo-1,logo-2", u.Answers["brand_logo"])
}

func TestSubmitNotesAttachmentFailures(t *testing.T) {
	m := newFakeMessenger()
	m.mediaErr = errors.New("file expired")
	svc, _ := newTestService(t, m, time.Now())

	applicant := Applicant{ID: 7, Username: "jdoe", FirstName: "Jane"}
	require.NoError(t, svc.Submit(context.Background(), applicant, influencerSession(7)))

	require.Len(t, m.transcripts, 2)
	assert.Contains(t, m.transcripts[0].text, "failed to forward media")
	assert.Empty(t, m.media)
}

func TestApproveClearsRejection(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	m := newFakeMessenger()
	svc, users := newTestService(t, m, now)
	ctx := context.Background()

	rejectedAt := now.Add(-time.Hour)
	require.NoError(t, users.Set(ctx, &store.UserRecord{
		UserID:     7,
		FullName:   "Jane Doe",
		Status:     store.StatusRejected,
		RejectedAt: &rejectedAt,
	}))

	u, err := svc.Approve(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, store.StatusApproved, u.Status)
	assert.Nil(t, u.RejectedAt)
	assert.Contains(t, m.invites[7], "Jane Doe")

	_, err = svc.Approve(ctx, 404)
	require.ErrorIs(t, err, ErrUnknownUser)
}

func TestRejectStampsCooldown(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	m := newFakeMessenger()
	svc, users := newTestService(t, m, now)
	ctx := context.Background()

	require.NoError(t, users.Set(ctx, &store.UserRecord{UserID: 7, Status: store.StatusPending}))

	u, err := svc.Reject(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, store.StatusRejected, u.Status)
	require.NotNil(t, u.RejectedAt)
	assert.True(t, u.RejectedAt.Equal(now))
	assert.NotEmpty(t, m.texts[7])
}

func TestGateCooldown(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	m := newFakeMessenger()
	svc, users := newTestService(t, m, now)
	ctx := context.Background()

	// Rejected 23h ago: blocked.
	recent := now.Add(-23 * time.Hour)
	require.NoError(t, users.Set(ctx, &store.UserRecord{
		UserID: 7, Status: store.StatusRejected, RejectedAt: &recent,
	}))
	blocked, notice, err := svc.Gate(ctx, 7)
	require.NoError(t, err)
	assert.True(t, blocked)
	assert.NotEmpty(t, notice)

	// Rejected 25h ago: the contact goes through and the user flips back
	// to pending.
	old := now.Add(-25 * time.Hour)
	require.NoError(t, users.Set(ctx, &store.UserRecord{
		UserID: 8, Status: store.StatusRejected, RejectedAt: &old,
	}))
	blocked, _, err = svc.Gate(ctx, 8)
	require.NoError(t, err)
	assert.False(t, blocked)

	u, err := users.Get(ctx, 8)
	require.NoError(t, err)
	assert.Equal(t, store.StatusPending, u.Status)
	assert.Nil(t, u.RejectedAt)

	// Unknown and non-rejected users pass.
	blocked, _, err = svc.Gate(ctx, 404)
	require.NoError(t, err)
	assert.False(t, blocked)
}
