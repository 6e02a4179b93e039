// Package review forwards completed questionnaires to the reviewer team
// and tracks the approve/reject lifecycle, including the rejection
// cooldown.
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/dailyinfluencing/listingbot/bot/catalog"
	"github.com/dailyinfluencing/listingbot/bot/journal"
	"github.com/dailyinfluencing/listingbot/bot/session"
	"github.com/dailyinfluencing/listingbot/bot/store"
	"github.com/dailyinfluencing/listingbot/core/logger"
	"github.com/dailyinfluencing/listingbot/core/telegram/format"
)

// RejectionCooldown is how long a rejected user must wait before the bot
// talks to them again.
const RejectionCooldown = 24 * time.Hour

const (
	msgRejectedCooldown = "You have been rejected. Please try again after 24 hours."
	msgRejectedNotice   = "Sorry, your request has been rejected. \U0001F61E"
)

// ErrUnknownUser means the user has no stored record.
var ErrUnknownUser = errors.New("review: unknown user")

// Attachment is one media answer forwarded alongside the transcript.
type Attachment struct {
	Kind    catalog.Kind
	FileID  string
	Caption string
}

// Applicant identifies the Telegram user whose answers are under review.
type Applicant struct {
	ID        int64
	Username  string
	FirstName string
}

// Messenger is the slice of the bot the review service sends through.
// Attachment failures are reported back so they can be noted in the
// transcript instead of aborting the submission.
type Messenger interface {
	// SendMedia forwards one media answer to a reviewer.
	SendMedia(ctx context.Context, chatID int64, att Attachment) error
	// SendTranscript delivers the MarkdownV2 transcript with the
	// approve/reject controls for the given applicant.
	SendTranscript(ctx context.Context, reviewerID int64, text string, applicantID int64) error
	// SendPlansInvite tells an approved user to pick a subscription plan.
	SendPlansInvite(ctx context.Context, userID int64, text string) error
	// SendText delivers a plain notice to a user.
	SendText(ctx context.Context, userID int64, text string) error
}

// Service persists submissions and routes them through review.
type Service struct {
	users     store.UserStore
	journal   *journal.Journal
	messenger Messenger
	reviewers []int64
	now       func() time.Time
}

// Options configures NewService.
type Options struct {
	Users     store.UserStore
	Journal   *journal.Journal
	Messenger Messenger
	Reviewers []int64
	Now       func() time.Time // defaults to time.Now
}

// NewService wires a review service.
func NewService(opts Options) (*Service, error) {
	if opts.Users == nil {
		return nil, fmt.Errorf("review: user store is required")
	}
	if opts.Journal == nil {
		return nil, fmt.Errorf("review: journal is required")
	}
	if opts.Messenger == nil {
		return nil, fmt.Errorf("review: messenger is required")
	}
	if len(opts.Reviewers) == 0 {
		return nil, fmt.Errorf("review: at least one reviewer is required")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		users:     opts.Users,
		journal:   opts.Journal,
		messenger: opts.Messenger,
		reviewers: append([]int64(nil), opts.Reviewers...),
		now:       now,
	}, nil
}

// Submit journals the finished questionnaire, stores the user as pending,
// and forwards the transcript with its media to every reviewer. The
// journal write happens first; if it fails nothing is forwarded.
func (s *Service) Submit(ctx context.Context, applicant Applicant, sess *session.Session) error {
	cat, ok := catalog.ForRole(sess.Role)
	if !ok {
		return fmt.Errorf("review: no catalog for role %q", sess.Role)
	}

	answers := make(map[string]string, len(sess.Answers))
	for key, a := range sess.Answers {
		if len(a.Media) > 0 {
			answers[key] = strings.Join(a.Media, ",")
		} else {
			answers[key] = a.Text
		}
	}
	if err := s.journal.AppendAnswers(sess.Role, applicant.ID, answers); err != nil {
		return fmt.Errorf("review: journal submission: %w", err)
	}

	now := s.now()
	rec := &store.UserRecord{
		UserID:        applicant.ID,
		Username:      applicant.Username,
		FullName:      sess.Text(catalog.KeyFullName),
		Email:         sess.Text(catalog.KeyEmail),
		Role:          sess.Role,
		Status:        store.StatusPending,
		LastActive:    now,
		CommunitySize: parseCommunitySize(sess.Text(catalog.KeyCommunitySize)),
		Answers:       answers,
	}
	if err := s.users.Set(ctx, rec); err != nil {
		return fmt.Errorf("review: store user: %w", err)
	}

	attachments := collectAttachments(cat, sess)
	for _, reviewerID := range s.reviewers {
		var failures []string
		for _, att := range attachments {
			if err := s.messenger.SendMedia(ctx, reviewerID, att); err != nil {
				logger.Warn(ctx, "review", "attachment_send_failed",
					slog.Int64("user_id", applicant.ID),
					slog.String("err", err.Error()),
				)
				failures = append(failures, att.Caption)
			}
		}
		text := transcript(applicant, cat, sess, failures)
		if err := s.messenger.SendTranscript(ctx, reviewerID, text, applicant.ID); err != nil {
			logger.Error(ctx, "review", "transcript_send_failed",
				slog.Int64("user_id", applicant.ID),
				slog.String("err", err.Error()),
			)
		}
	}

	logger.Info(ctx, "review", "submission_forwarded",
		slog.Int64("user_id", applicant.ID),
		slog.String("role", sess.Role),
		slog.Int("count", len(attachments)),
	)
	return nil
}

// Approve marks the user approved, clears any rejection timestamp, and
// invites them to pick a plan.
func (s *Service) Approve(ctx context.Context, userID int64) (*store.UserRecord, error) {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUnknownUser
	}

	u.Status = store.StatusApproved
	u.RejectedAt = nil
	if err := s.users.Set(ctx, u); err != nil {
		return nil, err
	}

	invite := fmt.Sprintf("Congratulations! %s Your request has been approved. \U0001F389\n\nProceed to view our subscription plan so you can get listed on our platform ⬇️", u.FullName)
	if err := s.messenger.SendPlansInvite(ctx, userID, invite); err != nil {
		logger.Warn(ctx, "review", "approval_notice_failed",
			slog.Int64("user_id", userID),
			slog.String("err", err.Error()),
		)
	}

	logger.Info(ctx, "review", "user_approved", slog.Int64("user_id", userID))
	return u, nil
}

// Reject marks the user rejected and stamps the cooldown clock.
func (s *Service) Reject(ctx context.Context, userID int64) (*store.UserRecord, error) {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUnknownUser
	}

	rejectedAt := s.now()
	u.Status = store.StatusRejected
	u.RejectedAt = &rejectedAt
	if err := s.users.Set(ctx, u); err != nil {
		return nil, err
	}

	if err := s.messenger.SendText(ctx, userID, msgRejectedNotice); err != nil {
		logger.Warn(ctx, "review", "rejection_notice_failed",
			slog.Int64("user_id", userID),
			slog.String("err", err.Error()),
		)
	}

	logger.Info(ctx, "review", "user_rejected", slog.Int64("user_id", userID))
	return u, nil
}

// Gate enforces the rejection cooldown on an incoming contact. A user
// rejected less than RejectionCooldown ago is blocked; once the window
// has passed, the first contact flips them back to pending and lets the
// update through.
func (s *Service) Gate(ctx context.Context, userID int64) (blocked bool, notice string, err error) {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return false, "", err
	}
	if u == nil || u.Status != store.StatusRejected || u.RejectedAt == nil {
		return false, "", nil
	}

	if s.now().Sub(*u.RejectedAt) < RejectionCooldown {
		return true, msgRejectedCooldown, nil
	}

	u.Status = store.StatusPending
	u.RejectedAt = nil
	if err := s.users.Set(ctx, u); err != nil {
		return false, "", err
	}
	logger.Info(ctx, "review", "rejection_cooldown_cleared", slog.Int64("user_id", userID))
	return false, "", nil
}

// collectAttachments walks the catalog in question order and gathers all
// media answers from the session.
func collectAttachments(cat *catalog.Catalog, sess *session.Session) []Attachment {
	var out []Attachment
	for i := 0; i < cat.Len(); i++ {
		q, ok := cat.At(i)
		if !ok {
			break
		}
		if q.Kind != catalog.KindPhoto && q.Kind != catalog.KindVideo {
			continue
		}
		a, ok := sess.Answers[q.Key]
		if !ok {
			continue
		}
		caption := captionFor(q.Key)
		for _, fileID := range a.Media {
			out = append(out, Attachment{Kind: q.Kind, FileID: fileID, Caption: caption})
		}
	}
	return out
}

// transcript renders the answers as a MarkdownV2 message, one bolded key
// per line, with a failure note for any attachment that did not deliver.
func transcript(applicant Applicant, cat *catalog.Catalog, sess *session.Session, failedCaptions []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "User %s \\(ID: %d\\) answered the following:\n\n",
		format.EscapeV2(applicant.FirstName), applicant.ID)

	for i := 0; i < cat.Len(); i++ {
		q, ok := cat.At(i)
		if !ok {
			break
		}
		a, ok := sess.Answers[q.Key]
		if !ok {
			continue
		}
		value := a.Text
		if len(a.Media) > 0 {
			value = strings.Join(a.Media, ", ")
		}
		fmt.Fprintf(&b, "*%s*: %s\n", format.EscapeV2(q.Key), format.EscapeV2(value))
	}

	for _, caption := range failedCaptions {
		fmt.Fprintf(&b, "*%s*: failed to forward media\n", format.EscapeV2(caption))
	}
	return b.String()
}

// captionFor turns an answer key into a human caption, e.g. "cac_proof"
// becomes "Cac Proof".
func captionFor(key string) string {
	words := strings.Split(key, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func parseCommunitySize(raw string) int64 {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)
	if digits == "" {
		return 0
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
