package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dailyinfluencing/listingbot/bot/journal"
	"github.com/dailyinfluencing/listingbot/bot/paystack"
	"github.com/dailyinfluencing/listingbot/bot/store"
	"github.com/dailyinfluencing/listingbot/core/logger"
)

var (
	// ErrNotApproved means the user has not passed review yet.
	ErrNotApproved = errors.New("subscription: user not approved")

	// ErrNoEmail means no email address is on file for the user.
	ErrNoEmail = errors.New("subscription: no email address on file")

	// ErrAlreadyProcessed means the reference was verified before and the
	// plan has already been granted.
	ErrAlreadyProcessed = errors.New("subscription: payment already processed")

	// ErrNotSettled means Paystack has not confirmed the charge.
	ErrNotSettled = errors.New("subscription: payment not settled")

	// ErrUnknownReference means no transaction, pending or recorded,
	// matches the reference.
	ErrUnknownReference = errors.New("subscription: unknown payment reference")
)

// Gateway is the slice of the Paystack client the service needs.
type Gateway interface {
	InitializeTransaction(ctx context.Context, req paystack.InitRequest) (*paystack.InitResponse, error)
	VerifyTransaction(ctx context.Context, reference string) (*paystack.VerifyResponse, error)
}

// PendingTransaction tracks an initialized charge awaiting verification.
type PendingTransaction struct {
	Reference   string
	UserID      int64
	Tier        Tier
	Plan        Plan
	AmountMinor int64
	CreatedAt   time.Time
}

// Receipt summarizes a granted subscription for notifications.
type Receipt struct {
	UserID      int64
	FullName    string
	Email       string
	Reference   string
	Plan        Plan
	AmountMinor int64
	Expiry      time.Time
}

// Checkout is the handoff returned to the user after initialization.
type Checkout struct {
	AuthorizationURL string
	Reference        string
	AmountMinor      int64
}

// Service runs the payment lifecycle: initialize a charge, then verify it
// exactly once and grant the plan.
type Service struct {
	users   store.UserStore
	journal *journal.Journal
	gateway Gateway
	now     func() time.Time

	mu       sync.Mutex
	pending  map[string]PendingTransaction
	inflight map[string]bool
}

// ServiceOptions configures NewService.
type ServiceOptions struct {
	Users   store.UserStore
	Journal *journal.Journal
	Gateway Gateway
	Now     func() time.Time // defaults to time.Now
}

// NewService wires a payment service.
func NewService(opts ServiceOptions) (*Service, error) {
	if opts.Users == nil {
		return nil, fmt.Errorf("subscription: user store is required")
	}
	if opts.Journal == nil {
		return nil, fmt.Errorf("subscription: journal is required")
	}
	if opts.Gateway == nil {
		return nil, fmt.Errorf("subscription: payment gateway is required")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		users:    opts.Users,
		journal:  opts.Journal,
		gateway:  opts.Gateway,
		now:      now,
		pending:  make(map[string]PendingTransaction),
		inflight: make(map[string]bool),
	}, nil
}

// TierFor resolves the pricing tier for a stored user.
func (s *Service) TierFor(u *store.UserRecord) (Tier, error) {
	return ResolveTier(u.Role, u.CommunitySize)
}

// CreateTransaction initializes a Paystack charge for the user's chosen
// plan and records it as pending. The user must be approved and have a
// valid email on file.
func (s *Service) CreateTransaction(ctx context.Context, userID int64, tier Tier, plan Plan) (*Checkout, error) {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil || u.Status != store.StatusApproved {
		return nil, ErrNotApproved
	}
	if u.Email == "" {
		return nil, ErrNoEmail
	}
	if !ValidEmail(u.Email) {
		return nil, ErrInvalidEmail
	}
	if !plan.Valid() {
		return nil, ErrUnknownPlan
	}
	amount, err := PriceMinor(tier, plan)
	if err != nil {
		return nil, err
	}

	// A client-side reference lets the pending entry be keyed before the
	// gateway answers; Paystack echoes it back on verification.
	init, err := s.gateway.InitializeTransaction(ctx, paystack.InitRequest{
		Email:       u.Email,
		AmountMinor: amount,
		Metadata:    paystack.Metadata{UserID: userID, Role: string(tier), Plan: string(plan)},
		Reference:   uuid.NewString(),
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.pending[init.Reference] = PendingTransaction{
		Reference:   init.Reference,
		UserID:      userID,
		Tier:        tier,
		Plan:        plan,
		AmountMinor: amount,
		CreatedAt:   s.now(),
	}
	s.mu.Unlock()

	logger.Info(ctx, "payments", "checkout_created",
		slog.String("reference", init.Reference),
		slog.Int64("user_id", userID),
		slog.String("tier", string(tier)),
		slog.String("plan", string(plan)),
	)
	return &Checkout{
		AuthorizationURL: init.AuthorizationURL,
		Reference:        init.Reference,
		AmountMinor:      amount,
	}, nil
}

// VerifyPayment confirms a charge with Paystack and grants the plan. A
// reference is consumed exactly once: repeat calls return
// ErrAlreadyProcessed whether the first verification happened in this
// process or before a restart.
func (s *Service) VerifyPayment(ctx context.Context, userID int64, reference string) (*Receipt, error) {
	// The journal check and the in-flight claim happen under one lock so
	// two concurrent taps on the same reference cannot both pass the
	// consumed check before either grants.
	s.mu.Lock()
	if s.inflight[reference] || s.journal.HasPayment(reference) {
		s.mu.Unlock()
		return nil, ErrAlreadyProcessed
	}
	s.inflight[reference] = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.inflight, reference)
		s.mu.Unlock()
	}()

	verified, err := s.gateway.VerifyTransaction(ctx, reference)
	if err != nil {
		return nil, err
	}
	if !verified.Succeeded() {
		return nil, ErrNotSettled
	}

	s.mu.Lock()
	tx, ok := s.pending[reference]
	s.mu.Unlock()
	if !ok {
		// Pending state was lost (restart). Fall back to the metadata
		// Paystack echoed.
		if verified.Metadata.UserID == 0 || verified.Metadata.Plan == "" {
			return nil, ErrUnknownReference
		}
		tx = PendingTransaction{
			Reference:   reference,
			UserID:      verified.Metadata.UserID,
			Tier:        Tier(verified.Metadata.Role),
			Plan:        Plan(verified.Metadata.Plan),
			AmountMinor: verified.AmountMinor,
		}
	}
	if tx.UserID != userID {
		return nil, ErrUnknownReference
	}

	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUnknownReference
	}

	expiry := s.now().Add(tx.Plan.Duration())
	u.Status = store.StatusApproved
	u.Plan = string(tx.Plan)
	u.Expiry = &expiry
	if err := s.users.Set(ctx, u); err != nil {
		return nil, err
	}

	rec := journal.PaymentRecord{
		UserID:      userID,
		Name:        u.FullName,
		Email:       u.Email,
		Reference:   reference,
		AmountMinor: verified.AmountMinor,
		Plan:        string(tx.Plan),
		Date:        s.now().UTC(),
	}
	if err := s.journal.AppendPayment(rec, u.Username); err != nil {
		return nil, err
	}

	s.mu.Lock()
	delete(s.pending, reference)
	s.mu.Unlock()

	logger.Info(ctx, "payments", "payment_granted",
		slog.String("reference", reference),
		slog.Int64("user_id", userID),
		slog.String("plan", string(tx.Plan)),
		slog.Int64("amount", verified.AmountMinor),
		slog.Time("expiry", expiry),
	)
	return &Receipt{
		UserID:      userID,
		FullName:    u.FullName,
		Email:       u.Email,
		Reference:   reference,
		Plan:        tx.Plan,
		AmountMinor: verified.AmountMinor,
		Expiry:      expiry,
	}, nil
}

// Pending returns the pending transaction for a reference, if any.
func (s *Service) Pending(reference string) (PendingTransaction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.pending[reference]
	return tx, ok
}
