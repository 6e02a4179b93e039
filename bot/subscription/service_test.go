package subscription

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dailyinfluencing/listingbot/bot/catalog"
	"github.com/dailyinfluencing/listingbot/bot/journal"
	"github.com/dailyinfluencing/listingbot/bot/paystack"
	"github.com/dailyinfluencing/listingbot/bot/store"
)

type fakeGateway struct {
	initCalls   int
	verifyCalls int
	initOut     *paystack.InitResponse
	verifyOut   *paystack.VerifyResponse
	verifyErr   error
}

func (g *fakeGateway) InitializeTransaction(_ context.Context, req paystack.InitRequest) (*paystack.InitResponse, error) {
	g.initCalls++
	return g.initOut, nil
}

func (g *fakeGateway) VerifyTransaction(_ context.Context, reference string) (*paystack.VerifyResponse, error) {
	g.verifyCalls++
	if g.verifyErr != nil {
		return nil, g.verifyErr
	}
	return g.verifyOut, nil
}

func newTestService(t *testing.T, gw Gateway, now time.Time) (*Service, *store.MemoryStore) {
	t.Helper()
	users := store.NewMemoryStore()
	j, err := journal.New(t.TempDir())
	require.NoError(t, err)
	svc, err := NewService(ServiceOptions{
		Users:   users,
		Journal: j,
		Gateway: gw,
		Now:     func() time.Time { return now },
	})
	require.NoError(t, err)
	return svc, users
}

func approvedUser(id int64) *store.UserRecord {
	return &store.UserRecord{
		UserID:        id,
		Username:      "jdoe",
		FullName:      "Jane Doe",
		Email:         "jane@example.com",
		Role:          catalog.RoleDesigner,
		Status:        store.StatusApproved,
		CommunitySize: 0,
	}
}

func TestCreateTransaction(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	gw := &fakeGateway{initOut: &paystack.InitResponse{
		AuthorizationURL: "https://checkout.paystack.com/x",
		Reference:        "ref-1",
	}}
	svc, users := newTestService(t, gw, now)
	require.NoError(t, users.Set(context.Background(), approvedUser(7)))

	out, err := svc.CreateTransaction(context.Background(), 7, TierDesigner, Plan1Month)
	require.NoError(t, err)
	assert.Equal(t, "ref-1", out.Reference)
	assert.Equal(t, int64(3750000), out.AmountMinor)
	assert.Equal(t, 1, gw.initCalls)

	tx, ok := svc.Pending("ref-1")
	require.True(t, ok)
	assert.Equal(t, int64(7), tx.UserID)
	assert.Equal(t, Plan1Month, tx.Plan)
}

func TestCreateTransactionGuards(t *testing.T) {
	gw := &fakeGateway{initOut: &paystack.InitResponse{Reference: "r"}}
	svc, users := newTestService(t, gw, time.Now())
	ctx := context.Background()

	_, err := svc.CreateTransaction(ctx, 404, TierDesigner, Plan1Month)
	require.ErrorIs(t, err, ErrNotApproved)

	pending := approvedUser(8)
	pending.Status = store.StatusPending
	require.NoError(t, users.Set(ctx, pending))
	_, err = svc.CreateTransaction(ctx, 8, TierDesigner, Plan1Month)
	require.ErrorIs(t, err, ErrNotApproved)

	noEmail := approvedUser(9)
	noEmail.Email = ""
	require.NoError(t, users.Set(ctx, noEmail))
	_, err = svc.CreateTransaction(ctx, 9, TierDesigner, Plan1Month)
	require.ErrorIs(t, err, ErrNoEmail)

	badEmail := approvedUser(10)
	badEmail.Email = "not-an-email"
	require.NoError(t, users.Set(ctx, badEmail))
	_, err = svc.CreateTransaction(ctx, 10, TierDesigner, Plan1Month)
	require.ErrorIs(t, err, ErrInvalidEmail)

	ok := approvedUser(11)
	require.NoError(t, users.Set(ctx, ok))
	_, err = svc.CreateTransaction(ctx, 11, TierDesigner, Plan("2weeks"))
	require.ErrorIs(t, err, ErrUnknownPlan)

	assert.Zero(t, gw.initCalls)
}

func TestVerifyPaymentGrantsOnce(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	gw := &fakeGateway{
		initOut: &paystack.InitResponse{Reference: "ref-2"},
		verifyOut: &paystack.VerifyResponse{
			Status:      paystack.StatusSuccess,
			Reference:   "ref-2",
			AmountMinor: 3750000,
			Metadata:    paystack.Metadata{UserID: 7, Role: string(TierDesigner), Plan: string(Plan1Month)},
		},
	}
	svc, users := newTestService(t, gw, now)
	ctx := context.Background()
	require.NoError(t, users.Set(ctx, approvedUser(7)))

	_, err := svc.CreateTransaction(ctx, 7, TierDesigner, Plan1Month)
	require.NoError(t, err)

	receipt, err := svc.VerifyPayment(ctx, 7, "ref-2")
	require.NoError(t, err)
	assert.Equal(t, Plan1Month, receipt.Plan)
	assert.Equal(t, int64(3750000), receipt.AmountMinor)
	assert.Equal(t, now.Add(30*24*time.Hour), receipt.Expiry)

	u, err := users.Get(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, string(Plan1Month), u.Plan)
	require.NotNil(t, u.Expiry)
	assert.True(t, u.Expiry.Equal(now.Add(30*24*time.Hour)))
	assert.True(t, u.HasPlan())

	// Consuming the same reference again must not grant twice, and the
	// gateway is not consulted for a consumed reference.
	_, err = svc.VerifyPayment(ctx, 7, "ref-2")
	require.ErrorIs(t, err, ErrAlreadyProcessed)
	assert.Equal(t, 1, gw.verifyCalls)

	_, ok := svc.Pending("ref-2")
	assert.False(t, ok)
}

type slowGateway struct {
	fakeGateway
	delay time.Duration
}

func (g *slowGateway) VerifyTransaction(ctx context.Context, reference string) (*paystack.VerifyResponse, error) {
	time.Sleep(g.delay)
	return g.fakeGateway.VerifyTransaction(ctx, reference)
}

func TestVerifyPaymentConcurrentDoubleTap(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	gw := &slowGateway{
		fakeGateway: fakeGateway{
			initOut: &paystack.InitResponse{Reference: "ref-6"},
			verifyOut: &paystack.VerifyResponse{
				Status:      paystack.StatusSuccess,
				Reference:   "ref-6",
				AmountMinor: 3750000,
				Metadata:    paystack.Metadata{UserID: 7, Role: string(TierDesigner), Plan: string(Plan1Month)},
			},
		},
		delay: 50 * time.Millisecond,
	}
	svc, users := newTestService(t, gw, now)
	ctx := context.Background()
	require.NoError(t, users.Set(ctx, approvedUser(7)))

	_, err := svc.CreateTransaction(ctx, 7, TierDesigner, Plan1Month)
	require.NoError(t, err)

	// Two taps on the verify button race on the same reference. Exactly
	// one grants; the other sees the reference as consumed.
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.VerifyPayment(ctx, 7, "ref-6")
		}(i)
	}
	wg.Wait()

	var grants, consumed int
	for _, err := range errs {
		switch {
		case err == nil:
			grants++
		case errors.Is(err, ErrAlreadyProcessed):
			consumed++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, grants)
	assert.Equal(t, 1, consumed)
	assert.Equal(t, 1, gw.verifyCalls)
}

func TestVerifyPaymentNotSettled(t *testing.T) {
	gw := &fakeGateway{
		initOut:   &paystack.InitResponse{Reference: "ref-3"},
		verifyOut: &paystack.VerifyResponse{Status: "abandoned", Reference: "ref-3"},
	}
	svc, users := newTestService(t, gw, time.Now())
	ctx := context.Background()
	require.NoError(t, users.Set(ctx, approvedUser(7)))

	_, err := svc.CreateTransaction(ctx, 7, TierDesigner, Plan1Month)
	require.NoError(t, err)

	_, err = svc.VerifyPayment(ctx, 7, "ref-3")
	require.ErrorIs(t, err, ErrNotSettled)

	// Still pending, so the user can retry after paying.
	_, ok := svc.Pending("ref-3")
	assert.True(t, ok)
	u, err := users.Get(ctx, 7)
	require.NoError(t, err)
	assert.False(t, u.HasPlan())
}

func TestVerifyPaymentSurvivesRestart(t *testing.T) {
	// No pending entry (fresh process); metadata echoed by the gateway
	// must be enough to grant.
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	gw := &fakeGateway{
		verifyOut: &paystack.VerifyResponse{
			Status:      paystack.StatusSuccess,
			Reference:   "ref-4",
			AmountMinor: 3400000,
			Metadata:    paystack.Metadata{UserID: 7, Role: string(TierMicro), Plan: string(Plan3Months)},
		},
	}
	svc, users := newTestService(t, gw, now)
	ctx := context.Background()
	require.NoError(t, users.Set(ctx, approvedUser(7)))

	receipt, err := svc.VerifyPayment(ctx, 7, "ref-4")
	require.NoError(t, err)
	assert.Equal(t, Plan3Months, receipt.Plan)
}

func TestVerifyPaymentWrongUser(t *testing.T) {
	gw := &fakeGateway{
		verifyOut: &paystack.VerifyResponse{
			Status:   paystack.StatusSuccess,
			Metadata: paystack.Metadata{UserID: 7, Plan: string(Plan1Month)},
		},
	}
	svc, users := newTestService(t, gw, time.Now())
	ctx := context.Background()
	require.NoError(t, users.Set(ctx, approvedUser(7)))

	_, err := svc.VerifyPayment(ctx, 99, "ref-5")
	require.ErrorIs(t, err, ErrUnknownReference)
}
