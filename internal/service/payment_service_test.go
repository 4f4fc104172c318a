package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pretty1020/lept-reviewer/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePaymentRepo struct {
	mu       sync.Mutex
	payments map[int64]*model.PaymentRequest
	nextID   int64
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{payments: make(map[int64]*model.PaymentRequest)}
}

func (f *fakePaymentRepo) CreatePayment(_ context.Context, p *model.PaymentRequest) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	stored := *p
	stored.PaymentID = f.nextID
	stored.Status = model.PaymentPending
	stored.SubmittedAt = time.Now()
	f.payments[f.nextID] = &stored
	return f.nextID, nil
}

func (f *fakePaymentRepo) GetPayment(_ context.Context, paymentID int64) (*model.PaymentRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[paymentID]
	if !ok {
		return nil, nil
	}
	copied := *p
	return &copied, nil
}

func (f *fakePaymentRepo) ListPending(_ context.Context) ([]model.PaymentRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.PaymentRequest
	for _, p := range f.payments {
		if p.Status == model.PaymentPending {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakePaymentRepo) ListAll(_ context.Context) ([]model.PaymentRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.PaymentRequest
	for _, p := range f.payments {
		out = append(out, *p)
	}
	return out, nil
}

func (f *fakePaymentRepo) ListForUser(_ context.Context, email string) ([]model.PaymentRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.PaymentRequest
	for _, p := range f.payments {
		if p.Email == email {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakePaymentRepo) CountPending(ctx context.Context) (int, error) {
	pending, _ := f.ListPending(ctx)
	return len(pending), nil
}

func (f *fakePaymentRepo) ResolvePayment(_ context.Context, paymentID int64, status, notes, resolvedBy string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[paymentID]
	if !ok || p.Status != model.PaymentPending {
		return false, nil
	}
	now := time.Now()
	p.Status = status
	p.AdminNotes = notes
	p.ResolvedBy = resolvedBy
	p.ResolvedAt = &now
	return true, nil
}

func newTestPaymentService(t *testing.T) (PaymentService, *fakePaymentRepo, *fakeUserRepo, EntitlementService) {
	t.Helper()
	users := newFakeUserRepo()
	usage := newFakeUsageRepo()
	audit := &fakeAuditRepo{}
	c := testCache(t)
	entitlement := NewEntitlementService(users, usage, audit, c, nil, "", testLimits, 50, zerolog.Nop())
	payments := newFakePaymentRepo()
	svc := NewPaymentService(payments, audit, entitlement, c, zerolog.Nop())
	return svc, payments, users, entitlement
}

func submitTestPayment(t *testing.T, svc PaymentService, email, plan string) int64 {
	t.Helper()
	id, err := svc.Submit(context.Background(), &model.PaymentRequest{
		FullName:      "Juan Dela Cruz",
		Email:         email,
		PlanRequested: plan,
		ReferenceCode: "GCASH-12345",
	})
	require.NoError(t, err)
	return id
}

func TestSubmitRejectsFreePlan(t *testing.T) {
	svc, _, _, _ := newTestPaymentService(t)
	_, err := svc.Submit(context.Background(), &model.PaymentRequest{
		FullName:      "Juan Dela Cruz",
		Email:         "x@example.com",
		PlanRequested: model.PlanFree,
		ReferenceCode: "GCASH-1",
	})
	assert.ErrorIs(t, err, ErrInvalidPlan)
}

func TestApproveAppliesPlanThenResolves(t *testing.T) {
	svc, payments, users, entitlement := newTestPaymentService(t)
	ctx := context.Background()
	email := "buyer@example.com"

	_, _, err := entitlement.GetOrCreateUser(ctx, email, "1.2.3.4")
	require.NoError(t, err)
	id := submitTestPayment(t, svc, email, model.PlanPro)

	require.NoError(t, svc.Approve(ctx, "admin@example.com", id, "verified"))

	// Plan applied with the PRO default quota.
	user, err := users.GetUserByEmail(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, model.PlanPro, user.PlanStatus)
	assert.Equal(t, 50, user.QuestionsRemaining)

	// Request resolved with the audit fields set.
	p, err := payments.GetPayment(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentApproved, p.Status)
	assert.Equal(t, "admin@example.com", p.ResolvedBy)
	assert.Equal(t, "verified", p.AdminNotes)
	require.NotNil(t, p.ResolvedAt)
}

func TestApprovePremiumSetsExpiry(t *testing.T) {
	svc, _, users, entitlement := newTestPaymentService(t)
	ctx := context.Background()
	email := "premium-buyer@example.com"

	_, _, err := entitlement.GetOrCreateUser(ctx, email, "1.2.3.4")
	require.NoError(t, err)
	id := submitTestPayment(t, svc, email, model.PlanPremium)

	require.NoError(t, svc.Approve(ctx, "admin@example.com", id, ""))

	user, err := users.GetUserByEmail(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, model.PlanPremium, user.PlanStatus)
	require.NotNil(t, user.PremiumExpiry)
	assert.WithinDuration(t, time.Now().Add(30*24*time.Hour), *user.PremiumExpiry, time.Minute)
}

func TestDoubleApproveIsNoOp(t *testing.T) {
	svc, _, _, entitlement := newTestPaymentService(t)
	ctx := context.Background()
	email := "double@example.com"

	_, _, err := entitlement.GetOrCreateUser(ctx, email, "1.2.3.4")
	require.NoError(t, err)
	id := submitTestPayment(t, svc, email, model.PlanPro)

	require.NoError(t, svc.Approve(ctx, "admin@example.com", id, ""))
	err = svc.Approve(ctx, "admin@example.com", id, "")
	assert.ErrorIs(t, err, ErrPaymentNotPending)
}

func TestApproveKeepsPendingWhenPlanChangeFails(t *testing.T) {
	svc, payments, _, _ := newTestPaymentService(t)
	ctx := context.Background()

	// Request submitted for an account that no longer exists, so the
	// plan grant fails before the status transition is attempted.
	id := submitTestPayment(t, svc, "vanished@example.com", model.PlanPro)

	err := svc.Approve(ctx, "admin@example.com", id, "")
	require.Error(t, err)

	p, err := payments.GetPayment(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPending, p.Status)
}

func TestRejectLeavesPlanUntouched(t *testing.T) {
	svc, payments, users, entitlement := newTestPaymentService(t)
	ctx := context.Background()
	email := "rejected@example.com"

	_, _, err := entitlement.GetOrCreateUser(ctx, email, "1.2.3.4")
	require.NoError(t, err)
	id := submitTestPayment(t, svc, email, model.PlanPremium)

	require.NoError(t, svc.Reject(ctx, "admin@example.com", id, "reference not found"))

	user, err := users.GetUserByEmail(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, model.PlanFree, user.PlanStatus)

	p, err := payments.GetPayment(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentRejected, p.Status)
}

func TestApproveUnknownPayment(t *testing.T) {
	svc, _, _, _ := newTestPaymentService(t)
	err := svc.Approve(context.Background(), "admin@example.com", 404, "")
	assert.ErrorIs(t, err, ErrPaymentNotFound)
}

func TestPendingListRefreshesAfterResolve(t *testing.T) {
	svc, _, _, entitlement := newTestPaymentService(t)
	ctx := context.Background()
	email := "pending@example.com"

	_, _, err := entitlement.GetOrCreateUser(ctx, email, "1.2.3.4")
	require.NoError(t, err)
	id := submitTestPayment(t, svc, email, model.PlanPro)

	pending, err := svc.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, svc.Approve(ctx, "admin@example.com", id, ""))

	pending, err = svc.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
