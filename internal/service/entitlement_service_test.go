package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pretty1020/lept-reviewer/internal/cache"
	"github.com/pretty1020/lept-reviewer/internal/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeUserRepo mirrors the conditional-update semantics of the SQL layer
// behind a mutex so concurrency tests are meaningful.
type fakeUserRepo struct {
	mu           sync.Mutex
	users        map[string]*model.User
	decrementErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User)}
}

func (f *fakeUserRepo) CreateUser(_ context.Context, email, ipAddress string, freeLimit int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[email]; ok {
		return false, nil
	}
	f.users[email] = &model.User{
		Email:              email,
		IPAddress:          ipAddress,
		PlanStatus:         model.PlanFree,
		QuestionsRemaining: freeLimit,
		CreatedAt:          time.Now(),
	}
	return true, nil
}

func (f *fakeUserRepo) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[email]
	if !ok {
		return nil, nil
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUserRepo) ListUsers(_ context.Context) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, *u)
	}
	return out, nil
}

func (f *fakeUserRepo) UpdateUserIP(_ context.Context, email, ipAddress string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[email]; ok {
		u.IPAddress = ipAddress
	}
	return nil
}

func (f *fakeUserRepo) DecrementQuestions(_ context.Context, email string, count int) (int, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.decrementErr != nil {
		return 0, false, f.decrementErr
	}
	u, ok := f.users[email]
	if !ok || u.QuestionsRemaining < count {
		return 0, false, nil
	}
	u.QuestionsRemaining -= count
	u.QuestionsUsedTotal += count
	return u.QuestionsRemaining, true, nil
}

func (f *fakeUserRepo) ChangePlan(_ context.Context, email, plan string, questionsRemaining int, premiumExpiry *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[email]
	if !ok {
		return errors.New("user not found")
	}
	u.PlanStatus = plan
	u.QuestionsRemaining = questionsRemaining
	u.PremiumExpiry = premiumExpiry
	return nil
}

func (f *fakeUserRepo) AdjustQuota(_ context.Context, email string, questionsRemaining int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[email]; ok {
		u.QuestionsRemaining = questionsRemaining
	}
	return nil
}

func (f *fakeUserRepo) SetBlocked(_ context.Context, email string, blocked bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[email]; ok {
		u.IsBlocked = blocked
	}
	return nil
}

func (f *fakeUserRepo) DowngradeExpiredPremium(_ context.Context, email string, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[email]
	if !ok || u.PlanStatus != model.PlanPremium {
		return false, nil
	}
	if u.PremiumExpiry != nil && u.PremiumExpiry.After(now) {
		return false, nil
	}
	u.PlanStatus = model.PlanFree
	u.QuestionsRemaining = 0
	u.PremiumExpiry = nil
	return true, nil
}

func (f *fakeUserRepo) DeleteUser(_ context.Context, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.users, email)
	return nil
}

type fakeUsageRepo struct {
	mu         sync.Mutex
	events     []model.UsageEvent
	blockedIPs map[string]bool
}

func newFakeUsageRepo() *fakeUsageRepo {
	return &fakeUsageRepo{blockedIPs: make(map[string]bool)}
}

func (f *fakeUsageRepo) RecordUsage(_ context.Context, e *model.UsageEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e.EventID = int64(len(f.events) + 1)
	e.EventTime = time.Now()
	f.events = append(f.events, *e)
	return nil
}

func (f *fakeUsageRepo) ListForUser(_ context.Context, email string, limit int) ([]model.UsageEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.UsageEvent
	for _, e := range f.events {
		if e.Email == email {
			out = append(out, e)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeUsageRepo) ListAll(_ context.Context, limit int) ([]model.UsageEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]model.UsageEvent(nil), f.events...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeUsageRepo) TouchIP(_ context.Context, _ string) error { return nil }

func (f *fakeUsageRepo) IncrementIPUsage(_ context.Context, _ string, _ int) error { return nil }

func (f *fakeUsageRepo) IsIPBlocked(_ context.Context, ipAddress string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.blockedIPs[ipAddress], nil
}

func (f *fakeUsageRepo) SetIPBlocked(_ context.Context, ipAddress string, blocked bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blockedIPs[ipAddress] = blocked
	return nil
}

func (f *fakeUsageRepo) TouchUserIP(_ context.Context, _ string, _ string) error { return nil }

func (f *fakeUsageRepo) eventCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

type fakeAuditRepo struct {
	mu      sync.Mutex
	actions []model.AdminAction
}

func (f *fakeAuditRepo) RecordAction(_ context.Context, adminUser, actionType, details string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, model.AdminAction{
		ActionID:   int64(len(f.actions) + 1),
		AdminUser:  adminUser,
		ActionType: actionType,
		Details:    details,
		ActionTime: time.Now(),
	})
	return nil
}

func (f *fakeAuditRepo) ListActions(_ context.Context, limit int) ([]model.AdminAction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]model.AdminAction(nil), f.actions...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func testCache(t *testing.T) *cache.Cache {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	c, err := cache.New(context.Background(), cache.Options{Addr: mr.Addr()})
	require.NoError(t, err)
	return c
}

var testLimits = PlanLimits{
	FreeQuestionLimit: 10,
	ProQuestionBonus:  50,
	PremiumQuota:      9999,
	PremiumDuration:   30 * 24 * time.Hour,
	QuestionsPerBatch: 5,
}

func newTestEngine(t *testing.T) (EntitlementService, *fakeUserRepo, *fakeUsageRepo, *fakeAuditRepo) {
	t.Helper()
	users := newFakeUserRepo()
	usage := newFakeUsageRepo()
	audit := &fakeAuditRepo{}
	svc := NewEntitlementService(users, usage, audit, testCache(t), nil, "", testLimits, 50, zerolog.Nop())
	return svc, users, usage, audit
}

func TestGetOrCreateUserIsIdempotent(t *testing.T) {
	svc, _, _, _ := newTestEngine(t)
	ctx := context.Background()

	user, created, err := svc.GetOrCreateUser(ctx, "juan@example.com", "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 10, user.QuestionsRemaining)
	assert.Equal(t, model.PlanFree, user.PlanStatus)

	again, created, err := svc.GetOrCreateUser(ctx, "juan@example.com", "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 10, again.QuestionsRemaining)
}

func TestGetOrCreateUserRecordsNewIP(t *testing.T) {
	svc, users, _, _ := newTestEngine(t)
	ctx := context.Background()

	_, _, err := svc.GetOrCreateUser(ctx, "juan@example.com", "1.2.3.4")
	require.NoError(t, err)
	user, _, err := svc.GetOrCreateUser(ctx, "juan@example.com", "5.6.7.8")
	require.NoError(t, err)
	assert.Equal(t, "5.6.7.8", user.IPAddress)

	stored, err := users.GetUserByEmail(ctx, "juan@example.com")
	require.NoError(t, err)
	assert.Equal(t, "5.6.7.8", stored.IPAddress)
}

func TestGetOrCreateUserBlockedGates(t *testing.T) {
	svc, users, usage, _ := newTestEngine(t)
	ctx := context.Background()

	_, _, err := svc.GetOrCreateUser(ctx, "blocked@example.com", "1.2.3.4")
	require.NoError(t, err)
	require.NoError(t, users.SetBlocked(ctx, "blocked@example.com", true))

	_, _, err = svc.GetOrCreateUser(ctx, "blocked@example.com", "1.2.3.4")
	assert.ErrorIs(t, err, ErrUserBlocked)

	require.NoError(t, usage.SetIPBlocked(ctx, "9.9.9.9", true))
	_, _, err = svc.GetOrCreateUser(ctx, "other@example.com", "9.9.9.9")
	assert.ErrorIs(t, err, ErrIPBlocked)
}

func TestFreeUserLifecycle(t *testing.T) {
	svc, _, _, _ := newTestEngine(t)
	ctx := context.Background()
	email := "free@example.com"

	_, _, err := svc.GetOrCreateUser(ctx, email, "1.2.3.4")
	require.NoError(t, err)

	// 10 -> 5
	left, err := svc.Consume(ctx, email, "1.2.3.4", 5, ConsumeMeta{SourceType: model.SourcePreset})
	require.NoError(t, err)
	assert.Equal(t, 5, left)
	user, err := svc.GetUser(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, 5, user.QuestionsRemaining)

	// 5 -> 0
	left, err = svc.Consume(ctx, email, "1.2.3.4", 5, ConsumeMeta{SourceType: model.SourcePreset})
	require.NoError(t, err)
	assert.Equal(t, 0, left)
	user, err = svc.GetUser(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, 0, user.QuestionsRemaining)

	// Exhausted: the evaluation denies with an upgrade prompt.
	decision, err := svc.Evaluate(ctx, email, 5)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, ReasonQuotaExhausted, decision.Reason)
	assert.Contains(t, decision.Message, "Upgrade")
}

func TestConsumeExactBalanceSucceeds(t *testing.T) {
	svc, users, _, _ := newTestEngine(t)
	ctx := context.Background()
	email := "edge@example.com"

	_, _, err := svc.GetOrCreateUser(ctx, email, "1.2.3.4")
	require.NoError(t, err)
	require.NoError(t, users.AdjustQuota(ctx, email, 5))

	left, err := svc.Consume(ctx, email, "1.2.3.4", 5, ConsumeMeta{})
	require.NoError(t, err)
	assert.Equal(t, 0, left)

	stored, err := users.GetUserByEmail(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.QuestionsRemaining)
}

func TestConsumeQuotaNeverGoesNegative(t *testing.T) {
	svc, users, _, _ := newTestEngine(t)
	ctx := context.Background()
	email := "racer@example.com"

	_, _, err := svc.GetOrCreateUser(ctx, email, "1.2.3.4")
	require.NoError(t, err)
	require.NoError(t, users.AdjustQuota(ctx, email, 5))

	const workers = 20
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Consume(ctx, email, "1.2.3.4", 5, ConsumeMeta{})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	successes := 0
	for err := range results {
		if err == nil {
			successes++
		} else {
			assert.ErrorIs(t, err, ErrQuotaExhausted)
		}
	}
	assert.Equal(t, 1, successes)

	stored, err := users.GetUserByEmail(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.QuestionsRemaining)
}

func TestConsumeRecordsUsageEvenWhenExhausted(t *testing.T) {
	svc, users, usage, _ := newTestEngine(t)
	ctx := context.Background()
	email := "ledger@example.com"

	_, _, err := svc.GetOrCreateUser(ctx, email, "1.2.3.4")
	require.NoError(t, err)
	require.NoError(t, users.AdjustQuota(ctx, email, 2))

	_, err = svc.Consume(ctx, email, "1.2.3.4", 5, ConsumeMeta{SourceType: model.SourceAIGenerated})
	assert.ErrorIs(t, err, ErrQuotaExhausted)
	assert.Equal(t, 1, usage.eventCount())

	// Balance untouched: no partial decrement.
	stored, err := users.GetUserByEmail(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.QuestionsRemaining)
}

func TestConsumeFailsClosedOnStorageError(t *testing.T) {
	svc, users, _, _ := newTestEngine(t)
	ctx := context.Background()
	email := "dbdown@example.com"

	_, _, err := svc.GetOrCreateUser(ctx, email, "1.2.3.4")
	require.NoError(t, err)

	users.decrementErr = errors.New("connection reset")
	_, err = svc.Consume(ctx, email, "1.2.3.4", 5, ConsumeMeta{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrQuotaExhausted)
}

func TestConsumePremiumSkipsDecrement(t *testing.T) {
	svc, users, usage, _ := newTestEngine(t)
	ctx := context.Background()
	email := "premium@example.com"

	_, _, err := svc.GetOrCreateUser(ctx, email, "1.2.3.4")
	require.NoError(t, err)
	expiry := time.Now().Add(24 * time.Hour)
	require.NoError(t, users.ChangePlan(ctx, email, model.PlanPremium, 9999, &expiry))

	left, err := svc.Consume(ctx, email, "1.2.3.4", 5, ConsumeMeta{SourceType: model.SourceAIGenerated})
	require.NoError(t, err)
	assert.Equal(t, 9999, left)

	stored, err := users.GetUserByEmail(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, 9999, stored.QuestionsRemaining)
	assert.Equal(t, 1, usage.eventCount())
}

func TestPremiumExpiryDowngradesOnRead(t *testing.T) {
	svc, users, _, _ := newTestEngine(t)
	ctx := context.Background()
	email := "expired@example.com"

	_, _, err := svc.GetOrCreateUser(ctx, email, "1.2.3.4")
	require.NoError(t, err)
	past := time.Now().Add(-time.Hour)
	require.NoError(t, users.ChangePlan(ctx, email, model.PlanPremium, 9999, &past))

	decision, err := svc.Evaluate(ctx, email, 5)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, ReasonPremiumExpired, decision.Reason)
	assert.Contains(t, decision.Message, "renew")

	// The downgrade is persisted, not just derived.
	stored, err := users.GetUserByEmail(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, model.PlanFree, stored.PlanStatus)
	assert.Equal(t, 0, stored.QuestionsRemaining)
	assert.Nil(t, stored.PremiumExpiry)
}

func TestEvaluateBlockedUser(t *testing.T) {
	svc, users, _, _ := newTestEngine(t)
	ctx := context.Background()
	email := "blocked@example.com"

	_, _, err := svc.GetOrCreateUser(ctx, email, "1.2.3.4")
	require.NoError(t, err)
	require.NoError(t, svc.SetUserBlocked(ctx, "admin@example.com", email, true))

	decision, err := svc.Evaluate(ctx, email, 5)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, ReasonBlocked, decision.Reason)
	assert.Contains(t, decision.Message, "contact support")

	stored, err := users.GetUserByEmail(ctx, email)
	require.NoError(t, err)
	assert.True(t, stored.IsBlocked)
}

func TestEvaluateUnknownUser(t *testing.T) {
	svc, _, _, _ := newTestEngine(t)

	decision, err := svc.Evaluate(context.Background(), "nobody@example.com", 5)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, ReasonNotFound, decision.Reason)
}

func TestChangePlanAssignsDefaults(t *testing.T) {
	svc, users, _, _ := newTestEngine(t)
	ctx := context.Background()
	email := "upgrade@example.com"

	_, _, err := svc.GetOrCreateUser(ctx, email, "1.2.3.4")
	require.NoError(t, err)

	require.NoError(t, svc.ChangePlan(ctx, email, model.PlanPro, nil))
	stored, _ := users.GetUserByEmail(ctx, email)
	assert.Equal(t, model.PlanPro, stored.PlanStatus)
	assert.Equal(t, 50, stored.QuestionsRemaining)
	assert.Nil(t, stored.PremiumExpiry)

	require.NoError(t, svc.ChangePlan(ctx, email, model.PlanPremium, nil))
	stored, _ = users.GetUserByEmail(ctx, email)
	assert.Equal(t, model.PlanPremium, stored.PlanStatus)
	assert.Equal(t, 9999, stored.QuestionsRemaining)
	require.NotNil(t, stored.PremiumExpiry)
	assert.WithinDuration(t, time.Now().Add(30*24*time.Hour), *stored.PremiumExpiry, time.Minute)

	quota := 7
	require.NoError(t, svc.ChangePlan(ctx, email, model.PlanFree, &quota))
	stored, _ = users.GetUserByEmail(ctx, email)
	assert.Equal(t, 7, stored.QuestionsRemaining)
}

func TestChangePlanRejectsUnknownPlan(t *testing.T) {
	svc, _, _, _ := newTestEngine(t)
	err := svc.ChangePlan(context.Background(), "x@example.com", "TRIAL", nil)
	assert.ErrorIs(t, err, ErrInvalidPlan)
}

func TestChangePlanEvictsCachedUser(t *testing.T) {
	svc, _, _, _ := newTestEngine(t)
	ctx := context.Background()
	email := "cached@example.com"

	_, _, err := svc.GetOrCreateUser(ctx, email, "1.2.3.4")
	require.NoError(t, err)

	// Warm the cache, then change the plan underneath it.
	_, err = svc.GetUser(ctx, email)
	require.NoError(t, err)
	require.NoError(t, svc.ChangePlan(ctx, email, model.PlanPro, nil))

	user, err := svc.GetUser(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, model.PlanPro, user.PlanStatus)
}

func TestAdminActionsAreAudited(t *testing.T) {
	svc, _, _, audit := newTestEngine(t)
	ctx := context.Background()
	email := "target@example.com"

	_, _, err := svc.GetOrCreateUser(ctx, email, "1.2.3.4")
	require.NoError(t, err)

	require.NoError(t, svc.SetUserBlocked(ctx, "admin@example.com", email, true))
	require.NoError(t, svc.AdjustQuota(ctx, "admin@example.com", email, 25))
	require.NoError(t, svc.SetIPBlocked(ctx, "admin@example.com", "1.2.3.4", true))
	require.NoError(t, svc.DeleteUser(ctx, "admin@example.com", email))

	actions, err := audit.ListActions(ctx, 100)
	require.NoError(t, err)
	require.Len(t, actions, 4)
	types := []string{actions[0].ActionType, actions[1].ActionType, actions[2].ActionType, actions[3].ActionType}
	assert.Equal(t, []string{"BLOCK_USER", "ADJUST_QUOTA", "BLOCK_IP", "DELETE_USER"}, types)
}
