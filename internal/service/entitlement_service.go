package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pretty1020/lept-reviewer/internal/cache"
	"github.com/pretty1020/lept-reviewer/internal/model"
	"github.com/pretty1020/lept-reviewer/internal/pubsub"
	"github.com/pretty1020/lept-reviewer/internal/repository"

	"github.com/rs/zerolog"
)

// Decision reasons returned by Evaluate.
const (
	ReasonOK             = "OK"
	ReasonNotFound       = "NOT_FOUND"
	ReasonBlocked        = "BLOCKED"
	ReasonQuotaExhausted = "QUOTA_EXHAUSTED"
	ReasonPremiumExpired = "PREMIUM_EXPIRED"
)

// Decision is the result of an entitlement check. Message is user-facing
// and distinguishes "upgrade" from "contact support" from "renew".
type Decision struct {
	Allowed   bool          `json:"allowed"`
	Reason    string        `json:"reason"`
	Message   string        `json:"message"`
	Plan      EffectivePlan `json:"-"`
	Remaining int           `json:"remaining"`
}

// ConsumeMeta classifies a consumption event for the usage ledger.
type ConsumeMeta struct {
	SourceType string
	Category   string
	Difficulty string
}

// PlanLimits carries the configured quota defaults per plan tier.
type PlanLimits struct {
	FreeQuestionLimit int
	ProQuestionBonus  int
	PremiumQuota      int
	PremiumDuration   time.Duration
	QuestionsPerBatch int
}

// EntitlementService is the quota/entitlement state machine. It decides
// whether an operation is permitted and performs the atomic spend.
type EntitlementService interface {
	// GetOrCreateUser resolves a login: both block gates, idempotent
	// insert, IP bookkeeping, and the lazy premium downgrade. The bool
	// reports whether a new account was created.
	GetOrCreateUser(ctx context.Context, email, ipAddress string) (*model.User, bool, error)
	// GetUser reads through the cache. Not for decisions that precede a
	// spend; Consume always re-reads fresh.
	GetUser(ctx context.Context, email string) (*model.User, error)
	Evaluate(ctx context.Context, email string, count int) (Decision, error)
	// Consume records the usage event and IP aggregates unconditionally,
	// then spends count questions with a conditional decrement and
	// returns the post-spend balance. A failed decrement is reported,
	// never a silent success.
	Consume(ctx context.Context, email, ipAddress string, count int, meta ConsumeMeta) (int, error)
	// ChangePlan assigns plan defaults when explicitQuota is nil and
	// clears the premium expiry for non-premium plans.
	ChangePlan(ctx context.Context, email, newPlan string, explicitQuota *int) error

	Limits() PlanLimits

	ListUsers(ctx context.Context) ([]model.User, error)
	UsageForUser(ctx context.Context, email string, limit int) ([]model.UsageEvent, error)
	UsageAll(ctx context.Context, limit int) ([]model.UsageEvent, error)

	SetUserBlocked(ctx context.Context, actor, email string, blocked bool) error
	SetIPBlocked(ctx context.Context, actor, ipAddress string, blocked bool) error
	AdjustQuota(ctx context.Context, actor, email string, quota int) error
	AdminChangePlan(ctx context.Context, actor, email, newPlan string, explicitQuota *int) error
	DeleteUser(ctx context.Context, actor, email string) error
}

type entitlementService struct {
	users      repository.UserRepository
	usage      repository.UsageRepository
	audit      repository.AuditRepository
	cache      *cache.Cache
	publisher  pubsub.Publisher
	usageTopic string
	limits     PlanLimits
	pageSize   int
	logger     zerolog.Logger
}

// NewEntitlementService creates the engine. publisher may be nil when no
// analytics export is configured.
func NewEntitlementService(
	users repository.UserRepository,
	usage repository.UsageRepository,
	audit repository.AuditRepository,
	c *cache.Cache,
	publisher pubsub.Publisher,
	usageTopic string,
	limits PlanLimits,
	usagePageSize int,
	logger zerolog.Logger,
) EntitlementService {
	return &entitlementService{
		users:      users,
		usage:      usage,
		audit:      audit,
		cache:      c,
		publisher:  publisher,
		usageTopic: usageTopic,
		limits:     limits,
		pageSize:   usagePageSize,
		logger:     logger.With().Str("service", "EntitlementService").Logger(),
	}
}

func (s *entitlementService) Limits() PlanLimits { return s.limits }

func (s *entitlementService) GetOrCreateUser(ctx context.Context, email, ipAddress string) (*model.User, bool, error) {
	// IP blocking is an independent gate from account blocking; either
	// one denies.
	ipBlocked, err := cache.GetOrCompute(ctx, s.cache, cache.KindIPBlock, ipAddress, func(ctx context.Context) (bool, error) {
		return s.usage.IsIPBlocked(ctx, ipAddress)
	})
	if err != nil {
		return nil, false, fmt.Errorf("check ip block: %w", err)
	}
	if ipBlocked {
		return nil, false, ErrIPBlocked
	}

	created, err := s.users.CreateUser(ctx, email, ipAddress, s.limits.FreeQuestionLimit)
	if err != nil {
		return nil, false, err
	}
	if created {
		_ = s.cache.Evict(ctx, cache.KindUserByEmail)
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, false, err
	}
	if user == nil {
		return nil, false, ErrUserNotFound
	}
	if user.IsBlocked {
		return nil, false, ErrUserBlocked
	}

	if !created && user.IPAddress != ipAddress {
		if err := s.users.UpdateUserIP(ctx, email, ipAddress); err != nil {
			return nil, false, err
		}
		user.IPAddress = ipAddress
		_ = s.cache.Evict(ctx, cache.KindUserByEmail)
	}
	if err := s.usage.TouchIP(ctx, ipAddress); err != nil {
		return nil, false, err
	}
	if err := s.usage.TouchUserIP(ctx, email, ipAddress); err != nil {
		return nil, false, err
	}

	if user, err = s.downgradeIfExpired(ctx, user); err != nil {
		return nil, false, err
	}
	return user, created, nil
}

func (s *entitlementService) GetUser(ctx context.Context, email string) (*model.User, error) {
	user, err := cache.GetOrCompute(ctx, s.cache, cache.KindUserByEmail, email, func(ctx context.Context) (*model.User, error) {
		return s.users.GetUserByEmail(ctx, email)
	})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// downgradeIfExpired applies the read-triggered PREMIUM→FREE transition.
// The stored record is updated with a conditional statement so concurrent
// readers race harmlessly; the returned user reflects the stored state.
func (s *entitlementService) downgradeIfExpired(ctx context.Context, user *model.User) (*model.User, error) {
	if DeriveEffectivePlan(user.PlanStatus, user.PremiumExpiry, time.Now()) != EffectivePremiumExpired {
		return user, nil
	}
	changed, err := s.users.DowngradeExpiredPremium(ctx, user.Email, time.Now())
	if err != nil {
		return nil, err
	}
	if changed {
		s.logger.Info().Str("email", user.Email).Msg("premium expired, downgraded to free")
		_ = s.cache.Evict(ctx, cache.KindUserByEmail)
	}
	fresh, err := s.users.GetUserByEmail(ctx, user.Email)
	if err != nil {
		return nil, err
	}
	if fresh == nil {
		return nil, ErrUserNotFound
	}
	return fresh, nil
}

func (s *entitlementService) Evaluate(ctx context.Context, email string, count int) (Decision, error) {
	user, err := s.GetUser(ctx, email)
	if err != nil {
		if err == ErrUserNotFound {
			return Decision{Reason: ReasonNotFound, Message: "Account not found. Please sign in again."}, nil
		}
		return Decision{}, err
	}
	if user.IsBlocked {
		return Decision{Reason: ReasonBlocked, Message: "Your account has been blocked. Please contact support."}, nil
	}

	plan := DeriveEffectivePlan(user.PlanStatus, user.PremiumExpiry, time.Now())
	if plan == EffectivePremiumExpired {
		// Read-triggered transition: persist the downgrade before
		// reporting the denial so the next read observes it.
		if _, err := s.downgradeIfExpired(ctx, user); err != nil {
			return Decision{}, err
		}
		return Decision{
			Reason:  ReasonPremiumExpired,
			Message: "Your Premium subscription has expired. Please renew to continue.",
			Plan:    plan,
		}, nil
	}
	if plan.Unlimited() {
		return Decision{Allowed: true, Reason: ReasonOK, Message: "Premium access active", Plan: plan, Remaining: user.QuestionsRemaining}, nil
	}

	if count < 1 {
		count = 1
	}
	if user.QuestionsRemaining < count {
		msg := "You've used all your questions. Upgrade to PREMIUM for unlimited access!"
		if plan == EffectiveFree {
			msg = "You've used all your free questions. Upgrade to PRO or PREMIUM for more!"
		}
		return Decision{
			Reason:    ReasonQuotaExhausted,
			Message:   msg,
			Plan:      plan,
			Remaining: user.QuestionsRemaining,
		}, nil
	}
	return Decision{
		Allowed:   true,
		Reason:    ReasonOK,
		Message:   fmt.Sprintf("%d questions remaining", user.QuestionsRemaining),
		Plan:      plan,
		Remaining: user.QuestionsRemaining,
	}, nil
}

func (s *entitlementService) Consume(ctx context.Context, email, ipAddress string, count int, meta ConsumeMeta) (int, error) {
	// Fresh read, never the cache: this is the anti-race double check
	// between the UI-level permission check and the actual spend.
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return 0, fmt.Errorf("consume pre-read: %w", err)
	}
	if user == nil {
		return 0, ErrUserNotFound
	}
	if user.IsBlocked {
		return 0, ErrUserBlocked
	}

	// The generation already happened by the time consumption is
	// reported, so the ledger and IP aggregates record the attempt even
	// when the decrement below fails.
	event := &model.UsageEvent{
		Email:              email,
		IPAddress:          ipAddress,
		QuestionsGenerated: count,
		SourceType:         meta.SourceType,
		Category:           meta.Category,
		Difficulty:         meta.Difficulty,
	}
	if err := s.usage.RecordUsage(ctx, event); err != nil {
		return 0, fmt.Errorf("record usage: %w", err)
	}
	if err := s.usage.IncrementIPUsage(ctx, ipAddress, count); err != nil {
		return 0, fmt.Errorf("touch ip aggregate: %w", err)
	}
	if err := s.usage.TouchUserIP(ctx, email, ipAddress); err != nil {
		return 0, fmt.Errorf("touch ip history: %w", err)
	}
	s.publishUsage(ctx, event)

	plan := DeriveEffectivePlan(user.PlanStatus, user.PremiumExpiry, time.Now())
	switch {
	case plan.Unlimited():
		// Premium consumption records usage but never decrements.
		return user.QuestionsRemaining, nil
	case plan == EffectivePremiumExpired:
		if _, err := s.downgradeIfExpired(ctx, user); err != nil {
			return 0, err
		}
		return 0, ErrPremiumExpired
	}

	// Second line of defense: the decrement is one conditional UPDATE,
	// so two racing consumers can never drive the quota negative. The
	// balance it returns is the spend's own, not a cached snapshot.
	remaining, ok, err := s.users.DecrementQuestions(ctx, email, count)
	if err != nil {
		// Fail closed: the caller must treat this as "not consumed".
		return 0, fmt.Errorf("decrement quota: %w", err)
	}
	if !ok {
		return 0, ErrQuotaExhausted
	}
	_ = s.cache.Evict(ctx, cache.KindUserByEmail)
	return remaining, nil
}

// publishUsage exports the event for analytics. Best effort: a publish
// failure never affects the consume outcome.
func (s *entitlementService) publishUsage(ctx context.Context, event *model.UsageEvent) {
	if s.publisher == nil || s.usageTopic == "" {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	if _, err := s.publisher.Publish(ctx, s.usageTopic, payload); err != nil {
		s.logger.Warn().Err(err).Str("email", event.Email).Msg("failed to publish usage event")
	}
}

func (s *entitlementService) ChangePlan(ctx context.Context, email, newPlan string, explicitQuota *int) error {
	var (
		remaining int
		expiry    *time.Time
	)
	switch newPlan {
	case model.PlanFree:
		remaining = s.limits.FreeQuestionLimit
	case model.PlanPro:
		remaining = s.limits.ProQuestionBonus
	case model.PlanPremium:
		remaining = s.limits.PremiumQuota
		t := time.Now().Add(s.limits.PremiumDuration)
		expiry = &t
	default:
		return ErrInvalidPlan
	}
	if explicitQuota != nil {
		remaining = *explicitQuota
	}

	if err := s.users.ChangePlan(ctx, email, newPlan, remaining, expiry); err != nil {
		return err
	}
	_ = s.cache.Evict(ctx, cache.KindUserByEmail)
	s.logger.Info().Str("email", email).Str("plan", newPlan).Int("quota", remaining).Msg("plan changed")
	return nil
}

func (s *entitlementService) ListUsers(ctx context.Context) ([]model.User, error) {
	return s.users.ListUsers(ctx)
}

func (s *entitlementService) UsageForUser(ctx context.Context, email string, limit int) ([]model.UsageEvent, error) {
	if limit <= 0 {
		limit = s.pageSize
	}
	return s.usage.ListForUser(ctx, email, limit)
}

func (s *entitlementService) UsageAll(ctx context.Context, limit int) ([]model.UsageEvent, error) {
	if limit <= 0 {
		limit = s.pageSize
	}
	return s.usage.ListAll(ctx, limit)
}

func (s *entitlementService) SetUserBlocked(ctx context.Context, actor, email string, blocked bool) error {
	if err := s.users.SetBlocked(ctx, email, blocked); err != nil {
		return err
	}
	_ = s.cache.Evict(ctx, cache.KindUserByEmail)
	action := "UNBLOCK_USER"
	if blocked {
		action = "BLOCK_USER"
	}
	return s.audit.RecordAction(ctx, actor, action, email)
}

func (s *entitlementService) SetIPBlocked(ctx context.Context, actor, ipAddress string, blocked bool) error {
	if err := s.usage.SetIPBlocked(ctx, ipAddress, blocked); err != nil {
		return err
	}
	_ = s.cache.Evict(ctx, cache.KindIPBlock)
	action := "UNBLOCK_IP"
	if blocked {
		action = "BLOCK_IP"
	}
	return s.audit.RecordAction(ctx, actor, action, ipAddress)
}

func (s *entitlementService) AdjustQuota(ctx context.Context, actor, email string, quota int) error {
	if err := s.users.AdjustQuota(ctx, email, quota); err != nil {
		return err
	}
	_ = s.cache.Evict(ctx, cache.KindUserByEmail)
	return s.audit.RecordAction(ctx, actor, "ADJUST_QUOTA", fmt.Sprintf("%s -> %d", email, quota))
}

func (s *entitlementService) AdminChangePlan(ctx context.Context, actor, email, newPlan string, explicitQuota *int) error {
	if err := s.ChangePlan(ctx, email, newPlan, explicitQuota); err != nil {
		return err
	}
	return s.audit.RecordAction(ctx, actor, "CHANGE_PLAN", fmt.Sprintf("%s -> %s", email, newPlan))
}

func (s *entitlementService) DeleteUser(ctx context.Context, actor, email string) error {
	if err := s.users.DeleteUser(ctx, email); err != nil {
		return err
	}
	_ = s.cache.Evict(ctx, cache.KindUserByEmail)
	_ = s.cache.Evict(ctx, cache.KindUserDocs)
	return s.audit.RecordAction(ctx, actor, "DELETE_USER", email)
}
