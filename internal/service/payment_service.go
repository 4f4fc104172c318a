package service

import (
	"context"
	"fmt"

	"github.com/pretty1020/lept-reviewer/internal/cache"
	"github.com/pretty1020/lept-reviewer/internal/model"
	"github.com/pretty1020/lept-reviewer/internal/repository"

	"github.com/rs/zerolog"
)

// PaymentService handles the manual payment-request flow: users submit a
// proof of payment, admins approve or reject.
type PaymentService interface {
	Submit(ctx context.Context, req *model.PaymentRequest) (int64, error)
	// Approve applies the plan change FIRST, then marks the request
	// approved with a conditional transition. If the plan change fails
	// the request stays PENDING and is safe to retry; a request already
	// resolved by a concurrent admin returns ErrPaymentNotPending.
	Approve(ctx context.Context, actor string, paymentID int64, notes string) error
	Reject(ctx context.Context, actor string, paymentID int64, notes string) error

	ListPending(ctx context.Context) ([]model.PaymentRequest, error)
	ListAll(ctx context.Context) ([]model.PaymentRequest, error)
	ListForUser(ctx context.Context, email string) ([]model.PaymentRequest, error)
	CountPending(ctx context.Context) (int, error)
}

type paymentService struct {
	payments    repository.PaymentRepository
	audit       repository.AuditRepository
	entitlement EntitlementService
	cache       *cache.Cache
	logger      zerolog.Logger
}

func NewPaymentService(
	payments repository.PaymentRepository,
	audit repository.AuditRepository,
	entitlement EntitlementService,
	c *cache.Cache,
	logger zerolog.Logger,
) PaymentService {
	return &paymentService{
		payments:    payments,
		audit:       audit,
		entitlement: entitlement,
		cache:       c,
		logger:      logger.With().Str("service", "PaymentService").Logger(),
	}
}

func (s *paymentService) Submit(ctx context.Context, req *model.PaymentRequest) (int64, error) {
	if req.PlanRequested != model.PlanPro && req.PlanRequested != model.PlanPremium {
		return 0, ErrInvalidPlan
	}
	id, err := s.payments.CreatePayment(ctx, req)
	if err != nil {
		return 0, fmt.Errorf("create payment request: %w", err)
	}
	_ = s.cache.Evict(ctx, cache.KindPendingPayments)
	s.logger.Info().Int64("payment_id", id).Str("email", req.Email).Str("plan", req.PlanRequested).Msg("payment request submitted")
	return id, nil
}

func (s *paymentService) Approve(ctx context.Context, actor string, paymentID int64, notes string) error {
	p, err := s.payments.GetPayment(ctx, paymentID)
	if err != nil {
		return err
	}
	if p == nil {
		return ErrPaymentNotFound
	}
	if p.Status != model.PaymentPending {
		return ErrPaymentNotPending
	}

	// Grant before resolving. The reverse order could leave an approved
	// request whose user never got the plan.
	if err := s.entitlement.ChangePlan(ctx, p.Email, p.PlanRequested, nil); err != nil {
		return fmt.Errorf("apply plan for payment %d: %w", paymentID, err)
	}

	ok, err := s.payments.ResolvePayment(ctx, paymentID, model.PaymentApproved, notes, actor)
	if err != nil {
		return err
	}
	if !ok {
		// A concurrent admin won the transition. The user keeps the
		// plan either way, so this is a no-op, not a rollback.
		return ErrPaymentNotPending
	}
	_ = s.cache.Evict(ctx, cache.KindPendingPayments)
	s.logger.Info().Int64("payment_id", paymentID).Str("email", p.Email).Str("plan", p.PlanRequested).Msg("payment approved")
	return s.audit.RecordAction(ctx, actor, "APPROVE_PAYMENT", fmt.Sprintf("payment %d: %s -> %s", paymentID, p.Email, p.PlanRequested))
}

func (s *paymentService) Reject(ctx context.Context, actor string, paymentID int64, notes string) error {
	p, err := s.payments.GetPayment(ctx, paymentID)
	if err != nil {
		return err
	}
	if p == nil {
		return ErrPaymentNotFound
	}
	ok, err := s.payments.ResolvePayment(ctx, paymentID, model.PaymentRejected, notes, actor)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPaymentNotPending
	}
	_ = s.cache.Evict(ctx, cache.KindPendingPayments)
	s.logger.Info().Int64("payment_id", paymentID).Str("email", p.Email).Msg("payment rejected")
	return s.audit.RecordAction(ctx, actor, "REJECT_PAYMENT", fmt.Sprintf("payment %d: %s", paymentID, p.Email))
}

func (s *paymentService) ListPending(ctx context.Context) ([]model.PaymentRequest, error) {
	return cache.GetOrCompute(ctx, s.cache, cache.KindPendingPayments, "all", func(ctx context.Context) ([]model.PaymentRequest, error) {
		return s.payments.ListPending(ctx)
	})
}

func (s *paymentService) ListAll(ctx context.Context) ([]model.PaymentRequest, error) {
	return s.payments.ListAll(ctx)
}

func (s *paymentService) ListForUser(ctx context.Context, email string) ([]model.PaymentRequest, error) {
	return s.payments.ListForUser(ctx, email)
}

func (s *paymentService) CountPending(ctx context.Context) (int, error) {
	return s.payments.CountPending(ctx)
}
