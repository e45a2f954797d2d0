// Package checkout orchestrates the purchase pipeline: plan lookup, coupon
// evaluation, and creation of a hosted payment session with the external
// provider.
package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/streamcart/streamcart/internal/domain/coupon"
	"github.com/streamcart/streamcart/internal/domain/plan"
	"github.com/streamcart/streamcart/internal/session"
)

// ErrInvalidPlan is returned when checkout is requested for an unknown plan.
var ErrInvalidPlan = errors.New("invalid plan")

// LineItem is one priced entry in a payment session request. UnitAmountMinor
// is in the provider's minor currency units (final price * 100).
type LineItem struct {
	Name            string
	UnitAmountMinor int64
	Quantity        int64
}

// SessionRequest describes the hosted payment session asked of the provider.
type SessionRequest struct {
	Currency   string
	LineItems  []LineItem
	SuccessURL string
	CancelURL  string
}

// PaymentProvider creates hosted payment sessions. Creation is a single
// blocking attempt with no retry: it is not safe to retry blindly without an
// idempotency key, which this design does not carry.
type PaymentProvider interface {
	CreateSession(ctx context.Context, req SessionRequest) (redirectURL string, err error)
}

// Config holds the non-dependency knobs of the orchestrator.
type Config struct {
	// Currency is the fixed ISO currency code for all sessions.
	Currency string
	// BaseURL is the externally visible origin used to build the success
	// and cancel redirect targets.
	BaseURL string
}

// Service implements the checkout orchestration.
type Service struct {
	cfg      Config
	plans    plan.Repository
	coupons  *coupon.Evaluator
	sessions session.Store
	provider PaymentProvider
}

// NewService wires the orchestrator with its collaborators.
func NewService(
	cfg Config,
	plans plan.Repository,
	coupons *coupon.Evaluator,
	sessions session.Store,
	provider PaymentProvider,
) *Service {
	return &Service{
		cfg:      cfg,
		plans:    plans,
		coupons:  coupons,
		sessions: sessions,
		provider: provider,
	}
}

// StartCheckout resolves the plan, prices it with the session's coupon, and
// creates a payment session. A coupon that turns out invalid or expired is
// dropped from the session and the base price is charged; a bad coupon never
// blocks a purchase. Provider failures are surfaced to the caller as-is.
func (s *Service) StartCheckout(ctx context.Context, planID int64, sess *session.State, now time.Time) (string, error) {
	p, err := s.plans.GetByID(ctx, planID)
	if err != nil {
		if errors.Is(err, plan.ErrNotFound) {
			return "", ErrInvalidPlan
		}
		return "", errors.Wrap(err, "resolve plan")
	}

	final, outcome, err := s.coupons.Evaluate(ctx, sess.CouponCode, p.Price, now)
	if err != nil {
		return "", errors.Wrap(err, "evaluate coupon")
	}

	if outcome == coupon.OutcomeInvalid || outcome == coupon.OutcomeExpired {
		zctx.From(ctx).Info("Dropping rejected coupon",
			zap.String("code", sess.CouponCode),
			zap.String("outcome", string(outcome)),
		)
		if err := s.sessions.ClearCoupon(ctx, sess.Token); err != nil {
			return "", errors.Wrap(err, "clear session coupon")
		}
		sess.CouponCode = ""
	}

	redirectURL, err := s.provider.CreateSession(ctx, SessionRequest{
		Currency: s.cfg.Currency,
		LineItems: []LineItem{{
			Name:            p.Name,
			UnitAmountMinor: final * 100,
			Quantity:        1,
		}},
		SuccessURL: fmt.Sprintf("%s/api/checkout/success?plan=%d", s.cfg.BaseURL, p.ID),
		CancelURL:  s.cfg.BaseURL + "/api/plans",
	})
	if err != nil {
		return "", err
	}

	return redirectURL, nil
}
