package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/streamcart/streamcart/internal/domain/checkout"
	"github.com/streamcart/streamcart/internal/domain/coupon"
	"github.com/streamcart/streamcart/internal/domain/plan"
	"github.com/streamcart/streamcart/internal/session"
)

// Recorder persists orders when the payment provider redirects the customer
// back to the success endpoint.
//
// The recorder trusts the redirect: there is no webhook or signed receipt
// tying the recorded amount to a provider-confirmed charge, and no
// idempotency key, so refreshing the success page records a second order.
// Both gaps are inherited from the provider contract this service exposes;
// closing them changes the external interface.
type Recorder struct {
	plans    plan.Repository
	coupons  *coupon.Evaluator
	orders   Repository
	sessions session.Store
}

// NewRecorder wires a Recorder with its collaborators.
func NewRecorder(
	plans plan.Repository,
	coupons *coupon.Evaluator,
	orders Repository,
	sessions session.Store,
) *Recorder {
	return &Recorder{
		plans:    plans,
		coupons:  coupons,
		orders:   orders,
		sessions: sessions,
	}
}

// Record persists the order for a completed checkout. The session coupon is
// re-evaluated against the plan's price so the stored amount matches what the
// checkout charged. Whatever happens, the session coupon is cleared before
// returning so a stale code never leaks into the next purchase.
func (r *Recorder) Record(ctx context.Context, planID int64, sess *session.State, now time.Time) (int64, error) {
	defer func() {
		if err := r.sessions.ClearCoupon(ctx, sess.Token); err != nil {
			zctx.From(ctx).Error("Failed to clear session coupon",
				zap.String("token", sess.Token),
				zap.Error(err),
			)
		}
	}()

	p, err := r.plans.GetByID(ctx, planID)
	if err != nil {
		if errors.Is(err, plan.ErrNotFound) {
			return 0, checkout.ErrInvalidPlan
		}
		return 0, errors.Wrap(err, "resolve plan")
	}

	amount, outcome, err := r.coupons.Evaluate(ctx, sess.CouponCode, p.Price, now)
	if err != nil {
		return 0, errors.Wrap(err, "evaluate coupon")
	}

	code := ""
	if outcome == coupon.OutcomeApplied {
		code = coupon.Normalize(sess.CouponCode)
	}

	id, err := r.orders.Create(ctx, &Order{
		UserEmail:  sess.UserEmail,
		PlanID:     p.ID,
		PlanName:   p.Name,
		Amount:     amount,
		CouponCode: code,
		CreatedAt:  now,
	})
	if err != nil {
		return 0, errors.Wrap(err, "create order")
	}

	return id, nil
}
