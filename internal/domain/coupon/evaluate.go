package coupon

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
)

// Outcome describes the result of evaluating a coupon code against a price.
type Outcome string

const (
	// OutcomeApplied means the coupon discounted the price.
	OutcomeApplied Outcome = "applied"
	// OutcomeNone means no code was supplied.
	OutcomeNone Outcome = "none"
	// OutcomeInvalid means the code does not match any coupon.
	OutcomeInvalid Outcome = "invalid"
	// OutcomeExpired means the coupon exists but its expiry has passed.
	OutcomeExpired Outcome = "expired"
)

// Normalize canonicalizes a user-supplied coupon code for lookup.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Apply computes the discounted price for a coupon. The result never goes
// below zero; a percentage above 100 therefore yields zero. Upper-bound
// validation of the percentage is the creator's job, not Apply's.
func Apply(c *Coupon, base int64) int64 {
	var final int64
	switch c.Kind {
	case KindFlat:
		final = base - c.Amount
	case KindPercent:
		final = base * (100 - c.Amount) / 100
	default:
		return base
	}
	if final < 0 {
		return 0
	}
	return final
}

// Evaluate resolves a coupon code against a base price at the given instant.
// It is deterministic: the caller supplies now, and the coupon itself carries
// the expiry. An empty code yields OutcomeNone; an unknown code
// OutcomeInvalid; a past expiry OutcomeExpired. In every non-applied case the
// base price is returned unchanged.
func Evaluate(c *Coupon, base int64, now time.Time) (int64, Outcome) {
	if c == nil {
		return base, OutcomeInvalid
	}
	if c.ExpiresAt != nil && now.After(*c.ExpiresAt) {
		return base, OutcomeExpired
	}
	return Apply(c, base), OutcomeApplied
}

// Evaluator looks up coupon codes in a Repository and evaluates them.
type Evaluator struct {
	repo Repository
}

// NewEvaluator creates an Evaluator backed by the given Repository.
func NewEvaluator(repo Repository) *Evaluator {
	return &Evaluator{repo: repo}
}

// Evaluate normalizes the code, looks it up, and delegates to Evaluate.
// Lookup misses map to OutcomeInvalid; storage failures propagate.
func (e *Evaluator) Evaluate(ctx context.Context, code string, base int64, now time.Time) (int64, Outcome, error) {
	code = Normalize(code)
	if code == "" {
		return base, OutcomeNone, nil
	}

	c, err := e.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return base, OutcomeInvalid, nil
		}
		return base, OutcomeNone, errors.Wrap(err, "lookup coupon")
	}

	final, outcome := Evaluate(c, base, now)
	return final, outcome, nil
}
