// Package payment adapts the Stripe Checkout API to the checkout
// orchestrator's PaymentProvider contract.
package payment

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/stripe/stripe-go/v84"

	"github.com/streamcart/streamcart/internal/domain/checkout"
)

var _ checkout.PaymentProvider = (*StripeProvider)(nil)

// StripeProvider creates hosted Stripe Checkout sessions in payment mode.
type StripeProvider struct {
	sc *stripe.Client
}

// NewStripeProvider creates a provider authenticated with the given secret key.
func NewStripeProvider(secretKey string) *StripeProvider {
	return &StripeProvider{sc: stripe.NewClient(secretKey)}
}

// CreateSession creates a one-off card payment session and returns the
// provider-hosted URL the customer must be redirected to. A single attempt
// is made; Stripe errors are returned to the caller untouched.
func (p *StripeProvider) CreateSession(ctx context.Context, req checkout.SessionRequest) (string, error) {
	items := make([]*stripe.CheckoutSessionCreateLineItemParams, len(req.LineItems))
	for i, li := range req.LineItems {
		items[i] = &stripe.CheckoutSessionCreateLineItemParams{
			PriceData: &stripe.CheckoutSessionCreateLineItemPriceDataParams{
				Currency: stripe.String(req.Currency),
				ProductData: &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
					Name: stripe.String(li.Name),
				},
				UnitAmount: stripe.Int64(li.UnitAmountMinor),
			},
			Quantity: stripe.Int64(li.Quantity),
		}
	}

	params := &stripe.CheckoutSessionCreateParams{
		PaymentMethodTypes: []*string{stripe.String("card")},
		LineItems:          items,
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:         stripe.String(req.SuccessURL),
		CancelURL:          stripe.String(req.CancelURL),
	}

	sess, err := p.sc.V1CheckoutSessions.Create(ctx, params)
	if err != nil {
		return "", err
	}
	if sess.URL == "" {
		return "", errors.New("stripe returned session without redirect URL")
	}

	return sess.URL, nil
}
