package invoice

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamcart/streamcart/internal/domain/order"
)

func testOrder() *order.Order {
	return &order.Order{
		ID:        7,
		UserEmail: "alice@example.com",
		PlanID:    1,
		PlanName:  "Netflix Standard",
		Amount:    149,
		CreatedAt: time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
	}
}

func TestRender(t *testing.T) {
	r := New("StreamCart", "INR")

	got, err := r.Render(testOrder())
	require.NoError(t, err)

	require.NotEmpty(t, got)
	assert.Equal(t, "%PDF", string(got[:4]), "output starts with the PDF magic")
	assert.Contains(t, string(got[len(got)-16:]), "%%EOF")
}

func TestRender_Guest(t *testing.T) {
	r := New("StreamCart", "INR")
	o := testOrder()
	o.UserEmail = ""

	got, err := r.Render(o)
	require.NoError(t, err)
	require.NotEmpty(t, got)
}

func TestRender_WithCoupon(t *testing.T) {
	r := New("StreamCart", "INR")
	o := testOrder()
	o.CouponCode = "SAVE50"

	withCoupon, err := r.Render(o)
	require.NoError(t, err)

	o.CouponCode = ""
	without, err := r.Render(o)
	require.NoError(t, err)

	assert.NotEqual(t, withCoupon, without, "coupon line changes the document")
}

func TestRender_Deterministic(t *testing.T) {
	r := New("StreamCart", "INR")

	a, err := r.Render(testOrder())
	require.NoError(t, err)
	b, err := r.Render(testOrder())
	require.NoError(t, err)

	assert.Equal(t, a, b)
}
