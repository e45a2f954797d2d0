package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamcart/streamcart/internal/domain/checkout"
	"github.com/streamcart/streamcart/internal/domain/coupon"
	"github.com/streamcart/streamcart/internal/domain/order"
	"github.com/streamcart/streamcart/internal/domain/plan"
	"github.com/streamcart/streamcart/internal/domain/user"
	"github.com/streamcart/streamcart/internal/invoice"
	"github.com/streamcart/streamcart/internal/session"
)

// --- In-memory fakes ---

type memPlans struct {
	plans []plan.Plan
}

func (m *memPlans) List(_ context.Context) ([]plan.Plan, error) {
	return m.plans, nil
}

func (m *memPlans) GetByID(_ context.Context, id int64) (*plan.Plan, error) {
	for i := range m.plans {
		if m.plans[i].ID == id {
			return &m.plans[i], nil
		}
	}
	return nil, plan.ErrNotFound
}

type memCoupons struct {
	byCode map[string]*coupon.Coupon
}

func (m *memCoupons) FindByCode(_ context.Context, code string) (*coupon.Coupon, error) {
	c, ok := m.byCode[code]
	if !ok {
		return nil, coupon.ErrNotFound
	}
	return c, nil
}

func (m *memCoupons) List(_ context.Context) ([]coupon.Coupon, error) {
	out := make([]coupon.Coupon, 0, len(m.byCode))
	for _, c := range m.byCode {
		out = append(out, *c)
	}
	return out, nil
}

func (m *memCoupons) Create(_ context.Context, c *coupon.Coupon) error {
	if _, ok := m.byCode[c.Code]; ok {
		return coupon.ErrExists
	}
	m.byCode[c.Code] = c
	return nil
}

func (m *memCoupons) Delete(_ context.Context, code string) error {
	code = coupon.Normalize(code)
	if _, ok := m.byCode[code]; !ok {
		return coupon.ErrNotFound
	}
	delete(m.byCode, code)
	return nil
}

type memOrders struct {
	orders []order.Order
}

func (m *memOrders) Create(_ context.Context, o *order.Order) (int64, error) {
	id := int64(len(m.orders) + 1)
	stored := *o
	stored.ID = id
	m.orders = append(m.orders, stored)
	return id, nil
}

func (m *memOrders) GetByID(_ context.Context, id int64) (*order.Order, error) {
	for i := range m.orders {
		if m.orders[i].ID == id {
			return &m.orders[i], nil
		}
	}
	return nil, order.ErrNotFound
}

func (m *memOrders) Stats(_ context.Context) (*order.Stats, error) {
	st := &order.Stats{}
	byPlan := make(map[int64]*order.PlanCount)
	for _, o := range m.orders {
		st.Orders++
		st.Revenue += o.Amount
		pc, ok := byPlan[o.PlanID]
		if !ok {
			pc = &order.PlanCount{PlanID: o.PlanID, PlanName: o.PlanName}
			byPlan[o.PlanID] = pc
		}
		pc.Orders++
	}
	for _, pc := range byPlan {
		st.ByPlan = append(st.ByPlan, *pc)
	}
	return st, nil
}

type memSessions struct {
	byToken map[string]*session.State
}

func (m *memSessions) Get(_ context.Context, token string) (*session.State, error) {
	s, ok := m.byToken[token]
	if !ok {
		return nil, session.ErrNotFound
	}
	st := *s
	return &st, nil
}

func (m *memSessions) Create(_ context.Context, token string) (*session.State, error) {
	s := &session.State{Token: token, CreatedAt: time.Now()}
	m.byToken[token] = s
	st := *s
	return &st, nil
}

func (m *memSessions) SetCoupon(_ context.Context, token, code string) error {
	s, ok := m.byToken[token]
	if !ok {
		return session.ErrNotFound
	}
	s.CouponCode = code
	return nil
}

func (m *memSessions) ClearCoupon(ctx context.Context, token string) error {
	return m.SetCoupon(ctx, token, "")
}

func (m *memSessions) SetUser(_ context.Context, token, email string) error {
	s, ok := m.byToken[token]
	if !ok {
		return session.ErrNotFound
	}
	s.UserEmail = email
	return nil
}

func (m *memSessions) Delete(_ context.Context, token string) error {
	delete(m.byToken, token)
	return nil
}

type memUsers struct {
	byEmail map[string]*user.User
}

func (m *memUsers) Create(_ context.Context, u *user.User) (int64, error) {
	if _, ok := m.byEmail[u.Email]; ok {
		return 0, user.ErrEmailTaken
	}
	id := int64(len(m.byEmail) + 1)
	stored := *u
	stored.ID = id
	m.byEmail[u.Email] = &stored
	return id, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*user.User, error) {
	u, ok := m.byEmail[email]
	if !ok {
		return nil, user.ErrNotFound
	}
	return u, nil
}

func (m *memUsers) Count(_ context.Context) (int64, error) {
	return int64(len(m.byEmail)), nil
}

type fakeProvider struct {
	lastReq *checkout.SessionRequest
	url     string
	err     error
}

func (f *fakeProvider) CreateSession(_ context.Context, req checkout.SessionRequest) (string, error) {
	f.lastReq = &req
	if f.err != nil {
		return "", f.err
	}
	return f.url, nil
}

// --- Test harness ---

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

type harness struct {
	router   http.Handler
	plans    *memPlans
	coupons  *memCoupons
	orders   *memOrders
	sessions *memSessions
	users    *memUsers
	provider *fakeProvider
	cookie   *http.Cookie
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		plans: &memPlans{plans: []plan.Plan{
			{ID: 1, Name: "Netflix Standard", Price: 199, Logo: "netflix.png"},
			{ID: 2, Name: "Zee5 Premium", Price: 99, Logo: "zee5.png"},
		}},
		coupons: &memCoupons{byCode: map[string]*coupon.Coupon{
			"SAVE50": {Code: "SAVE50", Kind: coupon.KindFlat, Amount: 50},
		}},
		orders:   &memOrders{},
		sessions: &memSessions{byToken: make(map[string]*session.State)},
		users:    &memUsers{byEmail: make(map[string]*user.User)},
		provider: &fakeProvider{url: "https://pay.example.com/cs_test_123"},
	}

	eval := coupon.NewEvaluator(h.coupons)
	checkoutSvc := checkout.NewService(
		checkout.Config{Currency: "inr", BaseURL: "https://shop.example.com"},
		h.plans, eval, h.sessions, h.provider,
	)
	recorder := order.NewRecorder(h.plans, eval, h.orders, h.sessions)

	handler := New(
		Config{AdminUser: "admin", AdminPass: "hunter2"},
		h.plans,
		h.coupons,
		eval,
		checkoutSvc,
		recorder,
		h.orders,
		user.NewService(h.users),
		h.users,
		h.sessions,
		invoice.New("StreamCart", "INR"),
	)
	handler.now = func() time.Time { return testNow }

	h.router = handler.Router()
	return h
}

// do performs a request, carrying the cart session cookie across calls.
func (h *harness) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if h.cookie != nil {
		req.AddCookie(h.cookie)
	}

	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)

	for _, c := range w.Result().Cookies() {
		if c.Name == sessionCookie {
			h.cookie = c
		}
	}
	return w
}

func (h *harness) doAdmin(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.SetBasicAuth("admin", "hunter2")

	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func decodeObj(t *testing.T, body []byte) map[string]jx.Raw {
	t.Helper()

	fields := make(map[string]jx.Raw)
	d := jx.DecodeBytes(body)
	require.NoError(t, d.Obj(func(d *jx.Decoder, key string) error {
		raw, err := d.Raw()
		fields[key] = raw
		return err
	}))
	return fields
}

func fieldInt(t *testing.T, fields map[string]jx.Raw, key string) int64 {
	t.Helper()

	raw, ok := fields[key]
	require.True(t, ok, "missing field %q", key)
	v, err := jx.DecodeBytes(raw).Int64()
	require.NoError(t, err)
	return v
}

func fieldStr(t *testing.T, fields map[string]jx.Raw, key string) string {
	t.Helper()

	raw, ok := fields[key]
	require.True(t, ok, "missing field %q", key)
	v, err := jx.DecodeBytes(raw).Str()
	require.NoError(t, err)
	return v
}

// --- Plans ---

func TestListPlans(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodGet, "/api/plans", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var count int
	d := jx.DecodeBytes(w.Body.Bytes())
	require.NoError(t, d.Arr(func(d *jx.Decoder) error {
		count++
		return d.Skip()
	}))
	assert.Equal(t, 2, count)
}

func TestGetPlan(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodGet, "/api/plans/1", "")
	require.Equal(t, http.StatusOK, w.Code)

	fields := decodeObj(t, w.Body.Bytes())
	assert.Equal(t, int64(1), fieldInt(t, fields, "id"))
	assert.Equal(t, "Netflix Standard", fieldStr(t, fields, "name"))
	assert.Equal(t, int64(199), fieldInt(t, fields, "price"))
}

func TestGetPlan_NotFound(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodGet, "/api/plans/42", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetPlan_BadID(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodGet, "/api/plans/abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// --- Cart session + coupon ---

func TestSessionCookieIssued(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodPost, "/api/cart/coupon", `{"code":"SAVE50"}`)
	require.Equal(t, http.StatusOK, w.Code)

	require.NotNil(t, h.cookie)
	assert.Equal(t, sessionCookie, h.cookie.Name)
	assert.True(t, h.cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, h.cookie.SameSite)
}

func TestApplyCoupon_Preview(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodPost, "/api/cart/coupon", `{"code":"save50","planId":1}`)
	require.Equal(t, http.StatusOK, w.Code)

	fields := decodeObj(t, w.Body.Bytes())
	assert.Equal(t, "SAVE50", fieldStr(t, fields, "code"))
	assert.Equal(t, "applied", fieldStr(t, fields, "outcome"))
	assert.Equal(t, int64(199), fieldInt(t, fields, "price"))
	assert.Equal(t, int64(149), fieldInt(t, fields, "finalPrice"))

	sess := h.sessions.byToken[h.cookie.Value]
	require.NotNil(t, sess)
	assert.Equal(t, "SAVE50", sess.CouponCode)
}

func TestApplyCoupon_UnknownCodeStoredAnyway(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodPost, "/api/cart/coupon", `{"code":"NOPE","planId":1}`)
	require.Equal(t, http.StatusOK, w.Code)

	fields := decodeObj(t, w.Body.Bytes())
	assert.Equal(t, "invalid", fieldStr(t, fields, "outcome"))
	assert.Equal(t, int64(199), fieldInt(t, fields, "finalPrice"))

	// The code stays on the session; checkout drops it later.
	sess := h.sessions.byToken[h.cookie.Value]
	assert.Equal(t, "NOPE", sess.CouponCode)
}

func TestApplyCoupon_ReplacesPrevious(t *testing.T) {
	h := newHarness(t)

	h.do(t, http.MethodPost, "/api/cart/coupon", `{"code":"OLD1"}`)
	h.do(t, http.MethodPost, "/api/cart/coupon", `{"code":"SAVE50"}`)

	sess := h.sessions.byToken[h.cookie.Value]
	assert.Equal(t, "SAVE50", sess.CouponCode)
}

func TestApplyCoupon_EmptyCode(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodPost, "/api/cart/coupon", `{"code":"   "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestClearCoupon(t *testing.T) {
	h := newHarness(t)

	h.do(t, http.MethodPost, "/api/cart/coupon", `{"code":"SAVE50"}`)
	w := h.do(t, http.MethodDelete, "/api/cart/coupon", "")
	require.Equal(t, http.StatusNoContent, w.Code)

	sess := h.sessions.byToken[h.cookie.Value]
	assert.Empty(t, sess.CouponCode)
}

// --- Checkout ---

func TestStartCheckout_Redirect(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodPost, "/api/checkout/1", "")
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "https://pay.example.com/cs_test_123", w.Header().Get("Location"))

	require.NotNil(t, h.provider.lastReq)
	assert.Equal(t, int64(19900), h.provider.lastReq.LineItems[0].UnitAmountMinor)
}

func TestStartCheckout_WithSessionCoupon(t *testing.T) {
	h := newHarness(t)

	h.do(t, http.MethodPost, "/api/cart/coupon", `{"code":"SAVE50"}`)
	w := h.do(t, http.MethodPost, "/api/checkout/1", "")
	require.Equal(t, http.StatusSeeOther, w.Code)

	require.NotNil(t, h.provider.lastReq)
	assert.Equal(t, int64(14900), h.provider.lastReq.LineItems[0].UnitAmountMinor)
}

func TestStartCheckout_UnknownPlan(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodPost, "/api/checkout/42", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Nil(t, h.provider.lastReq)
}

func TestStartCheckout_ProviderError(t *testing.T) {
	h := newHarness(t)
	h.provider.err = errors.New("no such payment method")

	w := h.do(t, http.MethodPost, "/api/checkout/1", "")
	require.Equal(t, http.StatusBadGateway, w.Code)

	fields := decodeObj(t, w.Body.Bytes())
	assert.Equal(t, "no such payment method", fieldStr(t, fields, "message"))
}

func TestCheckoutSuccess_RecordsOrder(t *testing.T) {
	h := newHarness(t)

	h.do(t, http.MethodPost, "/api/cart/coupon", `{"code":"SAVE50"}`)
	w := h.do(t, http.MethodGet, "/api/checkout/success?plan=1", "")
	require.Equal(t, http.StatusCreated, w.Code)

	fields := decodeObj(t, w.Body.Bytes())
	assert.Equal(t, int64(1), fieldInt(t, fields, "orderId"))

	require.Len(t, h.orders.orders, 1)
	o := h.orders.orders[0]
	assert.Equal(t, int64(149), o.Amount)
	assert.Equal(t, "SAVE50", o.CouponCode)

	sess := h.sessions.byToken[h.cookie.Value]
	assert.Empty(t, sess.CouponCode, "coupon consumed by the purchase")
}

// Refreshing the success page records a second order: the redirect carries
// no idempotency key, so the endpoint cannot tell a refresh from a new
// purchase.
func TestCheckoutSuccess_RefreshDuplicates(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodGet, "/api/checkout/success?plan=1", "")
	require.Equal(t, http.StatusCreated, w.Code)
	w = h.do(t, http.MethodGet, "/api/checkout/success?plan=1", "")
	require.Equal(t, http.StatusCreated, w.Code)

	assert.Len(t, h.orders.orders, 2)
}

func TestCheckoutSuccess_BadPlan(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodGet, "/api/checkout/success?plan=oops", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(t, http.MethodGet, "/api/checkout/success?plan=42", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// --- Auth ---

func TestRegisterLoginLogout(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodPost, "/api/auth/register", `{"name":"Alice","email":"Alice@Example.com","password":"s3cret"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	fields := decodeObj(t, w.Body.Bytes())
	assert.Equal(t, "alice@example.com", fieldStr(t, fields, "email"))

	sess := h.sessions.byToken[h.cookie.Value]
	assert.Equal(t, "alice@example.com", sess.UserEmail)

	w = h.do(t, http.MethodPost, "/api/auth/logout", "")
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, h.sessions.byToken[h.cookie.Value].UserEmail)

	w = h.do(t, http.MethodPost, "/api/auth/login", `{"email":"alice@example.com","password":"s3cret"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice@example.com", h.sessions.byToken[h.cookie.Value].UserEmail)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodPost, "/api/auth/register", `{"email":"a@b.com","password":"x"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = h.do(t, http.MethodPost, "/api/auth/register", `{"email":"a@b.com","password":"y"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestLogin_WrongPassword(t *testing.T) {
	h := newHarness(t)

	h.do(t, http.MethodPost, "/api/auth/register", `{"email":"a@b.com","password":"right"}`)
	w := h.do(t, http.MethodPost, "/api/auth/login", `{"email":"a@b.com","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogout_KeepsCart(t *testing.T) {
	h := newHarness(t)

	h.do(t, http.MethodPost, "/api/auth/register", `{"email":"a@b.com","password":"x"}`)
	h.do(t, http.MethodPost, "/api/cart/coupon", `{"code":"SAVE50"}`)
	h.do(t, http.MethodPost, "/api/auth/logout", "")

	sess := h.sessions.byToken[h.cookie.Value]
	assert.Empty(t, sess.UserEmail)
	assert.Equal(t, "SAVE50", sess.CouponCode, "signing out keeps the cart coupon")
}

// --- Invoice ---

func TestOrderInvoice(t *testing.T) {
	h := newHarness(t)

	h.do(t, http.MethodGet, "/api/checkout/success?plan=1", "")
	w := h.do(t, http.MethodGet, "/api/orders/1/invoice", "")
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "invoice-1.pdf")
	require.Greater(t, w.Body.Len(), 4)
	assert.Equal(t, "%PDF", w.Body.String()[:4])
}

func TestOrderInvoice_NotFound(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodGet, "/api/orders/42/invoice", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// --- Admin ---

func TestAdmin_RequiresAuth(t *testing.T) {
	h := newHarness(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
	req.SetBasicAuth("admin", "wrong")
	w = httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminStats(t *testing.T) {
	h := newHarness(t)

	h.do(t, http.MethodPost, "/api/auth/register", `{"email":"a@b.com","password":"x"}`)
	h.do(t, http.MethodGet, "/api/checkout/success?plan=1", "")
	h.do(t, http.MethodGet, "/api/checkout/success?plan=2", "")

	w := h.doAdmin(t, http.MethodGet, "/admin/stats", "")
	require.Equal(t, http.StatusOK, w.Code)

	fields := decodeObj(t, w.Body.Bytes())
	assert.Equal(t, int64(1), fieldInt(t, fields, "users"))
	assert.Equal(t, int64(2), fieldInt(t, fields, "orders"))
	assert.Equal(t, int64(298), fieldInt(t, fields, "revenue"))
}

func TestAdminCreateCoupon(t *testing.T) {
	h := newHarness(t)

	w := h.doAdmin(t, http.MethodPost, "/admin/coupons", `{"code":"ten","kind":"percent","amount":10}`)
	require.Equal(t, http.StatusCreated, w.Code)

	fields := decodeObj(t, w.Body.Bytes())
	assert.Equal(t, "TEN", fieldStr(t, fields, "code"))

	c, ok := h.coupons.byCode["TEN"]
	require.True(t, ok)
	assert.Equal(t, coupon.KindPercent, c.Kind)
	assert.Equal(t, int64(10), c.Amount)
}

func TestAdminCreateCoupon_Validation(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name string
		body string
	}{
		{name: "missing code", body: `{"kind":"flat","amount":10}`},
		{name: "bad kind", body: `{"code":"X","kind":"bogus","amount":10}`},
		{name: "negative amount", body: `{"code":"X","kind":"flat","amount":-5}`},
		{name: "percent above hundred", body: `{"code":"X","kind":"percent","amount":150}`},
		{name: "bad expiry", body: `{"code":"X","kind":"flat","amount":10,"expiresAt":"tomorrow"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := h.doAdmin(t, http.MethodPost, "/admin/coupons", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestAdminCreateCoupon_Duplicate(t *testing.T) {
	h := newHarness(t)

	w := h.doAdmin(t, http.MethodPost, "/admin/coupons", `{"code":"SAVE50","kind":"flat","amount":50}`)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAdminDeleteCoupon(t *testing.T) {
	h := newHarness(t)

	w := h.doAdmin(t, http.MethodDelete, "/admin/coupons/SAVE50", "")
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.NotContains(t, h.coupons.byCode, "SAVE50")

	w = h.doAdmin(t, http.MethodDelete, "/admin/coupons/SAVE50", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
