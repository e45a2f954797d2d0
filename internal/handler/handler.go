// Package handler exposes the storefront over HTTP. It is routing glue:
// every endpoint parses the request, delegates to a domain collaborator,
// and encodes the result. No business rules live here.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/streamcart/streamcart/internal/domain/checkout"
	"github.com/streamcart/streamcart/internal/domain/coupon"
	"github.com/streamcart/streamcart/internal/domain/order"
	"github.com/streamcart/streamcart/internal/domain/plan"
	"github.com/streamcart/streamcart/internal/domain/user"
	"github.com/streamcart/streamcart/internal/invoice"
	"github.com/streamcart/streamcart/internal/session"
)

// sessionCookie is the name of the cart session token cookie.
const sessionCookie = "cart_session"

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// AdminUser and AdminPass protect the /admin endpoints via basic auth.
	AdminUser string
	AdminPass string
	// CookieSecure marks the session cookie Secure (on behind TLS).
	CookieSecure bool
}

// Handler routes storefront requests to the domain services.
type Handler struct {
	cfg      Config
	plans    plan.Repository
	coupons  coupon.Repository
	eval     *coupon.Evaluator
	checkout *checkout.Service
	recorder *order.Recorder
	orders   order.Repository
	users    *user.Service
	userRepo user.Repository
	sessions session.Store
	invoices *invoice.Renderer

	// now is the single time source for request handling, injectable in tests.
	now func() time.Time
}

// New constructs a Handler with the required collaborators.
func New(
	cfg Config,
	plans plan.Repository,
	coupons coupon.Repository,
	eval *coupon.Evaluator,
	checkoutSvc *checkout.Service,
	recorder *order.Recorder,
	orders order.Repository,
	users *user.Service,
	userRepo user.Repository,
	sessions session.Store,
	invoices *invoice.Renderer,
) *Handler {
	return &Handler{
		cfg:      cfg,
		plans:    plans,
		coupons:  coupons,
		eval:     eval,
		checkout: checkoutSvc,
		recorder: recorder,
		orders:   orders,
		users:    users,
		userRepo: userRepo,
		sessions: sessions,
		invoices: invoices,
		now:      time.Now,
	}
}

// Router builds the chi router for all storefront and admin endpoints.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Route("/api", func(r chi.Router) {
		r.Get("/plans", h.listPlans)
		r.Get("/plans/{id}", h.getPlan)

		r.Group(func(r chi.Router) {
			r.Use(h.withSession)

			r.Post("/cart/coupon", h.applyCoupon)
			r.Delete("/cart/coupon", h.clearCoupon)

			r.Post("/checkout/{id}", h.startCheckout)
			r.Get("/checkout/success", h.checkoutSuccess)

			r.Post("/auth/register", h.register)
			r.Post("/auth/login", h.login)
			r.Post("/auth/logout", h.logout)
		})

		r.Get("/orders/{id}/invoice", h.orderInvoice)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(chimw.BasicAuth("admin", map[string]string{h.cfg.AdminUser: h.cfg.AdminPass}))

		r.Get("/stats", h.adminStats)
		r.Get("/coupons", h.adminListCoupons)
		r.Post("/coupons", h.adminCreateCoupon)
		r.Delete("/coupons/{code}", h.adminDeleteCoupon)
	})

	return r
}

// sessionKey is the context key for the loaded cart session.
type sessionKey struct{}

// withSession loads the cart session referenced by the request cookie,
// creating a new session (and setting the cookie) when the token is missing
// or unknown.
func (h *Handler) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var sess *session.State
		if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
			if s, err := h.sessions.Get(ctx, c.Value); err == nil {
				sess = s
			}
		}

		if sess == nil {
			s, err := h.sessions.Create(ctx, session.NewToken())
			if err != nil {
				h.serverError(w, r, err)
				return
			}
			sess = s
			http.SetCookie(w, &http.Cookie{
				Name:     sessionCookie,
				Value:    sess.Token,
				Path:     "/",
				HttpOnly: true,
				Secure:   h.cfg.CookieSecure,
				SameSite: http.SameSiteLaxMode,
			})
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, sessionKey{}, sess)))
	})
}

// sessionFrom returns the cart session stored by withSession.
func sessionFrom(ctx context.Context) *session.State {
	s, _ := ctx.Value(sessionKey{}).(*session.State)
	return s
}

// writeJSON encodes a response body built by fn and writes it with status.
func writeJSON(w http.ResponseWriter, status int, fn func(e *jx.Encoder)) {
	var e jx.Encoder
	fn(&e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeError writes the standard {code, message} error body.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("code")
		e.Int(status)
		e.FieldStart("message")
		e.Str(msg)
		e.ObjEnd()
	})
}

// serverError logs err and responds 500 without leaking details.
func (h *Handler) serverError(w http.ResponseWriter, r *http.Request, err error) {
	zctx.From(r.Context()).Error("Request failed",
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, "internal error")
}
