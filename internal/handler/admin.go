package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/streamcart/streamcart/internal/domain/coupon"
)

// adminStats serves the dashboard aggregates: user count, order count,
// revenue, and per-plan order counts.
func (h *Handler) adminStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.orders.Stats(r.Context())
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	users, err := h.userRepo.Count(r.Context())
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("users")
		e.Int64(users)
		e.FieldStart("orders")
		e.Int64(stats.Orders)
		e.FieldStart("revenue")
		e.Int64(stats.Revenue)
		e.FieldStart("ordersByPlan")
		e.ArrStart()
		for _, pc := range stats.ByPlan {
			e.ObjStart()
			e.FieldStart("planId")
			e.Int64(pc.PlanID)
			e.FieldStart("planName")
			e.Str(pc.PlanName)
			e.FieldStart("orders")
			e.Int64(pc.Orders)
			e.ObjEnd()
		}
		e.ArrEnd()
		e.ObjEnd()
	})
}

func encodeCoupon(e *jx.Encoder, c coupon.Coupon) {
	e.ObjStart()
	e.FieldStart("code")
	e.Str(c.Code)
	e.FieldStart("kind")
	e.Str(string(c.Kind))
	e.FieldStart("amount")
	e.Int64(c.Amount)
	e.FieldStart("expiresAt")
	if c.ExpiresAt != nil {
		e.Str(c.ExpiresAt.Format(time.RFC3339))
	} else {
		e.Null()
	}
	e.ObjEnd()
}

func (h *Handler) adminListCoupons(w http.ResponseWriter, r *http.Request) {
	coupons, err := h.coupons.List(r.Context())
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for _, c := range coupons {
			encodeCoupon(e, c)
		}
		e.ArrEnd()
	})
}

// adminCreateCoupon creates a coupon. Range validation happens here, at
// creation time: the evaluator itself accepts whatever is stored.
func (h *Handler) adminCreateCoupon(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	var (
		c         coupon.Coupon
		expiresAt string
	)
	d := jx.DecodeBytes(body)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "code":
			var v string
			v, err = d.Str()
			c.Code = coupon.Normalize(v)
		case "kind":
			var v string
			v, err = d.Str()
			c.Kind = coupon.Kind(v)
		case "amount":
			c.Amount, err = d.Int64()
		case "expiresAt":
			if d.Next() == jx.Null {
				return d.Null()
			}
			expiresAt, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	}); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if c.Code == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}
	if c.Kind != coupon.KindFlat && c.Kind != coupon.KindPercent {
		writeError(w, http.StatusBadRequest, "kind must be flat or percent")
		return
	}
	if c.Amount < 0 {
		writeError(w, http.StatusBadRequest, "amount must not be negative")
		return
	}
	if c.Kind == coupon.KindPercent && c.Amount > 100 {
		writeError(w, http.StatusBadRequest, "percent amount must be at most 100")
		return
	}
	if expiresAt != "" {
		t, err := time.Parse(time.RFC3339, expiresAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "expiresAt must be RFC 3339")
			return
		}
		c.ExpiresAt = &t
	}

	if err := h.coupons.Create(r.Context(), &c); err != nil {
		if errors.Is(err, coupon.ErrExists) {
			writeError(w, http.StatusConflict, "coupon already exists")
			return
		}
		h.serverError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		encodeCoupon(e, c)
	})
}

func (h *Handler) adminDeleteCoupon(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	if err := h.coupons.Delete(r.Context(), code); err != nil {
		if errors.Is(err, coupon.ErrNotFound) {
			writeError(w, http.StatusNotFound, "coupon not found")
			return
		}
		h.serverError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
