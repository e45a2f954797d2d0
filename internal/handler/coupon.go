package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/streamcart/streamcart/internal/domain/coupon"
	"github.com/streamcart/streamcart/internal/domain/plan"
)

// applyCoupon stores a coupon code on the cart session, replacing any
// previously applied code. When a plan id is supplied the response carries a
// price preview; the authoritative evaluation still happens at checkout.
func (h *Handler) applyCoupon(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	var (
		code   string
		planID int64
	)
	d := jx.DecodeBytes(body)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "code":
			v, err := d.Str()
			code = v
			return err
		case "planId":
			v, err := d.Int64()
			planID = v
			return err
		default:
			return d.Skip()
		}
	}); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	code = coupon.Normalize(code)
	if code == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}

	sess := sessionFrom(r.Context())
	if err := h.sessions.SetCoupon(r.Context(), sess.Token, code); err != nil {
		h.serverError(w, r, err)
		return
	}

	// Optional preview against a plan's price.
	if planID > 0 {
		p, err := h.plans.GetByID(r.Context(), planID)
		if err != nil {
			if errors.Is(err, plan.ErrNotFound) {
				writeError(w, http.StatusNotFound, "plan not found")
				return
			}
			h.serverError(w, r, err)
			return
		}

		final, outcome, err := h.eval.Evaluate(r.Context(), code, p.Price, h.now())
		if err != nil {
			h.serverError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
			e.ObjStart()
			e.FieldStart("code")
			e.Str(code)
			e.FieldStart("outcome")
			e.Str(string(outcome))
			e.FieldStart("price")
			e.Int64(p.Price)
			e.FieldStart("finalPrice")
			e.Int64(final)
			e.ObjEnd()
		})
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("code")
		e.Str(code)
		e.ObjEnd()
	})
}

// clearCoupon removes the coupon from the cart session.
func (h *Handler) clearCoupon(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	if err := h.sessions.ClearCoupon(r.Context(), sess.Token); err != nil {
		h.serverError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
