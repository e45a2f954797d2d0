package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/streamcart/streamcart/internal/domain/checkout"
)

// startCheckout creates a hosted payment session for the plan and redirects
// the customer to the provider. Provider failures surface their message
// verbatim; there is no retry.
func (h *Handler) startCheckout(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid plan id")
		return
	}

	sess := sessionFrom(r.Context())
	redirectURL, err := h.checkout.StartCheckout(r.Context(), id, sess, h.now())
	if err != nil {
		if errors.Is(err, checkout.ErrInvalidPlan) {
			writeError(w, http.StatusNotFound, "invalid plan")
			return
		}
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	http.Redirect(w, r, redirectURL, http.StatusSeeOther)
}

// checkoutSuccess records the order after the provider redirects the
// customer back. Refreshing this page records another order; the endpoint
// mirrors the provider contract and does not deduplicate.
func (h *Handler) checkoutSuccess(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.URL.Query().Get("plan"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid plan id")
		return
	}

	sess := sessionFrom(r.Context())
	orderID, err := h.recorder.Record(r.Context(), id, sess, h.now())
	if err != nil {
		if errors.Is(err, checkout.ErrInvalidPlan) {
			writeError(w, http.StatusNotFound, "invalid plan")
			return
		}
		h.serverError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("orderId")
		e.Int64(orderID)
		e.ObjEnd()
	})
}
