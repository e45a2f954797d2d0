package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/streamcart/streamcart/internal/domain/plan"
)

func encodePlan(e *jx.Encoder, p plan.Plan) {
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(p.ID)
	e.FieldStart("name")
	e.Str(p.Name)
	e.FieldStart("price")
	e.Int64(p.Price)
	e.FieldStart("logo")
	e.Str(p.Logo)
	e.ObjEnd()
}

func (h *Handler) listPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.plans.List(r.Context())
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for _, p := range plans {
			encodePlan(e, p)
		}
		e.ArrEnd()
	})
}

func (h *Handler) getPlan(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid plan id")
		return
	}

	p, err := h.plans.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, plan.ErrNotFound) {
			writeError(w, http.StatusNotFound, "plan not found")
			return
		}
		h.serverError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodePlan(e, *p)
	})
}
