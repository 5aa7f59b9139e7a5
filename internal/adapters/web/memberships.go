package web

import (
	"net/http"

	"github.com/shopspring/decimal"

	"autoshop-crm/internal/app"
	"autoshop-crm/internal/core"
)

// apiListMemberships handles GET /api/memberships?customer_id=.
func (h *Handler) apiListMemberships(w http.ResponseWriter, r *http.Request) {
	customerID, err := optionalIntQuery(r, "customer_id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	list, err := h.svc.ListMemberships(r.Context(), customerID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeMemberships(w, list)
}

// apiCreateMembership handles POST /api/memberships.
func (h *Handler) apiCreateMembership(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CustomerID   int               `json:"customer_id"`
		Plan         string            `json:"plan"`
		BillingCycle core.BillingCycle `json:"billing_cycle"`
		Price        decimal.Decimal   `json:"price"`
		StartDate    string            `json:"start_date"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	in := core.MembershipInput{
		CustomerID:   body.CustomerID,
		Plan:         body.Plan,
		BillingCycle: body.BillingCycle,
		Price:        body.Price,
	}
	if body.StartDate != "" {
		d, err := app.ParseDate("start_date", body.StartDate)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		in.StartDate = d
	}

	m, err := h.svc.CreateMembership(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, m)
}

// apiDueMemberships handles GET /api/memberships/due?as_of=.
func (h *Handler) apiDueMemberships(w http.ResponseWriter, r *http.Request) {
	asOf := h.now().UTC()
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		d, err := app.ParseEndDate("as_of", raw)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		asOf = d
	}
	list, err := h.svc.ListDueMemberships(r.Context(), asOf)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeMemberships(w, list)
}

// apiRenewMembership handles POST /api/memberships/{id}/renew.
// An empty body bills at the current time.
func (h *Handler) apiRenewMembership(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	billedAt := h.now().UTC()
	if r.ContentLength > 0 {
		var body struct {
			BilledAt string `json:"billed_at"`
		}
		if !decodeJSON(w, r, &body) {
			return
		}
		if body.BilledAt != "" {
			d, err := app.ParseDate("billed_at", body.BilledAt)
			if err != nil {
				h.writeServiceError(w, r, err)
				return
			}
			billedAt = d
		}
	}

	m, err := h.svc.RenewMembership(r.Context(), id, billedAt)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, m)
}

// apiCancelMembership handles POST /api/memberships/{id}/cancel.
func (h *Handler) apiCancelMembership(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	m, err := h.svc.CancelMembership(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, m)
}

func writeMemberships(w http.ResponseWriter, list []core.Membership) {
	if list == nil {
		list = []core.Membership{}
	}
	writeJSON(w, list)
}
