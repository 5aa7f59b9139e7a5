package web

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"autoshop-crm/internal/app"
	"autoshop-crm/internal/core"
	"autoshop-crm/internal/export"
)

// apiListSalesRecords handles GET /api/sales-records.
func (h *Handler) apiListSalesRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f core.SalesRecordFilter
	if v := q.Get("status"); v != "" {
		st := core.SalesStatus(v)
		f.Status = &st
	}
	if v := q.Get("payment_status"); v != "" {
		ps := core.PaymentStatus(v)
		f.PaymentStatus = &ps
	}
	var err error
	if f.CustomerID, err = optionalIntQuery(r, "customer_id"); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if f.SalesPersonID, err = optionalIntQuery(r, "sales_person_id"); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if f.From, err = optionalDate("from", q.Get("from")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if raw := q.Get("to"); raw != "" {
		to, err := app.ParseEndDate("to", raw)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		f.To = &to
	}
	if limit, err := optionalIntQuery(r, "limit"); err != nil {
		h.writeServiceError(w, r, err)
		return
	} else if limit != nil {
		f.Limit = *limit
	}

	result, err := h.svc.ListSalesRecords(r.Context(), f)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Records)
}

// apiCreateSalesRecord handles POST /api/sales-records.
// Subtotal and total in the body are ignored; they are always derived from the items.
func (h *Handler) apiCreateSalesRecord(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CustomerID    int                 `json:"customer_id"`
		SalesPersonID *int                `json:"sales_person_id"`
		SaleDate      string              `json:"sale_date"`
		Items         []core.LineItem     `json:"items"`
		Tax           decimal.Decimal     `json:"tax"`
		Discount      decimal.Decimal     `json:"discount"`
		Status        core.SalesStatus    `json:"status"`
		PaymentStatus core.PaymentStatus  `json:"payment_status"`
		PaymentMethod *core.PaymentMethod `json:"payment_method"`
		Notes         string              `json:"notes"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	req := app.CreateSalesRecordRequest{
		CustomerID:    body.CustomerID,
		Items:         body.Items,
		Tax:           body.Tax,
		Discount:      body.Discount,
		Status:        body.Status,
		PaymentStatus: body.PaymentStatus,
		PaymentMethod: body.PaymentMethod,
		Notes:         body.Notes,
	}
	// The sales person defaults to the signed-in user.
	if body.SalesPersonID != nil {
		req.SalesPersonID = *body.SalesPersonID
	} else if claims := authFromContext(r.Context()); claims != nil {
		req.SalesPersonID = claims.UserID
	}
	if body.SaleDate != "" {
		d, err := app.ParseDate("sale_date", body.SaleDate)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		req.SaleDate = d
	}

	result, err := h.svc.CreateSalesRecord(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, result.Record)
}

// apiGetSalesRecord handles GET /api/sales-records/{ref}.
func (h *Handler) apiGetSalesRecord(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetSalesRecord(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Record)
}

// apiUpdateSalesRecord handles PATCH /api/sales-records/{ref}.
func (h *Handler) apiUpdateSalesRecord(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CustomerID    *int              `json:"customer_id"`
		SalesPersonID *int              `json:"sales_person_id"`
		Items         []core.LineItem   `json:"items"`
		Tax           *decimal.Decimal  `json:"tax"`
		Discount      *decimal.Decimal  `json:"discount"`
		Status        *core.SalesStatus `json:"status"`
		Notes         *string           `json:"notes"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	result, err := h.svc.UpdateSalesRecord(r.Context(), chi.URLParam(r, "ref"), app.UpdateSalesRecordRequest{
		CustomerID:    body.CustomerID,
		SalesPersonID: body.SalesPersonID,
		Items:         body.Items,
		Tax:           body.Tax,
		Discount:      body.Discount,
		Status:        body.Status,
		Notes:         body.Notes,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Record)
}

// apiAddFollowUpNote handles POST /api/sales-records/{ref}/follow-up-notes.
func (h *Handler) apiAddFollowUpNote(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Content string `json:"content"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	authorID := 0
	if claims := authFromContext(r.Context()); claims != nil {
		authorID = claims.UserID
	}

	result, err := h.svc.AddFollowUpNote(r.Context(), chi.URLParam(r, "ref"), body.Content, authorID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, result.Record)
}

// apiUpdatePaymentStatus handles PUT /api/sales-records/{ref}/payment-status.
func (h *Handler) apiUpdatePaymentStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PaymentStatus core.PaymentStatus  `json:"payment_status"`
		PaymentMethod *core.PaymentMethod `json:"payment_method"`
		PaymentDate   string              `json:"payment_date"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	date, err := optionalDate("payment_date", body.PaymentDate)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	result, err := h.svc.UpdatePaymentStatus(r.Context(), chi.URLParam(r, "ref"), app.UpdatePaymentStatusRequest{
		Status:      body.PaymentStatus,
		Method:      body.PaymentMethod,
		PaymentDate: date,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Record)
}

// apiGatewayPayment handles POST /api/sales-records/{ref}/payments.
// A failed charge answers 402 and leaves the record untouched.
func (h *Handler) apiGatewayPayment(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Succeeded     bool                `json:"succeeded"`
		Amount        decimal.Decimal     `json:"amount"`
		PaymentMethod *core.PaymentMethod `json:"payment_method"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	result, err := h.svc.ApplyGatewayPayment(r.Context(), chi.URLParam(r, "ref"), app.GatewayPaymentRequest{
		Succeeded: body.Succeeded,
		Amount:    body.Amount,
		Method:    body.PaymentMethod,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Record)
}

// apiUpdateFollowUp handles PUT /api/sales-records/{ref}/follow-up.
func (h *Handler) apiUpdateFollowUp(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status core.FollowUpStatus `json:"follow_up_status"`
		Date   string              `json:"follow_up_date"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	date, err := optionalDate("follow_up_date", body.Date)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	result, err := h.svc.UpdateFollowUp(r.Context(), chi.URLParam(r, "ref"), app.UpdateFollowUpRequest{
		Status: body.Status,
		Date:   date,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Record)
}

// apiMarkOverdueFollowUps handles POST /api/sales-records/mark-overdue.
func (h *Handler) apiMarkOverdueFollowUps(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.MarkOverdueFollowUps(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, map[string]int{"marked": n})
}

// apiRecordSatisfaction handles POST /api/sales-records/{ref}/satisfaction.
func (h *Handler) apiRecordSatisfaction(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Rating   int    `json:"rating"`
		Feedback string `json:"feedback"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	result, err := h.svc.RecordSatisfaction(r.Context(), chi.URLParam(r, "ref"), body.Rating, body.Feedback)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, result.Record)
}

// apiDraftFollowUp handles POST /api/sales-records/{ref}/follow-up-draft.
func (h *Handler) apiDraftFollowUp(w http.ResponseWriter, r *http.Request) {
	draft, err := h.svc.DraftFollowUp(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, draft)
}

// statsRange reads ?from&to. Missing from defaults to the first day of the
// current month and missing to defaults to now.
func (h *Handler) statsRange(r *http.Request) (time.Time, time.Time, error) {
	q := r.URL.Query()
	now := h.now().UTC()
	from, to := q.Get("from"), q.Get("to")
	if from == "" {
		from = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
	}
	if to == "" {
		to = now.Format(time.RFC3339)
	}
	return app.ParseDateRange(from, to)
}

// apiSalesStats handles GET /api/sales-records/stats.
func (h *Handler) apiSalesStats(w http.ResponseWriter, r *http.Request) {
	from, to, err := h.statsRange(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	salesPersonID, err := optionalIntQuery(r, "sales_person_id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	result, err := h.svc.GetSalesStats(r.Context(), app.SalesStatsRequest{From: from, To: to, SalesPersonID: salesPersonID})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	type response struct {
		From time.Time `json:"from"`
		To   time.Time `json:"to"`
		core.SalesStats
	}
	writeJSON(w, response{From: result.From, To: result.To, SalesStats: result.Stats})
}

// apiExportSales handles GET /api/sales-records/export.
// The workbook is rendered into memory first so failures still produce a JSON error.
func (h *Handler) apiExportSales(w http.ResponseWriter, r *http.Request) {
	from, to, err := h.statsRange(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := h.svc.ExportSales(r.Context(), &buf, from, to); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename(from, to)+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = buf.WriteTo(w)
}
