package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"autoshop-crm/internal/app"
	"autoshop-crm/internal/core"
)

// requestTimeout bounds every API request, including workbook exports.
const requestTimeout = 30 * time.Second

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc       app.ApplicationService
	router    chi.Router
	jwtSecret string
	logger    *zap.Logger
	now       func() time.Time
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, allowedOrigins, jwtSecret string, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{
		svc:       svc,
		jwtSecret: jwtSecret,
		logger:    logger,
		now:       time.Now,
	}

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(RequestID)
	r.Use(Logger(logger))
	r.Use(Recoverer(logger))
	r.Use(CORS(allowedOrigins))
	r.Use(chimw.Timeout(requestTimeout))

	// ── Health (public) ───────────────────────────────────────────────────────
	r.Get("/api/health", h.health)

	// ── Auth (public API) ─────────────────────────────────────────────────────
	r.Post("/api/auth/login", h.login)
	r.Post("/api/auth/logout", h.logout)

	// ── Protected API routes (return 401 JSON if unauthenticated) ────────────
	r.Group(func(r chi.Router) {
		r.Use(h.RequireAuth)
		r.Use(RequestBodyLimit(1 << 20)) // 1 MB

		r.Get("/api/auth/me", h.me)

		// ── Sales records ─────────────────────────────────────────────────────
		r.Route("/api/sales-records", func(r chi.Router) {
			r.Get("/", h.apiListSalesRecords)
			r.Post("/", h.apiCreateSalesRecord)
			r.Get("/stats", h.apiSalesStats)
			r.Get("/export", h.apiExportSales)
			r.Post("/mark-overdue", h.apiMarkOverdueFollowUps)

			r.Route("/{ref}", func(r chi.Router) {
				r.Get("/", h.apiGetSalesRecord)
				r.Patch("/", h.apiUpdateSalesRecord)
				r.Post("/follow-up-notes", h.apiAddFollowUpNote)
				r.Put("/payment-status", h.apiUpdatePaymentStatus)
				r.Post("/payments", h.apiGatewayPayment)
				r.Put("/follow-up", h.apiUpdateFollowUp)
				r.Post("/satisfaction", h.apiRecordSatisfaction)
				r.Post("/follow-up-draft", h.apiDraftFollowUp)
			})
		})

		// ── Customers ─────────────────────────────────────────────────────────
		r.Get("/api/customers", h.apiListCustomers)
		r.Post("/api/customers", h.apiCreateCustomer)
		r.Get("/api/customers/{id}", h.apiGetCustomer)
		r.Get("/api/customers/{id}/vehicles", h.apiListVehicles)
		r.Post("/api/customers/{id}/vehicles", h.apiAddVehicle)

		// ── Memberships ───────────────────────────────────────────────────────
		r.Get("/api/memberships", h.apiListMemberships)
		r.Post("/api/memberships", h.apiCreateMembership)
		r.Get("/api/memberships/due", h.apiDueMemberships)
		r.Post("/api/memberships/{id}/renew", h.apiRenewMembership)
		r.Post("/api/memberships/{id}/cancel", h.apiCancelMembership)
	})

	h.router = r
	return r
}

// health returns service status and server time.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Status string    `json:"status"`
		Time   time.Time `json:"time"`
	}
	writeJSON(w, response{Status: "ok", Time: h.now().UTC()})
}

// decodeJSON decodes the request body into v and returns false + writes an appropriate
// error response on failure. Returns HTTP 413 when the body exceeds the size limit set
// by RequestBodyLimit middleware; HTTP 400 for all other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}

// intParam parses a numeric URL parameter, writing a 400 on failure.
func intParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	v, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || v <= 0 {
		writeValidation(w, r, &core.ValidationError{Field: name, Message: "must be a positive integer"})
		return 0, false
	}
	return v, true
}

// optionalIntQuery parses ?name=, returning nil when absent.
func optionalIntQuery(r *http.Request, name string) (*int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, &core.ValidationError{Field: name, Message: "must be an integer"}
	}
	return &v, nil
}

// optionalDate parses a date field that may be empty.
func optionalDate(field, raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := app.ParseDate(field, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
