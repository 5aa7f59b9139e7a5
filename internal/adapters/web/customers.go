package web

import (
	"net/http"

	"autoshop-crm/internal/core"
)

// apiListCustomers handles GET /api/customers?search=.
func (h *Handler) apiListCustomers(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListCustomers(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Customers)
}

// apiCreateCustomer handles POST /api/customers.
func (h *Handler) apiCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var body struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Email     string `json:"email"`
		Phone     string `json:"phone"`
		Address   string `json:"address"`
		Notes     string `json:"notes"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	c, err := h.svc.CreateCustomer(r.Context(), core.CustomerInput{
		FirstName: body.FirstName,
		LastName:  body.LastName,
		Email:     body.Email,
		Phone:     body.Phone,
		Address:   body.Address,
		Notes:     body.Notes,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, c)
}

// apiGetCustomer handles GET /api/customers/{id}.
func (h *Handler) apiGetCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	result, err := h.svc.GetCustomer(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	type response struct {
		*core.Customer
		Vehicles []core.Vehicle `json:"vehicles"`
	}
	writeJSON(w, response{Customer: result.Customer, Vehicles: result.Vehicles})
}

// apiListVehicles handles GET /api/customers/{id}/vehicles.
func (h *Handler) apiListVehicles(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	vehicles, err := h.svc.ListVehicles(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if vehicles == nil {
		vehicles = []core.Vehicle{}
	}
	writeJSON(w, vehicles)
}

// apiAddVehicle handles POST /api/customers/{id}/vehicles.
func (h *Handler) apiAddVehicle(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	var body struct {
		Make         string `json:"make"`
		Model        string `json:"model"`
		Year         int    `json:"year"`
		VIN          string `json:"vin"`
		LicensePlate string `json:"license_plate"`
		Mileage      int    `json:"mileage"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	v, err := h.svc.AddVehicle(r.Context(), id, core.VehicleInput{
		Make:         body.Make,
		Model:        body.Model,
		Year:         body.Year,
		VIN:          body.VIN,
		LicensePlate: body.LicensePlate,
		Mileage:      body.Mileage,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, v)
}
