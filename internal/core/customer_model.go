package core

import (
	"net/mail"
	"strings"
	"time"
)

// Customer is a shop customer. Sales records and memberships reference it by ID.
type Customer struct {
	ID        int       `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"created_at"`
}

// FullName is what the joined customer_name column of a sales record shows.
func (c Customer) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// Vehicle belongs to exactly one customer. VIN is unique when set.
type Vehicle struct {
	ID           int       `json:"id"`
	CustomerID   int       `json:"customer_id"`
	Make         string    `json:"make"`
	Model        string    `json:"model"`
	Year         int       `json:"year"`
	VIN          string    `json:"vin,omitempty"`
	LicensePlate string    `json:"license_plate,omitempty"`
	Mileage      int       `json:"mileage"`
	CreatedAt    time.Time `json:"created_at"`
}

type CustomerInput struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Address   string
	Notes     string
}

type VehicleInput struct {
	Make         string
	Model        string
	Year         int
	VIN          string
	LicensePlate string
	Mileage      int
}

const vinLength = 17

// Normalize trims whitespace and lower-cases the e-mail.
func (in *CustomerInput) Normalize() {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)
	in.Address = strings.TrimSpace(in.Address)
	in.Notes = strings.TrimSpace(in.Notes)
}

func (in CustomerInput) Validate() error {
	if in.FirstName == "" {
		return invalid("first_name", "is required")
	}
	if in.LastName == "" {
		return invalid("last_name", "is required")
	}
	if in.Email != "" {
		addr, err := mail.ParseAddress(in.Email)
		if err != nil || addr.Address != in.Email {
			return invalid("email", "%q is not a valid address", in.Email)
		}
	}
	return nil
}

func (in *VehicleInput) Normalize() {
	in.Make = strings.TrimSpace(in.Make)
	in.Model = strings.TrimSpace(in.Model)
	in.VIN = strings.ToUpper(strings.TrimSpace(in.VIN))
	in.LicensePlate = strings.ToUpper(strings.TrimSpace(in.LicensePlate))
}

// Validate checks the vehicle against the calendar year of now.
func (in VehicleInput) Validate(now time.Time) error {
	if in.Make == "" {
		return invalid("make", "is required")
	}
	if in.Model == "" {
		return invalid("model", "is required")
	}
	if maxYear := now.Year() + 1; in.Year < 1900 || in.Year > maxYear {
		return invalid("year", "must be between 1900 and %d", maxYear)
	}
	if in.VIN != "" && len(in.VIN) != vinLength {
		return invalid("vin", "must be %d characters", vinLength)
	}
	if in.Mileage < 0 {
		return invalid("mileage", "must be >= 0")
	}
	return nil
}
