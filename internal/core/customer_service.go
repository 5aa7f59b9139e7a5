package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const vinConstraint = "vehicles_vin_key"

// CustomerService manages customers and the vehicles they bring in.
type CustomerService interface {
	CreateCustomer(ctx context.Context, in CustomerInput) (*Customer, error)
	GetCustomer(ctx context.Context, id int) (*Customer, error)
	// ListCustomers matches search against name, e-mail and phone. Empty search lists all.
	ListCustomers(ctx context.Context, search string) ([]Customer, error)

	AddVehicle(ctx context.Context, customerID int, in VehicleInput) (*Vehicle, error)
	ListVehicles(ctx context.Context, customerID int) ([]Vehicle, error)
}

type customerService struct {
	pool *pgxpool.Pool
}

func NewCustomerService(pool *pgxpool.Pool) CustomerService {
	return &customerService{pool: pool}
}

func (s *customerService) CreateCustomer(ctx context.Context, in CustomerInput) (*Customer, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var c Customer
	err := s.pool.QueryRow(ctx, `
		INSERT INTO customers (first_name, last_name, email, phone, address, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, first_name, last_name, email, phone, address, notes, created_at
	`, in.FirstName, in.LastName, in.Email, in.Phone, in.Address, in.Notes).Scan(
		&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &c.Address, &c.Notes, &c.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}
	return &c, nil
}

func (s *customerService) GetCustomer(ctx context.Context, id int) (*Customer, error) {
	var c Customer
	err := s.pool.QueryRow(ctx, `
		SELECT id, first_name, last_name, email, phone, address, notes, created_at
		FROM customers
		WHERE id = $1
	`, id).Scan(&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &c.Address, &c.Notes, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("customer %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch customer %d: %w", id, err)
	}
	return &c, nil
}

func (s *customerService) ListCustomers(ctx context.Context, search string) ([]Customer, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, first_name, last_name, email, phone, address, notes, created_at
		FROM customers
		WHERE $1 = ''
		   OR first_name || ' ' || last_name ILIKE '%' || $1 || '%'
		   OR email ILIKE '%' || $1 || '%'
		   OR phone LIKE '%' || $1 || '%'
		ORDER BY last_name, first_name, id
	`, search)
	if err != nil {
		return nil, fmt.Errorf("failed to query customers: %w", err)
	}
	defer rows.Close()

	var customers []Customer
	for rows.Next() {
		var c Customer
		if err := rows.Scan(&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &c.Address, &c.Notes, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

func (s *customerService) AddVehicle(ctx context.Context, customerID int, in VehicleInput) (*Vehicle, error) {
	in.Normalize()
	if err := in.Validate(time.Now()); err != nil {
		return nil, err
	}

	var vin, plate *string
	if in.VIN != "" {
		vin = &in.VIN
	}
	if in.LicensePlate != "" {
		plate = &in.LicensePlate
	}

	v := Vehicle{CustomerID: customerID, Make: in.Make, Model: in.Model, Year: in.Year,
		VIN: in.VIN, LicensePlate: in.LicensePlate, Mileage: in.Mileage}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO vehicles (customer_id, make, model, year, vin, license_plate, mileage)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, customerID, in.Make, in.Model, in.Year, vin, plate, in.Mileage).Scan(&v.ID, &v.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, vinConstraint) {
			return nil, invalid("vin", "%s is already registered", in.VIN)
		}
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("customer %d: %w", customerID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to add vehicle: %w", err)
	}
	return &v, nil
}

func (s *customerService) ListVehicles(ctx context.Context, customerID int) ([]Vehicle, error) {
	if _, err := s.GetCustomer(ctx, customerID); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, customer_id, make, model, year, COALESCE(vin, ''), COALESCE(license_plate, ''), mileage, created_at
		FROM vehicles
		WHERE customer_id = $1
		ORDER BY id
	`, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query vehicles: %w", err)
	}
	defer rows.Close()

	var vehicles []Vehicle
	for rows.Next() {
		var v Vehicle
		if err := rows.Scan(&v.ID, &v.CustomerID, &v.Make, &v.Model, &v.Year, &v.VIN, &v.LicensePlate, &v.Mileage, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan vehicle: %w", err)
		}
		vehicles = append(vehicles, v)
	}
	return vehicles, rows.Err()
}
