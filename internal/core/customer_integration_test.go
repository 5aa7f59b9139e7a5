package core_test

import (
	"context"
	"errors"
	"testing"

	"autoshop-crm/internal/core"
)

func TestPostgresCustomers_CreateAndSearch(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := core.NewCustomerService(pool)
	ctx := context.Background()

	c, err := svc.CreateCustomer(ctx, core.CustomerInput{
		FirstName: " Grace ", LastName: "Hopper", Email: " Grace@Example.COM ", Phone: "555-0100",
	})
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}
	if c.ID == 1 {
		t.Fatalf("new customer reused the seeded id")
	}
	if c.FirstName != "Grace" || c.Email != "grace@example.com" {
		t.Errorf("input not normalised: %+v", c)
	}

	got, err := svc.GetCustomer(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetCustomer: %v", err)
	}
	if got.FullName() != "Grace Hopper" {
		t.Errorf("FullName = %q", got.FullName())
	}

	tests := []struct {
		search string
		want   []int
	}{
		{"", []int{c.ID, 1}}, // ordered by last name: Hopper, Lovelace
		{"grace hop", []int{c.ID}},
		{"ADA@", []int{1}},
		{"0100", []int{c.ID}},
		{"nobody", nil},
	}
	for _, tt := range tests {
		list, err := svc.ListCustomers(ctx, tt.search)
		if err != nil {
			t.Fatalf("ListCustomers(%q): %v", tt.search, err)
		}
		var gotIDs []int
		for _, c := range list {
			gotIDs = append(gotIDs, c.ID)
		}
		if len(gotIDs) != len(tt.want) {
			t.Errorf("ListCustomers(%q) = %v, want %v", tt.search, gotIDs, tt.want)
			continue
		}
		for i := range gotIDs {
			if gotIDs[i] != tt.want[i] {
				t.Errorf("ListCustomers(%q) = %v, want %v", tt.search, gotIDs, tt.want)
				break
			}
		}
	}

	if _, err := svc.GetCustomer(ctx, 404); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	_, err = svc.CreateCustomer(ctx, core.CustomerInput{FirstName: "No", LastName: "Mail", Email: "not-an-address"})
	assertValidationField(t, err, "email")
}

func TestPostgresCustomers_VehicleVINIsUnique(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := core.NewCustomerService(pool)
	ctx := context.Background()

	in := core.VehicleInput{Make: "Honda", Model: "Civic", Year: 2019, VIN: " 1hgcm82633a004352 ", LicensePlate: "abc123", Mileage: 42000}
	v, err := svc.AddVehicle(ctx, 1, in)
	if err != nil {
		t.Fatalf("AddVehicle: %v", err)
	}
	if v.VIN != "1HGCM82633A004352" || v.LicensePlate != "ABC123" || v.CustomerID != 1 {
		t.Errorf("vehicle not normalised: %+v", v)
	}

	// Same VIN in a different case maps the unique violation to a field error.
	other, err := svc.CreateCustomer(ctx, core.CustomerInput{FirstName: "Grace", LastName: "Hopper"})
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}
	_, err = svc.AddVehicle(ctx, other.ID, core.VehicleInput{Make: "Honda", Model: "Accord", Year: 2020, VIN: "1HGCM82633A004352"})
	assertValidationField(t, err, "vin")

	// Vehicles without a VIN never collide.
	for i := 0; i < 2; i++ {
		if _, err := svc.AddVehicle(ctx, other.ID, core.VehicleInput{Make: "Ford", Model: "Model T", Year: 1925}); err != nil {
			t.Fatalf("AddVehicle without VIN #%d: %v", i+1, err)
		}
	}

	vehicles, err := svc.ListVehicles(ctx, other.ID)
	if err != nil {
		t.Fatalf("ListVehicles: %v", err)
	}
	if len(vehicles) != 2 || vehicles[0].VIN != "" {
		t.Errorf("vehicles = %+v", vehicles)
	}

	if _, err := svc.AddVehicle(ctx, 404, core.VehicleInput{Make: "Kia", Model: "Rio", Year: 2018}); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("AddVehicle unknown customer: expected ErrNotFound, got %v", err)
	}
	if _, err := svc.ListVehicles(ctx, 404); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("ListVehicles unknown customer: expected ErrNotFound, got %v", err)
	}
}
