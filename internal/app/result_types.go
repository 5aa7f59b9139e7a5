package app

import (
	"time"

	"autoshop-crm/internal/core"
)

// SalesRecordResult is returned by sales-record operations.
type SalesRecordResult struct {
	Record *core.SalesRecord
}

// SalesRecordListResult is returned by ListSalesRecords.
type SalesRecordListResult struct {
	Records []core.SalesRecord
}

// SalesStatsResult is returned by GetSalesStats.
type SalesStatsResult struct {
	From          time.Time
	To            time.Time
	SalesPersonID *int
	Stats         core.SalesStats
}

// CustomerResult bundles a customer with their vehicles.
type CustomerResult struct {
	Customer *core.Customer
	Vehicles []core.Vehicle
}

// CustomerListResult is returned by ListCustomers.
type CustomerListResult struct {
	Customers []core.Customer
}
