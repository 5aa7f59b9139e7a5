package app

import (
	"time"

	"github.com/shopspring/decimal"

	"autoshop-crm/internal/core"
)

// CreateSalesRecordRequest is the input for recording a sale.
// Caller-supplied subtotal/total are not accepted; they are always derived.
type CreateSalesRecordRequest struct {
	CustomerID    int
	SalesPersonID int
	SaleDate      time.Time // zero means now
	Items         []core.LineItem
	Tax           decimal.Decimal
	Discount      decimal.Decimal
	Status        core.SalesStatus
	PaymentStatus core.PaymentStatus
	PaymentMethod *core.PaymentMethod
	Notes         string
}

// UpdateSalesRecordRequest carries a partial update; nil fields are unchanged.
type UpdateSalesRecordRequest = core.SalesRecordPatch

type ListSalesRecordsRequest = core.SalesRecordFilter

type UpdatePaymentStatusRequest struct {
	Status      core.PaymentStatus
	Method      *core.PaymentMethod
	PaymentDate *time.Time
}

// GatewayPaymentRequest is the normalised payment gateway signal.
type GatewayPaymentRequest struct {
	Succeeded bool
	Amount    decimal.Decimal
	Method    *core.PaymentMethod
}

type UpdateFollowUpRequest struct {
	Status core.FollowUpStatus
	Date   *time.Time
}

// SalesStatsRequest selects the inclusive [From, To] sale-date range.
type SalesStatsRequest struct {
	From          time.Time
	To            time.Time
	SalesPersonID *int
}
