package app

import (
	"context"
	"io"
	"time"

	"autoshop-crm/internal/ai"
	"autoshop-crm/internal/core"
)

// ApplicationService is the single interface all adapters (CLI, Web) call.
// It decouples presentation from business logic. Implementations own no SQL
// and no display logic of any kind.
type ApplicationService interface {
	// ── Sales records ────────────────────────────────────────────────────────
	// ref is either a numeric ID or a record number such as SR-202403-0007.

	CreateSalesRecord(ctx context.Context, req CreateSalesRecordRequest) (*SalesRecordResult, error)
	UpdateSalesRecord(ctx context.Context, ref string, req UpdateSalesRecordRequest) (*SalesRecordResult, error)
	GetSalesRecord(ctx context.Context, ref string) (*SalesRecordResult, error)
	ListSalesRecords(ctx context.Context, req ListSalesRecordsRequest) (*SalesRecordListResult, error)

	AddFollowUpNote(ctx context.Context, ref, content string, authorID int) (*SalesRecordResult, error)
	UpdatePaymentStatus(ctx context.Context, ref string, req UpdatePaymentStatusRequest) (*SalesRecordResult, error)
	// ApplyGatewayPayment consumes a payment gateway callback. A failed charge
	// returns core.ErrPaymentFailed and leaves the record unchanged.
	ApplyGatewayPayment(ctx context.Context, ref string, req GatewayPaymentRequest) (*SalesRecordResult, error)
	UpdateFollowUp(ctx context.Context, ref string, req UpdateFollowUpRequest) (*SalesRecordResult, error)
	MarkOverdueFollowUps(ctx context.Context) (int, error)
	RecordSatisfaction(ctx context.Context, ref string, rating int, feedback string) (*SalesRecordResult, error)

	// DraftFollowUp asks the AI drafter for a message. Returns ai.ErrUnavailable
	// when no API key is configured. Nothing is persisted.
	DraftFollowUp(ctx context.Context, ref string) (*ai.FollowUpDraft, error)

	GetSalesStats(ctx context.Context, req SalesStatsRequest) (*SalesStatsResult, error)
	// ExportSales writes the records and stats of [from, to] as an .xlsx workbook.
	ExportSales(ctx context.Context, w io.Writer, from, to time.Time) error

	// ── Customers ────────────────────────────────────────────────────────────

	CreateCustomer(ctx context.Context, in core.CustomerInput) (*core.Customer, error)
	GetCustomer(ctx context.Context, id int) (*CustomerResult, error)
	ListCustomers(ctx context.Context, search string) (*CustomerListResult, error)
	AddVehicle(ctx context.Context, customerID int, in core.VehicleInput) (*core.Vehicle, error)
	ListVehicles(ctx context.Context, customerID int) ([]core.Vehicle, error)

	// ── Memberships ──────────────────────────────────────────────────────────

	CreateMembership(ctx context.Context, in core.MembershipInput) (*core.Membership, error)
	ListMemberships(ctx context.Context, customerID *int) ([]core.Membership, error)
	ListDueMemberships(ctx context.Context, asOf time.Time) ([]core.Membership, error)
	RenewMembership(ctx context.Context, id int, billedAt time.Time) (*core.Membership, error)
	CancelMembership(ctx context.Context, id int) (*core.Membership, error)

	// ── Users ────────────────────────────────────────────────────────────────

	// Authenticate verifies credentials. Failures return core.ErrInvalidCredentials.
	Authenticate(ctx context.Context, username, password string) (*core.User, error)
	GetUser(ctx context.Context, id int) (*core.User, error)
}
