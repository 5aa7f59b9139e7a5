package app

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"autoshop-crm/internal/ai"
	"autoshop-crm/internal/core"
	"autoshop-crm/internal/export"
)

type appService struct {
	sales       core.SalesRecordService
	customers   core.CustomerService
	memberships core.MembershipService
	users       core.UserService
	drafter     ai.Drafter
	logger      *zap.Logger
}

// NewAppService constructs an appService that satisfies ApplicationService.
// A nil drafter disables follow-up drafting.
func NewAppService(
	sales core.SalesRecordService,
	customers core.CustomerService,
	memberships core.MembershipService,
	users core.UserService,
	drafter ai.Drafter,
	logger *zap.Logger,
) ApplicationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &appService{
		sales:       sales,
		customers:   customers,
		memberships: memberships,
		users:       users,
		drafter:     drafter,
		logger:      logger,
	}
}

// ── Sales records ────────────────────────────────────────────────────────────

func (s *appService) CreateSalesRecord(ctx context.Context, req CreateSalesRecordRequest) (*SalesRecordResult, error) {
	rec, err := s.sales.CreateSalesRecord(ctx, core.SalesRecordInput{
		CustomerID:    req.CustomerID,
		SalesPersonID: req.SalesPersonID,
		SaleDate:      req.SaleDate,
		Items:         req.Items,
		Tax:           req.Tax,
		Discount:      req.Discount,
		Status:        req.Status,
		PaymentStatus: req.PaymentStatus,
		PaymentMethod: req.PaymentMethod,
		Notes:         req.Notes,
	})
	if err != nil {
		return nil, err
	}
	return &SalesRecordResult{Record: rec}, nil
}

func (s *appService) UpdateSalesRecord(ctx context.Context, ref string, req UpdateSalesRecordRequest) (*SalesRecordResult, error) {
	return s.withRecord(ctx, ref, func(id int) (*core.SalesRecord, error) {
		return s.sales.UpdateSalesRecord(ctx, id, req)
	})
}

func (s *appService) GetSalesRecord(ctx context.Context, ref string) (*SalesRecordResult, error) {
	rec, err := s.resolveRecord(ctx, ref)
	if err != nil {
		return nil, err
	}
	return &SalesRecordResult{Record: rec}, nil
}

func (s *appService) ListSalesRecords(ctx context.Context, req ListSalesRecordsRequest) (*SalesRecordListResult, error) {
	records, err := s.sales.ListSalesRecords(ctx, req)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []core.SalesRecord{}
	}
	return &SalesRecordListResult{Records: records}, nil
}

func (s *appService) AddFollowUpNote(ctx context.Context, ref, content string, authorID int) (*SalesRecordResult, error) {
	return s.withRecord(ctx, ref, func(id int) (*core.SalesRecord, error) {
		return s.sales.AddFollowUpNote(ctx, id, content, authorID)
	})
}

func (s *appService) UpdatePaymentStatus(ctx context.Context, ref string, req UpdatePaymentStatusRequest) (*SalesRecordResult, error) {
	return s.withRecord(ctx, ref, func(id int) (*core.SalesRecord, error) {
		return s.sales.UpdatePaymentStatus(ctx, id, req.Status, req.Method, req.PaymentDate)
	})
}

func (s *appService) ApplyGatewayPayment(ctx context.Context, ref string, req GatewayPaymentRequest) (*SalesRecordResult, error) {
	return s.withRecord(ctx, ref, func(id int) (*core.SalesRecord, error) {
		rec, err := s.sales.ApplyGatewayPayment(ctx, id, req.Succeeded, req.Amount, req.Method)
		if err != nil {
			s.logger.Warn("gateway payment not applied", zap.String("ref", ref), zap.Error(err))
		}
		return rec, err
	})
}

func (s *appService) UpdateFollowUp(ctx context.Context, ref string, req UpdateFollowUpRequest) (*SalesRecordResult, error) {
	return s.withRecord(ctx, ref, func(id int) (*core.SalesRecord, error) {
		return s.sales.UpdateFollowUp(ctx, id, req.Status, req.Date)
	})
}

func (s *appService) MarkOverdueFollowUps(ctx context.Context) (int, error) {
	return s.sales.MarkOverdueFollowUps(ctx)
}

func (s *appService) RecordSatisfaction(ctx context.Context, ref string, rating int, feedback string) (*SalesRecordResult, error) {
	return s.withRecord(ctx, ref, func(id int) (*core.SalesRecord, error) {
		return s.sales.RecordSatisfaction(ctx, id, rating, feedback)
	})
}

func (s *appService) DraftFollowUp(ctx context.Context, ref string) (*ai.FollowUpDraft, error) {
	if s.drafter == nil {
		return nil, ai.ErrUnavailable
	}
	rec, err := s.resolveRecord(ctx, ref)
	if err != nil {
		return nil, err
	}
	return s.drafter.DraftFollowUp(ctx, rec, rec.CustomerName)
}

func (s *appService) GetSalesStats(ctx context.Context, req SalesStatsRequest) (*SalesStatsResult, error) {
	stats, err := s.sales.GetSalesStats(ctx, req.From, req.To, req.SalesPersonID)
	if err != nil {
		return nil, err
	}
	return &SalesStatsResult{
		From:          req.From.UTC(),
		To:            req.To.UTC(),
		SalesPersonID: req.SalesPersonID,
		Stats:         stats,
	}, nil
}

func (s *appService) ExportSales(ctx context.Context, w io.Writer, from, to time.Time) error {
	stats, err := s.sales.GetSalesStats(ctx, from, to, nil)
	if err != nil {
		return err
	}
	f, t := from.UTC(), to.UTC()
	records, err := s.sales.ListSalesRecords(ctx, core.SalesRecordFilter{From: &f, To: &t})
	if err != nil {
		return err
	}
	return export.WriteSalesWorkbook(w, records, stats)
}

// ── Customers ────────────────────────────────────────────────────────────────

func (s *appService) CreateCustomer(ctx context.Context, in core.CustomerInput) (*core.Customer, error) {
	return s.customers.CreateCustomer(ctx, in)
}

func (s *appService) GetCustomer(ctx context.Context, id int) (*CustomerResult, error) {
	c, err := s.customers.GetCustomer(ctx, id)
	if err != nil {
		return nil, err
	}
	vehicles, err := s.customers.ListVehicles(ctx, id)
	if err != nil {
		return nil, err
	}
	if vehicles == nil {
		vehicles = []core.Vehicle{}
	}
	return &CustomerResult{Customer: c, Vehicles: vehicles}, nil
}

func (s *appService) ListCustomers(ctx context.Context, search string) (*CustomerListResult, error) {
	customers, err := s.customers.ListCustomers(ctx, strings.TrimSpace(search))
	if err != nil {
		return nil, err
	}
	if customers == nil {
		customers = []core.Customer{}
	}
	return &CustomerListResult{Customers: customers}, nil
}

func (s *appService) AddVehicle(ctx context.Context, customerID int, in core.VehicleInput) (*core.Vehicle, error) {
	return s.customers.AddVehicle(ctx, customerID, in)
}

func (s *appService) ListVehicles(ctx context.Context, customerID int) ([]core.Vehicle, error) {
	return s.customers.ListVehicles(ctx, customerID)
}

// ── Memberships ──────────────────────────────────────────────────────────────

func (s *appService) CreateMembership(ctx context.Context, in core.MembershipInput) (*core.Membership, error) {
	return s.memberships.CreateMembership(ctx, in)
}

func (s *appService) ListMemberships(ctx context.Context, customerID *int) ([]core.Membership, error) {
	return s.memberships.ListMemberships(ctx, customerID)
}

func (s *appService) ListDueMemberships(ctx context.Context, asOf time.Time) ([]core.Membership, error) {
	return s.memberships.ListDueMemberships(ctx, asOf)
}

func (s *appService) RenewMembership(ctx context.Context, id int, billedAt time.Time) (*core.Membership, error) {
	m, err := s.memberships.RenewMembership(ctx, id, billedAt)
	if err != nil {
		return nil, err
	}
	s.logger.Info("membership renewed",
		zap.Int("id", m.ID),
		zap.Time("next_billing_date", m.NextBillingDate))
	return m, nil
}

func (s *appService) CancelMembership(ctx context.Context, id int) (*core.Membership, error) {
	return s.memberships.CancelMembership(ctx, id)
}

// ── Users ────────────────────────────────────────────────────────────────────

func (s *appService) Authenticate(ctx context.Context, username, password string) (*core.User, error) {
	return s.users.Authenticate(ctx, strings.TrimSpace(username), password)
}

func (s *appService) GetUser(ctx context.Context, id int) (*core.User, error) {
	return s.users.GetByID(ctx, id)
}

// ── private helpers ──────────────────────────────────────────────────────────

// resolveRecord looks up a sales record by numeric ID or record number string.
func (s *appService) resolveRecord(ctx context.Context, ref string) (*core.SalesRecord, error) {
	ref = strings.TrimSpace(ref)
	if id, err := strconv.Atoi(ref); err == nil {
		return s.sales.GetSalesRecord(ctx, id)
	}
	if _, _, err := core.ParseRecordNumber(ref); err != nil {
		return nil, fmt.Errorf("sales record %q: %w", ref, core.ErrNotFound)
	}
	return s.sales.GetSalesRecordByNumber(ctx, ref)
}

func (s *appService) resolveRecordID(ctx context.Context, ref string) (int, error) {
	if id, err := strconv.Atoi(strings.TrimSpace(ref)); err == nil {
		return id, nil
	}
	rec, err := s.resolveRecord(ctx, ref)
	if err != nil {
		return 0, err
	}
	return rec.ID, nil
}

func (s *appService) withRecord(ctx context.Context, ref string, op func(id int) (*core.SalesRecord, error)) (*SalesRecordResult, error) {
	id, err := s.resolveRecordID(ctx, ref)
	if err != nil {
		return nil, err
	}
	rec, err := op(id)
	if err != nil {
		return nil, err
	}
	return &SalesRecordResult{Record: rec}, nil
}
