package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultRecordNumberAttempts bounds how often a create re-reserves a number after a conflict.
const DefaultRecordNumberAttempts = 3

// SalesRecordService owns creation and financial derivation of sales records:
// sequential numbering per calendar month, totals recomputation, follow-up and
// payment-status transitions, and sales statistics.
type SalesRecordService interface {
	CreateSalesRecord(ctx context.Context, in SalesRecordInput) (*SalesRecord, error)
	UpdateSalesRecord(ctx context.Context, id int, patch SalesRecordPatch) (*SalesRecord, error)

	// AddFollowUpNote appends a timestamped note. Content must not be blank.
	AddFollowUpNote(ctx context.Context, id int, content string, authorID int) (*SalesRecord, error)
	// UpdatePaymentStatus sets the payment status and, when given, method and date.
	// Any status may follow any other.
	UpdatePaymentStatus(ctx context.Context, id int, status PaymentStatus, method *PaymentMethod, date *time.Time) (*SalesRecord, error)
	// ApplyGatewayPayment consumes a payment gateway result. A failed charge writes nothing.
	ApplyGatewayPayment(ctx context.Context, id int, succeeded bool, amount decimal.Decimal, method *PaymentMethod) (*SalesRecord, error)
	UpdateFollowUp(ctx context.Context, id int, status FollowUpStatus, date *time.Time) (*SalesRecord, error)
	MarkOverdueFollowUps(ctx context.Context) (int, error)
	// RecordSatisfaction stores the customer's rating once, after the sale is completed.
	RecordSatisfaction(ctx context.Context, id int, rating int, feedback string) (*SalesRecord, error)

	GetSalesRecord(ctx context.Context, id int) (*SalesRecord, error)
	GetSalesRecordByNumber(ctx context.Context, number string) (*SalesRecord, error)
	ListSalesRecords(ctx context.Context, filter SalesRecordFilter) ([]SalesRecord, error)
	// GetSalesStats aggregates over the inclusive [from, to] sale-date range.
	GetSalesStats(ctx context.Context, from, to time.Time, salesPersonID *int) (SalesStats, error)
}

type salesRecordService struct {
	store       SalesRecordStore
	logger      *zap.Logger
	maxAttempts int
	now         func() time.Time
}

// SalesRecordOption customises a SalesRecordService.
type SalesRecordOption func(*salesRecordService)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) SalesRecordOption {
	return func(s *salesRecordService) { s.now = now }
}

// WithRecordNumberAttempts overrides DefaultRecordNumberAttempts. Values < 1 are ignored.
func WithRecordNumberAttempts(n int) SalesRecordOption {
	return func(s *salesRecordService) {
		if n >= 1 {
			s.maxAttempts = n
		}
	}
}

func NewSalesRecordService(store SalesRecordStore, logger *zap.Logger, opts ...SalesRecordOption) SalesRecordService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &salesRecordService{
		store:       store,
		logger:      logger,
		maxAttempts: DefaultRecordNumberAttempts,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ── Create / update ──────────────────────────────────────────────────────────

func (s *salesRecordService) CreateSalesRecord(ctx context.Context, in SalesRecordInput) (*SalesRecord, error) {
	if in.CustomerID <= 0 {
		return nil, invalid("customer_id", "is required")
	}
	if in.SalesPersonID <= 0 {
		return nil, invalid("sales_person_id", "is required")
	}
	if err := validateLineItems(in.Items); err != nil {
		return nil, err
	}

	status := in.Status
	if status == "" {
		status = SalesDraft
	}
	if status != SalesDraft && status != SalesCompleted {
		return nil, invalid("status", "new records must be draft or completed, got %q", status)
	}
	paymentStatus := in.PaymentStatus
	if paymentStatus == "" {
		paymentStatus = PaymentPending
	}
	if !paymentStatus.Valid() {
		return nil, invalid("payment_status", "unknown value %q", paymentStatus)
	}
	if in.PaymentMethod != nil && !in.PaymentMethod.Valid() {
		return nil, invalid("payment_method", "unknown value %q", *in.PaymentMethod)
	}

	saleDate := in.SaleDate
	if saleDate.IsZero() {
		saleDate = s.now()
	}

	base := SalesRecord{
		CustomerID:    in.CustomerID,
		SalesPersonID: in.SalesPersonID,
		SaleDate:      saleDate.UTC(),
		Items:         append([]LineItem(nil), in.Items...),
		Tax:           in.Tax,
		Discount:      in.Discount,
		PaymentStatus: paymentStatus,
		PaymentMethod: in.PaymentMethod,
		Status:        status,
		FollowUpNotes: []FollowUpNote{},
		Notes:         strings.TrimSpace(in.Notes),
	}
	if err := applyTotals(&base); err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		rec := base
		rec.Items = append([]LineItem(nil), base.Items...)
		err := s.store.InsertSalesRecord(ctx, &rec)
		if err == nil {
			s.logger.Info("sales record created",
				zap.Int("id", rec.ID),
				zap.String("record_number", rec.RecordNumber),
				zap.String("total", rec.Total.StringFixed(2)))
			return &rec, nil
		}
		if !errors.Is(err, ErrRecordNumberConflict) {
			return nil, err
		}
		s.logger.Warn("record number conflict, retrying",
			zap.String("period", RecordPeriod(base.SaleDate)),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}
	return nil, fmt.Errorf("failed to assign record number for period %s after %d attempts: %w",
		RecordPeriod(base.SaleDate), s.maxAttempts, ErrRecordNumberConflict)
}

func (s *salesRecordService) UpdateSalesRecord(ctx context.Context, id int, patch SalesRecordPatch) (*SalesRecord, error) {
	if patch.Items != nil {
		if err := validateLineItems(patch.Items); err != nil {
			return nil, err
		}
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, invalid("status", "unknown value %q", *patch.Status)
	}
	if patch.CustomerID != nil && *patch.CustomerID <= 0 {
		return nil, invalid("customer_id", "must be positive")
	}
	if patch.SalesPersonID != nil && *patch.SalesPersonID <= 0 {
		return nil, invalid("sales_person_id", "must be positive")
	}

	return s.store.UpdateSalesRecord(ctx, id, func(rec *SalesRecord) error {
		if patch.CustomerID != nil {
			rec.CustomerID = *patch.CustomerID
		}
		if patch.SalesPersonID != nil {
			rec.SalesPersonID = *patch.SalesPersonID
		}
		if patch.Items != nil {
			rec.Items = append([]LineItem(nil), patch.Items...)
		}
		if patch.Tax != nil {
			rec.Tax = *patch.Tax
		}
		if patch.Discount != nil {
			rec.Discount = *patch.Discount
		}
		if patch.Status != nil {
			rec.Status = *patch.Status
		}
		if patch.Notes != nil {
			rec.Notes = strings.TrimSpace(*patch.Notes)
		}
		if err := applyTotals(rec); err != nil {
			return err
		}
		rec.UpdatedAt = s.now().UTC()
		return nil
	})
}

// ── Follow-up, payment and satisfaction ──────────────────────────────────────

func (s *salesRecordService) AddFollowUpNote(ctx context.Context, id int, content string, authorID int) (*SalesRecord, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, invalid("content", "must not be empty")
	}
	return s.store.UpdateSalesRecord(ctx, id, func(rec *SalesRecord) error {
		now := s.now().UTC()
		rec.FollowUpNotes = append(rec.FollowUpNotes, FollowUpNote{
			Content:   content,
			AuthorID:  authorID,
			Timestamp: now,
		})
		rec.UpdatedAt = now
		return nil
	})
}

func (s *salesRecordService) UpdatePaymentStatus(ctx context.Context, id int, status PaymentStatus, method *PaymentMethod, date *time.Time) (*SalesRecord, error) {
	if !status.Valid() {
		return nil, invalid("payment_status", "unknown value %q", status)
	}
	if method != nil && !method.Valid() {
		return nil, invalid("payment_method", "unknown value %q", *method)
	}
	return s.store.UpdateSalesRecord(ctx, id, func(rec *SalesRecord) error {
		rec.PaymentStatus = status
		if method != nil {
			m := *method
			rec.PaymentMethod = &m
		}
		if date != nil {
			d := date.UTC()
			rec.PaymentDate = &d
		}
		rec.UpdatedAt = s.now().UTC()
		return nil
	})
}

func (s *salesRecordService) ApplyGatewayPayment(ctx context.Context, id int, succeeded bool, amount decimal.Decimal, method *PaymentMethod) (*SalesRecord, error) {
	if !succeeded {
		return nil, fmt.Errorf("sales record %d: %w", id, ErrPaymentFailed)
	}
	if !amount.IsPositive() {
		return nil, invalid("amount", "must be > 0")
	}
	if method != nil && !method.Valid() {
		return nil, invalid("payment_method", "unknown value %q", *method)
	}
	return s.store.UpdateSalesRecord(ctx, id, func(rec *SalesRecord) error {
		now := s.now().UTC()
		if amount.GreaterThanOrEqual(rec.Total) {
			rec.PaymentStatus = PaymentPaid
		} else {
			rec.PaymentStatus = PaymentPartial
		}
		if method != nil {
			m := *method
			rec.PaymentMethod = &m
		}
		rec.PaymentDate = &now
		rec.UpdatedAt = now
		return nil
	})
}

func (s *salesRecordService) UpdateFollowUp(ctx context.Context, id int, status FollowUpStatus, date *time.Time) (*SalesRecord, error) {
	if !status.Valid() {
		return nil, invalid("follow_up_status", "unknown value %q", status)
	}
	if status == FollowUpScheduled && date == nil {
		return nil, invalid("follow_up_date", "is required when scheduling a follow-up")
	}
	return s.store.UpdateSalesRecord(ctx, id, func(rec *SalesRecord) error {
		st := status
		rec.FollowUpStatus = &st
		if date != nil {
			d := date.UTC()
			rec.FollowUpDate = &d
		}
		rec.UpdatedAt = s.now().UTC()
		return nil
	})
}

func (s *salesRecordService) MarkOverdueFollowUps(ctx context.Context) (int, error) {
	n, err := s.store.MarkOverdueFollowUps(ctx, s.now().UTC())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("follow-ups marked overdue", zap.Int("count", n))
	}
	return n, nil
}

func (s *salesRecordService) RecordSatisfaction(ctx context.Context, id int, rating int, feedback string) (*SalesRecord, error) {
	if rating < 1 || rating > 5 {
		return nil, invalid("rating", "must be between 1 and 5")
	}
	return s.store.UpdateSalesRecord(ctx, id, func(rec *SalesRecord) error {
		if rec.Status != SalesCompleted {
			return fmt.Errorf("sales record %s is %s, satisfaction requires completed: %w",
				rec.RecordNumber, rec.Status, ErrInvalidState)
		}
		if rec.Satisfaction != nil {
			return fmt.Errorf("sales record %s: %w", rec.RecordNumber, ErrSatisfactionRecorded)
		}
		now := s.now().UTC()
		rec.Satisfaction = &CustomerSatisfaction{
			Rating:     rating,
			Feedback:   strings.TrimSpace(feedback),
			RecordedAt: now,
		}
		rec.UpdatedAt = now
		return nil
	})
}

// ── Queries ──────────────────────────────────────────────────────────────────

func (s *salesRecordService) GetSalesRecord(ctx context.Context, id int) (*SalesRecord, error) {
	return s.store.GetSalesRecord(ctx, id)
}

func (s *salesRecordService) GetSalesRecordByNumber(ctx context.Context, number string) (*SalesRecord, error) {
	return s.store.GetSalesRecordByNumber(ctx, strings.TrimSpace(number))
}

func (s *salesRecordService) ListSalesRecords(ctx context.Context, filter SalesRecordFilter) ([]SalesRecord, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, invalid("status", "unknown value %q", *filter.Status)
	}
	if filter.PaymentStatus != nil && !filter.PaymentStatus.Valid() {
		return nil, invalid("payment_status", "unknown value %q", *filter.PaymentStatus)
	}
	return s.store.ListSalesRecords(ctx, filter)
}

func (s *salesRecordService) GetSalesStats(ctx context.Context, from, to time.Time, salesPersonID *int) (SalesStats, error) {
	if from.After(to) {
		return SalesStats{}, invalid("from", "must not be after to")
	}
	return s.store.SalesStats(ctx, from.UTC(), to.UTC(), salesPersonID)
}
