package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MembershipService manages recurring plans and their billing dates.
type MembershipService interface {
	CreateMembership(ctx context.Context, in MembershipInput) (*Membership, error)
	GetMembership(ctx context.Context, id int) (*Membership, error)
	ListMemberships(ctx context.Context, customerID *int) ([]Membership, error)
	// RenewMembership rolls NextBillingDate forward one cycle from its previous value.
	RenewMembership(ctx context.Context, id int, billedAt time.Time) (*Membership, error)
	CancelMembership(ctx context.Context, id int) (*Membership, error)
	// ListDueMemberships returns active memberships whose next billing date is on or before asOf.
	ListDueMemberships(ctx context.Context, asOf time.Time) ([]Membership, error)
}

type membershipService struct {
	pool *pgxpool.Pool
}

func NewMembershipService(pool *pgxpool.Pool) MembershipService {
	return &membershipService{pool: pool}
}

const membershipColumns = `
	m.id, m.customer_id, COALESCE(c.first_name || ' ' || c.last_name, ''), m.plan, m.billing_cycle,
	m.price, m.status, m.start_date, m.next_billing_date, m.last_billed_at, m.created_at`

const membershipFrom = `
	FROM memberships m
	LEFT JOIN customers c ON c.id = m.customer_id`

func scanMembership(row pgx.Row) (*Membership, error) {
	var (
		m      Membership
		cycle  string
		status string
	)
	err := row.Scan(&m.ID, &m.CustomerID, &m.CustomerName, &m.Plan, &cycle,
		&m.Price, &status, &m.StartDate, &m.NextBillingDate, &m.LastBilledAt, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	m.BillingCycle = BillingCycle(cycle)
	m.Status = MembershipStatus(status)
	// timestamptz scans in time.Local; billing arithmetic is done in UTC.
	m.StartDate = m.StartDate.UTC()
	m.NextBillingDate = m.NextBillingDate.UTC()
	m.CreatedAt = m.CreatedAt.UTC()
	if m.LastBilledAt != nil {
		t := m.LastBilledAt.UTC()
		m.LastBilledAt = &t
	}
	return &m, nil
}

func (s *membershipService) CreateMembership(ctx context.Context, in MembershipInput) (*Membership, error) {
	in.Plan = strings.TrimSpace(in.Plan)
	if err := in.Validate(); err != nil {
		return nil, err
	}
	start := in.StartDate
	if start.IsZero() {
		start = time.Now()
	}
	start = start.UTC()
	next := NextBillingDate(start, in.BillingCycle)

	var id int
	err := s.pool.QueryRow(ctx, `
		INSERT INTO memberships (customer_id, plan, billing_cycle, price, status, start_date, next_billing_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, in.CustomerID, in.Plan, string(in.BillingCycle), in.Price, string(MembershipActive), start, next).Scan(&id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("customer %d: %w", in.CustomerID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to create membership: %w", err)
	}
	return s.GetMembership(ctx, id)
}

func (s *membershipService) GetMembership(ctx context.Context, id int) (*Membership, error) {
	return getMembership(ctx, s.pool, id, false)
}

func getMembership(ctx context.Context, q pgxQuerier, id int, forUpdate bool) (*Membership, error) {
	query := "SELECT" + membershipColumns + membershipFrom + " WHERE m.id = $1"
	if forUpdate {
		query += " FOR UPDATE OF m"
	}
	m, err := scanMembership(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("membership %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch membership %d: %w", id, err)
	}
	return m, nil
}

func (s *membershipService) ListMemberships(ctx context.Context, customerID *int) ([]Membership, error) {
	return s.list(ctx, "($1::int IS NULL OR m.customer_id = $1)", customerID)
}

func (s *membershipService) ListDueMemberships(ctx context.Context, asOf time.Time) ([]Membership, error) {
	return s.list(ctx, "m.status = 'active' AND m.next_billing_date <= $1", asOf.UTC())
}

func (s *membershipService) list(ctx context.Context, where string, arg any) ([]Membership, error) {
	rows, err := s.pool.Query(ctx, "SELECT"+membershipColumns+membershipFrom+" WHERE "+where+
		" ORDER BY m.next_billing_date, m.id", arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query memberships: %w", err)
	}
	defer rows.Close()

	var out []Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (s *membershipService) RenewMembership(ctx context.Context, id int, billedAt time.Time) (*Membership, error) {
	return s.transition(ctx, id, func(m *Membership) error {
		if m.Status != MembershipActive {
			return fmt.Errorf("membership %d is %s: %w", id, m.Status, ErrInvalidState)
		}
		b := billedAt.UTC()
		m.LastBilledAt = &b
		m.NextBillingDate = NextBillingDate(m.NextBillingDate.UTC(), m.BillingCycle)
		return nil
	})
}

func (s *membershipService) CancelMembership(ctx context.Context, id int) (*Membership, error) {
	return s.transition(ctx, id, func(m *Membership) error {
		if m.Status == MembershipCancelled || m.Status == MembershipExpired {
			return fmt.Errorf("membership %d is already %s: %w", id, m.Status, ErrInvalidState)
		}
		m.Status = MembershipCancelled
		return nil
	})
}

func (s *membershipService) transition(ctx context.Context, id int, apply func(*Membership) error) (*Membership, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	m, err := getMembership(ctx, tx, id, true)
	if err != nil {
		return nil, err
	}
	if err := apply(m); err != nil {
		return nil, err
	}
	_, err = tx.Exec(ctx, `
		UPDATE memberships
		SET status = $1, next_billing_date = $2, last_billed_at = $3
		WHERE id = $4
	`, string(m.Status), m.NextBillingDate, m.LastBilledAt, id)
	if err != nil {
		return nil, fmt.Errorf("failed to update membership %d: %w", id, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit membership update: %w", err)
	}
	return m, nil
}
