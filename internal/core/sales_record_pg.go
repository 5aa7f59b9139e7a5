package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const recordNumberConstraint = "sales_records_record_number_key"

type pgSalesRecordStore struct {
	pool *pgxpool.Pool
}

// NewPostgresSalesRecordStore returns a SalesRecordStore backed by PostgreSQL.
func NewPostgresSalesRecordStore(pool *pgxpool.Pool) SalesRecordStore {
	return &pgSalesRecordStore{pool: pool}
}

// pgxQuerier is satisfied by both *pgxpool.Pool and pgx.Tx, enabling shared query helpers.
type pgxQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const salesRecordColumns = `
	sr.id, sr.record_number, sr.customer_id, COALESCE(c.first_name || ' ' || c.last_name, ''),
	sr.sales_person_id, sr.sale_date, sr.subtotal, sr.tax, sr.discount, sr.total,
	sr.payment_status, sr.payment_method, sr.payment_date, sr.status,
	sr.follow_up_status, sr.follow_up_date,
	sr.satisfaction_rating, sr.satisfaction_feedback, sr.satisfaction_recorded_at,
	sr.notes, sr.created_at, sr.updated_at`

const salesRecordFrom = `
	FROM sales_records sr
	LEFT JOIN customers c ON c.id = sr.customer_id`

// ── Numbering ────────────────────────────────────────────────────────────────

// reserveRecordSequence atomically takes the next number of the sale date's month.
// A month without a counter row is seeded from the count of records already dated in it.
// The counter row stays locked until tx ends, which serialises concurrent creates.
func reserveRecordSequence(ctx context.Context, tx pgx.Tx, saleDate time.Time) (int64, error) {
	start, next := MonthBounds(saleDate)
	var seq int64
	err := tx.QueryRow(ctx, `
		INSERT INTO sales_record_sequences (period, last_number)
		VALUES ($1, (SELECT COUNT(*) FROM sales_records WHERE sale_date >= $2 AND sale_date < $3) + 1)
		ON CONFLICT (period)
		DO UPDATE SET last_number = sales_record_sequences.last_number + 1
		RETURNING last_number
	`, RecordPeriod(saleDate), start, next).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("failed to reserve record sequence: %w", err)
	}
	return seq, nil
}

// advanceRecordSequence moves the month counter to at least seq so a retry
// does not hand out a number that is already taken.
func (s *pgSalesRecordStore) advanceRecordSequence(ctx context.Context, saleDate time.Time, seq int64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sales_record_sequences (period, last_number)
		VALUES ($1, $2)
		ON CONFLICT (period)
		DO UPDATE SET last_number = GREATEST(sales_record_sequences.last_number, EXCLUDED.last_number)
	`, RecordPeriod(saleDate), seq)
	if err != nil {
		return fmt.Errorf("failed to advance record sequence: %w", err)
	}
	return nil
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && (constraint == "" || pgErr.ConstraintName == constraint)
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

// ── Writes ───────────────────────────────────────────────────────────────────

func (s *pgSalesRecordStore) InsertSalesRecord(ctx context.Context, rec *SalesRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	seq, err := reserveRecordSequence(ctx, tx, rec.SaleDate)
	if err != nil {
		return err
	}
	number := FormatRecordNumber(rec.SaleDate, seq)

	err = tx.QueryRow(ctx, `
		INSERT INTO sales_records (
			record_number, customer_id, sales_person_id, sale_date,
			subtotal, tax, discount, total,
			payment_status, payment_method, payment_date, status, notes
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at, updated_at
	`, number, rec.CustomerID, rec.SalesPersonID, rec.SaleDate,
		rec.Subtotal, rec.Tax, rec.Discount, rec.Total,
		string(rec.PaymentStatus), paymentMethodArg(rec.PaymentMethod), rec.PaymentDate,
		string(rec.Status), rec.Notes,
	).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, recordNumberConstraint) {
			_ = tx.Rollback(ctx)
			if advErr := s.advanceRecordSequence(ctx, rec.SaleDate, seq); advErr != nil {
				return advErr
			}
			return fmt.Errorf("record number %s already taken: %w", number, ErrRecordNumberConflict)
		}
		if isForeignKeyViolation(err) {
			return fmt.Errorf("customer %d or sales person %d: %w", rec.CustomerID, rec.SalesPersonID, ErrNotFound)
		}
		return fmt.Errorf("failed to insert sales record: %w", err)
	}

	if err := insertLineItems(ctx, tx, rec.ID, rec.Items); err != nil {
		return err
	}
	if err := insertFollowUpNotes(ctx, tx, rec.ID, rec.FollowUpNotes); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit sales record creation: %w", err)
	}
	rec.RecordNumber = number
	return nil
}

func (s *pgSalesRecordStore) UpdateSalesRecord(ctx context.Context, id int, mutate func(*SalesRecord) error) (*SalesRecord, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	rec, err := scanSalesRecord(tx.QueryRow(ctx,
		"SELECT"+salesRecordColumns+salesRecordFrom+" WHERE sr.id = $1 FOR UPDATE OF sr", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("sales record %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch sales record %d: %w", id, err)
	}
	if err := loadChildren(ctx, tx, []*SalesRecord{rec}); err != nil {
		return nil, err
	}

	knownNotes := len(rec.FollowUpNotes)
	number, createdAt := rec.RecordNumber, rec.CreatedAt
	if err := mutate(rec); err != nil {
		return nil, err
	}
	rec.ID, rec.RecordNumber, rec.CreatedAt = id, number, createdAt

	var (
		rating     *int
		feedback   *string
		recordedAt *time.Time
	)
	if rec.Satisfaction != nil {
		rating = &rec.Satisfaction.Rating
		feedback = &rec.Satisfaction.Feedback
		recordedAt = &rec.Satisfaction.RecordedAt
	}
	var followUpStatus *string
	if rec.FollowUpStatus != nil {
		v := string(*rec.FollowUpStatus)
		followUpStatus = &v
	}

	_, err = tx.Exec(ctx, `
		UPDATE sales_records
		SET customer_id = $1, sales_person_id = $2, subtotal = $3, tax = $4, discount = $5, total = $6,
		    payment_status = $7, payment_method = $8, payment_date = $9, status = $10,
		    follow_up_status = $11, follow_up_date = $12,
		    satisfaction_rating = $13, satisfaction_feedback = $14, satisfaction_recorded_at = $15,
		    notes = $16, updated_at = $17
		WHERE id = $18
	`, rec.CustomerID, rec.SalesPersonID, rec.Subtotal, rec.Tax, rec.Discount, rec.Total,
		string(rec.PaymentStatus), paymentMethodArg(rec.PaymentMethod), rec.PaymentDate, string(rec.Status),
		followUpStatus, rec.FollowUpDate,
		rating, feedback, recordedAt,
		rec.Notes, rec.UpdatedAt, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("customer %d or sales person %d: %w", rec.CustomerID, rec.SalesPersonID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to update sales record %d: %w", id, err)
	}

	if _, err := tx.Exec(ctx, "DELETE FROM sales_record_items WHERE sales_record_id = $1", id); err != nil {
		return nil, fmt.Errorf("failed to replace items of sales record %d: %w", id, err)
	}
	if err := insertLineItems(ctx, tx, id, rec.Items); err != nil {
		return nil, err
	}
	if len(rec.FollowUpNotes) > knownNotes {
		if err := insertFollowUpNotes(ctx, tx, id, rec.FollowUpNotes[knownNotes:]); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit sales record update: %w", err)
	}
	return rec, nil
}

func insertLineItems(ctx context.Context, tx pgx.Tx, recordID int, items []LineItem) error {
	for i, it := range items {
		_, err := tx.Exec(ctx, `
			INSERT INTO sales_record_items (sales_record_id, line_number, name, quantity, unit_price, total_price, inventory_item_id, service_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, recordID, i+1, it.Name, it.Quantity, it.UnitPrice, it.TotalPrice, it.InventoryItemID, it.ServiceID)
		if err != nil {
			return fmt.Errorf("failed to insert line item %d: %w", i+1, err)
		}
	}
	return nil
}

func insertFollowUpNotes(ctx context.Context, tx pgx.Tx, recordID int, notes []FollowUpNote) error {
	for _, n := range notes {
		_, err := tx.Exec(ctx, `
			INSERT INTO sales_record_follow_up_notes (sales_record_id, content, author_id, created_at)
			VALUES ($1, $2, $3, $4)
		`, recordID, n.Content, n.AuthorID, n.Timestamp)
		if err != nil {
			if isForeignKeyViolation(err) {
				return fmt.Errorf("note author %d: %w", n.AuthorID, ErrNotFound)
			}
			return fmt.Errorf("failed to insert follow-up note: %w", err)
		}
	}
	return nil
}

func (s *pgSalesRecordStore) MarkOverdueFollowUps(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE sales_records
		SET follow_up_status = 'overdue', updated_at = $1
		WHERE follow_up_status = 'scheduled' AND follow_up_date < $1
	`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to mark overdue follow-ups: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// ── Queries ──────────────────────────────────────────────────────────────────

func (s *pgSalesRecordStore) GetSalesRecord(ctx context.Context, id int) (*SalesRecord, error) {
	return s.getOne(ctx, "sr.id = $1", id, fmt.Sprintf("sales record %d", id))
}

func (s *pgSalesRecordStore) GetSalesRecordByNumber(ctx context.Context, number string) (*SalesRecord, error) {
	return s.getOne(ctx, "sr.record_number = $1", number, "sales record "+number)
}

func (s *pgSalesRecordStore) getOne(ctx context.Context, where string, arg any, label string) (*SalesRecord, error) {
	rec, err := scanSalesRecord(s.pool.QueryRow(ctx, "SELECT"+salesRecordColumns+salesRecordFrom+" WHERE "+where, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", label, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch %s: %w", label, err)
	}
	if err := loadChildren(ctx, s.pool, []*SalesRecord{rec}); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *pgSalesRecordStore) ListSalesRecords(ctx context.Context, f SalesRecordFilter) ([]SalesRecord, error) {
	query := "SELECT" + salesRecordColumns + salesRecordFrom + " WHERE TRUE"
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		query += fmt.Sprintf(" AND "+cond, len(args))
	}
	if f.Status != nil {
		add("sr.status = $%d", string(*f.Status))
	}
	if f.PaymentStatus != nil {
		add("sr.payment_status = $%d", string(*f.PaymentStatus))
	}
	if f.CustomerID != nil {
		add("sr.customer_id = $%d", *f.CustomerID)
	}
	if f.SalesPersonID != nil {
		add("sr.sales_person_id = $%d", *f.SalesPersonID)
	}
	if f.From != nil {
		add("sr.sale_date >= $%d", *f.From)
	}
	if f.To != nil {
		add("sr.sale_date <= $%d", *f.To)
	}
	query += " ORDER BY sr.sale_date DESC, sr.id DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sales records: %w", err)
	}
	defer rows.Close()

	var records []SalesRecord
	for rows.Next() {
		rec, err := scanSalesRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sales record: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sales records: %w", err)
	}

	ptrs := make([]*SalesRecord, len(records))
	for i := range records {
		ptrs[i] = &records[i]
	}
	if err := loadChildren(ctx, s.pool, ptrs); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *pgSalesRecordStore) SalesStats(ctx context.Context, from, to time.Time, salesPersonID *int) (SalesStats, error) {
	var (
		count   int
		revenue decimal.Decimal
		items   int
	)
	err := s.pool.QueryRow(ctx, `
		WITH matched AS (
			SELECT id, total
			FROM sales_records
			WHERE sale_date >= $1 AND sale_date <= $2
			  AND ($3::int IS NULL OR sales_person_id = $3)
		)
		SELECT
			(SELECT COUNT(*) FROM matched)::int,
			(SELECT COALESCE(SUM(total), 0) FROM matched),
			(SELECT COALESCE(SUM(i.quantity), 0) FROM sales_record_items i JOIN matched m ON m.id = i.sales_record_id)::int
	`, from, to, salesPersonID).Scan(&count, &revenue, &items)
	if err != nil {
		return SalesStats{}, fmt.Errorf("failed to aggregate sales stats: %w", err)
	}
	return newSalesStats(count, revenue, items), nil
}

// ── Scanning ─────────────────────────────────────────────────────────────────

func paymentMethodArg(m *PaymentMethod) *string {
	if m == nil {
		return nil
	}
	v := string(*m)
	return &v
}

func scanSalesRecord(row pgx.Row) (*SalesRecord, error) {
	var (
		rec            SalesRecord
		paymentStatus  string
		status         string
		paymentMethod  *string
		followUpStatus *string
		rating         *int
		feedback       *string
		recordedAt     *time.Time
	)
	err := row.Scan(
		&rec.ID, &rec.RecordNumber, &rec.CustomerID, &rec.CustomerName,
		&rec.SalesPersonID, &rec.SaleDate, &rec.Subtotal, &rec.Tax, &rec.Discount, &rec.Total,
		&paymentStatus, &paymentMethod, &rec.PaymentDate, &status,
		&followUpStatus, &rec.FollowUpDate,
		&rating, &feedback, &recordedAt,
		&rec.Notes, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.PaymentStatus = PaymentStatus(paymentStatus)
	rec.Status = SalesStatus(status)
	if paymentMethod != nil {
		m := PaymentMethod(*paymentMethod)
		rec.PaymentMethod = &m
	}
	if followUpStatus != nil {
		fs := FollowUpStatus(*followUpStatus)
		rec.FollowUpStatus = &fs
	}
	if rating != nil {
		sat := &CustomerSatisfaction{Rating: *rating}
		if feedback != nil {
			sat.Feedback = *feedback
		}
		if recordedAt != nil {
			sat.RecordedAt = *recordedAt
		}
		rec.Satisfaction = sat
	}
	rec.Items = []LineItem{}
	rec.FollowUpNotes = []FollowUpNote{}
	return &rec, nil
}

// loadChildren fills Items and FollowUpNotes for the given records with two queries.
func loadChildren(ctx context.Context, q pgxQuerier, records []*SalesRecord) error {
	if len(records) == 0 {
		return nil
	}
	byID := make(map[int]*SalesRecord, len(records))
	ids := make([]int, 0, len(records))
	for _, r := range records {
		byID[r.ID] = r
		ids = append(ids, r.ID)
	}

	rows, err := q.Query(ctx, `
		SELECT sales_record_id, name, quantity, unit_price, total_price, inventory_item_id, service_id
		FROM sales_record_items
		WHERE sales_record_id = ANY($1)
		ORDER BY sales_record_id, line_number
	`, ids)
	if err != nil {
		return fmt.Errorf("failed to query line items: %w", err)
	}
	for rows.Next() {
		var recordID int
		var it LineItem
		if err := rows.Scan(&recordID, &it.Name, &it.Quantity, &it.UnitPrice, &it.TotalPrice, &it.InventoryItemID, &it.ServiceID); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan line item: %w", err)
		}
		byID[recordID].Items = append(byID[recordID].Items, it)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating line items: %w", err)
	}

	rows, err = q.Query(ctx, `
		SELECT sales_record_id, content, author_id, created_at
		FROM sales_record_follow_up_notes
		WHERE sales_record_id = ANY($1)
		ORDER BY sales_record_id, id
	`, ids)
	if err != nil {
		return fmt.Errorf("failed to query follow-up notes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var recordID int
		var n FollowUpNote
		if err := rows.Scan(&recordID, &n.Content, &n.AuthorID, &n.Timestamp); err != nil {
			return fmt.Errorf("failed to scan follow-up note: %w", err)
		}
		byID[recordID].FollowUpNotes = append(byID[recordID].FollowUpNotes, n)
	}
	return rows.Err()
}
