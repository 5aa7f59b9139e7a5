// Package memory holds an in-process SalesRecordStore with the same numbering
// and locking semantics as the PostgreSQL store. It backs tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"autoshop-crm/internal/core"
)

type SalesRecordStore struct {
	mu       sync.Mutex
	records  map[int]*core.SalesRecord
	byNumber map[string]int
	counters map[string]int64
	names    map[int]string
	nextID   int
	now      func() time.Time
}

func NewSalesRecordStore() *SalesRecordStore {
	return &SalesRecordStore{
		records:  map[int]*core.SalesRecord{},
		byNumber: map[string]int{},
		counters: map[string]int64{},
		names:    map[int]string{},
		now:      time.Now,
	}
}

// SetCustomerName registers the display name returned as CustomerName for a customer id.
func (s *SalesRecordStore) SetCustomerName(customerID int, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names[customerID] = name
}

// Import stores rec with the record number it already carries, bypassing the
// month counter. It models rows written by another process or a legacy import.
func (s *SalesRecordStore) Import(rec core.SalesRecord) (*core.SalesRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, _, err := core.ParseRecordNumber(rec.RecordNumber); err != nil {
		return nil, err
	}
	if _, taken := s.byNumber[rec.RecordNumber]; taken {
		return nil, fmt.Errorf("record number %s already taken: %w", rec.RecordNumber, core.ErrRecordNumberConflict)
	}
	s.nextID++
	rec.ID = s.nextID
	now := s.now().UTC()
	rec.CreatedAt, rec.UpdatedAt = now, now
	s.records[rec.ID] = cloneRecord(&rec)
	s.byNumber[rec.RecordNumber] = rec.ID
	return s.view(s.records[rec.ID]), nil
}

func (s *SalesRecordStore) InsertSalesRecord(_ context.Context, rec *core.SalesRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	period := core.RecordPeriod(rec.SaleDate)
	seq, ok := s.counters[period]
	if !ok {
		seq = int64(s.countInMonth(rec.SaleDate))
	}
	seq++
	// The counter advances even when the number turns out to be taken so a retry moves on.
	s.counters[period] = seq

	number := core.FormatRecordNumber(rec.SaleDate, seq)
	if _, taken := s.byNumber[number]; taken {
		return fmt.Errorf("record number %s already taken: %w", number, core.ErrRecordNumberConflict)
	}

	s.nextID++
	now := s.now().UTC()
	rec.ID = s.nextID
	rec.RecordNumber = number
	rec.CreatedAt, rec.UpdatedAt = now, now
	rec.CustomerName = s.names[rec.CustomerID]

	s.records[rec.ID] = cloneRecord(rec)
	s.byNumber[number] = rec.ID
	return nil
}

func (s *SalesRecordStore) countInMonth(saleDate time.Time) int {
	start, next := core.MonthBounds(saleDate)
	n := 0
	for _, r := range s.records {
		if !r.SaleDate.Before(start) && r.SaleDate.Before(next) {
			n++
		}
	}
	return n
}

func (s *SalesRecordStore) UpdateSalesRecord(_ context.Context, id int, mutate func(*core.SalesRecord) error) (*core.SalesRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("sales record %d: %w", id, core.ErrNotFound)
	}
	working := cloneRecord(stored)
	if err := mutate(working); err != nil {
		return nil, err
	}
	working.ID = stored.ID
	working.RecordNumber = stored.RecordNumber
	working.CreatedAt = stored.CreatedAt
	s.records[id] = cloneRecord(working)
	return s.view(s.records[id]), nil
}

func (s *SalesRecordStore) GetSalesRecord(_ context.Context, id int) (*core.SalesRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("sales record %d: %w", id, core.ErrNotFound)
	}
	return s.view(r), nil
}

func (s *SalesRecordStore) GetSalesRecordByNumber(_ context.Context, number string) (*core.SalesRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byNumber[number]
	if !ok {
		return nil, fmt.Errorf("sales record %s: %w", number, core.ErrNotFound)
	}
	return s.view(s.records[id]), nil
}

func (s *SalesRecordStore) ListSalesRecords(_ context.Context, f core.SalesRecordFilter) ([]core.SalesRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []core.SalesRecord{}
	for _, r := range s.records {
		if !matches(r, f) {
			continue
		}
		out = append(out, *s.view(r))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SaleDate.Equal(out[j].SaleDate) {
			return out[i].SaleDate.After(out[j].SaleDate)
		}
		return out[i].ID > out[j].ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func matches(r *core.SalesRecord, f core.SalesRecordFilter) bool {
	switch {
	case f.Status != nil && r.Status != *f.Status:
		return false
	case f.PaymentStatus != nil && r.PaymentStatus != *f.PaymentStatus:
		return false
	case f.CustomerID != nil && r.CustomerID != *f.CustomerID:
		return false
	case f.SalesPersonID != nil && r.SalesPersonID != *f.SalesPersonID:
		return false
	case f.From != nil && r.SaleDate.Before(*f.From):
		return false
	case f.To != nil && r.SaleDate.After(*f.To):
		return false
	}
	return true
}

func (s *SalesRecordStore) SalesStats(_ context.Context, from, to time.Time, salesPersonID *int) (core.SalesStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []core.SalesRecord
	for _, r := range s.records {
		if !core.InStatsRange(r.SaleDate, from, to) {
			continue
		}
		if salesPersonID != nil && r.SalesPersonID != *salesPersonID {
			continue
		}
		matched = append(matched, *r)
	}
	return core.AggregateSalesStats(matched), nil
}

func (s *SalesRecordStore) MarkOverdueFollowUps(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, r := range s.records {
		if r.FollowUpStatus == nil || *r.FollowUpStatus != core.FollowUpScheduled {
			continue
		}
		if r.FollowUpDate == nil || !r.FollowUpDate.Before(now) {
			continue
		}
		overdue := core.FollowUpOverdue
		r.FollowUpStatus = &overdue
		r.UpdatedAt = now
		n++
	}
	return n, nil
}

// view returns a detached copy with the joined customer name filled in.
func (s *SalesRecordStore) view(r *core.SalesRecord) *core.SalesRecord {
	c := cloneRecord(r)
	c.CustomerName = s.names[c.CustomerID]
	return c
}

func cloneRecord(r *core.SalesRecord) *core.SalesRecord {
	c := *r
	c.Items = append([]core.LineItem{}, r.Items...)
	for i := range c.Items {
		if id := c.Items[i].InventoryItemID; id != nil {
			v := *id
			c.Items[i].InventoryItemID = &v
		}
		if id := c.Items[i].ServiceID; id != nil {
			v := *id
			c.Items[i].ServiceID = &v
		}
	}
	c.FollowUpNotes = append([]core.FollowUpNote{}, r.FollowUpNotes...)
	if r.PaymentMethod != nil {
		m := *r.PaymentMethod
		c.PaymentMethod = &m
	}
	if r.PaymentDate != nil {
		d := *r.PaymentDate
		c.PaymentDate = &d
	}
	if r.FollowUpStatus != nil {
		st := *r.FollowUpStatus
		c.FollowUpStatus = &st
	}
	if r.FollowUpDate != nil {
		d := *r.FollowUpDate
		c.FollowUpDate = &d
	}
	if r.Satisfaction != nil {
		sat := *r.Satisfaction
		c.Satisfaction = &sat
	}
	return &c
}
