package core

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPartial  PaymentStatus = "partial"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentPartial, PaymentPaid, PaymentRefunded:
		return true
	}
	return false
}

type SalesStatus string

const (
	SalesDraft     SalesStatus = "draft"
	SalesConfirmed SalesStatus = "confirmed"
	SalesCompleted SalesStatus = "completed"
	SalesCancelled SalesStatus = "cancelled"
	SalesRefunded  SalesStatus = "refunded"
)

func (s SalesStatus) Valid() bool {
	switch s {
	case SalesDraft, SalesConfirmed, SalesCompleted, SalesCancelled, SalesRefunded:
		return true
	}
	return false
}

type FollowUpStatus string

const (
	FollowUpScheduled FollowUpStatus = "scheduled"
	FollowUpCompleted FollowUpStatus = "completed"
	FollowUpCancelled FollowUpStatus = "cancelled"
	FollowUpOverdue   FollowUpStatus = "overdue"
)

func (s FollowUpStatus) Valid() bool {
	switch s {
	case FollowUpScheduled, FollowUpCompleted, FollowUpCancelled, FollowUpOverdue:
		return true
	}
	return false
}

type PaymentMethod string

const (
	MethodCash       PaymentMethod = "cash"
	MethodCreditCard PaymentMethod = "credit_card"
	MethodDebitCard  PaymentMethod = "debit_card"
	MethodCheck      PaymentMethod = "check"
	MethodFinancing  PaymentMethod = "financing"
	MethodOther      PaymentMethod = "other"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodCreditCard, MethodDebitCard, MethodCheck, MethodFinancing, MethodOther:
		return true
	}
	return false
}

// SalesRecord is one completed or in-progress sale.
// RecordNumber is assigned once at insert and never rewritten.
// Subtotal and Total are always derived from Items, Tax and Discount.
type SalesRecord struct {
	ID             int                   `json:"id"`
	RecordNumber   string                `json:"record_number"`
	CustomerID     int                   `json:"customer_id"`
	CustomerName   string                `json:"customer_name,omitempty"` // joined from customers
	SalesPersonID  int                   `json:"sales_person_id"`
	SaleDate       time.Time             `json:"sale_date"`
	Items          []LineItem            `json:"items"`
	Subtotal       decimal.Decimal       `json:"subtotal"`
	Tax            decimal.Decimal       `json:"tax"`
	Discount       decimal.Decimal       `json:"discount"`
	Total          decimal.Decimal       `json:"total"`
	PaymentStatus  PaymentStatus         `json:"payment_status"`
	PaymentMethod  *PaymentMethod        `json:"payment_method,omitempty"`
	PaymentDate    *time.Time            `json:"payment_date,omitempty"`
	Status         SalesStatus           `json:"status"`
	FollowUpStatus *FollowUpStatus       `json:"follow_up_status,omitempty"`
	FollowUpDate   *time.Time            `json:"follow_up_date,omitempty"`
	FollowUpNotes  []FollowUpNote        `json:"follow_up_notes"`
	Satisfaction   *CustomerSatisfaction `json:"customer_satisfaction,omitempty"`
	Notes          string                `json:"notes"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

// LineItem is one row of a sale. TotalPrice is caller-supplied.
type LineItem struct {
	Name            string          `json:"name"`
	Quantity        int             `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	TotalPrice      decimal.Decimal `json:"total_price"`
	InventoryItemID *int            `json:"inventory_item_id,omitempty"`
	ServiceID       *int            `json:"service_id,omitempty"`
}

type FollowUpNote struct {
	Content   string    `json:"content"`
	AuthorID  int       `json:"author_id"`
	Timestamp time.Time `json:"timestamp"`
}

type CustomerSatisfaction struct {
	Rating     int       `json:"rating"`
	Feedback   string    `json:"feedback"`
	RecordedAt time.Time `json:"recorded_at"`
}

// SalesStats is the aggregate returned by GetSalesStats.
type SalesStats struct {
	TotalSales   int             `json:"total_sales"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
	TotalItems   int             `json:"total_items"`
	AvgSaleValue decimal.Decimal `json:"avg_sale_value"`
}

// SalesRecordInput is used when creating a new sales record.
// A zero SaleDate means "now"; empty statuses fall back to draft / pending.
type SalesRecordInput struct {
	CustomerID    int
	SalesPersonID int
	SaleDate      time.Time
	Items         []LineItem
	Tax           decimal.Decimal
	Discount      decimal.Decimal
	Status        SalesStatus
	PaymentStatus PaymentStatus
	PaymentMethod *PaymentMethod
	Notes         string
}

// SalesRecordPatch carries a partial update. Nil fields are left untouched.
type SalesRecordPatch struct {
	CustomerID    *int
	SalesPersonID *int
	Items         []LineItem // nil = unchanged
	Tax           *decimal.Decimal
	Discount      *decimal.Decimal
	Status        *SalesStatus
	Notes         *string
}

// SalesRecordFilter narrows ListSalesRecords. Zero values mean "no filter".
type SalesRecordFilter struct {
	Status        *SalesStatus
	PaymentStatus *PaymentStatus
	CustomerID    *int
	SalesPersonID *int
	From          *time.Time // inclusive
	To            *time.Time // inclusive
	Limit         int
}
