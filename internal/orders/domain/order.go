package domain

import (
	"strings"
	"time"
)

// DeliveryStatus captures whether an order has reached the customer.
type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliveryDelivered DeliveryStatus = "delivered"
)

// BookConfig maps a subject name to the number of copies allocated.
type BookConfig map[string]int

// Office charge defaults to 10% of the paid amount.
const officeChargePercent = 10

// CanonicalOrder is the normalized record every source adapter produces.
// The source tag is attached by the ingestion scheduler, not the adapter.
type CanonicalOrder struct {
	ID          string    `json:"id"`
	Address     string    `json:"address"`
	State       string    `json:"state"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	Fullname    string    `json:"fullname"`
	CreatedAt   time.Time `json:"created_at"`
	Item        OrderItem `json:"item"`
	OrderAmount int64     `json:"order_amount"`
}

// Order is a canonical record plus the back-office state layered on top of it.
// StorageID is empty until the order has been persisted for the first time;
// (Source, ID) is the natural key used for deduplication across polls.
type Order struct {
	CanonicalOrder

	StorageID      string         `json:"_id,omitempty"`
	Source         string         `json:"source"`
	AgentID        string         `json:"agent_id,omitempty"`
	DeliveryStatus DeliveryStatus `json:"delivery_status"`
	DeliveryCost   int64          `json:"delivery_cost,omitempty"`
	OfficeCharge   int64          `json:"office_charge"`
	Books          BookConfig     `json:"books,omitempty"`
	AssignedOn     *time.Time     `json:"assigned_on,omitempty"`
	ConfirmedOn    *time.Time     `json:"confirmed_on,omitempty"`
	DeliveredOn    *time.Time     `json:"delivered_on,omitempty"`

	// IngestedAt is the poll timestamp the order was observed at. It anchors
	// the freshness heuristic, not any persistence decision.
	IngestedAt time.Time `json:"-"`
}

// NewOrder tags a canonical feed record with its source and applies defaults.
func NewOrder(source string, rec CanonicalOrder, ingestedAt time.Time) *Order {
	o := &Order{CanonicalOrder: rec, Source: source}
	o.Normalize(ingestedAt)
	return o
}

// Normalize applies defaults to a freshly ingested or loaded record and
// reports whether a missing delivered_on timestamp was backfilled. The caller
// is expected to persist backfilled orders best-effort; Normalize itself never
// touches storage so reads stay pure.
func (o *Order) Normalize(ingestedAt time.Time) (backfilled bool) {
	o.IngestedAt = ingestedAt
	if o.DeliveryStatus == "" {
		o.DeliveryStatus = DeliveryPending
	}
	if o.OfficeCharge == 0 {
		o.OfficeCharge = DefaultOfficeCharge(o.OrderAmount)
	}
	if o.DeliveryStatus == DeliveryDelivered && o.DeliveredOn == nil {
		stamped := ingestedAt
		o.DeliveredOn = &stamped
		return true
	}
	return false
}

// DefaultOfficeCharge derives the standard office charge for a paid amount.
func DefaultOfficeCharge(orderAmount int64) int64 {
	return orderAmount * officeChargePercent / 100
}

// UniqueID is the composite natural key used by the order store.
func (o *Order) UniqueID() string {
	return strings.ToLower(o.Source) + "-" + strings.ToLower(o.ID)
}

func (o *Order) IsConfirmed() bool { return o.ConfirmedOn != nil }

func (o *Order) IsAssigned() bool { return o.AgentID != "" }

// CanMutate reports whether edits are still allowed. Delivered orders are
// frozen as a policy, enforced by the operations service.
func (o *Order) CanMutate() bool { return o.DeliveryStatus != DeliveryDelivered }

// DeliveryStatusWeight orders pending before delivered when sorting.
func (o *Order) DeliveryStatusWeight() int {
	if o.DeliveryStatus == DeliveryPending {
		return 0
	}
	return 1
}

// IsNew is the freshness heuristic behind the NEW badge: assigned within the
// last 10 minutes, else confirmed within 30, else created within an hour of
// the ingestion timestamp.
func (o *Order) IsNew(now time.Time) bool {
	if o.AssignedOn != nil {
		return now.Sub(*o.AssignedOn) < 10*time.Minute
	}
	if o.ConfirmedOn != nil {
		return now.Sub(*o.ConfirmedOn) < 30*time.Minute
	}
	return o.IngestedAt.Sub(o.CreatedAt) < time.Hour
}

// TotalBookCost prices the current book allocation.
func (o *Order) TotalBookCost(costPerBook int64) int64 {
	var total int64
	for _, count := range o.Books {
		total += int64(count) * costPerBook
	}
	return total
}

// ActualCost is what fulfilling the order costs the business.
func (o *Order) ActualCost(costPerBook int64) int64 {
	return o.DeliveryCost + o.TotalBookCost(costPerBook) + o.OfficeCharge
}

// AffiliateEarning is the paid amount net of the actual cost, floored at zero.
func (o *Order) AffiliateEarning(costPerBook int64) int64 {
	earning := o.OrderAmount - o.ActualCost(costPerBook)
	if earning < 0 {
		return 0
	}
	return earning
}

// AgentEarning is the delivery cost; zero while the order is undelivered
// because the cost is only set at delivery time.
func (o *Order) AgentEarning() int64 { return o.DeliveryCost }

// ConfigValidForPaidAmount gates delivery and book updates: the paid amount
// must strictly exceed the cost the proposed configuration would incur.
func (o *Order) ConfigValidForPaidAmount(books BookConfig, deliveryCost, costPerBook int64) bool {
	var bookCost int64
	for _, count := range books {
		bookCost += int64(count) * costPerBook
	}
	return o.OrderAmount > deliveryCost+bookCost+o.OfficeCharge
}
