package domain

import "time"

const (
	OrderPending   = "pending"
	OrderAccepted  = "accepted"
	OrderOnTheWay  = "on_the_way"
	OrderCompleted = "completed"
	OrderCancelled = "cancelled"
)

// Order is a scheduled home-collection job. AssignedAgentID stays nil while
// the order is pending or cancelled and never reverts to nil once set.
type Order struct {
	ID              string `gorm:"primaryKey"`
	Status          string `gorm:"index"`
	Lat             *float64
	Lon             *float64
	PostalRegion    string  `gorm:"index"`
	ScheduledSlotID string  `gorm:"index"`
	ScheduledDate   string  `gorm:"index"` // YYYY-MM-DD
	AssignedAgentID *string `gorm:"index"`
	ServiceCategory string  `gorm:"index"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (o *Order) HasCoords() bool {
	return o.Lat != nil && o.Lon != nil
}

// SlotBookingCounter tracks bookings per (slot, date). Created lazily on the
// first reservation attempt and only ever mutated inside the guard's
// transaction.
type SlotBookingCounter struct {
	SlotID       string `gorm:"primaryKey"`
	CalendarDate string `gorm:"primaryKey"` // YYYY-MM-DD
	Count        int
	Capacity     int
	UpdatedAt    time.Time
}

// RejectionRecord marks that an agent declined an order. At most one row per
// (order, agent); it lapses at ExpiresAt.
type RejectionRecord struct {
	ID        string `gorm:"primaryKey"`
	OrderID   string `gorm:"uniqueIndex:idx_rejections_order_agent"`
	AgentID   string `gorm:"uniqueIndex:idx_rejections_order_agent"`
	Reason    string
	ExpiresAt time.Time `gorm:"index"`
	CreatedAt time.Time
}

// EarningsLedgerEntry is append-only: exactly one row per accepted order.
type EarningsLedgerEntry struct {
	ID           string `gorm:"primaryKey"`
	AgentID      string `gorm:"index"`
	OrderID      string `gorm:"uniqueIndex"`
	Amount       int64  // paise
	BalanceAfter int64
	CreatedAt    time.Time
}

// AgentWallet carries an agent's running balance; BalanceAfter of its latest
// ledger entry always equals Balance.
type AgentWallet struct {
	AgentID   string `gorm:"primaryKey"`
	Balance   int64
	UpdatedAt time.Time
}

// EarningRule configures the base payout per service category. The row with
// DefaultEarningCategory applies when no category-specific rule exists.
type EarningRule struct {
	ID         uint   `gorm:"primaryKey"`
	Category   string `gorm:"uniqueIndex"`
	BaseAmount int64
}

const DefaultEarningCategory = "default"

// DateOf formats t as the calendar date used for slot counters and
// scheduled-date matching.
func DateOf(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
