package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/NakshatraNamahaCreations/novus-dispatch/internal/domain"
)

type OrderRepo struct{ db *gorm.DB }

func NewOrderRepo(db *gorm.DB) *OrderRepo {
	return &OrderRepo{db: db}
}

func (r *OrderRepo) Migrate() error {
	return r.db.AutoMigrate(
		&domain.Order{},
		&domain.AgentWallet{},
		&domain.EarningsLedgerEntry{},
		&domain.EarningRule{},
	)
}

func (r *OrderRepo) Create(ctx context.Context, o *domain.Order) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Status == "" {
		o.Status = domain.OrderPending
	}
	return r.db.WithContext(ctx).Create(o).Error
}

func (r *OrderRepo) ByID(ctx context.Context, id string) (*domain.Order, error) {
	var o domain.Order
	if err := r.db.WithContext(ctx).First(&o, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

// PendingCreatedBetween lists unassigned orders created inside [from, to).
// Reconnect replay feeds it the current calendar day: older pending orders
// are left for manual assignment and never replayed.
func (r *OrderRepo) PendingCreatedBetween(ctx context.Context, from, to time.Time) ([]domain.Order, error) {
	var out []domain.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at >= ? AND created_at < ?", domain.OrderPending, from, to).
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}

// AssignWinner atomically makes agentID the single winner of orderID and
// books the earnings for it. Runs in one transaction so a lost race can
// never leave a partial assignment or a stray ledger entry.
func (r *OrderRepo) AssignWinner(ctx context.Context, orderID, agentID string) (*domain.Order, *domain.EarningsLedgerEntry, error) {
	var (
		won   domain.Order
		entry domain.EarningsLedgerEntry
	)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var o domain.Order
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&o, "id = ?", orderID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}

		if o.Status == domain.OrderCancelled {
			return domain.ErrNotFound
		}
		if o.AssignedAgentID != nil || o.Status != domain.OrderPending {
			return domain.ErrAlreadyAccepted
		}

		// Own-calendar conflict: the agent already holds an accepted order
		// in the same slot on the same date.
		var conflict domain.Order
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("assigned_agent_id = ? AND scheduled_slot_id = ? AND scheduled_date = ?",
				agentID, o.ScheduledSlotID, o.ScheduledDate).
			Take(&conflict).Error
		if err == nil {
			return domain.ErrSlotConflict
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		now := time.Now().UTC()
		o.AssignedAgentID = &agentID
		o.Status = domain.OrderAccepted
		o.UpdatedAt = now
		if err := tx.Save(&o).Error; err != nil {
			return err
		}

		amount, err := earningAmount(tx, o.ServiceCategory)
		if err != nil {
			return err
		}

		var w domain.AgentWallet
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("agent_id = ?", agentID).
			Take(&w).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// seed the wallet row so the locking re-read below always has
			// something to serialize on
			seed := domain.AgentWallet{AgentID: agentID, UpdatedAt: now}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
				return err
			}
			err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("agent_id = ?", agentID).
				Take(&w).Error
		}
		if err != nil {
			return err
		}
		w.Balance += amount
		w.UpdatedAt = now
		if err := tx.Save(&w).Error; err != nil {
			return err
		}

		entry = domain.EarningsLedgerEntry{
			ID:           uuid.NewString(),
			AgentID:      agentID,
			OrderID:      orderID,
			Amount:       amount,
			BalanceAfter: w.Balance,
			CreatedAt:    now,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}

		won = o
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &won, &entry, nil
}

// fallbackEarning applies when no earning rule rows exist at all.
const fallbackEarning int64 = 15000

func earningAmount(tx *gorm.DB, category string) (int64, error) {
	var rule domain.EarningRule
	err := tx.Where("category = ?", category).Take(&rule).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = tx.Where("category = ?", domain.DefaultEarningCategory).Take(&rule).Error
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fallbackEarning, nil
	}
	if err != nil {
		return 0, err
	}
	return rule.BaseAmount, nil
}
