package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/NakshatraNamahaCreations/novus-dispatch/internal/domain"
)

// EarningsRepo reads wallet balances and ledger history. Writes happen only
// inside OrderRepo.AssignWinner, in the same transaction as the assignment.
type EarningsRepo struct{ db *gorm.DB }

func NewEarningsRepo(db *gorm.DB) *EarningsRepo {
	return &EarningsRepo{db: db}
}

func (r *EarningsRepo) Balance(ctx context.Context, agentID string) (int64, error) {
	var w domain.AgentWallet
	err := r.db.WithContext(ctx).Where("agent_id = ?", agentID).Take(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return w.Balance, nil
}

func (r *EarningsRepo) Entries(ctx context.Context, agentID string, limit int) ([]domain.EarningsLedgerEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	var out []domain.EarningsLedgerEntry
	err := r.db.WithContext(ctx).
		Where("agent_id = ?", agentID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
