package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/NakshatraNamahaCreations/novus-dispatch/internal/domain"
)

type RejectionRepo struct {
	db  *gorm.DB
	ttl time.Duration
}

func NewRejectionRepo(db *gorm.DB, ttl time.Duration) *RejectionRepo {
	return &RejectionRepo{db: db, ttl: ttl}
}

func (r *RejectionRepo) Migrate() error {
	return r.db.AutoMigrate(&domain.RejectionRecord{})
}

// Record marks (orderID, agentID) as declined. Idempotent: a second call
// for the same pair is a no-op, not an error.
func (r *RejectionRepo) Record(ctx context.Context, orderID, agentID, reason string) error {
	now := time.Now().UTC()
	rec := domain.RejectionRecord{
		ID:        uuid.NewString(),
		OrderID:   orderID,
		AgentID:   agentID,
		Reason:    reason,
		ExpiresAt: now.Add(r.ttl),
		CreatedAt: now,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "order_id"}, {Name: "agent_id"}},
		DoNothing: true,
	}).Create(&rec).Error
}

func (r *RejectionRepo) IsRejected(ctx context.Context, orderID, agentID string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&domain.RejectionRecord{}).
		Where("order_id = ? AND agent_id = ? AND expires_at > ?", orderID, agentID, time.Now().UTC()).
		Count(&n).Error
	return n > 0, err
}

// RejectedAgents returns the unexpired decline set for one order.
func (r *RejectionRepo) RejectedAgents(ctx context.Context, orderID string) (map[string]struct{}, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&domain.RejectionRecord{}).
		Where("order_id = ? AND expires_at > ?", orderID, time.Now().UTC()).
		Pluck("agent_id", &ids).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out, nil
}
