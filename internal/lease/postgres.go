package lease

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/NakshatraNamahaCreations/novus-dispatch/internal/domain"
)

// SlotLease is the backing row for a Postgres-held grant.
type SlotLease struct {
	Key       string `gorm:"primaryKey"`
	Token     string
	ExpiresAt time.Time `gorm:"index"`
}

// PostgresLease stores grants in a table shared by all nodes. Acquire is a
// single upsert that only steals the row when the previous grant has lapsed.
type PostgresLease struct {
	db *gorm.DB
}

func NewPostgresLease(db *gorm.DB) *PostgresLease {
	return &PostgresLease{db: db}
}

func (l *PostgresLease) Migrate() error {
	return l.db.AutoMigrate(&SlotLease{})
}

func (l *PostgresLease) Acquire(ctx context.Context, key string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	token := uuid.NewString()

	res := l.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.Assignments(map[string]any{
			"token":      token,
			"expires_at": now.Add(ttl),
		}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Lte{Column: clause.Column{Table: "slot_leases", Name: "expires_at"}, Value: now},
		}},
	}).Create(&SlotLease{Key: key, Token: token, ExpiresAt: now.Add(ttl)})
	if res.Error != nil {
		return "", res.Error
	}
	if res.RowsAffected == 0 {
		return "", domain.ErrBusy
	}
	return token, nil
}

func (l *PostgresLease) Release(ctx context.Context, key, token string) error {
	// Token comparison keeps a late release from deleting someone else's
	// grant after ours expired and was re-acquired.
	return l.db.WithContext(ctx).
		Where("key = ? AND token = ?", key, token).
		Delete(&SlotLease{}).Error
}
