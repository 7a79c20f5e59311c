package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/NakshatraNamahaCreations/novus-dispatch/internal/domain"
)

type SlotRepo struct{ db *gorm.DB }

func NewSlotRepo(db *gorm.DB) *SlotRepo {
	return &SlotRepo{db: db}
}

func (r *SlotRepo) Migrate() error {
	return r.db.AutoMigrate(&domain.SlotBookingCounter{})
}

// ReserveUnit increments the (slot, date) counter inside a transaction,
// creating the row lazily with the given capacity. The locked
// check-then-increment is the authoritative overbooking guard; it holds even
// when the surrounding lease has lapsed.
func (r *SlotRepo) ReserveUnit(ctx context.Context, slotID, calendarDate string, capacity int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Create-if-absent first so the locking read below always has a row
		// to serialize on, even when two first bookings race.
		seed := domain.SlotBookingCounter{
			SlotID:       slotID,
			CalendarDate: calendarDate,
			Capacity:     capacity,
			UpdatedAt:    time.Now().UTC(),
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
			return err
		}

		var c domain.SlotBookingCounter
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("slot_id = ? AND calendar_date = ?", slotID, calendarDate).
			Take(&c).Error
		if err != nil {
			return err
		}

		if c.Count >= c.Capacity {
			return domain.ErrSlotFull
		}
		c.Count++
		c.UpdatedAt = time.Now().UTC()
		return tx.Save(&c).Error
	})
}

// Counter reads the current counter row, if it exists.
func (r *SlotRepo) Counter(ctx context.Context, slotID, calendarDate string) (*domain.SlotBookingCounter, error) {
	var c domain.SlotBookingCounter
	err := r.db.WithContext(ctx).
		Where("slot_id = ? AND calendar_date = ?", slotID, calendarDate).
		Take(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
