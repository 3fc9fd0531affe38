package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"planner-agent/internal/model"
)

// OwnerRepository records the profiles of owners who talked to the bot.
type OwnerRepository struct {
	db *gorm.DB
}

func NewOwnerRepository(db *gorm.DB) *OwnerRepository {
	return &OwnerRepository{db: db}
}

// Touch creates or refreshes an owner's profile and last-seen time.
func (r *OwnerRepository) Touch(ctx context.Context, telegramID int64, firstName, username string, seenAt time.Time) error {
	owner := model.Owner{
		TelegramID: telegramID,
		FirstName:  firstName,
		Username:   username,
		LastSeenAt: seenAt,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "telegram_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"first_name", "username", "last_seen_at", "updated_at"}),
	}).Create(&owner).Error
	if err != nil {
		return fmt.Errorf("touch owner: %w", err)
	}
	return nil
}

// ListAll returns known owners, most recently seen first.
func (r *OwnerRepository) ListAll(ctx context.Context) ([]model.Owner, error) {
	var owners []model.Owner
	if err := r.db.WithContext(ctx).Order("last_seen_at DESC").Find(&owners).Error; err != nil {
		return nil, fmt.Errorf("list owners: %w", err)
	}
	return owners, nil
}
