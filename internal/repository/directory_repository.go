package repository

import (
	"context"

	"chatcore/internal/domain/principal"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresDirectoryRepository struct {
	db *gorm.DB
}

func NewDirectoryRepository(db *gorm.DB) DirectoryRepository {
	return &PostgresDirectoryRepository{db: db}
}

func (r *PostgresDirectoryRepository) GetProfiles(ctx context.Context, ids []uuid.UUID) ([]principal.Profile, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []principal.Profile
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PostgresDirectoryRepository) GetExternalParties(ctx context.Context, ids []uuid.UUID) ([]principal.ExternalParty, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []principal.ExternalParty
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
