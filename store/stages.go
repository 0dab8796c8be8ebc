package store

import (
	"context"

	"github.com/kendall-kelly/memorial-diamonds-api/apperrors"
	"github.com/kendall-kelly/memorial-diamonds-api/models"
)

// SeedProductionStages fills an empty catalog with the given stages.
// It returns the number of stages inserted.
func (s *Store) SeedProductionStages(ctx context.Context, stages []models.ProductionStage) (int, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.ProductionStage{}).Count(&count).Error; err != nil {
		return 0, dbError(err, MsgStagesNotConfigured)
	}
	if count > 0 || len(stages) == 0 {
		return 0, nil
	}
	if err := s.db.WithContext(ctx).Create(&stages).Error; err != nil {
		return 0, dbError(err, MsgStagesNotConfigured)
	}
	return len(stages), nil
}

// ActiveStages returns the active catalog in stage order.
func (s *Store) ActiveStages(ctx context.Context) ([]models.ProductionStage, error) {
	var stages []models.ProductionStage
	err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("stage_order ASC").
		Find(&stages).Error
	if err != nil {
		return nil, dbError(err, MsgStagesNotConfigured)
	}
	if len(stages) == 0 {
		return nil, apperrors.New(apperrors.CodeInternal, MsgStagesNotConfigured)
	}
	return stages, nil
}
