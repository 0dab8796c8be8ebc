package store

import (
	"context"
	"fmt"

	"github.com/kendall-kelly/memorial-diamonds-api/apperrors"
	"github.com/kendall-kelly/memorial-diamonds-api/enums"
	"github.com/kendall-kelly/memorial-diamonds-api/models"
	"gorm.io/gorm"
)

// CreateMedia records an uploaded file and appends it after the stage's existing media.
func (s *Store) CreateMedia(ctx context.Context, media *models.Media) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.First(&order, media.OrderID).Error; err != nil {
			return err
		}

		var maxSort int
		if err := tx.Model(&models.Media{}).
			Where("order_id = ? AND stage_id = ?", media.OrderID, media.StageID).
			Select("COALESCE(MAX(sort_order), 0)").
			Scan(&maxSort).Error; err != nil {
			return err
		}
		media.SortOrder = maxSort + 1
		if media.UploadedAt.IsZero() {
			media.UploadedAt = s.timestamp()
		}

		if err := tx.Create(media).Error; err != nil {
			return err
		}

		return s.appendLog(tx, &order, models.OperationUploadMedia, media.UploadedBy,
			fmt.Sprintf("上传%s：客户 %s - %s", mediaLabel(media), order.CustomerName, media.StageName),
			map[string]any{
				"media_id":   media.ID,
				"stage_id":   media.StageID,
				"media_type": media.MediaType,
				"file_size":  media.FileSize,
			})
	})
	return dbError(err, MsgOrderNotFound)
}

// FetchMedia lists an order's live media by stage and upload order.
func (s *Store) FetchMedia(ctx context.Context, orderID uint) ([]models.Media, error) {
	media := []models.Media{}
	err := s.db.WithContext(ctx).
		Select("order_media.*").
		Joins("JOIN order_progress ON order_progress.order_id = order_media.order_id AND order_progress.stage_id = order_media.stage_id").
		Where("order_media.order_id = ? AND order_media.is_deleted = ?", orderID, false).
		Order("order_progress.stage_order ASC, order_media.sort_order ASC, order_media.id ASC").
		Find(&media).Error
	if err != nil {
		return nil, dbError(err, MsgMediaNotFound)
	}
	return media, nil
}

// FetchMediaByID loads a live media record.
func (s *Store) FetchMediaByID(ctx context.Context, mediaID uint) (*models.Media, error) {
	var media models.Media
	err := s.db.WithContext(ctx).
		Where("id = ? AND is_deleted = ?", mediaID, false).
		First(&media).Error
	if err != nil {
		return nil, dbError(err, MsgMediaNotFound)
	}
	return &media, nil
}

// SoftDeleteMedia hides a media record. The stored object is removed by the caller.
func (s *Store) SoftDeleteMedia(ctx context.Context, mediaID uint, operator string) (*models.Media, error) {
	var media models.Media
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND is_deleted = ?", mediaID, false).First(&media).Error; err != nil {
			return err
		}
		var order models.Order
		if err := tx.First(&order, media.OrderID).Error; err != nil {
			return err
		}

		now := s.timestamp()
		result := tx.Model(&models.Media{}).
			Where("id = ? AND is_deleted = ?", mediaID, false).
			Updates(map[string]any{"is_deleted": true, "deleted_at": now})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return apperrors.New(apperrors.CodeNotFound, MsgMediaNotFound)
		}
		media.IsDeleted = true
		media.DeletedAt = &now

		return s.appendLog(tx, &order, models.OperationDeleteMedia, operator,
			fmt.Sprintf("删除%s：客户 %s - %s", mediaLabel(&media), order.CustomerName, media.StageName),
			map[string]any{"media_id": media.ID, "stage_id": media.StageID})
	})
	if err != nil {
		return nil, dbError(err, MsgMediaNotFound)
	}
	return &media, nil
}

func mediaLabel(media *models.Media) string {
	if media.MediaType == enums.MediaTypeVideo {
		return "视频"
	}
	return "照片"
}
