package store

import (
	"context"
	"fmt"
	"time"

	"github.com/kendall-kelly/memorial-diamonds-api/apperrors"
	"github.com/kendall-kelly/memorial-diamonds-api/enums"
	"github.com/kendall-kelly/memorial-diamonds-api/models"
	"github.com/kendall-kelly/memorial-diamonds-api/statemachine"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StageWrite moves one stage of one order to Status.
type StageWrite struct {
	OrderID  uint
	StageID  string
	Status   enums.StageStatus
	Notes    string
	Operator string
	// At overrides the transition timestamp; zero means now.
	At time.Time
}

// StageWriteResult is the committed state after a stage write.
type StageWriteResult struct {
	Order    models.Order           `json:"order"`
	Stage    models.StageProgress   `json:"stage"`
	Progress []models.StageProgress `json:"progress"`
}

// FetchProgress returns an order's stage records sorted by stage order.
func (s *Store) FetchProgress(ctx context.Context, orderID uint) ([]models.StageProgress, error) {
	return s.fetchProgress(s.db.WithContext(ctx), orderID)
}

func (s *Store) fetchProgress(tx *gorm.DB, orderID uint) ([]models.StageProgress, error) {
	records := []models.StageProgress{}
	err := tx.Where("order_id = ?", orderID).
		Order("stage_order ASC").
		Find(&records).Error
	if err != nil {
		return nil, dbError(err, MsgOrderNotFound)
	}
	return records, nil
}

// WriteStageStatus performs a start or completion in one transaction.
// The rules are re-checked against the locked snapshot and the update only
// applies while the stage still holds the status that was checked, so two
// racing writers cannot both succeed. The order's derived fields are
// recomputed from the committed stage list.
func (s *Store) WriteStageStatus(ctx context.Context, write StageWrite) (*StageWriteResult, error) {
	var expected enums.StageStatus
	switch write.Status {
	case enums.StageStatusInProgress:
		expected = enums.StageStatusPending
	case enums.StageStatusCompleted:
		expected = enums.StageStatusInProgress
	default:
		return nil, apperrors.New(apperrors.CodeValidation, fmt.Sprintf("无效的阶段状态：%s", write.Status))
	}

	at := write.At
	if at.IsZero() {
		at = s.timestamp()
	}

	var result StageWriteResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&order, write.OrderID).Error; err != nil {
			return err
		}
		if order.IsDeleted {
			return apperrors.New(apperrors.CodeRuleViolation, MsgOrderDeleted)
		}
		if order.Status == enums.OrderStatusCancelled {
			return apperrors.New(apperrors.CodeRuleViolation, MsgOrderCancelled)
		}

		records, err := s.fetchProgress(tx, order.ID)
		if err != nil {
			return err
		}
		progress, err := models.ProgressOf(records)
		if err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "订单阶段数据异常")
		}

		var ok bool
		var reason string
		if write.Status == enums.StageStatusInProgress {
			ok, reason = statemachine.CanStartStage(progress, write.StageID)
		} else {
			ok, reason = statemachine.CanCompleteStage(progress, write.StageID)
		}
		if !ok {
			return apperrors.New(apperrors.CodeRuleViolation, reason)
		}

		updates := map[string]any{
			"status":     write.Status,
			"operator":   write.Operator,
			"updated_at": at,
		}
		if write.Status == enums.StageStatusInProgress {
			updates["started_at"] = at
			if write.Notes != "" {
				updates["notes"] = write.Notes
			}
		} else {
			updates["completed_at"] = at
			// completion notes replace the start note, blank clears it
			updates["notes"] = nullableString(write.Notes)
		}

		// started_at and completed_at are only ever written on the guarded transition
		update := tx.Model(&models.StageProgress{}).
			Where("order_id = ? AND stage_id = ? AND status = ?", order.ID, write.StageID, expected).
			Updates(updates)
		if update.Error != nil {
			return update.Error
		}
		if update.RowsAffected == 0 {
			return apperrors.New(apperrors.CodeConflict, MsgStageConflict)
		}

		records, err = s.fetchProgress(tx, order.ID)
		if err != nil {
			return err
		}
		progress, err = models.ProgressOf(records)
		if err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "订单阶段数据异常")
		}

		derived := map[string]any{
			"progress_percentage": statemachine.CalculateProgress(progress),
			"current_stage":       statemachine.CurrentStageName(progress),
			"status":              statemachine.AutoOrderStatus(progress),
			"updated_at":          at,
		}
		if err := tx.Model(&order).Updates(derived).Error; err != nil {
			return err
		}
		if err := tx.First(&order, order.ID).Error; err != nil {
			return err
		}

		var stage models.StageProgress
		for _, record := range records {
			if record.StageID == write.StageID {
				stage = record
				break
			}
		}

		operation, verb := models.OperationStartStage, "阶段开始"
		if write.Status == enums.StageStatusCompleted {
			operation, verb = models.OperationCompleteStage, "阶段完成"
		}
		if err := s.appendLog(tx, &order, operation, write.Operator,
			fmt.Sprintf("%s：客户 %s - %s", verb, order.CustomerName, stage.StageName),
			map[string]any{
				"stage_id":            stage.StageID,
				"stage_name":          stage.StageName,
				"notes":               write.Notes,
				"progress_percentage": order.ProgressPercentage,
				"order_status":        order.Status,
			}); err != nil {
			return err
		}

		result = StageWriteResult{Order: order, Stage: stage, Progress: records}
		return nil
	})
	if err != nil {
		return nil, dbError(err, MsgOrderNotFound)
	}
	return &result, nil
}

func nullableString(v string) any {
	if v == "" {
		return nil
	}
	return v
}
