package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kendall-kelly/memorial-diamonds-api/apperrors"
	"github.com/kendall-kelly/memorial-diamonds-api/enums"
	"github.com/kendall-kelly/memorial-diamonds-api/models"
	"github.com/kendall-kelly/memorial-diamonds-api/statemachine"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

var errOrderNumberTaken = errors.New("order number already taken")

// OrderUpdate carries the editable order fields. Nil fields are left untouched.
type OrderUpdate struct {
	CustomerName        *string
	CustomerPhone       *string
	CustomerEmail       *string
	DiamondType         *enums.DiamondType
	DiamondSize         *enums.DiamondSize
	SpecialRequirements *string
	EstimatedCompletion *time.Time
	Notes               *string
}

// IsEmpty reports whether the update touches no field.
func (u OrderUpdate) IsEmpty() bool {
	return u.CustomerName == nil && u.CustomerPhone == nil && u.CustomerEmail == nil &&
		u.DiamondType == nil && u.DiamondSize == nil && u.SpecialRequirements == nil &&
		u.EstimatedCompletion == nil && u.Notes == nil
}

// OrderFilter selects a page of orders.
type OrderFilter struct {
	Page           int
	Limit          int
	Status         enums.OrderStatus
	Search         string
	IncludeDeleted bool
}

// Normalize clamps paging values into range.
func (f OrderFilter) Normalize() OrderFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = defaultPageSize
	}
	if f.Limit > maxPageSize {
		f.Limit = maxPageSize
	}
	f.Search = strings.TrimSpace(f.Search)
	return f
}

// OrderPage is one page of a listing.
type OrderPage struct {
	Orders     []models.Order `json:"orders"`
	Total      int64          `json:"total"`
	Page       int            `json:"page"`
	Limit      int            `json:"limit"`
	TotalPages int            `json:"total_pages"`
}

// Statistics summarizes the non-deleted orders.
type Statistics struct {
	Total           int64                       `json:"total"`
	ByStatus        map[enums.OrderStatus]int64 `json:"by_status"`
	Deleted         int64                       `json:"deleted"`
	AverageProgress int                         `json:"average_progress"`
}

// FetchOrder loads an order by id, including soft-deleted ones.
func (s *Store) FetchOrder(ctx context.Context, orderID uint) (*models.Order, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).First(&order, orderID).Error; err != nil {
		return nil, dbError(err, MsgOrderNotFound)
	}
	return &order, nil
}

// FindActiveOrderByNumber loads a non-deleted order by its order number.
func (s *Store) FindActiveOrderByNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).
		Where("order_number = ? AND is_deleted = ?", orderNumber, false).
		First(&order).Error
	if err != nil {
		return nil, dbError(err, MsgOrderNotFound)
	}
	return &order, nil
}

// FindActiveOrdersByPhone lists a customer's non-deleted orders, newest first.
func (s *Store) FindActiveOrdersByPhone(ctx context.Context, phone string) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.WithContext(ctx).
		Where("customer_phone = ? AND is_deleted = ?", phone, false).
		Order("created_at DESC, id DESC").
		Find(&orders).Error
	if err != nil {
		return nil, dbError(err, MsgOrderNotFound)
	}
	return orders, nil
}

// CreateOrderRecord inserts an order and seeds one pending progress record per active stage.
// The order number is generated here; a collision is retried with the clock nudged forward.
func (s *Store) CreateOrderRecord(ctx context.Context, input *models.Order, operator string) (*models.Order, error) {
	stages, err := s.ActiveStages(ctx)
	if err != nil {
		return nil, err
	}

	now := s.timestamp()
	var lastErr error
	for attempt := 0; attempt < orderNumberAttempts; attempt++ {
		order := *input
		order.ID = 0
		order.OrderNumber = FormatOrderNumber(s.prefix, now.Add(time.Duration(attempt)*time.Millisecond))
		order.Status = enums.OrderStatusPending
		order.ProgressPercentage = 0
		order.CurrentStage = stages[0].Name
		order.CreatedBy = operator
		order.IsDeleted = false
		order.DeletedAt = nil
		order.StageProgress = nil
		if order.EstimatedCompletion == nil {
			eta := now.AddDate(0, 0, models.TotalEstimatedDays(stages))
			order.EstimatedCompletion = &eta
		}

		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var taken int64
			if err := tx.Model(&models.Order{}).Where("order_number = ?", order.OrderNumber).Count(&taken).Error; err != nil {
				return err
			}
			if taken > 0 {
				return errOrderNumberTaken
			}

			if err := tx.Create(&order).Error; err != nil {
				return err
			}

			records := make([]models.StageProgress, len(stages))
			for i, stage := range stages {
				records[i] = models.StageProgress{
					OrderID:    order.ID,
					StageID:    stage.StageID,
					StageName:  stage.Name,
					StageOrder: i + 1,
					Status:     enums.StageStatusPending,
				}
			}
			if err := tx.Create(&records).Error; err != nil {
				return err
			}
			order.StageProgress = records

			return s.appendLog(tx, &order, models.OperationCreateOrder, operator,
				fmt.Sprintf("创建订单：客户 %s", order.CustomerName),
				map[string]any{
					"customer_name": order.CustomerName,
					"diamond_type":  order.DiamondType,
					"diamond_size":  order.DiamondSize,
					"stages":        len(records),
				})
		})
		if err == nil {
			return &order, nil
		}
		if !errors.Is(err, errOrderNumberTaken) && !s.isDuplicateKey(err) {
			return nil, dbError(err, MsgOrderNotFound)
		}
		lastErr = err
	}

	return nil, apperrors.Wrap(apperrors.CodeConflict, lastErr, "订单号生成冲突，请重试")
}

// UpdateOrderRecord applies the non-nil fields of update and logs every changed value.
func (s *Store) UpdateOrderRecord(ctx context.Context, orderID uint, update OrderUpdate, operator string) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&order, orderID).Error; err != nil {
			return err
		}

		changes := make(map[string]any)
		details := make(map[string]any)
		track := func(column string, old, new any) {
			changes[column] = new
			details[column] = map[string]any{"old": old, "new": new}
		}

		if v := update.CustomerName; v != nil && *v != order.CustomerName {
			track("customer_name", order.CustomerName, *v)
		}
		if v := update.CustomerPhone; v != nil && *v != order.CustomerPhone {
			track("customer_phone", order.CustomerPhone, *v)
		}
		if v := update.CustomerEmail; v != nil && *v != deref(order.CustomerEmail) {
			track("customer_email", deref(order.CustomerEmail), *v)
		}
		if v := update.DiamondType; v != nil && *v != order.DiamondType {
			track("diamond_type", order.DiamondType, *v)
		}
		if v := update.DiamondSize; v != nil && *v != order.DiamondSize {
			track("diamond_size", order.DiamondSize, *v)
		}
		if v := update.SpecialRequirements; v != nil && *v != deref(order.SpecialRequirements) {
			track("special_requirements", deref(order.SpecialRequirements), *v)
		}
		if v := update.EstimatedCompletion; v != nil && (order.EstimatedCompletion == nil || !v.Equal(*order.EstimatedCompletion)) {
			track("estimated_completion", order.EstimatedCompletion, *v)
		}
		if v := update.Notes; v != nil && *v != deref(order.Notes) {
			track("notes", deref(order.Notes), *v)
		}

		if len(changes) == 0 {
			return nil
		}
		changes["updated_at"] = s.timestamp()

		if err := tx.Model(&order).Updates(changes).Error; err != nil {
			return err
		}
		if err := tx.First(&order, orderID).Error; err != nil {
			return err
		}

		return s.appendLog(tx, &order, models.OperationUpdateOrder, operator,
			fmt.Sprintf("更新订单：客户 %s", order.CustomerName),
			map[string]any{"changes": details})
	})
	if err != nil {
		return nil, dbError(err, MsgOrderNotFound)
	}
	return &order, nil
}

// CancelOrder moves an order to cancelled if its current status allows it.
func (s *Store) CancelOrder(ctx context.Context, orderID uint, operator, reason string) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&order, orderID).Error; err != nil {
			return err
		}
		if order.IsDeleted {
			return apperrors.New(apperrors.CodeRuleViolation, MsgOrderDeleted)
		}

		previous := order.Status
		if !statemachine.CanTransitionOrder(previous, enums.OrderStatusCancelled) {
			return apperrors.New(apperrors.CodeRuleViolation,
				fmt.Sprintf("订单当前状态为%s，无法取消", previous.Label()))
		}

		result := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", orderID, previous).
			Updates(map[string]any{"status": enums.OrderStatusCancelled, "updated_at": s.timestamp()})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return apperrors.New(apperrors.CodeConflict, "订单状态已被其他操作更新，请刷新后重试")
		}
		order.Status = enums.OrderStatusCancelled

		return s.appendLog(tx, &order, models.OperationCancelOrder, operator,
			fmt.Sprintf("取消订单：客户 %s", order.CustomerName),
			map[string]any{"previous_status": previous, "reason": reason})
	})
	if err != nil {
		return nil, dbError(err, MsgOrderNotFound)
	}
	return &order, nil
}

// SoftDeleteOrder flags an order as deleted. The row and its history are kept.
func (s *Store) SoftDeleteOrder(ctx context.Context, orderID uint, operator string) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&order, orderID).Error; err != nil {
			return err
		}
		if order.IsDeleted {
			return apperrors.New(apperrors.CodeRuleViolation, MsgOrderDeleted)
		}

		now := s.timestamp()
		result := tx.Model(&models.Order{}).
			Where("id = ? AND is_deleted = ?", orderID, false).
			Updates(map[string]any{"is_deleted": true, "deleted_at": now, "updated_at": now})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return apperrors.New(apperrors.CodeRuleViolation, MsgOrderDeleted)
		}
		order.IsDeleted = true
		order.DeletedAt = &now

		return s.appendLog(tx, &order, models.OperationDeleteOrder, operator,
			fmt.Sprintf("删除订单：客户 %s", order.CustomerName),
			map[string]any{"status": order.Status})
	})
	if err != nil {
		return nil, dbError(err, MsgOrderNotFound)
	}
	return &order, nil
}

// ListOrders returns one page of orders, newest first.
// Search matches customer name, phone or order number.
func (s *Store) ListOrders(ctx context.Context, filter OrderFilter) (*OrderPage, error) {
	filter = filter.Normalize()

	query := s.db.WithContext(ctx).Model(&models.Order{})
	if !filter.IncludeDeleted {
		query = query.Where("is_deleted = ?", false)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("customer_name LIKE ? OR customer_phone LIKE ? OR order_number LIKE ?", like, like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, dbError(err, MsgOrderNotFound)
	}

	orders := []models.Order{}
	err := query.
		Order("created_at DESC, id DESC").
		Offset((filter.Page - 1) * filter.Limit).
		Limit(filter.Limit).
		Find(&orders).Error
	if err != nil {
		return nil, dbError(err, MsgOrderNotFound)
	}

	totalPages := int((total + int64(filter.Limit) - 1) / int64(filter.Limit))
	return &OrderPage{
		Orders:     orders,
		Total:      total,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalPages: totalPages,
	}, nil
}

// Statistics counts orders per status.
func (s *Store) Statistics(ctx context.Context) (*Statistics, error) {
	type row struct {
		Status   enums.OrderStatus
		Count    int64
		Progress int64
	}
	var rows []row
	err := s.db.WithContext(ctx).
		Model(&models.Order{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(progress_percentage), 0) AS progress").
		Where("is_deleted = ?", false).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, dbError(err, MsgOrderNotFound)
	}

	stats := &Statistics{ByStatus: make(map[enums.OrderStatus]int64)}
	for _, status := range enums.OrderStatuses() {
		stats.ByStatus[status] = 0
	}
	var progressSum int64
	for _, r := range rows {
		stats.ByStatus[r.Status] = r.Count
		stats.Total += r.Count
		progressSum += r.Progress
	}
	if stats.Total > 0 {
		stats.AverageProgress = int(progressSum / stats.Total)
	}

	if err := s.db.WithContext(ctx).Model(&models.Order{}).Where("is_deleted = ?", true).Count(&stats.Deleted).Error; err != nil {
		return nil, dbError(err, MsgOrderNotFound)
	}
	return stats, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
