// Package store persists orders, their stage progress, media and audit logs
// with gorm. Stage writes re-check the production rules inside a transaction
// and only move a stage out of the status they observed.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/kendall-kelly/memorial-diamonds-api/apperrors"
	"github.com/kendall-kelly/memorial-diamonds-api/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Messages returned to callers for store-level rejections.
const (
	MsgOrderNotFound       = "订单不存在或已删除"
	MsgOrderDeleted        = "订单已被删除"
	MsgOrderCancelled      = "订单已取消，无法更新进度"
	MsgStageConflict       = "阶段状态已被其他操作更新，请刷新后重试"
	MsgStagesNotConfigured = "生产阶段未配置"
	MsgMediaNotFound       = "媒体文件不存在或已删除"
	MsgDatabaseError       = "数据库操作失败"
)

// orderNumberAttempts bounds retries when a generated order number collides.
const orderNumberAttempts = 3

// Options tunes a Store.
type Options struct {
	OrderNumberPrefix string
	// Now is the clock used for timestamps and order numbers.
	Now func() time.Time
}

// Store is the gorm-backed order store.
type Store struct {
	db     *gorm.DB
	prefix string
	now    func() time.Time
}

// New builds a store bound to db.
func New(db *gorm.DB, opts Options) *Store {
	if opts.OrderNumberPrefix == "" {
		opts.OrderNumberPrefix = "LD"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{db: db, prefix: opts.OrderNumberPrefix, now: opts.Now}
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Migrate creates or updates every table the store uses.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(models.AllModels()...); err != nil {
		return apperrors.Wrap(apperrors.CodeDependency, err, "数据库迁移失败")
	}
	return nil
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDependency, err, MsgDatabaseError)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return apperrors.Wrap(apperrors.CodeDependency, err, "数据库连接失败")
	}
	return nil
}

func (s *Store) timestamp() time.Time {
	return s.now().UTC()
}

// dbError classifies a gorm error. Coded errors pass through untouched.
func dbError(err error, notFound string) error {
	if err == nil {
		return nil
	}
	if apperrors.As(err) != nil {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.New(apperrors.CodeNotFound, notFound)
	}
	return apperrors.Wrap(apperrors.CodeDependency, err, MsgDatabaseError)
}

// isDuplicateKey reports a unique index violation, translating raw driver
// errors when the connection was opened without TranslateError.
func (s *Store) isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	if translator, ok := s.db.Dialector.(gorm.ErrorTranslator); ok {
		return errors.Is(translator.Translate(err), gorm.ErrDuplicatedKey)
	}
	return false
}

// appendLog writes an audit record inside tx.
func (s *Store) appendLog(tx *gorm.DB, order *models.Order, operation, operator, description string, details map[string]any) error {
	raw, err := json.Marshal(details)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "操作日志序列化失败")
	}
	entry := models.OperationLog{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Operation:   operation,
		Operator:    operator,
		Description: description,
		Details:     datatypes.JSON(raw),
		CreatedAt:   s.timestamp(),
	}
	return tx.Create(&entry).Error
}

// ListOperationLogs returns an order's audit trail, newest first.
func (s *Store) ListOperationLogs(ctx context.Context, orderID uint) ([]models.OperationLog, error) {
	var logs []models.OperationLog
	err := s.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC, id DESC").
		Find(&logs).Error
	if err != nil {
		return nil, dbError(err, MsgOrderNotFound)
	}
	return logs, nil
}

// AppendOperationLog records an operation that happened outside the store, such as a notification.
func (s *Store) AppendOperationLog(ctx context.Context, order *models.Order, operation, operator, description string, details map[string]any) error {
	return dbError(s.appendLog(s.db.WithContext(ctx), order, operation, operator, description, details), MsgOrderNotFound)
}
