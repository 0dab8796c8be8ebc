package services

import (
	"context"

	"github.com/kendall-kelly/memorial-diamonds-api/models"
	"github.com/kendall-kelly/memorial-diamonds-api/store"
)

// ProgressStore is the part of the order store the progress service needs.
type ProgressStore interface {
	FetchOrder(ctx context.Context, orderID uint) (*models.Order, error)
	FetchProgress(ctx context.Context, orderID uint) ([]models.StageProgress, error)
	WriteStageStatus(ctx context.Context, write store.StageWrite) (*store.StageWriteResult, error)
}

// MediaStore records media metadata.
type MediaStore interface {
	CreateMedia(ctx context.Context, media *models.Media) error
	FetchMedia(ctx context.Context, orderID uint) ([]models.Media, error)
	FetchMediaByID(ctx context.Context, mediaID uint) (*models.Media, error)
	SoftDeleteMedia(ctx context.Context, mediaID uint, operator string) (*models.Media, error)
}

// OrderStore is the full store contract the order service depends on.
type OrderStore interface {
	ProgressStore
	MediaStore
	FindActiveOrderByNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	FindActiveOrdersByPhone(ctx context.Context, phone string) ([]models.Order, error)
	CreateOrderRecord(ctx context.Context, order *models.Order, operator string) (*models.Order, error)
	UpdateOrderRecord(ctx context.Context, orderID uint, update store.OrderUpdate, operator string) (*models.Order, error)
	CancelOrder(ctx context.Context, orderID uint, operator, reason string) (*models.Order, error)
	SoftDeleteOrder(ctx context.Context, orderID uint, operator string) (*models.Order, error)
	ListOrders(ctx context.Context, filter store.OrderFilter) (*store.OrderPage, error)
	Statistics(ctx context.Context) (*store.Statistics, error)
	ListOperationLogs(ctx context.Context, orderID uint) ([]models.OperationLog, error)
	AppendOperationLog(ctx context.Context, order *models.Order, operation, operator, description string, details map[string]any) error
}

var (
	_ OrderStore = (*store.Store)(nil)
)
