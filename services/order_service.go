package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kendall-kelly/memorial-diamonds-api/apperrors"
	"github.com/kendall-kelly/memorial-diamonds-api/enums"
	"github.com/kendall-kelly/memorial-diamonds-api/logger"
	"github.com/kendall-kelly/memorial-diamonds-api/models"
	"github.com/kendall-kelly/memorial-diamonds-api/statemachine"
	"github.com/kendall-kelly/memorial-diamonds-api/store"
	"github.com/kendall-kelly/memorial-diamonds-api/utils"
)

const (
	msgActionForbidden  = "没有权限执行此操作"
	msgActionNotAllowed = "当前订单状态不允许此操作"
	msgStageNotStarted  = "该阶段尚未开始，无法上传"
	msgLookupRequired   = "请输入电话号码或订单号"
	msgNotifyFailed     = "通知发送失败，请稍后重试"
	msgMediaUnavailable = "文件存储服务未配置"
	defaultNotification = "您的纪念钻石已制作完成"
)

// Caller identifies who is acting and what they may do.
// Nil Permissions means the caller is not narrowed by permissions.
type Caller struct {
	Operator    string
	Permissions []enums.Permission
}

// OrderDetail is an order with everything a detail view needs.
type OrderDetail struct {
	Order          models.Order           `json:"order"`
	Progress       []models.StageProgress `json:"progress"`
	Timeline       []TimelineEntry        `json:"timeline"`
	Media          []models.Media         `json:"media"`
	AllowedActions statemachine.ActionSet `json:"allowed_actions"`
	HasStarted     bool                   `json:"has_started"`
}

// OrderServiceDeps wires the order service's collaborators.
type OrderServiceDeps struct {
	Store     OrderStore
	Media     MediaService
	Events    EventPublisher
	Validator *OrderValidator
	Printer   *OrderSheetPrinter
	Logger    *logger.Logger
	Metrics   *Metrics
	Now       func() time.Time
}

// OrderService orchestrates order reads and writes around the production rules.
type OrderService struct {
	store     OrderStore
	media     MediaService
	events    EventPublisher
	validator *OrderValidator
	printer   *OrderSheetPrinter
	log       *logger.Logger
	metrics   *Metrics
	now       func() time.Time
}

var orderServiceInstance *OrderService

// NewOrderService builds an OrderService, filling optional collaborators with defaults.
func NewOrderService(deps OrderServiceDeps) *OrderService {
	svc := &OrderService{
		store:     deps.Store,
		media:     deps.Media,
		events:    deps.Events,
		validator: deps.Validator,
		printer:   deps.Printer,
		log:       deps.Logger,
		metrics:   deps.Metrics,
		now:       deps.Now,
	}
	if svc.events == nil {
		svc.events = NoopEventPublisher{}
	}
	if svc.validator == nil {
		svc.validator = defaultOrderValidator
	}
	if svc.printer == nil {
		svc.printer = NewOrderSheetPrinter(OrderSheetOptions{})
	}
	if svc.log == nil {
		svc.log = logger.Nop()
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc
}

// GetOrderService returns the global order service
func GetOrderService() *OrderService {
	return orderServiceInstance
}

// SetOrderService sets the global order service
func SetOrderService(service *OrderService) {
	orderServiceInstance = service
}

// GetOrder loads an order with its progress, media and the actions the caller may take.
func (s *OrderService) GetOrder(ctx context.Context, orderID uint, caller Caller) (*OrderDetail, error) {
	order, err := s.activeOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	records, progress, err := s.progressOf(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	media, err := s.store.FetchMedia(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	if s.media != nil {
		media = s.media.PresignMedia(ctx, media)
	}

	return &OrderDetail{
		Order:          *order,
		Progress:       records,
		Timeline:       FormatProgressForTimeline(records),
		Media:          media,
		AllowedActions: s.allowedActions(order, progress, caller),
		HasStarted:     statemachine.HasStarted(progress),
	}, nil
}

// AllowedActions computes the action set for an order as seen by caller.
func (s *OrderService) AllowedActions(order *models.Order, progress statemachine.Progress, caller Caller) statemachine.ActionSet {
	return s.allowedActions(order, progress, caller)
}

func (s *OrderService) allowedActions(order *models.Order, progress statemachine.Progress, caller Caller) statemachine.ActionSet {
	actions := statemachine.AllowedActions(statemachine.OrderState{
		Status:    order.Status,
		IsDeleted: order.IsDeleted,
	}, progress)
	return FilterActionsByPermissions(actions, caller.Permissions)
}

// CreateOrder validates data and creates the order with its pending stages.
func (s *OrderService) CreateOrder(ctx context.Context, data OrderData, caller Caller) (*models.Order, error) {
	if err := s.validator.Validate(data); err != nil {
		return nil, err
	}

	order, err := s.store.CreateOrderRecord(ctx, data.ToModel(), caller.Operator)
	if err != nil {
		return nil, err
	}

	ctx = s.log.WithOrderID(ctx, order.ID)
	s.log.Info(ctx, "order created: "+order.OrderNumber)
	s.metrics.OrderCreated()
	s.publish(ctx, EventOrderCreated, order, caller.Operator, "")
	return order, nil
}

// ValidateOrderData checks order input with this service's phone rules.
func (s *OrderService) ValidateOrderData(data OrderData) (bool, string) {
	return s.validator.Check(data)
}

// UpdateOrder edits the order's descriptive fields while edit_info is allowed.
func (s *OrderService) UpdateOrder(ctx context.Context, orderID uint, update store.OrderUpdate, caller Caller) (*models.Order, error) {
	if update.IsEmpty() {
		return nil, apperrors.New(apperrors.CodeValidation, "没有需要更新的字段")
	}
	if err := s.validateUpdate(&update); err != nil {
		return nil, err
	}
	if _, _, err := s.requireAction(ctx, orderID, caller, statemachine.ActionEditInfo); err != nil {
		return nil, err
	}

	order, err := s.store.UpdateOrderRecord(ctx, orderID, update, caller.Operator)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, EventOrderUpdated, order, caller.Operator, "")
	return order, nil
}

func (s *OrderService) validateUpdate(update *store.OrderUpdate) error {
	if update.CustomerName != nil && strings.TrimSpace(*update.CustomerName) == "" {
		return apperrors.New(apperrors.CodeValidation, "缺少必填字段：customer_name")
	}
	if update.CustomerPhone != nil {
		if err := s.validator.ValidatePhone(*update.CustomerPhone); err != nil {
			return err
		}
		phone := strings.TrimSpace(*update.CustomerPhone)
		update.CustomerPhone = &phone
	}
	if update.DiamondType != nil && !update.DiamondType.IsValid() {
		return apperrors.New(apperrors.CodeValidation, fmt.Sprintf("不支持的钻石类型：%s", *update.DiamondType))
	}
	if update.DiamondSize != nil && !update.DiamondSize.IsValid() {
		return apperrors.New(apperrors.CodeValidation, fmt.Sprintf("不支持的钻石大小：%s", *update.DiamondSize))
	}
	return nil
}

// CanDeleteOrder only refuses orders that are already deleted.
func CanDeleteOrder(order *models.Order) (bool, string) {
	if order.IsDeleted {
		return false, store.MsgOrderDeleted
	}
	return true, ""
}

// DeleteOrder soft deletes an order.
func (s *OrderService) DeleteOrder(ctx context.Context, orderID uint, caller Caller) (*models.Order, error) {
	order, err := s.store.FetchOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if ok, reason := CanDeleteOrder(order); !ok {
		return nil, apperrors.New(apperrors.CodeRuleViolation, reason)
	}
	if _, _, err := s.requireAction(ctx, orderID, caller, statemachine.ActionDelete); err != nil {
		return nil, err
	}

	deleted, err := s.store.SoftDeleteOrder(ctx, orderID, caller.Operator)
	if err != nil {
		return nil, err
	}
	s.log.Info(s.log.WithOrderID(ctx, orderID), "order deleted")
	s.publish(ctx, EventOrderDeleted, deleted, caller.Operator, "")
	return deleted, nil
}

// CancelOrder cancels a pending or in-production order.
func (s *OrderService) CancelOrder(ctx context.Context, orderID uint, reason string, caller Caller) (*models.Order, error) {
	if _, _, err := s.requireAction(ctx, orderID, caller, statemachine.ActionCancelOrder); err != nil {
		return nil, err
	}
	order, err := s.store.CancelOrder(ctx, orderID, caller.Operator, reason)
	if err != nil {
		return nil, err
	}
	s.log.Info(s.log.WithOrderID(ctx, orderID), "order cancelled")
	s.publish(ctx, EventOrderCancelled, order, caller.Operator, reason)
	return order, nil
}

// ListOrders returns one page of non-deleted orders.
func (s *OrderService) ListOrders(ctx context.Context, filter store.OrderFilter) (*store.OrderPage, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, apperrors.New(apperrors.CodeValidation, fmt.Sprintf("无效的订单状态：%s", filter.Status))
	}
	filter.IncludeDeleted = false
	return s.store.ListOrders(ctx, filter)
}

// Statistics summarizes orders per status.
func (s *OrderService) Statistics(ctx context.Context) (*store.Statistics, error) {
	return s.store.Statistics(ctx)
}

// OperationLogs returns an order's audit trail, newest first.
func (s *OrderService) OperationLogs(ctx context.Context, orderID uint) ([]models.OperationLog, error) {
	if _, err := s.activeOrder(ctx, orderID); err != nil {
		return nil, err
	}
	return s.store.ListOperationLogs(ctx, orderID)
}

// UploadStageMedia attaches files to a started stage.
func (s *OrderService) UploadStageMedia(ctx context.Context, orderID uint, stageID, description string, files []Attachment, caller Caller) (*UploadOutcome, error) {
	if len(files) == 0 {
		return nil, apperrors.New(apperrors.CodeValidation, msgNoFiles)
	}
	if s.media == nil {
		return nil, apperrors.New(apperrors.CodeDependency, msgMediaUnavailable)
	}
	order, progress, err := s.requireAction(ctx, orderID, caller, statemachine.ActionUploadMedia)
	if err != nil {
		return nil, err
	}
	stage, _, ok := progress.Find(stageID)
	if !ok {
		return nil, apperrors.New(apperrors.CodeNotFound, statemachine.ReasonStageNotFound)
	}
	if stage.Status == enums.StageStatusPending {
		return nil, apperrors.New(apperrors.CodeRuleViolation, msgStageNotStarted)
	}

	return s.media.UploadAttachments(ctx, AttachmentRequest{
		Order:       order,
		StageID:     stage.ID,
		StageName:   stage.Name,
		Description: description,
		Operator:    caller.Operator,
		Files:       files,
	}), nil
}

// DeleteMedia removes a media record from its order.
func (s *OrderService) DeleteMedia(ctx context.Context, mediaID uint, caller Caller) (*models.Media, error) {
	if s.media == nil {
		return nil, apperrors.New(apperrors.CodeDependency, msgMediaUnavailable)
	}
	media, err := s.store.FetchMediaByID(ctx, mediaID)
	if err != nil {
		return nil, err
	}
	if _, _, err := s.requireAction(ctx, media.OrderID, caller, statemachine.ActionDeleteMedia); err != nil {
		return nil, err
	}
	return s.media.DeleteMedia(ctx, mediaID, caller.Operator)
}

// SendNotification tells the customer their order is finished.
func (s *OrderService) SendNotification(ctx context.Context, orderID uint, message string, caller Caller) error {
	order, _, err := s.requireAction(ctx, orderID, caller, statemachine.ActionSendNotification)
	if err != nil {
		return err
	}
	message = strings.TrimSpace(message)
	if message == "" {
		message = defaultNotification
	}

	ctx = s.log.WithOrderID(ctx, orderID)
	event := NewOrderEvent(EventCustomerNotification, order, caller.Operator, s.now())
	event.Message = message
	if err := s.events.Publish(ctx, event); err != nil {
		s.metrics.Notification(false)
		s.log.Error(ctx, "customer notification failed", err)
		return apperrors.Wrap(apperrors.CodeDependency, err, msgNotifyFailed)
	}
	s.metrics.Notification(true)

	return s.store.AppendOperationLog(ctx, order, models.OperationSendNotification, caller.Operator,
		fmt.Sprintf("发送通知：客户 %s", order.CustomerName),
		map[string]any{"message": message, "phone": utils.MaskPhone(order.CustomerPhone)})
}

// requireAction loads a live order and checks that caller may perform action on it.
func (s *OrderService) requireAction(ctx context.Context, orderID uint, caller Caller, action statemachine.Action) (*models.Order, statemachine.Progress, error) {
	order, err := s.activeOrder(ctx, orderID)
	if err != nil {
		return nil, statemachine.Progress{}, err
	}
	_, progress, err := s.progressOf(ctx, order.ID)
	if err != nil {
		return nil, statemachine.Progress{}, err
	}

	ruleActions := statemachine.AllowedActions(statemachine.OrderState{
		Status:    order.Status,
		IsDeleted: order.IsDeleted,
	}, progress)
	if !ruleActions.Has(action) {
		return nil, statemachine.Progress{}, apperrors.New(apperrors.CodeRuleViolation,
			fmt.Sprintf("%s：%s", msgActionNotAllowed, action))
	}
	if !FilterActionsByPermissions(ruleActions, caller.Permissions).Has(action) {
		return nil, statemachine.Progress{}, apperrors.New(apperrors.CodeForbidden, msgActionForbidden)
	}
	return order, progress, nil
}

func (s *OrderService) activeOrder(ctx context.Context, orderID uint) (*models.Order, error) {
	order, err := s.store.FetchOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.IsDeleted {
		return nil, apperrors.New(apperrors.CodeNotFound, store.MsgOrderNotFound)
	}
	return order, nil
}

func (s *OrderService) progressOf(ctx context.Context, orderID uint) ([]models.StageProgress, statemachine.Progress, error) {
	records, err := s.store.FetchProgress(ctx, orderID)
	if err != nil {
		return nil, statemachine.Progress{}, err
	}
	progress, err := models.ProgressOf(records)
	if err != nil {
		return nil, statemachine.Progress{}, apperrors.Wrap(apperrors.CodeInternal, err, "订单阶段数据异常")
	}
	return records, progress, nil
}

func (s *OrderService) publish(ctx context.Context, eventType EventType, order *models.Order, operator, message string) {
	event := NewOrderEvent(eventType, order, operator, s.now())
	event.Message = message
	if err := s.events.Publish(ctx, event); err != nil {
		s.log.Warn(ctx, "publish "+string(eventType)+": "+err.Error())
	}
}
