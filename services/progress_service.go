package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/kendall-kelly/memorial-diamonds-api/apperrors"
	"github.com/kendall-kelly/memorial-diamonds-api/enums"
	"github.com/kendall-kelly/memorial-diamonds-api/logger"
	"github.com/kendall-kelly/memorial-diamonds-api/models"
	"github.com/kendall-kelly/memorial-diamonds-api/statemachine"
	"github.com/kendall-kelly/memorial-diamonds-api/store"
)

// StageStartedNote is recorded on every stage start.
const StageStartedNote = "开始此阶段"

var errMediaUnavailable = errors.New("media storage not configured")

// StageResult is the committed state after a start or completion.
type StageResult struct {
	Order    models.Order           `json:"order"`
	Stage    models.StageProgress   `json:"stage"`
	Progress []models.StageProgress `json:"progress"`
	Upload   *UploadOutcome         `json:"upload,omitempty"`
}

// CompleteStageRequest completes a stage and optionally attaches files to it.
// Attaching files requires the upload permission; nil Permissions is unrestricted.
type CompleteStageRequest struct {
	OrderID     uint
	StageID     string
	Notes       string
	Description string
	Operator    string
	Permissions []enums.Permission
	Files       []Attachment
}

// ProgressServiceDeps wires the progress service's collaborators.
type ProgressServiceDeps struct {
	Store   ProgressStore
	Media   MediaService
	Locker  OrderLocker
	Events  EventPublisher
	Logger  *logger.Logger
	Metrics *Metrics
	Now     func() time.Time
}

// ProgressService moves order stages forward under the production rules.
type ProgressService struct {
	store   ProgressStore
	media   MediaService
	locker  OrderLocker
	events  EventPublisher
	log     *logger.Logger
	metrics *Metrics
	now     func() time.Time
}

var progressServiceInstance *ProgressService

// NewProgressService builds a ProgressService, filling optional collaborators with no-ops.
func NewProgressService(deps ProgressServiceDeps) *ProgressService {
	svc := &ProgressService{
		store:   deps.Store,
		media:   deps.Media,
		locker:  deps.Locker,
		events:  deps.Events,
		log:     deps.Logger,
		metrics: deps.Metrics,
		now:     deps.Now,
	}
	if svc.locker == nil {
		svc.locker = NoopOrderLock{}
	}
	if svc.events == nil {
		svc.events = NoopEventPublisher{}
	}
	if svc.log == nil {
		svc.log = logger.Nop()
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc
}

// GetProgressService returns the global progress service
func GetProgressService() *ProgressService {
	return progressServiceInstance
}

// SetProgressService sets the global progress service
func SetProgressService(service *ProgressService) {
	progressServiceInstance = service
}

// Progress loads an order's stages as a validated statemachine.Progress.
func (s *ProgressService) Progress(ctx context.Context, orderID uint) (statemachine.Progress, []models.StageProgress, error) {
	records, err := s.store.FetchProgress(ctx, orderID)
	if err != nil {
		return statemachine.Progress{}, nil, err
	}
	progress, err := models.ProgressOf(records)
	if err != nil {
		return statemachine.Progress{}, nil, apperrors.Wrap(apperrors.CodeInternal, err, "订单阶段数据异常")
	}
	return progress, records, nil
}

// StartStage moves a pending stage to in progress.
func (s *ProgressService) StartStage(ctx context.Context, orderID uint, stageID, operator string) (*StageResult, error) {
	ctx = s.log.WithFields(ctx, map[string]any{"order_id": orderID, "stage_id": stageID, "operator": operator})

	release, err := s.lock(ctx, orderID)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := s.check(ctx, orderID, stageID, "start_stage", statemachine.CanStartStage); err != nil {
		return nil, err
	}

	written, err := s.store.WriteStageStatus(ctx, store.StageWrite{
		OrderID:  orderID,
		StageID:  stageID,
		Status:   enums.StageStatusInProgress,
		Notes:    StageStartedNote,
		Operator: operator,
		At:       s.now(),
	})
	if err != nil {
		s.recordFailure("start_stage", err)
		return nil, err
	}

	s.metrics.StageTransition(stageID, string(enums.StageStatusInProgress))
	s.log.Info(ctx, "stage started")
	s.publish(ctx, EventStageStarted, written, operator)

	return &StageResult{Order: written.Order, Stage: written.Stage, Progress: written.Progress}, nil
}

// CompleteStage completes the in-progress stage, then uploads any attachments.
// Upload failures are reported in the result and never undo the completion.
func (s *ProgressService) CompleteStage(ctx context.Context, req CompleteStageRequest) (*StageResult, error) {
	ctx = s.log.WithFields(ctx, map[string]any{"order_id": req.OrderID, "stage_id": req.StageID, "operator": req.Operator})

	if len(req.Files) > 0 && !canUpload(req.Permissions) {
		return nil, apperrors.New(apperrors.CodeForbidden, msgActionForbidden)
	}

	release, err := s.lock(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := s.check(ctx, req.OrderID, req.StageID, "complete_stage", statemachine.CanCompleteStage); err != nil {
		return nil, err
	}

	written, err := s.store.WriteStageStatus(ctx, store.StageWrite{
		OrderID:  req.OrderID,
		StageID:  req.StageID,
		Status:   enums.StageStatusCompleted,
		Notes:    req.Notes,
		Operator: req.Operator,
		At:       s.now(),
	})
	if err != nil {
		s.recordFailure("complete_stage", err)
		return nil, err
	}

	s.metrics.StageTransition(req.StageID, string(enums.StageStatusCompleted))
	s.log.Info(ctx, "stage completed")
	s.publish(ctx, EventStageCompleted, written, req.Operator)

	result := &StageResult{Order: written.Order, Stage: written.Stage, Progress: written.Progress}
	if len(req.Files) == 0 {
		return result, nil
	}
	if s.media == nil {
		result.Upload = unavailableUpload(req.Files)
	} else {
		result.Upload = s.media.UploadAttachments(ctx, AttachmentRequest{
			Order:       &result.Order,
			StageID:     written.Stage.StageID,
			StageName:   written.Stage.StageName,
			Description: req.Description,
			Operator:    req.Operator,
			Files:       req.Files,
		})
	}
	if err := result.Upload.Err(); err != nil {
		s.log.Warn(ctx, "stage completed with failed uploads: "+err.Error())
	}
	return result, nil
}

func canUpload(permissions []enums.Permission) bool {
	allowed := FilterActionsByPermissions(statemachine.NewActionSet(statemachine.ActionUploadMedia), permissions)
	return allowed.Has(statemachine.ActionUploadMedia)
}

// unavailableUpload reports every file as failed when no media storage is wired.
func unavailableUpload(files []Attachment) *UploadOutcome {
	outcome := &UploadOutcome{Uploaded: []models.Media{}}
	for _, f := range files {
		outcome.Failed = append(outcome.Failed, UploadFailure{
			Filename: f.Filename,
			Message:  msgMediaUnavailable,
			err:      errMediaUnavailable,
		})
	}
	return outcome
}

type stageCheck func(statemachine.Progress, string) (bool, string)

func (s *ProgressService) check(ctx context.Context, orderID uint, stageID, operation string, can stageCheck) error {
	order, err := s.store.FetchOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.IsDeleted {
		return apperrors.New(apperrors.CodeRuleViolation, store.MsgOrderDeleted)
	}
	if order.Status == enums.OrderStatusCancelled {
		return apperrors.New(apperrors.CodeRuleViolation, store.MsgOrderCancelled)
	}

	progress, _, err := s.Progress(ctx, orderID)
	if err != nil {
		return err
	}
	if ok, reason := can(progress, stageID); !ok {
		s.log.Debug(ctx, fmt.Sprintf("%s refused: %s", operation, reason))
		s.metrics.RuleViolation(operation)
		return apperrors.New(apperrors.CodeRuleViolation, reason)
	}
	return nil
}

func (s *ProgressService) lock(ctx context.Context, orderID uint) (func(), error) {
	release, err := s.locker.Lock(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return func() {
		// released on a fresh context so a cancelled request still frees the key
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := release(releaseCtx); err != nil {
			s.log.Warn(ctx, "release order lock: "+err.Error())
		}
	}, nil
}

func (s *ProgressService) recordFailure(operation string, err error) {
	if apperrors.IsCode(err, apperrors.CodeRuleViolation) {
		s.metrics.RuleViolation(operation)
	}
}

func (s *ProgressService) publish(ctx context.Context, eventType EventType, written *store.StageWriteResult, operator string) {
	event := NewOrderEvent(eventType, &written.Order, operator, s.now())
	event.StageID = written.Stage.StageID
	event.StageName = written.Stage.StageName
	if err := s.events.Publish(ctx, event); err != nil {
		s.log.Warn(ctx, "publish "+string(eventType)+": "+err.Error())
	}
}

// GetCurrentStage returns the in-progress stage, or nil when none is active.
func (s *ProgressService) GetCurrentStage(ctx context.Context, orderID uint) (*models.StageProgress, error) {
	records, err := s.store.FetchProgress(ctx, orderID)
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].Status == enums.StageStatusInProgress {
			return &records[i], nil
		}
	}
	return nil, nil
}

// GetNextStage returns the first pending stage by order, or nil when none is left.
func (s *ProgressService) GetNextStage(ctx context.Context, orderID uint) (*models.StageProgress, error) {
	records, err := s.store.FetchProgress(ctx, orderID)
	if err != nil {
		return nil, err
	}
	sortRecords(records)
	for i := range records {
		if records[i].Status == enums.StageStatusPending {
			return &records[i], nil
		}
	}
	return nil, nil
}

// GetCompletedStages returns completed stages in order.
func (s *ProgressService) GetCompletedStages(ctx context.Context, orderID uint) ([]models.StageProgress, error) {
	records, err := s.store.FetchProgress(ctx, orderID)
	if err != nil {
		return nil, err
	}
	sortRecords(records)
	completed := []models.StageProgress{}
	for _, record := range records {
		if record.Status == enums.StageStatusCompleted {
			completed = append(completed, record)
		}
	}
	return completed, nil
}

// GetTimeline returns the order's stages formatted for display.
func (s *ProgressService) GetTimeline(ctx context.Context, orderID uint) ([]TimelineEntry, error) {
	if _, err := s.store.FetchOrder(ctx, orderID); err != nil {
		return nil, err
	}
	records, err := s.store.FetchProgress(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return FormatProgressForTimeline(records), nil
}

// TimelineEntry is one stage as shown on the progress timeline.
type TimelineEntry struct {
	StageID     string            `json:"stage_id"`
	StageName   string            `json:"stage_name"`
	StageOrder  int               `json:"stage_order"`
	Status      enums.StageStatus `json:"status"`
	StatusLabel string            `json:"status_label"`
	StatusIcon  string            `json:"status_icon"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
	Notes       string            `json:"notes,omitempty"`
	Operator    string            `json:"operator,omitempty"`
}

// FormatProgressForTimeline sorts records by stage order and attaches display labels.
func FormatProgressForTimeline(records []models.StageProgress) []TimelineEntry {
	sorted := make([]models.StageProgress, len(records))
	copy(sorted, records)
	sortRecords(sorted)

	entries := make([]TimelineEntry, 0, len(sorted))
	for _, record := range sorted {
		entries = append(entries, TimelineEntry{
			StageID:     record.StageID,
			StageName:   record.StageName,
			StageOrder:  record.StageOrder,
			Status:      record.Status,
			StatusLabel: record.Status.Label(),
			StatusIcon:  record.Status.Icon(),
			StartedAt:   record.StartedAt,
			CompletedAt: record.CompletedAt,
			Notes:       deref(record.Notes),
			Operator:    record.Operator,
		})
	}
	return entries
}

func sortRecords(records []models.StageProgress) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].StageOrder < records[j].StageOrder
	})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
