package services

import (
	"context"
	"strings"
	"time"

	"github.com/kendall-kelly/memorial-diamonds-api/apperrors"
	"github.com/kendall-kelly/memorial-diamonds-api/enums"
	"github.com/kendall-kelly/memorial-diamonds-api/models"
	"github.com/kendall-kelly/memorial-diamonds-api/statemachine"
	"github.com/kendall-kelly/memorial-diamonds-api/utils"
)

// PublicOrderSummary is what a customer sees in a lookup result.
type PublicOrderSummary struct {
	OrderNumber         string            `json:"order_number"`
	CustomerName        string            `json:"customer_name"`
	CustomerPhone       string            `json:"customer_phone"`
	DiamondType         enums.DiamondType `json:"diamond_type"`
	DiamondSize         enums.DiamondSize `json:"diamond_size"`
	OrderStatus         enums.OrderStatus `json:"order_status"`
	StatusLabel         string            `json:"status_label"`
	ProgressPercentage  int               `json:"progress_percentage"`
	CurrentStage        string            `json:"current_stage"`
	EstimatedCompletion *time.Time        `json:"estimated_completion,omitempty"`
	CreatedAt           time.Time         `json:"created_at"`
}

// PublicStage is a started stage with its media.
type PublicStage struct {
	TimelineEntry
	Media []PublicMedia `json:"media"`
}

// PublicMedia is a media record stripped to display fields.
type PublicMedia struct {
	MediaType    enums.MediaType `json:"media_type"`
	URL          string          `json:"url"`
	ThumbnailURL string          `json:"thumbnail_url,omitempty"`
	Description  string          `json:"description,omitempty"`
	UploadedAt   time.Time       `json:"uploaded_at"`
}

// PublicOrderView is the customer's order page.
type PublicOrderView struct {
	PublicOrderSummary
	HasStarted   bool                     `json:"has_started"`
	Stages       []PublicStage            `json:"stages"`
	MediaByStage map[string][]PublicMedia `json:"media_by_stage"`
}

func toPublicSummary(order *models.Order) PublicOrderSummary {
	return PublicOrderSummary{
		OrderNumber:         order.OrderNumber,
		CustomerName:        order.CustomerName,
		CustomerPhone:       utils.MaskPhone(order.CustomerPhone),
		DiamondType:         order.DiamondType,
		DiamondSize:         order.DiamondSize,
		OrderStatus:         order.Status,
		StatusLabel:         order.Status.Label(),
		ProgressPercentage:  order.ProgressPercentage,
		CurrentStage:        order.CurrentStage,
		EstimatedCompletion: order.EstimatedCompletion,
		CreatedAt:           order.CreatedAt,
	}
}

// LookupOrders finds a customer's live orders by phone or order number.
// The order number wins when both are given.
func (s *OrderService) LookupOrders(ctx context.Context, phone, orderNumber string) ([]PublicOrderSummary, error) {
	phone = strings.TrimSpace(phone)
	orderNumber = strings.TrimSpace(orderNumber)

	var orders []models.Order
	switch {
	case orderNumber != "":
		order, err := s.store.FindActiveOrderByNumber(ctx, orderNumber)
		if err != nil {
			if apperrors.IsCode(err, apperrors.CodeNotFound) {
				return []PublicOrderSummary{}, nil
			}
			return nil, err
		}
		orders = []models.Order{*order}
	case phone != "":
		if err := s.validator.ValidatePhone(phone); err != nil {
			return nil, err
		}
		found, err := s.store.FindActiveOrdersByPhone(ctx, phone)
		if err != nil {
			return nil, err
		}
		orders = found
	default:
		return nil, apperrors.New(apperrors.CodeValidation, msgLookupRequired)
	}

	summaries := make([]PublicOrderSummary, 0, len(orders))
	for i := range orders {
		summaries = append(summaries, toPublicSummary(&orders[i]))
	}
	return summaries, nil
}

// GetPublicOrder returns a customer's order with only the stages that have started.
func (s *OrderService) GetPublicOrder(ctx context.Context, orderNumber string) (*PublicOrderView, error) {
	order, err := s.store.FindActiveOrderByNumber(ctx, strings.TrimSpace(orderNumber))
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

	byStage := make(map[string][]PublicMedia)
	for _, m := range media {
		if m.URL == "" {
			continue
		}
		byStage[m.StageName] = append(byStage[m.StageName], PublicMedia{
			MediaType:    m.MediaType,
			URL:          m.URL,
			ThumbnailURL: m.ThumbnailURL,
			Description:  m.Description,
			UploadedAt:   m.UploadedAt,
		})
	}

	stages := []PublicStage{}
	for _, entry := range FormatProgressForTimeline(records) {
		if entry.Status == enums.StageStatusPending {
			continue
		}
		stageMedia := byStage[entry.StageName]
		if stageMedia == nil {
			stageMedia = []PublicMedia{}
		}
		entry.Operator = ""
		stages = append(stages, PublicStage{TimelineEntry: entry, Media: stageMedia})
	}

	return &PublicOrderView{
		PublicOrderSummary: toPublicSummary(order),
		HasStarted:         statemachine.HasStarted(progress),
		Stages:             stages,
		MediaByStage:       byStage,
	}, nil
}
