package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"time"

	"github.com/google/uuid"
	"github.com/kendall-kelly/memorial-diamonds-api/apperrors"
	"github.com/kendall-kelly/memorial-diamonds-api/logger"
	"github.com/kendall-kelly/memorial-diamonds-api/models"
	"github.com/kendall-kelly/memorial-diamonds-api/store"
	"github.com/kendall-kelly/memorial-diamonds-api/utils"
	"go.uber.org/multierr"
)

const (
	defaultMediaURLTTL = time.Hour
	msgNoFiles         = "没有选择照片"
)

// Attachment is one file handed to the media service.
type Attachment struct {
	Filename string
	Size     int64
	Open     func() (io.ReadCloser, error)
}

// AttachmentFromFileHeader adapts a multipart upload.
func AttachmentFromFileHeader(fh *multipart.FileHeader) Attachment {
	return Attachment{
		Filename: fh.Filename,
		Size:     fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

// AttachmentRequest attaches files to one stage of one order.
type AttachmentRequest struct {
	Order       *models.Order
	StageID     string
	StageName   string
	Description string
	Operator    string
	Files       []Attachment
}

// UploadFailure reports a file that was not stored.
type UploadFailure struct {
	Filename string `json:"filename"`
	Message  string `json:"message"`
	err      error
}

// UploadOutcome lists what was stored and what was not. Each file stands alone.
type UploadOutcome struct {
	Uploaded []models.Media  `json:"uploaded"`
	Failed   []UploadFailure `json:"failed,omitempty"`
}

// Err combines all per-file failures, or returns nil.
func (o *UploadOutcome) Err() error {
	if o == nil {
		return nil
	}
	var err error
	for _, failure := range o.Failed {
		err = multierr.Append(err, fmt.Errorf("%s: %w", failure.Filename, failure.err))
	}
	return err
}

// MediaService stores stage photos and videos.
type MediaService interface {
	// UploadAttachments validates, uploads and records each file independently.
	UploadAttachments(ctx context.Context, req AttachmentRequest) *UploadOutcome

	// PresignMedia fills the URL fields of the given media records.
	PresignMedia(ctx context.Context, media []models.Media) []models.Media

	// DeleteMedia hides a media record from every listing.
	DeleteMedia(ctx context.Context, mediaID uint, operator string) (*models.Media, error)
}

// S3MediaService implements MediaService with S3 object storage and the order store.
type S3MediaService struct {
	s3Service S3Interface
	store     MediaStore
	urlTTL    time.Duration
	log       *logger.Logger
	metrics   *Metrics
}

var mediaServiceInstance MediaService

// NewMediaService builds the S3-backed media service.
func NewMediaService(s3Service S3Interface, store MediaStore, urlTTL time.Duration, log *logger.Logger, metrics *Metrics) *S3MediaService {
	if urlTTL <= 0 {
		urlTTL = defaultMediaURLTTL
	}
	if log == nil {
		log = logger.Nop()
	}
	return &S3MediaService{
		s3Service: s3Service,
		store:     store,
		urlTTL:    urlTTL,
		log:       log,
		metrics:   metrics,
	}
}

// InitMediaService initializes the global media service instance
func InitMediaService(s3Service S3Interface, store MediaStore, urlTTL time.Duration, log *logger.Logger, metrics *Metrics) MediaService {
	mediaServiceInstance = NewMediaService(s3Service, store, urlTTL, log, metrics)
	return mediaServiceInstance
}

// GetMediaService returns the initialized media service instance
func GetMediaService() MediaService {
	return mediaServiceInstance
}

// SetMediaService sets the media service instance (primarily for testing)
func SetMediaService(service MediaService) {
	mediaServiceInstance = service
}

// MediaKey builds the object key for an upload.
func MediaKey(orderNumber, stageID, extension string) string {
	return fmt.Sprintf("orders/%s/%s/%s%s", orderNumber, stageID, uuid.NewString(), extension)
}

// UploadAttachments never fails as a whole: every file lands in Uploaded or Failed.
func (s *S3MediaService) UploadAttachments(ctx context.Context, req AttachmentRequest) *UploadOutcome {
	outcome := &UploadOutcome{Uploaded: []models.Media{}}
	if req.Order == nil {
		outcome.Failed = append(outcome.Failed, UploadFailure{
			Message: store.MsgOrderNotFound,
			err:     errors.New("order required"),
		})
		return outcome
	}

	ctx = s.log.WithOrderID(ctx, req.Order.ID)
	for _, file := range req.Files {
		media, err := s.uploadOne(ctx, req, file)
		if err != nil {
			s.log.Warn(s.log.WithField(ctx, "filename", file.Filename), "media upload failed: "+err.Error())
			s.metrics.MediaUpload(mediaTypeOf(file.Filename), false)
			outcome.Failed = append(outcome.Failed, UploadFailure{
				Filename: file.Filename,
				Message:  failureMessage(file.Filename, err),
				err:      err,
			})
			continue
		}
		s.metrics.MediaUpload(string(media.MediaType), true)
		outcome.Uploaded = append(outcome.Uploaded, *media)
	}
	outcome.Uploaded = s.PresignMedia(ctx, outcome.Uploaded)
	return outcome
}

func (s *S3MediaService) uploadOne(ctx context.Context, req AttachmentRequest, file Attachment) (*models.Media, error) {
	info, err := utils.ValidateMediaFile(file.Filename, file.Size)
	if err != nil {
		return nil, err
	}
	if file.Open == nil {
		return nil, errors.New("attachment has no content")
	}

	body, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("open attachment: %w", err)
	}
	defer body.Close()

	key := MediaKey(req.Order.OrderNumber, req.StageID, info.Extension)
	if err := s.s3Service.UploadObject(ctx, key, body, file.Size, info.ContentType); err != nil {
		return nil, fmt.Errorf("upload object: %w", err)
	}

	media := &models.Media{
		OrderID:     req.Order.ID,
		StageID:     req.StageID,
		StageName:   req.StageName,
		MediaType:   info.MediaType,
		S3Key:       key,
		ContentType: info.ContentType,
		FileSize:    file.Size,
		Description: req.Description,
		UploadedBy:  req.Operator,
	}
	if err := s.store.CreateMedia(ctx, media); err != nil {
		// the metadata insert failed, so the object would be orphaned
		if cleanupErr := s.s3Service.DeleteFile(ctx, key); cleanupErr != nil {
			s.log.Warn(ctx, "orphaned media object "+key+": "+cleanupErr.Error())
		}
		return nil, err
	}
	return media, nil
}

// PresignMedia leaves URL empty for records whose key cannot be signed.
func (s *S3MediaService) PresignMedia(ctx context.Context, media []models.Media) []models.Media {
	for i := range media {
		url, err := s.s3Service.GetPresignedURL(ctx, media[i].S3Key, s.urlTTL)
		if err != nil {
			s.log.Warn(ctx, "presign media failed: "+err.Error())
			continue
		}
		media[i].URL = url
		if media[i].ThumbnailS3Key != nil && *media[i].ThumbnailS3Key != "" {
			if thumb, err := s.s3Service.GetPresignedURL(ctx, *media[i].ThumbnailS3Key, s.urlTTL); err == nil {
				media[i].ThumbnailURL = thumb
			}
		}
	}
	return media
}

// DeleteMedia soft deletes the record, then removes the stored objects.
// A failed object delete is logged; the record stays hidden.
func (s *S3MediaService) DeleteMedia(ctx context.Context, mediaID uint, operator string) (*models.Media, error) {
	media, err := s.store.SoftDeleteMedia(ctx, mediaID, operator)
	if err != nil {
		return nil, err
	}
	keys := []string{media.S3Key}
	if media.ThumbnailS3Key != nil && *media.ThumbnailS3Key != "" {
		keys = append(keys, *media.ThumbnailS3Key)
	}
	for _, key := range keys {
		if err := s.s3Service.DeleteFile(ctx, key); err != nil {
			s.log.Warn(s.log.WithOrderID(ctx, media.OrderID), "delete media object "+key+": "+err.Error())
		}
	}
	return media, nil
}

func failureMessage(filename string, err error) string {
	var uploadErr *utils.FileUploadError
	if errors.As(err, &uploadErr) {
		return uploadErr.Message
	}
	if appErr := apperrors.As(err); appErr != nil {
		return appErr.Message()
	}
	return fmt.Sprintf("上传失败：%s", filename)
}

func mediaTypeOf(filename string) string {
	info, err := utils.ValidateMediaFile(filename, 1)
	if err != nil {
		return "unknown"
	}
	return string(info.MediaType)
}
