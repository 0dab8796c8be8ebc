package utils

import (
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/kendall-kelly/memorial-diamonds-api/enums"
)

const (
	// MaxPhotoSize is 10MB in bytes
	MaxPhotoSize = 10 * 1024 * 1024
	// MaxVideoSize is 100MB in bytes
	MaxVideoSize = 100 * 1024 * 1024
)

var photoFormats = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

var videoFormats = map[string]string{
	".mp4": "video/mp4",
	".mov": "video/quicktime",
}

// FileUploadError represents a file upload validation error
type FileUploadError struct {
	Code    string
	Message string
}

func (e *FileUploadError) Error() string {
	return e.Message
}

// MediaFileInfo describes an accepted upload
type MediaFileInfo struct {
	MediaType   enums.MediaType
	ContentType string
	Extension   string
}

// ValidateMediaFile checks the file extension and size against the photo and video limits
func ValidateMediaFile(filename string, size int64) (*MediaFileInfo, error) {
	ext := strings.ToLower(filepath.Ext(filename))

	var info MediaFileInfo
	var limit int64
	if contentType, ok := photoFormats[ext]; ok {
		info = MediaFileInfo{MediaType: enums.MediaTypePhoto, ContentType: contentType, Extension: ext}
		limit = MaxPhotoSize
	} else if contentType, ok := videoFormats[ext]; ok {
		info = MediaFileInfo{MediaType: enums.MediaTypeVideo, ContentType: contentType, Extension: ext}
		limit = MaxVideoSize
	} else {
		return nil, &FileUploadError{
			Code:    "INVALID_FILE_FORMAT",
			Message: fmt.Sprintf("不支持的文件格式：%s（照片支持 jpg/jpeg/png，视频支持 mp4/mov）", filename),
		}
	}

	if size <= 0 {
		return nil, &FileUploadError{
			Code:    "EMPTY_FILE",
			Message: fmt.Sprintf("文件为空：%s", filename),
		}
	}

	if size > limit {
		return nil, &FileUploadError{
			Code:    "FILE_TOO_LARGE",
			Message: fmt.Sprintf("文件过大：%s（%s最大 %d MB）", filename, mediaLabel(info.MediaType), limit/(1024*1024)),
		}
	}

	return &info, nil
}

// ValidateFileHeader validates a multipart upload
func ValidateFileHeader(fileHeader *multipart.FileHeader) (*MediaFileInfo, error) {
	return ValidateMediaFile(fileHeader.Filename, fileHeader.Size)
}

func mediaLabel(mediaType enums.MediaType) string {
	if mediaType == enums.MediaTypeVideo {
		return "视频"
	}
	return "照片"
}
