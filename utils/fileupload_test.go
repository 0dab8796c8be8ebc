package utils

import (
	"bytes"
	"mime/multipart"
	"net/textproto"
	"testing"

	"github.com/kendall-kelly/memorial-diamonds-api/enums"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestFileHeader creates a multipart.FileHeader for testing
func createTestFileHeader(filename string, size int64, content []byte) *multipart.FileHeader {
	// Create a buffer to write our multipart form
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	// Create form file
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="files"; filename="`+filename+`"`)
	h.Set("Content-Type", "application/octet-stream")
	part, _ := writer.CreatePart(h)
	part.Write(content)
	writer.Close()

	// Parse the multipart form
	reader := multipart.NewReader(body, writer.Boundary())
	form, _ := reader.ReadForm(int64(len(content)) + 1024)

	if len(form.File["files"]) > 0 {
		fileHeader := form.File["files"][0]
		// Override size for testing purposes
		fileHeader.Size = size
		return fileHeader
	}

	return nil
}

func TestValidateMediaFile_Accepted(t *testing.T) {
	tests := []struct {
		filename    string
		size        int64
		mediaType   enums.MediaType
		contentType string
	}{
		{"stage.jpg", 1024, enums.MediaTypePhoto, "image/jpeg"},
		{"stage.JPEG", 1024, enums.MediaTypePhoto, "image/jpeg"},
		{"stage.png", MaxPhotoSize, enums.MediaTypePhoto, "image/png"},
		{"growth.mp4", 50 * 1024 * 1024, enums.MediaTypeVideo, "video/mp4"},
		{"cutting.MOV", MaxVideoSize, enums.MediaTypeVideo, "video/quicktime"},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			info, err := ValidateMediaFile(tt.filename, tt.size)
			require.NoError(t, err)
			assert.Equal(t, tt.mediaType, info.MediaType)
			assert.Equal(t, tt.contentType, info.ContentType)
		})
	}
}

func TestValidateMediaFile_Rejected(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		size     int64
		code     string
	}{
		{"photo too large", "big.png", MaxPhotoSize + 1, "FILE_TOO_LARGE"},
		{"video too large", "big.mp4", MaxVideoSize + 1, "FILE_TOO_LARGE"},
		{"photo at video size", "big.jpg", 50 * 1024 * 1024, "FILE_TOO_LARGE"},
		{"gif not allowed", "anim.gif", 10, "INVALID_FILE_FORMAT"},
		{"no extension", "README", 10, "INVALID_FILE_FORMAT"},
		{"empty file", "empty.png", 0, "EMPTY_FILE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateMediaFile(tt.filename, tt.size)
			require.Error(t, err)

			fileErr, ok := err.(*FileUploadError)
			require.True(t, ok, "Error should be of type FileUploadError")
			assert.Equal(t, tt.code, fileErr.Code)
			assert.Contains(t, fileErr.Message, tt.filename)
		})
	}
}

func TestValidateFileHeader(t *testing.T) {
	content := []byte("fake jpg content")
	fileHeader := createTestFileHeader("stage.jpg", int64(len(content)), content)
	require.NotNil(t, fileHeader)

	info, err := ValidateFileHeader(fileHeader)
	require.NoError(t, err)
	assert.Equal(t, enums.MediaTypePhoto, info.MediaType)

	fileHeader = createTestFileHeader("large.png", 11*1024*1024, content)
	require.NotNil(t, fileHeader)
	_, err = ValidateFileHeader(fileHeader)
	assert.Error(t, err)
}

func TestMaskPhone_FileUploadSuite(t *testing.T) {
	tests := []struct {
		phone string
		want  string
	}{
		{"13800138000", "138****8000"},
		{"12345678", "123*5678"},
		{"1234567", "1****67"},
		{"1234", "****"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.phone, func(t *testing.T) {
			assert.Equal(t, tt.want, MaskPhone(tt.phone))
		})
	}
}

func TestIsDigits_FileUploadSuite(t *testing.T) {
	assert.True(t, IsDigits("13800138000"))
	assert.False(t, IsDigits("1380013800a"))
	assert.False(t, IsDigits("１３８"))
	assert.False(t, IsDigits(""))
}
