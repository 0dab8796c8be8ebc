package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/memorial-diamonds-api/enums"
	"github.com/kendall-kelly/memorial-diamonds-api/middleware"
	"github.com/kendall-kelly/memorial-diamonds-api/models"
	"github.com/kendall-kelly/memorial-diamonds-api/services"
	"github.com/kendall-kelly/memorial-diamonds-api/store"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const allScopes = "orders.read orders.create orders.update orders.delete progress.update photos.upload photos.manage"

type tickingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type testEnv struct {
	store *store.Store
	s3    *services.MockS3Service
}

// setupControllerTest wires the services singletons against an in-memory store and mock S3.
func setupControllerTest(t *testing.T) *testEnv {
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	clock := &tickingClock{now: time.Date(2024, 5, 20, 9, 0, 0, 0, time.UTC)}
	s := store.New(db, store.Options{OrderNumberPrefix: "LD", Now: clock.Now})
	require.NoError(t, s.Migrate(context.Background()))
	_, err = s.SeedProductionStages(context.Background(), models.DefaultProductionStages())
	require.NoError(t, err)

	s3 := services.NewMockS3Service()
	media := services.NewMediaService(s3, s, time.Hour, nil, nil)
	services.SetProgressService(services.NewProgressService(services.ProgressServiceDeps{
		Store: s,
		Media: media,
		Now:   clock.Now,
	}))
	services.SetOrderService(services.NewOrderService(services.OrderServiceDeps{
		Store: s,
		Media: media,
		Now:   clock.Now,
	}))

	t.Cleanup(func() {
		services.SetProgressService(nil)
		services.SetOrderService(nil)
	})
	return &testEnv{store: s, s3: s3}
}

// fakeAuth stands in for the JWT middleware and grants the given scopes.
func fakeAuth(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := &validator.ValidatedClaims{
			RegisteredClaims: validator.RegisteredClaims{Subject: "auth0|staff"},
			CustomClaims:     &middleware.CustomClaims{Scope: scope},
		}
		middleware.SetIdentity(c, claims, "王师傅")
		c.Next()
	}
}

func (e *testEnv) createOrder(t *testing.T, name, phone string) *models.Order {
	order, err := e.store.CreateOrderRecord(context.Background(), &models.Order{
		CustomerName:  name,
		CustomerPhone: phone,
		DiamondType:   enums.DiamondTypeMemorial,
		DiamondSize:   enums.DiamondSizeOneCarat,
	}, "admin")
	require.NoError(t, err)
	return order
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func perform(router http.Handler, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return serve(router, req)
}

func serve(router http.Handler, req *http.Request) (*httptest.ResponseRecorder, envelope) {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w, env
}

// multipartRequest builds a multipart body with text fields and files under "files".
func multipartRequest(t *testing.T, path string, fields map[string]string, files map[string][]byte) *http.Request {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	for name, content := range files {
		part, err := writer.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}
