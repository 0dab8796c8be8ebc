package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/memorial-diamonds-api/enums"
	"github.com/kendall-kelly/memorial-diamonds-api/middleware"
	"github.com/kendall-kelly/memorial-diamonds-api/models"
	"github.com/kendall-kelly/memorial-diamonds-api/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func progressRouter(scope string) *gin.Engine {
	router := gin.New()
	admin := router.Group("/api/v1/admin", fakeAuth(scope))
	admin.GET("/orders/:id/progress", middleware.RequirePermission(enums.PermissionOrdersRead), GetProgressTimeline)
	admin.POST("/orders/:id/stages/:stage_id/start", middleware.RequirePermission(enums.PermissionProgressUpdate), StartStage)
	admin.POST("/orders/:id/stages/:stage_id/complete", middleware.RequirePermission(enums.PermissionProgressUpdate), CompleteStage)
	return router
}

// completeAllStages drives an order through every production stage.
func completeAllStages(t *testing.T, env *testEnv, orderID uint) {
	ctx := context.Background()
	svc := services.GetProgressService()
	for _, stage := range models.DefaultProductionStages() {
		_, err := svc.StartStage(ctx, orderID, stage.StageID, "王师傅")
		require.NoError(t, err)
		_, err = svc.CompleteStage(ctx, services.CompleteStageRequest{OrderID: orderID, StageID: stage.StageID, Operator: "王师傅"})
		require.NoError(t, err)
	}
	order, err := env.store.FetchOrder(ctx, orderID)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusCompleted, order.Status)
}

func TestStartStage(t *testing.T) {
	tests := []struct {
		name           string
		setup          func(t *testing.T, env *testEnv, orderID uint)
		stageID        string
		expectedStatus int
		expectedMsg    string
	}{
		{
			name:           "first stage",
			stageID:        "STAGE001",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "skipping ahead",
			stageID:        "STAGE003",
			expectedStatus: http.StatusUnprocessableEntity,
			expectedMsg:    "请先完成前一阶段：碳化提纯",
		},
		{
			name: "another stage in progress",
			setup: func(t *testing.T, env *testEnv, orderID uint) {
				_, err := services.GetProgressService().StartStage(context.Background(), orderID, "STAGE001", "王师傅")
				require.NoError(t, err)
			},
			stageID:        "STAGE002",
			expectedStatus: http.StatusUnprocessableEntity,
			expectedMsg:    "请先完成进行中的阶段：进入实验室",
		},
		{
			name:           "unknown stage",
			stageID:        "STAGE099",
			expectedStatus: http.StatusUnprocessableEntity,
			expectedMsg:    "未找到指定阶段",
		},
		{
			name: "cancelled order",
			setup: func(t *testing.T, env *testEnv, orderID uint) {
				_, err := env.store.CancelOrder(context.Background(), orderID, "admin", "")
				require.NoError(t, err)
			},
			stageID:        "STAGE001",
			expectedStatus: http.StatusUnprocessableEntity,
			expectedMsg:    "订单已取消，无法更新进度",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupControllerTest(t)
			order := env.createOrder(t, "张三", "13800138000")
			if tt.setup != nil {
				tt.setup(t, env, order.ID)
			}
			router := progressRouter(allScopes)

			w, resp := perform(router, http.MethodPost,
				fmt.Sprintf("/api/v1/admin/orders/%d/stages/%s/start", order.ID, tt.stageID), nil)

			assert.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
			if tt.expectedStatus != http.StatusOK {
				assert.Equal(t, tt.expectedMsg, resp.Error.Message)
				return
			}
			var result services.StageResult
			require.NoError(t, json.Unmarshal(resp.Data, &result))
			assert.Equal(t, enums.StageStatusInProgress, result.Stage.Status)
			assert.Equal(t, "王师傅", result.Stage.Operator)
			assert.Equal(t, enums.OrderStatusInProgress, result.Order.Status)
			assert.Equal(t, "进入实验室", result.Order.CurrentStage)
		})
	}
}

func TestStartStageRequiresProgressScope(t *testing.T) {
	env := setupControllerTest(t)
	order := env.createOrder(t, "张三", "13800138000")
	router := progressRouter("orders.read")

	w, resp := perform(router, http.MethodPost, fmt.Sprintf("/api/v1/admin/orders/%d/stages/STAGE001/start", order.ID), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", resp.Error.Code)
}

func TestCompleteStageWithAttachments(t *testing.T) {
	env := setupControllerTest(t)
	order := env.createOrder(t, "张三", "13800138000")
	router := progressRouter(allScopes)
	base := fmt.Sprintf("/api/v1/admin/orders/%d/stages/STAGE001", order.ID)

	// completing a pending stage is rejected
	w, resp := serve(router, multipartRequest(t, base+"/complete", map[string]string{"notes": "完成"}, nil))
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "只能完成进行中的阶段", resp.Error.Message)

	w, _ = perform(router, http.MethodPost, base+"/start", nil)
	require.Equal(t, http.StatusOK, w.Code)

	req := multipartRequest(t, base+"/complete",
		map[string]string{"notes": "原料已入库", "description": "入库照片"},
		map[string][]byte{
			"lab.jpg":    []byte("fake jpeg"),
			"report.exe": []byte("not media"),
		})
	w, resp = serve(router, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result services.StageResult
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	assert.Equal(t, enums.StageStatusCompleted, result.Stage.Status)
	require.NotNil(t, result.Stage.Notes)
	assert.Equal(t, "原料已入库", *result.Stage.Notes)
	assert.Equal(t, 12, result.Order.ProgressPercentage)

	// the bad file fails alone, the stage stays completed
	require.NotNil(t, result.Upload)
	require.Len(t, result.Upload.Uploaded, 1)
	assert.Equal(t, "入库照片", result.Upload.Uploaded[0].Description)
	assert.NotEmpty(t, result.Upload.Uploaded[0].URL)
	assert.Len(t, env.s3.GetUploadedFiles(), 1)
	require.Len(t, result.Upload.Failed, 1)
	assert.Equal(t, "report.exe", result.Upload.Failed[0].Filename)
}

func TestCompleteStageAttachmentsNeedUploadPermission(t *testing.T) {
	env := setupControllerTest(t)
	order := env.createOrder(t, "张三", "13800138000")
	router := progressRouter("progress.update")
	base := fmt.Sprintf("/api/v1/admin/orders/%d/stages/STAGE001", order.ID)

	w, _ := perform(router, http.MethodPost, base+"/start", nil)
	require.Equal(t, http.StatusOK, w.Code)

	req := multipartRequest(t, base+"/complete",
		map[string]string{"notes": "原料已入库"},
		map[string][]byte{"lab.jpg": []byte("fake jpeg")})
	w, resp := serve(router, req)
	require.Equal(t, http.StatusForbidden, w.Code, w.Body.String())
	assert.Equal(t, "FORBIDDEN", resp.Error.Code)
	assert.Empty(t, env.s3.GetUploadedFiles())

	records, err := env.store.FetchProgress(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.StageStatusInProgress, records[0].Status)

	// without files the same caller may complete the stage
	w, _ = serve(router, multipartRequest(t, base+"/complete", map[string]string{"notes": "原料已入库"}, nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestGetProgressTimeline(t *testing.T) {
	env := setupControllerTest(t)
	order := env.createOrder(t, "张三", "13800138000")
	_, err := services.GetProgressService().StartStage(context.Background(), order.ID, "STAGE001", "王师傅")
	require.NoError(t, err)
	router := progressRouter(allScopes)

	w, resp := perform(router, http.MethodGet, fmt.Sprintf("/api/v1/admin/orders/%d/progress", order.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var timeline []services.TimelineEntry
	require.NoError(t, json.Unmarshal(resp.Data, &timeline))
	require.Len(t, timeline, 8)
	assert.Equal(t, "STAGE001", timeline[0].StageID)
	assert.Equal(t, "进行中", timeline[0].StatusLabel)
	assert.Equal(t, "待处理", timeline[7].StatusLabel)
}
