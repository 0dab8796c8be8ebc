package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/memorial-diamonds-api/enums"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCustomClaims_HasScope(t *testing.T) {
	tests := []struct {
		name          string
		scope         string
		expectedScope string
		want          bool
	}{
		{
			name:          "has exact scope",
			scope:         "orders.read",
			expectedScope: "orders.read",
			want:          true,
		},
		{
			name:          "has scope in multiple scopes",
			scope:         "orders.read progress.update orders.delete",
			expectedScope: "progress.update",
			want:          true,
		},
		{
			name:          "does not have scope",
			scope:         "orders.read",
			expectedScope: "progress.update",
			want:          false,
		},
		{
			name:          "empty scope",
			scope:         "",
			expectedScope: "orders.read",
			want:          false,
		},
		{
			name:          "partial match should not work",
			scope:         "orders.read",
			expectedScope: "orders",
			want:          false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := CustomClaims{Scope: tt.scope}
			got := claims.HasScope(tt.expectedScope)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetUserID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name      string
		setupFunc func(*gin.Context)
		wantID    string
		wantErr   bool
	}{
		{
			name: "successfully extracts user ID",
			setupFunc: func(c *gin.Context) {
				c.Set("user_id", "auth0|123456")
			},
			wantID:  "auth0|123456",
			wantErr: false,
		},
		{
			name: "user ID not found in context",
			setupFunc: func(c *gin.Context) {
				// Don't set user_id
			},
			wantID:  "",
			wantErr: true,
		},
		{
			name: "user ID is not a string",
			setupFunc: func(c *gin.Context) {
				c.Set("user_id", 12345) // Set as int instead of string
			},
			wantID:  "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			tt.setupFunc(c)

			gotID, err := GetUserID(c)

			if tt.wantErr {
				assert.Error(t, err)
				assert.Empty(t, gotID)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.wantID, gotID)
			}
		})
	}
}

func TestGetClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name      string
		setupFunc func(*gin.Context)
		wantErr   bool
	}{
		{
			name: "successfully extracts claims",
			setupFunc: func(c *gin.Context) {
				claims := &validator.ValidatedClaims{
					RegisteredClaims: validator.RegisteredClaims{
						Issuer:  "https://test.auth0.com/",
						Subject: "auth0|123456",
					},
					CustomClaims: &CustomClaims{
						Scope: "orders.read",
					},
				}
				c.Set("validated_claims", claims)
			},
			wantErr: false,
		},
		{
			name: "claims not found in context",
			setupFunc: func(c *gin.Context) {
				// Don't set validated_claims
			},
			wantErr: true,
		},
		{
			name: "claims are not the expected type",
			setupFunc: func(c *gin.Context) {
				c.Set("validated_claims", "invalid")
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			tt.setupFunc(c)

			claims, err := GetClaims(c)

			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, claims)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, claims)
			}
		})
	}
}

func TestRequirePermission(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name           string
		permission     enums.Permission
		setupFunc      func(*gin.Context)
		wantStatusCode int
		wantAborted    bool
		wantCode       string
	}{
		{
			name:       "has required permission",
			permission: enums.PermissionOrdersRead,
			setupFunc: func(c *gin.Context) {
				claims := &validator.ValidatedClaims{
					CustomClaims: &CustomClaims{
						Scope: "orders.read progress.update",
					},
				}
				c.Set(ContextClaims, claims)
			},
			wantAborted: false,
		},
		{
			name:       "missing required permission",
			permission: enums.PermissionOrdersDelete,
			setupFunc: func(c *gin.Context) {
				claims := &validator.ValidatedClaims{
					CustomClaims: &CustomClaims{
						Scope: "orders.read progress.update",
					},
				}
				c.Set(ContextClaims, claims)
			},
			wantStatusCode: http.StatusForbidden,
			wantAborted:    true,
			wantCode:       "FORBIDDEN",
		},
		{
			name:       "claims not in context",
			permission: enums.PermissionOrdersRead,
			setupFunc: func(c *gin.Context) {
				// Don't set validated_claims
			},
			wantStatusCode: http.StatusUnauthorized,
			wantAborted:    true,
			wantCode:       "UNAUTHORIZED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/test", nil)

			tt.setupFunc(c)

			handler := RequirePermission(tt.permission)
			handler(c)

			if tt.wantAborted {
				assert.True(t, c.IsAborted())
				assert.Equal(t, tt.wantStatusCode, w.Code)

				var body map[string]any
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
				assert.Equal(t, false, body["success"])
				assert.Equal(t, tt.wantCode, body["error"].(map[string]any)["code"])
			} else {
				assert.False(t, c.IsAborted())
			}
		})
	}
}

type staticResolver string

func (r staticResolver) ResolveOperator(context.Context, string, string) string {
	return string(r)
}

func TestSetIdentityAndGetCaller(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	claims := &validator.ValidatedClaims{
		RegisteredClaims: validator.RegisteredClaims{Subject: "auth0|staff"},
		CustomClaims:     &CustomClaims{Scope: "openid orders.read photos.upload"},
	}
	SetIdentity(c, claims, staticResolver("李师傅").ResolveOperator(context.Background(), "", ""))

	caller := GetCaller(c)
	assert.Equal(t, "李师傅", caller.Operator)
	assert.Equal(t, []enums.Permission{enums.PermissionOrdersRead, enums.PermissionPhotosUpload}, caller.Permissions)

	userID, err := GetUserID(c)
	require.NoError(t, err)
	assert.Equal(t, "auth0|staff", userID)
}

func TestGetCallerWithoutIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	caller := GetCaller(c)
	assert.Empty(t, caller.Operator)
	assert.NotNil(t, caller.Permissions)
	assert.Empty(t, caller.Permissions)
}

func TestAuthError(t *testing.T) {
	err := &AuthError{
		Code:    "TEST_ERROR",
		Message: "This is a test error",
	}

	assert.Equal(t, "This is a test error", err.Error())
}
