package middleware

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/auth0/go-jwt-middleware/v2"
	"github.com/auth0/go-jwt-middleware/v2/jwks"
	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/memorial-diamonds-api/apperrors"
	"github.com/kendall-kelly/memorial-diamonds-api/config"
	"github.com/kendall-kelly/memorial-diamonds-api/enums"
	"github.com/kendall-kelly/memorial-diamonds-api/services"
)

const (
	ContextUserID      = "user_id"
	ContextClaims      = "validated_claims"
	ContextOperator    = "operator"
	ContextPermissions = "permissions"
)

// CustomClaims contains custom data we want from the token.
type CustomClaims struct {
	Scope string `json:"scope"`
}

// Validate satisfies validator.CustomClaims; scopes are checked per route.
func (c CustomClaims) Validate(ctx context.Context) error {
	return nil
}

// HasScope checks whether our claims have a specific scope.
func (c CustomClaims) HasScope(expectedScope string) bool {
	for _, scope := range c.Scopes() {
		if scope == expectedScope {
			return true
		}
	}
	return false
}

// Scopes splits the space separated scope claim.
func (c CustomClaims) Scopes() []string {
	return strings.Fields(c.Scope)
}

// EnsureValidToken is a middleware that will check the validity of our JWT.
// On success it stores the subject, claims, operator name and permissions in the gin context.
func EnsureValidToken(cfg *config.Config, resolver services.OperatorResolver) gin.HandlerFunc {
	issuerURL, err := url.Parse("https://" + cfg.Auth0Domain + "/")
	if err != nil {
		log.Fatalf("Failed to parse the issuer url: %v", err)
	}
	if resolver == nil {
		resolver = services.SubjectResolver{}
	}

	provider := jwks.NewCachingProvider(issuerURL, 5*time.Minute)

	jwtValidator, err := validator.New(
		provider.KeyFunc,
		validator.RS256,
		issuerURL.String(),
		[]string{cfg.Auth0Audience},
		validator.WithCustomClaims(
			func() validator.CustomClaims {
				return &CustomClaims{}
			},
		),
		validator.WithAllowedClockSkew(time.Minute),
	)
	if err != nil {
		log.Fatalf("Failed to set up the jwt validator")
	}

	errorHandler := func(w http.ResponseWriter, r *http.Request, err error) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"success":false,"error":{"code":"INVALID_TOKEN","message":"Failed to validate JWT."}}`))
	}

	middleware := jwtmiddleware.New(
		jwtValidator.ValidateToken,
		jwtmiddleware.WithErrorHandler(errorHandler),
	)

	return func(c *gin.Context) {
		var handler http.HandlerFunc = func(w http.ResponseWriter, r *http.Request) {
			token := r.Context().Value(jwtmiddleware.ContextKey{}).(*validator.ValidatedClaims)
			accessToken := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			SetIdentity(c, token, resolver.ResolveOperator(r.Context(), token.RegisteredClaims.Subject, accessToken))
			c.Next()
		}

		middleware.CheckJWT(handler).ServeHTTP(c.Writer, c.Request)
	}
}

// SetIdentity stores validated claims and the derived caller in the gin context.
func SetIdentity(c *gin.Context, claims *validator.ValidatedClaims, operator string) {
	c.Set(ContextUserID, claims.RegisteredClaims.Subject)
	c.Set(ContextClaims, claims)
	c.Set(ContextOperator, operator)

	var scopes []string
	if custom, ok := claims.CustomClaims.(*CustomClaims); ok && custom != nil {
		scopes = custom.Scopes()
	}
	c.Set(ContextPermissions, services.ParsePermissions(scopes))
}

// GetUserID extracts the user ID from the Gin context
func GetUserID(c *gin.Context) (string, error) {
	userID, exists := c.Get(ContextUserID)
	if !exists {
		return "", &AuthError{Code: "MISSING_USER_ID", Message: "User ID not found in context"}
	}

	userIDStr, ok := userID.(string)
	if !ok {
		return "", &AuthError{Code: "INVALID_USER_ID", Message: "User ID is not a string"}
	}

	return userIDStr, nil
}

// GetClaims extracts the validated JWT claims from the Gin context
func GetClaims(c *gin.Context) (*validator.ValidatedClaims, error) {
	claims, exists := c.Get(ContextClaims)
	if !exists {
		return nil, &AuthError{Code: "MISSING_CLAIMS", Message: "Claims not found in context"}
	}

	validatedClaims, ok := claims.(*validator.ValidatedClaims)
	if !ok {
		return nil, &AuthError{Code: "INVALID_CLAIMS", Message: "Claims are not in the expected format"}
	}

	return validatedClaims, nil
}

// GetCaller returns the operator and permissions of the authenticated staff member.
func GetCaller(c *gin.Context) services.Caller {
	caller := services.Caller{Permissions: []enums.Permission{}}
	if operator, ok := c.Get(ContextOperator); ok {
		caller.Operator, _ = operator.(string)
	}
	if caller.Operator == "" {
		caller.Operator, _ = GetUserID(c)
	}
	if perms, ok := c.Get(ContextPermissions); ok {
		if typed, ok := perms.([]enums.Permission); ok {
			caller.Permissions = typed
		}
	}
	return caller
}

// RequirePermission rejects requests whose token lacks the permission scope.
func RequirePermission(permission enums.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := GetClaims(c)
		if err != nil {
			abortWithError(c, apperrors.New(apperrors.CodeUnauthorized, "Could not retrieve token claims"))
			return
		}

		customClaims, ok := claims.CustomClaims.(*CustomClaims)
		if !ok || !customClaims.HasScope(permission.String()) {
			abortWithError(c, apperrors.New(apperrors.CodeForbidden, "没有权限执行此操作"))
			return
		}

		c.Next()
	}
}

func abortWithError(c *gin.Context, err *apperrors.Error) {
	c.AbortWithStatusJSON(apperrors.MetadataFor(err.Code()).HTTPStatus, gin.H{
		"success": false,
		"error": gin.H{
			"code":    err.Code(),
			"message": err.Message(),
		},
	})
}

// AuthError represents an authentication error
type AuthError struct {
	Code    string
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}
