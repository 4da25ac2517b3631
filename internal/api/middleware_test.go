package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"alcyxob/plansync/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, userID string, role domain.Role, ttl time.Duration) string {
	t.Helper()
	claims := jwtClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

// newAuthRouter mounts a probe endpoint behind the real auth middleware.
func newAuthRouter(roles ...domain.Role) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers := []gin.HandlerFunc{AuthMiddleware(testSecret)}
	if len(roles) > 0 {
		handlers = append(handlers, RoleMiddleware(roles...))
	}
	handlers = append(handlers, func(c *gin.Context) {
		id, _ := getUserIDFromContext(c)
		role, _ := getUserRoleFromContext(c)
		c.JSON(http.StatusOK, gin.H{"userId": id, "role": role})
	})
	r.GET("/probe", handlers...)
	return r
}

func probe(r *gin.Engine, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestAuthMiddlewareAcceptsValidToken(t *testing.T) {
	userID := primitive.NewObjectID().Hex()
	token := signToken(t, testSecret, userID, domain.RoleTrainer, time.Hour)

	rec := probe(newAuthRouter(), "Bearer "+token)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), userID)
	require.Contains(t, rec.Body.String(), "trainer")
}

func TestAuthMiddlewareRejectsBadTokens(t *testing.T) {
	r := newAuthRouter()

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc123"},
		{"garbage token", "Bearer not.a.jwt"},
		{"wrong secret", "Bearer " + signToken(t, "other-secret", primitive.NewObjectID().Hex(), domain.RoleTrainer, time.Hour)},
		{"missing claims", "Bearer " + signToken(t, testSecret, "", domain.RoleTrainer, time.Hour)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := probe(r, tc.header)
			require.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestAuthMiddlewareReportsExpiry(t *testing.T) {
	token := signToken(t, testSecret, primitive.NewObjectID().Hex(), domain.RoleTrainer, -time.Minute)

	rec := probe(newAuthRouter(), "Bearer "+token)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), "expired")
}

func TestRoleMiddlewareGatesByRole(t *testing.T) {
	r := newAuthRouter(domain.RoleTrainer)

	trainerToken := signToken(t, testSecret, primitive.NewObjectID().Hex(), domain.RoleTrainer, time.Hour)
	rec := probe(r, "Bearer "+trainerToken)
	require.Equal(t, http.StatusOK, rec.Code)

	clientToken := signToken(t, testSecret, primitive.NewObjectID().Hex(), domain.RoleClient, time.Hour)
	rec = probe(r, "Bearer "+clientToken)
	require.Equal(t, http.StatusForbidden, rec.Code)
}
